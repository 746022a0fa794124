package bus

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/visionmesh/trackd/internal/config"
	"github.com/visionmesh/trackd/internal/core"
	"github.com/visionmesh/trackd/internal/queue"
)

// publisher is the slice of the Redis client the notifier needs.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier publishes judged snapshots to a Redis channel for
// external integrations. Publish failures are logged and the snapshot
// is dropped; the channel is a best-effort feed, the database row is
// the source of truth.
type RedisNotifier struct {
	channel string

	rdb publisher
	log *log.Logger

	in *queue.Queue[*core.Snapshot]
}

// NewRedisNotifier connects to the configured Redis instance and
// subscribes to the bus. Returns nil when no Redis address is
// configured; the caller skips the service.
func NewRedisNotifier(cfg *config.Config, b *SnapshotBus) *RedisNotifier {
	if cfg.Notify.RedisAddr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Notify.RedisAddr})
	return newRedisNotifier(cfg.Notify.RedisChannel, rdb, b.Subscribe("redis"))
}

func newRedisNotifier(channel string, rdb publisher, in *queue.Queue[*core.Snapshot]) *RedisNotifier {
	return &RedisNotifier{
		channel: channel,
		rdb:     rdb,
		log:     log.New(os.Stdout, "[RedisNotifier] ", log.LstdFlags),
		in:      in,
	}
}

func (n *RedisNotifier) Run(exit <-chan int64) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-exit:
				n.log.Print("exiting")
				return
			case snap, ok := <-n.in.Out():
				if !ok {
					return
				}
				n.publish(snap)
			}
		}
	}()
	return done
}

func (n *RedisNotifier) publish(snap *core.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		n.log.Printf("marshal track %s: %v", snap.Sid(), err)
		return
	}
	if err := n.rdb.Publish(context.Background(), n.channel, payload).Err(); err != nil {
		n.log.Printf("publish track %s: %v", snap.Sid(), err)
	}
}
