// Package gc reclaims disk space by dropping the oldest tracks, image
// directories first and database rows second, whenever the partition
// holding the image store runs low.
package gc

import (
	"log"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/visionmesh/trackd/internal/config"
	"github.com/visionmesh/trackd/internal/dao"
	"github.com/visionmesh/trackd/internal/imgstore"
	"github.com/visionmesh/trackd/internal/monitoring"
)

// Cleaner wakes up periodically, checks free space and trims one batch
// of face tracks and one batch of vehicle tracks when below the
// threshold. Image directories are removed before the rows so a crash
// between the two only leaves rows pointing at missing images, which
// the next run deletes.
type Cleaner struct {
	imgRoot    string
	availBytes uint64
	ftBatch    int
	ctBatch    int
	interval   time.Duration

	d   *dao.Dao
	log *log.Logger
	met *monitoring.Metrics

	// usage is swapped out in tests.
	usage func(path string) (uint64, error)
}

func NewCleaner(cfg *config.Config, d *dao.Dao) *Cleaner {
	return &Cleaner{
		imgRoot:    cfg.ImgRoot,
		availBytes: uint64(cfg.DiskClean.AvailSizeM) * 1024 * 1024,
		ftBatch:    cfg.DiskClean.CleanFtBatch,
		ctBatch:    cfg.DiskClean.CleanCtBatch,
		interval:   time.Duration(cfg.DiskClean.IntervalMinute) * time.Minute,
		d:          d,
		log:        log.New(os.Stdout, "[TrackClean] ", log.LstdFlags),
		met:        monitoring.Get(),
		usage:      diskFree,
	}
}

func diskFree(path string) (uint64, error) {
	u, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return u.Free, nil
}

func (c *Cleaner) Run(exit <-chan int64) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-exit:
				c.log.Print("exiting")
				return
			case <-ticker.C:
				c.work()
			}
		}
	}()
	return done
}

func (c *Cleaner) work() {
	free, err := c.usage(c.imgRoot)
	if err != nil {
		c.log.Printf("disk usage of %s: %v", c.imgRoot, err)
		return
	}
	if free >= c.availBytes {
		return
	}
	c.log.Printf("free space %d below threshold %d, cleaning", free, c.availBytes)
	c.met.GCRuns.Inc()

	c.cleanFaces()
	c.cleanCars()
}

func (c *Cleaner) cleanFaces() {
	refs, err := c.d.LoadEldestFacetracks(c.ftBatch)
	if err != nil {
		c.log.Printf("load eldest face tracks: %v", err)
		return
	}
	if len(refs) == 0 {
		c.log.Print("clean requested but no face tracks exist")
		return
	}

	var maxID int64
	for _, ref := range refs {
		if ref.ID > maxID {
			maxID = ref.ID
		}
		dir := imgstore.FaceTrackDir(c.imgRoot, ref.Sid)
		if err := os.RemoveAll(dir); err != nil {
			c.log.Printf("remove %s: %v", dir, err)
		}
	}

	deleted, err := c.d.DeleteFacetracksUpTo(maxID)
	if err != nil {
		c.log.Printf("delete face tracks: %v", err)
		return
	}
	c.log.Printf("deleted %d face tracks", deleted)
	c.met.GCDeleted.WithLabelValues("face").Add(float64(deleted))
}

func (c *Cleaner) cleanCars() {
	refs, err := c.d.LoadEldestCartracks(c.ctBatch)
	if err != nil {
		c.log.Printf("load eldest vehicle tracks: %v", err)
		return
	}
	if len(refs) == 0 {
		c.log.Print("clean requested but no vehicle tracks exist")
		return
	}

	var maxID int64
	for _, ref := range refs {
		if ref.ID > maxID {
			maxID = ref.ID
		}
		dir := imgstore.CarTrackDir(c.imgRoot, ref.Sid)
		if err := os.RemoveAll(dir); err != nil {
			c.log.Printf("remove %s: %v", dir, err)
		}
	}

	deleted, err := c.d.DeleteCartracksUpTo(maxID)
	if err != nil {
		c.log.Printf("delete vehicle tracks: %v", err)
		return
	}
	c.log.Printf("deleted %d vehicle tracks", deleted)
	c.met.GCDeleted.WithLabelValues("vehicle").Add(float64(deleted))
}
