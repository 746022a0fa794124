package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/visionmesh/trackd/internal/backend"
	"github.com/visionmesh/trackd/internal/bus"
	"github.com/visionmesh/trackd/internal/coalesce"
	"github.com/visionmesh/trackd/internal/config"
	"github.com/visionmesh/trackd/internal/core"
	"github.com/visionmesh/trackd/internal/dao"
	"github.com/visionmesh/trackd/internal/dashboard"
	"github.com/visionmesh/trackd/internal/gc"
	"github.com/visionmesh/trackd/internal/imgstore"
	"github.com/visionmesh/trackd/internal/judge"
	"github.com/visionmesh/trackd/internal/queue"
	"github.com/visionmesh/trackd/internal/runtime"
	"github.com/visionmesh/trackd/internal/search"
	"github.com/visionmesh/trackd/internal/web"
)

func main() {
	cfgPath := flag.String("c", "trackd.yaml", "config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := setupLogging(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "init logging: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if err := imgstore.PrepareDir(cfg.ImgRoot); err != nil {
		return fmt.Errorf("prepare img root: %w", err)
	}

	d, err := dao.Open(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer d.Close()

	recg := backend.NewRecognitionClient(cfg.API.RecgURL)
	analysis := backend.NewAnalysisClient(cfg.API.GrabURL)

	// intake -> coalesce -> search -> judge -> bus
	faceQ := queue.New[*core.FaceTrackEvent]()
	carQ := queue.New[*core.CarTrackEvent]()
	trackQ := queue.New[*core.Snapshot]()
	searchedQ := queue.New[*core.Snapshot]()
	faceJudgedQ := queue.New[*core.Snapshot]()
	judgedQ := queue.New[*core.Snapshot]()

	searcher, err := search.NewFaceSearcher(cfg, d, recg, trackQ, searchedQ)
	if err != nil {
		return fmt.Errorf("init searcher: %w", err)
	}
	faceJudge, err := judge.NewFaceJudge(cfg, d, searchedQ, faceJudgedQ)
	if err != nil {
		return fmt.Errorf("init face judge: %w", err)
	}
	carJudge, err := judge.NewCarJudge(cfg, d, faceJudgedQ, judgedQ)
	if err != nil {
		return fmt.Errorf("init car judge: %w", err)
	}

	snapBus := bus.NewSnapshotBus(judgedQ)
	notifier := bus.NewRedisNotifier(cfg, snapBus)

	window, err := dashboard.Seed(cfg.ImgURL, cfg.WS.Batch, d)
	if err != nil {
		return fmt.Errorf("seed dashboard: %w", err)
	}
	hub := dashboard.NewHub(window, snapBus.Subscribe("ws"))

	srv := web.NewServer(cfg, d, analysis, hub, faceQ, carQ)

	exits := runtime.NewBroadcast()
	repo := runtime.NewRepo(exits)

	repo.Start("face-coalescer", coalesce.NewFaceCoalescer(cfg, d, faceQ, trackQ))
	repo.Start("car-coalescer", coalesce.NewCarCoalescer(cfg, d, carQ, trackQ))
	repo.Start("searcher", searcher)
	repo.Start("face-judge", faceJudge)
	repo.Start("car-judge", carJudge)
	repo.Start("bus", snapBus)
	if notifier != nil {
		repo.Start("redis-notifier", notifier)
	}
	repo.Start("dashboard", hub)
	if cfg.DiskClean.Enable {
		repo.Start("disk-clean", gc.NewCleaner(cfg, d))
	}
	repo.Start("http", srv)
	repo.Start("signal", runtime.NewSignalService(exits))

	slog.Info("trackd started",
		"version", cfg.Version.Ver, "http_port", cfg.HTTPPort, "db", cfg.DB.Path)
	repo.Join()
	slog.Info("trackd stopped")
	return nil
}

// setupLogging points both the structured and the prefixed loggers at
// the configured destination.
func setupLogging(lc config.LogConfig) error {
	var w io.Writer = os.Stdout
	if lc.File != "" {
		f, err := os.OpenFile(lc.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		w = io.MultiWriter(os.Stdout, f)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	log.SetOutput(w)
	return nil
}
