package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/visionmesh/trackd/internal/backend"
	"github.com/visionmesh/trackd/internal/config"
	"github.com/visionmesh/trackd/internal/core"
	"github.com/visionmesh/trackd/internal/dao"
	"github.com/visionmesh/trackd/internal/dashboard"
	"github.com/visionmesh/trackd/internal/monitoring"
	"github.com/visionmesh/trackd/internal/queue"
)

// Server wires the HTTP routes to the intake queues, the dashboard hub
// and the camera admin.
type Server struct {
	addr      string
	imgRoot   string
	nodeSid   string
	notifyURL string

	d        *dao.Dao
	analysis *backend.AnalysisClient
	hub      *dashboard.Hub
	met      *monitoring.Metrics

	faceQ *queue.Queue[*core.FaceTrackEvent]
	carQ  *queue.Queue[*core.CarTrackEvent]

	httpSrv *http.Server
}

func NewServer(cfg *config.Config, d *dao.Dao, analysis *backend.AnalysisClient,
	hub *dashboard.Hub,
	faceQ *queue.Queue[*core.FaceTrackEvent], carQ *queue.Queue[*core.CarTrackEvent]) *Server {

	s := &Server{
		addr:      fmt.Sprintf(":%d", cfg.HTTPPort),
		imgRoot:   cfg.ImgRoot,
		nodeSid:   cfg.Web.ClientNode.Sid,
		notifyURL: cfg.Web.NotifyURL,
		d:         d,
		analysis:  analysis,
		hub:       hub,
		met:       monitoring.Get(),
		faceQ:     faceQ,
		carQ:      carQ,
	}
	s.httpSrv = &http.Server{
		Addr:    s.addr,
		Handler: s.Router(),
	}
	return s
}

// Router builds the route table; exported so tests can drive the
// handlers through httptest.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/trackupload", s.handleTrackUpload).Methods(http.MethodPost)
	r.HandleFunc("/getsingleimg", s.handleGetSingleImg).Methods(http.MethodGet)
	r.HandleFunc("/ws/{room}", s.handleWS).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/cameras", s.handleCameraList).Methods(http.MethodGet)
	api.HandleFunc("/cameras", s.handleCameraAdd).Methods(http.MethodPost)
	api.HandleFunc("/cameras/{sid}", s.handleCameraDetail).Methods(http.MethodGet)
	api.HandleFunc("/cameras/{sid}", s.handleCameraDelete).Methods(http.MethodDelete)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	return r
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if mux.Vars(r)["room"] != "track" {
		http.NotFound(w, r)
		return
	}
	s.hub.HandleWS(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.d.Ping(); err != nil {
		http.Error(w, "db: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Run serves until the exit broadcast fires, then drains in-flight
// requests with a bounded graceful shutdown.
func (s *Server) Run(exit <-chan int64) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		slog.Info("http server listening", "addr", s.addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server", "error", err)
		}
	}()

	go func() {
		defer close(done)
		<-exit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown", "error", err)
		}
		slog.Info("http server stopped")
	}()
	return done
}
