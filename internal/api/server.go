// Package api exposes the editor core to the UI shell over a localhost
// HTTP API. The shell owns the actual video elements; every edit,
// transport action, and stream clock report crosses this boundary.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/clappper/clappper-agent/internal/capture"
	"github.com/clappper/clappper-agent/internal/export"
	"github.com/clappper/clappper-agent/internal/jobs"
	"github.com/clappper/clappper-agent/internal/playback"
	"github.com/clappper/clappper-agent/internal/probe"
	"github.com/clappper/clappper-agent/internal/project"
	"github.com/clappper/clappper-agent/internal/timeline"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port           int
	Store          *timeline.Store
	Synchronizer   *playback.Synchronizer
	Commands       *playback.CommandBuffer
	Media          playback.MediaService
	Prober         probe.Prober
	Projects       project.ProjectService
	Repository     project.Repository
	Runner         *jobs.Runner
	Screen         capture.ScreenRecorder
	Camera         capture.CameraRecorder
	Detector       capture.Detector
	ExportSettings *export.SettingsStore
	ExportDir      string
	Autosave       func(ctx context.Context)
	Logger         *slog.Logger
	StartTime      time.Time
	Version        string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
