package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/clappper/clappper-agent/internal/api"
	"github.com/clappper/clappper-agent/internal/capture"
	"github.com/clappper/clappper-agent/internal/config"
	"github.com/clappper/clappper-agent/internal/db"
	"github.com/clappper/clappper-agent/internal/export"
	"github.com/clappper/clappper-agent/internal/jobs"
	"github.com/clappper/clappper-agent/internal/logging"
	"github.com/clappper/clappper-agent/internal/playback"
	"github.com/clappper/clappper-agent/internal/probe"
	"github.com/clappper/clappper-agent/internal/project"
	"github.com/clappper/clappper-agent/internal/timeline"
	"github.com/clappper/clappper-agent/internal/ui"
	"github.com/clappper/clappper-agent/internal/watcher"
)

var Version = "0.1.0"

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.ExportDir(), 0755); err != nil {
		return fmt.Errorf("failed to create export dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting clappper agent", "version", Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := project.NewRepository(database.Conn())

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                   CLAPPPER AGENT v0.1.0                   ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	store := timeline.NewStore(cfg.OverlayTracks(), logger)
	commands := playback.NewCommandBuffer()
	sync := playback.NewSynchronizer(store, commands.Factory(), logger)
	projectSvc := project.NewService(repo, logger)
	exportSettings := export.NewSettingsStore()

	restoreAutosave(store, exportSettings, projectSvc, logger)

	var prober probe.Prober
	if _, err := exec.LookPath(cfg.FFprobePath()); err == nil {
		prober = probe.NewFFprobe(cfg.FFprobePath(), cfg.ProbeTimeout(), logger)
	} else {
		logger.Warn("ffprobe not found, media imports will use stub metadata", "path", cfg.FFprobePath())
		prober = probe.NewStubProber(logger)
	}

	var engine export.Engine
	if _, err := exec.LookPath(cfg.FFmpegPath()); err == nil {
		engine = export.NewFFmpegEngine(cfg.FFmpegPath(), cfg.ExportTimeout(), logger)
	} else {
		logger.Warn("ffmpeg not found, exports will be stubbed", "path", cfg.FFmpegPath())
		engine = export.NewStubEngine(logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := jobs.NewRunner(repo, engine, logging.WithComponent(logger, "jobs"))
	go runner.Start(ctx)

	mediaWatcher := startWatcher(store, sync, logging.WithComponent(logger, "watcher"))
	if mediaWatcher != nil {
		defer mediaWatcher.Stop()
	}

	autosaveFn := func(ctx context.Context) {
		state := &project.State{Timeline: store.Snapshot(), Export: exportSettings.Current()}
		if err := projectSvc.Autosave(ctx, state); err != nil {
			logger.Error("autosave failed", "error", err)
		}
		if mediaWatcher != nil {
			watchTimelineMedia(ctx, mediaWatcher, store)
		}
	}
	go autosaveLoop(ctx, cfg.AutosaveInterval(), autosaveFn, logger)

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		Store:          store,
		Synchronizer:   sync,
		Commands:       commands,
		Media:          playback.NewServer(logging.WithComponent(logger, "playback")),
		Prober:         prober,
		Projects:       projectSvc,
		Repository:     repo,
		Runner:         runner,
		Screen:         capture.NewStubScreenRecorder(logger),
		Camera:         capture.NewStubCameraRecorder(logger),
		Detector:       capture.NewStubDetector(logger),
		ExportSettings: exportSettings,
		ExportDir:      cfg.ExportDir(),
		Autosave:       autosaveFn,
		Logger:         logger,
		StartTime:      startTime,
		Version:        Version,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Runner: runner,
			Logger: logger,
			OnOpenEditor: func() error {
				logger.Info("open editor requested from tray (UI shell launches separately in v0)")
				return nil
			},
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	// One last autosave so a quit never loses edits.
	saveCtx, saveCancel := context.WithTimeout(context.Background(), 5*time.Second)
	autosaveFn(saveCtx)
	saveCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// restoreAutosave seeds the store and export settings from the autosave
// slot, if one exists.
func restoreAutosave(store *timeline.Store, settings *export.SettingsStore, svc project.ProjectService, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	state, err := svc.LoadAutosave(ctx)
	if err != nil {
		logger.Warn("failed to load autosave", "error", err)
		return
	}
	if state == nil || state.Timeline == nil {
		return
	}

	store.Replace(state.Timeline)
	settings.Update(state.Export)
	logger.Info("restored autosaved session")
}

// startWatcher wires source-media presence tracking into playback: a file
// going missing marks its clips offline; reappearing clears them.
func startWatcher(store *timeline.Store, sync *playback.Synchronizer, logger *slog.Logger) watcher.Watcher {
	w, err := watcher.NewFSWatcher(logger)
	if err != nil {
		logger.Warn("media watcher unavailable", "error", err)
		return nil
	}

	w.OnChange(func(path string, event watcher.EventType) {
		ids := store.ClipIDsByPath(path)
		switch event {
		case watcher.EventDelete:
			for _, id := range ids {
				sync.MarkClipOffline(id, fmt.Errorf("source media missing: %s", path))
			}
		case watcher.EventCreate:
			for _, id := range ids {
				sync.ClearClipOffline(id)
			}
		}
	})
	return w
}

// watchTimelineMedia registers every source file currently on the
// timeline. Re-registering an already watched path is a no-op.
func watchTimelineMedia(ctx context.Context, w watcher.Watcher, store *timeline.Store) {
	for _, track := range store.Tracks() {
		for _, clip := range track.Clips {
			w.Watch(ctx, clip.Path)
		}
	}
}

func autosaveLoop(ctx context.Context, interval time.Duration, save func(ctx context.Context), logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			save(ctx)
		}
	}
}

func ensureAuthToken(repo project.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
