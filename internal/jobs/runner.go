// Package jobs runs queued background work (currently export jobs) off
// a polling loop against the SQLite job table. The editing path never
// blocks on an export; the UI polls job progress instead.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/clappper/clappper-agent/internal/export"
	"github.com/clappper/clappper-agent/internal/logging"
	"github.com/clappper/clappper-agent/internal/project"
	"github.com/clappper/clappper-agent/internal/timeline"
)

type Runner struct {
	repo         project.Repository
	engine       export.Engine
	logger       *slog.Logger
	pollInterval time.Duration
	running      atomic.Bool
	paused       atomic.Bool
	exporting    atomic.Bool
}

func NewRunner(repo project.Repository, engine export.Engine, logger *slog.Logger) *Runner {
	return &Runner{
		repo:         repo,
		engine:       engine,
		logger:       logger,
		pollInterval: time.Second,
	}
}

// Enqueue records an export job carrying a frozen request plan. The plan
// is captured at enqueue time, so timeline edits made while the job waits
// do not bleed into the running export.
func (r *Runner) Enqueue(ctx context.Context, req *export.Request) (*project.Job, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	job := &project.Job{
		ID:        timeline.NewID(),
		Type:      project.JobTypeExport,
		Status:    project.JobStatusPending,
		Payload:   string(payload),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	if r.logger != nil {
		r.logger.Info("export job queued", "job_id", job.ID, "segments", len(req.Main))
	}
	return job, nil
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("job runner started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			if !r.paused.Load() {
				r.processNextJob(ctx)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("job runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("job runner resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// IsExporting reports whether an export is in flight, for the tray.
func (r *Runner) IsExporting() bool {
	return r.exporting.Load()
}

func (r *Runner) processNextJob(ctx context.Context) {
	pending, err := r.repo.ListPendingJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list pending jobs", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	job := pending[0]
	r.logger.Info("processing job", "job_id", job.ID, "type", job.Type)

	switch job.Type {
	case project.JobTypeExport:
		r.processExportJob(ctx, job)
	default:
		r.logger.Warn("unknown job type", "type", job.Type)
		r.repo.UpdateJobStatus(ctx, job.ID, project.JobStatusFailed, "unknown job type")
	}
}

func (r *Runner) processExportJob(ctx context.Context, job *project.Job) {
	logger := logging.WithJobID(r.logger, job.ID)

	var req export.Request
	if err := json.Unmarshal([]byte(job.Payload), &req); err != nil {
		r.repo.UpdateJobStatus(ctx, job.ID, project.JobStatusFailed, "invalid job payload")
		return
	}

	r.repo.UpdateJobStatus(ctx, job.ID, project.JobStatusRunning, "")
	r.exporting.Store(true)
	defer r.exporting.Store(false)

	result, err := r.engine.Export(ctx, &req, func(percent int) {
		r.repo.UpdateJobProgress(ctx, job.ID, percent)
	})
	if err != nil {
		logger.Error("export failed", "error", err)
		r.repo.UpdateJobStatus(ctx, job.ID, project.JobStatusFailed, err.Error())
		return
	}

	r.repo.UpdateJobOutput(ctx, job.ID, result.OutputPath)
	r.repo.UpdateJobStatus(ctx, job.ID, project.JobStatusCompleted, "")
	logger.Info("export job completed", "output", logging.SanitizePath(result.OutputPath))
}
