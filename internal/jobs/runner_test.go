package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clappper/clappper-agent/internal/db"
	"github.com/clappper/clappper-agent/internal/export"
	"github.com/clappper/clappper-agent/internal/project"
)

type fakeEngine struct {
	exportCalled atomic.Int32
	exportFn     func(ctx context.Context, req *export.Request, onProgress func(int)) (*export.Result, error)
}

func (f *fakeEngine) Export(ctx context.Context, req *export.Request, onProgress func(percent int)) (*export.Result, error) {
	f.exportCalled.Add(1)
	if f.exportFn != nil {
		return f.exportFn(ctx, req, onProgress)
	}
	if onProgress != nil {
		onProgress(50)
		onProgress(100)
	}
	return &export.Result{OutputPath: "/test/out/final.mp4", Duration: 10}, nil
}

func setupRunnerTest(t *testing.T, fake *fakeEngine) (*Runner, project.Repository) {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := project.NewRepository(database.Conn())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	runner := NewRunner(repo, fake, logger)
	return runner, repo
}

func testRequest() *export.Request {
	return &export.Request{
		Main: []export.Segment{
			{Path: "/test/videos/a.mp4", Name: "a.mp4", Start: 0, End: 5},
			{Path: "/test/videos/b.mp4", Name: "b.mp4", Start: 1, End: 4},
		},
		Settings:   export.DefaultSettings(),
		OutputName: "final",
	}
}

func TestEnqueue_CreatesPendingJob(t *testing.T) {
	runner, repo := setupRunnerTest(t, &fakeEngine{})
	ctx := context.Background()

	job, err := runner.Enqueue(ctx, testRequest())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	stored, err := repo.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if stored.Status != project.JobStatusPending {
		t.Errorf("job status = %s, want %s", stored.Status, project.JobStatusPending)
	}
	if stored.Type != project.JobTypeExport {
		t.Errorf("job type = %s, want %s", stored.Type, project.JobTypeExport)
	}
	if stored.Payload == "" {
		t.Error("job payload is empty")
	}
}

func TestProcessExportJob_Completes(t *testing.T) {
	fake := &fakeEngine{}
	runner, repo := setupRunnerTest(t, fake)
	ctx := context.Background()

	job, err := runner.Enqueue(ctx, testRequest())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	runner.processNextJob(ctx)

	updated, _ := repo.GetJob(ctx, job.ID)
	if updated.Status != project.JobStatusCompleted {
		t.Errorf("job status = %s, want %s", updated.Status, project.JobStatusCompleted)
	}
	if updated.Progress != 100 {
		t.Errorf("job progress = %d, want 100", updated.Progress)
	}
	if updated.OutputPath != "/test/out/final.mp4" {
		t.Errorf("job output = %q, want /test/out/final.mp4", updated.OutputPath)
	}
	if fake.exportCalled.Load() != 1 {
		t.Errorf("export called %d times, want 1", fake.exportCalled.Load())
	}
}

func TestProcessExportJob_EngineFailure(t *testing.T) {
	fake := &fakeEngine{
		exportFn: func(ctx context.Context, req *export.Request, onProgress func(int)) (*export.Result, error) {
			return nil, fmt.Errorf("ffmpeg exited with code 1")
		},
	}
	runner, repo := setupRunnerTest(t, fake)
	ctx := context.Background()

	job, err := runner.Enqueue(ctx, testRequest())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	runner.processNextJob(ctx)

	updated, _ := repo.GetJob(ctx, job.ID)
	if updated.Status != project.JobStatusFailed {
		t.Errorf("job status = %s, want %s", updated.Status, project.JobStatusFailed)
	}
	if updated.Error == "" {
		t.Error("failed job has no error message")
	}
}

func TestProcessExportJob_InvalidPayload(t *testing.T) {
	runner, repo := setupRunnerTest(t, &fakeEngine{})
	ctx := context.Background()

	now := time.Now()
	job := &project.Job{
		ID:        "job-bad-payload",
		Type:      project.JobTypeExport,
		Status:    project.JobStatusPending,
		Payload:   "{not json",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.CreateJob(ctx, job); err != nil {
		t.Fatalf("create job: %v", err)
	}

	runner.processNextJob(ctx)

	updated, _ := repo.GetJob(ctx, job.ID)
	if updated.Status != project.JobStatusFailed {
		t.Errorf("job status = %s, want %s", updated.Status, project.JobStatusFailed)
	}
}

func TestRunner_PausedSkipsWork(t *testing.T) {
	fake := &fakeEngine{}
	runner, _ := setupRunnerTest(t, fake)
	ctx := context.Background()

	if _, err := runner.Enqueue(ctx, testRequest()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	runner.Pause()
	if !runner.IsPaused() {
		t.Fatal("runner should report paused")
	}

	// The polling loop checks paused before processing; emulate one tick.
	if !runner.paused.Load() {
		runner.processNextJob(ctx)
	}

	if fake.exportCalled.Load() != 0 {
		t.Errorf("export called %d times while paused, want 0", fake.exportCalled.Load())
	}

	runner.Resume()
	if runner.IsPaused() {
		t.Error("runner should report resumed")
	}
}
