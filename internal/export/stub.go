package export

import (
	"context"
	"log/slog"
	"path/filepath"
)

// StubEngine reports a synthetic export without invoking ffmpeg, for
// headless and test use.
type StubEngine struct {
	logger *slog.Logger
}

func NewStubEngine(logger *slog.Logger) *StubEngine {
	return &StubEngine{logger: logger}
}

func (e *StubEngine) Export(ctx context.Context, req *Request, onProgress func(percent int)) (*Result, error) {
	if len(req.Main) == 0 {
		return nil, ErrEmptyTimeline
	}
	if e.logger != nil {
		e.logger.Info("export stub: export requested", "segments", len(req.Main))
	}
	if onProgress != nil {
		onProgress(50)
		onProgress(100)
	}
	name := SanitizeName(req.OutputName, 120)
	if name == "" {
		name = "export"
	}
	return &Result{
		OutputPath: filepath.Join(req.Settings.OutputDir, name+".mp4"),
		Duration:   req.TotalDuration(),
	}, nil
}
