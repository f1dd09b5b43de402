// Package capture defines the recording and AI collaborator surfaces.
// Recordings land as ordinary media files; the timeline only ever sees
// them through the probe-validated import path.
package capture

import (
	"context"
	"fmt"
	"log/slog"
)

// Recording describes a finished capture on disk.
type Recording struct {
	Path     string  `json:"path"`
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
}

type ScreenRecorder interface {
	Start(ctx context.Context, displayID int) error
	Stop(ctx context.Context) (*Recording, error)
	IsRecording() bool
}

type CameraRecorder interface {
	Start(ctx context.Context, deviceID string) error
	Stop(ctx context.Context) (*Recording, error)
	IsRecording() bool
}

// Enhancer post-processes a recording in place (denoise, loudness).
type Enhancer interface {
	Enhance(ctx context.Context, path string) error
}

// Detector finds within-clip moments worth cutting on.
type Detector interface {
	DetectSilence(ctx context.Context, path string) ([]float64, error)
}

type StubScreenRecorder struct {
	logger    *slog.Logger
	recording bool
}

func NewStubScreenRecorder(logger *slog.Logger) *StubScreenRecorder {
	return &StubScreenRecorder{logger: logger}
}

func (s *StubScreenRecorder) Start(ctx context.Context, displayID int) error {
	s.logger.Info("screen capture stub: start requested", "display_id", displayID)
	s.recording = true
	return nil
}

func (s *StubScreenRecorder) Stop(ctx context.Context) (*Recording, error) {
	s.logger.Info("screen capture stub: stop requested")
	if !s.recording {
		return nil, fmt.Errorf("no recording in progress")
	}
	s.recording = false
	return nil, fmt.Errorf("screen capture not available in this build")
}

func (s *StubScreenRecorder) IsRecording() bool {
	return s.recording
}

type StubCameraRecorder struct {
	logger    *slog.Logger
	recording bool
}

func NewStubCameraRecorder(logger *slog.Logger) *StubCameraRecorder {
	return &StubCameraRecorder{logger: logger}
}

func (s *StubCameraRecorder) Start(ctx context.Context, deviceID string) error {
	s.logger.Info("camera capture stub: start requested", "device_id", deviceID)
	s.recording = true
	return nil
}

func (s *StubCameraRecorder) Stop(ctx context.Context) (*Recording, error) {
	s.logger.Info("camera capture stub: stop requested")
	if !s.recording {
		return nil, fmt.Errorf("no recording in progress")
	}
	s.recording = false
	return nil, fmt.Errorf("camera capture not available in this build")
}

func (s *StubCameraRecorder) IsRecording() bool {
	return s.recording
}

type StubEnhancer struct {
	logger *slog.Logger
}

func NewStubEnhancer(logger *slog.Logger) *StubEnhancer {
	return &StubEnhancer{logger: logger}
}

func (s *StubEnhancer) Enhance(ctx context.Context, path string) error {
	s.logger.Info("enhancer stub: enhance requested", "path", path)
	return nil
}

type StubDetector struct {
	logger *slog.Logger
}

func NewStubDetector(logger *slog.Logger) *StubDetector {
	return &StubDetector{logger: logger}
}

func (s *StubDetector) DetectSilence(ctx context.Context, path string) ([]float64, error) {
	s.logger.Info("detector stub: silence detection requested", "path", path)
	return nil, nil
}
