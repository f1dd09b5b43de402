// Package probe extracts media metadata through ffprobe. The import path
// treats a zero duration or a missing video stream as a rejection: the
// file contributes zero clips.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics

var (
	ErrNoVideoStream = errors.New("source has no video stream")
	ErrZeroDuration  = errors.New("source has zero duration")
)

// Result holds the probed metadata for one source file.
type Result struct {
	Duration  float64
	Width     int
	Height    int
	Codec     string
	FrameRate float64
}

// Validate applies the import rejection rules.
func (r *Result) Validate() error {
	if r.Duration <= 0 {
		return ErrZeroDuration
	}
	if r.Codec == "" {
		return ErrNoVideoStream
	}
	return nil
}

// Prober is the media probe collaborator contract.
type Prober interface {
	Probe(ctx context.Context, path string) (*Result, error)
}

// FFprobe shells out to the ffprobe binary with JSON output.
type FFprobe struct {
	bin     string
	timeout time.Duration
	logger  *slog.Logger
}

func NewFFprobe(bin string, timeout time.Duration, logger *slog.Logger) *FFprobe {
	if bin == "" {
		bin = "ffprobe"
	}
	return &FFprobe{bin: bin, timeout: timeout, logger: logger}
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
}

func (f *FFprobe) Probe(ctx context.Context, path string) (*Result, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, f.bin,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = io.Writer(&limitedWriter{w: &stderr, limit: maxStderrBytes})

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("cannot parse ffprobe JSON: %w", err)
	}

	result := &Result{}
	result.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)

	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		result.Codec = s.CodecName
		result.Width = s.Width
		result.Height = s.Height
		result.FrameRate = parseFrameRate(s.RFrameRate)
		break
	}

	if err := result.Validate(); err != nil {
		return nil, err
	}

	if f.logger != nil {
		f.logger.Debug("probed source",
			"codec", result.Codec,
			"duration", result.Duration,
			"dimensions", fmt.Sprintf("%dx%d", result.Width, result.Height),
		)
	}
	return result, nil
}

// parseFrameRate resolves ffprobe's fractional form, e.g. "30000/1001".
func parseFrameRate(s string) float64 {
	if s == "" {
		return 0
	}
	parts := strings.SplitN(s, "/", 2)
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0
	}
	if len(parts) == 1 {
		return num
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || den == 0 {
		return 0
	}
	return num / den
}

type limitedWriter struct {
	w     io.Writer
	limit int
	n     int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if lw.n >= lw.limit {
		return len(p), nil
	}
	remain := lw.limit - lw.n
	if len(p) > remain {
		p = p[:remain]
	}
	n, err := lw.w.Write(p)
	lw.n += n
	if err != nil {
		return n, err
	}
	return len(p), nil
}

// StubProber returns fixed metadata without touching ffprobe, for
// headless and test use.
type StubProber struct {
	logger *slog.Logger
}

func NewStubProber(logger *slog.Logger) *StubProber {
	return &StubProber{logger: logger}
}

func (p *StubProber) Probe(ctx context.Context, path string) (*Result, error) {
	if p.logger != nil {
		p.logger.Info("probe stub: probe requested", "path", path)
	}
	return &Result{Duration: 1, Width: 1920, Height: 1080, Codec: "h264", FrameRate: 30}, nil
}
