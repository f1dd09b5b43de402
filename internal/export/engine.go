package export

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/clappper/clappper-agent/internal/compositing"
)

// Engine is the export/transcode collaborator contract. Progress is
// reported as monotonic 0-100 percentages; a failed export leaves the
// timeline untouched because the engine only ever reads the request.
type Engine interface {
	Export(ctx context.Context, req *Request, onProgress func(percent int)) (*Result, error)
}

// FFmpegEngine shells out to ffmpeg with a trim+concat filter graph and
// overlay filters for the picture-in-picture lanes.
type FFmpegEngine struct {
	bin     string
	timeout time.Duration
	logger  *slog.Logger
}

func NewFFmpegEngine(bin string, timeout time.Duration, logger *slog.Logger) *FFmpegEngine {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpegEngine{bin: bin, timeout: timeout, logger: logger}
}

func (e *FFmpegEngine) Export(ctx context.Context, req *Request, onProgress func(percent int)) (*Result, error) {
	if len(req.Main) == 0 {
		return nil, ErrEmptyTimeline
	}
	if err := ValidateOutputDir(req.Settings.OutputDir); err != nil {
		return nil, err
	}

	name := SanitizeName(req.OutputName, 120)
	if name == "" {
		name = "export"
	}
	outputPath := filepath.Join(req.Settings.OutputDir, name+".mp4")

	args := BuildArgs(req, outputPath)

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.bin, args...)
	cmd.Stderr = io.Discard

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("cannot open ffmpeg stdout: %w", err)
	}

	if e.logger != nil {
		e.logger.Info("starting export",
			"output", outputPath,
			"segments", len(req.Main),
			"overlays", len(req.Overlays),
			"resolution", string(req.Settings.Resolution),
			"quality", string(req.Settings.Quality),
		)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("cannot start ffmpeg: %w", err)
	}

	total := req.TotalDuration()
	tracker := NewProgressTracker(total)
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if percent, ok := tracker.Feed(scanner.Text()); ok && onProgress != nil {
			onProgress(percent)
		}
	}

	if err := cmd.Wait(); err != nil {
		os.Remove(outputPath)
		return nil, fmt.Errorf("ffmpeg exited with error: %w", err)
	}

	if _, err := os.Stat(outputPath); err != nil {
		return nil, fmt.Errorf("export produced no output: %w", err)
	}

	if onProgress != nil {
		onProgress(100)
	}
	if e.logger != nil {
		e.logger.Info("export complete", "output", outputPath, "elapsed", time.Since(start))
	}
	return &Result{OutputPath: outputPath, Duration: total}, nil
}

// BuildArgs assembles the full ffmpeg argument list for a request. Every
// main segment becomes one input trimmed in the filter graph; overlay
// jobs add scaled overlay filters placed by the same interpolator samples
// the preview used.
func BuildArgs(req *Request, outputPath string) []string {
	args := []string{"-y"}

	for _, seg := range req.Main {
		args = append(args, "-i", seg.Path)
	}
	for _, job := range req.Overlays {
		args = append(args, "-i", job.Segment.Path)
	}

	args = append(args, "-filter_complex", BuildFilterGraph(req))
	args = append(args, "-map", "[vout]")

	args = append(args,
		"-c:v", "libx264",
		"-preset", req.Settings.Quality.Preset(),
		"-crf", strconv.Itoa(req.Settings.Quality.CRF()),
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		"-nostats",
		outputPath,
	)
	return args
}

// BuildFilterGraph writes the trim/concat/overlay filter expression.
func BuildFilterGraph(req *Request) string {
	var b strings.Builder

	scale := ""
	if w, h, ok := req.Settings.Resolution.Dimensions(); ok {
		scale = fmt.Sprintf(",scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2", w, h, w, h)
	}

	for i, seg := range req.Main {
		fmt.Fprintf(&b, "[%d:v]trim=start=%s:end=%s,setpts=PTS-STARTPTS%s[m%d];",
			i, ffNum(seg.Start), ffNum(seg.End), scale, i)
	}
	for i := range req.Main {
		fmt.Fprintf(&b, "[m%d]", i)
	}
	fmt.Fprintf(&b, "concat=n=%d:v=1:a=0[base];", len(req.Main))

	prev := "base"
	for j, job := range req.Overlays {
		in := len(req.Main) + j
		label := fmt.Sprintf("ov%d", j)
		pos := job.PositionExpr()
		fmt.Fprintf(&b, "[%d:v]trim=start=%s:end=%s,setpts=PTS-STARTPTS+%s/TB,scale=iw*%s:-1[%s];",
			in, ffNum(job.Segment.Start), ffNum(job.Segment.End), ffNum(job.Offset), pos.Size, label)
		next := fmt.Sprintf("c%d", j)
		fmt.Fprintf(&b, "[%s][%s]overlay=x=%s:y=%s:enable='between(t,%s,%s)'[%s];",
			prev, label, pos.X, pos.Y,
			ffNum(job.Offset), ffNum(job.Offset+job.Segment.Duration()), next)
		prev = next
	}

	graph := b.String()
	// Rename the final label to the mapped output.
	graph = strings.TrimSuffix(graph, ";")
	return strings.Replace(graph, "["+prev+"]", "[vout]", 1)
}

// FilterPos holds ffmpeg expression strings for one overlay's placement.
type FilterPos struct {
	X, Y, Size string
}

// PositionExpr renders the overlay placement as ffmpeg expressions.
// Static jobs are plain fractions of the frame; keyframed jobs become
// piecewise-linear lerp chains, reproducing the interpolator's
// hold-before, hold-after and linear segments exactly.
func (j *OverlayJob) PositionExpr() FilterPos {
	if len(j.Keyframes) == 0 {
		pos := j.Static
		return FilterPos{
			X:    fmt.Sprintf("main_w*%s", ffNum(pos.X)),
			Y:    fmt.Sprintf("main_h*%s", ffNum(pos.Y)),
			Size: ffNum(pos.Size),
		}
	}

	x := keyframeExpr(j.Keyframes, func(k int) float64 { return j.Keyframes[k].X })
	y := keyframeExpr(j.Keyframes, func(k int) float64 { return j.Keyframes[k].Y })
	size := j.Keyframes[0].Size // scale filter takes no time expression; first sample wins
	return FilterPos{
		X:    fmt.Sprintf("main_w*(%s)", x),
		Y:    fmt.Sprintf("main_h*(%s)", y),
		Size: ffNum(size),
	}
}

// keyframeExpr builds a nested if/lerp expression over the sorted list:
// hold before the first sample, linear between neighbours, hold after the
// last.
func keyframeExpr(kfs []compositing.Keyframe, value func(int) float64) string {
	last := len(kfs) - 1
	expr := ffNum(value(last))
	for i := last - 1; i >= 0; i-- {
		t0, t1 := kfs[i].Time, kfs[i+1].Time
		lerp := fmt.Sprintf("%s+(%s-%s)*(t-%s)/(%s-%s)",
			ffNum(value(i)), ffNum(value(i+1)), ffNum(value(i)),
			ffNum(t0), ffNum(t1), ffNum(t0))
		expr = fmt.Sprintf("if(lt(t,%s),%s,%s)", ffNum(t1), lerp, expr)
	}
	return fmt.Sprintf("if(lt(t,%s),%s,%s)", ffNum(kfs[0].Time), ffNum(value(0)), expr)
}

func ffNum(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
