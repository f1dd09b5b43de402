package export

import (
	"fmt"

	"github.com/clappper/clappper-agent/internal/compositing"
)

// Resolution is the output size selector.
type Resolution string

const (
	Res360p   Resolution = "360p"
	Res480p   Resolution = "480p"
	Res720p   Resolution = "720p"
	Res1080p  Resolution = "1080p"
	ResSource Resolution = "source"
)

// Dimensions returns the target frame size; ok is false for ResSource,
// which keeps the input resolution.
func (r Resolution) Dimensions() (width, height int, ok bool) {
	switch r {
	case Res360p:
		return 640, 360, true
	case Res480p:
		return 854, 480, true
	case Res720p:
		return 1280, 720, true
	case Res1080p:
		return 1920, 1080, true
	default:
		return 0, 0, false
	}
}

func ParseResolution(s string) (Resolution, error) {
	switch Resolution(s) {
	case Res360p, Res480p, Res720p, Res1080p, ResSource:
		return Resolution(s), nil
	default:
		return "", fmt.Errorf("unknown resolution %q", s)
	}
}

// Quality maps a user-facing preset to encoder settings.
type Quality string

const (
	QualityFast   Quality = "fast"
	QualityMedium Quality = "medium"
	QualitySlow   Quality = "slow"
)

// Preset returns the libx264 preset for the quality level.
func (q Quality) Preset() string {
	switch q {
	case QualityFast:
		return "veryfast"
	case QualitySlow:
		return "slow"
	default:
		return "medium"
	}
}

// CRF returns the constant rate factor for the quality level.
func (q Quality) CRF() int {
	switch q {
	case QualityFast:
		return 23
	case QualitySlow:
		return 18
	default:
		return 20
	}
}

func ParseQuality(s string) (Quality, error) {
	switch Quality(s) {
	case QualityFast, QualityMedium, QualitySlow:
		return Quality(s), nil
	default:
		return "", fmt.Errorf("unknown quality preset %q", s)
	}
}

// Settings is the export configuration carried in project state.
type Settings struct {
	Resolution Resolution `json:"resolution"`
	Quality    Quality    `json:"quality"`
	OutputDir  string     `json:"output_dir"`
}

func DefaultSettings() Settings {
	return Settings{Resolution: ResSource, Quality: QualityMedium}
}

// Segment is one trimmed source interval, in timeline order. Times are
// seconds into the source.
type Segment struct {
	Path  string  `json:"path"`
	Name  string  `json:"name"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration is the trimmed length of the segment.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// OverlayJob is one overlay lane's contribution: a segment plus either a
// static placement or the full keyframe list. Keyframed jobs are sampled
// through the same interpolator the live preview uses.
type OverlayJob struct {
	Segment   Segment                `json:"segment"`
	Static    *compositing.Position  `json:"static,omitempty"`
	Keyframes []compositing.Keyframe `json:"keyframes,omitempty"`
	Offset    float64                `json:"offset"` // sequence time where the overlay begins
}

// Request is a full export order handed to the engine.
type Request struct {
	Main       []Segment    `json:"main"`
	Overlays   []OverlayJob `json:"overlays,omitempty"`
	Settings   Settings     `json:"settings"`
	OutputName string       `json:"output_name"`
}

// TotalDuration is the summed trimmed duration of the main segments,
// used to scale encoder progress.
func (r *Request) TotalDuration() float64 {
	var total float64
	for _, s := range r.Main {
		total += s.Duration()
	}
	return total
}

// Result is the engine's final report.
type Result struct {
	OutputPath string  `json:"output_path"`
	Duration   float64 `json:"duration"`
}
