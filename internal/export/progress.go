package export

import (
	"strconv"
	"strings"
)

// ProgressTracker converts ffmpeg's `-progress pipe:1` key=value stream
// into monotonic 0-100 percentages scaled against the request's total
// trimmed duration. ffmpeg occasionally reports backwards or repeated
// timestamps across filter graph flushes; the tracker never lets the
// published percentage regress.
type ProgressTracker struct {
	totalSeconds float64
	last         int
}

func NewProgressTracker(totalSeconds float64) *ProgressTracker {
	return &ProgressTracker{totalSeconds: totalSeconds, last: -1}
}

// Feed consumes one progress line. It reports (percent, true) only when a
// new, strictly higher percentage should be published.
func (p *ProgressTracker) Feed(line string) (int, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found {
		return 0, false
	}

	switch key {
	case "progress":
		if value == "end" {
			return p.advance(100)
		}
		return 0, false
	case "out_time_us", "out_time_ms":
		// Both keys carry microseconds; out_time_ms is a historical
		// misnomer in ffmpeg's progress output.
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || p.totalSeconds <= 0 {
			return 0, false
		}
		percent := int(float64(us) / 1e6 / p.totalSeconds * 100)
		if percent > 99 {
			percent = 99 // 100 is reserved for progress=end
		}
		if percent < 0 {
			percent = 0
		}
		return p.advance(percent)
	default:
		return 0, false
	}
}

func (p *ProgressTracker) advance(percent int) (int, bool) {
	if percent <= p.last {
		return 0, false
	}
	p.last = percent
	return percent, true
}

// Last returns the most recently published percentage, -1 before any.
func (p *ProgressTracker) Last() int {
	return p.last
}
