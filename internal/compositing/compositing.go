// Package compositing computes instantaneous picture-in-picture placement
// for overlay tracks. Placement is a pure function of the track's settings
// and the sequence time, sampled identically by the live preview and the
// export engine so final output matches what was previewed.
package compositing

import (
	"fmt"
	"math"
	"sort"
)

const (
	// CornerPadding is the fraction of the frame kept between a preset
	// corner and the overlay.
	CornerPadding = 0.04

	// DefaultSize is the size fraction a new overlay starts with.
	DefaultSize = 0.3

	// keyframeSnap is the proximity window within which AddKeyframe
	// replaces an existing keyframe instead of inserting a new one.
	keyframeSnap = 0.1

	// removeBound caps how far RemoveNearest will reach for a keyframe.
	removeBound = 1.0
)

// Mode selects how placement is computed.
type Mode int

const (
	ModePreset Mode = iota
	ModeCustom
	ModeKeyframed
)

func (m Mode) String() string {
	switch m {
	case ModePreset:
		return "preset"
	case ModeCustom:
		return "custom"
	case ModeKeyframed:
		return "keyframed"
	default:
		return "unknown"
	}
}

// ParseMode converts a wire-format mode name.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "preset":
		return ModePreset, nil
	case "custom":
		return ModeCustom, nil
	case "keyframed":
		return ModeKeyframed, nil
	default:
		return 0, fmt.Errorf("unknown compositing mode %q", s)
	}
}

// Preset is a named corner or center placement.
type Preset string

const (
	TopLeft     Preset = "top-left"
	TopRight    Preset = "top-right"
	BottomLeft  Preset = "bottom-left"
	BottomRight Preset = "bottom-right"
	Center      Preset = "center"
)

// Keyframe is a timestamped placement sample. Coordinates and size are
// fractions of the frame.
type Keyframe struct {
	Time float64 `json:"time"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Size float64 `json:"size"`
}

// Position is an instantaneous placement.
type Position struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Size float64 `json:"size"`
}

// Settings holds one overlay track's compositing state. The keyframe list
// is kept sorted ascending by time after every mutation.
type Settings struct {
	Mode      Mode       `json:"mode"`
	Preset    Preset     `json:"preset"`
	X         float64    `json:"x"`
	Y         float64    `json:"y"`
	Size      float64    `json:"size"`
	Keyframes []Keyframe `json:"keyframes,omitempty"`
}

// NewSettings returns defaults for a fresh overlay track.
func NewSettings() *Settings {
	return &Settings{
		Mode:   ModePreset,
		Preset: BottomRight,
		Size:   DefaultSize,
	}
}

// Clone returns a structural copy.
func (s *Settings) Clone() *Settings {
	c := *s
	c.Keyframes = append([]Keyframe(nil), s.Keyframes...)
	return &c
}

// PositionAt resolves placement at sequence time t.
func (s *Settings) PositionAt(t float64) Position {
	if s.Mode == ModeKeyframed && len(s.Keyframes) > 0 {
		return s.interpolate(t)
	}
	if s.Mode == ModeCustom {
		return Position{X: s.X, Y: s.Y, Size: s.Size}
	}
	return s.presetPosition()
}

func (s *Settings) presetPosition() Position {
	size := s.Size
	switch s.Preset {
	case TopLeft:
		return Position{X: CornerPadding, Y: CornerPadding, Size: size}
	case TopRight:
		return Position{X: 1 - CornerPadding - size, Y: CornerPadding, Size: size}
	case BottomLeft:
		return Position{X: CornerPadding, Y: 1 - CornerPadding - size, Size: size}
	case Center:
		return Position{X: (1 - size) / 2, Y: (1 - size) / 2, Size: size}
	default: // bottom-right
		return Position{X: 1 - CornerPadding - size, Y: 1 - CornerPadding - size, Size: size}
	}
}

func (s *Settings) interpolate(t float64) Position {
	// before: greatest keyframe time <= t, after: smallest > t.
	idx := sort.Search(len(s.Keyframes), func(i int) bool {
		return s.Keyframes[i].Time > t
	})

	if idx == 0 {
		kf := s.Keyframes[0]
		return Position{X: kf.X, Y: kf.Y, Size: kf.Size}
	}
	if idx == len(s.Keyframes) {
		kf := s.Keyframes[len(s.Keyframes)-1]
		return Position{X: kf.X, Y: kf.Y, Size: kf.Size}
	}

	before, after := s.Keyframes[idx-1], s.Keyframes[idx]
	progress := (t - before.Time) / (after.Time - before.Time)
	return Position{
		X:    before.X + (after.X-before.X)*progress,
		Y:    before.Y + (after.Y-before.Y)*progress,
		Size: before.Size + (after.Size-before.Size)*progress,
	}
}

// AddKeyframe captures the placement at t as a new sample. An existing
// keyframe within the snap window of t is replaced rather than joined by a
// near-duplicate. Adding switches the settings into keyframed mode.
func (s *Settings) AddKeyframe(t float64) Keyframe {
	pos := s.PositionAt(t)
	kf := Keyframe{Time: t, X: pos.X, Y: pos.Y, Size: pos.Size}

	kept := s.Keyframes[:0]
	for _, existing := range s.Keyframes {
		if math.Abs(existing.Time-t) >= keyframeSnap {
			kept = append(kept, existing)
		}
	}
	s.Keyframes = append(kept, kf)
	sort.Slice(s.Keyframes, func(i, j int) bool {
		return s.Keyframes[i].Time < s.Keyframes[j].Time
	})

	s.Mode = ModeKeyframed
	return kf
}

// SetKeyframe upserts an explicit sample, used when the UI drags an
// existing keyframe or places one with exact values.
func (s *Settings) SetKeyframe(kf Keyframe) {
	kept := s.Keyframes[:0]
	for _, existing := range s.Keyframes {
		if math.Abs(existing.Time-kf.Time) >= keyframeSnap {
			kept = append(kept, existing)
		}
	}
	s.Keyframes = append(kept, kf)
	sort.Slice(s.Keyframes, func(i, j int) bool {
		return s.Keyframes[i].Time < s.Keyframes[j].Time
	})
	s.Mode = ModeKeyframed
}

// RemoveNearest deletes the single keyframe closest to t, provided that
// minimal distance stays under the reasonableness bound. Reports whether a
// keyframe was removed.
func (s *Settings) RemoveNearest(t float64) bool {
	if len(s.Keyframes) == 0 {
		return false
	}

	best := -1
	bestDist := math.Inf(1)
	for i, kf := range s.Keyframes {
		if d := math.Abs(kf.Time - t); d < bestDist {
			best = i
			bestDist = d
		}
	}
	if bestDist >= removeBound {
		return false
	}

	s.Keyframes = append(s.Keyframes[:best], s.Keyframes[best+1:]...)
	return true
}

// ClearAll empties the keyframe list. Placement falls back to the stored
// preset on the next query.
func (s *Settings) ClearAll() {
	s.Keyframes = nil
}
