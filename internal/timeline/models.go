package timeline

import (
	"crypto/rand"
	"fmt"

	"github.com/clappper/clappper-agent/internal/compositing"
	"github.com/clappper/clappper-agent/internal/history"
)

// TrackKind distinguishes the single main track from the overlay lanes.
type TrackKind string

const (
	KindMain    TrackKind = "main"
	KindOverlay TrackKind = "overlay"
)

// MinClipDuration is the shortest interval a trim may leave, in seconds.
// Splits are not bound by it: any point strictly inside a clip is a
// valid cut.
const MinClipDuration = 0.1

// Clip is a trimmed reference to a source media file placed on a track.
// Times are seconds. Invariant: 0 <= Start < End <= Duration.
type Clip struct {
	ID          string  `json:"id"`
	Path        string  `json:"path"`
	DisplayName string  `json:"display_name"`
	Duration    float64 `json:"duration"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Order       int     `json:"order"`
	TrackID     string  `json:"track_id"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
}

// TrimmedDuration is the length of the portion of the source actually used.
func (c *Clip) TrimmedDuration() float64 {
	return c.End - c.Start
}

func (c *Clip) clone() *Clip {
	cp := *c
	return &cp
}

// Track is a named lane holding an ordered sequence of clips. Tracks are
// created once at session start and never destroyed; only their clip
// contents change.
type Track struct {
	ID    string    `json:"id"`
	Kind  TrackKind `json:"kind"`
	Clips []*Clip   `json:"clips"`
}

func (t *Track) clone() *Track {
	cp := &Track{ID: t.ID, Kind: t.Kind, Clips: make([]*Clip, len(t.Clips))}
	for i, c := range t.Clips {
		cp.Clips[i] = c.clone()
	}
	return cp
}

// maxOrder returns the highest order key on the track, or -1 when empty.
func (t *Track) maxOrder() int {
	max := -1
	for _, c := range t.Clips {
		if c.Order > max {
			max = c.Order
		}
	}
	return max
}

// Snapshot is the full editable state captured for undo/redo and
// persistence. All fields are structural copies, never shared references.
type Snapshot struct {
	Tracks          []*Track                         `json:"tracks"`
	Selection       string                           `json:"selection"`
	Compositing     map[string]*compositing.Settings `json:"compositing"`
	VisibleOverlays int                              `json:"visible_overlays"`
}

// Clone implements history.State.
func (s *Snapshot) Clone() history.State {
	return s.deepCopy()
}

func (s *Snapshot) deepCopy() *Snapshot {
	cp := &Snapshot{
		Selection:       s.Selection,
		VisibleOverlays: s.VisibleOverlays,
		Tracks:          make([]*Track, len(s.Tracks)),
		Compositing:     make(map[string]*compositing.Settings, len(s.Compositing)),
	}
	for i, t := range s.Tracks {
		cp.Tracks[i] = t.clone()
	}
	for id, cs := range s.Compositing {
		cp.Compositing[id] = cs.Clone()
	}
	return cp
}

// NewID returns a random identifier in the agent's canonical format.
func NewID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}
