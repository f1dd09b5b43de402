package export

import (
	"errors"
	"sort"

	"github.com/clappper/clappper-agent/internal/compositing"
	"github.com/clappper/clappper-agent/internal/timeline"
)

var ErrEmptyTimeline = errors.New("nothing to export: main track is empty")

// BuildRequest turns a timeline snapshot into an export order. Main clips
// become ordered segments; each visible overlay with clips contributes a
// job carrying either its static placement or its full keyframe list, so
// the engine samples placement exactly as the preview did.
func BuildRequest(snap *timeline.Snapshot, settings Settings, outputName string) (*Request, error) {
	req := &Request{Settings: settings, OutputName: outputName}

	var mainTrack *timeline.Track
	var overlays []*timeline.Track
	for _, t := range snap.Tracks {
		if t.Kind == timeline.KindMain {
			mainTrack = t
		} else {
			overlays = append(overlays, t)
		}
	}
	if mainTrack == nil || len(mainTrack.Clips) == 0 {
		return nil, ErrEmptyTimeline
	}

	for _, c := range sortedByOrder(mainTrack.Clips) {
		req.Main = append(req.Main, Segment{
			Path:  c.Path,
			Name:  c.DisplayName,
			Start: c.Start,
			End:   c.End,
		})
	}

	for i, t := range overlays {
		if i >= snap.VisibleOverlays {
			break
		}
		cs := snap.Compositing[t.ID]
		if cs == nil {
			cs = compositing.NewSettings()
		}

		var offset float64
		for _, c := range sortedByOrder(t.Clips) {
			job := OverlayJob{
				Segment: Segment{Path: c.Path, Name: c.DisplayName, Start: c.Start, End: c.End},
				Offset:  offset,
			}
			if cs.Mode == compositing.ModeKeyframed && len(cs.Keyframes) > 0 {
				job.Keyframes = append([]compositing.Keyframe(nil), cs.Keyframes...)
			} else {
				pos := cs.PositionAt(offset)
				job.Static = &pos
			}
			req.Overlays = append(req.Overlays, job)
			offset += c.TrimmedDuration()
		}
	}

	return req, nil
}

func sortedByOrder(clips []*timeline.Clip) []*timeline.Clip {
	out := append([]*timeline.Clip(nil), clips...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order < out[j].Order
	})
	return out
}
