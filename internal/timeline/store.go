// Package timeline owns the authoritative editing state: tracks, clips,
// selection and per-overlay compositing settings. Every mutation flows
// through the operation set below; each one validates first, pushes an
// undo snapshot, then applies. Validation failures are rejected as no-ops
// and never leave the model structurally invalid.
package timeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/clappper/clappper-agent/internal/compositing"
	"github.com/clappper/clappper-agent/internal/history"
)

var (
	ErrClipNotFound    = errors.New("clip not found")
	ErrTrackNotFound   = errors.New("track not found")
	ErrInvalidTrim     = errors.New("trim outside valid bounds")
	ErrSplitOutOfRange = errors.New("split point outside clip interval")
	ErrIndexOutOfRange = errors.New("reorder index out of range")
	ErrSameTrack       = errors.New("clip already on target track")
)

// MainTrackID is fixed for the session; overlay tracks are numbered from 1.
const MainTrackID = "main"

func OverlayTrackID(n int) string {
	return fmt.Sprintf("overlay-%d", n)
}

// Store is the single owned state object. HTTP handlers, the autosave
// loop and the media watcher all reach it from their own goroutines, so
// every exported operation serializes on one mutex; each runs to
// completion before the next begins.
type Store struct {
	mu sync.Mutex

	tracks          []*Track
	selection       string
	compositing     map[string]*compositing.Settings
	visibleOverlays int

	log    *history.Log
	logger *slog.Logger
}

// NewStore creates a session store with one main track and a fixed set of
// overlay tracks. Tracks are never created or destroyed afterwards.
func NewStore(overlayCount int, logger *slog.Logger) *Store {
	s := &Store{
		compositing: make(map[string]*compositing.Settings),
		log:         history.NewLog(),
		logger:      logger,
	}

	s.tracks = append(s.tracks, &Track{ID: MainTrackID, Kind: KindMain})
	for i := 1; i <= overlayCount; i++ {
		id := OverlayTrackID(i)
		s.tracks = append(s.tracks, &Track{ID: id, Kind: KindOverlay})
		s.compositing[id] = compositing.NewSettings()
	}
	return s
}

// track returns the live track or nil.
func (s *Store) track(id string) *Track {
	for _, t := range s.tracks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// findClip returns the live clip and its track, or nils.
func (s *Store) findClip(id string) (*Clip, *Track) {
	for _, t := range s.tracks {
		for _, c := range t.Clips {
			if c.ID == id {
				return c, t
			}
		}
	}
	return nil, nil
}

// snapshot captures the current state as a structural copy.
func (s *Store) snapshot() *Snapshot {
	snap := &Snapshot{
		Selection:       s.selection,
		VisibleOverlays: s.visibleOverlays,
		Tracks:          make([]*Track, len(s.tracks)),
		Compositing:     make(map[string]*compositing.Settings, len(s.compositing)),
	}
	for i, t := range s.tracks {
		snap.Tracks[i] = t.clone()
	}
	for id, cs := range s.compositing {
		snap.Compositing[id] = cs.Clone()
	}
	return snap
}

// restore replaces the live state with a snapshot's contents.
func (s *Store) restore(snap *Snapshot) {
	cp := snap.deepCopy()
	s.tracks = cp.Tracks
	s.selection = cp.Selection
	s.compositing = cp.Compositing
	s.visibleOverlays = cp.VisibleOverlays
}

// pushHistory records the pre-mutation state. Called after validation so
// pure rejections do not pollute the log with no-op entries.
func (s *Store) pushHistory() {
	s.log.Push(s.snapshot())
}

// densify rewrites a track's orders as a contiguous 0..n-1 sequence in
// left-to-right order, keeping future max(order)+1 arithmetic correct.
func densify(t *Track) {
	sort.SliceStable(t.Clips, func(i, j int) bool {
		return t.Clips[i].Order < t.Clips[j].Order
	})
	for i, c := range t.Clips {
		c.Order = i
	}
}

// AddClips appends clips to a track in input order. When nothing is
// selected, the first appended clip becomes the selection.
func (s *Store) AddClips(clips []*Clip, trackID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	track := s.track(trackID)
	if track == nil {
		return fmt.Errorf("%w: %s", ErrTrackNotFound, trackID)
	}
	if len(clips) == 0 {
		return nil
	}

	s.pushHistory()

	base := track.maxOrder() + 1
	for i, c := range clips {
		cp := c.clone()
		if cp.ID == "" {
			cp.ID = NewID()
		}
		cp.TrackID = track.ID
		cp.Order = base + i
		track.Clips = append(track.Clips, cp)
	}

	if s.selection == "" {
		s.selection = track.Clips[len(track.Clips)-len(clips)].ID
	}

	if s.logger != nil {
		s.logger.Info("clips added", "track_id", trackID, "count", len(clips))
	}
	return nil
}

// SetTrim adjusts a clip's in/out points. Rejected entirely when the new
// interval would collapse below the minimum duration or escape the source.
func (s *Store) SetTrim(id string, start, end float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clip, _ := s.findClip(id)
	if clip == nil {
		return fmt.Errorf("%w: %s", ErrClipNotFound, id)
	}
	if start < 0 || start+MinClipDuration > end || end > clip.Duration {
		return ErrInvalidTrim
	}

	s.pushHistory()
	clip.Start = start
	clip.End = end
	return nil
}

// SplitClip replaces a clip with two contiguous clips cut at t. Both halves
// get fresh ids; the original id ceases to exist. Any t strictly inside
// the trimmed interval is a valid cut point, however short the halves.
func (s *Store) SplitClip(id string, t float64) (left, right *Clip, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clip, track := s.findClip(id)
	if clip == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrClipNotFound, id)
	}
	if t <= clip.Start || t >= clip.End {
		return nil, nil, ErrSplitOutOfRange
	}

	s.pushHistory()

	first := clip.clone()
	first.ID = NewID()
	first.End = t

	second := clip.clone()
	second.ID = NewID()
	second.Start = t

	// Slot the pair contiguously where the original sat, then re-densify.
	densify(track)
	for i, c := range track.Clips {
		if c.ID == id {
			track.Clips[i] = first
			rest := append([]*Clip{second}, track.Clips[i+1:]...)
			track.Clips = append(track.Clips[:i+1], rest...)
			break
		}
	}
	for i, c := range track.Clips {
		c.Order = i
	}

	if s.selection == id {
		s.selection = first.ID
	}

	if s.logger != nil {
		s.logger.Info("clip split", "clip_id", id, "at", t,
			"left_id", first.ID, "right_id", second.ID)
	}
	return first.clone(), second.clone(), nil
}

// ReorderClips moves the clip at fromIndex in the track's order-sorted
// sequence to toIndex, then re-densifies that track only.
func (s *Store) ReorderClips(fromIndex, toIndex int, trackID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	track := s.track(trackID)
	if track == nil {
		return fmt.Errorf("%w: %s", ErrTrackNotFound, trackID)
	}
	n := len(track.Clips)
	if fromIndex < 0 || fromIndex >= n || toIndex < 0 || toIndex >= n {
		return ErrIndexOutOfRange
	}
	if fromIndex == toIndex {
		return nil
	}

	s.pushHistory()

	densify(track)
	moved := track.Clips[fromIndex]
	track.Clips = append(track.Clips[:fromIndex], track.Clips[fromIndex+1:]...)

	rest := append([]*Clip{moved}, track.Clips[toIndex:]...)
	track.Clips = append(track.Clips[:toIndex], rest...)
	for i, c := range track.Clips {
		c.Order = i
	}
	return nil
}

// DeleteClip removes a clip from whichever track holds it. Selection is
// cleared when it pointed at the removed clip.
func (s *Store) DeleteClip(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clip, track := s.findClip(id)
	if clip == nil {
		return fmt.Errorf("%w: %s", ErrClipNotFound, id)
	}

	s.pushHistory()

	for i, c := range track.Clips {
		if c.ID == id {
			track.Clips = append(track.Clips[:i], track.Clips[i+1:]...)
			break
		}
	}
	densify(track)

	if s.selection == id {
		s.selection = ""
	}

	if s.logger != nil {
		s.logger.Info("clip deleted", "clip_id", id, "track_id", track.ID)
	}
	return nil
}

// MoveClipToTrack removes a clip from its source track and appends it to
// the target track.
func (s *Store) MoveClipToTrack(id, targetTrackID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clip, source := s.findClip(id)
	if clip == nil {
		return fmt.Errorf("%w: %s", ErrClipNotFound, id)
	}
	target := s.track(targetTrackID)
	if target == nil {
		return fmt.Errorf("%w: %s", ErrTrackNotFound, targetTrackID)
	}
	if source.ID == target.ID {
		return ErrSameTrack
	}

	s.pushHistory()

	for i, c := range source.Clips {
		if c.ID == id {
			source.Clips = append(source.Clips[:i], source.Clips[i+1:]...)
			break
		}
	}
	densify(source)

	clip.TrackID = target.ID
	clip.Order = target.maxOrder() + 1
	target.Clips = append(target.Clips, clip)
	return nil
}

// SelectClip sets the selection. An empty id clears it.
func (s *Store) SelectClip(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if c, _ := s.findClip(id); c == nil {
			return fmt.Errorf("%w: %s", ErrClipNotFound, id)
		}
	}
	s.selection = id
	return nil
}

// Selection returns the selected clip id, empty when nothing is selected.
func (s *Store) Selection() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// SetVisibleOverlays records how many overlay lanes the UI shows.
func (s *Store) SetVisibleOverlays(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n < 0 || n > len(s.tracks)-1 {
		return fmt.Errorf("visible overlay count %d out of range", n)
	}
	s.pushHistory()
	s.visibleOverlays = n
	return nil
}

func (s *Store) VisibleOverlays() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visibleOverlays
}

// Undo restores the state captured before the most recent mutation.
// Silent no-op when there is nothing to undo.
func (s *Store) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.log.Undo(s.snapshot())
	if !ok {
		return false
	}
	s.restore(st.(*Snapshot))
	return true
}

// Redo restores the state undone by the previous Undo. Silent no-op when
// there is nothing to redo.
func (s *Store) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.log.Redo()
	if !ok {
		return false
	}
	s.restore(st.(*Snapshot))
	return true
}

func (s *Store) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.CanUndo()
}

func (s *Store) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.CanRedo()
}

// HistoryLen is exposed for tests and the status surface.
func (s *Store) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Len()
}

// Snapshot returns a structural copy of the full editable state.
func (s *Store) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Replace swaps in a loaded state (project load, autosave restore) and
// resets the undo log; a loaded project starts with clean history. The
// session's track set is fixed, so the snapshot is reconciled against it
// rather than trusted: tracks the snapshot lacks come back empty, tracks
// the session lacks are dropped, selection must resolve to a live clip,
// and missing overlay settings fall back to defaults.
func (s *Store) Replace(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := make(map[string]*Track, len(snap.Tracks))
	for _, t := range snap.Tracks {
		if t != nil {
			byID[t.ID] = t
		}
	}
	for i, live := range s.tracks {
		fresh := &Track{ID: live.ID, Kind: live.Kind}
		if t, ok := byID[live.ID]; ok {
			for _, c := range t.Clips {
				if c == nil {
					continue
				}
				cp := c.clone()
				cp.TrackID = live.ID
				fresh.Clips = append(fresh.Clips, cp)
			}
		}
		densify(fresh)
		s.tracks[i] = fresh
	}

	for id := range s.compositing {
		if cs, ok := snap.Compositing[id]; ok && cs != nil {
			s.compositing[id] = cs.Clone()
		} else {
			s.compositing[id] = compositing.NewSettings()
		}
	}

	s.selection = ""
	if snap.Selection != "" {
		if c, _ := s.findClip(snap.Selection); c != nil {
			s.selection = snap.Selection
		}
	}

	s.visibleOverlays = snap.VisibleOverlays
	if s.visibleOverlays < 0 {
		s.visibleOverlays = 0
	}
	if max := len(s.tracks) - 1; s.visibleOverlays > max {
		s.visibleOverlays = max
	}

	s.log.Reset()
}

// Clip returns a copy of the clip, or nil when the id does not resolve.
func (s *Store) Clip(id string) *Clip {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, _ := s.findClip(id)
	if c == nil {
		return nil
	}
	return c.clone()
}

// TrackClips returns copies of a track's clips in order-sorted sequence.
func (s *Store) TrackClips(trackID string) []*Clip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trackClips(trackID)
}

func (s *Store) trackClips(trackID string) []*Clip {
	track := s.track(trackID)
	if track == nil {
		return nil
	}
	clips := make([]*Clip, len(track.Clips))
	for i, c := range track.Clips {
		clips[i] = c.clone()
	}
	sort.SliceStable(clips, func(i, j int) bool {
		return clips[i].Order < clips[j].Order
	})
	return clips
}

// MainClips returns the main track's clips in playback order.
func (s *Store) MainClips() []*Clip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trackClips(MainTrackID)
}

// Tracks returns copies of all tracks, main first.
func (s *Store) Tracks() []*Track {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Track, len(s.tracks))
	for i, t := range s.tracks {
		cp := t.clone()
		sort.SliceStable(cp.Clips, func(a, b int) bool {
			return cp.Clips[a].Order < cp.Clips[b].Order
		})
		out[i] = cp
	}
	return out
}

// OverlayTrackIDs lists the overlay lanes in fixed order.
func (s *Store) OverlayTrackIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, t := range s.tracks {
		if t.Kind == KindOverlay {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// ClipIDsByPath returns the ids of all clips referencing a source path,
// used by the media presence watcher.
func (s *Store) ClipIDsByPath(path string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, t := range s.tracks {
		for _, c := range t.Clips {
			if c.Path == path {
				ids = append(ids, c.ID)
			}
		}
	}
	return ids
}

// SequenceDuration is the total trimmed length of the main track.
func (s *Store) SequenceDuration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total float64
	for _, c := range s.track(MainTrackID).Clips {
		total += c.TrimmedDuration()
	}
	return total
}

// --- compositing operations ---
// Keyframe edits are timeline mutations like any other: they validate,
// push history, then apply, so undo covers them.

func (s *Store) compositingFor(trackID string) (*compositing.Settings, error) {
	cs, ok := s.compositing[trackID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTrackNotFound, trackID)
	}
	return cs, nil
}

// CompositingSettings returns a copy of an overlay track's settings.
func (s *Store) CompositingSettings(trackID string) (*compositing.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, err := s.compositingFor(trackID)
	if err != nil {
		return nil, err
	}
	return cs.Clone(), nil
}

// PositionAt samples the overlay placement at sequence time t.
func (s *Store) PositionAt(trackID string, t float64) (compositing.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, err := s.compositingFor(trackID)
	if err != nil {
		return compositing.Position{}, err
	}
	return cs.PositionAt(t), nil
}

// SetCompositingPreset switches an overlay to a named corner placement.
func (s *Store) SetCompositingPreset(trackID string, preset compositing.Preset, size float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, err := s.compositingFor(trackID)
	if err != nil {
		return err
	}
	s.pushHistory()
	cs.Mode = compositing.ModePreset
	cs.Preset = preset
	if size > 0 {
		cs.Size = size
	}
	return nil
}

// SetCompositingCustom switches an overlay to an explicit placement.
func (s *Store) SetCompositingCustom(trackID string, x, y, size float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, err := s.compositingFor(trackID)
	if err != nil {
		return err
	}
	s.pushHistory()
	cs.Mode = compositing.ModeCustom
	cs.X = x
	cs.Y = y
	if size > 0 {
		cs.Size = size
	}
	return nil
}

// AddKeyframe captures the overlay's placement at t as a keyframe.
func (s *Store) AddKeyframe(trackID string, t float64) (compositing.Keyframe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, err := s.compositingFor(trackID)
	if err != nil {
		return compositing.Keyframe{}, err
	}
	s.pushHistory()
	return cs.AddKeyframe(t), nil
}

// SetKeyframe upserts an explicit keyframe sample.
func (s *Store) SetKeyframe(trackID string, kf compositing.Keyframe) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, err := s.compositingFor(trackID)
	if err != nil {
		return err
	}
	s.pushHistory()
	cs.SetKeyframe(kf)
	return nil
}

// RemoveKeyframeNear deletes the keyframe closest to t within the bound.
func (s *Store) RemoveKeyframeNear(trackID string, t float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, err := s.compositingFor(trackID)
	if err != nil {
		return false, err
	}
	// Probe on a copy first so out-of-bound requests stay out of history.
	if !cs.Clone().RemoveNearest(t) {
		return false, nil
	}
	s.pushHistory()
	return cs.RemoveNearest(t), nil
}

// ClearKeyframes empties an overlay's keyframe list.
func (s *Store) ClearKeyframes(trackID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, err := s.compositingFor(trackID)
	if err != nil {
		return err
	}
	s.pushHistory()
	cs.ClearAll()
	return nil
}
