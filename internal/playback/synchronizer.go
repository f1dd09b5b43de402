// Package playback keeps the virtual playhead and up to five concurrently
// decoding media streams (one main, four overlay) in lockstep. The
// synchronizer is event-driven: the UI shell reports stream clocks and
// readiness events, and the synchronizer answers with stream commands.
// Events arrive from HTTP handlers and the media watcher concurrently, so
// each one runs to completion under a single mutex. Store state is
// re-read on every tick and after every asynchronous boundary, never
// cached across one.
package playback

import (
	"errors"
	"log/slog"
	"math"
	"sync"

	"github.com/clappper/clappper-agent/internal/timeline"
)

const (
	// boundaryEpsilon guards the clip-end comparison so decoders that
	// never quite reach the trim-out point still advance.
	boundaryEpsilon = 0.1

	// driftTolerance is the maximum clock divergence allowed between an
	// overlay stream and the main stream before a corrective seek.
	driftTolerance = 0.1
)

// MainLane is the stream lane bound to the main track.
const MainLane = timeline.MainTrackID

var ErrClipUnplayable = errors.New("clip stream failed to load")

// StoreView is the slice of the timeline store the synchronizer reads.
// Every call returns freshly committed state.
type StoreView interface {
	MainClips() []*timeline.Clip
	TrackClips(trackID string) []*timeline.Clip
	OverlayTrackIDs() []string
	SequenceDuration() float64
}

// pendingResume tags an in-flight "wait for stream ready, then seek and
// maybe resume" with the generation it was issued under. A stale
// generation means the user paused or seeked while the load was pending;
// the resume is dropped.
type pendingResume struct {
	gen    uint64
	resume bool
	seekTo float64
}

// Synchronizer advances the playhead across the main track's clip
// sequence and drift-corrects the overlay streams every tick.
type Synchronizer struct {
	mu sync.Mutex

	store   StoreView
	factory StreamFactory
	logger  *slog.Logger

	streams     map[Lane]Stream
	loadedPath  map[Lane]string
	lanePlaying map[Lane]bool

	clipIndex int
	seqTime   float64
	playing   bool

	gen     uint64
	pending *pendingResume

	errored map[string]error

	onPlayhead func(t float64)
}

func NewSynchronizer(store StoreView, factory StreamFactory, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		store:       store,
		factory:     factory,
		logger:      logger,
		streams:     make(map[Lane]Stream),
		loadedPath:  make(map[Lane]string),
		lanePlaying: make(map[Lane]bool),
		errored:     make(map[string]error),
	}
}

// OnPlayhead registers the callback invoked with the derived sequence
// time on every tick. The callback runs under the synchronizer's lock
// and must not call back into it.
func (s *Synchronizer) OnPlayhead(fn func(t float64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPlayhead = fn
}

func (s *Synchronizer) stream(lane Lane) Stream {
	st, ok := s.streams[lane]
	if !ok {
		st = s.factory(lane)
		s.streams[lane] = st
	}
	return st
}

// nextGen invalidates every pending resume issued before it.
func (s *Synchronizer) nextGen() uint64 {
	s.gen++
	return s.gen
}

func (s *Synchronizer) publish(t float64) {
	s.seqTime = t
	if s.onPlayhead != nil {
		s.onPlayhead(t)
	}
}

// SequenceTime returns the last published playhead position.
func (s *Synchronizer) SequenceTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seqTime
}

// Playing reports the global transport state.
func (s *Synchronizer) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// CurrentClipIndex returns the position within the main track.
func (s *Synchronizer) CurrentClipIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clipIndex
}

// ClipError returns the recorded stream failure for a clip, nil if none.
func (s *Synchronizer) ClipError(clipID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errored[clipID]
}

// ErroredClipIDs lists clips whose streams failed, for the recovery UI.
func (s *Synchronizer) ErroredClipIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id := range s.errored {
		ids = append(ids, id)
	}
	return ids
}

// MarkClipOffline records a stream failure from outside the tick path,
// e.g. the media watcher noticing a source file disappeared.
func (s *Synchronizer) MarkClipOffline(clipID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errored[clipID] = err
	if s.logger != nil {
		s.logger.Warn("clip marked offline", "clip_id", clipID, "error", err)
	}
}

// ClearClipOffline drops the failure record, e.g. the source reappeared
// or the clip was removed.
func (s *Synchronizer) ClearClipOffline(clipID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.errored, clipID)
}

// Play starts the main stream and every active overlay together. When the
// current clip's media is not yet loaded, playback begins once the stream
// reports ready.
func (s *Synchronizer) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clips := s.store.MainClips()
	if len(clips) == 0 {
		return nil
	}
	s.clampIndex(len(clips))
	cur := clips[s.clipIndex]
	if err := s.errored[cur.ID]; err != nil {
		return ErrClipUnplayable
	}

	main := s.stream(MainLane)
	if s.loadedPath[MainLane] != cur.Path {
		s.pending = &pendingResume{gen: s.nextGen(), resume: true, seekTo: cur.Start}
		s.loadedPath[MainLane] = cur.Path
		main.Load(cur.Path)
		return nil
	}

	s.playing = true
	main.Play()
	s.lanePlaying[MainLane] = true
	s.syncOverlays()
	return nil
}

// Pause stops the main stream and every active overlay together, and
// cancels any pending resume so playback does not unexpectedly restart.
func (s *Synchronizer) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.playing = false
	s.nextGen()
	s.pending = nil
	for lane, st := range s.streams {
		st.Pause()
		s.lanePlaying[lane] = false
	}
}

// SeekSequence moves the playhead to an absolute sequence time, crossing
// clip boundaries as needed.
func (s *Synchronizer) SeekSequence(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clips := s.store.MainClips()
	if len(clips) == 0 {
		return
	}

	idx, local := locateClip(clips, t)
	cur := clips[idx]
	s.clipIndex = idx
	s.publish(sequenceTimeAt(clips, idx, local))

	main := s.stream(MainLane)
	if s.loadedPath[MainLane] != cur.Path {
		wasPlaying := s.playing
		s.playing = false
		main.Pause()
		s.pending = &pendingResume{gen: s.nextGen(), resume: wasPlaying, seekTo: local}
		s.loadedPath[MainLane] = cur.Path
		main.Load(cur.Path)
		return
	}
	main.Seek(local)
	s.syncOverlays()
}

// Tick runs the per-time-update pass: derive and publish the sequence
// time, advance across the clip boundary when the trim-out point is
// reached, and drift-correct the overlays.
func (s *Synchronizer) Tick(localTime float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clips := s.store.MainClips()
	if len(clips) == 0 {
		s.publish(0)
		return
	}
	s.clampIndex(len(clips))
	cur := clips[s.clipIndex]

	s.publish(sequenceTimeAt(clips, s.clipIndex, localTime))

	if localTime >= cur.End-boundaryEpsilon {
		if s.clipIndex+1 < len(clips) {
			s.advance(clips)
		} else {
			s.finish()
			return
		}
	}

	s.syncOverlays()
}

// advance switches to the next main clip. The current stream stops, the
// next source loads, and playback resumes (if it was running) only once
// the new stream reports ready and the recorded generation is still
// current.
func (s *Synchronizer) advance(clips []*timeline.Clip) {
	wasPlaying := s.playing
	s.playing = false
	s.clipIndex++
	next := clips[s.clipIndex]

	main := s.stream(MainLane)
	main.Pause()
	s.lanePlaying[MainLane] = false

	s.pending = &pendingResume{gen: s.nextGen(), resume: wasPlaying, seekTo: next.Start}
	s.loadedPath[MainLane] = next.Path
	main.Load(next.Path)

	if s.logger != nil {
		s.logger.Debug("advancing to next clip",
			"clip_index", s.clipIndex, "clip_id", next.ID, "resume", wasPlaying)
	}
}

// finish stops at the end of the timeline and clamps the playhead.
func (s *Synchronizer) finish() {
	s.playing = false
	s.nextGen()
	s.pending = nil
	for lane, st := range s.streams {
		st.Pause()
		s.lanePlaying[lane] = false
	}
	s.publish(s.store.SequenceDuration())
}

// StreamReady handles an asynchronous readiness report. Readiness events
// across lanes arrive in unspecified order; state is re-read here rather
// than closed over at load time, since the timeline may have been mutated
// while the load was pending.
func (s *Synchronizer) StreamReady(lane Lane) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lane == MainLane {
		p := s.pending
		if p == nil || p.gen != s.gen {
			return
		}
		s.pending = nil

		clips := s.store.MainClips()
		if len(clips) == 0 {
			return
		}
		s.clampIndex(len(clips))
		cur := clips[s.clipIndex]

		seekTo := clamp(p.seekTo, cur.Start, cur.End)
		main := s.stream(MainLane)
		main.Seek(seekTo)
		if p.resume {
			s.playing = true
			main.Play()
			s.lanePlaying[MainLane] = true
		}
		s.syncOverlays()
		return
	}

	// Overlay became ready: align it with the playhead immediately.
	s.syncOverlays()
}

// StreamFailed isolates a decode/load failure to the clip it belongs to.
// Other lanes keep running; recovery is explicit clip removal.
func (s *Synchronizer) StreamFailed(lane Lane, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var clipID string
	if lane == MainLane {
		clips := s.store.MainClips()
		if len(clips) > 0 {
			s.clampIndex(len(clips))
			clipID = clips[s.clipIndex].ID
		}
		if s.pending != nil && s.pending.gen == s.gen {
			s.pending = nil
		}
		s.playing = false
	} else {
		if clip, _ := overlayClipAt(s.store.TrackClips(lane), s.seqTime); clip != nil {
			clipID = clip.ID
		}
	}

	if clipID != "" {
		s.errored[clipID] = err
	}
	if s.logger != nil {
		s.logger.Error("stream failed", "lane", lane, "clip_id", clipID, "error", err)
	}
}

// syncOverlays runs the per-tick drift correction: every overlay with a
// clip covering the current playhead is kept within tolerance of the main
// clock; lanes with no covering clip are released.
func (s *Synchronizer) syncOverlays() {
	for _, trackID := range s.store.OverlayTrackIDs() {
		clip, local := overlayClipAt(s.store.TrackClips(trackID), s.seqTime)

		if clip == nil {
			if st, ok := s.streams[trackID]; ok {
				st.Pause()
				st.Release()
				delete(s.streams, trackID)
				delete(s.loadedPath, trackID)
				delete(s.lanePlaying, trackID)
			}
			continue
		}
		if s.errored[clip.ID] != nil {
			continue
		}

		st := s.stream(trackID)
		if s.loadedPath[trackID] != clip.Path {
			s.loadedPath[trackID] = clip.Path
			st.Load(clip.Path)
			continue
		}

		target := clip.Start + local
		if math.Abs(st.CurrentTime()-target) > driftTolerance {
			st.Seek(target)
		}
		if s.lanePlaying[trackID] != s.playing {
			if s.playing {
				st.Play()
			} else {
				st.Pause()
			}
			s.lanePlaying[trackID] = s.playing
		}
	}
}

func (s *Synchronizer) clampIndex(n int) {
	if s.clipIndex >= n {
		s.clipIndex = n - 1
	}
	if s.clipIndex < 0 {
		s.clipIndex = 0
	}
}

// sequenceTimeAt derives the global playhead: cumulative trimmed duration
// of prior clips plus progress into the current one, clamped to the
// timeline bounds.
func sequenceTimeAt(clips []*timeline.Clip, idx int, localTime float64) float64 {
	var before float64
	var total float64
	for i, c := range clips {
		if i < idx {
			before += c.TrimmedDuration()
		}
		total += c.TrimmedDuration()
	}
	t := before + (localTime - clips[idx].Start)
	return clamp(t, 0, total)
}

// locateClip maps a sequence time to (clip index, local media time).
func locateClip(clips []*timeline.Clip, t float64) (int, float64) {
	if t < 0 {
		t = 0
	}
	var acc float64
	for i, c := range clips {
		d := c.TrimmedDuration()
		if t < acc+d || i == len(clips)-1 {
			local := clamp(c.Start+(t-acc), c.Start, c.End)
			return i, local
		}
		acc += d
	}
	return 0, clips[0].Start
}

// overlayClipAt finds the overlay clip covering a sequence time, plus the
// offset into that clip's trimmed interval.
func overlayClipAt(clips []*timeline.Clip, t float64) (*timeline.Clip, float64) {
	var acc float64
	for _, c := range clips {
		d := c.TrimmedDuration()
		if t >= acc && t < acc+d {
			return c, t - acc
		}
		acc += d
	}
	return nil, 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
