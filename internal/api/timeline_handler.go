package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"

	"github.com/clappper/clappper-agent/internal/timeline"
	"github.com/go-chi/chi/v5"
)

func getTimelineHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, timelineResponse(cfg))
	}
}

func timelineResponse(cfg ServerConfig) TimelineResponse {
	tracks := cfg.Store.Tracks()
	resp := TimelineResponse{
		Tracks:          make([]TrackResponse, len(tracks)),
		Selection:       cfg.Store.Selection(),
		VisibleOverlays: cfg.Store.VisibleOverlays(),
		Duration:        cfg.Store.SequenceDuration(),
		CanUndo:         cfg.Store.CanUndo(),
		CanRedo:         cfg.Store.CanRedo(),
	}
	for i, t := range tracks {
		tr := TrackResponse{ID: t.ID, Kind: string(t.Kind), Clips: make([]ClipResponse, len(t.Clips))}
		for j, c := range t.Clips {
			offline := cfg.Synchronizer.ClipError(c.ID) != nil
			tr.Clips[j] = ClipToResponse(c, offline)
		}
		resp.Tracks[i] = tr
	}
	return resp
}

// importClipsHandler probes every requested file and appends the playable
// ones in request order. One bad file never blocks the rest of the batch.
func importClipsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ImportClipsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if len(req.Paths) == 0 {
			WriteError(w, http.StatusBadRequest, "paths must not be empty", "BAD_REQUEST")
			return
		}
		trackID := req.TrackID
		if trackID == "" {
			trackID = timeline.MainTrackID
		}

		var clips []*timeline.Clip
		var rejected []RejectedFile
		for _, path := range req.Paths {
			result, err := cfg.Prober.Probe(r.Context(), path)
			if err == nil {
				err = result.Validate()
			}
			if err != nil {
				rejected = append(rejected, RejectedFile{Path: path, Reason: err.Error()})
				continue
			}

			clips = append(clips, &timeline.Clip{
				ID:          timeline.NewID(),
				Path:        path,
				DisplayName: filepath.Base(path),
				Duration:    result.Duration,
				Start:       0,
				End:         result.Duration,
				Width:       result.Width,
				Height:      result.Height,
			})
		}

		if len(clips) > 0 {
			if err := cfg.Store.AddClips(clips, trackID); err != nil {
				writeStoreError(w, err)
				return
			}
			autosave(cfg, r)
		}

		resp := ImportClipsResponse{Rejected: rejected}
		for _, c := range clips {
			resp.Clips = append(resp.Clips, ClipToResponse(c, false))
		}
		WriteJSON(w, http.StatusCreated, resp)
	}
}

func trimClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req TrimRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := cfg.Store.SetTrim(id, req.Start, req.End); err != nil {
			writeStoreError(w, err)
			return
		}
		autosave(cfg, r)
		WriteJSON(w, http.StatusOK, ClipToResponse(cfg.Store.Clip(id), false))
	}
}

func splitClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req SplitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		left, right, err := cfg.Store.SplitClip(id, req.Time)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		autosave(cfg, r)
		WriteJSON(w, http.StatusOK, SplitResponse{
			Left:  ClipToResponse(left, false),
			Right: ClipToResponse(right, false),
		})
	}
}

func moveClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req MoveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.TrackID == "" {
			WriteError(w, http.StatusBadRequest, "track_id is required", "BAD_REQUEST")
			return
		}

		if err := cfg.Store.MoveClipToTrack(id, req.TrackID); err != nil {
			writeStoreError(w, err)
			return
		}
		autosave(cfg, r)
		WriteJSON(w, http.StatusOK, ClipToResponse(cfg.Store.Clip(id), false))
	}
}

func deleteClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := cfg.Store.DeleteClip(id); err != nil {
			writeStoreError(w, err)
			return
		}
		autosave(cfg, r)
		w.WriteHeader(http.StatusNoContent)
	}
}

func reorderClipsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReorderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		trackID := req.TrackID
		if trackID == "" {
			trackID = timeline.MainTrackID
		}

		if err := cfg.Store.ReorderClips(req.FromIndex, req.ToIndex, trackID); err != nil {
			writeStoreError(w, err)
			return
		}
		autosave(cfg, r)
		WriteJSON(w, http.StatusOK, timelineResponse(cfg))
	}
}

func selectClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SelectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := cfg.Store.SelectClip(req.ClipID); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func setVisibleOverlaysHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VisibleOverlaysRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := cfg.Store.SetVisibleOverlays(req.Count); err != nil {
			writeStoreError(w, err)
			return
		}
		autosave(cfg, r)
		w.WriteHeader(http.StatusNoContent)
	}
}

func undoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		applied := cfg.Store.Undo()
		if applied {
			autosave(cfg, r)
		}
		WriteJSON(w, http.StatusOK, UndoRedoResponse{
			Applied: applied,
			CanUndo: cfg.Store.CanUndo(),
			CanRedo: cfg.Store.CanRedo(),
		})
	}
}

func redoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		applied := cfg.Store.Redo()
		if applied {
			autosave(cfg, r)
		}
		WriteJSON(w, http.StatusOK, UndoRedoResponse{
			Applied: applied,
			CanUndo: cfg.Store.CanUndo(),
			CanRedo: cfg.Store.CanRedo(),
		})
	}
}

func autosave(cfg ServerConfig, r *http.Request) {
	if cfg.Autosave != nil {
		cfg.Autosave(r.Context())
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, timeline.ErrClipNotFound), errors.Is(err, timeline.ErrTrackNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	default:
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	}
}
