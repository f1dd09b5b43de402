package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clappper/clappper-agent/internal/playback"
)

func playbackStateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, PlaybackStateResponse{
			Playing:      cfg.Synchronizer.Playing(),
			SequenceTime: cfg.Synchronizer.SequenceTime(),
			ClipIndex:    cfg.Synchronizer.CurrentClipIndex(),
			ErroredClips: cfg.Synchronizer.ErroredClipIDs(),
		})
	}
}

func playHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Synchronizer.Play(); err != nil {
			WriteError(w, http.StatusConflict, err.Error(), "UNPLAYABLE")
			return
		}
		WriteJSON(w, http.StatusOK, tickResponse(cfg))
	}
}

func pauseHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Synchronizer.Pause()
		WriteJSON(w, http.StatusOK, tickResponse(cfg))
	}
}

func seekHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SeekRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		cfg.Synchronizer.SeekSequence(req.Time)
		WriteJSON(w, http.StatusOK, tickResponse(cfg))
	}
}

// tickHandler is the UI shell's heartbeat: it reports decoder clocks and
// stream events, and takes back whatever commands the synchronizer
// decided on. Readiness and failure events are applied before the clock
// advance so a resume lands on the same tick it became possible.
func tickHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TickRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		for lane, t := range req.Clocks {
			cfg.Commands.SetClock(playback.Lane(lane), t)
		}
		for _, lane := range req.Ready {
			cfg.Synchronizer.StreamReady(playback.Lane(lane))
		}
		for _, f := range req.Failed {
			cfg.Synchronizer.StreamFailed(playback.Lane(f.Lane), errors.New(f.Error))
		}

		if mainClock, ok := req.Clocks[string(playback.MainLane)]; ok {
			cfg.Synchronizer.Tick(mainClock)
		}

		WriteJSON(w, http.StatusOK, tickResponse(cfg))
	}
}

func tickResponse(cfg ServerConfig) TickResponse {
	drained := cfg.Commands.Drain()
	resp := TickResponse{
		Commands:     make([]CommandResponse, len(drained)),
		Playing:      cfg.Synchronizer.Playing(),
		SequenceTime: cfg.Synchronizer.SequenceTime(),
	}
	for i, c := range drained {
		resp.Commands[i] = CommandResponse{
			Lane: string(c.Lane),
			Op:   string(c.Op),
			Path: c.Path,
			Time: c.Time,
		}
	}
	return resp
}

func playbackFileHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clipID := r.URL.Query().Get("clip_id")
		if clipID == "" {
			WriteError(w, http.StatusBadRequest, "clip_id is required", "BAD_REQUEST")
			return
		}

		clip := cfg.Store.Clip(clipID)
		if clip == nil {
			WriteError(w, http.StatusNotFound, "clip not found", "NOT_FOUND")
			return
		}
		if err := cfg.Synchronizer.ClipError(clipID); err != nil {
			WriteError(w, http.StatusNotFound, "source media is offline", "CLIP_OFFLINE")
			return
		}

		if err := cfg.Media.ServeFile(w, r, clip.Path); err != nil {
			cfg.Logger.Error("playback error", "error", err, "clip_id", clipID)
		}
	}
}
