package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/clappper/clappper-agent/internal/compositing"
	"github.com/go-chi/chi/v5"
)

func getCompositingHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		track := chi.URLParam(r, "track")
		cs, err := cfg.Store.CompositingSettings(track)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, CompositingToResponse(cs))
	}
}

func positionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		track := chi.URLParam(r, "track")
		t, err := strconv.ParseFloat(r.URL.Query().Get("t"), 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "query parameter t must be a number", "BAD_REQUEST")
			return
		}

		pos, err := cfg.Store.PositionAt(track, t)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, PositionResponse{X: pos.X, Y: pos.Y, Size: pos.Size})
	}
}

func setCompositingModeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		track := chi.URLParam(r, "track")
		var req CompositingModeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		mode, err := compositing.ParseMode(req.Mode)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		switch mode {
		case compositing.ModePreset:
			err = cfg.Store.SetCompositingPreset(track, compositing.Preset(req.Preset), req.Size)
		case compositing.ModeCustom:
			err = cfg.Store.SetCompositingCustom(track, req.X, req.Y, req.Size)
		default:
			WriteError(w, http.StatusBadRequest, "keyframed mode is entered by adding keyframes", "BAD_REQUEST")
			return
		}
		if err != nil {
			writeStoreError(w, err)
			return
		}

		autosave(cfg, r)
		cs, _ := cfg.Store.CompositingSettings(track)
		WriteJSON(w, http.StatusOK, CompositingToResponse(cs))
	}
}

func addKeyframeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		track := chi.URLParam(r, "track")
		var req KeyframeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if req.X != nil && req.Y != nil && req.Size != nil {
			kf := compositing.Keyframe{Time: req.Time, X: *req.X, Y: *req.Y, Size: *req.Size}
			if err := cfg.Store.SetKeyframe(track, kf); err != nil {
				writeStoreError(w, err)
				return
			}
			autosave(cfg, r)
			WriteJSON(w, http.StatusCreated, KeyframeResponse{Time: kf.Time, X: kf.X, Y: kf.Y, Size: kf.Size})
			return
		}

		kf, err := cfg.Store.AddKeyframe(track, req.Time)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		autosave(cfg, r)
		WriteJSON(w, http.StatusCreated, KeyframeResponse{Time: kf.Time, X: kf.X, Y: kf.Y, Size: kf.Size})
	}
}

// removeKeyframesHandler deletes the keyframe nearest ?t=, or every
// keyframe on the track when t is absent.
func removeKeyframesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		track := chi.URLParam(r, "track")

		raw := r.URL.Query().Get("t")
		if raw == "" {
			if err := cfg.Store.ClearKeyframes(track); err != nil {
				writeStoreError(w, err)
				return
			}
			autosave(cfg, r)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		t, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "query parameter t must be a number", "BAD_REQUEST")
			return
		}

		removed, err := cfg.Store.RemoveKeyframeNear(track, t)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if !removed {
			WriteError(w, http.StatusNotFound, "no keyframe near requested time", "NOT_FOUND")
			return
		}
		autosave(cfg, r)
		w.WriteHeader(http.StatusNoContent)
	}
}
