package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"

	"github.com/clappper/clappper-agent/internal/capture"
	"github.com/clappper/clappper-agent/internal/timeline"
)

func startScreenCaptureHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Screen == nil {
			WriteError(w, http.StatusNotImplemented, "screen capture not available", "NOT_AVAILABLE")
			return
		}
		var req StartScreenCaptureRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if cfg.Screen.IsRecording() {
			WriteError(w, http.StatusConflict, "screen recording already in progress", "ALREADY_RECORDING")
			return
		}
		if err := cfg.Screen.Start(r.Context(), req.DisplayID); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "CAPTURE_FAILED")
			return
		}
		WriteJSON(w, http.StatusAccepted, captureStatus(cfg))
	}
}

func startCameraCaptureHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Camera == nil {
			WriteError(w, http.StatusNotImplemented, "camera capture not available", "NOT_AVAILABLE")
			return
		}
		var req StartCameraCaptureRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if cfg.Camera.IsRecording() {
			WriteError(w, http.StatusConflict, "camera recording already in progress", "ALREADY_RECORDING")
			return
		}
		if err := cfg.Camera.Start(r.Context(), req.DeviceID); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "CAPTURE_FAILED")
			return
		}
		WriteJSON(w, http.StatusAccepted, captureStatus(cfg))
	}
}

// stopCaptureHandler finishes a recording and imports it through the same
// probe-validated path as any other media file.
func stopCaptureHandler(cfg ServerConfig, source string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rec *capture.Recording
		var err error
		switch source {
		case "screen":
			if cfg.Screen == nil {
				WriteError(w, http.StatusNotImplemented, "screen capture not available", "NOT_AVAILABLE")
				return
			}
			rec, err = cfg.Screen.Stop(r.Context())
		default:
			if cfg.Camera == nil {
				WriteError(w, http.StatusNotImplemented, "camera capture not available", "NOT_AVAILABLE")
				return
			}
			rec, err = cfg.Camera.Stop(r.Context())
		}
		if err != nil {
			WriteError(w, http.StatusBadGateway, err.Error(), "CAPTURE_FAILED")
			return
		}
		if rec == nil {
			WriteError(w, http.StatusBadGateway, "recorder produced no file", "CAPTURE_FAILED")
			return
		}

		result, perr := cfg.Prober.Probe(r.Context(), rec.Path)
		if perr == nil {
			perr = result.Validate()
		}
		if perr != nil {
			WriteError(w, http.StatusBadGateway, "recording is not playable: "+perr.Error(), "CAPTURE_FAILED")
			return
		}

		clip := &timeline.Clip{
			ID:          timeline.NewID(),
			Path:        rec.Path,
			DisplayName: filepath.Base(rec.Path),
			Duration:    result.Duration,
			Start:       0,
			End:         result.Duration,
			Width:       result.Width,
			Height:      result.Height,
		}
		if err := cfg.Store.AddClips([]*timeline.Clip{clip}, timeline.MainTrackID); err != nil {
			writeStoreError(w, err)
			return
		}
		autosave(cfg, r)
		WriteJSON(w, http.StatusCreated, ClipToResponse(clip, false))
	}
}

func captureStatusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, captureStatus(cfg))
	}
}

func captureStatus(cfg ServerConfig) CaptureStatusResponse {
	resp := CaptureStatusResponse{}
	if cfg.Screen != nil {
		resp.ScreenRecording = cfg.Screen.IsRecording()
	}
	if cfg.Camera != nil {
		resp.CameraRecording = cfg.Camera.IsRecording()
	}
	return resp
}

// detectSilenceHandler returns candidate cut points within a clip's source,
// for the UI's "split on silence" affordance.
func detectSilenceHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Detector == nil {
			WriteError(w, http.StatusNotImplemented, "silence detection not available", "NOT_AVAILABLE")
			return
		}
		var req DetectSilenceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		clip := cfg.Store.Clip(req.ClipID)
		if clip == nil {
			WriteError(w, http.StatusNotFound, "clip not found", "NOT_FOUND")
			return
		}

		cuts, err := cfg.Detector.DetectSilence(r.Context(), clip.Path)
		if err != nil {
			WriteError(w, http.StatusBadGateway, err.Error(), "DETECTION_FAILED")
			return
		}

		// Only points strictly inside the trimmed interval can be cut on.
		var usable []float64
		for _, t := range cuts {
			if t > clip.Start && t < clip.End {
				usable = append(usable, t)
			}
		}
		WriteJSON(w, http.StatusOK, DetectSilenceResponse{ClipID: clip.ID, CutPoints: usable})
	}
}
