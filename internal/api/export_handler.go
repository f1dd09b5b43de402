package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/clappper/clappper-agent/internal/export"
)

// exportHandler freezes the current timeline into an export plan and
// queues it. The response carries the job id; progress is polled through
// /jobs/{id}.
func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		settings := cfg.ExportSettings.Current()
		if req.Resolution != "" {
			res, err := export.ParseResolution(req.Resolution)
			if err != nil {
				WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
				return
			}
			settings.Resolution = res
		}
		if req.Quality != "" {
			q, err := export.ParseQuality(req.Quality)
			if err != nil {
				WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
				return
			}
			settings.Quality = q
		}

		if req.OutputDir != "" {
			settings.OutputDir = req.OutputDir
		}
		if settings.OutputDir == "" {
			settings.OutputDir = cfg.ExportDir
		}
		if err := export.ValidateOutputDir(settings.OutputDir); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		// The chosen settings become the session's current ones, so the
		// next project save carries them.
		cfg.ExportSettings.Update(settings)

		outputName := export.SanitizeName(req.OutputName, 120)
		if outputName == "" {
			outputName = "clappper_export"
		}

		plan, err := export.BuildRequest(cfg.Store.Snapshot(), settings, outputName)
		if err != nil {
			if errors.Is(err, export.ErrEmptyTimeline) {
				WriteError(w, http.StatusBadRequest, err.Error(), "EMPTY_TIMELINE")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		job, err := cfg.Runner.Enqueue(r.Context(), plan)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to queue export", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusAccepted, ExportResponse{JobID: job.ID})
	}
}

// exportEDLHandler writes a CMX3600 edit decision list of the main track
// for interchange with other editors. Synchronous; an EDL is a few
// kilobytes of text.
func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportEDLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := export.ValidateOutputDir(req.OutputDir); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		projectName := export.SanitizeName(req.ProjectName, 120)
		if projectName == "" {
			projectName = "clappper_export"
		}

		frameRate := req.FrameRate
		if frameRate <= 0 {
			frameRate = 30.0
		}

		plan, err := export.BuildRequest(cfg.Store.Snapshot(), cfg.ExportSettings.Current(), projectName)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "EMPTY_TIMELINE")
			return
		}

		edl := export.GenerateEDL(plan.Main, projectName, frameRate)
		outputPath := filepath.Join(req.OutputDir, projectName+".edl")
		if err := os.WriteFile(outputPath, []byte(edl), 0o644); err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to write export file", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, ExportEDLResponse{
			Status:     "ok",
			OutputPath: outputPath,
			ClipCount:  len(plan.Main),
		})
	}
}
