package api

import (
	"net/http"
	"time"

	"github.com/clappper/clappper-agent/internal/project"
	"github.com/go-chi/chi/v5"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(LoopbackOnlyMiddleware())
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Get("/timeline", getTimelineHandler(cfg))
		r.Post("/timeline/clips", importClipsHandler(cfg))
		r.Post("/timeline/clips/{id}/trim", trimClipHandler(cfg))
		r.Post("/timeline/clips/{id}/split", splitClipHandler(cfg))
		r.Post("/timeline/clips/{id}/move", moveClipHandler(cfg))
		r.Delete("/timeline/clips/{id}", deleteClipHandler(cfg))
		r.Post("/timeline/reorder", reorderClipsHandler(cfg))
		r.Post("/timeline/select", selectClipHandler(cfg))
		r.Post("/timeline/overlays", setVisibleOverlaysHandler(cfg))
		r.Post("/undo", undoHandler(cfg))
		r.Post("/redo", redoHandler(cfg))

		r.Get("/compositing/{track}", getCompositingHandler(cfg))
		r.Get("/compositing/{track}/position", positionHandler(cfg))
		r.Post("/compositing/{track}/mode", setCompositingModeHandler(cfg))
		r.Post("/compositing/{track}/keyframes", addKeyframeHandler(cfg))
		r.Delete("/compositing/{track}/keyframes", removeKeyframesHandler(cfg))

		r.Get("/playback", playbackStateHandler(cfg))
		r.Post("/playback/play", playHandler(cfg))
		r.Post("/playback/pause", pauseHandler(cfg))
		r.Post("/playback/seek", seekHandler(cfg))
		r.Post("/playback/tick", tickHandler(cfg))
		r.Get("/playback/file", playbackFileHandler(cfg))

		r.Post("/export", exportHandler(cfg))
		r.Post("/export/edl", exportEDLHandler(cfg))
		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))

		r.Post("/capture/screen/start", startScreenCaptureHandler(cfg))
		r.Post("/capture/screen/stop", stopCaptureHandler(cfg, "screen"))
		r.Post("/capture/camera/start", startCameraCaptureHandler(cfg))
		r.Post("/capture/camera/stop", stopCaptureHandler(cfg, "camera"))
		r.Get("/capture", captureStatusHandler(cfg))
		r.Post("/capture/silence", detectSilenceHandler(cfg))

		r.Get("/projects", listProjectsHandler(cfg))
		r.Post("/projects/save", saveProjectHandler(cfg))
		r.Post("/projects/load", loadProjectHandler(cfg))
		r.Delete("/projects/{id}", deleteProjectHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobsList, _ := cfg.Repository.ListJobs(r.Context(), 10)

		state := "idle"
		var activeJob *JobResponse
		jobsRunning := 0
		lastError := ""

		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			state = "paused"
		}

		for _, j := range jobsList {
			if j.Status == project.JobStatusRunning {
				state = "exporting"
				resp := JobToResponse(j)
				activeJob = &resp
				jobsRunning++
			}
			if j.Status == project.JobStatusFailed && lastError == "" {
				lastError = j.Error
			}
		}

		if state == "idle" && cfg.Synchronizer.Playing() {
			state = "playing"
		}

		clipCount := 0
		for _, t := range cfg.Store.Tracks() {
			clipCount += len(t.Clips)
		}

		WriteJSON(w, http.StatusOK, StatusResponse{
			State:        state,
			Playing:      cfg.Synchronizer.Playing(),
			SequenceTime: cfg.Synchronizer.SequenceTime(),
			ClipCount:    clipCount,
			JobsRunning:  jobsRunning,
			LastError:    lastError,
			ActiveJob:    activeJob,
		})
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobsList, err := cfg.Repository.ListJobs(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(jobsList))}
		for i, j := range jobsList {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "job id required", "BAD_REQUEST")
			return
		}

		job, err := cfg.Repository.GetJob(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}
