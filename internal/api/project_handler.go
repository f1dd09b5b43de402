package api

import (
	"encoding/json"
	"net/http"

	"github.com/clappper/clappper-agent/internal/project"
	"github.com/go-chi/chi/v5"
)

func listProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := cfg.Projects.List(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list projects", "INTERNAL_ERROR")
			return
		}

		resp := ProjectsResponse{Projects: make([]ProjectResponse, len(projects))}
		for i, p := range projects {
			resp.Projects[i] = ProjectToResponse(p)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func saveProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SaveProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Name == "" {
			WriteError(w, http.StatusBadRequest, "name is required", "BAD_REQUEST")
			return
		}

		state := &project.State{
			Timeline: cfg.Store.Snapshot(),
			Export:   cfg.ExportSettings.Current(),
		}
		p, err := cfg.Projects.Save(r.Context(), req.Name, state)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		WriteJSON(w, http.StatusCreated, ProjectToResponse(p))
	}
}

// loadProjectHandler replaces the live timeline with the saved state.
// Loading resets the undo history; the saved session becomes the new
// baseline.
func loadProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoadProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.ID == "" {
			WriteError(w, http.StatusBadRequest, "id is required", "BAD_REQUEST")
			return
		}

		state, err := cfg.Projects.Load(r.Context(), req.ID)
		if err != nil {
			WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
			return
		}
		if state.Timeline == nil {
			WriteError(w, http.StatusInternalServerError, "saved project has no timeline", "INTERNAL_ERROR")
			return
		}

		cfg.Synchronizer.Pause()
		cfg.Store.Replace(state.Timeline)
		cfg.ExportSettings.Update(state.Export)

		WriteJSON(w, http.StatusOK, timelineResponse(cfg))
	}
}

func deleteProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "project id required", "BAD_REQUEST")
			return
		}

		if err := cfg.Projects.Delete(r.Context(), id); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
