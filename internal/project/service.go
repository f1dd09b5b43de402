// Package project persists the full editable state to the agent's SQLite
// store: named saves plus a rolling autosave slot. A save/load round trip
// reproduces an equivalent timeline, including keyframe lists and clip
// order values.
package project

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/clappper/clappper-agent/internal/timeline"
)

// ProjectService is the persistence collaborator surface.
type ProjectService interface {
	Save(ctx context.Context, name string, state *State) (*Project, error)
	Autosave(ctx context.Context, state *State) error
	Load(ctx context.Context, id string) (*State, error)
	LoadAutosave(ctx context.Context) (*State, error)
	List(ctx context.Context) ([]*Project, error)
	Delete(ctx context.Context, id string) error
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Save writes a named project, replacing an existing save of the same
// name.
func (s *Service) Save(ctx context.Context, name string, state *State) (*Project, error) {
	name = strings.TrimLeft(strings.TrimSpace(name), "_")
	if name == "" {
		return nil, fmt.Errorf("project name is required")
	}

	now := time.Now()
	p := &Project{
		ID:        timeline.NewID(),
		Name:      name,
		State:     state,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing, err := s.repo.GetProjectByName(ctx, name); err == nil && existing != nil {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	}

	if err := s.repo.UpsertProject(ctx, p); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Info("project saved", "project_id", p.ID, "name", name)
	}
	return p, nil
}

// Autosave writes the rolling autosave slot.
func (s *Service) Autosave(ctx context.Context, state *State) error {
	now := time.Now()
	p := &Project{
		ID:        timeline.NewID(),
		Name:      AutosaveName,
		State:     state,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing, err := s.repo.GetProjectByName(ctx, AutosaveName); err == nil && existing != nil {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	}
	return s.repo.UpsertProject(ctx, p)
}

func (s *Service) Load(ctx context.Context, id string) (*State, error) {
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("project not found")
	}
	return p.State, nil
}

// LoadAutosave returns nil state when no autosave exists yet.
func (s *Service) LoadAutosave(ctx context.Context) (*State, error) {
	p, err := s.repo.GetProjectByName(ctx, AutosaveName)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	return p.State, nil
}

func (s *Service) List(ctx context.Context) ([]*Project, error) {
	projects, err := s.repo.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	// The autosave slot is plumbing, not a user save.
	out := projects[:0]
	for _, p := range projects {
		if p.Name != AutosaveName {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.DeleteProject(ctx, id)
}

func encodeState(state *State) (string, error) {
	if state == nil {
		return "", fmt.Errorf("project state is required")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("cannot encode project state: %w", err)
	}
	return string(data), nil
}

func decodeState(data string) (*State, error) {
	var state State
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("cannot decode project state: %w", err)
	}
	return &state, nil
}
