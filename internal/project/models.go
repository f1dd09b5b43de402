package project

import (
	"time"

	"github.com/clappper/clappper-agent/internal/export"
	"github.com/clappper/clappper-agent/internal/timeline"
)

// AutosaveName is the reserved project slot written on a timer and after
// mutations; it never collides with user saves because Save strips
// leading underscores from user-supplied names.
const AutosaveName = "_autosave"

// State is the full serializable editing session: everything needed to
// reproduce an equivalent timeline, including keyframe lists and order
// values.
type State struct {
	Timeline *timeline.Snapshot `json:"timeline"`
	Export   export.Settings    `json:"export"`
}

// Project is one saved row.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	State     *State    `json:"state,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	JobTypeExport = "export"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job is a queued background task, currently always an export.
type Job struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	Payload    string    `json:"payload,omitempty"`
	Progress   int       `json:"progress"`
	Error      string    `json:"error,omitempty"`
	OutputPath string    `json:"output_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
