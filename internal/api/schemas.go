package api

import (
	"time"

	"github.com/clappper/clappper-agent/internal/compositing"
	"github.com/clappper/clappper-agent/internal/project"
	"github.com/clappper/clappper-agent/internal/timeline"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State        string       `json:"state"`
	Playing      bool         `json:"playing"`
	SequenceTime float64      `json:"sequence_time"`
	ClipCount    int          `json:"clip_count"`
	JobsRunning  int          `json:"jobs_running"`
	LastError    string       `json:"last_error,omitempty"`
	ActiveJob    *JobResponse `json:"active_job,omitempty"`
}

type ClipResponse struct {
	ID          string  `json:"id"`
	Path        string  `json:"path"`
	DisplayName string  `json:"display_name"`
	Duration    float64 `json:"duration"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Order       int     `json:"order"`
	TrackID     string  `json:"track_id"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	Offline     bool    `json:"offline,omitempty"`
}

type TrackResponse struct {
	ID    string         `json:"id"`
	Kind  string         `json:"kind"`
	Clips []ClipResponse `json:"clips"`
}

type TimelineResponse struct {
	Tracks          []TrackResponse `json:"tracks"`
	Selection       string          `json:"selection,omitempty"`
	VisibleOverlays int             `json:"visible_overlays"`
	Duration        float64         `json:"duration"`
	CanUndo         bool            `json:"can_undo"`
	CanRedo         bool            `json:"can_redo"`
}

type ImportClipsRequest struct {
	Paths   []string `json:"paths"`
	TrackID string   `json:"track_id,omitempty"`
}

type RejectedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type ImportClipsResponse struct {
	Clips    []ClipResponse `json:"clips"`
	Rejected []RejectedFile `json:"rejected,omitempty"`
}

type TrimRequest struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type SplitRequest struct {
	Time float64 `json:"time"`
}

type SplitResponse struct {
	Left  ClipResponse `json:"left"`
	Right ClipResponse `json:"right"`
}

type MoveRequest struct {
	TrackID string `json:"track_id"`
}

type ReorderRequest struct {
	TrackID   string `json:"track_id,omitempty"`
	FromIndex int    `json:"from_index"`
	ToIndex   int    `json:"to_index"`
}

type SelectRequest struct {
	ClipID string `json:"clip_id"`
}

type VisibleOverlaysRequest struct {
	Count int `json:"count"`
}

type UndoRedoResponse struct {
	Applied bool `json:"applied"`
	CanUndo bool `json:"can_undo"`
	CanRedo bool `json:"can_redo"`
}

type CompositingModeRequest struct {
	Mode   string  `json:"mode"`
	Preset string  `json:"preset,omitempty"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Size   float64 `json:"size,omitempty"`
}

// KeyframeRequest captures the current placement at Time when no explicit
// values are given; with all three values present it writes them verbatim.
type KeyframeRequest struct {
	Time float64  `json:"time"`
	X    *float64 `json:"x,omitempty"`
	Y    *float64 `json:"y,omitempty"`
	Size *float64 `json:"size,omitempty"`
}

type KeyframeResponse struct {
	Time float64 `json:"time"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Size float64 `json:"size"`
}

type CompositingResponse struct {
	Mode      string             `json:"mode"`
	Preset    string             `json:"preset,omitempty"`
	X         float64            `json:"x"`
	Y         float64            `json:"y"`
	Size      float64            `json:"size"`
	Keyframes []KeyframeResponse `json:"keyframes,omitempty"`
}

type PositionResponse struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Size float64 `json:"size"`
}

type SeekRequest struct {
	Time float64 `json:"time"`
}

type PlaybackStateResponse struct {
	Playing      bool     `json:"playing"`
	SequenceTime float64  `json:"sequence_time"`
	ClipIndex    int      `json:"clip_index"`
	ErroredClips []string `json:"errored_clips,omitempty"`
}

// TickRequest is the UI shell's stream report: per-lane decoder clocks
// plus readiness and failure events since the last tick.
type TickRequest struct {
	Clocks map[string]float64 `json:"clocks,omitempty"`
	Ready  []string           `json:"ready,omitempty"`
	Failed []LaneError        `json:"failed,omitempty"`
}

type LaneError struct {
	Lane  string `json:"lane"`
	Error string `json:"error"`
}

type CommandResponse struct {
	Lane string  `json:"lane"`
	Op   string  `json:"op"`
	Path string  `json:"path,omitempty"`
	Time float64 `json:"time,omitempty"`
}

type TickResponse struct {
	Commands     []CommandResponse `json:"commands"`
	Playing      bool              `json:"playing"`
	SequenceTime float64           `json:"sequence_time"`
}

type ExportRequest struct {
	OutputName string `json:"output_name"`
	Resolution string `json:"resolution,omitempty"`
	Quality    string `json:"quality,omitempty"`
	OutputDir  string `json:"output_dir,omitempty"`
}

type ExportResponse struct {
	JobID string `json:"job_id"`
}

type ExportEDLRequest struct {
	ProjectName string  `json:"project_name"`
	OutputDir   string  `json:"output_dir"`
	FrameRate   float64 `json:"frame_rate,omitempty"`
}

type ExportEDLResponse struct {
	Status     string `json:"status"`
	OutputPath string `json:"output_path"`
	ClipCount  int    `json:"clip_count"`
}

type JobResponse struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	Progress   int    `json:"progress"`
	Error      string `json:"error,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type StartScreenCaptureRequest struct {
	DisplayID int `json:"display_id"`
}

type StartCameraCaptureRequest struct {
	DeviceID string `json:"device_id"`
}

type CaptureStatusResponse struct {
	ScreenRecording bool `json:"screen_recording"`
	CameraRecording bool `json:"camera_recording"`
}

type DetectSilenceRequest struct {
	ClipID string `json:"clip_id"`
}

type DetectSilenceResponse struct {
	ClipID    string    `json:"clip_id"`
	CutPoints []float64 `json:"cut_points"`
}

type SaveProjectRequest struct {
	Name string `json:"name"`
}

type LoadProjectRequest struct {
	ID string `json:"id"`
}

type ProjectResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type ProjectsResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func ClipToResponse(c *timeline.Clip, offline bool) ClipResponse {
	return ClipResponse{
		ID:          c.ID,
		Path:        c.Path,
		DisplayName: c.DisplayName,
		Duration:    c.Duration,
		Start:       c.Start,
		End:         c.End,
		Order:       c.Order,
		TrackID:     c.TrackID,
		Width:       c.Width,
		Height:      c.Height,
		Offline:     offline,
	}
}

func CompositingToResponse(cs *compositing.Settings) CompositingResponse {
	resp := CompositingResponse{
		Mode:   cs.Mode.String(),
		Preset: string(cs.Preset),
		X:      cs.X,
		Y:      cs.Y,
		Size:   cs.Size,
	}
	for _, kf := range cs.Keyframes {
		resp.Keyframes = append(resp.Keyframes, KeyframeResponse{Time: kf.Time, X: kf.X, Y: kf.Y, Size: kf.Size})
	}
	return resp
}

func JobToResponse(j *project.Job) JobResponse {
	return JobResponse{
		ID:         j.ID,
		Type:       j.Type,
		Status:     j.Status,
		Progress:   j.Progress,
		Error:      j.Error,
		OutputPath: j.OutputPath,
		CreatedAt:  j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  j.UpdatedAt.Format(time.RFC3339),
	}
}

func ProjectToResponse(p *project.Project) ProjectResponse {
	return ProjectResponse{
		ID:        p.ID,
		Name:      p.Name,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
		UpdatedAt: p.UpdatedAt.Format(time.RFC3339),
	}
}
