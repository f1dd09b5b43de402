package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/clappper/clappper-agent/internal/capture"
	"github.com/clappper/clappper-agent/internal/db"
	"github.com/clappper/clappper-agent/internal/export"
	"github.com/clappper/clappper-agent/internal/jobs"
	"github.com/clappper/clappper-agent/internal/playback"
	"github.com/clappper/clappper-agent/internal/probe"
	"github.com/clappper/clappper-agent/internal/project"
	"github.com/clappper/clappper-agent/internal/timeline"
)

const testToken = "test-token"

type fakeProber struct {
	durations map[string]float64
}

func (f *fakeProber) Probe(ctx context.Context, path string) (*probe.Result, error) {
	d, ok := f.durations[path]
	if !ok {
		return nil, fmt.Errorf("no such media: %s", path)
	}
	return &probe.Result{Duration: d, Width: 1920, Height: 1080, Codec: "h264", FrameRate: 30}, nil
}

func testServerConfig(t *testing.T) ServerConfig {
	t.Helper()

	tmpDir := t.TempDir()
	database, err := db.New(filepath.Join(tmpDir, "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := project.NewRepository(database.Conn())
	if err := repo.SetConfig(context.Background(), "auth_token", testToken); err != nil {
		t.Fatalf("set auth token: %v", err)
	}

	store := timeline.NewStore(4, logger)
	buffer := playback.NewCommandBuffer()
	sync := playback.NewSynchronizer(store, buffer.Factory(), logger)

	return ServerConfig{
		Port:         0,
		Store:        store,
		Synchronizer: sync,
		Commands:     buffer,
		Media:        playback.NewServer(logger),
		Prober: &fakeProber{durations: map[string]float64{
			"/media/a.mp4": 10,
			"/media/b.mp4": 5,
			"/media/c.mp4": 8,
		}},
		Projects:       project.NewService(repo, logger),
		Repository:     repo,
		Runner:         jobs.NewRunner(repo, export.NewStubEngine(logger), logger),
		Screen:         capture.NewStubScreenRecorder(logger),
		Camera:         capture.NewStubCameraRecorder(logger),
		Detector:       capture.NewStubDetector(logger),
		ExportSettings: export.NewSettingsStore(),
		ExportDir:      tmpDir,
		Logger:         logger,
		StartTime:      time.Now().Add(-10 * time.Second),
		Version:        "test",
	}
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "127.0.0.1:54321"
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

func importClips(t *testing.T, router http.Handler, paths ...string) {
	t.Helper()
	rr := doRequest(t, router, http.MethodPost, "/timeline/clips", ImportClipsRequest{Paths: paths})
	if rr.Code != http.StatusCreated {
		t.Fatalf("import status = %d, want %d: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
}

func mainClipIDs(t *testing.T, router http.Handler) []string {
	t.Helper()
	rr := doRequest(t, router, http.MethodGet, "/timeline", nil)
	var resp TimelineResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode timeline: %v", err)
	}
	for _, track := range resp.Tracks {
		if track.ID == timeline.MainTrackID {
			ids := make([]string, len(track.Clips))
			for i, c := range track.Clips {
				ids[i] = c.ID
			}
			return ids
		}
	}
	return nil
}

func TestHealthHandler_NoAuth(t *testing.T) {
	router := NewRouter(testServerConfig(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "127.0.0.1:54321"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	body := decodeJSONBody(t, rr)
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestImportClips_MixedBatch(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)

	rr := doRequest(t, router, http.MethodPost, "/timeline/clips", ImportClipsRequest{
		Paths: []string{"/media/a.mp4", "/media/missing.mp4", "/media/b.mp4"},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusCreated)
	}

	var resp ImportClipsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Clips) != 2 {
		t.Errorf("imported %d clips, want 2", len(resp.Clips))
	}
	if len(resp.Rejected) != 1 || resp.Rejected[0].Path != "/media/missing.mp4" {
		t.Errorf("rejected = %+v, want one entry for /media/missing.mp4", resp.Rejected)
	}

	if got := cfg.Store.SequenceDuration(); got != 15 {
		t.Errorf("sequence duration = %v, want 15", got)
	}
}

func TestTrimSplitDelete_Flow(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)
	importClips(t, router, "/media/a.mp4")
	ids := mainClipIDs(t, router)

	rr := doRequest(t, router, http.MethodPost, "/timeline/clips/"+ids[0]+"/trim", TrimRequest{Start: 2, End: 8})
	if rr.Code != http.StatusOK {
		t.Fatalf("trim status = %d: %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, router, http.MethodPost, "/timeline/clips/"+ids[0]+"/split", SplitRequest{Time: 5})
	if rr.Code != http.StatusOK {
		t.Fatalf("split status = %d: %s", rr.Code, rr.Body.String())
	}
	var split SplitResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &split); err != nil {
		t.Fatalf("decode split: %v", err)
	}
	if split.Left.End != 5 || split.Right.Start != 5 {
		t.Errorf("split boundary = %v/%v, want 5/5", split.Left.End, split.Right.Start)
	}

	rr = doRequest(t, router, http.MethodDelete, "/timeline/clips/"+split.Right.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}

	if got := len(mainClipIDs(t, router)); got != 1 {
		t.Errorf("main track has %d clips, want 1", got)
	}
}

func TestSplit_OutOfRange(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)
	importClips(t, router, "/media/a.mp4")
	ids := mainClipIDs(t, router)

	rr := doRequest(t, router, http.MethodPost, "/timeline/clips/"+ids[0]+"/split", SplitRequest{Time: 10})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestUndoRedo_OverHTTP(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)
	importClips(t, router, "/media/a.mp4")
	ids := mainClipIDs(t, router)

	rr := doRequest(t, router, http.MethodDelete, "/timeline/clips/"+ids[0], nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}

	rr = doRequest(t, router, http.MethodPost, "/undo", nil)
	var undo UndoRedoResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &undo); err != nil {
		t.Fatalf("decode undo: %v", err)
	}
	if !undo.Applied || !undo.CanRedo {
		t.Errorf("undo = %+v, want applied with redo available", undo)
	}
	if got := len(mainClipIDs(t, router)); got != 1 {
		t.Errorf("after undo %d clips, want 1", got)
	}

	rr = doRequest(t, router, http.MethodPost, "/redo", nil)
	var redo UndoRedoResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &redo); err != nil {
		t.Fatalf("decode redo: %v", err)
	}
	if !redo.Applied {
		t.Errorf("redo = %+v, want applied", redo)
	}
	if got := len(mainClipIDs(t, router)); got != 0 {
		t.Errorf("after redo %d clips, want 0", got)
	}
}

func TestCompositing_KeyframeLifecycle(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)
	track := timeline.OverlayTrackID(1)

	x0, y0, s0 := 0.0, 0.0, 0.2
	rr := doRequest(t, router, http.MethodPost, "/compositing/"+track+"/keyframes",
		KeyframeRequest{Time: 0, X: &x0, Y: &y0, Size: &s0})
	if rr.Code != http.StatusCreated {
		t.Fatalf("keyframe status = %d: %s", rr.Code, rr.Body.String())
	}

	x1, y1, s1 := 1.0, 1.0, 0.4
	doRequest(t, router, http.MethodPost, "/compositing/"+track+"/keyframes",
		KeyframeRequest{Time: 10, X: &x1, Y: &y1, Size: &s1})

	rr = doRequest(t, router, http.MethodGet, "/compositing/"+track+"/position?t=5", nil)
	var pos PositionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &pos); err != nil {
		t.Fatalf("decode position: %v", err)
	}
	if pos.X != 0.5 || pos.Y != 0.5 {
		t.Errorf("position at midpoint = (%v, %v), want (0.5, 0.5)", pos.X, pos.Y)
	}

	rr = doRequest(t, router, http.MethodDelete, "/compositing/"+track+"/keyframes?t=9.8", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("remove status = %d", rr.Code)
	}

	rr = doRequest(t, router, http.MethodDelete, "/compositing/"+track+"/keyframes?t=50", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("remove far status = %d, want %d", rr.Code, http.StatusNotFound)
	}

	rr = doRequest(t, router, http.MethodDelete, "/compositing/"+track+"/keyframes", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("clear status = %d", rr.Code)
	}

	rr = doRequest(t, router, http.MethodGet, "/compositing/"+track, nil)
	var cs CompositingResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &cs); err != nil {
		t.Fatalf("decode compositing: %v", err)
	}
	if len(cs.Keyframes) != 0 {
		t.Errorf("keyframes after clear = %d, want 0", len(cs.Keyframes))
	}
}

func TestPlaybackTick_IssuesCommands(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)
	importClips(t, router, "/media/a.mp4", "/media/b.mp4")

	rr := doRequest(t, router, http.MethodPost, "/playback/play", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("play status = %d", rr.Code)
	}
	var resp TickResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode play: %v", err)
	}
	// Playback holds until the shell reports the stream ready.
	if resp.Playing {
		t.Error("playing = true before the main stream reported ready")
	}
	foundLoad := false
	for _, c := range resp.Commands {
		if c.Lane == timeline.MainTrackID && c.Op == "load" && c.Path == "/media/a.mp4" {
			foundLoad = true
		}
	}
	if !foundLoad {
		t.Errorf("no load command for main lane in %+v", resp.Commands)
	}

	// Shell reports the stream ready and a clock mid-clip.
	rr = doRequest(t, router, http.MethodPost, "/playback/tick", TickRequest{
		Clocks: map[string]float64{timeline.MainTrackID: 4},
		Ready:  []string{timeline.MainTrackID},
	})
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode tick: %v", err)
	}
	if resp.SequenceTime != 4 {
		t.Errorf("sequence time = %v, want 4", resp.SequenceTime)
	}
	if !resp.Playing {
		t.Error("playing = false after the main stream reported ready")
	}

	// Reaching the clip boundary advances to the second clip.
	rr = doRequest(t, router, http.MethodPost, "/playback/tick", TickRequest{
		Clocks: map[string]float64{timeline.MainTrackID: 10},
	})
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode tick: %v", err)
	}
	foundLoad = false
	for _, c := range resp.Commands {
		if c.Op == "load" && c.Path == "/media/b.mp4" {
			foundLoad = true
		}
	}
	if !foundLoad {
		t.Errorf("no load command for second clip in %+v", resp.Commands)
	}
}

func TestExportHandler_QueuesJob(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)
	importClips(t, router, "/media/a.mp4")

	rr := doRequest(t, router, http.MethodPost, "/export", ExportRequest{
		OutputName: "my cut",
		Resolution: "720p",
		Quality:    "fast",
	})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("export status = %d: %s", rr.Code, rr.Body.String())
	}

	var resp ExportResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rr = doRequest(t, router, http.MethodGet, "/jobs/"+resp.JobID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get job status = %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["status"] != project.JobStatusPending {
		t.Errorf("job status = %v, want pending", body["status"])
	}
}

func TestExportHandler_EmptyTimeline(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)

	rr := doRequest(t, router, http.MethodPost, "/export", ExportRequest{OutputName: "empty"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestProjectSaveLoad_OverHTTP(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)
	importClips(t, router, "/media/a.mp4", "/media/b.mp4")

	rr := doRequest(t, router, http.MethodPost, "/projects/save", SaveProjectRequest{Name: "session one"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("save status = %d: %s", rr.Code, rr.Body.String())
	}
	var saved ProjectResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &saved); err != nil {
		t.Fatalf("decode save: %v", err)
	}

	ids := mainClipIDs(t, router)
	doRequest(t, router, http.MethodDelete, "/timeline/clips/"+ids[0], nil)
	if got := len(mainClipIDs(t, router)); got != 1 {
		t.Fatalf("after delete %d clips, want 1", got)
	}

	rr = doRequest(t, router, http.MethodPost, "/projects/load", LoadProjectRequest{ID: saved.ID})
	if rr.Code != http.StatusOK {
		t.Fatalf("load status = %d: %s", rr.Code, rr.Body.String())
	}
	var tl TimelineResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &tl); err != nil {
		t.Fatalf("decode load: %v", err)
	}
	if got := len(mainClipIDs(t, router)); got != 2 {
		t.Errorf("after load %d clips, want 2", got)
	}
	if tl.CanUndo {
		t.Error("loading a project should reset undo history")
	}
}

func TestCapture_ScreenLifecycle(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)

	rr := doRequest(t, router, http.MethodPost, "/capture/screen/start", StartScreenCaptureRequest{DisplayID: 1})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("start status = %d: %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, router, http.MethodGet, "/capture", nil)
	var status CaptureStatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.ScreenRecording || status.CameraRecording {
		t.Errorf("status = %+v, want screen recording only", status)
	}

	rr = doRequest(t, router, http.MethodPost, "/capture/screen/start", StartScreenCaptureRequest{DisplayID: 1})
	if rr.Code != http.StatusConflict {
		t.Errorf("second start status = %d, want %d", rr.Code, http.StatusConflict)
	}

	// The stub recorder cannot produce a file, so stop surfaces a gateway error
	// and the main track stays empty.
	rr = doRequest(t, router, http.MethodPost, "/capture/screen/stop", nil)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("stop status = %d, want %d", rr.Code, http.StatusBadGateway)
	}
	if body := decodeJSONBody(t, rr); body["code"] != "CAPTURE_FAILED" {
		t.Errorf("stop code = %v, want CAPTURE_FAILED", body["code"])
	}
	if got := len(mainClipIDs(t, router)); got != 0 {
		t.Errorf("main track has %d clips, want 0", got)
	}

	rr = doRequest(t, router, http.MethodGet, "/capture", nil)
	status = CaptureStatusResponse{}
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.ScreenRecording {
		t.Error("screen should no longer report as recording after stop")
	}
}

func TestCapture_NotWiredReturns501(t *testing.T) {
	cfg := testServerConfig(t)
	cfg.Screen = nil
	cfg.Camera = nil
	router := NewRouter(cfg)

	for _, path := range []string{"/capture/screen/start", "/capture/camera/start"} {
		rr := doRequest(t, router, http.MethodPost, path, map[string]interface{}{})
		if rr.Code != http.StatusNotImplemented {
			t.Errorf("%s status = %d, want %d", path, rr.Code, http.StatusNotImplemented)
		}
	}
}

func TestDetectSilence_OverHTTP(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)
	importClips(t, router, "/media/a.mp4")
	ids := mainClipIDs(t, router)

	rr := doRequest(t, router, http.MethodPost, "/capture/silence", DetectSilenceRequest{ClipID: "no-such-clip"})
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown clip status = %d, want %d", rr.Code, http.StatusNotFound)
	}

	rr = doRequest(t, router, http.MethodPost, "/capture/silence", DetectSilenceRequest{ClipID: ids[0]})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var resp DetectSilenceResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ClipID != ids[0] {
		t.Errorf("clip_id = %q, want %q", resp.ClipID, ids[0])
	}
	if len(resp.CutPoints) != 0 {
		t.Errorf("stub detector returned %d cut points, want 0", len(resp.CutPoints))
	}
}

func TestExportSettings_RoundTripThroughProject(t *testing.T) {
	cfg := testServerConfig(t)
	router := NewRouter(cfg)
	importClips(t, router, "/media/a.mp4")

	rr := doRequest(t, router, http.MethodPost, "/export", ExportRequest{
		OutputName: "graded cut",
		Resolution: "1080p",
		Quality:    "slow",
	})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("export status = %d: %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, router, http.MethodPost, "/projects/save", SaveProjectRequest{Name: "graded"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("save status = %d: %s", rr.Code, rr.Body.String())
	}
	var saved ProjectResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &saved); err != nil {
		t.Fatalf("decode save: %v", err)
	}

	// Another export moves the session's settings on.
	rr = doRequest(t, router, http.MethodPost, "/export", ExportRequest{
		OutputName: "draft",
		Resolution: "360p",
		Quality:    "fast",
	})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("second export status = %d: %s", rr.Code, rr.Body.String())
	}
	if got := cfg.ExportSettings.Current(); got.Resolution != export.Res360p {
		t.Fatalf("session resolution = %q, want 360p before load", got.Resolution)
	}

	rr = doRequest(t, router, http.MethodPost, "/projects/load", LoadProjectRequest{ID: saved.ID})
	if rr.Code != http.StatusOK {
		t.Fatalf("load status = %d: %s", rr.Code, rr.Body.String())
	}
	got := cfg.ExportSettings.Current()
	if got.Resolution != export.Res1080p || got.Quality != export.QualitySlow {
		t.Errorf("settings after load = %+v, want the saved 1080p/slow", got)
	}
}
