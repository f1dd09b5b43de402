package project

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/clappper/clappper-agent/internal/compositing"
	"github.com/clappper/clappper-agent/internal/db"
	"github.com/clappper/clappper-agent/internal/export"
	"github.com/clappper/clappper-agent/internal/timeline"
)

func setupTestService(t *testing.T) *Service {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := NewRepository(database.Conn())
	return NewService(repo, nil)
}

func testState() *State {
	cs := compositing.NewSettings()
	cs.SetKeyframe(compositing.Keyframe{Time: 0, X: 0, Y: 0, Size: 0.2})
	cs.SetKeyframe(compositing.Keyframe{Time: 10, X: 1, Y: 1, Size: 0.4})

	return &State{
		Timeline: &timeline.Snapshot{
			Tracks: []*timeline.Track{
				{
					ID:   timeline.MainTrackID,
					Kind: timeline.KindMain,
					Clips: []*timeline.Clip{
						{ID: "clip-a", Path: "/media/a.mp4", DisplayName: "a.mp4", Duration: 10, Start: 0, End: 10, Order: 0, TrackID: timeline.MainTrackID},
						{ID: "clip-b", Path: "/media/b.mp4", DisplayName: "b.mp4", Duration: 8, Start: 2, End: 6, Order: 1, TrackID: timeline.MainTrackID},
					},
				},
				{
					ID:   timeline.OverlayTrackID(1),
					Kind: timeline.KindOverlay,
					Clips: []*timeline.Clip{
						{ID: "clip-c", Path: "/media/c.mp4", DisplayName: "c.mp4", Duration: 5, Start: 0, End: 5, Order: 0, TrackID: timeline.OverlayTrackID(1)},
					},
				},
			},
			Selection:       "clip-b",
			Compositing:     map[string]*compositing.Settings{"clip-c": cs},
			VisibleOverlays: 2,
		},
		Export: export.DefaultSettings(),
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	saved, err := svc.Save(ctx, "My Project", testState())
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := svc.Load(ctx, saved.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	snap := loaded.Timeline
	if len(snap.Tracks) != 2 {
		t.Fatalf("loaded %d tracks, want 2", len(snap.Tracks))
	}
	main := snap.Tracks[0]
	if len(main.Clips) != 2 {
		t.Fatalf("loaded %d main clips, want 2", len(main.Clips))
	}
	b := main.Clips[1]
	if b.Start != 2 || b.End != 6 || b.Order != 1 {
		t.Errorf("clip-b = start %v end %v order %d, want 2 6 1", b.Start, b.End, b.Order)
	}
	if snap.Selection != "clip-b" {
		t.Errorf("selection = %q, want clip-b", snap.Selection)
	}
	if snap.VisibleOverlays != 2 {
		t.Errorf("visible overlays = %d, want 2", snap.VisibleOverlays)
	}

	cs, ok := snap.Compositing["clip-c"]
	if !ok {
		t.Fatal("compositing settings for clip-c missing after load")
	}
	if cs.Mode != compositing.ModeKeyframed {
		t.Errorf("compositing mode = %v, want keyframed", cs.Mode)
	}
	pos := cs.PositionAt(5)
	if pos.X != 0.5 || pos.Y != 0.5 {
		t.Errorf("interpolated position after round trip = (%v, %v), want (0.5, 0.5)", pos.X, pos.Y)
	}
}

func TestSave_ReplacesSameName(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	first, err := svc.Save(ctx, "draft", testState())
	if err != nil {
		t.Fatalf("first save: %v", err)
	}

	state := testState()
	state.Timeline.Selection = "clip-a"
	second, err := svc.Save(ctx, "draft", state)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("second save created a new project id %s, want %s", second.ID, first.ID)
	}

	projects, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("listed %d projects, want 1", len(projects))
	}

	loaded, _ := svc.Load(ctx, first.ID)
	if loaded.Timeline.Selection != "clip-a" {
		t.Errorf("selection = %q after re-save, want clip-a", loaded.Timeline.Selection)
	}
}

func TestSave_RejectsEmptyName(t *testing.T) {
	svc := setupTestService(t)

	if _, err := svc.Save(context.Background(), "   ", testState()); err == nil {
		t.Error("expected error for blank project name")
	}
}

func TestSave_NameCannotShadowAutosave(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	saved, err := svc.Save(ctx, "_autosave", testState())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Name == AutosaveName {
		t.Errorf("user save stored under the autosave slot name %q", saved.Name)
	}
}

func TestAutosave_RollingSlot(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	if s, err := svc.LoadAutosave(ctx); err != nil || s != nil {
		t.Fatalf("LoadAutosave before any autosave = (%v, %v), want (nil, nil)", s, err)
	}

	if err := svc.Autosave(ctx, testState()); err != nil {
		t.Fatalf("autosave: %v", err)
	}

	state := testState()
	state.Timeline.VisibleOverlays = 4
	if err := svc.Autosave(ctx, state); err != nil {
		t.Fatalf("second autosave: %v", err)
	}

	loaded, err := svc.LoadAutosave(ctx)
	if err != nil {
		t.Fatalf("load autosave: %v", err)
	}
	if loaded.Timeline.VisibleOverlays != 4 {
		t.Errorf("autosave visible overlays = %d, want 4 (latest slot)", loaded.Timeline.VisibleOverlays)
	}

	// Autosaves never show up in the user-facing project list.
	projects, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(projects) != 0 {
		t.Errorf("listed %d projects, want 0", len(projects))
	}
}

func TestDelete_RemovesProject(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	saved, err := svc.Save(ctx, "doomed", testState())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := svc.Delete(ctx, saved.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Load(ctx, saved.ID); err == nil {
		t.Error("expected error loading deleted project")
	}
}
