package playback

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/clappper/clappper-agent/internal/timeline"
)

func TestCommandBuffer_TranslatesStreamCalls(t *testing.T) {
	buf := NewCommandBuffer()
	st := buf.Factory()(MainLane)

	st.Load("/media/clip-a.mp4")
	st.Play()
	st.Seek(4)
	st.Pause()
	st.Release()

	cmds := buf.Drain()
	want := []Command{
		{Lane: MainLane, Op: OpLoad, Path: "/media/clip-a.mp4"},
		{Lane: MainLane, Op: OpPlay},
		{Lane: MainLane, Op: OpSeek, Time: 4},
		{Lane: MainLane, Op: OpPause},
		{Lane: MainLane, Op: OpRelease},
	}
	if len(cmds) != len(want) {
		t.Fatalf("commands = %v, want %v", cmds, want)
	}
	for i := range want {
		if cmds[i] != want[i] {
			t.Fatalf("commands[%d] = %+v, want %+v", i, cmds[i], want[i])
		}
	}

	if got := buf.Drain(); len(got) != 0 {
		t.Errorf("second drain = %v, want empty", got)
	}
}

func TestCommandBuffer_ClockFollowsReportsAndSeeks(t *testing.T) {
	buf := NewCommandBuffer()
	st := buf.Factory()(MainLane)

	buf.SetClock(MainLane, 3.5)
	if got := st.CurrentTime(); got != 3.5 {
		t.Errorf("CurrentTime = %v, want reported clock 3.5", got)
	}

	// A seek moves the local clock estimate ahead of the next report.
	st.Seek(8)
	if got := st.CurrentTime(); got != 8 {
		t.Errorf("CurrentTime = %v, want 8 after seek", got)
	}

	st.Release()
	if got := st.CurrentTime(); got != 0 {
		t.Errorf("CurrentTime = %v after release, want 0", got)
	}
}

func TestCommandBuffer_DrivesSynchronizer(t *testing.T) {
	store := timeline.NewStore(2, nil)
	err := store.AddClips([]*timeline.Clip{{
		ID: "clip-a", Path: "/media/clip-a.mp4", Duration: 10, End: 10,
	}}, timeline.MainTrackID)
	if err != nil {
		t.Fatalf("AddClips: %v", err)
	}

	buf := NewCommandBuffer()
	sync := NewSynchronizer(store, buf.Factory(), nil)

	if err := sync.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	cmds := buf.Drain()
	if len(cmds) != 1 || cmds[0].Op != OpLoad {
		t.Fatalf("commands = %v, want a single load", cmds)
	}

	sync.StreamReady(MainLane)
	cmds = buf.Drain()
	if len(cmds) != 2 || cmds[0].Op != OpSeek || cmds[1].Op != OpPlay {
		t.Fatalf("commands = %v, want seek then play", cmds)
	}
}

func writeTestMedia(t *testing.T, size int) string {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestServeFile_FullAndRanged(t *testing.T) {
	srv := NewServer(nil)
	path := writeTestMedia(t, 1000)

	t.Run("full file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/playback/file", nil)
		rec := httptest.NewRecorder()
		if err := srv.ServeFile(rec, req, path); err != nil {
			t.Fatalf("ServeFile: %v", err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
			t.Errorf("Accept-Ranges = %q", got)
		}
		if got := rec.Header().Get("Content-Type"); got == "" {
			t.Error("Content-Type missing")
		}
		body, _ := io.ReadAll(rec.Body)
		if len(body) != 1000 {
			t.Errorf("body length = %d, want 1000", len(body))
		}
	})

	t.Run("partial content", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/playback/file", nil)
		req.Header.Set("Range", "bytes=100-199")
		rec := httptest.NewRecorder()
		if err := srv.ServeFile(rec, req, path); err != nil {
			t.Fatalf("ServeFile: %v", err)
		}
		if rec.Code != http.StatusPartialContent {
			t.Fatalf("status = %d, want 206", rec.Code)
		}
		if got := rec.Header().Get("Content-Range"); got != "bytes 100-199/1000" {
			t.Errorf("Content-Range = %q", got)
		}
		body, _ := io.ReadAll(rec.Body)
		if len(body) != 100 || body[0] != byte(100%251) {
			t.Errorf("body length = %d, first byte = %d", len(body), body[0])
		}
	})

	t.Run("unsatisfiable range", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/playback/file", nil)
		req.Header.Set("Range", "bytes=5000-")
		rec := httptest.NewRecorder()
		if err := srv.ServeFile(rec, req, path); err != nil {
			t.Fatalf("ServeFile: %v", err)
		}
		if rec.Code != http.StatusRequestedRangeNotSatisfiable {
			t.Fatalf("status = %d, want 416", rec.Code)
		}
		if got := rec.Header().Get("Content-Range"); got != "bytes */1000" {
			t.Errorf("Content-Range = %q", got)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/playback/file", nil)
		rec := httptest.NewRecorder()
		if err := srv.ServeFile(rec, req, filepath.Join(t.TempDir(), "gone.mp4")); err != nil {
			t.Fatalf("ServeFile: %v", err)
		}
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})
}
