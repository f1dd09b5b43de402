package export

import (
	"strings"
	"testing"

	"github.com/clappper/clappper-agent/internal/compositing"
)

func twoSegmentRequest() *Request {
	return &Request{
		Main: []Segment{
			{Path: "/media/a.mp4", Name: "a.mp4", Start: 0, End: 10},
			{Path: "/media/b.mp4", Name: "b.mp4", Start: 2, End: 7},
		},
		Settings:   DefaultSettings(),
		OutputName: "cut",
	}
}

func TestBuildArgs(t *testing.T) {
	req := twoSegmentRequest()
	req.Settings.Quality = QualitySlow
	args := BuildArgs(req, "/out/cut.mp4")

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-y",
		"-i /media/a.mp4",
		"-i /media/b.mp4",
		"-map [vout]",
		"-c:v libx264",
		"-preset slow",
		"-crf 18",
		"-progress pipe:1",
		"-nostats",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %v", want, args)
		}
	}
	if args[len(args)-1] != "/out/cut.mp4" {
		t.Errorf("output path not last: %v", args)
	}
}

func TestBuildFilterGraph_TrimConcat(t *testing.T) {
	graph := BuildFilterGraph(twoSegmentRequest())

	for _, want := range []string{
		"[0:v]trim=start=0.0:end=10.0,setpts=PTS-STARTPTS[m0];",
		"[1:v]trim=start=2.0:end=7.0,setpts=PTS-STARTPTS[m1];",
		"[m0][m1]concat=n=2:v=1:a=0[vout]",
	} {
		if !strings.Contains(graph, want) {
			t.Errorf("graph missing %q:\n%s", want, graph)
		}
	}
	if strings.Contains(graph, "scale=") {
		t.Error("source resolution export must not scale the main segments")
	}
	if strings.HasSuffix(graph, ";") {
		t.Error("graph ends with a dangling separator")
	}
}

func TestBuildFilterGraph_ScalesFixedResolutions(t *testing.T) {
	req := twoSegmentRequest()
	req.Settings.Resolution = Res720p
	graph := BuildFilterGraph(req)

	if !strings.Contains(graph, "scale=1280:720:force_original_aspect_ratio=decrease") {
		t.Errorf("720p scale missing:\n%s", graph)
	}
	if !strings.Contains(graph, "pad=1280:720:(ow-iw)/2:(oh-ih)/2") {
		t.Errorf("letterbox pad missing:\n%s", graph)
	}
}

func TestBuildFilterGraph_StaticOverlay(t *testing.T) {
	req := twoSegmentRequest()
	req.Overlays = []OverlayJob{{
		Segment: Segment{Path: "/media/cam.mp4", Start: 0, End: 5},
		Static:  &compositing.Position{X: 0.66, Y: 0.66, Size: 0.3},
		Offset:  10,
	}}
	graph := BuildFilterGraph(req)

	// The overlay input follows the two main inputs.
	if !strings.Contains(graph, "[2:v]trim=start=0.0:end=5.0") {
		t.Errorf("overlay trim missing:\n%s", graph)
	}
	// Offset shifts its PTS onto the sequence clock and gates the overlay
	// window.
	if !strings.Contains(graph, "setpts=PTS-STARTPTS+10.0/TB") {
		t.Errorf("overlay offset missing:\n%s", graph)
	}
	if !strings.Contains(graph, "overlay=x=main_w*0.66:y=main_h*0.66") {
		t.Errorf("static placement missing:\n%s", graph)
	}
	if !strings.Contains(graph, "enable='between(t,10.0,15.0)'") {
		t.Errorf("overlay window missing:\n%s", graph)
	}
	if !strings.Contains(graph, "scale=iw*0.3:-1") {
		t.Errorf("overlay size missing:\n%s", graph)
	}
	// The chained output replaces [base] as the mapped label.
	if !strings.Contains(graph, "[vout]") {
		t.Errorf("final label missing:\n%s", graph)
	}
}

func TestPositionExpr_Keyframed(t *testing.T) {
	job := &OverlayJob{
		Keyframes: []compositing.Keyframe{
			{Time: 0, X: 0, Y: 0, Size: 0.2},
			{Time: 10, X: 1, Y: 0.5, Size: 0.4},
		},
	}
	pos := job.PositionExpr()

	// Hold before the first sample, linear between, hold after the last.
	wantX := "main_w*(if(lt(t,0.0),0.0,if(lt(t,10.0),0.0+(1.0-0.0)*(t-0.0)/(10.0-0.0),1.0)))"
	if pos.X != wantX {
		t.Errorf("X expr = %q, want %q", pos.X, wantX)
	}
	if !strings.Contains(pos.Y, "(0.5-0.0)*(t-0.0)/(10.0-0.0)") {
		t.Errorf("Y expr = %q, lerp term missing", pos.Y)
	}
	// The scale filter takes no time expression; the first sample's size
	// applies for the whole overlay.
	if pos.Size != "0.2" {
		t.Errorf("Size = %q, want first sample size", pos.Size)
	}
}

func TestPositionExpr_SingleKeyframeIsConstant(t *testing.T) {
	job := &OverlayJob{
		Keyframes: []compositing.Keyframe{{Time: 5, X: 0.25, Y: 0.75, Size: 0.3}},
	}
	pos := job.PositionExpr()
	if pos.X != "main_w*(if(lt(t,5.0),0.25,0.25))" {
		t.Errorf("X expr = %q", pos.X)
	}
}

func TestFFNum(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0"},
		{10, "10.0"},
		{0.25, "0.25"},
		{2.5, "2.5"},
		{-1, "-1.0"},
	}
	for _, tt := range tests {
		if got := ffNum(tt.in); got != tt.want {
			t.Errorf("ffNum(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
