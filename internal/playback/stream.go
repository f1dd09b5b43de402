package playback

// Lane identifies one of the parallel media streams: the main lane plus a
// fixed set of overlays. Lane ids match timeline track ids.
type Lane = string

// Stream is one underlying media decoder owned by the UI shell. Load is
// asynchronous: the stream reports readiness or failure back to the
// synchronizer through StreamReady/StreamFailed, in unspecified order
// relative to other lanes.
type Stream interface {
	// Load begins loading a source. Any previous media on the stream is
	// discarded.
	Load(path string)
	Play()
	Pause()
	Seek(t float64)
	CurrentTime() float64
	// Release frees decoder resources for an inactive lane.
	Release()
}

// StreamFactory creates the stream bound to a lane. Tests inject fakes;
// the HTTP transport installs command-buffer streams driven by the UI.
type StreamFactory func(lane Lane) Stream
