package playback

import (
	"fmt"
	"sync"
)

// CommandOp is a stream instruction for the UI shell, which owns the
// actual decoders in its process.
type CommandOp string

const (
	OpLoad    CommandOp = "load"
	OpPlay    CommandOp = "play"
	OpPause   CommandOp = "pause"
	OpSeek    CommandOp = "seek"
	OpRelease CommandOp = "release"
)

// Command is one buffered stream instruction.
type Command struct {
	Lane Lane      `json:"lane"`
	Op   CommandOp `json:"op"`
	Path string    `json:"path,omitempty"`
	Time float64   `json:"time,omitempty"`
}

func (c Command) String() string {
	return fmt.Sprintf("%s:%s", c.Lane, c.Op)
}

// CommandBuffer collects the commands the synchronizer issues during one
// event (a tick, a transport call, a readiness report) so the HTTP
// transport can hand them back to the UI in the response. The UI feeds
// clock readings in; commands come out. Drain empties the buffer.
// Producers and drainers run on different request goroutines, so access
// goes through one mutex.
type CommandBuffer struct {
	mu       sync.Mutex
	commands []Command
	clocks   map[Lane]float64
}

func NewCommandBuffer() *CommandBuffer {
	return &CommandBuffer{clocks: make(map[Lane]float64)}
}

// SetClock records the last clock reading the UI reported for a lane.
func (b *CommandBuffer) SetClock(lane Lane, t float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clocks[lane] = t
}

// Drain returns and clears the buffered commands.
func (b *CommandBuffer) Drain() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.commands
	b.commands = nil
	return out
}

func (b *CommandBuffer) push(c Command) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = append(b.commands, c)
}

func (b *CommandBuffer) clock(lane Lane) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clocks[lane]
}

func (b *CommandBuffer) seek(lane Lane, t float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = append(b.commands, Command{Lane: lane, Op: OpSeek, Time: t})
	b.clocks[lane] = t
}

func (b *CommandBuffer) release(lane Lane) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = append(b.commands, Command{Lane: lane, Op: OpRelease})
	delete(b.clocks, lane)
}

// Factory returns a StreamFactory producing buffer-backed streams.
func (b *CommandBuffer) Factory() StreamFactory {
	return func(lane Lane) Stream {
		return &bufferedStream{buf: b, lane: lane}
	}
}

// bufferedStream translates Stream calls into buffered commands and
// answers CurrentTime from the UI-reported clock.
type bufferedStream struct {
	buf  *CommandBuffer
	lane Lane
}

func (s *bufferedStream) Load(path string) {
	s.buf.push(Command{Lane: s.lane, Op: OpLoad, Path: path})
}

func (s *bufferedStream) Play() {
	s.buf.push(Command{Lane: s.lane, Op: OpPlay})
}

func (s *bufferedStream) Pause() {
	s.buf.push(Command{Lane: s.lane, Op: OpPause})
}

func (s *bufferedStream) Seek(t float64) {
	s.buf.seek(s.lane, t)
}

func (s *bufferedStream) CurrentTime() float64 {
	return s.buf.clock(s.lane)
}

func (s *bufferedStream) Release() {
	s.buf.release(s.lane)
}
