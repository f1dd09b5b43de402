// Package history implements the linear, bounded undo/redo log for the
// editable timeline state. Entries are deep copies captured immediately
// before each mutation, so later live edits can never retroactively alter
// recorded history.
package history

// MaxEntries bounds the log. Once full, the oldest snapshot is evicted and
// the cursor shifts down by one so relative position is preserved.
const MaxEntries = 50

// State is a snapshot of the editable state. Clone must return a structural
// copy sharing no mutable data with the receiver.
type State interface {
	Clone() State
}

// Log is an ordered list of snapshots plus a cursor. entries[cursor] is the
// snapshot an Undo would restore; the live state sits conceptually one past
// the cursor and is recorded lazily on the first Undo so Redo can return to
// it. The log is not safe for concurrent use; all mutations run on the
// store's single-threaded dispatch path.
type Log struct {
	entries []State
	cursor  int
}

func NewLog() *Log {
	return &Log{cursor: -1}
}

// Push records a copy of the pre-mutation state as the new undo target.
// Any redo branch past the cursor is discarded.
func (l *Log) Push(pre State) {
	l.entries = l.entries[:l.cursor+1]
	l.entries = append(l.entries, pre.Clone())
	l.cursor = len(l.entries) - 1

	if len(l.entries) > MaxEntries {
		l.entries = l.entries[1:]
		l.cursor--
	}
}

// Undo returns a copy of the snapshot taken before the most recent
// mutation. live is the current state; when the cursor sits at the tail it
// is recorded so a subsequent Redo can restore it. Reports false when there
// is nothing to undo.
func (l *Log) Undo(live State) (State, bool) {
	if l.cursor < 0 {
		return nil, false
	}

	if l.cursor == len(l.entries)-1 {
		l.entries = append(l.entries, live.Clone())
		if len(l.entries) > MaxEntries {
			l.entries = l.entries[1:]
			l.cursor--
			if l.cursor < 0 {
				return nil, false
			}
		}
	}

	s := l.entries[l.cursor]
	l.cursor--
	return s.Clone(), true
}

// Redo returns a copy of the next snapshot forward, or false when the
// cursor is already at the newest recorded state.
func (l *Log) Redo() (State, bool) {
	if l.cursor+2 > len(l.entries)-1 {
		return nil, false
	}
	l.cursor++
	return l.entries[l.cursor+1].Clone(), true
}

// CanUndo reports whether an earlier snapshot exists.
func (l *Log) CanUndo() bool {
	return l.cursor >= 0
}

// CanRedo reports whether a later snapshot exists.
func (l *Log) CanRedo() bool {
	return l.cursor+2 <= len(l.entries)-1
}

// Len returns the number of recorded snapshots.
func (l *Log) Len() int {
	return len(l.entries)
}

// Reset drops all entries, e.g. after loading a project.
func (l *Log) Reset() {
	l.entries = nil
	l.cursor = -1
}
