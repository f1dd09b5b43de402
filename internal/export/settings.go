package export

import "sync"

// SettingsStore holds the session's current export settings so project
// saves and autosaves persist what the user last chose, not the
// defaults. Request handlers and the autosave loop read it from their
// own goroutines.
type SettingsStore struct {
	mu sync.Mutex
	s  Settings
}

func NewSettingsStore() *SettingsStore {
	return &SettingsStore{s: DefaultSettings()}
}

// Current returns the session's export settings.
func (st *SettingsStore) Current() Settings {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s
}

// Update replaces the session's export settings. Empty selectors, as a
// project saved by an older build may carry, fall back to defaults.
func (st *SettingsStore) Update(s Settings) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s.Resolution == "" {
		s.Resolution = ResSource
	}
	if s.Quality == "" {
		s.Quality = QualityMedium
	}
	st.s = s
}
