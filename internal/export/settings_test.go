package export

import "testing"

func TestSettingsStore_Defaults(t *testing.T) {
	st := NewSettingsStore()
	got := st.Current()
	if got.Resolution != ResSource || got.Quality != QualityMedium {
		t.Fatalf("initial settings = %+v, want source/medium", got)
	}
}

func TestSettingsStore_UpdateFillsEmptySelectors(t *testing.T) {
	st := NewSettingsStore()

	st.Update(Settings{Resolution: Res720p, Quality: QualitySlow, OutputDir: "/out"})
	got := st.Current()
	if got.Resolution != Res720p || got.Quality != QualitySlow || got.OutputDir != "/out" {
		t.Fatalf("settings = %+v, want 720p/slow//out", got)
	}

	st.Update(Settings{})
	got = st.Current()
	if got.Resolution != ResSource || got.Quality != QualityMedium {
		t.Errorf("settings = %+v, want defaults restored for empty selectors", got)
	}
	if got.OutputDir != "" {
		t.Errorf("output dir = %q, want cleared", got.OutputDir)
	}
}
