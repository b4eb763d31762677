package core

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStateStore_LoadMissing(t *testing.T) {
	store := NewStateStore(filepath.Join(t.TempDir(), "state.toml"))

	st, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if st.SetupVersion != "" || !st.LastRun.IsZero() {
		t.Errorf("Load() = %+v, want empty state", st)
	}
}

func TestStateStore_SetSetupVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.toml")
	store := NewStateStore(path)
	now := time.Date(2026, 3, 1, 12, 30, 15, 999, time.UTC)

	if err := store.SetSetupVersion("1.6.1", now); err != nil {
		t.Fatalf("SetSetupVersion() error: %v", err)
	}

	if got := store.SetupVersion(); got != "1.6.1" {
		t.Errorf("SetupVersion() = %q, want %q", got, "1.6.1")
	}
	st, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if !st.LastRun.Equal(now.Truncate(time.Second)) {
		t.Errorf("LastRun = %v", st.LastRun)
	}
	if content := readTestFile(t, path); !strings.Contains(content, `setupVersion = "1.6.1"`) {
		t.Errorf("state file = %q", content)
	}
}

func TestStateStore_CorruptFileIsReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.toml")
	writeTestFile(t, path, "this is = = not toml")
	store := NewStateStore(path)

	if got := store.SetupVersion(); got != "" {
		t.Errorf("SetupVersion() = %q, want empty for a corrupt store", got)
	}
	if err := store.SetSetupVersion("2.0.0", time.Now()); err != nil {
		t.Fatalf("SetSetupVersion() error: %v", err)
	}
	if got := store.SetupVersion(); got != "2.0.0" {
		t.Errorf("SetupVersion() = %q, want %q", got, "2.0.0")
	}
}
