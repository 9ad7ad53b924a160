package poller

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadProgressMissingFile(t *testing.T) {
	p, err := LoadProgress(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("missing file must load empty: %v", err)
	}
	if got := p.State("o-1"); got != "" {
		t.Fatalf("fresh progress reported state %q", got)
	}
}

func TestProgressRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.json")

	p, err := LoadProgress(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := p.Set("o-1", StateProcessing); err != nil {
		t.Fatalf("set processing: %v", err)
	}
	if err := p.Set("o-2", StateDone); err != nil {
		t.Fatalf("set done: %v", err)
	}

	reloaded, err := LoadProgress(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := reloaded.State("o-1"); got != StateProcessing {
		t.Fatalf("o-1 state = %q, want %q", got, StateProcessing)
	}
	if got := reloaded.State("o-2"); got != StateDone {
		t.Fatalf("o-2 state = %q, want %q", got, StateDone)
	}
	if got := reloaded.State("o-3"); got != "" {
		t.Fatalf("unseen order reported state %q", got)
	}
}

func TestProgressCorruptFileStartsOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	p, err := LoadProgress(path)
	if err != nil {
		t.Fatalf("corrupt file must not block loading: %v", err)
	}
	if got := p.State("o-1"); got != "" {
		t.Fatalf("corrupt file must start empty, got %q", got)
	}
}

func TestProgressCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "processed.json")

	p, err := LoadProgress(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := p.Set("o-1", StateDone); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("progress file not written: %v", err)
	}
}

func TestProgressNoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "processed.json")

	p, err := LoadProgress(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := p.Set("o-1", StateDone); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file still present after save: %v", err)
	}
}
