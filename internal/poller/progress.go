package poller

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Per-order processing states. Absence means the order is unseen.
const (
	StateProcessing = "processing"
	StateDone       = "done"
)

// Progress is the durable {orderID: state} map that survives restarts.
// Writes go through a temp file and an atomic rename so a crash never
// leaves a truncated file behind.
type Progress struct {
	path   string
	states map[string]string
}

// LoadProgress reads the progress file, treating a missing or unreadable
// file as an empty map.
func LoadProgress(path string) (*Progress, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create progress directory: %w", err)
		}
	}

	p := &Progress{path: path, states: make(map[string]string)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read progress file: %w", err)
	}
	if err := json.Unmarshal(data, &p.states); err != nil {
		// A corrupt file starts over rather than blocking the loop.
		p.states = make(map[string]string)
	}
	return p, nil
}

// State returns the recorded state for an order, empty when unseen.
func (p *Progress) State(orderID string) string {
	return p.states[orderID]
}

// Set records a state transition and persists the whole map immediately.
func (p *Progress) Set(orderID, state string) error {
	p.states[orderID] = state
	return p.save()
}

func (p *Progress) save() error {
	data, err := json.MarshalIndent(p.states, "", "  ")
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write progress temp file: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("replace progress file: %w", err)
	}
	return nil
}
