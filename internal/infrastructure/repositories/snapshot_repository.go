package repositories

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vend-service/vend_service/internal/domain/entities"
)

// EngineState is the single durable artifact of the reconciliation engine.
// It is written after every state-changing step and loaded once at startup.
type EngineState struct {
	Orders         map[string]*entities.Order `json:"orders"`
	Processed      []entities.ProcessedRecord `json:"processed_transfer_ids"`
	LastSeenCursor int64                      `json:"last_seen_cursor"`
	OffsetSeq      int64                      `json:"offset_seq"`
}

// NewEngineState returns an empty state.
func NewEngineState() *EngineState {
	return &EngineState{Orders: make(map[string]*entities.Order)}
}

// SnapshotRepository persists EngineState as a JSON document. Writes are
// all-or-nothing: the document goes to a temp file in the same directory
// and is renamed over the target, so a crash can never leave a partial
// snapshot observable.
type SnapshotRepository struct {
	path string
}

// NewSnapshotRepository creates a repository writing to the given path.
// The parent directory must exist and be writable; that is verified here
// so an unusable state path fails at startup, not mid-cycle.
func NewSnapshotRepository(path string) (*SnapshotRepository, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}

	dir := filepath.Dir(path)
	probe, err := os.CreateTemp(dir, ".state-probe-*")
	if err != nil {
		return nil, fmt.Errorf("snapshot directory not writable: %w", err)
	}
	probe.Close()
	os.Remove(probe.Name())

	return &SnapshotRepository{path: path}, nil
}

// Load reads the persisted state. A missing file yields an empty state.
func (r *SnapshotRepository) Load() (*EngineState, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewEngineState(), nil
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var state EngineState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if state.Orders == nil {
		state.Orders = make(map[string]*entities.Order)
	}
	return &state, nil
}

// Save atomically replaces the persisted state.
func (r *SnapshotRepository) Save(state *EngineState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp snapshot: %w", err)
	}

	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}
