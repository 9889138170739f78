// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// checkpointVersion is bumped when a checkpoint layout changes
// incompatibly. Older records are refused on resume.
const checkpointVersion = 1

const stateFile = "state.json"

// Checkpoint is the on-disk record of one phase's output.
type Checkpoint[T any] struct {
	Version   int       `json:"version"`
	RunID     string    `json:"run_id"`
	Phase     Phase     `json:"phase"`
	CreatedAt time.Time `json:"created_at"`
	Data      T         `json:"data"`
}

// State is the persisted status of a run. Resume decisions are made from
// this record alone.
type State struct {
	Version       int       `json:"version"`
	RunID         string    `json:"run_id"`
	Paragraph     string    `json:"paragraph"`
	State         Status    `json:"state"`
	LastCompleted Phase     `json:"last_completed"`
	FailedPhase   Phase     `json:"failed_phase,omitempty"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func writeCheckpoint[T any](dir, runID string, phase Phase, data T) error {
	rec := Checkpoint[T]{
		Version:   checkpointVersion,
		RunID:     runID,
		Phase:     phase,
		CreatedAt: time.Now().UTC(),
		Data:      data,
	}
	return writeJSON(filepath.Join(dir, CheckpointFile(phase)), rec)
}

// ReadCheckpoint loads the output of phase from a run directory.
func ReadCheckpoint[T any](dir string, phase Phase) (T, error) {
	var rec Checkpoint[T]
	path := filepath.Join(dir, CheckpointFile(phase))
	data, err := os.ReadFile(path)
	if err != nil {
		return rec.Data, fmt.Errorf("reading checkpoint: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec.Data, fmt.Errorf("parsing %s: %w", path, err)
	}
	if rec.Version != checkpointVersion {
		return rec.Data, fmt.Errorf("%s: unsupported checkpoint version %d", path, rec.Version)
	}
	if rec.Phase != phase {
		return rec.Data, fmt.Errorf("%s: holds phase %q, want %q", path, rec.Phase, phase)
	}
	return rec.Data, nil
}

// ReadState loads state.json from a run directory.
func ReadState(dir string) (State, error) {
	var st State
	data, err := os.ReadFile(filepath.Join(dir, stateFile))
	if err != nil {
		return st, fmt.Errorf("reading run state: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("parsing run state: %w", err)
	}
	if st.Version != checkpointVersion {
		return st, fmt.Errorf("unsupported run state version %d", st.Version)
	}
	return st, nil
}

func writeState(dir string, st *State) error {
	st.Version = checkpointVersion
	st.UpdatedAt = time.Now().UTC()
	return writeJSON(filepath.Join(dir, stateFile), st)
}

// writeJSON writes v through a temp file and rename so a crash never
// leaves a truncated record.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp.Name(), path)
}
