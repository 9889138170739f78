// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import "fmt"

// Status is the state of a run.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusExtracting Status = "extracting"
	StatusValidating Status = "validating"
	StatusExpanding  Status = "expanding"
	StatusRanking    Status = "ranking"
	StatusFormatting Status = "formatting"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Phase names one step of a run. Phases share their names with the
// matching in-progress Status.
type Phase string

const (
	PhaseNone       Phase = ""
	PhaseExtracting Phase = "extracting"
	PhaseValidating Phase = "validating"
	PhaseExpanding  Phase = "expanding"
	PhaseRanking    Phase = "ranking"
	PhaseFormatting Phase = "formatting"
)

// Phases lists the phases in execution order.
var Phases = []Phase{PhaseExtracting, PhaseValidating, PhaseExpanding, PhaseRanking, PhaseFormatting}

// checkpointFiles maps each phase to the file holding its output.
var checkpointFiles = map[Phase]string{
	PhaseExtracting: "phase1_suggestions.json",
	PhaseValidating: "phase2_validated.json",
	PhaseExpanding:  "phase3_expanded.json",
	PhaseRanking:    "phase4_final_papers.json",
	PhaseFormatting: "phase5_citations.json",
}

// CheckpointFile returns the checkpoint file name of p.
func CheckpointFile(p Phase) string { return checkpointFiles[p] }

// Status returns the in-progress status of p.
func (p Phase) Status() Status { return Status(p) }

// Valid reports whether p is one of Phases.
func (p Phase) Valid() bool {
	_, ok := checkpointFiles[p]
	return ok
}

// NextPhase returns the phase that follows the last completed one and
// whether any remains. PhaseNone as input means nothing completed yet.
func NextPhase(lastCompleted Phase) (Phase, bool, error) {
	if lastCompleted == PhaseNone {
		return Phases[0], true, nil
	}
	if !lastCompleted.Valid() {
		return PhaseNone, false, fmt.Errorf("unknown phase %q", lastCompleted)
	}
	for i, p := range Phases {
		if p == lastCompleted {
			if i == len(Phases)-1 {
				return PhaseNone, false, nil
			}
			return Phases[i+1], true, nil
		}
	}
	return PhaseNone, false, nil
}

// PhaseError reports the phase a run failed in.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }
