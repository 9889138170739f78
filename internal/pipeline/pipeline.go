// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs one paragraph through extraction, validation,
// author expansion, ranking and formatting. Each phase's output is
// checkpointed in the run directory so a failed run can be resumed from
// the last completed phase. Nothing is retried automatically.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/citation-engine/internal/cite"
	"github.com/pdiddy/citation-engine/internal/expand"
	"github.com/pdiddy/citation-engine/internal/rank"
	"github.com/pdiddy/citation-engine/internal/registry"
	"github.com/pdiddy/citation-engine/internal/suggest"
	"github.com/pdiddy/citation-engine/internal/validate"
	"github.com/pdiddy/citation-engine/pkg/types"
)

const runBibFile = "citations.bib"

// IdeaExtractor proposes ideas for a paragraph.
type IdeaExtractor interface {
	Extract(ctx context.Context, paragraph string) (suggest.Parsed, error)
}

// CandidateValidator confirms ideas against the search index.
type CandidateValidator interface {
	Validate(ctx context.Context, ideas []types.Idea) (validate.Output, error)
}

// AuthorExpander grows the candidate pool with works by known authors.
type AuthorExpander interface {
	Expand(ctx context.Context, paragraph string, validated []types.Paper, seen *expand.AuthorSet) (expand.Output, error)
}

// Observer receives phase timing events. Implementations must be safe for
// concurrent use.
type Observer interface {
	PhaseStarted(runID string, phase Phase)
	PhaseFinished(runID string, phase Phase, elapsed time.Duration, err error)
}

// Orchestrator drives runs. One Orchestrator may run many paragraphs
// concurrently; every run keeps its state in its own Run and directory.
type Orchestrator struct {
	Extractor IdeaExtractor
	Validator CandidateValidator
	Expander  AuthorExpander
	Ranker    rank.Ranker
	Formatter cite.Formatter

	// Registry, when set, reconciles keys with the cumulative
	// bibliography and records runs.
	Registry *registry.Registry

	// ResultsDir holds the run directories.
	ResultsDir string

	// Progress receives human-readable phase lines. Optional.
	Progress io.Writer
	Logger   *slog.Logger
	Observer Observer
}

// Run is the per-run context. Authors holds the authors already expanded
// in this run.
type Run struct {
	ID        string
	Dir       string
	Paragraph string
	Authors   *expand.AuthorSet
}

// Outcome is the result of Run or Resume.
type Outcome struct {
	RunID         string
	Dir           string
	State         Status
	LastCompleted Phase
	FailedPhase   Phase
	// Result is set when State is StatusDone.
	Result *types.CitationResult
	Err    error
	// Warnings lists localized failures that did not stop the run.
	Warnings []string
}

// Done reports whether the run completed.
func (o *Outcome) Done() bool { return o.State == StatusDone }

// phaseData carries each phase's output to the next one.
type phaseData struct {
	parsed    suggest.Parsed
	validated validate.Output
	expanded  expand.Output
	ranking   rank.Ranking
	result    types.CitationResult
}

// NewRunID returns a run identifier: a UTC timestamp and a short random
// suffix, e.g. "20260102T030405Z-1a2b3c4d".
func NewRunID(now time.Time) string {
	return now.UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8]
}

// Run processes paragraph in a fresh run directory. The returned error is
// a *PhaseError when a phase failed; the Outcome is non-nil whenever the
// run directory was created.
func (o *Orchestrator) Run(ctx context.Context, paragraph string) (*Outcome, error) {
	paragraph = strings.TrimSpace(paragraph)
	if paragraph == "" {
		return nil, errors.New("empty paragraph")
	}

	run := &Run{
		ID:        NewRunID(time.Now()),
		Paragraph: paragraph,
		Authors:   expand.NewAuthorSet(),
	}
	run.Dir = filepath.Join(o.ResultsDir, run.ID)
	if err := os.MkdirAll(run.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}

	now := time.Now().UTC()
	st := &State{
		RunID:     run.ID,
		Paragraph: paragraph,
		State:     StatusIdle,
		CreatedAt: now,
	}
	if err := writeState(run.Dir, st); err != nil {
		return nil, fmt.Errorf("writing run state: %w", err)
	}
	o.record(ctx, run, st, 0)

	return o.execute(ctx, run, st, PhaseExtracting, &phaseData{})
}

// Resume continues the run stored in dir from the phase after its last
// completed one. A run that is already done returns its stored result.
func (o *Orchestrator) Resume(ctx context.Context, dir string) (*Outcome, error) {
	st, err := ReadState(dir)
	if err != nil {
		return nil, err
	}
	run := &Run{ID: st.RunID, Dir: dir, Paragraph: st.Paragraph, Authors: expand.NewAuthorSet()}

	next, remaining, err := NextPhase(st.LastCompleted)
	if err != nil {
		return nil, err
	}
	if !remaining {
		res, err := ReadCheckpoint[types.CitationResult](dir, PhaseFormatting)
		if err != nil {
			return nil, err
		}
		return &Outcome{
			RunID: st.RunID, Dir: dir, State: StatusDone,
			LastCompleted: PhaseFormatting, Result: &res,
		}, nil
	}

	data := &phaseData{}
	if err := loadInput(dir, st.LastCompleted, data); err != nil {
		return nil, fmt.Errorf("loading %s output: %w", st.LastCompleted, err)
	}

	st.FailedPhase = PhaseNone
	st.Error = ""
	o.logger().Info("resuming run", "run", run.ID, "phase", next)
	fmt.Fprintf(o.progress(), "resuming %s at %s\n", run.ID, next)
	return o.execute(ctx, run, &st, next, data)
}

// loadInput reads the checkpoint of the last completed phase into data.
func loadInput(dir string, last Phase, data *phaseData) error {
	var err error
	switch last {
	case PhaseNone:
	case PhaseExtracting:
		data.parsed, err = ReadCheckpoint[suggest.Parsed](dir, last)
	case PhaseValidating:
		data.validated, err = ReadCheckpoint[validate.Output](dir, last)
	case PhaseExpanding:
		data.expanded, err = ReadCheckpoint[expand.Output](dir, last)
	case PhaseRanking:
		data.ranking, err = ReadCheckpoint[rank.Ranking](dir, last)
	default:
		err = fmt.Errorf("unexpected phase %q", last)
	}
	return err
}

// execute runs phases from start through formatting.
func (o *Orchestrator) execute(ctx context.Context, run *Run, st *State, start Phase, data *phaseData) (*Outcome, error) {
	out := &Outcome{RunID: run.ID, Dir: run.Dir, LastCompleted: st.LastCompleted}
	w := o.progress()
	log := o.logger().With("run", run.ID)

	begin := false
	for _, phase := range Phases {
		if phase == start {
			begin = true
		}
		if !begin {
			continue
		}

		st.State = phase.Status()
		if err := writeState(run.Dir, st); err != nil {
			return o.fail(ctx, run, st, out, phase, fmt.Errorf("writing run state: %w", err))
		}
		fmt.Fprintf(w, "%s\n", phase)
		log.Debug("phase started", "phase", phase)
		if o.Observer != nil {
			o.Observer.PhaseStarted(run.ID, phase)
		}

		t0 := time.Now()
		err := o.step(ctx, run, phase, data, out)
		if err == nil {
			err = o.checkpoint(run, phase, data)
		}
		elapsed := time.Since(t0)
		if o.Observer != nil {
			o.Observer.PhaseFinished(run.ID, phase, elapsed, err)
		}
		if err != nil {
			return o.fail(ctx, run, st, out, phase, err)
		}
		log.Info("phase finished", "phase", phase, "elapsed", elapsed)

		st.LastCompleted = phase
		out.LastCompleted = phase
		if err := writeState(run.Dir, st); err != nil {
			return o.fail(ctx, run, st, out, phase, fmt.Errorf("writing run state: %w", err))
		}
	}

	st.State = StatusDone
	if err := writeState(run.Dir, st); err != nil {
		log.Warn("writing final run state", "error", err)
	}
	out.State = StatusDone
	res := data.result
	out.Result = &res
	o.record(ctx, run, st, len(res.Entries))
	fmt.Fprintf(w, "done    %s: %d citations\n", run.ID, len(res.Entries))
	return out, nil
}

func (o *Orchestrator) fail(ctx context.Context, run *Run, st *State, out *Outcome, phase Phase, err error) (*Outcome, error) {
	perr := &PhaseError{Phase: phase, Err: err}
	st.State = StatusFailed
	st.FailedPhase = phase
	st.Error = err.Error()
	if werr := writeState(run.Dir, st); werr != nil {
		o.logger().Warn("writing failed run state", "run", run.ID, "error", werr)
	}
	o.record(context.WithoutCancel(ctx), run, st, 0)

	out.State = StatusFailed
	out.FailedPhase = phase
	out.Err = perr
	o.logger().Error("phase failed", "run", run.ID, "phase", phase, "error", err)
	fmt.Fprintf(o.progress(), "failed  %s in %s: %v (run preserved in %s)\n", run.ID, phase, err, run.Dir)
	return out, perr
}

// step executes one phase, reading its input from data and storing its
// output there.
func (o *Orchestrator) step(ctx context.Context, run *Run, phase Phase, data *phaseData, out *Outcome) error {
	w := o.progress()
	switch phase {
	case PhaseExtracting:
		parsed, err := o.Extractor.Extract(ctx, run.Paragraph)
		if err != nil {
			return err
		}
		if parsed.Status == suggest.ParseMalformed {
			out.Warnings = append(out.Warnings, "idea list could not be parsed; continuing with no ideas")
		}
		data.parsed = parsed
		fmt.Fprintf(w, "  %d ideas\n", len(parsed.Ideas))

	case PhaseValidating:
		v, err := o.Validator.Validate(ctx, data.parsed.Ideas)
		if err != nil {
			return err
		}
		for _, f := range v.Failures {
			out.Warnings = append(out.Warnings, fmt.Sprintf("validation of %q failed: %s", f.Title, f.Error))
		}
		data.validated = v
		fmt.Fprintf(w, "  %d validated, %d rejected, %d failed\n", len(v.Matches), v.Rejected, len(v.Failures))

	case PhaseExpanding:
		e, err := o.Expander.Expand(ctx, run.Paragraph, data.validated.Papers(), run.Authors)
		if err != nil {
			return err
		}
		for _, f := range e.Failures {
			out.Warnings = append(out.Warnings, fmt.Sprintf("expansion of author %q failed: %s", f.Author, f.Error))
		}
		data.expanded = e
		fmt.Fprintf(w, "  %d authors queried, %d papers added\n", len(e.Queried), e.Added)

	case PhaseRanking:
		var papers []types.Paper
		if data.expanded.Pool != nil {
			papers = data.expanded.Pool.Papers()
		}
		data.ranking = o.Ranker.Rank(run.Paragraph, papers)
		fmt.Fprintf(w, "  %d of %d papers selected\n", len(data.ranking.Top), len(papers))

	case PhaseFormatting:
		res := o.Formatter.Format(run.Paragraph, data.ranking.Top)
		if o.Registry != nil {
			var err error
			res, err = o.Registry.Reconcile(ctx, run.ID, res)
			if err != nil {
				return fmt.Errorf("updating bibliography: %w", err)
			}
		}
		if err := os.WriteFile(filepath.Join(run.Dir, runBibFile), []byte(joinEntries(res)), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", runBibFile, err)
		}
		data.result = res
	}
	return ctx.Err()
}

func (o *Orchestrator) checkpoint(run *Run, phase Phase, data *phaseData) error {
	var err error
	switch phase {
	case PhaseExtracting:
		err = writeCheckpoint(run.Dir, run.ID, phase, data.parsed)
	case PhaseValidating:
		err = writeCheckpoint(run.Dir, run.ID, phase, data.validated)
	case PhaseExpanding:
		err = writeCheckpoint(run.Dir, run.ID, phase, data.expanded)
	case PhaseRanking:
		err = writeCheckpoint(run.Dir, run.ID, phase, data.ranking)
	case PhaseFormatting:
		err = writeCheckpoint(run.Dir, run.ID, phase, data.result)
	}
	if err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	return nil
}

// record mirrors the run state into the registry. Failures are logged
// only; the run directory remains the source of truth.
func (o *Orchestrator) record(ctx context.Context, run *Run, st *State, entries int) {
	if o.Registry == nil {
		return
	}
	rec := registry.RunRecord{
		ID:          run.ID,
		Dir:         run.Dir,
		Paragraph:   run.Paragraph,
		State:       string(st.State),
		FailedPhase: string(st.FailedPhase),
		Error:       st.Error,
		Entries:     entries,
		CreatedAt:   st.CreatedAt,
	}
	if err := o.Registry.RecordRun(ctx, rec); err != nil {
		o.logger().Warn("recording run", "run", run.ID, "error", err)
	}
}

func (o *Orchestrator) progress() io.Writer {
	if o.Progress == nil {
		return io.Discard
	}
	return o.Progress
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

func joinEntries(res types.CitationResult) string {
	if len(res.Entries) == 0 {
		return ""
	}
	return strings.Join(res.BibTeX(), "\n\n") + "\n"
}
