// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// BatchSummary counts batch outcomes.
type BatchSummary struct {
	Done   int
	Failed int
	// Empty counts completed runs that produced no citations.
	Empty int
}

// Total returns the number of paragraphs processed.
func (s BatchSummary) Total() int { return s.Done + s.Failed }

// BatchItem is the outcome of one paragraph in a batch.
type BatchItem struct {
	Index     int
	Paragraph string
	Outcome   *Outcome
	Err       error
}

// RunBatch runs each paragraph as an independent run, at most parallel at
// a time. A failing paragraph never stops the others. Items are returned
// in input order.
func (o *Orchestrator) RunBatch(ctx context.Context, paragraphs []string, parallel int) ([]BatchItem, BatchSummary) {
	if parallel <= 0 {
		parallel = 1
	}
	items := make([]BatchItem, len(paragraphs))

	var g errgroup.Group
	g.SetLimit(parallel)
	for i, p := range paragraphs {
		items[i] = BatchItem{Index: i, Paragraph: p}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				items[i].Err = err
				return nil
			}
			out, err := o.Run(ctx, p)
			items[i].Outcome = out
			items[i].Err = err
			return nil
		})
	}
	_ = g.Wait()

	var sum BatchSummary
	for _, it := range items {
		switch {
		case it.Failed():
			sum.Failed++
		default:
			sum.Done++
			if len(it.Outcome.Result.Entries) == 0 {
				sum.Empty++
			}
		}
	}
	return items, sum
}

// Failed reports whether the item did not complete.
func (it BatchItem) Failed() bool {
	return it.Err != nil || it.Outcome == nil || !it.Outcome.Done()
}

// FailedPhase returns the phase the item failed in, or PhaseNone.
func (it BatchItem) FailedPhase() Phase {
	var perr *PhaseError
	if errors.As(it.Err, &perr) {
		return perr.Phase
	}
	return PhaseNone
}
