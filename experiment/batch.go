// Package experiment runs many episodes of a Problem Model against a
// planner and tracks the returns: a progress bar over episodes, with
// trackers that cache whatever data the caller wants persisted.
package experiment

import (
	"context"
	"fmt"
	"time"

	"github.com/samuelfneumann/despot/eval"
	"github.com/samuelfneumann/progressbar"
)

// Tracker caches data from each completed episode and persists it on
// Save.
type Tracker interface {
	Track(result eval.EpisodeResult)
	Save() error
}

// Batch runs a fixed number of episodes of an Evaluator, displaying a
// progress bar and feeding each completed episode to the registered
// trackers.
type Batch struct {
	evaluator   *eval.Evaluator
	numEpisodes int
	maxSteps    int
	trackers    []Tracker
	progBar     *progressbar.ProgressBar
}

// NewBatch returns a Batch that will run numEpisodes episodes of e,
// each truncated at maxSteps steps.
func NewBatch(e *eval.Evaluator, numEpisodes, maxSteps int, trackers []Tracker) *Batch {
	progBar := progressbar.New(50, numEpisodes, time.Second, true)
	return &Batch{
		evaluator:   e,
		numEpisodes: numEpisodes,
		maxSteps:    maxSteps,
		trackers:    trackers,
		progBar:     progBar,
	}
}

// Register adds a Tracker to the batch.
func (b *Batch) Register(t Tracker) {
	b.trackers = append(b.trackers, t)
}

// Run executes every episode in sequence, tracking each result and
// returning the aggregate Summary at the end.
func (b *Batch) Run(ctx context.Context) (eval.Summary, error) {
	b.progBar.Display()
	defer b.progBar.Close()

	discounted := make([]float64, 0, b.numEpisodes)
	undiscounted := make([]float64, 0, b.numEpisodes)
	steps := make([]float64, 0, b.numEpisodes)

	for i := 0; i < b.numEpisodes; i++ {
		if ctx.Err() != nil {
			break
		}
		result, err := b.evaluator.RunEpisode(ctx, i, b.maxSteps)
		if err != nil {
			return eval.Summary{}, fmt.Errorf("experiment: Run: episode %d: %w", i, err)
		}

		for _, t := range b.trackers {
			t.Track(result)
		}

		discounted = append(discounted, result.DiscountedReturn)
		undiscounted = append(undiscounted, result.UndiscountedReturn)
		steps = append(steps, float64(result.Steps))

		b.progBar.Increment()
		b.progBar.AddMessage(fmt.Sprintf("episode %d return: %.2f", i, result.DiscountedReturn))
	}

	return summarize(discounted, undiscounted, steps), nil
}

// Save persists every registered tracker's cached data.
func (b *Batch) Save() error {
	for _, t := range b.trackers {
		if err := t.Save(); err != nil {
			return fmt.Errorf("experiment: Save: %w", err)
		}
	}
	return nil
}
