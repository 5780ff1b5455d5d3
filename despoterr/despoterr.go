// Package despoterr defines the error kinds the planner can surface,
// distinguished at the evaluator boundary with errors.Is/errors.As.
package despoterr

import "errors"

// Sentinel error kinds, wrapped with fmt.Errorf("...: %w", Err*) at
// the point of detection so callers can recover context with Error()
// while still matching the kind with errors.Is.
var (
	// ErrConfig marks an invalid planner configuration: a bad bound
	// name, non-positive num_scenarios, discount out of range, or
	// similar. Reported at planner construction; the planner refuses
	// to start.
	ErrConfig = errors.New("despot: configuration error")

	// ErrModel marks a Problem Model contract violation: negative
	// probability, an observation whose probability sums to zero
	// across all live scenarios, or non-finite reward. Surfaced as a
	// hard failure from Plan; the driver should abort the episode.
	ErrModel = errors.New("despot: model violation")

	// ErrCollapsed marks belief collapse: every particle died during
	// Update and no resampling policy recovered a non-empty set. This
	// is recovered locally — the planner falls back to a default
	// action and the episode continues.
	ErrCollapsed = errors.New("despot: belief collapsed")
)
