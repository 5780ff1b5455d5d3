package belief

import "github.com/samuelfneumann/despot/scenario"

// ResampleConfig configures the resampling policies tried, in order,
// when a belief's live particle set dies during Update.
type ResampleConfig struct {
	// Starter, if non-nil, enables the prior-filtering policies.
	Starter Starter

	// InitialPool, if non-empty, enables prior filtering restricted to
	// a fixed pool of candidate states (faster, may fail).
	InitialPool []scenario.State

	// Indexer, if non-nil, enables state-indexer inversion for the
	// last (action, observation) pair.
	Indexer Indexer

	// PoolSize bounds how many candidates prior filtering draws
	// before giving up.
	PoolSize int

	// HistoryStart lets an incremental update replay only the tail of
	// the history (from index HistoryStart) instead of the whole
	// thing, for efficiency. 0 replays the full history.
	HistoryStart int
}

func defaultResampleConfig() ResampleConfig {
	return ResampleConfig{PoolSize: 2000}
}

// ResampleOption configures a ResampleConfig.
type ResampleOption func(*ResampleConfig)

// WithStarter enables prior-filtering-by-history resampling.
func WithStarter(s Starter) ResampleOption {
	return func(c *ResampleConfig) { c.Starter = s }
}

// WithInitialPool enables prior-filtering-by-initial-pool resampling.
func WithInitialPool(pool []scenario.State) ResampleOption {
	return func(c *ResampleConfig) { c.InitialPool = pool }
}

// WithIndexer enables state-indexer-inversion resampling.
func WithIndexer(ix Indexer) ResampleOption {
	return func(c *ResampleConfig) { c.Indexer = ix }
}

// WithPoolSize overrides the candidate pool size prior filtering
// draws before giving up.
func WithPoolSize(n int) ResampleOption {
	return func(c *ResampleConfig) { c.PoolSize = n }
}

// WithHistoryStart lets prior filtering replay only the history tail
// starting at index start, for efficiency during incremental updates.
func WithHistoryStart(start int) ResampleOption {
	return func(c *ResampleConfig) { c.HistoryStart = start }
}

// resample tries each enabled policy in turn and returns the first
// that recovers a non-empty, correctly weighted particle set.
func resample(p Problem, b *Belief, action, obs int, cfg ResampleConfig) ([]WeightedState, bool) {
	if cfg.Starter != nil {
		if ws, ok := priorFilterByHistory(p, cfg.Starter, b, action, obs, cfg); ok {
			return ws, true
		}
	}
	if len(cfg.InitialPool) > 0 {
		if ws, ok := priorFilterByPool(p, cfg.InitialPool, b, action, obs, cfg); ok {
			return ws, true
		}
	}
	if cfg.Indexer != nil {
		if ws, ok := stateIndexerInversion(p, cfg.Indexer, action, obs); ok {
			return ws, true
		}
	}
	return nil, false
}

// priorFilterByHistory draws candidate states from the prior and
// simulates each through the belief's entire history (or the tail
// from cfg.HistoryStart, for efficiency), accepting candidates whose
// simulated observations match the recorded ones.
func priorFilterByHistory(p Problem, starter Starter, b *Belief, action, obs int, cfg ResampleConfig) ([]WeightedState, bool) {
	history := append(b.History(), HistoryEntry{Action: action, Obs: obs})
	start := cfg.HistoryStart
	if start < 0 || start > len(history) {
		start = 0
	}

	var accepted []WeightedState
	for i := 0; i < cfg.PoolSize; i++ {
		candidate := starter.CreateStartState(b.stream.Rand())
		if final, ok := simulateThrough(p, candidate, history[start:], b.stream); ok {
			accepted = append(accepted, WeightedState{State: final, Weight: 1})
		}
	}
	if len(accepted) == 0 {
		return nil, false
	}
	return accepted, true
}

// priorFilterByPool is identical to priorFilterByHistory but draws
// candidates only from a fixed initial pool rather than the full
// prior, trading completeness for speed.
func priorFilterByPool(p Problem, pool []scenario.State, b *Belief, action, obs int, cfg ResampleConfig) ([]WeightedState, bool) {
	history := append(b.History(), HistoryEntry{Action: action, Obs: obs})
	start := cfg.HistoryStart
	if start < 0 || start > len(history) {
		start = 0
	}

	var accepted []WeightedState
	for _, candidate := range pool {
		if final, ok := simulateThrough(p, candidate, history[start:], b.stream); ok {
			accepted = append(accepted, WeightedState{State: final, Weight: 1})
		}
	}
	if len(accepted) == 0 {
		return nil, false
	}
	return accepted, true
}

// simulateThrough replays candidate through the given history tail
// using freshly sampled observations. It returns the state at the end
// of the replay (the posterior state the recovered belief must hold)
// and whether every simulated observation matched the recorded one.
func simulateThrough(p Problem, candidate scenario.State, history []HistoryEntry, stream interface{ Float64() float64 }) (scenario.State, bool) {
	state := candidate
	for _, step := range history {
		u := stream.Float64()
		_, next, obs, _ := p.Step(state, u, step.Action)
		if obs != step.Obs {
			return nil, false
		}
		state = next
	}
	return state, true
}

// stateIndexerInversion enumerates every discrete state and weights
// it by the observation probability it would have produced under the
// last (action, observation) pair, used as a last resort when the
// problem exposes a StateIndexer.
func stateIndexerInversion(p Problem, indexer Indexer, action, obs int) ([]WeightedState, bool) {
	n := indexer.NumStates()
	var accepted []WeightedState
	for i := 0; i < n; i++ {
		s := indexer.StateFromIndex(i)
		prob := p.ObsProbability(obs, s, action)
		if prob > MinWeight {
			accepted = append(accepted, WeightedState{State: s, Weight: prob})
		}
	}
	if len(accepted) == 0 {
		return nil, false
	}
	return accepted, true
}
