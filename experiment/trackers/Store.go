package trackers

import (
	"context"

	ts "github.com/samuelfneumann/ddpg/timestep"
)

// ReturnStore records the return of finished episodes of a run
type ReturnStore interface {
	SaveReturn(ctx context.Context, runID string, episode int, ret float64,
		steps int) error
}

// StoreReturn tracks episodic returns and writes each one to a
// ReturnStore as soon as its episode finishes
type StoreReturn struct {
	episode
	ctx      context.Context
	store    ReturnStore
	runID    string
	episodes int
}

// NewStoreReturn returns a new StoreReturn that records the returns
// of run runID in s
func NewStoreReturn(ctx context.Context, s ReturnStore,
	runID string) *StoreReturn {
	return NewStoreReturnFrom(ctx, s, runID, 0)
}

// NewStoreReturnFrom returns a new StoreReturn whose first finished
// episode is recorded as episode first. Resumed runs use it to append
// to the returns of earlier sessions.
func NewStoreReturnFrom(ctx context.Context, s ReturnStore, runID string,
	first int) *StoreReturn {
	return &StoreReturn{episode: newEpisode(), ctx: ctx, store: s,
		runID: runID, episodes: first}
}

// Track tracks the rewards seen on a timestep. Timesteps of an episode
// must be tracked in order.
func (s *StoreReturn) Track(step ts.TimeStep) error {
	last, err := s.track(step)
	if err != nil || !last {
		return err
	}

	err = s.store.SaveReturn(s.ctx, s.runID, s.episodes, s.currentReturn,
		step.Number)
	s.episodes++
	s.episode = newEpisode()
	return err
}

// Save does nothing since returns are written as episodes finish
func (s *StoreReturn) Save() error {
	return nil
}
