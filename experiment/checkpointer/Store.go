package checkpointer

import "context"

// CheckpointStore stores encoded checkpoints of a run
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, runID string, step int,
		payload []byte) error
}

// StoreSaver returns a SaveFunc that stores checkpoints of run runID
// in s
func StoreSaver(ctx context.Context, s CheckpointStore,
	runID string) SaveFunc {
	return func(step int, data []byte) error {
		return s.SaveCheckpoint(ctx, runID, step, data)
	}
}
