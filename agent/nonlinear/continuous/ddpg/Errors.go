package ddpg

import "github.com/samuelfneumann/ddpg/expreplay"

// Errors reported by the agent. They are the replay buffer's sentinels
// so that errors.Is matches errors from either package.
var (
	ErrInvalidArgument = expreplay.ErrInvalidArgument
	ErrShapeMismatch   = expreplay.ErrShapeMismatch
)
