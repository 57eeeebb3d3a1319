package mountaincar

import (
	"testing"

	"github.com/samuelfneumann/ddpg/environment"
	"github.com/samuelfneumann/ddpg/timestep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

func TestMountainCarReachesGoal(t *testing.T) {
	// Start right next to the goal, moving right
	starter := environment.NewUniformStarter([]r1.Interval{
		{Min: GoalPosition - 0.01, Max: GoalPosition - 0.005},
		{Min: MaxSpeed - 1e-3, Max: MaxSpeed},
	}, 1)
	task, err := NewGoal(starter, 100, GoalPosition)
	require.NoError(t, err)
	env, _, err := New(task, 1.0)
	require.NoError(t, err)

	step, last, err := env.Step(mat.NewVecDense(1, []float64{1}))
	require.NoError(t, err)
	assert.True(t, last)
	assert.True(t, step.Terminal())
	assert.Equal(t, timestep.TerminalStateReached, step.EndType())
	assert.Equal(t, 0.0, step.Reward)
}

func TestMountainCarTimeout(t *testing.T) {
	starter := environment.NewUniformStarter([]r1.Interval{
		{Min: -0.6, Max: -0.4},
		{Min: 0, Max: 1e-4},
	}, 1)
	task, err := NewGoal(starter, 3, GoalPosition)
	require.NoError(t, err)
	env, first, err := New(task, 1.0)
	require.NoError(t, err)
	assert.True(t, first.First())

	var step timestep.TimeStep
	for i := 0; i < 3; i++ {
		step, _, err = env.Step(mat.NewVecDense(1, []float64{0}))
		require.NoError(t, err)
		assert.Equal(t, -1.0, step.Reward)
	}
	assert.True(t, step.Last())
	assert.False(t, step.Terminal())
	assert.Equal(t, timestep.Timeout, step.EndType())
}
