package pendulum

import (
	"math"
	"testing"

	"github.com/samuelfneumann/ddpg/environment"
	"github.com/samuelfneumann/ddpg/timestep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

func newPendulum(t *testing.T, maxSteps int) (*Pendulum, timestep.TimeStep) {
	t.Helper()
	starter := environment.NewUniformStarter([]r1.Interval{
		{Min: -math.Pi, Max: math.Pi},
		{Min: -1, Max: 1},
	}, 1)
	env, first, err := New(NewSwingUp(starter, maxSteps), 0.99)
	require.NoError(t, err)
	return env, first
}

func TestPendulumEpisode(t *testing.T) {
	env, first := newPendulum(t, 5)
	assert.True(t, first.First())
	assert.Equal(t, 2, env.ObservationSpec().Shape.Len())
	assert.Equal(t, 1, env.ActionSpec().Shape.Len())

	action := mat.NewVecDense(1, []float64{10})
	for i := 1; i <= 5; i++ {
		step, last, err := env.Step(action)
		require.NoError(t, err)
		assert.Equal(t, i, step.Number)
		assert.Equal(t, i == 5, last)

		th := step.Observation.AtVec(0)
		assert.True(t, th >= -math.Pi && th < math.Pi)
		assert.LessOrEqual(t, math.Abs(step.Observation.AtVec(1)), SpeedBound)
		assert.InDelta(t, math.Cos(th), step.Reward, 1e-12)

		if last {
			assert.Equal(t, timestep.Timeout, step.EndType())
			assert.False(t, step.Terminal())
		}
	}

	_, _, err := env.Step(mat.NewVecDense(2, nil))
	assert.Error(t, err)

	reset, err := env.Reset()
	require.NoError(t, err)
	assert.True(t, reset.First())
	assert.Equal(t, 0, reset.Number)
}

func TestNormalizeAngle(t *testing.T) {
	assert.InDelta(t, 0, normalizeAngle(2*math.Pi), 1e-12)
	assert.InDelta(t, -math.Pi+0.1, normalizeAngle(math.Pi+0.1), 1e-12)
	assert.InDelta(t, math.Pi-0.1, normalizeAngle(-math.Pi-0.1), 1e-12)
	assert.InDelta(t, 1, normalizeAngle(1), 1e-12)
}
