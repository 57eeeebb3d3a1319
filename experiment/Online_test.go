package experiment

import (
	"context"
	"testing"

	"github.com/samuelfneumann/ddpg/environment/envconfig"
	"github.com/samuelfneumann/ddpg/experiment/checkpointer"
	"github.com/samuelfneumann/ddpg/experiment/trackers"
	ts "github.com/samuelfneumann/ddpg/timestep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// countingAgent takes the zero action and counts calls to each method
type countingAgent struct {
	actionDims   int
	first        int
	observations int
	steps        int
	episodes     int
	eval         bool
}

func (c *countingAgent) SelectAction(ts.TimeStep) (*mat.VecDense, error) {
	return mat.NewVecDense(c.actionDims, nil), nil
}

func (c *countingAgent) SetEval(eval bool) { c.eval = eval }
func (c *countingAgent) IsEval() bool      { return c.eval }

func (c *countingAgent) ObserveFirst(ts.TimeStep) error {
	c.first++
	return nil
}

func (c *countingAgent) Observe(mat.Vector, ts.TimeStep) error {
	c.observations++
	return nil
}

func (c *countingAgent) Step() error {
	c.steps++
	return nil
}

func (c *countingAgent) EndEpisode() { c.episodes++ }

func (c *countingAgent) MarshalCheckpoint() ([]byte, error) {
	return []byte{byte(c.steps)}, nil
}

func (c *countingAgent) UnmarshalCheckpoint([]byte) error { return nil }

func TestOnlineRun(t *testing.T) {
	e, _, err := envconfig.NewConfig(envconfig.Pendulum, envconfig.SwingUp,
		5, 0.99).Create(1)
	require.NoError(t, err)

	a := &countingAgent{actionDims: 1}
	lengths := trackers.NewEpisodeLength(t.TempDir() + "/lengths.bin")

	var saved []int
	c, err := checkpointer.NewNStep(4, a, func(step int, _ []byte) error {
		saved = append(saved, step)
		return nil
	})
	require.NoError(t, err)

	exp := NewOnline(e, a, 12, nil, nil)
	exp.Register(lengths)
	exp.RegisterCheckpointer(c)
	require.NoError(t, exp.Run(context.Background()))

	assert.Equal(t, uint(12), exp.Steps())
	assert.Equal(t, 3, a.first)
	assert.Equal(t, 12, a.observations)
	assert.Equal(t, 12, a.steps)
	assert.Equal(t, 3, a.episodes)
	assert.Equal(t, []int{5, 5}, lengths.Lengths())
	assert.Equal(t, []int{4, 8, 12}, saved)
	assert.Equal(t, a, exp.Agent())
	require.NoError(t, exp.Save())
}

func TestOnlineResume(t *testing.T) {
	e, _, err := envconfig.NewConfig(envconfig.Pendulum, envconfig.SwingUp,
		5, 0.99).Create(1)
	require.NoError(t, err)

	a := &countingAgent{actionDims: 1}
	exp := NewOnline(e, a, 20, nil, nil)
	exp.Resume(10, 2)
	require.NoError(t, exp.Run(context.Background()))

	assert.Equal(t, uint(20), exp.Steps())
	assert.Equal(t, 10, a.observations)
	assert.Equal(t, 2, a.episodes)
	assert.Equal(t, 4, exp.episodes)
}

func TestOnlineCancelled(t *testing.T) {
	e, _, err := envconfig.Default().Create(1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exp := NewOnline(e, &countingAgent{actionDims: 1}, 100, nil, nil)
	assert.ErrorIs(t, exp.Run(ctx), context.Canceled)
	assert.Zero(t, exp.Steps())
}

func TestConfigValidate(t *testing.T) {
	c := Config{Type: OnlineExp, MaxSteps: 10, EnvConf: envconfig.Default()}
	assert.Error(t, c.Validate())

	c.Type = "Offline"
	assert.Error(t, c.Validate())
}
