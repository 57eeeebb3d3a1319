package ddpg

import (
	"errors"
	"math"
	"testing"

	"github.com/samuelfneumann/ddpg/expreplay"
	"github.com/samuelfneumann/ddpg/noise"
	ts "github.com/samuelfneumann/ddpg/timestep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

const (
	stubStateDims  = 2
	stubActionDims = 1
)

func stubConfig() Config {
	return Config{
		Gamma:          0.9,
		Tau:            0.1,
		BatchSize:      2,
		BufferCapacity: 4,
		NoiseSigma:     0.2,
		NoiseTheta:     noise.DefaultTheta,
		NoiseDt:        noise.DefaultDt,
	}
}

type stubAgent struct {
	*DDPG
	actor, actorTarget   *linearActor
	critic, criticTarget *linearCritic
	log                  *callLog
}

func newStubAgent(t *testing.T, c Config) stubAgent {
	t.Helper()

	log := &callLog{}
	s := stubAgent{
		actor: newLinearActor("actor", stubStateDims, stubActionDims, log,
			0.5, -0.5),
		actorTarget: newLinearActor("actorTarget", stubStateDims,
			stubActionDims, log, 3, 3),
		critic: newLinearCritic("critic", stubStateDims, stubActionDims,
			log, 1, 2, 3),
		criticTarget: newLinearCritic("criticTarget", stubStateDims,
			stubActionDims, log, -1, -1, -1),
		log: log,
	}

	ou, err := noise.NewDefaultOrnsteinUhlenbeck(make([]float64,
		stubActionDims), c.NoiseSigma, 1)
	require.NoError(t, err)

	s.DDPG, err = New(s.actor, s.actorTarget, s.critic, s.criticTarget, ou,
		c, 1)
	require.NoError(t, err)
	log.calls = nil
	return s
}

func TestNewInitializesTargets(t *testing.T) {
	s := newStubAgent(t, stubConfig())

	assert.Equal(t, s.actor.w, s.actorTarget.w)
	assert.Equal(t, s.critic.w, s.criticTarget.w)

	// Online and target weights must not alias
	s.actor.w[0] = 100
	assert.NotEqual(t, s.actor.w, s.actorTarget.w)
}

func TestNewInvalid(t *testing.T) {
	log := &callLog{}
	actor := newLinearActor("actor", stubStateDims, stubActionDims, log,
		0, 0)
	critic := newLinearCritic("critic", stubStateDims, stubActionDims, log,
		0, 0, 0)
	ou, err := noise.NewDefaultOrnsteinUhlenbeck([]float64{0}, 0.2, 1)
	require.NoError(t, err)

	for name, mutate := range map[string]func(*Config){
		"gamma":    func(c *Config) { c.Gamma = 0 },
		"tau":      func(c *Config) { c.Tau = 1.5 },
		"batch":    func(c *Config) { c.BatchSize = 0 },
		"capacity": func(c *Config) { c.BufferCapacity = 1 },
		"noise":    func(c *Config) { c.NoiseDt = 0 },
	} {
		c := stubConfig()
		mutate(&c)
		_, err := New(actor, actor, critic, critic, ou, c, 1)
		assert.Error(t, err, name)
	}

	wide, err := noise.NewDefaultOrnsteinUhlenbeck([]float64{0, 0}, 0.2, 1)
	require.NoError(t, err)
	_, err = New(actor, actor, critic, critic, wide, stubConfig(), 1)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestTrainWarmUp(t *testing.T) {
	s := newStubAgent(t, stubConfig())
	require.NoError(t, s.ObserveTransition(expreplay.Transition{
		State:     []float64{1, 0},
		Action:    []float64{0.5},
		Reward:    1,
		NextState: []float64{0, 1},
	}))

	actorW := append([]float64(nil), s.actor.w...)
	criticW := append([]float64(nil), s.critic.w...)
	targetW := append([]float64(nil), s.actorTarget.w...)
	criticTargetW := append([]float64(nil), s.criticTarget.w...)

	losses, err := s.Train()
	require.NoError(t, err)
	assert.Equal(t, Losses{}, losses)
	assert.Empty(t, s.log.calls)
	assert.Equal(t, actorW, s.actor.w)
	assert.Equal(t, criticW, s.critic.w)
	assert.Equal(t, targetW, s.actorTarget.w)
	assert.Equal(t, criticTargetW, s.criticTarget.w)
	assert.Zero(t, s.scope.live())
	assert.Zero(t, s.TrainSteps())
}

// fillStub adds two transitions with distinct actions, the first of
// which is terminal
func fillStub(t *testing.T, s stubAgent) {
	t.Helper()
	require.NoError(t, s.ObserveTransition(expreplay.Transition{
		State:     []float64{1, 0},
		Action:    []float64{0.5},
		Reward:    1,
		NextState: []float64{0, 1},
		Done:      true,
	}))
	require.NoError(t, s.ObserveTransition(expreplay.Transition{
		State:     []float64{0, 1},
		Action:    []float64{-0.5},
		Reward:    2,
		NextState: []float64{1, 1},
	}))
}

func TestTrainBellmanTargets(t *testing.T) {
	c := stubConfig()
	c.BufferCapacity = 2
	s := newStubAgent(t, c)
	fillStub(t, s)

	// Targets start as copies of the online networks:
	// μ'(s) = 0.5s₁ - 0.5s₂ and Q'(s, a) = s₁ + 2s₂ + 3a
	losses, err := s.Train()
	require.NoError(t, err)

	require.Len(t, s.critic.lastTargets, 2)
	for i, a := range s.critic.lastActions {
		switch a {
		case 0.5:
			// Terminal, so no bootstrapping
			assert.Equal(t, 1.0, s.critic.lastTargets[i])
		case -0.5:
			// μ'(1, 1) = 0, Q'((1, 1), 0) = 3
			assert.InDelta(t, 2+0.9*3, s.critic.lastTargets[i], 1e-12)
		default:
			t.Fatalf("unexpected action %v", a)
		}
	}

	// Q(s, a) before the update is 2.5 and 0.5
	wantCritic := (math.Pow(2.5-1, 2) + math.Pow(0.5-4.7, 2)) / 2
	assert.InDelta(t, wantCritic, losses.Critic, 1e-12)

	// The actor's loss uses the updated critic with μ(s) = 0.5 and -0.5
	w := s.critic.w
	q1 := w[0]*1 + w[2]*0.5
	q2 := w[1]*1 + w[2]*-0.5
	assert.InDelta(t, -(q1+q2)/2, losses.Actor, 1e-12)

	assert.Equal(t, 1, s.TrainSteps())
}

func TestTrainOrder(t *testing.T) {
	s := newStubAgent(t, stubConfig())
	fillStub(t, s)

	_, err := s.Train()
	require.NoError(t, err)

	criticStep := s.log.index("critic.minimize")
	actorStep := s.log.index("actor.minimize")
	require.NotEqual(t, -1, criticStep)
	require.NotEqual(t, -1, actorStep)

	assert.Less(t, s.log.index("actorTarget.predict"), criticStep)
	assert.Less(t, s.log.index("criticTarget.predict"), criticStep)
	assert.Less(t, criticStep, actorStep)
	assert.Less(t, actorStep, s.log.index("actorTarget.setWeights"))
	assert.Less(t, actorStep, s.log.index("criticTarget.setWeights"))

	// Online networks are never overwritten by the agent
	assert.Equal(t, -1, s.log.index("actor.setWeights"))
	assert.Equal(t, -1, s.log.index("critic.setWeights"))
}

func TestTrainSoftUpdate(t *testing.T) {
	c := stubConfig()
	c.Tau = 0.01
	s := newStubAgent(t, c)
	fillStub(t, s)

	actorTargetBefore := append([]float64(nil), s.actorTarget.w...)
	criticTargetBefore := append([]float64(nil), s.criticTarget.w...)

	_, err := s.Train()
	require.NoError(t, err)

	check := func(before, online, after []float64) {
		moved := false
		for i := range before {
			step := after[i] - before[i]
			gap := online[i] - before[i]
			assert.InDelta(t, c.Tau*gap, step, 1e-12)
			assert.LessOrEqual(t, math.Abs(step), c.Tau*math.Abs(gap)+1e-12)
			if gap != 0 {
				moved = true
				// Never overshoots the online weight
				assert.GreaterOrEqual(t, step/gap, 0.0)
			}
		}
		assert.True(t, moved)
	}
	check(actorTargetBefore, s.actor.w, s.actorTarget.w)
	check(criticTargetBefore, s.critic.w, s.criticTarget.w)
}

func TestTrainReleasesScope(t *testing.T) {
	s := newStubAgent(t, stubConfig())
	fillStub(t, s)

	_, err := s.Train()
	require.NoError(t, err)
	assert.Zero(t, s.scope.live())
	for _, v := range s.scope.batch.States {
		assert.Zero(t, v)
	}
	for _, v := range s.scope.targets {
		assert.Zero(t, v)
	}

	// Errors release the scope too
	s.critic.fail = errStub
	_, err = s.Train()
	assert.True(t, errors.Is(err, errStub))
	assert.Zero(t, s.scope.live())
}

func TestAct(t *testing.T) {
	s := newStubAgent(t, stubConfig())
	s.actor.w[0], s.actor.w[1] = 10, 10

	action, err := s.Act([]float64{1, 1})
	require.NoError(t, err)
	require.Len(t, action, stubActionDims)
	assert.Equal(t, 1.0, action[0])

	for i := 0; i < 100; i++ {
		action, err := s.Act([]float64{0.01 * float64(i), -0.02})
		require.NoError(t, err)
		assert.LessOrEqual(t, math.Abs(action[0]), 1.0)
	}

	_, err = s.Act([]float64{1})
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestObserveTransitionShapeMismatch(t *testing.T) {
	s := newStubAgent(t, stubConfig())

	err := s.ObserveTransition(expreplay.Transition{
		State:     []float64{1},
		Action:    []float64{0},
		NextState: []float64{1, 2},
	})
	assert.True(t, errors.Is(err, ErrShapeMismatch))
	assert.Zero(t, s.Len())
}

func TestSelectActionAndObserve(t *testing.T) {
	s := newStubAgent(t, stubConfig())
	require.NoError(t, s.SetActionBounds([]r1.Interval{{Min: -2, Max: 2}}))

	first := ts.New(ts.First, 0, 1, mat.NewVecDense(2, []float64{1, 0}), 0)
	require.NoError(t, s.ObserveFirst(first))

	// Evaluation mode is deterministic: μ(1, 0) = 0.5 rescaled to 1
	s.SetEval(true)
	assert.True(t, s.IsEval())
	action, err := s.SelectAction(first)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, action.AtVec(0), 1e-12)

	// An episode cut off by a step limit is still bootstrapped
	timeout := ts.New(ts.Last, 1, 1, mat.NewVecDense(2, []float64{0, 1}), 1)
	timeout.SetEnd(ts.Timeout)
	require.NoError(t, s.Observe(action, timeout))

	terminal := ts.New(ts.Last, 2, 0, mat.NewVecDense(2, []float64{1, 1}), 2)
	terminal.SetEnd(ts.TerminalStateReached)
	require.NoError(t, s.Observe(mat.NewVecDense(1, []float64{-2}), terminal))

	require.Equal(t, 2, s.Len())
	stored, err := s.Replay().At(0)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, stored.Action[0], 1e-12)
	assert.Equal(t, []float64{1, 0}, stored.State)
	assert.Equal(t, []float64{0, 1}, stored.NextState)
	assert.False(t, stored.Done)

	stored, err = s.Replay().At(1)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, stored.Action[0], 1e-12)
	assert.Equal(t, []float64{0, 1}, stored.State)
	assert.True(t, stored.Done)

	s.EndEpisode()
	err = s.Observe(action, terminal)
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	s.SetEval(false)
	assert.False(t, s.IsEval())
}

func TestSetActionBoundsInvalid(t *testing.T) {
	s := newStubAgent(t, stubConfig())
	err := s.SetActionBounds([]r1.Interval{{Min: -1, Max: 1}, {Min: 0,
		Max: 1}})
	assert.True(t, errors.Is(err, ErrShapeMismatch))
	err = s.SetActionBounds([]r1.Interval{{Min: 1, Max: 1}})
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestCheckpoint(t *testing.T) {
	s := newStubAgent(t, stubConfig())
	data, err := s.MarshalCheckpoint()
	require.NoError(t, err)

	want := append([]float64(nil), s.critic.w...)
	s.critic.w[1] = 42
	s.actorTarget.w[0] = -42

	require.NoError(t, s.UnmarshalCheckpoint(data))
	assert.Equal(t, want, s.critic.w)
	assert.Equal(t, s.actor.w, s.actorTarget.w)

	c := s.Checkpoint()
	c.Critic[0].Data = c.Critic[0].Data[:1]
	assert.True(t, errors.Is(s.Restore(c), ErrShapeMismatch))

	assert.Error(t, s.UnmarshalCheckpoint([]byte("not a checkpoint")))
}
