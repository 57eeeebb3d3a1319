// Package ddpg implements the Deep Deterministic Policy Gradient
// algorithm for environments with continuous actions.
package ddpg

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/samuelfneumann/ddpg/expreplay"
	"github.com/samuelfneumann/ddpg/noise"
	ts "github.com/samuelfneumann/ddpg/timestep"
	"github.com/samuelfneumann/ddpg/utils/floatutils"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat"
	"gorgonia.org/tensor"
)

// unit is the range of each action component output by the actor
var unit = r1.Interval{Min: -1, Max: 1}

// Losses are the losses observed during a single training step
type Losses struct {
	Actor  float64
	Critic float64
}

// DDPG implements the Deep Deterministic Policy Gradient algorithm.
//
// The agent keeps an actor μ(s) and a critic Q(s, a) together with a
// target copy of each. On every training step a batch of transitions is
// drawn uniformly from an experience replay buffer and
//
//  1. the critic descends the mean squared error to the Bellman target
//     y = r + γ(1 - done)Q'(s', μ'(s')), computed with the targets;
//  2. the actor ascends Q(s, μ(s)) under the updated critic;
//  3. each target moves toward its online network by Polyak averaging,
//     θ' ← τθ + (1 - τ)θ'.
//
// Exploration adds Ornstein-Uhlenbeck noise to the actor's action.
// Actions are in [-1, 1] inside the agent and are rescaled to the
// environment's action bounds by SelectAction.
//
// A DDPG is not safe for concurrent use.
type DDPG struct {
	actor        Actor
	actorTarget  Actor
	critic       Critic
	criticTarget Critic

	noise  noise.Process
	replay *expreplay.Buffer

	gamma     float64
	tau       float64
	batchSize int

	stateDims  int
	actionDims int

	// Values of the current training step
	scope *scope

	// Interaction with an environment
	actionBounds []r1.Interval
	prevState    []float64 // nil before ObserveFirst
	eval         bool

	trainSteps int
	logger     *slog.Logger
}

// New returns a new DDPG agent. The targets are overwritten with the
// weights of the online networks so that both pairs start equal. The
// seed determines which transitions are sampled from the replay buffer.
func New(actor, actorTarget Actor, critic, criticTarget Critic,
	p noise.Process, c Config, seed uint64) (*DDPG, error) {
	if err := c.validateTraining(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	if actor == nil || actorTarget == nil || critic == nil ||
		criticTarget == nil || p == nil {
		return nil, fmt.Errorf("new: approximators and noise process "+
			"must not be nil: %w", ErrInvalidArgument)
	}

	stateDims, actionDims, err := dims(actor)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	if d, ok := p.(interface{ Dims() int }); ok && d.Dims() != actionDims {
		return nil, fmt.Errorf("new: noise has %d dimensions but actions "+
			"have %d: %w", d.Dims(), actionDims, ErrShapeMismatch)
	}

	replay, err := expreplay.New(c.BufferCapacity, stateDims, actionDims,
		seed)
	if err != nil {
		return nil, fmt.Errorf("new: could not create experience replay "+
			"buffer: %v", err)
	}

	d := &DDPG{
		actor:        actor,
		actorTarget:  actorTarget,
		critic:       critic,
		criticTarget: criticTarget,
		noise:        p,
		replay:       replay,
		gamma:        c.Gamma,
		tau:          c.Tau,
		batchSize:    c.BatchSize,
		stateDims:    stateDims,
		actionDims:   actionDims,
		scope:        newScope(c.BatchSize, stateDims, actionDims),
		logger:       slog.Default().With("component", "ddpg"),
	}

	defer d.scope.release()
	if err := d.polyak(actor, actorTarget, 1.0); err != nil {
		return nil, fmt.Errorf("new: could not initialize actor target: %v",
			err)
	}
	if err := d.polyak(critic, criticTarget, 1.0); err != nil {
		return nil, fmt.Errorf("new: could not initialize critic target: %v",
			err)
	}

	return d, nil
}

// dims returns the state and action dimensions reported by an actor
func dims(actor Actor) (int, int, error) {
	type dimensioned interface {
		StateDims() int
		ActionDims() int
	}
	if a, ok := actor.(dimensioned); ok {
		return a.StateDims(), a.ActionDims(), nil
	}
	return 0, 0, fmt.Errorf("actor must report its state and action "+
		"dimensions: %w", ErrInvalidArgument)
}

// SetLogger sets the logger used by the agent
func (d *DDPG) SetLogger(l *slog.Logger) {
	d.logger = l.With("component", "ddpg")
}

// SetActionBounds sets the bounds that SelectAction rescales actions
// to. Without bounds, actions are returned in [-1, 1].
func (d *DDPG) SetActionBounds(bounds []r1.Interval) error {
	if bounds != nil && len(bounds) != d.actionDims {
		return fmt.Errorf("setActionBounds: want bounds for %d actions, "+
			"have %d: %w", d.actionDims, len(bounds), ErrShapeMismatch)
	}
	for i, b := range bounds {
		if !(b.Min < b.Max) {
			return fmt.Errorf("setActionBounds: empty bounds %v for action "+
				"%d: %w", b, i, ErrInvalidArgument)
		}
	}
	d.actionBounds = bounds
	return nil
}

// Act returns the actor's action in state with exploration noise added,
// clipped to [-1, 1]. The noise process advances by one step.
func (d *DDPG) Act(state []float64) ([]float64, error) {
	action, err := d.predict("act", state)
	if err != nil {
		return nil, err
	}
	floats.Add(action, d.noise.Sample())
	floatutils.ClipSlice(action, unit.Min, unit.Max)
	return action, nil
}

// predict returns the actor's action in a single state
func (d *DDPG) predict(op string, state []float64) ([]float64, error) {
	if len(state) != d.stateDims {
		return nil, fmt.Errorf("%s: state has %d features, want %d: %w", op,
			len(state), d.stateDims, ErrShapeMismatch)
	}
	in := tensor.New(
		tensor.WithShape(1, d.stateDims),
		tensor.WithBacking(append([]float64(nil), state...)),
	)
	out, err := d.actor.Predict(in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	action := append([]float64(nil), out.Data().([]float64)...)
	if len(action) != d.actionDims {
		return nil, fmt.Errorf("%s: actor returned %d action components, "+
			"want %d: %w", op, len(action), d.actionDims, ErrShapeMismatch)
	}
	return action, nil
}

// ObserveTransition adds a transition to the replay buffer
func (d *DDPG) ObserveTransition(t expreplay.Transition) error {
	if err := d.replay.Add(t); err != nil {
		return fmt.Errorf("observeTransition: %w", err)
	}
	return nil
}

// Train performs one training step and returns the critic's loss before
// its update and the actor's loss under the updated critic. Until the
// replay buffer holds a full batch, Train does nothing and returns zero
// losses.
func (d *DDPG) Train() (Losses, error) {
	defer d.scope.release()

	if d.replay.Len() < d.batchSize {
		return Losses{}, nil
	}

	batch := d.scope.batch
	if err := d.replay.SampleInto(batch); err != nil {
		return Losses{}, fmt.Errorf("train: could not sample batch: %w", err)
	}
	n := batch.Size()
	states := d.scope.dense(n, d.stateDims, batch.States)
	actions := d.scope.dense(n, d.actionDims, batch.Actions)
	nextStates := d.scope.dense(n, d.stateDims, batch.NextStates)

	criticLoss, err := d.trainCritic(states, actions, nextStates)
	if err != nil {
		return Losses{}, fmt.Errorf("train: %w", err)
	}
	actorLoss, err := d.trainActor(states)
	if err != nil {
		return Losses{}, fmt.Errorf("train: %w", err)
	}

	if err := d.polyak(d.actor, d.actorTarget, d.tau); err != nil {
		return Losses{}, fmt.Errorf("train: could not update actor "+
			"target: %w", err)
	}
	if err := d.polyak(d.critic, d.criticTarget, d.tau); err != nil {
		return Losses{}, fmt.Errorf("train: could not update critic "+
			"target: %w", err)
	}

	d.trainSteps++
	return Losses{Actor: actorLoss, Critic: criticLoss}, nil
}

// trainCritic takes one step on the critic toward the Bellman targets
// of the batch in the scope
func (d *DDPG) trainCritic(states, actions, nextStates *tensor.Dense) (
	float64, error) {
	batch := d.scope.batch

	nextActions, err := d.actorTarget.Predict(nextStates)
	if err != nil {
		return 0, fmt.Errorf("could not predict next actions: %w", err)
	}
	d.scope.track(nextActions)

	nextValues, err := d.criticTarget.Predict(nextStates, nextActions)
	if err != nil {
		return 0, fmt.Errorf("could not predict next action values: %w", err)
	}
	d.scope.track(nextValues)

	q := nextValues.Data().([]float64)
	if len(q) != batch.Size() {
		return 0, fmt.Errorf("critic target returned %d values for %d "+
			"samples: %w", len(q), batch.Size(), ErrShapeMismatch)
	}
	for i := range d.scope.targets {
		d.scope.targets[i] = batch.Rewards[i] +
			d.gamma*(1-batch.Dones[i])*q[i]
	}
	targets := d.scope.dense(batch.Size(), 1, d.scope.targets)

	loss, err := d.critic.Minimize(states, actions, targets)
	if err != nil {
		return 0, fmt.Errorf("could not update critic: %w", err)
	}
	return loss, nil
}

// trainActor takes one deterministic policy gradient step on the actor
// and returns -mean Q(s, μ(s)) before the step
func (d *DDPG) trainActor(states *tensor.Dense) (float64, error) {
	actions, err := d.actor.Predict(states)
	if err != nil {
		return 0, fmt.Errorf("could not predict actions: %w", err)
	}
	d.scope.track(actions)

	values, err := d.critic.Predict(states, actions)
	if err != nil {
		return 0, fmt.Errorf("could not predict action values: %w", err)
	}
	d.scope.track(values)
	loss := -stat.Mean(values.Data().([]float64), nil)

	grads, err := d.critic.ActionGrad(states, actions)
	if err != nil {
		return 0, fmt.Errorf("could not compute action gradients: %w", err)
	}
	d.scope.track(grads)

	if err := d.actor.Minimize(states, grads); err != nil {
		return 0, fmt.Errorf("could not update actor: %w", err)
	}
	return loss, nil
}

// polyak moves the weights of target toward those of online:
//
//	θ' ← τθ + (1 - τ)θ'
//
// With τ = 1 the target becomes an exact copy of online.
func (d *DDPG) polyak(online, target Approximator, tau float64) error {
	onlineWeights := online.Weights()
	d.scope.track(onlineWeights...)
	targetWeights := target.Weights()
	d.scope.track(targetWeights...)

	if len(onlineWeights) != len(targetWeights) {
		return fmt.Errorf("polyak: online has %d weights, target has %d: %w",
			len(onlineWeights), len(targetWeights), ErrShapeMismatch)
	}
	for i := range targetWeights {
		theta := onlineWeights[i].Data().([]float64)
		thetaTarget := targetWeights[i].Data().([]float64)
		if len(theta) != len(thetaTarget) {
			return fmt.Errorf("polyak: weight %d has %d elements in online "+
				"and %d in target: %w", i, len(theta), len(thetaTarget),
				ErrShapeMismatch)
		}

		if tau == 1.0 {
			copy(thetaTarget, theta)
			continue
		}
		floats.Scale(1-tau, thetaTarget)
		floats.AddScaled(thetaTarget, tau, theta)
	}

	return target.SetWeights(targetWeights)
}

// ResetNoise resets the exploration noise process
func (d *DDPG) ResetNoise() {
	d.noise.Reset()
}

// Len returns the number of transitions in the replay buffer
func (d *DDPG) Len() int {
	return d.replay.Len()
}

// Replay returns the agent's experience replay buffer
func (d *DDPG) Replay() *expreplay.Buffer {
	return d.replay
}

// TrainSteps returns the number of training steps that updated weights
func (d *DDPG) TrainSteps() int {
	return d.trainSteps
}

// Actor returns the online actor
func (d *DDPG) Actor() Actor { return d.actor }

// ActorTarget returns the target actor
func (d *DDPG) ActorTarget() Actor { return d.actorTarget }

// Critic returns the online critic
func (d *DDPG) Critic() Critic { return d.critic }

// CriticTarget returns the target critic
func (d *DDPG) CriticTarget() Critic { return d.criticTarget }

// SelectAction returns the action to take in the state of t, rescaled
// to the action bounds. No noise is added in evaluation mode.
func (d *DDPG) SelectAction(t ts.TimeStep) (*mat.VecDense, error) {
	if t.Observation == nil {
		return nil, fmt.Errorf("selectAction: timestep has no observation: %w",
			ErrInvalidArgument)
	}
	state := t.Observation.RawVector().Data

	var action []float64
	var err error
	if d.eval {
		action, err = d.predict("selectAction", state)
	} else {
		action, err = d.Act(state)
	}
	if err != nil {
		return nil, err
	}

	for i := range d.actionBounds {
		action[i] = floatutils.Rescale(action[i], unit, d.actionBounds[i])
	}
	return mat.NewVecDense(len(action), action), nil
}

// ObserveFirst records the first timestep of an episode
func (d *DDPG) ObserveFirst(t ts.TimeStep) error {
	if !t.First() {
		d.logger.Warn("ObserveFirst should only be called on the first "+
			"timestep", "timestep", t.Number)
	}
	if t.Observation == nil {
		return fmt.Errorf("observeFirst: timestep has no observation: %w",
			ErrInvalidArgument)
	}
	d.prevState = append([]float64(nil), t.Observation.RawVector().Data...)
	return nil
}

// Observe records that action, as returned by SelectAction, led to the
// timestep next. The transition is stored with the action mapped back
// to [-1, 1]. It is terminal only if next entered a terminal state, so
// episodes cut off by a step limit are still bootstrapped.
func (d *DDPG) Observe(action mat.Vector, next ts.TimeStep) error {
	if d.prevState == nil {
		return fmt.Errorf("observe: no previous state, ObserveFirst must "+
			"be called first: %w", ErrInvalidArgument)
	}
	if action.Len() != d.actionDims {
		return fmt.Errorf("observe: action has %d components, want %d: %w",
			action.Len(), d.actionDims, ErrShapeMismatch)
	}
	if next.Observation == nil {
		return fmt.Errorf("observe: timestep has no observation: %w",
			ErrInvalidArgument)
	}

	unscaled := make([]float64, d.actionDims)
	for i := range unscaled {
		unscaled[i] = action.AtVec(i)
		if d.actionBounds != nil {
			unscaled[i] = floatutils.Rescale(unscaled[i], d.actionBounds[i],
				unit)
		}
	}
	nextState := append([]float64(nil), next.Observation.RawVector().Data...)

	err := d.replay.Add(expreplay.Transition{
		State:     d.prevState,
		Action:    unscaled,
		Reward:    next.Reward,
		NextState: nextState,
		Done:      next.Terminal(),
	})
	if err != nil {
		return fmt.Errorf("observe: %w", err)
	}

	d.prevState = nextState
	return nil
}

// Step performs a single training step
func (d *DDPG) Step() error {
	losses, err := d.Train()
	if err != nil {
		return fmt.Errorf("step: %w", err)
	}
	if d.replay.Len() >= d.batchSize {
		d.logger.Debug("trained", "step", d.trainSteps, "actorLoss",
			losses.Actor, "criticLoss", losses.Critic)
	}
	return nil
}

// EndEpisode resets the exploration noise at the end of an episode
func (d *DDPG) EndEpisode() {
	d.noise.Reset()
	d.prevState = nil
}

// SetEval switches the agent between evaluation mode, in which no
// exploration noise is added, and training mode
func (d *DDPG) SetEval(eval bool) {
	d.eval = eval
}

// IsEval returns whether the agent is in evaluation mode
func (d *DDPG) IsEval() bool {
	return d.eval
}

// Close closes each approximator that needs closing
func (d *DDPG) Close() error {
	var firstErr error
	for _, a := range []Approximator{d.actor, d.actorTarget, d.critic,
		d.criticTarget} {
		c, ok := a.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
