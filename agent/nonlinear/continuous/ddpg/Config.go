package ddpg

import (
	"fmt"
	"io"

	"github.com/samuelfneumann/ddpg/agent"
	"github.com/samuelfneumann/ddpg/approximator"
	env "github.com/samuelfneumann/ddpg/environment"
	"github.com/samuelfneumann/ddpg/initwfn"
	"github.com/samuelfneumann/ddpg/network"
	"github.com/samuelfneumann/ddpg/noise"
	"github.com/samuelfneumann/ddpg/solver"
)

var (
	_ Actor              = (*approximator.Actor)(nil)
	_ Critic             = (*approximator.Critic)(nil)
	_ agent.Closer       = (*DDPG)(nil)
	_ agent.Checkpointer = (*DDPG)(nil)
)

func init() {
	// Register the Config so that agent.TypedConfig can deserialize it
	agent.Register(agent.DDPGMLP, Config{})
}

// Config implements a configuration for a DDPG agent whose actor and
// critic are MLPs
type Config struct {
	// Actor network
	ActorLayers      []int
	ActorBiases      []bool
	ActorActivations []*network.Activation
	ActorSolver      *solver.Solver

	// Critic network
	CriticLayers      []int
	CriticBiases      []bool
	CriticActivations []*network.Activation
	CriticSolver      *solver.Solver

	// Initialization algorithm for weights of both networks
	InitWFn *initwfn.InitWFn

	Gamma float64 // Discount factor
	Tau   float64 // Polyak averaging constant

	BatchSize      int
	BufferCapacity int

	// Ornstein-Uhlenbeck exploration noise. Every action component has
	// mean NoiseMu.
	NoiseMu    float64
	NoiseSigma float64
	NoiseTheta float64
	NoiseDt    float64
}

// DefaultConfig returns a Config with two hidden layers of 64 ReLU
// units in each network
func DefaultConfig() Config {
	init, err := initwfn.NewGlorotU(1.0)
	if err != nil {
		panic(fmt.Sprintf("defaultConfig: %v", err))
	}
	actorSolver, err := solver.NewDefaultAdam(1e-4, 1)
	if err != nil {
		panic(fmt.Sprintf("defaultConfig: %v", err))
	}
	criticSolver, err := solver.NewDefaultAdam(1e-3, 1)
	if err != nil {
		panic(fmt.Sprintf("defaultConfig: %v", err))
	}

	return Config{
		ActorLayers:       []int{64, 64},
		ActorBiases:       []bool{true, true},
		ActorActivations:  []*network.Activation{network.ReLU(), network.ReLU()},
		ActorSolver:       actorSolver,
		CriticLayers:      []int{64, 64},
		CriticBiases:      []bool{true, true},
		CriticActivations: []*network.Activation{network.ReLU(), network.ReLU()},
		CriticSolver:      criticSolver,
		InitWFn:           init,
		Gamma:             0.99,
		Tau:               0.005,
		BatchSize:         64,
		BufferCapacity:    100_000,
		NoiseMu:           0.0,
		NoiseSigma:        0.2,
		NoiseTheta:        noise.DefaultTheta,
		NoiseDt:           noise.DefaultDt,
	}
}

// Type returns the type of the configuration
func (c Config) Type() agent.Type {
	return agent.DDPGMLP
}

// Validate checks a Config to ensure it is a valid configuration of a
// DDPG agent.
func (c Config) Validate() error {
	if err := c.validateTraining(); err != nil {
		return err
	}

	if err := validateLayers("actor", c.ActorLayers, c.ActorBiases,
		c.ActorActivations); err != nil {
		return err
	}
	if err := validateLayers("critic", c.CriticLayers, c.CriticBiases,
		c.CriticActivations); err != nil {
		return err
	}
	if c.ActorSolver == nil || c.CriticSolver == nil {
		return fmt.Errorf("both actor and critic need a solver")
	}
	if c.InitWFn == nil {
		return fmt.Errorf("no weight initializer given")
	}
	return nil
}

// validateTraining checks the hyperparameters of the training
// algorithm, which are all that New needs. The buffer capacity must be
// at least the batch size since a smaller buffer never passes the
// warm-up gate and the agent would never train.
func (c Config) validateTraining() error {
	if c.Gamma <= 0 || c.Gamma > 1 {
		return fmt.Errorf("discount must be in (0, 1] \n\thave(%v)",
			c.Gamma)
	}
	if c.Tau <= 0 || c.Tau > 1 {
		return fmt.Errorf("tau must be in (0, 1] \n\thave(%v)", c.Tau)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be positive \n\thave(%v)",
			c.BatchSize)
	}
	if c.BufferCapacity < c.BatchSize {
		return fmt.Errorf("buffer capacity must be at least the batch "+
			"size \n\twant(>=%v) \n\thave(%v)", c.BatchSize,
			c.BufferCapacity)
	}
	if c.NoiseSigma < 0 || c.NoiseTheta < 0 || c.NoiseDt <= 0 {
		return fmt.Errorf("invalid noise parameters \n\thave(sigma: %v, "+
			"theta: %v, dt: %v)", c.NoiseSigma, c.NoiseTheta, c.NoiseDt)
	}
	return nil
}

func validateLayers(name string, layers []int, biases []bool,
	activations []*network.Activation) error {
	if len(layers) != len(biases) {
		return fmt.Errorf("invalid number of %s biases\n\twant(%v)"+
			"\n\thave(%v)", name, len(layers), len(biases))
	}
	if len(layers) != len(activations) {
		return fmt.Errorf("invalid number of %s activations\n\twant(%v)"+
			"\n\thave(%v)", name, len(layers), len(activations))
	}
	for i, units := range layers {
		if units < 1 {
			return fmt.Errorf("%s layer %d must have at least one unit "+
				"\n\thave(%v)", name, i, units)
		}
	}
	return nil
}

// ValidAgent returns whether the agent is valid for the configuration.
// That is, whether Agent a can be constructed with Config c.
func (c Config) ValidAgent(a agent.Agent) bool {
	_, ok := a.(*DDPG)
	return ok
}

// CreateAgent creates a new DDPG agent for an environment with
// continuous actions based on the configuration
func (c Config) CreateAgent(e env.Environment, seed uint64) (agent.Agent,
	error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("createAgent: %v", err)
	}
	if e.ActionSpec().Cardinality != env.Continuous {
		return nil, fmt.Errorf("createAgent: cannot use non-continuous " +
			"actions")
	}

	stateDims := e.ObservationSpec().Shape.Len()
	actionDims := e.ActionSpec().Shape.Len()

	actorConfig := approximator.Config{
		StateDims:   stateDims,
		ActionDims:  actionDims,
		BatchSize:   c.BatchSize,
		HiddenSizes: c.ActorLayers,
		Biases:      c.ActorBiases,
		Activations: c.ActorActivations,
		InitWFn:     c.InitWFn,
		Solver:      c.ActorSolver,
	}
	criticConfig := actorConfig
	criticConfig.HiddenSizes = c.CriticLayers
	criticConfig.Biases = c.CriticBiases
	criticConfig.Activations = c.CriticActivations
	criticConfig.Solver = c.CriticSolver

	// Close whatever was built if a later step fails
	var built []io.Closer
	fail := func(err error) (agent.Agent, error) {
		for _, closer := range built {
			closer.Close()
		}
		return nil, fmt.Errorf("createAgent: %v", err)
	}

	actor, err := approximator.NewActor(actorConfig)
	if err != nil {
		return fail(err)
	}
	built = append(built, actor)
	actorTarget, err := approximator.NewActor(actorConfig.WithoutSolver())
	if err != nil {
		return fail(err)
	}
	built = append(built, actorTarget)
	critic, err := approximator.NewCritic(criticConfig)
	if err != nil {
		return fail(err)
	}
	built = append(built, critic)
	criticTarget, err := approximator.NewCritic(criticConfig.WithoutSolver())
	if err != nil {
		return fail(err)
	}
	built = append(built, criticTarget)

	mu := make([]float64, actionDims)
	for i := range mu {
		mu[i] = c.NoiseMu
	}
	process, err := noise.NewOrnsteinUhlenbeck(mu, c.NoiseSigma,
		c.NoiseTheta, c.NoiseDt, seed)
	if err != nil {
		return fail(err)
	}

	d, err := New(actor, actorTarget, critic, criticTarget, process, c, seed)
	if err != nil {
		return fail(err)
	}
	if err := d.SetActionBounds(e.ActionSpec().Bounds()); err != nil {
		return fail(err)
	}
	return d, nil
}
