// Package envconfig provides configuration structs for configuring
// environments with default physical parameters and tasks. Environment
// configurations in this package are JSON serializable.
package envconfig

import (
	"fmt"

	env "github.com/samuelfneumann/ddpg/environment"
	"github.com/samuelfneumann/ddpg/environment/classiccontrol/mountaincar"
	"github.com/samuelfneumann/ddpg/environment/classiccontrol/pendulum"
	ts "github.com/samuelfneumann/ddpg/timestep"
	"gonum.org/v1/gonum/spatial/r1"
)

// EnvName stores the name of environments that can be configured with
// this package
type EnvName string

// Environments available for configuration
const (
	MountainCar EnvName = "MountainCar"
	Pendulum    EnvName = "Pendulum"
)

// TaskName stores the tasks that can be configured with this package.
// Not all tasks can be used with all environments:
//
//	Environment			Task
//	MountainCar			Goal
//	Pendulum			SwingUp
type TaskName string

// Tasks available for configuration
const (
	Goal    TaskName = "Goal"
	SwingUp TaskName = "SwingUp"
)

// Config implements a specific configuration of a specific environment
// and specific task. All environments have continuous actions.
type Config struct {
	Environment   EnvName
	Task          TaskName
	EpisodeCutoff uint
	Discount      float64
}

// NewConfig returns a new environment Config
func NewConfig(envName EnvName, taskName TaskName, episodeCutoff uint,
	discount float64) Config {
	return Config{
		Environment:   envName,
		Task:          taskName,
		EpisodeCutoff: episodeCutoff,
		Discount:      discount,
	}
}

// Default returns the configuration of the Pendulum SwingUp task with
// 200 steps per episode
func Default() Config {
	return NewConfig(Pendulum, SwingUp, 200, 0.99)
}

// Validate checks a Config to ensure it is a valid configuration
func (c Config) Validate() error {
	if c.EpisodeCutoff == 0 {
		return fmt.Errorf("episode cutoff must be positive")
	}
	if c.Discount < 0 || c.Discount > 1 {
		return fmt.Errorf("discount must be in [0, 1] \n\thave(%v)",
			c.Discount)
	}
	return nil
}

// Create returns the environment described by the Config as well as
// the first timestep of the environment.
func (c Config) Create(seed uint64) (env.Environment, ts.TimeStep, error) {
	if err := c.Validate(); err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("create: %v", err)
	}

	switch c.Environment {
	case MountainCar:
		return CreateMountainCar(c.Task, int(c.EpisodeCutoff), seed,
			c.Discount)

	case Pendulum:
		return CreatePendulum(c.Task, int(c.EpisodeCutoff), seed, c.Discount)
	}

	return nil, ts.TimeStep{}, fmt.Errorf("create: cannot create "+
		"environment %v, no such environment", c.Environment)
}

// CreateMountainCar is a factory for creating the MountainCar
// environment with default physical parameters and default task
// parameters.
func CreateMountainCar(taskName TaskName, cutoff int, seed uint64,
	discount float64) (env.Environment, ts.TimeStep, error) {
	position := r1.Interval{Min: -0.6, Max: -0.4}
	velocity := r1.Interval{Min: 0.0, Max: 0.0}

	s := env.NewUniformStarter([]r1.Interval{position, velocity}, seed)

	if taskName != Goal {
		return nil, ts.TimeStep{}, fmt.Errorf("createMountainCar: "+
			"MountainCar environment has no task %v", taskName)
	}
	task, err := mountaincar.NewGoal(s, cutoff, mountaincar.GoalPosition)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("createMountainCar: %v", err)
	}

	return mountaincar.New(task, discount)
}

// CreatePendulum is a factory for creating the Pendulum environment
// with default physical parameters and default task parameters.
func CreatePendulum(taskName TaskName, cutoff int, seed uint64,
	discount float64) (env.Environment, ts.TimeStep, error) {
	angle := r1.Interval{Min: -pendulum.AngleBound, Max: pendulum.AngleBound}
	speed := r1.Interval{Min: -1.0, Max: 1.0}

	s := env.NewUniformStarter([]r1.Interval{angle, speed}, seed)

	if taskName != SwingUp {
		return nil, ts.TimeStep{}, fmt.Errorf("createPendulum: Pendulum "+
			"environment has no task %v", taskName)
	}

	return pendulum.New(pendulum.NewSwingUp(s, cutoff), discount)
}
