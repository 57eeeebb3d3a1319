package mountaincar

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/ddpg/environment"
	"github.com/samuelfneumann/ddpg/timestep"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

const (
	// Commonly used goal position
	GoalPosition float64 = 0.45
)

// Goal implements the classic control task of reaching a goal on
// Mountain Car. Rewards are -1 on each timestep and 0 for the action
// which transitions the car to the goal.
//
// Episodes end when the car reaches the goal, which is a terminal
// state, or are cut off at a step limit.
type Goal struct {
	environment.Starter
	goalEnder *environment.IntervalLimit
	stepEnder *environment.StepLimit
	goalX     float64 // x position of goal
}

// NewGoal creates and returns a new Goal struct given a Starter, which
// determines the starting states; the maximum number of episode
// steps; and the goal x position.
func NewGoal(s environment.Starter, episodeSteps int,
	goalX float64) (*Goal, error) {
	interval := []r1.Interval{{Min: math.Inf(-1), Max: goalX}}
	goalEnder, err := environment.NewIntervalLimit(interval, []int{0},
		timestep.TerminalStateReached)
	if err != nil {
		return nil, fmt.Errorf("newGoal: %v", err)
	}

	return &Goal{s, goalEnder, environment.NewStepLimit(episodeSteps),
		goalX}, nil
}

// AtGoal returns a boolean indicating whether or not the argument state
// is the goal state
func (g *Goal) AtGoal(state mat.Matrix) bool {
	return state.At(0, 0) >= g.goalX
}

// GetReward returns the reward for a given state and action, resulting
// in a given next state
func (g *Goal) GetReward(_, _ mat.Vector, nextState mat.Vector) float64 {
	if nextState.AtVec(0) >= g.goalX {
		return 0.0
	}
	return -1.0
}

// Min returns the minimum attainable reward over all timesteps
func (g *Goal) Min() float64 { return -1.0 }

// Max returns the maximum attainable reward over all timesteps
func (g *Goal) Max() float64 { return 0.0 }

// RewardSpec returns the reward specification of the Task
func (g *Goal) RewardSpec() environment.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{g.Min()})
	upperBound := mat.NewVecDense(1, []float64{g.Max()})

	return environment.NewSpec(shape, environment.Reward, lowerBound,
		upperBound, environment.Discrete)
}

// End determines if a timestep is the last timestep in the episode.
// Reaching the goal takes precedence over the step limit, so an episode
// that reaches the goal on its last allowed step ends terminally.
func (g *Goal) End(t *timestep.TimeStep) bool {
	if end := g.goalEnder.End(t); end {
		return true
	}
	return g.stepEnder.End(t)
}
