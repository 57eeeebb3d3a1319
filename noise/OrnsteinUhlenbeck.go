// Package noise implements exploration noise processes for agents with
// continuous actions.
package noise

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/samuelfneumann/ddpg/utils/floatutils"
)

// Default parameters of the Ornstein-Uhlenbeck process
const (
	DefaultTheta float64 = 0.15
	DefaultDt    float64 = 1e-2
)

// Process is a stateful generator of exploration noise
type Process interface {
	// Sample returns the next noise vector and advances the process
	Sample() []float64

	// Reset returns the process to its initial state
	Reset()
}

// OrnsteinUhlenbeck implements a discretized Ornstein-Uhlenbeck
// process:
//
//	x_t = x_{t-1} + θ(μ - x_{t-1})dt + σ√dt ɛ,  ɛ ~ N(0, I)
//
// Consecutive samples are correlated, which gives smoother exploration
// in continuous control than i.i.d. Gaussian noise. Before the first
// sample and after each Reset, x_{t-1} is taken to be μ.
type OrnsteinUhlenbeck struct {
	mu    []float64
	sigma float64
	theta float64
	dt    float64

	xPrev  []float64 // nil until the first Sample after construction/Reset
	normal *distmv.Normal
}

// NewOrnsteinUhlenbeck returns a new Ornstein-Uhlenbeck process with
// mean mu, volatility sigma, mean-reversion rate theta, and time step
// dt. The seed determines the standard normal draws.
func NewOrnsteinUhlenbeck(mu []float64, sigma, theta, dt float64,
	seed uint64) (*OrnsteinUhlenbeck, error) {
	if len(mu) == 0 {
		return nil, fmt.Errorf("newOrnsteinUhlenbeck: mean must have at " +
			"least one dimension")
	}
	if sigma < 0 {
		return nil, fmt.Errorf("newOrnsteinUhlenbeck: sigma must be "+
			"non-negative \n\twant(>=0) \n\thave(%v)", sigma)
	}
	if theta < 0 {
		return nil, fmt.Errorf("newOrnsteinUhlenbeck: theta must be "+
			"non-negative \n\twant(>=0) \n\thave(%v)", theta)
	}
	if dt <= 0 {
		return nil, fmt.Errorf("newOrnsteinUhlenbeck: dt must be "+
			"positive \n\twant(>0) \n\thave(%v)", dt)
	}

	// Standard normal over the action dimensions
	dims := len(mu)
	means := make([]float64, dims)
	cov := mat.NewDiagDense(dims, floatutils.Ones(dims))
	source := rand.NewSource(seed)
	normal, ok := distmv.NewNormal(means, cov, source)
	if !ok {
		panic("newOrnsteinUhlenbeck: could not create standard normal")
	}

	m := make([]float64, dims)
	copy(m, mu)

	return &OrnsteinUhlenbeck{
		mu:     m,
		sigma:  sigma,
		theta:  theta,
		dt:     dt,
		normal: normal,
	}, nil
}

// NewDefaultOrnsteinUhlenbeck returns a new Ornstein-Uhlenbeck process
// using DefaultTheta and DefaultDt.
func NewDefaultOrnsteinUhlenbeck(mu []float64, sigma float64,
	seed uint64) (*OrnsteinUhlenbeck, error) {
	return NewOrnsteinUhlenbeck(mu, sigma, DefaultTheta, DefaultDt, seed)
}

// Sample returns the next value of the process
func (o *OrnsteinUhlenbeck) Sample() []float64 {
	prev := o.xPrev
	if prev == nil {
		prev = o.mu
	}

	// θ(μ - x)dt
	x := make([]float64, len(o.mu))
	floats.SubTo(x, o.mu, prev)
	floats.Scale(o.theta*o.dt, x)

	// + x + σ√dt ɛ
	floats.Add(x, prev)
	eps := o.normal.Rand(nil)
	floats.AddScaled(x, o.sigma*math.Sqrt(o.dt), eps)

	o.xPrev = x

	sample := make([]float64, len(x))
	copy(sample, x)
	return sample
}

// Reset makes the next Sample revert from the mean again
func (o *OrnsteinUhlenbeck) Reset() {
	o.xPrev = nil
}

// Dims returns the dimensionality of the noise
func (o *OrnsteinUhlenbeck) Dims() int {
	return len(o.mu)
}

// Mean returns the mean of the process
func (o *OrnsteinUhlenbeck) Mean() []float64 {
	m := make([]float64, len(o.mu))
	copy(m, o.mu)
	return m
}

func (o *OrnsteinUhlenbeck) String() string {
	return fmt.Sprintf("OrnsteinUhlenbeck{μ: %v, σ: %v, θ: %v, dt: %v}",
		o.mu, o.sigma, o.theta, o.dt)
}
