package noise

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

const (
	sigma = 0.2
	theta = 0.15
	dt    = 1e-2
)

func TestOrnsteinUhlenbeckBounded(t *testing.T) {
	trials := 1000
	inside := 0
	for i := 0; i < trials; i++ {
		ou, err := NewOrnsteinUhlenbeck([]float64{0}, sigma, theta, dt,
			uint64(i))
		require.NoError(t, err)

		x := ou.Sample()[0]
		if x >= -3*sigma && x <= 3*sigma {
			inside++
		}
	}
	assert.GreaterOrEqual(t, float64(inside)/float64(trials), 0.99)
}

func TestOrnsteinUhlenbeckSamplesDiffer(t *testing.T) {
	ou, err := NewOrnsteinUhlenbeck([]float64{0, 0}, sigma, theta, dt, 7)
	require.NoError(t, err)

	first := ou.Sample()
	second := ou.Sample()
	assert.NotEqual(t, first, second)
	assert.Len(t, first, 2)
}

func TestOrnsteinUhlenbeckRecurrence(t *testing.T) {
	// With zero volatility the process is a deterministic decay toward μ
	ou, err := NewOrnsteinUhlenbeck([]float64{0, 2}, 0, theta, dt, 1)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 2}, ou.Sample())

	ou.xPrev = []float64{1, 1}
	x := ou.Sample()
	assert.InDelta(t, 1-theta*dt, x[0], 1e-12)
	assert.InDelta(t, 1+theta*dt, x[1], 1e-12)

	// The returned sample must not alias internal state
	x[0] = 100
	assert.InDelta(t, 1-theta*dt, ou.xPrev[0], 1e-12)
}

func TestOrnsteinUhlenbeckReset(t *testing.T) {
	trials := 500
	afterReset := make([]float64, trials)
	fresh := make([]float64, trials)

	for i := 0; i < trials; i++ {
		ou, err := NewDefaultOrnsteinUhlenbeck([]float64{0}, sigma,
			uint64(i))
		require.NoError(t, err)

		// Push the process far from its mean, then reset it
		ou.xPrev = []float64{5}
		ou.Reset()
		afterReset[i] = ou.Sample()[0]

		other, err := NewDefaultOrnsteinUhlenbeck([]float64{0}, sigma,
			uint64(trials+i))
		require.NoError(t, err)
		fresh[i] = other.Sample()[0]
	}

	// Both are N(μ, σ²dt) = N(0, 0.02²)
	want := sigma * math.Sqrt(dt)
	for _, samples := range [][]float64{afterReset, fresh} {
		mean, std := stat.MeanStdDev(samples, nil)
		assert.InDelta(t, 0, mean, 4*want/math.Sqrt(float64(trials)))
		assert.InDelta(t, want, std, 0.2*want)
	}
}

func TestOrnsteinUhlenbeckNoReset(t *testing.T) {
	ou, err := NewDefaultOrnsteinUhlenbeck([]float64{0}, sigma, 3)
	require.NoError(t, err)

	ou.xPrev = []float64{5}
	assert.InDelta(t, 5, ou.Sample()[0], 0.2)
}

func TestNewOrnsteinUhlenbeckInvalid(t *testing.T) {
	_, err := NewOrnsteinUhlenbeck(nil, sigma, theta, dt, 0)
	assert.Error(t, err)

	_, err = NewOrnsteinUhlenbeck([]float64{0}, -1, theta, dt, 0)
	assert.Error(t, err)

	_, err = NewOrnsteinUhlenbeck([]float64{0}, sigma, theta, 0, 0)
	assert.Error(t, err)
}
