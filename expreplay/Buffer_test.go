package expreplay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// transition returns a transition whose fields are all derived from i
// so that its origin can be recovered after sampling
func transition(i int, stateDims, actionDims int) Transition {
	t := Transition{
		State:     make([]float64, stateDims),
		Action:    make([]float64, actionDims),
		Reward:    float64(i),
		NextState: make([]float64, stateDims),
		Done:      i%2 == 0,
	}
	for j := range t.State {
		t.State[j] = float64(i)
		t.NextState[j] = float64(i + 1)
	}
	for j := range t.Action {
		t.Action[j] = -float64(i)
	}
	return t
}

func TestBufferCapacity(t *testing.T) {
	b, err := New(3, 2, 1, 0)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, b.Add(transition(i, 2, 1)))
		assert.LessOrEqual(t, b.Len(), b.Capacity())
	}
	assert.Equal(t, 3, b.Len())
}

func TestBufferEviction(t *testing.T) {
	b, err := New(3, 1, 1, 0)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, b.Add(transition(i, 1, 1)))
	}

	// The fourth transition replaces the first, the rest keep their slots
	rewards := make([]float64, b.Len())
	for i := range rewards {
		tr, err := b.At(i)
		require.NoError(t, err)
		rewards[i] = tr.Reward
	}
	assert.Equal(t, []float64{3, 1, 2}, rewards)

	require.NoError(t, b.Add(transition(4, 1, 1)))
	tr, err := b.At(1)
	require.NoError(t, err)
	assert.Equal(t, 4.0, tr.Reward)
}

func TestBufferAddShapeMismatch(t *testing.T) {
	b, err := New(3, 2, 1, 0)
	require.NoError(t, err)

	err = b.Add(transition(0, 3, 1))
	assert.True(t, IsShapeMismatch(err))

	err = b.Add(transition(0, 2, 2))
	assert.True(t, IsShapeMismatch(err))

	assert.Equal(t, 0, b.Len())
}

func TestBufferAddCopies(t *testing.T) {
	b, err := New(3, 2, 1, 0)
	require.NoError(t, err)

	tr := transition(1, 2, 1)
	require.NoError(t, b.Add(tr))
	tr.State[0] = 100

	stored, err := b.At(0)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, stored.State)
}

func TestBufferSample(t *testing.T) {
	b, err := New(10, 2, 1, 42)
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		require.NoError(t, b.Add(transition(i, 2, 1)))
	}

	samples, err := b.Sample(4)
	require.NoError(t, err)
	require.Len(t, samples, 4)

	seen := make(map[float64]bool)
	for _, s := range samples {
		assert.False(t, seen[s.Reward], "transition sampled twice")
		seen[s.Reward] = true
		assert.Equal(t, transition(int(s.Reward), 2, 1), s)
	}
}

func TestBufferSampleInvalid(t *testing.T) {
	b, err := New(10, 2, 1, 0)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Add(transition(i, 2, 1)))
	}

	_, err = b.Sample(4)
	assert.True(t, IsInvalidArgument(err))

	_, err = b.Sample(-1)
	assert.True(t, IsInvalidArgument(err))
}

func TestBufferSampleZero(t *testing.T) {
	b, err := New(10, 2, 1, 0)
	require.NoError(t, err)

	// Allowed even before anything is stored
	empty, err := b.Sample(0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, b.Add(transition(0, 2, 1)))
	empty, err = b.Sample(0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Len(t, empty, 0)
}

func TestBufferSampleReachesAllSlots(t *testing.T) {
	b, err := New(20, 1, 1, 3)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		require.NoError(t, b.Add(transition(i, 1, 1)))
	}

	// Small batches must still reach slots beyond the batch size
	seen := make(map[float64]bool)
	for i := 0; i < 200; i++ {
		samples, err := b.Sample(2)
		require.NoError(t, err)
		for _, s := range samples {
			seen[s.Reward] = true
		}
	}
	assert.Len(t, seen, 20)
}

func TestBufferSampleFresh(t *testing.T) {
	b, err := New(50, 1, 1, 11)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		require.NoError(t, b.Add(transition(i, 1, 1)))
	}

	first, err := b.Sample(10)
	require.NoError(t, err)
	second, err := b.Sample(10)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestBufferSampleInto(t *testing.T) {
	b, err := NewWithSelector(NewFifoSelector(), 5, 2, 1)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Add(transition(i, 2, 1)))
	}

	batch := NewBatch(3, 2, 1)
	require.NoError(t, b.SampleInto(batch))

	assert.Equal(t, []float64{0, 0, 1, 1, 2, 2}, batch.States)
	assert.Equal(t, []float64{1, 1, 2, 2, 3, 3}, batch.NextStates)
	assert.Equal(t, []float64{0, -1, -2}, batch.Actions)
	assert.Equal(t, []float64{0, 1, 2}, batch.Rewards)
	assert.Equal(t, []float64{1, 0, 1}, batch.Dones)

	batch.Zero()
	assert.Equal(t, []float64{0, 0, 0}, batch.Rewards)

	err = b.SampleInto(NewBatch(3, 1, 1))
	assert.True(t, IsShapeMismatch(err))

	err = b.SampleInto(NewBatch(6, 2, 1))
	assert.True(t, IsInvalidArgument(err))
}

func TestNewBufferInvalid(t *testing.T) {
	_, err := New(0, 1, 1, 0)
	assert.True(t, IsInvalidArgument(err))

	_, err = New(1, 0, 1, 0)
	assert.True(t, IsInvalidArgument(err))
}

func BenchmarkBufferAdd(b *testing.B) {
	buf, err := New(1000, 4, 2, 0)
	if err != nil {
		b.Fatal(err)
	}
	tr := transition(1, 4, 2)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := buf.Add(tr); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkBufferSampleInto(b *testing.B) {
	buf, err := New(1000, 4, 2, 0)
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < 1000; i++ {
		if err := buf.Add(transition(i, 4, 2)); err != nil {
			b.Fatal(err)
		}
	}
	batch := NewBatch(64, 4, 2)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := buf.SampleInto(batch); err != nil {
			b.Fatal(err)
		}
	}
}
