package checkpointer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	ts "github.com/samuelfneumann/ddpg/timestep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counter is a Serializable whose checkpoint is its number of encodings
type counter struct {
	n   byte
	err error
}

func (c *counter) MarshalCheckpoint() ([]byte, error) {
	c.n++
	return []byte{c.n}, c.err
}

func (c *counter) UnmarshalCheckpoint(data []byte) error {
	c.n = data[0]
	return nil
}

type memoryStore map[int][]byte

func (m memoryStore) SaveCheckpoint(_ context.Context, _ string, step int,
	payload []byte) error {
	m[step] = payload
	return nil
}

func TestNStep(t *testing.T) {
	m := memoryStore{}
	c, err := NewNStep(3, &counter{}, StoreSaver(context.Background(), m,
		"run"))
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, c.Checkpoint(ts.TimeStep{}))
	}
	assert.Equal(t, memoryStore{3: {1}, 6: {2}, 9: {3}}, m)

	_, err = NewNStep(0, &counter{}, nil)
	assert.Error(t, err)
}

func TestNStepFrom(t *testing.T) {
	m := memoryStore{}
	c, err := NewNStepFrom(3, 7, &counter{}, StoreSaver(context.Background(),
		m, "run"))
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		require.NoError(t, c.Checkpoint(ts.TimeStep{}))
	}
	assert.Equal(t, memoryStore{9: {1}, 12: {2}}, m)

	_, err = NewNStepFrom(3, -1, &counter{}, nil)
	assert.Error(t, err)
}

func TestNStepError(t *testing.T) {
	c, err := NewNStep(1, &counter{err: errors.New("encode")},
		func(int, []byte) error { return nil })
	require.NoError(t, err)
	assert.Error(t, c.Checkpoint(ts.TimeStep{}))
}

func TestFileSaver(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "ckpt")
	c, err := NewNStep(2, &counter{},
		FileSaver(FilenameEnumerator(0, prefix, ".bin")))
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, c.Checkpoint(ts.TimeStep{}))
	}

	for i, want := range []byte{1, 2} {
		data, err := os.ReadFile(prefix + string(rune('1'+i)) + ".bin")
		require.NoError(t, err)
		assert.Equal(t, []byte{want}, data)
	}
}
