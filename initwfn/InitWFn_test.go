package initwfn

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestInitWFnJSON(t *testing.T) {
	uniform, err := NewUniform(-3e-3, 3e-3)
	require.NoError(t, err)

	data, err := json.Marshal(uniform)
	require.NoError(t, err)

	var decoded InitWFn
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, Uniform, decoded.Type)
	assert.Equal(t, uniform.Config, decoded.Config)

	weights := decoded.InitWFn()(tensor.Float64, 4, 5).([]float64)
	require.Len(t, weights, 20)
	for _, w := range weights {
		assert.True(t, w >= -3e-3 && w < 3e-3)
	}
}

func TestInitWFnJSONEmptyConfig(t *testing.T) {
	var decoded InitWFn
	require.NoError(t, json.Unmarshal([]byte(`{"Type": "Zeroes"}`),
		&decoded))
	assert.Equal(t, Zeroes, decoded.Type)

	weights := decoded.InitWFn()(tensor.Float64, 2, 2).([]float64)
	assert.Equal(t, []float64{0, 0, 0, 0}, weights)
}

func TestInitWFnJSONInvalid(t *testing.T) {
	var decoded InitWFn
	assert.Error(t, json.Unmarshal([]byte(`{"Type": "Orthogonal"}`),
		&decoded))
	assert.Error(t, json.Unmarshal(
		[]byte(`{"Type": "GlorotU", "Config": {"Gain": -1}}`), &decoded))
}

func TestNewInitWFnInvalid(t *testing.T) {
	_, err := NewUniform(1, 0)
	assert.Error(t, err)

	_, err = NewGaussian(0, -1)
	assert.Error(t, err)

	_, err = NewHeU(0)
	assert.Error(t, err)
}

func TestConstant(t *testing.T) {
	c, err := NewConstant(0.25)
	require.NoError(t, err)
	assert.Equal(t, Constant, c.Type)

	weights := c.InitWFn()(tensor.Float64, 3).([]float64)
	assert.Equal(t, []float64{0.25, 0.25, 0.25}, weights)

	z, err := NewZeroes()
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, z.InitWFn()(tensor.Float64, 2).([]float64))
}
