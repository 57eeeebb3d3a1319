package initwfn

import G "gorgonia.org/gorgonia"

// ConstantConfig configures an initializer that sets every weight to
// Value
type ConstantConfig struct {
	Value float64
}

// NewConstant returns a weight initializer that sets every weight to
// value
func NewConstant(value float64) (*InitWFn, error) {
	return newInitWFn(ConstantConfig{value})
}

func (c ConstantConfig) Type() Type { return Constant }

// Create returns G.Zeroes for a zero value and G.ValuesOf otherwise
func (c ConstantConfig) Create() G.InitWFn {
	if c.Value == 0 {
		return G.Zeroes()
	}
	return G.ValuesOf(c.Value)
}

// ZeroesConfig configures an initializer that sets every weight to 0.
// It has no fields so that {"Type": "Zeroes"} decodes without a
// Config.
type ZeroesConfig struct{}

// NewZeroes returns a new zeroes weight initializer
func NewZeroes() (*InitWFn, error) {
	return newInitWFn(ZeroesConfig{})
}

func (ZeroesConfig) Type() Type { return Zeroes }

func (ZeroesConfig) Create() G.InitWFn { return ConstantConfig{}.Create() }
