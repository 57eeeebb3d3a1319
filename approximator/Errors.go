package approximator

import (
	"fmt"

	"github.com/samuelfneumann/ddpg/expreplay"
	"gorgonia.org/tensor"
)

// ErrShapeMismatch is returned when an input tensor does not have the
// shape the approximator expects. It is the same sentinel the replay
// buffer uses, so errors.Is matches shape errors from either package.
var ErrShapeMismatch = expreplay.ErrShapeMismatch

// checkShape returns an error wrapping ErrShapeMismatch if t is not a
// matrix with the given number of columns and, if rows >= 0, rows
func checkShape(op, name string, t *tensor.Dense, rows, cols int) error {
	if t == nil {
		return fmt.Errorf("%s: %s is nil: %w", op, name, ErrShapeMismatch)
	}
	shape := t.Shape()
	if len(shape) != 2 || shape[1] != cols || (rows >= 0 && shape[0] != rows) {
		return fmt.Errorf("%s: invalid shape for %s \n\twant(%v, %v)"+
			"\n\thave(%v): %w", op, name, rowsString(rows), cols, shape,
			ErrShapeMismatch)
	}
	return nil
}

func rowsString(rows int) string {
	if rows < 0 {
		return "n"
	}
	return fmt.Sprint(rows)
}
