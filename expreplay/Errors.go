package expreplay

import "errors"

// Error implements errors unique to an experience replay buffer. Op
// names the buffer operation that failed.
type Error struct {
	Op  string
	Err error
}

// Error satisifes the error interface
func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error so that errors.Is can match the
// sentinel errors of this package
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrInvalidArgument reports an argument outside of the range an
// operation accepts, e.g. sampling more transitions than are stored.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrShapeMismatch reports a vector whose length differs from the
// state or action dimensionality the buffer was constructed with.
var ErrShapeMismatch = errors.New("shape mismatch")

// IsInvalidArgument returns whether or not an error reports an invalid
// argument to a buffer operation.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsShapeMismatch returns whether or not an error reports a state or
// action of the wrong length.
func IsShapeMismatch(err error) bool {
	return errors.Is(err, ErrShapeMismatch)
}

// wrap returns err as an *Error of operation op with context msg
func wrap(op string, err error, msg string) error {
	return &Error{Op: op, Err: &detail{err: err, msg: msg}}
}

// detail attaches a message to a sentinel error without hiding it
// from errors.Is
type detail struct {
	err error
	msg string
}

func (d *detail) Error() string { return d.err.Error() + ": " + d.msg }

func (d *detail) Unwrap() error { return d.err }
