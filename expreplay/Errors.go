package expreplay

import "errors"

// ExpReplayError implements errors unique to an experience replay
// buffer.
type ExpReplayError struct {
	Op  string
	Err error
}

// Error satisifes the error interface
func (e *ExpReplayError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *ExpReplayError) Unwrap() error {
	return e.Err
}

var errEmptyBuffer = errors.New("buffer empty")

var errInvalidSampleSize = errors.New("sample size must be positive")

var errSlotOutOfRange = errors.New("slot out of range")

var errShape = errors.New("invalid feature size")

// IsEmptyBuffer returns whether or not an error reports that a
// replay buffer is empty.
func IsEmptyBuffer(err error) bool {
	return errors.Is(err, errEmptyBuffer)
}

// IsShapeMismatch returns whether or not an error reports that a
// transition did not have the feature size of the buffer.
func IsShapeMismatch(err error) bool {
	return errors.Is(err, errShape)
}
