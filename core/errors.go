package core

import (
	"errors"
	"fmt"
)

var (
	// ErrExecutionFailed marks a fatal failure of an agent execution.
	ErrExecutionFailed = errors.New("execution failed")

	// ErrUnsupportedAlgorithm is returned for unknown signature algorithms.
	ErrUnsupportedAlgorithm = errors.New("unsupported signature algorithm")

	// ErrInvalidRole is returned when an interaction carries an unknown role.
	ErrInvalidRole = errors.New("invalid interaction role")

	// ErrInvalidConfig is returned for configuration values that cannot be used.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// AlgorithmError reports a signature algorithm the API does not accept.
type AlgorithmError struct {
	Value string
}

func (e *AlgorithmError) Error() string {
	return fmt.Sprintf("%s: %q (want ecdsa, ml-dsa-65, ml-dsa-87 or pq)", ErrUnsupportedAlgorithm, e.Value)
}

func (e *AlgorithmError) Unwrap() error {
	return ErrUnsupportedAlgorithm
}
