package neuron

import (
	"bytes"
	"fmt"
)

// ConfigurationError is returned when a topology is built with invalid parameters,
// such as an even kernel size or a cycle among layers.
type ConfigurationError struct {
	Reason string
}

// Configurationf creates a *ConfigurationError.
func Configurationf(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

func (err *ConfigurationError) Error() string { return "configuration: " + err.Reason }

// LookupError is returned when a connection is queried for a unit it does not connect.
// It indicates a bug in whatever built the topology.
type LookupError struct {
	Connection int64
	Unit       Terminal
}

func (err *LookupError) Error() string {
	return fmt.Sprintf("connection %d has no pairs anchored at unit %v", err.Connection, err.Unit)
}

// OrderingViolation is raised in debug builds when a unit reads a source unit that has
// not been evaluated in the current pass.
type OrderingViolation struct {
	Reader, Source Terminal
}

func (err *OrderingViolation) Error() string {
	return fmt.Sprintf("unit %v read unit %v before it was evaluated in this pass", err.Reader, err.Source)
}

type manyErr []error

func (err manyErr) Error() string {
	var buf bytes.Buffer
	for _, e := range err {
		fmt.Fprintln(&buf, e.Error())
	}
	return buf.String()
}
