package models

import "fmt"

// InsufficientDataError marks a series shorter than the required lookback.
// It is fatal to the specific backtest or analysis call, never to the engine.
type InsufficientDataError struct {
	What string
	Need int
	Got  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: need %d bars, got %d", e.What, e.Need, e.Got)
}

// RiskLimitExceededError rejects a signal before execution. Logged, no retry.
type RiskLimitExceededError struct {
	Reason string
	Limit  float64
	Value  float64
}

func (e *RiskLimitExceededError) Error() string {
	return fmt.Sprintf("risk limit exceeded: %s (limit %.4f, value %.4f)", e.Reason, e.Limit, e.Value)
}

// ExecutionGatewayError wraps an order I/O failure. The coordinator moves the
// owning instance to the error state; other instances keep running.
type ExecutionGatewayError struct {
	Op  string
	Err error
}

func (e *ExecutionGatewayError) Error() string {
	return fmt.Sprintf("execution gateway %s: %v", e.Op, e.Err)
}

func (e *ExecutionGatewayError) Unwrap() error { return e.Err }

// ConfigurationError fails fast at creation time: unknown algorithm type,
// malformed parameters.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %q: %s", e.Field, e.Reason)
}
