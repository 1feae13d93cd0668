package domain

import "fmt"

// PanicError is the failure recorded for a handler that panicked.
type PanicError struct {
	Value any
}

// Error implements error.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.Value)
}

// Reason returns the failure identifier stored with the work item.
func (e *PanicError) Reason() string {
	return "panic"
}

// UnroutableError is the failure recorded for a work item whose topic has no handler.
type UnroutableError struct {
	Topic string
}

// Error implements error.
func (e *UnroutableError) Error() string {
	return fmt.Sprintf("no handler registered for topic %s", e.Topic)
}

// Reason returns the failure identifier stored with the work item.
func (e *UnroutableError) Reason() string {
	return "handler_not_registered"
}

// Unwrap lets errors.Is match ErrHandlerNotRegistered.
func (e *UnroutableError) Unwrap() error {
	return ErrHandlerNotRegistered
}
