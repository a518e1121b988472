package errors

import (
	"fmt"
	"strings"
)

// Exit codes returned by commands.
const (
	ExitFailure  = 1
	ExitRiskGate = 2
)

// CommandError carries the process exit code of a failed command.
type CommandError struct {
	ExitCode    int
	CommonError string
	Err         error
}

// Error implements the error interface, returning the message from the common error.
func (e *CommandError) Error() string {
	return e.CommonError
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError creates a new CommandError wrapping err with the given exit code.
func NewCommandError(err error, code int) *CommandError {
	return &CommandError{
		ExitCode:    code,
		CommonError: err.Error(),
		Err:         err,
	}
}

// InvalidRecordError is returned when a workflow document fails boundary validation.
type InvalidRecordError struct {
	Source   string
	Problems []string
}

// Error implements the error interface.
func (e *InvalidRecordError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("invalid workflow record: %s", strings.Join(e.Problems, "; "))
	}
	return fmt.Sprintf("invalid workflow record %q: %s", e.Source, strings.Join(e.Problems, "; "))
}

// NewInvalidRecordError creates an InvalidRecordError for source.
func NewInvalidRecordError(source string, problems ...string) *InvalidRecordError {
	return &InvalidRecordError{
		Source:   source,
		Problems: problems,
	}
}
