// Package errors carries exit-code plumbing between the schedulers and main.
package errors

type ExitCodeError struct {
	code ExitCode
	error
}

func NewError(err error, exitCode ExitCode) *ExitCodeError {
	if err == nil {
		return nil
	}
	return &ExitCodeError{exitCode, err}
}

func (e *ExitCodeError) GetExitCode() ExitCode {
	if e == nil {
		return 0
	}
	return e.code
}

// CodeFromError returns the exit code a process should exit with for err.
// nil maps to 0, an *ExitCodeError to its code, anything else to 1.
func CodeFromError(err error) ExitCode {
	if err == nil {
		return 0
	}
	if ec, ok := err.(*ExitCodeError); ok {
		return ec.GetExitCode()
	}
	return 1
}
