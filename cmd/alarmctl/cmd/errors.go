package cmd

import "fmt"

// exitError carries the process exit code spec §6 mandates for each
// error class: 1 argument error, 2 store error, 3 validation failure.
// main.go unwraps this to set os.Exit's code; a plain error defaults to 1.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func argError(format string, args ...interface{}) error {
	return &exitError{code: 1, err: fmt.Errorf(format, args...)}
}

func storeError(err error) error {
	return &exitError{code: 2, err: fmt.Errorf("store error: %w", err)}
}

func validationError(err error) error {
	return &exitError{code: 3, err: fmt.Errorf("validation failed: %w", err)}
}

func errRuleExists(ruleID string) error {
	return fmt.Errorf("rule %s already exists", ruleID)
}

// ExitCode extracts the exit code spec §6 mandates from err, defaulting
// to 1 for anything not produced by this package's helpers.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exitError); ok {
		return ee.code
	}
	return 1
}
