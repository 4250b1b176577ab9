package main

import (
	"errors"
	"fmt"

	"codescope/internal/config"
	scopeerrors "codescope/internal/errors"
)

// Process exit codes
const (
	exitOK             = 0
	exitFatal          = 1
	exitInvalidOptions = 2
	exitQualityGate    = 3
)

// exitError carries an explicit exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	var ce *config.ConfigError
	if errors.As(err, &ce) {
		return exitInvalidOptions
	}
	if scopeerrors.Is(err, scopeerrors.InvalidOptions) {
		return exitInvalidOptions
	}
	return exitFatal
}

// usageError marks a command line that cannot be run as given.
func usageError(err error) error {
	return scopeerrors.New(scopeerrors.InvalidOptions, "invalid command line", err)
}

func usageErrorf(format string, args ...interface{}) error {
	return usageError(fmt.Errorf(format, args...))
}
