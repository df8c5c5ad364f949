// Package bencherrors contains typed errors shared between the servebench components.
// The top-level CLI looks for the error types defined in this file (using errors.As,
// so wrapping with pkg/errors is fine) to decide the process exit code and whether a
// failure is structural (abort the session) or local (record and continue).
//
// If multiple errors occur in some function (e.g., during cleanup, where every release
// step must be attempted), that function should return an error of type
// multierror.Error from package github.com/hashicorp/go-multierror that encapsulates
// those individual errors.
package bencherrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidSelection indicates that user input could not be resolved to a known
// deployment configuration. It is structural: the process exits immediately and no
// external action is taken.
type ErrInvalidSelection struct {
	// The raw input provided by the user.
	Input string
	// Number of configurations that were available to choose from.
	NumConfigs int
	// An optional message explaining why the input is invalid.
	Message string
}

func (err *ErrInvalidSelection) Error() (s string) {
	s = fmt.Sprintf("%q does not select any of the %d available deployment configurations", err.Input, err.NumConfigs)
	if err.Message != "" {
		s = s + fmt.Sprintf("; %s", err.Message)
	}
	return
}

// ErrApplyFailed indicates that applying a deployment configuration via the
// orchestration CLI failed. Presumed a configuration or environment defect, so it is
// never retried.
type ErrApplyFailed struct {
	// Name of the deployment configuration that was being applied.
	Config string
	// Exit code reported by the orchestration CLI.
	ExitCode int
	// Optional stderr excerpt from the CLI.
	Message string
}

func (err *ErrApplyFailed) Error() (s string) {
	s = fmt.Sprintf("applying deployment configuration %q failed with exit code %d", err.Config, err.ExitCode)
	if err.Message != "" {
		s = s + fmt.Sprintf("; %s", err.Message)
	}
	return
}

// ErrDiscoveryFailed indicates that no dependent resources could be discovered by any
// of the fallback strategies. Callers must treat this as fatal: "no resources
// discovered" never means "nothing to wait for".
type ErrDiscoveryFailed struct {
	// Name of the deployment whose resources were being discovered.
	Deployment string
	// Names of the strategies that were tried, in order.
	Strategies []string
}

func (err *ErrDiscoveryFailed) Error() string {
	return fmt.Sprintf(
		"no resources belonging to deployment %q discovered by any of %d strategies %v",
		err.Deployment, len(err.Strategies), err.Strategies,
	)
}

// ErrRetryExhausted indicates that a polled readiness or liveness check never succeeded
// within its attempt bound. Fatal for the wait it belongs to, but sibling waits that
// already completed are unaffected.
type ErrRetryExhausted struct {
	// Human-readable identifier of the target that was polled.
	Target string
	// Number of attempts that were made.
	Attempts int
	// The error returned by the final attempt, if any.
	LastError error
}

func (err *ErrRetryExhausted) Error() (s string) {
	s = fmt.Sprintf("%q not ready after %d attempts", err.Target, err.Attempts)
	if err.LastError != nil {
		s = s + fmt.Sprintf("; last error: %s", err.LastError)
	}
	return
}

// ErrRunFailed indicates that a single benchmark run (one sweep value) failed. It is
// recovered locally: the sweep records it and continues, unless enough of them occur
// consecutively to trip ErrTooManyConsecutiveFailures.
type ErrRunFailed struct {
	// Sweep value (concurrency level) of the failed run.
	Concurrency int
	// Exit code of the load-generation tool; -1 if it could not be started.
	ExitCode int
	// An optional message, e.g., "timed out".
	Message string
}

func (err *ErrRunFailed) Error() (s string) {
	s = fmt.Sprintf("benchmark run at concurrency %d failed with exit code %d", err.Concurrency, err.ExitCode)
	if err.Message != "" {
		s = s + fmt.Sprintf("; %s", err.Message)
	}
	return
}

// ErrTooManyConsecutiveFailures indicates that the sweep aborted early because too many
// sweep values failed in a row, suggesting the target is down rather than overloaded.
// Aggregation still proceeds over whatever partial results exist.
type ErrTooManyConsecutiveFailures struct {
	// The threshold that was tripped.
	Threshold int
	// The sweep value whose failure tripped the threshold.
	Concurrency int
}

func (err *ErrTooManyConsecutiveFailures) Error() string {
	return fmt.Sprintf(
		"aborting sweep at concurrency %d after %d consecutive failed runs",
		err.Concurrency, err.Threshold,
	)
}

// ErrTunnelNotReady indicates that the port-forward subprocess was spawned but its
// liveness endpoint never answered within the attempt bound. The handle has already
// been closed when this error is returned; no subprocess is leaked.
type ErrTunnelNotReady struct {
	// Remote service the tunnel was pointed at.
	Service string
	// Local port the tunnel was bound to.
	LocalPort int
	// Number of liveness probes that were made.
	Attempts int
}

func (err *ErrTunnelNotReady) Error() string {
	return fmt.Sprintf(
		"tunnel to %q on local port %d not live after %d probes",
		err.Service, err.LocalPort, err.Attempts,
	)
}

// IsStructural reports whether err (or any error in its chain) is one of the categories
// that must terminate the session immediately, as opposed to per-run failures that the
// sweep recovers from locally.
func IsStructural(err error) bool {
	var invalidSelection *ErrInvalidSelection
	var applyFailed *ErrApplyFailed
	var discoveryFailed *ErrDiscoveryFailed
	var tunnelNotReady *ErrTunnelNotReady
	return errors.As(err, &invalidSelection) ||
		errors.As(err, &applyFailed) ||
		errors.As(err, &discoveryFailed) ||
		errors.As(err, &tunnelNotReady)
}

// ExitCodeFromError maps error categories to process exit codes. Uses errors.As to look
// through the chain of errors, as opposed to just considering the topmost error in the
// chain. A nil error maps to 0. Partial sweep failures are not errors at this level:
// the sweep returns nil alongside its results unless it aborted, so overall success
// with some failed points still exits 0.
func ExitCodeFromError(err error) int {
	if err == nil {
		return 0
	}

	var invalidSelection *ErrInvalidSelection
	if errors.As(err, &invalidSelection) {
		return 2
	}

	var applyFailed *ErrApplyFailed
	if errors.As(err, &applyFailed) {
		return 3
	}

	var discoveryFailed *ErrDiscoveryFailed
	if errors.As(err, &discoveryFailed) {
		return 4
	}

	var retryExhausted *ErrRetryExhausted
	if errors.As(err, &retryExhausted) {
		return 5
	}

	var tunnelNotReady *ErrTunnelNotReady
	if errors.As(err, &tunnelNotReady) {
		return 6
	}

	var tooManyFailures *ErrTooManyConsecutiveFailures
	if errors.As(err, &tooManyFailures) {
		return 7
	}

	return 1
}
