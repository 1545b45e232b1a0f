// Package simerr defines the error classes shared by the simulation packages.
// Package-level sentinels wrap one of these so callers can classify failures
// with errors.Is.
package simerr

import "errors"

var (
	// ErrConfiguration marks a malformed rule-set, parameter-set or scenario
	// setting. Surfaced before stepping begins.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidTopology marks a malformed grid: out-of-bounds access, a cell
	// claimed by the wrong room, a broken door link.
	ErrInvalidTopology = errors.New("invalid topology")

	// ErrStateViolation marks an operation on state the registry does not
	// track, or an ambiguous potential assignment.
	ErrStateViolation = errors.New("state violation")

	// ErrUnreachable marks an individual without a path to any exit. The
	// engine resolves it as a death cause and never returns it from a step.
	ErrUnreachable = errors.New("exit unreachable")
)
