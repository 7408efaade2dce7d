package sim

import "errors"

var (
	// ErrConfiguration marks malformed catalogs or consumer specs.
	// Returned before any simulated time advances.
	ErrConfiguration = errors.New("configuration error")

	// ErrDegenerateBilling marks an instance that could bill zero cost for
	// non-zero work, or zero time for a non-zero number of units.
	ErrDegenerateBilling = errors.New("degenerate billing")

	// ErrStalled is returned by Run when a decision cycle did not advance
	// simulated time while work was still outstanding.
	ErrStalled = errors.New("consumer stalled")
)
