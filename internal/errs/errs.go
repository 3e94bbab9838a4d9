// Package errs holds the error taxonomy shared by the decision engine.
//
// Callers match on these with errors.Is; component packages wrap them with
// context (policy name, symbol, field) using fmt.Errorf("...: %w", ...).
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is fatal and only ever returned at construction time.
	ErrConfiguration = errors.New("configuration error")

	// ErrPolicy marks a risk policy that failed or returned an unusable result.
	// The gate converts it into a fail-closed deny; it never reaches the hub.
	ErrPolicy = errors.New("policy error")

	// ErrScoring marks an unavailable or failing scorer. Mapped to a neutral score.
	ErrScoring = errors.New("scoring error")

	// ErrFillMismatch marks a confirmation whose quantity or price differs from
	// the request. The ledger always takes the confirmed values.
	ErrFillMismatch = errors.New("fill mismatch")
)

// Config returns an ErrConfiguration wrapping error for the named field.
func Config(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrConfiguration, field, fmt.Sprintf(format, args...))
}
