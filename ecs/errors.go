package ecs

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrInvariantViolation is the root of panics raised when the world's bookkeeping is
// inconsistent. It always indicates a defect in this package.
var ErrInvariantViolation = eris.New("ecs invariant violation")

func invariantViolation(format string, args ...any) error {
	return eris.Wrapf(ErrInvariantViolation, format, args...)
}

// AccessConflictError reports two systems (or two inputs of one system) whose declared
// access overlaps in a way that would alias a write.
type AccessConflictError struct {
	SystemA    string
	SystemB    string
	Exclusive  bool
	Components []string
	Resources  []string
}

func (e *AccessConflictError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "access conflict between %q and %q", e.SystemA, e.SystemB)
	if e.Exclusive {
		b.WriteString(": exclusive world access")
	}
	if len(e.Components) > 0 {
		fmt.Fprintf(&b, "; components [%s]", strings.Join(e.Components, ", "))
	}
	if len(e.Resources) > 0 {
		fmt.Fprintf(&b, "; resources [%s]", strings.Join(e.Resources, ", "))
	}
	return b.String()
}
