package automation

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors for the automation package.
var (
	// ErrInvalidAction is returned when a command word does not name an action.
	ErrInvalidAction = errors.New("automation: invalid action")
)

// Failure records one relay that did not reach its target state.
type Failure struct {
	Relay string `json:"relay"`
	Err   error  `json:"-"`
}

// ApplyError aggregates per-relay failures of a preset or group action.
// Relays not listed in Failures were switched successfully.
//
// errors.Is and errors.As see through it to every relay error:
//
//	if errors.Is(err, kasa.ErrUnreachable) {
//	    // at least one relay was offline
//	}
type ApplyError struct {
	Scope    string // "preset" or "tag"
	Name     string
	Failures []Failure
}

func (e *ApplyError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %d relay(s) failed", e.Scope, e.Name, len(e.Failures))
	for i, f := range e.Failures {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(f.Err.Error())
	}
	return b.String()
}

// Unwrap returns the individual relay errors.
func (e *ApplyError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
