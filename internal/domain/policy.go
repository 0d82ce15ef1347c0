package domain

import "fmt"

// FailurePolicy decides how a batch execution treats a failing item.
type FailurePolicy int

const (
	// FailFast aborts the batch on the first error.
	FailFast FailurePolicy = iota
	// Isolate records the error against the item and carries on.
	Isolate
)

func (p FailurePolicy) String() string {
	if p == Isolate {
		return "isolate"
	}
	return "fail-fast"
}

// ParseFailurePolicy maps "fail-fast" and "isolate" to a policy. The empty
// string yields def.
func ParseFailurePolicy(s string, def FailurePolicy) (FailurePolicy, error) {
	switch s {
	case "":
		return def, nil
	case "fail-fast":
		return FailFast, nil
	case "isolate":
		return Isolate, nil
	}
	return def, fmt.Errorf("unknown failure policy %q", s)
}
