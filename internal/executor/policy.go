package executor

import "fmt"

// Policy controls what happens to the rest of a run when a step fails.
type Policy int

const (
	// PolicyFailFast cancels in-flight work and fails the whole run on the
	// first step failure.
	PolicyFailFast Policy = iota
	// PolicyIsolate confines a failure to the failing step's dependency
	// subtree; unaffected branches keep running and their outputs survive.
	PolicyIsolate
)

func (p Policy) String() string {
	switch p {
	case PolicyFailFast:
		return "fail-fast"
	case PolicyIsolate:
		return "isolate"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy maps a configuration string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "fail-fast", "":
		return PolicyFailFast, nil
	case "isolate":
		return PolicyIsolate, nil
	default:
		return 0, fmt.Errorf("unknown failure policy %q (want fail-fast or isolate)", s)
	}
}
