package dag

import (
	"fmt"
	"strings"
)

// UnknownReferenceError reports a selector whose target does not exist: an
// undeclared input, an unknown step, or an output the producing block does
// not declare. The selector is preserved verbatim.
type UnknownReferenceError struct {
	// Step is the consuming step, or empty when the reference comes from a
	// workflow output binding.
	Step     string
	Selector string
}

func (e *UnknownReferenceError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("workflow output references unknown target %q", e.Selector)
	}
	return fmt.Sprintf("step %q references unknown target %q", e.Step, e.Selector)
}

// CyclicWorkflowError reports a dependency cycle. Cycle holds the step names
// in cycle order, starting and ending at the same step.
type CyclicWorkflowError struct {
	Cycle []string
}

func (e *CyclicWorkflowError) Error() string {
	return fmt.Sprintf("workflow contains a dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}
