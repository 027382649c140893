package executor

import "fmt"

// StepExecutionError wraps a failure raised by a block while a step was
// running. It always names the failing step.
type StepExecutionError struct {
	Step string
	Err  error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
}

func (e *StepExecutionError) Unwrap() error { return e.Err }

// UnresolvedValueError reports a read of a reference whose producing step
// has not committed its outputs. A compiled plan never schedules a step
// before its producers, so hitting this indicates a bug rather than a bad
// workflow document.
type UnresolvedValueError struct {
	Reference string
}

func (e *UnresolvedValueError) Error() string {
	return fmt.Sprintf("value for %q has not been produced yet", e.Reference)
}

// MissingInputError reports a workflow input the caller did not supply at
// run time.
type MissingInputError struct {
	Input string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing runtime value for input %q", e.Input)
}

// BatchSizeMismatchError reports image inputs whose batches disagree on
// length.
type BatchSizeMismatchError struct {
	Input    string
	Got      int
	Expected int
}

func (e *BatchSizeMismatchError) Error() string {
	return fmt.Sprintf("input %q carries %d items, other batch inputs carry %d", e.Input, e.Got, e.Expected)
}
