package compiler

import (
	"fmt"

	"github.com/specialistvlad/gridflow/internal/kind"
)

// KindMismatchError reports an edge whose produced and accepted kind sets do
// not intersect. Both sockets and both kind sets are named so the diagnostic
// stands on its own.
type KindMismatchError struct {
	// ConsumerStep and Field identify the consuming socket.
	ConsumerStep string
	Field        string
	Accepted     kind.Set
	// Producer is the producing socket as written in the selector.
	Producer string
	Produced kind.Set
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf(
		"kind mismatch: step %q field %q accepts %s but %q produces %s",
		e.ConsumerStep, e.Field, e.Accepted, e.Producer, e.Produced)
}
