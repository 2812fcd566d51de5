package queue

import "fmt"

// QueueError represents a failure loading or persisting the pending-update queue.
type QueueError struct {
	Op      string
	Message string
	Cause   error
}

func (e *QueueError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("queue %s: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("queue %s: %s", e.Op, e.Message)
}

func (e *QueueError) Unwrap() error {
	return e.Cause
}
