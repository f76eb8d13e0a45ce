package renderer

import "fmt"

// InvalidRangeError rejects a thread range before the browser is touched.
type InvalidRangeError struct {
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return "thread range should have " + e.Reason
}

// ElementNotFoundError means the thread cell at Index never became visible.
type ElementNotFoundError struct {
	Index int
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("thread element %d not found", e.Index)
}
