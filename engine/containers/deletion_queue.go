package containers

// DeletionQueue collects release functions and runs them newest first.
// Resources pushed in creation order are therefore destroyed before the
// resources they depend on.
//
// The queue only owns the closures, never the resources. Pushing from inside
// a function that is being flushed is not supported.
type DeletionQueue struct {
	deletors []func()
}

func NewDeletionQueue() *DeletionQueue {
	return &DeletionQueue{}
}

// Push registers fn to be run by the next Flush.
func (dq *DeletionQueue) Push(fn func()) {
	dq.deletors = append(dq.deletors, fn)
}

// Flush runs every pending function in reverse push order and empties the
// queue. Flushing an empty queue does nothing.
func (dq *DeletionQueue) Flush() {
	for i := len(dq.deletors) - 1; i >= 0; i-- {
		dq.deletors[i]()
		dq.deletors[i] = nil
	}
	dq.deletors = dq.deletors[:0]
}

// Len is the number of pending functions.
func (dq *DeletionQueue) Len() int {
	return len(dq.deletors)
}
