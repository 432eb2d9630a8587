package cache

import "fmt"

// OpError wraps a provider or generation store failure. It only reaches
// callers when the cache runs fail-closed.
type OpError struct {
	Op  string // get, set, del or snapshot
	Key string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("user cache %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }
