package util

import "context"

// MergeCtx returns a context that is canceled as soon as either a or
// b is, plus a release func the caller must invoke once the merged
// context is no longer needed so the watcher goroutine exits.
func MergeCtx(a context.Context, b context.Context) (context.Context, context.CancelFunc) {
	if a == nil || b == nil {
		panic("a or b is nil")
	}
	merged, cancel := context.WithCancel(a)
	go func() {
		defer cancel()
		select {
		case <-merged.Done():
		case <-b.Done():
		}
	}()
	return merged, cancel
}
