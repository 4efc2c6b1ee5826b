package core

import "sync"

// ExecGuard serializes state-changing operations. At most one operation runs
// at a time; a second caller fails immediately with ErrOperationInProgress
// instead of queueing, so no caller ever blocks behind a slow operation.
type ExecGuard struct {
	mu sync.Mutex
}

// Acquire claims the guard. On success it returns a release func that MUST
// be called (defer it) once the operation has committed or rolled back.
func (g *ExecGuard) Acquire() (func(), error) {
	if !g.mu.TryLock() {
		return nil, ErrOperationInProgress
	}
	return g.mu.Unlock, nil
}
