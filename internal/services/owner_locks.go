package services

import "sync"

// ownerLocks hands out one mutex per owner so that sibling sweeps for the
// same owner never interleave inside this process.
type ownerLocks struct {
	locks sync.Map
}

func (o *ownerLocks) lock(ownerID string) func() {
	v, _ := o.locks.LoadOrStore(ownerID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
