// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package kfa

import (
	"context"
	"sync"
)

// waitCond parks the caller on cond (which must be bound to the lock already
// held by the caller) until either cond is signalled or ctx is cancelled.
// It is the bridge between sync.Cond's uninterruptible Wait and cancellable
// blocking: a parked writer/reader observes Interrupted when ctx is
// cancelled instead of blocking forever.
//
// Precondition: the caller holds the mutex backing cond. waitCond releases
// it across the wait and re-acquires it before returning, exactly like
// cond.Wait() would.
func waitCond(ctx context.Context, mu *sync.Mutex, cond *sync.Cond) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		// Wake every waiter on this cond so the cancelled one can observe
		// ctx.Err() and return; others simply re-check their own predicate
		// and go back to sleep.
		mu.Lock()
		cond.Broadcast()
		mu.Unlock()
	})
	defer stop()

	cond.Wait()
	return ctx.Err()
}
