package file

import (
	"context"
	"sync"
)

// scopeLocks hands out one exclusive slot per scope id. Entries are removed
// once no goroutine holds or waits for them.
type scopeLocks struct {
	mu    sync.Mutex
	slots map[int64]*scopeSlot
}

type scopeSlot struct {
	ch   chan struct{}
	refs int
}

func newScopeLocks() *scopeLocks {
	return &scopeLocks{slots: make(map[int64]*scopeSlot)}
}

// acquire blocks until the slot for scopeID is free or ctx is done.
//
// Postcondition: on nil error the caller must call the returned release exactly once.
func (l *scopeLocks) acquire(ctx context.Context, scopeID int64) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[scopeID]
	if !ok {
		slot = &scopeSlot{ch: make(chan struct{}, 1)}
		l.slots[scopeID] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
		return func() {
			<-slot.ch
			l.unref(scopeID, slot)
		}, nil
	case <-ctx.Done():
		l.unref(scopeID, slot)
		return nil, ctx.Err()
	}
}

func (l *scopeLocks) unref(scopeID int64, slot *scopeSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, scopeID)
	}
}

// held reports how many scopes currently have holders or waiters.
func (l *scopeLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
