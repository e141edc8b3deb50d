package engine

import "sync"

// itemLocks guards against two jobs processing the same catalog item at the
// same time. Acquisition never blocks; the loser fails fast with busy.
type itemLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newItemLocks() *itemLocks {
	return &itemLocks{held: make(map[string]struct{})}
}

func (l *itemLocks) TryAcquire(itemID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[itemID]; taken {
		return false
	}
	l.held[itemID] = struct{}{}
	return true
}

func (l *itemLocks) Release(itemID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, itemID)
}
