// backend/src/services/match_ledger.go
package services

import "sync"

// MatchLedger serializes match-state transitions per transaction. Confirm,
// unmatch and ignore for the same transaction run one at a time; operations on
// different transactions proceed independently. The database-level guards
// (partial unique index on matched rows, status-guarded UPDATEs) back this up
// across processes; the ledger keeps in-process contention deterministic.
type MatchLedger struct {
	mu    sync.Mutex
	locks map[int64]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewMatchLedger() *MatchLedger {
	return &MatchLedger{locks: make(map[int64]*entry)}
}

// Lock acquires the per-transaction lock and returns the unlock function.
// Entries are reference counted so the map does not grow with every
// transaction ever touched.
func (l *MatchLedger) Lock(transactionID int64) func() {
	l.mu.Lock()
	e, ok := l.locks[transactionID]
	if !ok {
		e = &entry{}
		l.locks[transactionID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, transactionID)
		}
		l.mu.Unlock()
	}
}
