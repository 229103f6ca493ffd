// internal/services/locks.go
package services

import (
	"sync"

	"github.com/google/uuid"
)

// assetLocks serializes mutating operations per asset. The database
// transaction gives each operation all-or-nothing semantics; this mutex adds
// the single-writer guarantee the core contract asks from a non-transactional
// substrate, so two operations never interleave against the same asset.
type assetLocks struct {
	mtx   sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewAssetLocks() *assetLocks {
	return &assetLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// Lock acquires the asset's mutex and returns its unlock function.
func (l *assetLocks) Lock(assetID uuid.UUID) func() {
	l.mtx.Lock()
	m, ok := l.locks[assetID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[assetID] = m
	}
	l.mtx.Unlock()

	m.Lock()
	return m.Unlock
}
