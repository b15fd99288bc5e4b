package repository

import (
	"errors"
	"go-ledger-api/model"
	"sync"
	"sync/atomic"
)

// ErrNilEntity is returned when Store is called without an entity.
var ErrNilEntity = errors.New("entity must not be nil")

// Repository is an in-memory keyed store for entities of type T, held by
// pointer. Identifiers come from a single counter per repository and are
// handed out in increasing order, so an entity stored after another one
// returned always carries the larger id.
type Repository[T any, PT interface {
	*T
	model.Entity
}] struct {
	mu      sync.RWMutex
	entries map[int64]PT
	lastID  atomic.Int64
}

func NewRepository[T any, PT interface {
	*T
	model.Entity
}]() *Repository[T, PT] {
	return &Repository[T, PT]{entries: make(map[int64]PT)}
}

// Store assigns an identifier to entity if it has none, then inserts or
// replaces the entry under that identifier. The same pointer is returned.
// An explicit identifier moves the counter forward, so later assigned ids
// never collide with it.
func (r *Repository[T, PT]) Store(entity PT) (PT, error) {
	if entity == nil {
		return nil, ErrNilEntity
	}
	if id := entity.GetID(); id == model.NoID {
		entity.SetID(r.lastID.Add(1))
	} else {
		r.advanceTo(id)
	}

	r.mu.Lock()
	r.entries[entity.GetID()] = entity
	r.mu.Unlock()
	return entity, nil
}

func (r *Repository[T, PT]) advanceTo(id int64) {
	for {
		last := r.lastID.Load()
		if id <= last || r.lastID.CompareAndSwap(last, id) {
			return
		}
	}
}

// FindByID returns the entity stored under id and whether it was found.
func (r *Repository[T, PT]) FindByID(id int64) (PT, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entity, ok := r.entries[id]
	return entity, ok
}

// Count returns the number of stored entities.
func (r *Repository[T, PT]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
