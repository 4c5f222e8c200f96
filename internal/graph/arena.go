package graph

// ID is a generation-checked handle into an Arena. The zero ID is never
// valid: generations start at 1, so a forgotten or stale handle resolves to
// nothing instead of aliasing whatever reused the slot.
type ID struct {
	Index      uint32
	Generation uint32
}

// IsZero reports whether the handle is the zero value.
func (id ID) IsZero() bool {
	return id.Generation == 0
}

type slot[T any] struct {
	value      T
	generation uint32
	occupied   bool
}

// Arena is a slot-based store addressed by generation-checked handles.
// Removing an entry bumps the slot's generation, invalidating outstanding
// handles; slots are recycled for later inserts. Iteration runs in slot
// index order, which keeps whole-graph traversals deterministic.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

// Insert stores v and returns its handle.
func (a *Arena[T]) Insert(v T) ID {
	a.count++
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[idx]
		s.value = v
		s.generation++
		s.occupied = true
		return ID{Index: idx, Generation: s.generation}
	}
	a.slots = append(a.slots, slot[T]{value: v, generation: 1, occupied: true})
	return ID{Index: uint32(len(a.slots) - 1), Generation: 1}
}

// Get returns a pointer to the value for id, or false for stale or unknown
// handles. The pointer stays valid until the entry is removed.
func (a *Arena[T]) Get(id ID) (*T, bool) {
	if int(id.Index) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[id.Index]
	if !s.occupied || s.generation != id.Generation {
		return nil, false
	}
	return &s.value, true
}

// Contains reports whether id refers to a live entry.
func (a *Arena[T]) Contains(id ID) bool {
	_, ok := a.Get(id)
	return ok
}

// Remove deletes the entry for id and returns it. Stale handles are a no-op.
func (a *Arena[T]) Remove(id ID) (T, bool) {
	var zero T
	if int(id.Index) >= len(a.slots) {
		return zero, false
	}
	s := &a.slots[id.Index]
	if !s.occupied || s.generation != id.Generation {
		return zero, false
	}
	v := s.value
	s.value = zero
	s.occupied = false
	a.free = append(a.free, id.Index)
	a.count--
	return v, true
}

// Len returns the number of live entries.
func (a *Arena[T]) Len() int {
	return a.count
}

// ForEach visits every live entry in slot index order. Returning false from
// fn stops the walk. fn must not insert or remove while iterating.
func (a *Arena[T]) ForEach(fn func(ID, *T) bool) {
	for i := range a.slots {
		s := &a.slots[i]
		if !s.occupied {
			continue
		}
		if !fn(ID{Index: uint32(i), Generation: s.generation}, &s.value) {
			return
		}
	}
}
