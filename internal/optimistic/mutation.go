package optimistic

import (
	"context"
	"slices"
	"sync"
	"time"
)

type snapshot struct {
	value     any
	fetchedAt time.Time
	stale     bool
	// version is the entry version right after the speculative apply.
	version uint64
}

// mutation tracks the scopes one mutation applied to.
type mutation struct {
	name      string
	keys      []Key
	snapshots map[Key]snapshot
}

// pendingCreate is a create whose provisional entity is in the cache while
// the request is in flight.
type pendingCreate struct {
	cancel    context.CancelFunc
	cancelled bool
}

func sortedKeys(keys []Key) []Key {
	sorted := slices.Clone(keys)
	slices.SortFunc(sorted, func(a, b Key) int {
		switch {
		case a.less(b):
			return -1
		case b.less(a):
			return 1
		default:
			return 0
		}
	})
	return slices.Compact(sorted)
}

// lockKeys locks the per-key mutexes of keys in sorted order and returns the
// matching unlock function.
func (s *Synchronizer) lockKeys(keys []Key) func() {
	s.mu.Lock()
	locks := make([]*sync.Mutex, 0, len(keys))
	for _, key := range keys {
		lock, ok := s.keyLocks[key]
		if !ok {
			lock = &sync.Mutex{}
			s.keyLocks[key] = lock
		}
		locks = append(locks, lock)
	}
	s.mu.Unlock()

	for _, lock := range locks {
		lock.Lock()
	}
	return func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}
}

// begin snapshots every key and then runs apply, which changes the cache
// speculatively. Both happen under the key locks and s.mu, so an
// overlapping mutation never snapshots a half-applied state. In-flight
// reads of the keys are cancelled and their results discarded.
func (s *Synchronizer) begin(name string, keys []Key, apply func()) (*mutation, error) {
	keys = sortedKeys(keys)
	unlock := s.lockKeys(keys)
	defer unlock()

	m := &mutation{
		name:      name,
		keys:      keys,
		snapshots: make(map[Key]snapshot, len(keys)),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	for _, key := range keys {
		e := s.entryLocked(key)
		e.pending++
		e.version++
		m.snapshots[key] = snapshot{
			value:     cloneValue(e.value),
			fetchedAt: e.fetchedAt,
			stale:     e.stale,
			version:   e.version,
		}
		if e.cancel != nil {
			e.cancel()
		}
	}
	apply()
	s.mu.Unlock()

	s.logger.Debug().
		Str("mutation", name).
		Int("keys", len(keys)).
		Msg("applied speculative update")
	return m, nil
}

// commit runs reconcile with s.mu held and marks every key stale, so the
// next read resynchronizes with the server.
func (s *Synchronizer) commit(m *mutation, reconcile func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reconcile != nil {
		reconcile()
	}
	for _, key := range m.keys {
		e := s.entryLocked(key)
		e.pending--
		e.version++
		e.stale = true
	}

	s.logger.Debug().
		Str("mutation", m.name).
		Msg("committed mutation")
}

// rollback restores every snapshot of m and reports err through the
// notifier. A key that another mutation touched since the snapshot is also
// marked stale, as the restored value no longer reflects that mutation.
func (s *Synchronizer) rollback(m *mutation, err error) {
	s.mu.Lock()
	for _, key := range m.keys {
		e := s.entryLocked(key)
		snap := m.snapshots[key]
		e.value = snap.value
		e.fetchedAt = snap.fetchedAt
		e.stale = snap.stale || e.version != snap.version
		e.pending--
		e.version++
	}
	s.mu.Unlock()

	s.logger.Error().
		Err(err).
		Str("mutation", m.name).
		Msg("rolled back mutation")
	s.notifier.Notify(Notification{
		Level:   LevelError,
		Message: "failed to " + m.name,
		Err:     err,
	})
}

// trackCreate registers a pending create for the provisional id and returns
// the context its request must use.
func (s *Synchronizer) trackCreate(ctx context.Context, id ID) context.Context {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.creates[id] = &pendingCreate{cancel: cancel}
	s.mu.Unlock()
	return ctx
}

// finishCreate unregisters the pending create and reports whether it was
// cancelled by a delete of its provisional entity.
func (s *Synchronizer) finishCreate(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pc, ok := s.creates[id]
	if !ok {
		return false
	}
	delete(s.creates, id)
	pc.cancel()
	return pc.cancelled
}

// cancelCreateLocked cancels the pending create of a provisional entity.
// It returns false when no create is pending for id.
func (s *Synchronizer) cancelCreateLocked(id ID) bool {
	pc, ok := s.creates[id]
	if !ok || pc.cancelled {
		return false
	}
	pc.cancelled = true
	pc.cancel()
	return true
}

// compensate undoes a create the server committed after it was cancelled
// locally.
func (s *Synchronizer) compensate(name string, del func(ctx context.Context) error) {
	err := del(s.ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("mutation", name).
			Msg("failed to delete cancelled entity")
		s.notifier.Notify(Notification{
			Level:   LevelWarning,
			Message: "failed to undo cancelled " + name,
			Err:     err,
		})
		return
	}
	s.logger.Info().
		Str("mutation", name).
		Msg("deleted cancelled entity")
}

// withLockedKeys runs fn with the key locks of keys and s.mu held and bumps
// the version of every key.
func (s *Synchronizer) withLockedKeys(keys []Key, fn func()) {
	keys = sortedKeys(keys)
	unlock := s.lockKeys(keys)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
	for _, key := range keys {
		s.entryLocked(key).version++
	}
}

func (s *Synchronizer) collectionsLocked() ([]Collection, bool) {
	e, ok := s.entries[CollectionsKey()]
	if !ok {
		return nil, false
	}
	collections, ok := e.value.([]Collection)
	return collections, ok
}

func (s *Synchronizer) tasksLocked(collectionID int64) ([]Task, bool) {
	e, ok := s.entries[TasksKey(collectionID)]
	if !ok {
		return nil, false
	}
	tasks, ok := e.value.([]Task)
	return tasks, ok
}

// setLocked replaces the value of an existing entry without touching its
// fetch time.
func (s *Synchronizer) setLocked(key Key, value any) {
	s.entryLocked(key).value = value
}

// adjustStatsLocked applies a delta to the derived stats of the collection
// in the list and detail scopes, keeping 0 <= completed <= total.
func (s *Synchronizer) adjustStatsLocked(collectionID int64, total, completed int) {
	if total == 0 && completed == 0 {
		return
	}
	adjust := func(c *Collection) {
		c.TotalTasks = max(c.TotalTasks+total, 0)
		c.CompletedTasks = min(max(c.CompletedTasks+completed, 0), c.TotalTasks)
	}

	id := Confirmed(collectionID)
	if collections, ok := s.collectionsLocked(); ok {
		for i := range collections {
			if collections[i].ID == id {
				adjust(&collections[i])
			}
		}
	}
	if e, ok := s.entries[CollectionKey(collectionID)]; ok {
		if collection, ok := e.value.(Collection); ok {
			adjust(&collection)
			e.value = collection
		}
	}
}
