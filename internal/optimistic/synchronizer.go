// Package optimistic keeps a client-side cache of collections and tasks in
// sync with the API while applying mutations speculatively.
//
// Every mutation snapshots the scopes it touches, applies its expected
// outcome to the cache, sends the request and then either reconciles the
// cache with the server's answer or restores the snapshots.
package optimistic

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/adanyl0v/go-todo-collections/internal/client"
)

const DefaultTTL = 5 * time.Minute

var (
	// ErrProvisional is returned when an operation needs a confirmed ID but
	// got a provisional one.
	ErrProvisional = errors.New("optimistic: entity is not confirmed by the server yet")
	// ErrCancelled is returned by a create whose provisional entity was
	// deleted before the server answered.
	ErrCancelled = errors.New("optimistic: create cancelled")
	ErrClosed    = errors.New("optimistic: synchronizer closed")

	errSuperseded = errors.New("optimistic: read superseded by a mutation")
)

// API is the subset of the REST client the synchronizer drives.
// *client.Client implements it.
type API interface {
	ListCollections(ctx context.Context) ([]client.Collection, error)
	GetCollection(ctx context.Context, id int64) (*client.Collection, error)
	CreateCollection(ctx context.Context, req client.CreateCollectionRequest) (*client.Collection, error)
	UpdateCollection(ctx context.Context, id int64, req client.UpdateCollectionRequest) (*client.Collection, error)
	DeleteCollection(ctx context.Context, id int64) error

	ListTasksByCollection(ctx context.Context, collectionID int64, completed *bool) ([]client.Task, error)
	CreateTask(ctx context.Context, req client.CreateTaskRequest) (*client.Task, error)
	UpdateTask(ctx context.Context, id int64, req client.UpdateTaskRequest) (*client.Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

type entry struct {
	value     any
	fetchedAt time.Time
	// stale entries are fetched again on the next read.
	stale   bool
	version uint64
	// pending counts mutations that have applied to this entry and not
	// finished yet. Fetched values are not stored while it is non-zero.
	pending int
	loading int
	cancel  context.CancelFunc
}

type Synchronizer struct {
	api      API
	logger   zerolog.Logger
	notifier Notifier
	ttl      time.Duration
	now      func() time.Time
	ids      idGenerator

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	group  singleflight.Group

	mu       sync.Mutex
	closed   bool
	entries  map[Key]*entry
	keyLocks map[Key]*sync.Mutex
	creates  map[ID]*pendingCreate
}

type Option func(*Synchronizer)

// WithTTL sets how long a fetched value is served before a read triggers a
// background refresh.
func WithTTL(ttl time.Duration) Option {
	return func(s *Synchronizer) {
		s.ttl = ttl
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = logger
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(s *Synchronizer) {
		s.notifier = notifier
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) {
		s.now = now
	}
}

// New returns a synchronizer over api. The caller owns it and must Close
// it.
func New(api API, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		api:      api,
		logger:   zerolog.Nop(),
		ttl:      DefaultTTL,
		now:      time.Now,
		entries:  make(map[Key]*entry),
		keyLocks: make(map[Key]*sync.Mutex),
		creates:  make(map[ID]*pendingCreate),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = LogNotifier{Logger: s.logger}
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Close cancels in-flight reads and background refreshes and waits for
// them to return. Mutations started after Close fail with ErrClosed.
func (s *Synchronizer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Debug().Msg("closed synchronizer")
	return nil
}

func (s *Synchronizer) Collections(ctx context.Context) ([]Collection, error) {
	value, err := s.read(ctx, CollectionsKey(), func(ctx context.Context) (any, error) {
		collections, err := s.api.ListCollections(ctx)
		if err != nil {
			return nil, err
		}
		values := make([]Collection, 0, len(collections))
		for _, collection := range collections {
			values = append(values, collectionFromClient(collection))
		}
		return values, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]Collection), nil
}

func (s *Synchronizer) Collection(ctx context.Context, id int64) (Collection, error) {
	value, err := s.read(ctx, CollectionKey(id), func(ctx context.Context) (any, error) {
		collection, err := s.api.GetCollection(ctx, id)
		if err != nil {
			return nil, err
		}
		return collectionFromClient(*collection), nil
	})
	if err != nil {
		return Collection{}, err
	}
	return value.(Collection), nil
}

// Tasks returns the top-level tasks of the collection with their subtasks.
func (s *Synchronizer) Tasks(ctx context.Context, collectionID int64) ([]Task, error) {
	value, err := s.read(ctx, TasksKey(collectionID), func(ctx context.Context) (any, error) {
		tasks, err := s.api.ListTasksByCollection(ctx, collectionID, nil)
		if err != nil {
			return nil, err
		}
		values := make([]Task, 0, len(tasks))
		for _, task := range tasks {
			values = append(values, taskFromClient(task))
		}
		return values, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]Task), nil
}

// Peek returns a copy of the cached value of key without fetching. The
// value is a []Collection, a Collection or a []Task depending on the key
// kind.
func (s *Synchronizer) Peek(key Key) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.value == nil {
		return nil, false
	}
	return cloneValue(e.value), true
}

// Confirmed is Peek with every provisional entity filtered out.
func (s *Synchronizer) Confirmed(key Key) (any, bool) {
	value, ok := s.Peek(key)
	if !ok {
		return nil, false
	}
	return confirmedValue(value)
}

// Loading reports whether a fetch for key is in flight.
func (s *Synchronizer) Loading(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	return ok && e.loading > 0
}

// Invalidate marks the keys stale so that their next read fetches.
func (s *Synchronizer) Invalidate(keys ...Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		if e, ok := s.entries[key]; ok {
			e.stale = true
		}
	}
}

type fetchFunc func(ctx context.Context) (any, error)

func (s *Synchronizer) read(ctx context.Context, key Key, fetch fetchFunc) (any, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, ErrClosed
		}
		e := s.entryLocked(key)
		if e.value != nil && (!e.stale || e.pending > 0) {
			value := cloneValue(e.value)
			expired := !e.stale && s.now().Sub(e.fetchedAt) > s.ttl && e.loading == 0 && e.pending == 0
			s.mu.Unlock()

			if expired {
				s.refresh(key, fetch)
			}
			return value, nil
		}
		s.mu.Unlock()

		ch := s.group.DoChan(key.String(), func() (any, error) {
			return s.load(key, fetch)
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if errors.Is(res.Err, errSuperseded) {
				continue
			}
			if res.Err != nil {
				return nil, res.Err
			}
			return cloneValue(res.Val), nil
		}
	}
}

// refresh reloads key in the background.
func (s *Synchronizer) refresh(key Key, fetch fetchFunc) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		_, err, _ := s.group.Do(key.String(), func() (any, error) {
			return s.load(key, fetch)
		})
		if err != nil && !errors.Is(err, errSuperseded) && !errors.Is(err, context.Canceled) {
			s.logger.Warn().
				Err(err).
				Stringer("key", key).
				Msg("failed to refresh cache entry")
		}
	}()
}

// load runs fetch and stores its result, unless a mutation touched the
// entry meanwhile. In that case the caller gets the current speculative
// value instead.
func (s *Synchronizer) load(key Key, fetch fetchFunc) (any, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	e := s.entryLocked(key)
	ctx, cancel := context.WithCancel(s.ctx)
	version := e.version
	e.loading++
	e.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	defer cancel()

	value, err := fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	e.loading--
	if e.loading == 0 {
		e.cancel = nil
	}

	if e.version != version || e.pending > 0 {
		s.logger.Debug().
			Stringer("key", key).
			Msg("discarded superseded read")
		if e.value != nil {
			return cloneValue(e.value), nil
		}
		switch {
		case err == nil:
			return value, nil
		case s.closed:
			return nil, ErrClosed
		case e.version != version:
			return nil, errSuperseded
		default:
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}

	e.value = value
	e.fetchedAt = s.now()
	e.stale = false
	return cloneValue(value), nil
}

func (s *Synchronizer) entryLocked(key Key) *entry {
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	return e
}
