package optimistic

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adanyl0v/go-todo-collections/internal/client"
)

const groceries = int64(5)

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []Notification
}

func (n *recordingNotifier) Notify(notification Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification)
}

func (n *recordingNotifier) all() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.notifications...)
}

func newTestSynchronizer(t *testing.T, api API, opts ...Option) *Synchronizer {
	t.Helper()
	s := New(api, opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func peekTasks(t *testing.T, s *Synchronizer, collectionID int64) []Task {
	t.Helper()
	value, ok := s.Peek(TasksKey(collectionID))
	require.True(t, ok)
	return value.([]Task)
}

func peekCollection(t *testing.T, s *Synchronizer, id int64) Collection {
	t.Helper()
	value, ok := s.Peek(CollectionKey(id))
	require.True(t, ok)
	return value.(Collection)
}

func buyMilk() NewTask {
	return NewTask{
		Title:        "Buy milk",
		Date:         time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		CollectionID: Confirmed(groceries),
	}
}

func seedTree(api *fakeAPI) {
	parentID := int64(10)
	api.addTask(client.Task{ID: 10, Title: "Party", CollectionID: groceries})
	api.addTask(client.Task{ID: 11, Title: "Chips", CollectionID: groceries, ParentTaskID: &parentID, Completed: true})
	api.addTask(client.Task{ID: 12, Title: "Soda", CollectionID: groceries, ParentTaskID: &parentID})
}

func TestSynchronizer_CreateTaskConfirmed(t *testing.T) {
	api := newFakeAPI()
	api.addCollection(groceries, "groceries")
	s := newTestSynchronizer(t, api)
	ctx := context.Background()

	tasks, err := s.Tasks(ctx, groceries)
	require.NoError(t, err)
	require.Empty(t, tasks)

	called, release := make(chan struct{}), make(chan struct{})
	api.hook("CreateTask", blockUntil(called, release))

	type result struct {
		task Task
		err  error
	}
	done := make(chan result, 1)
	go func() {
		task, err := s.CreateTask(ctx, buyMilk())
		done <- result{task, err}
	}()
	<-called

	speculative := peekTasks(t, s, groceries)
	require.Len(t, speculative, 1)
	assert.Equal(t, "Buy milk", speculative[0].Title)
	assert.True(t, speculative[0].ID.IsProvisional())

	confirmed, ok := s.Confirmed(TasksKey(groceries))
	require.True(t, ok)
	assert.Empty(t, confirmed)

	close(release)
	res := <-done
	require.NoError(t, res.err)
	assert.False(t, res.task.ID.IsProvisional())

	cached := peekTasks(t, s, groceries)
	require.Len(t, cached, 1)
	assert.Equal(t, res.task.ID, cached[0].ID)
	assert.Equal(t, "Buy milk", cached[0].Title)

	tasks, err = s.Tasks(ctx, groceries)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, res.task.ID, tasks[0].ID)
	assert.Equal(t, 2, api.called("ListTasksByCollection"))
}

func TestSynchronizer_CreateTaskFailureRollsBack(t *testing.T) {
	api := newFakeAPI()
	api.addCollection(groceries, "groceries")
	notifier := &recordingNotifier{}
	s := newTestSynchronizer(t, api, WithNotifier(notifier))
	ctx := context.Background()

	_, err := s.Tasks(ctx, groceries)
	require.NoError(t, err)
	before, err := s.Collection(ctx, groceries)
	require.NoError(t, err)

	networkErr := &client.Error{Kind: client.KindNetwork, Message: "connection refused"}
	api.hook("CreateTask", failWith(networkErr))

	_, err = s.CreateTask(ctx, buyMilk())
	require.ErrorIs(t, err, networkErr)

	assert.Empty(t, peekTasks(t, s, groceries))
	assert.Equal(t, before, peekCollection(t, s, groceries))

	notifications := notifier.all()
	require.Len(t, notifications, 1)
	assert.Equal(t, LevelError, notifications[0].Level)
	assert.ErrorIs(t, notifications[0].Err, networkErr)

	// The restored entries keep their fetch state, so no refetch happens.
	_, err = s.Tasks(ctx, groceries)
	require.NoError(t, err)
	assert.Equal(t, 1, api.called("ListTasksByCollection"))
}

func TestSynchronizer_AggregateDeltas(t *testing.T) {
	ctx := context.Background()

	prime := func(t *testing.T) (*fakeAPI, *Synchronizer) {
		api := newFakeAPI()
		api.addCollection(groceries, "groceries")
		seedTree(api)
		s := newTestSynchronizer(t, api)

		_, err := s.Collections(ctx)
		require.NoError(t, err)
		collection, err := s.Collection(ctx, groceries)
		require.NoError(t, err)
		require.Equal(t, 3, collection.TotalTasks)
		require.Equal(t, 1, collection.CompletedTasks)
		_, err = s.Tasks(ctx, groceries)
		require.NoError(t, err)
		return api, s
	}

	// pending runs mutate while the method blocks and calls check with
	// the speculative state.
	pending := func(t *testing.T, api *fakeAPI, method string, mutate func() error, check func()) {
		called, release := make(chan struct{}), make(chan struct{})
		api.hook(method, blockUntil(called, release))

		done := make(chan error, 1)
		go func() { done <- mutate() }()
		<-called
		check()
		close(release)
		require.NoError(t, <-done)
	}

	t.Run("create completed task", func(t *testing.T) {
		api, s := prime(t)
		task := buyMilk()
		task.Completed = true

		pending(t, api, "CreateTask", func() error {
			_, err := s.CreateTask(ctx, task)
			return err
		}, func() {
			collection := peekCollection(t, s, groceries)
			assert.Equal(t, 4, collection.TotalTasks)
			assert.Equal(t, 2, collection.CompletedTasks)
		})
	})

	t.Run("complete parent cascades", func(t *testing.T) {
		api, s := prime(t)
		completed := true

		pending(t, api, "UpdateTask", func() error {
			_, err := s.UpdateTask(ctx, groceries, Confirmed(10), TaskPatch{Completed: &completed})
			return err
		}, func() {
			collection := peekCollection(t, s, groceries)
			assert.Equal(t, 3, collection.TotalTasks)
			assert.Equal(t, 3, collection.CompletedTasks)

			value, ok := s.Peek(CollectionsKey())
			require.True(t, ok)
			assert.Equal(t, 3, value.([]Collection)[0].CompletedTasks)

			tasks := peekTasks(t, s, groceries)
			require.Len(t, tasks, 1)
			for _, subtask := range tasks[0].Subtasks {
				assert.True(t, subtask.Completed)
			}
		})

		collection, err := s.Collection(ctx, groceries)
		require.NoError(t, err)
		assert.Equal(t, 3, collection.CompletedTasks)
	})

	t.Run("uncomplete subtask leaves parent", func(t *testing.T) {
		api, s := prime(t)
		completed := false

		pending(t, api, "UpdateTask", func() error {
			_, err := s.UpdateTask(ctx, groceries, Confirmed(11), TaskPatch{Completed: &completed})
			return err
		}, func() {
			assert.Equal(t, 0, peekCollection(t, s, groceries).CompletedTasks)
			tasks := peekTasks(t, s, groceries)
			assert.False(t, tasks[0].Completed)
		})
	})

	t.Run("delete subtracts subtree", func(t *testing.T) {
		api, s := prime(t)

		pending(t, api, "DeleteTask", func() error {
			return s.DeleteTask(ctx, groceries, Confirmed(10))
		}, func() {
			collection := peekCollection(t, s, groceries)
			assert.Zero(t, collection.TotalTasks)
			assert.Zero(t, collection.CompletedTasks)
			assert.Empty(t, peekTasks(t, s, groceries))
		})
	})

	t.Run("move carries subtree", func(t *testing.T) {
		api, s := prime(t)
		const school = int64(6)
		api.addCollection(school, "school")
		_, err := s.Collection(ctx, school)
		require.NoError(t, err)
		_, err = s.Tasks(ctx, school)
		require.NoError(t, err)

		target := Confirmed(school)
		pending(t, api, "UpdateTask", func() error {
			_, err := s.UpdateTask(ctx, groceries, Confirmed(10), TaskPatch{CollectionID: &target})
			return err
		}, func() {
			from := peekCollection(t, s, groceries)
			to := peekCollection(t, s, school)
			assert.Zero(t, from.TotalTasks)
			assert.Equal(t, 3, to.TotalTasks)
			assert.Equal(t, 1, to.CompletedTasks)

			moved := peekTasks(t, s, school)
			require.Len(t, moved, 1)
			assert.Equal(t, school, moved[0].CollectionID)
			require.Len(t, moved[0].Subtasks, 2)
			assert.Equal(t, school, moved[0].Subtasks[0].CollectionID)
		})

		from, err := s.Collection(ctx, groceries)
		require.NoError(t, err)
		assert.Zero(t, from.TotalTasks)
		to, err := s.Collection(ctx, school)
		require.NoError(t, err)
		assert.Equal(t, 3, to.TotalTasks)
		assert.Equal(t, 1, to.CompletedTasks)
		tasks, err := s.Tasks(ctx, school)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Len(t, tasks[0].Subtasks, 2)
	})
}

func TestSynchronizer_DeleteFailureRestoresSnapshots(t *testing.T) {
	api := newFakeAPI()
	api.addCollection(groceries, "groceries")
	seedTree(api)
	notifier := &recordingNotifier{}
	s := newTestSynchronizer(t, api, WithNotifier(notifier))
	ctx := context.Background()

	collection, err := s.Collection(ctx, groceries)
	require.NoError(t, err)
	tasks, err := s.Tasks(ctx, groceries)
	require.NoError(t, err)

	api.hook("DeleteTask", failWith(notFound()))
	err = s.DeleteTask(ctx, groceries, Confirmed(10))
	assert.True(t, client.IsNotFound(err))

	assert.Equal(t, collection, peekCollection(t, s, groceries))
	assert.Equal(t, tasks, peekTasks(t, s, groceries))
	assert.Len(t, notifier.all(), 1)
}

func TestSynchronizer_StaleReadDiscarded(t *testing.T) {
	api := newFakeAPI()
	api.addCollection(groceries, "groceries")
	s := newTestSynchronizer(t, api)
	ctx := context.Background()

	_, err := s.Tasks(ctx, groceries)
	require.NoError(t, err)
	s.Invalidate(TasksKey(groceries))

	listCalled := make(chan struct{})
	api.hook("ListTasksByCollection", blockUntilCancelled(listCalled))

	type result struct {
		tasks []Task
		err   error
	}
	read := make(chan result, 1)
	go func() {
		tasks, err := s.Tasks(ctx, groceries)
		read <- result{tasks, err}
	}()
	<-listCalled
	assert.True(t, s.Loading(TasksKey(groceries)))

	createCalled, release := make(chan struct{}), make(chan struct{})
	api.hook("CreateTask", blockUntil(createCalled, release))
	created := make(chan error, 1)
	go func() {
		_, err := s.CreateTask(ctx, buyMilk())
		created <- err
	}()
	<-createCalled

	res := <-read
	require.NoError(t, res.err)
	require.Len(t, res.tasks, 1)
	assert.True(t, res.tasks[0].ID.IsProvisional())
	assert.False(t, s.Loading(TasksKey(groceries)))

	close(release)
	require.NoError(t, <-created)
}

func TestSynchronizer_DeleteProvisional(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels pending create", func(t *testing.T) {
		api := newFakeAPI()
		api.addCollection(groceries, "groceries")
		s := newTestSynchronizer(t, api)

		collection, err := s.Collection(ctx, groceries)
		require.NoError(t, err)
		_, err = s.Tasks(ctx, groceries)
		require.NoError(t, err)

		called := make(chan struct{})
		api.hook("CreateTask", blockUntilCancelled(called))
		created := make(chan error, 1)
		go func() {
			_, err := s.CreateTask(ctx, buyMilk())
			created <- err
		}()
		<-called

		tasks := peekTasks(t, s, groceries)
		require.Len(t, tasks, 1)
		require.NoError(t, s.DeleteTask(ctx, groceries, tasks[0].ID))

		assert.ErrorIs(t, <-created, ErrCancelled)
		assert.Empty(t, peekTasks(t, s, groceries))
		assert.Equal(t, collection.TotalTasks, peekCollection(t, s, groceries).TotalTasks)
		assert.Zero(t, api.called("DeleteTask"))
	})

	t.Run("compensates committed create", func(t *testing.T) {
		api := newFakeAPI()
		api.addCollection(groceries, "groceries")
		s := newTestSynchronizer(t, api)

		_, err := s.Tasks(ctx, groceries)
		require.NoError(t, err)

		called, release := make(chan struct{}), make(chan struct{})
		api.hook("CreateTask", blockUntil(called, release))
		created := make(chan error, 1)
		go func() {
			_, err := s.CreateTask(ctx, buyMilk())
			created <- err
		}()
		<-called

		tasks := peekTasks(t, s, groceries)
		require.Len(t, tasks, 1)
		require.NoError(t, s.DeleteTask(ctx, groceries, tasks[0].ID))
		close(release)

		assert.ErrorIs(t, <-created, ErrCancelled)
		assert.Equal(t, 1, api.called("DeleteTask"))

		tasks, err = s.Tasks(ctx, groceries)
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("collection", func(t *testing.T) {
		api := newFakeAPI()
		s := newTestSynchronizer(t, api)

		_, err := s.Collections(ctx)
		require.NoError(t, err)

		called := make(chan struct{})
		api.hook("CreateCollection", blockUntilCancelled(called))
		created := make(chan error, 1)
		go func() {
			_, err := s.CreateCollection(ctx, client.CreateCollectionRequest{Name: "design"})
			created <- err
		}()
		<-called

		value, ok := s.Peek(CollectionsKey())
		require.True(t, ok)
		collections := value.([]Collection)
		require.Len(t, collections, 1)
		require.NoError(t, s.DeleteCollection(ctx, collections[0].ID))

		assert.ErrorIs(t, <-created, ErrCancelled)
		assert.Zero(t, api.called("DeleteCollection"))
	})

	t.Run("unknown provisional id", func(t *testing.T) {
		s := newTestSynchronizer(t, newFakeAPI())
		err := s.DeleteTask(ctx, groceries, Provisional(1))
		assert.ErrorIs(t, err, ErrProvisional)
	})
}

func TestSynchronizer_ProvisionalGuards(t *testing.T) {
	api := newFakeAPI()
	s := newTestSynchronizer(t, api)
	ctx := context.Background()
	title := "renamed"

	_, err := s.UpdateTask(ctx, groceries, Provisional(1), TaskPatch{Title: &title})
	assert.ErrorIs(t, err, ErrProvisional)

	_, err = s.UpdateCollection(ctx, Provisional(1), client.UpdateCollectionRequest{Name: &title})
	assert.ErrorIs(t, err, ErrProvisional)

	task := buyMilk()
	task.CollectionID = Provisional(2)
	_, err = s.CreateTask(ctx, task)
	assert.ErrorIs(t, err, ErrProvisional)

	task = buyMilk()
	parent := Provisional(3)
	task.ParentTaskID = &parent
	_, err = s.CreateTask(ctx, task)
	assert.ErrorIs(t, err, ErrProvisional)

	assert.Empty(t, api.calls)
}

func TestSynchronizer_UpdateCollectionRoundTrip(t *testing.T) {
	api := newFakeAPI()
	api.addCollection(groceries, "groceries")
	s := newTestSynchronizer(t, api)
	ctx := context.Background()

	_, err := s.Collections(ctx)
	require.NoError(t, err)

	name := "Renamed"
	updated, err := s.UpdateCollection(ctx, Confirmed(groceries), client.UpdateCollectionRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)

	collection, err := s.Collection(ctx, groceries)
	require.NoError(t, err)
	assert.Equal(t, Confirmed(groceries), collection.ID)
	assert.Equal(t, "Renamed", collection.Name)

	require.NoError(t, s.DeleteCollection(ctx, Confirmed(groceries)))
	collections, err := s.Collections(ctx)
	require.NoError(t, err)
	assert.Empty(t, collections)
}

func TestSynchronizer_BackgroundRefresh(t *testing.T) {
	api := newFakeAPI()
	api.addCollection(groceries, "groceries")

	var mu sync.Mutex
	now := time.Now()
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	s := newTestSynchronizer(t, api, WithClock(clock), WithTTL(time.Minute))
	ctx := context.Background()

	collection, err := s.Collection(ctx, groceries)
	require.NoError(t, err)
	require.Equal(t, "groceries", collection.Name)

	api.addCollection(groceries, "food")
	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	collection, err = s.Collection(ctx, groceries)
	require.NoError(t, err)
	assert.Equal(t, "groceries", collection.Name)

	assert.Eventually(t, func() bool {
		value, ok := s.Peek(CollectionKey(groceries))
		return ok && value.(Collection).Name == "food"
	}, time.Second, 10*time.Millisecond)
}

func TestSynchronizer_Close(t *testing.T) {
	api := newFakeAPI()
	s := New(api)
	ctx := context.Background()

	called := make(chan struct{})
	api.hook("ListCollections", blockUntilCancelled(called))

	read := make(chan error, 1)
	go func() {
		_, err := s.Collections(ctx)
		read <- err
	}()
	<-called

	require.NoError(t, s.Close())
	err := <-read
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled) || errors.Is(err, ErrClosed))

	_, err = s.CreateCollection(ctx, client.CreateCollectionRequest{Name: "late"})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Collections(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}
