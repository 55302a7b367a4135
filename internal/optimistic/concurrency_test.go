package optimistic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adanyl0v/go-todo-collections/internal/client"
)

const hardware = int64(6)

type createResult struct {
	task Task
	err  error
}

// startCreate runs CreateTask in the background with a hook installed and
// waits until the request reaches the API.
func startCreate(t *testing.T, s *Synchronizer, api *fakeAPI, hook func(called chan<- struct{}) hookFunc, in NewTask) <-chan createResult {
	t.Helper()
	called := make(chan struct{})
	api.hook("CreateTask", hook(called))

	done := make(chan createResult, 1)
	go func() {
		task, err := s.CreateTask(context.Background(), in)
		done <- createResult{task, err}
	}()
	<-called
	return done
}

func warmUp(t *testing.T, s *Synchronizer, collectionIDs ...int64) {
	t.Helper()
	ctx := context.Background()
	_, err := s.Collections(ctx)
	require.NoError(t, err)
	for _, id := range collectionIDs {
		_, err = s.Collection(ctx, id)
		require.NoError(t, err)
		_, err = s.Tasks(ctx, id)
		require.NoError(t, err)
	}
}

func TestSynchronizer_OverlappingCreatesOnSameScope(t *testing.T) {
	api := newFakeAPI()
	api.addCollection(groceries, "groceries")
	s := newTestSynchronizer(t, api)
	warmUp(t, s, groceries)

	release := make(chan struct{})
	block := func(called chan<- struct{}) hookFunc { return blockUntil(called, release) }

	milk := buyMilk()
	bread := buyMilk()
	bread.Title = "Buy bread"
	first := startCreate(t, s, api, block, milk)
	second := startCreate(t, s, api, block, bread)

	speculative := peekTasks(t, s, groceries)
	require.Len(t, speculative, 2)
	assert.Equal(t, "Buy milk", speculative[0].Title)
	assert.Equal(t, "Buy bread", speculative[1].Title)
	assert.True(t, speculative[0].ID.IsProvisional())
	assert.True(t, speculative[1].ID.IsProvisional())
	assert.NotEqual(t, speculative[0].ID, speculative[1].ID)
	assert.Equal(t, 2, peekCollection(t, s, groceries).TotalTasks)

	close(release)
	for _, done := range []<-chan createResult{first, second} {
		res := <-done
		require.NoError(t, res.err)
		assert.False(t, res.task.ID.IsProvisional())
	}

	cached := peekTasks(t, s, groceries)
	require.Len(t, cached, 2)
	for _, task := range cached {
		assert.False(t, task.ID.IsProvisional())
	}

	tasks, err := s.Tasks(context.Background(), groceries)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
	collection, err := s.Collection(context.Background(), groceries)
	require.NoError(t, err)
	assert.Equal(t, 2, collection.TotalTasks)
}

func TestSynchronizer_RollbackAfterOverlappingCommit(t *testing.T) {
	api := newFakeAPI()
	api.addCollection(groceries, "groceries")
	notifier := &recordingNotifier{}
	s := newTestSynchronizer(t, api, WithNotifier(notifier))
	warmUp(t, s, groceries)
	listed := api.called("ListTasksByCollection")

	serverErr := &client.Error{Kind: client.KindServer, StatusCode: 500, Message: "Internal Server Error"}
	releaseFirst := make(chan struct{})
	first := startCreate(t, s, api, func(called chan<- struct{}) hookFunc {
		return blockThenFail(called, releaseFirst, serverErr)
	}, buyMilk())

	releaseSecond := make(chan struct{})
	bread := buyMilk()
	bread.Title = "Buy bread"
	second := startCreate(t, s, api, func(called chan<- struct{}) hookFunc {
		return blockUntil(called, releaseSecond)
	}, bread)

	close(releaseSecond)
	res := <-second
	require.NoError(t, res.err)

	close(releaseFirst)
	res = <-first
	require.ErrorIs(t, res.err, serverErr)

	// The failed create restores its own snapshot, which predates the
	// committed one, and leaves the scope stale.
	assert.Empty(t, peekTasks(t, s, groceries))

	tasks, err := s.Tasks(context.Background(), groceries)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Buy bread", tasks[0].Title)
	assert.Equal(t, listed+1, api.called("ListTasksByCollection"))

	collection, err := s.Collection(context.Background(), groceries)
	require.NoError(t, err)
	assert.Equal(t, 1, collection.TotalTasks)

	notifications := notifier.all()
	require.Len(t, notifications, 1)
	assert.Equal(t, LevelError, notifications[0].Level)
	assert.ErrorIs(t, notifications[0].Err, serverErr)
}

func TestSynchronizer_DisjointScopesDoNotWait(t *testing.T) {
	api := newFakeAPI()
	api.addCollection(groceries, "groceries")
	api.addCollection(hardware, "hardware")
	s := newTestSynchronizer(t, api)
	warmUp(t, s, groceries, hardware)

	release := make(chan struct{})
	first := startCreate(t, s, api, func(called chan<- struct{}) hookFunc {
		return blockUntil(called, release)
	}, buyMilk())

	nails := buyMilk()
	nails.Title = "Buy nails"
	nails.CollectionID = Confirmed(hardware)
	created, err := s.CreateTask(context.Background(), nails)
	require.NoError(t, err)
	assert.False(t, created.ID.IsProvisional())

	select {
	case <-first:
		t.Fatal("create on groceries finished before its request was released")
	default:
	}
	pending := peekTasks(t, s, groceries)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].ID.IsProvisional())
	hardwareTasks := peekTasks(t, s, hardware)
	require.Len(t, hardwareTasks, 1)
	assert.Equal(t, created.ID, hardwareTasks[0].ID)

	close(release)
	res := <-first
	require.NoError(t, res.err)
	assert.False(t, res.task.ID.IsProvisional())
}
