package optimistic

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/adanyl0v/go-todo-collections/internal/client"
)

type hookFunc func(ctx context.Context) error

// fakeAPI is an in-memory API. A hook registered for a method runs once,
// before the next call of that method, and can block or fail it.
type fakeAPI struct {
	mu          sync.Mutex
	nextID      int64
	collections map[int64]client.Collection
	tasks       map[int64]client.Task
	hooks       map[string]hookFunc
	calls       []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		nextID:      100,
		collections: make(map[int64]client.Collection),
		tasks:       make(map[int64]client.Task),
		hooks:       make(map[string]hookFunc),
	}
}

func (f *fakeAPI) addCollection(id int64, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections[id] = client.Collection{ID: id, Name: name}
}

func (f *fakeAPI) addTask(task client.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[task.ID] = task
}

func (f *fakeAPI) hook(method string, fn hookFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks[method] = fn
}

func (f *fakeAPI) called(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, call := range f.calls {
		if call == method {
			n++
		}
	}
	return n
}

func (f *fakeAPI) enter(ctx context.Context, method string) error {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	fn := f.hooks[method]
	delete(f.hooks, method)
	f.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func notFound() error {
	return &client.Error{Kind: client.KindNotFound, StatusCode: http.StatusNotFound, Message: "not found"}
}

func (f *fakeAPI) statsLocked(collectionID int64) (completed, total int) {
	for _, task := range f.tasks {
		if task.CollectionID != collectionID {
			continue
		}
		total++
		if task.Completed {
			completed++
		}
	}
	return completed, total
}

func (f *fakeAPI) collectionLocked(id int64) client.Collection {
	collection := f.collections[id]
	collection.CompletedTasks, collection.TotalTasks = f.statsLocked(id)
	return collection
}

func (f *fakeAPI) treeLocked(task client.Task) client.Task {
	task.Subtasks = []client.Task{}
	for _, id := range f.sortedTaskIDsLocked() {
		child := f.tasks[id]
		if child.ParentTaskID != nil && *child.ParentTaskID == task.ID {
			task.Subtasks = append(task.Subtasks, f.treeLocked(child))
		}
	}
	return task
}

func (f *fakeAPI) sortedTaskIDsLocked() []int64 {
	ids := make([]int64, 0, len(f.tasks))
	for id := range f.tasks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (f *fakeAPI) ListCollections(ctx context.Context) ([]client.Collection, error) {
	err := f.enter(ctx, "ListCollections")
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]int64, 0, len(f.collections))
	for id := range f.collections {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	collections := make([]client.Collection, 0, len(ids))
	for _, id := range ids {
		collections = append(collections, f.collectionLocked(id))
	}
	return collections, nil
}

func (f *fakeAPI) GetCollection(ctx context.Context, id int64) (*client.Collection, error) {
	err := f.enter(ctx, "GetCollection")
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.collections[id]; !ok {
		return nil, notFound()
	}
	collection := f.collectionLocked(id)
	return &collection, nil
}

func (f *fakeAPI) CreateCollection(ctx context.Context, req client.CreateCollectionRequest) (*client.Collection, error) {
	err := f.enter(ctx, "CreateCollection")
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	now := time.Now()
	collection := client.Collection{
		ID:         f.nextID,
		Name:       req.Name,
		IsFavorite: req.IsFavorite,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	f.collections[collection.ID] = collection
	return &collection, nil
}

func (f *fakeAPI) UpdateCollection(ctx context.Context, id int64, req client.UpdateCollectionRequest) (*client.Collection, error) {
	err := f.enter(ctx, "UpdateCollection")
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	collection, ok := f.collections[id]
	if !ok {
		return nil, notFound()
	}
	if req.Name != nil {
		collection.Name = *req.Name
	}
	if req.IsFavorite != nil {
		collection.IsFavorite = *req.IsFavorite
	}
	f.collections[id] = collection

	collection = f.collectionLocked(id)
	return &collection, nil
}

func (f *fakeAPI) DeleteCollection(ctx context.Context, id int64) error {
	err := f.enter(ctx, "DeleteCollection")
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.collections[id]; !ok {
		return notFound()
	}
	delete(f.collections, id)
	for taskID, task := range f.tasks {
		if task.CollectionID == id {
			delete(f.tasks, taskID)
		}
	}
	return nil
}

func (f *fakeAPI) ListTasksByCollection(ctx context.Context, collectionID int64, _ *bool) ([]client.Task, error) {
	err := f.enter(ctx, "ListTasksByCollection")
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.collections[collectionID]; !ok {
		return nil, notFound()
	}
	tasks := []client.Task{}
	for _, id := range f.sortedTaskIDsLocked() {
		task := f.tasks[id]
		if task.CollectionID == collectionID && task.ParentTaskID == nil {
			tasks = append(tasks, f.treeLocked(task))
		}
	}
	return tasks, nil
}

func (f *fakeAPI) CreateTask(ctx context.Context, req client.CreateTaskRequest) (*client.Task, error) {
	err := f.enter(ctx, "CreateTask")
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.collections[req.CollectionID]; !ok {
		return nil, notFound()
	}
	f.nextID++
	now := time.Now()
	task := client.Task{
		ID:                f.nextID,
		Title:             req.Title,
		Description:       req.Description,
		Date:              req.Date,
		Completed:         req.Completed,
		IsRecurring:       req.IsRecurring,
		RecurrencePattern: req.RecurrencePattern,
		CollectionID:      req.CollectionID,
		ParentTaskID:      req.ParentTaskID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	f.tasks[task.ID] = task

	task = f.treeLocked(task)
	return &task, nil
}

func (f *fakeAPI) UpdateTask(ctx context.Context, id int64, req client.UpdateTaskRequest) (*client.Task, error) {
	err := f.enter(ctx, "UpdateTask")
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	task, ok := f.tasks[id]
	if !ok {
		return nil, notFound()
	}
	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.CollectionID != nil && *req.CollectionID != task.CollectionID {
		task.CollectionID = *req.CollectionID
		f.moveLocked(id, task.CollectionID)
	}
	if req.DetachParent {
		task.ParentTaskID = nil
	} else if req.ParentTaskID != nil {
		task.ParentTaskID = req.ParentTaskID
	}
	if req.Completed != nil {
		task.Completed = *req.Completed
		if task.Completed {
			f.completeLocked(id)
		}
	}
	f.tasks[id] = task

	task = f.treeLocked(task)
	return &task, nil
}

func (f *fakeAPI) moveLocked(parentID, collectionID int64) {
	for id, task := range f.tasks {
		if task.ParentTaskID != nil && *task.ParentTaskID == parentID {
			task.CollectionID = collectionID
			f.tasks[id] = task
			f.moveLocked(id, collectionID)
		}
	}
}

func (f *fakeAPI) completeLocked(parentID int64) {
	for id, task := range f.tasks {
		if task.ParentTaskID != nil && *task.ParentTaskID == parentID {
			task.Completed = true
			f.tasks[id] = task
			f.completeLocked(id)
		}
	}
}

func (f *fakeAPI) DeleteTask(ctx context.Context, id int64) error {
	err := f.enter(ctx, "DeleteTask")
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.tasks[id]; !ok {
		return notFound()
	}
	f.deleteLocked(id)
	return nil
}

func (f *fakeAPI) deleteLocked(id int64) {
	delete(f.tasks, id)
	for childID, task := range f.tasks {
		if task.ParentTaskID != nil && *task.ParentTaskID == id {
			f.deleteLocked(childID)
		}
	}
}

// blockUntil returns a hook that reports its call on called and returns
// once release is closed.
func blockUntil(called chan<- struct{}, release <-chan struct{}) hookFunc {
	return func(ctx context.Context) error {
		close(called)
		<-release
		return nil
	}
}

// blockUntilCancelled returns a hook that reports its call on called and
// fails once ctx is cancelled.
func blockUntilCancelled(called chan<- struct{}) hookFunc {
	return func(ctx context.Context) error {
		close(called)
		<-ctx.Done()
		return ctx.Err()
	}
}

func failWith(err error) hookFunc {
	return func(context.Context) error {
		return err
	}
}

// blockThenFail is blockUntil that fails with err once released.
func blockThenFail(called chan<- struct{}, release <-chan struct{}, err error) hookFunc {
	return func(ctx context.Context) error {
		close(called)
		<-release
		return err
	}
}
