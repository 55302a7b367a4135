package sqlite

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adanyl0v/go-todo-collections/internal/models"
	"github.com/adanyl0v/go-todo-collections/internal/repository"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(context.Background(), MemoryDSN(strings.ReplaceAll(t.Name(), "/", "_")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createCollection(t *testing.T, repo repository.CollectionRepository, name string) *models.Collection {
	t.Helper()
	now := time.Now()
	collection := &models.Collection{Name: name, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Create(context.Background(), collection))
	return collection
}

func createTask(t *testing.T, repo repository.TaskRepository, collectionID int64, parentID *int64, title string) *models.Task {
	t.Helper()
	now := time.Now()
	task := &models.Task{
		Title:        title,
		Date:         now,
		CollectionID: collectionID,
		ParentTaskID: parentID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, repo.Create(context.Background(), task))
	return task
}

func TestCollectionRepository(t *testing.T) {
	db := openTestDB(t)
	repo := NewCollectionRepository(db)
	ctx := context.Background()

	school := createCollection(t, repo, "school")
	assert.NotZero(t, school.ID)
	createCollection(t, repo, "school")

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	school.Name = "university"
	school.IsFavorite = true
	require.NoError(t, repo.Update(ctx, school))

	found, err := repo.FindByID(ctx, school.ID)
	require.NoError(t, err)
	assert.Equal(t, "university", found.Name)
	assert.True(t, found.IsFavorite)

	require.NoError(t, repo.Delete(ctx, school.ID))
	_, err = repo.FindByID(ctx, school.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, school.ID), repository.ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, school), repository.ErrNotFound)

	assert.NoError(t, repo.Ping(ctx))
}

func TestTaskRepository(t *testing.T) {
	db := openTestDB(t)
	collections := NewCollectionRepository(db)
	tasks := NewTaskRepository(db)
	ctx := context.Background()

	groceries := createCollection(t, collections, "groceries")
	parent := createTask(t, tasks, groceries.ID, nil, "Party")
	child := createTask(t, tasks, groceries.ID, &parent.ID, "Chips")
	grandchild := createTask(t, tasks, groceries.ID, &child.ID, "Salt")
	createTask(t, tasks, groceries.ID, nil, "Milk")

	t.Run("find by id loads direct subtasks", func(t *testing.T) {
		found, err := tasks.FindByID(ctx, parent.ID)
		require.NoError(t, err)
		require.Len(t, found.Subtasks, 1)
		assert.Equal(t, child.ID, found.Subtasks[0].ID)
		assert.Nil(t, found.Description)
	})

	t.Run("find by collection", func(t *testing.T) {
		flat, err := tasks.FindByCollectionID(ctx, groceries.ID)
		require.NoError(t, err)
		assert.Len(t, flat, 4)

		top, err := tasks.FindTopLevelByCollectionID(ctx, groceries.ID)
		require.NoError(t, err)
		require.Len(t, top, 2)
		require.Len(t, top[0].Subtasks, 1)
		require.Len(t, top[0].Subtasks[0].Subtasks, 1)
		assert.Equal(t, grandchild.ID, top[0].Subtasks[0].Subtasks[0].ID)
	})

	t.Run("update", func(t *testing.T) {
		description := "salted"
		child.Description = &description
		child.Completed = true
		child.ParentTaskID = nil
		require.NoError(t, tasks.Update(ctx, child))

		found, err := tasks.FindByID(ctx, child.ID)
		require.NoError(t, err)
		require.NotNil(t, found.Description)
		assert.Equal(t, "salted", *found.Description)
		assert.True(t, found.Completed)
		assert.Nil(t, found.ParentTaskID)
	})

	t.Run("unknown collection is not found", func(t *testing.T) {
		task := &models.Task{Title: "Orphan", Date: time.Now(), CollectionID: 999}
		err := tasks.Create(ctx, task)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("delete cascades", func(t *testing.T) {
		require.NoError(t, tasks.Delete(ctx, child.ID))
		_, err := tasks.FindByID(ctx, grandchild.ID)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.ErrorIs(t, tasks.Delete(ctx, child.ID), repository.ErrNotFound)

		require.NoError(t, collections.Delete(ctx, groceries.ID))
		flat, err := tasks.FindByCollectionID(ctx, groceries.ID)
		require.NoError(t, err)
		assert.Empty(t, flat)
	})
}

func TestTaskRepository_MoveSubtree(t *testing.T) {
	db := openTestDB(t)
	collections := NewCollectionRepository(db)
	tasks := NewTaskRepository(db)
	ctx := context.Background()

	home := createCollection(t, collections, "home")
	work := createCollection(t, collections, "work")
	root := createTask(t, tasks, home.ID, nil, "Root")
	child := createTask(t, tasks, home.ID, &root.ID, "Child")
	grandchild := createTask(t, tasks, home.ID, &child.ID, "Grandchild")
	unrelated := createTask(t, tasks, home.ID, nil, "Unrelated")

	require.NoError(t, tasks.MoveSubtree(ctx, root.ID, work.ID))

	for _, id := range []int64{child.ID, grandchild.ID} {
		got, err := tasks.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, work.ID, got.CollectionID, "task %d", id)
	}
	for _, id := range []int64{root.ID, unrelated.ID} {
		got, err := tasks.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, home.ID, got.CollectionID, "task %d", id)
	}

	err := tasks.MoveSubtree(ctx, root.ID, 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSeed(t *testing.T) {
	db := openTestDB(t)
	repo := NewCollectionRepository(db)
	ctx := context.Background()

	require.NoError(t, Seed(ctx, db))
	require.NoError(t, Seed(ctx, db))

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, len(repository.DefaultCollections))
	for i, collection := range all {
		assert.Equal(t, repository.DefaultCollections[i], collection.Name)
	}
}
