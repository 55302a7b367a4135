package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-todo-collections/internal/models"
	"github.com/adanyl0v/go-todo-collections/internal/repository"
)

type collectionServiceImpl struct {
	logger      zerolog.Logger
	collections repository.CollectionRepository
	tasks       repository.TaskRepository
}

func NewCollectionService(
	logger zerolog.Logger,
	collections repository.CollectionRepository,
	tasks repository.TaskRepository,
) CollectionService {
	return &collectionServiceImpl{
		logger:      logger,
		collections: collections,
		tasks:       tasks,
	}
}

func (s *collectionServiceImpl) CreateCollection(ctx context.Context, params CreateCollectionParams) (*models.Collection, error) {
	now := time.Now()
	collection := &models.Collection{
		Name:       params.Name,
		IsFavorite: params.IsFavorite,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.collections.Create(ctx, collection)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to insert collection")
		return nil, err
	}

	s.logger.Info().
		Int64("collection_id", collection.ID).
		Msg("created collection")
	return collection, nil
}

func (s *collectionServiceImpl) GetCollections(ctx context.Context) ([]*models.Collection, error) {
	collections, err := s.collections.FindAll(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to select collections")
		return nil, err
	}

	for _, collection := range collections {
		err = s.attachStats(ctx, collection)
		if err != nil {
			return nil, err
		}
	}

	s.logger.Debug().
		Int("count", len(collections)).
		Msg("selected collections")
	return collections, nil
}

func (s *collectionServiceImpl) GetCollectionByID(ctx context.Context, id int64) (*models.Collection, error) {
	collection, err := s.collections.FindByID(ctx, id)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("collection_id", id).
			Msg("failed to select collection")
		return nil, notFound(ResourceCollection, id, err)
	}

	err = s.attachStats(ctx, collection)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Int64("collection_id", id).
		Msg("selected collection")
	return collection, nil
}

func (s *collectionServiceImpl) UpdateCollection(ctx context.Context, params UpdateCollectionParams) (*models.Collection, error) {
	collection, err := s.collections.FindByID(ctx, params.ID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("collection_id", params.ID).
			Msg("failed to select collection")
		return nil, notFound(ResourceCollection, params.ID, err)
	}

	if params.Name != nil {
		collection.Name = *params.Name
	}
	if params.IsFavorite != nil {
		collection.IsFavorite = *params.IsFavorite
	}
	collection.UpdatedAt = time.Now()

	err = s.collections.Update(ctx, collection)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("collection_id", params.ID).
			Msg("failed to update collection")
		return nil, notFound(ResourceCollection, params.ID, err)
	}

	err = s.attachStats(ctx, collection)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("collection_id", collection.ID).
		Msg("updated collection")
	return collection, nil
}

func (s *collectionServiceImpl) DeleteCollection(ctx context.Context, id int64) error {
	err := s.collections.Delete(ctx, id)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("collection_id", id).
			Msg("failed to delete collection")
		return notFound(ResourceCollection, id, err)
	}

	s.logger.Info().
		Int64("collection_id", id).
		Msg("deleted collection")
	return nil
}

// attachStats recomputes the derived counters from the collection's task
// rows. A collection deleted in the meantime simply has no rows left.
func (s *collectionServiceImpl) attachStats(ctx context.Context, collection *models.Collection) error {
	tasks, err := s.tasks.FindByCollectionID(ctx, collection.ID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("collection_id", collection.ID).
			Msg("failed to select collection tasks")
		return err
	}

	collection.CompletedTasks, collection.TotalTasks = computeStats(tasks)
	return nil
}

func computeStats(tasks []*models.Task) (completed, total int) {
	for _, task := range tasks {
		if task.Completed {
			completed++
		}
	}
	return completed, len(tasks)
}
