package optimistic

import (
	"context"

	"github.com/adanyl0v/go-todo-collections/internal/client"
)

// CreateCollection appends a provisional collection with zero stats to the
// cached list and replaces it with the server's collection once confirmed.
func (s *Synchronizer) CreateCollection(ctx context.Context, req client.CreateCollectionRequest) (Collection, error) {
	now := s.now()
	provisional := Collection{
		ID:         s.ids.next(),
		Name:       req.Name,
		IsFavorite: req.IsFavorite,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	reqCtx := s.trackCreate(ctx, provisional.ID)
	m, err := s.begin("create collection", []Key{CollectionsKey()}, func() {
		if collections, ok := s.collectionsLocked(); ok {
			s.setLocked(CollectionsKey(), append(collections, provisional))
		}
	})
	if err != nil {
		s.finishCreate(provisional.ID)
		return Collection{}, err
	}

	created, err := s.api.CreateCollection(reqCtx, req)
	if s.finishCreate(provisional.ID) {
		if err == nil {
			s.compensate(m.name, func(ctx context.Context) error {
				return s.api.DeleteCollection(ctx, created.ID)
			})
		}
		s.commit(m, nil)
		return Collection{}, ErrCancelled
	}
	if err != nil {
		s.rollback(m, err)
		return Collection{}, err
	}

	collection := collectionFromClient(*created)
	s.commit(m, func() {
		collections, ok := s.collectionsLocked()
		if !ok {
			return
		}
		for i := range collections {
			if collections[i].ID == provisional.ID {
				collections[i] = collection
			}
		}
	})

	s.logger.Info().
		Int64("collection_id", created.ID).
		Msg("created collection")
	return collection, nil
}

// UpdateCollection merges the patch into the cached list and detail.
func (s *Synchronizer) UpdateCollection(ctx context.Context, id ID, req client.UpdateCollectionRequest) (Collection, error) {
	if id.IsProvisional() {
		return Collection{}, ErrProvisional
	}

	merge := func(c *Collection) {
		if req.Name != nil {
			c.Name = *req.Name
		}
		if req.IsFavorite != nil {
			c.IsFavorite = *req.IsFavorite
		}
		c.UpdatedAt = s.now()
	}

	keys := []Key{CollectionsKey(), CollectionKey(id.Value())}
	m, err := s.begin("update collection", keys, func() {
		if collections, ok := s.collectionsLocked(); ok {
			for i := range collections {
				if collections[i].ID == id {
					merge(&collections[i])
				}
			}
		}
		if e, ok := s.entries[CollectionKey(id.Value())]; ok {
			if collection, ok := e.value.(Collection); ok {
				merge(&collection)
				e.value = collection
			}
		}
	})
	if err != nil {
		return Collection{}, err
	}

	updated, err := s.api.UpdateCollection(ctx, id.Value(), req)
	if err != nil {
		s.rollback(m, err)
		return Collection{}, err
	}

	collection := collectionFromClient(*updated)
	s.commit(m, func() {
		if collections, ok := s.collectionsLocked(); ok {
			for i := range collections {
				if collections[i].ID == id {
					collections[i] = collection
				}
			}
		}
		if e, ok := s.entries[CollectionKey(id.Value())]; ok && e.value != nil {
			e.value = collection
		}
	})
	return collection, nil
}

// DeleteCollection removes the collection and its cached tasks. Deleting a
// provisional collection cancels its pending create instead of sending a
// request.
func (s *Synchronizer) DeleteCollection(ctx context.Context, id ID) error {
	if id.IsProvisional() {
		return s.cancelCollection(id)
	}

	keys := []Key{CollectionsKey(), CollectionKey(id.Value()), TasksKey(id.Value())}
	m, err := s.begin("delete collection", keys, func() {
		s.removeCollectionLocked(id)
		s.setLocked(CollectionKey(id.Value()), nil)
		s.setLocked(TasksKey(id.Value()), nil)
	})
	if err != nil {
		return err
	}

	err = s.api.DeleteCollection(ctx, id.Value())
	if err != nil {
		s.rollback(m, err)
		return err
	}
	s.commit(m, nil)

	s.logger.Info().
		Int64("collection_id", id.Value()).
		Msg("deleted collection")
	return nil
}

func (s *Synchronizer) cancelCollection(id ID) error {
	var cancelled bool
	s.withLockedKeys([]Key{CollectionsKey()}, func() {
		cancelled = s.cancelCreateLocked(id)
		if cancelled {
			s.removeCollectionLocked(id)
		}
	})
	if !cancelled {
		return ErrProvisional
	}

	s.logger.Debug().
		Stringer("collection_id", id).
		Msg("cancelled pending collection create")
	return nil
}

func (s *Synchronizer) removeCollectionLocked(id ID) {
	collections, ok := s.collectionsLocked()
	if !ok {
		return
	}
	kept := make([]Collection, 0, len(collections))
	for _, collection := range collections {
		if collection.ID != id {
			kept = append(kept, collection)
		}
	}
	s.setLocked(CollectionsKey(), kept)
}
