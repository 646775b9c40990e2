package sync

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// InsertOne stages doc for synchronization and writes it to the local
// store immediately (spec §4.9: CRUD is local-first; the write reaches
// the remote side on the next L2R pass).
func (e *Engine) InsertOne(ctx context.Context, ns Namespace, doc bson.M) (interface{}, error) {
	id, ok := doc["_id"]
	if !ok {
		return nil, fmt.Errorf("sync: insert requires an _id")
	}

	nsConfig := e.namespaceConfig(ns)
	nsConfig.Lock()
	defer nsConfig.Unlock()

	clean := sanitize(doc)
	localColl := e.localCollection(ns)

	err := e.undo.withUndo(ctx, ns, id, nil, func(ctx context.Context) error {
		return localColl.InsertOne(ctx, clean)
	})
	if err != nil {
		return nil, fmt.Errorf("local insert: %w", err)
	}

	docConfig := NewDocumentConfig(ns, id)
	docConfig.setPendingEvent(&ChangeEvent{
		ID:                newEventID(ns, id, OperationInsert, 0),
		Operation:         OperationInsert,
		Namespace:         ns,
		DocumentID:        id,
		FullDocument:      clean,
		UncommittedWrites: true,
	})
	nsConfig.Put(docConfig)
	e.pool.triggerReopen(ctx, ns)

	return id, nil
}

// InsertMany inserts each doc via InsertOne, returning the ids of those
// that succeeded and the first error encountered, if any.
func (e *Engine) InsertMany(ctx context.Context, ns Namespace, docs []bson.M) ([]interface{}, error) {
	ids := make([]interface{}, 0, len(docs))
	for _, doc := range docs {
		id, err := e.InsertOne(ctx, ns, doc)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// UpdateOne applies update (a full replacement document, pre-merged by
// the caller) to the local document with id, coalescing it with any
// already-pending change event per spec §4.9's table, and stages the
// result for the next L2R pass.
func (e *Engine) UpdateOne(ctx context.Context, ns Namespace, id interface{}, updated bson.M) error {
	nsConfig := e.namespaceConfig(ns)
	nsConfig.Lock()
	defer nsConfig.Unlock()

	docConfig := nsConfig.Get(id)
	if docConfig == nil {
		return ErrNotSynchronized
	}
	if docConfig.IsPaused {
		return ErrPaused
	}

	localColl := e.localCollection(ns)
	before, err := localColl.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("local find before update: %w", err)
	}

	clean := sanitize(updated)
	clean["_id"] = id

	err = e.undo.withUndo(ctx, ns, id, before, func(ctx context.Context) error {
		return localColl.FindOneAndReplace(ctx, bson.M{"_id": id}, clean, false)
	})
	if err != nil {
		return fmt.Errorf("local update: %w", err)
	}

	coalesceUpdate(docConfig, ns, id, before, clean)
	return nil
}

// coalesceUpdate folds a new local write into docConfig's pending change
// event, per spec §4.9: an INSERT or REPLACE absorbs the new full
// document and stays what it was; an UPDATE accumulates the new diff
// into its existing UpdateDescription; no pending event yet means this
// becomes a fresh UPDATE against the document's last-synced state.
func coalesceUpdate(docConfig *DocumentConfig, ns Namespace, id interface{}, before, after bson.M) {
	existing := docConfig.LastUncommittedChangeEvent

	if existing == nil {
		diff := updateDescriptionDiff(before, after)
		if diff.IsEmpty() {
			return
		}
		docConfig.setPendingEvent(&ChangeEvent{
			ID:                newEventID(ns, id, OperationUpdate, 0),
			Operation:         OperationUpdate,
			Namespace:         ns,
			DocumentID:        id,
			FullDocument:      after,
			UpdateDescription: diff,
			UncommittedWrites: true,
		})
		return
	}

	switch existing.Operation {
	case OperationInsert, OperationReplace:
		existing.FullDocument = after
	case OperationUpdate:
		merged := updateDescriptionDiff(existing.FullDocument, after)
		existing.UpdateDescription = mergeUpdateDescriptions(existing.UpdateDescription, merged)
		existing.FullDocument = after
	}
}

// mergeUpdateDescriptions folds b on top of a: fields b updated win over
// a's, fields b removed are dropped from a's updated set and added to
// a's removed set, and a field reintroduced by b is removed from a's
// removed set.
func mergeUpdateDescriptions(a, b *UpdateDescription) *UpdateDescription {
	out := &UpdateDescription{UpdatedFields: bson.M{}}
	for k, v := range a.UpdatedFields {
		out.UpdatedFields[k] = v
	}
	removed := make(map[string]bool)
	for _, f := range a.RemovedFields {
		removed[f] = true
	}
	for k, v := range b.UpdatedFields {
		out.UpdatedFields[k] = v
		delete(removed, k)
	}
	for _, f := range b.RemovedFields {
		delete(out.UpdatedFields, f)
		removed[f] = true
	}
	for f := range removed {
		out.RemovedFields = append(out.RemovedFields, f)
	}
	return out
}

// DeleteOne removes the local document with id and stages the deletion
// for the next L2R pass. If the document was only ever a pending,
// never-pushed INSERT, it is simply desynced: it never existed remotely,
// so there is nothing to push.
func (e *Engine) DeleteOne(ctx context.Context, ns Namespace, id interface{}) error {
	nsConfig := e.namespaceConfig(ns)
	nsConfig.Lock()
	defer nsConfig.Unlock()

	docConfig := nsConfig.Get(id)
	if docConfig == nil {
		return ErrNotSynchronized
	}

	localColl := e.localCollection(ns)
	before, err := localColl.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("local find before delete: %w", err)
	}

	err = e.undo.withUndo(ctx, ns, id, before, func(ctx context.Context) error {
		return localColl.DeleteOne(ctx, bson.M{"_id": id})
	})
	if err != nil {
		return fmt.Errorf("local delete: %w", err)
	}

	if pending := docConfig.LastUncommittedChangeEvent; pending != nil && pending.Operation == OperationInsert {
		e.desync(nsConfig, id)
		return nil
	}

	docConfig.setPendingEvent(&ChangeEvent{
		ID:                newEventID(ns, id, OperationDelete, 0),
		Operation:         OperationDelete,
		Namespace:         ns,
		DocumentID:        id,
		UncommittedWrites: true,
	})
	return nil
}

// DeleteMany deletes every id, stopping at the first error.
func (e *Engine) DeleteMany(ctx context.Context, ns Namespace, ids []interface{}) error {
	for _, id := range ids {
		if err := e.DeleteOne(ctx, ns, id); err != nil {
			return err
		}
	}
	return nil
}

// FindOne returns the local document for id, or ErrNotSynchronized if it
// is not configured for synchronization.
func (e *Engine) FindOne(ctx context.Context, ns Namespace, id interface{}) (bson.M, error) {
	nsConfig := e.namespaceConfig(ns)
	nsConfig.RLock()
	cfg := nsConfig.Get(id)
	nsConfig.RUnlock()
	if cfg == nil {
		return nil, ErrNotSynchronized
	}
	return e.localCollection(ns).FindOne(ctx, bson.M{"_id": id})
}

// Find returns every locally synchronized document in ns matching
// filter.
func (e *Engine) Find(ctx context.Context, ns Namespace, filter bson.M) ([]bson.M, error) {
	return e.localCollection(ns).Find(ctx, filter)
}
