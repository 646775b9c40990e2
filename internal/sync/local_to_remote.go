package sync

import (
	"context"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"
)

// syncLocalToRemote runs the local-to-remote pass over every configured
// namespace (spec §4.6), pushing each document's pending change event to
// the remote service and reconciling version mismatches as conflicts.
func (e *Engine) syncLocalToRemote(ctx context.Context) error {
	for _, ns := range e.instance.Namespaces() {
		if err := e.syncNamespaceLocalToRemote(ctx, ns); err != nil {
			if isPassAbortingError(err) {
				return err
			}
			log.Printf("[Error] L2R ns=%s: %v", ns, err)
		}
	}
	return nil
}

func (e *Engine) syncNamespaceLocalToRemote(ctx context.Context, ns Namespace) error {
	listener := e.pool.get(ns)
	nsConfig := e.namespaceConfig(ns)

	nsConfig.Lock()
	defer nsConfig.Unlock()

	logicalT := e.clock.current()
	batch := newBatchOps(ns)
	localColl := e.localCollection(ns)
	configColl := e.configCollection("documents")

	for _, docConfig := range nsConfig.All() {
		if docConfig.IsPaused || !docConfig.HasUncommittedWrites {
			continue
		}
		if docConfig.LastResolution == logicalT {
			continue // just resolved by this very pass's R2L half; push next pass
		}
		e.pushPendingWrite(ctx, nsConfig, docConfig, listener, batch)

		if batch.full() {
			if err := batch.commit(ctx, localColl, configColl, e.undo); err != nil {
				return fmt.Errorf("commit batch: %w", err)
			}
			batch = newBatchOps(ns)
		}
	}

	if err := batch.commit(ctx, localColl, configColl, e.undo); err != nil {
		return fmt.Errorf("commit final batch: %w", err)
	}
	return nil
}

// pushPendingWrite pushes one document's pending change event remotely,
// per the operation table in spec §4.6. Before pushing, it peeks at the
// namespace listener for any remote event buffered for this id that the
// R2L half of this pass has not yet consumed (spec §4.6 step 1): if one
// exists and its version is not already committed by us, the remote side
// moved since this write was staged, and the push must be reconciled
// against that event through conflict resolution rather than racing it
// with a blind write.
func (e *Engine) pushPendingWrite(ctx context.Context, nsConfig *NamespaceConfig, docConfig *DocumentConfig, listener *namespaceListener, batch *batchOps) {
	evt := docConfig.LastUncommittedChangeEvent
	if evt == nil {
		return
	}

	if listener != nil {
		if unprocessed := listener.getUnprocessedEvent(docConfig.DocumentID); unprocessed != nil {
			var remoteVersion *DocumentVersion
			if unprocessed.Operation != OperationDelete && unprocessed.FullDocument != nil {
				if v, has, verr := getRemoteVersionInfo(unprocessed.FullDocument); verr == nil && has {
					remoteVersion = v
				}
			}
			if !hasCommittedVersion(docConfig.LastKnownRemoteVersion, remoteVersion) {
				e.resolveConflict(ctx, nsConfig, docConfig, unprocessed, batch)
				return
			}
		}
	}

	switch evt.Operation {
	case OperationInsert:
		e.pushInsert(ctx, nsConfig, docConfig, evt, batch)
	case OperationReplace, OperationUpdate:
		if evt.Operation == OperationUpdate && evt.UpdateDescription.IsEmpty() {
			// Nothing to push; clear the pending marker without any remote
			// round trip (spec §4.1, §8 S6: an empty diff is never sent).
			batch.add(docConfig.DocumentID,
				noopLocalWrite(docConfig.DocumentID),
				configWriteModel(docConfig, func(c *DocumentConfig) { c.setPendingEvent(nil) }),
			)
			return
		}
		e.pushReplaceOrUpdate(ctx, nsConfig, docConfig, evt, batch)
	case OperationDelete:
		e.pushDelete(ctx, nsConfig, docConfig, evt, batch)
	default:
		e.emitError(nsConfig, docConfig, ErrUnknownOperationType)
	}
}

// noopLocalWrite is a local write that touches nothing, used when only
// the config side needs to change (e.g. clearing a dropped empty-diff
// pending event).
func noopLocalWrite(id interface{}) WriteModel {
	return WriteModel{Filter: bson.M{"_id": id}, Update: bson.M{}}
}

func (e *Engine) pushInsert(ctx context.Context, nsConfig *NamespaceConfig, docConfig *DocumentConfig, evt *ChangeEvent, batch *batchOps) {
	ns := nsConfig.Namespace
	id := docConfig.DocumentID
	version := nextVersion(docConfig.LastKnownRemoteVersion, e.instance.InstanceID)
	wireDoc := withVersion(sanitize(evt.FullDocument), version)

	err := e.remote.InsertOne(ctx, ns, wireDoc)
	if err == nil {
		e.commitPushSuccess(nsConfig, docConfig, &version, batch, evt)
		return
	}
	if !IsDuplicateKey(err) {
		e.emitError(nsConfig, docConfig, fmt.Errorf("remote insert: %w", err))
		return
	}

	existing, ferr := e.remote.Find(ctx, ns, bson.M{"_id": id})
	if ferr != nil {
		e.emitError(nsConfig, docConfig, fmt.Errorf("fetch after duplicate key: %w", ferr))
		return
	}
	if len(existing) == 0 {
		e.emitError(nsConfig, docConfig, ErrInternalInvariantViolated)
		return
	}
	synthetic := synthesizeEvent(ns, id, OperationReplace, existing[0])
	e.resolveConflict(ctx, nsConfig, docConfig, synthetic, batch)
}

func (e *Engine) pushReplaceOrUpdate(ctx context.Context, nsConfig *NamespaceConfig, docConfig *DocumentConfig, evt *ChangeEvent, batch *batchOps) {
	ns := nsConfig.Namespace
	id := docConfig.DocumentID
	known := docConfig.LastKnownRemoteVersion
	version := nextVersion(known, e.instance.InstanceID)

	filter := versionFilter(id, known)
	wireDoc := withVersion(sanitize(evt.FullDocument), version)

	matched, err := e.remote.UpdateOne(ctx, ns, filter, bson.M{"$set": wireDoc}, true)
	if err != nil {
		e.emitError(nsConfig, docConfig, fmt.Errorf("remote replace: %w", err))
		return
	}
	if matched >= 1 {
		e.commitPushSuccess(nsConfig, docConfig, &version, batch, evt)
		return
	}

	newest, ferr := e.remote.Find(ctx, ns, bson.M{"_id": id})
	if ferr != nil {
		e.emitError(nsConfig, docConfig, fmt.Errorf("fetch after update miss: %w", ferr))
		return
	}
	if len(newest) == 0 {
		synthetic := synthesizeDeleteEvent(ns, id)
		e.resolveConflict(ctx, nsConfig, docConfig, synthetic, batch)
		return
	}
	synthetic := synthesizeEvent(ns, id, OperationReplace, newest[0])
	e.resolveConflict(ctx, nsConfig, docConfig, synthetic, batch)
}

// pushDelete pushes a pending delete. Per spec §9 Open Question 2: a
// deletedCount of zero is only a successful no-op if the remote document
// is genuinely gone; if it is still found, that is a conflict against
// whatever currently exists there, synthesized as a REPLACE event.
func (e *Engine) pushDelete(ctx context.Context, nsConfig *NamespaceConfig, docConfig *DocumentConfig, evt *ChangeEvent, batch *batchOps) {
	ns := nsConfig.Namespace
	id := docConfig.DocumentID
	known := docConfig.LastKnownRemoteVersion

	deleted, err := e.remote.DeleteOne(ctx, ns, versionFilter(id, known))
	if err != nil {
		e.emitError(nsConfig, docConfig, fmt.Errorf("remote delete: %w", err))
		return
	}
	if deleted >= 1 {
		e.commitDeleteSuccess(nsConfig, docConfig, batch)
		return
	}

	remaining, ferr := e.remote.Find(ctx, ns, bson.M{"_id": id})
	if ferr != nil {
		e.emitError(nsConfig, docConfig, fmt.Errorf("fetch after delete miss: %w", ferr))
		return
	}
	if len(remaining) == 0 {
		// Already gone by some other path; treat as success.
		e.commitDeleteSuccess(nsConfig, docConfig, batch)
		return
	}
	synthetic := synthesizeEvent(ns, id, OperationReplace, remaining[0])
	e.resolveConflict(ctx, nsConfig, docConfig, synthetic, batch)
}

// versionFilter builds the optimistic-concurrency filter a remote write
// must match: the document id, and if a version is already known, that
// exact version (so a concurrent remote writer causes a zero-match
// rather than clobbering).
func versionFilter(id interface{}, known *DocumentVersion) bson.M {
	filter := bson.M{"_id": id}
	if known != nil {
		filter[DocumentVersionField+".id"] = known.InstanceID
		filter[DocumentVersionField+".v"] = known.VersionCounter
	}
	return filter
}

// commitPushSuccess records a successful remote write: the pending event
// is cleared and the new version becomes the last-known one on the
// config. The locally-stored document is left untouched: it never stores
// the version field, only the config does.
func (e *Engine) commitPushSuccess(nsConfig *NamespaceConfig, docConfig *DocumentConfig, newVersion *DocumentVersion, batch *batchOps, evt *ChangeEvent) {
	id := docConfig.DocumentID
	batch.add(id,
		noopLocalWrite(id),
		configWriteModel(docConfig, func(c *DocumentConfig) { c.clearPendingEvent(newVersion) }),
	)
	e.emitEvent(nsConfig, id, &ChangeEvent{
		ID: evt.ID, Operation: evt.Operation, Namespace: nsConfig.Namespace,
		DocumentID: id, FullDocument: evt.FullDocument, UncommittedWrites: false,
	})
}

// commitDeleteSuccess records a successful (or moot) remote delete: the
// document is fully desynced, since there is nothing left to reconcile.
func (e *Engine) commitDeleteSuccess(nsConfig *NamespaceConfig, docConfig *DocumentConfig, batch *batchOps) {
	id := docConfig.DocumentID
	batch.add(id,
		WriteModel{Filter: bson.M{"_id": id}, Delete: true},
		WriteModel{Filter: bson.M{"_id": id}, Delete: true},
	)
	e.desync(nsConfig, id)
}
