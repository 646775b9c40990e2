package sync

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"
)

// syncRemoteToLocal runs the remote-to-local pass over every configured
// namespace (spec §4.5). Each namespace is processed independently and
// under its own nsConfig lock, so a failure in one namespace does not
// abort the others.
func (e *Engine) syncRemoteToLocal(ctx context.Context) error {
	for _, ns := range e.instance.Namespaces() {
		if err := e.syncNamespaceRemoteToLocal(ctx, ns); err != nil {
			if isPassAbortingError(err) {
				return err
			}
			log.Printf("[Error] R2L ns=%s: %v", ns, err)
		}
	}
	return nil
}

// isPassAbortingError reports whether err must abort the whole pass
// rather than just the one document/namespace that produced it (spec
// §7: NetworkDown/LoggedOut/Interrupted abort the pass cleanly).
func isPassAbortingError(err error) bool {
	switch {
	case errIsAny(err, ErrNetworkDown, ErrLoggedOut, ErrInterrupted):
		return true
	default:
		return false
	}
}

func errIsAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

func (e *Engine) syncNamespaceRemoteToLocal(ctx context.Context, ns Namespace) error {
	listener := e.pool.get(ns)
	if listener == nil {
		return nil
	}
	nsConfig := e.namespaceConfig(ns)

	// Step 1: snapshot and clear buffered events and the stale flag,
	// under both the listener lock and the namespace lock (invariant 5:
	// held simultaneously so no event is ingested mid-pass).
	nsConfig.Lock()
	defer nsConfig.Unlock()

	bufferedEvents := listener.getEvents()
	wasStale := nsConfig.stale
	nsConfig.stale = false

	var staleIDs []interface{}
	if wasStale {
		// Read the ids directly: SynchronizedIDs takes the read lock,
		// which cannot be acquired while this write lock is held.
		for _, c := range nsConfig.All() {
			staleIDs = append(staleIDs, c.DocumentID)
		}
	}

	// Step 2: fetch current remote documents for all stale ids in one
	// batched find.
	remoteDocs := map[documentKey]bson.M{}
	if len(staleIDs) > 0 {
		docs, err := e.remote.Find(ctx, ns, bson.M{"_id": bson.M{"$in": staleIDs}})
		if err != nil {
			return fmt.Errorf("fetch stale docs: %w", err)
		}
		for _, d := range docs {
			remoteDocs[keyOf(d["_id"])] = d
		}
	}

	// Step 3: build (docConfig, event) pairs, synthesizing where needed.
	pairs := make(map[documentKey]*ChangeEvent, len(bufferedEvents)+len(staleIDs))
	for k, evt := range bufferedEvents {
		pairs[k] = evt
	}
	for _, id := range staleIDs {
		k := keyOf(id)
		if _, has := pairs[k]; has {
			continue
		}
		if doc, found := remoteDocs[k]; found {
			pairs[k] = synthesizeEvent(ns, id, OperationReplace, doc)
		} else {
			pairs[k] = synthesizeDeleteEvent(ns, id)
		}
	}

	logicalT := e.clock.current()
	batch := newBatchOps(ns)
	localColl := e.localCollection(ns)
	configColl := e.configCollection("documents")

	for k, evt := range pairs {
		docConfig := nsConfig.Get(k.v)
		if docConfig == nil || docConfig.IsPaused {
			// Not synchronized, or paused (invariant 6): invisible to
			// R2L until explicitly resumed.
			continue
		}
		e.routeR2LEvent(ctx, nsConfig, docConfig, evt, logicalT, batch)

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

// synthesizeEvent builds a synthetic REPLACE event from a freshly fetched
// remote document (original_source:
// DataSynchronizer.getSynthesizedRemoteChangeEventForDocument(doc)).
func synthesizeEvent(ns Namespace, id interface{}, op OperationType, doc bson.M) *ChangeEvent {
	return &ChangeEvent{
		ID:           newEventID(ns, id, op, 0),
		Operation:    op,
		Namespace:    ns,
		DocumentID:   id,
		FullDocument: doc,
	}
}

// synthesizeDeleteEvent builds a synthetic DELETE event for an id whose
// remote document was not found (original_source:
// DataSynchronizer.getSynthesizedRemoteChangeEventForDocument(ns, id)).
func synthesizeDeleteEvent(ns Namespace, id interface{}) *ChangeEvent {
	return &ChangeEvent{
		ID:         newEventID(ns, id, OperationDelete, 0),
		Operation:  OperationDelete,
		Namespace:  ns,
		DocumentID: id,
	}
}

// routeR2LEvent implements the spec §4.5 decision tree for one
// (docConfig, event) pair, staging any resulting local/config writes
// into batch. Caller holds nsConfig's write lock for the duration of the
// pass.
func (e *Engine) routeR2LEvent(ctx context.Context, nsConfig *NamespaceConfig, docConfig *DocumentConfig, event *ChangeEvent, logicalT int64, batch *batchOps) {
	id := docConfig.DocumentID

	if docConfig.HasUncommittedWrites && docConfig.LastResolution == logicalT {
		return // deferred: already resolved once this pass
	}

	var remoteVersion *DocumentVersion
	if event.Operation != OperationDelete {
		v, hasVersion, err := getRemoteVersionInfo(event.FullDocument)
		if err != nil {
			e.emitError(nsConfig, docConfig, err)
			e.desync(nsConfig, id)
			return
		}
		if hasVersion {
			if v.SyncProtocolVersion != SyncProtocolVersion {
				e.emitError(nsConfig, docConfig, ErrVersionParse)
				e.desync(nsConfig, id)
				return
			}
			remoteVersion = v
		}
	}

	localVersion := getLocalVersionInfo(docConfig)
	if hasCommittedVersion(localVersion, remoteVersion) {
		return // self-authored, already applied
	}

	if docConfig.LastUncommittedChangeEvent == nil {
		e.applyNoConflictR2L(ctx, nsConfig, docConfig, event, remoteVersion, batch)
		return
	}

	e.routeR2LWithPendingWrite(ctx, nsConfig, docConfig, event, localVersion, remoteVersion, batch)
}

// applyNoConflictR2L applies a remote change directly since there is no
// local pending write to conflict with.
func (e *Engine) applyNoConflictR2L(ctx context.Context, nsConfig *NamespaceConfig, docConfig *DocumentConfig, event *ChangeEvent, remoteVersion *DocumentVersion, batch *batchOps) {
	ns := nsConfig.Namespace
	id := docConfig.DocumentID

	switch event.Operation {
	case OperationInsert, OperationUpdate, OperationReplace:
		doc := sanitize(event.FullDocument)
		batch.add(id,
			WriteModel{Filter: bson.M{"_id": id}, Replacement: withIDAndVersionStripped(doc, id), Upsert: true},
			configWriteModel(docConfig, func(c *DocumentConfig) { c.LastKnownRemoteVersion = remoteVersion }),
		)
		docConfig.LastKnownRemoteVersion = remoteVersion
	case OperationDelete:
		batch.add(id,
			WriteModel{Filter: bson.M{"_id": id}, Delete: true},
			configWriteModel(docConfig, func(c *DocumentConfig) {}),
		)
	default:
		e.emitError(nsConfig, docConfig, ErrUnknownOperationType)
		e.desync(nsConfig, id)
		return
	}

	e.emitEvent(nsConfig, id, &ChangeEvent{
		ID: event.ID, Operation: event.Operation, Namespace: ns, DocumentID: id,
		FullDocument: event.FullDocument, UncommittedWrites: false,
	})
}

// routeR2LWithPendingWrite handles the branch where the local document
// has a pending (uncommitted) write that the remote event might
// conflict with.
func (e *Engine) routeR2LWithPendingWrite(ctx context.Context, nsConfig *NamespaceConfig, docConfig *DocumentConfig, event *ChangeEvent, localVersion, remoteVersion *DocumentVersion, batch *batchOps) {
	ns := nsConfig.Namespace
	id := docConfig.DocumentID

	if localVersion == nil || remoteVersion == nil {
		e.resolveConflict(ctx, nsConfig, docConfig, event, batch)
		return
	}

	if localVersion.InstanceID == remoteVersion.InstanceID {
		if remoteVersion.VersionCounter <= localVersion.VersionCounter {
			return // stale, drop
		}
		e.resolveConflict(ctx, nsConfig, docConfig, event, batch)
		return
	}

	// Different instanceId: fetch the newest remote doc to see whether
	// the stream lagged the real state.
	newest, err := e.remote.Find(ctx, ns, bson.M{"_id": id})
	if err != nil {
		e.emitError(nsConfig, docConfig, err)
		return
	}
	if len(newest) == 0 {
		synthetic := synthesizeDeleteEvent(ns, id)
		e.resolveConflict(ctx, nsConfig, docConfig, synthetic, batch)
		return
	}
	newestVersion, hasVersion, verr := getRemoteVersionInfo(newest[0])
	if verr == nil && hasVersion && newestVersion.InstanceID == localVersion.InstanceID {
		return // stale stream, drop
	}
	synthetic := synthesizeEvent(ns, id, OperationReplace, newest[0])
	e.resolveConflict(ctx, nsConfig, docConfig, synthetic, batch)
}

// withIDAndVersionStripped ensures the locally-stored document carries
// its _id and never a version subdocument: the local side is the
// sanitized view of the truth, the version lives only on the config and
// on the remote wire copy.
func withIDAndVersionStripped(doc bson.M, id interface{}) bson.M {
	out := sanitize(doc)
	out["_id"] = id
	return out
}

// configWriteModel builds the WriteModel that persists docConfig's state
// after applying mutate, which the caller has also applied in-memory.
func configWriteModel(docConfig *DocumentConfig, mutate func(*DocumentConfig)) WriteModel {
	mutate(docConfig)
	return WriteModel{
		Filter:      bson.M{"_id": docConfig.DocumentID},
		Replacement: docConfig.bsonify(),
		Upsert:      true,
	}
}
