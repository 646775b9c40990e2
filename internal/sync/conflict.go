package sync

import (
	"context"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"
)

// resolveConflict invokes the namespace's ConflictHandler to decide
// between the local pending write (docConfig.LastUncommittedChangeEvent)
// and remoteEvent, then stages the resolution (spec §4.7). Whether the
// resolution is pushed again depends on acceptRemote: if the resolver's
// decision already matches what the remote side holds, there is nothing
// left to push and the document simply acknowledges remoteVersion; only a
// genuine divergence from the remote side stages a fresh pending write.
func (e *Engine) resolveConflict(ctx context.Context, nsConfig *NamespaceConfig, docConfig *DocumentConfig, remoteEvent *ChangeEvent, batch *batchOps) {
	id := docConfig.DocumentID
	logicalT := e.clock.tick()

	if nsConfig.ConflictHandler == nil {
		log.Printf("[Error] ns=%s id=%v: %v", nsConfig.Namespace, id, ErrNoResolver)
		return
	}

	localEvent := docConfig.LastUncommittedChangeEvent
	resolution, isDelete, err := nsConfig.ConflictHandler.HandleConflict(ctx, id, localEvent, remoteEvent)
	if err != nil {
		e.emitError(nsConfig, docConfig, fmt.Errorf("conflict handler: %w", err))
		docConfig.LastResolution = logicalT
		return
	}

	docConfig.LastResolution = logicalT

	var remoteVersion *DocumentVersion
	if remoteEvent.Operation != OperationDelete && remoteEvent.FullDocument != nil {
		if v, has, verr := getRemoteVersionInfo(remoteEvent.FullDocument); verr == nil && has {
			remoteVersion = v
		}
	}

	if resolution == nil {
		isDelete = true
	}
	accept := acceptsRemote(remoteEvent, resolution, isDelete)

	if isDelete {
		e.stageResolutionDelete(nsConfig, docConfig, remoteVersion, accept, batch)
		return
	}
	e.stageResolutionReplace(nsConfig, docConfig, sanitize(resolution), remoteEvent.FullDocument, remoteVersion, accept, batch)
}

// acceptsRemote implements spec §4.7's acceptRemote: the resolver's
// decision is already reflected on the remote side, either because both
// sides agree the document should be deleted, or because the resolved
// document is identical to what remoteEvent already carries. In either
// case there is nothing left to push to the remote side.
func acceptsRemote(remoteEvent *ChangeEvent, resolution bson.M, isDelete bool) bool {
	remoteIsDelete := remoteEvent.Operation == OperationDelete || remoteEvent.FullDocument == nil
	if isDelete {
		return remoteIsDelete
	}
	if remoteIsDelete {
		return false
	}
	return bsonEqual(sanitize(remoteEvent.FullDocument), sanitize(resolution))
}

// stageResolutionReplace stages the resolved document as the new local
// truth. If accept is true, the remote side already holds this exact
// document: acknowledge remoteVersion and clear any pending write rather
// than pushing again. Otherwise stage a fresh pending UPDATE event (its
// diff taken from remoteDoc to resolved) carrying remoteVersion as the
// version the next L2R push must match, and wait for emit (INSERT when
// the remote side had deleted the document, so the next push recreates
// it instead of optimistically replacing it).
func (e *Engine) stageResolutionReplace(nsConfig *NamespaceConfig, docConfig *DocumentConfig, resolved, remoteDoc bson.M, remoteVersion *DocumentVersion, accept bool, batch *batchOps) {
	ns := nsConfig.Namespace
	id := docConfig.DocumentID

	if accept {
		event := &ChangeEvent{
			ID: newEventID(ns, id, OperationReplace, docConfig.LastResolution), Operation: OperationReplace,
			Namespace: ns, DocumentID: id, FullDocument: resolved, UncommittedWrites: false,
		}
		batch.add(id,
			WriteModel{Filter: bson.M{"_id": id}, Replacement: withIDAndVersionStripped(resolved, id), Upsert: true},
			configWriteModel(docConfig, func(c *DocumentConfig) { c.clearPendingEvent(remoteVersion) }),
		)
		e.emitEvent(nsConfig, id, event)
		return
	}

	op := OperationUpdate
	if remoteVersion == nil {
		op = OperationInsert
	}
	pending := &ChangeEvent{
		ID:                newEventID(ns, id, op, docConfig.LastResolution),
		Operation:         op,
		Namespace:         ns,
		DocumentID:        id,
		FullDocument:      resolved,
		UncommittedWrites: true,
	}
	if op == OperationUpdate {
		pending.UpdateDescription = updateDescriptionDiff(sanitize(remoteDoc), resolved)
	}

	batch.add(id,
		WriteModel{Filter: bson.M{"_id": id}, Replacement: withIDAndVersionStripped(resolved, id), Upsert: true},
		configWriteModel(docConfig, func(c *DocumentConfig) {
			c.LastKnownRemoteVersion = remoteVersion
			c.setPendingEvent(pending)
		}),
	)

	e.emitEvent(nsConfig, id, pending)
}

// stageResolutionDelete stages a local delete as the resolution. If
// accept is true, the remote side already agrees the document is gone:
// desync it outright with no further push. Otherwise mark a pending
// DELETE acknowledging remoteVersion so the next L2R push carries the
// right optimistic-concurrency filter.
func (e *Engine) stageResolutionDelete(nsConfig *NamespaceConfig, docConfig *DocumentConfig, remoteVersion *DocumentVersion, accept bool, batch *batchOps) {
	ns := nsConfig.Namespace
	id := docConfig.DocumentID

	if accept {
		batch.add(id,
			WriteModel{Filter: bson.M{"_id": id}, Delete: true},
			WriteModel{Filter: bson.M{"_id": id}, Delete: true},
		)
		e.emitEvent(nsConfig, id, &ChangeEvent{
			ID: newEventID(ns, id, OperationDelete, docConfig.LastResolution), Operation: OperationDelete,
			Namespace: ns, DocumentID: id, UncommittedWrites: false,
		})
		e.desync(nsConfig, id)
		return
	}

	pending := &ChangeEvent{
		ID:                newEventID(ns, id, OperationDelete, docConfig.LastResolution),
		Operation:         OperationDelete,
		Namespace:         ns,
		DocumentID:        id,
		UncommittedWrites: true,
	}

	batch.add(id,
		WriteModel{Filter: bson.M{"_id": id}, Delete: true},
		configWriteModel(docConfig, func(c *DocumentConfig) {
			c.LastKnownRemoteVersion = remoteVersion
			c.setPendingEvent(pending)
		}),
	)

	e.emitEvent(nsConfig, id, pending)
}
