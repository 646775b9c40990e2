package sync

import (
	"context"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"
)

// recoverNamespace runs startup/reinitialize recovery for one namespace
// (spec §4.8): restore any pre-image left behind by a mutation that was
// interrupted before its undo row was cleared, replay any still-pending
// local write's intent, clear the journal, then drop orphaned local
// documents that no config references.
func (e *Engine) recoverNamespace(ctx context.Context, ns Namespace) error {
	nsConfig := e.namespaceConfig(ns)
	nsConfig.Lock()
	defer nsConfig.Unlock()

	rows, err := e.undo.all(ctx, ns)
	if err != nil {
		return fmt.Errorf("list undo rows: %w", err)
	}

	localColl := e.localCollection(ns)
	recoveredIDs := make([]interface{}, 0, len(rows))

	for _, row := range rows {
		if err := restorePreImage(ctx, localColl, row); err != nil {
			return fmt.Errorf("restore pre-image %v: %w", row.ID, err)
		}
		recoveredIDs = append(recoveredIDs, row.ID)
	}

	for _, id := range recoveredIDs {
		docConfig := nsConfig.Get(id)
		if docConfig == nil || docConfig.LastUncommittedChangeEvent == nil {
			continue
		}
		if err := e.replayPendingIntent(ctx, localColl, docConfig); err != nil {
			return fmt.Errorf("replay pending intent %v: %w", id, err)
		}
	}

	if err := e.undo.clear(ctx, ns, recoveredIDs...); err != nil {
		return fmt.Errorf("clear undo journal: %w", err)
	}

	if err := e.deleteOrphanedLocalDocuments(ctx, localColl, nsConfig); err != nil {
		return fmt.Errorf("delete orphaned documents: %w", err)
	}

	log.Printf("[Sync] ns=%s recovered %d pre-image(s)", ns, len(rows))
	return nil
}

// restorePreImage undoes a mutation that was interrupted before its undo
// row could be cleared: if the document existed before the mutation, its
// pre-image is restored; if it did not exist (the mutation was an
// insert), the partially-applied document is removed.
func restorePreImage(ctx context.Context, localColl LocalCollection, row undoRow) error {
	if row.Existed {
		doc := row.PreImage
		if doc == nil {
			// Pre-image itself was lost; nothing safe to restore beyond
			// removing whatever partial state might be there.
			return localColl.DeleteOne(ctx, bson.M{"_id": row.ID})
		}
		return localColl.FindOneAndReplace(ctx, bson.M{"_id": row.ID}, doc, true)
	}
	return localColl.DeleteOne(ctx, bson.M{"_id": row.ID})
}

// replayPendingIntent re-applies a still-pending local write's intent on
// top of the just-restored pre-image, so a crash between "mutate
// locally" and "stage as pending change event" does not lose the user's
// write.
func (e *Engine) replayPendingIntent(ctx context.Context, localColl LocalCollection, docConfig *DocumentConfig) error {
	evt := docConfig.LastUncommittedChangeEvent
	id := docConfig.DocumentID

	switch evt.Operation {
	case OperationInsert, OperationReplace:
		return localColl.FindOneAndReplace(ctx, bson.M{"_id": id}, withIDAndVersionStripped(evt.FullDocument, id), true)
	case OperationUpdate:
		before, err := localColl.FindOne(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		after := applyUpdateDescription(before, evt.UpdateDescription)
		return localColl.FindOneAndReplace(ctx, bson.M{"_id": id}, withIDAndVersionStripped(after, id), true)
	case OperationDelete:
		return localColl.DeleteOne(ctx, bson.M{"_id": id})
	default:
		return ErrUnknownOperationType
	}
}

// deleteOrphanedLocalDocuments removes any local document whose id is no
// longer referenced by any document config in the namespace, completing
// recovery's cleanup of desyncs that happened mid-crash.
func (e *Engine) deleteOrphanedLocalDocuments(ctx context.Context, localColl LocalCollection, nsConfig *NamespaceConfig) error {
	tracked := make(map[documentKey]bool)
	for _, c := range nsConfig.All() {
		tracked[keyOf(c.DocumentID)] = true
	}

	docs, err := localColl.Find(ctx, bson.M{})
	if err != nil {
		return err
	}
	for _, d := range docs {
		id := d["_id"]
		if tracked[keyOf(id)] {
			continue
		}
		if err := localColl.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
			return err
		}
	}
	return nil
}
