package sync

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// batchSizeLimit is the soft ceiling a BatchOps accumulates up to before
// it must be committed (spec §4.5: "accumulates up to ~5 MiB").
const batchSizeLimit = 5 * 1024 * 1024

// batchOps accumulates paired local-collection and config writes across
// multiple documents so they can be committed together, while tracking
// every touched id for undo-journal bracketing (spec §4.5).
type batchOps struct {
	ns         Namespace
	localOps   []WriteModel
	configOps  []WriteModel
	touchedIDs []interface{}
	sizeBytes  int
}

func newBatchOps(ns Namespace) *batchOps {
	return &batchOps{ns: ns}
}

// add stages a paired (local write, config write) for id, estimating its
// contribution to the 5MiB soft limit from the marshaled size of the
// local write's payload.
func (b *batchOps) add(id interface{}, local, config WriteModel) {
	b.localOps = append(b.localOps, local)
	b.configOps = append(b.configOps, config)
	b.touchedIDs = append(b.touchedIDs, id)
	b.sizeBytes += estimateSize(local)
}

func estimateSize(m WriteModel) int {
	var doc bson.M
	switch {
	case m.Replacement != nil:
		doc = m.Replacement
	case m.Update != nil:
		doc = m.Update
	case m.Filter != nil:
		doc = m.Filter
	}
	if doc == nil {
		return 64
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		return 64
	}
	return len(raw)
}

// full reports whether the batch has reached its soft size ceiling and
// should be committed before adding more.
func (b *batchOps) full() bool {
	return b.sizeBytes >= batchSizeLimit
}

func (b *batchOps) empty() bool {
	return len(b.localOps) == 0
}

// commit applies the local writes and the config writes, in that order,
// then clears the undo journal entries for every touched id. The caller
// is responsible for having already recorded pre-images before staging
// any of these writes.
func (b *batchOps) commit(ctx context.Context, localColl, configColl LocalCollection, undo *undoJournal) error {
	if b.empty() {
		return nil
	}
	if err := localColl.BulkWrite(ctx, b.localOps); err != nil {
		return err
	}
	if err := configColl.BulkWrite(ctx, b.configOps); err != nil {
		return err
	}
	return undo.clear(ctx, b.ns, b.touchedIDs...)
}
