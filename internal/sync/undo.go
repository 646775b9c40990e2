package sync

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// undoJournal brackets local mutations with a pre-image write/cleanup so
// that a process or power failure between the mutation and the cleanup
// can be recovered from (spec §4.4, invariant 3). Undo rows use the same
// _id as the user documents they shadow.
type undoJournal struct {
	store LocalStore
}

func newUndoJournal(store LocalStore) *undoJournal {
	return &undoJournal{store: store}
}

func (u *undoJournal) collection(ns Namespace) LocalCollection {
	return u.store.Collection("sync_undo_"+ns.Database, ns.Collection)
}

// recordPreImage inserts (or replaces) the pre-image of a document about
// to be mutated. preImage may be nil if the document did not exist yet
// (a pure insert still gets an undo row so recovery can tell "this id
// did not exist before" apart from "the pre-image was lost").
func (u *undoJournal) recordPreImage(ctx context.Context, ns Namespace, id interface{}, preImage bson.M) error {
	coll := u.collection(ns)
	row := bson.M{"_id": id}
	if preImage != nil {
		row["doc"] = preImage
		row["existed"] = true
	} else {
		row["existed"] = false
	}
	filter := bson.M{"_id": id}
	if err := coll.FindOneAndReplace(ctx, filter, row, true); err != nil {
		return fmt.Errorf("undo: record pre-image for %v: %w", id, err)
	}
	return nil
}

// clear deletes the pre-image row(s) for the given ids, completing the
// undo bracket after a successful mutation.
func (u *undoJournal) clear(ctx context.Context, ns Namespace, ids ...interface{}) error {
	if len(ids) == 0 {
		return nil
	}
	coll := u.collection(ns)
	if err := coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("undo: clear pre-images: %w", err)
	}
	return nil
}

// undoRow is a decoded pre-image journal row.
type undoRow struct {
	ID       interface{}
	Existed  bool
	PreImage bson.M
}

// all returns every pre-image currently recorded for ns, used by startup
// recovery.
func (u *undoJournal) all(ctx context.Context, ns Namespace) ([]undoRow, error) {
	docs, err := u.collection(ns).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("undo: list pre-images: %w", err)
	}
	out := make([]undoRow, 0, len(docs))
	for _, d := range docs {
		row := undoRow{ID: d["_id"]}
		if existed, _ := d["existed"].(bool); existed {
			row.Existed = true
			if pre, ok := d["doc"].(bson.M); ok {
				row.PreImage = pre
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// withUndo brackets mutate with a recorded pre-image and its cleanup, per
// spec §4.4's three-step protocol: record, mutate, clear. If mutate
// fails, the pre-image is left in place for recovery to pick up; the
// caller's error is returned unwrapped so callers can classify it.
func (u *undoJournal) withUndo(ctx context.Context, ns Namespace, id interface{}, preImage bson.M, mutate func(ctx context.Context) error) error {
	if err := u.recordPreImage(ctx, ns, id, preImage); err != nil {
		return err
	}
	if err := mutate(ctx); err != nil {
		return err
	}
	return u.clear(ctx, ns, id)
}
