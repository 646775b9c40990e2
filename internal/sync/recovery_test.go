package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestRecoverNamespace_RestoresPreImageOfInterruptedReplace(t *testing.T) {
	e, _ := newTestEngine()
	ns := NewNamespace("app", "widgets")
	e.Configure(ns, &fakeConflictHandler{}, nil, nil)
	ctx := context.Background()

	localColl := e.localCollection(ns)
	require.NoError(t, localColl.InsertOne(ctx, bson.M{"_id": "w1", "name": "before"}))
	e.namespaceConfig(ns).Put(NewDocumentConfig(ns, "w1"))

	// Simulate a crash between "mutate locally" and "clear the undo row":
	// the document was already replaced, but its undo row is still there.
	require.NoError(t, e.undo.recordPreImage(ctx, ns, "w1", bson.M{"_id": "w1", "name": "before"}))
	require.NoError(t, localColl.FindOneAndReplace(ctx, bson.M{"_id": "w1"}, bson.M{"_id": "w1", "name": "after"}, true))

	require.NoError(t, e.recoverNamespace(ctx, ns))

	got, err := localColl.FindOne(ctx, bson.M{"_id": "w1"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "before", got["name"], "recovery must roll back to the pre-image")

	rows, err := e.undo.all(ctx, ns)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRecoverNamespace_RemovesPartialInsertWithNoPreImage(t *testing.T) {
	e, _ := newTestEngine()
	ns := NewNamespace("app", "widgets")
	e.Configure(ns, &fakeConflictHandler{}, nil, nil)
	ctx := context.Background()

	localColl := e.localCollection(ns)
	require.NoError(t, e.undo.recordPreImage(ctx, ns, "w1", nil))
	require.NoError(t, localColl.InsertOne(ctx, bson.M{"_id": "w1", "name": "half-applied"}))

	require.NoError(t, e.recoverNamespace(ctx, ns))

	got, err := localColl.FindOne(ctx, bson.M{"_id": "w1"})
	require.NoError(t, err)
	assert.Nil(t, got, "an insert with no pre-image never existed before and must be rolled back by removal")
}

func TestRecoverNamespace_ReplaysPendingIntentAfterRestoring(t *testing.T) {
	e, _ := newTestEngine()
	ns := NewNamespace("app", "widgets")
	e.Configure(ns, &fakeConflictHandler{}, nil, nil)
	ctx := context.Background()

	localColl := e.localCollection(ns)
	require.NoError(t, localColl.InsertOne(ctx, bson.M{"_id": "w1", "name": "before"}))

	docConfig := NewDocumentConfig(ns, "w1")
	docConfig.setPendingEvent(&ChangeEvent{
		Operation:    OperationReplace,
		DocumentID:   "w1",
		FullDocument: bson.M{"_id": "w1", "name": "intended"},
	})
	e.namespaceConfig(ns).Put(docConfig)

	require.NoError(t, e.undo.recordPreImage(ctx, ns, "w1", bson.M{"_id": "w1", "name": "before"}))
	// Crash happens before the local mutation actually lands, so the
	// local store still has the old value — recovery must still apply
	// the pending intent on top of the restored pre-image.

	require.NoError(t, e.recoverNamespace(ctx, ns))

	got, err := localColl.FindOne(ctx, bson.M{"_id": "w1"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "intended", got["name"])
}

func TestRecoverNamespace_DeletesOrphanedLocalDocuments(t *testing.T) {
	e, _ := newTestEngine()
	ns := NewNamespace("app", "widgets")
	e.Configure(ns, &fakeConflictHandler{}, nil, nil)
	ctx := context.Background()

	localColl := e.localCollection(ns)
	require.NoError(t, localColl.InsertOne(ctx, bson.M{"_id": "tracked", "name": "x"}))
	require.NoError(t, localColl.InsertOne(ctx, bson.M{"_id": "orphan", "name": "y"}))
	e.namespaceConfig(ns).Put(NewDocumentConfig(ns, "tracked"))

	require.NoError(t, e.recoverNamespace(ctx, ns))

	tracked, err := localColl.FindOne(ctx, bson.M{"_id": "tracked"})
	require.NoError(t, err)
	assert.NotNil(t, tracked)

	orphan, err := localColl.FindOne(ctx, bson.M{"_id": "orphan"})
	require.NoError(t, err)
	assert.Nil(t, orphan, "a local document with no config must be treated as an orphan and removed")
}

func TestReinitialize_RunsRecoveryForEveryConfiguredNamespace(t *testing.T) {
	e, _ := newTestEngine()
	ns := NewNamespace("app", "widgets")
	e.Configure(ns, &fakeConflictHandler{}, nil, nil)
	ctx := context.Background()

	newStore := newFakeStore()
	// Plant a leftover undo row directly on the store Reinitialize is
	// about to switch to, simulating a crash recorded against it.
	require.NoError(t, newUndoJournal(newStore).recordPreImage(ctx, ns, "w1", bson.M{"_id": "w1", "name": "before"}))

	require.NoError(t, e.Reinitialize(ctx, newStore))

	rows, err := e.undo.all(ctx, ns)
	require.NoError(t, err)
	assert.Empty(t, rows, "reinitialize must run recovery (and thus clear the undo journal) against the new store")
}
