package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

// TestEngine_RemoteToLocal_StaleNamespace_PullsRemoteDocument covers S1-style
// catch-up: a namespace marked stale (as if a stream had just (re)opened)
// pulls every synchronized id's current remote state on the next pass, with
// no local pending write to conflict with.
func TestEngine_RemoteToLocal_StaleNamespace_PullsRemoteDocument(t *testing.T) {
	e, remote := newTestEngine()
	ns := NewNamespace("app", "widgets")
	e.Configure(ns, &fakeConflictHandler{}, nil, nil)

	nsConfig := e.namespaceConfig(ns)
	docConfig := NewDocumentConfig(ns, "w1")
	nsConfig.Put(docConfig)
	nsConfig.SetStale(true)

	remoteVersion := DocumentVersion{SyncProtocolVersion: 1, InstanceID: "writer-2", VersionCounter: 0}
	remoteDoc := withVersion(bson.M{"_id": "w1", "name": "from-remote"}, remoteVersion)
	require.NoError(t, remote.InsertOne(context.Background(), ns, remoteDoc))

	require.NoError(t, e.DoSyncPass(context.Background()))

	local, err := e.FindOne(context.Background(), ns, "w1")
	require.NoError(t, err)
	assert.Equal(t, "from-remote", local["name"])
	assert.NotContains(t, local, DocumentVersionField, "local documents never retain the version field")

	updated := nsConfig.Get("w1")
	require.NotNil(t, updated)
	require.NotNil(t, updated.LastKnownRemoteVersion)
	assert.Equal(t, "writer-2", updated.LastKnownRemoteVersion.InstanceID)
}

// TestEngine_Conflict_LocalPendingWrite_DifferentInstance_ResolvesViaHandler
// covers a genuine write/write conflict: a local pending write exists while
// the remote side independently advanced under a different instanceId, and
// the resolver's decision becomes the new staged write for both sides.
func TestEngine_Conflict_LocalPendingWrite_DifferentInstance_ResolvesViaHandler(t *testing.T) {
	e, remote := newTestEngine()
	ns := NewNamespace("app", "widgets")

	var sawLocal, sawRemote *ChangeEvent
	handler := &fakeConflictHandler{fn: func(ctx context.Context, id interface{}, local, remote *ChangeEvent) (bson.M, bool, error) {
		sawLocal, sawRemote = local, remote
		return bson.M{"_id": id, "name": "merged"}, false, nil
	}}
	e.Configure(ns, handler, nil, nil)

	_, err := e.InsertOne(context.Background(), ns, bson.M{"_id": "w1", "name": "local-write"})
	require.NoError(t, err)
	require.NoError(t, e.DoSyncPass(context.Background())) // pushes the insert, assigns a known version

	nsConfig := e.namespaceConfig(ns)
	docConfig := nsConfig.Get("w1")
	require.NotNil(t, docConfig)

	// Simulate a second writer racing in between passes, then stage a new
	// local pending write so the next R2L sees both a local pending write
	// and a foreign version.
	foreignVersion := DocumentVersion{SyncProtocolVersion: 1, InstanceID: "writer-2", VersionCounter: 0}
	foreignDoc := withVersion(bson.M{"_id": "w1", "name": "remote-write"}, foreignVersion)
	nsConfig.Lock()
	remoteColl := remote.coll(ns)
	remoteColl["w1"] = foreignDoc
	docConfig.setPendingEvent(&ChangeEvent{
		ID: "local-pending", Operation: OperationReplace, Namespace: ns, DocumentID: "w1",
		FullDocument: bson.M{"_id": "w1", "name": "local-pending-write"}, UncommittedWrites: true,
	})
	nsConfig.stale = true
	nsConfig.Unlock()

	require.NoError(t, e.DoSyncPass(context.Background()))

	require.NotNil(t, sawRemote)
	assert.Equal(t, "remote-write", sawRemote.FullDocument["name"])
	require.NotNil(t, sawLocal)
	assert.Equal(t, "local-pending-write", sawLocal.FullDocument["name"])

	local, err := e.FindOne(context.Background(), ns, "w1")
	require.NoError(t, err)
	assert.Equal(t, "merged", local["name"])
}

// TestEngine_Conflict_RemoteWins_AcceptsAndClearsPendingWrite covers the
// acceptRemote path: when the resolver's decision is exactly the remote
// event's document, the document must acknowledge the remote version with
// no further push rather than staging a fresh pending write.
func TestEngine_Conflict_RemoteWins_AcceptsAndClearsPendingWrite(t *testing.T) {
	e, remote := newTestEngine()
	ns := NewNamespace("app", "widgets")

	handler := &fakeConflictHandler{fn: func(ctx context.Context, id interface{}, local, remote *ChangeEvent) (bson.M, bool, error) {
		return remote.FullDocument, false, nil
	}}
	e.Configure(ns, handler, nil, nil)

	_, err := e.InsertOne(context.Background(), ns, bson.M{"_id": "w1", "name": "local-write"})
	require.NoError(t, err)
	require.NoError(t, e.DoSyncPass(context.Background())) // pushes the insert, assigns a known version

	nsConfig := e.namespaceConfig(ns)
	docConfig := nsConfig.Get("w1")
	require.NotNil(t, docConfig)

	foreignVersion := DocumentVersion{SyncProtocolVersion: 1, InstanceID: "writer-2", VersionCounter: 0}
	foreignDoc := withVersion(bson.M{"_id": "w1", "name": "remote"}, foreignVersion)
	nsConfig.Lock()
	remote.coll(ns)["w1"] = foreignDoc
	docConfig.setPendingEvent(&ChangeEvent{
		ID: "local-pending", Operation: OperationReplace, Namespace: ns, DocumentID: "w1",
		FullDocument: bson.M{"_id": "w1", "name": "local"}, UncommittedWrites: true,
	})
	nsConfig.stale = true
	nsConfig.Unlock()

	require.NoError(t, e.DoSyncPass(context.Background()))

	local, err := e.FindOne(context.Background(), ns, "w1")
	require.NoError(t, err)
	assert.Equal(t, "remote", local["name"])

	updated := nsConfig.Get("w1")
	require.NotNil(t, updated)
	assert.False(t, updated.HasUncommittedWrites, "a remote-wins resolution must clear the pending write, not restage one")
	assert.Nil(t, updated.LastUncommittedChangeEvent)
	require.NotNil(t, updated.LastKnownRemoteVersion)
	assert.Equal(t, "writer-2", updated.LastKnownRemoteVersion.InstanceID)
}

// TestEngine_Delete_DeletedCountZero_RemoteDocFound_IsConflict verifies the
// spec's resolution of the deletedCount==0-but-found open question: a
// pending delete whose filter misses because the remote document was
// concurrently replaced is a conflict, not a silent drop.
func TestEngine_Delete_DeletedCountZero_RemoteDocFound_IsConflict(t *testing.T) {
	e, remote := newTestEngine()
	ns := NewNamespace("app", "widgets")

	var handlerCalled bool
	handler := &fakeConflictHandler{fn: func(ctx context.Context, id interface{}, local, remote *ChangeEvent) (bson.M, bool, error) {
		handlerCalled = true
		return nil, true, nil
	}}
	e.Configure(ns, handler, nil, nil)

	_, err := e.InsertOne(context.Background(), ns, bson.M{"_id": "w1", "name": "v1"})
	require.NoError(t, err)
	require.NoError(t, e.DoSyncPass(context.Background()))

	require.NoError(t, e.DeleteOne(context.Background(), ns, "w1"))

	// Concurrently replace the remote document with a version that no
	// longer matches what DeleteOne's filter expects.
	foreignVersion := DocumentVersion{SyncProtocolVersion: 1, InstanceID: "writer-2", VersionCounter: 0}
	remote.coll(ns)["w1"] = withVersion(bson.M{"_id": "w1", "name": "v2"}, foreignVersion)

	require.NoError(t, e.DoSyncPass(context.Background()))

	assert.True(t, handlerCalled, "a deletedCount==0 with the remote document still present must route through conflict resolution")
}
