package sync

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// LocalStore is the embedded local document store the engine reads and
// writes offline. It must support multi-document bulk writes but need
// not support cross-document transactions (spec §6).
type LocalStore interface {
	// Collection returns a handle to the named local collection within
	// ns's database. collName lets callers address sibling collections
	// such as the undo journal and the sync config collections.
	Collection(database, collName string) LocalCollection
}

// LocalCollection is a single local collection's operations.
type LocalCollection interface {
	Find(ctx context.Context, filter bson.M) ([]bson.M, error)
	FindOne(ctx context.Context, filter bson.M) (bson.M, error)
	FindOneAndReplace(ctx context.Context, filter, replacement bson.M, upsert bool) error
	FindOneAndUpdate(ctx context.Context, filter, update bson.M, upsert bool) error
	InsertOne(ctx context.Context, doc bson.M) error
	InsertMany(ctx context.Context, docs []bson.M) error
	DeleteOne(ctx context.Context, filter bson.M) error
	DeleteMany(ctx context.Context, filter bson.M) error
	// BulkWrite applies ops. Writes may be non-atomic across documents,
	// but each individual document write MUST be atomic.
	BulkWrite(ctx context.Context, ops []WriteModel) error
	CountDocuments(ctx context.Context, filter bson.M) (int64, error)
	Aggregate(ctx context.Context, pipeline []bson.M) ([]bson.M, error)
}

// WriteModel is one operation in a LocalCollection.BulkWrite batch.
type WriteModel struct {
	Filter      bson.M
	Replacement bson.M // set for a replace-style op
	Update      bson.M // set for an update-style op ($set/$unset)
	Delete      bool
	Upsert      bool
}

// RemoteService is the remote document service the engine reconciles
// against (spec §6).
type RemoteService interface {
	InsertOne(ctx context.Context, ns Namespace, doc bson.M) error
	// UpdateOne returns the number of matched documents.
	UpdateOne(ctx context.Context, ns Namespace, filter, update bson.M, replace bool) (matched int64, err error)
	// DeleteOne returns the number of deleted documents.
	DeleteOne(ctx context.Context, ns Namespace, filter bson.M) (deleted int64, err error)
	Find(ctx context.Context, ns Namespace, filter bson.M) ([]bson.M, error)
	// Watch opens a change stream filtered to ids within ns. Per spec
	// §6, the wire request body is {database, collection, ids}.
	Watch(ctx context.Context, ns Namespace, ids []interface{}) (RemoteStream, error)
}

// RemoteStream is an open change stream. NextEvent blocks until the next
// event, an error, or ctx cancellation.
type RemoteStream interface {
	NextEvent(ctx context.Context) (*ChangeEvent, error)
	Close() error
}

// NetworkMonitor reports whether the process currently has network
// connectivity and notifies listeners of up/down edges.
type NetworkMonitor interface {
	IsConnected() bool
	AddStateListener(l NetworkStateListener)
	RemoveStateListener(l NetworkStateListener)
}

// NetworkStateListener is notified when connectivity changes.
type NetworkStateListener interface {
	OnNetworkStateChanged(connected bool)
}

// AuthMonitor is the capability surface this engine needs from the
// authentication client: whether a user is currently logged in, and the
// ability to refresh credentials. Stream (re)opens are gated on both
// NetworkMonitor and AuthMonitor (spec §4.2).
type AuthMonitor interface {
	IsLoggedIn() bool
	RefreshToken(ctx context.Context) error
}

// Codec decodes/encodes a user document type T to/from the bson.M wire
// representation the engine works with internally.
type Codec[T any] interface {
	Decode(doc bson.M) (T, error)
	Encode(v T) (bson.M, error)
}

// ConflictHandler is the user-supplied resolver invoked on a detected
// write/write conflict (spec §4.7). A nil resolution or isDelete == true
// means "delete"; otherwise resolution is the full replacement document.
type ConflictHandler interface {
	HandleConflict(ctx context.Context, documentID interface{}, localEvent, remoteEvent *ChangeEvent) (resolution bson.M, isDelete bool, err error)
}

// ChangeEventListener is notified of every change event the engine
// applies locally or emits as committed.
type ChangeEventListener interface {
	OnEvent(ns Namespace, documentID interface{}, evt *ChangeEvent)
}

// ExceptionListener is notified of per-document errors that cause a
// document to be paused.
type ExceptionListener interface {
	OnError(ns Namespace, documentID interface{}, err error)
}
