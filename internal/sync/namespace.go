// Package sync implements the bidirectional document synchronization
// engine: offline-capable CRUD over a local document store, reconciled
// against a remote document service on a periodic cycle via version
// vectors, change-stream listening, conflict resolution, and a
// crash-recovery undo journal.
package sync

import "fmt"

// Namespace identifies a logical collection as a (database, collection)
// pair. Equality is by the pair, not by identity.
type Namespace struct {
	Database   string
	Collection string
}

// NewNamespace builds a Namespace from a database and collection name.
func NewNamespace(database, collection string) Namespace {
	return Namespace{Database: database, Collection: collection}
}

// String renders the namespace as "database.collection".
func (n Namespace) String() string {
	return fmt.Sprintf("%s.%s", n.Database, n.Collection)
}

// UndoCollectionName is the name of the per-namespace undo journal
// collection backing this namespace's crash recovery.
func (n Namespace) UndoCollectionName() string {
	return fmt.Sprintf("sync_undo_%s.%s", n.Database, n.Collection)
}
