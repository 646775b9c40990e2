package sync

import (
	"sync"

	"go.mongodb.org/mongo-driver/bson"
)

// DocumentConfig is the persisted per-document synchronization state
// (spec §3, CoreDocumentSynchronizationConfig).
type DocumentConfig struct {
	DocumentID                 interface{}      `bson:"_id"`
	Namespace                  Namespace        `bson:"namespace"`
	LastKnownRemoteVersion     *DocumentVersion `bson:"last_known_remote_version"`
	LastUncommittedChangeEvent *ChangeEvent     `bson:"last_uncommitted_change_event"`
	LastResolution             int64            `bson:"last_resolution"` // -1 if none
	IsStale                    bool             `bson:"is_stale"`
	IsPaused                   bool             `bson:"is_paused"`
	HasUncommittedWrites       bool             `bson:"has_uncommitted_writes"`
}

// NewDocumentConfig creates a fresh, unpaused, non-stale config for id
// with no pending writes and no known remote version.
func NewDocumentConfig(ns Namespace, id interface{}) *DocumentConfig {
	return &DocumentConfig{
		DocumentID:     id,
		Namespace:      ns,
		LastResolution: -1,
	}
}

// setPendingEvent records evt as the document's sole pending change,
// per invariant 2 (at most one uncommitted change event is retained).
func (c *DocumentConfig) setPendingEvent(evt *ChangeEvent) {
	c.LastUncommittedChangeEvent = evt
	c.HasUncommittedWrites = evt != nil
}

// clearPendingEvent records a successful commit: no pending event, and
// the new remote version becomes the last-known one.
func (c *DocumentConfig) clearPendingEvent(newVersion *DocumentVersion) {
	c.LastUncommittedChangeEvent = nil
	c.HasUncommittedWrites = false
	c.LastKnownRemoteVersion = newVersion
}

// NamespaceConfig is the per-namespace synchronization state: the set of
// document configs, the user-supplied conflict handler and change
// listener, and the lock that guarantees no event is ingested mid-pass
// (spec §3 invariant 5, §5 lock hierarchy).
type NamespaceConfig struct {
	Namespace Namespace

	mu        sync.RWMutex
	documents map[documentKey]*DocumentConfig
	stale     bool

	ConflictHandler   ConflictHandler
	ChangeListener    ChangeEventListener
	ExceptionListener ExceptionListener
}

// documentKey is a comparable representation of a document id, used as a
// map key since DocumentID is interface{}.
type documentKey struct{ v interface{} }

func keyOf(id interface{}) documentKey { return documentKey{v: id} }

// NewNamespaceConfig creates an empty namespace config.
func NewNamespaceConfig(ns Namespace) *NamespaceConfig {
	return &NamespaceConfig{
		Namespace: ns,
		documents: make(map[documentKey]*DocumentConfig),
	}
}

// Lock/Unlock/RLock/RUnlock expose the namespace's read-write lock so the
// sync engine and the namespace's change-stream listener can share it
// per the §5 lock ordering (stream-lock, then config-lock — this lock IS
// the config-lock in that ordering).
func (n *NamespaceConfig) Lock()    { n.mu.Lock() }
func (n *NamespaceConfig) Unlock()  { n.mu.Unlock() }
func (n *NamespaceConfig) RLock()   { n.mu.RLock() }
func (n *NamespaceConfig) RUnlock() { n.mu.RUnlock() }

// Get returns the config for id, or nil if the document is not
// synchronized. Caller must hold at least a read lock.
func (n *NamespaceConfig) Get(id interface{}) *DocumentConfig {
	return n.documents[keyOf(id)]
}

// Put installs cfg under its own DocumentID. Caller must hold the write
// lock.
func (n *NamespaceConfig) Put(cfg *DocumentConfig) {
	n.documents[keyOf(cfg.DocumentID)] = cfg
}

// Remove deletes the config for id (desync). Caller must hold the write
// lock.
func (n *NamespaceConfig) Remove(id interface{}) {
	delete(n.documents, keyOf(id))
}

// All returns every document config, including paused ones. Caller must
// hold at least a read lock.
func (n *NamespaceConfig) All() []*DocumentConfig {
	out := make([]*DocumentConfig, 0, len(n.documents))
	for _, c := range n.documents {
		out = append(out, c)
	}
	return out
}

// SynchronizedIDs returns every id currently configured for sync,
// regardless of pause state (paused documents still need their stream
// filter to include them so resume works without a full re-open).
func (n *NamespaceConfig) SynchronizedIDs() []interface{} {
	n.mu.RLock()
	defer n.mu.RUnlock()
	ids := make([]interface{}, 0, len(n.documents))
	for _, c := range n.documents {
		ids = append(ids, c.DocumentID)
	}
	return ids
}

// SetStale marks the namespace as having possibly missed events; R2L
// must perform a full-document catch-up on every currently-synced id.
func (n *NamespaceConfig) SetStale(v bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stale = v
}

// IsStale reports the namespace-wide stale flag.
func (n *NamespaceConfig) IsStale() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.stale
}

// InstanceConfig is the top-level map of namespace -> NamespaceConfig for
// one engine instance (spec §3 InstanceSynchronizationConfig).
type InstanceConfig struct {
	InstanceID string // opaque GUID, also used as this writer's DocumentVersion.InstanceID

	mu         sync.RWMutex
	namespaces map[Namespace]*NamespaceConfig
}

// NewInstanceConfig creates an empty instance config identified by
// instanceID (minted once per writer instance, per spec §3).
func NewInstanceConfig(instanceID string) *InstanceConfig {
	return &InstanceConfig{
		InstanceID: instanceID,
		namespaces: make(map[Namespace]*NamespaceConfig),
	}
}

// NamespaceConfig returns the config for ns, creating it if absent.
func (i *InstanceConfig) NamespaceConfig(ns Namespace) *NamespaceConfig {
	i.mu.Lock()
	defer i.mu.Unlock()
	nc, ok := i.namespaces[ns]
	if !ok {
		nc = NewNamespaceConfig(ns)
		i.namespaces[ns] = nc
	}
	return nc
}

// RemoveNamespace drops a namespace's config entirely (used by desync of
// every document in a namespace).
func (i *InstanceConfig) RemoveNamespace(ns Namespace) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.namespaces, ns)
}

// Namespaces returns every namespace with a config, in no particular
// order.
func (i *InstanceConfig) Namespaces() []Namespace {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]Namespace, 0, len(i.namespaces))
	for ns := range i.namespaces {
		out = append(out, ns)
	}
	return out
}

// bsonify is a tiny helper used by configWriteModel (remote_to_local.go)
// to persist a DocumentConfig through the LocalStore, which only speaks
// bson.M.
func (c *DocumentConfig) bsonify() bson.M {
	m := bson.M{
		"_id":                        c.DocumentID,
		"namespace":                  bson.M{"database": c.Namespace.Database, "collection": c.Namespace.Collection},
		"last_resolution":            c.LastResolution,
		"is_stale":                   c.IsStale,
		"is_paused":                  c.IsPaused,
		"has_uncommitted_writes":     c.HasUncommittedWrites,
	}
	if c.LastKnownRemoteVersion != nil {
		m["last_known_remote_version"] = bson.M{
			"spv": c.LastKnownRemoteVersion.SyncProtocolVersion,
			"id":  c.LastKnownRemoteVersion.InstanceID,
			"v":   c.LastKnownRemoteVersion.VersionCounter,
		}
	}
	if c.LastUncommittedChangeEvent != nil {
		m["last_uncommitted_change_event"] = eventToBSON(c.LastUncommittedChangeEvent)
	}
	return m
}

func eventToBSON(e *ChangeEvent) bson.M {
	m := bson.M{
		"id":                  e.ID,
		"operation":           string(e.Operation),
		"document_id":         e.DocumentID,
		"uncommitted_writes":  e.UncommittedWrites,
	}
	if e.FullDocument != nil {
		m["full_document"] = e.FullDocument
	}
	if e.UpdateDescription != nil {
		m["update_description"] = bson.M{
			"updated_fields": e.UpdateDescription.UpdatedFields,
			"removed_fields": e.UpdateDescription.RemovedFields,
		}
	}
	return m
}
