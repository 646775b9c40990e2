package sync

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
)

// fakeStore is an in-memory LocalStore: a mutex-guarded map of
// collections, mirroring the hand-written-fake style of
// internal/storage/internal/router's tests rather than a generated mock.
type fakeStore struct {
	mu          sync.Mutex
	collections map[string]*fakeCollection
}

func newFakeStore() *fakeStore {
	return &fakeStore{collections: make(map[string]*fakeCollection)}
}

func (s *fakeStore) Collection(database, collName string) LocalCollection {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := database + "." + collName
	c, ok := s.collections[key]
	if !ok {
		c = &fakeCollection{docs: make(map[string]bson.M)}
		s.collections[key] = c
	}
	return c
}

type fakeCollection struct {
	mu   sync.Mutex
	docs map[string]bson.M
}

func docKey(id interface{}) string {
	if s, ok := id.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", id)
}

func (c *fakeCollection) Find(ctx context.Context, filter bson.M) ([]bson.M, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []bson.M
	for _, d := range c.docs {
		if matchesFilter(d, filter) {
			out = append(out, cloneDoc(d))
		}
	}
	return out, nil
}

func (c *fakeCollection) FindOne(ctx context.Context, filter bson.M) (bson.M, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.docs {
		if matchesFilter(d, filter) {
			return cloneDoc(d), nil
		}
	}
	return nil, nil
}

func (c *fakeCollection) FindOneAndReplace(ctx context.Context, filter, replacement bson.M, upsert bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, d := range c.docs {
		if matchesFilter(d, filter) {
			c.docs[k] = cloneDoc(replacement)
			return nil
		}
	}
	if !upsert {
		return nil
	}
	id := replacement["_id"]
	if id == nil {
		id = filter["_id"]
	}
	c.docs[docKey(id)] = cloneDoc(replacement)
	return nil
}

func (c *fakeCollection) FindOneAndUpdate(ctx context.Context, filter, update bson.M, upsert bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, d := range c.docs {
		if matchesFilter(d, filter) {
			applyRawUpdate(d, update)
			c.docs[k] = d
			return nil
		}
	}
	if !upsert {
		return nil
	}
	id := filter["_id"]
	doc := bson.M{"_id": id}
	applyRawUpdate(doc, update)
	c.docs[docKey(id)] = doc
	return nil
}

func (c *fakeCollection) InsertOne(ctx context.Context, doc bson.M) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[docKey(doc["_id"])] = cloneDoc(doc)
	return nil
}

func (c *fakeCollection) InsertMany(ctx context.Context, docs []bson.M) error {
	for _, d := range docs {
		if err := c.InsertOne(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (c *fakeCollection) DeleteOne(ctx context.Context, filter bson.M) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, d := range c.docs {
		if matchesFilter(d, filter) {
			delete(c.docs, k)
			return nil
		}
	}
	return nil
}

func (c *fakeCollection) DeleteMany(ctx context.Context, filter bson.M) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, d := range c.docs {
		if matchesFilter(d, filter) {
			delete(c.docs, k)
		}
	}
	return nil
}

func (c *fakeCollection) BulkWrite(ctx context.Context, ops []WriteModel) error {
	for _, op := range ops {
		switch {
		case op.Delete:
			if err := c.DeleteOne(ctx, op.Filter); err != nil {
				return err
			}
		case op.Replacement != nil:
			if err := c.FindOneAndReplace(ctx, op.Filter, op.Replacement, op.Upsert); err != nil {
				return err
			}
		case op.Update != nil:
			if err := c.FindOneAndUpdate(ctx, op.Filter, op.Update, op.Upsert); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *fakeCollection) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	docs, _ := c.Find(ctx, filter)
	return int64(len(docs)), nil
}

func (c *fakeCollection) Aggregate(ctx context.Context, pipeline []bson.M) ([]bson.M, error) {
	return nil, nil
}

func matchesFilter(doc, filter bson.M) bool {
	for k, v := range filter {
		if k == "_id" {
			if in, ok := v.(bson.M); ok {
				if ids, ok := in["$in"].([]interface{}); ok {
					found := false
					for _, candidate := range ids {
						if docKey(candidate) == docKey(doc["_id"]) {
							found = true
							break
						}
					}
					if !found {
						return false
					}
					continue
				}
			}
			if docKey(doc["_id"]) != docKey(v) {
				return false
			}
			continue
		}
		if dotted, ok := flattenDotted(doc, k); ok {
			if dotted != v {
				return false
			}
			continue
		}
		if doc[k] != v {
			return false
		}
	}
	return true
}

func flattenDotted(doc bson.M, key string) (interface{}, bool) {
	if key == DocumentVersionField+".id" {
		if sub, ok := doc[DocumentVersionField].(bson.M); ok {
			return sub["id"], true
		}
	}
	if key == DocumentVersionField+".v" {
		if sub, ok := doc[DocumentVersionField].(bson.M); ok {
			return sub["v"], true
		}
	}
	return nil, false
}

func applyRawUpdate(doc bson.M, update bson.M) {
	if set, ok := update["$set"].(bson.M); ok {
		for k, v := range set {
			doc[k] = v
		}
	}
	if unset, ok := update["$unset"].(bson.M); ok {
		for k := range unset {
			delete(doc, k)
		}
	}
}

func cloneDoc(d bson.M) bson.M {
	out := make(bson.M, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// fakeRemote is an in-memory RemoteService.
type fakeRemote struct {
	mu   sync.Mutex
	docs map[string]map[string]bson.M // namespace -> id -> doc
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{docs: make(map[string]map[string]bson.M)}
}

func (r *fakeRemote) coll(ns Namespace) map[string]bson.M {
	key := ns.String()
	c, ok := r.docs[key]
	if !ok {
		c = make(map[string]bson.M)
		r.docs[key] = c
	}
	return c
}

func (r *fakeRemote) InsertOne(ctx context.Context, ns Namespace, doc bson.M) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.coll(ns)
	k := docKey(doc["_id"])
	if _, exists := c[k]; exists {
		return &RemoteServiceError{Code: "MONGODB_ERROR", Message: "E11000 duplicate key error"}
	}
	c[k] = cloneDoc(doc)
	return nil
}

func (r *fakeRemote) UpdateOne(ctx context.Context, ns Namespace, filter, update bson.M, replace bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.coll(ns)
	for k, d := range c {
		if matchesFilter(d, filter) {
			if replace {
				if set, ok := update["$set"].(bson.M); ok {
					merged := cloneDoc(d)
					for field, v := range set {
						merged[field] = v
					}
					c[k] = merged
				}
			}
			return 1, nil
		}
	}
	return 0, nil
}

func (r *fakeRemote) DeleteOne(ctx context.Context, ns Namespace, filter bson.M) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.coll(ns)
	for k, d := range c {
		if matchesFilter(d, filter) {
			delete(c, k)
			return 1, nil
		}
	}
	return 0, nil
}

func (r *fakeRemote) Find(ctx context.Context, ns Namespace, filter bson.M) ([]bson.M, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.coll(ns)
	var out []bson.M
	for _, d := range c {
		if matchesFilter(d, filter) {
			out = append(out, cloneDoc(d))
		}
	}
	return out, nil
}

func (r *fakeRemote) Watch(ctx context.Context, ns Namespace, ids []interface{}) (RemoteStream, error) {
	return &fakeStream{done: make(chan struct{})}, nil
}

// fakeStream is a RemoteStream that never delivers an event on its own;
// tests that need R2L to see a change populate fakeRemote directly and
// mark the namespace stale instead of pushing through the stream.
type fakeStream struct {
	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func (s *fakeStream) NextEvent(ctx context.Context) (*ChangeEvent, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, context.Canceled
	}
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

// fakeNetwork is always connected and never fires edges, unless told to.
type fakeNetwork struct {
	mu        sync.Mutex
	connected bool
	listeners []NetworkStateListener
}

func newFakeNetwork() *fakeNetwork { return &fakeNetwork{connected: true} }

func (n *fakeNetwork) IsConnected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connected
}

func (n *fakeNetwork) AddStateListener(l NetworkStateListener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, l)
}

func (n *fakeNetwork) RemoveStateListener(l NetworkStateListener) {}

// fakeAuth is always logged in.
type fakeAuth struct{}

func (fakeAuth) IsLoggedIn() bool                       { return true }
func (fakeAuth) RefreshToken(ctx context.Context) error { return nil }

// fakeConflictHandler always accepts the remote document.
type fakeConflictHandler struct {
	fn func(ctx context.Context, id interface{}, local, remote *ChangeEvent) (bson.M, bool, error)
}

func (h *fakeConflictHandler) HandleConflict(ctx context.Context, id interface{}, local, remote *ChangeEvent) (bson.M, bool, error) {
	if h.fn != nil {
		return h.fn(ctx, id, local, remote)
	}
	if remote.Operation == OperationDelete {
		return nil, true, nil
	}
	return remote.FullDocument, false, nil
}
