package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestSanitize_NoVersionField(t *testing.T) {
	doc := withVersion(bson.M{"name": "x"}, nextVersion(nil, "inst-1"))

	clean := sanitize(doc)

	_, present := clean[DocumentVersionField]
	assert.False(t, present)
	assert.Equal(t, "x", clean["name"])
}

func TestSanitize_Idempotent(t *testing.T) {
	doc := bson.M{"name": "x"}

	once := sanitize(doc)
	twice := sanitize(once)

	assert.Equal(t, once, twice)
	assert.NotContains(t, twice, DocumentVersionField)
}

func TestSanitize_DoesNotMutateInput(t *testing.T) {
	doc := withVersion(bson.M{"name": "x"}, nextVersion(nil, "inst-1"))

	_ = sanitize(doc)

	_, stillPresent := doc[DocumentVersionField]
	assert.True(t, stillPresent, "sanitize must not mutate its argument")
}

func TestNewEventID_StableForSameInputs(t *testing.T) {
	ns := NewNamespace("app", "widgets")
	a := newEventID(ns, "doc-1", OperationUpdate, 7)
	b := newEventID(ns, "doc-1", OperationUpdate, 7)
	c := newEventID(ns, "doc-1", OperationUpdate, 8)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
