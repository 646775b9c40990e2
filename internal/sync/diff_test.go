package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestUpdateDescriptionDiff_DetectsChangedAndRemoved(t *testing.T) {
	before := bson.M{"name": "a", "count": 1, "tag": "keep-me"}
	after := bson.M{"name": "b", "count": 1}

	diff := updateDescriptionDiff(before, after)

	assert.Equal(t, "b", diff.UpdatedFields["name"])
	_, stillThere := diff.UpdatedFields["count"]
	assert.False(t, stillThere, "unchanged fields must not appear in UpdatedFields")
	assert.ElementsMatch(t, []string{"tag"}, diff.RemovedFields)
}

func TestUpdateDescriptionDiff_NoChange_IsEmpty(t *testing.T) {
	doc := bson.M{"name": "a", "count": 1}
	diff := updateDescriptionDiff(doc, doc)
	assert.True(t, diff.IsEmpty())
}

func TestApplyUpdateDescription_RoundTrips(t *testing.T) {
	before := bson.M{"name": "a", "count": 1, "tag": "keep-me"}
	after := bson.M{"name": "b", "count": 1}

	diff := updateDescriptionDiff(before, after)
	roundTripped := applyUpdateDescription(before, diff)

	assert.Equal(t, after, roundTripped)
}

func TestUpdateDescription_NilIsEmpty(t *testing.T) {
	var d *UpdateDescription
	assert.True(t, d.IsEmpty())
}
