package sync

import "go.mongodb.org/mongo-driver/bson"

// UpdateDescription is the minimal set of field changes that turns
// "before" into "after": the fields that changed or were added, and the
// top-level fields that were removed entirely.
type UpdateDescription struct {
	UpdatedFields bson.M
	RemovedFields []string
}

// IsEmpty reports whether the diff describes a no-op. An empty diff must
// never be emitted as an UPDATE (spec §4.1, §4.6, §8 S6).
func (d *UpdateDescription) IsEmpty() bool {
	return d == nil || (len(d.UpdatedFields) == 0 && len(d.RemovedFields) == 0)
}

// updateDescriptionDiff computes the minimal {updatedFields, removedFields}
// such that applying it to before yields after. Only top-level field
// identity is compared; a changed nested value is reported as a full
// replacement of its top-level field, which mirrors how the remote
// service's change-stream updateDescription reports nested writes made
// through a full-document replace.
func updateDescriptionDiff(before, after bson.M) *UpdateDescription {
	d := &UpdateDescription{UpdatedFields: bson.M{}}

	for k, av := range after {
		bv, existed := before[k]
		if !existed || !bsonEqual(bv, av) {
			d.UpdatedFields[k] = av
		}
	}
	for k := range before {
		if _, stillPresent := after[k]; !stillPresent {
			d.RemovedFields = append(d.RemovedFields, k)
		}
	}

	return d
}

// applyUpdateDescription applies d to before, returning the resulting
// document. Used by tests to verify updateDescriptionDiff's round-trip
// property (spec §8, invariant 5) and by recovery when replaying a
// pending UPDATE's intent.
func applyUpdateDescription(before bson.M, d *UpdateDescription) bson.M {
	out := make(bson.M, len(before))
	for k, v := range before {
		out[k] = v
	}
	if d == nil {
		return out
	}
	for _, k := range d.RemovedFields {
		delete(out, k)
	}
	for k, v := range d.UpdatedFields {
		out[k] = v
	}
	return out
}

func bsonEqual(a, b interface{}) bool {
	am, aIsMap := a.(bson.M)
	bm, bIsMap := b.(bson.M)
	if aIsMap && bIsMap {
		if len(am) != len(bm) {
			return false
		}
		for k, av := range am {
			bv, ok := bm[k]
			if !ok || !bsonEqual(av, bv) {
				return false
			}
		}
		return true
	}

	aSlice, aIsSlice := a.(bson.A)
	bSlice, bIsSlice := b.(bson.A)
	if aIsSlice && bIsSlice {
		if len(aSlice) != len(bSlice) {
			return false
		}
		for i := range aSlice {
			if !bsonEqual(aSlice[i], bSlice[i]) {
				return false
			}
		}
		return true
	}

	an, aIsNum := asInt64(a)
	bn, bIsNum := asInt64(b)
	if aIsNum && bIsNum {
		return an == bn
	}

	return a == b
}
