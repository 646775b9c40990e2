package sync

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
	"go.mongodb.org/mongo-driver/bson"
)

// OperationType is the kind of change a ChangeEvent describes.
type OperationType string

const (
	OperationInsert  OperationType = "INSERT"
	OperationUpdate  OperationType = "UPDATE"
	OperationReplace OperationType = "REPLACE"
	OperationDelete  OperationType = "DELETE"
)

// ChangeEvent is a single document change, either observed on the remote
// change stream or synthesized by a sync pass, or staged locally by CRUD.
type ChangeEvent struct {
	ID                string
	Operation         OperationType
	Namespace         Namespace
	DocumentID        interface{}
	FullDocument      bson.M // nil for DELETE
	UpdateDescription *UpdateDescription
	UncommittedWrites bool
}

// newEventID derives an opaque event id by hashing the namespace,
// document id, operation, and a caller-supplied nonce (0, or the logical
// time of a conflict resolution), the same "hash the identity, take 16 bytes,
// hex-encode" recipe storage/types.CalculateID uses for document ids.
func newEventID(ns Namespace, documentID interface{}, op OperationType, nonce int64) string {
	seed := fmt.Sprintf("%s|%v|%s|%d", ns.String(), documentID, op, nonce)
	hash := blake3.Sum256([]byte(seed))
	return hex.EncodeToString(hash[:16])
}

// sanitize strips DocumentVersionField from doc before it is stored
// locally or handed to the user's conflict resolver. It builds a fresh
// map rather than deleting a key from a document that might share a
// backing array with the caller's copy, so the result is guaranteed to
// never contain the version field (spec §9, Open Question 1).
func sanitize(doc bson.M) bson.M {
	if doc == nil {
		return nil
	}
	out := make(bson.M, len(doc))
	for k, v := range doc {
		if k == DocumentVersionField {
			continue
		}
		out[k] = v
	}
	return out
}
