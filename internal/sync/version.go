package sync

import (
	"go.mongodb.org/mongo-driver/bson"
)

// DocumentVersionField is the top-level field under which a document
// version is embedded in remote documents.
const DocumentVersionField = "__stitch_sync_version"

// SyncProtocolVersion is the only protocol version this engine ever
// emits or accepts. Per spec §3, any other value desyncs the document.
const SyncProtocolVersion = 1

// DocumentVersion is the version vector embedded in every synchronized
// remote document at DocumentVersionField.
type DocumentVersion struct {
	SyncProtocolVersion int    `bson:"spv"`
	InstanceID          string `bson:"id"`
	VersionCounter      int64  `bson:"v"`
}

// getRemoteVersionInfo extracts the embedded version subdocument from a
// raw BSON document. A missing field is a legitimate, meaningful
// "no version" state and is reported via the second return value, not
// an error. A present-but-malformed field is ErrVersionParse.
func getRemoteVersionInfo(doc bson.M) (*DocumentVersion, bool, error) {
	raw, ok := doc[DocumentVersionField]
	if !ok || raw == nil {
		return nil, false, nil
	}
	return parseVersion(raw)
}

func parseVersion(raw interface{}) (*DocumentVersion, bool, error) {
	sub, ok := raw.(bson.M)
	if !ok {
		if d, ok2 := raw.(bson.D); ok2 {
			sub = d.Map()
		} else {
			return nil, false, ErrVersionParse
		}
	}

	spv, ok := asInt(sub["spv"])
	if !ok {
		return nil, false, ErrVersionParse
	}
	id, ok := sub["id"].(string)
	if !ok {
		return nil, false, ErrVersionParse
	}
	counter, ok := asInt64(sub["v"])
	if !ok {
		return nil, false, ErrVersionParse
	}

	return &DocumentVersion{
		SyncProtocolVersion: spv,
		InstanceID:          id,
		VersionCounter:      counter,
	}, true, nil
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// getLocalVersionInfo reads the last-known remote version recorded on a
// document's sync config. Nil means no known version.
func getLocalVersionInfo(config *DocumentConfig) *DocumentVersion {
	return config.LastKnownRemoteVersion
}

// hasCommittedVersion reports whether incoming cannot possibly carry
// information the local side has not already applied or authored itself:
// both sides have a version, they share an instanceId, and incoming's
// counter does not exceed the local counter.
func hasCommittedVersion(local, incoming *DocumentVersion) bool {
	if local == nil || incoming == nil {
		return false
	}
	return local.InstanceID == incoming.InstanceID && incoming.VersionCounter <= local.VersionCounter
}

// nextVersion returns the version that follows local, written under
// instanceID: counter+1 if local already carries instanceID, otherwise
// counter 0. If local is nil, a fresh version at counter 0 is minted (this
// is the path taken on first push of a document). instanceID is always
// this engine instance's own id (spec §3: a version's instanceId
// identifies which writer produced it), never a freshly minted one per
// document — that is what lets hasCommittedVersion recognize a
// document's own prior writes on a later pass.
func nextVersion(local *DocumentVersion, instanceID string) DocumentVersion {
	counter := int64(0)
	if local != nil && local.InstanceID == instanceID {
		counter = local.VersionCounter + 1
	}
	return DocumentVersion{
		SyncProtocolVersion: SyncProtocolVersion,
		InstanceID:          instanceID,
		VersionCounter:      counter,
	}
}

// withVersion returns a copy of doc with its version subdocument set (or
// replaced) to v.
func withVersion(doc bson.M, v DocumentVersion) bson.M {
	out := bson.M{}
	for k, val := range doc {
		out[k] = val
	}
	out[DocumentVersionField] = bson.M{
		"spv": v.SyncProtocolVersion,
		"id":  v.InstanceID,
		"v":   v.VersionCounter,
	}
	return out
}
