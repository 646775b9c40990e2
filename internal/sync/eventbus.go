package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// exceptionNotice is the wire shape published for a paused document,
// mirroring the namespace/docKey addressing trigger.DeliveryTask uses for
// its subject.
type exceptionNotice struct {
	Database   string `json:"database"`
	Collection string `json:"collection"`
	DocumentID string `json:"document_id"`
	Error      string `json:"error"`
}

// NatsExceptionBus publishes a notice to JetStream every time the engine
// pauses a document on an unrecoverable per-document error, so an
// operator-facing service can alert on it instead of only logging it
// (spec §7 calls out per-document errors as user-observable events; this
// is the optional delivery path for that, grounded on
// internal/trigger's NatsPublisher since its subject-per-namespace
// convention fits directly).
type NatsExceptionBus struct {
	js jetstream.JetStream
}

// NewNatsExceptionBus wraps an existing NATS connection.
func NewNatsExceptionBus(nc *nats.Conn) (*NatsExceptionBus, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("eventbus: jetstream: %w", err)
	}
	return &NatsExceptionBus{js: js}, nil
}

// OnError implements ExceptionListener by publishing to
// "sync.exceptions.<database>.<collection>".
func (b *NatsExceptionBus) OnError(ns Namespace, documentID interface{}, err error) {
	subject := fmt.Sprintf("sync.exceptions.%s.%s", ns.Database, ns.Collection)
	notice := exceptionNotice{
		Database:   ns.Database,
		Collection: ns.Collection,
		DocumentID: fmt.Sprintf("%v", documentID),
		Error:      err.Error(),
	}

	data, merr := json.Marshal(notice)
	if merr != nil {
		return
	}
	// Best-effort: a failure to publish an exception notice must never
	// itself surface as a sync error, so it is dropped rather than
	// propagated.
	_, _ = b.js.Publish(context.Background(), subject, data)
}
