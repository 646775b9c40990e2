package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestRunner_Start_RunsPassesUntilStopped(t *testing.T) {
	e, remote := newTestEngine()
	ns := NewNamespace("app", "widgets")
	e.Configure(ns, &fakeConflictHandler{}, nil, nil)
	_, err := e.InsertOne(context.Background(), ns, bson.M{"_id": "w1", "name": "gadget"})
	require.NoError(t, err)

	r := NewRunner(e)
	r.fastInterval = 5 * time.Millisecond
	r.slowInterval = 10 * time.Millisecond

	r.Start(context.Background())
	defer r.Stop()

	require.Eventually(t, func() bool {
		docs, _ := remote.Find(context.Background(), ns, bson.M{"_id": "w1"})
		return len(docs) == 1
	}, time.Second, 5*time.Millisecond, "runner must drive a DoSyncPass that pushes the pending insert")
}

func TestRunner_Start_TwiceIsNoop(t *testing.T) {
	e, _ := newTestEngine()
	r := NewRunner(e)
	r.fastInterval = 5 * time.Millisecond
	r.slowInterval = 10 * time.Millisecond

	r.Start(context.Background())
	firstCancel := r.cancel
	r.Start(context.Background())

	assert.NotNil(t, r.cancel)
	r.Stop()
	_ = firstCancel
}

func TestRunner_TriggerNow_WakesLoopEarly(t *testing.T) {
	e, remote := newTestEngine()
	ns := NewNamespace("app", "widgets")
	e.Configure(ns, &fakeConflictHandler{}, nil, nil)

	r := NewRunner(e)
	r.fastInterval = time.Minute
	r.slowInterval = time.Minute

	r.Start(context.Background())
	defer r.Stop()

	// The loop already ran its first pass (before the first document
	// even exists) and is now waiting out a minute-long interval. Stage
	// a pending insert after that, then prove TriggerNow wakes the next
	// pass immediately instead of making the test wait out the interval.
	time.Sleep(10 * time.Millisecond)
	_, err := e.InsertOne(context.Background(), ns, bson.M{"_id": "w1", "name": "gadget"})
	require.NoError(t, err)
	r.TriggerNow()

	require.Eventually(t, func() bool {
		docs, _ := remote.Find(context.Background(), ns, bson.M{"_id": "w1"})
		return len(docs) == 1
	}, time.Second, 5*time.Millisecond, "TriggerNow must wake the loop well before the minute-long interval elapses")
}

func TestRunner_Stop_WithoutStartIsNoop(t *testing.T) {
	e, _ := newTestEngine()
	r := NewRunner(e)
	assert.NotPanics(t, r.Stop)
}

func TestNewRunner_InstallsReconnectHook(t *testing.T) {
	e, _ := newTestEngine()
	r := NewRunner(e)

	assert.NotPanics(t, func() {
		e.OnNetworkStateChanged(true)
	})
	_ = r
}
