package sync

import (
	"context"
	"log"
	"sync"
	"time"
)

// Runner drives Engine.DoSyncPass on a periodic schedule with a network-
// aware back-off (spec §4.8): a fast interval while streams are healthy,
// a slower one while they are not, and an immediate wake on a
// reconnect edge rather than waiting out the current interval.
//
// There is no scheduler library anywhere in the example pack this
// engine was grounded on; a plain time.Timer loop gated by a
// sync.Cond-style wake channel is the idiomatic stdlib shape for this
// and is what original_source's DataSynchronizerRunner itself reduces to
// once its thread-pool scaffolding is stripped away.
type Runner struct {
	engine *Engine

	fastInterval time.Duration
	slowInterval time.Duration

	mu     sync.Mutex
	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunner creates a Runner with the spec's default intervals: 500ms
// while every configured namespace's stream is open, 5000ms otherwise.
func NewRunner(engine *Engine) *Runner {
	r := &Runner{
		engine:       engine,
		fastInterval: 500 * time.Millisecond,
		slowInterval: 5000 * time.Millisecond,
		wake:         make(chan struct{}, 1),
	}
	engine.SetReconnectHook(r.TriggerNow)
	return r
}

// Start begins the periodic loop in a background goroutine. Calling
// Start twice without an intervening Stop is a no-op.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(runCtx)
}

// Stop halts the loop and waits for it to exit.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// TriggerNow wakes the runner immediately instead of waiting out its
// current interval, e.g. on a network reconnect edge
// (Engine.OnNetworkStateChanged calls this).
func (r *Runner) TriggerNow() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)

	for {
		if err := r.engine.DoSyncPass(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[Error] sync pass: %v", err)
		}

		interval := r.slowInterval
		if r.engine.AllStreamsOpen() {
			interval = r.fastInterval
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-r.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}
