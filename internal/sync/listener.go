package sync

import (
	"context"
	"log"
	"sync"
)

// watcherFunc receives every change event the listener buffers, and a
// final (nil, true) call when the listener is closed (so watchers can treat
// closure as a failed result, mirroring the Java client's behavior of
// delivering a failed OperationResult to every watcher on close).
type watcherFunc func(evt *ChangeEvent, closed bool)

// namespaceListener owns one namespace's open change stream: it buffers
// unprocessed events by document id (last write wins — this is the
// coalescence spec §4.2 describes) and fans each event out to watchers.
//
// Concurrency: nsConfig's read-write lock (config.go) doubles as this
// listener's lock, so the sync engine's pass and the listener's
// background read share exactly one lock per namespace, matching the §5
// requirement that the sync loop and the listener agree on one lock.
type namespaceListener struct {
	ns       Namespace
	nsConfig *NamespaceConfig
	remote   RemoteService
	network  NetworkMonitor
	auth     AuthMonitor

	mu       sync.Mutex // guards the fields below, distinct from nsConfig's lock
	stream   RemoteStream
	running  bool
	cancel   context.CancelFunc

	bufMu    sync.RWMutex // guards events + watchers
	events   map[documentKey]*ChangeEvent
	watchers map[int]watcherFunc
	nextWID  int
}

func newNamespaceListener(ns Namespace, nsConfig *NamespaceConfig, remote RemoteService, network NetworkMonitor, auth AuthMonitor) *namespaceListener {
	return &namespaceListener{
		ns:       ns,
		nsConfig: nsConfig,
		remote:   remote,
		network:  network,
		auth:     auth,
		events:   make(map[documentKey]*ChangeEvent),
		watchers: make(map[int]watcherFunc),
	}
}

// start opens the stream in a background goroutine, unless one is
// already running.
func (l *namespaceListener) start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.running = true
	go l.run(runCtx)
}

// stop cancels the background goroutine, closes the stream and clears
// watchers (each receives a failed result). It does not wait for the
// goroutine to exit.
func (l *namespaceListener) stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	if l.cancel != nil {
		l.cancel()
	}
	l.mu.Unlock()

	l.closeStream()
	l.clearWatchers()
}

func (l *namespaceListener) isOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stream != nil
}

// openStream opens the change stream, per the do-not-open conditions and
// restart policy of spec §4.2. Returns false (not an error) if the
// stream legitimately should not be open right now.
func (l *namespaceListener) openStream(ctx context.Context) (bool, error) {
	ids := l.nsConfig.SynchronizedIDs()

	if !l.network.IsConnected() {
		return false, nil
	}
	if len(ids) == 0 {
		return false, nil
	}

	l.nsConfig.Lock()
	defer l.nsConfig.Unlock()

	if !l.auth.IsLoggedIn() {
		return false, nil
	}

	stream, err := l.remote.Watch(ctx, l.ns, ids)
	if err != nil {
		return false, err
	}

	l.mu.Lock()
	l.stream = stream
	l.mu.Unlock()

	l.nsConfig.stale = true
	log.Printf("[Sync] ns=%s stream opened, marked stale", l.ns)
	return true, nil
}

func (l *namespaceListener) closeStream() {
	l.mu.Lock()
	s := l.stream
	l.stream = nil
	l.mu.Unlock()
	if s != nil {
		if err := s.Close(); err != nil {
			log.Printf("[Error] ns=%s closing stream: %v", l.ns, err)
		}
	}
}

func (l *namespaceListener) run(ctx context.Context) {
	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		opened, err := l.openStream(ctx)
		if err != nil {
			log.Printf("[Error] ns=%s open stream: %v", l.ns, err)
			return
		}
		if !opened {
			return
		}

		l.pumpEvents(ctx)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// pumpEvents blocks on nextEvent in a loop, buffering and fanning out
// each event, until the stream closes or ctx is cancelled.
func (l *namespaceListener) pumpEvents(ctx context.Context) {
	for {
		l.mu.Lock()
		stream := l.stream
		l.mu.Unlock()
		if stream == nil {
			return
		}

		evt, err := stream.NextEvent(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[Error] ns=%s nextEvent: %v", l.ns, err)
			l.closeStream()
			return
		}
		if evt == nil {
			continue
		}

		l.storeEvent(evt)
	}
}

func (l *namespaceListener) storeEvent(evt *ChangeEvent) {
	l.bufMu.Lock()
	l.events[keyOf(evt.DocumentID)] = evt
	watchers := make([]watcherFunc, 0, len(l.watchers))
	for _, w := range l.watchers {
		watchers = append(watchers, w)
	}
	l.bufMu.Unlock()

	for _, w := range watchers {
		w(evt, false)
	}
}

// getEvents atomically snapshots and clears the event buffer.
func (l *namespaceListener) getEvents() map[documentKey]*ChangeEvent {
	l.bufMu.Lock()
	defer l.bufMu.Unlock()
	out := l.events
	l.events = make(map[documentKey]*ChangeEvent)
	return out
}

// getUnprocessedEvent atomically fetches and removes the buffered event
// for id, if any.
func (l *namespaceListener) getUnprocessedEvent(id interface{}) *ChangeEvent {
	l.bufMu.Lock()
	defer l.bufMu.Unlock()
	k := keyOf(id)
	evt := l.events[k]
	delete(l.events, k)
	return evt
}

func (l *namespaceListener) addWatcher(w watcherFunc) int {
	l.bufMu.Lock()
	defer l.bufMu.Unlock()
	id := l.nextWID
	l.nextWID++
	l.watchers[id] = w
	return id
}

func (l *namespaceListener) removeWatcher(id int) {
	l.bufMu.Lock()
	defer l.bufMu.Unlock()
	delete(l.watchers, id)
}

func (l *namespaceListener) clearWatchers() {
	l.bufMu.Lock()
	watchers := l.watchers
	l.watchers = make(map[int]watcherFunc)
	l.bufMu.Unlock()

	for _, w := range watchers {
		w(nil, true)
	}
}
