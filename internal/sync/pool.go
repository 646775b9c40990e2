package sync

import (
	"context"
	"sync"
)

// listenerPool owns one namespaceListener per configured namespace for an
// engine instance (spec §4.3). All operations are serialized by a single
// instance-wide lock, matching the Java InstanceChangeStreamListenerImpl.
type listenerPool struct {
	mu        sync.Mutex
	listeners map[Namespace]*namespaceListener
	remote    RemoteService
	network   NetworkMonitor
	auth      AuthMonitor
	started   bool
}

func newListenerPool(remote RemoteService, network NetworkMonitor, auth AuthMonitor) *listenerPool {
	return &listenerPool{
		listeners: make(map[Namespace]*namespaceListener),
		remote:    remote,
		network:   network,
		auth:      auth,
	}
}

// addNamespace creates an idle (not started) listener for ns if absent.
// If the pool is already running, the new listener is started too.
func (p *listenerPool) addNamespace(ctx context.Context, ns Namespace, nsConfig *NamespaceConfig) *namespaceListener {
	p.mu.Lock()
	defer p.mu.Unlock()

	if l, ok := p.listeners[ns]; ok {
		return l
	}
	l := newNamespaceListener(ns, nsConfig, p.remote, p.network, p.auth)
	p.listeners[ns] = l
	if p.started {
		l.start(ctx)
	}
	return l
}

// removeNamespace stops and evicts the listener for ns.
func (p *listenerPool) removeNamespace(ns Namespace) {
	p.mu.Lock()
	l, ok := p.listeners[ns]
	delete(p.listeners, ns)
	p.mu.Unlock()

	if ok {
		l.stop()
	}
}

// get returns the listener for ns, or nil if none is registered.
func (p *listenerPool) get(ns Namespace) *namespaceListener {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listeners[ns]
}

// start starts every registered listener and marks the pool running so
// future addNamespace calls auto-start.
func (p *listenerPool) start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = true
	for _, l := range p.listeners {
		l.start(ctx)
	}
}

// stop stops every registered listener.
func (p *listenerPool) stop() {
	p.mu.Lock()
	p.started = false
	listeners := make([]*namespaceListener, 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()

	for _, l := range listeners {
		l.stop()
	}
}

// triggerReopen restarts the listener for ns, e.g. after its synchronized
// id set has changed.
func (p *listenerPool) triggerReopen(ctx context.Context, ns Namespace) {
	p.mu.Lock()
	l, ok := p.listeners[ns]
	started := p.started
	p.mu.Unlock()

	if !ok {
		return
	}
	l.stop()
	if started {
		l.start(ctx)
	}
}

// allOpen reports whether every registered listener currently has an open
// stream. Used by the periodic runner to judge overall sync health
// (original_source DataSynchronizer.areAllStreamsOpen).
func (p *listenerPool) allOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, l := range p.listeners {
		if !l.isOpen() {
			return false
		}
	}
	return true
}
