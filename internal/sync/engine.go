package sync

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Engine is the bidirectional document synchronization engine (spec §2,
// the "Sync engine (R2L/L2R passes)" component). One Engine owns one
// InstanceConfig, one listener pool, and the undo journal for every
// namespace it synchronizes.
type Engine struct {
	instanceKey string
	instance    *InstanceConfig

	store   LocalStore
	remote  RemoteService
	network NetworkMonitor
	auth    AuthMonitor
	undo    *undoJournal
	pool    *listenerPool
	clock   logicalClock

	// syncLock is the coarsest lock in the §5 hierarchy: held during
	// start/stop/configure and the critical portion of a pass. The
	// engine never holds it while doing remote I/O.
	syncLock sync.Mutex

	configuredNamespaces map[Namespace]bool
	running              bool
	paused               bool

	onReconnect func()
}

// EngineOptions configures a new Engine.
type EngineOptions struct {
	// InstanceKey names this engine's persisted config collections
	// (sync_config<InstanceKey>.*). Defaults to a fresh uuid if empty.
	InstanceKey string
	Store       LocalStore
	Remote      RemoteService
	Network     NetworkMonitor
	Auth        AuthMonitor
}

// NewEngine constructs an Engine. It does not start any background work;
// call Start after Configure-ing at least one namespace.
func NewEngine(opts EngineOptions) *Engine {
	key := opts.InstanceKey
	if key == "" {
		key = uuid.NewString()
	}
	e := &Engine{
		instanceKey:          key,
		instance:             NewInstanceConfig(uuid.NewString()),
		store:                opts.Store,
		remote:               opts.Remote,
		network:              opts.Network,
		auth:                 opts.Auth,
		undo:                 newUndoJournal(opts.Store),
		configuredNamespaces: make(map[Namespace]bool),
	}
	e.pool = newListenerPool(opts.Remote, opts.Network, opts.Auth)
	if opts.Network != nil {
		opts.Network.AddStateListener(e)
	}
	return e
}

// Configure registers ns for synchronization, wiring a conflict handler
// and change listener for it (spec §4: NamespaceSynchronizationConfig).
func (e *Engine) Configure(ns Namespace, handler ConflictHandler, listener ChangeEventListener, exceptions ExceptionListener) {
	e.syncLock.Lock()
	defer e.syncLock.Unlock()

	nsConfig := e.instance.NamespaceConfig(ns)
	nsConfig.ConflictHandler = handler
	nsConfig.ChangeListener = listener
	nsConfig.ExceptionListener = exceptions
	e.configuredNamespaces[ns] = true

	e.pool.addNamespace(context.Background(), ns, nsConfig)
}

// Start begins the listener pool. The caller is expected to drive
// DoSyncPass via a periodic runner (runner.go); Start itself performs no
// polling.
func (e *Engine) Start(ctx context.Context) {
	e.syncLock.Lock()
	defer e.syncLock.Unlock()
	if e.running {
		return
	}
	e.running = true
	e.pool.start(ctx)
}

// Stop halts the listener pool. Safe to call whether or not Start was
// ever called.
func (e *Engine) Stop() {
	e.syncLock.Lock()
	defer e.syncLock.Unlock()
	if !e.running {
		return
	}
	e.running = false
	e.pool.stop()
}

// Reinitialize replaces the local-store handle and re-runs
// initialize+recover atomically (spec §5). Used after e.g. a local
// database file handle is recycled.
func (e *Engine) Reinitialize(ctx context.Context, store LocalStore) error {
	e.syncLock.Lock()
	defer e.syncLock.Unlock()

	e.store = store
	e.undo = newUndoJournal(store)

	for ns := range e.configuredNamespaces {
		if err := e.recoverNamespace(ctx, ns); err != nil {
			return fmt.Errorf("reinitialize: recover %s: %w", ns, err)
		}
	}
	return nil
}

// WipeInMemorySettings drops every in-memory namespace/document config
// without touching persisted state, forcing the next Configure/recover
// cycle to reload from the LocalStore. Used in tests and after a
// destructive local-store reset.
func (e *Engine) WipeInMemorySettings() {
	e.syncLock.Lock()
	defer e.syncLock.Unlock()
	e.instance = NewInstanceConfig(e.instance.InstanceID)
	e.configuredNamespaces = make(map[Namespace]bool)
}

// OnNetworkStateChanged implements NetworkStateListener: a reconnect
// immediately triggers a fresh pass rather than waiting for the next
// scheduled tick, and a fresh connection means every stream should
// reopen to re-establish its filter. The actual reopen happens lazily,
// the next time the listener's run loop re-enters openStream, since the
// pool only restarts a listener's goroutine on an explicit reopen.
func (e *Engine) OnNetworkStateChanged(connected bool) {
	log.Printf("[Sync] network state changed: connected=%v", connected)
	if connected && e.onReconnect != nil {
		e.onReconnect()
	}
}

// SetReconnectHook installs the callback invoked on a network reconnect
// edge. Runner uses this to wake itself immediately instead of waiting
// out its current back-off interval.
func (e *Engine) SetReconnectHook(hook func()) {
	e.syncLock.Lock()
	defer e.syncLock.Unlock()
	e.onReconnect = hook
}

// AllStreamsOpen reports whether every configured namespace currently
// has an open change stream (original_source:
// DataSynchronizer.areAllStreamsOpen).
func (e *Engine) AllStreamsOpen() bool {
	return e.pool.allOpen()
}

// IsRunning reports whether the engine's listener pool is active.
func (e *Engine) IsRunning() bool {
	e.syncLock.Lock()
	defer e.syncLock.Unlock()
	return e.running
}

// PauseSync suspends DoSyncPass without touching the listener pool: the
// stream keeps buffering events, they are just not drained until Resume
// (original_source: DataSynchronizer.disableSyncThread, scoped down to
// "skip passes" rather than tearing down the thread).
func (e *Engine) PauseSync() {
	e.syncLock.Lock()
	defer e.syncLock.Unlock()
	e.paused = true
}

// ResumeSync reverses PauseSync.
func (e *Engine) ResumeSync() {
	e.syncLock.Lock()
	defer e.syncLock.Unlock()
	e.paused = false
}

// DoSyncPass runs one full remote-to-local then local-to-remote pass
// over every configured namespace (spec §4.5/§4.6). It is the unit of
// work the periodic runner drives; callers needing a one-shot sync (e.g.
// tests) can call it directly.
func (e *Engine) DoSyncPass(ctx context.Context) error {
	e.syncLock.Lock()
	paused := e.paused
	e.syncLock.Unlock()
	if paused {
		return nil
	}

	e.clock.tick()

	if err := e.syncRemoteToLocal(ctx); err != nil {
		return fmt.Errorf("remote-to-local pass: %w", err)
	}
	if err := e.syncLocalToRemote(ctx); err != nil {
		return fmt.Errorf("local-to-remote pass: %w", err)
	}
	return nil
}

// namespaceConfig returns (and lazily creates) the NamespaceConfig for ns.
func (e *Engine) namespaceConfig(ns Namespace) *NamespaceConfig {
	return e.instance.NamespaceConfig(ns)
}

// GetSynchronizedNamespaces returns every namespace currently configured.
func (e *Engine) GetSynchronizedNamespaces() []Namespace {
	return e.instance.Namespaces()
}

// GetSynchronizedDocumentIDs returns every id synchronized within ns.
func (e *Engine) GetSynchronizedDocumentIDs(ns Namespace) []interface{} {
	return e.namespaceConfig(ns).SynchronizedIDs()
}

// GetPausedDocumentIDs returns the ids of every paused (frozen) document
// in ns (spec §6).
func (e *Engine) GetPausedDocumentIDs(ns Namespace) []interface{} {
	nsConfig := e.namespaceConfig(ns)
	nsConfig.RLock()
	defer nsConfig.RUnlock()

	var out []interface{}
	for _, c := range nsConfig.All() {
		if c.IsPaused {
			out = append(out, c.DocumentID)
		}
	}
	return out
}

// ResumeSyncForDocument clears a document's paused flag, making it
// visible again to both stream application and the L2R pass (spec §6,
// §3 invariant 6).
func (e *Engine) ResumeSyncForDocument(ns Namespace, id interface{}) error {
	nsConfig := e.namespaceConfig(ns)
	nsConfig.Lock()
	defer nsConfig.Unlock()

	cfg := nsConfig.Get(id)
	if cfg == nil {
		return ErrNotSynchronized
	}
	cfg.IsPaused = false
	return nil
}

// emitError reports a per-document error to the namespace's exception
// listener and pauses the document (spec §7: "per-document errors are
// reported to the user's exception listener, the document is paused").
// Caller must hold nsConfig's write lock.
func (e *Engine) emitError(nsConfig *NamespaceConfig, docConfig *DocumentConfig, err error) {
	docConfig.IsPaused = true
	log.Printf("[Error] ns=%s id=%v paused: %v", nsConfig.Namespace, docConfig.DocumentID, err)
	if nsConfig.ExceptionListener != nil {
		nsConfig.ExceptionListener.OnError(nsConfig.Namespace, docConfig.DocumentID, err)
	}
}

// emitEvent notifies the namespace's change listener of a committed or
// locally-applied event.
func (e *Engine) emitEvent(nsConfig *NamespaceConfig, id interface{}, evt *ChangeEvent) {
	if nsConfig.ChangeListener != nil {
		nsConfig.ChangeListener.OnEvent(nsConfig.Namespace, id, evt)
	}
}

// desync removes a document's config entirely, ending synchronization
// for it (local data, if any, is left in place).
func (e *Engine) desync(nsConfig *NamespaceConfig, id interface{}) {
	nsConfig.Remove(id)
}

func (e *Engine) localCollection(ns Namespace) LocalCollection {
	return e.store.Collection(ns.Database, ns.Collection)
}

func (e *Engine) configCollection(kind string) LocalCollection {
	return e.store.Collection(fmt.Sprintf("sync_config%s", e.instanceKey), kind)
}
