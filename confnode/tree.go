package confnode

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dvhost/dvhost/types"
)

// DefaultTickInterval is the fixed cadence the updater loop runs at when no
// Option overrides it.
const DefaultTickInterval = time.Second

// Option configures a Tree at construction time.
type Option func(*Tree)

// WithLogger installs a logger used for tick/updater diagnostics.
func WithLogger(l types.Logger) Option {
	return func(t *Tree) { t.logger = l }
}

// WithTickInterval overrides the updater tick cadence; intended for tests
// that cannot wait a full second per tick.
func WithTickInterval(d time.Duration) Option {
	return func(t *Tree) { t.tickInterval = d }
}

type updaterEntry struct {
	id       uint64
	node     *node
	key      string
	typ      types.Type
	fn       types.UpdaterFunc
	userdata interface{}
}

// Tree is the concrete types.Tree implementation: a root node plus the
// process-wide attribute-updater list and global listeners. Construct one
// with NewTree and call Start/Stop explicitly — there is no implicit
// initialization on first access.
type Tree struct {
	root *node

	globalAttrListener atomic.Pointer[types.AttrListener]
	globalNodeListener atomic.Pointer[types.NodeListener]

	updatersMu    sync.Mutex
	updaters      []*updaterEntry
	nextUpdaterID uint64

	tickInterval time.Duration
	logger       types.Logger

	stopCh  chan struct{}
	doneCh  chan struct{}
	running int32
}

// NewTree constructs an empty tree with a root node. Call Start to begin the
// updater tick loop.
func NewTree(opts ...Option) *Tree {
	t := &Tree{tickInterval: DefaultTickInterval, logger: types.NopLogger()}
	for _, opt := range opts {
		opt(t)
	}
	t.root = newNode("", nil, t)
	return t
}

func (t *Tree) Root() types.Node { return t.root }

func (t *Tree) GetNode(path string) (types.Node, error) {
	return t.Resolve(t.root, path, false)
}

func (t *Tree) Resolve(start types.Node, path string, writeIntent bool) (types.Node, error) {
	return resolvePath(start, path, writeIntent)
}

func (t *Tree) SetGlobalAttrListener(fn types.AttrListener) {
	if fn == nil {
		t.globalAttrListener.Store(nil)
		return
	}
	t.globalAttrListener.Store(&fn)
}

func (t *Tree) SetGlobalNodeListener(fn types.NodeListener) {
	if fn == nil {
		t.globalNodeListener.Store(nil)
		return
	}
	t.globalNodeListener.Store(&fn)
}

func (t *Tree) loadGlobalAttrListener() types.AttrListener {
	if p := t.globalAttrListener.Load(); p != nil {
		return *p
	}
	return nil
}

func (t *Tree) loadGlobalNodeListener() types.NodeListener {
	if p := t.globalNodeListener.Load(); p != nil {
		return *p
	}
	return nil
}

// AddUpdater registers fn to be invoked on every tick for (node, key, t). It
// returns an opaque token for RemoveUpdater.
func (t *Tree) AddUpdater(n types.Node, key string, typ types.Type, fn types.UpdaterFunc, userdata interface{}) interface{} {
	cn, ok := n.(*node)
	if !ok {
		panic("confnode: AddUpdater called with a foreign Node implementation")
	}
	t.updatersMu.Lock()
	defer t.updatersMu.Unlock()
	t.nextUpdaterID++
	e := &updaterEntry{id: t.nextUpdaterID, node: cn, key: key, typ: typ, fn: fn, userdata: userdata}
	t.updaters = append(t.updaters, e)
	return e.id
}

func (t *Tree) RemoveUpdater(token interface{}) {
	id, ok := token.(uint64)
	if !ok {
		return
	}
	t.updatersMu.Lock()
	defer t.updatersMu.Unlock()
	for i, e := range t.updaters {
		if e.id == id {
			t.updaters = append(t.updaters[:i], t.updaters[i+1:]...)
			return
		}
	}
}

// pruneUpdatersUnder removes every updater entry bound to n, called as n is
// unlinked from the tree so no dangling updater registration survives it.
func (t *Tree) pruneUpdatersUnder(n *node) {
	t.updatersMu.Lock()
	defer t.updatersMu.Unlock()
	kept := t.updaters[:0]
	for _, e := range t.updaters {
		if e.node != n {
			kept = append(kept, e)
		}
	}
	t.updaters = kept
}

// Start begins the updater tick loop on a dedicated goroutine. Calling Start
// twice without an intervening Stop is a no-op.
func (t *Tree) Start() {
	if !atomic.CompareAndSwapInt32(&t.running, 0, 1) {
		return
	}
	t.stopCh = make(chan struct{})
	t.doneCh = make(chan struct{})
	go t.tickLoop()
}

// Stop ends the tick loop and waits for the goroutine to exit.
func (t *Tree) Stop() {
	if !atomic.CompareAndSwapInt32(&t.running, 1, 0) {
		return
	}
	close(t.stopCh)
	<-t.doneCh
}

func (t *Tree) tickLoop() {
	defer close(t.doneCh)
	ticker := time.NewTicker(t.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.runUpdaters()
		}
	}
}

// runUpdaters invokes a snapshot of the updater list. Writes land through
// the read-only override path; the updater lock is never held while a
// node lock is held, and vice versa.
func (t *Tree) runUpdaters() {
	t.updatersMu.Lock()
	snapshot := append([]*updaterEntry(nil), t.updaters...)
	t.updatersMu.Unlock()

	for _, e := range snapshot {
		if !e.node.AttrExists(e.key, e.typ) {
			continue
		}
		v, ok := e.fn(e.node, e.key, e.typ, e.userdata)
		if !ok {
			continue
		}
		if err := e.node.PutAttr(e.key, e.typ, v, true); err != nil {
			t.logger.Warnf("updater for %s%s failed: %v", e.node.Path(), e.key, err)
		}
	}
}
