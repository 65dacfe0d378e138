// Package confnode implements the hierarchical configuration tree: typed,
// range-bounded attributes held by named nodes, with change listeners, path
// addressing, and XML import/export. It is the concrete implementation of
// the types.Node / types.Tree interfaces.
package confnode

import (
	"fmt"
	"sync"

	"github.com/dvhost/dvhost/types"
)

// node is the concrete types.Node implementation. Every node carries its own
// lock; trees are locked leaf-outward, and iteration helpers snapshot keys
// under that lock before operating lock-free on the copy.
type node struct {
	mu sync.RWMutex

	name   string
	parent *node
	owner  *Tree

	children   map[string]*node
	childOrder []string

	attrs     map[string]*types.Attribute
	attrOrder []string

	attrListeners      map[interface{}]types.AttrListener
	attrListenerOrder  []interface{}
	nodeListeners      map[interface{}]types.NodeListener
	nodeListenerOrder  []interface{}
}

func newNode(name string, parent *node, owner *Tree) *node {
	return &node{
		name:     name,
		parent:   parent,
		owner:    owner,
		children: make(map[string]*node),
		attrs:    make(map[string]*types.Attribute),
	}
}

func (n *node) Name() string { return n.name }

func (n *node) Path() string {
	if n.parent == nil {
		return "/"
	}
	return n.parent.Path() + n.name + "/"
}

func (n *node) Parent() types.Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

// CreateAttr creates or reconfigures an attribute. Programming errors (type
// mismatch against an existing attribute, a default outside the declared
// range, or a NotifyOnly flag on a non-bool-false attribute) are not
// recoverable by the caller and panic.
func (n *node) CreateAttr(key string, def types.Value, r types.Range, flags types.Flags, description string) {
	if !types.ValidKey(key) {
		panic(fmt.Sprintf("confnode: invalid attribute key %q", key))
	}
	if !def.InRange(r) {
		panic(fmt.Sprintf("confnode: default for %q is out of range", key))
	}
	if !types.ValidateNotifyOnly(flags, def.Type(), def) {
		panic(fmt.Sprintf("confnode: NotifyOnly flag on %q requires bool default=false", key))
	}

	n.mu.Lock()
	existing, ok := n.attrs[key]
	var event types.AttrEvent
	var attrCopy types.Attribute
	if ok {
		if existing.Value.Type() != def.Type() {
			n.mu.Unlock()
			panic(fmt.Sprintf("confnode: attribute %q re-created with different type", key))
		}
		existing.Range = r
		existing.Flags = flags
		existing.Description = description
		if !existing.Value.InRange(r) {
			existing.Value = def
		}
		event = types.AttrModifiedCreate
		attrCopy = *existing
	} else {
		a := &types.Attribute{Key: key, Value: def, Range: r, Flags: flags, Description: description}
		n.attrs[key] = a
		n.attrOrder = append(n.attrOrder, key)
		event = types.AttrAdded
		attrCopy = *a
	}
	n.fireAttrEventLocked(event, key, attrCopy.Value.Type(), attrCopy.Value)
	n.mu.Unlock()
	n.fireGlobalAttrEvent(event, key, attrCopy.Value.Type(), attrCopy.Value)
}

func (n *node) RemoveAttr(key string, t types.Type) {
	n.mu.Lock()
	a, ok := n.attrs[key]
	if !ok {
		n.mu.Unlock()
		return
	}
	delete(n.attrs, key)
	n.attrOrder = removeString(n.attrOrder, key)
	val := a.Value
	typ := t
	if typ == types.TypeUnknown {
		typ = val.Type()
	}
	n.fireAttrEventLocked(types.AttrRemoved, key, typ, val)
	n.mu.Unlock()
	n.fireGlobalAttrEvent(types.AttrRemoved, key, typ, val)
}

func (n *node) GetAttr(key string, t types.Type) (types.Value, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	a, ok := n.attrs[key]
	if !ok {
		return types.Value{}, fmt.Errorf("%w: attribute %q at %s", types.ErrNotFound, key, n.pathLocked())
	}
	if a.Value.Type() != t {
		return types.Value{}, fmt.Errorf("%w: attribute %q", types.ErrTypeMismatch, key)
	}
	return a.Value, nil
}

func (n *node) Attr(key string, t types.Type) (types.Attribute, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	a, ok := n.attrs[key]
	if !ok {
		return types.Attribute{}, fmt.Errorf("%w: attribute %q", types.ErrNotFound, key)
	}
	if t != types.TypeUnknown && a.Value.Type() != t {
		return types.Attribute{}, fmt.Errorf("%w: attribute %q", types.ErrTypeMismatch, key)
	}
	return *a, nil
}

func (n *node) AttrExists(key string, t types.Type) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	a, ok := n.attrs[key]
	if !ok {
		return false
	}
	return t == types.TypeUnknown || a.Value.Type() == t
}

func (n *node) AttrKeys() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]string, len(n.attrOrder))
	copy(out, n.attrOrder)
	return out
}

// PutAttr writes a new value, including NotifyOnly "button" semantics: the
// value is never stored, only the change-not-change rule for ordinary
// attributes is bypassed and listeners always fire.
func (n *node) PutAttr(key string, t types.Type, v types.Value, readOnlyOverride bool) error {
	n.mu.Lock()
	a, ok := n.attrs[key]
	if !ok {
		n.mu.Unlock()
		return fmt.Errorf("%w: attribute %q at %s", types.ErrNotFound, key, n.pathLocked())
	}
	if a.Value.Type() != t {
		n.mu.Unlock()
		return fmt.Errorf("%w: attribute %q", types.ErrTypeMismatch, key)
	}
	if a.Flags.NotifyOnly() {
		n.fireAttrEventLocked(types.AttrModified, key, t, v)
		n.mu.Unlock()
		n.fireGlobalAttrEvent(types.AttrModified, key, t, v)
		return nil
	}
	if a.Flags.ReadOnly() && !readOnlyOverride {
		n.mu.Unlock()
		return fmt.Errorf("%w: attribute %q", types.ErrReadOnly, key)
	}
	if !v.InRange(a.Range) {
		n.mu.Unlock()
		return fmt.Errorf("%w: attribute %q", types.ErrOutOfRange, key)
	}
	if a.Value.Equal(v) {
		n.mu.Unlock()
		return nil
	}
	a.Value = v
	n.fireAttrEventLocked(types.AttrModified, key, t, v)
	n.mu.Unlock()
	n.fireGlobalAttrEvent(types.AttrModified, key, t, v)
	return nil
}

func (n *node) AddChild(name string) types.Node {
	if !types.ValidKey(name) {
		panic(fmt.Sprintf("confnode: invalid node name %q", name))
	}
	n.mu.Lock()
	if c, ok := n.children[name]; ok {
		n.mu.Unlock()
		return c
	}
	c := newNode(name, n, n.owner)
	n.children[name] = c
	n.childOrder = append(n.childOrder, name)
	n.mu.Unlock()
	n.fireNodeEventLocalOnly(types.NodeAdded, name)
	n.fireGlobalNodeEvent(types.NodeAdded, name)
	return c
}

func (n *node) GetChild(name string) (types.Node, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	c, ok := n.children[name]
	if !ok {
		return nil, fmt.Errorf("%w: child %q of %s", types.ErrNotFound, name, n.pathLocked())
	}
	return c, nil
}

func (n *node) ChildNames() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]string, len(n.childOrder))
	copy(out, n.childOrder)
	return out
}

// RemoveNode cascades depth-first and is a no-op on the root.
func (n *node) RemoveNode() {
	if n.parent == nil {
		return
	}
	for _, cn := range n.ChildNames() {
		if c, err := n.GetChild(cn); err == nil {
			c.(*node).RemoveNode()
		}
	}
	for _, k := range n.AttrKeys() {
		n.RemoveAttr(k, types.TypeUnknown)
	}
	parent := n.parent
	parent.mu.Lock()
	delete(parent.children, n.name)
	parent.childOrder = removeString(parent.childOrder, n.name)
	parent.mu.Unlock()
	if n.owner != nil {
		n.owner.pruneUpdatersUnder(n)
	}
	parent.fireNodeEventLocalOnly(types.NodeRemoved, n.name)
	parent.fireGlobalNodeEvent(types.NodeRemoved, n.name)
}

func (n *node) AddAttrListener(token interface{}, fn types.AttrListener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.attrListeners == nil {
		n.attrListeners = make(map[interface{}]types.AttrListener)
	}
	if _, exists := n.attrListeners[token]; !exists {
		n.attrListenerOrder = append(n.attrListenerOrder, token)
	}
	n.attrListeners[token] = fn
}

func (n *node) RemoveAttrListener(token interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.attrListeners, token)
	n.attrListenerOrder = removeToken(n.attrListenerOrder, token)
}

func (n *node) AddNodeListener(token interface{}, fn types.NodeListener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.nodeListeners == nil {
		n.nodeListeners = make(map[interface{}]types.NodeListener)
	}
	if _, exists := n.nodeListeners[token]; !exists {
		n.nodeListenerOrder = append(n.nodeListenerOrder, token)
	}
	n.nodeListeners[token] = fn
}

func (n *node) RemoveNodeListener(token interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.nodeListeners, token)
	n.nodeListenerOrder = removeToken(n.nodeListenerOrder, token)
}

// fireAttrEventLocked must be called with n.mu held; it fires this node's
// own listeners synchronously before the global listener.
func (n *node) fireAttrEventLocked(event types.AttrEvent, key string, t types.Type, v types.Value) {
	path := n.pathLocked()
	for _, tok := range n.attrListenerOrder {
		if fn, ok := n.attrListeners[tok]; ok {
			fn(event, path, key, t, v)
		}
	}
}

func (n *node) fireGlobalAttrEvent(event types.AttrEvent, key string, t types.Type, v types.Value) {
	if n.owner == nil {
		return
	}
	if fn := n.owner.loadGlobalAttrListener(); fn != nil {
		fn(event, n.Path(), key, t, v)
	}
}

// fireNodeEventLocalOnly fires n's own node listeners (i.e. the parent whose
// child set changed), unlocked since AddChild/RemoveNode already released
// n.mu before calling this.
func (n *node) fireNodeEventLocalOnly(event types.NodeEvent, childName string) {
	n.mu.RLock()
	order := append([]interface{}(nil), n.nodeListenerOrder...)
	listeners := n.nodeListeners
	n.mu.RUnlock()
	path := n.Path()
	for _, tok := range order {
		if fn, ok := listeners[tok]; ok {
			fn(event, path, childName)
		}
	}
}

func (n *node) fireGlobalNodeEvent(event types.NodeEvent, childName string) {
	if n.owner == nil {
		return
	}
	if fn := n.owner.loadGlobalNodeListener(); fn != nil {
		fn(event, n.Path(), childName)
	}
}

// pathLocked computes Path() without re-acquiring n.mu; safe to call while
// the caller already holds it, since Path() only reads parent pointers and
// names, which are immutable after construction.
func (n *node) pathLocked() string { return n.Path() }

func removeString(s []string, v string) []string {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

func removeToken(s []interface{}, v interface{}) []interface{} {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
