package types

import "io"

// Node is a named container of attributes and child nodes. The concrete
// implementation lives in package confnode; this interface lets the wire,
// server, and module-instance layers depend only on the contract.
type Node interface {
	// Name is the node's own name; the root's name is "".
	Name() string
	// Path is parent.Path() + Name() + "/"; the root's path is "/".
	Path() string
	// Parent returns the parent node, or nil for the root.
	Parent() Node

	// CreateAttr creates or updates an attribute. A pre-existing same-type
	// attribute has its range/flags/description updated in place, with the
	// stored value kept iff still in range.
	// Calling with a different type for an existing key, a flag-rule
	// violation, or a default outside range is a fatal programming error
	// (panics).
	CreateAttr(key string, def Value, r Range, flags Flags, description string)
	// RemoveAttr removes the attribute if present; idempotent.
	RemoveAttr(key string, t Type)
	// GetAttr returns the current value of key, which must have type t.
	GetAttr(key string, t Type) (Value, error)
	// PutAttr writes a new value, enforcing range/read-only unless
	// readOnlyOverride is set (the privileged updater path).
	PutAttr(key string, t Type, v Value, readOnlyOverride bool) error
	// Attr returns the full Attribute record for key.
	Attr(key string, t Type) (Attribute, error)
	// AttrExists reports whether key exists with the given type.
	AttrExists(key string, t Type) bool
	// AttrKeys returns a snapshot of attribute keys in insertion order.
	AttrKeys() []string

	// AddChild returns the existing or newly created child named name.
	AddChild(name string) Node
	// GetChild returns the child named name, or ErrNotFound.
	GetChild(name string) (Node, error)
	// ChildNames returns a snapshot of child names in insertion order.
	ChildNames() []string
	// RemoveNode recursively removes this node's attributes and children,
	// then unlinks it from its parent. The caller guarantees no concurrent
	// use of this node or its descendants.
	RemoveNode()

	// AddAttrListener registers fn under token; token is returned
	// unmodified by nothing but is what RemoveAttrListener must be called
	// with to undo the registration.
	AddAttrListener(token interface{}, fn AttrListener)
	RemoveAttrListener(token interface{})
	AddNodeListener(token interface{}, fn NodeListener)
	RemoveNodeListener(token interface{})

	// ExportXML writes this node (and, if recursive, its descendants) as
	// an <sshs> envelope. NoExport attributes are skipped.
	ExportXML(w io.Writer, recursive bool) error
	// ImportXML reads an <sshs> envelope into this node. strict requires
	// the root element name to match; ReadOnly/OutOfRange attributes are
	// silently refused rather than erroring the whole import.
	ImportXML(r io.Reader, recursive bool, strict bool) error
}
