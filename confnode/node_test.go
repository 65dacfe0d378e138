package confnode

import (
	"testing"

	"github.com/dvhost/dvhost/types"
)

func TestCreateAttrAndGetPutAttr(t *testing.T) {
	tr := NewTree()
	n := tr.Root().AddChild("mainloop").AddChild("cam")

	n.CreateAttr("logLevel", types.I32Value(4), types.I32Range(0, 10), types.FlagNormal, "log level")

	v, err := n.GetAttr("logLevel", types.TypeI32)
	if err != nil || v.I32() != 4 {
		t.Fatalf("GetAttr = %v, %v, want 4, nil", v, err)
	}

	if err := n.PutAttr("logLevel", types.TypeI32, types.I32Value(6), false); err != nil {
		t.Fatalf("PutAttr: %v", err)
	}
	v, _ = n.GetAttr("logLevel", types.TypeI32)
	if v.I32() != 6 {
		t.Fatalf("after Put, got %d want 6", v.I32())
	}
}

func TestPutAttrOutOfRange(t *testing.T) {
	tr := NewTree()
	n := tr.Root().AddChild("mainloop").AddChild("f")
	n.CreateAttr("thresh", types.I32Value(10), types.I32Range(0, 100), types.FlagNormal, "")

	if err := n.PutAttr("thresh", types.TypeI32, types.I32Value(250), false); err == nil {
		t.Fatal("expected OutOfRange error")
	}
	v, _ := n.GetAttr("thresh", types.TypeI32)
	if v.I32() != 10 {
		t.Fatalf("value should be unchanged, got %d", v.I32())
	}
}

func TestPutAttrReadOnly(t *testing.T) {
	tr := NewTree()
	n := tr.Root().AddChild("mainloop").AddChild("cam")
	n.CreateAttr("moduleId", types.I32Value(1), types.I32Range(0, 1<<15-1), types.FlagReadOnly, "")

	if err := n.PutAttr("moduleId", types.TypeI32, types.I32Value(2), false); err == nil {
		t.Fatal("expected ReadOnly error")
	}
	if err := n.PutAttr("moduleId", types.TypeI32, types.I32Value(2), true); err != nil {
		t.Fatalf("override write should succeed: %v", err)
	}
}

func TestNotifyOnlyButtonSemantics(t *testing.T) {
	tr := NewTree()
	n := tr.Root().AddChild("mainloop")
	n.CreateAttr("doReset", types.BoolValue(false), types.BoolRange(), types.FlagNotifyOnly, "")

	fired := 0
	n.AddAttrListener("tok", func(event types.AttrEvent, path, key string, t types.Type, value types.Value) {
		fired++
	})
	if err := n.PutAttr("doReset", types.TypeBool, types.BoolValue(true), false); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, _ := n.GetAttr("doReset", types.TypeBool)
	if v.Bool() {
		t.Fatal("NotifyOnly attribute must never store the written value")
	}
	if fired != 1 {
		t.Fatalf("listener fired %d times, want 1", fired)
	}
}

func TestListenerFiresExactlyOnceOnChange(t *testing.T) {
	tr := NewTree()
	n := tr.Root().AddChild("a")
	n.CreateAttr("k", types.I32Value(1), types.I32Range(0, 10), types.FlagNormal, "")

	fired := 0
	n.AddAttrListener("tok", func(event types.AttrEvent, path, key string, t types.Type, value types.Value) {
		if event == types.AttrModified {
			fired++
		}
	})
	_ = n.PutAttr("k", types.TypeI32, types.I32Value(1), false) // no change, no event
	_ = n.PutAttr("k", types.TypeI32, types.I32Value(2), false) // change, one event
	if fired != 1 {
		t.Fatalf("fired %d times, want 1", fired)
	}
}

func TestCreateAttrIdempotentButFiresModifiedCreate(t *testing.T) {
	tr := NewTree()
	n := tr.Root().AddChild("a")
	n.CreateAttr("k", types.I32Value(1), types.I32Range(0, 10), types.FlagNormal, "d")

	events := 0
	n.AddAttrListener("tok", func(event types.AttrEvent, path, key string, t types.Type, value types.Value) {
		events++
	})
	n.CreateAttr("k", types.I32Value(1), types.I32Range(0, 10), types.FlagNormal, "d")
	if events != 1 {
		t.Fatalf("expected AttrModifiedCreate to fire once, got %d events", events)
	}
	v, _ := n.GetAttr("k", types.TypeI32)
	if v.I32() != 1 {
		t.Fatalf("value should remain 1, got %d", v.I32())
	}
}

func TestCreateAttrTypeMismatchPanics(t *testing.T) {
	tr := NewTree()
	n := tr.Root().AddChild("a")
	n.CreateAttr("k", types.I32Value(1), types.I32Range(0, 10), types.FlagNormal, "")

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on type-mismatched re-creation")
		}
	}()
	n.CreateAttr("k", types.StringValue("x"), types.StringRange(0, 10), types.FlagNormal, "")
}

func TestRemoveNodeCascades(t *testing.T) {
	tr := NewTree()
	root := tr.Root()
	parent := root.AddChild("mainloop")
	child := parent.AddChild("cam")
	child.CreateAttr("running", types.BoolValue(false), types.BoolRange(), types.FlagNormal, "")

	removed := 0
	parent.AddNodeListener("tok", func(event types.NodeEvent, path, childName string) {
		if event == types.NodeRemoved {
			removed++
		}
	})

	child.RemoveNode()
	if removed != 1 {
		t.Fatalf("expected one ChildRemoved event, got %d", removed)
	}
	if _, err := parent.GetChild("cam"); err == nil {
		t.Fatal("child should be gone")
	}
}

func TestRemoveRootIsNoOp(t *testing.T) {
	tr := NewTree()
	root := tr.Root()
	root.RemoveNode()
	if root.Path() != "/" {
		t.Fatal("root should be unaffected by RemoveNode")
	}
}

func TestPathInvariant(t *testing.T) {
	tr := NewTree()
	n, err := tr.GetNode("/mainloop/cam/") // read traversal of missing node fails
	if err == nil {
		t.Fatalf("expected NotFound, got node %v", n)
	}
	created, err := tr.Resolve(tr.Root(), "/mainloop/cam/", true)
	if err != nil {
		t.Fatalf("write-intent resolve: %v", err)
	}
	if created.Path() != "/mainloop/cam/" {
		t.Fatalf("path = %q, want /mainloop/cam/", created.Path())
	}
}
