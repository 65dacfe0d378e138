package confnode

import (
	"testing"
	"time"

	"github.com/dvhost/dvhost/types"
)

func TestUpdaterAppliesThroughReadOnlyOverride(t *testing.T) {
	tr := NewTree(WithTickInterval(10 * time.Millisecond))
	n := tr.Root().AddChild("mainloop").AddChild("cam")
	n.CreateAttr("droppedEvents", types.I64Value(0), types.I64Range(0, 1<<62), types.FlagReadOnly, "")

	counter := int64(0)
	tr.AddUpdater(n, "droppedEvents", types.TypeI64, func(node types.Node, key string, ty types.Type, userdata interface{}) (types.Value, bool) {
		counter++
		return types.I64Value(counter), true
	}, nil)

	tr.Start()
	defer tr.Stop()
	time.Sleep(60 * time.Millisecond)

	v, err := n.GetAttr("droppedEvents", types.TypeI64)
	if err != nil {
		t.Fatalf("GetAttr: %v", err)
	}
	if v.I64() <= 0 {
		t.Fatalf("expected updater to have written a positive value, got %d", v.I64())
	}
}

func TestUpdaterSkippedAfterNodeRemoved(t *testing.T) {
	tr := NewTree()
	n := tr.Root().AddChild("mainloop").AddChild("cam")
	n.CreateAttr("x", types.I32Value(0), types.I32Range(0, 100), types.FlagReadOnly, "")

	calls := 0
	tr.AddUpdater(n, "x", types.TypeI32, func(node types.Node, key string, ty types.Type, userdata interface{}) (types.Value, bool) {
		calls++
		return types.I32Value(1), true
	}, nil)

	n.RemoveNode()
	tr.runUpdaters()
	if calls != 0 {
		t.Fatalf("updater should be skipped once its node is gone, got %d calls", calls)
	}
}

func TestGlobalListenerSeesEveryEvent(t *testing.T) {
	tr := NewTree()
	var nodeEvents, attrEvents int
	tr.SetGlobalNodeListener(func(event types.NodeEvent, path, childName string) { nodeEvents++ })
	tr.SetGlobalAttrListener(func(event types.AttrEvent, path, key string, t types.Type, value types.Value) { attrEvents++ })

	n := tr.Root().AddChild("a")
	n.CreateAttr("k", types.I32Value(1), types.I32Range(0, 10), types.FlagNormal, "")
	_ = n.PutAttr("k", types.TypeI32, types.I32Value(2), false)

	if nodeEvents == 0 {
		t.Fatal("global node listener did not observe ChildAdded")
	}
	if attrEvents != 2 { // AttrAdded + AttrModified
		t.Fatalf("global attr listener saw %d events, want 2", attrEvents)
	}
}
