package driver

import (
	"context"
	"testing"

	"github.com/dvhost/dvhost/confnode"
	"github.com/dvhost/dvhost/instance"
	"github.com/dvhost/dvhost/types"
)

func sourceInfo(events []types.PolarityEvent) types.ModuleInfo {
	emitted := false
	return types.ModuleInfo{
		Name: "Src",
		Type: types.ModuleInput,
		Functions: types.ModuleFuncs{
			Init: func(ctx context.Context, cfg types.Node) (interface{}, error) { return nil, nil },
			Run: func(state interface{}, in *types.Container) (*types.Container, error) {
				if emitted {
					return nil, nil
				}
				emitted = true
				return types.NewContainer(&types.PolarityPacket{Events: events}), nil
			},
			Exit: func(state interface{}) {},
		},
	}
}

func sinkInfo(received *[]types.PolarityEvent) types.ModuleInfo {
	return types.ModuleInfo{
		Name: "Snk",
		Type: types.ModuleOutput,
		Functions: types.ModuleFuncs{
			Init: func(ctx context.Context, cfg types.Node) (interface{}, error) { return nil, nil },
			Run: func(state interface{}, in *types.Container) (*types.Container, error) {
				if in == nil {
					return nil, nil
				}
				pkt, ok := in.Get(types.PacketPolarity)
				if ok {
					*received = append(*received, pkt.(*types.PolarityPacket).Events...)
				}
				return nil, nil
			},
			Exit: func(state interface{}) {},
		},
	}
}

func TestTickWiresProducerToConsumer(t *testing.T) {
	tr := confnode.NewTree()
	root := tr.Root().AddChild("mainloop")

	want := []types.PolarityEvent{{Ts: 1, X: 2, Y: 3, Polarity: true}}
	src := instance.New(root, "src", 1, sourceInfo(want), nil)
	var received []types.PolarityEvent
	snk := instance.New(root, "snk", 2, sinkInfo(&received), nil)

	d := New(nil)
	d.AddModule("src", src, types.ModuleInput)
	d.AddModule("snk", snk, types.ModuleOutput)
	if err := d.Connect("src", "snk"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	_ = src.Node().PutAttr("running", types.TypeBool, types.BoolValue(true), false)
	_ = snk.Node().PutAttr("running", types.TypeBool, types.BoolValue(true), false)

	if err := d.Tick(); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(received) != 1 || received[0].X != 2 {
		t.Fatalf("sink received %v, want one event with X=2", received)
	}
}

func TestRemoveModuleBlockedWhileRunning(t *testing.T) {
	tr := confnode.NewTree()
	root := tr.Root().AddChild("mainloop")
	inst := instance.New(root, "m", 1, sourceInfo(nil), nil)

	d := New(nil)
	d.AddModule("m", inst, types.ModuleInput)
	_ = inst.Node().PutAttr("running", types.TypeBool, types.BoolValue(true), false)
	_ = d.Tick() // drives Init, transitions to Running

	if err := d.RemoveModule("m"); err == nil {
		t.Fatal("expected RemoveModule to be refused while running")
	}

	_ = inst.Node().PutAttr("running", types.TypeBool, types.BoolValue(false), false)
	_ = d.Tick() // drives Exit, transitions to Stopped

	if err := d.RemoveModule("m"); err != nil {
		t.Fatalf("RemoveModule after stop: %v", err)
	}
}

func TestTopoSortDetectsCycle(t *testing.T) {
	_, err := topoSort([]string{"a", "b"}, map[string][]string{"a": {"b"}, "b": {"a"}})
	if err == nil {
		t.Fatal("expected cycle detection error")
	}
}
