package instance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvhost/dvhost/confnode"
	"github.com/dvhost/dvhost/types"
)

func echoModule() types.ModuleInfo {
	return types.ModuleInfo{
		Name: "Echo",
		Functions: types.ModuleFuncs{
			Init: func(ctx context.Context, cfg types.Node) (interface{}, error) { return 0, nil },
			Run: func(state interface{}, in *types.Container) (*types.Container, error) {
				return in, nil
			},
			Exit: func(state interface{}) {},
		},
	}
}

func failingModule(failTimes int) types.ModuleInfo {
	attempts := 0
	return types.ModuleInfo{
		Name: "Failing",
		Functions: types.ModuleFuncs{
			Init: func(ctx context.Context, cfg types.Node) (interface{}, error) {
				attempts++
				if attempts <= failTimes {
					return nil, errors.New("boom")
				}
				return attempts, nil
			},
			Exit: func(state interface{}) {},
		},
	}
}

func TestStartStopLifecycle(t *testing.T) {
	tr := confnode.NewTree()
	parent := tr.Root().AddChild("mainloop")
	inst := New(parent, "echo", 1, echoModule(), nil)

	if inst.State() != StateStopped {
		t.Fatalf("initial state = %v, want Stopped", inst.State())
	}

	_ = inst.Node().PutAttr("running", types.TypeBool, types.BoolValue(true), false)
	out, err := inst.Tick(types.NewContainer(&types.PolarityPacket{}))
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if inst.State() != StateRunning {
		t.Fatalf("state after running=true = %v, want Running", inst.State())
	}
	if out == nil {
		t.Fatal("expected echoed container")
	}
	v, _ := inst.Node().GetAttr("isRunning", types.TypeBool)
	if !v.Bool() {
		t.Fatal("isRunning should be true once Init succeeds")
	}

	_ = inst.Node().PutAttr("running", types.TypeBool, types.BoolValue(false), false)
	if _, err := inst.Tick(nil); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if inst.State() != StateStopped {
		t.Fatalf("state after running=false = %v, want Stopped", inst.State())
	}
}

func TestInitFailureWithoutAutoRestartStaysStopped(t *testing.T) {
	tr := confnode.NewTree()
	parent := tr.Root().AddChild("mainloop")
	inst := New(parent, "f", 1, failingModule(100), nil)

	_ = inst.Node().PutAttr("running", types.TypeBool, types.BoolValue(true), false)
	_, _ = inst.Tick(nil)
	if inst.State() != StateStopped {
		t.Fatalf("state = %v, want Stopped after failed init", inst.State())
	}
	_, _ = inst.Tick(nil) // without autoRestart, should not retry
	if inst.State() != StateStopped {
		t.Fatal("should remain Stopped without autoRestart")
	}
}

func TestAutoRestartEventuallySucceeds(t *testing.T) {
	tr := confnode.NewTree()
	parent := tr.Root().AddChild("mainloop")
	inst := New(parent, "f", 1, failingModule(1), nil)

	_ = inst.Node().PutAttr("autoRestart", types.TypeBool, types.BoolValue(true), false)
	_ = inst.Node().PutAttr("running", types.TypeBool, types.BoolValue(true), false)

	_, _ = inst.Tick(nil) // fails once, schedules retry
	if inst.State() != StateStopped {
		t.Fatal("expected Stopped after first failed attempt")
	}

	inst.mu.Lock()
	inst.nextRetry = time.Now().Add(-time.Millisecond) // force the backoff window to have elapsed
	inst.mu.Unlock()

	_, _ = inst.Tick(nil)
	if inst.State() != StateRunning {
		t.Fatalf("state = %v, want Running after retry succeeds", inst.State())
	}
}

func TestConfigDirtyAppliedBetweenTicks(t *testing.T) {
	tr := confnode.NewTree()
	parent := tr.Root().AddChild("mainloop")
	applied := 0
	info := types.ModuleInfo{
		Name: "Cfg",
		Functions: types.ModuleFuncs{
			ConfigInit: func(cfg types.Node) {
				cfg.CreateAttr("threshold", types.I32Value(1), types.I32Range(0, 100), types.FlagNormal, "")
			},
			Init:   func(ctx context.Context, cfg types.Node) (interface{}, error) { return nil, nil },
			Run:    func(state interface{}, in *types.Container) (*types.Container, error) { return nil, nil },
			Config: func(state interface{}, cfg types.Node) { applied++ },
			Exit:   func(state interface{}) {},
		},
	}
	inst := New(parent, "cfg", 1, info, nil)
	_ = inst.Node().PutAttr("running", types.TypeBool, types.BoolValue(true), false)
	_, _ = inst.Tick(nil)

	_ = inst.Node().PutAttr("threshold", types.TypeI32, types.I32Value(5), false)
	_, _ = inst.Tick(nil)
	if applied != 1 {
		t.Fatalf("Config called %d times, want 1", applied)
	}
}
