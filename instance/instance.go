// Package instance implements one running module's lifecycle: the
// per-instance config subtree, the Stopped/Initializing/Running/Stopping
// state machine driven by the "running" attribute, and the autoRestart
// backoff policy for a module whose Init keeps failing.
package instance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvhost/dvhost/types"
)

// Instance binds a ModuleInfo declaration to a config subtree and runs its
// lifecycle functions from the driver's single tick goroutine, in response
// to attribute changes observed on that subtree. Start and stop requests
// arrive asynchronously (from a config-server connection's goroutine, or a
// remote push) but are only ever acted on from Tick, so Init/Run/Exit are
// never called concurrently with each other for the same instance.
type Instance struct {
	mu          sync.Mutex
	name        string
	node        types.Node
	info        types.ModuleInfo
	logger      types.Logger
	state       State
	moduleState interface{}
	configDirty bool
	backoff     *backoffPolicy
	nextRetry   time.Time

	wantRunning bool // latest value observed on the "running" attribute

	ctx    context.Context
	cancel context.CancelFunc

	attrListenerToken interface{}
}

// New creates an instance under parent named name, running info, with its
// config subtree pre-populated by info.Functions.ConfigInit and the
// lifecycle-control attributes every instance carries: moduleLibrary,
// moduleId, logLevel, running, isRunning, autoRestart.
func New(parent types.Node, name string, moduleID int32, info types.ModuleInfo, logger types.Logger) *Instance {
	if logger == nil {
		logger = types.NopLogger()
	}
	node := parent.AddChild(name)
	ctx, cancel := context.WithCancel(context.Background())
	inst := &Instance{
		name: name, node: node, info: info, logger: logger,
		backoff: newBackoffPolicy(), ctx: ctx, cancel: cancel,
	}

	node.CreateAttr("moduleLibrary", types.StringValue(info.Name), types.FullStringRange(), types.FlagReadOnly, "name of the module library backing this instance")
	node.CreateAttr("moduleId", types.I32Value(moduleID), types.I32Range(0, 1<<15-1), types.FlagReadOnly, "numeric identifier assigned to this instance")
	node.CreateAttr("logLevel", types.I32Value(int32(types.LogLevelInfo)), types.I32Range(0, 4), types.FlagNormal, "instance log verbosity: 0=Off 1=Error 2=Warning 3=Info 4=Debug")
	node.CreateAttr("running", types.BoolValue(false), types.BoolRange(), types.FlagNormal, "set true to initialize and start running this module, false to stop it")
	node.CreateAttr("isRunning", types.BoolValue(false), types.BoolRange(), types.FlagReadOnly, "observed state: true once Init has succeeded and Run is being called")
	node.CreateAttr("autoRestart", types.BoolValue(false), types.BoolRange(), types.FlagNormal, "automatically retry Init with exponential backoff after a failure")

	if info.Functions.ConfigInit != nil {
		info.Functions.ConfigInit(node)
	}

	inst.attrListenerToken = inst
	node.AddAttrListener(inst.attrListenerToken, inst.onAttrEvent)
	return inst
}

// Node returns the instance's config subtree.
func (inst *Instance) Node() types.Node { return inst.node }

// State returns the instance's current lifecycle state.
func (inst *Instance) State() State {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.state
}

// onAttrEvent runs synchronously, under the node's write lock; it only
// ever records intent, never calls into the module itself, so it stays
// within the brief-lock-hold budget listeners are allowed.
func (inst *Instance) onAttrEvent(event types.AttrEvent, path, key string, t types.Type, value types.Value) {
	switch key {
	case "running":
		if event != types.AttrModified && event != types.AttrModifiedCreate {
			return
		}
		inst.mu.Lock()
		inst.wantRunning = value.Bool()
		inst.mu.Unlock()
	case "moduleLibrary", "moduleId", "isRunning":
		// control attributes, not module configuration
	default:
		inst.mu.Lock()
		inst.configDirty = true
		inst.mu.Unlock()
	}
}

// Tick runs one driver iteration. It first reconciles the lifecycle state
// against the latest "running" intent (calling Init or Exit synchronously
// if a transition is due), then, if running, applies any pending config
// change and calls Run — with Reset invoked first if in carries a
// timestamp-reset special event.
func (inst *Instance) Tick(in *types.Container) (*types.Container, error) {
	inst.reconcile()

	inst.mu.Lock()
	if inst.state != StateRunning {
		inst.mu.Unlock()
		return nil, nil
	}
	dirty := inst.configDirty
	inst.configDirty = false
	state := inst.moduleState
	inst.mu.Unlock()

	if dirty && inst.info.Functions.Config != nil {
		inst.info.Functions.Config(state, inst.node)
	}

	if in != nil && in.HasTimestampReset() && inst.info.Functions.Reset != nil {
		inst.info.Functions.Reset(state)
	}
	if inst.info.Functions.Run == nil {
		return nil, nil
	}
	out, err := inst.info.Functions.Run(state, in)
	if err != nil {
		return nil, fmt.Errorf("%s: run: %w", inst.name, err)
	}
	return out, nil
}

func (inst *Instance) reconcile() {
	inst.mu.Lock()
	want := inst.wantRunning
	state := inst.state
	autoRestartPending := state == StateStopped && want && !inst.nextRetry.IsZero() && time.Now().Before(inst.nextRetry)
	inst.mu.Unlock()

	if autoRestartPending {
		return
	}
	if want && state == StateStopped {
		inst.start()
	} else if !want && (state == StateRunning || state == StateInitializing) {
		inst.stop()
	}
}

func (inst *Instance) start() {
	inst.mu.Lock()
	inst.state = StateInitializing
	inst.mu.Unlock()

	var state interface{}
	var err error
	if inst.info.Functions.Init != nil {
		state, err = inst.info.Functions.Init(inst.ctx, inst.node)
	}

	if err != nil {
		inst.mu.Lock()
		inst.state = StateStopped
		inst.logger.Errorf("%s: init failed: %v", inst.name, err)
		autoRestart, _ := inst.node.GetAttr("autoRestart", types.TypeBool)
		if autoRestart.Bool() {
			inst.nextRetry = time.Now().Add(inst.backoff.next())
		}
		inst.mu.Unlock()
		if !autoRestart.Bool() {
			_ = inst.node.PutAttr("running", types.TypeBool, types.BoolValue(false), false)
		}
		return
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.moduleState = state
	inst.state = StateRunning
	inst.backoff.reset()
	inst.nextRetry = time.Time{}
	_ = inst.node.PutAttr("isRunning", types.TypeBool, types.BoolValue(true), true)
}

func (inst *Instance) stop() {
	inst.mu.Lock()
	inst.state = StateStopping
	state := inst.moduleState
	inst.mu.Unlock()

	if inst.info.Functions.Exit != nil {
		inst.info.Functions.Exit(state)
	}

	inst.mu.Lock()
	inst.moduleState = nil
	inst.state = StateStopped
	inst.mu.Unlock()
	_ = inst.node.PutAttr("isRunning", types.TypeBool, types.BoolValue(false), true)
}

// Shutdown stops the instance (if running) and cancels its context,
// unregistering its attribute listener. Call once when the instance is
// permanently removed (RemoveModule), not for an ordinary stop.
func (inst *Instance) Shutdown() {
	inst.mu.Lock()
	running := inst.state == StateRunning || inst.state == StateInitializing
	inst.mu.Unlock()
	if running {
		inst.stop()
	}
	inst.cancel()
	inst.node.RemoveAttrListener(inst.attrListenerToken)
}
