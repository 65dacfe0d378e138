package transform

import (
	"context"
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/dvhost/dvhost/types"
)

const jsFilterFuncTemplate = "function filter(x, y, ts, polarity) { %s }\nfilter;"

type jsFilterState struct {
	pool *sync.Pool
}

func newJsFilterPool(script string) (*sync.Pool, error) {
	program, err := goja.Compile("filter.js", fmt.Sprintf(jsFilterFuncTemplate, script), true)
	if err != nil {
		return nil, err
	}
	pool := &sync.Pool{New: func() any {
		vm := goja.New()
		if _, err := vm.RunProgram(program); err != nil {
			panic(fmt.Sprintf("goja: failed to load filter program: %v", err))
		}
		return vm
	}}
	return pool, nil
}

// NewJSFilter declares the JSFilter processor module: a polarity-event
// filter whose per-event predicate is a user-supplied JavaScript function
// body, run through goja. Each call borrows a runtime from a pool rather
// than compiling or allocating a VM per event.
func NewJSFilter() types.ModuleInfo {
	return types.ModuleInfo{
		Version:       1,
		Name:          "JSFilter",
		Description:   "Filters polarity events using a JavaScript predicate function.",
		Type:          types.ModuleProcessor,
		InputStreams:  inputPolarity("events", "Polarity events to filter."),
		OutputStreams: outputPolarity("events", "Polarity events for which the script returned true."),
		Functions: types.ModuleFuncs{
			ConfigInit: func(cfg types.Node) {
				cfg.CreateAttr("script", types.StringValue("return polarity;"), types.FullStringRange(), types.FlagNormal,
					"JavaScript function body with parameters (x, y, ts, polarity); must return a boolean")
			},
			Init: func(ctx context.Context, cfg types.Node) (interface{}, error) {
				script, err := cfg.GetAttr("script", types.TypeString)
				if err != nil {
					return nil, err
				}
				pool, err := newJsFilterPool(script.Str())
				if err != nil {
					return nil, fmt.Errorf("%w: %v", types.ErrModuleInitFailed, err)
				}
				return &jsFilterState{pool: pool}, nil
			},
			Run: func(state interface{}, in *types.Container) (*types.Container, error) {
				st := state.(*jsFilterState)
				pkt, ok := in.Get(types.PacketPolarity)
				if !ok {
					return nil, nil
				}
				src := pkt.(*types.PolarityPacket)

				vmv := st.pool.Get().(*goja.Runtime)
				defer st.pool.Put(vmv)
				fnVal := vmv.Get("filter")
				fn, ok := goja.AssertFunction(fnVal)
				if !ok {
					return nil, fmt.Errorf("%w: filter is not a function", types.ErrModuleInitFailed)
				}

				kept := &types.PolarityPacket{}
				for _, e := range src.Events {
					res, err := fn(goja.Undefined(), vmv.ToValue(int(e.X)), vmv.ToValue(int(e.Y)), vmv.ToValue(e.Ts), vmv.ToValue(e.Polarity))
					if err != nil {
						return nil, fmt.Errorf("js evaluation: %w", err)
					}
					if b, ok := res.Export().(bool); ok && b {
						kept.Events = append(kept.Events, e)
					}
				}
				if len(kept.Events) == 0 {
					return nil, nil
				}
				return types.NewContainer(kept), nil
			},
			Config: func(state interface{}, cfg types.Node) {
				st := state.(*jsFilterState)
				script, err := cfg.GetAttr("script", types.TypeString)
				if err != nil {
					return
				}
				pool, err := newJsFilterPool(script.Str())
				if err != nil {
					return
				}
				st.pool = pool
			},
			Exit: func(state interface{}) {},
		},
	}
}
