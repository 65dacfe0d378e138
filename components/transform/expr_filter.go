package transform

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/dvhost/dvhost/types"
)

// exprFilterState holds the compiled program an instance runs per event.
// program is replaced wholesale by Config when the script attribute
// changes; Run never mutates it, so no locking is needed between the two
// (the driver never calls Run and Config concurrently for one instance).
type exprFilterState struct {
	program *vm.Program
}

func compileExprFilter(script string) (*vm.Program, error) {
	return expr.Compile(script, expr.AllowUndefinedVariables(), expr.AsBool())
}

func exprEnv(e types.PolarityEvent) map[string]interface{} {
	return map[string]interface{}{
		"x":        int(e.X),
		"y":        int(e.Y),
		"ts":       e.Ts,
		"polarity": e.Polarity,
	}
}

// NewExprFilter declares the ExprFilter processor module: a polarity-event
// filter driven by an expr-lang boolean expression over x, y, ts and
// polarity.
func NewExprFilter() types.ModuleInfo {
	return types.ModuleInfo{
		Version:       1,
		Name:          "ExprFilter",
		Description:   "Filters polarity events using an expr-lang boolean expression.",
		Type:          types.ModuleProcessor,
		InputStreams:  inputPolarity("events", "Polarity events to filter."),
		OutputStreams: outputPolarity("events", "Polarity events that matched the expression."),
		Functions: types.ModuleFuncs{
			ConfigInit: func(cfg types.Node) {
				cfg.CreateAttr("script", types.StringValue("x >= 0"), types.FullStringRange(), types.FlagNormal,
					"expr-lang expression over x, y, ts, polarity; must evaluate to a boolean")
			},
			Init: func(ctx context.Context, cfg types.Node) (interface{}, error) {
				script, err := cfg.GetAttr("script", types.TypeString)
				if err != nil {
					return nil, err
				}
				program, err := compileExprFilter(script.Str())
				if err != nil {
					return nil, fmt.Errorf("%w: %v", types.ErrModuleInitFailed, err)
				}
				return &exprFilterState{program: program}, nil
			},
			Run: func(state interface{}, in *types.Container) (*types.Container, error) {
				st := state.(*exprFilterState)
				pkt, ok := in.Get(types.PacketPolarity)
				if !ok {
					return nil, nil
				}
				src := pkt.(*types.PolarityPacket)
				kept := &types.PolarityPacket{}
				for _, e := range src.Events {
					out, err := vm.Run(st.program, exprEnv(e))
					if err != nil {
						return nil, fmt.Errorf("expr evaluation: %w", err)
					}
					if b, ok := out.(bool); ok && b {
						kept.Events = append(kept.Events, e)
					}
				}
				if len(kept.Events) == 0 {
					return nil, nil
				}
				return types.NewContainer(kept), nil
			},
			Config: func(state interface{}, cfg types.Node) {
				st := state.(*exprFilterState)
				script, err := cfg.GetAttr("script", types.TypeString)
				if err != nil {
					return
				}
				program, err := compileExprFilter(script.Str())
				if err != nil {
					return
				}
				st.program = program
			},
			Exit: func(state interface{}) {},
		},
	}
}
