package transform

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/dvhost/dvhost/types"
)

// exprCase is one branch of an ExprSwitch: Script is evaluated in order,
// and the first case whose expression is true wins. No match leaves
// activeCase at "default".
type exprCase struct {
	Name   string `json:"name"`
	Script string `json:"script"`
}

type exprSwitchState struct {
	cases    []exprCase
	programs []*vm.Program
	node     types.Node
}

func compileExprSwitch(cases []exprCase) ([]*vm.Program, error) {
	programs := make([]*vm.Program, len(cases))
	for i, c := range cases {
		p, err := expr.Compile(c.Script, expr.AllowUndefinedVariables(), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("case %q: %w", c.Name, err)
		}
		programs[i] = p
	}
	return programs, nil
}

// NewExprSwitch declares the ExprSwitch processor module. It passes its
// polarity input through unchanged and, once per tick, evaluates an
// ordered list of expr-lang cases over the tick's event count and
// timestamp span, publishing the name of the first matching case (or
// "default") to its read-only activeCase attribute so other modules or a
// remote client can observe which branch was taken.
func NewExprSwitch() types.ModuleInfo {
	return types.ModuleInfo{
		Version:       1,
		Name:          "ExprSwitch",
		Description:   "Classifies each tick's polarity-event batch against an ordered list of expr-lang cases.",
		Type:          types.ModuleProcessor,
		InputStreams:  inputPolarity("events", "Polarity events to pass through and classify."),
		OutputStreams: outputPolarity("events", "The same polarity events, unmodified."),
		Functions: types.ModuleFuncs{
			ConfigInit: func(cfg types.Node) {
				cfg.CreateAttr("cases", types.StringValue(`[{"name":"active","script":"count > 0"}]`),
					types.FullStringRange(), types.FlagNormal, "JSON array of {name, script} cases, evaluated in order")
				cfg.CreateAttr("activeCase", types.StringValue("default"), types.FullStringRange(),
					types.FlagReadOnly|types.FlagNoExport, "name of the case that matched on the last tick")
			},
			Init: func(ctx context.Context, cfg types.Node) (interface{}, error) {
				raw, err := cfg.GetAttr("cases", types.TypeString)
				if err != nil {
					return nil, err
				}
				var cases []exprCase
				if err := json.Unmarshal([]byte(raw.Str()), &cases); err != nil {
					return nil, fmt.Errorf("%w: cases: %v", types.ErrParse, err)
				}
				programs, err := compileExprSwitch(cases)
				if err != nil {
					return nil, fmt.Errorf("%w: %v", types.ErrModuleInitFailed, err)
				}
				return &exprSwitchState{cases: cases, programs: programs, node: cfg}, nil
			},
			Run: func(state interface{}, in *types.Container) (*types.Container, error) {
				st := state.(*exprSwitchState)
				pkt, ok := in.Get(types.PacketPolarity)
				if !ok {
					return nil, nil
				}
				src := pkt.(*types.PolarityPacket)
				env := map[string]interface{}{"count": len(src.Events)}
				if len(src.Events) > 0 {
					env["tsFirst"] = src.Events[0].Ts
					env["tsLast"] = src.Events[len(src.Events)-1].Ts
				}
				active := "default"
				for i, p := range st.programs {
					out, err := vm.Run(p, env)
					if err != nil {
						return nil, fmt.Errorf("case %q: %w", st.cases[i].Name, err)
					}
					if b, ok := out.(bool); ok && b {
						active = st.cases[i].Name
						break
					}
				}
				_ = st.node.PutAttr("activeCase", types.TypeString, types.StringValue(active), true)
				return types.NewContainer(src), nil
			},
			Config: func(state interface{}, cfg types.Node) {
				st := state.(*exprSwitchState)
				raw, err := cfg.GetAttr("cases", types.TypeString)
				if err != nil {
					return
				}
				var cases []exprCase
				if err := json.Unmarshal([]byte(raw.Str()), &cases); err != nil {
					return
				}
				programs, err := compileExprSwitch(cases)
				if err != nil {
					return
				}
				st.cases, st.programs = cases, programs
			},
			Exit: func(state interface{}) {},
		},
	}
}
