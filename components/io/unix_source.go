package io

import (
	"context"

	"github.com/dvhost/dvhost/types"
)

// NewUnixSource declares the UnixSource input module: connects to a local
// Unix domain socket and decodes a polarity-event stream from it.
func NewUnixSource() types.ModuleInfo {
	return types.ModuleInfo{
		Version:       1,
		Name:          "UnixSource",
		Description:   "Reads polarity events from a Unix domain socket.",
		Type:          types.ModuleInput,
		OutputStreams: outputPolarity("events", "Polarity events received over the socket."),
		Functions: types.ModuleFuncs{
			ConfigInit: func(cfg types.Node) {
				cfg.CreateAttr("socketPath", types.StringValue(""), types.FullStringRange(), types.FlagNormal,
					"path of the Unix domain socket to connect to")
				cfg.CreateAttr("eventsPerTick", types.I32Value(4096), types.I32Range(1, 1<<20), types.FlagNormal,
					"maximum number of events to emit per driver tick")
				cfg.CreateAttr("eventsRead", types.I64Value(0), types.I64Range(0, 1<<62),
					types.FlagReadOnly|types.FlagNoExport, "total events read so far")
			},
			Init: func(ctx context.Context, cfg types.Node) (interface{}, error) {
				path, err := cfg.GetAttr("socketPath", types.TypeString)
				if err != nil {
					return nil, err
				}
				perTick, _ := cfg.GetAttr("eventsPerTick", types.TypeI32)
				return newStreamSource("unix", path.Str(), int(perTick.I32()))
			},
			Run: func(state interface{}, in *types.Container) (*types.Container, error) {
				return runStreamSource(state)
			},
			Config: func(state interface{}, cfg types.Node) {
				st := state.(*streamSourceState)
				_ = cfg.PutAttr("eventsRead", types.TypeI64, types.I64Value(st.eventsRead), true)
			},
			Exit: func(state interface{}) {
				state.(*streamSourceState).conn.Close()
			},
		},
	}
}
