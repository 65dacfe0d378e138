package io

import (
	"context"

	"github.com/dvhost/dvhost/types"
)

// NewUnixSink declares the UnixSink output module: connects to a local Unix
// domain socket and writes each tick's polarity events to it.
func NewUnixSink() types.ModuleInfo {
	return types.ModuleInfo{
		Version:      1,
		Name:         "UnixSink",
		Description:  "Writes polarity events to a Unix domain socket.",
		Type:         types.ModuleOutput,
		InputStreams: inputPolarity("events", "Polarity events to send over the socket."),
		Functions: types.ModuleFuncs{
			ConfigInit: func(cfg types.Node) {
				cfg.CreateAttr("socketPath", types.StringValue(""), types.FullStringRange(), types.FlagNormal,
					"path of the Unix domain socket to connect to")
				cfg.CreateAttr("eventsWritten", types.I64Value(0), types.I64Range(0, 1<<62),
					types.FlagReadOnly|types.FlagNoExport, "total events written so far")
			},
			Init: func(ctx context.Context, cfg types.Node) (interface{}, error) {
				path, err := cfg.GetAttr("socketPath", types.TypeString)
				if err != nil {
					return nil, err
				}
				return newStreamSink("unix", path.Str())
			},
			Run: func(state interface{}, in *types.Container) (*types.Container, error) {
				return runStreamSink(state, in)
			},
			Config: func(state interface{}, cfg types.Node) {
				st := state.(*streamSinkState)
				_ = cfg.PutAttr("eventsWritten", types.TypeI64, types.I64Value(st.eventsWritten), true)
			},
			Exit: func(state interface{}) {
				state.(*streamSinkState).conn.Close()
			},
		},
	}
}
