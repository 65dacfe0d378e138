package io

import (
	"context"

	"github.com/dvhost/dvhost/types"
)

// NewTCPSink declares the TCPSink output module: dials a remote TCP
// address and writes each tick's polarity events to it.
func NewTCPSink() types.ModuleInfo {
	return types.ModuleInfo{
		Version:      1,
		Name:         "TCPSink",
		Description:  "Writes polarity events to a TCP connection.",
		Type:         types.ModuleOutput,
		InputStreams: inputPolarity("events", "Polarity events to send over TCP."),
		Functions: types.ModuleFuncs{
			ConfigInit: func(cfg types.Node) {
				addressConfigInit(cfg, "remote host:port to dial")
				cfg.CreateAttr("eventsWritten", types.I64Value(0), types.I64Range(0, 1<<62),
					types.FlagReadOnly|types.FlagNoExport, "total events written so far")
			},
			Init: func(ctx context.Context, cfg types.Node) (interface{}, error) {
				addr, err := dialAndReadConfig(cfg)
				if err != nil {
					return nil, err
				}
				return newStreamSink("tcp", addr)
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
