package io

import (
	"context"

	"github.com/dvhost/dvhost/types"
)

// NewTCPSource declares the TCPSource input module: dials a remote TCP
// address and decodes a polarity-event stream from it.
func NewTCPSource() types.ModuleInfo {
	return types.ModuleInfo{
		Version:       1,
		Name:          "TCPSource",
		Description:   "Reads polarity events from a TCP connection.",
		Type:          types.ModuleInput,
		OutputStreams: outputPolarity("events", "Polarity events received over TCP."),
		Functions: types.ModuleFuncs{
			ConfigInit: func(cfg types.Node) {
				addressConfigInit(cfg, "remote host:port to dial")
				cfg.CreateAttr("eventsPerTick", types.I32Value(4096), types.I32Range(1, 1<<20), types.FlagNormal,
					"maximum number of events to emit per driver tick")
				cfg.CreateAttr("eventsRead", types.I64Value(0), types.I64Range(0, 1<<62),
					types.FlagReadOnly|types.FlagNoExport, "total events read so far")
			},
			Init: func(ctx context.Context, cfg types.Node) (interface{}, error) {
				addr, err := dialAndReadConfig(cfg)
				if err != nil {
					return nil, err
				}
				perTick, _ := cfg.GetAttr("eventsPerTick", types.TypeI32)
				return newStreamSource("tcp", addr, int(perTick.I32()))
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
