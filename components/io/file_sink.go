package io

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/dvhost/dvhost/types"
)

type fileSinkState struct {
	f             *os.File
	w             *bufio.Writer
	eventsWritten int64
}

// NewFileSink declares the FileSink output module: writes every polarity
// event it receives to a local file (truncated when the module starts) in
// the same record format FileSource reads.
func NewFileSink() types.ModuleInfo {
	return types.ModuleInfo{
		Version:      1,
		Name:         "FileSink",
		Description:  "Writes polarity events to a file.",
		Type:         types.ModuleOutput,
		InputStreams: inputPolarity("events", "Polarity events to record."),
		Functions: types.ModuleFuncs{
			ConfigInit: func(cfg types.Node) {
				cfg.CreateAttr("filePath", types.StringValue(""), types.FullStringRange(), types.FlagNormal,
					"path to write the recorded polarity-event file to")
				cfg.CreateAttr("eventsWritten", types.I64Value(0), types.I64Range(0, 1<<62),
					types.FlagReadOnly|types.FlagNoExport, "total events written so far")
			},
			Init: func(ctx context.Context, cfg types.Node) (interface{}, error) {
				path, err := cfg.GetAttr("filePath", types.TypeString)
				if err != nil {
					return nil, err
				}
				f, err := os.OpenFile(path.Str(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
				if err != nil {
					return nil, fmt.Errorf("%w: %v", types.ErrModuleInitFailed, err)
				}
				return &fileSinkState{f: f, w: bufio.NewWriterSize(f, 64*1024)}, nil
			},
			Run: func(state interface{}, in *types.Container) (*types.Container, error) {
				st := state.(*fileSinkState)
				pkt, ok := in.Get(types.PacketPolarity)
				if !ok {
					return nil, nil
				}
				src := pkt.(*types.PolarityPacket)
				for _, e := range src.Events {
					if err := encodePolarityEvent(st.w, e); err != nil {
						return nil, fmt.Errorf("file sink write: %w", err)
					}
				}
				st.eventsWritten += int64(len(src.Events))
				return nil, nil
			},
			Config: func(state interface{}, cfg types.Node) {
				st := state.(*fileSinkState)
				_ = cfg.PutAttr("eventsWritten", types.TypeI64, types.I64Value(st.eventsWritten), true)
			},
			Exit: func(state interface{}) {
				st := state.(*fileSinkState)
				st.w.Flush()
				st.f.Close()
			},
		},
	}
}
