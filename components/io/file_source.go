package io

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dvhost/dvhost/types"
)

type fileSourceState struct {
	f            *os.File
	r            *bufio.Reader
	maxPerTick   int
	eventsRead   int64
}

// NewFileSource declares the FileSource input module: replays a recorded
// polarity-event stream from a local file, a bounded number of events per
// tick.
func NewFileSource() types.ModuleInfo {
	return types.ModuleInfo{
		Version:       1,
		Name:          "FileSource",
		Description:   "Reads polarity events from a recorded file.",
		Type:          types.ModuleInput,
		OutputStreams: outputPolarity("events", "Polarity events replayed from the file."),
		Functions: types.ModuleFuncs{
			ConfigInit: func(cfg types.Node) {
				cfg.CreateAttr("filePath", types.StringValue(""), types.FullStringRange(), types.FlagNormal,
					"path to the recorded polarity-event file")
				cfg.CreateAttr("eventsPerTick", types.I32Value(4096), types.I32Range(1, 1<<20), types.FlagNormal,
					"maximum number of events to emit per driver tick")
				cfg.CreateAttr("eventsRead", types.I64Value(0), types.I64Range(0, 1<<62),
					types.FlagReadOnly|types.FlagNoExport, "total events read so far")
				cfg.CreateAttr("endOfFile", types.BoolValue(false), types.BoolRange(),
					types.FlagReadOnly|types.FlagNoExport, "true once the file has been fully consumed")
			},
			Init: func(ctx context.Context, cfg types.Node) (interface{}, error) {
				path, err := cfg.GetAttr("filePath", types.TypeString)
				if err != nil {
					return nil, err
				}
				f, err := os.Open(path.Str())
				if err != nil {
					return nil, fmt.Errorf("%w: %v", types.ErrModuleInitFailed, err)
				}
				perTick, _ := cfg.GetAttr("eventsPerTick", types.TypeI32)
				return &fileSourceState{f: f, r: bufio.NewReaderSize(f, 64*1024), maxPerTick: int(perTick.I32())}, nil
			},
			Run: func(state interface{}, in *types.Container) (*types.Container, error) {
				st := state.(*fileSourceState)
				pkt := &types.PolarityPacket{}
				for i := 0; i < st.maxPerTick; i++ {
					e, err := decodePolarityEvent(st.r)
					if err == io.EOF {
						break
					}
					if err != nil {
						return nil, fmt.Errorf("file source read: %w", err)
					}
					pkt.Events = append(pkt.Events, e)
					st.eventsRead++
				}
				if len(pkt.Events) == 0 {
					return nil, nil
				}
				return types.NewContainer(pkt), nil
			},
			Config: func(state interface{}, cfg types.Node) {
				st := state.(*fileSourceState)
				_ = cfg.PutAttr("eventsRead", types.TypeI64, types.I64Value(st.eventsRead), true)
			},
			Exit: func(state interface{}) {
				st := state.(*fileSourceState)
				st.f.Close()
			},
		},
	}
}
