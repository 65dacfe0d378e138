package transform

import (
	"context"

	"github.com/dvhost/dvhost/types"
)

type frameEnhancerState struct {
	doContrast bool
}

// contrastNormalize stretches pixel values for a frame so the darkest value
// maps to 0 and the brightest to 255, the "standard" contrast algorithm the
// reference module falls back to without an image library available.
func contrastNormalize(pixels []byte) {
	if len(pixels) == 0 {
		return
	}
	min, max := pixels[0], pixels[0]
	for _, p := range pixels {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}
	if max == min {
		return
	}
	scale := 255.0 / float64(max-min)
	for i, p := range pixels {
		pixels[i] = byte(float64(p-min)*scale + 0.5)
	}
}

// NewFrameEnhancer declares the FrameEnhancer processor module: an
// optional contrast-normalization pass over frame events.
func NewFrameEnhancer() types.ModuleInfo {
	return types.ModuleInfo{
		Version:       1,
		Name:          "FrameEnhancer",
		Description:   "Applies contrast enhancement to frames.",
		Type:          types.ModuleProcessor,
		InputStreams:  inputFrame("frames", "Frames to enhance."),
		OutputStreams: outputFrame("frames", "Enhanced frames."),
		Functions: types.ModuleFuncs{
			ConfigInit: func(cfg types.Node) {
				cfg.CreateAttr("doContrast", types.BoolValue(false), types.BoolRange(), types.FlagNormal,
					"Do contrast enhancement on the frame.")
			},
			Init: func(ctx context.Context, cfg types.Node) (interface{}, error) {
				v, _ := cfg.GetAttr("doContrast", types.TypeBool)
				return &frameEnhancerState{doContrast: v.Bool()}, nil
			},
			Run: func(state interface{}, in *types.Container) (*types.Container, error) {
				st := state.(*frameEnhancerState)
				pkt, ok := in.Get(types.PacketFrame)
				if !ok {
					return nil, nil
				}
				src := pkt.(*types.FramePacket)
				out := &types.FramePacket{Events: make([]types.FrameEvent, len(src.Events))}
				copy(out.Events, src.Events)
				if st.doContrast {
					for i := range out.Events {
						pixels := make([]byte, len(out.Events[i].Pixels))
						copy(pixels, out.Events[i].Pixels)
						contrastNormalize(pixels)
						out.Events[i].Pixels = pixels
					}
				}
				return types.NewContainer(out), nil
			},
			Config: func(state interface{}, cfg types.Node) {
				st := state.(*frameEnhancerState)
				v, err := cfg.GetAttr("doContrast", types.TypeBool)
				if err == nil {
					st.doContrast = v.Bool()
				}
			},
			Exit: func(state interface{}) {},
		},
	}
}
