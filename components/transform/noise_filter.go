package transform

import (
	"context"

	"github.com/dvhost/dvhost/types"
)

// noiseFilterState tracks, per pixel, the timestamp of the last event seen
// there (for the refractory-period filter) and a rolling per-pixel event
// count for the current hot-pixel learning window.
type noiseFilterState struct {
	sizeX, sizeY int

	lastTs []int64 // refractory period: last-seen timestamp per pixel

	learnCounts []int32 // hot pixel learning: events seen per pixel this window
	hotPixels   map[int]bool

	refractoryEnabled    bool
	refractoryPeriodTime int64

	backgroundEnabled            bool
	backgroundActivitySupportMin int
	backgroundActivityTime       int64

	hotPixelEnabled bool

	refractoryFiltered    int64
	backgroundActFiltered int64
	hotPixelFiltered      int64
}

func (s *noiseFilterState) idx(x, y int16) int {
	return int(y)*s.sizeX + int(x)
}

func newNoiseFilterState(sizeX, sizeY int) *noiseFilterState {
	n := sizeX * sizeY
	return &noiseFilterState{
		sizeX: sizeX, sizeY: sizeY,
		lastTs:      make([]int64, n),
		learnCounts: make([]int32, n),
		hotPixels:   make(map[int]bool),
	}
}

func (s *noiseFilterState) resize(sizeX, sizeY int) {
	if sizeX == s.sizeX && sizeY == s.sizeY {
		return
	}
	*s = *newNoiseFilterState(sizeX, sizeY)
}

// neighborSupport counts, among the up-to-8 direct neighbors of (x, y), how
// many had an event within backgroundActivityTime microseconds of ts.
func (s *noiseFilterState) neighborSupport(x, y int16, ts, windowUs int64) int {
	support := 0
	for dy := int16(-1); dy <= 1; dy++ {
		for dx := int16(-1); dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := x+dx, y+dy
			if nx < 0 || ny < 0 || int(nx) >= s.sizeX || int(ny) >= s.sizeY {
				continue
			}
			last := s.lastTs[s.idx(nx, ny)]
			if last != 0 && ts-last <= windowUs {
				support++
			}
		}
	}
	return support
}

// NewNoiseFilter declares the NoiseFilter processor module: a refractory
// period plus background-activity (neighbor-support) filter for polarity
// events, and an optional hot-pixel filter learned from a rolling event
// count per pixel.
func NewNoiseFilter() types.ModuleInfo {
	return types.ModuleInfo{
		Version:       1,
		Name:          "NoiseFilter",
		Description:   "Filters out noise from polarity change events.",
		Type:          types.ModuleProcessor,
		InputStreams:  inputPolarity("events", "Polarity events to denoise."),
		OutputStreams: outputPolarity("events", "Polarity events that survived filtering."),
		Functions: types.ModuleFuncs{
			ConfigInit: func(cfg types.Node) {
				cfg.CreateAttr("sizeX", types.I32Value(346), types.I32Range(1, 4096), types.FlagNormal, "sensor width in pixels")
				cfg.CreateAttr("sizeY", types.I32Value(260), types.I32Range(1, 4096), types.FlagNormal, "sensor height in pixels")

				cfg.CreateAttr("refractoryPeriodEnable", types.BoolValue(true), types.BoolRange(), types.FlagNormal,
					"Enable the refractory period filter.")
				cfg.CreateAttr("refractoryPeriodTime", types.I32Value(100), types.I32Range(0, 10000000), types.FlagNormal,
					"Minimum time in microseconds between events at the same pixel to not be filtered out.")
				cfg.CreateAttr("refractoryPeriodFiltered", types.I64Value(0), types.I64Range(0, 1<<62),
					types.FlagReadOnly|types.FlagNoExport, "Number of events filtered out by the refractory period filter.")

				cfg.CreateAttr("backgroundActivityEnable", types.BoolValue(true), types.BoolRange(), types.FlagNormal,
					"Enable the background activity filter.")
				cfg.CreateAttr("backgroundActivitySupportMin", types.I32Value(1), types.I32Range(1, 8), types.FlagNormal,
					"Minimum number of direct neighbor pixels that must support this pixel for it to be valid.")
				cfg.CreateAttr("backgroundActivityTime", types.I32Value(2000), types.I32Range(0, 10000000), types.FlagNormal,
					"Maximum time difference in microseconds for events to be considered correlated.")
				cfg.CreateAttr("backgroundActivityFiltered", types.I64Value(0), types.I64Range(0, 1<<62),
					types.FlagReadOnly|types.FlagNoExport, "Number of events filtered out by the background activity filter.")

				cfg.CreateAttr("hotPixelEnable", types.BoolValue(false), types.BoolRange(), types.FlagNormal,
					"Enable the hot pixel filter.")
				cfg.CreateAttr("hotPixelTime", types.I32Value(1000000), types.I32Range(0, 30000000), types.FlagNormal,
					"Not read by this module; hot pixels are relearned from the per-pixel counts accumulated since the Config callback last ran.")
				cfg.CreateAttr("hotPixelCount", types.I32Value(10000), types.I32Range(0, 10000000), types.FlagNormal,
					"Number of events needed in a learning time period for a pixel to be considered hot.")
				cfg.CreateAttr("hotPixelFiltered", types.I64Value(0), types.I64Range(0, 1<<62),
					types.FlagReadOnly|types.FlagNoExport, "Number of events filtered out by the hot pixel filter.")
			},
			Init: func(ctx context.Context, cfg types.Node) (interface{}, error) {
				sx, _ := cfg.GetAttr("sizeX", types.TypeI32)
				sy, _ := cfg.GetAttr("sizeY", types.TypeI32)
				st := newNoiseFilterState(int(sx.I32()), int(sy.I32()))
				re, _ := cfg.GetAttr("refractoryPeriodEnable", types.TypeBool)
				rt, _ := cfg.GetAttr("refractoryPeriodTime", types.TypeI32)
				st.refractoryEnabled = re.Bool()
				st.refractoryPeriodTime = int64(rt.I32())
				be, _ := cfg.GetAttr("backgroundActivityEnable", types.TypeBool)
				bs, _ := cfg.GetAttr("backgroundActivitySupportMin", types.TypeI32)
				bt, _ := cfg.GetAttr("backgroundActivityTime", types.TypeI32)
				st.backgroundEnabled = be.Bool()
				st.backgroundActivitySupportMin = int(bs.I32())
				st.backgroundActivityTime = int64(bt.I32())
				return st, nil
			},
			Run: func(state interface{}, in *types.Container) (*types.Container, error) {
				st := state.(*noiseFilterState)
				pkt, ok := in.Get(types.PacketPolarity)
				if !ok {
					return nil, nil
				}
				src := pkt.(*types.PolarityPacket)
				kept := &types.PolarityPacket{}
				for _, e := range src.Events {
					if int(e.X) >= st.sizeX || int(e.Y) >= st.sizeY || e.X < 0 || e.Y < 0 {
						continue
					}
					i := st.idx(e.X, e.Y)

					if st.refractoryEnabled && e.Ts-st.lastTs[i] < st.refractoryPeriodTime && st.lastTs[i] != 0 {
						st.refractoryFiltered++
						st.lastTs[i] = e.Ts
						continue
					}
					if st.backgroundEnabled {
						if st.neighborSupport(e.X, e.Y, e.Ts, st.backgroundActivityTime) < st.backgroundActivitySupportMin {
							st.backgroundActFiltered++
							st.lastTs[i] = e.Ts
							continue
						}
					}
					if st.hotPixelEnabled && st.hotPixels[i] {
						st.hotPixelFiltered++
						st.lastTs[i] = e.Ts
						continue
					}

					st.lastTs[i] = e.Ts
					st.learnCounts[i]++
					kept.Events = append(kept.Events, e)
				}
				if len(kept.Events) == 0 {
					return nil, nil
				}
				return types.NewContainer(kept), nil
			},
			Config: func(state interface{}, cfg types.Node) {
				st := state.(*noiseFilterState)
				sx, _ := cfg.GetAttr("sizeX", types.TypeI32)
				sy, _ := cfg.GetAttr("sizeY", types.TypeI32)
				st.resize(int(sx.I32()), int(sy.I32()))

				re, _ := cfg.GetAttr("refractoryPeriodEnable", types.TypeBool)
				rt, _ := cfg.GetAttr("refractoryPeriodTime", types.TypeI32)
				st.refractoryEnabled = re.Bool()
				st.refractoryPeriodTime = int64(rt.I32())

				be, _ := cfg.GetAttr("backgroundActivityEnable", types.TypeBool)
				bs, _ := cfg.GetAttr("backgroundActivitySupportMin", types.TypeI32)
				bt, _ := cfg.GetAttr("backgroundActivityTime", types.TypeI32)
				st.backgroundEnabled = be.Bool()
				st.backgroundActivitySupportMin = int(bs.I32())
				st.backgroundActivityTime = int64(bt.I32())

				he, _ := cfg.GetAttr("hotPixelEnable", types.TypeBool)
				hc, _ := cfg.GetAttr("hotPixelCount", types.TypeI32)
				st.hotPixelEnabled = he.Bool()
				if st.hotPixelEnabled {
					st.hotPixels = make(map[int]bool)
					for i, c := range st.learnCounts {
						if c >= hc.I32() {
							st.hotPixels[i] = true
						}
					}
					for i := range st.learnCounts {
						st.learnCounts[i] = 0
					}
				}

				_ = cfg.PutAttr("refractoryPeriodFiltered", types.TypeI64, types.I64Value(st.refractoryFiltered), true)
				_ = cfg.PutAttr("backgroundActivityFiltered", types.TypeI64, types.I64Value(st.backgroundActFiltered), true)
				_ = cfg.PutAttr("hotPixelFiltered", types.TypeI64, types.I64Value(st.hotPixelFiltered), true)
			},
			Exit: func(state interface{}) {},
			Reset: func(state interface{}) {
				st := state.(*noiseFilterState)
				for i := range st.lastTs {
					st.lastTs[i] = 0
				}
			},
		},
	}
}
