// Package stats implements the PacketStatistics built-in output module,
// reporting running packet and event totals through read-only config
// attributes.
package stats

import (
	"context"

	"github.com/dvhost/dvhost/types"
)

type packetStatisticsState struct {
	divisionFactor int64

	eventsTotal    int64
	eventsValid    int64
	lastPacketTs   int64
	maxPacketTsGap int64
}

func countEvents(c *types.Container) (total, valid int) {
	for _, t := range c.Types() {
		p, _ := c.Get(t)
		total += p.Len()
		if t != types.PacketSpecial {
			valid += p.Len()
		}
	}
	return total, valid
}

func containerTimestamp(c *types.Container) (int64, bool) {
	if p, ok := c.Get(types.PacketPolarity); ok {
		pp := p.(*types.PolarityPacket)
		if len(pp.Events) > 0 {
			return pp.Events[len(pp.Events)-1].Ts, true
		}
	}
	if p, ok := c.Get(types.PacketFrame); ok {
		fp := p.(*types.FramePacket)
		if len(fp.Events) > 0 {
			return fp.Events[len(fp.Events)-1].TsEnd, true
		}
	}
	return 0, false
}

// NewPacketStatistics declares the PacketStatistics output module: it
// consumes whatever packet types its input stream carries and maintains
// running totals plus the largest observed gap between consecutive
// packets' timestamps, all surfaced as read-only attributes.
func NewPacketStatistics() types.ModuleInfo {
	return types.ModuleInfo{
		Version:     1,
		Name:        "PacketStatistics",
		Description: "Display statistics on events.",
		Type:        types.ModuleOutput,
		InputStreams: []types.StreamDef{{
			Name: "events",
			Types: []types.PacketType{
				types.PacketPolarity, types.PacketFrame, types.PacketIMU, types.PacketSpecial,
			},
			Description: "Any packet stream to collect statistics on.",
		}},
		Functions: types.ModuleFuncs{
			ConfigInit: func(cfg types.Node) {
				cfg.CreateAttr("divisionFactor", types.I64Value(1000), types.I64Range(1, 1<<62), types.FlagNormal,
					"division factor for statistics display, to get Kilo/Mega/... events shown")
				cfg.CreateAttr("eventsTotal", types.I64Value(0), types.I64Range(0, 1<<62),
					types.FlagReadOnly|types.FlagNoExport, "total number of events observed")
				cfg.CreateAttr("eventsValid", types.I64Value(0), types.I64Range(0, 1<<62),
					types.FlagReadOnly|types.FlagNoExport, "total number of non-special events observed")
				cfg.CreateAttr("packetTSDiff", types.I64Value(0), types.I64Range(0, 1<<62),
					types.FlagReadOnly|types.FlagNoExport, "largest time gap in microseconds between consecutive packets")
			},
			Init: func(ctx context.Context, cfg types.Node) (interface{}, error) {
				df, _ := cfg.GetAttr("divisionFactor", types.TypeI64)
				return &packetStatisticsState{divisionFactor: df.I64()}, nil
			},
			Run: func(state interface{}, in *types.Container) (*types.Container, error) {
				st := state.(*packetStatisticsState)
				total, valid := countEvents(in)
				st.eventsTotal += int64(total)
				st.eventsValid += int64(valid)

				if ts, ok := containerTimestamp(in); ok {
					if st.lastPacketTs != 0 {
						if gap := ts - st.lastPacketTs; gap > st.maxPacketTsGap {
							st.maxPacketTsGap = gap
						}
					}
					st.lastPacketTs = ts
				}
				return nil, nil
			},
			Config: func(state interface{}, cfg types.Node) {
				st := state.(*packetStatisticsState)
				df, err := cfg.GetAttr("divisionFactor", types.TypeI64)
				if err == nil {
					st.divisionFactor = df.I64()
				}
				_ = cfg.PutAttr("eventsTotal", types.TypeI64, types.I64Value(st.eventsTotal), true)
				_ = cfg.PutAttr("eventsValid", types.TypeI64, types.I64Value(st.eventsValid), true)
				_ = cfg.PutAttr("packetTSDiff", types.TypeI64, types.I64Value(st.maxPacketTsGap), true)
			},
			Exit: func(state interface{}) {},
			Reset: func(state interface{}) {
				st := state.(*packetStatisticsState)
				st.lastPacketTs = 0
				st.maxPacketTsGap = 0
			},
		},
	}
}
