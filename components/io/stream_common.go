package io

import (
	"bufio"
	"fmt"
	"io"
	"net"

	"github.com/dvhost/dvhost/types"
)

// streamSourceState is shared by TCPSource and UnixSource: both simply
// dial a socket and decode the same polarity-event record stream off it.
type streamSourceState struct {
	conn       net.Conn
	r          *bufio.Reader
	maxPerTick int
	eventsRead int64
}

func dialAndReadConfig(cfg types.Node) (string, error) {
	addr, err := cfg.GetAttr("address", types.TypeString)
	if err != nil {
		return "", err
	}
	return addr.Str(), nil
}

func newStreamSource(network, address string, perTick int) (*streamSourceState, error) {
	conn, err := net.Dial(network, address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrModuleInitFailed, err)
	}
	return &streamSourceState{conn: conn, r: bufio.NewReaderSize(conn, 64*1024), maxPerTick: perTick}, nil
}

func runStreamSource(state interface{}) (*types.Container, error) {
	st := state.(*streamSourceState)
	pkt := &types.PolarityPacket{}
	for i := 0; i < st.maxPerTick; i++ {
		e, err := decodePolarityEvent(st.r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stream source read: %w", err)
		}
		pkt.Events = append(pkt.Events, e)
		st.eventsRead++
	}
	if len(pkt.Events) == 0 {
		return nil, nil
	}
	return types.NewContainer(pkt), nil
}

// streamSinkState is shared by TCPSink and UnixSink.
type streamSinkState struct {
	conn          net.Conn
	w             *bufio.Writer
	eventsWritten int64
}

func newStreamSink(network, address string) (*streamSinkState, error) {
	conn, err := net.Dial(network, address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrModuleInitFailed, err)
	}
	return &streamSinkState{conn: conn, w: bufio.NewWriterSize(conn, 64*1024)}, nil
}

func runStreamSink(state interface{}, in *types.Container) (*types.Container, error) {
	st := state.(*streamSinkState)
	pkt, ok := in.Get(types.PacketPolarity)
	if !ok {
		return nil, nil
	}
	src := pkt.(*types.PolarityPacket)
	for _, e := range src.Events {
		if err := encodePolarityEvent(st.w, e); err != nil {
			return nil, fmt.Errorf("stream sink write: %w", err)
		}
	}
	if err := st.w.Flush(); err != nil {
		return nil, fmt.Errorf("stream sink flush: %w", err)
	}
	st.eventsWritten += int64(len(src.Events))
	return nil, nil
}

func addressConfigInit(cfg types.Node, description string) {
	cfg.CreateAttr("address", types.StringValue(""), types.FullStringRange(), types.FlagNormal, description)
}
