// Package io implements the built-in dataflow input and output modules:
// file, TCP, Unix-domain-socket, and MQTT sources and sinks for polarity
// event streams. Each module frames its stream as a simple fixed-size
// binary record of 13 bytes per event (8-byte timestamp, 2-byte x, 2-byte
// y, 1-byte polarity), so the file format and the network wire format are
// the same and a source and a sink can be pointed at each other directly.
package io

import (
	"encoding/binary"
	"io"

	"github.com/dvhost/dvhost/types"
)

const polarityRecordSize = 13

func encodePolarityEvent(w io.Writer, e types.PolarityEvent) error {
	var buf [polarityRecordSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(e.Ts))
	binary.LittleEndian.PutUint16(buf[8:10], uint16(e.X))
	binary.LittleEndian.PutUint16(buf[10:12], uint16(e.Y))
	if e.Polarity {
		buf[12] = 1
	}
	_, err := w.Write(buf[:])
	return err
}

func decodePolarityEvent(r io.Reader) (types.PolarityEvent, error) {
	var buf [polarityRecordSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return types.PolarityEvent{}, err
	}
	return types.PolarityEvent{
		Ts:       int64(binary.LittleEndian.Uint64(buf[0:8])),
		X:        int16(binary.LittleEndian.Uint16(buf[8:10])),
		Y:        int16(binary.LittleEndian.Uint16(buf[10:12])),
		Polarity: buf[12] != 0,
	}, nil
}

func inputPolarity(name, description string) []types.StreamDef {
	return []types.StreamDef{{Name: name, Types: []types.PacketType{types.PacketPolarity}, Description: description}}
}

func outputPolarity(name, description string) []types.StreamDef {
	return []types.StreamDef{{Name: name, Types: []types.PacketType{types.PacketPolarity}, Description: description}}
}
