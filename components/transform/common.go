// Package transform implements built-in processor modules that map one
// polarity or frame stream onto another: scripted filters (expr-lang,
// JavaScript via goja) and fixed-algorithm filters grounded on the
// reference noise and frame-enhancement modules.
package transform

import "github.com/dvhost/dvhost/types"

func inputPolarity(name, description string) []types.StreamDef {
	return []types.StreamDef{{Name: name, Types: []types.PacketType{types.PacketPolarity}, Description: description}}
}

func outputPolarity(name, description string) []types.StreamDef {
	return []types.StreamDef{{Name: name, Types: []types.PacketType{types.PacketPolarity}, Description: description}}
}

func inputFrame(name, description string) []types.StreamDef {
	return []types.StreamDef{{Name: name, Types: []types.PacketType{types.PacketFrame}, Description: description}}
}

func outputFrame(name, description string) []types.StreamDef {
	return []types.StreamDef{{Name: name, Types: []types.PacketType{types.PacketFrame}, Description: description}}
}
