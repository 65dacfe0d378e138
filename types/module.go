package types

import "context"

// ModuleType classifies a module's position in the dataflow graph.
type ModuleType uint8

const (
	ModuleInput ModuleType = iota
	ModuleProcessor
	ModuleOutput
)

func (t ModuleType) String() string {
	switch t {
	case ModuleInput:
		return "Input"
	case ModuleProcessor:
		return "Processor"
	case ModuleOutput:
		return "Output"
	default:
		return "Unknown"
	}
}

// StreamDef describes one input or output pin a module declares.
type StreamDef struct {
	Name        string
	Types       []PacketType
	Description string
}

// ModuleFuncs is the polymorphic capability set a module implements, per
// design note 9: the ABI (ModuleInfo + five C-style function pointers in the
// original) is preserved at the boundary but expressed internally as an
// interface rather than raw function pointers. Reset is optional; a module
// that does not need it returns nil from ModuleInfo.Functions.Reset.
type ModuleFuncs struct {
	// ConfigInit populates cfg with the module's declared default
	// attributes (called once, before the first Init).
	ConfigInit func(cfg Node)
	// Init allocates and returns module-owned state, or an error if
	// initialization fails. The instance transitions back to Stopped on
	// error.
	Init func(ctx context.Context, cfg Node) (interface{}, error)
	// Run is called once per driver tick with the merged input container
	// and must return within a bounded time (no blocking network/disk
	// I/O). A nil output means "no packet this tick".
	Run func(state interface{}, in *Container) (*Container, error)
	// Config is invoked between ticks when the instance's config-dirty
	// flag is set.
	Config func(state interface{}, cfg Node)
	// Exit releases module-owned state.
	Exit func(state interface{})
	// Reset, if non-nil, is invoked whenever a timestamp-reset special
	// event is observed in the module's inputs, before the rest of the
	// packet is processed.
	Reset func(state interface{})
}

// ModuleInfo is the declaration a library (or built-in module) publishes.
// It is the payload the loader extracts from a discovered dynamic library's
// ModuleGetInfo symbol, or that a built-in module registers directly.
type ModuleInfo struct {
	Version       int
	Name          string
	Description   string
	Type          ModuleType
	InputStreams  []StreamDef
	OutputStreams []StreamDef
	Functions     ModuleFuncs
}

// ModuleMeta is the primitive-only subset of ModuleInfo a dynamic library
// may export as a plain map (symbol ModuleMetadata) instead of a typed
// ModuleGetInfo function. A map[string]interface{} value crosses a Go
// plugin boundary safely even when the library was built against a
// different types.ModuleInfo layout than the host; a struct literal of a
// mismatched type does not load at all. Loader.resolveInfo decodes this into a
// ModuleInfo via mapstructure once it has separately resolved the
// function-pointer symbols.
type ModuleMeta struct {
	Version     int    `mapstructure:"version"`
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
	Type        string `mapstructure:"type"`
}

// ParseModuleType maps a ModuleMeta.Type string back to a ModuleType.
func ParseModuleType(s string) ModuleType {
	switch s {
	case "Input":
		return ModuleInput
	case "Output":
		return ModuleOutput
	default:
		return ModuleProcessor
	}
}
