package types

import (
	"sync/atomic"

	"github.com/gofrs/uuid/v5"
)

// PacketType discriminates the packets a Container can hold.
type PacketType uint8

const (
	PacketPolarity PacketType = iota
	PacketFrame
	PacketIMU
	PacketSpecial
)

func (t PacketType) String() string {
	switch t {
	case PacketPolarity:
		return "polarity"
	case PacketFrame:
		return "frame"
	case PacketIMU:
		return "imu"
	case PacketSpecial:
		return "special"
	default:
		return "unknown"
	}
}

// PolarityEvent is a single DVS change-detection event.
type PolarityEvent struct {
	Ts       int64
	X        int16
	Y        int16
	Polarity bool
}

// FrameEvent is one captured frame, pixel data in row-major byte order.
type FrameEvent struct {
	TsStart  int64
	TsEnd    int64
	SizeX    int32
	SizeY    int32
	Channels int32
	Pixels   []byte
}

// IMUEvent is one inertial-measurement sample.
type IMUEvent struct {
	Ts          int64
	Accel       [3]float32
	Gyro        [3]float32
	Temperature float32
}

// SpecialEventKind distinguishes the out-of-band events carried in a
// SpecialPacket.
type SpecialEventKind uint8

const (
	SpecialGeneric SpecialEventKind = iota
	SpecialTimestampReset
	SpecialTimestampWrap
)

// SpecialEvent is an out-of-band control event, e.g. a device timestamp
// reset that modules must observe via their Reset hook.
type SpecialEvent struct {
	Ts   int64
	Kind SpecialEventKind
}

// Packet is a typed, fixed-layout array of events. Each concrete packet type
// below implements it.
type Packet interface {
	Type() PacketType
	Len() int
}

type PolarityPacket struct{ Events []PolarityEvent }

func (p *PolarityPacket) Type() PacketType { return PacketPolarity }
func (p *PolarityPacket) Len() int         { return len(p.Events) }

type FramePacket struct{ Events []FrameEvent }

func (p *FramePacket) Type() PacketType { return PacketFrame }
func (p *FramePacket) Len() int         { return len(p.Events) }

type IMUPacket struct{ Events []IMUEvent }

func (p *IMUPacket) Type() PacketType { return PacketIMU }
func (p *IMUPacket) Len() int         { return len(p.Events) }

type SpecialPacket struct{ Events []SpecialEvent }

func (p *SpecialPacket) Type() PacketType { return PacketSpecial }
func (p *SpecialPacket) Len() int         { return len(p.Events) }

// Container is an unordered group of packets keyed by type, passed by
// reference between modules in the same process. It is reference-counted:
// the driver bumps the count once per declared consumer before dispatch and
// the last consumer to call Release frees the underlying packets via
// onRelease (if set).
type Container struct {
	packets   map[PacketType]Packet
	refs      int32
	onRelease func(*Container)

	// CorrelationID identifies this container across log lines emitted by
	// every module that touches it, for tracing a batch of events through
	// the dataflow graph. It has no protocol meaning; a container produced
	// outside NewContainer (e.g. in a test) carries the zero UUID.
	CorrelationID uuid.UUID
}

// NewContainer wraps packets in a fresh Container with a single reference.
func NewContainer(packets ...Packet) *Container {
	c := &Container{packets: make(map[PacketType]Packet, len(packets)), refs: 1, CorrelationID: uuid.Must(uuid.NewV4())}
	for _, p := range packets {
		c.packets[p.Type()] = p
	}
	return c
}

// OnRelease installs a callback invoked when the last reference is released.
func (c *Container) OnRelease(fn func(*Container)) { c.onRelease = fn }

// Get returns the packet of type t, if present.
func (c *Container) Get(t PacketType) (Packet, bool) {
	p, ok := c.packets[t]
	return p, ok
}

// Put stores (or replaces) the packet for its own type.
func (c *Container) Put(p Packet) { c.packets[p.Type()] = p }

// Types returns the set of packet types currently present.
func (c *Container) Types() []PacketType {
	out := make([]PacketType, 0, len(c.packets))
	for t := range c.packets {
		out = append(out, t)
	}
	return out
}

// HasTimestampReset reports whether the container carries a special event
// signalling a device timestamp reset.
func (c *Container) HasTimestampReset() bool {
	p, ok := c.Get(PacketSpecial)
	if !ok {
		return false
	}
	sp := p.(*SpecialPacket)
	for _, ev := range sp.Events {
		if ev.Kind == SpecialTimestampReset {
			return true
		}
	}
	return false
}

// Retain bumps the reference count by n, once per downstream consumer the
// driver is about to hand this container to.
func (c *Container) Retain(n int32) {
	atomic.AddInt32(&c.refs, n)
}

// Release decrements the reference count; when it reaches zero the
// onRelease callback (if any) runs and the container's packets become
// unreferenced.
func (c *Container) Release() {
	if atomic.AddInt32(&c.refs, -1) == 0 && c.onRelease != nil {
		c.onRelease(c)
	}
}

// RefCount returns the current reference count.
func (c *Container) RefCount() int32 {
	return atomic.LoadInt32(&c.refs)
}
