package driver

import "github.com/dvhost/dvhost/types"

// backpressure decides, for an Input-type module, whether it is safe to
// produce a new container this tick: source modules drop data when a
// downstream consumer is still holding their previous output, rather than
// blocking the whole mainloop. Processor and Output modules
// never drop — the topological tick order already makes them wait their
// turn, since nothing downstream of them runs before they do.
type backpressure struct {
	pending map[string]*types.Container // last container handed out per Input module, nil once released
}

func newBackpressure() *backpressure {
	return &backpressure{pending: make(map[string]*types.Container)}
}

// admit reports whether name (an Input-type module) may run this tick. A
// pending container still held by a consumer blocks a fresh one from
// being produced.
func (b *backpressure) admit(name string) bool {
	c, ok := b.pending[name]
	return !ok || c == nil || c.RefCount() <= 0
}

func (b *backpressure) record(name string, out *types.Container) {
	b.pending[name] = out
}
