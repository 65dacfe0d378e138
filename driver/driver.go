// Package driver implements the mainloop: per-tick topological execution
// of module instances, config-dirty application between ticks, and
// reference-counted packet handoff between producers and consumers.
package driver

import (
	"fmt"
	"sync"
	"time"

	"github.com/dvhost/dvhost/instance"
	"github.com/dvhost/dvhost/types"
)

// node is one module instance wired into the dataflow graph.
type node struct {
	name string
	inst *instance.Instance
	typ  types.ModuleType
}

// Driver owns the dataflow graph and drives it forward one tick at a
// time. Wiring (AddModule/RemoveModule/Connect) may be called from any
// goroutine; it only ever mutates the graph under mu, and the topo order
// is recomputed lazily, the next time Tick runs.
type Driver struct {
	mu      sync.Mutex
	nodes   map[string]*node
	order   []string
	edges   map[string][]string // producer name -> consumer names
	dirty   bool
	logger  types.Logger
	bp      *backpressure
	outputs map[string]*types.Container // last output produced by each node, this tick
}

// New returns an empty driver.
func New(logger types.Logger) *Driver {
	if logger == nil {
		logger = types.NopLogger()
	}
	return &Driver{
		nodes:   make(map[string]*node),
		edges:   make(map[string][]string),
		logger:  logger,
		bp:      newBackpressure(),
		outputs: make(map[string]*types.Container),
	}
}

// AddModule wires a new instance into the graph.
func (d *Driver) AddModule(name string, inst *instance.Instance, typ types.ModuleType) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nodes[name] = &node{name: name, inst: inst, typ: typ}
	d.dirty = true
}

// RemoveModule shuts the instance down and removes it (and any edges
// touching it) from the graph. Per spec, removal is refused while the
// instance is still Running or Initializing — callers must set the
// "running" attribute false and wait for it to settle first.
func (d *Driver) RemoveModule(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.nodes[name]
	if !ok {
		return fmt.Errorf("%w: module %q", types.ErrNotFound, name)
	}
	if st := n.inst.State(); st == instance.StateRunning || st == instance.StateInitializing {
		return fmt.Errorf("%w: module %q is still %s", types.ErrModuleRunning, name, st)
	}
	n.inst.Shutdown()
	delete(d.nodes, name)
	delete(d.edges, name)
	for producer, consumers := range d.edges {
		d.edges[producer] = removeString(consumers, name)
	}
	d.dirty = true
	return nil
}

// Connect declares that consumer reads producer's output every tick.
func (d *Driver) Connect(producer, consumer string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.nodes[producer]; !ok {
		return fmt.Errorf("%w: producer %q", types.ErrNotFound, producer)
	}
	if _, ok := d.nodes[consumer]; !ok {
		return fmt.Errorf("%w: consumer %q", types.ErrNotFound, consumer)
	}
	d.edges[producer] = append(d.edges[producer], consumer)
	d.dirty = true
	return nil
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

func (d *Driver) recomputeOrderLocked() error {
	names := make([]string, 0, len(d.nodes))
	for n := range d.nodes {
		names = append(names, n)
	}
	order, err := topoSort(names, d.edges)
	if err != nil {
		return err
	}
	d.order = order
	d.dirty = false
	return nil
}

// Tick runs one full mainloop pass: it recomputes the topological order if
// the graph changed since the last tick, then runs each node once, in
// order, merging each node's declared producers' last outputs into its
// input container and retaining it once per consumer before handoff.
func (d *Driver) Tick() error {
	start := time.Now()
	defer func() { tickDuration.Observe(time.Since(start).Seconds()) }()

	d.mu.Lock()
	if d.dirty {
		if err := d.recomputeOrderLocked(); err != nil {
			d.mu.Unlock()
			return err
		}
	}
	order := append([]string(nil), d.order...)
	d.mu.Unlock()

	for _, name := range order {
		d.tickNode(name)
	}
	return nil
}

func (d *Driver) tickNode(name string) {
	d.mu.Lock()
	n, ok := d.nodes[name]
	consumers := append([]string(nil), d.edges[name]...)
	d.mu.Unlock()
	if !ok {
		return
	}

	if n.typ == types.ModuleInput && !d.bp.admit(name) {
		packetsDropped.WithLabelValues(name).Inc()
		return
	}

	in := d.mergeInputsLocked(name)
	out, err := n.inst.Tick(in)
	if in != nil {
		in.Release()
	}
	if err != nil {
		moduleTickErrors.WithLabelValues(name).Inc()
		if in != nil {
			d.logger.Errorf("%s (container %s): %v", name, in.CorrelationID, err)
		} else {
			d.logger.Errorf("%s: %v", name, err)
		}
		return
	}

	d.mu.Lock()
	d.outputs[name] = out
	d.mu.Unlock()

	if out != nil && len(consumers) > 0 {
		// out starts with one reference, owned by this producer. Hand
		// full ownership to the consumers: add one reference per
		// consumer, then drop the producer's own, so the container is
		// freed exactly when the last consumer releases it.
		out.Retain(int32(len(consumers)))
		out.Release()
		if n.typ == types.ModuleInput {
			d.bp.record(name, out)
		}
	}
}

// mergeInputsLocked collects the still-unreleased outputs of name's
// declared producers into one container. Most nodes have exactly one
// producer, in which case the producer's container is passed straight
// through and this is a no-op copy.
func (d *Driver) mergeInputsLocked(name string) *types.Container {
	d.mu.Lock()
	defer d.mu.Unlock()

	var producers []string
	for producer, consumers := range d.edges {
		for _, c := range consumers {
			if c == name {
				producers = append(producers, producer)
			}
		}
	}
	if len(producers) == 0 {
		return nil
	}
	if len(producers) == 1 {
		return d.outputs[producers[0]]
	}

	merged := types.NewContainer()
	for _, p := range producers {
		src := d.outputs[p]
		if src == nil {
			continue
		}
		for _, t := range src.Types() {
			pkt, _ := src.Get(t)
			merged.Put(pkt)
		}
		// This consumer's share of src's reference count was already
		// accounted for by Retain(len(consumers)) in tickNode; it's
		// released here rather than passed through, since the consumer
		// receives the new merged container instead of src itself.
		src.Release()
	}
	return merged
}
