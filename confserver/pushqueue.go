package confserver

import (
	"sync"

	"github.com/dvhost/dvhost/types"
	"github.com/dvhost/dvhost/wire"
)

// pushQueueDepth bounds how many undelivered push messages a client may
// accumulate; once a client's queue is full, enqueueAll drops that client's
// oldest pending message, so a slow push client loses messages instead of
// stalling the broadcaster or any other subscriber. Ordering is guaranteed only within one client's
// own queue, not across independent subscribers.
const pushQueueDepth = 256

// pushClient is one subscriber's ordered outbound queue.
type pushClient struct {
	id    uint64
	queue chan wire.Message
}

// pushHub tracks every subscribed connection and fans tree mutations out to
// each one's ordered queue, preserving per-subscriber causal order (spec
// §5). It is installed as the tree's global listener.
type pushHub struct {
	mu      sync.RWMutex
	clients map[uint64]*pushClient
}

func newPushHub() *pushHub {
	return &pushHub{clients: make(map[uint64]*pushClient)}
}

// subscribe registers id as a push client and returns its queue.
func (h *pushHub) subscribe(id uint64) *pushClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := &pushClient{id: id, queue: make(chan wire.Message, pushQueueDepth)}
	h.clients[id] = c
	return c
}

// unsubscribe removes id and closes its queue; messages already queued stay
// in the closed channel for the client's writer goroutine to drain.
func (h *pushHub) unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		close(c.queue)
		delete(h.clients, id)
	}
}

func (h *pushHub) snapshot() []*pushClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*pushClient, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *pushHub) broadcastNode(event types.NodeEvent, path, childName string) {
	m := wire.Message{Action: wire.ActionPushMessageNode, Node: path + childName, NodeEvent: event}
	h.enqueueAll(m)
}

func (h *pushHub) broadcastAttr(event types.AttrEvent, path, key string, t types.Type, value types.Value) {
	m := wire.Message{
		Action:    wire.ActionPushMessageAttr,
		Node:      path,
		Key:       key,
		Type:      t,
		Value:     value.CanonicalString(),
		AttrEvent: event,
	}
	h.enqueueAll(m)
}

// enqueueAll offers m to every client's queue without blocking the
// broadcaster on a slow or stalled client: a full queue drops the oldest
// pending message rather than stalling the mutation that produced m, since
// the mutation is already durable in the tree before the push is queued.
func (h *pushHub) enqueueAll(m wire.Message) {
	for _, c := range h.snapshot() {
		select {
		case c.queue <- m:
		default:
			select {
			case <-c.queue:
			default:
			}
			select {
			case c.queue <- m:
			default:
			}
		}
	}
}
