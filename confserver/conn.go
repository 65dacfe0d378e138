package confserver

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/dvhost/dvhost/types"
	"github.com/dvhost/dvhost/wire"
)

// writeDeadline bounds an individual write call. Reads while waiting for
// the next request are not deadlined — a connection may sit idle
// indefinitely.
const writeDeadline = 10 * time.Second

// conn handles one accepted connection: a read-dispatch-write loop, plus,
// once the client calls AddPushClient, a second goroutine draining its
// push queue. writeMu serializes both onto the same socket.
type conn struct {
	s    *Server
	nc   net.Conn
	id   uint64
	once sync.Once

	writeMu sync.Mutex

	pushing  bool
	pushDone chan struct{}
}

func newConn(s *Server, nc net.Conn, id uint64) *conn {
	return &conn{s: s, nc: nc, id: id}
}

func (c *conn) serve() {
	connectionsActive.Inc()
	defer connectionsActive.Dec()
	defer c.close()

	for {
		req, err := wire.ReadFrame(c.nc)
		if err != nil {
			return // EOF, transport error, or oversize payload: drop the connection
		}

		switch req.Action {
		case wire.ActionAddPushClient:
			c.startPushing()
			c.reply(wire.Ack(req.Action, req.ID))
		case wire.ActionRemovePushClient:
			c.stopPushing()
			c.reply(wire.Ack(req.Action, req.ID))
		case wire.ActionDumpTree:
			c.dumpTree(req)
		default:
			reply := c.s.dispatch(c.id, req)
			requestsTotal.WithLabelValues(req.Action.String(), outcomeOf(reply)).Inc()
			c.reply(reply)
		}
	}
}

func outcomeOf(reply wire.Message) string {
	if reply.Action == wire.ActionError {
		return "error"
	}
	return "ok"
}

func (c *conn) reply(m wire.Message) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.nc.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := wire.WriteFrame(c.nc, m); err != nil {
		c.s.cfg.logger.Warnf("connection %d: write failed: %v", c.id, err)
	}
}

func (c *conn) startPushing() {
	if c.pushing {
		return
	}
	c.pushing = true
	client := c.s.push.subscribe(c.id)
	c.pushDone = make(chan struct{})
	go c.drainPush(client)
}

func (c *conn) drainPush(client *pushClient) {
	defer close(c.pushDone)
	label := strconv.FormatUint(c.id, 10)
	for m := range client.queue {
		pushQueueDepthGauge.WithLabelValues(label).Set(float64(len(client.queue)))
		c.reply(m)
	}
}

func (c *conn) stopPushing() {
	if !c.pushing {
		return
	}
	c.pushing = false
	c.s.push.unsubscribe(c.id)
	<-c.pushDone
}

func (c *conn) close() {
	c.once.Do(func() {
		if c.pushing {
			c.stopPushing()
		}
		_ = c.nc.Close()
	})
}

// dumpTree streams the entire tree from the root as a sequence of
// DumpTreeNode/DumpTreeAttr frames, terminated by an acknowledging DumpTree
// frame: the client's consistent-snapshot bootstrap mechanism.
func (c *conn) dumpTree(req wire.Message) {
	c.dumpNode(c.s.tree.Root())
	c.reply(wire.Ack(wire.ActionDumpTree, req.ID))
}

func (c *conn) dumpNode(n types.Node) {
	c.reply(wire.Message{Action: wire.ActionDumpTreeNode, Node: n.Path(), NodeEvent: types.NodeAdded})
	for _, key := range n.AttrKeys() {
		a, err := n.Attr(key, types.TypeUnknown)
		if err != nil {
			continue
		}
		c.reply(wire.Message{
			Action:      wire.ActionDumpTreeAttr,
			Node:        n.Path(),
			Key:         a.Key,
			Type:        a.Value.Type(),
			Value:       a.Value.CanonicalString(),
			Ranges:      a.Range.CanonicalString(),
			Flags:       int32(a.Flags),
			Description: a.Description,
		})
	}
	for _, childName := range n.ChildNames() {
		child, err := n.GetChild(childName)
		if err != nil {
			continue
		}
		c.dumpNode(child)
	}
}

