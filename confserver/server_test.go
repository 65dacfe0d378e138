package confserver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dvhost/dvhost/confnode"
	"github.com/dvhost/dvhost/driver"
	"github.com/dvhost/dvhost/moduleinfo"
	"github.com/dvhost/dvhost/types"
	"github.com/dvhost/dvhost/wire"
)

func startTestServer(t *testing.T) (*Server, net.Conn, func()) {
	t.Helper()
	tree := confnode.NewTree()
	mainloop := tree.Root().AddChild("mainloop")
	mainloop.AddChild("cam").CreateAttr("logLevel", types.I32Value(3), types.I32Range(0, 6), types.FlagNormal, "")
	mainloop.AddChild("f").CreateAttr("thresh", types.I32Value(10), types.I32Range(0, 100), types.FlagNormal, "")

	registry := moduleinfo.NewRegistry()
	registry.Register("dvs128", types.ModuleInfo{
		Name: "dvs128",
		Type: types.ModuleInput,
		Functions: types.ModuleFuncs{
			ConfigInit: func(cfg types.Node) {},
			Init:       func(ctx context.Context, cfg types.Node) (interface{}, error) { return nil, nil },
			Run:        func(state interface{}, in *types.Container) (*types.Container, error) { return nil, nil },
			Exit:       func(state interface{}) {},
		},
	})
	registry.PopulateSystemTree(tree.Root().AddChild("system"))

	drv := driver.New(types.NopLogger())

	s := New(tree, registry, drv, WithAddr("127.0.0.1:0"))
	if err := s.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}
	go s.Serve()

	tickStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-tickStop:
				return
			case <-ticker.C:
				_ = drv.Tick()
			}
		}
	}()

	conn, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return s, conn, func() {
		close(tickStop)
		conn.Close()
		s.Close()
	}
}

func roundTrip(t *testing.T, conn net.Conn, req wire.Message) wire.Message {
	t.Helper()
	if err := wire.WriteFrame(conn, req); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply, err := wire.ReadFrame(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return reply
}

func TestS1BasicRoundTrip(t *testing.T) {
	_, conn, done := startTestServer(t)
	defer done()

	put := roundTrip(t, conn, wire.Message{Action: wire.ActionPut, ID: 1, Node: "/mainloop/cam/", Key: "logLevel", Type: types.TypeI32, Value: "6"})
	if put.Action != wire.ActionPut || put.ID != 1 {
		t.Fatalf("unexpected Put reply: %+v", put)
	}

	get := roundTrip(t, conn, wire.Message{Action: wire.ActionGet, ID: 2, Node: "/mainloop/cam/", Key: "logLevel", Type: types.TypeI32})
	if get.Action != wire.ActionGet || get.Value != "6" {
		t.Fatalf("unexpected Get reply: %+v", get)
	}
}

func TestS2OutOfRangeRejected(t *testing.T) {
	_, conn, done := startTestServer(t)
	defer done()

	put := roundTrip(t, conn, wire.Message{Action: wire.ActionPut, ID: 1, Node: "/mainloop/f/", Key: "thresh", Type: types.TypeI32, Value: "250"})
	if put.Action != wire.ActionError {
		t.Fatalf("expected Error reply, got %+v", put)
	}

	get := roundTrip(t, conn, wire.Message{Action: wire.ActionGet, ID: 2, Node: "/mainloop/f/", Key: "thresh", Type: types.TypeI32})
	if get.Value != "10" {
		t.Fatalf("expected prior value 10 to survive rejected Put, got %+v", get)
	}
}

func TestS3PushNotificationOrdering(t *testing.T) {
	_, connX, done := startTestServer(t)
	defer done()

	ack := roundTrip(t, connX, wire.Message{Action: wire.ActionAddPushClient, ID: 1})
	if ack.Action != wire.ActionAddPushClient {
		t.Fatalf("unexpected AddPushClient reply: %+v", ack)
	}

	connY, err := net.Dial("tcp", connX.RemoteAddr().String())
	if err != nil {
		t.Fatalf("dial Y: %v", err)
	}
	defer connY.Close()
	mustAck(t, roundTrip(t, connY, wire.Message{Action: wire.ActionPut, ID: 1, Node: "/mainloop/cam/", Key: "logLevel", Type: types.TypeI32, Value: "1"}))
	mustAck(t, roundTrip(t, connY, wire.Message{Action: wire.ActionPut, ID: 2, Node: "/mainloop/cam/", Key: "logLevel", Type: types.TypeI32, Value: "2"}))

	connX.SetReadDeadline(time.Now().Add(2 * time.Second))
	var values []string
	for len(values) < 2 {
		m, err := wire.ReadFrame(connX)
		if err != nil {
			t.Fatalf("reading push frame: %v", err)
		}
		if m.Action == wire.ActionPushMessageAttr && m.Key == "logLevel" {
			values = append(values, m.Value)
		}
	}
	if values[0] != "1" || values[1] != "2" {
		t.Fatalf("push values out of order: %v", values)
	}
}

func mustAck(t *testing.T, m wire.Message) {
	t.Helper()
	if m.Action == wire.ActionError {
		t.Fatalf("unexpected error reply: %+v", m)
	}
}

func TestS4AddModuleHappyPath(t *testing.T) {
	s, conn, done := startTestServer(t)
	defer done()

	reply := roundTrip(t, conn, wire.Message{Action: wire.ActionAddModule, ID: 1, Node: "cam0", Key: "dvs128"})
	if reply.Action != wire.ActionAddModule {
		t.Fatalf("unexpected AddModule reply: %+v", reply)
	}

	mainloop, err := s.tree.GetNode("mainloop")
	if err != nil {
		t.Fatalf("mainloop: %v", err)
	}
	cam0, err := mainloop.GetChild("cam0")
	if err != nil {
		t.Fatalf("cam0 not created: %v", err)
	}
	id, err := cam0.GetAttr("moduleId", types.TypeI32)
	if err != nil || id.I32() <= 0 {
		t.Fatalf("moduleId not a positive i16: %v %v", id, err)
	}
	lib, err := cam0.GetAttr("moduleLibrary", types.TypeString)
	if err != nil || lib.Str() != "dvs128" {
		t.Fatalf("moduleLibrary = %v, want dvs128 (err %v)", lib, err)
	}
	running, err := cam0.GetAttr("running", types.TypeBool)
	if err != nil || running.Bool() != false {
		t.Fatalf("running = %v, want false (err %v)", running, err)
	}
}

func TestS5RemoveModuleBlockedWhileRunning(t *testing.T) {
	s, conn, done := startTestServer(t)
	defer done()

	mustAck(t, roundTrip(t, conn, wire.Message{Action: wire.ActionAddModule, ID: 1, Node: "cam0", Key: "dvs128"}))

	mainloop, _ := s.tree.GetNode("mainloop")
	cam0, _ := mainloop.GetChild("cam0")
	if err := cam0.PutAttr("running", types.TypeBool, types.BoolValue(true), false); err != nil {
		t.Fatalf("set running: %v", err)
	}
	time.Sleep(50 * time.Millisecond) // let the background ticker observe running=true and start the instance

	reply := roundTrip(t, conn, wire.Message{Action: wire.ActionRemoveModule, ID: 2, Node: "cam0"})
	if reply.Action != wire.ActionRemoveModule {
		t.Fatalf("expected stop-first RemoveModule to eventually succeed, got %+v", reply)
	}
	if _, err := mainloop.GetChild("cam0"); err == nil {
		t.Fatal("cam0 should have been removed from the tree")
	}
}
