package confserver

import (
	"fmt"
	"time"

	"github.com/dvhost/dvhost/instance"
	"github.com/dvhost/dvhost/types"
	"github.com/dvhost/dvhost/wire"
)

const mainloopPath = "mainloop"

// removeModulePollTimeout bounds how long RemoveModule waits for isRunning
// to settle false before surfacing an error to the requester, rather than
// forcing termination.
const removeModulePollTimeout = 5 * time.Second

// dispatch runs one request against the tree/registry/driver and returns
// the reply. Mutating actions take s.dispatchMu so their side effects (node
// creation, attribute writes, listener firing) are serialized across every
// connection: a request and its side effects run as one atomic unit under
// the tree's write lock.
func (s *Server) dispatch(connID uint64, req wire.Message) wire.Message {
	switch req.Action {
	case wire.ActionGetClientId:
		return wire.Message{Action: wire.ActionGetClientId, ID: connID}

	case wire.ActionNodeExists:
		_, err := s.tree.GetNode(req.Node)
		return valueReply(req, fmt.Sprint(err == nil))

	case wire.ActionAttrExists:
		n, err := s.tree.GetNode(req.Node)
		if err != nil {
			return errReply(req, err)
		}
		return valueReply(req, fmt.Sprint(n.AttrExists(req.Key, req.Type)))

	case wire.ActionGetChildren:
		n, err := s.tree.GetNode(req.Node)
		if err != nil {
			return errReply(req, err)
		}
		return valueReply(req, wire.JoinList(n.ChildNames()))

	case wire.ActionGetAttributes:
		n, err := s.tree.GetNode(req.Node)
		if err != nil {
			return errReply(req, err)
		}
		return valueReply(req, wire.JoinList(n.AttrKeys()))

	case wire.ActionGetType:
		a, err := s.attr(req)
		if err != nil {
			return errReply(req, err)
		}
		reply := wire.Ack(req.Action, req.ID)
		reply.Type = a.Value.Type()
		return reply

	case wire.ActionGetRanges:
		a, err := s.attr(req)
		if err != nil {
			return errReply(req, err)
		}
		reply := wire.Ack(req.Action, req.ID)
		reply.Ranges = a.Range.CanonicalString()
		return reply

	case wire.ActionGetFlags:
		a, err := s.attr(req)
		if err != nil {
			return errReply(req, err)
		}
		reply := wire.Ack(req.Action, req.ID)
		reply.Flags = int32(a.Flags)
		return reply

	case wire.ActionGetDescription:
		a, err := s.attr(req)
		if err != nil {
			return errReply(req, err)
		}
		reply := wire.Ack(req.Action, req.ID)
		reply.Description = a.Description
		return reply

	case wire.ActionGet:
		n, err := s.tree.GetNode(req.Node)
		if err != nil {
			return errReply(req, err)
		}
		v, err := n.GetAttr(req.Key, req.Type)
		if err != nil {
			return errReply(req, err)
		}
		reply := valueReply(req, v.CanonicalString())
		reply.Type = req.Type
		return reply

	case wire.ActionPut:
		return s.dispatchPut(req)

	case wire.ActionAddModule:
		return s.dispatchAddModule(req)

	case wire.ActionRemoveModule:
		return s.dispatchRemoveModule(req)

	default:
		return wire.Error(req.ID, fmt.Sprintf("unsupported action %s", req.Action))
	}
}

func (s *Server) attr(req wire.Message) (types.Attribute, error) {
	n, err := s.tree.GetNode(req.Node)
	if err != nil {
		return types.Attribute{}, err
	}
	return n.Attr(req.Key, req.Type)
}

func valueReply(req wire.Message, value string) wire.Message {
	reply := wire.Ack(req.Action, req.ID)
	reply.Value = value
	return reply
}

func errReply(req wire.Message, err error) wire.Message {
	return wire.Error(req.ID, err.Error())
}

func (s *Server) dispatchPut(req wire.Message) wire.Message {
	v, err := types.ParseValue(req.Type, req.Value)
	if err != nil {
		return errReply(req, err)
	}
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	n, err := s.tree.GetNode(req.Node)
	if err != nil {
		return errReply(req, err)
	}
	if err := n.PutAttr(req.Key, req.Type, v, false); err != nil {
		return errReply(req, err)
	}
	return wire.Ack(req.Action, req.ID)
}

func (s *Server) dispatchAddModule(req wire.Message) wire.Message {
	name := req.Node
	library := req.Key
	if !types.ValidKey(name) || name == "system" || name == mainloopPath {
		return errReply(req, fmt.Errorf("%w: module name %q", types.ErrInvalidName, name))
	}

	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	mainloop, err := s.tree.Resolve(s.tree.Root(), mainloopPath, true)
	if err != nil {
		return errReply(req, err)
	}
	if _, err := mainloop.GetChild(name); err == nil {
		return errReply(req, fmt.Errorf("%w: module %q", types.ErrNameInUse, name))
	}
	info, err := s.registry.Get(library)
	if err != nil {
		return errReply(req, err)
	}

	moduleID := nextModuleID(mainloop)
	inst := instance.New(mainloop, name, moduleID, info, s.cfg.logger)
	if info.Type != types.ModuleInput {
		inst.Node().CreateAttr("moduleInput", types.StringValue(""), types.FullStringRange(), types.FlagNormal,
			"name of the upstream module this instance reads its input from")
	}
	s.drv.AddModule(name, inst, info.Type)
	return wire.Ack(req.Action, req.ID)
}

// nextModuleID returns the smallest unused positive moduleId under
// mainloop.
func nextModuleID(mainloop types.Node) int32 {
	used := make(map[int32]bool)
	for _, childName := range mainloop.ChildNames() {
		child, err := mainloop.GetChild(childName)
		if err != nil {
			continue
		}
		if v, err := child.GetAttr("moduleId", types.TypeI32); err == nil {
			used[v.I32()] = true
		}
	}
	for id := int32(1); id < 1<<15; id++ {
		if !used[id] {
			return id
		}
	}
	return 0
}

func (s *Server) dispatchRemoveModule(req wire.Message) wire.Message {
	name := req.Node

	s.dispatchMu.Lock()
	mainloop, err := s.tree.GetNode(mainloopPath)
	if err != nil {
		s.dispatchMu.Unlock()
		return errReply(req, err)
	}
	child, err := mainloop.GetChild(name)
	if err != nil {
		s.dispatchMu.Unlock()
		return errReply(req, err)
	}
	s.dispatchMu.Unlock()

	if err := child.PutAttr("running", types.TypeBool, types.BoolValue(false), false); err != nil {
		return errReply(req, err)
	}

	if err := instance.WaitStopped(child, removeModulePollTimeout); err != nil {
		return errReply(req, err)
	}

	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	if err := s.drv.RemoveModule(name); err != nil {
		return errReply(req, err)
	}
	child.RemoveNode()
	return wire.Ack(req.Action, req.ID)
}
