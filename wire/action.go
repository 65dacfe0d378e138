// Package wire implements the length-prefixed binary request/response
// protocol the config server speaks: a u32 size prefix followed by a
// self-describing payload carrying one of a fixed enum of actions.
package wire

import "github.com/dvhost/dvhost/types"

// Action is the fixed vocabulary of client requests and server replies.
type Action uint8

const (
	ActionNodeExists Action = iota
	ActionAttrExists
	ActionGetChildren
	ActionGetAttributes
	ActionGetType
	ActionGetRanges
	ActionGetFlags
	ActionGetDescription
	ActionGet
	ActionPut
	ActionAddModule
	ActionRemoveModule
	ActionAddPushClient
	ActionRemovePushClient
	ActionPushMessageNode
	ActionPushMessageAttr
	ActionDumpTree
	ActionDumpTreeNode
	ActionDumpTreeAttr
	ActionGetClientId
	ActionError
)

var actionNames = map[Action]string{
	ActionNodeExists:       "NodeExists",
	ActionAttrExists:       "AttrExists",
	ActionGetChildren:      "GetChildren",
	ActionGetAttributes:    "GetAttributes",
	ActionGetType:          "GetType",
	ActionGetRanges:        "GetRanges",
	ActionGetFlags:         "GetFlags",
	ActionGetDescription:   "GetDescription",
	ActionGet:              "Get",
	ActionPut:              "Put",
	ActionAddModule:        "AddModule",
	ActionRemoveModule:     "RemoveModule",
	ActionAddPushClient:    "AddPushClient",
	ActionRemovePushClient: "RemovePushClient",
	ActionPushMessageNode:  "PushMessageNode",
	ActionPushMessageAttr:  "PushMessageAttr",
	ActionDumpTree:         "DumpTree",
	ActionDumpTreeNode:     "DumpTreeNode",
	ActionDumpTreeAttr:     "DumpTreeAttr",
	ActionGetClientId:      "GetClientId",
	ActionError:            "Error",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return "Unknown"
}

// MaxPayloadBytes is the wire size cap; an oversize payload closes the
// connection with ErrOversize.
const MaxPayloadBytes = 8 * 1024

// Message is the self-describing payload record carried by every frame.
// Not every field is populated on every action; the reply rules differ
// per action.
type Message struct {
	Action      Action         `json:"action"`
	ID          uint64         `json:"id"`
	Node        string         `json:"node,omitempty"`
	Key         string         `json:"key,omitempty"`
	Type        types.Type     `json:"type,omitempty"`
	Value       string         `json:"value"`
	Ranges      string         `json:"ranges,omitempty"`
	Flags       int32          `json:"flags,omitempty"`
	Description string         `json:"description,omitempty"`
	NodeEvent   types.NodeEvent `json:"nodeEvent,omitempty"`
	AttrEvent   types.AttrEvent `json:"attrEvent,omitempty"`
}

// Error builds an ActionError reply preserving id, with a human-readable
// reason in Value.
func Error(id uint64, reason string) Message {
	return Message{Action: ActionError, ID: id, Value: reason}
}

// Ack builds a bare success reply echoing action and id, used for
// non-query actions (Put, AddModule, RemoveModule, AddPushClient, ...).
func Ack(action Action, id uint64) Message {
	return Message{Action: action, ID: id}
}
