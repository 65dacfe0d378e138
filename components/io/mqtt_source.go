package io

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dvhost/dvhost/types"
)

type mqttSourceState struct {
	client     mqtt.Client
	mu         sync.Mutex
	queue      []types.PolarityEvent
	eventsRead int64
}

// NewMQTTSource declares the MQTTSource input module: subscribes to a
// topic carrying the same polarity-event record encoding as the other
// stream modules, one message per event batch.
func NewMQTTSource() types.ModuleInfo {
	return types.ModuleInfo{
		Version:       1,
		Name:          "MQTTSource",
		Description:   "Reads polarity events from an MQTT topic.",
		Type:          types.ModuleInput,
		OutputStreams: outputPolarity("events", "Polarity events received from the broker."),
		Functions: types.ModuleFuncs{
			ConfigInit: func(cfg types.Node) {
				cfg.CreateAttr("brokerURL", types.StringValue("tcp://localhost:1883"), types.FullStringRange(), types.FlagNormal,
					"MQTT broker URL, e.g. tcp://host:1883")
				cfg.CreateAttr("topic", types.StringValue(""), types.FullStringRange(), types.FlagNormal,
					"MQTT topic to subscribe to")
				cfg.CreateAttr("clientId", types.StringValue(""), types.FullStringRange(), types.FlagNormal,
					"MQTT client identifier; empty generates one from the instance path")
				cfg.CreateAttr("eventsRead", types.I64Value(0), types.I64Range(0, 1<<62),
					types.FlagReadOnly|types.FlagNoExport, "total events read so far")
			},
			Init: func(ctx context.Context, cfg types.Node) (interface{}, error) {
				broker, err := cfg.GetAttr("brokerURL", types.TypeString)
				if err != nil {
					return nil, err
				}
				topic, err := cfg.GetAttr("topic", types.TypeString)
				if err != nil {
					return nil, err
				}
				clientID, _ := cfg.GetAttr("clientId", types.TypeString)

				st := &mqttSourceState{}
				opts := mqtt.NewClientOptions().AddBroker(broker.Str()).SetAutoReconnect(true)
				if clientID.Str() != "" {
					opts.SetClientID(clientID.Str())
				} else {
					opts.SetClientID(cfg.Path())
				}
				opts.SetDefaultPublishHandler(func(c mqtt.Client, msg mqtt.Message) {
					st.onMessage(msg.Payload())
				})
				st.client = mqtt.NewClient(opts)
				if tok := st.client.Connect(); tok.WaitTimeout(10*time.Second) && tok.Error() != nil {
					return nil, fmt.Errorf("%w: mqtt connect: %v", types.ErrModuleInitFailed, tok.Error())
				}
				if tok := st.client.Subscribe(topic.Str(), 0, func(c mqtt.Client, msg mqtt.Message) {
					st.onMessage(msg.Payload())
				}); tok.WaitTimeout(10*time.Second) && tok.Error() != nil {
					return nil, fmt.Errorf("%w: mqtt subscribe: %v", types.ErrModuleInitFailed, tok.Error())
				}
				return st, nil
			},
			Run: func(state interface{}, in *types.Container) (*types.Container, error) {
				st := state.(*mqttSourceState)
				st.mu.Lock()
				events := st.queue
				st.queue = nil
				st.mu.Unlock()
				if len(events) == 0 {
					return nil, nil
				}
				st.eventsRead += int64(len(events))
				return types.NewContainer(&types.PolarityPacket{Events: events}), nil
			},
			Config: func(state interface{}, cfg types.Node) {
				st := state.(*mqttSourceState)
				_ = cfg.PutAttr("eventsRead", types.TypeI64, types.I64Value(st.eventsRead), true)
			},
			Exit: func(state interface{}) {
				st := state.(*mqttSourceState)
				st.client.Disconnect(250)
			},
		},
	}
}

func (st *mqttSourceState) onMessage(payload []byte) {
	r := bytes.NewReader(payload)
	var events []types.PolarityEvent
	for {
		e, err := decodePolarityEvent(r)
		if err != nil {
			break
		}
		events = append(events, e)
	}
	if len(events) == 0 {
		return
	}
	st.mu.Lock()
	st.queue = append(st.queue, events...)
	st.mu.Unlock()
}
