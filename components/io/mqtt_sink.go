package io

import (
	"bytes"
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dvhost/dvhost/types"
)

type mqttSinkState struct {
	client        mqtt.Client
	topic         string
	qos           byte
	eventsWritten int64
}

// NewMQTTSink declares the MQTTSink output module: publishes each tick's
// polarity events, encoded as one binary message, to an MQTT topic.
func NewMQTTSink() types.ModuleInfo {
	return types.ModuleInfo{
		Version:      1,
		Name:         "MQTTSink",
		Description:  "Writes polarity events to an MQTT topic.",
		Type:         types.ModuleOutput,
		InputStreams: inputPolarity("events", "Polarity events to publish."),
		Functions: types.ModuleFuncs{
			ConfigInit: func(cfg types.Node) {
				cfg.CreateAttr("brokerURL", types.StringValue("tcp://localhost:1883"), types.FullStringRange(), types.FlagNormal,
					"MQTT broker URL, e.g. tcp://host:1883")
				cfg.CreateAttr("topic", types.StringValue(""), types.FullStringRange(), types.FlagNormal,
					"MQTT topic to publish to")
				cfg.CreateAttr("clientId", types.StringValue(""), types.FullStringRange(), types.FlagNormal,
					"MQTT client identifier; empty generates one from the instance path")
				cfg.CreateAttr("qos", types.I32Value(0), types.I32Range(0, 2), types.FlagNormal, "MQTT publish QoS level")
				cfg.CreateAttr("eventsWritten", types.I64Value(0), types.I64Range(0, 1<<62),
					types.FlagReadOnly|types.FlagNoExport, "total events written so far")
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
				qos, _ := cfg.GetAttr("qos", types.TypeI32)

				opts := mqtt.NewClientOptions().AddBroker(broker.Str()).SetAutoReconnect(true)
				if clientID.Str() != "" {
					opts.SetClientID(clientID.Str())
				} else {
					opts.SetClientID(cfg.Path())
				}
				client := mqtt.NewClient(opts)
				if tok := client.Connect(); tok.WaitTimeout(10*time.Second) && tok.Error() != nil {
					return nil, fmt.Errorf("%w: mqtt connect: %v", types.ErrModuleInitFailed, tok.Error())
				}
				return &mqttSinkState{client: client, topic: topic.Str(), qos: byte(qos.I32())}, nil
			},
			Run: func(state interface{}, in *types.Container) (*types.Container, error) {
				st := state.(*mqttSinkState)
				pkt, ok := in.Get(types.PacketPolarity)
				if !ok {
					return nil, nil
				}
				src := pkt.(*types.PolarityPacket)
				var buf bytes.Buffer
				for _, e := range src.Events {
					if err := encodePolarityEvent(&buf, e); err != nil {
						return nil, fmt.Errorf("mqtt sink encode: %w", err)
					}
				}
				tok := st.client.Publish(st.topic, st.qos, false, buf.Bytes())
				if tok.WaitTimeout(5*time.Second) && tok.Error() != nil {
					return nil, fmt.Errorf("mqtt publish: %w", tok.Error())
				}
				st.eventsWritten += int64(len(src.Events))
				return nil, nil
			},
			Config: func(state interface{}, cfg types.Node) {
				st := state.(*mqttSinkState)
				_ = cfg.PutAttr("eventsWritten", types.TypeI64, types.I64Value(st.eventsWritten), true)
			},
			Exit: func(state interface{}) {
				state.(*mqttSinkState).client.Disconnect(250)
			},
		},
	}
}
