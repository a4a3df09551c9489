package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ess-reader/ess-reader/pkg/errdefs"
	"github.com/ess-reader/ess-reader/pkg/types"
)

const (
	mqttConnectTimeout = 10 * time.Second
	statusOnline       = "online"
	statusOffline      = "offline"
)

// publisher is the part of mqtt.Client the sink uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Message is one retained MQTT message produced for a reading.
type Message struct {
	Topic   string
	Payload []byte
}

// MQTT publishes readings as retained JSON messages below a topic prefix.
type MQTT struct {
	client publisher
	topic  string
}

// NewMQTT connects to broker and marks the topic prefix online. A last will
// marks it offline when the connection drops.
func NewMQTT(broker, topic string) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("ess-reader-" + uuid.NewString()[:8])
	opts.SetKeepAlive(30 * time.Second)
	opts.SetWill(topic+"/status", statusOffline, 0, true)
	opts.OnConnect = func(c mqtt.Client) {
		logrus.WithField("broker", broker).Info("mqtt connected")
		c.Publish(topic+"/status", 0, true, statusOnline).Wait()
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logrus.WithField("broker", broker).Warnf("mqtt connection lost: %v", err)
	}

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, errdefs.Transport(errdefs.StageSink, fmt.Errorf("timed out connecting to mqtt broker %s", broker))
	}
	if err := token.Error(); err != nil {
		return nil, errdefs.Transport(errdefs.StageSink, fmt.Errorf("failed to connect to mqtt broker %s: %w", broker, err))
	}

	return &MQTT{client: c, topic: topic}, nil
}

// Messages returns the messages published for r: the battery block and one
// message per inverter channel.
func Messages(topic string, r types.Reading) ([]Message, error) {
	type batteryPayload struct {
		Time time.Time `json:"time"`
		types.BatteryGrid
	}
	type channelPayload struct {
		Time time.Time `json:"time"`
		types.PowerReading
	}

	b, err := json.Marshal(batteryPayload{Time: r.Time, BatteryGrid: r.Battery})
	if err != nil {
		return nil, err
	}
	msgs := []Message{{Topic: topic + "/battery", Payload: b}}

	for _, s := range r.Inverter.Sources() {
		b, err := json.Marshal(channelPayload{Time: r.Time, PowerReading: s.PowerReading})
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, Message{Topic: topic + "/" + s.Source, Payload: b})
	}
	return msgs, nil
}

// Send publishes one message per topic in order and stops at the first
// failure. Messages already published stay retained on the broker.
func (s *MQTT) Send(ctx context.Context, r types.Reading) error {
	msgs, err := Messages(s.topic, r)
	if err != nil {
		return errdefs.Transport(errdefs.StageSink, fmt.Errorf("failed to encode reading: %w", err))
	}

	for _, m := range msgs {
		token := s.client.Publish(m.Topic, 0, true, m.Payload)
		select {
		case <-token.Done():
		case <-ctx.Done():
			return errdefs.Transport(errdefs.StageSink, fmt.Errorf("publish to %s: %w", m.Topic, ctx.Err()))
		}
		if err := token.Error(); err != nil {
			return errdefs.Transport(errdefs.StageSink, fmt.Errorf("failed to publish to %s: %w", m.Topic, err))
		}
	}

	logrus.WithFields(logrus.Fields{
		"topic":    s.topic,
		"messages": len(msgs),
	}).Debug("reading published to mqtt")
	return nil
}

// Close marks the topic prefix offline and disconnects.
func (s *MQTT) Close() error {
	c, ok := s.client.(mqtt.Client)
	if !ok {
		return nil
	}
	c.Publish(s.topic+"/status", 0, true, statusOffline).WaitTimeout(time.Second)
	c.Disconnect(250)
	return nil
}
