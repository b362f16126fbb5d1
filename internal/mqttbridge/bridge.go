// Package mqttbridge publishes decoded MAX! traffic to an MQTT broker and
// turns commands received from it into radio messages.
//
// Topics, below a configurable prefix:
//
//	<prefix>/<address>/<type>       decoded messages sent by a device (JSON)
//	<prefix>/bridge/status          gateway status, retained; "offline" as will
//	<prefix>/<address>/set          {"mode":"MANUAL","temperature":21.5}
//	<prefix>/<address>/time/set     any payload, sends the current time
//	<prefix>/<address>/pair         any payload, answers with a pair pong
package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/muurk/maxcul/internal/event"
	"github.com/muurk/maxcul/internal/logging"
	"github.com/muurk/maxcul/internal/moritz"
	"github.com/muurk/maxcul/internal/transceiver"
)

const (
	// ConnectTimeout bounds the initial broker connection.
	ConnectTimeout = 10 * time.Second

	// PublishTimeout bounds waiting for a publish on the dispatch path.
	PublishTimeout = 2 * time.Second

	statusTopic = "bridge/status"
)

// Controller is the part of the transceiver commands are sent through.
type Controller interface {
	SendTemperatureAndMode(addr string, mode moritz.ThermostatMode, temp float64) (<-chan error, error)
	SendTimeInformation(addr string) (<-chan error, error)
	SendPairPong(addr string) (<-chan error, error)
}

// Options configures the bridge.
type Options struct {
	Broker   string
	ClientID string
	Prefix   string
	Username string
	Password string
}

// SetCommand is the payload of a set topic.
type SetCommand struct {
	Mode        string  `json:"mode"`
	Temperature float64 `json:"temperature"`
}

// Bridge implements transceiver.Dispatcher and transceiver.StatusListener.
type Bridge struct {
	client mqtt.Client
	ctl    Controller
	prefix string
	now    func() time.Time
}

// New creates a bridge. Nothing connects until Connect.
func New(opts Options, ctl Controller) *Bridge {
	b := &Bridge{
		ctl:    ctl,
		prefix: strings.Trim(opts.Prefix, "/"),
		now:    time.Now,
	}

	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
		co.SetPassword(opts.Password)
	}
	co.SetAutoReconnect(true)
	co.SetWill(b.topic(statusTopic), "offline", 1, true)
	co.SetOnConnectHandler(func(c mqtt.Client) {
		logging.Info("Connected to MQTT broker", zap.String("broker", opts.Broker))
		b.subscribe(c)
	})
	co.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logging.Warn("Lost MQTT connection", zap.String("broker", opts.Broker), zap.Error(err))
	})

	b.client = mqtt.NewClient(co)
	return b
}

// Connect connects to the broker. The client keeps reconnecting afterwards.
func (b *Bridge) Connect(ctx context.Context) error {
	token := b.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(ConnectTimeout):
		return fmt.Errorf("connect to MQTT broker: timeout after %s", ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to MQTT broker: %w", err)
	}
	return nil
}

// Close publishes the offline status and disconnects.
func (b *Bridge) Close() {
	if !b.client.IsConnected() {
		return
	}
	b.publish(b.topic(statusTopic), true, []byte("offline"))
	b.client.Disconnect(250)
}

func (b *Bridge) topic(suffix string) string {
	return b.prefix + "/" + suffix
}

// MessageTopic returns the topic a decoded message is published to.
func (b *Bridge) MessageTopic(msg moritz.Message) string {
	h := msg.Header()
	return b.topic(strings.ToUpper(h.Source) + "/" + h.Type.String())
}

// Dispatch implements transceiver.Dispatcher.
func (b *Bridge) Dispatch(msg moritz.Incoming) {
	ev := event.FromMessage(msg, b.now())
	b.publish(b.MessageTopic(msg), ev.Retained(), ev.JSON())
}

// GatewayStatus implements transceiver.StatusListener.
func (b *Bridge) GatewayStatus(s transceiver.Status) {
	ev := event.Gateway(s.Online, s.Version, b.now())
	b.publish(b.topic(statusTopic), true, ev.JSON())
}

func (b *Bridge) publish(topic string, retained bool, payload []byte) {
	token := b.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(PublishTimeout) {
		logging.Warn("MQTT publish timed out", zap.String("topic", topic))
		return
	}
	if err := token.Error(); err != nil {
		logging.Warn("MQTT publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

func (b *Bridge) subscribe(c mqtt.Client) {
	subs := map[string]mqtt.MessageHandler{
		b.topic("+/set"):      b.handleSet,
		b.topic("+/time/set"): b.handleTime,
		b.topic("+/pair"):     b.handlePair,
	}
	for topic, handler := range subs {
		if token := c.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
			logging.Error("MQTT subscribe failed", zap.String("topic", topic), zap.Error(token.Error()))
		}
	}
}

// deviceFromTopic extracts the address from <prefix>/<address>/... topics.
func (b *Bridge) deviceFromTopic(topic string) (string, error) {
	rest, ok := strings.CutPrefix(topic, b.prefix+"/")
	if !ok {
		return "", fmt.Errorf("topic %q outside prefix %q", topic, b.prefix)
	}
	addr, _, _ := strings.Cut(rest, "/")
	if !transceiver.IsDeviceAddress(addr) {
		return "", fmt.Errorf("%w: %q", transceiver.ErrInvalidAddress, addr)
	}
	return strings.ToUpper(addr), nil
}

// ParseSetCommand decodes and checks a set payload.
func ParseSetCommand(payload []byte) (moritz.ThermostatMode, float64, error) {
	var cmd SetCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return 0, 0, fmt.Errorf("invalid set command: %w", err)
	}
	mode := moritz.ModeManual
	if cmd.Mode != "" {
		m, err := moritz.ParseThermostatMode(cmd.Mode)
		if err != nil {
			return 0, 0, err
		}
		mode = m
	}
	if cmd.Temperature < 0 || cmd.Temperature > moritz.MaxSetTemperature {
		return 0, 0, fmt.Errorf("temperature %v out of range 0..%v", cmd.Temperature, moritz.MaxSetTemperature)
	}
	return mode, cmd.Temperature, nil
}

func (b *Bridge) handleSet(_ mqtt.Client, msg mqtt.Message) {
	addr, err := b.deviceFromTopic(msg.Topic())
	if err != nil {
		logging.Warn("Ignoring MQTT command", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}
	mode, temp, err := ParseSetCommand(msg.Payload())
	if err != nil {
		logging.Warn("Ignoring MQTT command",
			zap.String("topic", msg.Topic()),
			zap.ByteString("payload", msg.Payload()),
			zap.Error(err),
		)
		return
	}
	logging.Info("MQTT set command",
		zap.String("address", addr),
		zap.Stringer("mode", mode),
		zap.Float64("temperature", temp),
	)
	b.track(addr, "set temperature")(b.ctl.SendTemperatureAndMode(addr, mode, temp))
}

func (b *Bridge) handleTime(_ mqtt.Client, msg mqtt.Message) {
	addr, err := b.deviceFromTopic(msg.Topic())
	if err != nil {
		logging.Warn("Ignoring MQTT command", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}
	b.track(addr, "time information")(b.ctl.SendTimeInformation(addr))
}

func (b *Bridge) handlePair(_ mqtt.Client, msg mqtt.Message) {
	addr, err := b.deviceFromTopic(msg.Topic())
	if err != nil {
		logging.Warn("Ignoring MQTT command", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}
	b.track(addr, "pair pong")(b.ctl.SendPairPong(addr))
}

// track logs the outcome of a queued send without blocking the MQTT
// callback.
func (b *Bridge) track(addr, what string) func(<-chan error, error) {
	return func(result <-chan error, err error) {
		if err != nil {
			logging.Warn("Cannot queue "+what, zap.String("address", addr), zap.Error(err))
			return
		}
		go func() {
			if err := <-result; err != nil {
				logging.Warn("Sending "+what+" failed", zap.String("address", addr), zap.Error(err))
				return
			}
			logging.Debug("Sent "+what, zap.String("address", addr))
		}()
	}
}
