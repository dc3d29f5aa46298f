package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nerrad567/relay-gateway/internal/automation"
	"github.com/nerrad567/relay-gateway/internal/dispatch"
	"github.com/nerrad567/relay-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/relay-gateway/internal/infrastructure/mqtt"
)

const (
	// mqttOutboxSize bounds publishes queued by the worker goroutine.
	mqttOutboxSize = 256

	// mqttInboxSize bounds broker commands waiting for the worker.
	mqttInboxSize = 64

	// defaultMQTTCommandTimeout bounds a command submitted from MQTT.
	defaultMQTTCommandTimeout = 15 * time.Second
)

// MQTTClient is the part of mqtt.Client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Topics() mqtt.Topics
	QoS() byte
}

// Submitter queues a command and waits for its Response.
type Submitter interface {
	Submit(ctx context.Context, cmd dispatch.Command) (dispatch.Response, error)
}

type publication struct {
	topic   string
	payload []byte
}

// MQTTBridge mirrors worker events onto retained MQTT topics and turns
// command messages into worker commands. It implements dispatch.Observer.
//
// Observer callbacks run on the worker goroutine, so publishes are queued
// and sent from Run. When the queue is full the publication is dropped.
//
// Broker commands are validated in the message handler and submitted one
// at a time, in arrival order, by a goroutine Run owns.
type MQTTBridge struct {
	client  MQTTClient
	topics  mqtt.Topics
	submit  Submitter
	logger  *logging.Logger
	timeout time.Duration
	outbox  chan publication
	inbox   chan dispatch.Command
	resync  chan struct{}
	failed  atomic.Uint64
}

// NewMQTTBridge creates a bridge. timeout bounds each command received
// from the broker; zero selects 15 seconds.
func NewMQTTBridge(client MQTTClient, submit Submitter, logger *logging.Logger, timeout time.Duration) *MQTTBridge {
	if timeout <= 0 {
		timeout = defaultMQTTCommandTimeout
	}
	return &MQTTBridge{
		client:  client,
		topics:  client.Topics(),
		submit:  submit,
		logger:  logger,
		timeout: timeout,
		outbox:  make(chan publication, mqttOutboxSize),
		inbox:   make(chan dispatch.Command, mqttInboxSize),
		resync:  make(chan struct{}, 1),
	}
}

// Resync asks Run to republish every relay and the status, for example
// after the broker connection is re-established. It never blocks.
func (b *MQTTBridge) Resync() {
	select {
	case b.resync <- struct{}{}:
	default:
	}
}

// Failed returns how many broker commands the worker rejected or that
// could not be submitted.
func (b *MQTTBridge) Failed() uint64 {
	return b.failed.Load()
}

// Run subscribes to the command topics, publishes every relay and the
// status, then sends queued publications until ctx is cancelled.
func (b *MQTTBridge) Run(ctx context.Context) error {
	qos := b.client.QoS()
	if err := b.client.Subscribe(b.topics.AllRelaySets(), qos, b.handleRelaySet); err != nil {
		return fmt.Errorf("subscribing to relay commands: %w", err)
	}
	if err := b.client.Subscribe(b.topics.PresetSet(), qos, b.handlePresetSet); err != nil {
		return fmt.Errorf("subscribing to preset commands: %w", err)
	}
	b.logger.Info("mqtt bridge started",
		"relay_commands", b.topics.AllRelaySets(),
		"preset_commands", b.topics.PresetSet(),
	)

	commandsDone := make(chan struct{})
	go func() {
		defer close(commandsDone)
		b.runCommands(ctx)
	}()

	b.queueSnapshot(ctx)

	for {
		select {
		case <-ctx.Done():
			<-commandsDone
			return nil
		case <-b.resync:
			b.queueSnapshot(ctx)
		case p := <-b.outbox:
			if err := b.client.Publish(p.topic, p.payload, qos, true); err != nil {
				b.logger.Warn("mqtt publish failed", "topic", p.topic, "error", err)
			}
		}
	}
}

// runCommands submits broker commands until ctx is cancelled.
func (b *MQTTBridge) runCommands(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-b.inbox:
			if err := b.run(ctx, cmd); err != nil {
				b.failed.Add(1)
				b.logger.Warn("mqtt command failed", "kind", string(cmd.Kind), "target", cmd.Target, "error", err)
			}
		}
	}
}

// queueSnapshot queues the retained state of every relay and the status.
func (b *MQTTBridge) queueSnapshot(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	resp, err := b.submit.Submit(ctx, dispatch.SystemStatus())
	if err == nil {
		err = resp.Err()
	}
	if err != nil {
		b.logger.Warn("mqtt status snapshot unavailable", "error", err)
		return
	}
	if status, ok := resp.Value.(dispatch.SystemStatusValue); ok {
		for _, snap := range status.Relays {
			b.queueJSON(b.topics.RelayState(snap.Name), snap)
		}
		b.queueStatus(status)
	}
}

// CommandCompleted implements dispatch.Observer.
func (b *MQTTBridge) CommandCompleted(dispatch.Kind, string, time.Duration) {}

// CommandFailed implements dispatch.Observer.
func (b *MQTTBridge) CommandFailed(dispatch.Kind, error) {}

// StateChanged implements dispatch.Observer. Each changed relay gets its
// retained state and the system status is republished. A refresh
// republishes every relay.
func (b *MQTTBridge) StateChanged(event dispatch.Event) {
	relays := event.Relays
	if event.Type == dispatch.EventRegistryRefreshed {
		relays = event.Status.Relays
	}
	for _, snap := range relays {
		b.queueJSON(b.topics.RelayState(snap.Name), snap)
	}
	b.queueStatus(event.Status)
}

func (b *MQTTBridge) queueStatus(status dispatch.SystemStatusValue) {
	b.queueJSON(b.topics.Status(), status)
}

func (b *MQTTBridge) queueJSON(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logger.Error("mqtt payload encoding failed", "topic", topic, "error", err)
		return
	}
	select {
	case b.outbox <- publication{topic: topic, payload: payload}:
	default:
		b.logger.Warn("mqtt outbox full, dropping publication", "topic", topic)
	}
}

// handleRelaySet handles <prefix>/relay/<name>/set with an action word payload.
func (b *MQTTBridge) handleRelaySet(topic string, payload []byte) error {
	name, ok := b.topics.RelayFromSetTopic(topic)
	if !ok {
		return fmt.Errorf("unexpected relay command topic %q", topic)
	}
	action, err := automation.ParseAction(strings.TrimSpace(string(payload)))
	if err != nil {
		return fmt.Errorf("relay %q: %w", name, err)
	}
	return b.queueCommand(dispatch.RelayCommand(name, action))
}

// handlePresetSet handles <prefix>/preset/set with a preset name payload.
func (b *MQTTBridge) handlePresetSet(_ string, payload []byte) error {
	name := strings.TrimSpace(string(payload))
	if name == "" {
		return fmt.Errorf("empty preset name")
	}
	return b.queueCommand(dispatch.PresetSet(name))
}

// queueCommand hands cmd to runCommands without blocking the MQTT router.
func (b *MQTTBridge) queueCommand(cmd dispatch.Command) error {
	select {
	case b.inbox <- cmd:
		return nil
	default:
		return fmt.Errorf("%w: mqtt %s %q", dispatch.ErrQueueFull, cmd.Kind, cmd.Target)
	}
}

// run submits cmd and waits for the worker. State is published through
// StateChanged, not from here.
func (b *MQTTBridge) run(ctx context.Context, cmd dispatch.Command) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	resp, err := b.submit.Submit(ctx, cmd)
	if err != nil {
		return fmt.Errorf("submitting %s %q: %w", cmd.Kind, cmd.Target, err)
	}
	if err := resp.Err(); err != nil {
		return fmt.Errorf("%s %q: %w", cmd.Kind, cmd.Target, err)
	}
	b.logger.Debug("mqtt command applied", "kind", string(cmd.Kind), "target", cmd.Target, "request_id", resp.ID)
	return nil
}
