package bridge

import (
	"context"
	"errors"
	"sync"
)

// mockBus records publishes and subscriptions.
type mockBus struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions map[string]func(topic string, payload []byte) error
	publishErr    error
	subscribeErr  error

	// failSubscribe fails Subscribe for this pattern only.
	failSubscribe string
}

type mockPublish struct {
	Topic    string
	Payload  string
	QoS      byte
	Retained bool
}

func newMockBus() *mockBus {
	return &mockBus{subscriptions: make(map[string]func(string, []byte) error)}
}

func (m *mockBus) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, mockPublish{Topic: topic, Payload: string(payload), QoS: qos, Retained: retained})
	return nil
}

func (m *mockBus) Subscribe(topic string, _ byte, handler func(topic string, payload []byte) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return m.subscribeErr
	}
	if topic == m.failSubscribe {
		return errors.New("subscribe refused")
	}
	m.subscriptions[topic] = handler
	return nil
}

func (m *mockBus) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, topic)
	return nil
}

func (m *mockBus) Subscriptions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscriptions)
}

func (m *mockBus) Published() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.published...)
}

// Last returns the last publish on topic.
func (m *mockBus) Last(topic string) (mockPublish, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.published) - 1; i >= 0; i-- {
		if m.published[i].Topic == topic {
			return m.published[i], true
		}
	}
	return mockPublish{}, false
}

func (m *mockBus) Count(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.published {
		if p.Topic == topic {
			n++
		}
	}
	return n
}

func (m *mockBus) Handler(topic string) func(topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscriptions[topic]
}

// mockRegistry serves canned statuses and records commands.
type mockRegistry struct {
	mu        sync.Mutex
	devices   []Device
	listErr   error
	statuses  map[string]*Status
	statusErr map[string]error
	polled    []string

	result   *CommandResult
	sendErr  error
	commands []sentCommand

	// onSend runs inside SendCommand, before it returns.
	onSend func(deviceID string)
}

type sentCommand struct {
	DeviceID string
	Items    []DataPoint
}

func newMockRegistry(devices ...Device) *mockRegistry {
	return &mockRegistry{
		devices:   devices,
		statuses:  make(map[string]*Status),
		statusErr: make(map[string]error),
		result:    &CommandResult{Success: true},
	}
}

func (m *mockRegistry) ListDevices(context.Context) ([]Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Device(nil), m.devices...), m.listErr
}

func (m *mockRegistry) GetStatus(_ context.Context, id string) (*Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polled = append(m.polled, id)
	if err := m.statusErr[id]; err != nil {
		return nil, err
	}
	if s, ok := m.statuses[id]; ok {
		return s, nil
	}
	return nil, errors.New("no status configured")
}

func (m *mockRegistry) SendCommand(_ context.Context, id string, items []DataPoint) (*CommandResult, error) {
	m.mu.Lock()
	m.commands = append(m.commands, sentCommand{DeviceID: id, Items: append([]DataPoint(nil), items...)})
	result, err, hook := m.result, m.sendErr, m.onSend
	m.mu.Unlock()

	if hook != nil {
		hook(id)
	}
	return result, err
}

func (m *mockRegistry) SetStatus(id string, points ...DataPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[id] = &Status{Points: points, SourceTimestamp: 1700000000123}
}

func (m *mockRegistry) Commands() []sentCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentCommand(nil), m.commands...)
}

func (m *mockRegistry) Polled() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.polled...)
}

// mockSink records inserted records.
type mockSink struct {
	mu      sync.Mutex
	records []Record
	err     error
}

func (m *mockSink) Insert(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, r)
	return nil
}

func (m *mockSink) DeviceIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.records))
	for _, r := range m.records {
		ids = append(ids, r.DeviceID)
	}
	return ids
}
