package bridge

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

var fixedNow = time.Unix(1700000000, 0)

func newTestPublisher(bus Publisher) *TelemetryPublisher {
	return NewTelemetryPublisher(TelemetryOptions{
		Bus:    bus,
		Topics: testTopics,
		QoS:    1,
		Now:    func() time.Time { return fixedNow },
	})
}

func TestTelemetryPublisher_Publish(t *testing.T) {
	bus := newMockBus()
	p := newTestPublisher(bus)
	dev := Device{ID: "dev1", Name: "Din Rail", ProductName: "Meter"}

	snap := p.Publish(dev, []DataPoint{
		{Code: "switch", Value: Bool(true)},
		{Code: CodeVoltage, Value: Number(2301)},
		{Code: CodePower, Value: Number(125)},
		{Code: CodeEnergy, Value: Number(1234)},
		{Code: "cur_current", Value: Number(55)},
	}, 1700000000999)

	wantStates := map[string]string{
		"tuya/dev1/switch/state":      "ON",
		"tuya/dev1/cur_voltage/state": "230.1",
		"tuya/dev1/cur_power/state":   "12.5",
		"tuya/dev1/add_ele/state":     "1.234",
		"tuya/dev1/cur_current/state": "55",
	}
	for topic, want := range wantStates {
		got, ok := bus.Last(topic)
		if !ok {
			t.Errorf("no publish on %s", topic)
			continue
		}
		if got.Payload != want || !got.Retained || got.QoS != 1 {
			t.Errorf("%s = %+v, want retained %q", topic, got, want)
		}
	}

	if v := snap.Data[CodePower]; !v.Equal(Number(12.5)) {
		t.Errorf("snapshot cur_power = %v, want scaled 12.5", v)
	}
	if !snap.PollTimestamp.Equal(fixedNow) || snap.SourceTimestamp != 1700000000999 {
		t.Errorf("snapshot timestamps = %v / %d", snap.PollTimestamp, snap.SourceTimestamp)
	}

	tel, ok := bus.Last("tuya/dev1/telemetry")
	if !ok || !tel.Retained {
		t.Fatalf("telemetry = %+v (found %v)", tel, ok)
	}
	var msg map[string]any
	if err := json.Unmarshal([]byte(tel.Payload), &msg); err != nil {
		t.Fatalf("telemetry payload: %v", err)
	}
	data, _ := msg["data"].(map[string]any)
	if msg["name"] != "Din Rail" || msg["id"] != "dev1" ||
		msg["timestamp"] != float64(1700000000) || msg["api_t"] != float64(1700000000999) ||
		data["cur_voltage"] != 230.1 || data["switch"] != true {
		t.Errorf("telemetry = %v", msg)
	}

	disc, ok := bus.Last("discovery/device/dev1/config")
	if !ok || !disc.Retained {
		t.Fatalf("discovery = %+v (found %v)", disc, ok)
	}
	var d DiscoveryMessage
	if err := json.Unmarshal([]byte(disc.Payload), &d); err != nil {
		t.Fatalf("discovery payload: %v", err)
	}
	if d.UniqueID != "dev1" || d.StateTopic != "tuya/dev1/telemetry" || d.CommandTopic != "tuya/dev1/set" ||
		d.Device.Manufacturer != "Tuya" || len(d.Device.Identifiers) != 1 || d.Device.Identifiers[0] != "dev1" {
		t.Errorf("discovery = %+v", d)
	}
}

func TestTelemetryPublisher_DiscoveryIdempotent(t *testing.T) {
	bus := newMockBus()
	p := newTestPublisher(bus)
	dev := Device{ID: "dev1", Name: "Plug"}

	p.Publish(dev, []DataPoint{{Code: "switch_1", Value: Bool(true)}}, 1)
	first, _ := bus.Last("discovery/device/dev1/config")
	p.Publish(dev, []DataPoint{{Code: "switch_1", Value: Bool(false)}}, 2)
	second, _ := bus.Last("discovery/device/dev1/config")

	if first.Payload != second.Payload {
		t.Errorf("discovery changed between polls:\n%s\n%s", first.Payload, second.Payload)
	}
	if n := bus.Count("discovery/device/dev1/config"); n != 2 {
		t.Errorf("discovery published %d times, want once per poll", n)
	}
}

func TestTelemetryPublisher_PublishFailureStillReturnsSnapshot(t *testing.T) {
	bus := newMockBus()
	bus.publishErr = errors.New("not connected")
	p := newTestPublisher(bus)

	snap := p.Publish(Device{ID: "dev1"}, []DataPoint{{Code: "switch", Value: Bool(false)}}, 0)
	if on, ok := snap.Data["switch"].AsBool(); !ok || on {
		t.Errorf("snapshot switch = %v, want false", snap.Data["switch"])
	}
}

func TestTelemetryPublisher_SkipsEmptyCodes(t *testing.T) {
	bus := newMockBus()
	p := newTestPublisher(bus)

	snap := p.Publish(Device{ID: "dev1"}, []DataPoint{{Code: "", Value: Number(1)}}, 0)
	if len(snap.Data) != 0 {
		t.Errorf("snapshot data = %v, want empty", snap.Data)
	}
	if n := len(bus.Published()); n != 2 {
		t.Errorf("published %d messages, want telemetry and discovery only", n)
	}
}

func TestTelemetryPublisher_PublishState(t *testing.T) {
	bus := newMockBus()
	p := newTestPublisher(bus)

	if err := p.PublishState("dev1", DataPoint{Code: "countdown_1", Value: Number(60)}); err != nil {
		t.Fatalf("PublishState() error = %v", err)
	}
	got, ok := bus.Last("tuya/dev1/countdown_1/state")
	if !ok || got.Payload != "60" || !got.Retained || got.QoS != 1 {
		t.Errorf("state = %+v (found %v), want retained 60 at QoS 1", got, ok)
	}

	bus.publishErr = errors.New("not connected")
	if err := p.PublishState("dev1", DataPoint{Code: "switch", Value: Bool(true)}); err == nil {
		t.Error("PublishState() should return the bus error")
	}
}
