package bridge

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/tuya-bridge/internal/infrastructure/metrics"
	"github.com/nerrad567/tuya-bridge/internal/infrastructure/mqtt"
)

// TelemetryPublisher turns a device's raw status into bus messages: one
// retained state topic per code, the aggregate telemetry message and the
// discovery descriptor.
//
// Publish failures are logged and counted, never retried; the next poll
// publishes again.
type TelemetryPublisher struct {
	bus     Publisher
	topics  mqtt.Topics
	qos     byte
	logger  Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// TelemetryOptions configures a TelemetryPublisher.
type TelemetryOptions struct {
	Bus     Publisher
	Topics  mqtt.Topics
	QoS     byte
	Logger  Logger
	Metrics *metrics.Metrics

	// Now overrides the poll clock (tests).
	Now func() time.Time
}

// NewTelemetryPublisher creates a TelemetryPublisher.
func NewTelemetryPublisher(opts TelemetryOptions) *TelemetryPublisher {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &TelemetryPublisher{
		bus:     opts.Bus,
		topics:  opts.Topics,
		qos:     opts.QoS,
		logger:  loggerOrNoop(opts.Logger),
		metrics: opts.Metrics,
		now:     now,
	}
}

// Publish scales and publishes one device's status and returns the
// resulting snapshot.
func (p *TelemetryPublisher) Publish(dev Device, points []DataPoint, sourceTimestamp int64) *Snapshot {
	snap := &Snapshot{
		DeviceID:        dev.ID,
		Name:            dev.Name,
		Data:            make(map[string]Value, len(points)),
		PollTimestamp:   p.now(),
		SourceTimestamp: sourceTimestamp,
	}

	for _, dp := range points {
		if dp.Code == "" {
			continue
		}
		v := Scale(dp.Code, dp.Value)
		snap.Data[dp.Code] = v
		p.publish(p.topics.DeviceState(dev.ID, dp.Code), []byte(v.Format()))
	}

	if payload, err := json.Marshal(newTelemetryMessage(snap)); err != nil {
		p.logger.Error("encoding telemetry", "device_id", dev.ID, "error", err)
	} else {
		p.publish(p.topics.DeviceTelemetry(dev.ID), payload)
	}

	if payload, err := json.Marshal(p.discovery(dev)); err != nil {
		p.logger.Error("encoding discovery", "device_id", dev.ID, "error", err)
	} else {
		p.publish(p.topics.DeviceConfig(dev.ID), payload)
	}

	return snap
}

// PublishState publishes one retained state topic. The command router
// echoes accepted commands through it; failures are already logged and
// counted when the error is returned.
func (p *TelemetryPublisher) PublishState(deviceID string, dp DataPoint) error {
	return p.publish(p.topics.DeviceState(deviceID, dp.Code), []byte(dp.Value.Format()))
}

func (p *TelemetryPublisher) discovery(dev Device) DiscoveryMessage {
	return DiscoveryMessage{
		Name:         dev.Name,
		UniqueID:     dev.ID,
		StateTopic:   p.topics.DeviceTelemetry(dev.ID),
		CommandTopic: p.topics.DeviceBatchSet(dev.ID),
		Device: DiscoveredDevice{
			Identifiers:  []string{dev.ID},
			Name:         dev.Name,
			Manufacturer: Manufacturer,
			Model:        dev.ProductName,
		},
	}
}

func (p *TelemetryPublisher) publish(topic string, payload []byte) error {
	if err := p.bus.Publish(topic, payload, p.qos, true); err != nil {
		p.metrics.PublishFailed()
		p.logger.Warn("publish failed", "topic", topic, "error", err)
		return err
	}
	return nil
}
