package influxdb

import (
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementDeviceStatus is the measurement every persisted snapshot is written to.
const MeasurementDeviceStatus = "device_status"

// StatusPoint is one persisted device snapshot.
type StatusPoint struct {
	DeviceID   string
	DeviceName string
	Source     string

	// Fields maps data-point codes to float64, bool or string values.
	Fields map[string]any

	Timestamp time.Time
}

// WriteStatus queues a snapshot for the next batch.
//
// Returns:
//   - error: ErrNotConnected after Close, or wraps ErrWriteFailed when the
//     snapshot has no fields (InfluxDB rejects such points)
func (c *Client) WriteStatus(p StatusPoint) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	point, err := NewStatusPoint(p)
	if err != nil {
		return err
	}

	c.writeAPI.WritePoint(point)
	return nil
}

// NewStatusPoint builds the line-protocol point for a snapshot.
//
// Tags: device_id, device_name, source. Fields: one per data-point code.
// Values of unsupported types are written as their fmt %v string.
func NewStatusPoint(p StatusPoint) (*write.Point, error) {
	if len(p.Fields) == 0 {
		return nil, fmt.Errorf("%w: device %s has no fields", ErrWriteFailed, p.DeviceID)
	}

	fields := make(map[string]any, len(p.Fields))
	for code, v := range p.Fields {
		switch v.(type) {
		case float64, bool, string:
			fields[code] = v
		default:
			fields[code] = fmt.Sprintf("%v", v)
		}
	}

	tags := map[string]string{
		"device_id": p.DeviceID,
	}
	if p.DeviceName != "" {
		tags["device_name"] = p.DeviceName
	}
	if p.Source != "" {
		tags["source"] = p.Source
	}

	ts := p.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return write.NewPoint(MeasurementDeviceStatus, tags, fields, ts), nil
}
