// Package store persists bridge records to the configured backends.
//
// A Store fans each record out to SQLite (the device_records history table)
// and InfluxDB (the device_status measurement). Either backend may be
// absent. A failure in one backend does not stop the write to the other;
// both errors are returned joined.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/tuya-bridge/internal/bridge"
	"github.com/nerrad567/tuya-bridge/internal/infrastructure/database"
	"github.com/nerrad567/tuya-bridge/internal/infrastructure/influxdb"
)

// RecordWriter appends history rows. *database.DB satisfies it.
type RecordWriter interface {
	InsertDeviceRecord(ctx context.Context, r database.DeviceRecord) error
}

// PointWriter queues time-series points. *influxdb.Client satisfies it.
type PointWriter interface {
	WriteStatus(p influxdb.StatusPoint) error
}

// Store implements bridge.Sink.
type Store struct {
	records RecordWriter
	points  PointWriter
}

// New creates a Store. Pass nil for a backend that is disabled.
func New(records RecordWriter, points PointWriter) *Store {
	return &Store{records: records, points: points}
}

// Enabled reports whether any backend is configured.
func (s *Store) Enabled() bool {
	return s.records != nil || s.points != nil
}

// Insert writes r to every configured backend.
func (s *Store) Insert(ctx context.Context, r bridge.Record) error {
	var errs []error

	if s.records != nil {
		status, err := json.Marshal(r.Status)
		if err != nil {
			return fmt.Errorf("encoding status of %s: %w", r.DeviceID, err)
		}
		if err := s.records.InsertDeviceRecord(ctx, database.DeviceRecord{
			Timestamp:  r.Timestamp,
			DeviceID:   r.DeviceID,
			DeviceName: r.DeviceName,
			Status:     status,
			Source:     r.Source,
		}); err != nil {
			errs = append(errs, fmt.Errorf("sqlite: %w", err))
		}
	}

	// InfluxDB rejects points without fields.
	if s.points != nil && len(r.Status) > 0 {
		if err := s.points.WriteStatus(influxdb.StatusPoint{
			DeviceID:   r.DeviceID,
			DeviceName: r.DeviceName,
			Source:     r.Source,
			Fields:     fields(r.Status),
			Timestamp:  r.Timestamp,
		}); err != nil {
			errs = append(errs, fmt.Errorf("influxdb: %w", err))
		}
	}

	return errors.Join(errs...)
}

// fields converts values to their native Go types.
func fields(status map[string]bridge.Value) map[string]any {
	out := make(map[string]any, len(status))
	for code, v := range status {
		out[code] = v.Native()
	}
	return out
}
