package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timestampLayout is fixed-width so stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// ErrEmptyDeviceID is returned when a record has no device ID.
var ErrEmptyDeviceID = errors.New("database: device_id is required")

// DeviceRecord is one row of the device_records history table.
type DeviceRecord struct {
	ID         string
	Timestamp  time.Time
	DeviceID   string
	DeviceName string
	// Status is the scaled snapshot data as a JSON object.
	Status json.RawMessage
	Source string
}

// InsertDeviceRecord appends a history row. A missing ID is filled with a
// new UUID; a zero Timestamp is replaced with the current time.
func (db *DB) InsertDeviceRecord(ctx context.Context, r DeviceRecord) error {
	if r.DeviceID == "" {
		return ErrEmptyDeviceID
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	status := r.Status
	if len(status) == 0 {
		status = json.RawMessage("{}")
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO device_records (id, timestamp, device_id, device_name, status, source)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.Timestamp.UTC().Format(timestampLayout),
		r.DeviceID,
		r.DeviceName,
		string(status),
		r.Source,
	)
	if err != nil {
		return fmt.Errorf("inserting device record: %w", err)
	}
	return nil
}

// RecentDeviceRecords returns up to limit rows for a device, newest first.
func (db *DB) RecentDeviceRecords(ctx context.Context, deviceID string, limit int) ([]DeviceRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, timestamp, device_id, device_name, status, source
		FROM device_records
		WHERE device_id = ?
		ORDER BY timestamp DESC
		LIMIT ?`,
		deviceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying device records: %w", err)
	}
	defer rows.Close()

	records := make([]DeviceRecord, 0, limit)
	for rows.Next() {
		var (
			r      DeviceRecord
			ts     string
			status string
		)
		if err := rows.Scan(&r.ID, &ts, &r.DeviceID, &r.DeviceName, &status, &r.Source); err != nil {
			return nil, fmt.Errorf("scanning device record: %w", err)
		}
		r.Timestamp, err = time.Parse(timestampLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing record timestamp %q: %w", ts, err)
		}
		r.Status = json.RawMessage(status)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device records: %w", err)
	}
	return records, nil
}

// CountDeviceRecords returns the number of stored rows for a device.
func (db *DB) CountDeviceRecords(ctx context.Context, deviceID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM device_records WHERE device_id = ?", deviceID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting device records: %w", err)
	}
	return n, nil
}
