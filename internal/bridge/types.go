package bridge

import (
	"context"
	"encoding/json"
	"time"
)

// RecordSource tags every persisted record written by the bridge.
const RecordSource = "tuya_cloud_mqtt_bridge"

// Device is one registry device. The list is loaded once at startup and
// never changes for the lifetime of the process.
type Device struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Online      bool   `json:"online"`
	Category    string `json:"category,omitempty"`
	ProductName string `json:"product_name,omitempty"`
}

// Status is one device's raw status as returned by the registry.
type Status struct {
	Points []DataPoint

	// SourceTimestamp is the registry's own response time in milliseconds.
	SourceTimestamp int64
}

// CommandResult is the registry's answer to a command.
type CommandResult struct {
	Success bool
	Code    int
	Msg     string

	// Raw is the registry response body, echoed on error responses.
	Raw json.RawMessage
}

// Snapshot is one device's scaled status for one poll cycle.
type Snapshot struct {
	DeviceID        string           `json:"device_id"`
	Name            string           `json:"name"`
	Data            map[string]Value `json:"data"`
	PollTimestamp   time.Time        `json:"poll_timestamp"`
	SourceTimestamp int64            `json:"source_timestamp"`
}

// Record is a persisted snapshot.
type Record struct {
	Timestamp  time.Time
	DeviceID   string
	DeviceName string
	Status     map[string]Value
	Source     string
}

// NewRecord builds the persisted form of a snapshot.
func NewRecord(s *Snapshot) Record {
	return Record{
		Timestamp:  s.PollTimestamp,
		DeviceID:   s.DeviceID,
		DeviceName: s.Name,
		Status:     s.Data,
		Source:     RecordSource,
	}
}

// Registry is the remote device registry.
type Registry interface {
	// ListDevices returns every device visible to the account.
	ListDevices(ctx context.Context) ([]Device, error)

	// GetStatus returns the current raw data points of one device.
	GetStatus(ctx context.Context, deviceID string) (*Status, error)

	Commander
}

// Commander dispatches commands to the registry.
type Commander interface {
	// SendCommand sends all items in one request. A non-nil result is
	// returned whenever the registry answered, even if it rejected the
	// command; a nil result means the request never completed.
	SendCommand(ctx context.Context, deviceID string, items []DataPoint) (*CommandResult, error)
}

// Publisher publishes bus messages.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Bus is the message bus: publishing plus pattern subscriptions.
// *mqtt.Client satisfies it.
type Bus interface {
	Publisher
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error
	Unsubscribe(topic string) error
}

// Sink persists records.
type Sink interface {
	Insert(ctx context.Context, r Record) error
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

func loggerOrNoop(l Logger) Logger {
	if l == nil {
		return noopLogger{}
	}
	return l
}
