package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/tuya-bridge/internal/infrastructure/metrics"
	"github.com/nerrad567/tuya-bridge/internal/infrastructure/mqtt"
)

// commandTimeout bounds one registry command round-trip.
const commandTimeout = 10 * time.Second

// Batch commands only carry codes with these prefixes.
var batchCodePrefixes = []string{"switch", "countdown"}

// CommandShape is the form of an inbound command, decided by its topic.
type CommandShape int

const (
	// CommandNone marks a topic that is not a command.
	CommandNone CommandShape = iota

	// CommandSingle is {prefix}/{device_id}/{code}/set with a raw value.
	CommandSingle

	// CommandBatch is {prefix}/{device_id}/set with a JSON object.
	CommandBatch
)

// String returns the shape name.
func (s CommandShape) String() string {
	switch s {
	case CommandSingle:
		return "single"
	case CommandBatch:
		return "batch"
	default:
		return "none"
	}
}

// CommandTopic is a parsed command topic.
type CommandTopic struct {
	Shape    CommandShape
	DeviceID string
	Code     string // CommandSingle only
}

// ParseCommandTopic classifies topic relative to prefix.
func ParseCommandTopic(prefix, topic string) CommandTopic {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return CommandTopic{}
	}

	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 3 && parts[2] == "set" && parts[0] != "" && parts[1] != "":
		return CommandTopic{Shape: CommandSingle, DeviceID: parts[0], Code: parts[1]}
	case len(parts) == 2 && parts[1] == "set" && parts[0] != "":
		return CommandTopic{Shape: CommandBatch, DeviceID: parts[0]}
	default:
		return CommandTopic{}
	}
}

// Command is a parsed inbound command, dispatched once.
type Command struct {
	Shape    CommandShape
	DeviceID string
	Items    []DataPoint
}

// ParseCommand builds a Command from a parsed topic and its payload.
//
// Single commands map ON/OFF (any case, surrounding whitespace ignored) to
// booleans and pass anything else through byte for byte as a string. Batch commands keep only switch* and countdown* keys,
// sorted by code.
func ParseCommand(t CommandTopic, payload []byte) (Command, error) {
	cmd := Command{Shape: t.Shape, DeviceID: t.DeviceID}

	switch t.Shape {
	case CommandSingle:
		v := ParseOnOff(strings.TrimSpace(string(payload)))
		if _, ok := v.AsBool(); !ok {
			v = String(string(payload))
		}
		cmd.Items = []DataPoint{{Code: t.Code, Value: v}}
		return cmd, nil

	case CommandBatch:
		var fields map[string]Value
		if err := json.Unmarshal(payload, &fields); err != nil {
			return cmd, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
		}
		if fields == nil {
			return cmd, fmt.Errorf("%w: not a JSON object", ErrMalformedCommand)
		}

		codes := make([]string, 0, len(fields))
		for code := range fields {
			if isBatchCode(code) {
				codes = append(codes, code)
			}
		}
		if len(codes) == 0 {
			return cmd, ErrNoRecognisedCodes
		}
		sort.Strings(codes)

		for _, code := range codes {
			v := fields[code]
			if s, ok := v.AsString(); ok {
				v = ParseOnOff(s)
			}
			cmd.Items = append(cmd.Items, DataPoint{Code: code, Value: v})
		}
		return cmd, nil

	default:
		return cmd, fmt.Errorf("%w: not a command topic", ErrMalformedCommand)
	}
}

func isBatchCode(code string) bool {
	for _, p := range batchCodePrefixes {
		if strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}

// CommandRouter translates inbound bus commands into registry commands,
// publishes the outcome and echoes the requested state.
//
// Messages for the same device are handled one at a time; different devices
// proceed concurrently.
type CommandRouter struct {
	ctx      context.Context
	registry Commander
	bus      Publisher
	state    *TelemetryPublisher
	topics   mqtt.Topics
	qos      byte
	logger   Logger
	metrics  *metrics.Metrics
	newID    func() string
	locks    deviceLocks
}

// CommandRouterOptions configures a CommandRouter.
type CommandRouterOptions struct {
	// Context bounds every dispatch; cancel it on shutdown.
	Context  context.Context
	Registry Commander
	Bus      Publisher
	Topics   mqtt.Topics
	QoS      byte
	Logger   Logger
	Metrics  *metrics.Metrics

	// NewID overrides command ID generation (tests).
	NewID func() string
}

// NewCommandRouter creates a CommandRouter.
func NewCommandRouter(opts CommandRouterOptions) (*CommandRouter, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.Bus == nil {
		return nil, fmt.Errorf("bus is required")
	}

	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	logger := loggerOrNoop(opts.Logger)

	return &CommandRouter{
		ctx:      ctx,
		registry: opts.Registry,
		bus:      opts.Bus,
		state: NewTelemetryPublisher(TelemetryOptions{
			Bus:     opts.Bus,
			Topics:  opts.Topics,
			QoS:     opts.QoS,
			Logger:  logger,
			Metrics: opts.Metrics,
		}),
		topics:   opts.Topics,
		qos:      opts.QoS,
		logger:   logger,
		metrics:  opts.Metrics,
		newID:    newID,
		locks:    deviceLocks{m: make(map[string]*deviceLock)},
	}, nil
}

// HandleMessage processes one inbound message. It has the bus handler
// signature; returned errors are logged by the bus client with the topic.
//
// Topics that are not commands are ignored. Malformed payloads are
// discarded without a response.
func (r *CommandRouter) HandleMessage(topic string, payload []byte) error {
	t := ParseCommandTopic(r.topics.Prefix, topic)
	if t.Shape == CommandNone {
		return nil
	}

	cmd, err := ParseCommand(t, payload)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoRecognisedCodes):
			r.metrics.Command(metrics.CommandNoCodes)
		default:
			r.metrics.Command(metrics.CommandMalformed)
		}
		return fmt.Errorf("device %s: %w", t.DeviceID, err)
	}

	unlock := r.locks.lock(cmd.DeviceID)
	defer unlock()

	return r.dispatch(cmd)
}

func (r *CommandRouter) dispatch(cmd Command) error {
	id := r.newID()
	ctx, cancel := context.WithTimeout(r.ctx, commandTimeout)
	defer cancel()

	result, err := r.registry.SendCommand(ctx, cmd.DeviceID, cmd.Items)

	switch {
	case result != nil && result.Success:
		r.metrics.Command(metrics.CommandSuccess)
		r.publishResponse(cmd.DeviceID, NewSuccessResponse(id, cmd))
		// Echo the requested state; the next poll overwrites it either way.
		for _, item := range cmd.Items {
			_ = r.state.PublishState(cmd.DeviceID, item)
		}
		r.logger.Info("command sent",
			"command_id", id,
			"device_id", cmd.DeviceID,
			"shape", cmd.Shape.String(),
			"items", len(cmd.Items))
		return nil

	case result != nil:
		r.metrics.Command(metrics.CommandAPIError)
		r.publishResponse(cmd.DeviceID, NewErrorResponse(id, cmd, result))
		return fmt.Errorf("%w: device %s: code %d: %s", ErrCommandFailed, cmd.DeviceID, result.Code, result.Msg)

	default:
		r.metrics.Command(metrics.CommandTransportError)
		if err == nil {
			err = errors.New("no result")
		}
		return fmt.Errorf("%w: device %s: %w", ErrDispatchFailed, cmd.DeviceID, err)
	}
}

func (r *CommandRouter) publishResponse(deviceID string, resp CommandResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		r.logger.Error("encoding command response", "device_id", deviceID, "error", err)
		return
	}
	if err := r.bus.Publish(r.topics.DeviceResponse(deviceID), payload, r.qos, false); err != nil {
		r.metrics.PublishFailed()
		r.logger.Warn("publish command response failed", "device_id", deviceID, "error", err)
	}
}

// deviceLocks hands out one mutex per device ID, dropping it when unused.
type deviceLocks struct {
	mu sync.Mutex
	m  map[string]*deviceLock
}

type deviceLock struct {
	mu   sync.Mutex
	refs int
}

func (d *deviceLocks) lock(id string) (unlock func()) {
	d.mu.Lock()
	l, ok := d.m[id]
	if !ok {
		l = &deviceLock{}
		d.m[id] = l
	}
	l.refs++
	d.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		d.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.m, id)
		}
		d.mu.Unlock()
	}
}
