package bridge

import (
	"encoding/json"
	"fmt"
)

// MQTT payloads published by the bridge.

// TelemetryMessage is the aggregate snapshot published per device per poll.
// Topic: {prefix}/{device_id}/telemetry (retained)
type TelemetryMessage struct {
	Name string           `json:"name"`
	ID   string           `json:"id"`
	Data map[string]Value `json:"data"`

	// Timestamp is the bridge's poll time in Unix seconds.
	Timestamp int64 `json:"timestamp"`

	// APIT is the registry's response time in milliseconds.
	APIT int64 `json:"api_t"`
}

// DiscoveryMessage advertises a device and its topics.
// Topic: {discovery}/device/{device_id}/config (retained)
type DiscoveryMessage struct {
	Name         string           `json:"name"`
	UniqueID     string           `json:"unique_id"`
	StateTopic   string           `json:"state_topic"`
	CommandTopic string           `json:"command_topic"`
	Device       DiscoveredDevice `json:"device"`
}

// DiscoveredDevice is the device block of a DiscoveryMessage.
type DiscoveredDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model,omitempty"`
}

// Manufacturer is advertised in every discovery message.
const Manufacturer = "Tuya"

// ResponseStatus is the outcome carried by a CommandResponse.
type ResponseStatus string

const (
	ResponseSuccess ResponseStatus = "success"
	ResponseError   ResponseStatus = "error"
)

// CommandResponse reports a command outcome.
// Topic: {prefix}/{device_id}/response
type CommandResponse struct {
	// CommandID correlates the response with the bridge's log lines.
	CommandID string         `json:"command_id"`
	Status    ResponseStatus `json:"status"`
	Msg       string         `json:"msg"`

	// Code and Value are set for single-attribute commands.
	Code  string `json:"code,omitempty"`
	Value *Value `json:"value,omitempty"`

	// Cmd lists the dispatched items of a batch command.
	Cmd []DataPoint `json:"cmd,omitempty"`

	// Result is the registry's answer on failure.
	Result json.RawMessage `json:"result,omitempty"`
}

// NewSuccessResponse builds the response for an accepted command.
func NewSuccessResponse(id string, cmd Command) CommandResponse {
	resp := CommandResponse{
		CommandID: id,
		Status:    ResponseSuccess,
	}
	if cmd.Shape == CommandSingle && len(cmd.Items) == 1 {
		item := cmd.Items[0]
		resp.Msg = fmt.Sprintf("command sent: %s/%s = %s", cmd.DeviceID, item.Code, item.Value.Format())
		resp.Code = item.Code
		resp.Value = &item.Value
		return resp
	}
	resp.Msg = fmt.Sprintf("batch command sent: %s (%d codes)", cmd.DeviceID, len(cmd.Items))
	resp.Cmd = cmd.Items
	return resp
}

// NewErrorResponse builds the response for a rejected command.
func NewErrorResponse(id string, cmd Command, result *CommandResult) CommandResponse {
	raw := result.Raw
	if len(raw) == 0 {
		raw, _ = json.Marshal(map[string]any{
			"success": false,
			"code":    result.Code,
			"msg":     result.Msg,
		})
	}
	return CommandResponse{
		CommandID: id,
		Status:    ResponseError,
		Msg:       fmt.Sprintf("command failed: %s: %d %s", cmd.DeviceID, result.Code, result.Msg),
		Result:    raw,
	}
}

func newTelemetryMessage(s *Snapshot) TelemetryMessage {
	return TelemetryMessage{
		Name:      s.Name,
		ID:        s.DeviceID,
		Data:      s.Data,
		Timestamp: s.PollTimestamp.Unix(),
		APIT:      s.SourceTimestamp,
	}
}
