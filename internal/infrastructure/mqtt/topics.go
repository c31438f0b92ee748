package mqtt

import (
	"fmt"

	"github.com/nerrad567/tuya-bridge/internal/infrastructure/config"
)

// Default topic roots, used when the configuration leaves them empty.
const (
	// DefaultTopicPrefix is the root of every device topic.
	DefaultTopicPrefix = "tuya"

	// DefaultDiscoveryPrefix is the root of device descriptor topics.
	DefaultDiscoveryPrefix = "discovery"
)

// Topics provides builders for the bridge's MQTT topics.
// Using these helpers keeps publishers, subscribers and the topic parser in
// agreement on the hierarchy:
//
//	{prefix}/{device_id}/{code}/state    per-attribute state (retained)
//	{prefix}/{device_id}/telemetry       aggregate snapshot (retained)
//	{prefix}/{device_id}/response        command outcome
//	{prefix}/{device_id}/{code}/set      single-attribute command
//	{prefix}/{device_id}/set             batch command
//	{discovery}/device/{device_id}/config  device descriptor (retained)
//	{prefix}/bridge/status               bridge availability (retained, LWT)
//
// The prefix may contain several levels (e.g. "home/tuya").
type Topics struct {
	Prefix    string
	Discovery string
}

// NewTopics returns the topic builders for the configured roots.
func NewTopics(cfg config.MQTTConfig) Topics {
	t := Topics{Prefix: cfg.TopicPrefix, Discovery: cfg.DiscoveryPrefix}
	if t.Prefix == "" {
		t.Prefix = DefaultTopicPrefix
	}
	if t.Discovery == "" {
		t.Discovery = DefaultDiscoveryPrefix
	}
	return t
}

// =============================================================================
// Device Topics
// =============================================================================

// DeviceState returns the per-attribute state topic.
//
// Example: tuya/bf1234/switch_1/state
func (t Topics) DeviceState(deviceID, code string) string {
	return fmt.Sprintf("%s/%s/%s/state", t.Prefix, deviceID, code)
}

// DeviceTelemetry returns the aggregate snapshot topic.
//
// Example: tuya/bf1234/telemetry
func (t Topics) DeviceTelemetry(deviceID string) string {
	return fmt.Sprintf("%s/%s/telemetry", t.Prefix, deviceID)
}

// DeviceResponse returns the topic carrying command outcomes.
//
// Example: tuya/bf1234/response
func (t Topics) DeviceResponse(deviceID string) string {
	return fmt.Sprintf("%s/%s/response", t.Prefix, deviceID)
}

// DeviceSet returns the single-attribute command topic.
//
// Example: tuya/bf1234/switch_1/set
func (t Topics) DeviceSet(deviceID, code string) string {
	return fmt.Sprintf("%s/%s/%s/set", t.Prefix, deviceID, code)
}

// DeviceBatchSet returns the batch command topic.
//
// Example: tuya/bf1234/set
func (t Topics) DeviceBatchSet(deviceID string) string {
	return fmt.Sprintf("%s/%s/set", t.Prefix, deviceID)
}

// DeviceConfig returns the discovery descriptor topic.
//
// Example: discovery/device/bf1234/config
func (t Topics) DeviceConfig(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/config", t.Discovery, deviceID)
}

// =============================================================================
// Bridge Topics
// =============================================================================

// BridgeStatus returns the availability topic (online/offline, LWT).
//
// Example: tuya/bridge/status
func (t Topics) BridgeStatus() string {
	return fmt.Sprintf("%s/bridge/status", t.Prefix)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllSingleSets returns the pattern matching every single-attribute command.
//
// Pattern: tuya/+/+/set
func (t Topics) AllSingleSets() string {
	return fmt.Sprintf("%s/+/+/set", t.Prefix)
}

// AllBatchSets returns the pattern matching every batch command.
//
// Pattern: tuya/+/set
func (t Topics) AllBatchSets() string {
	return fmt.Sprintf("%s/+/set", t.Prefix)
}
