// Package bridge synchronises a polled Tuya Cloud device registry with an
// MQTT bus.
//
// Two activity streams run independently:
//
//	            ┌──────────┐  GetStatus  ┌────────────────────┐  state/telemetry  ┌─────┐
//	  Poller ──►│ Registry │────────────►│ TelemetryPublisher │──────────────────►│ Bus │
//	            └──────────┘             └─────────┬──────────┘                   └──┬──┘
//	                 ▲                             ▼                                 │
//	                 │                      ┌─────────────┐  Insert  ┌──────┐         │
//	                 │                      │ LoggingGate │─────────►│ Sink │         │
//	                 │                      └─────────────┘          └──────┘         │
//	                 │ SendCommand   ┌───────────────┐   {prefix}/+/set, +/+/set       │
//	                 └───────────────│ CommandRouter │◄────────────────────────────────┘
//	                                 └───────────────┘
//
// The Poller visits every device once per interval. Raw values are scaled
// (cur_voltage and cur_power ÷10, add_ele ÷1000), published as retained
// per-code state topics plus one aggregate telemetry message and a discovery
// descriptor, then offered to the LoggingGate which decides whether the
// snapshot is persisted.
//
// The CommandRouter parses inbound command topics into a Command, dispatches
// it once and on success publishes a response followed by an optimistic echo
// of the requested state. The next poll overwrites the echo with the
// registry's value.
//
// # Governance
//
// A governing device (for example a main-power relay) gates persistence of
// its dependents: while its "switch" code reports false, neither it nor its
// dependents are persisted. Until it first reports, it counts as on.
//
// # Thread Safety
//
// Service, CommandRouter and Poller accessors are safe for concurrent use.
package bridge
