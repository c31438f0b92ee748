// Package api implements the HTTP status API of the Tuya bridge.
//
// The bridge does its real work over MQTT; this server is for operators,
// container supervisors and Prometheus:
//
//	GET /health                  component health (200 healthy or degraded, 503 unhealthy)
//	GET /ready                   200 once the first poll cycle completed and critical checks pass
//	GET /live                    always 200 while the process runs
//	GET /metrics                 Prometheus exposition
//	GET /api/v1/devices          device inventory with last poll time
//	GET /api/v1/devices/{id}     one device, its last snapshot and stored history
//	GET /api/v1/governance       governing devices and their current state
//	GET /api/v1/system           runtime and uptime statistics
//
// The server is read-only. Commands go through the MQTT command topics.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
