// Package influxdb writes persisted device snapshots to InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library. Each snapshot that
// passes the governance gate becomes one point in the device_status
// measurement, tagged by device and carrying one field per data-point code.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.SetOnError(func(err error) { logger.Warn("influx write failed", "error", err) })
//	err = client.WriteStatus(influxdb.StatusPoint{
//	    DeviceID: "bf1234",
//	    Fields:   map[string]any{"switch_1": true, "cur_power": 12.5},
//	})
//
// # Error Handling
//
// Writes are non-blocking and batched (batch_size, flush_interval); network
// failures arrive on the SetOnError callback rather than from WriteStatus.
package influxdb
