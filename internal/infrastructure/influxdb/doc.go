// Package influxdb writes sqlgw statement metrics to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. A connected Client
// implements database.Observer: every statement run through the gateway
// becomes one point in the sqlgw_statement measurement.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	db.SetObserver(client)
//
// # Error Handling
//
// Writes are non-blocking and batched (batch_size, flush_interval). Write
// failures arrive asynchronously through SetOnError. Connection and health
// check errors are returned directly.
package influxdb
