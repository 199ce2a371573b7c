// Package mqtt provides the MQTT publishing client behind the sqlgw change
// feed.
//
// This package manages:
//   - Connection to an MQTT broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Topics
//
// All topics live under the configured prefix (default "sqlgw"):
//
//	sqlgw/status             {"status":"online",...}   retained
//	sqlgw/changes/<table>    change batches for <table>
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) for brokers outside localhost
//   - Credentials come from config or SQLGW_MQTT_USERNAME/SQLGW_MQTT_PASSWORD
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Publish(client.Topics().Changes("devices"), payload, 1, false)
package mqtt
