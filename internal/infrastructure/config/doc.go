// Package config handles loading and validating sqlgw configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading a .env file into the environment
//   - Overriding with SQLGW_* environment variables
//   - Validation of fields via struct tags
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/sqlgw.yaml")
//	if err != nil {
//	    return err
//	}
//	db, err := database.Open(ctx, cfg.Database.ToDatabase())
package config
