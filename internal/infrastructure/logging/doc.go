// Package logging provides structured logging for sqlgw.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the gateway and the CLI.
//
// # Features
//
//   - Text output for terminals, JSON for log collectors
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - stderr by default, leaving stdout to command results
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stderr"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	db.SetLogger(logger.With("component", "database"))
//
// Never log bound parameter values; they may hold user data.
package logging
