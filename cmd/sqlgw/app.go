package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nerrad567/sqlgw/internal/changefeed"
	"github.com/nerrad567/sqlgw/internal/infrastructure/config"
	"github.com/nerrad567/sqlgw/internal/infrastructure/database"
	"github.com/nerrad567/sqlgw/internal/infrastructure/influxdb"
	"github.com/nerrad567/sqlgw/internal/infrastructure/logging"
	"github.com/nerrad567/sqlgw/internal/infrastructure/mqtt"
)

// app holds global flags and the resources opened for one command.
type app struct {
	configPath string
	dbPath     string

	out    io.Writer
	errOut io.Writer

	log    *logging.Logger
	db     *database.DB
	mqtt   *mqtt.Client
	influx *influxdb.Client
}

// getConfigPath returns the default configuration file path.
// Uses SQLGW_CONFIG if set; otherwise no file is read and defaults apply.
func getConfigPath() string {
	return os.Getenv("SQLGW_CONFIG")
}

// open loads configuration, opens the database and attaches the change feed
// and statement metrics when they are enabled. Call close when done.
func (a *app) open(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.dbPath != "" {
		cfg.Database.Path = a.dbPath
	}

	if cfg.Logging.Output == "stdout" {
		a.log = logging.New(cfg.Logging, version)
	} else {
		a.log = logging.NewWithWriter(a.errOut, cfg.Logging, version)
	}

	db, err := database.Open(ctx, cfg.Database.ToDatabase())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	db.SetLogger(a.log)
	a.db = db
	a.log.Debug("database opened", "path", db.Path(), "sqlite", database.Version())

	if cfg.ChangeFeed.Enabled {
		a.attachChangeFeed(ctx, cfg)
	}
	if cfg.InfluxDB.Enabled {
		a.attachMetrics(ctx, cfg)
	}
	return nil
}

// attachChangeFeed connects to the broker and publishes committed changes.
// The command still runs if the broker is unreachable.
func (a *app) attachChangeFeed(ctx context.Context, cfg *config.Config) {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		a.log.Warn("change feed disabled: mqtt unavailable", "error", err)
		return
	}
	client.SetLogger(a.log)
	a.mqtt = client

	if err := client.HealthCheck(ctx); err != nil {
		a.log.Warn("change feed disabled: mqtt unhealthy", "error", err)
		return
	}

	// #nosec G115 -- QoS validated to 0..2 by config
	pub, err := changefeed.New(client, changefeed.Options{
		Topic:    client.Topics().Changes,
		QoS:      byte(cfg.ChangeFeed.QoS),
		Retained: cfg.ChangeFeed.Retained,
		Logger:   a.log,
	})
	if err != nil {
		a.log.Warn("change feed disabled", "error", err)
		return
	}
	a.db.SetChangeListener(pub)
	a.log.Debug("change feed attached", "broker", cfg.MQTT.Broker.Host, "prefix", cfg.MQTT.TopicPrefix)
}

// attachMetrics connects to InfluxDB and records every statement.
// The command still runs if InfluxDB is unreachable.
func (a *app) attachMetrics(ctx context.Context, cfg *config.Config) {
	client, err := influxdb.Connect(cfg.InfluxDB)
	if err != nil {
		a.log.Warn("statement metrics disabled: influxdb unavailable", "error", err)
		return
	}
	if err := client.HealthCheck(ctx); err != nil {
		a.log.Warn("statement metrics disabled: influxdb unhealthy", "error", err)
		client.Close() //nolint:errcheck // Not attached yet
		return
	}
	client.SetOnError(func(err error) {
		a.log.Warn("statement metric write failed", "error", err)
	})
	a.influx = client
	a.db.SetObserver(client)
	a.log.Debug("statement metrics attached", "url", cfg.InfluxDB.URL)
}

// close releases everything open opened, database first so that pending
// change batches are published before the broker connection goes away.
func (a *app) close() error {
	var errs []error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
		a.db = nil
	}
	if a.mqtt != nil {
		if err := a.mqtt.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing mqtt: %w", err))
		}
		a.mqtt = nil
	}
	if a.influx != nil {
		if err := a.influx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing influxdb: %w", err))
		}
		a.influx = nil
	}
	return errors.Join(errs...)
}
