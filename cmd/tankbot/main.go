// tankbot - MQTT command publisher for a tracked robot
//
// This is the main entry point for tankbot. It waits for the network link,
// opens a broker session, and publishes robot commands invoked over HTTP or
// the Valkey dispatch channel:
//   - Commands before the link is up, or while the session is down, are dropped
//   - Drops are counted, audited and streamed, never queued
//   - The network link is reconnected on every disconnect
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/tankbot-core/internal/api"
	"github.com/nerrad567/tankbot-core/internal/audit"
	"github.com/nerrad567/tankbot-core/internal/command"
	"github.com/nerrad567/tankbot-core/internal/dispatch"
	"github.com/nerrad567/tankbot-core/internal/infrastructure/config"
	"github.com/nerrad567/tankbot-core/internal/infrastructure/database"
	"github.com/nerrad567/tankbot-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/tankbot-core/internal/infrastructure/logging"
	"github.com/nerrad567/tankbot-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/tankbot-core/internal/infrastructure/mqtt5"
	"github.com/nerrad567/tankbot-core/internal/link"
	"github.com/nerrad567/tankbot-core/internal/metrics"
	"github.com/nerrad567/tankbot-core/internal/session"
	"github.com/nerrad567/tankbot-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // startup wiring is linear but long
	log := logging.Default()
	log.Info("starting tankbot",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"device", cfg.Device.Name,
		"level", cfg.Logging.Level,
	)

	collectors := metrics.New()
	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))

	recorders := command.Recorders{collectors, hub}
	stateObservers := []func(session.State){collectors.ObserveSessionState, hub.SessionStateChanged}
	readyObservers := []func(net.IP){
		func(net.IP) { collectors.SetLinkReady() },
		hub.LinkReady,
	}

	// Audit trail (optional)
	var db *database.DB
	var repo *audit.SQLiteRepository
	if cfg.Database.Enabled {
		db, err = database.Open(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database ready", "path", db.Path())

		auditLog := log.Component("audit")
		repo = audit.NewSQLiteRepository(db.DB, auditLog)
		writer := audit.NewAsyncWriter(repo, 0, auditLog)
		writerCtx, stopWriter := context.WithCancel(context.Background())
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			writer.Run(writerCtx)
		}()
		// Runs before the database close above: drain, then close.
		defer func() {
			stopWriter()
			<-writerDone
		}()

		recorders = append(recorders, writer)
		stateObservers = append(stateObservers, func(s session.State) {
			if recErr := repo.RecordState(context.Background(), s); recErr != nil {
				auditLog.Warn("session event write failed", "state", s.String(), "error", recErr)
			}
		})
	} else {
		log.Info("audit database disabled")
	}

	// Telemetry (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB, cfg.Device.Name)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		recorders = append(recorders, influxClient)
		stateObservers = append(stateObservers, influxClient.WriteSessionState)
		readyObservers = append(readyObservers, influxClient.WriteLinkReady)
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := healthCheck(ctx, db, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	// Network link
	monitor := link.NewMonitor(
		link.NewExecDriver(cfg.Link.ReconnectCommand, time.Duration(cfg.Link.ReconnectTimeout)*time.Second),
		backoffFrom(cfg.Link.Backoff),
		log.Component("link"),
	)
	monitor.SetOnReady(func(ip net.IP) {
		for _, fn := range readyObservers {
			fn(ip)
		}
	})
	go func() {
		src := &link.InterfaceSource{
			Name:         cfg.Link.Interface,
			PollInterval: time.Duration(cfg.Link.PollInterval) * time.Millisecond,
		}
		if watchErr := monitor.Watch(ctx, src); watchErr != nil && !errors.Is(watchErr, context.Canceled) {
			log.Error("link watch stopped", "error", watchErr)
		}
	}()

	// Broker session
	supervisor := session.New(cfg.MQTT, sessionFactory(cfg.MQTT.Protocol, log), monitor, log.Component("session"))
	supervisor.SetOnStateChange(func(s session.State) {
		for _, fn := range stateObservers {
			fn(s)
		}
	})
	defer func() {
		log.Info("closing broker session")
		if closeErr := supervisor.Close(); closeErr != nil {
			log.Error("error closing broker session", "error", closeErr)
		}
	}()
	go func() {
		if runErr := supervisor.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
			log.Error("broker session unavailable, commands will be dropped", "error", runErr)
		}
	}()

	publisher := command.NewPublisher(command.DefaultTable(), supervisor,
		command.WithTopic(cfg.MQTT.Topic),
		command.WithQoS(byte(cfg.MQTT.QoS)), //nolint:gosec // validated to 0..2
		command.WithRecorder(recorders),
		command.WithLogger(log.Component("publisher")),
	)

	// HTTP API
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:    cfg.API,
			WS:        cfg.WebSocket,
			Security:  cfg.Security,
			Device:    cfg.Device,
			Logger:    log.Component("api"),
			Commander: publisher,
			Session:   supervisor,
			Link:      monitor,
			Hub:       hub,
			Metrics:   collectors.Handler(),
			Version:   version,
		}
		if repo != nil {
			deps.Audit = repo
		}
		srv, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("HTTP API disabled")
	}

	// Dispatch channel
	if cfg.Dispatch.Enabled {
		client, dispErr := dispatch.NewClient(cfg.Dispatch)
		if dispErr != nil {
			return fmt.Errorf("connecting to dispatch channel: %w", dispErr)
		}
		defer client.Close()

		sub := dispatch.NewSubscriber(cfg.Dispatch.Channel, dispatch.ValkeyReceiver(client),
			publisher, collectors, log.Component("dispatch"))
		go func() {
			if subErr := sub.Run(ctx); subErr != nil && !errors.Is(subErr, context.Canceled) {
				log.Error("dispatch subscriber stopped", "error", subErr)
			}
		}()
		log.Info("dispatch subscriber started",
			"address", cfg.Dispatch.Address,
			"channel", cfg.Dispatch.Channel,
		)
	}

	log.Info("initialisation complete, waiting for shutdown signal",
		"commands", publisher.Table().Len(),
		"topic", cfg.MQTT.Topic,
	)

	<-ctx.Done()

	stats := publisher.Stats()
	log.Info("shutdown signal received, cleaning up",
		"published", stats.Published,
		"dropped", stats.Dropped,
	)
	return nil
}

// loadConfig reads path. A missing file at the default path falls back to
// the built-in defaults; a missing explicit path is an error.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == defaultConfigPath && errors.Is(err, os.ErrNotExist) {
		return config.Default()
	}
	return nil, err
}

func getConfigPath() string {
	if path := os.Getenv("TANKBOT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// sessionFactory selects the broker adapter for the configured protocol version.
func sessionFactory(protocol int, log *logging.Logger) session.Factory {
	mqttLog := log.Component("mqtt")
	if protocol == 5 {
		return func(cfg config.MQTTConfig) (session.Client, error) {
			c, err := mqtt5.New(cfg)
			if err != nil {
				return nil, err
			}
			c.SetLogger(mqttLog)
			return c, nil
		}
	}
	return func(cfg config.MQTTConfig) (session.Client, error) {
		c, err := mqtt.New(cfg)
		if err != nil {
			return nil, err
		}
		c.SetLogger(mqttLog)
		return c, nil
	}
}

func backoffFrom(cfg config.LinkBackoffConfig) link.BackoffConfig {
	return link.BackoffConfig{
		InitialDelay: time.Duration(cfg.InitialDelay) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.MaxDelay) * time.Millisecond,
		Multiplier:   cfg.Multiplier,
	}
}

func healthCheck(ctx context.Context, db *database.DB, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
