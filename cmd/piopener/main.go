// piopener drives a garage door opener through a single toggle relay.
//
// It polls the door's limit switches, estimates the door position while it
// moves, turns open/close/toggle requests into relay pulses and publishes the
// resulting state over HTTP (JSON, Server-Sent Events, WebSocket) and,
// when configured, MQTT, InfluxDB and a local SQLite history.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/elliotnash/piopener/internal/api"
	"github.com/elliotnash/piopener/internal/broadcast"
	"github.com/elliotnash/piopener/internal/door"
	"github.com/elliotnash/piopener/internal/gpio"
	"github.com/elliotnash/piopener/internal/history"
	"github.com/elliotnash/piopener/internal/infrastructure/config"
	"github.com/elliotnash/piopener/internal/infrastructure/database"
	"github.com/elliotnash/piopener/internal/infrastructure/influxdb"
	"github.com/elliotnash/piopener/internal/infrastructure/logging"
	"github.com/elliotnash/piopener/internal/infrastructure/mqtt"
	"github.com/elliotnash/piopener/migrations"
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

// run wires every component, serves until ctx is cancelled and then shuts
// down in reverse order. It is separated from main for testability.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting piopener",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version).With("door", cfg.Door.ID)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// History (optional)
	var repo history.Repository
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = openDatabase(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		repo = history.NewSQLiteRepository(db.DB)
		log.Info("database ready", "path", db.Path())
	} else {
		log.Info("history disabled")
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB, cfg.Door.ID)
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
	} else {
		log.Info("InfluxDB disabled")
	}

	// Door lines
	pins, err := openPins(cfg.Door)
	if err != nil {
		return fmt.Errorf("opening door lines: %w", err)
	}
	defer func() {
		if closeErr := pins.Close(); closeErr != nil {
			log.Error("error releasing door lines", "error", closeErr)
		}
	}()
	if cfg.Door.Simulate {
		log.Warn("GPIO simulation enabled, no relay will be driven")
	}

	opts := door.Options{
		Config:     doorConfig(cfg.Door),
		CloseLimit: pins.CloseLimit,
		OpenLimit:  pins.OpenLimit,
		Coupler:    pins.Coupler,
		Logger:     log.With("component", "door"),
	}
	if influxClient != nil {
		opts.OnApplied = broadcast.CommandTelemetry(influxClient)
	}
	ctrl, err := door.New(opts)
	if err != nil {
		return fmt.Errorf("creating door controller: %w", err)
	}
	log.Info("door controller ready", "state", ctrl.State())

	// MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = connectMQTT(cfg.MQTT, cfg.Door.ID, ctrl, repo, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	} else {
		log.Info("MQTT disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	sinks, checks := sinksAndChecks(cfg.Door.ID, db, repo, mqttClient, influxClient)
	fanout := broadcast.NewFanout(ctrl, log.With("component", "broadcast"), sinks...)

	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log.With("component", "api"),
		Door:     ctrl,
		DoorID:   cfg.Door.ID,
		History:  repo,
		Checks:   checks,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	// Loops stop when loopCtx ends; the API closes first so feeds end
	// before the controller stops publishing.
	loopCtx, stopLoops := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		stopLoops()
		wg.Wait()
		log.Info("piopener stopped")
	}()

	// Command ingress stops before the control loop does.
	if mqttClient != nil {
		defer func() {
			if err := mqttClient.Unsubscribe(mqttClient.Topics().Command()); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
				log.Warn("error unsubscribing MQTT commands", "error", err)
			}
		}()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		ctrl.Run(loopCtx)
	}()
	go func() {
		defer wg.Done()
		fanout.Run(loopCtx)
	}()

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal",
		"address", server.Addr().String(),
		"sinks", fanout.Len(),
	)

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses PIOPENER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PIOPENER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// doorConfig converts the file settings into controller timing.
func doorConfig(d config.DoorConfig) door.Config {
	return door.Config{
		PollInterval:     d.PollInterval(),
		ExpectedShutTime: d.ExpectedShutTime(),
		Cooldown:         d.Cooldown(),
		PulseTicks:       d.CouplerDurationIntervals,
		RestTicks:        d.CouplerRestIntervals,
		ActiveLow:        d.CouplerActiveLow,
	}
}

// openPins requests the GPIO lines, or builds a simulated door starting
// fully closed when simulation is enabled.
func openPins(d config.DoorConfig) (*gpio.Pins, error) {
	if d.Simulate {
		sim := gpio.NewSimulator(gpio.SimulatorConfig{
			ExpectedShutTime: d.ExpectedShutTime(),
			ActiveLow:        d.CouplerActiveLow,
		})
		return sim.Pins(), nil
	}
	return gpio.Open(gpio.Config{
		Chip:             d.Chip,
		CloseLimitPin:    d.CloseLimitPin,
		OpenLimitPin:     d.OpenLimitPin,
		CouplerPin:       d.CouplerPin,
		LimitActiveLow:   d.LimitActiveLow,
		CouplerActiveLow: d.CouplerActiveLow,
		LimitDebounce:    d.LimitDebounce(),
	})
}

// openDatabase opens the history database and applies the embedded
// migrations.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return nil, errors.Join(fmt.Errorf("running migrations: %w", err), db.Close())
	}
	return db, nil
}

// connectMQTT connects to the broker and subscribes the door's command topic.
func connectMQTT(cfg config.MQTTConfig, doorID string, ctrl broadcast.Submitter, repo history.Repository, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg, doorID)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.With("component", "mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	topic := client.Topics().Command()
	handler := broadcast.CommandHandler(ctrl, repo, doorID, log.With("component", "mqtt"))
	if err := client.Subscribe(topic, byte(cfg.QoS), handler); err != nil {
		return nil, errors.Join(fmt.Errorf("subscribing to %s: %w", topic, err), client.Close())
	}

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
		"command_topic", topic,
	)
	return client, nil
}

// sinksAndChecks collects the state sinks and health checks of the enabled
// optional components. Disabled components are nil.
func sinksAndChecks(doorID string, db *database.DB, repo history.Repository, mqttClient *mqtt.Client, influxClient *influxdb.Client) ([]broadcast.Sink, map[string]api.HealthChecker) {
	var sinks []broadcast.Sink
	checks := make(map[string]api.HealthChecker)

	if db != nil {
		checks["database"] = db
	}
	if repo != nil {
		sinks = append(sinks, broadcast.NewHistorySink(repo, doorID))
	}
	if mqttClient != nil {
		sinks = append(sinks, broadcast.NewMQTTSink(mqttClient, mqttClient.Topics().State()))
		checks["mqtt"] = mqttClient
	}
	if influxClient != nil {
		sinks = append(sinks, broadcast.NewInfluxSink(influxClient))
		checks["influxdb"] = influxClient
	}
	return sinks, checks
}

// healthCheck verifies the enabled infrastructure connections. Nil
// components are disabled and skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
