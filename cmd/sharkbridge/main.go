// Shark Bridge - Ayla cloud to Gray Logic bus
//
// This is the main entry point for the Shark robot vacuum bridge. The
// bridge maintains a session with the Ayla Networks cloud, polls every
// bound vacuum for state, publishes discrete statuses to the message bus,
// and carries bus commands back to the cloud.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gray-logic-shark/migrations"

	"github.com/nerrad567/gray-logic-shark/internal/api"
	"github.com/nerrad567/gray-logic-shark/internal/ayla"
	"github.com/nerrad567/gray-logic-shark/internal/bridge"
	"github.com/nerrad567/gray-logic-shark/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-shark/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-shark/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-shark/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-shark/internal/registry"
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
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Shark bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Device and settings store
	repo := registry.NewSQLiteRepository(db.DB)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Cloud client and control loop
	cloud := ayla.NewClient(cfg.Ayla)
	engine := bridge.NewEngine(bridge.Options{
		PollInterval:     cfg.GetPollInterval(),
		FastPollInterval: cfg.GetFastPollInterval(),
		FastPollWindow:   cfg.GetFastPollWindow(),
		QoS:              byte(cfg.MQTT.QoS),
		Version:          version,
	}, cloud, repo, repo, mqttClient, log)

	engine.Start(ctx)
	defer func() {
		log.Info("stopping bridge engine")
		engine.Stop()
	}()
	log.Info("bridge engine started")

	// Route bus commands into the engine
	var topics mqtt.Topics
	err = mqttClient.Subscribe(topics.AllDeviceCommands(), byte(cfg.MQTT.QoS), func(topic string, payload []byte) error {
		engine.HandleBusCommand(topic, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing to command topics: %w", err)
	}
	log.Info("command subscription active", "topic", topics.AllDeviceCommands())

	// Periodic health reporting
	health := bridge.NewHealthReporter(engine, mqttClient, version, 0, byte(cfg.MQTT.QoS), log)
	health.Start(ctx)
	defer func() {
		log.Info("stopping health reporter")
		health.Stop()
	}()

	// Admin API
	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log,
			Engine:  engine,
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("admin API disabled")
	}

	// Verify infrastructure connections are healthy
	if err := healthCheck(ctx, db, mqttClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Health reporter
	// 3. Engine
	// 4. MQTT
	// 5. Database

	log.Info("Shark bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SHARKBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SHARKBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	// The engine's cloud session is established asynchronously; its health
	// is reported on the health topic rather than gating startup.

	return nil
}
