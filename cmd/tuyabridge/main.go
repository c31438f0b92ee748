// Tuya bridge - Tuya Cloud to MQTT gateway
//
// The bridge polls every device linked to a Tuya Cloud project, publishes
// scaled telemetry and discovery messages to MQTT, forwards MQTT commands to
// the cloud and keeps a history of device snapshots in SQLite and InfluxDB.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/tuya-bridge/migrations"

	"github.com/nerrad567/tuya-bridge/internal/api"
	"github.com/nerrad567/tuya-bridge/internal/bridge"
	"github.com/nerrad567/tuya-bridge/internal/infrastructure/config"
	"github.com/nerrad567/tuya-bridge/internal/infrastructure/database"
	"github.com/nerrad567/tuya-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/tuya-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/tuya-bridge/internal/infrastructure/metrics"
	"github.com/nerrad567/tuya-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/tuya-bridge/internal/store"
	"github.com/nerrad567/tuya-bridge/internal/tuya"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is used when TUYABRIDGE_CONFIG is unset and the file exists.
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
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Tuya bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if configPath == "" {
		log.Info("configuration loaded from environment")
	} else {
		log.Info("configuration loaded", "path", configPath)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	m := metrics.New()

	tuyaClient, err := tuya.New(tuya.ConfigFrom(cfg.Tuya))
	if err != nil {
		return fmt.Errorf("creating Tuya client: %w", err)
	}
	tuyaClient.SetLogger(log.Component("tuya"))
	log.Info("Tuya client ready", "endpoint", tuyaClient.BaseURL())

	mqttClient, err := mqtt.ConnectWithLogger(cfg.MQTT, log.Component("mqtt"))
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
		"topic_prefix", cfg.MQTT.TopicPrefix,
	)

	checks := []api.Check{{Name: "mqtt", Checker: mqttClient, Critical: true}}

	// Interface-typed so a disabled backend stays a true nil.
	var (
		records store.RecordWriter
		points  store.PointWriter
		history api.HistoryReader
	)

	if cfg.Database.Enabled {
		db, openErr := openDatabase(ctx, cfg.Database, log)
		if openErr != nil {
			return openErr
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		records, history = db, db
		checks = append(checks, api.Check{Name: "database", Checker: db})
	} else {
		log.Info("database disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
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
		points = influxClient
		checks = append(checks, api.Check{Name: "influxdb", Checker: influxClient})
	} else {
		log.Info("InfluxDB disabled")
	}

	var sink bridge.Sink
	if st := store.New(records, points); st.Enabled() {
		sink = st
	} else {
		log.Warn("no persistence backend configured, snapshots will not be stored")
	}

	svc, err := bridge.NewService(bridge.ServiceOptions{
		Registry:   tuyaClient,
		Bus:        mqttClient,
		Sink:       sink,
		Topics:     mqttClient.Topics(),
		QoS:        byte(cfg.MQTT.QoS),
		Interval:   cfg.Poll.Interval,
		Governance: cfg.Governance.Rules,
		Logger:     log.Component("bridge"),
		Metrics:    m,
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if err := svc.Start(ctx); err != nil {
		if errors.Is(err, bridge.ErrNoDevices) {
			return fmt.Errorf("no devices linked to the Tuya project: %w", err)
		}
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		svc.Stop()
	}()

	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log.Component("api"),
			Bridge:  svc,
			History: history,
			Metrics: m,
			Checks:  checks,
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal",
		"devices", len(svc.Devices()),
		"poll_interval", cfg.Poll.Interval,
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns TUYABRIDGE_CONFIG, else the default path if that
// file exists, else "" (defaults plus environment only).
func getConfigPath() string {
	if path := os.Getenv("TUYABRIDGE_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

// openDatabase opens the SQLite history database and applies migrations.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(database.ConfigFrom(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "path", cfg.Path)

	applied, err := db.Migrate(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete", "applied", applied)
	return db, nil
}
