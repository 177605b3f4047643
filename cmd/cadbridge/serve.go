package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	_ "github.com/nerrad567/cadbridge/migrations"

	"github.com/nerrad567/cadbridge/internal/access"
	"github.com/nerrad567/cadbridge/internal/api"
	"github.com/nerrad567/cadbridge/internal/bridge"
	"github.com/nerrad567/cadbridge/internal/engine"
	"github.com/nerrad567/cadbridge/internal/infrastructure/config"
	"github.com/nerrad567/cadbridge/internal/infrastructure/database"
	"github.com/nerrad567/cadbridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/cadbridge/internal/infrastructure/logging"
	"github.com/nerrad567/cadbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/cadbridge/internal/journal"
	"github.com/nerrad567/cadbridge/internal/operations"
	"github.com/nerrad567/cadbridge/internal/settings"
)

const (
	loopbackHost = "127.0.0.1"
	anyHost      = "0.0.0.0"

	// eventBuffer bounds the journal and MQTT queues behind the pump.
	eventBuffer = 256

	// memoryJournalSize is the history kept when the database is disabled.
	memoryJournalSize = 500
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sigCtx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log := logging.New(cfg.Logging, version)
			defer log.Close() //nolint:errcheck // exiting
			log.Info("starting cadbridge", "version", version, "commit", commit, "build_date", date)
			return runServe(sigCtx, cfg, log, nil)
		},
	}
}

// changeFanout forwards document changes to every notifier.
type changeFanout []operations.ChangeNotifier

func (f changeFanout) DocumentChanged(document, method string) {
	for _, n := range f {
		n.DocumentChanged(document, method)
	}
}

// bindHost returns the listen host: the configured one if set, otherwise
// every interface when remote access is on and loopback when it is off.
func bindHost(cfg config.APIConfig, remoteEnabled bool) string {
	switch {
	case cfg.Host != "":
		return cfg.Host
	case remoteEnabled:
		return anyHost
	default:
		return loopbackHost
	}
}

// runServe runs the daemon until ctx is cancelled.
//
// Parameters:
//   - ctx: Cancelled on shutdown signals
//   - cfg: Loaded configuration
//   - log: Root logger
//   - onReady: Optional; called with the bound address once serving
//
// Returns:
//   - error: nil on clean shutdown, or the first startup failure
func runServe(ctx context.Context, cfg *config.Config, log *logging.Logger, onReady func(net.Addr)) error {
	// One daemon per settings directory.
	lock := flock.New(filepath.Join(filepath.Dir(cfg.Settings.Path), "cadbridge.lock"))
	if err := os.MkdirAll(filepath.Dir(cfg.Settings.Path), 0o750); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return errors.New("another cadbridge daemon is already running")
	}
	defer lock.Unlock() //nolint:errcheck // released on exit regardless

	// Remote access always starts from the startup preference.
	st, err := settings.Update(cfg.Settings.Path, func(s *settings.Settings) error {
		s.RemoteEnabled = s.StartupRemoteEnabled
		return nil
	})
	if errors.Is(err, settings.ErrCorrupt) {
		// The file is left as it is for the user to repair.
		log.Warn("settings file unreadable, running on defaults", "path", cfg.Settings.Path, "error", err)
		st = settings.Defaults()
		st.RemoteEnabled = st.StartupRemoteEnabled
		err = nil
	}
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	log.Info("settings loaded", "path", cfg.Settings.Path, "remote_enabled", st.RemoteEnabled, "allowed_ips", st.AllowedIPs)

	store := engine.NewStore(engine.DefaultCatalog())
	queue := bridge.NewQueue()
	pump := bridge.NewPump(store, queue, bridge.PumpConfig{
		TickInterval:    cfg.Bridge.Tick(),
		NotifyOnEnqueue: cfg.Bridge.NotifyOnEnqueue,
	})
	pump.SetLogger(log.With("component", "pump"))
	b := bridge.New(queue, cfg.Bridge.Wait())
	b.SetLogger(log.With("component", "bridge"))

	// Background workers outlive the pump so its final records are written.
	workCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	var (
		db        *database.DB
		repo      journal.Repository
		adminRepo journal.AdminRepository
	)
	if cfg.Database.Enabled {
		db, err = database.Open(ctx, database.Config{
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
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		log.Info("task journal ready", "path", cfg.Database.Path)
		repo = journal.NewSQLiteRepository(db.DB)
		adminRepo = journal.NewSQLiteAdminRepository(db.DB)
	} else {
		log.Info("database disabled, keeping task history in memory")
		repo = journal.NewMemoryRepository(memoryJournalSize)
	}

	recorder := journal.NewRecorder(repo, eventBuffer, log.With("component", "journal"))
	recorder.Start(workCtx)
	defer func() {
		stopWorkers()
		recorder.Wait()
	}()
	pump.AddObserver(recorder)

	var notifiers changeFanout

	var hub *api.Hub
	if cfg.WebSocket.Enabled {
		hub = api.NewHub(cfg.WebSocket, log.With("component", "websocket"))
		pump.AddObserver(hub)
		notifiers = append(notifiers, hub)
	}

	var metrics *api.Metrics
	if cfg.Metrics.Enabled {
		metrics = api.NewMetrics(queue.Len)
		pump.AddObserver(metrics)
	}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttLog := log.With("component", "mqtt")
		mqttClient.SetLogger(mqttLog)
		mqttClient.SetOnConnect(func() { mqttLog.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { mqttLog.Warn("MQTT disconnected", "error", err) })
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
			"topic_prefix", mqttClient.Topics().Prefix(),
		)

		events := mqtt.NewEventPublisher(mqttClient, mqttClient.Topics(), byte(cfg.MQTT.QoS), eventBuffer, mqttLog) //nolint:gosec // qos validated 0-2
		events.Start(workCtx)
		defer func() {
			stopWorkers()
			events.Wait()
		}()
		pump.AddObserver(events)
		notifiers = append(notifiers, events)
	} else {
		log.Info("MQTT disabled")
	}

	var influxClient *influxdb.Sink
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Open(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.OnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		pump.AddObserver(influxClient)
		notifiers = append(notifiers, influxClient)
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	registry := operations.New(operations.Deps{
		Bridge:   b,
		Store:    store,
		Journal:  repo,
		Notifier: notifiers,
		Logger:   log.With("component", "operations"),
	})

	filter := access.NewFilter(st.AllowedIPs, log.With("component", "access"))

	apiCfg := cfg.API
	apiCfg.Host = bindHost(cfg.API, st.RemoteEnabled)
	server, err := api.New(api.Deps{
		Config:       apiCfg,
		WS:           cfg.WebSocket,
		Security:     cfg.Security,
		Metrics:      cfg.Metrics,
		Logger:       log.With("component", "api"),
		Registry:     registry,
		Filter:       filter,
		SettingsPath: cfg.Settings.Path,
		AdminEvents:  adminRepo,
		Hub:          hub,
		Prometheus:   metrics,
		QueueDepth:   queue.Len,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	// The pump ignores the signal: it must keep serving handlers that are
	// still draining, and stops only after server.Close below returns.
	pumpCtx, stopPump := context.WithCancel(context.Background())
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		if runErr := pump.Run(pumpCtx); runErr != nil && !errors.Is(runErr, bridge.ErrPumpStopped) {
			log.Error("pump stopped", "error", runErr)
		}
	}()
	// Stop order: API, then pump (which drains the queue), then workers.
	defer func() {
		stopPump()
		<-pumpDone
		stopWorkers()
	}()

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("bridge ready", "address", server.Addr().String(), "remote_enabled", st.RemoteEnabled)
	if onReady != nil {
		onReady(server.Addr())
	}

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// healthCheck verifies the enabled infrastructure connections. Nil clients
// are skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Sink) error {
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
