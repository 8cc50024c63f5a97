package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "greenhouse_control/docs"
	"greenhouse_control/internal/config"
	"greenhouse_control/internal/handlers"
	"greenhouse_control/internal/logger"
	"greenhouse_control/internal/metrics"
	"greenhouse_control/internal/mqttbridge"
	"greenhouse_control/internal/realtime"
	"greenhouse_control/internal/repository"
	"greenhouse_control/internal/repository/db"
	"greenhouse_control/internal/server"
	"greenhouse_control/internal/service"
	"greenhouse_control/internal/tsdb"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

const (
	shutdownTimeout  = 10 * time.Second
	influxBatchSize  = 200
	influxFlushEvery = time.Second
)

// @title                       Greenhouse Control API
// @version                     1.0
// @description                 Sensor ingest, device control and realtime greenhouse rooms.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.Get(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = log.Sync() }()

	// open DB
	conn, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err, "path", cfg.DB.Path)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		m        *metrics.Metrics
		observer realtime.Observer
		recorder service.Recorder
	)
	if cfg.Metrics.Enabled {
		m = metrics.New()
		observer, recorder = m, m
	}
	rooms := realtime.NewRegistry(observer)

	dispatch := service.DispatcherOptions{
		DefaultGreenhouse: cfg.IoT.DefaultGreenhouse,
		Pincode:           cfg.IoT.Pincode,
		QueueSize:         cfg.Dispatcher.QueueSize,
		IdleTimeout:       cfg.Dispatcher.IdleTimeout,
		Recorder:          recorder,
		Log:               log.Named("dispatcher"),
	}

	var bridge *mqttbridge.Bridge
	if cfg.MQTT.Enabled {
		bcfg := mqttbridge.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         byte(cfg.MQTT.QoS),
		}
		client, err := mqttbridge.Connect(bcfg, log.Named("mqtt"))
		if err != nil {
			log.Fatalw("mqtt connection error", "err", err)
		}
		bridge = mqttbridge.New(client, bcfg, m, log.Named("mqtt"))
		defer bridge.Close()
		dispatch.Actuators = bridge
	}

	if cfg.Influx.Enabled {
		opts := influxdb2.DefaultOptions().
			SetBatchSize(influxBatchSize).
			SetFlushInterval(uint(influxFlushEvery.Milliseconds()))
		influx := influxdb2.NewClientWithOptions(cfg.Influx.URL, cfg.Influx.Token, opts)
		mirror := tsdb.NewMirror(influx.WriteAPI(cfg.Influx.Org, cfg.Influx.Bucket), log.Named("influx"))
		defer func() {
			mirror.Flush()
			influx.Close()
		}()
		dispatch.Mirror = mirror
	}

	// wire dependencies
	repos := repository.NewRepository(conn)
	services := service.NewService(repos, rooms, service.Options{
		StoreTimeout: cfg.DB.Timeout,
		SigningKey:   cfg.Auth.SigningKey,
		TokenTTL:     cfg.Auth.TokenTTL,
		OfflineAfter: cfg.Watchdog.OfflineAfter,
		Dispatch:     dispatch,
	})

	if bridge != nil {
		if err := bridge.Start(services.Telemetry); err != nil {
			log.Fatalw("mqtt subscribe failed", "err", err)
		}
	}

	if cfg.Bootstrap.Devices {
		devices, err := services.EnsureCanonicalDevices(ctx, cfg.IoT.DefaultGreenhouse)
		if err != nil {
			log.Errorw("bootstrap_devices_failed", "err", err)
		} else {
			log.Infow("bootstrap_devices_ready", "greenhouse_id", cfg.IoT.DefaultGreenhouse, "count", len(devices))
		}
	}

	startBackground(ctx, cfg, services, log)

	hopts := handlers.Options{
		DefaultGreenhouse: cfg.IoT.DefaultGreenhouse,
		SendBuffer:        cfg.WS.SendBuffer,
		AllowedOrigins:    cfg.WS.AllowedOrigins,
	}
	if m != nil {
		hopts.Metrics = m.Handler()
	}
	apiHandler := handlers.NewHandler(services, rooms, log.Named("http"), hopts)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

// startBackground launches the watchdog and, in development, the simulator.
func startBackground(ctx context.Context, cfg *config.Config, services *service.Service, log *logger.Logger) {
	type job struct {
		name string
		r    service.Runner
		tick time.Duration
	}
	var jobs []job
	if cfg.Watchdog.Enabled {
		jobs = append(jobs, job{"watchdog", services.Watchdog, cfg.Watchdog.Interval})
	}
	if cfg.Simulator.Enabled {
		sim := service.NewSimulatorService(services.Telemetry, cfg.Simulator.DeviceID, cfg.Simulator.GreenhouseID, log.Named("simulator"))
		jobs = append(jobs, job{"simulator", sim, cfg.Simulator.Interval})
	}
	for _, j := range jobs {
		log.Infow("background_started", "job", j.name, "tick", j.tick)
		go j.r.Run(ctx, j.tick)
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		log.Infow("http_listening", "port", port)
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
