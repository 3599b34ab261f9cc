package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shopfloor/internal/api"
	"shopfloor/internal/config"
	"shopfloor/internal/database"
	"shopfloor/internal/models"
	"shopfloor/internal/monitoring"
	"shopfloor/internal/orders"
	"shopfloor/internal/registry"
	"shopfloor/internal/scheduler"
	"shopfloor/internal/telemetry"
)

var (
	port        = flag.Int("port", 0, "API server port (overrides config)")
	metricsPort = flag.Int("metrics-port", 0, "Metrics server port (overrides config)")
	configFile  = flag.String("config", "configs/config.yaml", "Path to configuration file")
)

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *metricsPort != 0 {
		cfg.Server.MetricsPort = *metricsPort
	}

	// Bootstrap the machine pool
	reg := registry.NewRegistry()
	for _, mc := range cfg.Machines {
		err := reg.Register(models.Machine{
			ID:           mc.ID,
			Name:         mc.Name,
			Type:         mc.Type,
			Location:     mc.Location,
			Capabilities: mc.Capabilities,
		})
		if err != nil {
			log.Fatalf("Failed to register machine %s: %v", mc.ID, err)
		}
	}
	log.Printf("Registered %d machines", len(cfg.Machines))

	// Assemble the engine
	metrics := monitoring.NewMetrics()
	store := orders.NewStore()
	hub := api.NewHub()
	sched := scheduler.NewScheduler(reg, store, cfg.Scheduler.MaxRetries, metrics, hub)
	monitor := telemetry.NewMonitor(reg, telemetry.Thresholds{
		MaxTemperature:   cfg.Telemetry.MaxTemperature,
		MinEfficiencyPct: cfg.Telemetry.MinEfficiencyPct,
		GraceWindow:      cfg.GraceWindow(),
	}, cfg.Telemetry.HistorySize, metrics, hub, sched)

	// Start the assignment loop
	go sched.Run(ctx, cfg.TickInterval())

	// Start the persistence collaborator
	if cfg.Database.Path != "" {
		if err := database.InitDB(cfg.Database.Path); err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer database.CloseDB()

		flusher := database.NewFlusher(sched, cfg.FlushInterval())
		go flusher.Run(ctx)
		log.Printf("Persisting snapshots to %s every %s", cfg.Database.Path, cfg.FlushInterval())
	}

	// Start metrics server
	go startMetricsServer(cfg.Server.MetricsPort, metrics)

	// Start API server
	floorAPI := api.NewFloorAPI(sched, monitor, hub)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: floorAPI.Router,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down servers...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("API server shutdown error: %v", err)
		}

		cancel() // Cancel main context
	}()

	log.Printf("Starting API server on port %d", cfg.Server.Port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("API server error: %v", err)
	}
}

func startMetricsServer(port int, metrics *monitoring.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	log.Printf("Starting metrics server on port %d", port)
	if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Printf("Metrics server error: %v", err)
	}
}
