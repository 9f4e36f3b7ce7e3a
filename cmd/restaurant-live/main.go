package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"restaurant-live/internal/app/ingest"
	"restaurant-live/internal/app/stream"
	"restaurant-live/internal/common/db"
	"restaurant-live/internal/common/httpx"
	"restaurant-live/internal/common/logger"
	"restaurant-live/internal/common/mq"
	"restaurant-live/internal/config"
	"restaurant-live/internal/realtime"
	"restaurant-live/internal/repository"
)

func main() {
	cfgPath := flag.String("config", "", "path to YAML config")
	port := flag.Int("port", 0, "http port override")
	flag.Parse()

	lg := logger.New("realtime-service")

	path := *cfgPath
	if path == "" {
		p, err := config.FindConfig()
		if err != nil {
			lg.Error("config_not_found", err, nil)
			os.Exit(2)
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		lg.Error("config_load_failed", err, map[string]any{"path": path})
		os.Exit(2)
	}
	if *port != 0 {
		cfg.HTTP.Port = *port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conn, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		lg.Error("db_connect_failed", err, nil)
		os.Exit(1)
	}
	defer conn.Close()
	lg.Info("db_connected", map[string]any{"host": cfg.Database.Host, "database": cfg.Database.Database})

	rmq, err := mq.Dial(cfg.Rabbit)
	if err != nil {
		lg.Error("rabbitmq_connect_failed", err, nil)
		os.Exit(1)
	}
	defer rmq.Close()
	if err := rmq.DeclareAll(); err != nil {
		lg.Error("rabbitmq_declare_failed", err, nil)
		os.Exit(1)
	}
	lg.Info("rabbitmq_connected", map[string]any{"host": cfg.Rabbit.Host})

	reg := realtime.NewRegistry(lg)
	disp := realtime.NewDispatcher(reg, lg)
	store := repository.NewOrdersPG(conn)
	snap := realtime.NewSnapshotProvider(store, cfg.Stream.SnapshotWindow(), lg)
	identity := repository.NewIdentityPG(conn)

	h := stream.NewHandler(reg, snap, store, identity, stream.Config{
		Keepalive:   cfg.Stream.Keepalive(),
		MaxLifetime: cfg.Stream.MaxLifetime(),
	}, lg)

	r := chi.NewRouter()
	r.Mount("/", h.Routes())
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		status := map[string]any{"status": "ok"}
		code := http.StatusOK
		if err := conn.Ping(req.Context()); err != nil {
			status = map[string]any{"status": "degraded", "database": err.Error()}
			code = http.StatusServiceUnavailable
		} else if err := rmq.Ping(); err != nil {
			status = map[string]any{"status": "degraded", "rabbitmq": err.Error()}
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	})

	go func() {
		if err := ingest.New(rmq, disp, lg).Run(ctx); err != nil {
			lg.Error("ingest_stopped", err, nil)
			cancel()
		}
	}()

	srv := httpx.New(":"+strconv.Itoa(cfg.HTTP.Port), r)
	srvCtx, srvCancel := context.WithCancel(context.Background())
	defer srvCancel()
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(srvCtx) }()

	lg.Info("service_started", map[string]any{"service": "realtime-service", "port": cfg.HTTP.Port})

	select {
	case <-ctx.Done():
		lg.Info("shutdown_signal_received", nil)
		// Ask connected clients to cycle before the listener goes away.
		disp.CycleAll("server shutting down")
		srvCancel()
		<-errCh
	case err := <-errCh:
		if err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	}
}
