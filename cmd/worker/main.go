// cmd/worker is the worker process entrypoint: it owns local key-value
// storage and participates in replication. Per spec.md §6 it is launched
// as `worker <id> <port>`; additional flags (or an optional --config file)
// tune the controller address and quorum parameters.
package main

import (
	"context"
	"distributed-kvstore/internal/api"
	"distributed-kvstore/internal/config"
	"distributed-kvstore/internal/metrics"
	"distributed-kvstore/internal/worker"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	var (
		configPath string
		host       string
		flags      config.FlagValues
	)

	root := &cobra.Command{
		Use:   "worker <id> <port>",
		Short: "Distributed KV store worker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			workerID := args[0]
			port, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid port %q: %w", args[1], err)
			}
			return run(runParams{
				workerID:   workerID,
				host:       host,
				port:       port,
				configPath: configPath,
				flags:      flags,
			})
		},
	}

	fs := root.Flags()
	fs.StringVar(&configPath, "config", "", "optional YAML config file")
	fs.StringVar(&host, "host", "localhost", "this worker's advertised host")
	fs.StringVar(&flags.ControllerHost, "controller-host", config.DefaultControllerHost, "controller host")
	fs.IntVar(&flags.ControllerPort, "controller-port", config.DefaultControllerPort, "controller port")
	fs.IntVar(&flags.SyncReplicas, "sync-replicas", config.DefaultSyncReplicas, "quorum threshold for PUT success")
	fs.IntVar(&flags.HeartbeatInterval, "heartbeat-interval", config.DefaultHeartbeatSecs, "heartbeat interval, seconds")

	root.PreRun = func(cmd *cobra.Command, args []string) {
		flags.ControllerHostSet = fs.Changed("controller-host")
		flags.ControllerPortSet = fs.Changed("controller-port")
		flags.SyncReplicasSet = fs.Changed("sync-replicas")
		flags.HeartbeatIntSet = fs.Changed("heartbeat-interval")
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type runParams struct {
	workerID   string
	host       string
	port       int
	configPath string
	flags      config.FlagValues
}

func run(p runParams) error {
	log := zerolog.New(zerolog.NewConsoleWriter()).With().
		Timestamp().Str("role", "worker").Str("worker_id", p.workerID).Logger()

	file, err := config.LoadFile(p.configPath)
	if err != nil {
		return err
	}
	cluster := config.Resolve(file, p.flags)

	selfURL := fmt.Sprintf("http://%s:%d", p.host, p.port)
	controllerURL := fmt.Sprintf("http://%s:%d", cluster.ControllerHost, cluster.ControllerPort)

	reg := prometheus.NewRegistry()
	m := metrics.NewWorker(reg)

	store := worker.NewStorage()
	engine := worker.New(worker.Config{
		SelfID:        p.workerID,
		SelfURL:       selfURL,
		ControllerURL: controllerURL,
		SyncReplicas:  cluster.SyncReplicas,
	}, store, log, m)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(api.RequestID(), api.Logger(log), api.Recovery(log))
	api.NewWorkerHandler(p.workerID, engine).Register(router, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", p.port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	hb := worker.NewHeartbeatClient(p.workerID, controllerURL, cluster.HeartbeatInterval, log)

	registerCtx, registerCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer registerCancel()
	if err := hb.Register(registerCtx, p.host, p.port); err != nil {
		return fmt.Errorf("registering with controller: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hb.Run(ctx)

	go func() {
		log.Info().Str("addr", srv.Addr).Str("controller", controllerURL).Msg("worker listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	cancel()

	log.Info().Msg("shutting down worker")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	return nil
}
