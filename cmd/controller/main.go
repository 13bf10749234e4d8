// cmd/controller is the controller process entrypoint: it owns cluster
// metadata only — no key-value data lives here. Per spec.md §6, it is
// launched with no required arguments; flags (or an optional --config
// file) tune its listen address and replication parameters.
package main

import (
	"context"
	"distributed-kvstore/internal/api"
	"distributed-kvstore/internal/config"
	"distributed-kvstore/internal/controller"
	"distributed-kvstore/internal/metrics"
	"fmt"
	"net/http"
	"os"
	"os/signal"
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
		flags      config.FlagValues
	)

	root := &cobra.Command{
		Use:   "controller",
		Short: "Distributed KV store controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, flags)
		},
	}

	fs := root.Flags()
	fs.StringVar(&configPath, "config", "", "optional YAML config file")
	fs.StringVar(&flags.ControllerHost, "host", config.DefaultControllerHost, "bind host")
	fs.IntVar(&flags.ControllerPort, "port", config.DefaultControllerPort, "bind port")
	fs.IntVar(&flags.ReplicationFactor, "replication-factor", config.DefaultReplication, "target replica count")
	fs.IntVar(&flags.SyncReplicas, "sync-replicas", config.DefaultSyncReplicas, "quorum threshold for PUT success")
	fs.IntVar(&flags.HeartbeatInterval, "heartbeat-interval", config.DefaultHeartbeatSecs, "heartbeat interval, seconds")
	fs.IntVar(&flags.HeartbeatTimeout, "heartbeat-timeout", config.DefaultHeartbeatTOSecs, "heartbeat timeout, seconds")
	fs.IntVar(&flags.VirtualNodes, "virtual-nodes", config.DefaultVirtualNodes, "virtual nodes per worker")

	root.PreRun = func(cmd *cobra.Command, args []string) {
		flags.ControllerHostSet = fs.Changed("host")
		flags.ControllerPortSet = fs.Changed("port")
		flags.ReplicationSet = fs.Changed("replication-factor")
		flags.SyncReplicasSet = fs.Changed("sync-replicas")
		flags.HeartbeatIntSet = fs.Changed("heartbeat-interval")
		flags.HeartbeatTOSet = fs.Changed("heartbeat-timeout")
		flags.VirtualNodesSet = fs.Changed("virtual-nodes")
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string, flags config.FlagValues) error {
	log := zerolog.New(zerolog.NewConsoleWriter()).With().
		Timestamp().Str("role", "controller").Logger()

	file, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}
	cluster := config.Resolve(file, flags)

	if cluster.HeartbeatTimeout < 2*cluster.HeartbeatInterval {
		log.Warn().
			Dur("heartbeat_interval", cluster.HeartbeatInterval).
			Dur("heartbeat_timeout", cluster.HeartbeatTimeout).
			Msg("heartbeat timeout should be at least 2x the interval for stability")
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewController(reg)

	coord := controller.New(controller.Config{
		ReplicationFactor: cluster.ReplicationFactor,
		SyncReplicas:      cluster.SyncReplicas,
		HeartbeatInterval: cluster.HeartbeatInterval,
		HeartbeatTimeout:  cluster.HeartbeatTimeout,
		VirtualNodes:      cluster.VirtualNodes,
	}, log, m)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(api.RequestID(), api.Logger(log), api.Recovery(log))
	api.NewControllerHandler(coord).Register(router, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf("%s:%d", cluster.ControllerHost, cluster.ControllerPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go coord.RunFailureDetector(ctx)

	go func() {
		log.Info().Str("addr", addr).
			Int("replication_factor", cluster.ReplicationFactor).
			Int("sync_replicas", cluster.SyncReplicas).
			Msg("controller listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	cancel()

	log.Info().Msg("shutting down controller")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	return nil
}
