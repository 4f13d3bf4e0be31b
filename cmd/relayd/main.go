package main

import (
	"context"
	"flag"
	"net"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dawsh2/AlphaPulse-sub008/internal/config"
	"github.com/dawsh2/AlphaPulse-sub008/internal/observability"
	"github.com/dawsh2/AlphaPulse-sub008/internal/relay"
	"github.com/dawsh2/AlphaPulse-sub008/internal/server"
)

func main() {
	topologyPath := flag.String("topology", "topology.toml", "path to topology config")
	runtimePath := flag.String("runtime", "", "optional runtime overrides config")
	flag.Parse()

	logger := observability.InitLogger("relayd")

	rc := defaultRuntimeConfig()
	if *runtimePath != "" {
		var err error
		rc, err = loadRuntimeConfig(*runtimePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("runtime config")
		}
	}
	if level, err := zerolog.ParseLevel(rc.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	cfg, err := config.Load(*topologyPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *topologyPath).Msg("topology config")
	}
	if rc.ListenAddr != "" {
		cfg.Relay.ListenAddr = rc.ListenAddr
	}
	if rc.OpsAddr != "" {
		cfg.Relay.OpsAddr = rc.OpsAddr
	}

	router, err := relay.New(cfg, logger, relay.Options{})
	if err != nil {
		logger.Fatal().Err(err).Msg("relay wiring")
	}
	router.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ops := server.New(rc.NodeID, cfg.Relay.OpsAddr, router, rc.CorsOrigins, logger)
	go func() {
		if err := ops.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("ops server")
		}
	}()

	listener, err := net.Listen("tcp", cfg.Relay.ListenAddr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.Relay.ListenAddr).Msg("listen")
	}
	logger.Info().
		Str("listen", cfg.Relay.ListenAddr).
		Str("ops", cfg.Relay.OpsAddr).
		Msg("relayd up")

	var (
		connMu sync.Mutex
		conns  = make(map[net.Conn]struct{})
	)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			connMu.Lock()
			conns[conn] = struct{}{}
			connMu.Unlock()

			go func(c net.Conn) {
				defer func() {
					_ = c.Close()
					connMu.Lock()
					delete(conns, c)
					connMu.Unlock()
				}()
				if err := router.HandleConn(ctx, c.RemoteAddr().String(), c); err != nil {
					logger.Warn().Err(err).Str("remote", c.RemoteAddr().String()).Msg("connection closed")
				}
			}(conn)
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal")

	// Stop intake first so readers unblock, then drain the sinks.
	_ = listener.Close()
	connMu.Lock()
	for c := range conns {
		_ = c.Close()
	}
	connMu.Unlock()

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ParsedDrainTimeout()+time.Second)
	defer cancel()
	if err := router.Shutdown(drainCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
	logger.Info().Msg("relayd down")
}
