package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"marketchat/internal/app/registry"
	"marketchat/internal/app/server"
	"marketchat/internal/app/server/handlers"
	"marketchat/internal/app/server/ws"
	"marketchat/internal/config"
	"marketchat/internal/core/services"
	"marketchat/internal/platform/logger"
	"marketchat/internal/platform/telemetry"
)

func main() {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	// Logger
	log := logger.NewLogger(cfg)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	log.Info("starting gateway")

	otelShutdown, err := telemetry.InitTelemetry(ctx, cfg, "gateway")
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
		os.Exit(1)
	}
	defer func() {
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	// Core
	tokens, err := services.NewWSTokenService(cfg.Gateway.AuthSecret)
	if err != nil {
		log.Error("ws token service", "err", err)
		os.Exit(1)
	}
	hub := registry.NewRegistry(log, nil)
	fanout := registry.NewFanout(hub, log)

	// Server
	gw := cfg.Gateway
	handler := server.NewGatewayHandler(server.GatewayDeps{
		Registry:       hub,
		Sink:           fanout,
		Tokens:         tokens,
		InternalSecret: gw.InternalSecret,
		WS: handlers.WSConfig{
			CORSOrigin: gw.CORSOrigin,
			SendBuffer: gw.SendBuffer,
			Socket: ws.Options{
				PingInterval:    gw.PingInterval,
				PongWait:        gw.PongWait,
				WriteWait:       gw.WriteWait,
				MaxMessageBytes: gw.MaxMessageBytes,
			},
		},
		Log: log,
	})
	srv := server.New(net.JoinHostPort(gw.Host, strconv.Itoa(gw.Port)), handler, log)
	srv.RegisterOnShutdown(hub.CloseAll)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error("gateway stopped with error", "err", err)
		return
	}
	log.Info("gateway stopped")
}
