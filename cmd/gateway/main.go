package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/walmagochi/gateway/pkg/batch"
	"github.com/walmagochi/gateway/pkg/chain"
	"github.com/walmagochi/gateway/pkg/config"
	"github.com/walmagochi/gateway/pkg/database"
	"github.com/walmagochi/gateway/pkg/pet"
	"github.com/walmagochi/gateway/pkg/server"
	"github.com/walmagochi/gateway/pkg/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("starting gateway (network=%s, listen=%s, chain_enabled=%v)",
		cfg.NetworkID, cfg.ListenAddr, cfg.ChainEnabled())

	dbClient, err := database.NewClient(cfg)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer dbClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dbClient.MigrateUp(ctx); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	repos := database.NewRepositories(dbClient)

	var gw chain.Gateway
	if cfg.ChainEnabled() {
		gw = chain.NewHTTPGateway(cfg)
		log.Println("chain mirroring enabled")
	} else {
		gw = chain.NullGateway{}
		log.Println("chain mirroring disabled: running in local-only mode")
	}

	petLogger := log.New(log.Writer(), "[pet] ", log.LstdFlags)
	orchestrator := pet.NewOrchestrator(repos.Pets, gw, petLogger)

	batchLogger := log.New(log.Writer(), "[batch] ", log.LstdFlags)
	submitter := batch.NewSubmitter(repos, gw, batchLogger)
	scheduler, err := batch.NewScheduler(submitter, &batch.SchedulerConfig{
		Schedule: cfg.BatchCronSchedule,
		Logger:   batchLogger,
	})
	if err != nil {
		log.Fatalf("create batch scheduler: %v", err)
	}

	manager := session.NewManager()
	handlers := &session.Handlers{
		Repos:   repos,
		Chain:   gw,
		Pets:    orchestrator,
		Manager: manager,
		Logger:  log.New(log.Writer(), "[session] ", log.LstdFlags),
	}

	sessCfg := session.Config{
		MaxFrameBytes:  cfg.MaxFrameBytes,
		IdleTimeout:    cfg.IdleTimeout,
		PingInterval:   cfg.PingInterval,
		OutboundBuffer: cfg.OutboundBuffer,
	}

	srv := server.New(dbClient, repos, orchestrator, scheduler, handlers, sessCfg, log.New(log.Writer(), "[server] ", log.LstdFlags))

	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("start batch scheduler: %v", err)
	}

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Mux(),
	}

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: srv.MetricsMux(),
	}

	go func() {
		log.Printf("gateway listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	go func() {
		log.Printf("metrics listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down gateway...")
	cancel()

	if err := scheduler.Stop(); err != nil {
		log.Printf("batch scheduler shutdown error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown error: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}

	log.Println("gateway stopped")
}
