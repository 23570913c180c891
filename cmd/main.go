package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"funnel-analytics-service/internal/cache"
	"funnel-analytics-service/internal/config"
	"funnel-analytics-service/internal/controller"
	"funnel-analytics-service/internal/db"
	httpserver "funnel-analytics-service/internal/http"
	"funnel-analytics-service/internal/preset"
	"funnel-analytics-service/internal/repository"
	"funnel-analytics-service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.NewConnection(ctx, cfg)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer conn.Close()

	if err := db.RunMigrations(ctx, conn); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	repo := repository.NewFunnelRepository(conn)
	presets := preset.NewRegistry()
	metaCache := cache.NewMetadataCache(cfg.MetadataTTL)

	funnelService := service.NewFunnelService(repo, presets, cfg)
	metadataService := service.NewMetadataService(repo, metaCache, cfg)
	metadataWorker := service.NewMetadataWorker(repo, metaCache, cfg)

	funnelController := controller.NewFunnelController(funnelService, metadataService)
	server := httpserver.NewServer(cfg, funnelController)

	go func() {
		<-ctx.Done()
		log.Println("shutting down...")
		metadataWorker.Shutdown()
		if err := server.Shutdown(); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("starting server on %s", cfg.HTTPPort)
	if err := server.Listen(cfg.HTTPPort); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
