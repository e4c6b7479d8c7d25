package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prmsu-campus/presence-api/internal/config"
	"github.com/prmsu-campus/presence-api/internal/database"
	"github.com/prmsu-campus/presence-api/internal/dto"
	"github.com/prmsu-campus/presence-api/internal/handler"
	"github.com/prmsu-campus/presence-api/internal/middleware"
	"github.com/prmsu-campus/presence-api/internal/models"
	"github.com/prmsu-campus/presence-api/internal/repository"
	"github.com/prmsu-campus/presence-api/internal/router"
	"github.com/prmsu-campus/presence-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Campus{},
		&models.Building{},
		&models.Subject{},
		&models.PresenceRecord{},
		&models.PresenceHistory{},
		&models.AuditEntry{},
		&models.Favorite{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NatsURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NatsURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	subjectRepo := repository.NewSubjectRepository(db)
	presenceRepo := repository.NewPresenceRepository(db)
	campusRepo := repository.NewCampusRepository(db)
	buildingRepo := repository.NewBuildingRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	favoriteRepo := repository.NewFavoriteRepository(db)

	events := service.NewPresenceEvents(redisClient, cfg.EventChannelBase, natsConn, logger)
	auditService := service.NewAuditService(auditRepo, redisClient, cfg.EventChannelBase, natsConn, logger)
	policyService := service.NewPolicyService(subjectRepo, presenceRepo, campusRepo, auditService, logger)
	subjectLocks := service.NewSubjectLocks()
	presenceService := service.NewPresenceService(subjectRepo, presenceRepo, campusRepo, buildingRepo, events, validate, subjectLocks, logger)
	consentService := service.NewConsentService(subjectRepo, presenceRepo, campusRepo, events, subjectLocks, cfg.SweepInterval, logger)
	scheduleService := service.NewScheduleService(subjectRepo, presenceRepo, presenceService, cfg.ScheduleInterval, logger)
	directoryService := service.NewDirectoryService(subjectRepo, buildingRepo, favoriteRepo, policyService, logger)
	mapService := service.NewMapService(policyService, buildingRepo, redisClient, cfg.OccupancyCacheTTL, logger)
	events.OnEvent(func(event dto.PresenceEvent) {
		mapService.InvalidateCampus(context.Background(), event.CampusID)
	})
	adminService, err := service.NewAdminService(campusRepo, subjectRepo, presenceRepo, buildingRepo, auditRepo, validate, logger)
	if err != nil {
		log.Fatalf("failed to build admin service: %v", err)
	}

	backgroundCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	events.Start(backgroundCtx)
	auditService.Start(backgroundCtx)
	consentService.Start(backgroundCtx)
	scheduleService.Start(backgroundCtx)

	presenceHandler := handler.NewPresenceHandler(presenceService, consentService, auditService, validate, logger)
	directoryHandler := handler.NewDirectoryHandler(directoryService, logger)
	mapHandler := handler.NewMapHandler(mapService, events, logger)
	adminHandler := handler.NewAdminHandler(adminService, consentService, auditService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		PresenceHandler:  presenceHandler,
		DirectoryHandler: directoryHandler,
		MapHandler:       mapHandler,
		AdminHandler:     adminHandler,
		JWTMiddleware:    middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, stopBackground)
}

func waitForShutdown(app *fiber.App, stopBackground context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
