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

	"github.com/opencourse/lms-api/internal/config"
	"github.com/opencourse/lms-api/internal/database"
	"github.com/opencourse/lms-api/internal/handler"
	"github.com/opencourse/lms-api/internal/middleware"
	"github.com/opencourse/lms-api/internal/models"
	"github.com/opencourse/lms-api/internal/repository"
	"github.com/opencourse/lms-api/internal/router"
	"github.com/opencourse/lms-api/internal/service"
	"github.com/opencourse/lms-api/pkg/storage"
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
		&models.User{},
		&models.Course{},
		&models.Enrollment{},
		&models.Assignment{},
		&models.Submission{},
		&models.SubmissionGradeHistory{},
		&models.Resource{},
		&models.Message{},
		&models.Announcement{},
		&models.ActivityLog{},
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
	} else {
		logger.Warn().Msg("redis url not set, listing caches disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain() //nolint:errcheck
	} else {
		logger.Warn().Msg("nats url not set, message events disabled")
	}

	store, err := storage.New(storage.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create storage client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	maxUploadBytes := int64(cfg.MaxUploadSizeMB) * 1024 * 1024

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	activityService := service.NewActivityService(activityRepo, logger)
	authService := service.NewAuthService(userRepo, validate, service.TokenConfig{
		Secret:        cfg.JWTSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	}, logger)
	userService := service.NewUserService(userRepo, validate, activityService, logger)
	courseService := service.NewCourseService(courseRepo, validate, redisClient, cfg.CatalogCacheTTL, activityService, logger)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, courseRepo, validate, logger)
	assignmentService := service.NewAssignmentService(assignmentRepo, courseRepo, validate, activityService, logger)
	submissionService := service.NewSubmissionService(submissionRepo, assignmentRepo, courseRepo, store, validate, activityService, logger, maxUploadBytes)
	resourceService := service.NewResourceService(resourceRepo, courseRepo, store, validate, activityService, logger, maxUploadBytes)
	broker := service.NewMessageBroker()
	messageService := service.NewMessageService(messageRepo, userRepo, courseRepo, broker, natsConn, validate, logger)
	announcementService := service.NewAnnouncementService(announcementRepo, validate, redisClient, cfg.AnnouncementCacheTTL, activityService, natsConn, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(maxUploadBytes) + 1024*1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:         handler.NewAuthHandler(authService),
		UserHandler:         handler.NewUserHandler(userService),
		CourseHandler:       handler.NewCourseHandler(courseService),
		EnrollmentHandler:   handler.NewEnrollmentHandler(enrollmentService),
		AssignmentHandler:   handler.NewAssignmentHandler(assignmentService),
		SubmissionHandler:   handler.NewSubmissionHandler(submissionService),
		ResourceHandler:     handler.NewResourceHandler(resourceService),
		MessageHandler:      handler.NewMessageHandler(messageService, broker, logger),
		AnnouncementHandler: handler.NewAnnouncementHandler(announcementService),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		CourseAccess:        courseRepo,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
