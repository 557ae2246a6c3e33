package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/idcard/backend/internal/auth"
	"github.com/idcard/backend/internal/config"
	"github.com/idcard/backend/internal/handlers"
	"github.com/idcard/backend/internal/logging"
	"github.com/idcard/backend/internal/services"
	"github.com/idcard/backend/internal/vcard"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	var (
		userService services.UserService
		cardService services.CardService
	)

	if cfg.Mongo.URI != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		client, db, err := services.ConnectMongo(connectCtx, services.MongoConfig{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			ForceTLS12: cfg.Mongo.ForceTLS12,
		}, logger)
		cancel()
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background())

		userService = services.NewMongoUserService(ctx, db)
		cardService = services.NewMongoCardService(ctx, db)
	} else {
		logger.Info("MONGO_URI not set, using file-backed storage", zap.String("data_dir", cfg.DataDir))
		users, err := services.NewMemoryUserService(cfg.DataDir)
		if err != nil {
			return err
		}
		cardStore, err := services.NewMemoryCardService(cfg.DataDir)
		if err != nil {
			return err
		}
		userService, cardService = users, cardStore
	}

	var cache services.CardCache = services.NoopCardCache{}
	if cfg.Redis.Host != "" {
		redisCache, err := services.NewRedisCardCache(ctx, services.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		}, logger)
		if err != nil {
			logger.Warn("Redis unavailable, card cache disabled", zap.Error(err))
		} else {
			defer redisCache.Close()
			cache = redisCache
		}
	}

	var images services.ImageStore
	var uploads vcard.UploadReader
	uploadDir := ""
	if cfg.GCS.Bucket != "" {
		gcs, err := services.NewGCSImageStore(ctx, cfg.GCS.Bucket, logger)
		if err != nil {
			return err
		}
		defer gcs.Close()
		images = gcs
	} else {
		local, err := services.NewLocalImageStore(cfg.UploadDir, cfg.DataDir)
		if err != nil {
			return err
		}
		images = local
		uploads = local
		uploadDir = cfg.UploadDir
	}

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	verifier := auth.Chain{tokens}
	if cfg.Firebase.ProjectID != "" {
		fb, err := auth.NewFirebaseVerifier(ctx, auth.FirebaseConfig{
			ProjectID:       cfg.Firebase.ProjectID,
			CredentialsJSON: cfg.Firebase.CredentialsJSON,
		}, userService)
		if err != nil {
			logger.Warn("Firebase verifier disabled", zap.Error(err))
		} else {
			verifier = append(verifier, fb)
		}
	}

	exporter, err := vcard.NewExporter(
		vcard.NewHTTPPhotoFetcher(cfg.Avatar.FetchTimeout, cfg.Avatar.MaxBytes),
		uploads,
		cfg.PublicBaseURL,
		logger,
	)
	if err != nil {
		return err
	}

	authHandler := handlers.NewAuthHandler(userService, tokens, cfg.CookieSecure, logger)
	deps := handlers.RouterDeps{
		Auth:   authHandler,
		Cards:  handlers.NewCardHandler(cardService, userService, cache, exporter, cfg.PublicBaseURL, logger),
		Images: handlers.NewImageHandler(images, cfg.MaxUploadSizeMB, logger),
		Accounts: handlers.NewAccountHandler(
			services.NewAccountService(userService, cardService, images, cache, logger),
			authHandler,
			logger,
		),
		Verifier:       verifier,
		AllowedOrigins: cfg.AllowedOrigins,
		UploadDir:      uploadDir,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         logger,
	}

	if cfg.Contact.Enabled() {
		var captcha services.CaptchaVerifier = services.AllowAllCaptcha{}
		if cfg.Contact.RecaptchaSecret != "" {
			captcha = services.NewRecaptchaVerifier(cfg.Contact.RecaptchaSecret)
		} else {
			logger.Warn("RECAPTCHA_SECRET not set, contact form is unprotected")
		}
		deps.Contact = handlers.NewContactHandler(
			cardService,
			userService,
			captcha,
			services.NewSendGridMailer(cfg.Contact.SendGridAPIKey, cfg.Contact.FromEmail),
			logger,
		)
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           handlers.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ID card API server starting", zap.String("addr", cfg.ServerAddress), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
