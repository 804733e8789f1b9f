package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kiuth/recruitment-api/internal/config"
	"github.com/kiuth/recruitment-api/internal/handler"
	"github.com/kiuth/recruitment-api/internal/middleware"
	"github.com/kiuth/recruitment-api/internal/repository"
	"github.com/kiuth/recruitment-api/internal/service"
	"github.com/kiuth/recruitment-api/internal/slip"
	"github.com/kiuth/recruitment-api/internal/storage"
)

func main() {
	// ── Logging ──────────────────────────────────────────
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// ── Config ───────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	log.Info().Str("env", cfg.Env).Str("port", cfg.Port).Msg("Starting KIUTH Recruitment API")

	// ── Error reporting ──────────────────────────────────
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Environment: cfg.Env}); err != nil {
			log.Error().Err(err).Msg("Failed to initialize Sentry")
		}
		defer sentry.Flush(2 * time.Second)
	}

	// ── Database ─────────────────────────────────────────
	if cfg.AutoMigrate {
		if err := repository.Migrate(cfg.DatabaseURL); err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate database")
		}
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connected")

	// ── Storage ──────────────────────────────────────────
	var store storage.Store
	if cfg.StorageBucket != "" {
		gcs, err := storage.NewGCSStore(ctx, cfg.StorageBucket, cfg.StorageCredentialsFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open storage bucket")
		}
		defer gcs.Close()
		store = gcs
		log.Info().Str("bucket", cfg.StorageBucket).Msg("Using GCS upload store")
	} else {
		local, err := storage.NewLocalStore(cfg.UploadDir)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open upload directory")
		}
		store = local
		log.Info().Str("dir", cfg.UploadDir).Msg("Using local upload store")
	}

	// ── Repositories ─────────────────────────────────────
	userRepo := repository.NewUserRepo(pool)
	jobRepo := repository.NewJobRepo(pool)
	appRepo := repository.NewApplicationRepo(pool)
	notificationRepo := repository.NewNotificationRepo(pool)
	contactRepo := repository.NewContactRepo(pool)

	// ── Services ─────────────────────────────────────────
	mailer := service.NewSMTPMailer(service.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
		Timeout:  cfg.OutboundTimeout,
	})
	if !mailer.Enabled() {
		log.Warn().
			Int("max_attempts", cfg.DispatchMaxAttempts).
			Msg("SMTP_HOST not set, queued emails will be marked failed once their attempts run out")
	}
	smsClient := service.NewSMSClient(service.SMSConfig{
		APIURL:   cfg.SMSAPIURL,
		APIToken: cfg.SMSAPIToken,
		Gateway:  cfg.SMSGateway,
		SenderID: cfg.SMSSenderID,
		RetryMax: cfg.SMSRetryMax,
		Timeout:  cfg.OutboundTimeout,
	})

	uploadService := service.NewUploadService(store, service.UploadConfig{
		MaxSize:              int64(cfg.UploadMaxSize),
		AllowedExtensions:    cfg.UploadAllowedExtensions,
		AllowedMIMETypes:     cfg.UploadAllowedMIMETypes,
		VerifyPDF:            cfg.UploadVerifyPDF,
		PassportMaxDimension: cfg.PassportMaxDimension,
		PublicBaseURL:        cfg.PublicBaseURL,
	})
	submissionService := service.NewSubmissionService(appRepo, jobRepo, store, service.SubmissionConfig{
		ReferencePrefix:   cfg.ReferencePrefix,
		Deadline:          cfg.RecruitmentDeadline,
		PublicBaseURL:     cfg.PublicBaseURL,
		NotifyMaxAttempts: cfg.DispatchMaxAttempts,
	})
	slipService := service.NewSlipService(slip.NewPhotoLoader(store, cfg.PublicBaseURL, cfg.OutboundTimeout))
	statusService := service.NewStatusService(appRepo)
	reviewService := service.NewReviewService(appRepo)

	dispatcher := service.NewDispatcher(notificationRepo, appRepo, mailer, smsClient, slipService, service.DispatcherConfig{
		Interval:    cfg.DispatchInterval,
		BatchSize:   cfg.DispatchBatchSize,
		Workers:     cfg.DispatchWorkers,
		SendTimeout: cfg.OutboundTimeout,
	})
	if err := dispatcher.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start notification dispatcher")
	}

	// ── Handlers ─────────────────────────────────────────
	relayHandler := handler.NewRelayHandler(uploadService, mailer, smsClient)
	applicationHandler := handler.NewApplicationHandler(submissionService, statusService, slipService)
	adminHandler := handler.NewAdminHandler(reviewService)
	jobHandler := handler.NewJobHandler(jobRepo)
	contactHandler := handler.NewContactHandler(contactRepo, cfg.ContactInbox, cfg.DispatchMaxAttempts)
	authHandler := handler.NewAuthHandler(userRepo)
	profileHandler := handler.NewProfileHandler(userRepo)
	uploadsHandler := handler.NewUploadsHandler(store)

	// ── Middleware ────────────────────────────────────────
	authMiddleware, err := middleware.NewAuthMiddleware(cfg.FirebaseProjectID, cfg.AdminEmails)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Firebase auth")
	}
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS)
	defer rateLimiter.Stop()

	// ── Router ───────────────────────────────────────────
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.CustomRecovery(recoverToSentry))
	r.Use(requestLogger())
	r.HandleMethodNotAllowed = true
	r.NoMethod(handler.MethodNotAllowed)
	r.MaxMultipartMemory = int64(cfg.UploadMaxSize) + 1<<20

	// CORS
	r.Use(cors.New(cors.Config{
		AllowOrigins:              cfg.AllowedOrigins,
		AllowMethods:              []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:              []string{"Origin", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposeHeaders:             []string{"Content-Length", "Content-Disposition"},
		AllowCredentials:          true,
		MaxAge:                    12 * time.Hour,
		OptionsResponseStatusCode: http.StatusOK,
	}))

	// Health check (unauthenticated)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "kiuth-recruitment-api",
			"time":    time.Now().UTC(),
		})
	})

	// ── Public Routes ────────────────────────────────────
	public := r.Group("/", rateLimiter.Limit())
	{
		public.GET("/recruitment", applicationHandler.Recruitment)

		// Catalog
		public.GET("/jobs", jobHandler.ListJobs)
		public.GET("/jobs/:id", jobHandler.GetJob)

		// Relay, plus the script paths older clients still post to
		for path, h := range map[string]gin.HandlerFunc{
			"/relay/upload":   relayHandler.Upload,
			"/relay/email":    relayHandler.Email,
			"/relay/sms":      relayHandler.SMS,
			"/upload.php":     relayHandler.Upload,
			"/send_email.php": relayHandler.Email,
			"/send_sms.php":   relayHandler.SMS,
		} {
			public.POST(path, h)
			public.OPTIONS(path, relayHandler.Options)
		}

		// Wizard
		public.POST("/applications/validate/:step", applicationHandler.Validate)
		public.POST("/applications", applicationHandler.Submit)

		// Status
		public.GET("/status/:reference", applicationHandler.Status)
		public.GET("/status/:reference/slip", applicationHandler.Slip)

		public.POST("/contact", contactHandler.Create)
		public.GET("/uploads/*name", uploadsHandler.Serve)
	}

	// ── Authenticated Routes ─────────────────────────────
	api := r.Group("/", authMiddleware.Authenticate(), rateLimiter.Limit(), handler.ResolveUser(userRepo))
	{
		api.POST("/auth/session", authHandler.Session)
		api.GET("/profile", profileHandler.GetProfile)
		api.PUT("/profile", profileHandler.UpdateProfile)
		api.GET("/me/application", applicationHandler.MyApplication)
	}

	// ── Admin Routes ─────────────────────────────────────
	admin := r.Group("/admin", authMiddleware.Authenticate(), middleware.RequireAdmin(), rateLimiter.Limit())
	{
		admin.GET("/applications", adminHandler.List)
		admin.GET("/applications/export", adminHandler.Export)
		admin.GET("/applications/:id/history", adminHandler.History)
		admin.PUT("/applications/:id/status", adminHandler.UpdateStatus)
		admin.POST("/applications/bulk-status", adminHandler.BulkStatus)
		admin.GET("/stats", adminHandler.Stats)

		admin.GET("/jobs", jobHandler.ListJobs)
		admin.POST("/jobs", jobHandler.CreateJob)
		admin.PUT("/jobs/:id", jobHandler.UpdateJob)
		admin.DELETE("/jobs/:id", jobHandler.DeleteJob)

		admin.GET("/contacts", contactHandler.List)
		admin.PUT("/contacts/:id/status", contactHandler.UpdateStatus)
	}

	// ── Server ───────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	log.Info().Str("port", cfg.Port).Msg("KIUTH Recruitment API server running")

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := dispatcher.Stop(); err != nil {
		log.Error().Err(err).Msg("Dispatcher did not stop cleanly")
	}

	log.Info().Msg("Server stopped")
}

// recoverToSentry reports handler panics before answering 500
func recoverToSentry(c *gin.Context, recovered any) {
	err := fmt.Errorf("panic: %v", recovered)
	log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Recovered from panic")
	sentry.CaptureException(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
}

// requestLogger logs every request with zerolog
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= 400 {
			event = log.Warn()
		}
		if status >= 500 {
			event = log.Error()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", latency).
			Str("ip", c.ClientIP()).
			Msg(fmt.Sprintf("%s %s", c.Request.Method, path))
	}
}
