package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"courtmaster/internal/auth"
	"courtmaster/internal/config"
	"courtmaster/internal/database"
	"courtmaster/internal/handler"
	"courtmaster/internal/infrastructure/notify"
	"courtmaster/internal/infrastructure/storage"
	"courtmaster/internal/infrastructure/vnpay"
	"courtmaster/internal/logger"
	"courtmaster/internal/repo"
	"courtmaster/internal/service"
	"courtmaster/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/mymmrac/telego"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the notification worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	dbService := database.New(db, cfg.Database.Name, log)
	defer dbService.Close()
	log.Info("connected to database", zap.String("database", cfg.Database.Name))

	paymentRepo := repo.NewPaymentRepo(db)
	logRepo := repo.NewPaymentLogRepo(db)
	bookingRepo := repo.NewBookingRepo(db)
	courtRepo := repo.NewCourtRepo(db)
	catalogRepo := repo.NewCatalogRepo(db)
	userRepo := repo.NewUserRepo(db)
	tx := repo.NewTransactor(db)

	notifier := buildNotifier(ctx, cfg, userRepo, log)
	notifications := worker.NewNotificationWorker(notifier, cfg.Notify.QueueSize, cfg.Notify.Timeout, log)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		notifications.Run(ctx)
	}()

	gateway := vnpay.NewPaymentGateway(cfg.VNPay)
	if gateway.Mock() {
		log.Warn("VNPay mock mode enabled: payments complete without the real gateway")
	}

	proofStore, err := buildProofStore(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}

	router, err := handler.NewRouter(handler.Deps{
		Payments:    service.NewPaymentService(tx, paymentRepo, logRepo, bookingRepo, gateway, log),
		Reconciler:  service.NewReconciler(tx, paymentRepo, logRepo, bookingRepo, gateway, notifications, log),
		Bookings:    service.NewBookingService(tx, bookingRepo, courtRepo, paymentRepo, logRepo, log),
		Catalog:     service.NewCatalogService(tx, catalogRepo, bookingRepo, log),
		Reports:     service.NewReportService(repo.NewReportRepo(db)),
		Proofs:      service.NewProofService(tx, paymentRepo, logRepo, bookingRepo, proofStore, notifications, cfg.Storage.MaxProofBytes, log),
		Users:       service.NewUserService(userRepo),
		Health:      dbService,
		Tokens:      auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		FrontendURL: cfg.FrontendURL,
		Logger:      log,
	}, cfg.HTTP)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}

	// worker drains its queue once ctx is cancelled
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn("notification worker did not drain in time")
	}
	return nil
}

// buildProofStore uses S3 when a bucket is configured and the local upload dir otherwise.
func buildProofStore(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (service.ObjectStore, error) {
	if !cfg.S3Enabled() {
		log.Info("payment proofs stored on disk", zap.String("dir", cfg.UploadDir))
		return storage.NewDiskStore(cfg.UploadDir), nil
	}
	client, err := storage.NewS3Client(ctx, cfg.S3Endpoint)
	if err != nil {
		return nil, err
	}
	log.Info("payment proofs stored in s3", zap.String("bucket", cfg.S3Bucket))
	return storage.NewS3Store(client, cfg.S3Bucket), nil
}

// buildNotifier enables every channel that is configured. Redis is optional;
// without it notifications are sent without the send-once marker.
func buildNotifier(ctx context.Context, cfg *config.Config, users notify.UserLookup, log *zap.Logger) notify.Notifier {
	var channels notify.Multi

	if cfg.Notify.EmailEnabled() {
		n := cfg.Notify
		channels = append(channels, notify.NewEmailNotifier(
			notify.NewSMTPSender(n.SMTPHost, n.SMTPPort, n.SMTPUser, n.SMTPPass, n.SMTPFrom), users))
		log.Info("email notifications enabled", zap.String("smtp_host", n.SMTPHost))
	}

	if cfg.Notify.SNSEnabled() {
		client, err := notify.NewSNSClient(ctx, cfg.Notify.AWSEndpoint)
		if err != nil {
			log.Error("sns notifications disabled", zap.Error(err))
		} else {
			channels = append(channels, notify.NewSNSNotifier(client, cfg.Notify.SNSTopicARN))
			log.Info("sns notifications enabled", zap.String("topic", cfg.Notify.SNSTopicARN))
		}
	}

	if cfg.Notify.TelegramEnabled() {
		bot, err := telego.NewBot(cfg.Notify.TelegramToken)
		if err != nil {
			log.Error("telegram notifications disabled", zap.Error(err))
		} else {
			channels = append(channels, notify.NewTelegramNotifier(bot, cfg.Notify.TelegramChatID))
			log.Info("telegram notifications enabled")
		}
	}

	if len(channels) == 0 {
		log.Info("no notification channels configured")
		return notify.Nop{}
	}

	if cfg.Redis.Addr == "" {
		return channels
	}
	rdb, err := notify.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn("redis unavailable, notifications will not be deduplicated", zap.Error(err))
		return channels
	}
	return notify.NewDeduped(channels, rdb, cfg.Notify.DedupeTTL, log)
}
