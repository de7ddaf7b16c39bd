package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"cmt/config"
	_ "cmt/docs"
	"cmt/internal/adapters/auth"
	"cmt/internal/adapters/email"
	"cmt/internal/adapters/paypal"
	"cmt/internal/adapters/storage"
	deliveryhttp "cmt/internal/delivery/http"
	"cmt/internal/delivery/http/controllers"
	"cmt/internal/delivery/http/middleware"
	"cmt/internal/domain"
	"cmt/internal/repository/postgres"
	"cmt/internal/services"
)

// @title Conference Management API
// @version 1.0
// @description Conference registration, paper submission, peer review and fee payment.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT.

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := config.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	roleRepo := postgres.NewRoleRepository(db)
	confRepo := postgres.NewConferenceRepository(db)
	membershipRepo := postgres.NewMembershipRepository(db)
	submissionRepo := postgres.NewSubmissionRepository(db)
	reviewRepo := postgres.NewReviewRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	tx := postgres.NewTransactor(db)

	// Adapters
	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.Email.Provider,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		SES: email.SESConfig{
			Region:             cfg.Email.AWSRegion,
			AccessKeyID:        cfg.Email.AWSAccessKeyID,
			SecretAccessKey:    cfg.Email.AWSSecretAccessKey,
			InsecureSkipVerify: cfg.Email.InsecureSkipVerify,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("create mailer: %w", err)
	}
	renderer, err := email.NewTemplateRenderer()
	if err != nil {
		return fmt.Errorf("load email templates: %w", err)
	}
	files, err := storage.NewLocalStore(cfg.UploadDir)
	if err != nil {
		return fmt.Errorf("create file store: %w", err)
	}
	gateway := paypal.NewClient(paypal.Config{
		BaseURL:      cfg.PayPal.BaseURL(),
		ClientID:     cfg.PayPal.ClientID,
		ClientSecret: cfg.PayPal.ClientSecret,
		WebhookID:    cfg.PayPal.WebhookID,
		ReturnURL:    cfg.PayPal.ReturnURL,
		CancelURL:    cfg.PayPal.CancelURL,
		BrandName:    cfg.PayPal.BrandName,
	}, nil, logger)
	if cfg.PayPal.WebhookID == "" {
		logger.Warn("PAYPAL_WEBHOOK_ID is empty; payment webhooks will be rejected")
	}

	// Services
	emailService := services.NewEmailService(mailer, renderer, logger)
	authService := services.NewAuthService(userRepo, roleRepo, auth.NewBcryptHasher(0), auth.NewJWTIssuer(cfg.JWTSecret), cfg.JWTExpiry, emailService, logger)
	userService := services.NewUserService(userRepo)
	conferenceService := services.NewConferenceService(confRepo, cfg.RequestTimeout)
	membershipService := services.NewMembershipService(confRepo, membershipRepo, cfg.RequestTimeout)
	submissionService := services.NewSubmissionService(tx, confRepo, submissionRepo, userRepo, files, emailService, logger, cfg.RequestTimeout)
	reviewService := services.NewReviewService(tx, confRepo, membershipRepo, submissionRepo, reviewRepo, userRepo, emailService, logger, cfg.RequestTimeout)
	paymentService := services.NewPaymentService(tx, confRepo, membershipRepo, paymentRepo, userRepo, gateway, pricingTiers(cfg.Pricing), logger, cfg.RequestTimeout)

	reconciler := services.NewStatusReconciler(submissionRepo, reviewService, logger)
	if err := reconciler.Start(ctx, cfg.ReconcileCron); err != nil {
		return err
	}
	defer reconciler.Stop()

	router := deliveryhttp.NewRouter(deliveryhttp.Controllers{
		Auth:       controllers.NewAuthController(logger, authService),
		User:       controllers.NewUserController(logger, userService),
		Conference: controllers.NewConferenceController(logger, conferenceService),
		Membership: controllers.NewMembershipController(logger, membershipService),
		Submission: controllers.NewSubmissionController(logger, submissionService),
		Review:     controllers.NewReviewController(logger, reviewService),
		Payment:    controllers.NewPaymentController(logger, paymentService),
		Health:     controllers.NewHealthController(logger, db),
	}, deliveryhttp.RouterConfig{
		Verifier:       auth.NewJWTVerifier(cfg.JWTSecret),
		Viewers:        services.NewViewerLoader(roleRepo, membershipRepo),
		WebhookLimiter: middleware.NewRateLimiter(cfg.WebhookRateLimitRPS, cfg.WebhookRateLimitBurst),
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           middleware.LoggingMiddleware(logger, middleware.CORS(cfg.AllowedOrigins, router)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func pricingTiers(p config.Pricing) domain.PricingTiers {
	occupations := make([]domain.Occupation, 0, len(p.DiscountedOccupations))
	for _, o := range p.DiscountedOccupations {
		occupations = append(occupations, domain.Occupation(o))
	}
	return domain.PricingTiers{
		Currency:              p.Currency,
		StudentCents:          p.StudentCents,
		StandardCents:         p.StandardCents,
		DiscountedOccupations: occupations,
	}
}
