// Command recompute-statuses recomputes the aggregate review status of submissions once.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/pflag"

	"cmt/config"
	"cmt/internal/adapters/email"
	"cmt/internal/domain"
	"cmt/internal/repository/postgres"
	"cmt/internal/services"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		databaseURL  string
		submissionID string
		timeout      time.Duration
		notify       bool
	)
	flagSet := pflag.NewFlagSet("recompute-statuses", pflag.ContinueOnError)
	flagSet.StringVar(&databaseURL, "database-url", "", "PostgreSQL URL (default: DATABASE_URL from the environment)")
	flagSet.StringVar(&submissionID, "submission", "", "recompute only this submission ID")
	flagSet.DurationVar(&timeout, "timeout", 5*time.Minute, "overall time limit")
	flagSet.BoolVar(&notify, "notify", false, "email authors about status changes through the configured mailer")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if databaseURL != "" {
		cfg.DBUrl = databaseURL
	}
	logger := config.NewLogger()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	emailService, err := newEmailService(cfg, notify, logger)
	if err != nil {
		return err
	}
	submissionRepo := postgres.NewSubmissionRepository(db)
	reviews := services.NewReviewService(
		postgres.NewTransactor(db),
		postgres.NewConferenceRepository(db),
		postgres.NewMembershipRepository(db),
		submissionRepo,
		postgres.NewReviewRepository(db),
		postgres.NewUserRepository(db),
		emailService,
		logger,
		cfg.RequestTimeout,
	)

	if submissionID != "" {
		status, changed, err := reviews.RecomputeStatus(ctx, submissionID)
		if err != nil {
			return fmt.Errorf("recompute %s: %w", submissionID, err)
		}
		fmt.Printf("%s: %s (changed: %t)\n", submissionID, status, changed)
		return nil
	}

	checked, changed, err := services.NewStatusReconciler(submissionRepo, reviews, logger).RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("checked %d submissions, %d changed\n", checked, changed)
	return nil
}

func newEmailService(cfg *config.Config, notify bool, logger *slog.Logger) (domain.EmailService, error) {
	var mailer domain.Mailer = email.NewNoopMailer(logger)
	if notify {
		m, err := email.NewMailer(email.MailerConfig{
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
			return nil, fmt.Errorf("create mailer: %w", err)
		}
		mailer = m
	}
	renderer, err := email.NewTemplateRenderer()
	if err != nil {
		return nil, fmt.Errorf("load email templates: %w", err)
	}
	return services.NewEmailService(mailer, renderer, logger), nil
}
