package services

import (
	"context"
	"fmt"
	"log/slog"

	"cmt/internal/domain"
)

type emailService struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
	logger   *slog.Logger
}

// NewEmailService returns an EmailService that uses the given Mailer and template renderer.
func NewEmailService(mailer domain.Mailer, renderer domain.EmailTemplateRenderer, logger *slog.Logger) domain.EmailService {
	return &emailService{mailer: mailer, renderer: renderer, logger: logger}
}

func (s *emailService) send(ctx context.Context, template, to string, data any) error {
	subject, htmlBody, textBody, err := s.renderer.Render(template, data)
	if err != nil {
		return fmt.Errorf("failed to render %s template: %w", template, err)
	}
	if err := s.mailer.Send(ctx, to, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("failed to send %s email: %w", template, err)
	}
	s.logger.InfoContext(ctx, "email sent", "template", template, "to", to)
	return nil
}

// SendWelcomeMessage sends a welcome email using the "welcome" template.
func (s *emailService) SendWelcomeMessage(ctx context.Context, data *domain.WelcomeMessageEmailData) error {
	if data == nil {
		return fmt.Errorf("welcome message data is nil")
	}
	return s.send(ctx, "welcome", data.Email, data)
}

func (s *emailService) SendSubmissionConfirmation(ctx context.Context, data *domain.SubmissionConfirmationEmailData) error {
	if data == nil {
		return fmt.Errorf("submission confirmation data is nil")
	}
	return s.send(ctx, "submission_confirmation", data.Email, data)
}

func (s *emailService) SendReviewNotification(ctx context.Context, data *domain.ReviewNotificationEmailData) error {
	if data == nil {
		return fmt.Errorf("review notification data is nil")
	}
	return s.send(ctx, "review_notification", data.Email, data)
}

func (s *emailService) SendReviewerAssignment(ctx context.Context, data *domain.ReviewerAssignmentEmailData) error {
	if data == nil {
		return fmt.Errorf("reviewer assignment data is nil")
	}
	return s.send(ctx, "reviewer_assignment", data.Email, data)
}

func (s *emailService) SendStatusChange(ctx context.Context, data *domain.StatusChangeEmailData) error {
	if data == nil {
		return fmt.Errorf("status change data is nil")
	}
	return s.send(ctx, "submission_status", data.Email, data)
}
