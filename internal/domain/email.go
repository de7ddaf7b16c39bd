package domain

import "context"

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(ctx context.Context, to, subject, html, text string) error
}

// EmailTemplateRenderer renders email content from a named template with the given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// WelcomeMessageEmailData holds data for the welcome email.
type WelcomeMessageEmailData struct {
	Email     string
	FirstName string
}

// SubmissionConfirmationEmailData is sent to the primary author after a paper is submitted.
type SubmissionConfirmationEmailData struct {
	Email          string
	AuthorName     string
	PaperTitle     string
	ConferenceName string
	TrackName      string
	SubmissionID   string
}

// ReviewNotificationEmailData is sent to authors when a review is submitted.
type ReviewNotificationEmailData struct {
	Email          string
	AuthorName     string
	PaperTitle     string
	ConferenceName string
	Recommendation Recommendation
}

// ReviewerAssignmentEmailData is sent to a reviewer when a paper is assigned to them.
type ReviewerAssignmentEmailData struct {
	Email          string
	ReviewerName   string
	PaperTitle     string
	ConferenceName string
	AssignmentID   string
}

// StatusChangeEmailData is sent to authors when the aggregate status of their paper changes.
type StatusChangeEmailData struct {
	Email          string
	AuthorName     string
	PaperTitle     string
	ConferenceName string
	OldStatus      SubmissionStatus
	NewStatus      SubmissionStatus
}

// EmailService defines the contract for sending domain-level emails.
type EmailService interface {
	SendWelcomeMessage(ctx context.Context, data *WelcomeMessageEmailData) error
	SendSubmissionConfirmation(ctx context.Context, data *SubmissionConfirmationEmailData) error
	SendReviewNotification(ctx context.Context, data *ReviewNotificationEmailData) error
	SendReviewerAssignment(ctx context.Context, data *ReviewerAssignmentEmailData) error
	SendStatusChange(ctx context.Context, data *StatusChangeEmailData) error
}
