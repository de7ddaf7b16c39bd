package email

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmt/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestTemplateRenderer_Render(t *testing.T) {
	r, err := NewTemplateRenderer()
	require.NoError(t, err)

	tests := []struct {
		template    string
		data        any
		wantSubject string
		wantInBody  string
	}{
		{
			template:    "welcome",
			data:        &domain.WelcomeMessageEmailData{Email: "ada@example.org", FirstName: "Ada"},
			wantSubject: "Welcome to the conference portal, Ada",
			wantInBody:  "ada@example.org",
		},
		{
			template:    "submission_confirmation",
			data:        &domain.SubmissionConfirmationEmailData{AuthorName: "Ada L", PaperTitle: "Engines", ConferenceName: "ICSE", TrackName: "Tools", SubmissionID: "s-1"},
			wantSubject: "Submission received: Engines",
			wantInBody:  "s-1",
		},
		{
			template:    "review_notification",
			data:        &domain.ReviewNotificationEmailData{AuthorName: "Ada L", PaperTitle: "Engines", ConferenceName: "ICSE", Recommendation: domain.RecommendationRevise},
			wantSubject: "New review for Engines",
			wantInBody:  "REVISE",
		},
		{
			template:    "reviewer_assignment",
			data:        &domain.ReviewerAssignmentEmailData{ReviewerName: "Grace H", PaperTitle: "Engines", ConferenceName: "ICSE", AssignmentID: "a-9"},
			wantSubject: "Review request: Engines",
			wantInBody:  "a-9",
		},
		{
			template:    "submission_status",
			data:        &domain.StatusChangeEmailData{AuthorName: "Ada L", PaperTitle: "Engines", OldStatus: domain.SubmissionPending, NewStatus: domain.SubmissionAccepted},
			wantSubject: "Engines is now Accepted",
			wantInBody:  "from Pending to Accepted",
		},
	}
	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			subject, html, text, err := r.Render(tt.template, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSubject, subject)
			assert.Contains(t, text, tt.wantInBody)
			assert.NotEmpty(t, html)
		})
	}
}

func TestTemplateRenderer_EscapesHTML(t *testing.T) {
	r, err := NewTemplateRenderer()
	require.NoError(t, err)
	_, html, text, err := r.Render("welcome", &domain.WelcomeMessageEmailData{Email: "x@y.org", FirstName: "<b>Eve</b>"})
	require.NoError(t, err)
	assert.NotContains(t, html, "<b>Eve</b>")
	assert.Contains(t, html, "&lt;b&gt;Eve&lt;/b&gt;")
	assert.Contains(t, text, "<b>Eve</b>")
}

func TestTemplateRenderer_UnknownTemplate(t *testing.T) {
	r, err := NewTemplateRenderer()
	require.NoError(t, err)
	_, _, _, err = r.Render("missing", nil)
	require.Error(t, err)
}

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESMailer_Send(t *testing.T) {
	client := &fakeSES{}
	m := newSESMailer(client, "noreply@conf.org", "Conference", testLogger)

	require.NoError(t, m.Send(context.Background(), "ada@example.org", "Hi", "<p>Hi</p>", ""))
	assert.Equal(t, "Conference <noreply@conf.org>", aws.ToString(client.input.Source))
	assert.Equal(t, []string{"ada@example.org"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "<p>Hi</p>", aws.ToString(client.input.Message.Body.Html.Data))
	assert.Nil(t, client.input.Message.Body.Text)

	client.err = errors.New("throttled")
	require.Error(t, m.Send(context.Background(), "ada@example.org", "Hi", "", "Hi"))
}

func TestNewMailer(t *testing.T) {
	m, err := NewMailer(MailerConfig{Provider: "carrier-pigeon"}, testLogger)
	require.NoError(t, err)
	noop, ok := m.(*NoopMailer)
	require.True(t, ok)
	require.NoError(t, noop.Send(context.Background(), "a@b.org", "s", "h", "t"))
	assert.Equal(t, []Message{{To: "a@b.org", Subject: "s", HTML: "h", Text: "t"}}, noop.Sent())

	_, err = NewMailer(MailerConfig{Provider: "ses"}, testLogger)
	require.Error(t, err)

	m, err = NewMailer(MailerConfig{Provider: "ses", FromAddress: "x@y.org", SES: SESConfig{Region: "eu-west-1"}}, testLogger)
	require.NoError(t, err)
	assert.IsType(t, &sesMailer{}, m)
}
