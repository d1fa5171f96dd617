package service

import (
	"context"
	"fmt"

	awsbase "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"familytree/internal/logger"
)

// EmailService sends transactional email through Amazon SES. With no from
// address configured it runs disabled and every send becomes a no-op.
type EmailService struct {
	client     *sesv2.Client
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
	log        *logger.Logger
}

// NewEmailService creates a new email service
func NewEmailService(ctx context.Context, awsRegion, fromEmail, fromName, appBaseURL string, log *logger.Logger) (*EmailService, error) {
	if fromEmail == "" {
		log.Info("email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{enabled: false, log: log}, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.WithField("from", fromEmail).WithField("region", awsRegion).Info("email service enabled")
	return &EmailService{
		client:     sesv2.NewFromConfig(cfg),
		fromEmail:  fromEmail,
		fromName:   fromName,
		appBaseURL: appBaseURL,
		enabled:    true,
		log:        log,
	}, nil
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

// SendPasswordResetEmail sends a password reset email with a reset link
func (s *EmailService) SendPasswordResetEmail(ctx context.Context, toEmail, toName, resetToken string) error {
	if !s.enabled {
		return nil
	}

	resetLink := fmt.Sprintf("%s/auth/reset-password?token=%s", s.appBaseURL, resetToken)
	subject := "Reset your Family Tree password"
	htmlBody := fmt.Sprintf(`<p>Hi %s,</p>
<p>We received a request to reset the password for your Family Tree account.</p>
<p><a href="%s">Reset your password</a></p>
<p>This link expires in one hour. If you did not request a reset you can ignore this email.</p>`,
		toName, resetLink)
	textBody := fmt.Sprintf(`Hi %s,

We received a request to reset the password for your Family Tree account.

Reset your password: %s

This link expires in one hour. If you did not request a reset you can ignore this email.
`, toName, resetLink)

	return s.sendEmail(ctx, toEmail, subject, htmlBody, textBody)
}

// SendWelcomeEmail sends a welcome email to new accounts
func (s *EmailService) SendWelcomeEmail(ctx context.Context, toEmail, toName string) error {
	if !s.enabled {
		return nil
	}

	subject := "Welcome to the Family Tree"
	htmlBody := fmt.Sprintf(`<p>Hi %s,</p>
<p>Your Family Tree account is ready. You can browse the tree, submit new members for review, and propose corrections to existing records.</p>
<p><a href="%s/login">Sign in</a></p>`, toName, s.appBaseURL)
	textBody := fmt.Sprintf(`Hi %s,

Your Family Tree account is ready. You can browse the tree, submit new members for review, and propose corrections to existing records.

Sign in: %s/login
`, toName, s.appBaseURL)

	return s.sendEmail(ctx, toEmail, subject, htmlBody, textBody)
}

// SendInviteEmail sends a registration invite with its code
func (s *EmailService) SendInviteEmail(ctx context.Context, toEmail, inviterName, code string) error {
	if !s.enabled {
		return nil
	}

	registerLink := fmt.Sprintf("%s/register?invite=%s", s.appBaseURL, code)
	subject := "You are invited to the Family Tree"
	htmlBody := fmt.Sprintf(`<p>%s has invited you to join the family tree.</p>
<p><a href="%s">Create your account</a></p>
<p>Or use the invite code <strong>%s</strong> when registering. The invite expires in 7 days.</p>`,
		inviterName, registerLink, code)
	textBody := fmt.Sprintf(`%s has invited you to join the family tree.

Create your account: %s

Or use the invite code %s when registering. The invite expires in 7 days.
`, inviterName, registerLink, code)

	return s.sendEmail(ctx, toEmail, subject, htmlBody, textBody)
}

// SendBroadcastEmail delivers one announcement to one recipient
func (s *EmailService) SendBroadcastEmail(ctx context.Context, toEmail, title, body string) error {
	if !s.enabled {
		return nil
	}

	htmlBody := fmt.Sprintf(`<h2>%s</h2><p>%s</p><p><a href="%s">Open the Family Tree</a></p>`,
		title, body, s.appBaseURL)
	textBody := fmt.Sprintf("%s\n\n%s\n\nOpen the Family Tree: %s\n", title, body, s.appBaseURL)

	return s.sendEmail(ctx, toEmail, title, htmlBody, textBody)
}

func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: awsbase.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    awsbase.String(subject),
					Charset: awsbase.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    awsbase.String(htmlBody),
						Charset: awsbase.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    awsbase.String(textBody),
						Charset: awsbase.String("UTF-8"),
					},
				},
			},
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	s.log.WithField("to", toEmail).WithField("subject", subject).Debug("email sent")
	return nil
}
