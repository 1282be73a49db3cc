package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// DeliveryStatus classifies the outcome of an email send.
type DeliveryStatus int

const (
	DeliverySent DeliveryStatus = iota
	DeliverySkipped
	DeliveryFailed
)

func (s DeliveryStatus) String() string {
	switch s {
	case DeliverySent:
		return "sent"
	case DeliverySkipped:
		return "skipped"
	case DeliveryFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DeliveryOutcome reports what happened to an outbound email. Skipped means
// delivery was intentionally not attempted (no sender configured); Failed
// means the provider rejected or errored. Reason is set for both.
type DeliveryOutcome struct {
	Status    DeliveryStatus
	Reason    string
	MessageID string
}

func (o DeliveryOutcome) Sent() bool { return o.Status == DeliverySent }

// EmailService defines the interface for sending authentication emails
type EmailService interface {
	SendTwoFactorCode(ctx context.Context, email, code string, expiresAt time.Time) DeliveryOutcome
	SendPasswordReset(ctx context.Context, email, resetLink string, expiresAt time.Time) DeliveryOutcome
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	fromName    string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service.
// An empty fromAddress is allowed; sends are then reported as Skipped so
// development environments work without SES credentials.
func NewAWSSESEmailService(region, fromAddress, fromName string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		fromName:    fromName,
		logger:      logger,
	}, nil
}

// SendTwoFactorCode emails a six-digit verification code
func (s *AWSSESEmailService) SendTwoFactorCode(ctx context.Context, email, code string, expiresAt time.Time) DeliveryOutcome {
	if s.fromAddress == "" {
		s.logger.Warn("email delivery skipped: no sender address configured",
			slog.String("kind", "two_factor_code"))
		return DeliveryOutcome{Status: DeliverySkipped, Reason: "no sender address configured"}
	}

	minutes := int(time.Until(expiresAt).Round(time.Minute).Minutes())

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 4px; }
        .code { font-size: 32px; letter-spacing: 8px; font-weight: bold; text-align: center; padding: 20px; background-color: #f1f3f5; border-radius: 4px; margin: 20px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Your Verification Code</h1>
        </div>
        <div class="code">%s</div>
        <p>Enter this code to finish signing in. It expires in %d minutes.</p>
        <p><strong>Didn't try to sign in?</strong><br>
        Someone may have your password. Change it as soon as possible.</p>
        <div class="footer">
            <p>This is an automated message. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`, code, minutes)

	textBody := fmt.Sprintf(`Your Verification Code

%s

Enter this code to finish signing in. It expires in %d minutes.

Didn't try to sign in? Someone may have your password. Change it as soon as possible.

This is an automated message. Please do not reply to this email.
`, code, minutes)

	return s.send(ctx, email, "Your verification code", htmlBody, textBody, "two_factor_code")
}

// SendPasswordReset emails a password reset link
func (s *AWSSESEmailService) SendPasswordReset(ctx context.Context, email, resetLink string, expiresAt time.Time) DeliveryOutcome {
	if s.fromAddress == "" {
		s.logger.Warn("email delivery skipped: no sender address configured",
			slog.String("kind", "password_reset"))
		return DeliveryOutcome{Status: DeliverySkipped, Reason: "no sender address configured"}
	}

	hours := int(time.Until(expiresAt).Round(time.Hour).Hours())

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 4px; }
        .button { display: inline-block; background-color: #0066cc; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Reset Your Password</h1>
        </div>
        <p>We received a request to reset the password for your account. Click the link below to choose a new one:</p>
        <p><a href="%s" class="button">Reset Password</a></p>
        <p>Or copy and paste this link in your browser:<br>
        <code>%s</code></p>
        <p>This link expires in %d hours.</p>
        <p><strong>Didn't request a reset?</strong><br>
        You can ignore this email. Your password will not change.</p>
        <div class="footer">
            <p>This is an automated message. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`, resetLink, resetLink, hours)

	textBody := fmt.Sprintf(`Reset Your Password

We received a request to reset the password for your account. Open the link below to choose a new one:

%s

This link expires in %d hours.

Didn't request a reset? You can ignore this email. Your password will not change.

This is an automated message. Please do not reply to this email.
`, resetLink, hours)

	return s.send(ctx, email, "Reset your password", htmlBody, textBody, "password_reset")
}

func (s *AWSSESEmailService) send(ctx context.Context, email, subject, htmlBody, textBody, kind string) DeliveryOutcome {
	source := s.fromAddress
	if s.fromName != "" {
		source = fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)
	}

	input := &ses.SendEmailInput{
		Source: aws.String(source),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send email via SES",
			slog.String("kind", kind),
			slog.Any("error", err))
		return DeliveryOutcome{Status: DeliveryFailed, Reason: err.Error()}
	}

	messageID := ""
	if result.MessageId != nil {
		messageID = *result.MessageId
	}

	s.logger.Info("email sent",
		slog.String("kind", kind),
		slog.String("message_id", messageID))

	return DeliveryOutcome{Status: DeliverySent, MessageID: messageID}
}
