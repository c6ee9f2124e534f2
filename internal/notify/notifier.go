// internal/notify/notifier.go

// Package notify delivers the terminal decision to the applicant over
// email and SMS. Delivery is best-effort; a send failure surfaces as a
// record warning, never a pipeline error.
package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"support-pipeline/internal/common/config"
	stderrors "support-pipeline/internal/common/errors"
	"support-pipeline/internal/common/logger"
	"support-pipeline/internal/common/metrics"
	"support-pipeline/internal/models"
)

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Notifier sends terminal-outcome messages.
type Notifier struct {
	config    config.NotificationConfig
	sesClient SESService
	snsClient SNSService
	logger    logger.Logger
}

func NewNotifier(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*Notifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &Notifier{
		config:    cfg,
		sesClient: ses.NewFromConfig(awsCfg),
		snsClient: sns.NewFromConfig(awsCfg),
		logger:    log.WithFields(map[string]interface{}{"component": "notify"}),
	}, nil
}

// NewNotifierWithClients injects the transport clients, used in tests.
func NewNotifierWithClients(cfg config.NotificationConfig, sesClient SESService, snsClient SNSService, log logger.Logger) *Notifier {
	return &Notifier{
		config:    cfg,
		sesClient: sesClient,
		snsClient: snsClient,
		logger:    log.WithFields(map[string]interface{}{"component": "notify"}),
	}
}

// NotifyDecision delivers the terminal outcome. Returns the list of
// delivery problems; an empty list means every enabled channel
// succeeded (or no channel was applicable).
func (n *Notifier) NotifyDecision(ctx context.Context, rec *models.ApplicationRecord, phone string) []string {
	if !rec.Outcome.IsTerminal() {
		return []string{fmt.Sprintf("refusing to notify non-terminal outcome %s", rec.Outcome)}
	}

	subject, body := BuildMessage(rec)
	var problems []string

	if n.config.Email.Enabled && rec.Form.Email != "" {
		if err := n.sendEmail(ctx, rec.Form.Email, subject, body); err != nil {
			metrics.DegradedEvents.WithLabelValues("notify-email").Inc()
			n.logger.Error("email send failed", map[string]interface{}{
				"applicationId": rec.ApplicationID,
				"error":         err.Error(),
			})
			problems = append(problems, fmt.Sprintf("email notification failed: %v", err))
		}
	}

	if n.config.SMS.Enabled && phone != "" {
		if err := n.sendSMS(ctx, phone, body); err != nil {
			metrics.DegradedEvents.WithLabelValues("notify-sms").Inc()
			n.logger.Error("SMS send failed", map[string]interface{}{
				"applicationId": rec.ApplicationID,
				"error":         err.Error(),
			})
			problems = append(problems, fmt.Sprintf("SMS notification failed: %v", err))
		}
	}

	return problems
}

// BuildMessage composes the applicant-facing subject and body for a
// terminal record. Every terminal outcome yields a non-empty message.
func BuildMessage(rec *models.ApplicationRecord) (subject, body string) {
	switch rec.Outcome {
	case models.OutcomeAccepted:
		subject = "Your social support application has been accepted"
	case models.OutcomeSoftDeclined:
		subject = "An update on your social support application"
	case models.OutcomeRejected:
		subject = "Your social support application could not be validated"
	default:
		subject = "We could not complete your social support application"
	}

	body = rec.FinalDecision
	if body == "" {
		body = fmt.Sprintf("Your application %s has been processed with outcome %s.", rec.ApplicationID, rec.Outcome)
	}
	if rec.Explanation != "" {
		body += "\n\n" + rec.Explanation
	}
	if rec.Outcome == models.OutcomeAccepted && rec.Recommendation != "" && rec.Recommendation != models.RecommendationNA {
		body += "\n\nRecommended next steps: " + rec.Recommendation
	}
	if rec.Outcome == models.OutcomeRejected && len(rec.ValidationReasons) > 0 {
		body += "\n\nThe following issues were found:"
		for _, reason := range rec.ValidationReasons {
			body += "\n- " + reason
		}
	}
	return subject, body
}

func (n *Notifier) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.config.Email.FromEmail),
	})
	if err != nil {
		return stderrors.NewNotificationSendFailedError("email", err)
	}
	return nil
}

func (n *Notifier) sendSMS(ctx context.Context, to, message string) error {
	_, err := n.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	if err != nil {
		return stderrors.NewNotificationSendFailedError("sms", err)
	}
	return nil
}
