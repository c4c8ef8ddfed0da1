package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/noah-isme/grievance-api/pkg/config"
	"github.com/noah-isme/grievance-api/pkg/jobs"
)

// Mailer delivers a single HTML email.
type Mailer interface {
	Send(to, subject, htmlBody string) error
}

// SMTPMailer sends mail through a gomail SMTP dialer.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer builds a mailer from SMTP configuration.
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// Send delivers one message.
func (m *SMTPMailer) Send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

type emailJob struct {
	To          string
	Subject     string
	Body        string
	GrievanceID string
}

// NotificationService sends transactional email on grievance and auth events.
// Delivery is fire-and-forget: messages are dispatched through a background
// queue and failures are logged, never surfaced to the triggering request.
type NotificationService struct {
	mailer  Mailer
	queue   *jobs.Queue
	logger  *zap.Logger
	metrics *MetricsService
	enabled bool
}

// NewNotificationService wires the mailer behind a worker queue. A nil mailer
// disables delivery; events are logged and dropped.
func NewNotificationService(mailer Mailer, metrics *MetricsService, logger *zap.Logger, cfg config.NotificationsConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		mailer:  mailer,
		logger:  logger,
		metrics: metrics,
		enabled: mailer != nil,
	}
	s.queue = jobs.NewQueue("notifications", s.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start begins background delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// SendSubmissionConfirmation notifies a student their grievance was filed.
func (s *NotificationService) SendSubmissionConfirmation(email, name, grievanceID, category string) {
	body := fmt.Sprintf(`<h2>Grievance Submitted Successfully</h2>
<p>Dear %s,</p>
<p>Your grievance has been submitted and is being reviewed.</p>
<p><strong>Grievance ID:</strong> %s<br>
<strong>Category:</strong> %s<br>
<strong>Status:</strong> Pending</p>
<p>You can track its status in your dashboard. We aim to respond within 48-72 hours.</p>`, name, grievanceID, category)

	s.enqueue(emailJob{
		To:          email,
		Subject:     "Grievance Submitted Successfully",
		Body:        body,
		GrievanceID: grievanceID,
	})
}

// SendStatusUpdate notifies a student their grievance changed status.
func (s *NotificationService) SendStatusUpdate(email, name, grievanceID, newStatus string, remark *string) {
	body := fmt.Sprintf(`<h2>Grievance Status Updated</h2>
<p>Dear %s,</p>
<p>The status of your grievance has been updated.</p>
<p><strong>Grievance ID:</strong> %s<br>
<strong>New Status:</strong> %s</p>`, name, grievanceID, newStatus)
	if remark != nil && *remark != "" {
		body += fmt.Sprintf(`<p><strong>Admin Remark:</strong><br>%s</p>`, *remark)
	}
	body += `<p>Please check your dashboard for more details.</p>`

	s.enqueue(emailJob{
		To:          email,
		Subject:     fmt.Sprintf("Grievance %s Status Update", grievanceID),
		Body:        body,
		GrievanceID: grievanceID,
	})
}

// SendPasswordReset delivers a reset token to the account owner.
func (s *NotificationService) SendPasswordReset(email, name, resetToken string) {
	body := fmt.Sprintf(`<h2>Password Reset Request</h2>
<p>Dear %s,</p>
<p>We received a request to reset your password. Use the token below to complete the reset:</p>
<p style="word-break: break-all;"><code>%s</code></p>
<p>This token expires in 1 hour. If you didn't request this, please ignore this email.</p>`, name, resetToken)

	s.enqueue(emailJob{
		To:      email,
		Subject: "Password Reset Request",
		Body:    body,
	})
}

func (s *NotificationService) enqueue(job emailJob) {
	if !s.enabled {
		s.logger.Debug("notifications disabled, dropping email",
			zap.String("recipient", job.To),
			zap.String("subject", job.Subject))
		return
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "email",
		Payload: job,
	})
	if err != nil {
		s.logger.Error("failed to enqueue notification",
			zap.String("recipient", job.To),
			zap.String("grievance_id", job.GrievanceID),
			zap.Error(err))
	}
}

func (s *NotificationService) deliver(_ context.Context, job jobs.Job) error {
	email, ok := job.Payload.(emailJob)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := s.mailer.Send(email.To, email.Subject, email.Body); err != nil {
		s.metrics.RecordEmailDelivery(false)
		s.logger.Error("failed to send notification email",
			zap.String("recipient", email.To),
			zap.String("grievance_id", email.GrievanceID),
			zap.Error(err))
		return err
	}
	s.metrics.RecordEmailDelivery(true)
	s.logger.Info("notification email sent",
		zap.String("recipient", email.To),
		zap.String("subject", email.Subject),
		zap.String("grievance_id", email.GrievanceID))
	return nil
}
