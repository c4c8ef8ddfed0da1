package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/pkg/config"
	"github.com/noah-isme/grievance-api/pkg/jobs"
)

type captureMailer struct {
	mu      sync.Mutex
	sent    []string
	sendErr error
}

func (m *captureMailer) Send(to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, to)
	return nil
}

func (m *captureMailer) delivered() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

func TestDeliverSendsEmail(t *testing.T) {
	mailer := &captureMailer{}
	svc := NewNotificationService(mailer, NewMetricsService(), zap.NewNop(), config.NotificationsConfig{})

	err := svc.deliver(context.Background(), jobs.Job{
		ID:      "j1",
		Type:    "email",
		Payload: emailJob{To: "student@example.com", Subject: "Test", Body: "<p>hi</p>", GrievanceID: "g1"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"student@example.com"}, mailer.delivered())
}

func TestDeliverReturnsErrorForRetry(t *testing.T) {
	mailer := &captureMailer{sendErr: errors.New("smtp down")}
	svc := NewNotificationService(mailer, NewMetricsService(), zap.NewNop(), config.NotificationsConfig{})

	err := svc.deliver(context.Background(), jobs.Job{
		ID:      "j1",
		Type:    "email",
		Payload: emailJob{To: "student@example.com", Subject: "Test", Body: "<p>hi</p>"},
	})
	require.Error(t, err)
}

func TestDisabledServiceDropsQuietly(t *testing.T) {
	svc := NewNotificationService(nil, NewMetricsService(), zap.NewNop(), config.NotificationsConfig{})

	assert.NotPanics(t, func() {
		svc.SendSubmissionConfirmation("student@example.com", "Student", "g1", "Other")
		svc.SendStatusUpdate("student@example.com", "Student", "g1", "Resolved", nil)
		svc.SendPasswordReset("student@example.com", "Student", "token")
	})
}

func TestQueueDeliveryEndToEnd(t *testing.T) {
	mailer := &captureMailer{}
	svc := NewNotificationService(mailer, NewMetricsService(), zap.NewNop(), config.NotificationsConfig{Workers: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.SendSubmissionConfirmation("student@example.com", "Student", "g1", "Other")

	require.Eventually(t, func() bool {
		return len(mailer.delivered()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"student@example.com"}, mailer.delivered())
}
