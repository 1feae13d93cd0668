package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/allisson/courier/internal/hospital/domain"
)

// sentryAlerter reports admissions as Sentry events through a dedicated hub.
type sentryAlerter struct {
	hub          *sentry.Hub
	flushTimeout time.Duration
}

// NewSentryAlerter creates an Alerter sending one warning event per admission.
func NewSentryAlerter(options sentry.ClientOptions) (Alerter, error) {
	client, err := sentry.NewClient(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create sentry client: %w", err)
	}

	return &sentryAlerter{
		hub:          sentry.NewHub(client, sentry.NewScope()),
		flushTimeout: 2 * time.Second,
	}, nil
}

// Alert captures the admission with the topic, consumer and reason as tags.
func (s *sentryAlerter) Alert(ctx context.Context, record *domain.Record) {
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelWarning)
		scope.SetTag("topic", record.Topic)
		scope.SetTag("consumer", record.Consumer)
		scope.SetTag("reason", record.Reason)
		scope.SetContext("hospital_record", sentry.Context{
			"record_id":      record.ID.String(),
			"work_item_id":   record.WorkItemID.String(),
			"event_id":       record.EventID.String(),
			"correlation_id": record.CorrelationID,
			"retry_count":    record.RetryCount,
			"cause":          record.Cause,
		})
		s.hub.CaptureMessage(fmt.Sprintf("work item on %s hospitalized: %s", record.Topic, record.Reason))
	})
}

// Close flushes buffered events.
func (s *sentryAlerter) Close() error {
	s.hub.Flush(s.flushTimeout)
	return nil
}

// noOpAlerter discards admissions.
type noOpAlerter struct{}

// NewNoOpAlerter creates an Alerter for when alerting is disabled.
func NewNoOpAlerter() Alerter {
	return noOpAlerter{}
}

// Alert does nothing.
func (noOpAlerter) Alert(ctx context.Context, record *domain.Record) {}

// Close does nothing.
func (noOpAlerter) Close() error { return nil }
