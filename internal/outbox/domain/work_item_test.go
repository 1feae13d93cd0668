package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/allisson/courier/internal/errors"
)

func validItem() *WorkItem {
	now := time.Now().UTC()
	return &WorkItem{
		ID:            uuid.Must(uuid.NewV7()),
		EventID:       uuid.Must(uuid.NewV7()),
		CorrelationID: "corr-1",
		Topic:         "CONSENT",
		PayloadType:   "events.ConsentGranted",
		Payload:       []byte(`{}`),
		CreatedAt:     now,
		ScheduledAt:   now,
	}
}

func TestWorkItem_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(w *WorkItem)
		wantErr bool
	}{
		{name: "valid", mutate: func(w *WorkItem) {}},
		{name: "with key", mutate: func(w *WorkItem) { key := "u1"; w.PartitionKey = &key }},
		{name: "missing topic", mutate: func(w *WorkItem) { w.Topic = "" }, wantErr: true},
		{name: "invalid topic", mutate: func(w *WorkItem) { w.Topic = "bad topic" }, wantErr: true},
		{name: "missing payload type", mutate: func(w *WorkItem) { w.PayloadType = "" }, wantErr: true},
		{name: "missing correlation id", mutate: func(w *WorkItem) { w.CorrelationID = "" }, wantErr: true},
		{name: "empty key", mutate: func(w *WorkItem) { key := ""; w.PartitionKey = &key }, wantErr: true},
		{name: "negative retry count", mutate: func(w *WorkItem) { w.RetryCount = -1 }, wantErr: true},
		{
			name:    "scheduled before created",
			mutate:  func(w *WorkItem) { w.ScheduledAt = w.CreatedAt.Add(-time.Second) },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := validItem()
			tt.mutate(item)

			err := item.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMetadataOf(t *testing.T) {
	item := validItem()
	key := "u1"
	item.PartitionKey = &key
	item.RetryCount = 2

	meta := MetadataOf(item)

	assert.Equal(t, item.EventID, meta.EventID)
	assert.Equal(t, "corr-1", meta.CorrelationID)
	assert.Equal(t, 2, meta.RetryCount)
	assert.Equal(t, &key, meta.Key)
	assert.Equal(t, "CONSENT", meta.Topic)
	assert.Equal(t, "events.ConsentGranted", meta.PayloadType)
}
