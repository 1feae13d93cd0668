package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/allisson/courier/internal/hospital/domain"
	outboxDomain "github.com/allisson/courier/internal/outbox/domain"
	"github.com/allisson/courier/internal/retry"
	"github.com/allisson/courier/internal/serializer"
)

// NewGroupConsumer returns an outbox handler that a service registers on the dead-letter
// topic under its own consumer group name. Each received dead letter is written to repo as
// a record owned by group, inside the delivery transaction.
func NewGroupConsumer(
	group string,
	repo RecordRepository,
	s *serializer.Serializer,
	logger *slog.Logger,
) outboxDomain.Handler {
	return func(ctx context.Context, payload []byte, meta outboxDomain.Metadata) error {
		decoded, err := s.Decode(meta.PayloadType, payload)
		if err != nil {
			return retry.Permanent(err)
		}

		var deadLetter domain.DeadLetter
		switch v := decoded.(type) {
		case domain.DeadLetter:
			deadLetter = v
		case *domain.DeadLetter:
			deadLetter = *v
		default:
			return retry.Permanent(fmt.Errorf("unexpected dead letter payload type %T", decoded))
		}

		record := deadLetter.RecordFor(group, time.Now().UTC())
		if err := repo.Create(ctx, record); err != nil {
			return err
		}

		if logger != nil {
			logger.InfoContext(ctx, "dead letter recorded by consumer group",
				slog.String("group", group),
				slog.String("record_id", record.ID.String()),
				slog.String("origin_topic", deadLetter.Topic),
			)
		}

		return nil
	}
}

// RegisterDeadLetterType binds domain.DeadLetter to its stable serializer tag.
func RegisterDeadLetterType(s *serializer.Serializer) error {
	return s.RegisterNamed(domain.DeadLetterTypeName, domain.DeadLetter{})
}
