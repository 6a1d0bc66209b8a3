package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cartline-backend/pkg/db/models"
	"github.com/angelmondragon/cartline-backend/pkg/enums"
	"github.com/angelmondragon/cartline-backend/pkg/logger"
)

// Event is one notification to queue for an order.
type Event struct {
	OrderID     uuid.UUID
	Kind        enums.NotificationKind
	RecipientID uuid.UUID
	Data        any
	OccurredAt  time.Time
}

type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now}
}

// Emit queues events on tx. Their position follows argument order.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, events ...Event) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if len(events) == 0 {
		return nil
	}
	rows := make([]models.OutboxEvent, 0, len(events))
	for i, event := range events {
		payload, err := s.encode(event)
		if err != nil {
			return fmt.Errorf("encode %s event: %w", event.Kind, err)
		}
		rows = append(rows, models.OutboxEvent{
			OrderID:     event.OrderID,
			Position:    i,
			Kind:        event.Kind,
			RecipientID: event.RecipientID,
			Payload:     payload,
		})
	}
	if err := s.repo.Insert(tx.WithContext(ctx), rows); err != nil {
		return err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id": events[0].OrderID.String(),
			"queued":   len(rows),
		})
		s.logg.Info(logCtx, "outbox.queued")
	}
	return nil
}

func (s *Service) encode(event Event) (json.RawMessage, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now().UTC()
	}
	return json.Marshal(PayloadEnvelope{
		Version:    payloadVersion,
		EventID:    uuid.NewString(),
		OccurredAt: event.OccurredAt,
		Data:       data,
	})
}

// Pending returns the order's events that have not been published yet.
func (s *Service) Pending(ctx context.Context, orderID uuid.UUID) ([]models.OutboxEvent, error) {
	return s.repo.Pending(ctx, orderID)
}

func (s *Service) MarkPublished(ctx context.Context, id uuid.UUID) error {
	return s.repo.MarkPublished(ctx, id, s.now().UTC())
}

func (s *Service) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	return s.repo.MarkFailed(ctx, id, cause)
}

// Decode unpacks the envelope of event into out.
func Decode(event models.OutboxEvent, out any) error {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return fmt.Errorf("decode outbox envelope: %w", err)
	}
	if envelope.Version != payloadVersion {
		return fmt.Errorf("unsupported outbox payload version %d", envelope.Version)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode outbox data: %w", err)
	}
	return nil
}
