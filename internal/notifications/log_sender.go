package notifications

import (
	"context"

	"github.com/angelmondragon/cartline-backend/pkg/logger"
)

// LogSender writes notifications to the structured log. Used in development
// and when no Pub/Sub topic is configured.
type LogSender struct {
	logg *logger.Logger
}

func NewLogSender(logg *logger.Logger) *LogSender {
	return &LogSender{logg: logg}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if s.logg == nil {
		return nil
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"kind":            string(msg.Kind),
		"order_id":        msg.OrderID.String(),
		"recipient_email": msg.RecipientEmail,
		"subject":         msg.Subject,
		"item_count":      len(msg.Items),
		"total":           msg.Total,
	})
	s.logg.Info(ctx, "notification.send")
	return nil
}
