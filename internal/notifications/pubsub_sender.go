package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	pkgerrors "github.com/angelmondragon/cartline-backend/pkg/errors"
)

const defaultPublishTimeout = 10 * time.Second

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

// PubSubSender publishes notifications as JSON to the notifications topic.
type PubSubSender struct {
	pub     publisher
	timeout time.Duration
}

// NewPubSubSender wraps a Pub/Sub publisher.
func NewPubSubSender(p *gcppubsub.Publisher) (*PubSubSender, error) {
	if p == nil {
		return nil, errors.New("pubsub publisher required")
	}
	return &PubSubSender{pub: &gcpPublisher{Publisher: p}, timeout: defaultPublishTimeout}, nil
}

// Send publishes msg and waits for the server ack.
func (s *PubSubSender) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode notification")
	}

	publishCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result := s.pub.Publish(publishCtx, &gcppubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"kind":         string(msg.Kind),
			"order_id":     msg.OrderID.String(),
			"recipient_id": msg.RecipientID.String(),
		},
	})
	if result == nil {
		return pkgerrors.New(pkgerrors.CodeUpstream, "publisher returned no result")
	}
	if _, err := result.Get(publishCtx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, fmt.Sprintf("publish %s notification", msg.Kind))
	}
	return nil
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
