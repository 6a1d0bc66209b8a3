package outbox

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/cartline-backend/pkg/db/dbtest"
	"github.com/angelmondragon/cartline-backend/pkg/db/models"
	"github.com/angelmondragon/cartline-backend/pkg/enums"
)

type note struct {
	Subject string `json:"subject"`
}

func TestEmitQueuesEventsInOrder(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	orderID := uuid.New()
	customer, merchant := uuid.New(), uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx,
			Event{OrderID: orderID, Kind: enums.NotificationKindOrderConfirmation, RecipientID: customer, Data: note{Subject: "confirmed"}},
			Event{OrderID: orderID, Kind: enums.NotificationKindMerchantNewOrder, RecipientID: merchant, Data: note{Subject: "new order"}},
		)
	})
	require.NoError(t, err)

	pending, err := svc.Pending(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, customer, pending[0].RecipientID)
	assert.Equal(t, merchant, pending[1].RecipientID)

	var decoded note
	require.NoError(t, Decode(pending[1], &decoded))
	assert.Equal(t, "new order", decoded.Subject)
}

func TestEmitRolledBackWithTransaction(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	orderID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(ctx, tx, Event{OrderID: orderID, Kind: enums.NotificationKindOrderConfirmation, RecipientID: uuid.New(), Data: note{}}); err != nil {
			return err
		}
		return errors.New("order insert failed")
	})
	require.Error(t, err)

	pending, err := svc.Pending(ctx, orderID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMarkFailedThenPublished(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	orderID := uuid.New()

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, Event{OrderID: orderID, Kind: enums.NotificationKindMerchantNewOrder, RecipientID: uuid.New(), Data: note{}})
	}))
	pending, err := svc.Pending(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	id := pending[0].ID

	require.NoError(t, svc.MarkFailed(ctx, id, errors.New(strings.Repeat("x", 2000))))
	var row models.OutboxEvent
	require.NoError(t, conn.First(&row, "id = ?", id).Error)
	assert.Equal(t, 1, row.AttemptCount)
	require.NotNil(t, row.LastError)
	assert.Len(t, *row.LastError, maxLastErrorLen)

	pending, err = svc.Pending(ctx, orderID)
	require.NoError(t, err)
	assert.Len(t, pending, 1, "failed events stay pending")

	require.NoError(t, svc.MarkPublished(ctx, id))
	pending, err = svc.Pending(ctx, orderID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	assert.Error(t, svc.Emit(context.Background(), nil, Event{}))
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	event := models.OutboxEvent{Payload: []byte(`{"version":9,"data":{}}`)}
	var out note
	assert.Error(t, Decode(event, &out))
}
