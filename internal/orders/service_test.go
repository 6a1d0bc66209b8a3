package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/cartline-backend/internal/merchants"
	"github.com/angelmondragon/cartline-backend/internal/users"
	"github.com/angelmondragon/cartline-backend/pkg/db/dbtest"
	"github.com/angelmondragon/cartline-backend/pkg/db/models"
	"github.com/angelmondragon/cartline-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cartline-backend/pkg/errors"
	"github.com/angelmondragon/cartline-backend/pkg/money"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var plainFormatter = money.FormatterFunc(func(minor int64) string {
	return fmt.Sprintf("%d", minor)
})

type ledgerFixture struct {
	repo      Repository
	users     *users.Repository
	merchants *merchants.Repository
	svc       Service
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	conn := dbtest.Open(t)
	f := &ledgerFixture{
		repo:      NewRepository(conn),
		users:     users.NewRepository(conn),
		merchants: merchants.NewRepository(conn),
	}
	svc, err := NewService(f.repo, f.users, f.merchants, plainFormatter)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func newOrder(userID uuid.UUID, at time.Time, lines ...models.OrderLineItem) *models.Order {
	var total int64
	for i := range lines {
		lines[i].Position = i
		lines[i].LineTotalCents = int64(lines[i].Quantity) * lines[i].UnitPriceCents
		total += lines[i].LineTotalCents
	}
	return &models.Order{
		UserID:              userID,
		ProductTotalCents:   total,
		DeliveryChargeCents: 1050,
		TotalAmountCents:    total + 1050,
		Currency:            "NGN",
		CustomerFirstName:   "Ada",
		CustomerLastName:    "Obi",
		CustomerAddress:     "1 Marina",
		CustomerPhoneNumber: "+2348000000000",
		City:                "Lagos",
		Country:             "Nigeria",
		OrderStatus:         enums.OrderStatusProcessing,
		PaymentStatus:       enums.PaymentStatusPaid,
		OrderDate:           at,
		Items:               lines,
	}
}

func line(merchantID uuid.UUID, qty int, price int64) models.OrderLineItem {
	return models.OrderLineItem{
		ProductID:      uuid.New(),
		ProductName:    "item",
		Quantity:       qty,
		UnitPriceCents: price,
		MerchantID:     merchantID,
	}
}

func TestListForUserNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)

	user, err := f.users.Create(ctx, &models.User{FullName: "Ada Obi", Email: "ada@example.com"})
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	merchantID := uuid.New()
	older := newOrder(user.ID, base, line(merchantID, 1, 100))
	newer := newOrder(user.ID, base.Add(time.Hour), line(merchantID, 2, 500), line(merchantID, 1, 1000))
	for _, o := range []*models.Order{older, newer} {
		require.NoError(t, f.repo.Create(ctx, o))
		require.NoError(t, f.users.AppendOrder(ctx, user.ID, o.ID))
	}

	views, err := f.svc.ListForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, newer.ID, views[0].ID)
	assert.Equal(t, older.ID, views[1].ID)

	assert.Equal(t, "3050", views[0].TotalAmount)
	assert.Equal(t, "2000", views[0].ProductTotal)
	assert.Equal(t, "1050", views[0].DeliveryCharge)
	require.Len(t, views[0].Items, 2)
	assert.Equal(t, "1000", views[0].Items[0].LineTotal)
	assert.Equal(t, "Lagos", views[0].City)
}

func TestListForUserEmptyAndMissing(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)

	user, err := f.users.Create(ctx, &models.User{FullName: "No Orders", Email: "none@example.com"})
	require.NoError(t, err)

	views, err := f.svc.ListForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)

	_, err = f.svc.ListForUser(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListForMerchantShowsOnlyOwnLines(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)

	shop, err := f.merchants.Create(ctx, &models.Merchant{BusinessName: "Shop A", Email: "a@shop.example.com"})
	require.NoError(t, err)
	otherShop := uuid.New()

	order := newOrder(uuid.New(), time.Now().UTC(), line(shop.ID, 2, 500), line(otherShop, 1, 1000))
	require.NoError(t, f.repo.Create(ctx, order))
	require.NoError(t, f.merchants.AppendOrder(ctx, shop.ID, order.ID))

	views, err := f.svc.ListForMerchant(ctx, shop.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Len(t, views[0].Items, 1)
	assert.Equal(t, "1000", views[0].MerchantSubtotal)
	assert.Equal(t, "3050", views[0].TotalAmount)

	_, err = f.svc.ListForMerchant(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestFindByIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)

	userID := uuid.New()
	key := "key-1"
	order := newOrder(userID, time.Now().UTC(), line(uuid.New(), 1, 10))
	order.IdempotencyKey = &key
	require.NoError(t, f.repo.Create(ctx, order))

	found, err := f.repo.FindByIdempotencyKey(ctx, userID, key)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
	assert.Len(t, found.Items, 1)

	_, err = f.repo.FindByIdempotencyKey(ctx, uuid.New(), key)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	dup := newOrder(userID, time.Now().UTC(), line(uuid.New(), 1, 10))
	dup.IdempotencyKey = &key
	assert.Error(t, f.repo.Create(ctx, dup), "key is unique per user")
}

func TestSortNewestFirstBreaksTiesByID(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := models.Order{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), OrderDate: at}
	b := models.Order{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), OrderDate: at}
	c := models.Order{ID: uuid.MustParse("00000000-0000-0000-0000-000000000003"), OrderDate: at.Add(time.Minute)}

	rows := []models.Order{b, a, c}
	SortNewestFirst(rows)
	assert.Equal(t, []uuid.UUID{c.ID, a.ID, b.ID}, []uuid.UUID{rows[0].ID, rows[1].ID, rows[2].ID})
}
