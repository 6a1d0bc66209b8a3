package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/cartline-backend/internal/cart"
	"github.com/angelmondragon/cartline-backend/internal/merchants"
	"github.com/angelmondragon/cartline-backend/internal/notifications"
	"github.com/angelmondragon/cartline-backend/internal/orders"
	"github.com/angelmondragon/cartline-backend/internal/products"
	"github.com/angelmondragon/cartline-backend/internal/users"
	"github.com/angelmondragon/cartline-backend/pkg/config"
	"github.com/angelmondragon/cartline-backend/pkg/db"
	"github.com/angelmondragon/cartline-backend/pkg/db/dbtest"
	"github.com/angelmondragon/cartline-backend/pkg/db/models"
	"github.com/angelmondragon/cartline-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cartline-backend/pkg/errors"
	"github.com/angelmondragon/cartline-backend/pkg/money"
	"github.com/angelmondragon/cartline-backend/pkg/outbox"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var plainFormatter = money.FormatterFunc(func(minor int64) string {
	return fmt.Sprintf("%d", minor)
})

type recordingSender struct {
	mu      sync.Mutex
	sent    []notifications.Message
	failFor map[uuid.UUID]error
}

func (r *recordingSender) Send(_ context.Context, msg notifications.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failFor[msg.RecipientID]; ok {
		return err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingSender) byKind(kind enums.NotificationKind) []notifications.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notifications.Message
	for _, msg := range r.sent {
		if msg.Kind == kind {
			out = append(out, msg)
		}
	}
	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type checkoutFixture struct {
	conn      *gorm.DB
	svc       Service
	carts     cart.Service
	cartRepo  *cart.Repository
	products  *products.Repository
	users     *users.Repository
	merchants *merchants.Repository
	outbox    *outbox.Service
	sender    *recordingSender
	clock     *testClock
	user      *models.User
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	conn := dbtest.Open(t)
	tx := db.FromConn(conn)

	productRepo := products.NewRepository(conn)
	lookup, err := products.NewLookup(productRepo)
	require.NoError(t, err)

	cartRepo := cart.NewRepository(conn)
	userRepo := users.NewRepository(conn)
	merchantRepo := merchants.NewRepository(conn)
	queue := outbox.NewService(outbox.NewRepository(conn), nil)
	sender := &recordingSender{failFor: map[uuid.UUID]error{}}
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	svc, err := NewService(Params{
		Tx:        tx,
		Carts:     cartRepo,
		Orders:    orders.NewRepository(conn),
		Products:  lookup,
		Users:     userRepo,
		Merchants: merchantRepo,
		Outbox:    queue,
		Sender:    sender,
		Formatter: plainFormatter,
		Config: config.CheckoutConfig{
			DeliveryChargeCents: 1050,
			Currency:            "NGN",
			DefaultCountry:      "Nigeria",
			NotifyConcurrency:   2,
			ClaimTimeout:        time.Minute,
		},
		Now: clock.Now,
	})
	require.NoError(t, err)

	cartSvc, err := cart.NewService(cart.ServiceParams{
		Repo:      cartRepo,
		Tx:        tx,
		Products:  lookup,
		Formatter: plainFormatter,
		Recoverer: svc,
	})
	require.NoError(t, err)

	user, err := userRepo.Create(context.Background(), &models.User{
		FullName: "Ada Obi",
		Email:    "ada-" + uuid.NewString()[:8] + "@example.com",
	})
	require.NoError(t, err)

	return &checkoutFixture{
		conn:      conn,
		svc:       svc,
		carts:     cartSvc,
		cartRepo:  cartRepo,
		products:  productRepo,
		users:     userRepo,
		merchants: merchantRepo,
		outbox:    queue,
		sender:    sender,
		clock:     clock,
		user:      user,
	}
}

func (f *checkoutFixture) merchant(t *testing.T, name string) *models.Merchant {
	t.Helper()
	m, err := f.merchants.Create(context.Background(), &models.Merchant{
		BusinessName: name,
		Email:        name + "-" + uuid.NewString()[:8] + "@example.com",
	})
	require.NoError(t, err)
	return m
}

func (f *checkoutFixture) product(t *testing.T, merchant *models.Merchant, price int64) *models.Product {
	t.Helper()
	p, err := f.products.Create(context.Background(), &models.Product{
		MerchantID: merchant.ID,
		Name:       "product-" + uuid.NewString()[:8],
		PriceCents: price,
	})
	require.NoError(t, err)
	return p
}

func (f *checkoutFixture) add(t *testing.T, product *models.Product, qty int) {
	t.Helper()
	_, err := f.carts.Add(context.Background(), f.user.ID, product.ID, qty)
	require.NoError(t, err)
}

// commitOnly runs a confirm through Persisting and stops there, as if the
// process died right after the commit.
func (f *checkoutFixture) commitOnly(t *testing.T, input ConfirmInput) *models.Order {
	t.Helper()
	ctx := context.Background()
	svc := f.svc.(*service)
	run := &confirmation{input: input}

	replay, err := svc.validate(ctx, run)
	require.NoError(t, err)
	require.Nil(t, replay)
	require.NoError(t, svc.enrich(ctx, run))
	require.NoError(t, svc.persist(ctx, run))
	return run.order
}

func (f *checkoutFixture) orderCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&count).Error)
	return count
}

func validCustomer() CustomerDetails {
	return CustomerDetails{
		FirstName:   "Ada",
		LastName:    "Obi",
		Address:     "12 Marina Road",
		PhoneNumber: "+2348000000000",
		City:        "Lagos",
	}
}

func TestConfirmPersistsTotalsAndEmptiesCart(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	m := f.merchant(t, "acme")
	a := f.product(t, m, 500)
	b := f.product(t, m, 1000)
	f.add(t, a, 2)
	f.add(t, b, 1)

	res, err := f.svc.Confirm(ctx, ConfirmInput{UserID: f.user.ID, Customer: validCustomer()})
	require.NoError(t, err)
	assert.Equal(t, "2000", res.ProductTotal)
	assert.Equal(t, "1050", res.DeliveryCharge)
	assert.Equal(t, "3050", res.TotalAmount)
	assert.Equal(t, "Nigeria", res.Country)
	assert.Equal(t, enums.OrderStatusProcessing, res.OrderStatus)
	assert.Equal(t, enums.PaymentStatusPaid, res.PaymentStatus)
	assert.Len(t, res.Items, 2)
	assert.Empty(t, res.Warnings)
	assert.False(t, res.Replayed)

	stored, err := f.cartRepo.FindByUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Items)
	assert.Zero(t, stored.TotalPriceCents)
	assert.Nil(t, stored.CheckoutOrderID)

	user, err := f.users.FindByID(ctx, f.user.ID)
	require.NoError(t, err)
	assert.True(t, user.OrderIDs.Contains(res.ID))
}

func TestConfirmFansOutOnePerMerchant(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	m1 := f.merchant(t, "north")
	m2 := f.merchant(t, "south")
	f.add(t, f.product(t, m1, 500), 2)
	f.add(t, f.product(t, m2, 1000), 1)

	res, err := f.svc.Confirm(ctx, ConfirmInput{UserID: f.user.ID, Customer: validCustomer()})
	require.NoError(t, err)

	require.Len(t, f.sender.byKind(enums.NotificationKindOrderConfirmation), 1)
	merchantMsgs := f.sender.byKind(enums.NotificationKindMerchantNewOrder)
	require.Len(t, merchantMsgs, 2)

	totals := map[uuid.UUID]string{}
	for _, msg := range merchantMsgs {
		totals[msg.RecipientID] = msg.Total
		assert.Len(t, msg.Items, 1)
		require.NotNil(t, msg.Customer)
		assert.Equal(t, "Lagos", msg.Customer.City)
	}
	assert.Equal(t, "1000", totals[m1.ID])
	assert.Equal(t, "1000", totals[m2.ID])

	for _, id := range []uuid.UUID{m1.ID, m2.ID} {
		stored, err := f.merchants.FindByID(ctx, id)
		require.NoError(t, err)
		assert.True(t, stored.OrderIDs.Contains(res.ID))
	}
}

func TestConfirmEmptyCartIsValidationError(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)

	_, err := f.svc.Confirm(ctx, ConfirmInput{UserID: f.user.ID, Customer: validCustomer()})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	m := f.merchant(t, "acme")
	p := f.product(t, m, 100)
	f.add(t, p, 1)
	require.NoError(t, f.carts.Clear(ctx, f.user.ID))

	_, err = f.svc.Confirm(ctx, ConfirmInput{UserID: f.user.ID, Customer: validCustomer()})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Zero(t, f.orderCount(t))
}

func TestConfirmUnknownUser(t *testing.T) {
	f := newCheckoutFixture(t)
	_, err := f.svc.Confirm(context.Background(), ConfirmInput{UserID: uuid.New(), Customer: validCustomer()})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestConfirmUnknownUserReportedBeforeCustomerFields(t *testing.T) {
	f := newCheckoutFixture(t)
	_, err := f.svc.Confirm(context.Background(), ConfirmInput{UserID: uuid.New(), Customer: CustomerDetails{}})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestConfirmRejectsMissingCustomerFields(t *testing.T) {
	f := newCheckoutFixture(t)
	customer := validCustomer()
	customer.City = "  "

	_, err := f.svc.Confirm(context.Background(), ConfirmInput{UserID: f.user.ID, Customer: customer})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, map[string]string{"city": "is required"}, typed.Details())
}

func TestDeletedProductPreviewDropsConfirmFails(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	m := f.merchant(t, "acme")
	keep := f.product(t, m, 700)
	gone := f.product(t, m, 300)
	f.add(t, keep, 1)
	f.add(t, gone, 2)
	require.NoError(t, f.products.SoftDelete(ctx, gone.ID))

	quote, err := f.svc.Preview(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, quote.Items, 1)
	assert.Equal(t, keep.ID, quote.Items[0].ProductID)
	assert.Equal(t, []uuid.UUID{gone.ID}, quote.DroppedProductIDs)
	assert.Equal(t, "700", quote.ProductTotal)
	assert.Equal(t, "1750", quote.TotalAmount)

	_, err = f.svc.Confirm(ctx, ConfirmInput{UserID: f.user.ID, Customer: validCustomer()})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Zero(t, f.orderCount(t))

	stored, err := f.cartRepo.FindByUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)
	assert.Nil(t, stored.CheckoutOrderID)
}

func TestPreviewGroupsByMerchant(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	m1 := f.merchant(t, "north")
	m2 := f.merchant(t, "south")
	f.add(t, f.product(t, m1, 500), 2)
	f.add(t, f.product(t, m2, 250), 4)
	f.add(t, f.product(t, m1, 100), 1)

	quote, err := f.svc.Preview(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, quote.Merchants, 2)
	assert.Equal(t, m1.ID, quote.Merchants[0].MerchantID)
	assert.Equal(t, "1100", quote.Merchants[0].Subtotal)
	assert.Len(t, quote.Merchants[0].ProductIDs, 2)
	assert.Equal(t, m2.ID, quote.Merchants[1].MerchantID)
	assert.Equal(t, "1000", quote.Merchants[1].Subtotal)
	assert.Empty(t, quote.DroppedProductIDs)
	assert.Zero(t, f.orderCount(t))
}

func TestPreviewWithoutCart(t *testing.T) {
	f := newCheckoutFixture(t)
	_, err := f.svc.Preview(context.Background(), f.user.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestFailingMerchantSendBecomesWarning(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	broken := f.merchant(t, "broken")
	healthy := f.merchant(t, "healthy")
	f.add(t, f.product(t, broken, 500), 1)
	f.add(t, f.product(t, healthy, 800), 1)
	f.sender.failFor[broken.ID] = errors.New("topic unavailable")

	res, err := f.svc.Confirm(ctx, ConfirmInput{UserID: f.user.ID, Customer: validCustomer()})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], broken.ID.String())
	assert.Equal(t, int64(1), f.orderCount(t))

	merchantMsgs := f.sender.byKind(enums.NotificationKindMerchantNewOrder)
	require.Len(t, merchantMsgs, 1)
	assert.Equal(t, healthy.ID, merchantMsgs[0].RecipientID)

	pending, err := f.outbox.Pending(ctx, res.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1, "the failed notice stays queued")
	assert.Equal(t, broken.ID, pending[0].RecipientID)
	assert.Equal(t, 1, pending[0].AttemptCount)

	for _, id := range []uuid.UUID{broken.ID, healthy.ID} {
		stored, err := f.merchants.FindByID(ctx, id)
		require.NoError(t, err)
		assert.True(t, stored.OrderIDs.Contains(res.ID))
	}
}

func TestConfirmReplaysIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	m := f.merchant(t, "acme")
	f.add(t, f.product(t, m, 500), 1)

	input := ConfirmInput{UserID: f.user.ID, Customer: validCustomer(), IdempotencyKey: "key-1"}
	first, err := f.svc.Confirm(ctx, input)
	require.NoError(t, err)

	second, err := f.svc.Confirm(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.Replayed)
	assert.Equal(t, int64(1), f.orderCount(t))
	assert.Len(t, f.sender.byKind(enums.NotificationKindOrderConfirmation), 1)
}

func TestConfirmRejectsClaimedCart(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	m := f.merchant(t, "acme")
	f.add(t, f.product(t, m, 500), 1)

	stored, err := f.cartRepo.FindByUser(ctx, f.user.ID)
	require.NoError(t, err)
	claimed, err := f.cartRepo.ClaimForCheckout(ctx, stored.ID, stored.Version, uuid.New(), f.clock.Now())
	require.NoError(t, err)
	require.True(t, claimed)

	_, err = f.svc.Confirm(ctx, ConfirmInput{UserID: f.user.ID, Customer: validCustomer()})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Zero(t, f.orderCount(t))
}

func TestConfirmQueuesNotificationsWithOrder(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	m1 := f.merchant(t, "north")
	m2 := f.merchant(t, "south")
	f.add(t, f.product(t, m1, 500), 1)
	f.add(t, f.product(t, m2, 700), 1)

	order := f.commitOnly(t, ConfirmInput{UserID: f.user.ID, Customer: validCustomer()})

	pending, err := f.outbox.Pending(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, enums.NotificationKindOrderConfirmation, pending[0].Kind)
	assert.Equal(t, f.user.ID, pending[0].RecipientID)
	assert.ElementsMatch(t, []uuid.UUID{m1.ID, m2.ID}, []uuid.UUID{pending[1].RecipientID, pending[2].RecipientID})
	assert.Empty(t, f.sender.byKind(enums.NotificationKindOrderConfirmation), "nothing is sent before the commit finishes")
}

func TestReplayFinishesInterruptedCheckout(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	m := f.merchant(t, "acme")
	p := f.product(t, m, 500)
	f.add(t, p, 1)

	input := ConfirmInput{UserID: f.user.ID, Customer: validCustomer(), IdempotencyKey: "k-1"}
	order := f.commitOnly(t, input)

	res, err := f.svc.Confirm(ctx, input)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, order.ID, res.ID)
	stored, err := f.cartRepo.FindByUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.CheckoutOrderID, "a fresh claim belongs to a running confirm")
	assert.Empty(t, f.sender.byKind(enums.NotificationKindOrderConfirmation))

	f.clock.Advance(2 * time.Minute)
	res, err = f.svc.Confirm(ctx, input)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, order.ID, res.ID)
	assert.Empty(t, res.Warnings)

	stored, err = f.cartRepo.FindByUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Items)
	assert.Nil(t, stored.CheckoutOrderID)
	assert.Len(t, f.sender.byKind(enums.NotificationKindOrderConfirmation), 1)
	assert.Len(t, f.sender.byKind(enums.NotificationKindMerchantNewOrder), 1)

	merchant, err := f.merchants.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, merchant.OrderIDs.Contains(order.ID))
	pending, err := f.outbox.Pending(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = f.carts.Add(ctx, f.user.ID, p.ID, 1)
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, input)
	require.NoError(t, err)
	assert.Len(t, f.sender.byKind(enums.NotificationKindOrderConfirmation), 1, "a finished checkout is not notified twice")
	assert.Equal(t, int64(1), f.orderCount(t))
}

func TestConfirmWithoutKeyResumesExpiredClaim(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	m := f.merchant(t, "acme")
	f.add(t, f.product(t, m, 500), 2)

	order := f.commitOnly(t, ConfirmInput{UserID: f.user.ID, Customer: validCustomer()})

	_, err := f.svc.Confirm(ctx, ConfirmInput{UserID: f.user.ID, Customer: validCustomer()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	f.clock.Advance(time.Minute)
	res, err := f.svc.Confirm(ctx, ConfirmInput{UserID: f.user.ID, Customer: validCustomer()})
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, order.ID, res.ID)
	assert.Equal(t, int64(1), f.orderCount(t))
	assert.Len(t, f.sender.byKind(enums.NotificationKindMerchantNewOrder), 1)

	stored, err := f.cartRepo.FindByUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Items)
	assert.Nil(t, stored.CheckoutOrderID)
}

func TestCartWriteRecoversExpiredClaim(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	m := f.merchant(t, "acme")
	first := f.product(t, m, 500)
	second := f.product(t, m, 900)
	f.add(t, first, 1)

	order := f.commitOnly(t, ConfirmInput{UserID: f.user.ID, Customer: validCustomer()})

	_, err := f.carts.Add(ctx, f.user.ID, second.ID, 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.True(t, pkgerrors.IsCode(f.carts.Clear(ctx, f.user.ID), pkgerrors.CodeConflict))

	f.clock.Advance(5 * time.Minute)
	view, err := f.carts.Add(ctx, f.user.ID, second.ID, 1)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, second.ID, view.Items[0].ProductID)

	merchant, err := f.merchants.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, merchant.OrderIDs.Contains(order.ID))
	assert.Len(t, f.sender.byKind(enums.NotificationKindOrderConfirmation), 1)
}

func TestOrphanedClaimIsDropped(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	m := f.merchant(t, "acme")
	f.add(t, f.product(t, m, 500), 1)

	stored, err := f.cartRepo.FindByUser(ctx, f.user.ID)
	require.NoError(t, err)
	claimed, err := f.cartRepo.ClaimForCheckout(ctx, stored.ID, stored.Version, uuid.New(), f.clock.Now())
	require.NoError(t, err)
	require.True(t, claimed)

	f.clock.Advance(2 * time.Minute)
	res, err := f.svc.Confirm(ctx, ConfirmInput{UserID: f.user.ID, Customer: validCustomer()})
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Len(t, res.Items, 1)
	assert.Equal(t, int64(1), f.orderCount(t))
}
