package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/cartline-backend/internal/cart"
	"github.com/angelmondragon/cartline-backend/internal/notifications"
	"github.com/angelmondragon/cartline-backend/internal/orders"
	"github.com/angelmondragon/cartline-backend/internal/users"
	"github.com/angelmondragon/cartline-backend/pkg/config"
	"github.com/angelmondragon/cartline-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/cartline-backend/pkg/errors"
	"github.com/angelmondragon/cartline-backend/pkg/logger"
	"github.com/angelmondragon/cartline-backend/pkg/metrics"
	"github.com/angelmondragon/cartline-backend/pkg/money"
	"github.com/angelmondragon/cartline-backend/pkg/outbox"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type merchantStore interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Merchant, error)
	AppendOrder(ctx context.Context, id, orderID uuid.UUID) error
}

type notificationOutbox interface {
	Emit(ctx context.Context, tx *gorm.DB, events ...outbox.Event) error
	Pending(ctx context.Context, orderID uuid.UUID) ([]models.OutboxEvent, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause error) error
}

const defaultClaimTimeout = time.Minute

// Service prices carts and confirms them into orders.
type Service interface {
	Preview(ctx context.Context, userID uuid.UUID) (*Quote, error)
	Confirm(ctx context.Context, input ConfirmInput) (*Result, error)
	RecoverClaim(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Params bundles the checkout collaborators.
type Params struct {
	Tx        txRunner
	Carts     cart.CartRepository
	Orders    orders.Repository
	Products  productLoader
	Users     users.Store
	Merchants merchantStore
	Outbox    notificationOutbox
	Sender    notifications.Sender
	Formatter money.Formatter
	Config    config.CheckoutConfig
	Metrics   *metrics.CheckoutMetrics
	Logger    *logger.Logger
	Now       func() time.Time
}

type service struct {
	tx        txRunner
	carts     cart.CartRepository
	orders    orders.Repository
	products  productLoader
	users     users.Store
	merchants merchantStore
	outbox    notificationOutbox
	sender    notifications.Sender
	formatter money.Formatter
	cfg       config.CheckoutConfig
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the checkout service.
func NewService(p Params) (Service, error) {
	switch {
	case p.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case p.Carts == nil:
		return nil, fmt.Errorf("cart repository required")
	case p.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case p.Products == nil:
		return nil, fmt.Errorf("product loader required")
	case p.Users == nil:
		return nil, fmt.Errorf("user store required")
	case p.Merchants == nil:
		return nil, fmt.Errorf("merchant store required")
	case p.Outbox == nil:
		return nil, fmt.Errorf("notification outbox required")
	case p.Sender == nil:
		return nil, fmt.Errorf("notification sender required")
	case p.Formatter == nil:
		return nil, fmt.Errorf("money formatter required")
	}
	if p.Config.DeliveryChargeCents < 0 {
		return nil, fmt.Errorf("delivery charge must be non-negative")
	}
	if p.Config.NotifyConcurrency <= 0 {
		p.Config.NotifyConcurrency = 1
	}
	if p.Config.ClaimTimeout <= 0 {
		p.Config.ClaimTimeout = defaultClaimTimeout
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &service{
		tx:        p.Tx,
		carts:     p.Carts,
		orders:    p.Orders,
		products:  p.Products,
		users:     p.Users,
		merchants: p.Merchants,
		outbox:    p.Outbox,
		sender:    p.Sender,
		formatter: p.Formatter,
		cfg:       p.Config,
		metrics:   p.Metrics,
		logg:      p.Logger,
		now:       p.Now,
	}, nil
}

var errCartEmpty = pkgerrors.New(pkgerrors.CodeValidation,
	"Your cart is empty. Please add items to your cart before proceeding to checkout.")

// loadCheckoutCart treats a missing cart like an empty one.
func (s *service) loadCheckoutCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	c, err := cart.Load(ctx, s.carts, userID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, errCartEmpty
		}
		return nil, err
	}
	if len(c.Items) == 0 {
		return nil, errCartEmpty
	}
	return c, nil
}

// claimExpired reports whether a claim is old enough that its confirm is
// assumed gone. Claims without a timestamp count as expired.
func (s *service) claimExpired(c *models.Cart) bool {
	if c.ClaimedAt == nil {
		return true
	}
	return s.now().Sub(*c.ClaimedAt) >= s.cfg.ClaimTimeout
}

func productIDs(items []models.CartItem) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}
