package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/cartline-backend/internal/pricing"
	"github.com/angelmondragon/cartline-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/cartline-backend/pkg/errors"
	"github.com/angelmondragon/cartline-backend/pkg/logger"
	"github.com/angelmondragon/cartline-backend/pkg/metrics"
	"github.com/angelmondragon/cartline-backend/pkg/money"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// ClaimRecoverer finishes a checkout whose claim outlived its confirm. It
// reports false while the claim still belongs to a running confirm.
type ClaimRecoverer interface {
	RecoverClaim(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Service exposes the cart operations available to an authenticated user.
type Service interface {
	Add(ctx context.Context, userID, productID uuid.UUID, quantity int) (*View, error)
	Increase(ctx context.Context, userID, productID uuid.UUID) (*View, error)
	Decrease(ctx context.Context, userID, productID uuid.UUID) (*View, error)
	Remove(ctx context.Context, userID, productID uuid.UUID) (*View, error)
	Clear(ctx context.Context, userID uuid.UUID) error
	View(ctx context.Context, userID uuid.UUID) (*View, error)
}

type service struct {
	repo      CartRepository
	tx        txRunner
	products  productLoader
	formatter money.Formatter
	recoverer ClaimRecoverer
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
}

// ServiceParams bundles the cart service collaborators.
type ServiceParams struct {
	Repo      CartRepository
	Tx        txRunner
	Products  productLoader
	Formatter money.Formatter
	Recoverer ClaimRecoverer
	Metrics   *metrics.CheckoutMetrics
	Logger    *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if p.Formatter == nil {
		return nil, fmt.Errorf("money formatter required")
	}
	return &service{
		repo:      p.Repo,
		tx:        p.Tx,
		products:  p.Products,
		formatter: p.Formatter,
		recoverer: p.Recoverer,
		metrics:   p.Metrics,
		logg:      p.Logger,
	}, nil
}

var (
	errCartNotFound     = pkgerrors.New(pkgerrors.CodeNotFound, "Cart not found.")
	errItemNotFound     = pkgerrors.New(pkgerrors.CodeNotFound, "Item not found in cart.")
	errCheckoutInFlight = pkgerrors.New(pkgerrors.CodeConflict, "checkout already in progress")
	errCartChanged      = pkgerrors.New(pkgerrors.CodeConflict, "cart was updated concurrently, please retry")
)

const maxMutateAttempts = 3

// Add puts quantity units of the product in the cart, creating the cart on
// first use. Name, price, image and merchant are taken from the product now.
func (s *service) Add(ctx context.Context, userID, productID uuid.UUID, quantity int) (*View, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Quantity must be a positive number.").
			WithDetails(map[string]any{"quantity": quantity})
	}
	product, err := s.products.Get(ctx, productID)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, userID, "add", true, func(cart *models.Cart) error {
		if idx := findItem(cart.Items, productID); idx >= 0 {
			cart.Items[idx].Quantity += quantity
			return nil
		}
		cart.Items = append(cart.Items, models.CartItem{
			ProductID:      product.ID,
			ProductName:    product.Name,
			Quantity:       quantity,
			UnitPriceCents: product.PriceCents,
			ProductImage:   product.Image,
			MerchantID:     product.MerchantID,
		})
		return nil
	})
}

// Increase adds one unit to an existing line.
func (s *service) Increase(ctx context.Context, userID, productID uuid.UUID) (*View, error) {
	return s.mutate(ctx, userID, "increase", false, func(cart *models.Cart) error {
		idx := findItem(cart.Items, productID)
		if idx < 0 {
			return errItemNotFound
		}
		cart.Items[idx].Quantity++
		return nil
	})
}

// Decrease removes one unit from a line, dropping the line at zero.
func (s *service) Decrease(ctx context.Context, userID, productID uuid.UUID) (*View, error) {
	return s.mutate(ctx, userID, "decrease", false, func(cart *models.Cart) error {
		idx := findItem(cart.Items, productID)
		if idx < 0 {
			return errItemNotFound
		}
		cart.Items[idx].Quantity--
		if cart.Items[idx].Quantity <= 0 {
			cart.Items = removeAt(cart.Items, idx)
		}
		return nil
	})
}

// Remove drops a line whatever its quantity.
func (s *service) Remove(ctx context.Context, userID, productID uuid.UUID) (*View, error) {
	return s.mutate(ctx, userID, "remove", false, func(cart *models.Cart) error {
		idx := findItem(cart.Items, productID)
		if idx < 0 {
			return errItemNotFound
		}
		cart.Items = removeAt(cart.Items, idx)
		return nil
	})
}

// Clear empties the cart and releases an expired checkout claim. A claim
// held by a running confirm is left alone.
func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	err := s.clear(ctx, userID)
	if errors.Is(err, errCheckoutInFlight) {
		var recovered bool
		if recovered, err = s.recover(ctx, userID); err == nil {
			err = errCheckoutInFlight
			if recovered {
				err = s.clear(ctx, userID)
			}
		}
	}
	if err != nil {
		return err
	}
	s.metrics.IncCartMutation("clear")
	s.logInfo(ctx, userID, "cart.clear")
	return nil
}

func (s *service) clear(ctx context.Context, userID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := loadCart(ctx, repo, userID, true)
		if err != nil {
			return err
		}
		if cart.CheckoutOrderID != nil {
			return errCheckoutInFlight
		}
		if err := repo.Empty(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		return nil
	})
}

// View returns the formatted cart without modifying it.
func (s *service) View(ctx context.Context, userID uuid.UUID) (*View, error) {
	cart, err := loadCart(ctx, s.repo, userID, false)
	if err != nil {
		return nil, err
	}
	return NewView(cart, s.formatter), nil
}

// mutate runs one read-modify-write of the user's cart inside a transaction,
// retrying when a concurrent writer won or an expired claim was recovered.
// The total is re-derived from the mutated items before the write.
func (s *service) mutate(ctx context.Context, userID uuid.UUID, op string, create bool, fn func(cart *models.Cart) error) (*View, error) {
	var (
		saved *models.Cart
		err   error
	)
	for attempt := 1; ; attempt++ {
		saved, err = s.write(ctx, userID, create, fn)
		if err == nil || attempt == maxMutateAttempts {
			break
		}
		retry, rerr := s.retryable(ctx, userID, err)
		if rerr != nil {
			return nil, rerr
		}
		if !retry {
			break
		}
	}
	if errors.Is(err, ErrStaleCart) {
		err = errCartChanged
	}
	if err != nil {
		return nil, err
	}

	s.metrics.IncCartMutation(op)
	s.logInfo(ctx, userID, "cart."+op)
	return NewView(saved, s.formatter), nil
}

func (s *service) write(ctx context.Context, userID uuid.UUID, create bool, fn func(cart *models.Cart) error) (*models.Cart, error) {
	var saved *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := loadCart(ctx, repo, userID, true)
		if err != nil {
			if !create || !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				return err
			}
			cart = &models.Cart{UserID: userID, Items: []models.CartItem{}}
		}
		if cart.CheckoutOrderID != nil {
			return errCheckoutInFlight
		}

		if err := fn(cart); err != nil {
			return err
		}
		cart.TotalPriceCents = pricing.CartTotal(Lines(cart.Items))

		if err := repo.Save(ctx, cart); err != nil {
			if errors.Is(err, ErrStaleCart) {
				return err
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
		}
		saved = cart
		return nil
	})
	return saved, err
}

func (s *service) retryable(ctx context.Context, userID uuid.UUID, err error) (bool, error) {
	switch {
	case errors.Is(err, ErrStaleCart):
		return true, nil
	case errors.Is(err, errCheckoutInFlight):
		return s.recover(ctx, userID)
	}
	return false, nil
}

func (s *service) recover(ctx context.Context, userID uuid.UUID) (bool, error) {
	if s.recoverer == nil {
		return false, nil
	}
	return s.recoverer.RecoverClaim(ctx, userID)
}

func (s *service) logInfo(ctx context.Context, userID uuid.UUID, event string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithUserID(ctx, userID.String()), event)
}

// Load returns the user's cart or NOT_FOUND. Used by the checkout flow.
func Load(ctx context.Context, repo CartRepository, userID uuid.UUID) (*models.Cart, error) {
	return loadCart(ctx, repo, userID, false)
}

func loadCart(ctx context.Context, repo CartRepository, userID uuid.UUID, forUpdate bool) (*models.Cart, error) {
	find := repo.FindByUser
	if forUpdate {
		find = repo.FindByUserForUpdate
	}
	cart, err := find(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errCartNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

// Lines converts cart items into priced lines.
func Lines(items []models.CartItem) []pricing.Line {
	lines := make([]pricing.Line, len(items))
	for i, item := range items {
		lines[i] = pricing.Line{
			ProductID:      item.ProductID,
			MerchantID:     item.MerchantID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		}
	}
	return lines
}

func findItem(items []models.CartItem, productID uuid.UUID) int {
	for i := range items {
		if items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func removeAt(items []models.CartItem, idx int) []models.CartItem {
	out := make([]models.CartItem, 0, len(items)-1)
	out = append(out, items[:idx]...)
	return append(out, items[idx+1:]...)
}
