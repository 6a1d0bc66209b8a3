package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/angelmondragon/cartline-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/cartline-backend/pkg/errors"
	"github.com/angelmondragon/cartline-backend/pkg/money"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type merchantReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Merchant, error)
}

// Service reads the order ledger for customers and merchants.
type Service interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]OrderView, error)
	ListForMerchant(ctx context.Context, merchantID uuid.UUID) ([]MerchantOrderView, error)
}

type service struct {
	repo      Repository
	users     userReader
	merchants merchantReader
	formatter money.Formatter
}

// NewService builds the ledger read service.
func NewService(repo Repository, users userReader, merchants merchantReader, formatter money.Formatter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("user reader required")
	}
	if merchants == nil {
		return nil, fmt.Errorf("merchant reader required")
	}
	if formatter == nil {
		return nil, fmt.Errorf("money formatter required")
	}
	return &service{repo: repo, users: users, merchants: merchants, formatter: formatter}, nil
}

// ListForUser returns the user's orders newest first. No orders yields an
// empty slice.
func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]OrderView, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, ownerError(err, "User not found")
	}
	rows, err := s.load(ctx, user.OrderIDs)
	if err != nil {
		return nil, err
	}
	out := make([]OrderView, 0, len(rows))
	for i := range rows {
		out = append(out, NewOrderView(&rows[i], s.formatter))
	}
	return out, nil
}

// ListForMerchant returns the orders containing the merchant's products,
// newest first, each projected down to the merchant's own lines.
func (s *service) ListForMerchant(ctx context.Context, merchantID uuid.UUID) ([]MerchantOrderView, error) {
	merchant, err := s.merchants.FindByID(ctx, merchantID)
	if err != nil {
		return nil, ownerError(err, "Merchant not found.")
	}
	rows, err := s.load(ctx, merchant.OrderIDs)
	if err != nil {
		return nil, err
	}
	out := make([]MerchantOrderView, 0, len(rows))
	for i := range rows {
		out = append(out, NewMerchantOrderView(&rows[i], merchant.ID, s.formatter))
	}
	return out, nil
}

func (s *service) load(ctx context.Context, ids []uuid.UUID) ([]models.Order, error) {
	rows, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders")
	}
	SortNewestFirst(rows)
	return rows, nil
}

// SortNewestFirst orders by order date descending, then id ascending.
func SortNewestFirst(rows []models.Order) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].OrderDate.Equal(rows[j].OrderDate) {
			return rows[i].OrderDate.After(rows[j].OrderDate)
		}
		return rows[i].ID.String() < rows[j].ID.String()
	})
}

func ownerError(err error, notFound string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order owner")
}
