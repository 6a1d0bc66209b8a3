package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/cartline-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/cartline-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type productReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

// Lookup resolves products for the cart and checkout flows and maps storage
// errors onto API error codes.
type Lookup struct {
	repo productReader
}

// NewLookup builds a product lookup backed by repo.
func NewLookup(repo productReader) (*Lookup, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &Lookup{repo: repo}, nil
}

// Get returns the product or a NOT_FOUND error when it is unknown or deleted.
func (l *Lookup) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := l.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"productId": id.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

// GetMany resolves ids in one query. The result only holds live products;
// callers decide how to treat the missing ones.
func (l *Lookup) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	rows, err := l.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	out := make(map[uuid.UUID]models.Product, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}
