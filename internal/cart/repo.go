package cart

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/cartline-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStaleCart reports that the cart row changed between read and write.
var ErrStaleCart = errors.New("cart changed since it was read")

// CartRepository defines the persistence surface required by the cart service
// and the checkout workflow.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	FindByUserForUpdate(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	Save(ctx context.Context, cart *models.Cart) error
	ClaimForCheckout(ctx context.Context, cartID uuid.UUID, version int64, orderID uuid.UUID, at time.Time) (bool, error)
	ReleaseClaim(ctx context.Context, cartID, orderID uuid.UUID) (bool, error)
	DropClaim(ctx context.Context, cartID, orderID uuid.UUID) error
	Empty(ctx context.Context, cartID uuid.UUID) error
}

// Repository persists the cart aggregate.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByUser loads the user's cart with items in insertion order.
func (r *Repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return r.find(r.db.WithContext(ctx), userID)
}

// FindByUserForUpdate is FindByUser holding a row lock until the surrounding
// transaction ends.
func (r *Repository) FindByUserForUpdate(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), userID)
}

func (r *Repository) find(db *gorm.DB, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := db.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("user_id = ?", userID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// Save writes the cart row and replaces its items. A stored cart is only
// updated while it is still at cart.Version and unclaimed; a new cart is only
// inserted when the user has none. Either miss returns ErrStaleCart. On
// success cart.Version holds the stored version.
func (r *Repository) Save(ctx context.Context, cart *models.Cart) error {
	tx := r.db.WithContext(ctx)
	now := time.Now().UTC()

	if cart.ID == uuid.Nil {
		cart.Version = 1
		res := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}},
				DoNothing: true,
			}).
			Create(cart)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			cart.ID = uuid.Nil
			return ErrStaleCart
		}
		return r.replaceItems(ctx, cart.ID, cart.Items)
	}

	res := tx.Model(&models.Cart{}).
		Where("id = ? AND version = ? AND checkout_order_id IS NULL", cart.ID, cart.Version).
		UpdateColumns(map[string]any{
			"total_price_cents": cart.TotalPriceCents,
			"version":           gorm.Expr("version + 1"),
			"updated_at":        now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleCart
	}
	cart.Version++
	cart.UpdatedAt = now
	return r.replaceItems(ctx, cart.ID, cart.Items)
}

func (r *Repository) replaceItems(ctx context.Context, cartID uuid.UUID, items []models.CartItem) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].CartID = cartID
		items[i].Position = i
	}
	return tx.Create(&items).Error
}

// ClaimForCheckout marks the cart as being confirmed into orderID at the given
// time. It only succeeds when the cart is still at version and unclaimed.
func (r *Repository) ClaimForCheckout(ctx context.Context, cartID uuid.UUID, version int64, orderID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND version = ? AND checkout_order_id IS NULL", cartID, version).
		UpdateColumns(map[string]any{
			"checkout_order_id":   orderID,
			"checkout_claimed_at": at,
			"version":             gorm.Expr("version + 1"),
			"updated_at":          time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseClaim empties the cart only while it is still claimed by orderID.
// It reports whether the cart was released.
func (r *Repository) ReleaseClaim(ctx context.Context, cartID, orderID uuid.UUID) (bool, error) {
	released := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Cart{}).
			Where("id = ? AND checkout_order_id = ?", cartID, orderID).
			UpdateColumns(map[string]any{
				"total_price_cents":   0,
				"checkout_order_id":   nil,
				"checkout_claimed_at": nil,
				"version":             gorm.Expr("version + 1"),
				"updated_at":          time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		released = true
		return tx.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
	})
	return released, err
}

// DropClaim clears a claim by orderID and keeps the items.
func (r *Repository) DropClaim(ctx context.Context, cartID, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND checkout_order_id = ?", cartID, orderID).
		UpdateColumns(map[string]any{
			"checkout_order_id":   nil,
			"checkout_claimed_at": nil,
			"version":             gorm.Expr("version + 1"),
			"updated_at":          time.Now().UTC(),
		}).Error
}

// Empty removes every item, zeroes the total and releases the checkout claim.
func (r *Repository) Empty(ctx context.Context, cartID uuid.UUID) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	return tx.Model(&models.Cart{}).
		Where("id = ?", cartID).
		UpdateColumns(map[string]any{
			"total_price_cents":   0,
			"checkout_order_id":   nil,
			"checkout_claimed_at": nil,
			"version":             gorm.Expr("version + 1"),
			"updated_at":          time.Now().UTC(),
		}).Error
}
