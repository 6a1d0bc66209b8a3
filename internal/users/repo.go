package users

import (
	"context"

	"github.com/angelmondragon/cartline-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the user persistence surface used by checkout and the order ledger.
type Store interface {
	WithTx(tx *gorm.DB) Store
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	AppendOrder(ctx context.Context, id, orderID uuid.UUID) error
}

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) Store {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new user. Registration lives in the identity service;
// this is used for seeding and tests.
func (r *Repository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// AppendOrder adds orderID to the user's order_ids. The row is locked for the
// read-modify-write and the append is a no-op when the id is already present.
func (r *Repository) AppendOrder(ctx context.Context, id, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, "id = ?", id).Error; err != nil {
			return err
		}
		if user.OrderIDs.Contains(orderID) {
			return nil
		}
		return tx.Model(&models.User{}).
			Where("id = ?", id).
			UpdateColumn("order_ids", user.OrderIDs.AppendUnique(orderID)).Error
	})
}
