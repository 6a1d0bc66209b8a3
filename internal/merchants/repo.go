package merchants

import (
	"context"

	"github.com/angelmondragon/cartline-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository exposes merchant persistence operations.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a merchant. Used for seeding and tests.
func (r *Repository) Create(ctx context.Context, merchant *models.Merchant) (*models.Merchant, error) {
	if err := r.db.WithContext(ctx).Create(merchant).Error; err != nil {
		return nil, err
	}
	return merchant, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Merchant, error) {
	var merchant models.Merchant
	if err := r.db.WithContext(ctx).First(&merchant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &merchant, nil
}

// FindByIDs returns the merchants among ids that exist.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Merchant, error) {
	if len(ids) == 0 {
		return []models.Merchant{}, nil
	}
	var rows []models.Merchant
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// AppendOrder adds orderID to the merchant's order_ids under a row lock.
func (r *Repository) AppendOrder(ctx context.Context, id, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var merchant models.Merchant
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&merchant, "id = ?", id).Error; err != nil {
			return err
		}
		if merchant.OrderIDs.Contains(orderID) {
			return nil
		}
		return tx.Model(&models.Merchant{}).
			Where("id = ?", id).
			UpdateColumn("order_ids", merchant.OrderIDs.AppendUnique(orderID)).Error
	})
}
