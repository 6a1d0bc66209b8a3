package users

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/cartline-backend/pkg/db/dbtest"
	"github.com/angelmondragon/cartline-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestAppendOrderIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)

	user, err := repo.Create(ctx, &models.User{FullName: "Ada Obi", Email: "ada@example.com"})
	require.NoError(t, err)

	first, second := uuid.New(), uuid.New()
	require.NoError(t, repo.AppendOrder(ctx, user.ID, first))
	require.NoError(t, repo.AppendOrder(ctx, user.ID, second))
	require.NoError(t, repo.AppendOrder(ctx, user.ID, first))

	reloaded, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first, second}, []uuid.UUID(reloaded.OrderIDs))
}

func TestAppendOrderInsideRolledBackTx(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)

	user, err := repo.Create(ctx, &models.User{FullName: "Ada Obi", Email: "ada@example.com"})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = conn.Transaction(func(tx *gorm.DB) error {
		if err := repo.WithTx(tx).AppendOrder(ctx, user.ID, uuid.New()); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	reloaded, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, reloaded.OrderIDs)
}

func TestFindByIDMissing(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	err = repo.AppendOrder(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
