package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jogardn/safety-storefront/internal/database"
	"github.com/jogardn/safety-storefront/internal/database/dbtest"
	"github.com/jogardn/safety-storefront/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore(t *testing.T) {
	db := dbtest.Start(t)
	store := NewPostgresStore(db)
	ctx := context.Background()

	svc := NewService(store, testCatalog(), &fakeNotifier{}, quietLogger())
	order, err := svc.Place(ctx, Caller{}, guestRequest())
	require.NoError(t, err)

	loaded, err := store.GetByOrderNo(ctx, order.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, order.ID, loaded.ID)
	assert.Equal(t, order.Totals, loaded.Totals)
	assert.Equal(t, order.Items, loaded.Items)
	require.NotNil(t, loaded.GuestInfo)
	assert.Equal(t, "asha@example.com", loaded.GuestInfo.Email)
	assert.Empty(t, loaded.UserID)

	dup := *order
	dup.ID = uuid.NewString()
	err = store.Create(ctx, &dup)
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))
	assert.Equal(t, "order_no", database.ConflictField(err))

	_, err = store.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)

	t.Run("concurrent status updates", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.UpdateStatus(ctx, order.ID, models.StatusConfirmed, "")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := store.GetByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Len(t, got.StatusHistory, 9)
		assert.Equal(t, got.StatusHistory[len(got.StatusHistory)-1].Status, got.Status)
	})

	t.Run("list filters by status", func(t *testing.T) {
		orders, total, err := store.List(ctx, Filter{Status: models.StatusConfirmed}, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Len(t, orders, 1)

		_, total, err = store.List(ctx, Filter{Status: models.StatusShipped}, 10, 0)
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("times survive round trip", func(t *testing.T) {
		got, err := store.GetByID(ctx, order.ID)
		require.NoError(t, err)
		assert.WithinDuration(t, order.CreatedAt, got.CreatedAt, time.Millisecond)
	})
}
