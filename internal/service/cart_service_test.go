package service

import (
	"context"
	"testing"

	"shop-core/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCart_CreatesEmptyCartOnFirstAccess(t *testing.T) {
	store := newMemStore()
	svc := NewCartService(store)
	user := uuid.New()

	cart, err := svc.GetCart(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, user, cart.UserID)
	assert.Empty(t, cart.Items)

	again, err := svc.GetCart(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, again.ID)
}

func TestAddItem_MergesLinesForSameProduct(t *testing.T) {
	store := newMemStore()
	svc := NewCartService(store)
	user := uuid.New()
	a := store.addProduct("A", "12.50", 10)

	_, err := svc.AddItem(context.Background(), user, a.ID, 2)
	require.NoError(t, err)
	cart, err := svc.AddItem(context.Background(), user, a.ID, 3)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, "62.50", cart.Total().StringFixed(2))
	assert.Equal(t, 10, store.stockOf(a.ID), "adding to a cart does not reserve stock")
}

func TestAddItem_Validation(t *testing.T) {
	store := newMemStore()
	svc := NewCartService(store)
	user := uuid.New()
	a := store.addProduct("A", "1.00", 3)

	_, err := svc.AddItem(context.Background(), user, a.ID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = svc.AddItem(context.Background(), user, uuid.New(), 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	_, err = svc.AddItem(context.Background(), user, a.ID, 4)
	var exceeded *domain.StockExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 3, exceeded.Available)
	assert.Equal(t, "only 3 items available in stock", err.Error())

	_, err = svc.AddItem(context.Background(), user, a.ID, 2)
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), user, a.ID, 2)
	assert.ErrorAs(t, err, &exceeded, "merged quantity is checked against stock")
}

func TestUpdateAndRemoveItem(t *testing.T) {
	store := newMemStore()
	svc := NewCartService(store)
	owner, stranger := uuid.New(), uuid.New()
	a := store.addProduct("A", "1.00", 5)

	cart, err := svc.AddItem(context.Background(), owner, a.ID, 1)
	require.NoError(t, err)
	itemID := cart.Items[0].ID

	cart, err = svc.UpdateItem(context.Background(), owner, itemID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, cart.Items[0].Quantity)

	_, err = svc.UpdateItem(context.Background(), owner, itemID, 6)
	assert.ErrorAs(t, err, new(*domain.StockExceededError))

	_, err = svc.UpdateItem(context.Background(), owner, itemID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = svc.UpdateItem(context.Background(), stranger, itemID, 1)
	assert.ErrorIs(t, err, domain.ErrCartItemNotFound)

	_, err = svc.RemoveItem(context.Background(), stranger, itemID)
	assert.ErrorIs(t, err, domain.ErrCartItemNotFound)

	cart, err = svc.RemoveItem(context.Background(), owner, itemID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	_, err = svc.RemoveItem(context.Background(), owner, itemID)
	assert.ErrorIs(t, err, domain.ErrCartItemNotFound)
}

func TestCartWriters_LockTheCart(t *testing.T) {
	store := newMemStore()
	svc := NewCartService(store)
	user := uuid.New()
	a := store.addProduct("A", "1.00", 5)

	cart, err := svc.AddItem(context.Background(), user, a.ID, 1)
	require.NoError(t, err)
	_, err = svc.UpdateItem(context.Background(), user, cart.Items[0].ID, 2)
	require.NoError(t, err)
	_, err = svc.RemoveItem(context.Background(), user, cart.Items[0].ID)
	require.NoError(t, err)
	_, err = svc.GetCart(context.Background(), user)
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{user, user, user}, store.cartLocks, "reads do not lock")
}
