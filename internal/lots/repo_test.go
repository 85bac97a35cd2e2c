package lots

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terroirco/farmlot-backend/pkg/db/models"
	"github.com/terroirco/farmlot-backend/pkg/enums"
)

func TestListOrderedByStateGroupsBoard(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	for _, state := range []enums.LotState{
		enums.LotStateSoldOut,
		enums.LotStateForSale,
		enums.LotStateRejected,
		enums.LotStateAccepted,
		enums.LotStatePending,
	} {
		seedLot(t, db, state, 10)
	}

	listed, err := repo.ListOrderedByState(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 5)

	want := []enums.LotState{
		enums.LotStatePending,
		enums.LotStateAccepted,
		enums.LotStateForSale,
		enums.LotStateRejected,
		enums.LotStateSoldOut,
	}
	for i, state := range want {
		assert.Equal(t, state, listed[i].State, "position %d", i)
	}
}

func TestListRecentForSaleCapsAndOrders(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 4; i++ {
		receipt := base.Add(time.Duration(i) * time.Hour)
		lot := &models.ProductLot{
			ProductID:         uuid.New(),
			ProducerID:        uuid.New(),
			UnitPrice:         decimal.NewFromInt(2),
			InitialQuantity:   5,
			RemainingQuantity: 5,
			State:             enums.LotStateForSale,
			ProposalDate:      base,
			AvailabilityDate:  base,
			ReceiptDate:       &receipt,
		}
		require.NoError(t, db.Create(lot).Error)
	}
	seedLot(t, db, enums.LotStatePending, 5)

	listed, err := repo.ListRecentForSale(ctx, 3)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	for i := 1; i < len(listed); i++ {
		assert.False(t, listed[i].ReceiptDate.After(*listed[i-1].ReceiptDate),
			"expected most recently received first")
	}
}

func TestFindManyForUpdateLocksInAscendingIDOrder(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		ids = append(ids, seedLot(t, db, enums.LotStateForSale, 10).ID)
	}
	// present them in reverse
	reversed := make([]uuid.UUID, len(ids))
	for i, id := range ids {
		reversed[len(ids)-1-i] = id
	}

	locked, err := repo.FindManyForUpdate(ctx, reversed)
	require.NoError(t, err)
	require.Len(t, locked, len(ids))
	for i := 1; i < len(locked); i++ {
		assert.True(t, bytes.Compare(locked[i-1].ID[:], locked[i].ID[:]) < 0,
			"expected ascending ID order")
	}
}

func TestListByProducerScopesRows(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	mine := seedLot(t, db, enums.LotStatePending, 10)
	seedLot(t, db, enums.LotStatePending, 10)

	listed, err := repo.ListByProducer(ctx, mine.ProducerID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, mine.ID, listed[0].ID)
}
