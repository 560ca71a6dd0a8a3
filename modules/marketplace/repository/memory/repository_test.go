package memory

import (
	"context"
	"testing"

	"github.com/stkolmagorov/marketplace/common/errs"
	"github.com/stkolmagorov/marketplace/modules/marketplace/internal/entity"
	"github.com/stretchr/testify/require"
)

func TestTransactionVisibility(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(entity.EngineParams{CommissionBps: 500})

	qtx, err := repo.BeginMarketplaceTx(ctx)
	require.NoError(t, err)

	id, err := qtx.CreateSale(ctx, entity.SaleRecord{Seller: "seller", Status: entity.StatusActive})
	require.NoError(t, err)
	require.Equal(t, uint64(0), id)

	// uncommitted writes are invisible to the parent
	_, err = repo.GetSale(ctx, id)
	require.ErrorIs(t, err, errs.NotFound)

	require.NoError(t, qtx.Commit(ctx))

	sale, err := repo.GetSale(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "seller", sale.Seller)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(entity.EngineParams{})

	qtx, err := repo.BeginMarketplaceTx(ctx)
	require.NoError(t, err)

	_, err = qtx.CreateAuction(ctx, entity.AuctionRecord{Seller: "seller", Status: entity.StatusActive})
	require.NoError(t, err)
	require.NoError(t, qtx.MarkSignatureUsed(ctx, []byte("sig")))
	require.NoError(t, qtx.Rollback(ctx))

	_, err = repo.GetAuction(ctx, 0)
	require.ErrorIs(t, err, errs.NotFound)

	used, err := repo.IsSignatureUsed(ctx, []byte("sig"))
	require.NoError(t, err)
	require.False(t, used)

	// a discarded transaction does not burn identifiers
	qtx, err = repo.BeginMarketplaceTx(ctx)
	require.NoError(t, err)
	id, err := qtx.CreateAuction(ctx, entity.AuctionRecord{Seller: "seller", Status: entity.StatusActive})
	require.NoError(t, err)
	require.Equal(t, uint64(0), id)
	require.NoError(t, qtx.Commit(ctx))
}

func TestConcurrentTransactionRejected(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(entity.EngineParams{})

	first, err := repo.BeginMarketplaceTx(ctx)
	require.NoError(t, err)

	// a second transaction cannot open while the first is in flight
	_, err = repo.BeginMarketplaceTx(ctx)
	require.ErrorIs(t, err, ErrTxAlreadyExists)

	require.NoError(t, first.Rollback(ctx))

	second, err := repo.BeginMarketplaceTx(ctx)
	require.NoError(t, err)
	require.NoError(t, second.Commit(ctx))

	// a rolled-back transaction cannot resurrect itself
	err = first.Commit(ctx)
	require.Error(t, err)
}

func TestNestedTransactionRejected(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(entity.EngineParams{})

	qtx, err := repo.BeginMarketplaceTx(ctx)
	require.NoError(t, err)

	_, err = qtx.BeginMarketplaceTx(ctx)
	require.Error(t, err)
}

func TestEventSequencingAndQueries(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(entity.EngineParams{})

	for i := 0; i < 5; i++ {
		kind := entity.RecordKindSale
		if i%2 == 1 {
			kind = entity.RecordKindAuction
		}
		require.NoError(t, repo.CreateEvent(ctx, entity.MarketplaceEvent{
			Kind:     kind,
			RecordID: uint64(i),
			Action:   entity.EventSaleCreated,
		}))
	}

	events, err := repo.GetEventsAfter(ctx, 0, 100)
	require.NoError(t, err)
	require.Len(t, events, 5)
	for i, event := range events {
		require.Equal(t, uint64(i), event.Sequence)
		require.False(t, event.CreatedAt.IsZero())
	}

	// the cursor is inclusive and the limit caps the page
	events, err = repo.GetEventsAfter(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, uint64(2), events[0].Sequence)
	require.Equal(t, uint64(3), events[1].Sequence)

	events, err = repo.GetEventsByRecord(ctx, entity.RecordKindAuction, 3)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, uint64(3), events[0].RecordID)
}

func TestApprovedPriceDefaultsToZero(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(entity.EngineParams{})

	price, err := repo.GetApprovedPrice(ctx, 0, "buyer")
	require.NoError(t, err)
	require.Equal(t, uint64(0), price)
}
