package marketplace

import (
	"context"
	"testing"

	"github.com/stkolmagorov/marketplace/common/errs"
	"github.com/stkolmagorov/marketplace/modules/marketplace/internal/authz"
	"github.com/stkolmagorov/marketplace/modules/marketplace/internal/entity"
	"github.com/stretchr/testify/require"
)

func (env *testEnv) createAuction(t *testing.T, kind entity.AuctionKind, redemptionPrice uint64) (uint64, entity.AssetRef) {
	t.Helper()

	ref := env.mintExclusive(t, testSeller, 1)
	ids, err := env.engine.CreateAuctions(context.Background(), testSeller, []CreateAuctionParams{
		{
			Currency:        entity.CurrencyNative,
			Asset:           ref,
			Quantity:        1,
			RedemptionPrice: redemptionPrice,
			Class:           entity.AssetClassExclusive,
			Kind:            kind,
		},
	})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	return ids[0], ref
}

func (env *testEnv) resolveAuction(t *testing.T, auctionID uint64, winner string, winningBid uint64) {
	t.Helper()

	message := authz.EncodeAuctionResolution(auctionID, winner, winningBid)
	err := env.engine.ResolveAuctions(context.Background(), "operator",
		[]string{winner}, []uint64{winningBid}, []uint64{auctionID},
		[][]byte{authz.Sign(env.authorizerKey, message)},
	)
	require.NoError(t, err)
}

func TestCreateAuctionRedemptionPricePairing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	ref := env.mintExclusive(t, testSeller, 1)

	// common auctions must not carry a redemption price
	_, err := env.engine.CreateAuctions(ctx, testSeller, []CreateAuctionParams{
		{Currency: entity.CurrencyNative, Asset: ref, Quantity: 1, RedemptionPrice: 500, Class: entity.AssetClassExclusive, Kind: entity.AuctionKindCommon},
	})
	require.ErrorIs(t, err, errs.InvalidRedemptionPrice)

	// ebay auctions must carry one
	_, err = env.engine.CreateAuctions(ctx, testSeller, []CreateAuctionParams{
		{Currency: entity.CurrencyNative, Asset: ref, Quantity: 1, RedemptionPrice: 0, Class: entity.AssetClassExclusive, Kind: entity.AuctionKindEbay},
	})
	require.ErrorIs(t, err, errs.InvalidRedemptionPrice)
}

func TestCancelAuctionReturnsAsset(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	id, ref := env.createAuction(t, entity.AuctionKindCommon, 0)

	err := env.engine.CancelAuctions(ctx, "stranger", []uint64{id})
	require.ErrorIs(t, err, errs.InvalidCallee)

	require.NoError(t, env.engine.CancelAuctions(ctx, testSeller, []uint64{id}))
	require.Equal(t, uint64(1), env.assets.BalanceOf(ref, testSeller))

	auction, err := env.repo.GetAuction(ctx, id)
	require.NoError(t, err)
	require.Equal(t, entity.StatusCancelled, auction.Status)
}

func TestResolveAuctionSetsWinner(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	id, _ := env.createAuction(t, entity.AuctionKindCommon, 0)
	env.resolveAuction(t, id, testBuyer, 700)

	auction, err := env.repo.GetAuction(ctx, id)
	require.NoError(t, err)
	require.Equal(t, testBuyer, auction.Winner)
	require.Equal(t, uint64(700), auction.WinningBid)
	// resolution does not close the auction
	require.Equal(t, entity.StatusActive, auction.Status)
}

func TestResolveAuctionsArrayLengthMismatch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	err := env.engine.ResolveAuctions(ctx, "operator", []string{testBuyer}, []uint64{700}, []uint64{0, 1}, [][]byte{nil})
	require.ErrorIs(t, err, errs.InvalidArrayLengths)
}

func TestResolveAuctionSignatureSingleUse(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	id, _ := env.createAuction(t, entity.AuctionKindCommon, 0)

	message := authz.EncodeAuctionResolution(id, testBuyer, 700)
	signature := authz.Sign(env.authorizerKey, message)

	err := env.engine.ResolveAuctions(ctx, "operator", []string{testBuyer}, []uint64{700}, []uint64{id}, [][]byte{signature})
	require.NoError(t, err)

	err = env.engine.ResolveAuctions(ctx, "operator", []string{testBuyer}, []uint64{700}, []uint64{id}, [][]byte{signature})
	require.ErrorIs(t, err, errs.NotUnique)
}

func TestSettleAuctionByWinner(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 1000) // 10% commission
	require.NoError(t, env.engine.UpdateCommissionRecipients(ctx, []entity.CommissionRecipient{
		{Address: "treasury", Bps: 10000},
	}))

	id, ref := env.createAuction(t, entity.AuctionKindCommon, 0)
	env.resolveAuction(t, id, testBuyer, 700)

	// only the resolved winner may settle a bid
	env.funds.Credit(entity.CurrencyNative, "stranger", 700)
	err := env.engine.SettleAuctions(ctx, "stranger", 700, []SettleAuctionParams{{AuctionID: id}})
	require.ErrorIs(t, err, errs.InvalidCallee)

	env.funds.Credit(entity.CurrencyNative, testBuyer, 700)
	err = env.engine.SettleAuctions(ctx, testBuyer, 700, []SettleAuctionParams{{AuctionID: id}})
	require.NoError(t, err)

	require.Equal(t, uint64(630), env.funds.BalanceOf(entity.CurrencyNative, testSeller))
	require.Equal(t, uint64(70), env.funds.BalanceOf(entity.CurrencyNative, "treasury"))
	require.Equal(t, uint64(1), env.assets.BalanceOf(ref, testBuyer))

	auction, err := env.repo.GetAuction(ctx, id)
	require.NoError(t, err)
	require.Equal(t, entity.StatusClosed, auction.Status)
}

func TestSettleEbayAuctionByRedemptionWithoutResolution(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	const redemptionPrice = 500
	id, ref := env.createAuction(t, entity.AuctionKindEbay, redemptionPrice)

	// redemption does not require a winner, anyone may redeem
	env.funds.Credit(entity.CurrencyNative, "redeemer", redemptionPrice)
	err := env.engine.SettleAuctions(ctx, "redeemer", redemptionPrice, []SettleAuctionParams{
		{AuctionID: id, IsRedemption: true},
	})
	require.NoError(t, err)

	require.Equal(t, uint64(redemptionPrice), env.funds.BalanceOf(entity.CurrencyNative, testSeller))
	require.Equal(t, uint64(1), env.assets.BalanceOf(ref, "redeemer"))

	auction, err := env.repo.GetAuction(ctx, id)
	require.NoError(t, err)
	require.Equal(t, entity.StatusClosed, auction.Status)
}

func TestSettleRedemptionRequiresEbayKind(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	id, _ := env.createAuction(t, entity.AuctionKindCommon, 0)

	err := env.engine.SettleAuctions(ctx, "redeemer", 0, []SettleAuctionParams{
		{AuctionID: id, IsRedemption: true},
	})
	require.ErrorIs(t, err, errs.InvalidAuctionTypeForRedemption)
}

func TestSettleClosedAuctionRejected(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	id, _ := env.createAuction(t, entity.AuctionKindEbay, 500)

	env.funds.Credit(entity.CurrencyNative, "redeemer", 1000)
	err := env.engine.SettleAuctions(ctx, "redeemer", 500, []SettleAuctionParams{
		{AuctionID: id, IsRedemption: true},
	})
	require.NoError(t, err)

	err = env.engine.SettleAuctions(ctx, "redeemer", 500, []SettleAuctionParams{
		{AuctionID: id, IsRedemption: true},
	})
	require.ErrorIs(t, err, errs.InvalidStatus)
}
