package marketplace

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/cockroachdb/errors"
	"github.com/stkolmagorov/marketplace/common/errs"
	"github.com/stkolmagorov/marketplace/modules/marketplace/internal/authz"
	"github.com/stkolmagorov/marketplace/modules/marketplace/internal/entity"
	"github.com/stretchr/testify/require"
)

func TestCreateSalesAssignsMonotonicIds(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	first := env.mintExclusive(t, testSeller, 1)
	second := env.mintExclusive(t, testSeller, 2)

	ids, err := env.engine.CreateSales(ctx, testSeller, []CreateSaleParams{
		{Currency: entity.CurrencyNative, Asset: first, Quantity: 1, PricePerUnit: 100, Class: entity.AssetClassExclusive},
		{Currency: entity.CurrencyNative, Asset: second, Quantity: 1, PricePerUnit: 200, Class: entity.AssetClassExclusive},
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 1}, ids)

	require.Equal(t, uint64(1), env.assets.BalanceOf(first, testEscrow))
	require.Equal(t, uint64(0), env.assets.BalanceOf(first, testSeller))

	sale, err := env.repo.GetSale(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, entity.StatusActive, sale.Status)
	require.Equal(t, testSeller, sale.Seller)
}

func TestCreateSaleExclusiveQuantityMustBeOne(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	ref := env.mintFungible(t, testSeller, 1, 5)

	_, err := env.engine.CreateSales(ctx, testSeller, []CreateSaleParams{
		{Currency: entity.CurrencyNative, Asset: ref, Quantity: 2, PricePerUnit: 100, Class: entity.AssetClassExclusive},
	})
	require.ErrorIs(t, err, errs.InvalidAmountOfTokensToSale)

	_, err = env.engine.CreateSales(ctx, testSeller, []CreateSaleParams{
		{Currency: entity.CurrencyNative, Asset: ref, Quantity: 0, PricePerUnit: 100, Class: entity.AssetClassFungible},
	})
	require.ErrorIs(t, err, errs.InvalidAmountOfTokensToSale)
}

func TestCreateSaleUnsupportedCurrency(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	ref := env.mintExclusive(t, testSeller, 1)

	_, err := env.engine.CreateSales(ctx, testSeller, []CreateSaleParams{
		{Currency: testTokenCurrency, Asset: ref, Quantity: 1, PricePerUnit: 100, Class: entity.AssetClassExclusive},
	})
	require.ErrorIs(t, err, errs.UnsupportedCurrencyEntry)

	require.NoError(t, env.engine.AddSupportedCurrencies(ctx, []entity.Currency{testTokenCurrency}))
	_, err = env.engine.CreateSales(ctx, testSeller, []CreateSaleParams{
		{Currency: testTokenCurrency, Asset: ref, Quantity: 1, PricePerUnit: 100, Class: entity.AssetClassExclusive},
	})
	require.NoError(t, err)
}

func TestCreateSalesBatchIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	ref := env.mintExclusive(t, testSeller, 1)

	_, err := env.engine.CreateSales(ctx, testSeller, []CreateSaleParams{
		{Currency: entity.CurrencyNative, Asset: ref, Quantity: 1, PricePerUnit: 100, Class: entity.AssetClassExclusive},
		{Currency: entity.CurrencyNative, Asset: testAsset(2), Quantity: 0, PricePerUnit: 100, Class: entity.AssetClassFungible},
	})
	require.ErrorIs(t, err, errs.InvalidAmountOfTokensToSale)

	_, err = env.repo.GetSale(ctx, 0)
	require.ErrorIs(t, err, errs.NotFound)

	// the first item's asset left escrow along with the ledger rollback
	require.Equal(t, uint64(0), env.assets.BalanceOf(ref, testEscrow))
	require.Equal(t, uint64(1), env.assets.BalanceOf(ref, testSeller))
}

func TestPurchaseSalesFailureRestoresCustody(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	const price = 100
	ref := env.mintExclusive(t, testSeller, 1)
	ids, err := env.engine.CreateSales(ctx, testSeller, []CreateSaleParams{
		{Currency: entity.CurrencyNative, Asset: ref, Quantity: 1, PricePerUnit: price, Class: entity.AssetClassExclusive},
	})
	require.NoError(t, err)

	// item 1 settles fully before item 2 fails on an unknown sale
	env.funds.Credit(entity.CurrencyNative, testBuyer, price)
	err = env.engine.PurchaseSales(ctx, testBuyer, price, []PurchaseSaleParams{
		{SaleID: ids[0], Quantity: 1},
		{SaleID: 99, Quantity: 1},
	})
	require.ErrorIs(t, err, errs.NotFound)

	// ledger and custody agree: sale still active, asset in escrow, funds back
	sale, err := env.repo.GetSale(ctx, ids[0])
	require.NoError(t, err)
	require.Equal(t, entity.StatusActive, sale.Status)
	require.Equal(t, uint64(0), sale.AmountPurchased)
	require.Equal(t, uint64(1), env.assets.BalanceOf(ref, testEscrow))
	require.Equal(t, uint64(price), env.funds.BalanceOf(entity.CurrencyNative, testBuyer))
	require.Equal(t, uint64(0), env.funds.BalanceOf(entity.CurrencyNative, testSeller))
	require.Equal(t, uint64(0), env.funds.BalanceOf(entity.CurrencyNative, testEscrow))
}

func TestCancelSaleOnlyBySeller(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	ref := env.mintExclusive(t, testSeller, 1)
	ids, err := env.engine.CreateSales(ctx, testSeller, []CreateSaleParams{
		{Currency: entity.CurrencyNative, Asset: ref, Quantity: 1, PricePerUnit: 100, Class: entity.AssetClassExclusive},
	})
	require.NoError(t, err)

	err = env.engine.CancelSales(ctx, "stranger", ids)
	require.ErrorIs(t, err, errs.InvalidCallee)
	require.Equal(t, uint64(1), env.assets.BalanceOf(ref, testEscrow))

	require.NoError(t, env.engine.CancelSales(ctx, testSeller, ids))
	require.Equal(t, uint64(1), env.assets.BalanceOf(ref, testSeller))

	sale, err := env.repo.GetSale(ctx, ids[0])
	require.NoError(t, err)
	require.Equal(t, entity.StatusCancelled, sale.Status)

	// terminal state, cancelling again must fail
	err = env.engine.CancelSales(ctx, testSeller, ids)
	require.ErrorIs(t, err, errs.InvalidStatus)
}

func TestPurchaseExclusiveSaleSplitsPayment(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 1000) // 10% commission

	require.NoError(t, env.engine.UpdateCommissionRecipients(ctx, []entity.CommissionRecipient{
		{Address: "recipient-a", Bps: 3000},
		{Address: "recipient-b", Bps: 7000},
	}))

	const price = 1000
	ref := env.mintExclusive(t, testSeller, 1)
	ids, err := env.engine.CreateSales(ctx, testSeller, []CreateSaleParams{
		{Currency: entity.CurrencyNative, Asset: ref, Quantity: 1, PricePerUnit: price, Class: entity.AssetClassExclusive},
	})
	require.NoError(t, err)

	env.funds.Credit(entity.CurrencyNative, testBuyer, price)
	err = env.engine.PurchaseSales(ctx, testBuyer, price, []PurchaseSaleParams{
		{SaleID: ids[0], Quantity: 1},
	})
	require.NoError(t, err)

	require.Equal(t, uint64(900), env.funds.BalanceOf(entity.CurrencyNative, testSeller))
	require.Equal(t, uint64(30), env.funds.BalanceOf(entity.CurrencyNative, "recipient-a"))
	require.Equal(t, uint64(70), env.funds.BalanceOf(entity.CurrencyNative, "recipient-b"))
	require.Equal(t, uint64(0), env.funds.BalanceOf(entity.CurrencyNative, testBuyer))
	require.Equal(t, uint64(1), env.assets.BalanceOf(ref, testBuyer))

	sale, err := env.repo.GetSale(ctx, ids[0])
	require.NoError(t, err)
	require.Equal(t, entity.StatusClosed, sale.Status)
}

func TestPurchaseRefundsUnusedNativeFunds(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	const price = 1000
	ref := env.mintExclusive(t, testSeller, 1)
	ids, err := env.engine.CreateSales(ctx, testSeller, []CreateSaleParams{
		{Currency: entity.CurrencyNative, Asset: ref, Quantity: 1, PricePerUnit: price, Class: entity.AssetClassExclusive},
	})
	require.NoError(t, err)

	env.funds.Credit(entity.CurrencyNative, testBuyer, 1500)
	err = env.engine.PurchaseSales(ctx, testBuyer, 1500, []PurchaseSaleParams{
		{SaleID: ids[0], Quantity: 1},
	})
	require.NoError(t, err)

	// 1000 consumed, 500 refunded once at the end of the batch
	require.Equal(t, uint64(500), env.funds.BalanceOf(entity.CurrencyNative, testBuyer))
	require.Equal(t, uint64(price), env.funds.BalanceOf(entity.CurrencyNative, testSeller))
}

func TestPurchaseInsufficientAttachedNative(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	ref := env.mintExclusive(t, testSeller, 1)
	ids, err := env.engine.CreateSales(ctx, testSeller, []CreateSaleParams{
		{Currency: entity.CurrencyNative, Asset: ref, Quantity: 1, PricePerUnit: 1000, Class: entity.AssetClassExclusive},
	})
	require.NoError(t, err)

	env.funds.Credit(entity.CurrencyNative, testBuyer, 900)
	err = env.engine.PurchaseSales(ctx, testBuyer, 900, []PurchaseSaleParams{
		{SaleID: ids[0], Quantity: 1},
	})
	require.ErrorIs(t, err, errs.InsufficientFunds)
}

func TestPurchaseFungibleSalePartially(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	require.NoError(t, env.engine.AddSupportedCurrencies(ctx, []entity.Currency{testTokenCurrency}))

	ref := env.mintFungible(t, testSeller, 1, 10)
	ids, err := env.engine.CreateSales(ctx, testSeller, []CreateSaleParams{
		{Currency: testTokenCurrency, Asset: ref, Quantity: 10, PricePerUnit: 5, Class: entity.AssetClassFungible},
	})
	require.NoError(t, err)

	env.funds.Credit(testTokenCurrency, testBuyer, 50)
	err = env.engine.PurchaseSales(ctx, testBuyer, 0, []PurchaseSaleParams{
		{SaleID: ids[0], Quantity: 4},
	})
	require.NoError(t, err)

	sale, err := env.repo.GetSale(ctx, ids[0])
	require.NoError(t, err)
	require.Equal(t, entity.StatusActive, sale.Status)
	require.Equal(t, uint64(6), sale.AmountAvailable())
	require.Equal(t, uint64(4), env.assets.BalanceOf(ref, testBuyer))
	require.Equal(t, uint64(20), env.funds.BalanceOf(testTokenCurrency, testSeller))

	// buying more than remains is rejected
	err = env.engine.PurchaseSales(ctx, testBuyer, 0, []PurchaseSaleParams{
		{SaleID: ids[0], Quantity: 7},
	})
	require.ErrorIs(t, err, errs.InvalidAmountOfTokensToPurchase)

	// exhausting the supply closes the sale
	err = env.engine.PurchaseSales(ctx, testBuyer, 0, []PurchaseSaleParams{
		{SaleID: ids[0], Quantity: 6},
	})
	require.NoError(t, err)

	sale, err = env.repo.GetSale(ctx, ids[0])
	require.NoError(t, err)
	require.Equal(t, entity.StatusClosed, sale.Status)
}

func TestResolveSaleAppliesApprovedPrice(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	ref := env.mintExclusive(t, testSeller, 1)
	ids, err := env.engine.CreateSales(ctx, testSeller, []CreateSaleParams{
		{Currency: entity.CurrencyNative, Asset: ref, Quantity: 1, PricePerUnit: 1000, Class: entity.AssetClassExclusive},
	})
	require.NoError(t, err)

	message := authz.EncodeSaleResolution(ids[0], []string{testBuyer}, []uint64{900})
	signature := authz.Sign(env.authorizerKey, message)

	err = env.engine.ResolveSale(ctx, testSeller, ResolveSaleParams{
		SaleID:         ids[0],
		ApprovedBuyers: []string{testBuyer},
		ApprovedPrices: []uint64{900},
		Signature:      signature,
	})
	require.NoError(t, err)

	env.funds.Credit(entity.CurrencyNative, testBuyer, 900)
	err = env.engine.PurchaseSales(ctx, testBuyer, 900, []PurchaseSaleParams{
		{SaleID: ids[0], Quantity: 1},
	})
	require.NoError(t, err)
	require.Equal(t, uint64(900), env.funds.BalanceOf(entity.CurrencyNative, testSeller))
}

func TestResolveSaleValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	ref := env.mintExclusive(t, testSeller, 1)
	ids, err := env.engine.CreateSales(ctx, testSeller, []CreateSaleParams{
		{Currency: entity.CurrencyNative, Asset: ref, Quantity: 1, PricePerUnit: 1000, Class: entity.AssetClassExclusive},
	})
	require.NoError(t, err)

	err = env.engine.ResolveSale(ctx, testSeller, ResolveSaleParams{
		SaleID:         ids[0],
		ApprovedBuyers: []string{testBuyer, "other"},
		ApprovedPrices: []uint64{900},
	})
	require.ErrorIs(t, err, errs.InvalidArrayLengths)

	message := authz.EncodeSaleResolution(ids[0], []string{testBuyer}, []uint64{0})
	err = env.engine.ResolveSale(ctx, testSeller, ResolveSaleParams{
		SaleID:         ids[0],
		ApprovedBuyers: []string{testBuyer},
		ApprovedPrices: []uint64{0},
		Signature:      authz.Sign(env.authorizerKey, message),
	})
	require.ErrorIs(t, err, errs.InvalidApprovedPricePerToken)

	message = authz.EncodeSaleResolution(ids[0], []string{testBuyer}, []uint64{900})
	err = env.engine.ResolveSale(ctx, "stranger", ResolveSaleParams{
		SaleID:         ids[0],
		ApprovedBuyers: []string{testBuyer},
		ApprovedPrices: []uint64{900},
		Signature:      authz.Sign(env.authorizerKey, message),
	})
	require.ErrorIs(t, err, errs.InvalidCallee)
}

func TestResolveSaleSignatureSingleUse(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	ref := env.mintExclusive(t, testSeller, 1)
	ids, err := env.engine.CreateSales(ctx, testSeller, []CreateSaleParams{
		{Currency: entity.CurrencyNative, Asset: ref, Quantity: 1, PricePerUnit: 1000, Class: entity.AssetClassExclusive},
	})
	require.NoError(t, err)

	message := authz.EncodeSaleResolution(ids[0], []string{testBuyer}, []uint64{900})
	signature := authz.Sign(env.authorizerKey, message)
	params := ResolveSaleParams{
		SaleID:         ids[0],
		ApprovedBuyers: []string{testBuyer},
		ApprovedPrices: []uint64{900},
		Signature:      signature,
	}

	require.NoError(t, env.engine.ResolveSale(ctx, testSeller, params))

	err = env.engine.ResolveSale(ctx, testSeller, params)
	require.ErrorIs(t, err, errs.NotUnique)
}

func TestResolveSaleRejectsForeignSignature(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	ref := env.mintExclusive(t, testSeller, 1)
	ids, err := env.engine.CreateSales(ctx, testSeller, []CreateSaleParams{
		{Currency: entity.CurrencyNative, Asset: ref, Quantity: 1, PricePerUnit: 1000, Class: entity.AssetClassExclusive},
	})
	require.NoError(t, err)

	strangerKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	message := authz.EncodeSaleResolution(ids[0], []string{testBuyer}, []uint64{900})
	err = env.engine.ResolveSale(ctx, testSeller, ResolveSaleParams{
		SaleID:         ids[0],
		ApprovedBuyers: []string{testBuyer},
		ApprovedPrices: []uint64{900},
		Signature:      authz.Sign(strangerKey, message),
	})
	require.ErrorIs(t, err, errs.InvalidSignature)
}

func TestPurchaseRejectsReentrantCall(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	require.NoError(t, env.engine.enterGuarded())
	defer env.engine.exitGuarded()

	err := env.engine.PurchaseSales(ctx, testBuyer, 0, nil)
	require.ErrorIs(t, err, errs.ReentrantCall)
	require.True(t, errors.Is(env.engine.CancelSales(ctx, testSeller, nil), errs.ReentrantCall))
}
