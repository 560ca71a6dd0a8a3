package marketplace

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stkolmagorov/marketplace/modules/marketplace/gateway/mock"
	"github.com/stkolmagorov/marketplace/modules/marketplace/internal/entity"
	"github.com/stkolmagorov/marketplace/modules/marketplace/repository/memory"
	"github.com/stretchr/testify/require"
)

const (
	testEscrow = "escrow"
	testSeller = "seller"
	testBuyer  = "buyer"

	testTokenCurrency = entity.Currency("token-contract")
)

type testEnv struct {
	engine        *Engine
	repo          *memory.Repository
	assets        *mock.AssetGateway
	funds         *mock.FundsGateway
	authorizerKey *btcec.PrivateKey
}

func newTestEnv(t *testing.T, commissionBps uint64) *testEnv {
	t.Helper()

	authorizerKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	repo := memory.NewRepository(entity.EngineParams{
		AuthorizerPublicKey: hex.EncodeToString(authorizerKey.PubKey().SerializeCompressed()),
		CommissionBps:       commissionBps,
	})
	assets := mock.NewAssetGateway()
	funds := mock.NewFundsGateway()

	return &testEnv{
		engine:        New(repo, assets, funds, testEscrow),
		repo:          repo,
		assets:        assets,
		funds:         funds,
		authorizerKey: authorizerKey,
	}
}

func testAsset(tokenID uint64) entity.AssetRef {
	return entity.AssetRef{Contract: "asset-contract", TokenID: tokenID}
}

func (env *testEnv) mintExclusive(t *testing.T, owner string, tokenID uint64) entity.AssetRef {
	t.Helper()
	ref := testAsset(tokenID)
	env.assets.Mint(ref, owner, 1)
	return ref
}

func (env *testEnv) mintFungible(t *testing.T, owner string, tokenID, quantity uint64) entity.AssetRef {
	t.Helper()
	ref := testAsset(tokenID)
	env.assets.Mint(ref, owner, quantity)
	return ref
}
