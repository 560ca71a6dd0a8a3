// Package mock provides in-memory gateway implementations for tests and for
// the in-memory demo mode. Balances are tracked per (asset, owner) and per
// (currency, party); transfers fail when the source balance is insufficient,
// mirroring the behavior of a real asset or token contract.
package mock

import (
	"context"
	"maps"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/stkolmagorov/marketplace/modules/marketplace/gateway"
	"github.com/stkolmagorov/marketplace/modules/marketplace/internal/entity"
)

type assetKey struct {
	contract string
	tokenID  uint64
}

type holdingKey struct {
	assetKey
	owner string
}

type royaltyConfig struct {
	support    entity.RoyaltySupport
	recipients []string
	bps        []uint64
}

// AssetGateway is an in-memory gateway.AssetGateway.
type AssetGateway struct {
	mu        sync.Mutex
	holdings  map[holdingKey]uint64
	royalties map[assetKey]royaltyConfig
}

var (
	_ gateway.AssetGateway  = (*AssetGateway)(nil)
	_ gateway.Transactional = (*AssetGateway)(nil)
)

func NewAssetGateway() *AssetGateway {
	return &AssetGateway{
		holdings:  make(map[holdingKey]uint64),
		royalties: make(map[assetKey]royaltyConfig),
	}
}

// Mint credits quantity unit(s) of the asset to owner.
func (g *AssetGateway) Mint(ref entity.AssetRef, owner string, quantity uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.holdings[holdingKey{assetKey{ref.Contract, ref.TokenID}, owner}] += quantity
}

// SetRoyalty configures the royalty capability reported for the asset.
func (g *AssetGateway) SetRoyalty(ref entity.AssetRef, support entity.RoyaltySupport, recipients []string, bps []uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.royalties[assetKey{ref.Contract, ref.TokenID}] = royaltyConfig{
		support:    support,
		recipients: recipients,
		bps:        bps,
	}
}

// Checkpoint captures current holdings and returns a function restoring
// them, reverting every transfer made in between.
func (g *AssetGateway) Checkpoint() func() {
	g.mu.Lock()
	defer g.mu.Unlock()

	saved := maps.Clone(g.holdings)
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.holdings = saved
	}
}

// BalanceOf returns the owner's balance of the asset.
func (g *AssetGateway) BalanceOf(ref entity.AssetRef, owner string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holdings[holdingKey{assetKey{ref.Contract, ref.TokenID}, owner}]
}

func (g *AssetGateway) Transfer(_ context.Context, ref entity.AssetRef, from, to string, quantity uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	fromKey := holdingKey{assetKey{ref.Contract, ref.TokenID}, from}
	if g.holdings[fromKey] < quantity {
		return errors.Newf("insufficient asset balance: %s holds %d of %s/%d, need %d",
			from, g.holdings[fromKey], ref.Contract, ref.TokenID, quantity)
	}
	g.holdings[fromKey] -= quantity
	g.holdings[holdingKey{assetKey{ref.Contract, ref.TokenID}, to}] += quantity
	return nil
}

func (g *AssetGateway) RoyaltySupport(_ context.Context, ref entity.AssetRef) (entity.RoyaltySupport, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.royalties[assetKey{ref.Contract, ref.TokenID}].support, nil
}

func (g *AssetGateway) RoyaltyInfo(_ context.Context, ref entity.AssetRef) (string, uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	conf := g.royalties[assetKey{ref.Contract, ref.TokenID}]
	if conf.support != entity.RoyaltySingle || len(conf.recipients) == 0 {
		return "", 0, errors.Newf("asset %s/%d does not report single-recipient royalty", ref.Contract, ref.TokenID)
	}
	return conf.recipients[0], conf.bps[0], nil
}

func (g *AssetGateway) RoyaltySplit(_ context.Context, ref entity.AssetRef) ([]string, []uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	conf := g.royalties[assetKey{ref.Contract, ref.TokenID}]
	if conf.support != entity.RoyaltySplitter {
		return nil, nil, errors.Newf("asset %s/%d does not report a royalty split", ref.Contract, ref.TokenID)
	}
	return conf.recipients, conf.bps, nil
}

type fundsKey struct {
	currency entity.Currency
	party    string
}

// FundsGateway is an in-memory gateway.FundsGateway.
type FundsGateway struct {
	mu       sync.Mutex
	balances map[fundsKey]uint64
}

var (
	_ gateway.FundsGateway  = (*FundsGateway)(nil)
	_ gateway.Transactional = (*FundsGateway)(nil)
)

func NewFundsGateway() *FundsGateway {
	return &FundsGateway{balances: make(map[fundsKey]uint64)}
}

// Credit adds amount of the currency to the party's balance.
func (g *FundsGateway) Credit(currency entity.Currency, party string, amount uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.balances[fundsKey{currency, party}] += amount
}

// Checkpoint captures current balances and returns a function restoring
// them, reverting every transfer made in between.
func (g *FundsGateway) Checkpoint() func() {
	g.mu.Lock()
	defer g.mu.Unlock()

	saved := maps.Clone(g.balances)
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.balances = saved
	}
}

// BalanceOf returns the party's balance of the currency.
func (g *FundsGateway) BalanceOf(currency entity.Currency, party string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balances[fundsKey{currency, party}]
}

func (g *FundsGateway) TransferToken(_ context.Context, currency entity.Currency, from, to string, amount uint64) error {
	return g.transfer(currency, from, to, amount)
}

func (g *FundsGateway) TransferNative(_ context.Context, from, to string, amount uint64) error {
	return g.transfer(entity.CurrencyNative, from, to, amount)
}

func (g *FundsGateway) transfer(currency entity.Currency, from, to string, amount uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	fromKey := fundsKey{currency, from}
	if g.balances[fromKey] < amount {
		return errors.Newf("insufficient funds: %s holds %d %s, need %d",
			from, g.balances[fromKey], currency, amount)
	}
	g.balances[fromKey] -= amount
	g.balances[fundsKey{currency, to}] += amount
	return nil
}
