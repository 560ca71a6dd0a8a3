package marketplace

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/do/v2"
	"github.com/stkolmagorov/marketplace/common/errs"
	"github.com/stkolmagorov/marketplace/internal/config"
	"github.com/stkolmagorov/marketplace/internal/postgres"
	"github.com/stkolmagorov/marketplace/modules/marketplace/api/httphandler"
	"github.com/stkolmagorov/marketplace/modules/marketplace/archiver"
	"github.com/stkolmagorov/marketplace/modules/marketplace/datagateway"
	"github.com/stkolmagorov/marketplace/modules/marketplace/gateway"
	"github.com/stkolmagorov/marketplace/modules/marketplace/gateway/mock"
	"github.com/stkolmagorov/marketplace/modules/marketplace/internal/entity"
	"github.com/stkolmagorov/marketplace/modules/marketplace/repository/memory"
	repository "github.com/stkolmagorov/marketplace/modules/marketplace/repository/postgres"
	"github.com/stkolmagorov/marketplace/pkg/logger"
)

const Version = "v0.1.0"

// Module bundles the engine with its ledger, API and optional archiver.
type Module struct {
	Engine *Engine

	archiver     *archiver.Archiver
	cleanupFuncs []func(context.Context) error
}

// NewModule wires the marketplace module from the injector: ledger (postgres
// or in-memory), asset/currency gateways, settlement engine, HTTP read API
// and the event archiver when configured.
func NewModule(injector do.Injector) (*Module, error) {
	ctx := do.MustInvoke[context.Context](injector)
	conf := do.MustInvoke[config.Config](injector)

	var cleanupFuncs []func(context.Context) error

	var marketplaceDg datagateway.MarketplaceDataGateway
	seedParams := entity.EngineParams{
		AuthorizerPublicKey: conf.Engine.AuthorizerPublicKey,
		CommissionBps:       conf.Engine.CommissionBps,
	}
	if conf.InMemory {
		marketplaceDg = memory.NewRepository(seedParams)
	} else {
		pg, err := postgres.NewPool(ctx, conf.Postgres)
		if err != nil {
			return nil, fmt.Errorf("can't create postgres connection : %w", err)
		}
		cleanupFuncs = append(cleanupFuncs, func(ctx context.Context) error {
			pg.Close()
			return nil
		})
		repo := repository.NewRepository(pg)
		if _, err := repo.GetEngineParams(ctx); err != nil {
			if !errors.Is(err, errs.NotFound) {
				return nil, errors.Wrap(err, "can't load engine params")
			}
			if err := repo.UpdateEngineParams(ctx, seedParams); err != nil {
				return nil, errors.Wrap(err, "can't seed engine params")
			}
		}
		marketplaceDg = repo
	}

	// Asset and currency collaborators are external systems. A deployment
	// provides real adapters through the injector; without them the in-memory
	// gateways back the demo mode.
	assets, err := do.Invoke[gateway.AssetGateway](injector)
	if err != nil {
		assets = mock.NewAssetGateway()
	}
	funds, err := do.Invoke[gateway.FundsGateway](injector)
	if err != nil {
		funds = mock.NewFundsGateway()
	}

	engine := New(marketplaceDg, assets, funds, conf.Engine.EscrowAccount)

	httpServer := do.MustInvoke[*fiber.App](injector)
	marketplaceHandler := httphandler.New(marketplaceDg)
	if err := marketplaceHandler.Mount(httpServer); err != nil {
		return nil, fmt.Errorf("can't mount marketplace API : %w", err)
	}
	logger.InfoContext(ctx, "Mounted marketplace HTTP handler")

	module := &Module{
		Engine:       engine,
		cleanupFuncs: cleanupFuncs,
	}
	if conf.Archiver.Enabled {
		arch, err := archiver.New(ctx, marketplaceDg, conf.Archiver)
		if err != nil {
			return nil, errors.Wrap(err, "can't create event archiver")
		}
		module.archiver = arch
	}

	logger.InfoContext(ctx, "Marketplace module started.")
	return module, nil
}

// Run blocks until the context is cancelled, driving the archiver when one
// is configured.
func (m *Module) Run(ctx context.Context) error {
	if m.archiver == nil {
		<-ctx.Done()
		return nil
	}
	return m.archiver.Run(ctx)
}

// Shutdown releases module resources.
func (m *Module) Shutdown(ctx context.Context) error {
	for _, cleanup := range m.cleanupFuncs {
		if err := cleanup(ctx); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}
