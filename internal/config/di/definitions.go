package di

import (
	"github.com/dapmarket/marketplace-ledger/internal/api"
	"github.com/dapmarket/marketplace-ledger/internal/archive"
	"github.com/dapmarket/marketplace-ledger/internal/config"
	"github.com/dapmarket/marketplace-ledger/internal/daemon"
	"github.com/dapmarket/marketplace-ledger/internal/event"
	"github.com/dapmarket/marketplace-ledger/internal/fee"
	"github.com/dapmarket/marketplace-ledger/internal/ledger"
	"github.com/dapmarket/marketplace-ledger/internal/messenger"
	"github.com/dapmarket/marketplace-ledger/internal/registry"
	"github.com/dapmarket/marketplace-ledger/internal/repository"
	"github.com/sarulabs/di/v2"
	"go.uber.org/zap"
)

var Definitions = []di.Def{
	{
		Name: "fee.policy",
		Build: func(ctn di.Container) (interface{}, error) {
			policy, err := fee.NewPolicy(config.Get().FeePercent)
			if err != nil {
				zap.L().With(zap.Error(err)).Fatal("Failed to create fee policy")
			}

			return policy, nil
		},
	},
	{
		Name: "registry",
		Build: func(ctn di.Container) (interface{}, error) {
			cfg := config.Get()
			if cfg.Registry.Url == "" {
				zap.L().Info("Using in-memory asset registry")
				return registry.NewMemoryRegistry(cfg.EscrowAccount), nil
			}

			remote, err := registry.NewRemoteRegistry(cfg.Registry.Url, cfg.Registry.Timeout, cfg.Registry.Debug)
			if err != nil {
				zap.L().With(zap.Error(err)).Fatal("Failed to create registry client")
			}

			return remote, nil
		},
	},
	{
		Name: "event.log",
		Build: func(ctn di.Container) (interface{}, error) {
			return event.NewLog(), nil
		},
	},
	{
		Name: "ledger",
		Build: func(ctn di.Container) (interface{}, error) {
			cfg := config.Get()

			return ledger.New(
				ctn.Get("fee.policy").(fee.Policy),
				ctn.Get("registry").(registry.AssetRegistry),
				ctn.Get("event.log").(*event.Log),
				cfg.EscrowAccount,
				cfg.FeeAccount,
			), nil
		},
	},
	{
		Name: "archive",
		Build: func(ctn di.Container) (interface{}, error) {
			if len(config.Get().ElasticSearch.Hosts) == 0 {
				return (archive.Index)(nil), nil
			}

			return archive.New()
		},
	},
	{
		Name: "messenger",
		Build: func(ctn di.Container) (interface{}, error) {
			if config.Get().Aws.Region == "" {
				return (messenger.MessageService)(nil), nil
			}

			return messenger.NewMessenger()
		},
	},
	{
		Name: "event.repo",
		Build: func(ctn di.Container) (interface{}, error) {
			index, ok := ctn.Get("archive").(archive.Index)
			if !ok || index == nil {
				return (repository.EventRepository)(nil), nil
			}

			return repository.NewEventRepository(index), nil
		},
	},
	{
		Name: "listing.repo",
		Build: func(ctn di.Container) (interface{}, error) {
			index, ok := ctn.Get("archive").(archive.Index)
			if !ok || index == nil {
				return (repository.ListingRepository)(nil), nil
			}

			return repository.NewListingRepository(index), nil
		},
	},
	{
		Name: "daemon",
		Build: func(ctn di.Container) (interface{}, error) {
			index, _ := ctn.Get("archive").(archive.Index)
			msg, _ := ctn.Get("messenger").(messenger.MessageService)

			return daemon.NewDaemon(
				ctn.Get("event.log").(*event.Log),
				ctn.Get("ledger").(*ledger.Ledger),
				index,
				msg,
			), nil
		},
	},
	{
		Name: "api",
		Build: func(ctn di.Container) (interface{}, error) {
			eventRepo, _ := ctn.Get("event.repo").(repository.EventRepository)
			listingRepo, _ := ctn.Get("listing.repo").(repository.ListingRepository)

			return api.NewServer(
				ctn.Get("ledger").(*ledger.Ledger),
				eventRepo,
				listingRepo,
			), nil
		},
	},
}
