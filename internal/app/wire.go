package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/arguiot/arbitrage-bot-sub000/internal/blob/s3"
	"github.com/arguiot/arbitrage-bot-sub000/internal/cache"
	"github.com/arguiot/arbitrage-bot-sub000/internal/cache/redis"
	"github.com/arguiot/arbitrage-bot-sub000/internal/config"
	"github.com/arguiot/arbitrage-bot-sub000/internal/coordinator"
	"github.com/arguiot/arbitrage-bot-sub000/internal/crypto"
	"github.com/arguiot/arbitrage-bot-sub000/internal/detector"
	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
	"github.com/arguiot/arbitrage-bot-sub000/internal/executor"
	"github.com/arguiot/arbitrage-bot-sub000/internal/feed"
	"github.com/arguiot/arbitrage-bot-sub000/internal/graph"
	"github.com/arguiot/arbitrage-bot-sub000/internal/market"
	"github.com/arguiot/arbitrage-bot-sub000/internal/market/cex"
	"github.com/arguiot/arbitrage-bot-sub000/internal/market/eth"
	"github.com/arguiot/arbitrage-bot-sub000/internal/notify"
	"github.com/arguiot/arbitrage-bot-sub000/internal/optimizer"
	"github.com/arguiot/arbitrage-bot-sub000/internal/server/ws"
	"github.com/arguiot/arbitrage-bot-sub000/internal/store/postgres"
)

// Dependencies bundles every component the application modes need to operate.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Hot state
	Quotes    *cache.QuoteStore
	Liquidity *cache.Liquidity
	BetSizes  *cache.BetSizes
	Graph     *graph.RateGraph
	Persister *cache.Persister

	// Redis-backed coordination
	Locks domain.LockManager
	Bus   domain.SignalBus

	// Persistence
	Executions domain.ExecutionStore

	// Venues. Streams carries one long-running ticker-stream task per
	// order-book venue.
	Markets *market.Registry
	Streams []func(context.Context) error

	// Engine
	Strategies  *detector.Registry
	Optimizer   *optimizer.Optimizer
	Executor    *executor.Executor
	Feed        *feed.Service
	Coordinator *coordinator.Coordinator

	// Outer surfaces
	Hub      *ws.Hub
	Server   *ws.Server
	Notifier *notify.Notifier
	Watcher  *notify.Watcher
	Archiver *s3blob.Archiver
}

// needsPostgres returns true for modes that persist execution history.
func needsPostgres(mode string) bool {
	switch mode {
	case "trade", "full":
		return true
	default:
		return false
	}
}

// needsVenues returns true for modes that quote live markets.
func needsVenues(mode string) bool {
	switch mode {
	case "trade", "monitor", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}
	mode := strings.ToLower(cfg.Mode)
	tokens := tokensFromConfig(cfg.Tokens)

	// --- Redis: locks, signal bus, sub-store persistence ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	locks := redis.NewLockManager(redisClient, 0)
	deps.Locks = locks
	deps.Bus = redis.NewSignalBus(redisClient)
	subStore := redis.NewSubStore(redisClient, locks, logger)

	// --- PostgreSQL (only for modes that persist executions) ---
	if needsPostgres(mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.Executions = postgres.NewExecutionStore(pgClient.Pool())
	}

	// --- In-process hot state ---
	deps.Quotes = cache.NewQuoteStore()
	deps.Liquidity = cache.NewLiquidity(cfg.Cache.LiquidityTTL.Duration)
	deps.BetSizes = cache.NewBetSizes(cfg.Cache.BetSizeTTL.Duration)
	deps.Graph = graph.New()
	deps.Persister = cache.NewPersister(
		deps.Quotes, deps.Liquidity, deps.BetSizes,
		subStore, cfg.Cache.PersistInterval.Duration, logger,
	)

	// --- Wallet (optional; monitor deployments quote without one) ---
	var wallet *crypto.Wallet
	if cfg.Wallet.PrivateKey != "" || cfg.Wallet.EncryptedKeyPath != "" {
		keyHex, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: load key: %w", err)
		}
		wallet, err = crypto.NewWallet(keyHex)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet: %w", err)
		}
	}

	// --- Venues ---
	deps.Markets = market.NewRegistry()
	if needsVenues(mode) {
		venueClosers, err := wireVenues(ctx, cfg, deps, wallet, tokens, logger)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, venueClosers...)
	}

	// --- Detection strategies ---
	deps.Strategies = detector.NewRegistry()
	deps.Strategies.Register(detector.NewPairwise(cfg.Trading.MinRatio, logger))
	deps.Strategies.Register(detector.NewBellmanFordStrategy(cfg.Trading.MinRatio, logger))
	deps.Strategies.Register(detector.NewFloydWarshallStrategy(cfg.Trading.MinRatio, logger))

	// --- Engine ---
	deps.Optimizer = optimizer.New(optimizer.Config{
		Start:       config.Amount(cfg.Optimizer.Start),
		InitialStep: config.Amount(cfg.Optimizer.InitialStep),
		Timeout:     cfg.Optimizer.Timeout.Duration,
	}, logger)
	deps.Executor = executor.New(executor.Config{
		LegDeadline: cfg.Executor.LegDeadline.Duration,
		SlippageBps: cfg.Executor.SlippageBps,
	}, deps.Markets, logger)
	deps.Feed = feed.New(feed.Config{
		Tokens:      tokens,
		ProbeAmount: config.Amount(cfg.Feed.ProbeAmount),
		Interval:    cfg.Feed.Interval.Duration,
	}, deps.Markets, deps.Quotes, deps.Graph, deps.Bus, logger)
	deps.Coordinator = coordinator.New(coordinator.Config{
		Strategy:     cfg.Trading.Strategy,
		MinBet:       config.Amount(cfg.Trading.MinBet),
		TickInterval: cfg.Trading.TickInterval.Duration,
		SafetyFactor: cfg.Trading.SafetyFactor,
		CostMargin:   cfg.Trading.CostMargin,
		DryRun:       !cfg.Trading.AutoExecute || mode == "monitor",
	}, coordinator.Deps{
		Strategies: deps.Strategies,
		Markets:    deps.Markets,
		Optimizer:  deps.Optimizer,
		Executor:   deps.Executor,
		Quotes:     deps.Quotes,
		Graph:      deps.Graph,
		Liquidity:  deps.Liquidity,
		BetSizes:   deps.BetSizes,
		Locks:      deps.Locks,
		Bus:        deps.Bus,
		Store:      deps.Executions,
	}, logger)

	// --- WebSocket mirror ---
	if cfg.Server.Enabled || mode == "server" || mode == "full" {
		deps.Hub = ws.NewHub(deps.Bus, logger, ws.Config{
			Mode:         cfg.Mode,
			StrategyName: cfg.Trading.Strategy,
			StartedAt:    time.Now(),
		})
		deps.Server = ws.NewServer(deps.Hub, cfg.Server.Port, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	if len(senders) > 0 {
		deps.Watcher = notify.NewWatcher(deps.Notifier, deps.Bus, logger)
	}

	// --- S3 archival ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			deps.Graph,
			deps.Executions,
			cfg.S3.ArchiveEvery.Duration,
			logger,
		)
	}

	return deps, cleanup, nil
}

// wireVenues builds one adapter per configured market and registers it,
// returning closers for the underlying RPC connections.
func wireVenues(ctx context.Context, cfg *config.Config, deps *Dependencies, wallet *crypto.Wallet, tokens []domain.Token, logger *slog.Logger) ([]func(), error) {
	var closers []func()
	var base domain.Token
	if len(tokens) > 0 {
		base = tokens[0]
	}

	// Sibling routers on the same chain, for flash routes that hop venues.
	routersByChain := make(map[string]map[string]common.Address)
	for _, m := range cfg.Markets.AMM {
		if routersByChain[m.Chain] == nil {
			routersByChain[m.Chain] = make(map[string]common.Address)
		}
		routersByChain[m.Chain][m.Name] = common.HexToAddress(m.Router)
	}

	for _, m := range cfg.Markets.AMM {
		source, err := eth.NewSource(ctx, eth.SourceConfig{
			RPCURL:        m.RPCURL,
			ChainID:       big.NewInt(m.ChainID),
			Factory:       common.HexToAddress(m.Factory),
			Router:        common.HexToAddress(m.Router),
			Flash:         common.HexToAddress(m.Flash),
			Base:          base,
			Owner:         common.HexToAddress(cfg.Wallet.Address),
			BlockTimeHint: m.BlockTime.Duration,
		}, wallet, logger)
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
			return nil, fmt.Errorf("wire: amm venue %s: %w", m.Name, err)
		}
		closers = append(closers, source.Close)

		peers := make(map[string]common.Address)
		for name, router := range routersByChain[m.Chain] {
			if name != m.Name {
				peers[name] = router
			}
		}
		deps.Markets.Register(market.NewAMMVenue(market.AMMConfig{
			Name:        m.Name,
			Chain:       m.Chain,
			Router:      common.HexToAddress(m.Router),
			FeePerMille: m.FeePerMille,
			PeerRouters: peers,
		}, source, logger))
	}

	symbols := streamSymbols(tokens)
	for _, m := range cfg.Markets.Book {
		var auth *crypto.HMACAuth
		if m.ApiKey != "" && m.ApiSecret != "" {
			auth = &crypto.HMACAuth{Key: m.ApiKey, Secret: m.ApiSecret}
		}
		source := cex.NewSource(cex.SourceConfig{
			Name:    m.Name,
			BaseURL: m.BaseURL,
			Auth:    auth,
		}, logger)
		deps.Markets.Register(market.NewBookVenue(market.BookConfig{
			Name:      m.Name,
			Fee:       m.Fee,
			FixedCost: m.FixedCost,
		}, source, logger))
		deps.Streams = append(deps.Streams, func(ctx context.Context) error {
			return source.Stream(ctx, symbols)
		})
	}
	return closers, nil
}

// tokensFromConfig converts the configured token universe to domain tokens.
func tokensFromConfig(tokens []config.TokenConfig) []domain.Token {
	out := make([]domain.Token, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, domain.Token{
			Name:     t.Name,
			Address:  common.HexToAddress(t.Address),
			Decimals: t.Decimals,
		})
	}
	return out
}

// streamSymbols lists one ticker symbol per unordered token pair; the venue
// source inverts streamed quotes for the opposite direction.
func streamSymbols(tokens []domain.Token) []string {
	var symbols []string
	for i := range tokens {
		for j := i + 1; j < len(tokens); j++ {
			symbols = append(symbols,
				strings.ToUpper(tokens[i].Name)+"-"+strings.ToUpper(tokens[j].Name))
		}
	}
	return symbols
}
