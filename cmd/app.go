package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"hypertrader/internal/adapters/ai"
	chclient "hypertrader/internal/adapters/clickhouse"
	"hypertrader/internal/adapters/config"
	"hypertrader/internal/adapters/errors/noop"
	"hypertrader/internal/adapters/errors/sentry"
	"hypertrader/internal/adapters/exchanges"
	"hypertrader/internal/adapters/exchanges/hyperliquid"
	"hypertrader/internal/adapters/exchanges/synthetic"
	"hypertrader/internal/adapters/kafka"
	pgclient "hypertrader/internal/adapters/postgres"
	redisclient "hypertrader/internal/adapters/redis"
	sentimentsource "hypertrader/internal/adapters/sentiment"
	"hypertrader/internal/adapters/telegram"
	"hypertrader/internal/agent"
	domainsentiment "hypertrader/internal/domain/sentiment"
	"hypertrader/internal/domain/stats"
	"hypertrader/internal/events"
	"hypertrader/internal/metrics"
	chrepo "hypertrader/internal/repository/clickhouse"
	pgrepo "hypertrader/internal/repository/postgres"
	"hypertrader/internal/services/execution"
	riskservice "hypertrader/internal/services/risk"
	"hypertrader/internal/tools"
	"hypertrader/internal/tools/catalog"
	"hypertrader/internal/tools/shared"
	"hypertrader/pkg/errors"
	"hypertrader/pkg/logger"
)

const (
	migrateTimeout  = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

// app holds the wired components and everything that must be closed on exit
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	agent   *agent.Agent
	tracker errors.Tracker

	marketSource string
	sinks        []string
	closers      []func() error
}

// newApp wires the agent and its optional backends. Optional backends that fail to
// connect are logged and skipped; they never block a request.
func newApp(ctx context.Context, cfg *config.Config, defaultAmount decimal.Decimal, log *logger.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	a.tracker = initErrorTracker(cfg, log)
	a.tracker.SetAccount(ctx, cfg.Agent.AccountID)
	logger.SetErrorTracker(a.tracker)

	metrics.Init()
	a.initMetricsServer()

	market, exchange := a.initHyperliquid()
	locker := a.initLocker(ctx)

	var sinks execution.Sinks
	var agentOpts []agent.Option
	agentOpts = append(agentOpts,
		agent.WithLogger(log.With("component", "agent")),
		agent.WithTracker(a.tracker),
	)

	if publisher := a.initEvents(); publisher != nil {
		sinks.Events = publisher
		agentOpts = append(agentOpts, agent.WithEvents(publisher))
	}
	if journal := a.initJournal(ctx); journal != nil {
		sinks.Journal = journal
	}
	if notifier := a.initTelegram(); notifier != nil {
		sinks.Notifier = notifier
	}

	var sentimentSource domainsentiment.Source = sentimentsource.NewSyntheticSource()
	statsRepo, sentimentRepo := a.initClickHouse(ctx)
	if sentimentRepo != nil {
		sentimentSource = sentimentsource.NewRepositorySource(sentimentRepo, sentimentSource, log)
	}

	executor := execution.NewService(exchange, market, locker, sinks, execution.Config{
		LockTimeout: cfg.Execution.LockTimeout,
	})

	deps := shared.Deps{
		Log:       log.With("component", "tools"),
		Market:    market,
		Sentiment: sentimentSource,
		Risk: riskservice.NewPreTradeValidator(riskservice.Bounds{
			MaxPositionSize: cfg.Risk.MaxPositionSize,
			MaxStopLoss:     cfg.Risk.MaxStopLoss,
			MaxNotionalUSD:  cfg.Risk.MaxNotionalUSD,
			ClampToBounds:   cfg.Risk.ClampToBounds,
		}),
		Executor: executor,
		Defaults: shared.Defaults{
			Amount:       defaultAmount,
			PositionSize: cfg.Risk.DefaultPositionSize,
			StopLoss:     cfg.Risk.DefaultStopLoss,
		},
		ToolTimeout:  cfg.Agent.ToolTimeout,
		ToolRetries:  cfg.Agent.ToolRetries,
		RetryBackoff: cfg.Agent.ToolRetryBackoff,
	}
	if statsRepo != nil {
		deps.StatsRepo = statsRepo
	}

	registry := tools.NewRegistry()
	if err := catalog.RegisterAll(registry, deps); err != nil {
		a.Close()
		return nil, errors.Wrap(err, "failed to register tools")
	}

	provider, err := ai.NewChatProvider(ctx, cfg.AI, cfg.Agent.ModelTimeout)
	if err != nil {
		a.Close()
		return nil, errors.Wrap(err, "failed to create model backend")
	}

	a.agent, err = agent.New(provider, registry, agent.Config{
		Model:                cfg.AI.Model,
		Temperature:          cfg.AI.Temperature,
		MaxTokens:            cfg.AI.MaxTokens,
		MaxSteps:             cfg.Agent.MaxSteps,
		ModelTimeout:         cfg.Agent.ModelTimeout,
		AdapterFailureBudget: cfg.Agent.AdapterFailureBudget,
		AccountID:            cfg.Agent.AccountID,
	}, agentOpts...)
	if err != nil {
		a.Close()
		return nil, err
	}

	log.Infow("System initialized",
		"provider", provider.Name(),
		"model", cfg.AI.Model,
		"market", a.marketSource,
		"sinks", a.sinks,
	)
	return a, nil
}

// Describe summarizes the backends for the CLI banner
func (a *app) Describe() map[string]string {
	network := "mainnet"
	if a.cfg.Hyperliquid.Testnet {
		network = "testnet"
	}
	trading := "disabled"
	if a.cfg.Hyperliquid.CanTrade() {
		trading = "enabled"
	}
	return map[string]string{
		"provider": a.cfg.AI.Provider + "/" + a.cfg.AI.Model,
		"network":  network,
		"market":   a.marketSource,
		"trading":  trading,
	}
}

// Close releases resources in reverse order of creation and flushes the error tracker
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warnw("Shutdown step failed", "error", err)
		}
	}
	a.closers = nil

	if a.tracker != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = a.tracker.Flush(ctx)
	}
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Debug("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment, cfg.App.Version)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

func (a *app) initMetricsServer() {
	if !a.cfg.Metrics.Enabled {
		return
	}

	srv := metrics.NewServer(a.cfg.Metrics.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warnw("Metrics server stopped", "addr", a.cfg.Metrics.Addr, "error", err)
		}
	}()
	a.onClose(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	})
	a.log.Infow("Metrics server started", "addr", a.cfg.Metrics.Addr)
}

// initHyperliquid returns the market data source for tools and the exchange used for
// real orders. The exchange is nil when no account and signer are configured.
func (a *app) initHyperliquid() (exchanges.MarketData, exchanges.Exchange) {
	hl := a.cfg.Hyperliquid

	var signer hyperliquid.Signer
	if hl.SignerURL != "" {
		signer = hyperliquid.NewRemoteSigner(hl.SignerURL, hl.HTTPTimeout)
	}
	client := hyperliquid.NewClient(hyperliquid.Config{
		BaseURL:         hl.BaseURL(),
		Testnet:         hl.Testnet,
		AccountAddress:  hl.AccountAddress,
		Signer:          signer,
		WeightPerMinute: hl.WeightPerMinute,
		HTTPClient:      &http.Client{Timeout: hl.HTTPTimeout},
	})

	var exchange exchanges.Exchange
	if hl.CanTrade() {
		exchange = client
	}

	if !hl.UseRealAPI {
		a.marketSource = "synthetic"
		return synthetic.NewMarket(), exchange
	}
	a.marketSource = "hyperliquid (synthetic fallback)"
	return synthetic.NewFallbackMarket(client, synthetic.NewMarket(), a.log), exchange
}

func (a *app) initLocker(ctx context.Context) execution.AccountLocker {
	if !a.cfg.Redis.Enabled {
		return execution.NewMemoryLocker()
	}

	client, err := redisclient.NewClient(ctx, a.cfg.Redis)
	if err != nil {
		a.log.Warnw("Redis unavailable, using in-process account lock", "addr", a.cfg.Redis.Addr(), "error", err)
		return execution.NewMemoryLocker()
	}
	a.onClose(client.Close)
	a.sinks = append(a.sinks, "redis-lock")
	return redisclient.NewAccountLocker(client, a.cfg.Execution.LockTTL)
}

func (a *app) initEvents() *events.Publisher {
	if !a.cfg.Kafka.Enabled {
		return nil
	}

	producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: a.cfg.Kafka.Brokers})
	a.onClose(producer.Close)
	a.sinks = append(a.sinks, "kafka")
	return events.NewPublisher(producer, a.cfg.App.Name, a.log)
}

func (a *app) initJournal(ctx context.Context) execution.Journal {
	if !a.cfg.Postgres.Enabled {
		return nil
	}

	client, err := pgclient.NewClient(ctx, a.cfg.Postgres)
	if err != nil {
		a.log.Warnw("Postgres unavailable, trade journal disabled", "error", err)
		return nil
	}
	a.onClose(client.Close)

	journal := pgrepo.NewTradeJournalRepository(client.DB())
	mctx, cancel := context.WithTimeout(ctx, migrateTimeout)
	defer cancel()
	if err := journal.Migrate(mctx); err != nil {
		a.log.Warnw("Trade journal migration failed, journal disabled", "error", err)
		return nil
	}

	if err := prometheus.Register(metrics.NewJournalCollector(a.log, client.DB())); err != nil {
		a.log.Warnw("Failed to register journal collector", "error", err)
	}
	a.sinks = append(a.sinks, "postgres")
	return journal
}

func (a *app) initClickHouse(ctx context.Context) (stats.Repository, domainsentiment.Repository) {
	if !a.cfg.ClickHouse.Enabled {
		return nil, nil
	}

	client, err := chclient.NewClient(ctx, a.cfg.ClickHouse)
	if err != nil {
		a.log.Warnw("ClickHouse unavailable, tool stats and stored sentiment disabled", "error", err)
		return nil, nil
	}
	a.onClose(client.Close)

	mctx, cancel := context.WithTimeout(ctx, migrateTimeout)
	defer cancel()

	var statsRepo stats.Repository
	sr := chrepo.NewStatsRepository(client.Conn())
	if err := sr.Migrate(mctx); err != nil {
		a.log.Warnw("Tool stats migration failed", "error", err)
	} else {
		statsRepo = sr
	}

	var sentimentRepo domainsentiment.Repository
	sent := chrepo.NewSentimentRepository(client.Conn())
	if err := sent.Migrate(mctx); err != nil {
		a.log.Warnw("Sentiment migration failed", "error", err)
	} else {
		sentimentRepo = sent
	}

	a.sinks = append(a.sinks, "clickhouse")
	return statsRepo, sentimentRepo
}

func (a *app) initTelegram() execution.Notifier {
	tg := a.cfg.Telegram
	if !tg.Enabled {
		return nil
	}

	bot, err := telegram.NewBot(telegram.Config{Token: tg.BotToken, Debug: a.cfg.App.Debug}, a.log)
	if err != nil {
		a.log.Warnw("Telegram unavailable, trade notifications disabled", "error", err)
		return nil
	}
	a.sinks = append(a.sinks, "telegram")
	return telegram.NewTradeNotifier(bot, tg.ChatID)
}
