// Command flipsync runs the full orchestration platform: decision
// pipeline, approval routing, specialist agents, inventory sync, order
// engine, analytics, alerting and the operational API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/brendan721/Flipsync-Final-sub011/internal/agent"
	"github.com/brendan721/Flipsync-Final-sub011/internal/agents"
	"github.com/brendan721/Flipsync-Final-sub011/internal/alerts"
	"github.com/brendan721/Flipsync-Final-sub011/internal/analytics"
	"github.com/brendan721/Flipsync-Final-sub011/internal/api"
	"github.com/brendan721/Flipsync-Final-sub011/internal/approval"
	"github.com/brendan721/Flipsync-Final-sub011/internal/config"
	"github.com/brendan721/Flipsync-Final-sub011/internal/decision"
	"github.com/brendan721/Flipsync-Final-sub011/internal/executive"
	"github.com/brendan721/Flipsync-Final-sub011/internal/inventory"
	"github.com/brendan721/Flipsync-Final-sub011/internal/llm"
	"github.com/brendan721/Flipsync-Final-sub011/internal/marketplace"
	"github.com/brendan721/Flipsync-Final-sub011/internal/metrics"
	"github.com/brendan721/Flipsync-Final-sub011/internal/orders"
	"github.com/brendan721/Flipsync-Final-sub011/internal/repository"
	"github.com/brendan721/Flipsync-Final-sub011/internal/runtime"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: configs/config.yaml)")
	logFormat := flag.String("log-format", "console", "Log format: console or json")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	config.InitLogger(cfg.App.LogLevel, *logFormat)
	log.Info().
		Str("version", config.Version).
		Str("environment", cfg.App.Environment).
		Msg("Starting FlipSync")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Secrets: vault when configured, env fallback otherwise
	if vaultCfg := config.GetVaultConfigFromEnv(); vaultCfg.Address != "" {
		if err := config.LoadSecretsFromVault(ctx, cfg, vaultCfg); err != nil {
			log.Warn().Err(err).Msg("Vault unavailable, using environment credentials")
		}
	}

	// Metrics server
	metricsServer := metrics.NewServer(cfg.Monitoring.PrometheusPort, log.Logger)
	if err := metricsServer.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start metrics server")
	}

	// Event publisher: NATS with in-memory fallback
	var publisher decision.Publisher
	nc, err := nats.Connect(cfg.NATS.URL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second))
	if err != nil {
		log.Warn().Err(err).Str("url", cfg.NATS.URL).Msg("NATS unavailable, events stay in memory")
		publisher = decision.NewMemoryPublisher()
	} else {
		defer nc.Close()
		publisher = decision.NewNATSPublisher(nc, cfg.NATS.SubjectPrefix, log.Logger)
	}

	// Approval persistence: Postgres with in-memory fallback
	var repo repository.Repository
	pool, err := pgxpool.New(ctx, cfg.Database.GetDSN())
	if err == nil {
		err = pool.Ping(ctx)
	}
	if err != nil {
		log.Warn().Err(err).Msg("Postgres unavailable, approvals stay in memory")
		repo = repository.NewMemory()
	} else {
		defer pool.Close()
		repo = repository.NewPostgresWithPool(pool, log.Logger)
	}

	// Redis for the strategic analysis cache
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// LLM gateway with cost tracking
	gateway := llm.NewGatewayClient(llm.GatewayConfig{
		Endpoint:    cfg.LLM.Endpoint,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.PrimaryModel,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.GetTimeout(),
	}, log.Logger)
	costTracker := llm.NewCostTracker(
		decimal.NewFromFloat(cfg.LLM.RequestCeiling),
		decimal.NewFromFloat(cfg.LLM.DailyBudget),
		log.Logger)
	model := llm.NewTrackedClient(gateway, costTracker)

	// Marketplace adapters. Development runs on scripted adapters; real
	// adapter processes register over the same interface in production.
	adapters := marketplace.NewRegistry()
	syncConfigs := make(map[marketplace.Marketplace]inventory.MarketplaceConfig)
	for name, mc := range cfg.Marketplaces {
		if !mc.Enabled {
			continue
		}
		mp := marketplace.Marketplace(name)
		adapters.Register(marketplace.NewBreakerAdapter(marketplace.NewMockAdapter(mp), log.Logger))
		syncConfigs[mp] = inventory.MarketplaceConfig{
			SyncInterval: mc.GetSyncInterval(),
			BatchSize:    mc.BatchSize,
			RateLimit:    mc.RateLimit,
		}
		log.Info().Str("marketplace", name).Msg("Marketplace adapter registered")
	}

	// Inventory and orders
	store := inventory.NewStore()
	inventoryManager := inventory.NewManager(store, adapters, syncConfigs, log.Logger)
	rebalancer := inventory.NewRebalancer(store, adapters,
		inventory.Strategy(cfg.Inventory.RebalanceStrategy),
		time.Duration(cfg.Inventory.RebalanceInterval)*time.Minute,
		log.Logger)

	queue := orders.NewFulfillmentQueue(cfg.Orders.QueueCapacity)
	orderManager := orders.NewManager(adapters, queue, cfg.App.SellerID,
		time.Duration(cfg.Orders.IngestInterval)*time.Second, log.Logger)

	// Specialist agents
	prices := &storePrices{store: store}
	marketAgent := agents.NewMarketAgent(model, prices, log.Logger)
	contentAgent := agents.NewContentAgent(model, log.Logger)
	logisticsAgent := agents.NewLogisticsAgent(adapters, log.Logger)
	automationAgent := agents.NewAutomationAgent(marketAgent, prices, log.Logger)

	// Executive orchestrator. Strategic analysis coalesces live market
	// observations from the market agent into its business context.
	analyzer := executive.NewStrategicAnalyzer(model, rdb, cfg.LLM.GetCacheTTL(), log.Logger)
	analyzer.SetMarketIntelligence(marketAgent)
	for _, sku := range store.SKUs() {
		marketAgent.WatchProduct(sku, marketplace.Ebay)
	}
	exec := executive.New(analyzer, log.Logger)
	for _, entry := range []agent.RegistryEntry{
		{AgentID: "market_agent", Type: agent.TypeMarket, Status: agent.StatusActive, Capabilities: []string{"analysis", "pricing"}},
		{AgentID: "content_agent", Type: agent.TypeContent, Status: agent.StatusActive, Capabilities: []string{"generate", "optimize"}},
		{AgentID: "logistics_agent", Type: agent.TypeLogistics, Status: agent.StatusActive, Capabilities: []string{"shipping", "fulfillment"}},
		{AgentID: "automation_agent", Type: agent.TypeAutomation, Status: agent.StatusActive, Capabilities: []string{"repricing"}},
	} {
		entry.LastActive = time.Now().UTC()
		exec.RegisterAgent(entry)
	}

	// Decision pipeline and approval routing
	pipeline := decision.NewPipeline(decision.PipelineConfig{
		Publisher:        publisher,
		OfflineBufferCap: cfg.Pipeline.OfflineBufferCap,
	}, log.Logger)
	router := approval.NewRouter(approvalPolicies(cfg), pipeline, repo, log.Logger)

	// Analytics over the pipeline tracker and order manager
	engine := analytics.NewEngine(analytics.Config{
		WindowHours:       cfg.Analytics.WindowHours,
		PredictionHorizon: cfg.Analytics.PredictionHorizon,
		CorrelationWindow: cfg.Analytics.CorrelationWindow,
	}, pipeline.Tracker(), orderManager, log.Logger)

	// Alerting
	alertManager := alerts.NewManager(alerts.NewLogAlerter())
	alertManager.SetPolicy(
		time.Duration(cfg.Alerts.SuppressionMinutes)*time.Minute,
		cfg.Alerts.MaxPerCorrelation)
	if cfg.Alerts.TelegramToken != "" {
		telegram, err := alerts.NewTelegramAlerter(cfg.Alerts.TelegramToken, []int64{cfg.Alerts.TelegramChatID})
		if err != nil {
			log.Warn().Err(err).Msg("Telegram alerter unavailable")
		} else {
			alertManager.AddAlerter(telegram)
		}
	}
	alerts.SetDefaultManager(alertManager)
	alerting := alerts.NewAlertingSystem(alertManager, exec, time.Minute, log.Logger)

	// Long-running components
	rt := runtime.New(runtime.Components{
		Inventory:  inventoryManager,
		Rebalancer: rebalancer,
		Orders:     orderManager,
		Analytics:  engine,
		Alerting:   alerting,
	}, log.Logger)
	rt.StartAll(ctx)
	metricsServer.SetReady(true)

	// Scheduled repricing feeds the approval router
	automationAgent.Start(ctx, time.Hour, agents.RepricingRequest{
		SKUs:        store.SKUs(),
		Marketplace: marketplace.Ebay,
	}, func(ctx context.Context, resp *agent.Response) error {
		_, err := router.ProcessResponse(ctx, resp)
		return err
	})

	// Operational API
	apiServer := api.NewServer(api.Config{
		Host:       cfg.API.Host,
		Port:       cfg.API.Port,
		Decisions:  pipeline.Tracker(),
		Orders:     orderManager,
		Agents:     exec,
		Automation: automationAgent,
		Approvals:  router,
		Analytics:  engine,
		Inventory:  store,
		Specialists: map[string]api.SpecialistMessenger{
			marketAgent.AgentID():     marketAgent,
			contentAgent.AgentID():    contentAgent,
			logisticsAgent.AgentID():  logisticsAgent,
			automationAgent.AgentID(): automationAgent,
		},
	})
	apiErr := make(chan error, 1)
	go func() {
		if err := apiServer.Start(); err != nil {
			apiErr <- err
		}
	}()

	log.Info().
		Str("api", cfg.API.GetAPIAddr()).
		Int("metrics_port", cfg.Monitoring.PrometheusPort).
		Msg("FlipSync running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-apiErr:
		log.Error().Err(err).Msg("API server error")
	}

	log.Info().Msg("Initiating graceful shutdown")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping API server")
	}
	automationAgent.Stop()
	rt.StopAll()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping metrics server")
	}

	log.Info().Msg("FlipSync shutdown complete")
}

// approvalPolicies maps the configured thresholds onto the router's
// per-agent-type policy table, keeping defaults for types the config
// does not mention.
func approvalPolicies(cfg *config.Config) map[agent.Type]approval.Policy {
	policies := approval.DefaultPolicies()
	for name, th := range cfg.Approval.Thresholds {
		policies[agent.Type(name)] = approval.Policy{
			AutoApproveThreshold: th.AutoApprove,
			EscalationThreshold:  th.Escalation,
			HumanRequiredTypes:   th.HumanTypes,
		}
	}
	return policies
}

// storePrices serves agents from the inventory store. Price history is a
// single observation until listing-level history lands in the store.
type storePrices struct {
	store *inventory.Store
}

func (p *storePrices) CurrentPrice(ctx context.Context, sku string, m marketplace.Marketplace) (decimal.Decimal, error) {
	item, ok := p.store.Get(sku)
	if !ok {
		return decimal.Zero, fmt.Errorf("sku %s not found", sku)
	}
	return item.Price, nil
}

func (p *storePrices) PriceHistory(ctx context.Context, productQuery string, m marketplace.Marketplace) ([]float64, error) {
	item, ok := p.store.Get(productQuery)
	if !ok {
		return nil, fmt.Errorf("no price history for %s", productQuery)
	}
	price, _ := item.Price.Float64()
	return []float64{price}, nil
}
