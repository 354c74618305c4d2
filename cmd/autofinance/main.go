// The autofinance binary runs one AutoFinance service, or the whole
// federation with "all". The service name selects the port from the standard
// port map.
//
//	autofinance market
//	autofinance trader-supervisor
//	autofinance all
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/autofinance/autofinance/internal/alerts"
	"github.com/autofinance/autofinance/internal/analysis/fundamental"
	"github.com/autofinance/autofinance/internal/analysis/macro"
	"github.com/autofinance/autofinance/internal/analysis/news"
	"github.com/autofinance/autofinance/internal/analysis/technical"
	"github.com/autofinance/autofinance/internal/analysis/volatility"
	"github.com/autofinance/autofinance/internal/audit"
	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/db"
	"github.com/autofinance/autofinance/internal/events"
	"github.com/autofinance/autofinance/internal/market"
	"github.com/autofinance/autofinance/internal/notifications"
	"github.com/autofinance/autofinance/internal/portfolio"
	"github.com/autofinance/autofinance/internal/risk"
	"github.com/autofinance/autofinance/internal/rpc"
	"github.com/autofinance/autofinance/internal/simulation"
	"github.com/autofinance/autofinance/internal/supervisor"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	selector := os.Args[1]

	cfg, err := config.Load(os.Getenv("AUTOFINANCE_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	log := config.NewLogger("main")

	var names []string
	if selector == "all" {
		names = config.ServiceNames()
	} else {
		if config.GetServicePort(selector) == 0 {
			fmt.Fprintf(os.Stderr, "unknown service %q\n\n", selector)
			usage()
			os.Exit(1)
		}
		names = []string{selector}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.LoadSecretsFromVault(ctx, cfg, config.GetVaultConfigFromEnv()); err != nil {
		log.Warn().Err(err).Msg("Vault secrets unavailable, continuing with environment")
	}

	deps := newSharedDeps(cfg, log)
	defer deps.close()

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		srv, err := buildServer(gctx, name, cfg, deps)
		if err != nil {
			log.Error().Err(err).Str("service", name).Msg("Failed to build service")
			os.Exit(1)
		}
		g.Go(func() error {
			return srv.Start(gctx)
		})
	}

	log.Info().Strs("services", names).Str("version", config.Version).Msg("AutoFinance starting")
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Service exited")
		os.Exit(1)
	}
	log.Info().Msg("AutoFinance stopped")
}

func usage() {
	names := make([]string, 0, len(config.ServicePorts))
	for name := range config.ServicePorts {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(os.Stderr, "usage: autofinance <service>\n\nservices:\n  all\n  %s\n",
		strings.Join(names, "\n  "))
}

// sharedDeps holds infrastructure shared between services when several run
// in one process. Everything is built lazily so single-service runs only pay
// for what they use.
type sharedDeps struct {
	cfg *config.Config
	log zerolog.Logger

	redisClient *redis.Client
	bus         *events.Bus
	busTried    bool
	history     *market.HistorySource
	pools       []*rpc.Pool
}

func newSharedDeps(cfg *config.Config, log zerolog.Logger) *sharedDeps {
	return &sharedDeps{cfg: cfg, log: log}
}

// redis returns the shared Redis client, or nil when no host is configured.
// The market service degrades to uncached quotes without it.
func (d *sharedDeps) redis() *redis.Client {
	if d.cfg.Redis.Host == "" {
		return nil
	}
	if d.redisClient == nil {
		d.redisClient = redis.NewClient(&redis.Options{
			Addr:     d.cfg.Redis.GetRedisAddr(),
			Password: d.cfg.Redis.Password,
			DB:       d.cfg.Redis.DB,
		})
	}
	return d.redisClient
}

// eventBus returns the shared NATS bus, or nil when NATS is disabled or
// unreachable. Publishers treat a nil bus as a no-op.
func (d *sharedDeps) eventBus() *events.Bus {
	if !d.cfg.NATS.Enabled || d.busTried {
		return d.bus
	}
	d.busTried = true
	bus, err := events.Connect(d.cfg.NATS.URL)
	if err != nil {
		d.log.Warn().Err(err).Str("url", d.cfg.NATS.URL).Msg("NATS unavailable, events disabled")
		return nil
	}
	d.bus = bus
	return d.bus
}

// priceHistory returns the shared daily-closes source over the provider chain
func (d *sharedDeps) priceHistory() *market.HistorySource {
	if d.history == nil {
		chart := market.NewChartProvider(d.cfg.Market.ChartBaseURL, d.cfg.Market.RequestsPerMinute)
		binance := market.NewBinanceProvider(d.cfg.Market.BinanceAPIKey, d.cfg.Market.BinanceSecretKey)
		d.history = market.NewHistorySource(market.NewFallbackProvider(chart, binance))
	}
	return d.history
}

// peerCaller creates a client pool owned by the named service
func (d *sharedDeps) peerCaller(owner string) rpc.Caller {
	host := d.cfg.Peers.Host
	if host == "" {
		host = "localhost"
	}
	pool := rpc.NewPool(owner, host)
	d.pools = append(d.pools, pool)
	return pool
}

// auditStore connects the compliance write-behind, or returns nil so the
// service runs in-memory when PostgreSQL is not configured or unreachable.
func (d *sharedDeps) auditStore(ctx context.Context) audit.DBExecutor {
	if d.cfg.Database.Host == "" {
		return nil
	}
	pool, err := db.Connect(ctx, d.cfg.Database)
	if err != nil {
		d.log.Warn().Err(err).Msg("Audit database unavailable, running in-memory")
		return nil
	}
	return pool
}

func (d *sharedDeps) close() {
	for _, p := range d.pools {
		p.Close()
	}
	if d.bus != nil {
		d.bus.Close()
	}
	if d.redisClient != nil {
		_ = d.redisClient.Close()
	}
}

// buildServer wires one service with its dependencies
func buildServer(ctx context.Context, name string, cfg *config.Config, deps *sharedDeps) (*rpc.Server, error) {
	switch name {
	case "market":
		return market.NewServer(cfg, deps.redis()), nil
	case "risk":
		return risk.NewServer(cfg), nil
	case "execution":
		return portfolio.NewServer(cfg, deps.eventBus()), nil
	case "compliance":
		return audit.NewServer(deps.auditStore(ctx)), nil
	case "technical":
		return technical.NewServer(deps.priceHistory()), nil
	case "fundamental":
		return fundamental.NewServer(), nil
	case "macro":
		return macro.NewServer(), nil
	case "news":
		return news.NewServer(cfg), nil
	case "portfolio-analytics":
		return portfolio.NewAnalyticsServer(deps.peerCaller(name)), nil
	case "volatility":
		return volatility.NewServer(deps.priceHistory()), nil
	case "alert-engine":
		return alerts.NewServer(cfg), nil
	case "simulation":
		return simulation.NewServer(deps.priceHistory()), nil
	case "notification":
		return notifications.NewServer(ctx, cfg, deps.peerCaller(name), deps.eventBus()), nil
	case "trader-supervisor":
		return supervisor.NewTraderServer(deps.peerCaller(name)), nil
	case "investor-supervisor":
		return supervisor.NewInvestorServer(deps.peerCaller(name)), nil
	}
	return nil, fmt.Errorf("unknown service %q", name)
}
