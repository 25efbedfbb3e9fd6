package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"spotmaker/internal/account"
	"spotmaker/internal/booktracker"
	"spotmaker/internal/config"
	"spotmaker/internal/domain"
	"spotmaker/internal/exchange"
	"spotmaker/internal/gate"
	"spotmaker/internal/lictor"
	"spotmaker/internal/maker"
	"spotmaker/internal/ope"
	"spotmaker/internal/tradestracker"
	"spotmaker/pkg/quant"
)

func main() {
	cfg, err := config.Load(config.ResolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging.Level)
	slog.SetDefault(logger)

	config.PrintBanner(cfg)

	workDir := config.WorkspaceDir()
	if err := config.EnsureDir(workDir); err != nil {
		logger.Error("failed to prepare workspace dir", slog.Any("error", err))
		os.Exit(1)
	}
	unlock, err := config.CreateLockFile(workDir)
	if err != nil {
		logger.Error("failed to acquire instance lock", slog.Any("error", err))
		os.Exit(1)
	}
	defer unlock()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, keySlots, err := buildClient(cfg, logger)
	if err != nil {
		logger.Error("failed to build exchange client", slog.Any("error", err))
		os.Exit(1)
	}

	g := gate.New(client, gate.Config{
		RequestsPerSec:  float64(cfg.Exchange.RequestsPerSec),
		Burst:           cfg.Exchange.Burst,
		BreakerFailures: cfg.Exchange.BreakerFailures,
		KeySlots:        keySlots,
	}, logger)
	go g.Run(ctx)

	engine := ope.New(g, logger)

	for _, pc := range cfg.Pairs {
		market := domain.Market{
			Symbol:        pc.Symbol,
			PriceDecimals: pc.PriceDecimals,
			BaseAsset:     pc.BaseAsset,
			QuoteAsset:    pc.QuoteAsset,
			FeePct:        pc.FeePct,
		}

		const pollDelay = 2 * time.Second

		trades := tradestracker.New(market.Symbol, g, pollDelay, logger)
		go trades.Run(ctx)

		book := booktracker.New(market.Symbol, cfg.Maker.MaxOrders*2, g, pollDelay, logger)
		go book.Run(ctx)

		lict := lictor.New(market.Symbol, g, pollDelay, logger)
		go lict.Run(ctx)

		acc := account.New(g, lict, engine, pollDelay, logger)
		go acc.Run(ctx)

		strategy := buildStrategy(cfg)

		m := maker.New(market, g, trades, book, acc, engine, strategy, maker.Config{
			ResilienceFactor:            cfg.Maker.ResilienceFactor,
			FundFactor:                  cfg.Maker.FundFactor,
			MaxOrders:                   cfg.Maker.MaxOrders,
			PlaceEqualPriceBeforeCancel: *cfg.Maker.PlaceEqualPriceBeforeCancel,
		}, logger)

		go m.Run(ctx, time.Duration(cfg.Maker.RoundIntervalMS)*time.Millisecond)

		logger.Info("maker started", slog.String("pair", market.Symbol))
	}

	logger.Info("spotmaker running, press ctrl+c to stop")
	<-ctx.Done()
	logger.Info("shutting down")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func buildStrategy(cfg *config.Config) maker.SizingStrategy {
	switch cfg.Maker.SizingStrategy {
	case "volatility":
		return maker.NewVolatilityTargetingStrategy(cfg.Maker.TargetingFactor, cfg.Maker.VolatilityWindow)
	default:
		return maker.StaticStrategy{Factor: cfg.Maker.TargetingFactor}
	}
}

// buildClient dispatches on trading.mode the way the teacher's
// execution.ExecutionFactory does: paper mode never touches the network,
// demo and real both sign against the live REST surface, and real mode
// is gated behind an explicit environment confirmation so a misconfigured
// deploy can't silently trade with real funds.
func buildClient(cfg *config.Config, logger *slog.Logger) (exchange.Client, []config.KeySlot, error) {
	mode := strings.ToLower(cfg.Trading.Mode)

	switch mode {
	case "", "paper":
		client, err := buildPaperClient(cfg)
		return client, nil, err

	case "demo", "real":
		if mode == "real" && os.Getenv("CONFIRM_REAL_MONEY") != "true" {
			return nil, nil, fmt.Errorf("real trading requires the CONFIRM_REAL_MONEY=true environment variable")
		}

		secretsPath := fmt.Sprintf("secrets/%s.yaml", mode)
		secrets, err := config.LoadSecrets(secretsPath)
		if err != nil {
			return nil, nil, err
		}
		slot := secrets.KeySlots[0]
		signer := exchange.NewSigner(slot.APIKey, slot.APISecret, slot.Passphrase)

		logger.Warn("connecting to live exchange", slog.String("mode", mode))
		return exchange.NewRESTClient(cfg.Exchange.RestURL, signer), secrets.KeySlots, nil

	default:
		return nil, nil, fmt.Errorf("unknown trading.mode %q", cfg.Trading.Mode)
	}
}

func buildPaperClient(cfg *config.Config) (exchange.Client, error) {
	pc := exchange.NewPaperClient(cfg.Paper.InitialBalances)

	for _, p := range cfg.Pairs {
		market := domain.Market{
			Symbol:        p.Symbol,
			PriceDecimals: p.PriceDecimals,
			BaseAsset:     p.BaseAsset,
			QuoteAsset:    p.QuoteAsset,
			FeePct:        p.FeePct,
		}
		pc.AddMarket(market)

		midStr, ok := cfg.Paper.InitialMids[p.Symbol]
		if !ok {
			continue
		}
		mid, err := quant.ParsePriceTick(midStr, p.PriceDecimals)
		if err != nil {
			return nil, fmt.Errorf("config: paper.initial_mids[%s]: %w", p.Symbol, err)
		}
		pc.SetMid(p.Symbol, mid)
	}

	return pc, nil
}
