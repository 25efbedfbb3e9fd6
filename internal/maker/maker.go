// Package maker implements the Maker actor (spec §4.7): the periodic
// round that snapshots the other trackers, sizes and cleans the book,
// generates bid/ask ladders, and reconciles them against what is
// currently resting on the exchange.
package maker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"spotmaker/internal/account"
	"spotmaker/internal/booktracker"
	"spotmaker/internal/domain"
	"spotmaker/internal/exchange"
	"spotmaker/internal/gate"
	"spotmaker/internal/ope"
	"spotmaker/internal/tradestracker"
)

// vwapLookback is the step 1b window ("VWAP over the last 4 hours") the
// round's base/quote conversion rate is drawn from.
const vwapLookback = 4 * time.Hour

// Config bundles one market's round tunables.
type Config struct {
	ResilienceFactor            float64
	FundFactor                  float64
	MaxOrders                   int
	PlaceEqualPriceBeforeCancel bool
}

// Maker runs the periodic round for one market. It owns no mutable state
// other than its own view of what is resting on the exchange; every
// other piece of state is read fresh from its dependent actors each
// round (spec §5: "consumers that need a consistent snapshot must read
// each source exactly once per cycle — this is what the Maker round
// does").
type Maker struct {
	market domain.Market

	gate    *gate.Gate
	trades  *tradestracker.Tracker
	book    *booktracker.Tracker
	account *account.Tracker
	ope     *ope.Engine

	strategy SizingStrategy
	cfg      Config
	logger   *slog.Logger

	control chan domain.ControlMessage
}

// New builds a Maker for market, wired to its already-running dependent
// actors.
func New(market domain.Market, g *gate.Gate, trades *tradestracker.Tracker, book *booktracker.Tracker, acct *account.Tracker, engine *ope.Engine, strategy SizingStrategy, cfg Config, logger *slog.Logger) *Maker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Maker{
		market:   market,
		gate:     g,
		trades:   trades,
		book:     book,
		account:  acct,
		ope:      engine,
		strategy: strategy,
		cfg:      cfg,
		logger:   logger,
		control:  make(chan domain.ControlMessage),
	}
}

// Control returns the channel an operator sends pause/stream directives
// on (spec §6: "operators control the running process by sending control
// messages to its Maker").
func (m *Maker) Control() chan<- domain.ControlMessage {
	return m.control
}

// Run resyncs against whatever is currently resting on the exchange, then
// runs one round every interval until ctx is cancelled.
func (m *Maker) Run(ctx context.Context, interval time.Duration) {
	liveBids, liveAsks := m.resyncLiveOrders(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastSnapshot domain.RoundSnapshot
	paused := false

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-m.control:
			switch msg.Kind {
			case domain.ControlPause:
				paused = true
			case domain.ControlResume:
				paused = false
			}
			m.handleControl(msg, lastSnapshot)
		case <-ticker.C:
			if paused {
				continue
			}
			snap, nb, na, err := m.runRound(ctx, liveBids, liveAsks)
			if err != nil {
				m.logger.Warn("maker: round skipped", slog.String("pair", m.market.Symbol), slog.Any("error", err))
				continue
			}
			liveBids, liveAsks = nb, na
			lastSnapshot = snap
		}
	}
}

func (m *Maker) handleControl(msg domain.ControlMessage, snap domain.RoundSnapshot) {
	switch msg.Kind {
	case domain.ControlStream:
		if msg.Snapshot != nil {
			select {
			case msg.Snapshot <- snap:
			default:
			}
		}
	}
	if msg.Reply != nil {
		close(msg.Reply)
	}
}

// resyncLiveOrders rebuilds the Maker's view of its own resting orders
// from the exchange on start (spec §1: "all state is rebuilt from the
// exchange on start"). LiveOrder carries no side tag, so orders are
// classified against the first book snapshot's midpoint: at or below the
// midpoint is a resting bid, above it a resting ask.
func (m *Maker) resyncLiveOrders(ctx context.Context) (bids, asks []domain.LiveOrder) {
	live, err := gate.Do(ctx, m.gate, func(ctx context.Context, c exchange.Client) ([]domain.LiveOrder, error) {
		return c.OpenOrders(ctx, m.market.Symbol)
	})
	if err != nil || len(live) == 0 {
		return nil, nil
	}

	bookBids, errB := m.book.Bids(ctx)
	bookAsks, errA := m.book.Asks(ctx)
	if errB != nil || errA != nil || len(bookBids) == 0 || len(bookAsks) == 0 {
		m.logger.Warn("maker: cannot classify resting orders without a book snapshot, starting with an empty view", slog.String("pair", m.market.Symbol))
		return nil, nil
	}
	mid := (bookBids[0].Price + bookAsks[0].Price) / 2

	for _, o := range live {
		if o.Price <= mid {
			bids = append(bids, o)
		} else {
			asks = append(asks, o)
		}
	}
	return bids, asks
}

// runRound executes spec §4.7 steps 1-6 once.
func (m *Maker) runRound(ctx context.Context, liveBids, liveAsks []domain.LiveOrder) (domain.RoundSnapshot, []domain.LiveOrder, []domain.LiveOrder, error) {
	snap := domain.RoundSnapshot{Pair: m.market.Symbol, Ts: time.Now(), Decimals: m.market.PriceDecimals}

	// Step 1: snapshot.
	maxTrade, err := m.trades.Max(ctx)
	if err != nil {
		return snap, liveBids, liveAsks, fmt.Errorf("maker: max trade: %w", err)
	}

	rate, err := m.trades.VWAP(ctx, time.Now().Add(-vwapLookback), nil)
	if err != nil {
		return snap, liveBids, liveAsks, fmt.Errorf("maker: vwap rate: %w", err)
	}

	bids, err := m.book.Bids(ctx)
	if err != nil {
		return snap, liveBids, liveAsks, fmt.Errorf("maker: bids: %w", err)
	}
	asks, err := m.book.Asks(ctx)
	if err != nil {
		return snap, liveBids, liveAsks, fmt.Errorf("maker: asks: %w", err)
	}

	base, err := m.account.Balance(ctx, m.market.BaseAsset)
	if err != nil {
		return snap, liveBids, liveAsks, fmt.Errorf("maker: base balance: %w", err)
	}
	quote, err := m.account.Balance(ctx, m.market.QuoteAsset)
	if err != nil {
		return snap, liveBids, liveAsks, fmt.Errorf("maker: quote balance: %w", err)
	}

	buyVWAP, _ := m.account.VWAP(ctx, domain.Buy, m.market.Symbol)
	sellVWAP, _ := m.account.VWAP(ctx, domain.Sell, m.market.Symbol)

	snap.Bids, snap.Asks = bids, asks
	snap.VWAP = rate
	snap.Balances = map[string]domain.Balance{
		m.market.BaseAsset:  {Symbol: m.market.BaseAsset, Amount: base},
		m.market.QuoteAsset: {Symbol: m.market.QuoteAsset, Amount: quote},
	}
	snap.Live = append(append([]domain.LiveOrder{}, liveBids...), liveAsks...)

	// Step 2: sizing.
	rateFloat, _ := rate.Float64()
	sz := computeSizing(sizingInputs{
		MaxRecentTrade:   maxTrade,
		Rate:             rateFloat,
		Base:             base,
		Quote:            quote,
		ResilienceFactor: m.cfg.ResilienceFactor,
		FundFactor:       m.cfg.FundFactor,
		TargetingFactor:  m.strategy.TargetingFactor(rate),
	})

	snap.Inventory = domain.InventoryPosition{
		Pair:          m.market.Symbol,
		Qty:           base,
		AvgEntryPrice: mustFloat(buyVWAP),
		RealizedPnL:   (mustFloat(sellVWAP) - mustFloat(buyVWAP)) * sz.Invested * sz.Total,
	}

	// Step 3: book cleaning.
	otherBids := ignoreMine(bids, liveOrdersToLevels(liveBids))
	otherAsks := ignoreMine(asks, liveOrdersToLevels(liveAsks))

	// Step 4: spread crossing.
	otherBids, otherAsks = crossSpread(otherBids, otherAsks, m.market.FeePct)

	// Step 5: ladder generation.
	desiredBids := dumbotOneSide(otherBids, sz.Resilience, sz.DeployQuote, 1, m.cfg.MaxOrders, func(a, b domain.DesiredOrder) bool {
		return a.Price > b.Price
	})
	desiredAsks := dumbotOneSide(otherAsks, sz.Resilience, sz.DeployBase, -1, m.cfg.MaxOrders, func(a, b domain.DesiredOrder) bool {
		return a.Price < b.Price
	})
	snap.Desired = append(append([]domain.DesiredOrder{}, desiredBids...), desiredAsks...)

	// Step 6: reconciliation.
	newBids := reconcileSide(ctx, m.ope, m.market.Symbol, domain.Bid, desiredBids, liveBids, m.market.PriceDecimals, m.cfg.PlaceEqualPriceBeforeCancel, m.account, m.market.BaseAsset, m.market.QuoteAsset, m.logger)
	newAsks := reconcileSide(ctx, m.ope, m.market.Symbol, domain.Ask, desiredAsks, liveAsks, m.market.PriceDecimals, m.cfg.PlaceEqualPriceBeforeCancel, m.account, m.market.BaseAsset, m.market.QuoteAsset, m.logger)

	return snap, newBids, newAsks, nil
}

func liveOrdersToLevels(live []domain.LiveOrder) []domain.BookLevel {
	out := make([]domain.BookLevel, 0, len(live))
	for _, o := range live {
		out = append(out, domain.BookLevel{Price: o.Price, Volume: o.Volume})
	}
	return out
}

func mustFloat(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}
