// Package account implements the AccountTracker (spec §4.5): it owns the
// balance ledger, a lictor (ExecutionTracker) handle, and an OPE handle,
// answering balance and realized-VWAP queries.
package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"spotmaker/internal/domain"
	"spotmaker/internal/exchange"
	"spotmaker/internal/gate"
	"spotmaker/internal/infra"
	"spotmaker/internal/lictor"
	"spotmaker/internal/ope"
)

type queryKind int

const (
	queryBalance queryKind = iota
	queryVWAP
	queryReserve
	queryRelease
)

type query struct {
	kind   queryKind
	asset  string
	side   domain.FillSide
	pair   string
	amount float64
	reply  chan queryResult
}

type queryResult struct {
	amount float64
	vwap   decimal.Decimal
	err    error
}

// Tracker owns the account's balances and its two dependent actors. Per
// §9's "cyclic supervision" resolution, AccountTracker, ExecutionTracker,
// and OrderPlacementEngine are siblings under the Maker, each holding a
// shared Gate handle rather than nesting ownership — Lictor and OPE are
// exposed here as plain fields so the Maker can reach them directly too.
type Tracker struct {
	Lictor *lictor.Tracker
	OPE    *ope.Engine

	gate   *gate.Gate
	delay  time.Duration
	logger *slog.Logger

	books   *domain.BalanceBook
	query   chan query
	refresh chan map[string]float64
}

// New builds a Tracker polling balances through g every delay, backed by
// lict for realized-fill VWAP and ope for placement (both already wired
// to the same Gate by the caller).
func New(g *gate.Gate, lict *lictor.Tracker, engine *ope.Engine, delay time.Duration, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		Lictor:  lict,
		OPE:     engine,
		gate:    g,
		delay:   delay,
		logger:  logger,
		books:   domain.NewBalanceBook(),
		query:   make(chan query),
		refresh: make(chan map[string]float64),
	}
}

// Run starts the updater and worker and blocks until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	go t.runUpdater(ctx)
	t.runWorker(ctx)
}

func (t *Tracker) runUpdater(ctx context.Context) {
	var retries int
	ticker := time.NewTicker(t.delay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		balances, err := gate.Do(ctx, t.gate, func(ctx context.Context, c exchange.Client) (map[string]float64, error) {
			return c.Balance(ctx)
		})
		if err != nil {
			t.logger.Warn("account: balance poll failed", slog.Any("error", err))
			if !infra.Wait(ctx, retries) {
				return
			}
			retries++
			continue
		}
		retries = 0

		select {
		case t.refresh <- balances:
		case <-ctx.Done():
			return
		}
	}
}

func (t *Tracker) runWorker(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("account worker panicked, restarting", slog.Any("panic", r))
			go t.runWorker(ctx)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case balances := <-t.refresh:
			for asset, amount := range balances {
				t.books.Get(asset).SetAmount(amount)
			}
		case q := <-t.query:
			t.handleQuery(ctx, q)
		}
	}
}

func (t *Tracker) handleQuery(ctx context.Context, q query) {
	switch q.kind {
	case queryBalance:
		q.reply <- queryResult{amount: t.books.Get(q.asset).Available()}
	case queryVWAP:
		fills, err := t.Lictor.Executions(ctx)
		if err != nil {
			q.reply <- queryResult{err: err}
			return
		}
		var costSum, volSum decimal.Decimal
		for _, ex := range fills {
			if ex.Pair != q.pair || ex.Side != q.side {
				continue
			}
			costSum = costSum.Add(ex.Cost)
			volSum = volSum.Add(decimal.NewFromFloat(ex.Volume))
		}
		if volSum.IsZero() {
			q.reply <- queryResult{err: fmt.Errorf("account: no realized %s fills for %s", q.side, q.pair)}
			return
		}
		q.reply <- queryResult{vwap: costSum.Div(volSum)}
	case queryReserve:
		t.books.Get(q.asset).Reserve(q.amount, 0)
		q.reply <- queryResult{}
	case queryRelease:
		t.books.Get(q.asset).Release(q.amount, 0)
		q.reply <- queryResult{}
	}
}

// Balance returns the available amount of asset. Returns 0 for an asset
// the tracker has never seen (spec §4.5).
func (t *Tracker) Balance(ctx context.Context, asset string) (float64, error) {
	reply := make(chan queryResult, 1)
	q := query{kind: queryBalance, asset: asset, reply: reply}
	select {
	case t.query <- q:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case res := <-reply:
		return res.amount, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// VWAP returns the realized volume-weighted average price for fills on
// pair matching side, folded over the lictor's execution vector.
func (t *Tracker) VWAP(ctx context.Context, side domain.FillSide, pair string) (decimal.Decimal, error) {
	reply := make(chan queryResult, 1)
	q := query{kind: queryVWAP, side: side, pair: pair, reply: reply}
	select {
	case t.query <- q:
	case <-ctx.Done():
		return decimal.Zero, ctx.Err()
	}
	select {
	case res := <-reply:
		return res.vwap, res.err
	case <-ctx.Done():
		return decimal.Zero, ctx.Err()
	}
}

// Reserve earmarks amount of asset against an in-flight placement, so a
// concurrent sizing calculation doesn't double-spend the same funds
// before the exchange confirms the order (§9 supplemental feature: the
// available/total balance distinction the domain.Balance type already
// carries). reconcile.go's reconcileSide calls this after every
// successful AddOrder, against whichever asset that side's allocation is
// denominated in.
func (t *Tracker) Reserve(ctx context.Context, asset string, amount float64) error {
	return t.send(ctx, query{kind: queryReserve, asset: asset, amount: amount})
}

// Release undoes a prior Reserve once the reserving order has been
// cancelled. reconcile.go's reconcileSide calls this after every
// successful CancelOrder. A fill does not call Release: the reservation
// on a filled order lingers until process restart, when the balance poll
// and a fresh Reserve/Release cycle around it catch the ledger back up to
// reality.
func (t *Tracker) Release(ctx context.Context, asset string, amount float64) error {
	return t.send(ctx, query{kind: queryRelease, asset: asset, amount: amount})
}

func (t *Tracker) send(ctx context.Context, q query) error {
	reply := make(chan queryResult, 1)
	q.reply = reply
	select {
	case t.query <- q:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case res := <-reply:
		return res.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
