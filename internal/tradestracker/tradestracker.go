// Package tradestracker keeps a per-market rolling window of public trades
// and answers max-volume and VWAP queries against it (spec §4.2).
package tradestracker

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
)

// query tags of the worker's control channel (spec §9: "typed message
// unions" — pause/max/vwap are all shaped the same way so one select can
// dispatch across them).
type queryKind int

const (
	queryMax queryKind = iota
	queryVWAP
	queryPause
)

type query struct {
	kind  queryKind
	since time.Time
	side  *domain.FillSide
	reply chan queryResult
}

type queryResult struct {
	max  float64
	vwap decimal.Decimal
	err  error
}

// Tracker is one market's rolling trade window.
type Tracker struct {
	pair   string
	gate   *gate.Gate
	delay  time.Duration
	logger *slog.Logger

	queries chan query
	ingest  chan domain.TradeEvent
}

// New builds a Tracker for pair, polling through g every delay.
func New(pair string, g *gate.Gate, delay time.Duration, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		pair:    pair,
		gate:    g,
		delay:   delay,
		logger:  logger,
		queries: make(chan query),
		ingest:  make(chan domain.TradeEvent, 256),
	}
}

// Run starts the updater and the worker and blocks until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	go t.runUpdater(ctx)
	t.runWorker(ctx)
}

// runUpdater pulls trades newer than its stored cursor every t.delay and
// hands them to the worker one at a time over the ingest channel.
func (t *Tracker) runUpdater(ctx context.Context) {
	var cursor string
	var retries int
	ticker := time.NewTicker(t.delay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		trades, err := gate.Do(ctx, t.gate, func(ctx context.Context, c exchange.Client) ([]domain.TradeEvent, error) {
			return c.Trades(ctx, t.pair, cursor)
		})
		if err != nil {
			t.logger.Warn("tradestracker: poll failed", slog.String("pair", t.pair), slog.Any("error", err))
			if !infra.Wait(ctx, retries) {
				return
			}
			retries++
			continue
		}
		retries = 0
		if len(trades) == 0 {
			continue
		}

		for _, tr := range trades {
			select {
			case t.ingest <- tr:
			case <-ctx.Done():
				return
			}
		}
		cursor = fmt.Sprintf("%d", trades[len(trades)-1].Ts.UnixNano())
	}
}

// runWorker multiplexes the control channel against the ingest buffer,
// folding each new trade into the front of the window under the §3
// coalescing rule, and supports the single-command pause described in
// §4.2 and §5: after a pause request, the very next control message is
// swallowed with no reply, then normal dispatch resumes.
func (t *Tracker) runWorker(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("tradestracker worker panicked, restarting", slog.Any("panic", r))
			go t.runWorker(ctx)
		}
	}()

	var window []domain.TradeEvent
	paused := false

	for {
		select {
		case <-ctx.Done():
			return
		case tr := <-t.ingest:
			window = foldFront(window, tr)
		case q := <-t.queries:
			if paused {
				paused = false
				continue
			}
			t.handleQuery(q, window)
			if q.kind == queryPause {
				paused = true
			}
		}
	}
}

func (t *Tracker) handleQuery(q query, window []domain.TradeEvent) {
	switch q.kind {
	case queryMax:
		var max float64
		for _, tr := range window {
			if tr.Volume > max {
				max = tr.Volume
			}
		}
		q.reply <- queryResult{max: max}
	case queryVWAP:
		var costSum, volSum decimal.Decimal
		for _, tr := range window {
			if q.side != nil && tr.Side != *q.side {
				continue
			}
			if !q.since.IsZero() && tr.Ts.Before(q.since) {
				continue
			}
			costSum = costSum.Add(tr.Cost)
			volSum = volSum.Add(decimal.NewFromFloat(tr.Volume))
		}
		if volSum.IsZero() {
			q.reply <- queryResult{err: fmt.Errorf("tradestracker: no trades in window for %s", t.pair)}
			return
		}
		q.reply <- queryResult{vwap: costSum.Div(volSum)}
	case queryPause:
		q.reply <- queryResult{}
	}
}

// foldFront prepends tr to window, coalescing it into the current front
// entry first if the §3 window rule applies (front is the most recent
// entry, tr is assumed newer still).
func foldFront(window []domain.TradeEvent, tr domain.TradeEvent) []domain.TradeEvent {
	if len(window) == 0 {
		return []domain.TradeEvent{tr}
	}
	front := window[0]
	if front.Coalescable(tr) {
		window[0] = front.CoalesceWith(tr)
		return window
	}
	return append([]domain.TradeEvent{tr}, window...)
}

// Max returns the largest trade volume currently in the window.
func (t *Tracker) Max(ctx context.Context) (float64, error) {
	reply := make(chan queryResult, 1)
	select {
	case t.queries <- query{kind: queryMax, reply: reply}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case res := <-reply:
		return res.max, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// VWAP returns the volume-weighted average price over trades no older
// than since (zero value for "no lower bound") and, if side is non-nil,
// matching that side. It fails rather than returning NaN if no trade
// matches (spec §4.2).
func (t *Tracker) VWAP(ctx context.Context, since time.Time, side *domain.FillSide) (decimal.Decimal, error) {
	reply := make(chan queryResult, 1)
	q := query{kind: queryVWAP, since: since, side: side, reply: reply}
	select {
	case t.queries <- q:
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

// Pause swallows the next control message with no reply, per the §5
// quiescence contract. The call to Pause itself returns immediately once
// the worker has registered the request.
func (t *Tracker) Pause(ctx context.Context) error {
	reply := make(chan queryResult, 1)
	select {
	case t.queries <- query{kind: queryPause, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
