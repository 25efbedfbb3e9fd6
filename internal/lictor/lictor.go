// Package lictor implements the ExecutionTracker (spec §4.4, internal
// nickname "lictor" — it carries the record of the agent's own fills):
// a rolling, paginated fetch of the account's realized executions since a
// monotonic cursor.
package lictor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"spotmaker/internal/domain"
	"spotmaker/internal/exchange"
	"spotmaker/internal/gate"
	"spotmaker/internal/infra"
)

// Tracker is one pair's execution history since a rolling cursor.
type Tracker struct {
	pair   string
	gate   *gate.Gate
	delay  time.Duration
	logger *slog.Logger

	query  chan chan []domain.Execution
	ingest chan domain.Execution
}

// New builds a Tracker for pair, paginating fills through g every delay
// between pages.
func New(pair string, g *gate.Gate, delay time.Duration, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		pair:   pair,
		gate:   g,
		delay:  delay,
		logger: logger,
		query:  make(chan chan []domain.Execution),
		ingest: make(chan domain.Execution, 256),
	}
}

// Run starts the updater and worker and blocks until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	go t.runUpdater(ctx)
	t.runWorker(ctx)
}

// runUpdater implements spec §4.4's exact pagination protocol: fetch a
// chunk bounded by [since, until), where until is pinned to the txid of
// the chunk's first page so later-arriving fills don't shift pages out
// from under the ofs-based walk; verify every page reports the same
// total count; sort the chunk ascending by timestamp before handing it to
// the worker one trade at a time.
func (t *Tracker) runUpdater(ctx context.Context) {
	var since string
	var retries int
	ticker := time.NewTicker(t.delay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := t.fetchChunk(ctx, since, &since); err != nil {
			t.logger.Warn("lictor: chunk fetch failed", slog.String("pair", t.pair), slog.Any("error", err))
			if !infra.Wait(ctx, retries) {
				return
			}
			retries++
			continue
		}
		retries = 0
	}
}

func (t *Tracker) fetchChunk(ctx context.Context, since string, sinceOut *string) error {
	page, err := gate.Do(ctx, t.gate, func(ctx context.Context, c exchange.Client) (pageResult, error) {
		p, n, err := c.TradesHistory(ctx, t.pair, since, "", 0)
		return pageResult{page: p, count: n}, err
	})
	if err != nil {
		return err
	}
	count := page.count
	if count == 0 {
		return nil
	}

	var untilTxID string
	if len(page.page) > 0 {
		untilTxID = page.page[0].TxID
	}

	accum := append([]domain.Execution(nil), page.page...)
	for len(accum) < count {
		select {
		case <-time.After(t.delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		next, err := gate.Do(ctx, t.gate, func(ctx context.Context, c exchange.Client) (pageResult, error) {
			p, n, err := c.TradesHistory(ctx, t.pair, since, untilTxID, len(accum))
			return pageResult{page: p, count: n}, err
		})
		if err != nil {
			return err
		}
		if next.count != count {
			return fmt.Errorf("lictor: page count drifted mid-chunk: first saw %d, now %d", count, next.count)
		}
		if len(next.page) == 0 {
			break
		}
		accum = append(accum, next.page...)
	}

	sort.Slice(accum, func(i, j int) bool { return accum[i].Ts.Before(accum[j].Ts) })

	for _, ex := range accum {
		select {
		case t.ingest <- ex:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if len(accum) > 0 {
		*sinceOut = accum[len(accum)-1].TxID
	}
	return nil
}

type pageResult struct {
	page  []domain.Execution
	count int
}

// runWorker appends each ingested trade to the front of its list; the
// list is therefore newest-first.
func (t *Tracker) runWorker(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("lictor worker panicked, restarting", slog.Any("panic", r))
			go t.runWorker(ctx)
		}
	}()

	var fills []domain.Execution

	for {
		select {
		case <-ctx.Done():
			return
		case ex := <-t.ingest:
			fills = append([]domain.Execution{ex}, fills...)
		case reply := <-t.query:
			out := make([]domain.Execution, len(fills))
			copy(out, fills)
			reply <- out
		}
	}
}

// Executions returns the tracker's current fill vector, newest first.
func (t *Tracker) Executions(ctx context.Context) ([]domain.Execution, error) {
	reply := make(chan []domain.Execution, 1)
	select {
	case t.query <- reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case out := <-reply:
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
