// Package booktracker publishes a snapshot-on-demand view of one market's
// order book (spec §4.3): an updater polls the depth endpoint, a worker
// multiplexes reads against a control channel.
package booktracker

import (
	"context"
	"log/slog"
	"time"

	"spotmaker/internal/domain"
	"spotmaker/internal/exchange"
	"spotmaker/internal/gate"
	"spotmaker/internal/infra"
)

// Tracker is one market's top-of-book view.
type Tracker struct {
	pair      string
	gate      *gate.Gate
	depth     int
	delay     time.Duration
	logger    *slog.Logger

	refresh chan bookSides // updater -> worker
	control chan controlMsg
	bidsOut chan []domain.BookLevel
	asksOut chan []domain.BookLevel
}

type bookSides struct {
	bids, asks []domain.BookLevel
}

type controlKind int

const (
	controlPause controlKind = iota
)

type controlMsg struct {
	kind controlKind
}

// New builds a Tracker for pair, polling depth (to a book of `depth`
// levels per side) through g every delay.
func New(pair string, depth int, g *gate.Gate, delay time.Duration, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		pair:    pair,
		gate:    g,
		depth:   depth,
		delay:   delay,
		logger:  logger,
		refresh: make(chan bookSides),
		control: make(chan controlMsg),
		bidsOut: make(chan []domain.BookLevel),
		asksOut: make(chan []domain.BookLevel),
	}
}

// Run starts the updater and the worker and blocks until ctx is cancelled.
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

		sides, err := gate.Do(ctx, t.gate, func(ctx context.Context, c exchange.Client) ([2][]domain.BookLevel, error) {
			b, a, err := c.Depth(ctx, t.pair, t.depth)
			return [2][]domain.BookLevel{b, a}, err
		})
		if err != nil {
			t.logger.Warn("booktracker: poll failed", slog.String("pair", t.pair), slog.Any("error", err))
			if !infra.Wait(ctx, retries) {
				return
			}
			retries++
			continue
		}
		retries = 0

		select {
		case t.refresh <- bookSides{bids: sides[0], asks: sides[1]}:
		case <-ctx.Done():
			return
		}
	}
}

// runWorker multiplexes the control channel with *sends* on bidsOut and
// asksOut: whoever is ready to receive gets served, giving callers a
// snapshot-on-demand with no copy beyond the slice header (spec §4.3).
func (t *Tracker) runWorker(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("booktracker worker panicked, restarting", slog.Any("panic", r))
			go t.runWorker(ctx)
		}
	}()

	var bids, asks []domain.BookLevel
	paused := false

	for {
		if paused {
			// Suspended: the updater may still refresh state in the
			// background, but no read is served until the next control
			// message arrives (which is itself swallowed, per §5).
			select {
			case <-ctx.Done():
				return
			case sides := <-t.refresh:
				bids, asks = sides.bids, sides.asks
			case <-t.control:
				paused = false
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case sides := <-t.refresh:
			bids, asks = sides.bids, sides.asks
		case msg := <-t.control:
			if msg.kind == controlPause {
				paused = true
			}
		case t.bidsOut <- bids:
		case t.asksOut <- asks:
		}
	}
}

// Bids reads the current bid side, descending in price.
func (t *Tracker) Bids(ctx context.Context) ([]domain.BookLevel, error) {
	select {
	case b := <-t.bidsOut:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Asks reads the current ask side, ascending in price.
func (t *Tracker) Asks(ctx context.Context) ([]domain.BookLevel, error) {
	select {
	case a := <-t.asksOut:
		return a, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pause swallows the next control message (spec §5's quiescence contract).
func (t *Tracker) Pause(ctx context.Context) error {
	select {
	case t.control <- controlMsg{kind: controlPause}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
