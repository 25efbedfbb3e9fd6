// Package ope implements the OrderPlacementEngine (spec §4.6): it
// serializes every order-mutating call through a Gate and normalizes the
// PostLimit retry ladder for the "volume too low" class of exchange error.
package ope

import (
	"context"
	"log/slog"
	"strings"

	"spotmaker/internal/domain"
	"spotmaker/internal/exchange"
	"spotmaker/internal/gate"
	"spotmaker/pkg/quant"
)

// volumeBump is the coarse floor bump applied on a second "volume too
// low" error once the order is already quote-denominated.
const volumeBump = 0.01

// maxPostLimitAttempts bounds the retry ladder: the initial submission,
// the quote-denominated retry, and one bumped-floor retry after that.
const maxPostLimitAttempts = 3

// Engine serializes bid/ask/cancel through a Gate.
type Engine struct {
	gate   *gate.Gate
	logger *slog.Logger
}

// New builds an Engine fronting g.
func New(g *gate.Gate, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{gate: g, logger: logger}
}

// Bid places a buy limit order for quoteAmount units of quote currency at
// priceTick, submitting quoteAmount/price as the order's base volume. It
// returns nil — not an error — when the price is not positive or the
// placement is abandoned after the retry ladder per §4.6/§7: "any other
// semantic error is logged and the operation returns null."
func (e *Engine) Bid(ctx context.Context, pair string, quoteAmount float64, priceTick quant.PriceTick, decimals int) *domain.OrderDescriptor {
	price := priceTick.Float64(decimals)
	if price <= 0 {
		e.logger.Warn("ope: bid at a non-positive price abandoned", slog.String("pair", pair))
		return nil
	}
	return e.postLimit(ctx, pair, domain.Bid, quoteAmount/price, priceTick, decimals)
}

// Ask places a sell limit order for baseAmount units of base currency at
// priceTick.
func (e *Engine) Ask(ctx context.Context, pair string, baseAmount float64, priceTick quant.PriceTick, decimals int) *domain.OrderDescriptor {
	return e.postLimit(ctx, pair, domain.Ask, baseAmount, priceTick, decimals)
}

// postLimit implements the exact retry ladder spec §4.6 describes:
//   - submit with the caller's volume as given;
//   - on an error mentioning "volume": if already quote-denominated,
//     bump the volume by a fixed 0.01 floor and retry once more;
//     otherwise switch to quote-denominated volume (volume·price, with
//     the quote-denominated flag set) and retry;
//   - any other error is logged and placement is abandoned (null).
func (e *Engine) postLimit(ctx context.Context, pair string, side domain.BookSide, volume float64, priceTick quant.PriceTick, decimals int) *domain.OrderDescriptor {
	quoteDenominated := false

	for attempt := 0; attempt < maxPostLimitAttempts; attempt++ {
		desc, err := gate.Do(ctx, e.gate, func(ctx context.Context, c exchange.Client) (domain.OrderDescriptor, error) {
			return c.AddOrder(ctx, pair, side, volume, priceTick, decimals, quoteDenominated)
		})
		if err == nil {
			return &desc
		}

		if !strings.Contains(strings.ToLower(err.Error()), "volume") {
			e.logger.Warn("ope: placement failed", slog.String("pair", pair), slog.String("side", string(side)), slog.Any("error", err))
			return nil
		}

		if quoteDenominated {
			volume += volumeBump
			continue
		}

		volume = volume * priceTick.Float64(decimals)
		quoteDenominated = true
	}

	e.logger.Warn("ope: placement abandoned after retry ladder exhausted", slog.String("pair", pair), slog.String("side", string(side)))
	return nil
}

// unknownOrderSubstr matches the exchange's "order already gone" response,
// per spec §4.6: cancelling it is treated as idempotent success.
const unknownOrderSubstr = "unknown order"

// Cancel cancels a resting order. It reports success both when the
// exchange confirms the cancel and when the exchange reports the order is
// already gone (cancel idempotence, spec §8 scenario 6).
func (e *Engine) Cancel(ctx context.Context, pair, oid string) bool {
	_, err := gate.Do(ctx, e.gate, func(ctx context.Context, c exchange.Client) (struct{}, error) {
		return struct{}{}, c.CancelOrder(ctx, pair, oid)
	})
	if err == nil {
		return true
	}
	if strings.Contains(strings.ToLower(err.Error()), unknownOrderSubstr) {
		return true
	}
	e.logger.Warn("ope: cancel failed", slog.String("pair", pair), slog.String("oid", oid), slog.Any("error", err))
	return false
}
