package maker

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"spotmaker/internal/account"
	"spotmaker/internal/domain"
	"spotmaker/internal/ope"
	"spotmaker/pkg/quant"
)

// reconcileVolTolerance is the relative volume-difference threshold below
// which a live order at a matching price is left alone (spec §4.7 step 6,
// §8's reconciliation invariant).
const reconcileVolTolerance = 0.15

// desiredBaseVolume converts a DesiredOrder's allocated funds into the
// base-asset volume LiveOrder.Volume is reported in, so the two are
// comparable. The ladder generator allocates funds in each side's native
// unit (quote for bids, base for asks — matching OPE.Bid/OPE.Ask's own
// parameter units), so only the bid side needs a price conversion.
func desiredBaseVolume(side domain.BookSide, d domain.DesiredOrder, decimals int) float64 {
	if side == domain.Ask {
		return d.QuoteAmount
	}
	price := d.Price.Float64(decimals)
	if price == 0 {
		return 0
	}
	return d.QuoteAmount / price
}

// reservedAsset returns which balance a side's reservation is carried
// against, matching the native unit DesiredOrder.QuoteAmount is allocated
// in: quote currency for bids, base asset for asks.
func reservedAsset(side domain.BookSide, baseAsset, quoteAsset string) string {
	if side == domain.Ask {
		return baseAsset
	}
	return quoteAsset
}

// reservedAmount converts a LiveOrder's always-base-unit Volume back into
// the native unit reservedAsset is denominated in, mirroring
// desiredBaseVolume's conversion in the opposite direction.
func reservedAmount(side domain.BookSide, price quant.PriceTick, baseVolume float64, decimals int) float64 {
	if side == domain.Ask {
		return baseVolume
	}
	return baseVolume * price.Float64(decimals)
}

// reconcileSide implements spec §4.7 step 6 for one side. placeEqualPrice
// resolves §9 open question (b): whether a desired order at the same
// price as a stale live order gets a placement attempt before old is
// cancelled. acct, baseAsset, and quoteAsset back the §9 supplemental
// reserve/release feature: every successful placement earmarks the funds
// it ties up, and every successful cancel frees them again, so a
// concurrent sizing calculation elsewhere never double-spends a balance
// that is already working an order on this side.
func reconcileSide(ctx context.Context, engine *ope.Engine, pair string, side domain.BookSide, desired []domain.DesiredOrder, live []domain.LiveOrder, decimals int, placeEqualPrice bool, acct *account.Tracker, baseAsset, quoteAsset string, logger *slog.Logger) []domain.LiveOrder {
	remaining := append([]domain.DesiredOrder(nil), desired...)
	retained := make([]domain.LiveOrder, 0, len(live))
	var placedNew []domain.LiveOrder

	asset := reservedAsset(side, baseAsset, quoteAsset)

	place := func(d domain.DesiredOrder) *domain.OrderDescriptor {
		var desc *domain.OrderDescriptor
		if side == domain.Bid {
			desc = engine.Bid(ctx, pair, d.QuoteAmount, d.Price, decimals)
		} else {
			desc = engine.Ask(ctx, pair, d.QuoteAmount, d.Price, decimals)
		}
		if desc != nil {
			if err := acct.Reserve(ctx, asset, d.QuoteAmount); err != nil {
				logger.Warn("maker: reserve failed after placement", slog.String("pair", pair), slog.String("oid", desc.ID), slog.Any("error", err))
			}
		}
		return desc
	}

	isInward := func(price, oldPrice quant.PriceTick) bool {
		if side == domain.Bid {
			if price > oldPrice {
				return true
			}
		} else if price < oldPrice {
			return true
		}
		return placeEqualPrice && price == oldPrice
	}

	for _, old := range live {
		if matched := indexAtPrice(remaining, old.Price); matched >= 0 {
			dv := desiredBaseVolume(side, remaining[matched], decimals)
			if old.Volume > 0 && relDiff(dv, old.Volume) < reconcileVolTolerance {
				remaining = append(remaining[:matched], remaining[matched+1:]...)
				retained = append(retained, old)
				continue
			}
		}

		replaced := false
		for i := 0; i < len(remaining); i++ {
			if !isInward(remaining[i].Price, old.Price) {
				continue
			}
			desc := place(remaining[i])
			if desc != nil {
				placedNew = append(placedNew, domain.LiveOrder{OID: desc.ID, Price: desc.Price, Volume: desc.Volume})
				remaining = append(remaining[:i], remaining[i+1:]...)
				replaced = true
			}
			break
		}

		if !replaced {
			if !engine.Cancel(ctx, pair, old.OID) {
				logger.Warn("maker: cancel failed during reconciliation", slog.String("pair", pair), slog.String("oid", old.OID))
			} else if err := acct.Release(ctx, asset, reservedAmount(side, old.Price, old.Volume, decimals)); err != nil {
				logger.Warn("maker: release failed after cancel", slog.String("pair", pair), slog.String("oid", old.OID), slog.Any("error", err))
			}
		}
	}

	for _, d := range remaining {
		if desc := place(d); desc != nil {
			placedNew = append(placedNew, domain.LiveOrder{OID: desc.ID, Price: desc.Price, Volume: desc.Volume})
		}
	}

	out := append(retained, placedNew...)
	sort.SliceStable(out, func(i, j int) bool {
		if side == domain.Bid {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	return out
}

func indexAtPrice(desired []domain.DesiredOrder, price quant.PriceTick) int {
	for i, d := range desired {
		if d.Price == price {
			return i
		}
	}
	return -1
}

func relDiff(a, b float64) float64 {
	return math.Abs(a-b) / b
}
