// Package exchange defines the external contract every Gate call is made
// through, and ships two implementations of it: a thin REST client signed
// with the exchange's own HMAC scheme, and a PaperClient that simulates
// fills against an in-memory BalanceBook for dry runs.
package exchange

import (
	"context"

	"spotmaker/internal/domain"
	"spotmaker/pkg/quant"
)

// Client is the full surface the Gate actor needs from an exchange. Every
// method is a single request/response round trip; retries, rate limiting,
// and the circuit breaker all live in the Gate, not here.
type Client interface {
	// Assets lists every asset the exchange knows about, keyed by symbol.
	Assets(ctx context.Context) (map[string]AssetInfo, error)

	// AssetPairs lists every tradeable market, keyed by pair symbol.
	AssetPairs(ctx context.Context) (map[string]domain.Market, error)

	// Trades returns public trade prints for pair since the given trade
	// id (empty for "from the start"), newest last.
	Trades(ctx context.Context, pair, sinceID string) ([]domain.TradeEvent, error)

	// Depth returns the current order book for pair, both sides sorted
	// best-price-first.
	Depth(ctx context.Context, pair string, count int) (bids, asks []domain.BookLevel, err error)

	// Balance returns the account's holdings, keyed by asset symbol.
	Balance(ctx context.Context) (map[string]float64, error)

	// OpenOrders returns every order currently resting for pair.
	OpenOrders(ctx context.Context, pair string) ([]domain.LiveOrder, error)

	// AddOrder places a limit order and returns it normalized: its ID
	// populated from the exchange's own order identifier (spec §4.6: "the
	// first element of the exchange's txid list"). quoteDenominated sets
	// the exchange's "volume is quote currency, not base" order flag
	// (oflags=viqc), used by the OPE's volume-too-low retry ladder.
	AddOrder(ctx context.Context, pair string, side domain.BookSide, volume float64, price quant.PriceTick, decimals int, quoteDenominated bool) (domain.OrderDescriptor, error)

	// CancelOrder cancels a resting order by id.
	CancelOrder(ctx context.Context, pair, oid string) error

	// TradesHistory returns a page of this account's fills for pair,
	// honoring the lictor's since/until/ofs cursor protocol. count is the
	// exchange's reported total matching the since/until window, not the
	// length of this page; the lictor loops on ofs until it has
	// accumulated count trades.
	TradesHistory(ctx context.Context, pair string, since, until string, ofs int) (page []domain.Execution, count int, err error)
}

// AssetInfo is the exchange's metadata for one asset (the result of the
// Assets bootstrap call).
type AssetInfo struct {
	Symbol    string
	Decimals  int
	AltName   string
}
