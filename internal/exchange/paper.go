package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"spotmaker/internal/domain"
	"spotmaker/pkg/quant"
)

// PaperClient simulates a Client against an in-memory BalanceBook. Orders
// that cross the configured mid price fill immediately; everything else
// rests until cancelled or crossed by a later SetMid call. It exists so
// the Maker round, the OPE, and the reconciliation algorithm can be
// exercised end to end without touching a real exchange.
type PaperClient struct {
	mu sync.Mutex

	markets  map[string]domain.Market
	balances *domain.BalanceBook
	mids     map[string]quant.PriceTick
	open     map[string]*pendingOrder
	fills    []domain.Execution
}

type pendingOrder struct {
	descriptor domain.OrderDescriptor
	decimals   int
}

// NewPaperClient returns a PaperClient seeded with the given balances.
func NewPaperClient(initial map[string]float64) *PaperClient {
	bb := domain.NewBalanceBook()
	for sym, amt := range initial {
		bb.Get(sym).Credit(amt, 0)
	}
	return &PaperClient{
		markets:  make(map[string]domain.Market),
		balances: bb,
		mids:     make(map[string]quant.PriceTick),
		open:     make(map[string]*pendingOrder),
	}
}

// AddMarket registers a market so Assets/AssetPairs can describe it.
func (p *PaperClient) AddMarket(m domain.Market) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markets[m.Symbol] = m
}

// SetMid updates the simulated mid price for pair, filling any resting
// order it now crosses.
func (p *PaperClient) SetMid(pair string, mid quant.PriceTick) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mids[pair] = mid

	for oid, po := range p.open {
		if po.descriptor.Pair != pair {
			continue
		}
		crossed := (po.descriptor.Side == domain.Bid && po.descriptor.Price >= mid) ||
			(po.descriptor.Side == domain.Ask && po.descriptor.Price <= mid)
		if crossed {
			p.fill(oid, po)
		}
	}
}

func (p *PaperClient) fill(oid string, po *pendingOrder) {
	m := p.markets[po.descriptor.Pair]
	price := decimal.NewFromFloat(po.descriptor.Price.Float64(po.decimals))
	cost := price.Mul(decimal.NewFromFloat(po.descriptor.Volume))

	if po.descriptor.Side == domain.Bid {
		p.balances.Get(m.QuoteAsset).Debit(cost.InexactFloat64(), 0)
		p.balances.Get(m.BaseAsset).Credit(po.descriptor.Volume, 0)
	} else {
		p.balances.Get(m.BaseAsset).Debit(po.descriptor.Volume, 0)
		p.balances.Get(m.QuoteAsset).Credit(cost.InexactFloat64(), 0)
	}

	side := domain.Buy
	if po.descriptor.Side == domain.Ask {
		side = domain.Sell
	}

	p.fills = append(p.fills, domain.Execution{
		OID:    oid,
		TxID:   uuid.NewString(),
		Ts:     time.Now(),
		Pair:   po.descriptor.Pair,
		Side:   side,
		Price:  po.descriptor.Price,
		Volume: po.descriptor.Volume,
		Cost:   cost,
	})
	delete(p.open, oid)
}

func (p *PaperClient) Assets(ctx context.Context) (map[string]AssetInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]AssetInfo)
	for _, m := range p.markets {
		out[m.BaseAsset] = AssetInfo{Symbol: m.BaseAsset, Decimals: m.PriceDecimals}
		out[m.QuoteAsset] = AssetInfo{Symbol: m.QuoteAsset, Decimals: 2}
	}
	return out, nil
}

func (p *PaperClient) AssetPairs(ctx context.Context) (map[string]domain.Market, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]domain.Market, len(p.markets))
	for k, v := range p.markets {
		out[k] = v
	}
	return out, nil
}

// Trades returns no public trade prints: PaperClient has no independent
// market feed, only the mid price SetMid is told about.
func (p *PaperClient) Trades(ctx context.Context, pair, sinceID string) ([]domain.TradeEvent, error) {
	return nil, nil
}

// Depth synthesizes a single-level book around the configured mid.
func (p *PaperClient) Depth(ctx context.Context, pair string, count int) ([]domain.BookLevel, []domain.BookLevel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	mid, ok := p.mids[pair]
	if !ok {
		return nil, nil, nil
	}
	return []domain.BookLevel{{Price: mid - 1, Volume: 1}}, []domain.BookLevel{{Price: mid + 1, Volume: 1}}, nil
}

func (p *PaperClient) Balance(ctx context.Context) (map[string]float64, error) {
	snap := p.balances.Snapshot()
	out := make(map[string]float64, len(snap))
	for sym, b := range snap {
		out[sym] = b.Available()
	}
	return out, nil
}

func (p *PaperClient) OpenOrders(ctx context.Context, pair string) ([]domain.LiveOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.LiveOrder
	for oid, po := range p.open {
		if po.descriptor.Pair != pair {
			continue
		}
		out = append(out, domain.LiveOrder{OID: oid, Price: po.descriptor.Price, Volume: po.descriptor.Volume})
	}
	return out, nil
}

func (p *PaperClient) AddOrder(ctx context.Context, pair string, side domain.BookSide, volume float64, price quant.PriceTick, decimals int, quoteDenominated bool) (domain.OrderDescriptor, error) {
	if quoteDenominated {
		volume = volume / price.Float64(decimals)
	}
	m, ok := p.markets[pair]
	if !ok {
		return domain.OrderDescriptor{}, fmt.Errorf("exchange: paper client has no market %s", pair)
	}

	oid := uuid.NewString()
	desc := domain.OrderDescriptor{ID: oid, Pair: pair, Side: side, Price: price, Volume: volume}
	po := &pendingOrder{descriptor: desc, decimals: decimals}

	p.mu.Lock()
	p.open[oid] = po
	mid, hasMid := p.mids[pair]
	p.mu.Unlock()

	_ = m
	if hasMid {
		p.mu.Lock()
		crossed := (side == domain.Bid && price >= mid) || (side == domain.Ask && price <= mid)
		if crossed {
			p.fill(oid, po)
		}
		p.mu.Unlock()
	}

	return desc, nil
}

func (p *PaperClient) CancelOrder(ctx context.Context, pair, oid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.open[oid]; !ok {
		return fmt.Errorf("exchange: paper client has no open order %s", oid)
	}
	delete(p.open, oid)
	return nil
}

func (p *PaperClient) TradesHistory(ctx context.Context, pair string, since, until string, ofs int) ([]domain.Execution, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var matching []domain.Execution
	for _, f := range p.fills {
		if f.Pair == pair {
			matching = append(matching, f)
		}
	}
	if ofs >= len(matching) {
		return nil, len(matching), nil
	}
	return matching[ofs:], len(matching), nil
}
