package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"spotmaker/internal/domain"
	"spotmaker/pkg/quant"
)

// envelope is the response shape the exchange wraps every call in: a list
// of error strings (empty on success) and a result payload.
type envelope struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

// RESTClient is a thin, signed HTTP client implementing Client against a
// single REST endpoint. It does no retrying or rate limiting of its own;
// the Gate actor owns that.
type RESTClient struct {
	baseURL string
	signer  *Signer
	http    *http.Client
}

// NewRESTClient builds a RESTClient against baseURL, signing private
// requests with signer.
func NewRESTClient(baseURL string, signer *Signer) *RESTClient {
	return &RESTClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		signer:  signer,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// SetSigner hot-swaps the credential slot the client signs with,
// wiping the old one first.
func (c *RESTClient) SetSigner(signer *Signer) {
	old := c.signer
	c.signer = signer
	old.Wipe()
}

func (c *RESTClient) doPublic(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, query, false)
}

func (c *RESTClient) doPrivate(ctx context.Context, method, path string, query url.Values) (json.RawMessage, error) {
	return c.do(ctx, method, path, query, true)
}

func (c *RESTClient) do(ctx context.Context, method, path string, query url.Values, signed bool) (json.RawMessage, error) {
	qs := ""
	if query != nil {
		qs = query.Encode()
	}

	reqURL := c.baseURL + path
	var body string
	if method == http.MethodGet {
		if qs != "" {
			reqURL += "?" + qs
		}
	} else {
		body = qs
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("exchange: build request: %w", err)
	}

	if signed {
		if c.signer == nil {
			return nil, fmt.Errorf("exchange: private call %s requires a signer", path)
		}
		q := ""
		if method == http.MethodGet {
			q = qs
		}
		for k, v := range c.signer.Headers(method, path, q, body) {
			req.Header.Set(k, v)
		}
	}
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exchange: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("exchange: read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("exchange: decode envelope: %w", err)
	}
	if len(env.Error) > 0 {
		return nil, fmt.Errorf("exchange: %s %s: %s", method, path, strings.Join(env.Error, "; "))
	}
	return env.Result, nil
}

func (c *RESTClient) Assets(ctx context.Context) (map[string]AssetInfo, error) {
	raw, err := c.doPublic(ctx, "/0/public/Assets", nil)
	if err != nil {
		return nil, err
	}

	var wire map[string]struct {
		AltName  string `json:"altname"`
		Decimals int    `json:"decimals"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("exchange: decode assets: %w", err)
	}

	out := make(map[string]AssetInfo, len(wire))
	for sym, a := range wire {
		out[sym] = AssetInfo{Symbol: sym, AltName: a.AltName, Decimals: a.Decimals}
	}
	return out, nil
}

func (c *RESTClient) AssetPairs(ctx context.Context) (map[string]domain.Market, error) {
	raw, err := c.doPublic(ctx, "/0/public/AssetPairs", nil)
	if err != nil {
		return nil, err
	}

	var wire map[string]struct {
		Base       string `json:"base"`
		Quote      string `json:"quote"`
		PairDecim  int    `json:"pair_decimals"`
		FeePercent string `json:"fee_percent"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("exchange: decode asset pairs: %w", err)
	}

	out := make(map[string]domain.Market, len(wire))
	for sym, p := range wire {
		feePct, _ := strconv.ParseFloat(p.FeePercent, 64)
		out[sym] = domain.Market{
			Symbol:        sym,
			PriceDecimals: p.PairDecim,
			BaseAsset:     p.Base,
			QuoteAsset:    p.Quote,
			FeePct:        feePct,
		}
	}
	return out, nil
}

func (c *RESTClient) Trades(ctx context.Context, pair, sinceID string) ([]domain.TradeEvent, error) {
	q := url.Values{"pair": {pair}}
	if sinceID != "" {
		q.Set("since", sinceID)
	}
	raw, err := c.doPublic(ctx, "/0/public/Trades", q)
	if err != nil {
		return nil, err
	}

	var wire map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("exchange: decode trades: %w", err)
	}

	rows, ok := wire[pair]
	if !ok {
		return nil, nil
	}

	var entries [][]json.RawMessage
	if err := json.Unmarshal(rows, &entries); err != nil {
		return nil, fmt.Errorf("exchange: decode trade rows: %w", err)
	}

	trades := make([]domain.TradeEvent, 0, len(entries))
	for _, e := range entries {
		if len(e) < 5 {
			continue
		}
		var priceStr, volStr, side, kind string
		var ts float64
		_ = json.Unmarshal(e[0], &priceStr)
		_ = json.Unmarshal(e[1], &volStr)
		_ = json.Unmarshal(e[2], &ts)
		_ = json.Unmarshal(e[3], &side)
		_ = json.Unmarshal(e[4], &kind)

		price, _ := decimal.NewFromString(priceStr)
		volume, _ := strconv.ParseFloat(volStr, 64)
		fillSide := domain.Buy
		if side == "s" {
			fillSide = domain.Sell
		}
		trades = append(trades, domain.NewTradeEvent(unixSeconds(ts), volume, price, fillSide, kind, ""))
	}
	return trades, nil
}

func (c *RESTClient) Depth(ctx context.Context, pair string, count int) ([]domain.BookLevel, []domain.BookLevel, error) {
	q := url.Values{"pair": {pair}, "count": {strconv.Itoa(count)}}
	raw, err := c.doPublic(ctx, "/0/public/Depth", q)
	if err != nil {
		return nil, nil, err
	}

	var wire map[string]struct {
		Bids [][]json.RawMessage `json:"bids"`
		Asks [][]json.RawMessage `json:"asks"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, nil, fmt.Errorf("exchange: decode depth: %w", err)
	}

	book, ok := wire[pair]
	if !ok {
		return nil, nil, nil
	}

	// This reference client is a thin stand-in for an external exchange
	// surface (§1/§6) and is not wired to any pair's real PriceDecimals;
	// callers exercising more than one price scale should use PaperClient
	// instead, which is.
	decimals := 8
	bids := decodeLevels(book.Bids, decimals)
	asks := decodeLevels(book.Asks, decimals)
	return bids, asks, nil
}

func decodeLevels(rows [][]json.RawMessage, decimals int) []domain.BookLevel {
	levels := make([]domain.BookLevel, 0, len(rows))
	for _, r := range rows {
		if len(r) < 2 {
			continue
		}
		var priceStr, volStr string
		_ = json.Unmarshal(r[0], &priceStr)
		_ = json.Unmarshal(r[1], &volStr)

		price, err := quant.ParsePriceTick(priceStr, decimals)
		if err != nil {
			continue
		}
		volume, _ := strconv.ParseFloat(volStr, 64)
		levels = append(levels, domain.BookLevel{Price: price, Volume: volume})
	}
	return levels
}

func (c *RESTClient) Balance(ctx context.Context) (map[string]float64, error) {
	raw, err := c.doPrivate(ctx, http.MethodPost, "/0/private/Balance", nil)
	if err != nil {
		return nil, err
	}

	var wire map[string]string
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("exchange: decode balance: %w", err)
	}

	out := make(map[string]float64, len(wire))
	for sym, v := range wire {
		f, _ := strconv.ParseFloat(v, 64)
		out[sym] = f
	}
	return out, nil
}

func (c *RESTClient) OpenOrders(ctx context.Context, pair string) ([]domain.LiveOrder, error) {
	raw, err := c.doPrivate(ctx, http.MethodPost, "/0/private/OpenOrders", nil)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Open map[string]struct {
			Descr struct {
				Pair  string `json:"pair"`
				Price string `json:"price"`
			} `json:"descr"`
			Vol string `json:"vol"`
		} `json:"open"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("exchange: decode open orders: %w", err)
	}

	out := make([]domain.LiveOrder, 0, len(wire.Open))
	for oid, o := range wire.Open {
		if o.Descr.Pair != pair {
			continue
		}
		price, _ := quant.ParsePriceTick(o.Descr.Price, 8) // see the Depth decimals note above
		volume, _ := strconv.ParseFloat(o.Vol, 64)
		out = append(out, domain.LiveOrder{OID: oid, Price: price, Volume: volume})
	}
	return out, nil
}

func (c *RESTClient) AddOrder(ctx context.Context, pair string, side domain.BookSide, volume float64, price quant.PriceTick, decimals int, quoteDenominated bool) (domain.OrderDescriptor, error) {
	orderSide := "buy"
	if side == domain.Ask {
		orderSide = "sell"
	}

	q := url.Values{
		"pair":      {pair},
		"type":      {orderSide},
		"ordertype": {"limit"},
		"price":     {price.Decimal(decimals)},
		"volume":    {strconv.FormatFloat(volume, 'f', -1, 64)},
	}
	if quoteDenominated {
		q.Set("oflags", "viqc")
	}

	raw, err := c.doPrivate(ctx, http.MethodPost, "/0/private/AddOrder", q)
	if err != nil {
		return domain.OrderDescriptor{}, err
	}

	var wire struct {
		TxID []string `json:"txid"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return domain.OrderDescriptor{}, fmt.Errorf("exchange: decode add order: %w", err)
	}
	if len(wire.TxID) == 0 {
		return domain.OrderDescriptor{}, fmt.Errorf("exchange: AddOrder returned no txid")
	}

	return domain.OrderDescriptor{
		ID:     wire.TxID[0],
		Pair:   pair,
		Side:   side,
		Price:  price,
		Volume: volume,
	}, nil
}

func (c *RESTClient) CancelOrder(ctx context.Context, pair, oid string) error {
	q := url.Values{"txid": {oid}}
	_, err := c.doPrivate(ctx, http.MethodPost, "/0/private/CancelOrder", q)
	return err
}

func (c *RESTClient) TradesHistory(ctx context.Context, pair string, since, until string, ofs int) ([]domain.Execution, int, error) {
	q := url.Values{}
	if since != "" {
		q.Set("start", since)
	}
	if until != "" {
		q.Set("end", until)
	}
	if ofs > 0 {
		q.Set("ofs", strconv.Itoa(ofs))
	}

	raw, err := c.doPrivate(ctx, http.MethodPost, "/0/private/TradesHistory", q)
	if err != nil {
		return nil, 0, err
	}

	var wire struct {
		Trades map[string]struct {
			OrderTxID string `json:"ordertxid"`
			Pair      string `json:"pair"`
			Time      float64 `json:"time"`
			Type      string  `json:"type"`
			Price     string  `json:"price"`
			Vol       string  `json:"vol"`
			Cost      string  `json:"cost"`
			Fee       string  `json:"fee"`
		} `json:"trades"`
		Count int `json:"count"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, 0, fmt.Errorf("exchange: decode trades history: %w", err)
	}

	out := make([]domain.Execution, 0, len(wire.Trades))
	for txid, t := range wire.Trades {
		if t.Pair != pair {
			continue
		}
		side := domain.Buy
		if t.Type == "sell" {
			side = domain.Sell
		}
		price, _ := quant.ParsePriceTick(t.Price, 8)
		volume, _ := strconv.ParseFloat(t.Vol, 64)
		cost, _ := decimal.NewFromString(t.Cost)
		fee, _ := decimal.NewFromString(t.Fee)

		out = append(out, domain.Execution{
			OID:    t.OrderTxID,
			TxID:   txid,
			Ts:     unixSeconds(t.Time),
			Pair:   t.Pair,
			Side:   side,
			Price:  price,
			Volume: volume,
			Cost:   cost,
			Fee:    fee,
		})
	}
	return out, wire.Count, nil
}

func unixSeconds(f float64) time.Time {
	secs := int64(f)
	nanos := int64((f - float64(secs)) * 1e9)
	return time.Unix(secs, nanos)
}
