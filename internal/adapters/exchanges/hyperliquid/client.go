package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"hypertrader/internal/adapters/exchanges"
	"hypertrader/internal/adapters/exchanges/ratelimit"
	"hypertrader/internal/adapters/exchanges/retry"
	"hypertrader/internal/metrics"
	"hypertrader/pkg/errors"
)

const (
	MainnetURL     = "https://api.hyperliquid.xyz"
	TestnetURL     = "https://api.hyperliquid-testnet.xyz"
	defaultTimeout = 10 * time.Second
	exchangeName   = "hyperliquid"
)

var intervals = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// Config configures the Hyperliquid client.
type Config struct {
	BaseURL         string
	Testnet         bool
	AccountAddress  string
	Signer          Signer
	WeightPerMinute int
	HTTPClient      *http.Client
	Retry           retry.Policy
	// Slippage bounds the IOC price of market orders, as a fraction of the reference price
	Slippage decimal.Decimal
}

type asset struct {
	index      int
	szDecimals int32
}

// Client talks to the Hyperliquid info and exchange endpoints.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *ratelimit.Limiter
	retry   retry.Policy
	now     func() time.Time

	mu     sync.RWMutex
	assets map[string]asset
}

var _ exchanges.Exchange = (*Client)(nil)

// NewClient creates a new Hyperliquid adapter instance.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = MainnetURL
		if cfg.Testnet {
			cfg.BaseURL = TestnetURL
		}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if !cfg.Slippage.IsPositive() {
		cfg.Slippage = decimal.RequireFromString("0.05")
	}

	return &Client{
		cfg:     cfg,
		http:    cfg.HTTPClient,
		limiter: ratelimit.NewLimiter(exchangeName, cfg.WeightPerMinute),
		retry:   cfg.Retry,
		now:     time.Now,
	}
}

// Name returns the exchange name
func (c *Client) Name() string {
	return exchangeName
}

// CanTrade reports whether orders can be signed and attributed to an account
func (c *Client) CanTrade() bool {
	return c.cfg.AccountAddress != "" && c.cfg.Signer != nil
}

type universeEntry struct {
	Name       string `json:"name"`
	SzDecimals int32  `json:"szDecimals"`
}

type assetCtx struct {
	Funding      string  `json:"funding"`
	OpenInterest string  `json:"openInterest"`
	PrevDayPx    string  `json:"prevDayPx"`
	DayNtlVlm    string  `json:"dayNtlVlm"`
	MarkPx       string  `json:"markPx"`
	MidPx        *string `json:"midPx"`
}

// GetMarketSnapshot reads mark/mid price, 24h stats, funding and open interest for symbol
func (c *Client) GetMarketSnapshot(ctx context.Context, symbol string) (*exchanges.MarketSnapshot, error) {
	var raw []json.RawMessage
	if err := c.info(ctx, ratelimit.WeightInfo, map[string]interface{}{"type": "metaAndAssetCtxs"}, &raw); err != nil {
		return nil, err
	}
	if len(raw) != 2 {
		return nil, errors.Wrapf(errors.ErrExchangeUnavailable, "metaAndAssetCtxs: unexpected response of %d elements", len(raw))
	}

	var meta struct {
		Universe []universeEntry `json:"universe"`
	}
	var ctxs []assetCtx
	if err := json.Unmarshal(raw[0], &meta); err != nil {
		return nil, errors.Wrap(err, "decode meta")
	}
	if err := json.Unmarshal(raw[1], &ctxs); err != nil {
		return nil, errors.Wrap(err, "decode asset contexts")
	}
	c.storeUniverse(meta.Universe)

	coin := normalizeSymbol(symbol)
	for i, u := range meta.Universe {
		if u.Name != coin || i >= len(ctxs) {
			continue
		}
		ac := ctxs[i]
		snap := &exchanges.MarketSnapshot{
			Symbol:       coin,
			MarkPrice:    parseDecimal(ac.MarkPx),
			PrevDayPrice: parseDecimal(ac.PrevDayPx),
			Volume24hUSD: parseDecimal(ac.DayNtlVlm),
			FundingRate:  parseDecimal(ac.Funding),
			OpenInterest: parseDecimal(ac.OpenInterest),
			Source:       exchangeName,
			Timestamp:    c.now().UTC(),
		}
		if ac.MidPx != nil {
			snap.MidPrice = parseDecimal(*ac.MidPx)
		}
		return snap, nil
	}

	return nil, errors.Wrapf(errors.ErrInvalidSymbol, "%s is not listed on %s", coin, exchangeName)
}

// GetOHLCV returns up to limit candles of the given interval, oldest first
func (c *Client) GetOHLCV(ctx context.Context, symbol string, interval string, limit int) ([]exchanges.OHLCV, error) {
	step, ok := intervals[interval]
	if !ok {
		return nil, errors.Wrapf(exchanges.ErrInvalidRequest, "unsupported interval %q", interval)
	}
	if limit <= 0 {
		limit = 100
	}

	end := c.now()
	start := end.Add(-time.Duration(limit) * step)

	var candles []struct {
		T int64  `json:"t"`
		O string `json:"o"`
		H string `json:"h"`
		L string `json:"l"`
		C string `json:"c"`
		V string `json:"v"`
	}
	req := map[string]interface{}{
		"type": "candleSnapshot",
		"req": map[string]interface{}{
			"coin":      normalizeSymbol(symbol),
			"interval":  interval,
			"startTime": start.UnixMilli(),
			"endTime":   end.UnixMilli(),
		},
	}
	if err := c.info(ctx, ratelimit.CandleWeight(limit), req, &candles); err != nil {
		return nil, err
	}

	out := make([]exchanges.OHLCV, 0, len(candles))
	for _, k := range candles {
		out = append(out, exchanges.OHLCV{
			OpenTime: time.UnixMilli(k.T).UTC(),
			Open:     parseDecimal(k.O),
			High:     parseDecimal(k.H),
			Low:      parseDecimal(k.L),
			Close:    parseDecimal(k.C),
			Volume:   parseDecimal(k.V),
		})
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// info performs a read-only /info query with retries
func (c *Client) info(ctx context.Context, weight int, payload map[string]interface{}, target interface{}) error {
	op := fmt.Sprintf("info %v", payload["type"])
	return c.retry.Do(ctx, op, func(ctx context.Context) error {
		body, err := c.post(ctx, "/info", weight, payload)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, target); err != nil {
			return errors.Wrap(err, "decode /info response")
		}
		return nil
	})
}

func (c *Client) post(ctx context.Context, endpoint string, weight int, payload interface{}) ([]byte, error) {
	if err := c.limiter.Wait(ctx, weight); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ExchangeAPICalls.WithLabelValues(exchangeName, endpoint, "error").Inc()
		return nil, errors.Wrapf(err, "%s %s", exchangeName, endpoint)
	}
	defer resp.Body.Close()
	metrics.ExchangeAPICalls.WithLabelValues(exchangeName, endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}
	if resp.StatusCode >= 300 {
		return nil, &exchanges.APIError{
			Exchange: exchangeName,
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Body:     truncate(string(body), 256),
		}
	}
	return body, nil
}

func (c *Client) storeUniverse(universe []universeEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assets = make(map[string]asset, len(universe))
	for i, u := range universe {
		c.assets[u.Name] = asset{index: i, szDecimals: u.SzDecimals}
	}
}

func (c *Client) lookupAsset(ctx context.Context, coin string) (asset, error) {
	c.mu.RLock()
	a, ok := c.assets[coin]
	loaded := c.assets != nil
	c.mu.RUnlock()
	if ok {
		return a, nil
	}
	if !loaded {
		var meta struct {
			Universe []universeEntry `json:"universe"`
		}
		if err := c.info(ctx, ratelimit.WeightInfo, map[string]interface{}{"type": "meta"}, &meta); err != nil {
			return asset{}, err
		}
		c.storeUniverse(meta.Universe)
		c.mu.RLock()
		a, ok = c.assets[coin]
		c.mu.RUnlock()
		if ok {
			return a, nil
		}
	}
	return asset{}, errors.Wrapf(errors.ErrInvalidSymbol, "%s is not listed on %s", coin, exchangeName)
}

func normalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.TrimSuffix(s, "-PERP")
	s = strings.TrimSuffix(s, "/USD")
	return s
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
