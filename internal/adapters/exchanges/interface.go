package exchanges

import "context"

// MarketData is the read-only half of an exchange
type MarketData interface {
	GetMarketSnapshot(ctx context.Context, symbol string) (*MarketSnapshot, error)
	GetOHLCV(ctx context.Context, symbol string, interval string, limit int) ([]OHLCV, error)
}

// Exchange defines the contract each exchange adapter must satisfy.
type Exchange interface {
	MarketData

	Name() string
	PlaceOrder(ctx context.Context, req *OrderRequest) (*Order, error)
}
