package sentiment

import (
	"context"
	"time"
)

// Source provides sentiment for a symbol over a lookback window
type Source interface {
	Analyze(ctx context.Context, symbol string, lookback time.Duration) (*SocialSentiment, error)
}

// Repository defines sentiment data access (ClickHouse)
type Repository interface {
	InsertSocialSentiment(ctx context.Context, sentiment *SocialSentiment) error
	GetAggregatedSentiment(ctx context.Context, symbol string, since time.Time) (*SocialSentiment, error)
}
