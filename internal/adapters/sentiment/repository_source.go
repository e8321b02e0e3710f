package sentiment

import (
	"context"
	"strings"
	"time"

	domain "hypertrader/internal/domain/sentiment"
	"hypertrader/pkg/errors"
	"hypertrader/pkg/logger"
)

// RepositorySource reads aggregated sentiment collected into ClickHouse and falls
// back to another source when no rows cover the window
type RepositorySource struct {
	repo     domain.Repository
	fallback domain.Source
	log      *logger.Logger
	now      func() time.Time
}

var _ domain.Source = (*RepositorySource)(nil)

// NewRepositorySource creates a source over repo. fallback may be nil.
func NewRepositorySource(repo domain.Repository, fallback domain.Source, log *logger.Logger) *RepositorySource {
	return &RepositorySource{
		repo:     repo,
		fallback: fallback,
		log:      log.With("component", "sentiment_source"),
		now:      time.Now,
	}
}

// Analyze implements domain.Source
func (s *RepositorySource) Analyze(ctx context.Context, symbol string, lookback time.Duration) (*domain.SocialSentiment, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	since := s.now().Add(-lookback)

	agg, err := s.repo.GetAggregatedSentiment(ctx, symbol, since)
	if err == nil {
		return agg, nil
	}
	if s.fallback == nil || !errors.Is(err, errors.ErrNotFound) {
		return nil, errors.Wrapf(err, "sentiment for %s", symbol)
	}

	s.log.Debugw("No stored sentiment, using fallback", "symbol", symbol, "lookback", lookback)
	return s.fallback.Analyze(ctx, symbol, lookback)
}
