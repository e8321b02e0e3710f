package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"hypertrader/internal/domain/sentiment"
	"hypertrader/pkg/errors"
)

// Compile-time check
var _ sentiment.Repository = (*SentimentRepository)(nil)

// SentimentRepository implements sentiment.Repository using ClickHouse
type SentimentRepository struct {
	conn driver.Conn
}

// NewSentimentRepository creates a new sentiment repository
func NewSentimentRepository(conn driver.Conn) *SentimentRepository {
	return &SentimentRepository{conn: conn}
}

// Migrate creates the social sentiment table when missing
func (r *SentimentRepository) Migrate(ctx context.Context) error {
	err := r.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS social_sentiment (
			platform        LowCardinality(String),
			symbol          LowCardinality(String),
			timestamp       DateTime,
			mentions        UInt32,
			sentiment_score Float64,
			positive_count  UInt32,
			negative_count  UInt32,
			neutral_count   UInt32
		) ENGINE = MergeTree()
		ORDER BY (symbol, timestamp)`)
	if err != nil {
		return errors.Wrap(err, "migrate social_sentiment")
	}
	return nil
}

// InsertSocialSentiment inserts one sentiment snapshot
func (r *SentimentRepository) InsertSocialSentiment(ctx context.Context, s *sentiment.SocialSentiment) error {
	query := `
		INSERT INTO social_sentiment (
			platform, symbol, timestamp, mentions, sentiment_score,
			positive_count, negative_count, neutral_count
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)`

	return r.conn.Exec(ctx, query,
		s.Platform, s.Symbol, s.Timestamp, s.Mentions, s.SentimentScore,
		s.PositiveCount, s.NegativeCount, s.NeutralCount,
	)
}

// GetAggregatedSentiment aggregates all platforms for a symbol since the given time.
// Returns errors.ErrNotFound when no rows match.
func (r *SentimentRepository) GetAggregatedSentiment(ctx context.Context, symbol string, since time.Time) (*sentiment.SocialSentiment, error) {
	var rows []sentiment.SocialSentiment

	query := `
		SELECT
			'all' AS platform,
			symbol,
			max(timestamp) AS timestamp,
			toUInt32(sum(mentions)) AS mentions,
			if(sum(mentions) = 0, avg(sentiment_score), sum(sentiment_score * mentions) / sum(mentions)) AS sentiment_score,
			toUInt32(sum(positive_count)) AS positive_count,
			toUInt32(sum(negative_count)) AS negative_count,
			toUInt32(sum(neutral_count)) AS neutral_count
		FROM social_sentiment
		WHERE symbol = $1 AND timestamp >= $2
		GROUP BY symbol`

	if err := r.conn.Select(ctx, &rows, query, symbol, since); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "no sentiment for %s since %s", symbol, since.Format(time.RFC3339))
	}
	return &rows[0], nil
}
