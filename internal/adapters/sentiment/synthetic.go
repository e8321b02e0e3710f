package sentiment

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"time"

	domain "hypertrader/internal/domain/sentiment"
	"hypertrader/pkg/errors"
)

const (
	platformSynthetic = "synthetic"
	sampleSize        = 5
)

var positivePosts = []string{
	"Just bought more $%s! To the moon!",
	"$%s is looking strong today. Bullish pattern forming.",
	"The $%s ecosystem is growing rapidly. Very promising project.",
	"$%s has great fundamentals. Holding for the long term.",
	"New partnerships for $%s looking promising. Good investment.",
}

var neutralPosts = []string{
	"$%s trading sideways today. Waiting for a breakout.",
	"Monitoring $%s price action. No clear trend yet.",
	"$%s volume seems average today. Nothing special to report.",
	"Wondering where $%s will go next. Any thoughts?",
	"$%s news today was exactly as expected. No surprises.",
}

// SyntheticSource generates plausible, mostly positive social sentiment. Output is
// deterministic for a symbol and lookback.
type SyntheticSource struct {
	now func() time.Time
}

var _ domain.Source = (*SyntheticSource)(nil)

// NewSyntheticSource creates a synthetic sentiment source
func NewSyntheticSource() *SyntheticSource {
	return &SyntheticSource{now: time.Now}
}

// Analyze implements domain.Source
func (s *SyntheticSource) Analyze(ctx context.Context, symbol string, lookback time.Duration) (*domain.SocialSentiment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, errors.Wrap(errors.ErrInvalidSymbol, "symbol is empty")
	}

	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "%s|%d", symbol, int64(lookback/time.Hour))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	score := 0.5 + rng.Float64()*0.4
	mentions := 100 + rng.Intn(201)
	positiveShare := 0.6 + rng.Float64()*0.3
	negativeShare := 0.01 + rng.Float64()*0.09

	positive := uint32(float64(mentions) * positiveShare)
	negative := uint32(float64(mentions) * negativeShare)
	neutral := uint32(mentions) - positive - negative

	now := s.now().UTC()
	samples := make([]domain.Post, 0, sampleSize)
	for i := 0; i < sampleSize; i++ {
		post := domain.Post{
			Author:    fmt.Sprintf("trader_%03d", rng.Intn(1000)),
			CreatedAt: now.Add(-time.Duration(rng.Int63n(int64(lookback) + 1))),
		}
		if rng.Float64() < positiveShare {
			post.Text = fmt.Sprintf(positivePosts[rng.Intn(len(positivePosts))], symbol)
			post.Score = 0.5 + rng.Float64()*0.4
		} else {
			post.Text = fmt.Sprintf(neutralPosts[rng.Intn(len(neutralPosts))], symbol)
			post.Score = rng.Float64() * 0.3
		}
		samples = append(samples, post)
	}

	return &domain.SocialSentiment{
		Platform:       platformSynthetic,
		Symbol:         symbol,
		Timestamp:      now,
		Mentions:       uint32(mentions),
		SentimentScore: score,
		PositiveCount:  positive,
		NegativeCount:  negative,
		NeutralCount:   neutral,
		Samples:        samples,
		Synthetic:      true,
	}, nil
}
