package sentiment

import (
	"context"
	"math"
	"time"

	domain "hypertrader/internal/domain/sentiment"
	"hypertrader/internal/tools"
	"hypertrader/internal/tools/shared"
	"hypertrader/pkg/errors"
)

// ToolName is the registered name of the sentiment tool
const ToolName = "analyze_sentiment"

// Spec describes analyze_sentiment
func Spec() tools.Spec {
	return tools.NewSpec(ToolName,
		"Analyze recent social media sentiment for an asset. Returns an average score in [-1, 1], a label and sample posts.").
		Required("symbol", tools.TypeString, "Asset symbol, e.g. BTC").
		Optional("lookback_hours", tools.TypeInteger, "Window of posts to analyze in hours (default 24)").
		Build()
}

// NewAnalyzeSentimentTool returns the sentiment tool
func NewAnalyzeSentimentTool(deps shared.Deps) tools.Tool {
	return shared.NewToolBuilder(Spec(), handler(deps), deps).WithDefaults().Build()
}

func handler(deps shared.Deps) tools.HandlerFunc {
	log := deps.Logger().With("tool", ToolName)

	return func(ctx context.Context, args tools.Args) (map[string]interface{}, error) {
		if deps.Sentiment == nil {
			return nil, errors.Wrap(errors.ErrNotConfigured, "sentiment source not configured")
		}

		symbol := args.Symbol()
		hours := args.Int("lookback_hours", 24)
		if hours <= 0 || hours > 24*7 {
			return nil, errors.Wrapf(errors.ErrInvalidArguments, "lookback_hours must be between 1 and 168, got %d", hours)
		}

		s, err := deps.Sentiment.Analyze(ctx, symbol, time.Duration(hours)*time.Hour)
		if err != nil {
			return nil, errors.Wrapf(err, "analyze_sentiment: %s", symbol)
		}

		positive, negative, neutral := s.Percentages()
		samples := make([]interface{}, 0, len(s.Samples))
		for _, p := range s.Samples {
			samples = append(samples, map[string]interface{}{
				"text":      p.Text,
				"sentiment": round(p.Score),
			})
		}

		log.Debugw("Sentiment analyzed", "symbol", symbol, "score", s.SentimentScore, "mentions", s.Mentions)

		return map[string]interface{}{
			"symbol":              symbol,
			"average_sentiment":   round(s.SentimentScore),
			"sentiment_label":     domain.Label(s.SentimentScore),
			"sample_count":        int(s.Mentions),
			"positive_percentage": round(positive),
			"negative_percentage": round(negative),
			"neutral_percentage":  round(neutral),
			"sample_posts":        samples,
			"lookback_hours":      hours,
			"is_synthetic":        s.Synthetic,
		}, nil
	}
}

func round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
