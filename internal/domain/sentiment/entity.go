package sentiment

import "time"

// SocialSentiment is aggregated social media sentiment for a symbol over a window
type SocialSentiment struct {
	Platform       string    `ch:"platform"`
	Symbol         string    `ch:"symbol"`
	Timestamp      time.Time `ch:"timestamp"`
	Mentions       uint32    `ch:"mentions"`
	SentimentScore float64   `ch:"sentiment_score"` // -1 to 1
	PositiveCount  uint32    `ch:"positive_count"`
	NegativeCount  uint32    `ch:"negative_count"`
	NeutralCount   uint32    `ch:"neutral_count"`

	// Samples are representative posts; not stored
	Samples []Post `ch:"-"`
	// Synthetic marks data generated without a real source
	Synthetic bool `ch:"-"`
}

// Post is one sampled social media post
type Post struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// Label buckets a score in [-1, 1]
func Label(score float64) string {
	switch {
	case score >= 0.5:
		return "Very Positive"
	case score >= 0.1:
		return "Positive"
	case score <= -0.5:
		return "Very Negative"
	case score <= -0.1:
		return "Negative"
	default:
		return "Neutral"
	}
}

// Percentages returns positive, negative and neutral shares of the sampled posts
func (s SocialSentiment) Percentages() (positive, negative, neutral float64) {
	total := float64(s.PositiveCount + s.NegativeCount + s.NeutralCount)
	if total == 0 {
		return 0, 0, 0
	}
	return float64(s.PositiveCount) / total * 100,
		float64(s.NegativeCount) / total * 100,
		float64(s.NeutralCount) / total * 100
}
