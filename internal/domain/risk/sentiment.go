package risk

const (
	sentimentFloor   = -100
	sentimentCeiling = 100

	sentimentWeight        = 0.3
	sentimentContributeCap = 30
)

// SentimentResult is the outcome of the sentiment layer for one message.
type SentimentResult struct {
	// Sentiment is the clamped lexicon-weighted sum, negative meaning
	// distress.
	Sentiment int
	// Score is the contribution to the risk total. Positive sentiment
	// contributes nothing.
	Score int
}

// ScoreSentiment computes a lexicon-weighted sentiment sum clamped to
// [-100,100] and converts negative sentiment into a capped risk
// contribution.
func (c *CompiledLexicon) ScoreSentiment(text string) SentimentResult {
	sum := 0
	for _, m := range c.sentiment {
		if m.re.MatchString(text) {
			sum += m.weight
		}
	}
	if sum < sentimentFloor {
		sum = sentimentFloor
	}
	if sum > sentimentCeiling {
		sum = sentimentCeiling
	}

	score := 0
	if sum < 0 {
		score = int(float64(-sum) * sentimentWeight)
		if score > sentimentContributeCap {
			score = sentimentContributeCap
		}
	}
	return SentimentResult{Sentiment: sum, Score: score}
}
