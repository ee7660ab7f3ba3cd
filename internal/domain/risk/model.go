package risk

import (
	"time"

	"github.com/google/uuid"
)

// Severity tiers derived from a 0-100 risk score. SeverityNone is reserved
// for sessions that have never been flagged.
const (
	SeverityNone   = "none"
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Trend labels produced by the trajectory tracker.
const (
	TrendInsufficientData = "insufficient_data"
	TrendDeteriorating    = "deteriorating"
	TrendSuddenSpike      = "sudden_spike"
	TrendStable           = "stable"
)

// ScoreFactors is the per-layer breakdown of one assessment.
type ScoreFactors struct {
	KeywordScore    int      `json:"keyword_score"`
	SentimentScore  int      `json:"sentiment_score"`
	ContextScore    int      `json:"context_score"`
	TrajectoryScore int      `json:"trajectory_score"`
	MatchedKeywords []string `json:"matched_keywords"`
	Trend           string   `json:"trend"`
}

// ScoreHistory is one point in a session's risk time series. Rows are
// append-only; the trajectory tracker reads them back in calculation order.
type ScoreHistory struct {
	ID           uuid.UUID    `json:"id"`
	SessionID    uuid.UUID    `json:"session_id"`
	RiskScore    int          `json:"risk_score"`
	Severity     string       `json:"severity"`
	Factors      ScoreFactors `json:"factors"`
	CalculatedAt time.Time    `json:"calculated_at"`
}

// Assessment is the result of scoring a single message.
type Assessment struct {
	RiskScore int          `json:"risk_score"`
	Severity  string       `json:"severity"`
	Factors   []string     `json:"factors"`
	Breakdown ScoreFactors `json:"breakdown"`
}
