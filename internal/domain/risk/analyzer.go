package risk

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/vigil/vigil/internal/domain/message"
)

// Thresholds are the fixed severity cut points applied to an aggregated
// score.
type Thresholds struct {
	MediumMin int
	HighMin   int
}

func DefaultThresholds() Thresholds {
	return Thresholds{MediumMin: 31, HighMin: 71}
}

// SeverityFor maps a clamped score to its severity tier.
func (t Thresholds) SeverityFor(score int) string {
	switch {
	case score >= t.HighMin:
		return SeverityHigh
	case score >= t.MediumMin:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Analyzer aggregates the four signal layers into a single assessment and
// keeps the risk time series populated.
type Analyzer struct {
	lexicon    *CompiledLexicon
	messages   message.Repository
	history    Repository
	thresholds Thresholds
	logger     zerolog.Logger
}

func NewAnalyzer(lexicon *CompiledLexicon, messages message.Repository, history Repository, thresholds Thresholds, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		lexicon:    lexicon,
		messages:   messages,
		history:    history,
		thresholds: thresholds,
		logger:     logger,
	}
}

// AnalyzeMessage scores one message. History reads fail open: a storage
// hiccup degrades the affected layer to zero contribution instead of
// aborting message processing. The assessment never touches session crisis
// state; it only appends a history row when the score is positive.
func (a *Analyzer) AnalyzeMessage(ctx context.Context, msg *message.SessionMessage) *Assessment {
	keyword := a.lexicon.ScoreKeywords(msg.Text)
	sentiment := a.lexicon.ScoreSentiment(msg.Text)

	var contextRes ContextResult
	window, err := a.messages.ListRecent(ctx, msg.SessionID, contextWindowSize)
	if err != nil {
		a.logger.Warn().Err(err).
			Str("session_id", msg.SessionID.String()).
			Msg("context window read failed, skipping context layer")
	} else {
		contextRes = a.lexicon.ScoreContext(window)
	}

	traj := TrajectoryResult{Trend: TrendInsufficientData}
	hist, err := a.history.ListRecent(ctx, msg.SessionID, trajectoryWindow)
	if err != nil {
		a.logger.Warn().Err(err).
			Str("session_id", msg.SessionID.String()).
			Msg("risk history read failed, skipping trajectory layer")
	} else {
		traj = ScoreTrajectory(hist)
	}

	total := keyword.Score + sentiment.Score + contextRes.Score + traj.Score
	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}

	assessment := &Assessment{
		RiskScore: total,
		Severity:  a.thresholds.SeverityFor(total),
		Factors:   buildFactors(keyword, sentiment, contextRes, traj),
		Breakdown: ScoreFactors{
			KeywordScore:    keyword.Score,
			SentimentScore:  sentiment.Score,
			ContextScore:    contextRes.Score,
			TrajectoryScore: traj.Score,
			MatchedKeywords: keyword.Matched,
			Trend:           traj.Trend,
		},
	}

	if total > 0 {
		row := &ScoreHistory{
			SessionID: msg.SessionID,
			RiskScore: assessment.RiskScore,
			Severity:  assessment.Severity,
			Factors:   assessment.Breakdown,
		}
		if err := a.history.Create(ctx, row); err != nil {
			// Best effort: losing one trajectory point is preferable to
			// failing the assessment.
			a.logger.Warn().Err(err).
				Str("session_id", msg.SessionID.String()).
				Msg("risk history append failed")
		}
	}

	return assessment
}

func buildFactors(kw KeywordResult, sent SentimentResult, ctx ContextResult, traj TrajectoryResult) []string {
	var factors []string
	for _, m := range kw.Matched {
		factors = append(factors, "keyword:"+m)
	}
	for _, m := range kw.Intensifiers {
		factors = append(factors, "intensifier:"+m)
	}
	if sent.Score > 0 {
		factors = append(factors, "negative_sentiment")
	}
	if ctx.RapidCadence {
		factors = append(factors, "rapid_cadence")
	}
	if ctx.TopicPersistence {
		factors = append(factors, "topic_persistence")
	}
	if ctx.IsolationLang {
		factors = append(factors, "isolation_language")
	}
	if traj.Trend == TrendDeteriorating || traj.Trend == TrendSuddenSpike {
		factors = append(factors, "trend:"+traj.Trend)
	}
	return factors
}
