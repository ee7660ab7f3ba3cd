package risk

const (
	trajectoryWindow = 5

	deterioratingBonus  = 15
	deterioratingPoints = 3
	spikeBonus          = 10
	spikeDelta          = 20
	trajectoryScoreCap  = 20
)

// TrajectoryResult is the outcome of the risk-trend layer.
type TrajectoryResult struct {
	Score int
	Trend string
}

// ScoreTrajectory inspects the session's recent score history (chronological,
// at most the last 5 records). With fewer than 2 records the trend is
// unknowable and contributes nothing. A monotonically non-decreasing run of
// at least 3 points marks deterioration; a last-step jump above 20 points
// marks a sudden spike. Both bonuses can apply, capped together.
func ScoreTrajectory(history []*ScoreHistory) TrajectoryResult {
	if len(history) > trajectoryWindow {
		history = history[len(history)-trajectoryWindow:]
	}
	if len(history) < 2 {
		return TrajectoryResult{Trend: TrendInsufficientData}
	}

	res := TrajectoryResult{Trend: TrendStable}

	if len(history) >= deterioratingPoints {
		nonDecreasing := true
		for i := 1; i < len(history); i++ {
			if history[i].RiskScore < history[i-1].RiskScore {
				nonDecreasing = false
				break
			}
		}
		if nonDecreasing {
			res.Trend = TrendDeteriorating
			res.Score += deterioratingBonus
		}
	}

	last := history[len(history)-1].RiskScore
	prev := history[len(history)-2].RiskScore
	if last-prev > spikeDelta {
		if res.Trend == TrendStable {
			res.Trend = TrendSuddenSpike
		}
		res.Score += spikeBonus
	}

	if res.Score > trajectoryScoreCap {
		res.Score = trajectoryScoreCap
	}
	return res
}
