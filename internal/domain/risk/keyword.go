package risk

// Keyword tier weights and the cap on accumulated intensifier bonuses.
const (
	tierHighScore   = 75
	tierMediumScore = 45
	tierLowScore    = 15

	intensifierBonus    = 5
	intensifierBonusCap = 60
)

// KeywordResult is the outcome of the keyword layer for one message.
type KeywordResult struct {
	Score        int
	Tier         string
	Matched      []string
	Intensifiers []string
}

// ScoreKeywords classifies text against the weighted crisis-phrase tiers.
// The layer score is the highest matched tier weight plus a flat bonus per
// distinct intensifier phrase, with the bonus portion capped.
func (c *CompiledLexicon) ScoreKeywords(text string) KeywordResult {
	var res KeywordResult

	tierScore := 0
	for _, m := range c.high {
		if m.re.MatchString(text) {
			res.Matched = append(res.Matched, m.phrase)
			tierScore = tierHighScore
			res.Tier = SeverityHigh
		}
	}
	if tierScore == 0 {
		for _, m := range c.medium {
			if m.re.MatchString(text) {
				res.Matched = append(res.Matched, m.phrase)
				tierScore = tierMediumScore
				res.Tier = SeverityMedium
			}
		}
	}
	if tierScore == 0 {
		for _, m := range c.low {
			if m.re.MatchString(text) {
				res.Matched = append(res.Matched, m.phrase)
				tierScore = tierLowScore
				res.Tier = SeverityLow
			}
		}
	}

	bonus := 0
	for _, m := range c.intensifiers {
		if m.re.MatchString(text) {
			res.Intensifiers = append(res.Intensifiers, m.phrase)
			bonus += intensifierBonus
		}
	}
	if bonus > intensifierBonusCap {
		bonus = intensifierBonusCap
	}

	res.Score = tierScore + bonus
	return res
}

// MatchesAnyKeyword reports whether text matches any crisis keyword tier.
// Used by the context analyzer's topic-persistence check.
func (c *CompiledLexicon) MatchesAnyKeyword(text string) bool {
	for _, tier := range [][]phraseMatcher{c.high, c.medium, c.low} {
		for _, m := range tier {
			if m.re.MatchString(text) {
				return true
			}
		}
	}
	return false
}
