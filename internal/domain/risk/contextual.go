package risk

import (
	"time"

	"github.com/vigil/vigil/internal/domain/message"
)

const (
	contextWindowSize = 10

	rapidCadenceBonus    = 10
	rapidCadenceMessages = 5
	rapidCadenceAvgGap   = 30 * time.Second

	topicPersistenceBonus   = 15
	topicPersistenceMatches = 3
	isolationLanguageBonus  = 8
	contextScoreCap         = 30
)

// ContextResult is the outcome of the conversational-context layer.
type ContextResult struct {
	Score            int
	RapidCadence     bool
	TopicPersistence bool
	IsolationLang    bool
}

// ScoreContext examines the recent message window (chronological, at most
// the last 10 messages) for escalation patterns that a single message
// cannot show: rapid-fire messaging, persistent crisis topics, and
// isolation language.
func (c *CompiledLexicon) ScoreContext(window []*message.SessionMessage) ContextResult {
	var res ContextResult
	if len(window) > contextWindowSize {
		window = window[len(window)-contextWindowSize:]
	}

	// Rapid cadence: average inter-arrival time of the last 5 user messages.
	var userTimes []time.Time
	for _, m := range window {
		if m.Role == message.RoleUser {
			userTimes = append(userTimes, m.CreatedAt)
		}
	}
	if len(userTimes) > rapidCadenceMessages {
		userTimes = userTimes[len(userTimes)-rapidCadenceMessages:]
	}
	if len(userTimes) >= 2 {
		total := userTimes[len(userTimes)-1].Sub(userTimes[0])
		avg := total / time.Duration(len(userTimes)-1)
		if avg < rapidCadenceAvgGap {
			res.RapidCadence = true
			res.Score += rapidCadenceBonus
		}
	}

	// Topic persistence: several window messages independently match the
	// crisis keyword tiers.
	matches := 0
	for _, m := range window {
		if c.MatchesAnyKeyword(m.Text) {
			matches++
		}
	}
	if matches >= topicPersistenceMatches {
		res.TopicPersistence = true
		res.Score += topicPersistenceBonus
	}

	// Isolation language anywhere in the window.
	for _, m := range window {
		for _, iso := range c.isolation {
			if iso.re.MatchString(m.Text) {
				res.IsolationLang = true
				break
			}
		}
		if res.IsolationLang {
			break
		}
	}
	if res.IsolationLang {
		res.Score += isolationLanguageBonus
	}

	if res.Score > contextScoreCap {
		res.Score = contextScoreCap
	}
	return res
}
