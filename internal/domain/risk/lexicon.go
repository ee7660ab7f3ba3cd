package risk

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lexicon is the versioned, swappable vocabulary behind the keyword and
// sentiment scorers. It can be loaded from YAML at startup; DefaultLexicon
// provides the built-in calibration.
type Lexicon struct {
	Version string `yaml:"version"`

	Keywords struct {
		High   []string `yaml:"high"`
		Medium []string `yaml:"medium"`
		Low    []string `yaml:"low"`
	} `yaml:"keywords"`

	// Intensifiers are grouped by emotional category (hopelessness,
	// detachment, urgency, finality). Each distinct phrase detected adds a
	// flat bonus on top of the keyword tier score.
	Intensifiers map[string][]string `yaml:"intensifiers"`

	Sentiment struct {
		Negative map[string]int `yaml:"negative"`
		Positive map[string]int `yaml:"positive"`
	} `yaml:"sentiment"`

	IsolationPhrases []string `yaml:"isolation_phrases"`
}

// LoadLexicon reads and compiles a lexicon from a YAML file.
func LoadLexicon(path string) (*CompiledLexicon, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	var lex Lexicon
	if err := yaml.Unmarshal(raw, &lex); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	return Compile(&lex)
}

// DefaultLexicon returns the built-in vocabulary.
func DefaultLexicon() *Lexicon {
	lex := &Lexicon{Version: "builtin-1"}

	lex.Keywords.High = []string{
		"kill myself", "suicide", "suicidal", "end my life", "want to die",
		"better off dead", "no reason to live", "hurt myself", "self harm",
	}
	lex.Keywords.Medium = []string{
		"hopeless", "can't go on", "give up on everything", "worthless",
		"no way out", "nothing matters", "can't take it anymore",
	}
	lex.Keywords.Low = []string{
		"so tired of everything", "overwhelmed", "falling apart",
		"can't cope", "breaking down",
	}

	lex.Intensifiers = map[string][]string{
		"hopelessness": {"never get better", "no point", "pointless"},
		"detachment":   {"nobody would care", "no one would notice", "feel numb"},
		"urgency":      {"tonight", "right now", "can't wait any longer"},
		"finality":     {"goodbye", "one last time", "final decision"},
	}

	lex.Sentiment.Negative = map[string]int{
		"kill myself": -100,
		"suicide":     -90,
		"want to die": -90,
		"die":         -50,
		"hopeless":    -40,
		"worthless":   -40,
		"miserable":   -30,
		"alone":       -25,
		"empty":       -20,
		"pain":        -20,
		"hate":        -20,
		"scared":      -15,
		"sad":         -15,
		"tired":       -10,
	}
	lex.Sentiment.Positive = map[string]int{
		"hopeful":  20,
		"grateful": 20,
		"happy":    15,
		"better":   10,
		"calm":     10,
		"love":     10,
	}

	lex.IsolationPhrases = []string{
		"no one understands", "all alone", "nobody cares",
		"completely alone", "no one to talk to",
	}

	return lex
}

// CompiledLexicon holds the lexicon with phrase matchers precompiled for
// whole-word, case-insensitive matching. "suicidewatch.org" must not match
// the word "suicide".
type CompiledLexicon struct {
	Version string

	high         []phraseMatcher
	medium       []phraseMatcher
	low          []phraseMatcher
	intensifiers []phraseMatcher
	sentiment    []weightedMatcher
	isolation    []phraseMatcher
}

type phraseMatcher struct {
	phrase string
	re     *regexp.Regexp
}

type weightedMatcher struct {
	phraseMatcher
	weight int
}

func compilePhrase(phrase string) (phraseMatcher, error) {
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(strings.ToLower(phrase)) + `\b`)
	if err != nil {
		return phraseMatcher{}, fmt.Errorf("compile phrase %q: %w", phrase, err)
	}
	return phraseMatcher{phrase: phrase, re: re}, nil
}

func compileAll(phrases []string) ([]phraseMatcher, error) {
	out := make([]phraseMatcher, 0, len(phrases))
	for _, p := range phrases {
		m, err := compilePhrase(p)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Compile precompiles all lexicon phrases into matchers.
func Compile(lex *Lexicon) (*CompiledLexicon, error) {
	c := &CompiledLexicon{Version: lex.Version}

	var err error
	if c.high, err = compileAll(lex.Keywords.High); err != nil {
		return nil, err
	}
	if c.medium, err = compileAll(lex.Keywords.Medium); err != nil {
		return nil, err
	}
	if c.low, err = compileAll(lex.Keywords.Low); err != nil {
		return nil, err
	}
	for _, phrases := range lex.Intensifiers {
		ms, err := compileAll(phrases)
		if err != nil {
			return nil, err
		}
		c.intensifiers = append(c.intensifiers, ms...)
	}
	for phrase, weight := range lex.Sentiment.Negative {
		m, err := compilePhrase(phrase)
		if err != nil {
			return nil, err
		}
		c.sentiment = append(c.sentiment, weightedMatcher{phraseMatcher: m, weight: weight})
	}
	for phrase, weight := range lex.Sentiment.Positive {
		m, err := compilePhrase(phrase)
		if err != nil {
			return nil, err
		}
		c.sentiment = append(c.sentiment, weightedMatcher{phraseMatcher: m, weight: weight})
	}
	if c.isolation, err = compileAll(lex.IsolationPhrases); err != nil {
		return nil, err
	}
	return c, nil
}

// MustDefault compiles the built-in lexicon, panicking on failure. The
// built-in phrases are static, so a failure is a programming error.
func MustDefault() *CompiledLexicon {
	c, err := Compile(DefaultLexicon())
	if err != nil {
		panic(err)
	}
	return c
}
