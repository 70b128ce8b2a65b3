// /internal/config/tables.go
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// PlatformProfile caps shaped output per platform. Static configuration,
// never mutated at runtime.
type PlatformProfile struct {
	MaxWords      int  `yaml:"max_words"`
	MaxSentences  int  `yaml:"max_sentences"`
	AllowMarkdown bool `yaml:"allow_markdown"`
	AllowEmoji    bool `yaml:"allow_emoji"`
}

// LengthTarget is the ideal (not maximum) response size used when tuning
// generation parameters.
type LengthTarget struct {
	Words     int `yaml:"words"`
	Sentences int `yaml:"sentences"`
}

// BaseValues are the tuned personality constants the behavior computation
// starts from.
type BaseValues struct {
	Vulgarity  float64 `yaml:"vulgarity"`
	Formality  float64 `yaml:"formality"`
	Chaos      float64 `yaml:"chaos"`
	Conspiracy float64 `yaml:"conspiracy"`
	Engagement float64 `yaml:"engagement"`
	Confidence float64 `yaml:"confidence"`
	Humor      float64 `yaml:"humor"`
}

// PatternCategory is one named cleanup rule applied by the shaper.
// Categories are applied in slice order.
type PatternCategory struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	re      *regexp.Regexp
}

// Apply strips all matches from text.
func (c *PatternCategory) Apply(text string) string {
	return c.re.ReplaceAllString(text, "")
}

// Tables bundles every data-driven heuristic: stop sequences, banned pattern
// categories, and the keyword regexes used for affinity nudges and behavior
// modifiers. Kept out of pipeline code so they are tunable without touching
// logic.
type Tables struct {
	StopSequences  []string          `yaml:"stop_sequences"`
	BannedPatterns []PatternCategory `yaml:"banned_patterns"`

	Profanity  string `yaml:"profanity"`
	Conspiracy string `yaml:"conspiracy"`
	Tech       string `yaml:"tech"`
	HumorCue   string `yaml:"humor_cue"`
	Roastable  string `yaml:"roastable"`
	Serious    string `yaml:"serious"`
	Annoyance  string `yaml:"annoyance"`
	Positive   string `yaml:"positive"`
	Negative   string `yaml:"negative"`
	HighEnergy string `yaml:"high_energy"`
	LowEnergy  string `yaml:"low_energy"`

	TrailingGarbage []string `yaml:"trailing_garbage"`

	Platforms       map[string]PlatformProfile `yaml:"platforms"`
	DefaultPlatform string                     `yaml:"default_platform"`
	LengthTargets   map[string]LengthTarget    `yaml:"length_targets"`

	Base BaseValues `yaml:"base_values"`

	ProfanityRe  *regexp.Regexp `yaml:"-"`
	ConspiracyRe *regexp.Regexp `yaml:"-"`
	TechRe       *regexp.Regexp `yaml:"-"`
	HumorCueRe   *regexp.Regexp `yaml:"-"`
	RoastableRe  *regexp.Regexp `yaml:"-"`
	SeriousRe    *regexp.Regexp `yaml:"-"`
	AnnoyanceRe  *regexp.Regexp `yaml:"-"`
	PositiveRe   *regexp.Regexp `yaml:"-"`
	NegativeRe   *regexp.Regexp `yaml:"-"`
	HighEnergyRe *regexp.Regexp `yaml:"-"`
	LowEnergyRe  *regexp.Regexp `yaml:"-"`

	trailingRes []*regexp.Regexp
}

// DefaultTables returns the built-in tables, compiled and ready.
func DefaultTables() *Tables {
	t := &Tables{
		StopSequences: []string{
			"speaking of which",
			"if that makes sense",
			"does that make sense",
			"you know what i mean",
			"let me know if",
			"would be super helpful",
			"i think you meant",
			"let's keep it that way",
			"based on actual",
			"comment suggests",
			"i replied with",
			"i said with",
			"shaking my head",
			"with a chuckle",
			"with a laugh",
			"with a smile",
			"with a grin",
		},
		BannedPatterns: []PatternCategory{
			{Name: "hedging", Pattern: `(?i)\b(basically|essentially|kind of|sort of|pretty much|I think|I guess|I mean|you know)\b`},
			{Name: "corporate", Pattern: `(?i)(would be super helpful|I think you meant|let's keep it that way|based on actual|comment suggests)`},
			{Name: "narration", Pattern: `(?i)(I replied with a|I said with a|shaking my head|with a (chuckle|laugh|smile|grin))`},
			{Name: "explaining", Pattern: `(?i)(if that makes sense|if you know what I mean|get what I'm saying|does that make sense)`},
			{Name: "filler_prefix", Pattern: `(?i)^(look,|dude,|man,|honestly,|so,|well,|okay,|alright,)\s*`},
		},
		Profanity:  `(?i)\b(fuck|shit|damn|hell)\b`,
		Conspiracy: `(?i)(conspiracy|illuminati|government|they want|mainstream|narrative|coverup|fake|elite|control)`,
		Tech:       `(?i)(computer|gaming|steam|discord|twitch|youtube|internet|meme|reddit|4chan|twitter)`,
		HumorCue:   `(?i)(lol|lmao|haha|rofl|funny|joke|😂)`,
		Roastable:  `(?i)(stupid|dumb|fail|mistake|wrong|forgot|oops)`,
		Serious:    `(?i)(help|advice|serious|problem|worried|concerned|scared)`,
		Annoyance:  `(?i)(stop|stfu|shut up|annoying|leave me alone|go away)`,
		Positive:   `(?i)(lol|haha|lmao|good|nice|love|based)`,
		Negative:   `(?i)(stop|cringe|stfu|shut up|annoying)`,
		HighEnergy: `(?i)(!{2,}|[A-Z]{4,}|lol|haha|lmao)`,
		LowEnergy:  `(?i)(\.\.\.|tired|bored|whatever|meh)`,
		TrailingGarbage: []string{
			`(?i)\s+(and|but|or|so|yet|because|since|though|although|if|when|where|while|as)\s*[.!?]*$`,
			`(?i)\s+(to|at|in|on|for|with|from|of|by|about)\s*[.!?]*$`,
			`(?i)\s+(the|a|an)\s*[.!?]*$`,
			`(?i)\b(idk|tbh|tho|like|just|actually|literally)\s*[.!?]*$`,
		},
		Platforms: map[string]PlatformProfile{
			"voice":    {MaxWords: 12, MaxSentences: 2, AllowMarkdown: false, AllowEmoji: false},
			"coolhole": {MaxWords: 50, MaxSentences: 5, AllowMarkdown: false, AllowEmoji: true},
			"discord":  {MaxWords: 80, MaxSentences: 10, AllowMarkdown: true, AllowEmoji: true},
			"twitch":   {MaxWords: 60, MaxSentences: 5, AllowMarkdown: false, AllowEmoji: true},
		},
		DefaultPlatform: "coolhole",
		LengthTargets: map[string]LengthTarget{
			"voice":    {Words: 8, Sentences: 1},
			"coolhole": {Words: 25, Sentences: 2},
			"discord":  {Words: 40, Sentences: 3},
			"twitch":   {Words: 20, Sentences: 2},
		},
		Base: BaseValues{
			Vulgarity:  0.9,
			Formality:  0.05,
			Chaos:      0.5,
			Conspiracy: 0.8,
			Engagement: 0.9,
			Confidence: 0.8,
			Humor:      0.85,
		},
	}
	if err := t.Compile(); err != nil {
		// Built-in tables must always compile.
		panic(err)
	}
	return t
}

// LoadTables reads a YAML override file on top of the defaults. Empty path
// returns the defaults unchanged.
func LoadTables(path string) (*Tables, error) {
	t := DefaultTables()
	if path == "" {
		return t, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tables: %w", err)
	}
	if err := yaml.Unmarshal(b, t); err != nil {
		return nil, fmt.Errorf("parse tables: %w", err)
	}
	if err := t.Compile(); err != nil {
		return nil, err
	}
	return t, nil
}

// Compile builds all regexes. Must be called after any mutation of the
// pattern strings.
func (t *Tables) Compile() error {
	var err error
	compile := func(name, expr string) *regexp.Regexp {
		if err != nil || expr == "" {
			return nil
		}
		var re *regexp.Regexp
		re, err = regexp.Compile(expr)
		if err != nil {
			err = fmt.Errorf("compile %s: %w", name, err)
		}
		return re
	}
	for i := range t.BannedPatterns {
		t.BannedPatterns[i].re = compile(t.BannedPatterns[i].Name, t.BannedPatterns[i].Pattern)
	}
	t.ProfanityRe = compile("profanity", t.Profanity)
	t.ConspiracyRe = compile("conspiracy", t.Conspiracy)
	t.TechRe = compile("tech", t.Tech)
	t.HumorCueRe = compile("humor_cue", t.HumorCue)
	t.RoastableRe = compile("roastable", t.Roastable)
	t.SeriousRe = compile("serious", t.Serious)
	t.AnnoyanceRe = compile("annoyance", t.Annoyance)
	t.PositiveRe = compile("positive", t.Positive)
	t.NegativeRe = compile("negative", t.Negative)
	t.HighEnergyRe = compile("high_energy", t.HighEnergy)
	t.LowEnergyRe = compile("low_energy", t.LowEnergy)
	t.trailingRes = t.trailingRes[:0]
	for i, expr := range t.TrailingGarbage {
		t.trailingRes = append(t.trailingRes, compile(fmt.Sprintf("trailing_garbage[%d]", i), expr))
	}
	return err
}

// Profile returns the platform profile, falling back to the default
// platform for unknown names.
func (t *Tables) Profile(platform string) PlatformProfile {
	if p, ok := t.Platforms[platform]; ok {
		return p
	}
	return t.Platforms[t.DefaultPlatform]
}

// Target returns the generation length target for a platform.
func (t *Tables) Target(platform string) LengthTarget {
	if lt, ok := t.LengthTargets[platform]; ok {
		return lt
	}
	return t.LengthTargets[t.DefaultPlatform]
}

// TrailingRes exposes the compiled trailing-garbage patterns in order.
func (t *Tables) TrailingRes() []*regexp.Regexp {
	return t.trailingRes
}
