// Package shaper turns raw generated text into a platform-safe, length-bound
// message, or rejects it outright. Generate naturally, then shape for the
// platform.
package shaper

import (
	"errors"
	"regexp"
	"strings"

	"server-slunt/internal/behavior"
	"server-slunt/internal/config"
	"server-slunt/internal/rng"
)

// ErrRejected signals that no usable output could be produced and the caller
// should regenerate. Never returned alongside partial text.
var ErrRejected = errors.New("shaper: response rejected")

// TwoSentenceChance is the probability a two-sentence response passes the
// sentence collapse uncut.
const TwoSentenceChance = 0.1

var (
	sentenceRe     = regexp.MustCompile(`[^.!?]+[.!?]+`)
	midQuoteRe     = regexp.MustCompile(`\s*["']\s*`)
	doubleSpaceRe  = regexp.MustCompile(`\s{2,}`)
	orphanPunctRe  = regexp.MustCompile(`\s+[,;:]$`)
	spaceBeforeRe  = regexp.MustCompile(`\s+([.!?])`)
	markdownRe     = regexp.MustCompile("[*_~`]")
	emojiRe        = regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}\x{2600}-\x{26FF}]`)
	punctOnlyRe    = regexp.MustCompile(`^[^a-zA-Z0-9]+$`)
	orphanEndingRe = regexp.MustCompile(`(?i)\s+(and|but|or|to|at|in|on)\s*$`)
	endsPunctRe    = regexp.MustCompile(`[.!?]$`)
)

// Shaper applies the fixed cleanup pipeline. Pure given (text, platform,
// state) plus the tables and the injected random source.
type Shaper struct {
	tables *config.Tables
	rand   rng.Source
}

// New creates a Shaper.
func New(tables *config.Tables, rand rng.Source) *Shaper {
	if tables == nil {
		tables = config.DefaultTables()
	}
	return &Shaper{tables: tables, rand: rand}
}

// Shape runs the linear pipeline. Either a fully shaped string comes back or
// ErrRejected; it never returns partially cleaned text.
func (sh *Shaper) Shape(raw, platform string, state *behavior.State) (string, error) {
	// 1. Stop-sequence check, the only hard rejection gate before validity.
	if sh.containsStopSequence(raw) {
		return "", ErrRejected
	}

	text := removeWrappingQuotes(raw)
	text = sh.removeBannedPatterns(text)
	text = sh.cleanTrailing(text)

	// 5. Multi-sentence collapse, chat platforms only. Single sentences pass
	// unchanged; two sentences occasionally survive for variety; anything
	// longer is rambling and keeps only the opener.
	if platform != "voice" {
		text = sh.collapseSentences(text)
	}

	text = sh.trimToLength(text, platform, state)
	text = sh.applyPlatformFormatting(text, platform)

	text = strings.TrimSpace(text)
	if !isValid(text) {
		return "", ErrRejected
	}
	return text, nil
}

func (sh *Shaper) containsStopSequence(text string) bool {
	lower := strings.ToLower(text)
	for _, seq := range sh.tables.StopSequences {
		if strings.Contains(lower, seq) {
			return true
		}
	}
	return false
}

// removeWrappingQuotes strips one layer of wrapping quotes and any stray
// quote characters the model scattered mid-response.
func removeWrappingQuotes(text string) string {
	cleaned := strings.TrimSpace(text)
	if len(cleaned) >= 2 {
		if (strings.HasPrefix(cleaned, `"`) && strings.HasSuffix(cleaned, `"`)) ||
			(strings.HasPrefix(cleaned, `'`) && strings.HasSuffix(cleaned, `'`)) {
			cleaned = strings.TrimSpace(cleaned[1 : len(cleaned)-1])
		}
	}
	cleaned = strings.TrimSpace(midQuoteRe.ReplaceAllString(cleaned, " "))
	return doubleSpaceRe.ReplaceAllString(cleaned, " ")
}

func (sh *Shaper) removeBannedPatterns(text string) string {
	cleaned := text
	for i := range sh.tables.BannedPatterns {
		cleaned = sh.tables.BannedPatterns[i].Apply(cleaned)
	}
	return doubleSpaceRe.ReplaceAllString(cleaned, " ")
}

func (sh *Shaper) cleanTrailing(text string) string {
	cleaned := text
	for _, re := range sh.tables.TrailingRes() {
		cleaned = re.ReplaceAllString(cleaned, "")
	}
	cleaned = orphanPunctRe.ReplaceAllString(cleaned, "")
	return spaceBeforeRe.ReplaceAllString(cleaned, "$1")
}

func (sh *Shaper) collapseSentences(text string) string {
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) <= 1 {
		return text
	}
	if len(sentences) == 2 && sh.rand != nil && sh.rand.Float64() < TwoSentenceChance {
		return text
	}
	return strings.TrimSpace(sentences[0])
}

// trimToLength enforces the platform word and sentence caps, adjusted by the
// behavior state. Low energy shrinks, high chaos rambles, confusion cuts
// hardest.
func (sh *Shaper) trimToLength(text, platform string, state *behavior.State) string {
	profile := sh.tables.Profile(platform)
	maxWords := profile.MaxWords
	maxSentences := profile.MaxSentences

	if state != nil {
		if state.Energy < 0.5 {
			maxWords = maxWords * 7 / 10
		}
		if state.Chaos > 0.7 {
			maxWords = maxWords * 13 / 10
		}
		if state.Confusion > 0.5 {
			maxWords = maxWords * 6 / 10
			if maxSentences > 2 {
				maxSentences = 2
			}
		}
	}

	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{text}
	}
	if len(sentences) > maxSentences {
		sentences = sentences[:maxSentences]
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}
	trimmed := strings.Join(sentences, " ")

	words := strings.Fields(trimmed)
	if len(words) > maxWords {
		trimmed = strings.Join(words[:maxWords], " ")
		if !endsPunctRe.MatchString(trimmed) {
			trimmed += "."
		}
	}
	return trimmed
}

func (sh *Shaper) applyPlatformFormatting(text, platform string) string {
	profile := sh.tables.Profile(platform)
	if !profile.AllowMarkdown {
		text = markdownRe.ReplaceAllString(text, "")
	}
	if !profile.AllowEmoji {
		text = emojiRe.ReplaceAllString(text, "")
	}
	return text
}

// isValid is the final gate: non-empty, at least two characters, not
// punctuation-only, no orphaned conjunction or preposition at the end.
func isValid(text string) bool {
	if len(strings.TrimSpace(text)) < 2 {
		return false
	}
	if punctOnlyRe.MatchString(text) {
		return false
	}
	if orphanEndingRe.MatchString(text) {
		return false
	}
	return true
}

// RecommendedLength is the ideal response size for prompting, distinct from
// the hard caps Shape enforces.
type RecommendedLength struct {
	Words     int
	Sentences int
	Chars     int
}

// RecommendedLength derives a soft length target from the platform and the
// current state.
func (sh *Shaper) RecommendedLength(platform string, state *behavior.State) RecommendedLength {
	profile := sh.tables.Profile(platform)
	words := profile.MaxWords
	sentences := profile.MaxSentences

	if state != nil {
		if state.Energy < 0.5 {
			words = words * 6 / 10
			sentences = sentences / 2
			if sentences < 1 {
				sentences = 1
			}
		}
		if state.Chaos > 0.7 {
			words = words * 115 / 100
		}
		if state.Confusion > 0.5 {
			words = words / 2
			if sentences > 2 {
				sentences = 2
			}
		}
	}
	return RecommendedLength{Words: words, Sentences: sentences, Chars: words * 6}
}
