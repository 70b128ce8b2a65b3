package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTablesCompile(t *testing.T) {
	tables := DefaultTables()

	assert.True(t, tables.ProfanityRe.MatchString("what the fuck"))
	assert.True(t, tables.ConspiracyRe.MatchString("the government narrative"))
	assert.True(t, tables.RoastableRe.MatchString("I made a dumb mistake"))
	assert.False(t, tables.ProfanityRe.MatchString("perfectly polite"))
	assert.Len(t, tables.TrailingRes(), len(tables.TrailingGarbage))
}

func TestBannedPatternApply(t *testing.T) {
	tables := DefaultTables()

	var hedging *PatternCategory
	for i := range tables.BannedPatterns {
		if tables.BannedPatterns[i].Name == "hedging" {
			hedging = &tables.BannedPatterns[i]
		}
	}
	require.NotNil(t, hedging)
	assert.NotContains(t, hedging.Apply("basically a pizza"), "basically")
}

func TestProfileFallsBackToDefaultPlatform(t *testing.T) {
	tables := DefaultTables()

	p := tables.Profile("somewhere-new")
	assert.Equal(t, tables.Platforms["coolhole"], p)

	voice := tables.Profile("voice")
	assert.Equal(t, 12, voice.MaxWords)
	assert.False(t, voice.AllowMarkdown)
}

func TestTargetFallsBackToDefaultPlatform(t *testing.T) {
	tables := DefaultTables()
	assert.Equal(t, tables.LengthTargets["coolhole"], tables.Target("nowhere"))
}

func TestLoadTablesOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tables.yaml")
	override := `
profanity: '(?i)\b(zounds)\b'
platforms:
  coolhole:
    max_words: 10
    max_sentences: 1
    allow_markdown: false
    allow_emoji: false
`
	require.NoError(t, os.WriteFile(path, []byte(override), 0644))

	tables, err := LoadTables(path)
	require.NoError(t, err)
	assert.True(t, tables.ProfanityRe.MatchString("zounds"))
	assert.False(t, tables.ProfanityRe.MatchString("fuck"))
	assert.Equal(t, 10, tables.Profile("coolhole").MaxWords)
	// Untouched sections keep their defaults.
	assert.Equal(t, 12, tables.Profile("voice").MaxWords)
	assert.NotEmpty(t, tables.StopSequences)
}

func TestLoadTablesEmptyPathReturnsDefaults(t *testing.T) {
	tables, err := LoadTables("")
	require.NoError(t, err)
	assert.Equal(t, 0.9, tables.Base.Vulgarity)
}

func TestLoadTablesBadRegexFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tables.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profanity: '('\n"), 0644))

	_, err := LoadTables(path)
	assert.Error(t, err)
}
