package relationship

import (
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server-slunt/internal/memory"
	"server-slunt/internal/rng"
)

func newTestModel(t *testing.T, rand rng.Source) (*Model, *memory.Store) {
	t.Helper()
	opts := memory.DefaultOptions()
	opts.AutoSaveInterval = 0
	opts.SaveDebounce = 0
	opts.Clock = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	store := memory.NewStore(t.TempDir(), nil, opts)
	return New(store, nil, rand), store
}

func makeFriend(s *memory.Store, username string) {
	for i := 0; i < 160; i++ {
		s.RecordInteraction(username, "coolhole", "hello")
	}
}

func TestTolerance(t *testing.T) {
	assert.Equal(t, 0.3, Tolerance(memory.TierStranger))
	assert.Equal(t, 0.5, Tolerance(memory.TierAcquaintance))
	assert.Equal(t, 0.8, Tolerance(memory.TierFriend))
	assert.Equal(t, 1.0, Tolerance(memory.TierClose))
	assert.Equal(t, 0.5, Tolerance("unknown"))
}

func TestShouldRoastNeverForStrangers(t *testing.T) {
	m, _ := newTestModel(t, rng.Fixed(0))
	assert.False(t, m.ShouldRoast("newguy", "I did something stupid"))
}

func TestShouldRoastRequiresRoastableMessage(t *testing.T) {
	m, store := newTestModel(t, rng.Fixed(0))
	makeFriend(store, "ash")

	assert.False(t, m.ShouldRoast("ash", "lovely weather today"))
	assert.True(t, m.ShouldRoast("ash", "I did something stupid"))
}

func TestShouldRoastRequiresAffinity(t *testing.T) {
	m, store := newTestModel(t, rng.Fixed(0))
	makeFriend(store, "ash")

	store.NudgeAffinity("ash", "roasting", -0.2) // 0.5 -> 0.3, below the gate
	assert.False(t, m.ShouldRoast("ash", "I did something stupid"))
}

func TestShouldRoastProbabilityGate(t *testing.T) {
	m, store := newTestModel(t, rng.Fixed(0.9))
	makeFriend(store, "ash")
	assert.False(t, m.ShouldRoast("ash", "I did something stupid"))
}

func TestShouldRoastDistribution(t *testing.T) {
	m, store := newTestModel(t, rng.Default(42))
	makeFriend(store, "ash")

	hits := 0
	for i := 0; i < 1000; i++ {
		if m.ShouldRoast("ash", "I did something stupid") {
			hits++
		}
	}
	// 30% gate; allow generous slack for the seed.
	assert.Greater(t, hits, 200)
	assert.Less(t, hits, 400)
}

func TestShouldBeSerious(t *testing.T) {
	m, store := newTestModel(t, rng.Fixed(0))

	assert.False(t, m.ShouldBeSerious("ash", "I need advice, worried about work"))

	store.NudgeAffinity("ash", "serious", 0.2) // 0.5 -> 0.7
	assert.True(t, m.ShouldBeSerious("ash", "I need advice, worried about work"))
	assert.False(t, m.ShouldBeSerious("ash", "lmao pizza"))
}

func TestVulgarityMultiplierHalvedForStrangers(t *testing.T) {
	m, store := newTestModel(t, rng.Fixed(0))

	store.GetOrCreateUser("newguy")
	assert.InDelta(t, 0.25, m.VulgarityMultiplier("newguy"), 1e-9)

	makeFriend(store, "ash")
	assert.InDelta(t, 0.5, m.VulgarityMultiplier("ash"), 1e-9)
}

func TestShouldBackOffOnAnnoyance(t *testing.T) {
	m, store := newTestModel(t, rng.Fixed(0))

	store.PushContext("coolhole", "ash", "stop doing that")
	store.PushContext("coolhole", "ash", "seriously shut up")
	assert.True(t, m.ShouldBackOff("ash", "coolhole"))

	// One annoyed message is not enough.
	store2opts := memory.DefaultOptions()
	store2opts.AutoSaveInterval = 0
	store2opts.SaveDebounce = 0
	store2 := memory.NewStore(t.TempDir(), nil, store2opts)
	m2 := New(store2, nil, rng.Fixed(0))
	store2.PushContext("coolhole", "ash", "stop doing that")
	store2.PushContext("coolhole", "ash", "anyway pizza is good")
	assert.False(t, m2.ShouldBackOff("ash", "coolhole"))
}

func TestShouldBackOffIgnoresOtherSpeakers(t *testing.T) {
	m, store := newTestModel(t, rng.Fixed(0))

	store.PushContext("coolhole", "bob", "stop doing that")
	store.PushContext("coolhole", "bob", "shut up already")
	assert.False(t, m.ShouldBackOff("ash", "coolhole"))
}

func TestShouldBackOffOnTopicExhaustion(t *testing.T) {
	m, store := newTestModel(t, rng.Fixed(0))

	for i := 0; i < 13; i++ {
		store.UpdateConversationState("coolhole", "pizza")
	}
	assert.True(t, m.ShouldBackOff("ash", "coolhole"))
}

func TestLearnFromInteractionAsymmetry(t *testing.T) {
	m, store := newTestModel(t, rng.Fixed(0))

	m.LearnFromInteraction("ash", "fuck that noise", "lol nice")
	assert.InDelta(t, 0.55, store.GetOrCreateUser("ash").WorksWith.Vulgar, 1e-9)

	m.LearnFromInteraction("ash", "fuck that noise", "stop, cringe")
	assert.InDelta(t, 0.45, store.GetOrCreateUser("ash").WorksWith.Vulgar, 1e-9)

	// No reaction, no learning.
	m.LearnFromInteraction("ash", "fuck that noise", "")
	assert.InDelta(t, 0.45, store.GetOrCreateUser("ash").WorksWith.Vulgar, 1e-9)
}

func TestLearnFromInteractionConspiracies(t *testing.T) {
	m, store := newTestModel(t, rng.Fixed(0))

	m.LearnFromInteraction("ash", "the government knows about the narrative", "based")
	assert.InDelta(t, 0.55, store.GetOrCreateUser("ash").WorksWith.Conspiracies, 1e-9)
}

func TestBanterIntensity(t *testing.T) {
	m, store := newTestModel(t, rng.Fixed(0))

	// Stranger with default affinities: 0.2 * 0.5 = 0.1 floor.
	store.GetOrCreateUser("newguy")
	assert.InDelta(t, 0.1, m.BanterIntensity("newguy"), 1e-9)

	makeFriend(store, "ash")
	assert.InDelta(t, 0.35, m.BanterIntensity("ash"), 1e-9)
}

func TestGetModifiers(t *testing.T) {
	m, store := newTestModel(t, rng.Fixed(0))
	makeFriend(store, "ash")

	mods := m.GetModifiers("ash", "coolhole", "I did something stupid!!")
	require.Equal(t, memory.TierFriend, mods.Tier)
	assert.Equal(t, 0.8, mods.ToleranceLevel)
	assert.True(t, mods.ShouldRoast)
	assert.False(t, mods.ShouldBackOff)
	assert.True(t, mods.MatchHighEnergy)
	assert.False(t, mods.MatchLowEnergy)
}

func TestContextStringTruncatesOnRuneBoundary(t *testing.T) {
	m, _ := newTestModel(t, rng.Fixed(0))

	mods := Modifiers{Tier: memory.TierStranger}
	got := m.ContextString("pizza\U0001F355man", mods, 10)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "pizza...", got)
}
