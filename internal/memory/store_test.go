package memory

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock is a controllable clock for store tests.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestStore(t *testing.T) (*Store, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	opts := DefaultOptions()
	opts.AutoSaveInterval = 0
	opts.SaveDebounce = 0
	opts.Clock = clock.Now
	return NewStore(t.TempDir(), nil, opts), clock
}

func TestGetOrCreateUserDefaults(t *testing.T) {
	s, _ := newTestStore(t)

	u := s.GetOrCreateUser("ash")
	assert.Equal(t, TierStranger, u.Tier)
	assert.Equal(t, "neutral", u.Vibe)
	assert.Equal(t, 0.5, u.WorksWith.Roasting)
	assert.Equal(t, 0.5, u.WorksWith.Vulgar)
	assert.Equal(t, 0, u.Interactions)

	// Returned record is a copy; mutating it must not touch the store.
	u.Interactions = 99
	assert.Equal(t, 0, s.GetOrCreateUser("ash").Interactions)
}

func TestTierProgressionIsMonotonic(t *testing.T) {
	s, _ := newTestStore(t)

	seen := []string{TierStranger}
	for i := 0; i < 600; i++ {
		s.RecordInteraction("ash", "coolhole", "hello there")
		tier := s.GetOrCreateUser("ash").Tier
		if tier != seen[len(seen)-1] {
			seen = append(seen, tier)
		}
	}
	assert.Equal(t, []string{TierStranger, TierAcquaintance, TierFriend, TierClose}, seen)
}

func TestTierAfter201Interactions(t *testing.T) {
	s, _ := newTestStore(t)

	for i := 0; i < 201; i++ {
		s.RecordInteraction("ash", "coolhole", "hey")
	}
	assert.Equal(t, TierFriend, s.GetOrCreateUser("ash").Tier)
}

func TestRecordInteractionNudgesAffinities(t *testing.T) {
	s, _ := newTestStore(t)

	s.RecordInteraction("ash", "coolhole", "fuck the government narrative")
	u := s.GetOrCreateUser("ash")
	assert.InDelta(t, 0.55, u.WorksWith.Vulgar, 1e-9)
	assert.InDelta(t, 0.55, u.WorksWith.Conspiracies, 1e-9)

	// Clamped at 1 no matter how many matches.
	for i := 0; i < 20; i++ {
		s.RecordInteraction("ash", "coolhole", "fuck")
	}
	assert.LessOrEqual(t, s.GetOrCreateUser("ash").WorksWith.Vulgar, 1.0)
}

func TestStrangerGetsNoUserContext(t *testing.T) {
	s, _ := newTestStore(t)

	s.RecordInteraction("Ash", "coolhole", "hey")
	assert.Equal(t, "", s.UserContext("Ash", 100))
	assert.Equal(t, "", s.UserContext("nobody", 100))
}

func TestUserContextForFriend(t *testing.T) {
	s, clock := newTestStore(t)

	for i := 0; i < 201; i++ {
		s.RecordInteraction("ash", "coolhole", "hey")
	}
	clock.Advance(90 * 24 * time.Hour)

	ctx := s.UserContext("ash", 200)
	require.NotEmpty(t, ctx)
	assert.Contains(t, ctx, "ash")
	assert.Contains(t, ctx, TierFriend)
	assert.LessOrEqual(t, len(ctx), 200)
}

func TestUserContextRespectsBudget(t *testing.T) {
	s, _ := newTestStore(t)

	for i := 0; i < 201; i++ {
		s.RecordInteraction("someverylongusername", "coolhole", "hey")
	}
	for b := 1; b < 60; b++ {
		assert.LessOrEqual(t, len(s.UserContext("someverylongusername", b)), b)
	}
}

func TestCallbackMinimumAge(t *testing.T) {
	s, clock := newTestStore(t)

	s.AddCallback("ash", "the moon is a hologram", "", "coolhole")
	assert.Equal(t, "", s.GetCallback("ash", "", 200))

	clock.Advance(25 * time.Hour)
	got := s.GetCallback("ash", "", 200)
	assert.Contains(t, got, "the moon is a hologram")
}

func TestCallbackContextTagMatching(t *testing.T) {
	s, clock := newTestStore(t)

	s.AddCallback("ash", "pineapple belongs on pizza", "pizza", "coolhole")
	clock.Advance(48 * time.Hour)

	assert.Equal(t, "", s.GetCallback("ash", "talking about soup", 200))
	assert.Contains(t, s.GetCallback("ash", "best pizza toppings", 200), "pineapple")
}

func TestCallbackPrefersLeastReferenced(t *testing.T) {
	s, clock := newTestStore(t)

	s.AddCallback("ash", "first line", "", "coolhole")
	s.AddCallback("ash", "second line", "", "coolhole")
	clock.Advance(48 * time.Hour)

	first := s.GetCallback("ash", "", 200)
	second := s.GetCallback("ash", "", 200)
	assert.NotEqual(t, first, second)
}

func TestCallbackCapEvictsOldest(t *testing.T) {
	s, _ := newTestStore(t)

	for i := 0; i < callbacksPerUser+10; i++ {
		s.AddCallback("ash", strings.Repeat("x", i+1), "", "coolhole")
	}
	u := s.GetOrCreateUser("ash")
	require.Len(t, u.Callbacks, callbacksPerUser)
	// Oldest ten evicted: shortest remaining text is 11 chars.
	assert.Len(t, u.Callbacks[0].Text, 11)
}

func TestTopicContextThreshold(t *testing.T) {
	s, _ := newTestStore(t)

	s.SetTopicExpertise("lowconf", 0.2, []string{"a fact"}, nil)
	assert.Equal(t, "", s.TopicContext("lowconf", 200))
	assert.True(t, s.ShouldAdmitIgnorance("lowconf"))
	assert.True(t, s.ShouldAdmitIgnorance("never-heard-of-it"))

	s.SetTopicExpertise("birds", 0.5, []string{"birds aren't real"}, nil)
	got := s.TopicContext("birds", 200)
	assert.NotEmpty(t, got)
	assert.Contains(t, got, "birds aren't real")
	assert.False(t, s.ShouldAdmitIgnorance("birds"))
}

func TestTopicExpertisePhrasing(t *testing.T) {
	s, _ := newTestStore(t)

	s.SetTopicExpertise("chemtrails", 0.9, []string{"planes do it daily"}, nil)
	assert.Contains(t, s.TopicContext("chemtrails", 200), "expert")

	s.SetTopicExpertise("crypto", 0.7, []string{"mostly scams"}, nil)
	assert.Contains(t, s.TopicContext("crypto", 200), "know about")
}

func TestExpertiseFor(t *testing.T) {
	cases := []struct {
		confidence float64
		want       string
	}{
		{0.0, ExpertiseNone},
		{0.3, ExpertiseNone},
		{0.31, ExpertiseBasic},
		{0.6, ExpertiseBasic},
		{0.61, ExpertiseConfident},
		{0.8, ExpertiseConfident},
		{0.81, ExpertiseExpert},
		{1.0, ExpertiseExpert},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ExpertiseFor(c.confidence), "confidence %v", c.confidence)
	}
}

func TestDetectKnownTopic(t *testing.T) {
	s, _ := newTestStore(t)

	s.SetTopicExpertise("birds", 0.5, nil, nil)
	assert.Equal(t, "birds", s.DetectKnownTopic("what do you think about BIRDS then"))
	assert.Equal(t, "", s.DetectKnownTopic("nothing relevant here"))

	// Mention counter bumped on each detection.
	s.DetectKnownTopic("birds again")
	assert.Equal(t, 2, s.topics["birds"].TotalMentions)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 10))
	assert.Equal(t, "hello", truncate("hello", 0))
	assert.Equal(t, "he", truncate("hello", 2))
	got := truncate("hello world this is long", 10)
	assert.Len(t, got, 10)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestTruncateNeverSplitsRunes(t *testing.T) {
	s := "pizza \U0001F355\U0001F355\U0001F355"
	for max := 1; max < len(s); max++ {
		got := truncate(s, max)
		assert.True(t, utf8.ValidString(got), "maxChars=%d got=%q", max, got)
		assert.LessOrEqual(t, len(got), max)
	}
	// Cut would land mid-emoji; the ellipsis backs off to the boundary.
	assert.Equal(t, "pizza ...", truncate(s, 10))
}
