package memory

import "time"

// Relationship tiers, in strictly increasing order. Progression is
// monotonic: a user never moves back down.
const (
	TierStranger     = "stranger"
	TierAcquaintance = "acquaintance"
	TierFriend       = "friend"
	TierClose        = "close"
)

// tierRank maps tiers to their order for monotonicity checks.
var tierRank = map[string]int{
	TierStranger:     0,
	TierAcquaintance: 1,
	TierFriend:       2,
	TierClose:        3,
}

// Affinities are per-user behavioral dials in 0..1 describing what lands
// with this person. All default to 0.5 (unknown).
type Affinities struct {
	Roasting     float64 `json:"roasting"`
	Serious      float64 `json:"serious"`
	Conspiracies float64 `json:"conspiracies"`
	Vulgar       float64 `json:"vulgar"`
}

// Callback is a stored past remark that can be resurfaced later.
type Callback struct {
	Text            string    `json:"text"`
	Context         string    `json:"context,omitempty"`
	Platform        string    `json:"platform"`
	Timestamp       time.Time `json:"timestamp"`
	TimesReferenced int       `json:"times_referenced"`
}

// UserRecord is everything known about one user. Owned by the Store;
// mutated only through its API.
type UserRecord struct {
	ID           string     `json:"id"`
	Platforms    []string   `json:"platforms"`
	FirstMet     time.Time  `json:"first_met"`
	LastSeen     time.Time  `json:"last_seen"`
	Interactions int        `json:"interactions"`
	Tier         string     `json:"tier"`
	Vibe         string     `json:"vibe"`
	WorksWith    Affinities `json:"works_with"`
	Callbacks    []Callback `json:"callbacks"`
}

// Topic expertise levels, a pure function of confidence.
const (
	ExpertiseNone      = "none"
	ExpertiseBasic     = "basic"
	ExpertiseConfident = "confident"
	ExpertiseExpert    = "expert"
)

// AdmitIgnoranceThreshold is a hard contract: below this confidence the
// store injects no topic context and the bot should admit it knows nothing.
const AdmitIgnoranceThreshold = 0.3

// ExpertiseFor derives the tier from confidence.
func ExpertiseFor(confidence float64) string {
	switch {
	case confidence > 0.8:
		return ExpertiseExpert
	case confidence > 0.6:
		return ExpertiseConfident
	case confidence > AdmitIgnoranceThreshold:
		return ExpertiseBasic
	default:
		return ExpertiseNone
	}
}

// TopicRecord is accumulated knowledge about one topic.
type TopicRecord struct {
	Name          string    `json:"name"`
	Confidence    float64   `json:"confidence"`
	Expertise     string    `json:"expertise"`
	Facts         []string  `json:"facts"`
	Opinions      []string  `json:"opinions"`
	TotalMentions int       `json:"total_mentions"`
	LastMentioned time.Time `json:"last_mentioned,omitzero"`
}

// ContextEntry is one line of recent conversation on a platform.
type ContextEntry struct {
	Platform  string    `json:"platform"`
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationState tracks the active topic per platform. Ephemeral in
// spirit (recomputed as messages arrive) but persisted for continuity.
type ConversationState struct {
	Platform  string    `json:"platform"`
	Topic     string    `json:"topic,omitempty"`
	Depth     int       `json:"depth"`
	StartedAt time.Time `json:"started_at"`
}

// RunningGag is a community-wide recurring phrase.
type RunningGag struct {
	Phrase    string    `json:"phrase"`
	Origin    string    `json:"origin"`
	Usage     string    `json:"usage"`
	AddedAt   time.Time `json:"added_at"`
	TimesUsed int       `json:"times_used"`
}

// Community holds knowledge that belongs to a platform's crowd rather than
// any single user.
type Community struct {
	Slang       map[string][]string `json:"-"`
	RunningGags []RunningGag        `json:"runningGags"`
	Memes       []string            `json:"memes"`
}

// MemorableMoment is a notable event worth bringing up again.
type MemorableMoment struct {
	Description string    `json:"description"`
	Username    string    `json:"username,omitempty"`
	Platform    string    `json:"platform,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Dream is a generated dream fragment, kept purely for flavor.
type Dream struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Per-collection caps.
const (
	callbacksPerUser = 50
	maxRunningGags   = 100
	maxDreams        = 50
)

// callbackMinAge is how old a callback must be before it is eligible for
// resurfacing, so very recent lines are not parroted back.
const callbackMinAge = 24 * time.Hour

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
