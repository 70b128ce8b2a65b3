// Package relationship turns durable user records into per-message social
// decisions: how much license the bot has, whether to roast, when to back
// off, and what it learned from the user's reaction.
package relationship

import (
	"log"
	"strings"
	"unicode/utf8"

	"server-slunt/internal/config"
	"server-slunt/internal/memory"
	"server-slunt/internal/rng"
)

// RoastChance is the probability gate applied once all roast conditions
// hold.
const RoastChance = 0.3

// SeriousChance gates serious mode when the topic warrants it.
const SeriousChance = 0.4

// Feedback step sizes. Negative feedback corrects faster than positive
// reinforcement compounds.
const (
	positiveStep = 0.05
	negativeStep = 0.10
)

// backOffDepth is the topic depth past which the bot disengages regardless
// of user mood.
const backOffDepth = 12

// Model reads from the knowledge store and applies the social heuristics.
type Model struct {
	store  *memory.Store
	tables *config.Tables
	rand   rng.Source
}

// New creates a Model. rand drives the probabilistic gates and must not be
// nil.
func New(store *memory.Store, tables *config.Tables, rand rng.Source) *Model {
	if tables == nil {
		tables = config.DefaultTables()
	}
	return &Model{store: store, tables: tables, rand: rand}
}

// State is a read-only view of the relationship with one user.
type State struct {
	Tier         string
	Vibe         string
	Tolerance    float64
	WorksWith    memory.Affinities
	Interactions int
}

// Relationship returns the current social state for a user.
func (m *Model) Relationship(username string) State {
	u := m.store.GetOrCreateUser(username)
	return State{
		Tier:         u.Tier,
		Vibe:         u.Vibe,
		Tolerance:    Tolerance(u.Tier),
		WorksWith:    u.WorksWith,
		Interactions: u.Interactions,
	}
}

// Tolerance is a pure function of tier: how much license the bot has with
// this user.
func Tolerance(tier string) float64 {
	switch tier {
	case memory.TierStranger:
		return 0.3
	case memory.TierAcquaintance:
		return 0.5
	case memory.TierFriend:
		return 0.8
	case memory.TierClose:
		return 1.0
	}
	return 0.5
}

// ShouldRoast decides whether the message is a roast setup worth taking.
// Never true for strangers; otherwise requires the roasting affinity, a
// roastable message, high tolerance, and a 30% roll.
func (m *Model) ShouldRoast(username, message string) bool {
	u := m.store.GetOrCreateUser(username)
	if u.Tier == memory.TierStranger {
		return false
	}
	if u.WorksWith.Roasting < 0.4 {
		return false
	}
	if !m.tables.RoastableRe.MatchString(message) {
		return false
	}
	return Tolerance(u.Tier) > 0.6 && m.rand.Float64() < RoastChance
}

// ShouldBeSerious checks for help/advice language from users who respond to
// the serious register.
func (m *Model) ShouldBeSerious(username, message string) bool {
	u := m.store.GetOrCreateUser(username)
	if u.WorksWith.Serious < 0.6 {
		return false
	}
	return m.tables.SeriousRe.MatchString(message) && m.rand.Float64() < SeriousChance
}

// VulgarityMultiplier scales the vulgar register for this user. Strangers
// get half their preference.
func (m *Model) VulgarityMultiplier(username string) float64 {
	u := m.store.GetOrCreateUser(username)
	if u.Tier == memory.TierStranger {
		return u.WorksWith.Vulgar * 0.5
	}
	return u.WorksWith.Vulgar
}

// isGettingAnnoyed checks the user's last 5 messages on the platform for
// annoyance signals.
func (m *Model) isGettingAnnoyed(username, platform string) bool {
	entries := m.store.RecentEntries(platform, 0)
	var mine []memory.ContextEntry
	for _, e := range entries {
		if e.Speaker == username {
			mine = append(mine, e)
		}
	}
	if len(mine) > 5 {
		mine = mine[len(mine)-5:]
	}
	count := 0
	for _, e := range mine {
		if m.tables.AnnoyanceRe.MatchString(e.Text) {
			count++
		}
	}
	return count >= 2
}

// ShouldBackOff is true when the user is signalling annoyance or the topic
// is exhausted. Two independent triggers, either sufficient.
func (m *Model) ShouldBackOff(username, platform string) bool {
	if m.isGettingAnnoyed(username, platform) {
		log.Printf("[RELATIONSHIP] %s getting annoyed, backing off", username)
		return true
	}
	if m.store.TopicDepth(platform) > backOffDepth {
		log.Printf("[RELATIONSHIP] topic exhaustion on %s, backing off", platform)
		return true
	}
	return false
}

// LearnFromInteraction nudges affinities based on how the user reacted to
// the bot's response style. Positive feedback reinforces gently; negative
// feedback corrects twice as hard.
func (m *Model) LearnFromInteraction(username, botResponse, userReaction string) {
	if userReaction == "" {
		return
	}
	positive := m.tables.PositiveRe.MatchString(userReaction)
	negative := m.tables.NegativeRe.MatchString(userReaction)

	switch {
	case positive:
		if m.tables.ProfanityRe.MatchString(botResponse) {
			m.store.NudgeAffinity(username, "vulgar", positiveStep)
		}
		if m.tables.ConspiracyRe.MatchString(botResponse) {
			m.store.NudgeAffinity(username, "conspiracies", positiveStep)
		}
	case negative:
		if m.tables.ProfanityRe.MatchString(botResponse) {
			m.store.NudgeAffinity(username, "vulgar", -negativeStep)
		}
	}
}

// BanterIntensity combines tier and learned affinities into one 0.1..1
// dial.
func (m *Model) BanterIntensity(username string) float64 {
	u := m.store.GetOrCreateUser(username)
	intensity := map[string]float64{
		memory.TierStranger:     0.2,
		memory.TierAcquaintance: 0.4,
		memory.TierFriend:       0.7,
		memory.TierClose:        0.9,
	}[u.Tier]
	if intensity == 0 {
		intensity = 0.5
	}
	intensity *= (u.WorksWith.Roasting + u.WorksWith.Vulgar) / 2
	if intensity < 0.1 {
		return 0.1
	}
	if intensity > 1.0 {
		return 1.0
	}
	return intensity
}

// Modifiers aggregates every social decision into one read for the
// behavior computation.
type Modifiers struct {
	Tier                string
	Vibe                string
	ToleranceLevel      float64
	VulgarityMultiplier float64
	BanterIntensity     float64
	ShouldRoast         bool
	ShouldBeSerious     bool
	ShouldBackOff       bool
	MatchHighEnergy     bool
	MatchLowEnergy      bool
}

// GetModifiers computes the full modifier set for one inbound message.
func (m *Model) GetModifiers(username, platform, message string) Modifiers {
	rel := m.Relationship(username)
	return Modifiers{
		Tier:                rel.Tier,
		Vibe:                rel.Vibe,
		ToleranceLevel:      rel.Tolerance,
		VulgarityMultiplier: m.VulgarityMultiplier(username),
		BanterIntensity:     m.BanterIntensity(username),
		ShouldRoast:         m.ShouldRoast(username, message),
		ShouldBeSerious:     m.ShouldBeSerious(username, message),
		ShouldBackOff:       m.ShouldBackOff(username, platform),
		MatchHighEnergy:     m.tables.HighEnergyRe.MatchString(message),
		MatchLowEnergy:      m.tables.LowEnergyRe.MatchString(message),
	}
}

// ContextString renders a minimal relationship line for the prompt, only
// when something is notable.
func (m *Model) ContextString(username string, mods Modifiers, maxChars int) string {
	var parts []string
	switch mods.Tier {
	case memory.TierClose:
		parts = append(parts, username+" is your close friend")
	case memory.TierStranger:
		parts = append(parts, username+" is a stranger")
	}
	if mods.ShouldBackOff {
		parts = append(parts, "back off")
	}
	if mods.ShouldBeSerious {
		parts = append(parts, "be serious")
	}
	if mods.ShouldRoast {
		parts = append(parts, "roast them")
	}
	out := strings.Join(parts, ", ")
	if maxChars > 3 && len(out) > maxChars {
		cut := maxChars - 3
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut] + "..."
	}
	return out
}
