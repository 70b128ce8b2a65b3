// Package behavior computes the per-message state vector that tunes
// generation parameters and output shaping. Change parameters, not context:
// this is the only place personality numbers are calculated.
package behavior

import (
	"log"
	"strings"
	"time"

	"server-slunt/internal/config"
	"server-slunt/internal/memory"
	"server-slunt/internal/relationship"
	"server-slunt/internal/rng"
)

// Time-of-day bands across the 24-hour clock.
const (
	LateNight = "late_night"
	Morning   = "morning"
	Afternoon = "afternoon"
	Evening   = "evening"
)

// State is the behavior vector, recomputed every message and never
// persisted. Every numeric dial is clamped to [0,1] after computation.
type State struct {
	Vulgarity  float64
	Formality  float64
	Chaos      float64
	Conspiracy float64
	Engagement float64
	Confidence float64
	Humor      float64
	Confusion  float64
	Energy     float64
	Drunk      float64
	TimeOfDay  string
}

// MentalState carries optional external signals (0..100 need levels, 0..1
// drunk). Absence of the whole struct skips those modifier steps.
type MentalState struct {
	Rest          float64
	Validation    float64
	Entertainment float64
	DrunkLevel    float64
	BreakActive   bool
}

// Input bundles everything the computation reads. Relationship and Mental
// are optional; missing collaborator signals never fail the computation.
type Input struct {
	Platform     string
	Username     string
	Message      string
	Relationship *relationship.Modifiers
	Mental       *MentalState
	Now          time.Time
}

// Computer derives behavior state from tuned base values and the tables.
type Computer struct {
	tables *config.Tables
	rand   rng.Source
}

// New creates a Computer.
func New(tables *config.Tables, rand rng.Source) *Computer {
	if tables == nil {
		tables = config.DefaultTables()
	}
	return &Computer{tables: tables, rand: rand}
}

// Compute runs the full modifier stack in fixed order. Each step only moves
// dials, never resets them; the final clamp guarantees every dial ends in
// [0,1].
func (c *Computer) Compute(in Input) State {
	base := c.tables.Base
	s := State{
		Vulgarity:  base.Vulgarity,
		Formality:  base.Formality,
		Chaos:      base.Chaos,
		Conspiracy: base.Conspiracy,
		Engagement: base.Engagement,
		Confidence: base.Confidence,
		Humor:      base.Humor,
	}
	confusionSet := false

	// 1. Relationship modifiers.
	if rel := in.Relationship; rel != nil {
		switch rel.Tier {
		case memory.TierFriend, memory.TierClose:
			s.Vulgarity += 0.1
			s.Formality -= 0.1
		case memory.TierStranger:
			s.Vulgarity = max(0.5, s.Vulgarity-0.2)
			s.Formality = min(0.4, s.Formality+0.2)
		}
		if rel.Vibe == "annoying" {
			s.Engagement = max(0.2, s.Engagement-0.4)
			s.Chaos += 0.2
		}
	}

	// 2. Mental-state modifiers, skipped entirely when the signal is absent.
	if m := in.Mental; m != nil {
		if m.Rest < 30 {
			s.Engagement = max(0.3, s.Engagement-0.3)
			s.Chaos += 0.3
			s.Confusion = 0.3
			confusionSet = true
			s.Humor += 0.1
		}
		if m.Validation < 30 {
			s.Vulgarity += 0.15
			s.Engagement = max(0.4, s.Engagement-0.2)
			s.Formality -= 0.05
		}
		if m.Entertainment < 40 {
			s.Chaos = min(0.9, s.Chaos+0.4)
			s.Engagement = max(0.5, s.Engagement-0.1)
			s.Humor += 0.15
		}

		// Mental break: the single largest modifier in the system.
		if m.BreakActive {
			s.Chaos += 0.5
			s.Confusion = 0.6
			confusionSet = true
			s.Vulgarity += 0.2
			s.Humor += 0.2
		}
	}

	// 3. Time-of-day banding.
	switch hour := in.Now.Hour(); {
	case hour < 6:
		s.Energy = 0.4
		s.Chaos += 0.2
		s.TimeOfDay = LateNight
	case hour < 12:
		s.Energy = 0.6
		s.TimeOfDay = Morning
	case hour < 18:
		s.Energy = 0.9
		s.TimeOfDay = Afternoon
	default:
		s.Energy = 0.7
		s.TimeOfDay = Evening
	}

	// 4. Platform modifier.
	if in.Platform == "voice" {
		s.Formality = 0
		s.Vulgarity += 0.1
	}

	// 5. Message-content modifiers.
	if msg := in.Message; msg != "" {
		if c.tables.ConspiracyRe.MatchString(msg) {
			s.Conspiracy += 0.2
			s.Confidence += 0.1
		}
		if c.tables.TechRe.MatchString(msg) {
			s.Confidence += 0.2
			s.Engagement += 0.1
		}
		if strings.Contains(msg, "?") {
			s.Engagement += 0.15
			s.Formality -= 0.05
		}
		if c.tables.HumorCueRe.MatchString(msg) {
			s.Humor += 0.15
			s.Chaos += 0.1
		}
	}

	// 6. Derived values.
	if !confusionSet {
		if s.Energy < 0.4 {
			s.Confusion = 0.3
		} else {
			s.Confusion = 0.1
		}
	}
	if in.Mental != nil {
		s.Drunk = in.Mental.DrunkLevel
	}

	s.clamp()
	log.Printf("[BEHAVIOR] vulgar=%.2f formal=%.2f chaos=%.2f energy=%.2f engage=%.2f tod=%s",
		s.Vulgarity, s.Formality, s.Chaos, s.Energy, s.Engagement, s.TimeOfDay)
	return s
}

// clamp forces every dial into [0,1]. No code path may return an
// out-of-range value.
func (s *State) clamp() {
	for _, p := range []*float64{
		&s.Vulgarity, &s.Formality, &s.Chaos, &s.Conspiracy, &s.Engagement,
		&s.Confidence, &s.Humor, &s.Confusion, &s.Energy, &s.Drunk,
	} {
		if *p < 0 {
			*p = 0
		}
		if *p > 1 {
			*p = 1
		}
	}
}

// ContextString renders the state as at most one short line, and only when
// it deviates notably from base.
func (s State) ContextString() string {
	var parts []string
	if s.Energy < 0.5 {
		parts = append(parts, "tired")
	}
	if s.Chaos > 0.6 {
		parts = append(parts, "chaotic")
	}
	if s.Confusion > 0.4 {
		parts = append(parts, "confused")
	}
	if s.Drunk > 0.5 {
		parts = append(parts, "drunk")
	}
	if s.Engagement < 0.4 {
		parts = append(parts, "checked out")
	}
	if len(parts) == 0 {
		return ""
	}
	return "You're feeling " + strings.Join(parts, " and ") + "."
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
