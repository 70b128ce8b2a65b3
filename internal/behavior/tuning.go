package behavior

import (
	"strings"

	"server-slunt/internal/ai"
	"server-slunt/internal/config"
	"server-slunt/internal/relationship"
	"server-slunt/internal/rng"
)

// ApplyToGenParams maps the state onto generation knobs. Chaos and humor
// loosen the sampler, confidence tightens it, low energy and confusion cut
// the output budget.
func (s State) ApplyToGenParams(p ai.GenParams) ai.GenParams {
	out := p

	if s.Chaos > 0.5 {
		out.Temperature = min(0.95, out.Temperature+0.15)
	}
	if s.Humor > 0.8 {
		out.Temperature = min(0.95, out.Temperature+0.1)
		out.PresencePenalty = min(1.5, out.PresencePenalty+0.2)
	}
	if s.Confidence > 0.7 {
		out.Temperature = max(0.7, out.Temperature-0.05)
	}
	if s.Energy < 0.5 {
		out.NumPredict = out.NumPredict * 7 / 10
	}
	if s.Confusion > 0.4 {
		out.TopK = out.TopK * 7 / 10
		out.NumPredict = out.NumPredict * 6 / 10
	}
	if s.Engagement < 0.4 {
		out.NumPredict = out.NumPredict / 2
	} else if s.Engagement > 0.8 {
		out.NumPredict = out.NumPredict * 12 / 10
	}

	return out
}

// ResponseLengthTarget is the ideal (not maximum) size for prompting,
// shrunk when tired or checked out.
func (s State) ResponseLengthTarget(tables *config.Tables, platform string) config.LengthTarget {
	target := tables.Target(platform)

	if s.Energy < 0.5 {
		target.Words = target.Words * 7 / 10
	}
	if s.Engagement < 0.4 {
		target.Words = target.Words * 6 / 10
		target.Sentences = 1
	}
	if target.Words < 3 {
		target.Words = 3
	}
	return target
}

// ShouldRespond decides whether to reply at all. Direct questions always
// get an answer; low engagement and annoying users are sometimes ignored.
func ShouldRespond(s State, message string, rel *relationship.Modifiers, rand rng.Source) bool {
	if strings.Contains(message, "?") {
		return true
	}
	if s.Engagement < 0.3 {
		return rand.Float64() > 0.5
	}
	if rel != nil && rel.Vibe == "annoying" {
		return rand.Float64() > 0.3
	}
	return true
}
