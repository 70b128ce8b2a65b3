package memory

import (
	"strings"

	"server-slunt/internal/rng"
)

// CallbackChance is the probability that an eligible callback is woven into
// assembled context.
const CallbackChance = 0.2

// callbackFloor is the minimum remaining budget before a callback is even
// considered; below this it is skipped outright instead of truncated
// mid-sentence.
const callbackFloor = 80

// ContextRequest describes one context-assembly call.
type ContextRequest struct {
	Platform string
	Username string
	Message  string
	MaxChars int
	Rand     rng.Source
}

// RelevantContext merges recent conversation, user context, topic context
// and an occasional callback into one prompt-ready block. Fixed priority
// order, each stage consuming from a shrinking budget; the result never
// exceeds MaxChars. Background information goes first so truncation
// upstream trims background before recency.
func (s *Store) RelevantContext(req ContextRequest) string {
	remaining := req.MaxChars
	if remaining <= 0 {
		return ""
	}

	// 1. Recent conversation: 60% of the total budget.
	conversation := s.RecentContext(req.Platform, s.opts.RecentWindow, remaining*60/100)
	if conversation != "" {
		remaining -= len(conversation) + 1 // newline it will carry
	}

	// 2. User context, friends and up only.
	var userCtx string
	if req.Username != "" && remaining > 50 {
		userCtx = s.UserContext(req.Username, remaining*40/100)
		if userCtx != "" {
			remaining -= len(userCtx) + 2
		}
	}

	// 3. Topic context when the message touches something actually known.
	var topicCtx string
	if req.Message != "" && remaining > 50 {
		if topic := s.DetectKnownTopic(req.Message); topic != "" {
			topicCtx = s.TopicContext(topic, remaining*50/100)
			if topicCtx != "" {
				remaining -= len(topicCtx) + 2
			}
		}
	}

	// 4. Callback, probabilistic and low priority. Skipped entirely when the
	// leftover budget is too small for a full sentence.
	var callback string
	if req.Username != "" && remaining > callbackFloor && req.Rand != nil && req.Rand.Float64() < CallbackChance {
		callback = s.GetCallback(req.Username, req.Message, remaining-1)
	}

	var b strings.Builder
	if topicCtx != "" {
		b.WriteString(topicCtx)
		b.WriteString("\n\n")
	}
	if userCtx != "" {
		b.WriteString(userCtx)
		b.WriteString("\n\n")
	}
	if conversation != "" {
		b.WriteString(conversation)
		b.WriteString("\n")
	}
	if callback != "" {
		b.WriteString(callback)
	}

	out := strings.TrimSpace(b.String())
	// Belt and suspenders: the budget is a hard contract.
	if len(out) > req.MaxChars {
		out = truncate(out, req.MaxChars)
	}
	return out
}
