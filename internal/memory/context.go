package memory

import (
	"strings"
)

// BotName is the speaker tag used for the bot's own lines in the ring
// buffers.
const BotName = "Slunt"

// =========================================================================
// Recent context (per-platform ring buffers)
// =========================================================================

// PushContext appends one line to a platform's ring buffer, evicting the
// oldest entry beyond the cap.
func (s *Store) PushContext(platform, speaker, text string) {
	s.mu.Lock()
	buf := append(s.recent[platform], ContextEntry{
		Platform:  platform,
		Speaker:   speaker,
		Text:      text,
		Timestamp: s.now(),
	})
	if len(buf) > s.opts.ContextCap {
		buf = buf[len(buf)-s.opts.ContextCap:]
	}
	s.recent[platform] = buf
	s.mu.Unlock()
	s.markDirty()
}

// RecentEntries returns a copy of the newest count entries, oldest first.
func (s *Store) RecentEntries(platform string, count int) []ContextEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	buf := s.recent[platform]
	if count > 0 && len(buf) > count {
		buf = buf[len(buf)-count:]
	}
	out := make([]ContextEntry, len(buf))
	copy(out, buf)
	return out
}

// RecentContext formats the newest count messages as "speaker: text" lines,
// truncated to maxChars.
func (s *Store) RecentContext(platform string, count, maxChars int) string {
	entries := s.RecentEntries(platform, count)
	if len(entries) == 0 {
		return ""
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.Speaker+": "+e.Text)
	}
	return truncate(strings.Join(lines, "\n"), maxChars)
}

// DetectCurrentTopic frequency-counts words longer than 4 characters across
// the last few messages. A word must appear more than once to qualify; ties
// go to the earliest occurrence. Deliberately coarse: no stemming, no
// stopword list beyond length.
func (s *Store) DetectCurrentTopic(platform string) string {
	entries := s.RecentEntries(platform, s.opts.RecentWindow)
	if len(entries) == 0 {
		return ""
	}
	var all []string
	for _, e := range entries {
		all = append(all, strings.Fields(strings.ToLower(e.Text))...)
	}

	counts := make(map[string]int)
	var order []string
	for _, w := range all {
		if len(w) <= 4 {
			continue
		}
		if _, seen := counts[w]; !seen {
			order = append(order, w)
		}
		counts[w]++
	}

	best, bestCount := "", 1
	for _, w := range order {
		if counts[w] > bestCount {
			best, bestCount = w, counts[w]
		}
	}
	return best
}

// =========================================================================
// Conversation state
// =========================================================================

// UpdateConversationState advances the per-platform topic tracker. Depth
// resets to exactly 1 on a topic change and increments while the topic
// holds, topic-less stretches included, so exhaustion signals still fire
// during sustained chatter with no detected topic.
func (s *Store) UpdateConversationState(platform, topic string) {
	s.mu.Lock()
	conv, ok := s.conversations[platform]
	if !ok {
		conv = &ConversationState{Platform: platform, StartedAt: s.now()}
		s.conversations[platform] = conv
	}
	if topic != "" && topic != conv.Topic {
		conv.Topic = topic
		conv.Depth = 1
		conv.StartedAt = s.now()
	} else if topic == conv.Topic {
		conv.Depth++
	}
	s.mu.Unlock()
	s.markDirty()
}

// TopicDepth returns how many consecutive turns the platform has spent on
// its current topic.
func (s *Store) TopicDepth(platform string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if conv, ok := s.conversations[platform]; ok {
		return conv.Depth
	}
	return 0
}

// CurrentConversationTopic returns the active topic, or "".
func (s *Store) CurrentConversationTopic(platform string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if conv, ok := s.conversations[platform]; ok {
		return conv.Topic
	}
	return ""
}

// ShouldChangeTopic reports topic exhaustion (more than 10 exchanges on the
// same thing).
func (s *Store) ShouldChangeTopic(platform string) bool {
	return s.TopicDepth(platform) > 10
}

// =========================================================================
// Community knowledge
// =========================================================================

// AddSlang records a community word for a platform. Duplicates ignored.
func (s *Store) AddSlang(platform, word string) {
	s.mu.Lock()
	if !containsString(s.community.Slang[platform], word) {
		s.community.Slang[platform] = append(s.community.Slang[platform], word)
	}
	s.mu.Unlock()
	s.markDirty()
}

// CommunitySlang returns the slang list for a platform.
func (s *Store) CommunitySlang(platform string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.community.Slang[platform]))
	copy(out, s.community.Slang[platform])
	return out
}

// AddRunningGag records a recurring phrase with its origin and usage tag.
func (s *Store) AddRunningGag(phrase, origin, usage string) {
	s.mu.Lock()
	s.community.RunningGags = append(s.community.RunningGags, RunningGag{
		Phrase:  phrase,
		Origin:  origin,
		Usage:   usage,
		AddedAt: s.now(),
	})
	if len(s.community.RunningGags) > maxRunningGags {
		s.community.RunningGags = s.community.RunningGags[len(s.community.RunningGags)-maxRunningGags:]
	}
	s.mu.Unlock()
	s.markDirty()
}

// RunningGag returns the least-used gag whose usage tag appears in the
// current context, incrementing its counter. "" when none apply.
func (s *Store) RunningGag(currentContext string) string {
	if currentContext == "" {
		return ""
	}
	lower := strings.ToLower(currentContext)
	s.mu.Lock()
	defer s.mu.Unlock()
	best := -1
	for i := range s.community.RunningGags {
		g := &s.community.RunningGags[i]
		if !strings.Contains(lower, strings.ToLower(g.Usage)) {
			continue
		}
		if best < 0 || g.TimesUsed < s.community.RunningGags[best].TimesUsed {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	s.community.RunningGags[best].TimesUsed++
	return s.community.RunningGags[best].Phrase
}

// AddMeme records a meme reference.
func (s *Store) AddMeme(meme string) {
	s.mu.Lock()
	s.community.Memes = append(s.community.Memes, meme)
	s.mu.Unlock()
	s.markDirty()
}

// AddMemorableMoment records a notable event. Fire-and-forget.
func (s *Store) AddMemorableMoment(description, username, platform string) {
	s.mu.Lock()
	s.moments = append(s.moments, MemorableMoment{
		Description: description,
		Username:    username,
		Platform:    platform,
		Timestamp:   s.now(),
	})
	s.mu.Unlock()
	s.markDirty()
}

// AddDream stores a dream fragment, oldest evicted beyond the cap.
func (s *Store) AddDream(content string) {
	s.mu.Lock()
	s.dreams = append(s.dreams, Dream{Content: content, Timestamp: s.now()})
	if len(s.dreams) > maxDreams {
		s.dreams = s.dreams[len(s.dreams)-maxDreams:]
	}
	s.mu.Unlock()
	s.markDirty()
}

// RandomDream returns one stored dream picked by the given roll in [0,1),
// or "" when none exist.
func (s *Store) RandomDream(roll float64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.dreams) == 0 {
		return ""
	}
	i := int(roll * float64(len(s.dreams)))
	if i >= len(s.dreams) {
		i = len(s.dreams) - 1
	}
	return s.dreams[i].Content
}
