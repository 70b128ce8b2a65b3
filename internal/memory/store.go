package memory

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"server-slunt/internal/config"
)

// Options tune the store. Zero values fall back to reference defaults.
type Options struct {
	ContextCap       int           // ring buffer size per platform (15)
	RecentWindow     int           // messages considered "recent" (5)
	TierAcquaintance int           // interaction thresholds (50/150/500)
	TierFriend       int
	TierClose        int
	AutoSaveInterval time.Duration // 0 disables the autosave goroutine
	SaveDebounce     time.Duration // 0 disables debounced saves
	Clock            func() time.Time
}

// DefaultOptions returns the reference configuration.
func DefaultOptions() Options {
	return Options{
		ContextCap:       15,
		RecentWindow:     5,
		TierAcquaintance: 50,
		TierFriend:       150,
		TierClose:        500,
		AutoSaveInterval: 5 * time.Minute,
		SaveDebounce:     2 * time.Second,
		Clock:            time.Now,
	}
}

// OptionsFromConfig maps the env config onto store options.
func OptionsFromConfig(cfg *config.Config) Options {
	o := DefaultOptions()
	if cfg.ContextCap > 0 {
		o.ContextCap = cfg.ContextCap
	}
	if cfg.RecentWindow > 0 {
		o.RecentWindow = cfg.RecentWindow
	}
	if cfg.TierAcquaintance > 0 {
		o.TierAcquaintance = cfg.TierAcquaintance
	}
	if cfg.TierFriend > 0 {
		o.TierFriend = cfg.TierFriend
	}
	if cfg.TierClose > 0 {
		o.TierClose = cfg.TierClose
	}
	o.AutoSaveInterval = cfg.AutoSaveInterval
	o.SaveDebounce = cfg.SaveDebounce
	return o
}

// Store is the single source of truth for durable conversational knowledge.
// All mutation goes through its methods; a single mutex serializes access so
// persistence snapshots are always consistent.
type Store struct {
	mu sync.RWMutex

	users         map[string]*UserRecord
	topics        map[string]*TopicRecord
	recent        map[string][]ContextEntry
	conversations map[string]*ConversationState
	community     Community
	callbacks     []Callback // platform-level feed, kept for the document format
	moments       []MemorableMoment
	dreams        []Dream

	tables *config.Tables
	opts   Options
	path   string

	dirty   chan struct{}
	closing chan struct{}
	wg      sync.WaitGroup
}

// NewStore creates an empty store persisting to dir/memoryCore.json and
// loads any existing snapshot. A corrupt or missing file never fails
// startup; see Load.
func NewStore(dir string, tables *config.Tables, opts Options) *Store {
	if tables == nil {
		tables = config.DefaultTables()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.ContextCap <= 0 {
		opts.ContextCap = 15
	}
	if opts.RecentWindow <= 0 {
		opts.RecentWindow = 5
	}
	if opts.TierAcquaintance <= 0 || opts.TierFriend <= 0 || opts.TierClose <= 0 {
		d := DefaultOptions()
		opts.TierAcquaintance = d.TierAcquaintance
		opts.TierFriend = d.TierFriend
		opts.TierClose = d.TierClose
	}
	s := &Store{
		users:         make(map[string]*UserRecord),
		topics:        make(map[string]*TopicRecord),
		recent:        make(map[string][]ContextEntry),
		conversations: make(map[string]*ConversationState),
		community:     Community{Slang: make(map[string][]string)},
		tables:        tables,
		opts:          opts,
		path:          snapshotPath(dir),
		dirty:         make(chan struct{}, 1),
		closing:       make(chan struct{}),
	}
	s.Load()
	return s
}

func (s *Store) now() time.Time { return s.opts.Clock() }

// markDirty signals the debounced saver. Non-blocking.
func (s *Store) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// =========================================================================
// User knowledge
// =========================================================================

// GetOrCreateUser never fails; first reference creates the record with
// defaults (stranger, all affinities 0.5).
func (s *Store) GetOrCreateUser(username string) UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.getUserLocked(username)
}

func (s *Store) getUserLocked(username string) *UserRecord {
	u, ok := s.users[username]
	if !ok {
		now := s.now()
		u = &UserRecord{
			ID:       username,
			FirstMet: now,
			LastSeen: now,
			Tier:     TierStranger,
			Vibe:     "neutral",
			WorksWith: Affinities{
				Roasting:     0.5,
				Serious:      0.5,
				Conspiracies: 0.5,
				Vulgar:       0.5,
			},
		}
		s.users[username] = u
	}
	return u
}

// SetVibe tags the user with a free-form vibe ("annoying", "neutral", ...).
func (s *Store) SetVibe(username, vibe string) {
	s.mu.Lock()
	s.getUserLocked(username).Vibe = vibe
	s.mu.Unlock()
	s.markDirty()
}

// RecordInteraction updates stats, nudges affinities from message content,
// and re-evaluates the relationship tier. Tier transitions are monotonic and
// idempotent: once reached, a tier is never silently reverted.
func (s *Store) RecordInteraction(username, platform, text string) {
	s.mu.Lock()
	u := s.getUserLocked(username)
	u.LastSeen = s.now()
	u.Interactions++
	if !containsString(u.Platforms, platform) {
		u.Platforms = append(u.Platforms, platform)
	}

	if text != "" {
		if s.tables.ConspiracyRe.MatchString(text) {
			u.WorksWith.Conspiracies = clamp01(u.WorksWith.Conspiracies + 0.05)
		}
		if s.tables.ProfanityRe.MatchString(text) {
			u.WorksWith.Vulgar = clamp01(u.WorksWith.Vulgar + 0.05)
		}
	}

	next := u.Tier
	switch {
	case u.Interactions > s.opts.TierClose && u.Tier == TierFriend:
		next = TierClose
	case u.Interactions > s.opts.TierFriend && u.Tier == TierAcquaintance:
		next = TierFriend
	case u.Interactions > s.opts.TierAcquaintance && u.Tier == TierStranger:
		next = TierAcquaintance
	}
	if tierRank[next] > tierRank[u.Tier] {
		log.Printf("[MEMORY] %s: %s -> %s", username, u.Tier, next)
		u.Tier = next
	}
	s.mu.Unlock()
	s.markDirty()
}

// NudgeAffinity moves one named affinity by delta, clamped. Used by the
// relationship model's feedback loop.
func (s *Store) NudgeAffinity(username, dimension string, delta float64) {
	s.mu.Lock()
	u := s.getUserLocked(username)
	switch dimension {
	case "roasting":
		u.WorksWith.Roasting = clamp01(u.WorksWith.Roasting + delta)
	case "serious":
		u.WorksWith.Serious = clamp01(u.WorksWith.Serious + delta)
	case "conspiracies":
		u.WorksWith.Conspiracies = clamp01(u.WorksWith.Conspiracies + delta)
	case "vulgar":
		u.WorksWith.Vulgar = clamp01(u.WorksWith.Vulgar + delta)
	}
	s.mu.Unlock()
	s.markDirty()
}

// UserContext returns the injection string for a user, capped at maxChars.
// Strangers get no context at all.
func (s *Store) UserContext(username string, maxChars int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok || u.Tier == TierStranger {
		return ""
	}

	var parts []string
	if u.Tier == TierFriend || u.Tier == TierClose {
		months := int(s.now().Sub(u.FirstMet).Hours() / (24 * 30))
		parts = append(parts, fmt.Sprintf("Known %s %d+ months (%s)", username, months, u.Tier))
	}
	var interests []string
	if u.WorksWith.Conspiracies > 0.7 {
		interests = append(interests, "loves conspiracies")
	}
	if u.WorksWith.Vulgar > 0.8 {
		interests = append(interests, "vulgar dude")
	}
	if len(interests) > 0 {
		parts = append(parts, strings.Join(interests, ", "))
	}
	return truncate(strings.Join(parts, ". "), maxChars)
}

// AddCallback stores a memorable remark. Oldest entries are evicted beyond
// the per-user cap.
func (s *Store) AddCallback(username, text, contextTag, platform string) {
	s.mu.Lock()
	u := s.getUserLocked(username)
	u.Callbacks = append(u.Callbacks, Callback{
		Text:      text,
		Context:   contextTag,
		Platform:  platform,
		Timestamp: s.now(),
	})
	if len(u.Callbacks) > callbacksPerUser {
		u.Callbacks = u.Callbacks[len(u.Callbacks)-callbacksPerUser:]
	}
	s.mu.Unlock()
	s.markDirty()
}

// GetCallback picks a resurfaceable remark: at least a day old, context tag
// matching the current context when both are present, least-referenced
// first. Returns "" when nothing qualifies. The winner's usage counter is
// incremented.
func (s *Store) GetCallback(username, currentContext string, maxChars int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok || len(u.Callbacks) == 0 {
		return ""
	}

	now := s.now()
	best := -1
	for i := range u.Callbacks {
		cb := &u.Callbacks[i]
		if now.Sub(cb.Timestamp) < callbackMinAge {
			continue
		}
		if cb.Context != "" && currentContext != "" &&
			!strings.Contains(strings.ToLower(currentContext), strings.ToLower(cb.Context)) {
			continue
		}
		if best < 0 || cb.TimesReferenced < u.Callbacks[best].TimesReferenced {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	u.Callbacks[best].TimesReferenced++
	return truncate(fmt.Sprintf("remember when you said %q", u.Callbacks[best].Text), maxChars)
}

// =========================================================================
// Topic knowledge
// =========================================================================

func (s *Store) getTopicLocked(topic string) *TopicRecord {
	key := strings.ToLower(topic)
	t, ok := s.topics[key]
	if !ok {
		t = &TopicRecord{
			Name:       topic,
			Confidence: 0.1,
			Expertise:  ExpertiseNone,
		}
		s.topics[key] = t
	}
	return t
}

// SetTopicExpertise installs knowledge about a topic. Fire-and-forget
// producer API for the flavor modules.
func (s *Store) SetTopicExpertise(topic string, confidence float64, facts, opinions []string) {
	s.mu.Lock()
	t := s.getTopicLocked(topic)
	t.Confidence = clamp01(confidence)
	t.Expertise = ExpertiseFor(t.Confidence)
	t.Facts = facts
	t.Opinions = opinions
	s.mu.Unlock()
	s.markDirty()
}

// TouchTopic records a mention.
func (s *Store) TouchTopic(topic string) {
	s.mu.Lock()
	t := s.getTopicLocked(topic)
	t.LastMentioned = s.now()
	t.TotalMentions++
	s.mu.Unlock()
	s.markDirty()
}

// TopicContext returns the injection string for a topic, or "" when
// confidence is below the admit-ignorance threshold. The empty-string
// contract is relied on by the context assembler.
func (s *Store) TopicContext(topic string, maxChars int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.topics[strings.ToLower(topic)]
	if !ok || t.Confidence < AdmitIgnoranceThreshold {
		return ""
	}

	var parts []string
	switch t.Expertise {
	case ExpertiseExpert:
		parts = append(parts, "You're an expert on "+topic)
	case ExpertiseConfident:
		parts = append(parts, "You know about "+topic)
	}
	if len(t.Facts) > 0 {
		parts = append(parts, t.Facts[0])
	}
	return truncate(strings.Join(parts, " - "), maxChars)
}

// ShouldAdmitIgnorance reports whether the bot knows too little about a
// topic to fake it.
func (s *Store) ShouldAdmitIgnorance(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.topics[strings.ToLower(topic)]
	return !ok || t.Confidence < AdmitIgnoranceThreshold
}

// DetectKnownTopic matches the message against stored topic names and bumps
// the first hit's mention counter. Keys are checked in sorted order so the
// result is stable when several topics match.
func (s *Store) DetectKnownTopic(message string) string {
	lower := strings.ToLower(message)
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.topics))
	for key := range s.topics {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if strings.Contains(lower, key) {
			t := s.topics[key]
			t.LastMentioned = s.now()
			t.TotalMentions++
			return key
		}
	}
	return ""
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// truncate cuts s to maxChars bytes with a visible ellipsis marker, never
// splitting a multi-byte rune.
func truncate(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	if maxChars <= 3 {
		return cutAtRune(s, maxChars)
	}
	return cutAtRune(s, maxChars-3) + "..."
}

// cutAtRune cuts s to at most n bytes, walking back off any trailing
// partial rune. Callers guarantee n < len(s).
func cutAtRune(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
