package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"
)

// The whole store serializes to one JSON document. Map-like structures are
// encoded as arrays of [key, value] pairs, sorted by key for stable diffs.
type document struct {
	Users               [][]json.RawMessage `json:"users"`
	Topics              [][]json.RawMessage `json:"topics"`
	RecentContext       [][]json.RawMessage `json:"recentContext"`
	Community           communityDoc        `json:"community"`
	CurrentConversation [][]json.RawMessage `json:"currentConversation"`
	Callbacks           []Callback          `json:"callbacks"`
	MemorableMoments    []MemorableMoment   `json:"memorableMoments"`
	Dreams              []Dream             `json:"dreams"`
}

type communityDoc struct {
	Slang       [][]json.RawMessage `json:"slang"`
	RunningGags []RunningGag        `json:"runningGags"`
	Memes       []string            `json:"memes"`
}

func snapshotPath(dir string) string {
	return filepath.Join(dir, "memoryCore.json")
}

func encodePairs[V any](m map[string]V) ([][]json.RawMessage, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][]json.RawMessage, 0, len(keys))
	for _, k := range keys {
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m[k])
		if err != nil {
			return nil, err
		}
		out = append(out, []json.RawMessage{kb, vb})
	}
	return out, nil
}

func decodePairs[V any](pairs [][]json.RawMessage, out map[string]V) {
	for _, p := range pairs {
		if len(p) < 2 {
			continue
		}
		var k string
		if json.Unmarshal(p[0], &k) != nil {
			continue
		}
		var v V
		if json.Unmarshal(p[1], &v) != nil {
			continue
		}
		out[k] = v
	}
}

func (s *Store) snapshot() (*document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := &document{
		Callbacks:        append([]Callback(nil), s.callbacks...),
		MemorableMoments: append([]MemorableMoment(nil), s.moments...),
		Dreams:           append([]Dream(nil), s.dreams...),
		Community: communityDoc{
			RunningGags: append([]RunningGag(nil), s.community.RunningGags...),
			Memes:       append([]string(nil), s.community.Memes...),
		},
	}
	var err error
	if doc.Users, err = encodePairs(s.users); err != nil {
		return nil, err
	}
	if doc.Topics, err = encodePairs(s.topics); err != nil {
		return nil, err
	}
	if doc.RecentContext, err = encodePairs(s.recent); err != nil {
		return nil, err
	}
	if doc.CurrentConversation, err = encodePairs(s.conversations); err != nil {
		return nil, err
	}
	if doc.Community.Slang, err = encodePairs(s.community.Slang); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Store) restore(doc *document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = make(map[string]*UserRecord)
	decodePairs(doc.Users, s.users)
	s.topics = make(map[string]*TopicRecord)
	decodePairs(doc.Topics, s.topics)
	s.recent = make(map[string][]ContextEntry)
	decodePairs(doc.RecentContext, s.recent)
	s.conversations = make(map[string]*ConversationState)
	decodePairs(doc.CurrentConversation, s.conversations)

	s.community = Community{
		Slang:       make(map[string][]string),
		RunningGags: doc.Community.RunningGags,
		Memes:       doc.Community.Memes,
	}
	decodePairs(doc.Community.Slang, s.community.Slang)

	s.callbacks = doc.Callbacks
	s.moments = doc.MemorableMoments
	s.dreams = doc.Dreams
}

// Save writes the snapshot with a backup copy and a temp-file-plus-rename
// atomic write. Failures restore the previous backup and are surfaced to
// the caller (and logs), never to the message pipeline.
func (s *Store) Save() error {
	doc, err := s.snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	backup := s.path + ".backup"
	if _, err := os.Stat(s.path); err == nil {
		if err := copyFile(s.path, backup); err != nil {
			log.Printf("[MEMORY] backup before save failed: %v", err)
		}
	}

	if err := writeFileAtomic(s.path, data); err != nil {
		// Put the previous version back so a half-written file never wins.
		if _, berr := os.Stat(backup); berr == nil {
			if rerr := copyFile(backup, s.path); rerr == nil {
				log.Printf("[MEMORY] restored %s from backup after failed save", s.path)
			}
		}
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// Load reads the snapshot from disk. A missing file is a fresh start; a
// corrupt file goes through backup restore then heuristic repair before
// giving up and starting empty. Never fails startup.
func (s *Store) Load() {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		log.Printf("[MEMORY] starting with fresh memory")
		return
	}
	if err != nil {
		log.Printf("[MEMORY] read failed, starting fresh: %v", err)
		return
	}

	var doc document
	if json.Unmarshal(data, &doc) == nil {
		s.restore(&doc)
		log.Printf("[MEMORY] loaded: %d users, %d topics", len(s.users), len(s.topics))
		return
	}

	log.Printf("[MEMORY] primary snapshot corrupt, trying backup")
	if b, err := os.ReadFile(s.path + ".backup"); err == nil {
		if json.Unmarshal(b, &doc) == nil {
			s.restore(&doc)
			if err := copyFile(s.path+".backup", s.path); err == nil {
				log.Printf("[MEMORY] recovered snapshot from backup")
			}
			return
		}
	}

	if fixed, ok := repairJSON(data); ok {
		if json.Unmarshal(fixed, &doc) == nil {
			s.restore(&doc)
			if err := os.WriteFile(s.path, fixed, 0644); err == nil {
				log.Printf("[MEMORY] repaired corrupt snapshot")
			}
			return
		}
	}

	log.Printf("[MEMORY] snapshot unrecoverable, starting fresh")
}

var trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)

// repairJSON applies the common breakages a crashed write leaves behind:
// trailing commas and unbalanced brackets.
func repairJSON(data []byte) ([]byte, bool) {
	fixed := trailingCommaRe.ReplaceAll(data, []byte("$1"))

	var opens, closes, opensA, closesA int
	for _, c := range fixed {
		switch c {
		case '{':
			opens++
		case '}':
			closes++
		case '[':
			opensA++
		case ']':
			closesA++
		}
	}
	for i := 0; i < opensA-closesA; i++ {
		fixed = append(fixed, ']')
	}
	for i := 0; i < opens-closes; i++ {
		fixed = append(fixed, '}')
	}

	if !json.Valid(fixed) {
		return nil, false
	}
	return fixed, true
}

// writeFileAtomic writes via a temp file, fsyncs, renames into place, then
// verifies the result parses.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}

	written, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("verify read: %w", err)
	}
	if !json.Valid(written) {
		return fmt.Errorf("verify: written file is not valid JSON")
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// StartAutoSave runs the background saver: a fixed interval plus a short
// debounce after mutation bursts. Saves never happen synchronously on the
// message path. No-op when both intervals are disabled (tests).
func (s *Store) StartAutoSave(ctx context.Context) {
	if s.opts.AutoSaveInterval <= 0 && s.opts.SaveDebounce <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		var tickC <-chan time.Time
		if s.opts.AutoSaveInterval > 0 {
			ticker := time.NewTicker(s.opts.AutoSaveInterval)
			defer ticker.Stop()
			tickC = ticker.C
		}

		var debounce *time.Timer
		var debounceC <-chan time.Time

		save := func() {
			if err := s.Save(); err != nil {
				log.Printf("[MEMORY] autosave: %v", err)
			}
		}

		for {
			select {
			case <-ctx.Done():
				save()
				return
			case <-s.closing:
				save()
				return
			case <-tickC:
				save()
			case <-s.dirty:
				if s.opts.SaveDebounce <= 0 {
					continue
				}
				if debounce == nil {
					debounce = time.NewTimer(s.opts.SaveDebounce)
					debounceC = debounce.C
				} else {
					if !debounce.Stop() {
						select {
						case <-debounce.C:
						default:
						}
					}
					debounce.Reset(s.opts.SaveDebounce)
				}
			case <-debounceC:
				save()
			}
		}
	}()
}

// Close stops the background saver and flushes a final snapshot.
func (s *Store) Close() error {
	close(s.closing)
	s.wg.Wait()
	return s.Save()
}
