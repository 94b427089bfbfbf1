package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"Confluence/internal/domain/models"
	"Confluence/internal/domain/repository"
	"Confluence/pkg/cache"
	"Confluence/pkg/logger"
)

const (
	journalFile     = "knowledge.json"
	sessionsDir     = "sessions"
	patternsDir     = "patterns"
	lockKeyPrefix   = "knowledge:lock:"
	retrievalPrefix = "knowledge:retrieval:"
)

// Config bounds the store's growth and locking behavior.
type Config struct {
	BaseDir          string
	RecentSummaries  int // last K summaries composed into retrieval, default 5
	MaxSectionItems  int // per-section entry cap, oldest dropped first
	RetrievalBudget  int // max entries per retrieval section
	RetrievalTTL     time.Duration
	WriteLockTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.RecentSummaries <= 0 {
		c.RecentSummaries = 5
	}
	if c.MaxSectionItems <= 0 {
		c.MaxSectionItems = 200
	}
	if c.RetrievalBudget <= 0 {
		c.RetrievalBudget = 10
	}
	if c.RetrievalTTL <= 0 {
		c.RetrievalTTL = time.Minute
	}
	if c.WriteLockTimeout <= 0 {
		c.WriteLockTimeout = 30 * time.Second
	}
}

// journal is the persisted shape of the store.
type journal struct {
	Entries map[models.KnowledgeSection][]models.KnowledgeEntry `json:"entries"`
}

// FileStore is the append-only knowledge repository. Structured entries live
// in a JSON journal; human-readable markdown renderings are regenerated on
// every write. Writes for a session are serialized through a distributed
// lock so concurrent cycles never interleave a summary.
type FileStore struct {
	cfg    Config
	cache  cache.Service
	logger *logger.Logger

	mu      sync.RWMutex
	entries map[models.KnowledgeSection][]models.KnowledgeEntry
}

// NewFileStore opens the store rooted at cfg.BaseDir, creating the layout
// and loading any existing journal.
func NewFileStore(cfg Config, cacheSvc cache.Service, lgr *logger.Logger) (*FileStore, error) {
	cfg.applyDefaults()
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("knowledge store: base dir not set")
	}
	for _, dir := range []string{cfg.BaseDir, filepath.Join(cfg.BaseDir, sessionsDir), filepath.Join(cfg.BaseDir, patternsDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("knowledge store: create %s: %w", dir, err)
		}
	}

	s := &FileStore{
		cfg:     cfg,
		cache:   cacheSvc,
		logger:  lgr,
		entries: map[models.KnowledgeSection][]models.KnowledgeEntry{},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	path := filepath.Join(s.cfg.BaseDir, journalFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("knowledge store: read journal: %w", err)
	}
	var j journal
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("knowledge store: parse journal: %w", err)
	}
	if j.Entries != nil {
		s.entries = j.Entries
	}
	return nil
}

// Append adds one entry under the session's write lock. An entry with the
// same (section, key) supersedes the previous one; sections are capped by
// dropping the oldest entries.
func (s *FileStore) Append(ctx context.Context, session string, entry models.KnowledgeEntry) error {
	if entry.Section == "" || entry.Key == "" {
		return fmt.Errorf("knowledge append: entry missing section or key")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if s.cache != nil {
		ok, err := s.cache.TryLock(ctx, lockKeyPrefix+session, s.cfg.WriteLockTimeout)
		if err != nil {
			return fmt.Errorf("knowledge append: acquire session lock: %w", err)
		}
		if !ok {
			return fmt.Errorf("knowledge append %s: %w", session, repository.ErrSessionLocked)
		}
		defer func() {
			if err := s.cache.Unlock(ctx, lockKeyPrefix+session); err != nil && s.logger != nil {
				s.logger.Warn("failed to release session lock",
					logger.String("session", session), logger.Error(err))
			}
		}()
	}

	s.mu.Lock()
	section := s.entries[entry.Section]
	kept := section[:0]
	superseded := false
	for _, e := range section {
		if e.Key == entry.Key {
			if entry.Occurrences <= e.Occurrences {
				entry.Occurrences = e.Occurrences + 1
			}
			superseded = true
			continue
		}
		kept = append(kept, e)
	}
	kept = append(kept, entry)
	if len(kept) > s.cfg.MaxSectionItems {
		kept = kept[len(kept)-s.cfg.MaxSectionItems:]
	}
	s.entries[entry.Section] = kept
	err := s.persist()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, retrievalPrefix+"*"); err != nil && s.logger != nil {
			s.logger.Warn("failed to invalidate retrieval cache", logger.Error(err))
		}
	}

	if s.logger != nil {
		s.logger.Debug("knowledge entry appended",
			logger.String("session", session),
			logger.String("section", string(entry.Section)),
			logger.String("key", entry.Key),
			logger.Bool("superseded", superseded))
	}
	return nil
}

// persist writes the journal atomically and regenerates the markdown
// renderings. Caller holds s.mu.
func (s *FileStore) persist() error {
	data, err := json.MarshalIndent(journal{Entries: s.entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("knowledge store: encode journal: %w", err)
	}
	if err := atomicWrite(filepath.Join(s.cfg.BaseDir, journalFile), data); err != nil {
		return fmt.Errorf("knowledge store: write journal: %w", err)
	}
	return s.renderMarkdown()
}

// renderMarkdown regenerates the human-readable views. Caller holds s.mu.
func (s *FileStore) renderMarkdown() error {
	renders := []struct {
		rel     string
		content []byte
	}{
		{"master_index.md", renderMasterIndex(s.entries[models.SectionRule], recentFirst(s.entries[models.SectionLesson]), s.sectionCounts())},
		{"lessons_learned.md", renderSection("Lessons Learned", recentFirst(s.entries[models.SectionLesson]))},
		{filepath.Join(patternsDir, "bullish_patterns.md"), renderSection("Bullish Patterns", recentFirst(s.entries[models.SectionBullish]))},
		{filepath.Join(patternsDir, "bearish_patterns.md"), renderSection("Bearish Patterns", recentFirst(s.entries[models.SectionBearish]))},
		{filepath.Join(patternsDir, "mistakes.md"), renderSection("Mistakes", recentFirst(s.entries[models.SectionMistake]))},
	}
	for _, r := range renders {
		if err := atomicWrite(filepath.Join(s.cfg.BaseDir, r.rel), r.content); err != nil {
			return fmt.Errorf("knowledge store: render %s: %w", r.rel, err)
		}
	}

	for _, summary := range s.entries[models.SectionSummary] {
		dir := filepath.Join(s.cfg.BaseDir, sessionsDir, summary.Key)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("knowledge store: create session dir: %w", err)
		}
		if err := atomicWrite(filepath.Join(dir, "daily_summary.md"), []byte(summary.Body)); err != nil {
			return fmt.Errorf("knowledge store: write daily summary: %w", err)
		}
	}
	return nil
}

func (s *FileStore) sectionCounts() map[models.KnowledgeSection]int {
	counts := make(map[models.KnowledgeSection]int, len(s.entries))
	for section, entries := range s.entries {
		counts[section] = len(entries)
	}
	return counts
}

// WriteDecisionLog writes the session's machine-parseable decision log and
// the per-cycle markdown table.
func (s *FileStore) WriteDecisionLog(_ context.Context, session string, records []*models.DecisionRecord) error {
	dir := filepath.Join(s.cfg.BaseDir, sessionsDir, session)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("knowledge store: create session dir: %w", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("knowledge store: encode decision log: %w", err)
	}
	if err := atomicWrite(filepath.Join(dir, "decisions.json"), data); err != nil {
		return fmt.Errorf("knowledge store: write decision log: %w", err)
	}
	if err := atomicWrite(filepath.Join(dir, "slider_decisions.md"), renderSliderLog(session, records)); err != nil {
		return fmt.Errorf("knowledge store: write slider log: %w", err)
	}
	return nil
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// recentFirst returns a copy sorted newest first.
func recentFirst(entries []models.KnowledgeEntry) []models.KnowledgeEntry {
	out := make([]models.KnowledgeEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
