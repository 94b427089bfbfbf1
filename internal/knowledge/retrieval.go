package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"Confluence/internal/domain/models"
	"Confluence/pkg/logger"
)

// Retrieve composes the knowledge context for a coming cycle: master rules
// and recent lessons first, then the last K session summaries, then pattern
// entries matching the regime or session phase, then mistakes matching the
// symbol or setup.
// Each section is budget-truncated, newest entries first, so two calls with
// no intervening Append return identical sequences.
func (s *FileStore) Retrieve(ctx context.Context, q models.RetrievalQuery) (*models.KnowledgeContext, error) {
	cacheKey := s.retrievalKey(q)
	if s.cache != nil {
		var cached string
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			var kc models.KnowledgeContext
			if err := json.Unmarshal([]byte(cached), &kc); err == nil {
				return &kc, nil
			}
		}
	}

	maxSummaries := q.MaxSummaries
	if maxSummaries <= 0 {
		maxSummaries = s.cfg.RecentSummaries
	}
	budget := q.Budget
	if budget <= 0 {
		budget = s.cfg.RetrievalBudget
	}

	s.mu.RLock()
	kc := &models.KnowledgeContext{
		Rules:     truncate(recentFirst(s.entries[models.SectionRule]), budget),
		Lessons:   truncate(recentFirst(s.entries[models.SectionLesson]), budget),
		Summaries: truncate(recentFirst(s.entries[models.SectionSummary]), maxSummaries),
		Patterns:  truncate(s.matchPatterns(q), budget),
		Mistakes:  truncate(s.matchMistakes(q), budget),
	}
	s.mu.RUnlock()

	if s.cache != nil {
		if data, err := json.Marshal(kc); err == nil {
			if err := s.cache.Set(ctx, cacheKey, string(data), s.cfg.RetrievalTTL); err != nil && s.logger != nil {
				s.logger.Warn("failed to cache retrieval", logger.Error(err))
			}
		}
	}
	return kc, nil
}

// matchPatterns selects bullish and bearish pattern entries tagged with the
// query's regime or session phase. Untagged entries apply everywhere.
// Caller holds s.mu.
func (s *FileStore) matchPatterns(q models.RetrievalQuery) []models.KnowledgeEntry {
	var matched []models.KnowledgeEntry
	for _, section := range []models.KnowledgeSection{models.SectionBullish, models.SectionBearish} {
		for _, e := range s.entries[section] {
			if len(e.Tags) == 0 ||
				e.HasTag(string(q.Regime)) ||
				e.HasTag(string(q.Phase)) {
				matched = append(matched, e)
			}
		}
	}
	return recentFirst(matched)
}

// matchMistakes selects mistake entries for the query's symbol or setup
// type. Caller holds s.mu.
func (s *FileStore) matchMistakes(q models.RetrievalQuery) []models.KnowledgeEntry {
	setupKey := models.PatternKey(q.SetupType)
	var matched []models.KnowledgeEntry
	for _, e := range s.entries[models.SectionMistake] {
		if e.HasTag(q.Symbol) || (setupKey != "" && e.Key == setupKey) || e.HasTag(q.SetupType) {
			matched = append(matched, e)
		}
	}
	return recentFirst(matched)
}

func (s *FileStore) retrievalKey(q models.RetrievalQuery) string {
	return retrievalPrefix + strings.Join([]string{
		q.Symbol, string(q.Regime), string(q.Phase), q.SetupType,
		fmt.Sprintf("%d:%d", q.MaxSummaries, q.Budget),
	}, ":")
}

func truncate(entries []models.KnowledgeEntry, n int) []models.KnowledgeEntry {
	if n > 0 && len(entries) > n {
		return entries[:n]
	}
	return entries
}
