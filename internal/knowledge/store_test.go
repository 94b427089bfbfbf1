package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Confluence/internal/domain/models"
	"Confluence/internal/domain/repository"
	"Confluence/pkg/cache"
)

func newTestStore(t *testing.T, cacheSvc cache.Service) *FileStore {
	t.Helper()
	store, err := NewFileStore(Config{BaseDir: t.TempDir()}, cacheSvc, nil)
	require.NoError(t, err)
	return store
}

func entry(section models.KnowledgeSection, key, title string, age time.Duration, tags ...string) models.KnowledgeEntry {
	return models.KnowledgeEntry{
		Section:     section,
		Key:         key,
		Title:       title,
		Body:        "body of " + title,
		Tags:        tags,
		SuccessRate: -1,
		CreatedAt:   time.Now().Add(-age),
	}
}

func TestAppendAndRetrieveComposition(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)

	require.NoError(t, store.Append(ctx, "2025-03-12", entry(models.SectionRule, "half_kelly", "Half Kelly always", time.Hour)))
	require.NoError(t, store.Append(ctx, "2025-03-12", entry(models.SectionSummary, "2025-03-12", "Session 2025-03-12", time.Hour)))
	require.NoError(t, store.Append(ctx, "2025-03-12", entry(models.SectionBullish, "orb_breakout", "ORB breakout", time.Hour, "trending", "open")))
	require.NoError(t, store.Append(ctx, "2025-03-12", entry(models.SectionBullish, "lunch_drift", "Lunch drift", time.Hour, "ranging", "lunch")))
	require.NoError(t, store.Append(ctx, "2025-03-12", entry(models.SectionMistake, "chasing_spy", "Chasing SPY", time.Hour, "SPY")))
	require.NoError(t, store.Append(ctx, "2025-03-12", entry(models.SectionMistake, "qqq_fomo", "QQQ fomo", time.Hour, "QQQ")))

	kc, err := store.Retrieve(ctx, models.RetrievalQuery{
		Symbol: "SPY",
		Regime: models.RegimeTrending,
		Phase:  models.PhaseOpen,
	})
	require.NoError(t, err)

	require.Len(t, kc.Rules, 1)
	assert.Equal(t, "half_kelly", kc.Rules[0].Key)
	require.Len(t, kc.Summaries, 1)
	require.Len(t, kc.Patterns, 1)
	assert.Equal(t, "orb_breakout", kc.Patterns[0].Key)
	require.Len(t, kc.Mistakes, 1)
	assert.Equal(t, "chasing_spy", kc.Mistakes[0].Key)
}

func TestAppendSupersedesSameKey(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)

	first := entry(models.SectionSummary, "2025-03-12", "Session 2025-03-12", 2*time.Hour)
	first.Body = "draft"
	require.NoError(t, store.Append(ctx, "2025-03-12", first))

	second := entry(models.SectionSummary, "2025-03-12", "Session 2025-03-12", time.Hour)
	second.Body = "final"
	require.NoError(t, store.Append(ctx, "2025-03-12", second))

	kc, err := store.Retrieve(ctx, models.RetrievalQuery{})
	require.NoError(t, err)
	require.Len(t, kc.Summaries, 1)
	assert.Equal(t, "final", kc.Summaries[0].Body)
	assert.Equal(t, 1, kc.Summaries[0].Occurrences)
}

func TestAppendCapsSectionSize(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(Config{BaseDir: t.TempDir(), MaxSectionItems: 2}, nil, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(ctx, "2025-03-12",
			entry(models.SectionLesson, fmt.Sprintf("lesson_%d", i), fmt.Sprintf("Lesson %d", i), time.Duration(3-i)*time.Hour)))
	}

	kc, err := store.Retrieve(ctx, models.RetrievalQuery{})
	require.NoError(t, err)
	require.Len(t, kc.Rules, 0)

	store.mu.RLock()
	lessons := store.entries[models.SectionLesson]
	store.mu.RUnlock()
	require.Len(t, lessons, 2)
	assert.Equal(t, "lesson_1", lessons[0].Key)
	assert.Equal(t, "lesson_2", lessons[1].Key)
}

func TestRetrieveIdempotentWithoutWrites(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)
	for i := 0; i < 4; i++ {
		require.NoError(t, store.Append(ctx, "2025-03-12",
			entry(models.SectionRule, fmt.Sprintf("rule_%d", i), fmt.Sprintf("Rule %d", i), time.Duration(i)*time.Hour)))
	}

	q := models.RetrievalQuery{Budget: 3}
	first, err := store.Retrieve(ctx, q)
	require.NoError(t, err)
	second, err := store.Retrieve(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Newest first, budget-truncated.
	require.Len(t, first.Rules, 3)
	assert.Equal(t, "rule_0", first.Rules[0].Key)
}

func TestAppendRejectedWhileSessionLocked(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemoryCache()
	store := newTestStore(t, mem)

	locked, err := mem.TryLock(ctx, lockKeyPrefix+"2025-03-12", time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	err = store.Append(ctx, "2025-03-12", entry(models.SectionRule, "r", "R", 0))
	assert.ErrorIs(t, err, repository.ErrSessionLocked)

	// Other sessions are unaffected.
	assert.NoError(t, store.Append(ctx, "2025-03-13", entry(models.SectionRule, "r2", "R2", 0)))
}

func TestAppendInvalidatesRetrievalCache(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, cache.NewMemoryCache())

	require.NoError(t, store.Append(ctx, "2025-03-12", entry(models.SectionRule, "rule_a", "Rule A", time.Hour)))
	kc, err := store.Retrieve(ctx, models.RetrievalQuery{})
	require.NoError(t, err)
	require.Len(t, kc.Rules, 1)

	require.NoError(t, store.Append(ctx, "2025-03-12", entry(models.SectionRule, "rule_b", "Rule B", 0)))
	kc, err = store.Retrieve(ctx, models.RetrievalQuery{})
	require.NoError(t, err)
	assert.Len(t, kc.Rules, 2)
}

func TestStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(Config{BaseDir: dir}, nil, nil)
	require.NoError(t, err)

	require.NoError(t, store.Append(ctx, "2025-03-12", entry(models.SectionSummary, "2025-03-12", "Session 2025-03-12", time.Hour)))
	require.NoError(t, store.Append(ctx, "2025-03-12", entry(models.SectionBearish, "fade_gap", "Fade the gap", time.Hour, "volatile")))

	reopened, err := NewFileStore(Config{BaseDir: dir}, nil, nil)
	require.NoError(t, err)
	kc, err := reopened.Retrieve(ctx, models.RetrievalQuery{Regime: models.RegimeVolatile})
	require.NoError(t, err)
	require.Len(t, kc.Summaries, 1)
	require.Len(t, kc.Patterns, 1)

	for _, rel := range []string{
		"knowledge.json",
		"master_index.md",
		"lessons_learned.md",
		filepath.Join("patterns", "bearish_patterns.md"),
		filepath.Join("sessions", "2025-03-12", "daily_summary.md"),
	} {
		_, err := os.Stat(filepath.Join(dir, rel))
		assert.NoError(t, err, rel)
	}
}

func TestWriteDecisionLog(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(Config{BaseDir: dir}, nil, nil)
	require.NoError(t, err)

	records := []*models.DecisionRecord{{
		Session: "2025-03-12",
		Cycle:   "2025-03-12T10:00:00-04:00",
		Symbol:  "SPY",
		Decision: models.Decision{
			Symbol: "SPY", Slider: 0.31, Confidence: 0.64,
			Regime: models.RegimeTrending, Agreement: 2,
		},
		Status: models.StatusExecuted,
	}}

	require.NoError(t, store.WriteDecisionLog(ctx, "2025-03-12", records))

	data, err := os.ReadFile(filepath.Join(dir, "sessions", "2025-03-12", "slider_decisions.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "| 2025-03-12T10:00:00-04:00 | SPY | +0.310 | 0.64 | trending | 2 | executed |")

	_, err = os.Stat(filepath.Join(dir, "sessions", "2025-03-12", "decisions.json"))
	assert.NoError(t, err)
}
