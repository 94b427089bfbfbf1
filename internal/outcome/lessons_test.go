package outcome

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Confluence/internal/domain/models"
)

func scoredRecord(symbol string, skill, outcome float64, signals ...models.Signal) *models.DecisionRecord {
	rec := executedRecord(0.3, signals...)
	rec.Symbol = symbol
	rec.Decision.Symbol = symbol
	rec.Score = &models.OutcomeScore{
		Skill:      skill,
		Outcome:    outcome,
		Combined:   0.6*skill + 0.4*outcome,
		LuckFactor: luckFactor(skill, outcome),
		Components: models.SkillComponents{
			Alignment:    skill * 0.3,
			Sizing:       skill * 0.2,
			RiskReward:   skill * 0.25,
			PatternMatch: skill * 0.25,
		},
		Quadrant: models.QuadrantFor(skill, outcome),
		ScoredAt: time.Now(),
	}
	rec.Status = models.StatusScored
	return rec
}

func TestDistillLessonsFromExtremes(t *testing.T) {
	d := NewDistiller()
	records := []*models.DecisionRecord{
		scoredRecord("SPY", 45, 50, models.NewSignal("gap", 0.4, 0.6, 0.3, "gap go")),
		scoredRecord("SPY", 80, 90, models.NewSignal("orb", 0.6, 0.8, 0.5, "breakout")),
		scoredRecord("QQQ", 10, 20, models.NewSignal("squeeze", 0.3, 0.5, 0.2, "late fire")),
	}

	lessons := d.Distill("2025-03-12", records, nil)
	require.Len(t, lessons, 2)

	positive, avoidance := lessons[0], lessons[1]
	assert.Equal(t, models.SectionLesson, positive.Section)
	assert.Contains(t, positive.Title, "repeat orb")
	assert.Contains(t, positive.Tags, "positive")
	assert.Contains(t, positive.Tags, "SPY")

	assert.Contains(t, avoidance.Title, "avoid squeeze")
	assert.Contains(t, avoidance.Tags, "avoidance")
	assert.Contains(t, avoidance.Tags, "QQQ")
}

func TestDistillDeduplicatesAgainstExisting(t *testing.T) {
	d := NewDistiller()
	records := []*models.DecisionRecord{
		scoredRecord("SPY", 80, 90, models.NewSignal("orb", 0.6, 0.8, 0.5, "breakout")),
		scoredRecord("QQQ", 10, 20, models.NewSignal("squeeze", 0.3, 0.5, 0.2, "late fire")),
	}
	existing := []models.KnowledgeEntry{{
		Section: models.SectionLesson,
		Key:     models.PatternKey("repeat orb on SPY"),
	}}

	lessons := d.Distill("2025-03-12", records, existing)
	require.Len(t, lessons, 1)
	assert.Contains(t, lessons[0].Title, "avoid squeeze")
}

func TestDistillSingleRecordYieldsOneLesson(t *testing.T) {
	d := NewDistiller()
	records := []*models.DecisionRecord{
		scoredRecord("SPY", 80, 90, models.NewSignal("orb", 0.6, 0.8, 0.5, "breakout")),
	}

	lessons := d.Distill("2025-03-12", records, nil)
	require.Len(t, lessons, 1)
	assert.Contains(t, lessons[0].Tags, "positive")
}

func TestDistillSkipsLowSkillPositive(t *testing.T) {
	d := NewDistiller()
	// A lucky day teaches nothing to repeat; the weak process still
	// yields an avoidance lesson from the other extreme.
	records := []*models.DecisionRecord{
		scoredRecord("SPY", 35, 95, models.NewSignal("orb", 0.6, 0.8, 0.5, "breakout")),
		scoredRecord("QQQ", 10, 20, models.NewSignal("squeeze", 0.3, 0.5, 0.2, "late fire")),
	}

	lessons := d.Distill("2025-03-12", records, nil)
	require.Len(t, lessons, 1)
	assert.Contains(t, lessons[0].Tags, "avoidance")
}

func TestDistillIgnoresUnscoredRecords(t *testing.T) {
	d := NewDistiller()
	unscored := executedRecord(0.3, models.NewSignal("orb", 0.6, 0.8, 0.5, "breakout"))

	assert.Nil(t, d.Distill("2025-03-12", []*models.DecisionRecord{unscored, nil}, nil))
}
