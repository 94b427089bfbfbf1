package outcome

import (
	"fmt"
	"sort"
	"time"

	"Confluence/internal/domain/models"
)

// Distiller turns a session's scored records into at most two lessons: one
// positive lesson from the day's best decision and one avoidance lesson from
// its worst. Lessons come from extremes, never from averages.
type Distiller struct{}

func NewDistiller() *Distiller {
	return &Distiller{}
}

// Distill ranks the session's scored records by skill plus outcome and
// derives lessons from the two extremes. Lessons whose normalized key
// already exists among prior entries are dropped.
func (d *Distiller) Distill(session string, records []*models.DecisionRecord, existing []models.KnowledgeEntry) []models.KnowledgeEntry {
	scored := make([]*models.DecisionRecord, 0, len(records))
	for _, r := range records {
		if r != nil && r.Score != nil {
			scored = append(scored, r)
		}
	}
	if len(scored) == 0 {
		return nil
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return rankOf(scored[i]) > rankOf(scored[j])
	})

	seen := map[string]bool{}
	for _, e := range existing {
		if e.Section == models.SectionLesson {
			seen[e.Key] = true
		}
	}

	var lessons []models.KnowledgeEntry
	best := scored[0]
	worst := scored[len(scored)-1]

	if lesson := positiveLesson(session, best); lesson != nil && !seen[lesson.Key] {
		lessons = append(lessons, *lesson)
		seen[lesson.Key] = true
	}
	if worst != best {
		if lesson := avoidanceLesson(session, worst); lesson != nil && !seen[lesson.Key] {
			lessons = append(lessons, *lesson)
		}
	}
	return lessons
}

func rankOf(r *models.DecisionRecord) float64 {
	return r.Score.Skill + r.Score.Outcome
}

// positiveLesson encodes what the best decision did right. Only decisions
// that actually showed skill qualify; a pure-luck win teaches nothing worth
// repeating.
func positiveLesson(session string, r *models.DecisionRecord) *models.KnowledgeEntry {
	if r.Score.Skill < 40 {
		return nil
	}
	setup := dominantSetup(r.Decision)
	if setup == "" {
		setup = "confluence"
	}
	title := fmt.Sprintf("repeat %s on %s", setup, r.Symbol)
	body := fmt.Sprintf(
		"Best decision of %s: %s scored skill %.0f / outcome %.0f (%s). "+
			"Slider %.2f with agreement %d in a %s regime held up; keep taking this setup when the same confluence appears.",
		session, r.Key(), r.Score.Skill, r.Score.Outcome, r.Score.Quadrant,
		r.Decision.Slider, r.Decision.Agreement, r.Decision.Regime)

	return &models.KnowledgeEntry{
		Section:     models.SectionLesson,
		Key:         models.PatternKey(title),
		Title:       title,
		Body:        body,
		Tags:        []string{r.Symbol, string(r.Decision.Regime), setup, "positive"},
		SuccessRate: -1,
		Occurrences: 1,
		CreatedAt:   time.Now(),
	}
}

// avoidanceLesson encodes what the worst decision got wrong.
func avoidanceLesson(session string, r *models.DecisionRecord) *models.KnowledgeEntry {
	if r.Score.Combined >= 60 {
		// The worst decision of a clean day is not a mistake.
		return nil
	}
	setup := dominantSetup(r.Decision)
	if setup == "" {
		setup = "confluence"
	}
	title := fmt.Sprintf("avoid %s on %s", setup, r.Symbol)

	failure := "process broke down"
	switch {
	case r.Score.Components.Alignment < 15:
		failure = "signals disagreed with the direction taken"
	case r.Score.Components.Sizing < 10:
		failure = "position size was outside bounds"
	case r.Score.Components.RiskReward < 10:
		failure = "realized risk/reward was unfavorable"
	case r.Score.Components.PatternMatch < 10:
		failure = "historical setups like this rarely worked"
	}
	body := fmt.Sprintf(
		"Worst decision of %s: %s scored skill %.0f / outcome %.0f (%s). "+
			"Primary defect: %s. Skip or downsize this setup next time.",
		session, r.Key(), r.Score.Skill, r.Score.Outcome, r.Score.Quadrant, failure)

	return &models.KnowledgeEntry{
		Section:     models.SectionLesson,
		Key:         models.PatternKey(title),
		Title:       title,
		Body:        body,
		Tags:        []string{r.Symbol, string(r.Decision.Regime), setup, "avoidance"},
		SuccessRate: -1,
		Occurrences: 1,
		CreatedAt:   time.Now(),
	}
}
