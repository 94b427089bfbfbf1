package knowledge

import (
	"fmt"
	"strings"
	"time"

	"Confluence/internal/domain/models"
)

// renderMasterIndex builds the cross-session index: standing rules, recent
// lessons, and store statistics.
func renderMasterIndex(rules, lessons []models.KnowledgeEntry, counts map[models.KnowledgeSection]int) []byte {
	var b strings.Builder
	b.WriteString("# Master Index\n\n")
	b.WriteString(fmt.Sprintf("Updated: %s\n\n", time.Now().Format(time.RFC3339)))

	b.WriteString("## Standing Rules\n\n")
	if len(rules) == 0 {
		b.WriteString("No rules recorded yet.\n")
	}
	for _, r := range rules {
		b.WriteString(fmt.Sprintf("- **%s**: %s\n", r.Title, r.Body))
	}

	b.WriteString("\n## Recent Lessons\n\n")
	if len(lessons) == 0 {
		b.WriteString("No lessons recorded yet.\n")
	}
	for i, l := range lessons {
		if i >= 10 {
			break
		}
		b.WriteString(fmt.Sprintf("- %s (%s): %s\n",
			l.Title, l.CreatedAt.Format("2006-01-02"), l.Body))
	}

	b.WriteString("\n## Statistics\n\n")
	for _, section := range []models.KnowledgeSection{
		models.SectionSummary, models.SectionRule, models.SectionLesson,
		models.SectionBullish, models.SectionBearish, models.SectionMistake,
	} {
		b.WriteString(fmt.Sprintf("- %s: %d entries\n", section, counts[section]))
	}
	return []byte(b.String())
}

// renderSection builds a flat markdown listing of one knowledge section.
func renderSection(title string, entries []models.KnowledgeEntry) []byte {
	var b strings.Builder
	b.WriteString("# " + title + "\n\n")
	if len(entries) == 0 {
		b.WriteString("Empty.\n")
		return []byte(b.String())
	}
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("## %s\n\n", e.Title))
		b.WriteString(fmt.Sprintf("- Recorded: %s\n", e.CreatedAt.Format(time.RFC3339)))
		if e.SuccessRate >= 0 {
			b.WriteString(fmt.Sprintf("- Success rate: %.0f%% over %d occurrences\n",
				e.SuccessRate*100, e.Occurrences))
		}
		if len(e.Tags) > 0 {
			b.WriteString(fmt.Sprintf("- Tags: %s\n", strings.Join(e.Tags, ", ")))
		}
		b.WriteString("\n" + e.Body + "\n\n")
	}
	return []byte(b.String())
}

// renderSliderLog builds the per-cycle decision table for one session.
func renderSliderLog(session string, records []*models.DecisionRecord) []byte {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("# Slider Decisions %s\n\n", session))
	b.WriteString("| Cycle | Symbol | Slider | Confidence | Regime | Agreement | Status |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, r := range records {
		if r == nil {
			continue
		}
		b.WriteString(fmt.Sprintf("| %s | %s | %+.3f | %.2f | %s | %d | %s |\n",
			r.Cycle, r.Symbol, r.Decision.Slider, r.Decision.Confidence,
			r.Decision.Regime, r.Decision.Agreement, r.Status))
	}
	return []byte(b.String())
}

// BuildDailySummary composes the human-readable session narrative from the
// day's scored records. The returned entry supersedes any earlier summary
// for the same session key.
func BuildDailySummary(session string, records []*models.DecisionRecord, lessons []models.KnowledgeEntry) models.KnowledgeEntry {
	var scored int
	var pnl, skillSum, luckSum float64
	var wentRight, wentWrong []string
	regimes := map[models.Regime]int{}
	for _, r := range records {
		if r == nil {
			continue
		}
		regimes[r.Decision.Regime]++
		if r.Outcome != nil {
			pnl += r.Outcome.PnL
		}
		if r.Score == nil {
			continue
		}
		scored++
		skillSum += r.Score.Skill
		luckSum += r.Score.LuckFactor
		line := fmt.Sprintf("%s %s: skill %.0f, outcome %.0f (%s)",
			r.Cycle, r.Symbol, r.Score.Skill, r.Score.Outcome, r.Score.Quadrant)
		if r.Score.Combined >= 60 {
			wentRight = append(wentRight, line)
		} else {
			wentWrong = append(wentWrong, line)
		}
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("# Daily Summary %s\n\n", session))
	b.WriteString("## Performance\n\n")
	b.WriteString(fmt.Sprintf("- Decisions: %d (%d scored)\n", len(records), scored))
	b.WriteString(fmt.Sprintf("- Net PnL: %+.2f\n", pnl))
	if scored > 0 {
		b.WriteString(fmt.Sprintf("- Mean skill: %.1f\n", skillSum/float64(scored)))
		b.WriteString(fmt.Sprintf("- Mean luck factor: %.1f%%\n", luckSum/float64(scored)))
	}
	for regime, n := range regimes {
		b.WriteString(fmt.Sprintf("- Regime %s: %d cycles\n", regime, n))
	}

	b.WriteString("\n## What Went Right\n\n")
	if len(wentRight) == 0 {
		b.WriteString("Nothing cleared the bar today.\n")
	}
	for _, line := range wentRight {
		b.WriteString("- " + line + "\n")
	}

	b.WriteString("\n## What Went Wrong\n\n")
	if len(wentWrong) == 0 {
		b.WriteString("No process failures recorded.\n")
	}
	for _, line := range wentWrong {
		b.WriteString("- " + line + "\n")
	}

	b.WriteString("\n## Next-Day Lessons\n\n")
	if len(lessons) == 0 {
		b.WriteString("No new lessons distilled.\n")
	}
	for _, l := range lessons {
		b.WriteString(fmt.Sprintf("- **%s**: %s\n", l.Title, l.Body))
	}

	return models.KnowledgeEntry{
		Section:     models.SectionSummary,
		Key:         session,
		Title:       "Session " + session,
		Body:        b.String(),
		SuccessRate: -1,
		CreatedAt:   time.Now(),
	}
}
