package strategy

import "Confluence/internal/domain/models"

// historyShift converts the track record of retrieved knowledge entries
// tagged with a strategy into a win-probability adjustment. The bands
// mirror the pattern-match component of the skill score: strong history
// nudges p up, weak history pulls it down, no history leaves p alone.
func historyShift(kc *models.KnowledgeContext, strategy string) float64 {
	if kc == nil {
		return 0
	}
	var sum float64
	var n int
	for _, section := range [][]models.KnowledgeEntry{kc.Patterns, kc.Lessons} {
		for _, e := range section {
			if e.SuccessRate < 0 || !e.HasTag(strategy) {
				continue
			}
			sum += e.SuccessRate
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	switch {
	case mean >= 0.7:
		return 0.03
	case mean >= 0.5:
		return 0
	case mean >= 0.3:
		return -0.03
	default:
		return -0.05
	}
}
