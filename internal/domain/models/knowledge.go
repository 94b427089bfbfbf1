package models

import (
	"strings"
	"time"
)

// KnowledgeSection names the distinct libraries of the knowledge store.
type KnowledgeSection string

const (
	SectionSummary KnowledgeSection = "session_summary"
	SectionRule    KnowledgeSection = "master_rule"
	SectionLesson  KnowledgeSection = "lesson"
	SectionBullish KnowledgeSection = "bullish_patterns"
	SectionBearish KnowledgeSection = "bearish_patterns"
	SectionMistake KnowledgeSection = "mistakes"
)

// KnowledgeEntry is one distilled, retrievable unit of trading history.
// Entries are append-only; a new entry with the same (section, key)
// supersedes the previous one.
type KnowledgeEntry struct {
	Section     KnowledgeSection `json:"section"`
	Key         string           `json:"key"`
	Title       string           `json:"title"`
	Body        string           `json:"body"`
	Tags        []string         `json:"tags,omitempty"`
	SuccessRate float64          `json:"success_rate"` // negative when unknown
	Occurrences int              `json:"occurrences"`
	CreatedAt   time.Time        `json:"created_at"`
}

// PatternKey normalizes a title into a dedup key for pattern sections.
func PatternKey(title string) string {
	k := strings.ToLower(strings.TrimSpace(title))
	k = strings.Join(strings.Fields(k), "_")
	return k
}

// HasTag reports whether the entry carries the given tag.
func (e KnowledgeEntry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// RetrievalQuery selects knowledge relevant to the coming cycle.
type RetrievalQuery struct {
	Symbol       string
	Regime       Regime
	Phase        SessionPhase
	SetupType    string
	MaxSummaries int // last K session summaries, default 5
	Budget       int // max entries per section, 0 = store default
}

// KnowledgeContext is the composed retrieval result handed to evaluators
// and the synthesizer. Read-only for consumers.
type KnowledgeContext struct {
	Rules     []KnowledgeEntry `json:"rules,omitempty"`
	Lessons   []KnowledgeEntry `json:"lessons,omitempty"`
	Summaries []KnowledgeEntry `json:"summaries,omitempty"`
	Patterns  []KnowledgeEntry `json:"patterns,omitempty"`
	Mistakes  []KnowledgeEntry `json:"mistakes,omitempty"`
}

// Entries flattens the context in priority order: rules first, then recent
// lessons and summaries, then patterns, then mistakes.
func (kc *KnowledgeContext) Entries() []KnowledgeEntry {
	if kc == nil {
		return nil
	}
	out := make([]KnowledgeEntry, 0,
		len(kc.Rules)+len(kc.Lessons)+len(kc.Summaries)+len(kc.Patterns)+len(kc.Mistakes))
	out = append(out, kc.Rules...)
	out = append(out, kc.Lessons...)
	out = append(out, kc.Summaries...)
	out = append(out, kc.Patterns...)
	out = append(out, kc.Mistakes...)
	return out
}

// SuccessRateFor looks up the historical success rate for a setup among
// retrieved patterns. Returns ok=false when no matching history exists.
func (kc *KnowledgeContext) SuccessRateFor(setup string) (float64, bool) {
	if kc == nil || setup == "" {
		return 0, false
	}
	key := PatternKey(setup)
	for _, e := range kc.Patterns {
		if e.Key == key && e.SuccessRate >= 0 {
			return e.SuccessRate, true
		}
	}
	return 0, false
}
