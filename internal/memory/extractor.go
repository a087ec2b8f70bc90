package memory

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/flemzord/chatmem/pkg/conversation"
)

// Extraction holds the context updates derived from a single message.
// Empty fields mean "no change".
type Extraction struct {
	Budget     string
	Timeframe  string
	Challenges []string
	Insights   []string
	Actions    []string
	Research   []string
}

// Extractor derives context updates from a newly appended message. The
// Manager applies the result; implementations must not keep references to
// the message.
type Extractor interface {
	Extract(ctx context.Context, msg conversation.Message) (Extraction, error)
}

// Keyword lists used by KeywordExtractor. Matching is case-insensitive.
var (
	TimeframeKeywords = []string{"month", "quarter", "year", "week", "asap", "urgent"}
	ChallengeKeywords = []string{"problem", "challenge", "issue", "difficult", "struggle"}
	InsightKeywords   = []string{"insight", "key point", "important", "strategy"}
	ActionKeywords    = []string{"next step", "action", "recommend", "should"}
)

var (
	budgetPattern   = regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d+)?(?:\s?[kKmM]\b)?`)
	bulletPattern   = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)
	sentencePattern = regexp.MustCompile(`[^.!?\n]+[.!?]*`)
)

// researchKey is the metadata field that marks a message as carrying the
// output of a research tool.
const researchKey = "researchData"

// KeywordExtractor is the default Extractor. It scans user messages for a
// budget, a timeframe and challenge sentences, and assistant messages for
// bulleted insight and action lines.
type KeywordExtractor struct{}

// Compile-time interface check.
var _ Extractor = KeywordExtractor{}

// Extract implements Extractor.
func (KeywordExtractor) Extract(_ context.Context, msg conversation.Message) (Extraction, error) {
	var ex Extraction

	switch msg.Role {
	case conversation.RoleUser:
		ex.Budget = findBudget(msg.Content)
		ex.Timeframe = findTimeframe(msg.Content)
		ex.Challenges = findChallenges(msg.Content)
	case conversation.RoleAssistant:
		ex.Insights, ex.Actions = findBulletLines(msg.Content)
	}

	if line, ok := researchLine(msg); ok {
		ex.Research = []string{line}
	}

	return ex, nil
}

// findBudget returns the first currency-like amount in s.
func findBudget(s string) string {
	m := budgetPattern.FindString(s)
	return strings.TrimRight(m, ",.")
}

// findTimeframe returns the last keyword, in list order, contained in s.
func findTimeframe(s string) string {
	lower := strings.ToLower(s)
	found := ""
	for _, kw := range TimeframeKeywords {
		if strings.Contains(lower, kw) {
			found = kw
		}
	}
	return found
}

// findChallenges returns every sentence of s that mentions a challenge keyword.
func findChallenges(s string) []string {
	var out []string
	for _, sentence := range sentencePattern.FindAllString(s, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence != "" && containsAny(strings.ToLower(sentence), ChallengeKeywords) {
			out = append(out, sentence)
		}
	}
	return out
}

// findBulletLines returns bulleted or numbered lines of s that carry an
// insight or an action keyword, with the list marker removed.
func findBulletLines(s string) (insights, actions []string) {
	for _, line := range strings.Split(s, "\n") {
		if !bulletPattern.MatchString(line) {
			continue
		}
		text := strings.TrimSpace(bulletPattern.ReplaceAllString(line, ""))
		if text == "" {
			continue
		}
		lower := strings.ToLower(text)
		if containsAny(lower, InsightKeywords) {
			insights = append(insights, text)
		}
		if containsAny(lower, ActionKeywords) {
			actions = append(actions, text)
		}
	}
	return insights, actions
}

// researchLine formats the research log entry for msg, if it carries
// research metadata.
func researchLine(msg conversation.Message) (string, bool) {
	data, ok := msg.Metadata[researchKey]
	if !ok || data == nil {
		return "", false
	}
	return fmt.Sprintf("Research conducted at %s: %s",
		msg.Timestamp.UTC().Format(time.RFC3339), describeResearch(data)), true
}

func describeResearch(data any) string {
	switch v := data.(type) {
	case string:
		if v != "" {
			return v
		}
	case map[string]any:
		for _, key := range []string{"query", "topic", "type"} {
			if s, ok := v[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return "research data attached"
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// appendCapped appends item unless an identical string is already present.
// When limit > 0 the oldest entries are evicted to keep at most limit items.
func appendCapped(list []string, item string, limit int) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	list = append(list, item)
	if limit > 0 && len(list) > limit {
		list = append(list[:0:0], list[len(list)-limit:]...)
	}
	return list
}

// NopExtractor is a no-op extractor for deployments that disable context
// extraction.
type NopExtractor struct{}

// Compile-time interface check.
var _ Extractor = NopExtractor{}

// Extract always returns an empty Extraction.
func (NopExtractor) Extract(_ context.Context, _ conversation.Message) (Extraction, error) {
	return Extraction{}, nil
}
