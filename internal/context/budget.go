package ctxengine

import (
	"math"
	"unicode/utf8"

	"github.com/flemzord/chatmem/pkg/conversation"
)

// TokenEstimator estimates the token count of a string.
type TokenEstimator interface {
	Estimate(text string) int
}

// CharEstimator estimates tokens using a simple characters-per-token ratio.
// A ratio of ~4 works well for English; ~3 for French or other Latin languages.
type CharEstimator struct {
	CharsPerToken float64
}

// NewCharEstimator creates a CharEstimator with the given ratio.
// If charsPerToken is <= 0, defaults to 4.0 (English approximation).
func NewCharEstimator(charsPerToken float64) *CharEstimator {
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	return &CharEstimator{CharsPerToken: charsPerToken}
}

// Estimate returns ceil(runes / CharsPerToken).
func (e *CharEstimator) Estimate(text string) int {
	return e.fromRunes(utf8.RuneCountInString(text))
}

func (e *CharEstimator) fromRunes(n int) int {
	if n == 0 {
		return 0
	}
	return int(math.Ceil(float64(n) / e.CharsPerToken))
}

// EstimateMessages returns the estimated token count of the concatenated
// content of msgs. The estimate is taken over the total, not per message,
// so rounding happens once.
func EstimateMessages(estimator TokenEstimator, msgs []conversation.Message) int {
	if ce, ok := estimator.(*CharEstimator); ok {
		total := 0
		for i := range msgs {
			total += utf8.RuneCountInString(msgs[i].Content)
		}
		return ce.fromRunes(total)
	}

	n := 0
	for i := range msgs {
		n += len(msgs[i].Content)
	}
	buf := make([]byte, 0, n)
	for i := range msgs {
		buf = append(buf, msgs[i].Content...)
	}
	return estimator.Estimate(string(buf))
}

// Usage is a point-in-time view of a conversation's token consumption.
type Usage struct {
	TokenCount        int     `json:"tokenCount"`
	MaxTokens         int     `json:"maxTokens"`
	UsagePercentage   float64 `json:"usagePercentage"`
	CompressionNeeded bool    `json:"compressionNeeded"`
}

// NewUsage computes usage for tokens against maxTokens. CompressionNeeded is
// advisory: it is true once tokens exceed alertRatio of the budget.
func NewUsage(tokens, maxTokens int, alertRatio float64) Usage {
	u := Usage{TokenCount: tokens, MaxTokens: maxTokens}
	if maxTokens > 0 {
		u.UsagePercentage = float64(tokens) / float64(maxTokens) * 100
		u.CompressionNeeded = float64(tokens) > alertRatio*float64(maxTokens)
	}
	return u
}
