package ctxengine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/flemzord/chatmem/pkg/conversation"
)

// ErrCompactionFailed indicates that compaction could not produce a summary.
var ErrCompactionFailed = errors.New("ctxengine: compaction failed")

// Summarizer produces a condensed summary of the messages being folded out
// of the active window.
type Summarizer interface {
	Summarize(ctx context.Context, older []conversation.Message) (string, error)
}

// ExcerptSummarizer builds a summary from truncated excerpts: every older
// user message first, then every older assistant message.
type ExcerptSummarizer struct {
	ExcerptRunes int
}

// Compile-time interface check.
var _ Summarizer = (*ExcerptSummarizer)(nil)

// Summarize implements Summarizer.
func (s *ExcerptSummarizer) Summarize(_ context.Context, older []conversation.Message) (string, error) {
	var user, assistant []string
	for i := range older {
		switch older[i].Role {
		case conversation.RoleUser:
			user = append(user, Excerpt(older[i].Content, s.ExcerptRunes))
		case conversation.RoleAssistant:
			assistant = append(assistant, Excerpt(older[i].Content, s.ExcerptRunes))
		}
	}

	var b strings.Builder
	if len(user) > 0 {
		b.WriteString("User discussed: ")
		b.WriteString(strings.Join(user, "; "))
		b.WriteString(".")
	}
	if len(assistant) > 0 {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString("Assistant provided: ")
		b.WriteString(strings.Join(assistant, "; "))
		b.WriteString(".")
	}
	return b.String(), nil
}

// Excerpt returns at most n runes of s, trimmed of surrounding whitespace.
// A non-positive n returns s unchanged.
func Excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}

// Compaction is the outcome of Compactor.Compact.
type Compaction struct {
	// Kept holds the retained tail, in original order.
	Kept []conversation.Message

	// Older holds the folded messages, in original order.
	Older []conversation.Message

	// Summary is the summary to store after compaction.
	Summary string
}

// Compactor folds old messages into a summary and keeps a fixed tail.
type Compactor struct {
	summarizer Summarizer
	config     Config
}

// NewCompactor creates a Compactor. A nil summarizer falls back to an
// ExcerptSummarizer using the configured excerpt length.
func NewCompactor(summarizer Summarizer, cfg Config) *Compactor {
	cfg = cfg.WithDefaults()
	if summarizer == nil {
		summarizer = &ExcerptSummarizer{ExcerptRunes: cfg.ExcerptRunes}
	}
	return &Compactor{
		summarizer: summarizer,
		config:     cfg,
	}
}

// ShouldCompact reports whether tokens exceed the compression threshold.
func (c *Compactor) ShouldCompact(tokens int) bool {
	return tokens > c.config.CompressionThreshold
}

// RetainRecent returns the number of messages kept after compaction.
func (c *Compactor) RetainRecent() int {
	return c.config.RetainRecent
}

// Compact splits msgs into the retained tail and the folded head and builds
// the new summary. The bool result is false, and the Compaction empty, when
// msgs already fit in the retained tail.
func (c *Compactor) Compact(ctx context.Context, previousSummary string, msgs []conversation.Message) (Compaction, bool, error) {
	retain := c.config.RetainRecent
	if len(msgs) <= retain {
		return Compaction{}, false, nil
	}

	cut := len(msgs) - retain
	older := make([]conversation.Message, cut)
	copy(older, msgs[:cut])
	kept := make([]conversation.Message, retain)
	copy(kept, msgs[cut:])

	summary, err := c.summarizer.Summarize(ctx, older)
	if err != nil {
		return Compaction{}, false, fmt.Errorf("%w: %w", ErrCompactionFailed, err)
	}

	return Compaction{
		Kept:    kept,
		Older:   older,
		Summary: c.mergeSummary(previousSummary, summary),
	}, true, nil
}

func (c *Compactor) mergeSummary(previous, next string) string {
	if c.config.SummaryMode == SummaryReplace || previous == "" {
		return next
	}
	if next == "" {
		return previous
	}
	merged := previous + "\n\n" + next
	return trimFront(merged, c.config.MaxSummaryRunes)
}

// trimFront drops the oldest runes so that s is at most n runes long.
func trimFront(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[len(runes)-n:]))
}
