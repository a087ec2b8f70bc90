package ctxengine_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	ctxengine "github.com/flemzord/chatmem/internal/context"
	"github.com/flemzord/chatmem/pkg/conversation"
)

func TestCompactor_ShouldCompact(t *testing.T) {
	t.Parallel()

	c := ctxengine.NewCompactor(nil, ctxengine.Config{CompressionThreshold: 200})

	tests := []struct {
		name   string
		tokens int
		want   bool
	}{
		{"above threshold", 201, true},
		{"at threshold", 200, false},
		{"below threshold", 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := c.ShouldCompact(tt.tokens); got != tt.want {
				t.Errorf("ShouldCompact(%d) = %v, want %v", tt.tokens, got, tt.want)
			}
		})
	}
}

func TestCompactor_Compact_NoOpWithinRetained(t *testing.T) {
	t.Parallel()

	summarizer := &mockSummarizer{result: "unused"}
	c := ctxengine.NewCompactor(summarizer, ctxengine.Config{})

	_, compacted, err := c.Compact(context.Background(), "", makeTestMessages(10))
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if compacted {
		t.Error("10 messages should not be compacted")
	}
	if summarizer.called != 0 {
		t.Errorf("summarizer called %d times, want 0", summarizer.called)
	}
}

func TestCompactor_Compact_SplitsTail(t *testing.T) {
	t.Parallel()

	summarizer := &mockSummarizer{result: "summary of old messages"}
	c := ctxengine.NewCompactor(summarizer, ctxengine.Config{RetainRecent: 3})

	msgs := makeTestMessages(8)
	res, compacted, err := c.Compact(context.Background(), "", msgs)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if !compacted {
		t.Fatal("expected compaction")
	}
	if len(res.Kept) != 3 || res.Kept[0].ID != "m5" || res.Kept[2].ID != "m7" {
		t.Errorf("kept = %+v, want m5..m7", res.Kept)
	}
	if len(res.Older) != 5 || res.Older[0].ID != "m0" {
		t.Errorf("older = %+v, want m0..m4", res.Older)
	}
	if len(summarizer.got) != 5 {
		t.Errorf("summarizer received %d messages, want 5", len(summarizer.got))
	}
	if res.Summary != "summary of old messages" {
		t.Errorf("Summary = %q", res.Summary)
	}

	// The caller's slice must not alias the result.
	res.Kept[0].Content = "mutated"
	if msgs[5].Content == "mutated" {
		t.Error("Kept aliases the input slice")
	}
}

func TestCompactor_Compact_SummaryModes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mode ctxengine.SummaryMode
		want string
	}{
		{"replace drops previous", ctxengine.SummaryReplace, "new"},
		{"cumulative keeps previous", ctxengine.SummaryCumulative, "old\n\nnew"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := ctxengine.NewCompactor(&mockSummarizer{result: "new"}, ctxengine.Config{
				RetainRecent: 1,
				SummaryMode:  tt.mode,
			})
			res, _, err := c.Compact(context.Background(), "old", makeTestMessages(3))
			if err != nil {
				t.Fatalf("Compact: %v", err)
			}
			if res.Summary != tt.want {
				t.Errorf("Summary = %q, want %q", res.Summary, tt.want)
			}
		})
	}
}

func TestCompactor_Compact_CumulativeTrimsOldest(t *testing.T) {
	t.Parallel()

	c := ctxengine.NewCompactor(&mockSummarizer{result: "NEWEST"}, ctxengine.Config{
		RetainRecent:    1,
		MaxSummaryRunes: 10,
	})
	res, _, err := c.Compact(context.Background(), strings.Repeat("o", 50), makeTestMessages(2))
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if !strings.HasSuffix(res.Summary, "NEWEST") {
		t.Errorf("Summary = %q, want the newest text kept", res.Summary)
	}
	if n := len([]rune(res.Summary)); n > 10 {
		t.Errorf("Summary has %d runes, want <= 10", n)
	}
}

func TestCompactor_Compact_SummarizerError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	c := ctxengine.NewCompactor(&mockSummarizer{err: boom}, ctxengine.Config{RetainRecent: 1})

	_, _, err := c.Compact(context.Background(), "", makeTestMessages(3))
	if !errors.Is(err, ctxengine.ErrCompactionFailed) {
		t.Errorf("error = %v, want ErrCompactionFailed", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped cause", err)
	}
}

func TestExcerptSummarizer_UserThenAssistant(t *testing.T) {
	t.Parallel()

	s := &ctxengine.ExcerptSummarizer{ExcerptRunes: 5}
	older := []conversation.Message{
		{Role: conversation.RoleAssistant, Content: "answer one"},
		{Role: conversation.RoleUser, Content: "question one"},
		{Role: conversation.RoleSystem, Content: "ignored"},
		{Role: conversation.RoleUser, Content: "hi"},
	}
	got, err := s.Summarize(context.Background(), older)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	want := "User discussed: quest; hi. Assistant provided: answe."
	if got != want {
		t.Errorf("Summarize = %q, want %q", got, want)
	}
}

func TestExcerpt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 100, "short"},
		{"  padded  ", 100, "padded"},
		{"abcdef", 3, "abc"},
		{"ééééé", 2, "éé"},
		{"anything", 0, "anything"},
	}
	for _, tt := range tests {
		if got := ctxengine.Excerpt(tt.in, tt.n); got != tt.want {
			t.Errorf("Excerpt(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
