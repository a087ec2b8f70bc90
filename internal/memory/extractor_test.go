package memory

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/flemzord/chatmem/pkg/conversation"
)

func TestKeywordExtractor_UserMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		content    string
		budget     string
		timeframe  string
		challenges []string
	}{
		{
			name:    "budget without timeframe keyword",
			content: "Our budget is $50,000 for Q3",
			budget:  "$50,000",
		},
		{
			name:    "budget with suffix",
			content: "We can spend $ 20k.",
			budget:  "$ 20k",
		},
		{
			name:      "last keyword in list order wins",
			content:   "Maybe next week, definitely this year",
			timeframe: "week",
		},
		{
			name:      "case insensitive",
			content:   "ASAP please",
			timeframe: "asap",
		},
		{
			name:       "challenge sentences",
			content:    "Lead quality is a Problem! Otherwise fine. We struggle with retention?",
			challenges: []string{"Lead quality is a Problem!", "We struggle with retention?"},
		},
		{
			name:    "nothing to extract",
			content: "Hello there",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ex, err := KeywordExtractor{}.Extract(context.Background(), conversation.Message{
				Role:    conversation.RoleUser,
				Content: tt.content,
			})
			if err != nil {
				t.Fatalf("Extract() error: %v", err)
			}
			if ex.Budget != tt.budget {
				t.Errorf("Budget = %q, want %q", ex.Budget, tt.budget)
			}
			if ex.Timeframe != tt.timeframe {
				t.Errorf("Timeframe = %q, want %q", ex.Timeframe, tt.timeframe)
			}
			if !reflect.DeepEqual(ex.Challenges, tt.challenges) {
				t.Errorf("Challenges = %q, want %q", ex.Challenges, tt.challenges)
			}
			if ex.Insights != nil || ex.Actions != nil {
				t.Errorf("user message produced insights/actions: %+v", ex)
			}
		})
	}
}

func TestKeywordExtractor_AssistantMessages(t *testing.T) {
	t.Parallel()

	content := "Summary of our talk.\n" +
		"- Key point: your CAC is high\n" +
		"* An important strategy you should adopt\n" +
		"2) Recommend a referral program\n" +
		"This insight is not bulleted\n" +
		"- Plain bullet"

	ex, err := KeywordExtractor{}.Extract(context.Background(), conversation.Message{
		Role:    conversation.RoleAssistant,
		Content: content,
	})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	wantInsights := []string{"Key point: your CAC is high", "An important strategy you should adopt"}
	wantActions := []string{"An important strategy you should adopt", "Recommend a referral program"}
	if !reflect.DeepEqual(ex.Insights, wantInsights) {
		t.Errorf("Insights = %q, want %q", ex.Insights, wantInsights)
	}
	if !reflect.DeepEqual(ex.Actions, wantActions) {
		t.Errorf("Actions = %q, want %q", ex.Actions, wantActions)
	}
	if ex.Budget != "" || ex.Challenges != nil {
		t.Errorf("assistant message produced business context: %+v", ex)
	}
}

func TestKeywordExtractor_Research(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		data any
		want []string
	}{
		{"query", map[string]any{"query": "crm trends"}, []string{"Research conducted at 2026-03-01T12:00:00Z: crm trends"}},
		{"topic fallback", map[string]any{"topic": "pricing"}, []string{"Research conducted at 2026-03-01T12:00:00Z: pricing"}},
		{"string", "competitor scan", []string{"Research conducted at 2026-03-01T12:00:00Z: competitor scan"}},
		{"opaque", []any{1, 2}, []string{"Research conducted at 2026-03-01T12:00:00Z: research data attached"}},
		{"nil", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ex, err := KeywordExtractor{}.Extract(context.Background(), conversation.Message{
				Role:      conversation.RoleSystem,
				Content:   "tool output",
				Timestamp: ts,
				Metadata:  map[string]any{"researchData": tt.data},
			})
			if err != nil {
				t.Fatalf("Extract() error: %v", err)
			}
			if !reflect.DeepEqual(ex.Research, tt.want) {
				t.Errorf("Research = %q, want %q", ex.Research, tt.want)
			}
		})
	}
}

func TestAppendCapped(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		list  []string
		item  string
		limit int
		want  []string
	}{
		{"append", []string{"a"}, "b", 0, []string{"a", "b"}},
		{"dedup", []string{"a", "b"}, "a", 0, []string{"a", "b"}},
		{"evict oldest", []string{"a", "b"}, "c", 2, []string{"b", "c"}},
		{"nil list", nil, "a", 1, []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := appendCapped(tt.list, tt.item, tt.limit); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("appendCapped() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNopExtractor(t *testing.T) {
	t.Parallel()

	ex, err := NopExtractor{}.Extract(context.Background(), conversation.Message{Role: conversation.RoleUser, Content: "$100 problem asap"})
	if err != nil || !reflect.DeepEqual(ex, Extraction{}) {
		t.Errorf("Extract() = %+v, %v", ex, err)
	}
}
