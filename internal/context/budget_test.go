package ctxengine_test

import (
	"testing"

	ctxengine "github.com/flemzord/chatmem/internal/context"
	"github.com/flemzord/chatmem/pkg/conversation"
)

func TestCharEstimator_Estimate(t *testing.T) {
	t.Parallel()

	e := ctxengine.NewCharEstimator(4)
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"one char", "a", 1},
		{"exact multiple", "abcdefgh", 2},
		{"rounds up", "abcdefghi", 3},
		{"counts runes not bytes", "éééé", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := e.Estimate(tt.text); got != tt.want {
				t.Errorf("Estimate(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestNewCharEstimator_DefaultRatio(t *testing.T) {
	t.Parallel()

	if got := ctxengine.NewCharEstimator(0).CharsPerToken; got != 4.0 {
		t.Errorf("CharsPerToken = %v, want 4", got)
	}
}

func TestEstimateMessages_RoundsOnceOverTotal(t *testing.T) {
	t.Parallel()

	e := ctxengine.NewCharEstimator(4)
	// 3 messages of 5 runes: per-message rounding would give 6, total gives 4.
	msgs := []conversation.Message{
		sized(conversation.RoleUser, 5),
		sized(conversation.RoleAssistant, 5),
		sized(conversation.RoleUser, 5),
	}
	if got := ctxengine.EstimateMessages(e, msgs); got != 4 {
		t.Errorf("EstimateMessages = %d, want 4", got)
	}
	if got := ctxengine.EstimateMessages(e, nil); got != 0 {
		t.Errorf("EstimateMessages(nil) = %d, want 0", got)
	}
}

func TestEstimateMessages_CustomEstimator(t *testing.T) {
	t.Parallel()

	msgs := []conversation.Message{
		{Content: "abc"},
		{Content: "de"},
	}
	if got := ctxengine.EstimateMessages(lenEstimator{}, msgs); got != 5 {
		t.Errorf("EstimateMessages = %d, want 5", got)
	}
}

func TestNewUsage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		tokens     int
		max        int
		wantPct    float64
		wantNeeded bool
	}{
		{"empty", 0, 4000, 0, false},
		{"at alert ratio", 3400, 4000, 85, false},
		{"above alert ratio", 3401, 4000, 85.025, true},
		{"zero budget", 10, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			u := ctxengine.NewUsage(tt.tokens, tt.max, 0.85)
			if u.TokenCount != tt.tokens || u.MaxTokens != tt.max {
				t.Errorf("usage = %+v", u)
			}
			if diff := u.UsagePercentage - tt.wantPct; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("UsagePercentage = %v, want %v", u.UsagePercentage, tt.wantPct)
			}
			if u.CompressionNeeded != tt.wantNeeded {
				t.Errorf("CompressionNeeded = %v, want %v", u.CompressionNeeded, tt.wantNeeded)
			}
		})
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	t.Parallel()

	cfg := ctxengine.Config{}.WithDefaults()
	if cfg.RetainRecent != 10 {
		t.Errorf("RetainRecent = %d, want 10", cfg.RetainRecent)
	}
	if cfg.ExcerptRunes != 100 {
		t.Errorf("ExcerptRunes = %d, want 100", cfg.ExcerptRunes)
	}
	if cfg.UsageAlertRatio != 0.85 {
		t.Errorf("UsageAlertRatio = %v, want 0.85", cfg.UsageAlertRatio)
	}
	if cfg.SummaryMode != ctxengine.SummaryCumulative {
		t.Errorf("SummaryMode = %q, want cumulative", cfg.SummaryMode)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     ctxengine.Config
		wantErr bool
	}{
		{"zero value", ctxengine.Config{}, false},
		{"defaults", ctxengine.Config{}.WithDefaults(), false},
		{"negative max", ctxengine.Config{MaxTokens: -1}, true},
		{"ratio above one", ctxengine.Config{UsageAlertRatio: 1.5}, true},
		{"unknown mode", ctxengine.Config{SummaryMode: "merge"}, true},
		{"replace mode", ctxengine.Config{SummaryMode: ctxengine.SummaryReplace}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
