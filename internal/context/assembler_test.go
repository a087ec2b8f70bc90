package ctxengine_test

import (
	"strings"
	"testing"

	ctxengine "github.com/flemzord/chatmem/internal/context"
	"github.com/flemzord/chatmem/pkg/conversation"
)

func TestRender_ProfileOnly(t *testing.T) {
	t.Parallel()

	got := ctxengine.Render(conversation.Context{
		UserProfile: conversation.UserProfile{Name: "User", Company: "Unknown company"},
	}, ctxengine.RenderOptions{})

	want := "User profile: User at Unknown company"
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestRender_FullOrder(t *testing.T) {
	t.Parallel()

	c := conversation.Context{
		UserProfile: conversation.UserProfile{
			Name:     "Amy",
			Company:  "Acme",
			Role:     "CMO",
			Industry: "SaaS",
		},
		BusinessContext: conversation.BusinessContext{
			TargetCustomer: "mid-market retailers",
			Challenges:     []string{"Churn is a problem", "Leads struggle to convert"},
		},
		ConversationSummary: "User discussed: pricing.",
		KeyInsights:         []string{"Key insight: email wins"},
		NextActions:         []string{"Next step: draft copy"},
	}

	got := ctxengine.Render(c, ctxengine.RenderOptions{IncludeNextActions: true})
	want := strings.Join([]string{
		"Previous conversation summary:\nUser discussed: pricing.",
		"Key insights:\n- Key insight: email wins",
		"Next actions:\n- Next step: draft copy",
		"Target customer: mid-market retailers\nCurrent challenges: Churn is a problem; Leads struggle to convert",
		"User profile: Amy, CMO at Acme\nIndustry: SaaS",
	}, "\n\n")
	if got != want {
		t.Errorf("Render mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestRender_NextActionsOptional(t *testing.T) {
	t.Parallel()

	c := conversation.Context{
		UserProfile: conversation.UserProfile{Name: "Amy"},
		NextActions: []string{"call the client"},
	}
	if got := ctxengine.Render(c, ctxengine.RenderOptions{}); strings.Contains(got, "Next actions") {
		t.Errorf("next actions rendered without the option: %q", got)
	}
}
