package ctxengine

import (
	"strings"

	"github.com/flemzord/chatmem/pkg/conversation"
)

// RenderOptions tunes the rendered context block.
type RenderOptions struct {
	// IncludeNextActions adds the recommended next actions after the key
	// insights.
	IncludeNextActions bool
}

// Render assembles the context block injected ahead of the next model call.
//
// Sections appear in a fixed order and empty ones are skipped:
//  1. conversation summary
//  2. key insights
//  3. next actions (when enabled)
//  4. target customer and challenges
//  5. user profile (always present)
//  6. industry
func Render(c conversation.Context, opts RenderOptions) string {
	var sections []string

	if c.ConversationSummary != "" {
		sections = append(sections, "Previous conversation summary:\n"+c.ConversationSummary)
	}
	if len(c.KeyInsights) > 0 {
		sections = append(sections, bulleted("Key insights:", c.KeyInsights))
	}
	if opts.IncludeNextActions && len(c.NextActions) > 0 {
		sections = append(sections, bulleted("Next actions:", c.NextActions))
	}

	var business []string
	if c.BusinessContext.TargetCustomer != "" {
		business = append(business, "Target customer: "+c.BusinessContext.TargetCustomer)
	}
	if len(c.BusinessContext.Challenges) > 0 {
		business = append(business, "Current challenges: "+strings.Join(c.BusinessContext.Challenges, "; "))
	}
	if len(business) > 0 {
		sections = append(sections, strings.Join(business, "\n"))
	}

	profile := profileLine(c.UserProfile)
	if c.UserProfile.Industry != "" {
		profile += "\nIndustry: " + c.UserProfile.Industry
	}
	sections = append(sections, profile)

	return strings.Join(sections, "\n\n")
}

func profileLine(p conversation.UserProfile) string {
	var b strings.Builder
	b.WriteString("User profile: ")
	b.WriteString(p.Name)
	if p.Role != "" {
		b.WriteString(", ")
		b.WriteString(p.Role)
	}
	if p.Company != "" {
		b.WriteString(" at ")
		b.WriteString(p.Company)
	}
	return b.String()
}

func bulleted(title string, items []string) string {
	var b strings.Builder
	b.WriteString(title)
	for _, item := range items {
		b.WriteString("\n- ")
		b.WriteString(item)
	}
	return b.String()
}
