// Package conversation defines the data contract for chat conversations
// held by the memory manager: messages, the compressed context carried
// between turns, and the per-conversation record that owns both.
package conversation

import (
	"maps"
	"slices"
	"time"
)

// Role identifies the author of a chat message.
type Role string

// Supported message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the supported roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is a single chat turn. Messages are immutable once appended to a
// conversation; accessors hand out copies.
type Message struct {
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	m.Metadata = cloneMap(m.Metadata)
	return m
}

// UserProfile describes who the assistant is talking to. It is seeded when
// the conversation is created and is not touched by message processing.
type UserProfile struct {
	Name     string   `json:"name"`
	Company  string   `json:"company"`
	Industry string   `json:"industry"`
	Role     string   `json:"role"`
	Goals    []string `json:"goals"`
}

// BusinessContext accumulates business facts extracted from user messages.
type BusinessContext struct {
	TargetCustomer string   `json:"targetCustomer"`
	Challenges     []string `json:"challenges"`
	Budget         string   `json:"budget"`
	Timeframe      string   `json:"timeframe"`
}

// Context is the compact state carried forward between chat turns. Each
// Conversation owns exactly one Context; it is never shared.
type Context struct {
	UserProfile         UserProfile     `json:"userProfile"`
	BusinessContext     BusinessContext `json:"businessContext"`
	ConversationSummary string          `json:"conversationSummary"`
	KeyInsights         []string        `json:"keyInsights"`
	NextActions         []string        `json:"nextActions"`
	ResearchConducted   []string        `json:"researchConducted"`
}

// Clone returns a deep copy of the context.
func (c Context) Clone() Context {
	c.UserProfile.Goals = slices.Clone(c.UserProfile.Goals)
	c.BusinessContext.Challenges = slices.Clone(c.BusinessContext.Challenges)
	c.KeyInsights = slices.Clone(c.KeyInsights)
	c.NextActions = slices.Clone(c.NextActions)
	c.ResearchConducted = slices.Clone(c.ResearchConducted)
	return c
}

// Conversation is one chat session and everything remembered about it.
type Conversation struct {
	ID          string    `json:"conversationId"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Messages    []Message `json:"messages"`
	Context     Context   `json:"context"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
	TokenCount  int       `json:"tokenCount"`
	IsActive    bool      `json:"isActive"`

	// Version is bumped on every mutation and persisted with the snapshot
	// so a second writer to the same id can be detected.
	Version uint64 `json:"version"`
}

// Clone returns a deep copy of the conversation.
func (c Conversation) Clone() Conversation {
	if c.Messages != nil {
		msgs := make([]Message, len(c.Messages))
		for i := range c.Messages {
			msgs[i] = c.Messages[i].Clone()
		}
		c.Messages = msgs
	}
	c.Context = c.Context.Clone()
	return c
}

// UserContext seeds the profile of a new conversation.
type UserContext struct {
	Name        string   `json:"name,omitempty"`
	CompanyName string   `json:"companyName,omitempty"`
	JobTitle    string   `json:"jobTitle,omitempty"`
	Industry    string   `json:"industry,omitempty"`
	Goals       []string `json:"goals,omitempty"`
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := maps.Clone(m)
	for k, v := range out {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = cloneValue(val[i])
		}
		return out
	case []string:
		return slices.Clone(val)
	default:
		return v
	}
}
