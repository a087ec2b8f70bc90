package ctxengine_test

import (
	"context"
	"fmt"
	"strings"

	"github.com/flemzord/chatmem/pkg/conversation"
)

// mockSummarizer implements ctxengine.Summarizer for tests.
type mockSummarizer struct {
	result string
	err    error
	called int
	got    []conversation.Message
}

func (m *mockSummarizer) Summarize(_ context.Context, older []conversation.Message) (string, error) {
	m.called++
	m.got = older
	return m.result, m.err
}

// lenEstimator counts one token per byte.
type lenEstimator struct{}

func (lenEstimator) Estimate(text string) int { return len(text) }

// makeTestMessages creates n alternating user/assistant messages.
func makeTestMessages(n int) []conversation.Message {
	msgs := make([]conversation.Message, n)
	for i := range msgs {
		role := conversation.RoleUser
		if i%2 == 1 {
			role = conversation.RoleAssistant
		}
		msgs[i] = conversation.Message{
			ID:      fmt.Sprintf("m%d", i),
			Role:    role,
			Content: fmt.Sprintf("msg-%d", i),
		}
	}
	return msgs
}

func sized(role conversation.Role, n int) conversation.Message {
	return conversation.Message{Role: role, Content: strings.Repeat("x", n)}
}
