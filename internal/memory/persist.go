package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flemzord/chatmem/pkg/conversation"
)

// Persistence keys.
const (
	conversationKeyPrefix = "conversation_"
	userIndexKeyPrefix    = "user_conversations_"
	settingsKey           = "memory_settings"
)

// ConversationKey returns the KV key holding the snapshot of conversation id.
func ConversationKey(id string) string { return conversationKeyPrefix + id }

// UserIndexKey returns the KV key holding the conversation ids of userID.
func UserIndexKey(userID string) string { return userIndexKeyPrefix + userID }

func idFromKey(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, conversationKeyPrefix)
	return id, ok && id != ""
}

// normalizeMetadata passes md through JSON so the resident copy holds the
// same values a reload would produce (float64 numbers, []any slices). Empty
// metadata becomes nil.
func normalizeMetadata(md map[string]any) (map[string]any, error) {
	if len(md) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(md)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeConversation(c *conversation.Conversation) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("memory: encode conversation %s: %w", c.ID, err)
	}
	return string(raw), nil
}

func decodeConversation(raw string) (*conversation.Conversation, error) {
	var c conversation.Conversation
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("memory: decode conversation: %w", err)
	}
	if c.ID == "" {
		return nil, fmt.Errorf("memory: decode conversation: missing id")
	}
	return &c, nil
}

// storedVersion reads only the version of the persisted snapshot of id.
func storedVersion(ctx context.Context, kv KV, id string) (uint64, bool, error) {
	raw, ok, err := kv.Get(ctx, ConversationKey(id))
	if err != nil || !ok {
		return 0, false, err
	}
	var probe struct {
		Version uint64 `json:"version"`
	}
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return 0, false, nil
	}
	return probe.Version, true, nil
}

func encodeIndex(ids []string) (string, error) {
	raw, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("memory: encode user index: %w", err)
	}
	return string(raw), nil
}

func decodeIndex(raw string) ([]string, error) {
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("memory: decode user index: %w", err)
	}
	return ids, nil
}
