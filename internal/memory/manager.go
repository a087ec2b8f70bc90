package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ctxengine "github.com/flemzord/chatmem/internal/context"
	"github.com/flemzord/chatmem/pkg/conversation"
)

// Sentinel errors returned by Manager.
var (
	ErrConversationNotFound = errors.New("memory: conversation not found")
	ErrInvalidRole          = errors.New("memory: invalid message role")
	ErrInvalidInput         = errors.New("memory: invalid input")
)

// Defaults applied to conversations created without a user context.
const (
	DefaultUserName = "User"
	DefaultCompany  = "Unknown company"
	DefaultTitle    = "New conversation"
)

const tracerName = "github.com/flemzord/chatmem/internal/memory"

// MessageInput is a message as submitted by a caller; the Manager assigns
// the id and timestamp.
type MessageInput struct {
	Role     conversation.Role `json:"role"`
	Content  string            `json:"content"`
	Metadata map[string]any    `json:"metadata,omitempty"`
}

// Usage is the memory usage report of a conversation.
type Usage = ctxengine.Usage

// Options configures a Manager. Only KV is required.
type Options struct {
	KV         KV
	Extractor  Extractor
	Summarizer ctxengine.Summarizer
	Estimator  ctxengine.TokenEstimator
	Observer   Observer
	Logger     *slog.Logger
	Tracer     trace.Tracer
	Now        func() time.Time
	Config     Config
}

// Manager owns every resident conversation and the per-user indexes. It is
// safe for concurrent use; mutations are serialised by a single lock and
// observers are notified after the lock is released.
type Manager struct {
	mu sync.Mutex

	kv         KV
	extractor  Extractor
	summarizer ctxengine.Summarizer
	compactor  *ctxengine.Compactor
	estimator  ctxengine.TokenEstimator
	observer   Observer
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time
	config     Config

	conversations map[string]*conversation.Conversation
	userIndex     map[string][]string
}

// NewManager creates a Manager from opts.
func NewManager(opts Options) (*Manager, error) {
	if opts.KV == nil {
		return nil, fmt.Errorf("%w: kv is required", ErrInvalidInput)
	}
	cfg := opts.Config.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		kv:            opts.KV,
		extractor:     opts.Extractor,
		summarizer:    opts.Summarizer,
		estimator:     opts.Estimator,
		observer:      opts.Observer,
		logger:        opts.Logger,
		tracer:        opts.Tracer,
		now:           opts.Now,
		conversations: make(map[string]*conversation.Conversation),
		userIndex:     make(map[string][]string),
	}
	if m.extractor == nil {
		m.extractor = KeywordExtractor{}
	}
	if m.estimator == nil {
		m.estimator = ctxengine.NewCharEstimator(4)
	}
	if m.observer == nil {
		m.observer = nopObserver{}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "memory")
	if m.tracer == nil {
		m.tracer = otel.Tracer(tracerName)
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.setConfigLocked(cfg)
	return m, nil
}

// CreateConversation registers a new, empty conversation for userID and
// persists it. Missing profile fields fall back to defaults.
func (m *Manager) CreateConversation(ctx context.Context, userID, title string, uc *conversation.UserContext) (string, error) {
	ctx, span := m.startSpan(ctx, "memory.CreateConversation", attribute.String("user.id", userID))
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return "", m.fail(span, fmt.Errorf("%w: user id is required", ErrInvalidInput))
	}
	if title == "" {
		title = DefaultTitle
	}

	now := m.timestamp()
	c := &conversation.Conversation{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       title,
		Context:     conversation.Context{UserProfile: profileFrom(uc)},
		CreatedAt:   now,
		LastUpdated: now,
		IsActive:    true,
		Version:     1,
	}

	m.mu.Lock()
	ids, indexed, events := m.indexLocked(ctx, userID)
	m.conversations[c.ID] = c

	events = append(events, Event{Type: EventCreated, ConversationID: c.ID, UserID: userID, Time: now})
	events = append(events, m.saveLocked(ctx, c)...)
	if indexed {
		m.userIndex[userID] = append(slices.Clone(ids), c.ID)
		events = append(events, m.saveIndexLocked(ctx, userID)...)
	} else {
		m.logger.Warn("user index unavailable, conversation will be indexed on next read",
			"conversation_id", c.ID, "user_id", userID)
	}
	m.mu.Unlock()

	m.notify(events...)
	span.SetAttributes(attribute.String("conversation.id", c.ID))
	m.logger.Debug("conversation created", "conversation_id", c.ID, "user_id", userID)
	return c.ID, nil
}

func profileFrom(uc *conversation.UserContext) conversation.UserProfile {
	p := conversation.UserProfile{Name: DefaultUserName, Company: DefaultCompany}
	if uc == nil {
		return p
	}
	if uc.Name != "" {
		p.Name = uc.Name
	}
	if uc.CompanyName != "" {
		p.Company = uc.CompanyName
	}
	p.Role = uc.JobTitle
	p.Industry = uc.Industry
	p.Goals = slices.Clone(uc.Goals)
	return p
}

// AddMessage appends a message, updates the derived context, compresses the
// conversation when it crosses the threshold, and persists the result. It
// returns a copy of the stored message.
func (m *Manager) AddMessage(ctx context.Context, id string, in MessageInput) (conversation.Message, error) {
	ctx, span := m.startSpan(ctx, "memory.AddMessage",
		attribute.String("conversation.id", id),
		attribute.String("message.role", string(in.Role)))
	defer span.End()

	if !in.Role.Valid() {
		return conversation.Message{}, m.fail(span, fmt.Errorf("%w: %q", ErrInvalidRole, in.Role))
	}
	metadata, err := normalizeMetadata(in.Metadata)
	if err != nil {
		return conversation.Message{}, m.fail(span, fmt.Errorf("%w: metadata: %v", ErrInvalidInput, err))
	}

	m.mu.Lock()
	c, ok := m.loadLocked(ctx, id)
	if !ok {
		m.mu.Unlock()
		return conversation.Message{}, m.fail(span, fmt.Errorf("%w: %s", ErrConversationNotFound, id))
	}

	now := m.touchLocked(c)
	msg := conversation.Message{
		ID:        uuid.NewString(),
		Role:      in.Role,
		Content:   in.Content,
		Timestamp: now,
		Metadata:  metadata,
	}
	c.Messages = append(c.Messages, msg)
	c.TokenCount = ctxengine.EstimateMessages(m.estimator, c.Messages)
	if !c.IsActive {
		c.IsActive = true
		m.logger.Info("conversation reactivated", "conversation_id", id)
	}

	if ex, err := m.extractor.Extract(ctx, msg.Clone()); err != nil {
		m.logger.Warn("context extraction failed", "conversation_id", id, "error", err)
	} else {
		m.applyExtraction(&c.Context, ex)
	}

	events := []Event{{
		Type:           EventMessageAdded,
		ConversationID: id,
		UserID:         c.UserID,
		Role:           msg.Role,
		TokenCount:     c.TokenCount,
		Time:           now,
	}}

	if m.config.autoCompress() && m.compactor.ShouldCompact(c.TokenCount) {
		dropped, err := m.compressLocked(ctx, c)
		switch {
		case err != nil:
			m.logger.Warn("auto-compression failed", "conversation_id", id, "error", err)
		case dropped > 0:
			events = append(events, m.compressedEvent(c, dropped))
		}
	}

	events = append(events, m.saveLocked(ctx, c)...)
	out := msg.Clone()
	tokens := c.TokenCount
	m.mu.Unlock()

	m.notify(events...)
	span.SetAttributes(attribute.Int("conversation.tokens", tokens))
	return out, nil
}

func (m *Manager) applyExtraction(cc *conversation.Context, ex Extraction) {
	if ex.Budget != "" {
		cc.BusinessContext.Budget = ex.Budget
	}
	if ex.Timeframe != "" {
		cc.BusinessContext.Timeframe = ex.Timeframe
	}
	for _, s := range ex.Challenges {
		cc.BusinessContext.Challenges = appendCapped(cc.BusinessContext.Challenges, s, m.config.MaxChallenges)
	}
	for _, s := range ex.Insights {
		cc.KeyInsights = appendCapped(cc.KeyInsights, s, m.config.MaxInsights)
	}
	for _, s := range ex.Actions {
		cc.NextActions = appendCapped(cc.NextActions, s, m.config.MaxActions)
	}
	for _, s := range ex.Research {
		cc.ResearchConducted = appendCapped(cc.ResearchConducted, s, m.config.MaxResearch)
	}
}

// CompressConversation folds all but the most recent messages into the
// summary. It reports false, and changes nothing, when the conversation
// already fits in the retained window.
func (m *Manager) CompressConversation(ctx context.Context, id string) (bool, error) {
	ctx, span := m.startSpan(ctx, "memory.CompressConversation", attribute.String("conversation.id", id))
	defer span.End()

	m.mu.Lock()
	c, ok := m.loadLocked(ctx, id)
	if !ok {
		m.mu.Unlock()
		return false, m.fail(span, fmt.Errorf("%w: %s", ErrConversationNotFound, id))
	}

	dropped, err := m.compressLocked(ctx, c)
	if err != nil || dropped == 0 {
		m.mu.Unlock()
		if err != nil {
			return false, m.fail(span, err)
		}
		return false, nil
	}

	events := []Event{m.compressedEvent(c, dropped)}
	events = append(events, m.saveLocked(ctx, c)...)
	m.mu.Unlock()

	m.notify(events...)
	span.SetAttributes(attribute.Int("compression.dropped", dropped))
	return true, nil
}

// compressLocked compacts c in place without persisting it and returns the
// number of messages folded into the summary.
func (m *Manager) compressLocked(ctx context.Context, c *conversation.Conversation) (int, error) {
	res, ok, err := m.compactor.Compact(ctx, c.Context.ConversationSummary, c.Messages)
	if err != nil {
		return 0, fmt.Errorf("memory: compress %s: %w", c.ID, err)
	}
	if !ok {
		return 0, nil
	}

	// Insights are rebuilt from the folded messages only and replace the
	// current list.
	var insights []string
	for i := range res.Older {
		if res.Older[i].Role != conversation.RoleAssistant {
			continue
		}
		ex, err := m.extractor.Extract(ctx, res.Older[i])
		if err != nil {
			m.logger.Warn("insight extraction failed during compression", "conversation_id", c.ID, "error", err)
			continue
		}
		for _, s := range ex.Insights {
			insights = appendCapped(insights, s, m.config.MaxInsights)
		}
	}

	c.Messages = res.Kept
	c.Context.ConversationSummary = res.Summary
	c.Context.KeyInsights = insights
	c.TokenCount = ctxengine.EstimateMessages(m.estimator, c.Messages)
	m.touchLocked(c)

	m.logger.Info("conversation compressed",
		"conversation_id", c.ID,
		"dropped", len(res.Older),
		"kept", len(res.Kept),
		"tokens", c.TokenCount,
	)
	return len(res.Older), nil
}

func (m *Manager) compressedEvent(c *conversation.Conversation, dropped int) Event {
	return Event{
		Type:           EventCompressed,
		ConversationID: c.ID,
		UserID:         c.UserID,
		TokenCount:     c.TokenCount,
		Dropped:        dropped,
		Time:           c.LastUpdated,
	}
}

// ContextForNewMessage renders the context block to inject ahead of the next
// model call. Unknown ids yield "" and ErrConversationNotFound.
func (m *Manager) ContextForNewMessage(ctx context.Context, id string) (string, error) {
	ctx, span := m.startSpan(ctx, "memory.ContextForNewMessage", attribute.String("conversation.id", id))
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.loadLocked(ctx, id)
	if !ok {
		return "", m.fail(span, fmt.Errorf("%w: %s", ErrConversationNotFound, id))
	}
	return ctxengine.Render(c.Context, ctxengine.RenderOptions{
		IncludeNextActions: m.config.IncludeNextActions,
	}), nil
}

// MemoryUsage reports token usage against the configured budget. It never
// triggers compression.
func (m *Manager) MemoryUsage(ctx context.Context, id string) (Usage, error) {
	ctx, span := m.startSpan(ctx, "memory.MemoryUsage", attribute.String("conversation.id", id))
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.loadLocked(ctx, id)
	if !ok {
		return Usage{}, m.fail(span, fmt.Errorf("%w: %s", ErrConversationNotFound, id))
	}
	return ctxengine.NewUsage(c.TokenCount, m.config.Context.MaxTokens, m.config.Context.UsageAlertRatio), nil
}

// Conversation returns a copy of the conversation, loading it from
// persistence when it is not resident.
func (m *Manager) Conversation(ctx context.Context, id string) (conversation.Conversation, error) {
	ctx, span := m.startSpan(ctx, "memory.Conversation", attribute.String("conversation.id", id))
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.loadLocked(ctx, id)
	if !ok {
		return conversation.Conversation{}, m.fail(span, fmt.Errorf("%w: %s", ErrConversationNotFound, id))
	}
	return c.Clone(), nil
}

// UserConversations returns up to limit conversations owned by userID, most
// recently updated first. A non-positive limit uses the configured default.
func (m *Manager) UserConversations(ctx context.Context, userID string, limit int) ([]conversation.Conversation, error) {
	ctx, span := m.startSpan(ctx, "memory.UserConversations", attribute.String("user.id", userID))
	defer span.End()

	if limit <= 0 {
		limit = m.config.DefaultListLimit
	}

	m.mu.Lock()
	ids, _, events := m.indexLocked(ctx, userID)
	var out []conversation.Conversation
	for _, id := range ids {
		c, ok := m.loadLocked(ctx, id)
		if !ok || c.UserID != userID {
			continue
		}
		out = append(out, c.Clone())
	}
	m.mu.Unlock()
	m.notify(events...)

	slices.SortStableFunc(out, func(a, b conversation.Conversation) int {
		return b.LastUpdated.Compare(a.LastUpdated)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	span.SetAttributes(attribute.Int("result.count", len(out)))
	return out, nil
}

// DeleteConversation removes the conversation, its persisted snapshot, and
// its entry in the user index. Deleting an unknown id is not an error.
func (m *Manager) DeleteConversation(ctx context.Context, id, userID string) error {
	ctx, span := m.startSpan(ctx, "memory.DeleteConversation", attribute.String("conversation.id", id))
	defer span.End()

	if id == "" {
		return m.fail(span, fmt.Errorf("%w: conversation id is required", ErrInvalidInput))
	}

	m.mu.Lock()
	events := m.deleteLocked(ctx, id, userID)
	m.mu.Unlock()

	m.notify(events...)
	return nil
}

func (m *Manager) deleteLocked(ctx context.Context, id, userID string) []Event {
	owner := userID
	if c, ok := m.loadLocked(ctx, id); ok {
		owner = c.UserID
	}
	delete(m.conversations, id)

	var events []Event
	for _, uid := range uniqueNonEmpty(userID, owner) {
		ids, indexed, evs := m.indexLocked(ctx, uid)
		events = append(events, evs...)
		if !indexed {
			continue
		}
		if i := slices.Index(ids, id); i >= 0 {
			m.userIndex[uid] = slices.Delete(slices.Clone(ids), i, i+1)
			events = append(events, m.saveIndexLocked(ctx, uid)...)
		}
	}
	if err := m.kv.Remove(ctx, ConversationKey(id)); err != nil {
		events = append(events, m.persistFailed(id, "remove", err))
	}

	events = append(events, Event{Type: EventDeleted, ConversationID: id, UserID: owner, Time: m.timestamp()})
	m.logger.Debug("conversation deleted", "conversation_id", id, "user_id", owner)
	return events
}

// UpdateTitle renames a conversation.
func (m *Manager) UpdateTitle(ctx context.Context, id, title string) error {
	ctx, span := m.startSpan(ctx, "memory.UpdateTitle", attribute.String("conversation.id", id))
	defer span.End()

	title = strings.TrimSpace(title)
	if title == "" {
		return m.fail(span, fmt.Errorf("%w: title is required", ErrInvalidInput))
	}

	m.mu.Lock()
	c, ok := m.loadLocked(ctx, id)
	if !ok {
		m.mu.Unlock()
		return m.fail(span, fmt.Errorf("%w: %s", ErrConversationNotFound, id))
	}
	c.Title = title
	m.touchLocked(c)
	events := m.saveLocked(ctx, c)
	m.mu.Unlock()

	m.notify(events...)
	return nil
}

// Resident returns the ids of the conversations currently held in memory,
// sorted.
func (m *Manager) Resident() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.conversations))
	for id := range m.conversations {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// loadLocked returns the resident conversation, loading it from the KV when
// needed. Read errors and corrupt snapshots are logged and reported as
// missing.
func (m *Manager) loadLocked(ctx context.Context, id string) (*conversation.Conversation, bool) {
	if c, ok := m.conversations[id]; ok {
		return c, true
	}
	if id == "" {
		return nil, false
	}

	raw, ok, err := m.kv.Get(ctx, ConversationKey(id))
	if err != nil {
		m.logger.Warn("load conversation failed", "conversation_id", id, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	c, err := decodeConversation(raw)
	if err != nil {
		m.logger.Warn("corrupt conversation snapshot ignored", "conversation_id", id, "error", err)
		return nil, false
	}
	m.conversations[c.ID] = c
	return c, true
}

// indexLocked returns the id list of userID, loading it from the KV on first
// use. The returned slice must not be modified in place.
//
// When the stored index cannot be read, indexLocked returns the resident
// conversations of userID with ok false. That list is neither cached nor
// meant to be written back, so a failed read never replaces the stored index.
// Once a read succeeds, resident conversations missing from the stored list
// are merged in and the index is saved.
func (m *Manager) indexLocked(ctx context.Context, userID string) (ids []string, ok bool, events []Event) {
	if ids, ok := m.userIndex[userID]; ok {
		return ids, true, nil
	}

	raw, found, err := m.kv.Get(ctx, UserIndexKey(userID))
	if err != nil {
		m.logger.Warn("load user index failed", "user_id", userID, "error", err)
		return m.residentIDs(userID, nil), false, nil
	}
	var stored []string
	if found {
		if stored, err = decodeIndex(raw); err != nil {
			m.logger.Warn("corrupt user index ignored", "user_id", userID, "error", err)
			stored = nil
		}
	}

	ids = m.residentIDs(userID, stored)
	m.userIndex[userID] = ids
	if len(ids) > len(stored) {
		events = m.saveIndexLocked(ctx, userID)
	}
	return ids, true, events
}

// residentIDs appends to base the resident conversations of userID it lacks.
func (m *Manager) residentIDs(userID string, base []string) []string {
	ids := slices.Clone(base)
	var extra []string
	for id, c := range m.conversations {
		if c.UserID == userID && !slices.Contains(ids, id) {
			extra = append(extra, id)
		}
	}
	slices.Sort(extra)
	return append(ids, extra...)
}

// saveLocked persists c. Failures are logged and returned as events, never
// as errors.
func (m *Manager) saveLocked(ctx context.Context, c *conversation.Conversation) []Event {
	if v, ok, err := storedVersion(ctx, m.kv, c.ID); err == nil && ok && v >= c.Version {
		m.logger.Warn("concurrent writer detected, overwriting",
			"conversation_id", c.ID,
			"stored_version", v,
			"version", c.Version,
		)
	}

	raw, err := encodeConversation(c)
	if err == nil {
		err = m.kv.Set(ctx, ConversationKey(c.ID), raw)
	}
	if err != nil {
		return []Event{m.persistFailed(c.ID, "set", err)}
	}
	return nil
}

func (m *Manager) saveIndexLocked(ctx context.Context, userID string) []Event {
	ids := m.userIndex[userID]
	var err error
	if len(ids) == 0 {
		err = m.kv.Remove(ctx, UserIndexKey(userID))
	} else {
		var raw string
		if raw, err = encodeIndex(ids); err == nil {
			err = m.kv.Set(ctx, UserIndexKey(userID), raw)
		}
	}
	if err != nil {
		return []Event{m.persistFailed("", "set_index", err)}
	}
	return nil
}

func (m *Manager) persistFailed(id, op string, err error) Event {
	m.logger.Error("persist failed", "conversation_id", id, "op", op, "error", err)
	return Event{
		Type:           EventPersistFailed,
		ConversationID: id,
		Op:             op,
		Error:          err.Error(),
		Time:           m.timestamp(),
	}
}

// touchLocked advances LastUpdated and Version. The clock is clamped so
// LastUpdated never moves backwards.
func (m *Manager) touchLocked(c *conversation.Conversation) time.Time {
	now := m.timestamp()
	if now.Before(c.LastUpdated) {
		now = c.LastUpdated
	}
	c.LastUpdated = now
	c.Version++
	return now
}

// timestamp returns the current time in UTC without a monotonic reading, so
// that values survive a JSON round trip unchanged.
func (m *Manager) timestamp() time.Time {
	return m.now().UTC()
}

func (m *Manager) notify(events ...Event) {
	for _, e := range events {
		m.observer.Observe(e)
	}
}

func (m *Manager) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (m *Manager) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func uniqueNonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
