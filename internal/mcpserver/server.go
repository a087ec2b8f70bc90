// Package mcpserver exposes the conversation memory manager as Model Context
// Protocol tools served over stdio.
//
// Everything the server logs goes to the provided logger, never to stdout:
// stdout carries the JSON-RPC stream.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"

	"github.com/flemzord/chatmem/internal/memory"
	"github.com/flemzord/chatmem/pkg/conversation"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Tool names.
const (
	ToolCreateConversation   = "create_conversation"
	ToolAddMessage           = "add_message"
	ToolGetContext           = "get_context"
	ToolMemoryUsage          = "memory_usage"
	ToolListConversations    = "list_conversations"
	ToolDeleteConversation   = "delete_conversation"
	ToolCompressConversation = "compress_conversation"
)

// Manager is the subset of *memory.Manager used by the tools.
type Manager interface {
	CreateConversation(ctx context.Context, userID, title string, uc *conversation.UserContext) (string, error)
	AddMessage(ctx context.Context, id string, in memory.MessageInput) (conversation.Message, error)
	ContextForNewMessage(ctx context.Context, id string) (string, error)
	MemoryUsage(ctx context.Context, id string) (memory.Usage, error)
	UserConversations(ctx context.Context, userID string, limit int) ([]conversation.Conversation, error)
	DeleteConversation(ctx context.Context, id, userID string) error
	CompressConversation(ctx context.Context, id string) (bool, error)
}

var _ Manager = (*memory.Manager)(nil)

// Server binds a Manager to an MCP server.
type Server struct {
	manager Manager
	logger  *slog.Logger
	mcp     *server.MCPServer
}

// New creates a Server advertising name and version to clients.
func New(m Manager, name, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		manager: m,
		logger:  logger.With("component", "mcp"),
		mcp: server.NewMCPServer(name, version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcp }

// ServeStdio serves JSON-RPC requests read from in until ctx is cancelled or
// in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(slogWriter{s.logger}, "", 0))
	s.logger.Info("mcp server listening on stdio")
	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("mcp: serve stdio: %w", err)
	}
	return nil
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool(ToolCreateConversation,
		mcp.WithDescription("Create a new conversation for a user and return its id."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Owner of the conversation.")),
		mcp.WithString("title", mcp.Description("Conversation title.")),
		mcp.WithString("name", mcp.Description("User display name.")),
		mcp.WithString("company", mcp.Description("User company.")),
		mcp.WithString("job_title", mcp.Description("User role or job title.")),
		mcp.WithString("industry", mcp.Description("User industry.")),
		mcp.WithArray("goals", mcp.Description("User goals."), mcp.Items(map[string]any{"type": "string"})),
	), s.handleCreate)

	s.mcp.AddTool(mcp.NewTool(ToolAddMessage,
		mcp.WithDescription("Append a message to a conversation."),
		mcp.WithString("conversation_id", mcp.Required()),
		mcp.WithString("role", mcp.Required(), mcp.Enum(
			string(conversation.RoleUser), string(conversation.RoleAssistant), string(conversation.RoleSystem))),
		mcp.WithString("content", mcp.Required()),
	), s.handleAddMessage)

	s.mcp.AddTool(mcp.NewTool(ToolGetContext,
		mcp.WithDescription("Render the remembered context to prepend to the next model call."),
		mcp.WithString("conversation_id", mcp.Required()),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleContext)

	s.mcp.AddTool(mcp.NewTool(ToolMemoryUsage,
		mcp.WithDescription("Report token usage of a conversation against its budget."),
		mcp.WithString("conversation_id", mcp.Required()),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleUsage)

	s.mcp.AddTool(mcp.NewTool(ToolListConversations,
		mcp.WithDescription("List a user's conversations, most recently updated first."),
		mcp.WithString("user_id", mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("Maximum number of conversations; 0 means the default.")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleList)

	s.mcp.AddTool(mcp.NewTool(ToolDeleteConversation,
		mcp.WithDescription("Delete a conversation owned by user_id."),
		mcp.WithString("conversation_id", mcp.Required()),
		mcp.WithString("user_id", mcp.Required()),
		mcp.WithDestructiveHintAnnotation(true),
	), s.handleDelete)

	s.mcp.AddTool(mcp.NewTool(ToolCompressConversation,
		mcp.WithDescription("Fold older messages into the conversation summary."),
		mcp.WithString("conversation_id", mcp.Required()),
	), s.handleCompress)
}

func (s *Server) handleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	uc := &conversation.UserContext{
		Name:        req.GetString("name", ""),
		CompanyName: req.GetString("company", ""),
		JobTitle:    req.GetString("job_title", ""),
		Industry:    req.GetString("industry", ""),
		Goals:       req.GetStringSlice("goals", nil),
	}
	id, err := s.manager.CreateConversation(ctx, userID, req.GetString("title", ""), uc)
	if err != nil {
		return s.toolError(ToolCreateConversation, err), nil
	}
	return jsonResult(map[string]string{"conversationId": id})
}

func (s *Server) handleAddMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	role, err := req.RequireString("role")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	msg, err := s.manager.AddMessage(ctx, id, memory.MessageInput{
		Role:    conversation.Role(role),
		Content: content,
	})
	if err != nil {
		return s.toolError(ToolAddMessage, err), nil
	}
	return jsonResult(msg)
}

func (s *Server) handleContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := s.manager.ContextForNewMessage(ctx, id)
	if err != nil {
		return s.toolError(ToolGetContext, err), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleUsage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	u, err := s.manager.MemoryUsage(ctx, id)
	if err != nil {
		return s.toolError(ToolMemoryUsage, err), nil
	}
	return jsonResult(u)
}

type conversationSummary struct {
	ConversationID string `json:"conversationId"`
	Title          string `json:"title"`
	Messages       int    `json:"messages"`
	TokenCount     int    `json:"tokenCount"`
	IsActive       bool   `json:"isActive"`
	LastUpdated    string `json:"lastUpdated"`
}

func (s *Server) handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", 0)
	if limit < 0 {
		return mcp.NewToolResultError("limit must be non-negative"), nil
	}
	convs, err := s.manager.UserConversations(ctx, userID, limit)
	if err != nil {
		return s.toolError(ToolListConversations, err), nil
	}
	out := make([]conversationSummary, 0, len(convs))
	for i := range convs {
		c := &convs[i]
		out = append(out, conversationSummary{
			ConversationID: c.ID,
			Title:          c.Title,
			Messages:       len(c.Messages),
			TokenCount:     c.TokenCount,
			IsActive:       c.IsActive,
			LastUpdated:    c.LastUpdated.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return jsonResult(out)
}

func (s *Server) handleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.manager.DeleteConversation(ctx, id, userID); err != nil {
		return s.toolError(ToolDeleteConversation, err), nil
	}
	return mcp.NewToolResultText("deleted " + id), nil
}

func (s *Server) handleCompress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	compressed, err := s.manager.CompressConversation(ctx, id)
	if err != nil {
		return s.toolError(ToolCompressConversation, err), nil
	}
	return jsonResult(map[string]bool{"compressed": compressed})
}

// toolError reports err to the client as a tool failure. Only unexpected
// errors are logged; not-found and validation failures are caller mistakes.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, memory.ErrConversationNotFound),
		errors.Is(err, memory.ErrInvalidInput),
		errors.Is(err, memory.ErrInvalidRole):
	default:
		s.logger.Error("tool failed", "tool", tool, "error", err)
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: encode result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// slogWriter adapts the protocol server's *log.Logger output to slog.
type slogWriter struct{ logger *slog.Logger }

func (w slogWriter) Write(p []byte) (int, error) {
	msg := string(p)
	if n := len(msg); n > 0 && msg[n-1] == '\n' {
		msg = msg[:n-1]
	}
	w.logger.Warn(msg)
	return len(p), nil
}
