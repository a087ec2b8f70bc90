package gateway

import (
	"net/http"
	"strconv"

	"github.com/flemzord/chatmem/internal/memory"
	"github.com/flemzord/chatmem/pkg/conversation"
	"github.com/go-chi/chi/v5"
)

type createRequest struct {
	UserID      string                    `json:"userId"`
	Title       string                    `json:"title"`
	UserContext *conversation.UserContext `json:"userContext"`
}

type createResponse struct {
	ConversationID string `json:"conversationId"`
}

type titleRequest struct {
	Title string `json:"title"`
}

type compressResponse struct {
	Compressed bool `json:"compressed"`
}

type contextResponse struct {
	ConversationID string `json:"conversationId"`
	Context        string `json:"context"`
}

// mountAPI registers the conversation endpoints on r.
func (g *Gateway) mountAPI(r chi.Router) {
	r.Post("/conversations", g.handleCreate)
	r.Get("/users/{userID}/conversations", g.handleList)
	r.Route("/conversations/{id}", func(r chi.Router) {
		r.Get("/", g.handleGet)
		r.Patch("/", g.handleUpdateTitle)
		r.Delete("/", g.handleDelete)
		r.Post("/messages", g.handleAddMessage)
		r.Post("/compress", g.handleCompress)
		r.Post("/archive", g.handleArchive)
		r.Get("/context", g.handleContext)
		r.Get("/usage", g.handleUsage)
	})
	r.Get("/settings", g.handleGetSettings)
	r.Put("/settings", g.handlePutSettings)
}

func (g *Gateway) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := g.manager.CreateConversation(r.Context(), req.UserID, req.Title, req.UserContext)
	if err != nil {
		writeManagerError(w, err)
		return
	}
	w.Header().Set("Location", "/api/conversations/"+id)
	writeJSON(w, http.StatusCreated, createResponse{ConversationID: id})
}

func (g *Gateway) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	convs, err := g.manager.UserConversations(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		writeManagerError(w, err)
		return
	}
	if convs == nil {
		convs = []conversation.Conversation{}
	}
	writeJSON(w, http.StatusOK, convs)
}

func (g *Gateway) handleGet(w http.ResponseWriter, r *http.Request) {
	c, err := g.manager.Conversation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (g *Gateway) handleUpdateTitle(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := g.manager.UpdateTitle(r.Context(), chi.URLParam(r, "id"), req.Title); err != nil {
		writeManagerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleDelete(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if err := g.manager.DeleteConversation(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeManagerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleAddMessage(w http.ResponseWriter, r *http.Request) {
	var in memory.MessageInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	msg, err := g.manager.AddMessage(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (g *Gateway) handleCompress(w http.ResponseWriter, r *http.Request) {
	ok, err := g.manager.CompressConversation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, compressResponse{Compressed: ok})
}

func (g *Gateway) handleArchive(w http.ResponseWriter, r *http.Request) {
	if err := g.manager.Archive(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeManagerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleContext(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	text, err := g.manager.ContextForNewMessage(r.Context(), id)
	if err != nil {
		writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contextResponse{ConversationID: id, Context: text})
}

func (g *Gateway) handleUsage(w http.ResponseWriter, r *http.Request) {
	u, err := g.manager.MemoryUsage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (g *Gateway) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, g.manager.Settings())
}

func (g *Gateway) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var s memory.Settings
	if err := decodeJSON(w, r, &s); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := g.manager.UpdateSettings(r.Context(), s); err != nil {
		writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g.manager.Settings())
}
