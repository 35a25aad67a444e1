package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"peerlearn_server/helpers"
	"peerlearn_server/models"
	"peerlearn_server/services"
)

// ChatController serves conversations and their messages.
type ChatController struct {
	ChatService         *services.ChatService
	ConversationService *services.ConversationService
	MatchService        *services.MatchService
}

// NewChatController initializes the chat controller
func NewChatController(chat *services.ChatService, convs *services.ConversationService, matches *services.MatchService) *ChatController {
	return &ChatController{ChatService: chat, ConversationService: convs, MatchService: matches}
}

type historyResponse struct {
	ConversationID string           `json:"conversationId"`
	MatchID        string           `json:"matchId"`
	Messages       []models.Message `json:"messages"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// HandleListConversations - List the caller's conversations, most recent first
func (c *ChatController) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		helpers.WriteError(w, err)
		return
	}

	items, err := c.ConversationService.ListConversations(r.Context(), userID, limit)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"conversations": items})
}

// HandleGetMessages - Open the match's conversation and page through its messages
func (c *ChatController) HandleGetMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	matchID := mux.Vars(r)["matchId"]
	limit, err := queryInt(r, "limit")
	if err != nil {
		helpers.WriteError(w, err)
		return
	}

	conv, msgs, err := c.ChatService.HistoryForMatch(r.Context(), matchID, userID, r.URL.Query().Get("after"), limit)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, historyResponse{
		ConversationID: conv.ConversationID,
		MatchID:        matchID,
		Messages:       msgs,
	})
}

// HandleSendMessage - Append a message to the match's conversation
func (c *ChatController) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.WriteError(w, err)
		return
	}

	msg, err := c.ChatService.SendToMatch(r.Context(), mux.Vars(r)["matchId"], userID, req.Content)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSONResponse(w, http.StatusCreated, msg)
}

// HandleDeleteChat - Delete a match together with its conversation and messages
func (c *ChatController) HandleDeleteChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := c.MatchService.DeleteMatch(r.Context(), mux.Vars(r)["matchId"], userID); err != nil {
		helpers.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
