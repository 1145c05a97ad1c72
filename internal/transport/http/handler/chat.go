package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"studybot/internal/app"
	"studybot/internal/transport/http/response"
)

const historyPageSize = 50

type ChatHandler struct {
	chatService *app.ChatService
}

type CreateChatRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=500"`
}

type UpdateChatRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) CreateChat(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	chat, err := h.chatService.CreateChat(c.Request.Context(), app.CreateChatInput{
		UserID:      userID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(c, err, "create chat failed")
		return
	}
	response.Created(c, chat)
}

func (h *ChatHandler) ListChats(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	chats, err := h.chatService.ListChats(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, "list chats failed")
		return
	}
	response.OK(c, chats)
}

func (h *ChatHandler) GetChat(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	chatID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	chat, err := h.chatService.GetChat(c.Request.Context(), userID, chatID)
	if err != nil {
		writeError(c, err, "get chat failed")
		return
	}
	response.OK(c, chat)
}

func (h *ChatHandler) UpdateChat(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	chatID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	chat, err := h.chatService.UpdateChat(c.Request.Context(), app.UpdateChatInput{
		UserID:      userID,
		ChatID:      chatID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(c, err, "update chat failed")
		return
	}
	response.OK(c, chat)
}

func (h *ChatHandler) DeleteChat(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	chatID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.chatService.DeleteChat(c.Request.Context(), userID, chatID); err != nil {
		writeError(c, err, "delete chat failed")
		return
	}
	response.OK(c, gin.H{"deleted": chatID})
}

// SendMessage answers the message from the user's documents. Both sides of
// the exchange are persisted asynchronously.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	chatID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "message content is required")
		return
	}

	result, err := h.chatService.Ask(c.Request.Context(), app.AskInput{
		UserID:  userID,
		ChatID:  chatID,
		Content: req.Content,
	})
	if err != nil {
		writeError(c, err, "failed to process message")
		return
	}
	response.OK(c, result)
}

func (h *ChatHandler) GetHistory(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	chatID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if raw, ok := c.GetQuery("limit"); ok {
		if v, err := strconv.Atoi(strings.TrimSpace(raw)); err != nil || v <= 0 {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid limit")
			return
		}
	}
	page := pageFromQuery(c)
	if _, ok := c.GetQuery("limit"); !ok {
		page.Size = historyPageSize
	}

	history, total, err := h.chatService.GetHistory(c.Request.Context(), userID, chatID, page)
	if err != nil {
		writeError(c, err, "get history failed")
		return
	}
	response.Paged(c, history, page.Number, page.Size, total)
}

func (h *ChatHandler) SearchMessages(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	chatID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	term := strings.TrimSpace(c.Query("q"))
	if term == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "search term is required")
		return
	}

	page := pageFromQuery(c)
	messages, total, err := h.chatService.SearchMessages(c.Request.Context(), userID, chatID, term, page)
	if err != nil {
		writeError(c, err, "search messages failed")
		return
	}
	response.Paged(c, messages, page.Number, page.Size, total)
}

func (h *ChatHandler) Stats(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	stats, err := h.chatService.Stats(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, "chat stats failed")
		return
	}
	response.OK(c, stats)
}
