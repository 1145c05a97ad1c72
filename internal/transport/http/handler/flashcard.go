package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"studybot/internal/app"
	"studybot/internal/flashcard"
	"studybot/internal/repository"
	"studybot/internal/transport/http/response"
)

type FlashCardHandler struct {
	cardService *app.FlashCardService
}

type GenerateRequest struct {
	DocumentID uint              `json:"document_id" binding:"required"`
	Options    flashcard.Options `json:"options"`
}

type UpdateFlashCardRequest struct {
	Question     *string   `json:"question" binding:"omitempty,max=1000"`
	Answer       *string   `json:"answer" binding:"omitempty,max=2000"`
	Difficulty   *string   `json:"difficulty"`
	Tags         *[]string `json:"tags"`
	IsBookmarked *bool     `json:"is_bookmarked"`
}

type ReviewRequest struct {
	Correct *bool `json:"correct" binding:"required"`
}

func NewFlashCardHandler(cardService *app.FlashCardService) *FlashCardHandler {
	return &FlashCardHandler{cardService: cardService}
}

func (h *FlashCardHandler) Generate(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "document_id is required")
		return
	}

	result, err := h.cardService.Generate(c.Request.Context(), app.GenerateInput{
		UserID:     userID,
		DocumentID: req.DocumentID,
		Options:    req.Options,
	})
	if err != nil {
		writeError(c, err, "failed to generate flashcards")
		return
	}
	response.Created(c, result)
}

func (h *FlashCardHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	filter := repository.FlashCardFilter{
		Difficulty: strings.TrimSpace(c.Query("difficulty")),
		Bookmarked: boolQuery(c, "bookmarked"),
		SortBy:     c.Query("sort"),
	}
	if raw := c.Query("document_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document_id")
			return
		}
		filter.DocumentID = uint(id)
	}
	if raw := strings.TrimSpace(c.Query("tags")); raw != "" {
		filter.Tags = strings.Split(raw, ",")
	}

	page := pageFromQuery(c)
	cards, total, err := h.cardService.List(c.Request.Context(), userID, filter, page)
	if err != nil {
		writeError(c, err, "list flashcards failed")
		return
	}
	response.Paged(c, cards, page.Number, page.Size, total)
}

func (h *FlashCardHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	cardID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	card, err := h.cardService.Get(c.Request.Context(), userID, cardID)
	if err != nil {
		writeError(c, err, "get flashcard failed")
		return
	}
	response.OK(c, card)
}

func (h *FlashCardHandler) Update(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	cardID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateFlashCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	card, err := h.cardService.Update(c.Request.Context(), app.UpdateFlashCardInput{
		UserID:       userID,
		CardID:       cardID,
		Question:     req.Question,
		Answer:       req.Answer,
		Difficulty:   req.Difficulty,
		Tags:         req.Tags,
		IsBookmarked: req.IsBookmarked,
	})
	if err != nil {
		writeError(c, err, "update flashcard failed")
		return
	}
	response.OK(c, card)
}

func (h *FlashCardHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	cardID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.cardService.Delete(c.Request.Context(), userID, cardID); err != nil {
		writeError(c, err, "delete flashcard failed")
		return
	}
	response.OK(c, gin.H{"deleted": cardID})
}

func (h *FlashCardHandler) Review(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	cardID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "correct is required")
		return
	}

	card, err := h.cardService.Review(c.Request.Context(), userID, cardID, *req.Correct)
	if err != nil {
		writeError(c, err, "record review failed")
		return
	}
	response.OK(c, card)
}

func (h *FlashCardHandler) Stats(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	stats, err := h.cardService.Stats(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, "flashcard stats failed")
		return
	}
	response.OK(c, stats)
}
