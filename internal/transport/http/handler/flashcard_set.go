package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"studybot/internal/app"
	"studybot/internal/model"
	"studybot/internal/repository"
	"studybot/internal/transport/http/response"
)

type FlashCardSetHandler struct {
	setService *app.FlashCardSetService
}

type CreateSetRequest struct {
	Name         string             `json:"name" binding:"required,max=200"`
	Description  string             `json:"description" binding:"max=1000"`
	FlashCardIDs []uint             `json:"flashcard_ids"`
	DocumentIDs  []uint             `json:"document_ids"`
	Tags         []string           `json:"tags"`
	Settings     *app.SettingsPatch `json:"settings"`
	IsPublic     bool               `json:"is_public"`
}

type UpdateSetRequest struct {
	Name         *string            `json:"name" binding:"omitempty,max=200"`
	Description  *string            `json:"description" binding:"omitempty,max=1000"`
	Tags         *[]string          `json:"tags"`
	Settings     *app.SettingsPatch `json:"settings"`
	FlashCardIDs *[]uint            `json:"flashcard_ids"`
	IsBookmarked *bool              `json:"is_bookmarked"`
	IsPublic     *bool              `json:"is_public"`
}

type SetCardsRequest struct {
	FlashCardIDs []uint `json:"flashcard_ids" binding:"required,min=1"`
}

type StudySessionRequest struct {
	StudyTime int64    `json:"study_time"`
	Accuracy  *float64 `json:"accuracy"`
}

func NewFlashCardSetHandler(setService *app.FlashCardSetService) *FlashCardSetHandler {
	return &FlashCardSetHandler{setService: setService}
}

func (h *FlashCardSetHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req CreateSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	set, err := h.setService.Create(c.Request.Context(), app.CreateSetInput{
		UserID:       userID,
		Name:         req.Name,
		Description:  req.Description,
		FlashCardIDs: req.FlashCardIDs,
		DocumentIDs:  req.DocumentIDs,
		Tags:         req.Tags,
		Settings:     req.Settings,
		IsPublic:     req.IsPublic,
	})
	if err != nil {
		writeError(c, err, "create flashcard set failed")
		return
	}
	response.Created(c, set)
}

func (h *FlashCardSetHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	filter := repository.FlashCardSetFilter{
		Bookmarked: boolQuery(c, "bookmarked"),
		SortBy:     c.Query("sort"),
	}
	if raw := strings.TrimSpace(c.Query("tags")); raw != "" {
		filter.Tags = strings.Split(raw, ",")
	}

	page := pageFromQuery(c)
	sets, total, err := h.setService.List(c.Request.Context(), userID, filter, page)
	if err != nil {
		writeError(c, err, "list flashcard sets failed")
		return
	}
	response.Paged(c, sets, page.Number, page.Size, total)
}

func (h *FlashCardSetHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	setID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	detail, err := h.setService.Get(c.Request.Context(), userID, setID)
	if err != nil {
		writeError(c, err, "get flashcard set failed")
		return
	}
	response.OK(c, detail)
}

func (h *FlashCardSetHandler) Update(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	setID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	set, err := h.setService.Update(c.Request.Context(), app.UpdateSetInput{
		UserID:       userID,
		SetID:        setID,
		Name:         req.Name,
		Description:  req.Description,
		Tags:         req.Tags,
		Settings:     req.Settings,
		FlashCardIDs: req.FlashCardIDs,
		IsBookmarked: req.IsBookmarked,
		IsPublic:     req.IsPublic,
	})
	if err != nil {
		writeError(c, err, "update flashcard set failed")
		return
	}
	response.OK(c, set)
}

func (h *FlashCardSetHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	setID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.setService.Delete(c.Request.Context(), userID, setID); err != nil {
		writeError(c, err, "delete flashcard set failed")
		return
	}
	response.OK(c, gin.H{"deleted": setID})
}

func (h *FlashCardSetHandler) AddCards(c *gin.Context) {
	h.changeCards(c, h.setService.AddCards)
}

func (h *FlashCardSetHandler) RemoveCards(c *gin.Context) {
	h.changeCards(c, h.setService.RemoveCards)
}

func (h *FlashCardSetHandler) changeCards(c *gin.Context, apply func(ctx context.Context, userID, setID uint, ids []uint) (*model.FlashCardSet, error)) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	setID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req SetCardsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "flashcard_ids is required")
		return
	}

	set, err := apply(c.Request.Context(), userID, setID, req.FlashCardIDs)
	if err != nil {
		writeError(c, err, "update set cards failed")
		return
	}
	response.OK(c, set)
}

func (h *FlashCardSetHandler) StudySession(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	setID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req StudySessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	set, err := h.setService.RecordStudySession(c.Request.Context(), app.StudySessionInput{
		UserID:    userID,
		SetID:     setID,
		StudyTime: req.StudyTime,
		Accuracy:  req.Accuracy,
	})
	if err != nil {
		writeError(c, err, "record study session failed")
		return
	}
	response.OK(c, set)
}
