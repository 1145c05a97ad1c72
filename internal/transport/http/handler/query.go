package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studybot/internal/app"
	"studybot/internal/transport/http/response"
)

type QueryHandler struct {
	queryService *app.QueryService
}

type QueryRequest struct {
	Query string `json:"query" binding:"required,max=10000"`
}

func NewQueryHandler(queryService *app.QueryService) *QueryHandler {
	return &QueryHandler{queryService: queryService}
}

func (h *QueryHandler) Ask(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "query is required")
		return
	}

	res, err := h.queryService.Ask(c.Request.Context(), userID, req.Query)
	if err != nil {
		writeError(c, err, "failed to process query")
		return
	}
	response.OK(c, res)
}
