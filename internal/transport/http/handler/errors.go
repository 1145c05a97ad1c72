package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"studybot/internal/ai"
	"studybot/internal/app"
	"studybot/internal/flashcard"
	"studybot/internal/query"
	"studybot/internal/repository"
	"studybot/internal/transport/http/middleware"
	"studybot/internal/transport/http/response"
	"studybot/internal/vectorstore"
)

// writeError maps service errors onto the response envelope. fallback is the
// message used for anything unexpected.
func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput),
		errors.Is(err, app.ErrMessageEmpty),
		errors.Is(err, app.ErrMessageTooLong),
		errors.Is(err, query.ErrInvalidQuery),
		errors.Is(err, ai.ErrEmptyInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrEmailExists):
		response.Error(c, http.StatusConflict, response.CodeEmailExists, err.Error())
	case errors.Is(err, app.ErrInvalidCredential):
		response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, err.Error())
	case errors.Is(err, app.ErrAccountNotFound):
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, err.Error())
	case errors.Is(err, app.ErrUnsupportedFile):
		response.Error(c, http.StatusBadRequest, response.CodeUnsupportedFile, err.Error())
	case errors.Is(err, app.ErrConfirmRequired):
		response.Error(c, http.StatusBadRequest, response.CodeConfirmRequired, err.Error())
	case errors.Is(err, app.ErrInvalidCards):
		response.Error(c, http.StatusBadRequest, response.CodeInvalidCards, err.Error())
	case errors.Is(err, app.ErrFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodePayloadTooLarge, err.Error())
	case errors.Is(err, app.ErrChatNotFound):
		response.Error(c, http.StatusNotFound, response.CodeChatNotFound, err.Error())
	case errors.Is(err, app.ErrDocumentNotFound):
		response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
	case errors.Is(err, app.ErrFlashCardNotFound):
		response.Error(c, http.StatusNotFound, response.CodeFlashCardNotFound, err.Error())
	case errors.Is(err, app.ErrFlashCardSetNotFound):
		response.Error(c, http.StatusNotFound, response.CodeFlashCardSetNotFound, err.Error())
	case errors.Is(err, flashcard.ErrNoContent):
		response.Error(c, http.StatusUnprocessableEntity, response.CodeNoContent, err.Error())
	case errors.Is(err, ai.ErrAuth):
		response.Error(c, http.StatusUnauthorized, response.CodeUpstreamAuth, "invalid API configuration")
	case errors.Is(err, ai.ErrRateLimited), errors.Is(err, ai.ErrQuotaExceeded):
		response.Error(c, http.StatusTooManyRequests, response.CodeRateLimited, "rate limit exceeded, please try again later")
	case errors.Is(err, ai.ErrServiceUnavailable),
		errors.Is(err, vectorstore.ErrNotReady),
		errors.Is(err, app.ErrIngestEnqueue),
		errors.Is(err, app.ErrMessageEnqueue):
		response.Error(c, http.StatusServiceUnavailable, response.CodeServiceUnavailable, "service temporarily unavailable")
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func getUserIDFromContext(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	return userID, ok
}

// requireUser aborts with 401 when the token carried no user.
func requireUser(c *gin.Context) (uint, bool) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "unauthorized")
	}
	return userID, ok
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func pageFromQuery(c *gin.Context) repository.Page {
	number, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(repository.DefaultPageSize)))
	return repository.Page{Number: number, Size: size}.Normalize()
}

func boolQuery(c *gin.Context, name string) *bool {
	raw, ok := c.GetQuery(name)
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}
