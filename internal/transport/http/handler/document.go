package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studybot/internal/app"
	"studybot/internal/transport/http/response"
)

type DocumentHandler struct {
	documentService *app.DocumentService
}

type PurgeRequest struct {
	ConfirmDelete bool `json:"confirm_delete"`
}

func NewDocumentHandler(documentService *app.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// Upload accepts a multipart "file" field. Ingestion continues in the
// background; the returned document is still processing.
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "no file uploaded")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "read uploaded file failed")
		return
	}
	defer file.Close()

	doc, err := h.documentService.Upload(c.Request.Context(), app.UploadInput{
		UserID:   userID,
		FileName: fileHeader.Filename,
		Size:     fileHeader.Size,
		Body:     file,
	})
	if err != nil {
		writeError(c, err, "upload document failed")
		return
	}

	response.Created(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	docs, err := h.documentService.List(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, "list documents failed")
		return
	}
	response.OK(c, gin.H{
		"documents": docs,
		"total":     len(docs),
	})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	documentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	doc, err := h.documentService.Get(c.Request.Context(), userID, documentID)
	if err != nil {
		writeError(c, err, "get document failed")
		return
	}
	response.OK(c, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	documentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.documentService.Delete(c.Request.Context(), userID, documentID); err != nil {
		writeError(c, err, "delete document failed")
		return
	}
	response.OK(c, gin.H{"deleted": documentID})
}

func (h *DocumentHandler) Stats(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	stats, err := h.documentService.Stats(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, "document stats failed")
		return
	}
	response.OK(c, stats)
}

// Purge drops every vector the user owns. Document records stay.
func (h *DocumentHandler) Purge(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req PurgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	if err := h.documentService.PurgeVectors(c.Request.Context(), userID, req.ConfirmDelete); err != nil {
		writeError(c, err, "delete documents failed")
		return
	}
	response.OK(c, gin.H{"user_id": userID, "purged": true})
}
