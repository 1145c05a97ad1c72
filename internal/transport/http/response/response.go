package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                   = 0
	CodeBadRequest           = 40000
	CodeUnsupportedFile      = 40003
	CodeConfirmRequired      = 40004
	CodeInvalidCards         = 40005
	CodeUnauthorized         = 40100
	CodeInvalidCredentials   = 40101
	CodeUpstreamAuth         = 40102
	CodeNotFound             = 40400
	CodeChatNotFound         = 40401
	CodeDocumentNotFound     = 40402
	CodeFlashCardNotFound    = 40403
	CodeFlashCardSetNotFound = 40404
	CodeEmailExists          = 40900
	CodePayloadTooLarge      = 41300
	CodeNoContent            = 42200
	CodeRateLimited          = 42900
	CodeInternalServer       = 50000
	CodeServiceUnavailable   = 50300
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type PageData struct {
	Items      interface{} `json:"items"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	Total      int64       `json:"total"`
	TotalPages int64       `json:"total_pages"`
	HasMore    bool        `json:"has_more"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, APIResponse{
		Code:    CodeOK,
		Message: "created",
		Data:    data,
	})
}

func Paged(c *gin.Context, items interface{}, page, size int, total int64) {
	var pages int64
	if size > 0 {
		pages = (total + int64(size) - 1) / int64(size)
	}
	OK(c, PageData{
		Items:      items,
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: pages,
		HasMore:    int64(page*size) < total,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}
