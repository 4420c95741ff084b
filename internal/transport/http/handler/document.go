package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lexrag/internal/ai"
	"lexrag/internal/app"
	"lexrag/internal/document"
	"lexrag/internal/transport/http/response"
)

type DocumentHandler struct {
	docService *app.DocumentService
}

func NewDocumentHandler(docService *app.DocumentService) *DocumentHandler {
	return &DocumentHandler{docService: docService}
}

// Upload accepts one multipart file under the "file" field.
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file field")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "open uploaded file failed")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "read uploaded file failed")
		return
	}

	result, err := h.docService.Upload(c.Request.Context(), app.UploadInput{
		UserID:   userID,
		Filename: fileHeader.Filename,
		Data:     data,
	})
	if err != nil {
		h.writeUploadError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *DocumentHandler) writeUploadError(c *gin.Context, err error) {
	var upstream *ai.UpstreamError
	switch {
	case errors.Is(err, app.ErrInvalidInput),
		errors.Is(err, document.ErrUnsupportedExtension),
		errors.Is(err, document.ErrFileTooLarge),
		errors.Is(err, document.ErrEmptyDocument):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.As(err, &upstream):
		response.Error(c, http.StatusBadGateway, response.CodeUpstreamFailure, "embedding request failed")
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "upload failed")
	}
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.docService.List()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}
	response.OK(c, docs)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	documentID64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || documentID64 == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return
	}

	if err := h.docService.Delete(c.Request.Context(), uint(documentID64)); err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete document failed")
		}
		return
	}

	response.OK(c, gin.H{"deleted_document_id": uint(documentID64)})
}

func (h *DocumentHandler) Stats(c *gin.Context) {
	stats, err := h.docService.GetStats(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get stats failed")
		return
	}
	response.OK(c, stats)
}
