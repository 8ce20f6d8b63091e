package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"groundedchat/internal/app"
	"groundedchat/internal/pkg/extract"
	"groundedchat/internal/transport/http/response"
)

const maxUploadSize = 10 << 20 // 10 MB

type DocumentHandler struct {
	documentService *app.DocumentService
}

type CreateDocumentRequest struct {
	Title    string         `json:"title" binding:"max=256"`
	Content  string         `json:"content" binding:"required"`
	FileType string         `json:"file_type" binding:"omitempty,oneof=txt md csv"`
	Source   string         `json:"source" binding:"max=1024"`
	Metadata map[string]any `json:"metadata"`
}

type SetDocumentActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

func NewDocumentHandler(documentService *app.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

func (h *DocumentHandler) CreateDocument(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.documentService.Ingest(c.Request.Context(), app.IngestInput{
		UserID:   userID,
		Title:    req.Title,
		Content:  req.Content,
		FileType: req.FileType,
		Source:   req.Source,
		Metadata: req.Metadata,
	})
	if err != nil {
		writeIngestError(c, err)
		return
	}

	response.OK(c, result)
}

// UploadDocument accepts a multipart form with "file" and an optional "source".
func (h *DocumentHandler) UploadDocument(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if file.Size > maxUploadSize {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file too large (max 10MB)")
		return
	}
	if !extract.IsSupported(file.Filename) {
		response.Error(c, http.StatusBadRequest, response.CodeUnsupportedFile,
			"supported file types: "+strings.Join(extract.Supported, ", "))
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()

	source := strings.TrimSpace(c.PostForm("source"))
	if source == "" {
		source = "upload:" + file.Filename
	}

	result, err := h.documentService.IngestFile(c.Request.Context(), userID, file.Filename, f, source)
	if err != nil {
		writeIngestError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	includeInactive, _ := strconv.ParseBool(c.Query("include_inactive"))
	var fileTypes []string
	for _, ft := range strings.Split(c.Query("file_type"), ",") {
		if ft = strings.TrimSpace(strings.ToLower(ft)); ft != "" {
			fileTypes = append(fileTypes, ft)
		}
	}

	docs, err := h.documentService.List(c.Request.Context(), userID, includeInactive, fileTypes)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}

	response.OK(c, docs)
}

func (h *DocumentHandler) SetDocumentActive(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	docID, ok := parseIDParam(c, "id")
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return
	}

	var req SetDocumentActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	if err := h.documentService.SetActive(c.Request.Context(), userID, docID, *req.IsActive); err != nil {
		writeDocumentError(c, err, "update document failed")
		return
	}

	response.OK(c, gin.H{"document_id": docID, "is_active": *req.IsActive})
}

func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	docID, ok := parseIDParam(c, "id")
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return
	}

	if err := h.documentService.Delete(c.Request.Context(), userID, docID); err != nil {
		writeDocumentError(c, err, "delete document failed")
		return
	}

	response.OK(c, gin.H{"deleted_document_id": docID})
}

func writeIngestError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrUnsupportedFile):
		response.Error(c, http.StatusBadRequest, response.CodeUnsupportedFile, err.Error())
	case errors.Is(err, app.ErrEmptyDocument):
		response.Error(c, http.StatusBadRequest, response.CodeEmptyDocument, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeProcessing, processingMessage)
	}
}

func writeDocumentError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrDocumentNotFound):
		response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}
