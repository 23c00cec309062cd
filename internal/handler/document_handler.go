package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docextract/internal/domain"
	"docextract/internal/service"
)

// DocumentHandler handles document extraction endpoints.
type DocumentHandler struct {
	svc      service.ExtractionService
	maxBytes int64
}

// NewDocumentHandler creates a new DocumentHandler. maxBytes caps uploads; 0 means no cap.
func NewDocumentHandler(svc service.ExtractionService, maxBytes int64) *DocumentHandler {
	return &DocumentHandler{svc: svc, maxBytes: maxBytes}
}

// Process handles POST /api/v1/documents/process
func (h *DocumentHandler) Process(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return
	}
	if h.maxBytes > 0 && header.Size > h.maxBytes {
		HandleError(c, domain.ErrFileTooLarge)
		return
	}

	file, err := header.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_FILE", "could not read uploaded file")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_FILE", "could not read uploaded file")
		return
	}

	result, err := h.svc.Process(c.Request.Context(), service.ProcessInput{
		Filename:     header.Filename,
		Data:         data,
		CustomFields: ParseCustomFields(c.PostFormArray("custom_fields")),
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, result)
}

// GetRecord handles GET /api/v1/records/:id
func (h *DocumentHandler) GetRecord(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid document ID")
		return
	}
	rec, err := h.svc.GetRecord(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, rec)
}

// ListRecords handles GET /api/v1/records
func (h *DocumentHandler) ListRecords(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	recs, err := h.svc.ListRecent(c.Request.Context(), limit)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, recs)
}

// ParseCustomFields accepts repeated and comma-separated values, trimming blanks and
// dropping duplicates while keeping first-seen order.
func ParseCustomFields(values []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range values {
		for _, name := range strings.Split(v, ",") {
			name = strings.TrimSpace(name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
