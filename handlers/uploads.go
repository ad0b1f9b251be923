package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// multipartSlack covers boundaries and part headers around the file itself.
const multipartSlack = 1 << 20

// UploadEvidence handles POST /api/upload with the file in the "evidence" field
func (h *Handler) UploadEvidence(c *gin.Context) {
	maxBytes := h.evidence.MaxBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartSlack)

	header, err := c.FormFile("evidence")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("file exceeds the %d byte limit", maxBytes),
				"field": "evidence",
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded", "field": "evidence"})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read upload", "field": "evidence"})
		return
	}
	defer f.Close()

	file, err := h.evidence.Upload(c.Request.Context(), header.Filename, header.Header.Get("Content-Type"), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}
