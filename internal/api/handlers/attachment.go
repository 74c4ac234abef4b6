package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/bizpulse/mailsync/internal/blobstore"
	"github.com/bizpulse/mailsync/internal/database/models"
)

// AttachmentHandler streams attachment blobs from the content store
type AttachmentHandler struct {
	db    *gorm.DB
	blobs *blobstore.Store
}

// NewAttachmentHandler creates a new AttachmentHandler instance
func NewAttachmentHandler(db *gorm.DB, blobs *blobstore.Store) *AttachmentHandler {
	return &AttachmentHandler{db: db, blobs: blobs}
}

// Download streams one attachment by its record id
// GET /api/attachments/:id
func (h *AttachmentHandler) Download(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attachment id"})
		return
	}

	var attachment models.Attachment
	if err := h.db.First(&attachment, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "attachment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	reader, err := h.blobs.OpenRead(attachment.StoragePath)
	if err != nil {
		if errors.Is(err, blobstore.ErrBlobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "blob not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer reader.Close()

	contentType := attachment.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.Header("Content-Disposition", `attachment; filename="`+attachment.Filename+`"`)
	c.Header("Content-Type", contentType)
	c.Header("Content-Length", strconv.FormatInt(attachment.Size, 10))
	c.Status(http.StatusOK)
	io.Copy(c.Writer, reader)
}

// Stats reports blob store totals
// GET /api/attachments/stats
func (h *AttachmentHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"blobs":      h.blobs.Count(),
		"total_size": h.blobs.TotalSize(),
	})
}
