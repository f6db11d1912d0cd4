package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pccr10001/daqring/internal/repository"
	"gorm.io/gorm"
)

type SegmentHandler struct {
	repo *repository.SegmentRepository
}

func NewSegmentHandler(repo *repository.SegmentRepository) *SegmentHandler {
	return &SegmentHandler{repo: repo}
}

func (h *SegmentHandler) ListSegments(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page <= 0 {
		page = 1
	}

	list, total, err := h.repo.List(repository.SegmentFilter{
		Device: c.Query("device"),
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  list,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

func (h *SegmentHandler) GetSegment(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	seg, err := h.repo.FindByID(uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Segment not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, seg)
}

// Audio serves the segment's WAV file.
func (h *SegmentHandler) Audio(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	seg, err := h.repo.FindByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Segment not found"})
		return
	}
	if seg.FilePath == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Segment has no recording"})
		return
	}
	if _, err := os.Stat(seg.FilePath); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Recording file missing"})
		return
	}
	c.FileAttachment(seg.FilePath, filepath.Base(seg.FilePath))
}
