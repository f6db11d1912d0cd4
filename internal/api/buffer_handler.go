package api

import (
	"encoding/hex"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pccr10001/daqring/internal/acquisition"
	"github.com/pccr10001/daqring/pkg/logger"
)

const maxPeek = 4096

type BufferHandler struct {
	pipeline *acquisition.Pipeline
}

func NewBufferHandler(p *acquisition.Pipeline) *BufferHandler {
	return &BufferHandler{pipeline: p}
}

func (h *BufferHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.pipeline.Stats())
}

func (h *BufferHandler) Mark(c *gin.Context) {
	h.pipeline.Mark()
	c.JSON(http.StatusOK, gin.H{"status": "marked", "pending_marks": h.pipeline.Bytes().PendingMarks()})
}

func (h *BufferHandler) Clear(c *gin.Context) {
	var req struct {
		Kind string `json:"kind"` // bytes, samples or empty for both
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	switch req.Kind {
	case "":
		h.pipeline.Bytes().Clear()
		h.pipeline.Samples().Clear()
	case "bytes":
		h.pipeline.Bytes().Clear()
	case "samples":
		h.pipeline.Samples().Clear()
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be bytes or samples"})
		return
	}
	logger.Log.Infof("Buffer cleared (kind=%q)", req.Kind)
	c.JSON(http.StatusOK, h.pipeline.Stats())
}

func (h *BufferHandler) SetCapacity(c *gin.Context) {
	var req struct {
		Kind     string `json:"kind" binding:"required"`
		Capacity int    `json:"capacity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.Kind {
	case "bytes":
		h.pipeline.Bytes().SetCapacity(req.Capacity)
	case "samples":
		h.pipeline.Samples().SetCapacity(req.Capacity)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be bytes or samples"})
		return
	}
	logger.Log.Infof("Buffer %s capacity set to %d", req.Kind, req.Capacity)
	c.JSON(http.StatusOK, h.pipeline.Stats())
}

func (h *BufferHandler) SetMinSize(c *gin.Context) {
	var req struct {
		MinSize *int `json:"min_size" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.pipeline.Bytes().SetMinSize(*req.MinSize)
	c.JSON(http.StatusOK, h.pipeline.Stats())
}

// Peek returns up to n bytes from the byte channel's peek cursor as hex.
// With reset=true the cursor first returns to the consume position.
func (h *BufferHandler) Peek(c *gin.Context) {
	n, err := strconv.Atoi(c.DefaultQuery("n", "64"))
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "n must be a positive integer"})
		return
	}
	n = min(n, maxPeek)

	ch := h.pipeline.Bytes()
	if c.Query("reset") == "true" {
		ch.ResetPeek()
	}
	buf := make([]byte, n)
	got := ch.Peek(buf)
	c.JSON(http.StatusOK, gin.H{
		"count":  got,
		"data":   hex.EncodeToString(buf[:got]),
		"peeked": ch.Peeked(),
	})
}
