package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pccr10001/daqring/internal/acquisition"
	"github.com/pccr10001/daqring/internal/repository"
	"github.com/pccr10001/daqring/pkg/logger"
)

type DeviceHandler struct {
	repo *repository.DeviceRepository
	// enumerate is swapped out in tests.
	enumerate func(vid, pid string) ([]acquisition.USBDeviceInfo, error)
}

func NewDeviceHandler(repo *repository.DeviceRepository) *DeviceHandler {
	return &DeviceHandler{repo: repo, enumerate: acquisition.EnumerateUSB}
}

// ListDevices returns every source the acquisition manager has opened.
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	list, err := h.repo.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

// ListUSB enumerates attached USB devices, optionally filtered by vid/pid.
func (h *DeviceHandler) ListUSB(c *gin.Context) {
	devices, err := h.enumerate(c.Query("vid"), c.Query("pid"))
	if err != nil {
		logger.Log.Warnf("USB enumeration failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, devices)
}
