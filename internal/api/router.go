package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pccr10001/daqring/internal/acquisition"
	"github.com/pccr10001/daqring/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Deps is everything the HTTP layer talks to.
type Deps struct {
	DB       *gorm.DB
	Pipeline *acquisition.Pipeline
	Hub      *EventHub
	Gatherer prometheus.Gatherer
}

// NewRouter registers every route on a fresh gin engine.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	Register(r, d)
	return r
}

func Register(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	bh := NewBufferHandler(d.Pipeline)
	sh := NewSegmentHandler(repository.NewSegmentRepository(d.DB))
	dh := NewDeviceHandler(repository.NewDeviceRepository(d.DB))
	wh := NewWebhookHandler(repository.NewWebhookRepository(d.DB))
	users := repository.NewUserRepository(d.DB)
	uh := NewUserHandler(users)

	apiGroup := r.Group("/api/v1")
	{
		apiGroup.POST("/login", uh.Login)

		authGroup := apiGroup.Group("/")
		authGroup.Use(AuthMiddleware(users))
		{
			authGroup.POST("/change_password", uh.ChangePassword)

			authGroup.GET("/buffers", bh.Stats)
			authGroup.POST("/buffers/mark", bh.Mark)
			authGroup.POST("/buffers/clear", bh.Clear)
			authGroup.PUT("/buffers/capacity", bh.SetCapacity)
			authGroup.PUT("/buffers/min_size", bh.SetMinSize)
			authGroup.GET("/buffers/peek", bh.Peek)

			authGroup.GET("/segments", sh.ListSegments)
			authGroup.GET("/segments/:id", sh.GetSegment)
			authGroup.GET("/segments/:id/audio", sh.Audio)

			authGroup.GET("/devices", dh.ListDevices)
			authGroup.GET("/devices/usb", dh.ListUSB)

			if d.Hub != nil {
				authGroup.GET("/events", d.Hub.Serve)
			}

			adminGroup := authGroup.Group("/")
			adminGroup.Use(AdminOnly())
			{
				adminGroup.GET("/webhooks", wh.ListWebhooks)
				adminGroup.POST("/webhooks", wh.CreateWebhook)
				adminGroup.PUT("/webhooks/:id", wh.UpdateWebhook)
				adminGroup.DELETE("/webhooks/:id", wh.DeleteWebhook)

				adminGroup.GET("/users", uh.ListUsers)
				adminGroup.POST("/users", uh.CreateUser)
				adminGroup.DELETE("/users/:id", uh.DeleteUser)
			}
		}
	}
}
