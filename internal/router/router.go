package router

import (
	"net/http"

	potassium "github.com/bananalabs-oss/potassium/middleware"
	"github.com/bananalabs-oss/sleigh/internal/parties"
	"github.com/bananalabs-oss/sleigh/internal/scheduler"
	"github.com/bananalabs-oss/sleigh/internal/store"
	"github.com/gin-gonic/gin"
)

// Setup wires the collaborator-facing API. Every operation is called by the
// chat-platform service, so the whole group sits behind service-token auth.
func Setup(st *store.Store, sched *scheduler.Scheduler, serviceToken string) *gin.Engine {
	r := gin.Default()

	h := parties.NewHandler(st, sched)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "sleigh"})
	})

	internal := r.Group("/internal/parties")
	internal.Use(potassium.ServiceAuth(serviceToken))
	{
		internal.POST("", h.CreateParty)
		internal.POST("/join", h.JoinParty)
		internal.GET("/assignments/:userId", h.GetAssignments)
	}

	return r
}
