package actor

import (
	"net/http"

	"approval-workflow/internal/domain"
	"approval-workflow/internal/errors"
	"approval-workflow/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests about the caller
type Handler struct {
	service Service
}

// NewHandler creates a new actor handler
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// GetProfile returns the authenticated actor with its grants
func (h *Handler) GetProfile(c *gin.Context) {
	value, _ := c.Get(middleware.ActorKey)
	actor, ok := value.(*domain.Actor)
	if !ok {
		c.Error(errors.Unauthorized("Authorization is not found!", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{"actor": actor})
}
