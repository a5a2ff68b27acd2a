package stats

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"jobtracker-backend/internal/applications"
	"jobtracker-backend/internal/shared/server/middleware"
	"jobtracker-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches stats routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/jobs/stats/overview", h.overview)
}

func (h *Handler) overview(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	out, err := h.Svc.Overview(c.Request.Context(), userID)
	if err != nil {
		applications.WriteError(c, err, "")
		return
	}
	respond.JSON(c, http.StatusOK, out)
}
