package handlers

import (
	"net/http"

	"github.com/ArowuTest/jraffle-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// DrawHandler handles live drawing requests
type DrawHandler struct {
	draws *services.DrawService
}

// NewDrawHandler creates a new DrawHandler
func NewDrawHandler(draws *services.DrawService) *DrawHandler {
	return &DrawHandler{draws: draws}
}

// StartDraw handles POST /admin/raffles/:id/draw
func (h *DrawHandler) StartDraw(c *gin.Context) {
	session, err := h.draws.Start(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, session)
}

// GetDraw handles GET /admin/raffles/:id/draw
func (h *DrawHandler) GetDraw(c *gin.Context) {
	c.JSON(http.StatusOK, h.draws.Get(c.Param("id")))
}

// CloseDraw handles DELETE /admin/raffles/:id/draw
func (h *DrawHandler) CloseDraw(c *gin.Context) {
	if err := h.draws.Close(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.draws.Get(c.Param("id")))
}
