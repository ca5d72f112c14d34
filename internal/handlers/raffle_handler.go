package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ArowuTest/jraffle-backend/internal/models"
	"github.com/ArowuTest/jraffle-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// RaffleHandler handles raffle catalogue and admin raffle requests
type RaffleHandler struct {
	store *services.RaffleStore
}

// NewRaffleHandler creates a new RaffleHandler
func NewRaffleHandler(store *services.RaffleStore) *RaffleHandler {
	return &RaffleHandler{store: store}
}

// ListRaffles handles GET /raffles. ?status=active limits the list to raffles on sale.
func (h *RaffleHandler) ListRaffles(c *gin.Context) {
	var raffles []*models.Raffle
	switch status := models.RaffleStatus(c.Query("status")); status {
	case "":
		raffles = h.store.Raffles()
	case models.RaffleStatusActive:
		raffles = h.store.ActiveRaffles()
	default:
		if !status.Valid() {
			respondError(c, services.NewValidationError("status", "must be active or finished"))
			return
		}
		for _, r := range h.store.Raffles() {
			if r.Status == status {
				raffles = append(raffles, r)
			}
		}
	}

	summaries := make([]models.RaffleSummary, 0, len(raffles))
	for _, r := range raffles {
		summaries = append(summaries, h.store.Summary(r))
	}
	c.JSON(http.StatusOK, summaries)
}

// GetRaffle handles GET /raffles/:id
func (h *RaffleHandler) GetRaffle(c *gin.Context) {
	raffle, ok := h.store.Raffle(c.Param("id"))
	if !ok {
		// created by another instance since the last reload
		var err error
		raffle, err = h.store.FetchRaffle(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, h.store.Summary(raffle))
}

// CreateRaffle handles POST /admin/raffles
func (h *RaffleHandler) CreateRaffle(c *gin.Context) {
	var input models.RaffleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	raffle, err := h.store.CreateRaffle(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.store.Summary(raffle))
}

type raffleUpdateRequest struct {
	models.RaffleUpdate
	DrawDate *string `json:"drawDate"`
}

// UpdateRaffle handles PATCH /admin/raffles/:id
func (h *RaffleHandler) UpdateRaffle(c *gin.Context) {
	var req raffleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	update := req.RaffleUpdate
	if req.DrawDate != nil {
		d, err := time.Parse(services.DrawDateLayout, strings.TrimSpace(*req.DrawDate))
		if err != nil {
			respondError(c, services.NewValidationError("drawDate", "must be a date formatted YYYY-MM-DD"))
			return
		}
		update.DrawDate = &d
	}

	raffle, err := h.store.UpdateRaffle(c.Request.Context(), c.Param("id"), &update)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.store.Summary(raffle))
}

// DeleteRaffle handles DELETE /admin/raffles/:id
func (h *RaffleHandler) DeleteRaffle(c *gin.Context) {
	if err := h.store.DeleteRaffle(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Raffle deleted"})
}

type premiumNumbersRequest struct {
	PremiumNumbers []models.PremiumNumber `json:"premiumNumbers"`
}

// SetPremiumNumbers handles PUT /admin/raffles/:id/premium-numbers
func (h *RaffleHandler) SetPremiumNumbers(c *gin.Context) {
	var req premiumNumbersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	raffle, err := h.store.SetPremiumNumbers(c.Request.Context(), c.Param("id"), req.PremiumNumbers)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.store.Summary(raffle))
}

// RemoveUser handles DELETE /admin/raffles/:id/users/:userId
func (h *RaffleHandler) RemoveUser(c *gin.Context) {
	removed, err := h.store.RemoveUserByID(c.Request.Context(), c.Param("id"), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Participant removed", "user": removed})
}

// RemoveUserAt handles DELETE /admin/raffles/:id/users?index=&expectedUserId=
func (h *RaffleHandler) RemoveUserAt(c *gin.Context) {
	index, err := strconv.Atoi(c.Query("index"))
	if err != nil {
		respondError(c, services.NewValidationError("index", "must be an integer"))
		return
	}
	removed, err := h.store.RemoveUserFromRaffle(c.Request.Context(), c.Param("id"), index, c.Query("expectedUserId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Participant removed", "user": removed})
}

// Reload handles POST /admin/reload, refreshing the in-memory mirror
func (h *RaffleHandler) Reload(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.store.LoadAll(ctx); err != nil {
		respondError(c, err)
		return
	}
	if err := h.store.LoadPurchases(ctx); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"raffles": len(h.store.Raffles()), "purchases": len(h.store.Purchases())})
}

// Stats handles GET /admin/stats
func (h *RaffleHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.DashboardStats())
}
