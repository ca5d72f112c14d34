package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ArowuTest/jraffle-backend/internal/models"
	"github.com/ArowuTest/jraffle-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// PurchaseHandler handles checkout and admin purchase requests
type PurchaseHandler struct {
	purchases *services.PurchaseService
}

// NewPurchaseHandler creates a new PurchaseHandler
func NewPurchaseHandler(purchases *services.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{purchases: purchases}
}

// Checkout handles POST /raffles/:id/checkout (multipart form with a paymentProof file)
func (h *PurchaseHandler) Checkout(c *gin.Context) {
	req := services.CheckoutRequest{
		RaffleID:      c.Param("id"),
		FirstName:     c.PostForm("firstName"),
		LastName:      c.PostForm("lastName"),
		Email:         c.PostForm("email"),
		PhoneNumber:   c.PostForm("phoneNumber"),
		PaymentMethod: c.PostForm("paymentMethod"),
		TransactionID: c.PostForm("transactionId"),
	}

	count, err := strconv.Atoi(strings.TrimSpace(c.PostForm("ticketCount")))
	if err != nil {
		respondError(c, services.NewValidationError("ticketCount", "must be a whole number"))
		return
	}
	req.TicketCount = count

	if fh, err := c.FormFile("paymentProof"); err == nil {
		if fh.Size > services.MaxProofSize {
			respondError(c, services.NewValidationError("paymentProof", "must be at most 10MB"))
			return
		}
		f, err := fh.Open()
		if err != nil {
			respondError(c, services.NewValidationError("paymentProof", "could not be read"))
			return
		}
		defer f.Close()
		proof, err := io.ReadAll(io.LimitReader(f, services.MaxProofSize+1))
		if err != nil {
			respondError(c, services.NewValidationError("paymentProof", "could not be read"))
			return
		}
		req.Proof = proof
		req.ProofFilename = fh.Filename
	}

	result, err := h.purchases.Checkout(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// ListPurchases handles GET /admin/purchases?raffleId=&status=
func (h *PurchaseHandler) ListPurchases(c *gin.Context) {
	filter := models.PurchaseFilter{
		RaffleID: c.Query("raffleId"),
		Status:   models.PurchaseStatus(c.Query("status")),
	}
	purchases, err := h.purchases.ListPurchases(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, purchases)
}

// ConfirmPurchase handles POST /admin/purchases/:id/confirm
func (h *PurchaseHandler) ConfirmPurchase(c *gin.Context) {
	result, err := h.purchases.ConfirmPurchase(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RejectPurchase handles POST /admin/purchases/:id/reject
func (h *PurchaseHandler) RejectPurchase(c *gin.Context) {
	purchase, err := h.purchases.RejectPurchase(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, purchase)
}

// DeletePurchase handles DELETE /admin/purchases/:id
func (h *PurchaseHandler) DeletePurchase(c *gin.Context) {
	if err := h.purchases.DeletePurchase(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Purchase deleted"})
}
