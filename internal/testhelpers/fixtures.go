package testhelpers

import (
	"fmt"
	"time"

	"github.com/ArowuTest/jraffle-backend/internal/models"
)

// PNGProof is the smallest payload content sniffing reports as image/png
var PNGProof = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// NewRaffle builds an active raffle with the given ticket inventory
func NewRaffle(id string, total int) *models.Raffle {
	return &models.Raffle{
		ID:             id,
		Title:          "Raffle " + id,
		Description:    "A **great** prize",
		Image:          "https://i.ibb.co/prize.png",
		PricePerTicket: 500,
		TotalTickets:   total,
		DrawDate:       time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC),
		Status:         models.RaffleStatusActive,
		CreatedAt:      time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		PremiumNumbers: []models.PremiumNumber{},
		Users:          []models.User{},
	}
}

// NewUser builds a participant holding the given tickets
func NewUser(id string, tickets ...int) models.User {
	return models.User{
		ID:           id,
		FirstName:    "User",
		LastName:     id,
		Email:        fmt.Sprintf("%s@example.com", id),
		Payment:      "transfer",
		Tickets:      tickets,
		PaymentProof: "https://i.ibb.co/proof.png",
	}
}

// NewPendingPurchase builds a pending purchase holding provisional numbers
func NewPendingPurchase(id, raffleID string, tickets ...int) *models.Purchase {
	return &models.Purchase{
		ID:            id,
		RaffleID:      raffleID,
		FirstName:     "Buyer",
		LastName:      id,
		Email:         fmt.Sprintf("%s@example.com", id),
		TicketCount:   len(tickets),
		PaymentMethod: "transfer",
		TransactionID: models.TransactionIDPlaceholder,
		PaymentProof:  "https://i.ibb.co/proof.png",
		Status:        models.PurchaseStatusPending,
		TicketNumbers: tickets,
		CreatedAt:     time.Date(2030, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}
