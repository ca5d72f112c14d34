package models

import (
	"time"
)

// PurchaseStatus represents the verification status of a purchase
type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusConfirmed PurchaseStatus = "confirmed"
	PurchaseStatusRejected  PurchaseStatus = "rejected"
)

// Valid reports whether the status is one of the known values
func (s PurchaseStatus) Valid() bool {
	switch s {
	case PurchaseStatusPending, PurchaseStatusConfirmed, PurchaseStatusRejected:
		return true
	}
	return false
}

// TransactionIDPlaceholder is stored when no external transaction id was supplied
const TransactionIDPlaceholder = "N/A"

// Purchase records a buyer's intent, distinct from the confirmed User it produces
type Purchase struct {
	ID            string         `bson:"_id" json:"id"`
	RaffleID      string         `bson:"raffleId" json:"raffleId"`
	FirstName     string         `bson:"firstName" json:"firstName"`
	LastName      string         `bson:"lastName" json:"lastName"`
	Email         string         `bson:"email" json:"email"`
	PhoneNumber   string         `bson:"phoneNumber,omitempty" json:"phoneNumber,omitempty"`
	TicketCount   int            `bson:"ticketCount" json:"ticketCount"`
	PaymentMethod string         `bson:"paymentMethod" json:"paymentMethod"`
	TransactionID string         `bson:"transactionId" json:"transactionId"`
	PaymentProof  string         `bson:"paymentProof" json:"paymentProof"`
	Status        PurchaseStatus `bson:"status" json:"status"`
	TicketNumbers []int          `bson:"ticketNumbers" json:"ticketNumbers"`
	UserID        string         `bson:"userId,omitempty" json:"userId,omitempty"`
	CreatedAt     time.Time      `bson:"createdAt" json:"createdAt"`
	ConfirmedAt   *time.Time     `bson:"confirmedAt,omitempty" json:"confirmedAt,omitempty"`
	RejectedAt    *time.Time     `bson:"rejectedAt,omitempty" json:"rejectedAt,omitempty"`
}

// ToUser synthesizes the raffle participant produced by confirming this purchase
func (p *Purchase) ToUser(userID string, now time.Time) User {
	return User{
		ID:           userID,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Email:        p.Email,
		PhoneNumber:  p.PhoneNumber,
		Payment:      p.PaymentMethod,
		Tickets:      append([]int(nil), p.TicketNumbers...),
		PaymentProof: p.PaymentProof,
		PurchaseID:   p.ID,
		CreatedAt:    now,
	}
}

// PurchaseFilter narrows purchase listings. Empty fields match everything.
type PurchaseFilter struct {
	RaffleID string
	Status   PurchaseStatus
}

// Matches reports whether the purchase satisfies the filter
func (f PurchaseFilter) Matches(p *Purchase) bool {
	if f.RaffleID != "" && p.RaffleID != f.RaffleID {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	return true
}
