package models

import (
	"time"
)

// User represents a confirmed participant embedded in a raffle document
type User struct {
	ID           string    `bson:"id" json:"id"`
	FirstName    string    `bson:"firstName" json:"firstName"`
	LastName     string    `bson:"lastName" json:"lastName"`
	Email        string    `bson:"email" json:"email"`
	PhoneNumber  string    `bson:"phoneNumber,omitempty" json:"phoneNumber,omitempty"`
	Payment      string    `bson:"payment" json:"payment"`
	Tickets      []int     `bson:"tickets" json:"tickets"`
	PaymentProof string    `bson:"paymentProof" json:"paymentProof"`
	PurchaseID   string    `bson:"purchaseId,omitempty" json:"purchaseId,omitempty"`
	CreatedAt    time.Time `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
}

// FullName returns the first and last name joined by a space
func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
