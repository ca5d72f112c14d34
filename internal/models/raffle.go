package models

import (
	"time"
)

// RaffleStatus represents the lifecycle status of a raffle
type RaffleStatus string

const (
	RaffleStatusActive   RaffleStatus = "active"
	RaffleStatusFinished RaffleStatus = "finished"
)

// Valid reports whether the status is one of the known values
func (s RaffleStatus) Valid() bool {
	return s == RaffleStatusActive || s == RaffleStatusFinished
}

// MaxTotalTickets is the largest ticket inventory a raffle may hold. Ticket
// pools are materialized in memory, so the range must stay bounded.
const MaxTotalTickets = 1_000_000

// PremiumNumber is a ticket number singled out for special treatment.
// Blocked premium numbers are withheld from sale.
type PremiumNumber struct {
	Number    int  `bson:"number" json:"number"`
	IsBlocked bool `bson:"isBlocked" json:"isBlocked"`
}

// Raffle represents a single sweepstake with a fixed ticket inventory
type Raffle struct {
	ID             string          `bson:"_id" json:"id"`
	Title          string          `bson:"title" json:"title"`
	Description    string          `bson:"description" json:"description"`
	Image          string          `bson:"image" json:"image"`
	PricePerTicket int64           `bson:"pricePerTicket" json:"pricePerTicket"`
	TotalTickets   int             `bson:"totalTickets" json:"totalTickets"`
	DrawDate       time.Time       `bson:"drawDate" json:"drawDate"`
	Status         RaffleStatus    `bson:"status" json:"status"`
	CreatedAt      time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time       `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
	PremiumNumbers []PremiumNumber `bson:"premiumNumbers" json:"premiumNumbers"`
	Users          []User          `bson:"users" json:"users"`
	// Version is incremented on every write and guards read-modify-write cycles
	Version int64 `bson:"version" json:"version"`
}

// Clone returns a deep copy so callers cannot mutate shared state
func (r *Raffle) Clone() *Raffle {
	if r == nil {
		return nil
	}
	c := *r
	c.PremiumNumbers = append([]PremiumNumber(nil), r.PremiumNumbers...)
	c.Users = make([]User, len(r.Users))
	for i, u := range r.Users {
		c.Users[i] = u
		c.Users[i].Tickets = append([]int(nil), u.Tickets...)
	}
	return &c
}

// FindUser returns the index of the user with the given stable ID, or -1
func (r *Raffle) FindUser(userID string) int {
	for i := range r.Users {
		if r.Users[i].ID == userID {
			return i
		}
	}
	return -1
}

// PremiumNumber returns the premium entry for a ticket number, if any
func (r *Raffle) PremiumNumber(number int) (PremiumNumber, bool) {
	for _, pn := range r.PremiumNumbers {
		if pn.Number == number {
			return pn, true
		}
	}
	return PremiumNumber{}, false
}

// IsPremiumWin reports whether a ticket is an unblocked premium number
func (r *Raffle) IsPremiumWin(ticket int) bool {
	pn, ok := r.PremiumNumber(ticket)
	return ok && !pn.IsBlocked
}

// RaffleInput holds the fields accepted when creating a raffle
type RaffleInput struct {
	Title          string          `json:"title" binding:"required"`
	Description    string          `json:"description" binding:"required"`
	Image          string          `json:"image" binding:"required"`
	PricePerTicket int64           `json:"pricePerTicket" binding:"required"`
	TotalTickets   int             `json:"totalTickets" binding:"required"`
	DrawDate       string          `json:"drawDate" binding:"required"` // YYYY-MM-DD
	Status         RaffleStatus    `json:"status"`
	PremiumNumbers []PremiumNumber `json:"premiumNumbers"`
}

// RaffleUpdate is a partial update. Nil fields are left untouched.
type RaffleUpdate struct {
	Title          *string          `json:"title"`
	Description    *string          `json:"description"`
	Image          *string          `json:"image"`
	PricePerTicket *int64           `json:"pricePerTicket"`
	TotalTickets   *int             `json:"totalTickets"`
	DrawDate       *time.Time       `json:"-"`
	Status         *RaffleStatus    `json:"status"`
	PremiumNumbers *[]PremiumNumber `json:"premiumNumbers"`
}

// IsEmpty reports whether the update carries no fields
func (u *RaffleUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Image == nil &&
		u.PricePerTicket == nil && u.TotalTickets == nil && u.DrawDate == nil &&
		u.Status == nil && u.PremiumNumbers == nil
}

// Apply merges the non-nil fields of the update into the raffle
func (u *RaffleUpdate) Apply(r *Raffle) {
	if u.Title != nil {
		r.Title = *u.Title
	}
	if u.Description != nil {
		r.Description = *u.Description
	}
	if u.Image != nil {
		r.Image = *u.Image
	}
	if u.PricePerTicket != nil {
		r.PricePerTicket = *u.PricePerTicket
	}
	if u.TotalTickets != nil {
		r.TotalTickets = *u.TotalTickets
	}
	if u.DrawDate != nil {
		r.DrawDate = *u.DrawDate
	}
	if u.Status != nil {
		r.Status = *u.Status
	}
	if u.PremiumNumbers != nil {
		r.PremiumNumbers = append([]PremiumNumber(nil), (*u.PremiumNumbers)...)
	}
}
