package models

import (
	"time"
)

// DrawState represents the state of a live drawing session
type DrawState string

const (
	DrawStateIdle     DrawState = "idle"
	DrawStateSpinning DrawState = "spinning"
	DrawStateResult   DrawState = "result"
)

// DrawResult holds the outcome of a drawing
type DrawResult struct {
	WinningTicket int       `json:"winningTicket"`
	Winner        User      `json:"winner"`
	WinnerIndex   int       `json:"winnerIndex"`
	IsPremium     bool      `json:"isPremium"`
	Participants  int       `json:"participants"`
	TicketsInPlay int       `json:"ticketsInPlay"`
	DrawnAt       time.Time `json:"drawnAt"`
}

// DrawSession tracks one live drawing for a raffle
type DrawSession struct {
	ID        string      `json:"id"`
	RaffleID  string      `json:"raffleId"`
	State     DrawState   `json:"state"`
	StartedAt time.Time   `json:"startedAt"`
	EndsAt    time.Time   `json:"endsAt"`
	Result    *DrawResult `json:"result,omitempty"`
}
