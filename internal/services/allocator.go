package services

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/ArowuTest/jraffle-backend/internal/models"
)

// RandomSource yields uniform integers in [0, n)
type RandomSource interface {
	IntN(n int) int
}

type defaultSource struct{}

func (defaultSource) IntN(n int) int { return rand.IntN(n) }

// DefaultRandomSource is the auto-seeded process-wide generator
var DefaultRandomSource RandomSource = defaultSource{}

// TicketAllocator picks unused ticket numbers for a purchase
type TicketAllocator struct {
	rng RandomSource
}

// NewTicketAllocator creates an allocator. A nil source uses DefaultRandomSource.
func NewTicketAllocator(rng RandomSource) *TicketAllocator {
	if rng == nil {
		rng = DefaultRandomSource
	}
	return &TicketAllocator{rng: rng}
}

// Allocate returns n distinct numbers from [1, total] that appear in neither
// occupied nor blocked, sorted ascending
func (a *TicketAllocator) Allocate(occupied, blocked []int, total, n int) ([]int, error) {
	if n < 1 {
		return nil, NewValidationError("ticketCount", "must be at least 1")
	}
	if total < 1 || total > models.MaxTotalTickets {
		return nil, NewValidationError("totalTickets", fmt.Sprintf("must be within 1-%d", models.MaxTotalTickets))
	}

	pool := AvailablePool(occupied, blocked, total)
	if len(pool) < n {
		return nil, &InsufficientTicketsError{Available: len(pool), Requested: n}
	}

	// partial Fisher-Yates: the first n slots end up a uniform sample
	for i := 0; i < n; i++ {
		j := i + a.rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	picked := append([]int(nil), pool[:n]...)
	sort.Ints(picked)
	return picked, nil
}

// AvailablePool lists [1, total] minus occupied and blocked, ascending.
// A total outside 1-models.MaxTotalTickets yields an empty pool.
func AvailablePool(occupied, blocked []int, total int) []int {
	if total < 1 || total > models.MaxTotalTickets {
		return []int{}
	}
	taken := make(map[int]struct{}, len(occupied)+len(blocked))
	for _, t := range occupied {
		taken[t] = struct{}{}
	}
	for _, t := range blocked {
		taken[t] = struct{}{}
	}
	pool := make([]int, 0, total)
	for t := 1; t <= total; t++ {
		if _, ok := taken[t]; !ok {
			pool = append(pool, t)
		}
	}
	return pool
}

// OccupiedTickets returns every ticket held by a user of the raffle
func OccupiedTickets(raffle *models.Raffle) []int {
	var tickets []int
	for _, u := range raffle.Users {
		tickets = append(tickets, u.Tickets...)
	}
	return tickets
}

// BlockedPremiumNumbers returns the premium numbers withheld from sale
func BlockedPremiumNumbers(raffle *models.Raffle) []int {
	var blocked []int
	for _, pn := range raffle.PremiumNumbers {
		if pn.IsBlocked {
			blocked = append(blocked, pn.Number)
		}
	}
	return blocked
}

// verifyAllocation re-checks allocated numbers before they are persisted
func verifyAllocation(numbers []int, total, requested int) error {
	if len(numbers) != requested {
		return &InconsistentAllocationError{Numbers: numbers, Reason: "count mismatch"}
	}
	seen := make(map[int]struct{}, len(numbers))
	for _, n := range numbers {
		if n < 1 || n > total {
			return &InconsistentAllocationError{Numbers: numbers, Reason: "number out of range"}
		}
		if _, dup := seen[n]; dup {
			return &InconsistentAllocationError{Numbers: numbers, Reason: "duplicate number"}
		}
		seen[n] = struct{}{}
	}
	return nil
}
