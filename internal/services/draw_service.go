package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ArowuTest/jraffle-backend/internal/models"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// DrawOptions configures live drawings
type DrawOptions struct {
	SpinDuration time.Duration
}

// DrawService runs one live drawing session per raffle.
// Sessions move Idle -> Spinning -> Result and live in memory only.
type DrawService struct {
	store  *RaffleStore
	events EventPublisher
	rng    RandomSource
	spin   time.Duration
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*models.DrawSession
}

// NewDrawService creates a DrawService. A nil rng uses DefaultRandomSource.
func NewDrawService(store *RaffleStore, events EventPublisher, rng RandomSource, opts DrawOptions) *DrawService {
	if events == nil {
		events = noopPublisher{}
	}
	if rng == nil {
		rng = DefaultRandomSource
	}
	if opts.SpinDuration <= 0 {
		opts.SpinDuration = 5 * time.Second
	}
	return &DrawService{
		store:    store,
		events:   events,
		rng:      rng,
		spin:     opts.SpinDuration,
		now:      time.Now,
		sessions: make(map[string]*models.DrawSession),
	}
}

// Start begins spinning for a raffle. The winner is picked when the spin ends.
func (s *DrawService) Start(ctx context.Context, raffleID string) (*models.DrawSession, error) {
	raffle, err := s.store.FetchRaffle(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	if OccupiedCount(raffle) == 0 {
		return nil, ErrNoParticipants
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[raffleID]; ok && existing.State == models.DrawStateSpinning {
		return nil, ErrDrawInProgress
	}

	now := s.now()
	session := &models.DrawSession{
		ID:        uuid.NewString(),
		RaffleID:  raffleID,
		State:     models.DrawStateSpinning,
		StartedAt: now,
		EndsAt:    now.Add(s.spin),
	}
	s.sessions[raffleID] = session
	time.AfterFunc(s.spin, func() { s.finish(raffle, session.ID) })

	slog.Info("Draw started", "raffleId", raffleID, "sessionId", session.ID, "participants", len(raffle.Users))
	c := *session
	return &c, nil
}

func (s *DrawService) finish(raffle *models.Raffle, sessionID string) {
	s.mu.Lock()
	session, ok := s.sessions[raffle.ID]
	if !ok || session.ID != sessionID {
		s.mu.Unlock()
		return
	}
	result, err := SelectWinner(raffle, s.rng)
	if err != nil {
		slog.Error("Draw failed", "raffleId", raffle.ID, "error", err)
		delete(s.sessions, raffle.ID)
		s.mu.Unlock()
		return
	}
	result.DrawnAt = s.now()
	session.State = models.DrawStateResult
	session.Result = result
	s.mu.Unlock()

	slog.Info("Draw completed", "raffleId", raffle.ID, "sessionId", sessionID, "winningTicket", result.WinningTicket, "winner", result.Winner.ID, "premium", result.IsPremium)
	if err := s.events.Publish(context.Background(), EventRaffleDrawn, map[string]any{
		"raffleId":      raffle.ID,
		"sessionId":     sessionID,
		"winningTicket": result.WinningTicket,
		"winnerId":      result.Winner.ID,
		"isPremium":     result.IsPremium,
		"drawnAt":       result.DrawnAt,
	}); err != nil {
		slog.Warn("Failed to publish event", "subject", EventRaffleDrawn, "error", err)
	}
}

// Get returns the current session for a raffle, idle when none exists
func (s *DrawService) Get(raffleID string) *models.DrawSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[raffleID]
	if !ok {
		return &models.DrawSession{RaffleID: raffleID, State: models.DrawStateIdle}
	}
	c := *session
	if session.Result != nil {
		r := *session.Result
		c.Result = &r
	}
	return &c
}

// Close returns a finished session to idle. A spinning session cannot be closed.
func (s *DrawService) Close(raffleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[raffleID]; ok && session.State == models.DrawStateSpinning {
		return ErrDrawInProgress
	}
	delete(s.sessions, raffleID)
	return nil
}

// SelectWinner picks one held ticket uniformly at random, so each
// participant's chance is proportional to the tickets they hold
func SelectWinner(raffle *models.Raffle, rng RandomSource) (*models.DrawResult, error) {
	type entry struct {
		user   int
		ticket int
	}
	var entries []entry
	participants := 0
	for i, u := range raffle.Users {
		if len(u.Tickets) > 0 {
			participants++
		}
		for _, t := range u.Tickets {
			entries = append(entries, entry{user: i, ticket: t})
		}
	}
	if len(entries) == 0 {
		return nil, ErrNoParticipants
	}

	k := rng.IntN(len(entries))
	if k < 0 || k >= len(entries) {
		return nil, fmt.Errorf("random source returned %d outside [0,%d)", k, len(entries))
	}
	won := entries[k]
	winner := raffle.Users[won.user]
	winner.Tickets = append([]int(nil), winner.Tickets...)
	return &models.DrawResult{
		WinningTicket: won.ticket,
		Winner:        winner,
		WinnerIndex:   won.user,
		IsPremium:     raffle.IsPremiumWin(won.ticket),
		Participants:  participants,
		TicketsInPlay: len(entries),
	}, nil
}
