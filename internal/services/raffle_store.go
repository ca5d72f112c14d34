package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ArowuTest/jraffle-backend/internal/models"
	"github.com/ArowuTest/jraffle-backend/internal/repositories"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// DrawDateLayout is the calendar date format accepted for draw dates
const DrawDateLayout = "2006-01-02"

// RaffleStoreOptions tunes remote calls made by the store
type RaffleStoreOptions struct {
	// Timeout bounds each remote store call. Zero means no timeout.
	Timeout time.Duration
	// WriteRetries bounds version-guarded read-modify-write cycles
	WriteRetries int
	// MaxTotalTickets caps the inventory of created or resized raffles.
	// Zero or anything above models.MaxTotalTickets uses models.MaxTotalTickets.
	MaxTotalTickets int
}

// RaffleStore mirrors the remote raffles and purchases in memory and funnels
// every raffle mutation through the remote store first
type RaffleStore struct {
	raffleRepo   repositories.RaffleRepository
	purchaseRepo repositories.PurchaseRepository
	timeout      time.Duration
	retries      int
	maxTotal     int
	now          func() time.Time

	mu        sync.RWMutex
	raffles   []*models.Raffle
	purchases []*models.Purchase
	lastID    int64
}

// NewRaffleStore creates an empty store. Call LoadAll to populate it.
func NewRaffleStore(raffleRepo repositories.RaffleRepository, purchaseRepo repositories.PurchaseRepository, opts RaffleStoreOptions) *RaffleStore {
	if opts.WriteRetries < 1 {
		opts.WriteRetries = 5
	}
	if opts.MaxTotalTickets < 1 || opts.MaxTotalTickets > models.MaxTotalTickets {
		opts.MaxTotalTickets = models.MaxTotalTickets
	}
	return &RaffleStore{
		raffleRepo:   raffleRepo,
		purchaseRepo: purchaseRepo,
		timeout:      opts.Timeout,
		retries:      opts.WriteRetries,
		maxTotal:     opts.MaxTotalTickets,
		now:          time.Now,
		raffles:      []*models.Raffle{},
		purchases:    []*models.Purchase{},
	}
}

func (s *RaffleStore) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// LoadAll replaces the mirrored raffles with the remote collection.
// On failure the mirror is left empty.
func (s *RaffleStore) LoadAll(ctx context.Context) error {
	cctx, cancel := s.callCtx(ctx)
	defer cancel()

	raffles, err := s.raffleRepo.FindAll(cctx)
	if err != nil {
		slog.Error("Failed to load raffles", "error", err)
		s.mu.Lock()
		s.raffles = []*models.Raffle{}
		s.mu.Unlock()
		return &RemoteStoreError{Op: "load raffles", Err: err}
	}

	s.mu.Lock()
	s.raffles = raffles
	s.mu.Unlock()
	return nil
}

// LoadPurchases replaces the mirrored purchases with the remote collection
func (s *RaffleStore) LoadPurchases(ctx context.Context) error {
	cctx, cancel := s.callCtx(ctx)
	defer cancel()

	purchases, err := s.purchaseRepo.FindAll(cctx, models.PurchaseFilter{})
	if err != nil {
		slog.Error("Failed to load purchases", "error", err)
		s.mu.Lock()
		s.purchases = []*models.Purchase{}
		s.mu.Unlock()
		return &RemoteStoreError{Op: "load purchases", Err: err}
	}

	s.mu.Lock()
	s.purchases = purchases
	s.mu.Unlock()
	return nil
}

// Raffles returns copies of all mirrored raffles
func (s *RaffleStore) Raffles() []*models.Raffle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Raffle, 0, len(s.raffles))
	for _, r := range s.raffles {
		out = append(out, r.Clone())
	}
	return out
}

// ActiveRaffles returns copies of the mirrored raffles still on sale
func (s *RaffleStore) ActiveRaffles() []*models.Raffle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Raffle{}
	for _, r := range s.raffles {
		if r.Status == models.RaffleStatusActive {
			out = append(out, r.Clone())
		}
	}
	return out
}

// Raffle returns a copy of one mirrored raffle
func (s *RaffleStore) Raffle(id string) (*models.Raffle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.raffles {
		if r.ID == id {
			return r.Clone(), true
		}
	}
	return nil, false
}

// Purchases returns copies of all mirrored purchases
func (s *RaffleStore) Purchases() []*models.Purchase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Purchase, 0, len(s.purchases))
	for _, p := range s.purchases {
		c := *p
		c.TicketNumbers = append([]int(nil), p.TicketNumbers...)
		out = append(out, &c)
	}
	return out
}

// FetchRaffle reads a raffle straight from the remote store, bypassing the mirror
func (s *RaffleStore) FetchRaffle(ctx context.Context, id string) (*models.Raffle, error) {
	cctx, cancel := s.callCtx(ctx)
	defer cancel()

	raffle, err := s.raffleRepo.FindByID(cctx, id)
	if err != nil {
		return nil, storeError("fetch raffle", err, ErrRaffleNotFound)
	}
	return raffle, nil
}

// CreateRaffle validates the input, persists a new raffle and reloads the mirror
func (s *RaffleStore) CreateRaffle(ctx context.Context, input models.RaffleInput) (*models.Raffle, error) {
	drawDate, err := validateRaffleInput(&input, s.maxTotal)
	if err != nil {
		return nil, err
	}

	now := s.now()
	raffle := &models.Raffle{
		ID:             s.nextID(now),
		Title:          strings.TrimSpace(input.Title),
		Description:    input.Description,
		Image:          strings.TrimSpace(input.Image),
		PricePerTicket: input.PricePerTicket,
		TotalTickets:   input.TotalTickets,
		DrawDate:       drawDate,
		Status:         input.Status,
		CreatedAt:      now,
		PremiumNumbers: append([]models.PremiumNumber{}, input.PremiumNumbers...),
		Users:          []models.User{},
	}
	if raffle.Status == "" {
		raffle.Status = models.RaffleStatusActive
	}

	cctx, cancel := s.callCtx(ctx)
	err = s.raffleRepo.Create(cctx, raffle)
	cancel()
	if err != nil {
		slog.Error("Failed to create raffle", "title", raffle.Title, "error", err)
		return nil, &RemoteStoreError{Op: "create raffle", Err: err}
	}

	s.mu.Lock()
	s.raffles = append(s.raffles, raffle.Clone())
	s.mu.Unlock()

	if err := s.LoadAll(ctx); err != nil {
		slog.Warn("Raffle created but reload failed", "raffleId", raffle.ID, "error", err)
	}
	return raffle, nil
}

// nextID derives a raffle id from the creation time in milliseconds, bumped
// past the previous id when two raffles are created within the same millisecond
func (s *RaffleStore) nextID(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := now.UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return strconv.FormatInt(id, 10)
}

// UpdateRaffle merges the non-nil fields of update into the raffle after
// checking them against the current remote document
func (s *RaffleStore) UpdateRaffle(ctx context.Context, id string, update *models.RaffleUpdate) (*models.Raffle, error) {
	if update == nil || update.IsEmpty() {
		return nil, NewValidationError("body", "no fields to update")
	}

	for attempt := 0; attempt < s.retries; attempt++ {
		current, err := s.FetchRaffle(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := validateRaffleUpdate(current, update, s.maxTotal); err != nil {
			return nil, err
		}

		cctx, cancel := s.callCtx(ctx)
		err = s.raffleRepo.Update(cctx, id, current.Version, update)
		cancel()
		if errors.Is(err, repositories.ErrVersionConflict) {
			slog.Warn("Raffle update conflicted, retrying", "raffleId", id, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, storeError("update raffle", err, ErrRaffleNotFound)
		}

		update.Apply(current)
		current.Version++
		current.UpdatedAt = s.now()
		s.replaceLocal(current)
		return current.Clone(), nil
	}
	return nil, ErrConcurrentUpdate
}

// SetPremiumNumbers replaces the premium number set of a raffle
func (s *RaffleStore) SetPremiumNumbers(ctx context.Context, id string, numbers []models.PremiumNumber) (*models.Raffle, error) {
	if numbers == nil {
		numbers = []models.PremiumNumber{}
	}
	return s.UpdateRaffle(ctx, id, &models.RaffleUpdate{PremiumNumbers: &numbers})
}

// DeleteRaffle removes the raffle remotely and drops it and its purchases from
// the mirror. Remote purchases referencing the raffle are kept.
func (s *RaffleStore) DeleteRaffle(ctx context.Context, id string) error {
	cctx, cancel := s.callCtx(ctx)
	defer cancel()

	if err := s.raffleRepo.Delete(cctx, id); err != nil {
		return storeError("delete raffle", err, ErrRaffleNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	raffles := s.raffles[:0]
	for _, r := range s.raffles {
		if r.ID != id {
			raffles = append(raffles, r)
		}
	}
	s.raffles = raffles
	purchases := s.purchases[:0]
	for _, p := range s.purchases {
		if p.RaffleID != id {
			purchases = append(purchases, p)
		}
	}
	s.purchases = purchases
	return nil
}

// AppendUser makes a single attempt to append user to the raffle at the
// version it was read at. A concurrent write yields repositories.ErrVersionConflict.
func (s *RaffleStore) AppendUser(ctx context.Context, raffle *models.Raffle, user models.User) (*models.Raffle, error) {
	if err := checkUserTickets(raffle, user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	users := make([]models.User, 0, len(raffle.Users)+1)
	users = append(users, raffle.Users...)
	users = append(users, user)
	return s.writeUsers(ctx, raffle, users)
}

// AddUserToRaffle appends a user, re-reading and retrying when another writer
// got there first
func (s *RaffleStore) AddUserToRaffle(ctx context.Context, raffleID string, user models.User) (*models.Raffle, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	for attempt := 0; attempt < s.retries; attempt++ {
		raffle, err := s.FetchRaffle(ctx, raffleID)
		if err != nil {
			return nil, err
		}
		updated, err := s.AppendUser(ctx, raffle, user)
		if errors.Is(err, repositories.ErrVersionConflict) {
			slog.Warn("User append conflicted, retrying", "raffleId", raffleID, "attempt", attempt+1)
			continue
		}
		return updated, err
	}
	return nil, ErrConcurrentUpdate
}

// RemoveUserFromRaffle removes the user at index, provided the slot still
// holds expectedUserID. An empty expectedUserID skips the identity check.
func (s *RaffleStore) RemoveUserFromRaffle(ctx context.Context, raffleID string, index int, expectedUserID string) (models.User, error) {
	return s.removeUser(ctx, raffleID, func(r *models.Raffle) (int, error) {
		if index < 0 || index >= len(r.Users) {
			return -1, &IndexInvalidationError{Index: index, ExpectedUserID: expectedUserID}
		}
		if expectedUserID != "" && r.Users[index].ID != expectedUserID {
			return -1, &IndexInvalidationError{Index: index, ExpectedUserID: expectedUserID}
		}
		return index, nil
	})
}

// RemoveUserByID removes the user with the given stable id
func (s *RaffleStore) RemoveUserByID(ctx context.Context, raffleID, userID string) (models.User, error) {
	return s.removeUser(ctx, raffleID, func(r *models.Raffle) (int, error) {
		i := r.FindUser(userID)
		if i < 0 {
			return -1, &IndexInvalidationError{Index: -1, ExpectedUserID: userID}
		}
		return i, nil
	})
}

func (s *RaffleStore) removeUser(ctx context.Context, raffleID string, locate func(*models.Raffle) (int, error)) (models.User, error) {
	for attempt := 0; attempt < s.retries; attempt++ {
		raffle, err := s.FetchRaffle(ctx, raffleID)
		if err != nil {
			return models.User{}, err
		}
		i, err := locate(raffle)
		if err != nil {
			return models.User{}, err
		}
		removed := raffle.Users[i]
		users := make([]models.User, 0, len(raffle.Users)-1)
		users = append(users, raffle.Users[:i]...)
		users = append(users, raffle.Users[i+1:]...)

		_, err = s.writeUsers(ctx, raffle, users)
		if errors.Is(err, repositories.ErrVersionConflict) {
			slog.Warn("User removal conflicted, retrying", "raffleId", raffleID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return models.User{}, err
		}
		return removed, nil
	}
	return models.User{}, ErrConcurrentUpdate
}

func (s *RaffleStore) writeUsers(ctx context.Context, raffle *models.Raffle, users []models.User) (*models.Raffle, error) {
	cctx, cancel := s.callCtx(ctx)
	err := s.raffleRepo.SetUsers(cctx, raffle.ID, raffle.Version, users)
	cancel()
	if errors.Is(err, repositories.ErrVersionConflict) {
		return nil, err
	}
	if err != nil {
		return nil, storeError("write users", err, ErrRaffleNotFound)
	}

	updated := raffle.Clone()
	updated.Users = users
	updated.Version++
	updated.UpdatedAt = s.now()
	s.replaceLocal(updated)
	return updated.Clone(), nil
}

func (s *RaffleStore) replaceLocal(raffle *models.Raffle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.raffles {
		if r.ID == raffle.ID {
			s.raffles[i] = raffle.Clone()
			return
		}
	}
	s.raffles = append(s.raffles, raffle.Clone())
}

func (s *RaffleStore) upsertPurchase(p *models.Purchase) {
	c := *p
	c.TicketNumbers = append([]int(nil), p.TicketNumbers...)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.purchases {
		if existing.ID == p.ID {
			s.purchases[i] = &c
			return
		}
	}
	s.purchases = append(s.purchases, &c)
}

func (s *RaffleStore) removePurchase(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.purchases {
		if p.ID == id {
			s.purchases = append(s.purchases[:i], s.purchases[i+1:]...)
			return
		}
	}
}

// OccupiedCount returns the number of tickets held by the raffle's users
func (s *RaffleStore) OccupiedCount(raffle *models.Raffle) int {
	return OccupiedCount(raffle)
}

// AvailableCount returns the number of tickets not held by any user
func (s *RaffleStore) AvailableCount(raffle *models.Raffle) int {
	return AvailableCount(raffle)
}

// OccupiedCount sums the ticket set sizes of every user
func OccupiedCount(raffle *models.Raffle) int {
	n := 0
	for _, u := range raffle.Users {
		n += len(u.Tickets)
	}
	return n
}

// AvailableCount is the total ticket count minus the occupied count
func AvailableCount(raffle *models.Raffle) int {
	return raffle.TotalTickets - OccupiedCount(raffle)
}

// Summary pairs a raffle with its derived counts
func (s *RaffleStore) Summary(raffle *models.Raffle) models.RaffleSummary {
	return models.RaffleSummary{
		Raffle:           raffle,
		OccupiedTickets:  OccupiedCount(raffle),
		AvailableTickets: AvailableCount(raffle),
	}
}

// DashboardStats aggregates sales figures from the mirror
func (s *RaffleStore) DashboardStats() models.DashboardStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats models.DashboardStats
	stats.TotalRaffles = len(s.raffles)
	for _, r := range s.raffles {
		sold := OccupiedCount(r)
		stats.TotalSoldTickets += sold
		stats.TotalRevenue += int64(sold) * r.PricePerTicket
		if r.Status == models.RaffleStatusActive {
			stats.ActiveRaffles++
		}
	}
	for _, p := range s.purchases {
		if p.Status == models.PurchaseStatusPending {
			stats.PendingPurchases++
		}
	}
	return stats
}

func validateRaffleInput(input *models.RaffleInput, maxTotal int) (time.Time, error) {
	verr := &ValidationError{}
	if strings.TrimSpace(input.Title) == "" {
		verr.Add("title", "is required")
	}
	if strings.TrimSpace(input.Description) == "" {
		verr.Add("description", "is required")
	}
	if strings.TrimSpace(input.Image) == "" {
		verr.Add("image", "is required")
	}
	if input.PricePerTicket <= 0 {
		verr.Add("pricePerTicket", "must be positive")
	}
	if input.TotalTickets <= 0 {
		verr.Add("totalTickets", "must be positive")
	} else if input.TotalTickets > maxTotal {
		verr.Add("totalTickets", fmt.Sprintf("must be at most %d", maxTotal))
	}
	if input.Status != "" && !input.Status.Valid() {
		verr.Add("status", "must be active or finished")
	}
	var drawDate time.Time
	if strings.TrimSpace(input.DrawDate) == "" {
		verr.Add("drawDate", "is required")
	} else {
		d, err := time.Parse(DrawDateLayout, strings.TrimSpace(input.DrawDate))
		if err != nil {
			verr.Add("drawDate", "must be a date formatted YYYY-MM-DD")
		}
		drawDate = d
	}
	if input.TotalTickets > 0 && input.TotalTickets <= maxTotal {
		if msg := checkPremiumSet(input.PremiumNumbers, input.TotalTickets); msg != "" {
			verr.Add("premiumNumbers", msg)
		}
	}
	return drawDate, verr.OrNil()
}

func validateRaffleUpdate(current *models.Raffle, update *models.RaffleUpdate, maxTotal int) error {
	verr := &ValidationError{}
	if update.Title != nil && strings.TrimSpace(*update.Title) == "" {
		verr.Add("title", "must not be empty")
	}
	if update.Description != nil && strings.TrimSpace(*update.Description) == "" {
		verr.Add("description", "must not be empty")
	}
	if update.Image != nil && strings.TrimSpace(*update.Image) == "" {
		verr.Add("image", "must not be empty")
	}
	if update.PricePerTicket != nil && *update.PricePerTicket <= 0 {
		verr.Add("pricePerTicket", "must be positive")
	}
	if update.Status != nil && !update.Status.Valid() {
		verr.Add("status", "must be active or finished")
	}

	premium := current.PremiumNumbers
	if update.PremiumNumbers != nil {
		premium = *update.PremiumNumbers
	}
	total := current.TotalTickets
	if update.TotalTickets != nil {
		total = *update.TotalTickets
		if total <= 0 {
			verr.Add("totalTickets", "must be positive")
		} else if total > maxTotal {
			verr.Add("totalTickets", fmt.Sprintf("must be at most %d", maxTotal))
			total = 0
		} else if floor := minimumTotal(current, premium); total < floor {
			verr.Add("totalTickets", fmt.Sprintf("must be at least %d to keep sold and premium numbers in range", floor))
		}
	}

	if update.PremiumNumbers != nil && total > 0 {
		if msg := checkPremiumSet(*update.PremiumNumbers, total); msg != "" {
			verr.Add("premiumNumbers", msg)
		}
	}
	if err := verr.OrNil(); err != nil {
		return err
	}
	if update.PremiumNumbers != nil {
		return checkPremiumLocks(current, *update.PremiumNumbers)
	}
	return nil
}

// minimumTotal is the smallest totalTickets that keeps every sold number and
// every number of the given premium set inside the range
func minimumTotal(r *models.Raffle, premium []models.PremiumNumber) int {
	floor := OccupiedCount(r)
	for _, u := range r.Users {
		for _, t := range u.Tickets {
			if t > floor {
				floor = t
			}
		}
	}
	for _, pn := range premium {
		if pn.Number > floor {
			floor = pn.Number
		}
	}
	return floor
}

func checkPremiumSet(numbers []models.PremiumNumber, total int) string {
	seen := make(map[int]struct{}, len(numbers))
	for _, pn := range numbers {
		if pn.Number < 1 || pn.Number > total {
			return fmt.Sprintf("number %d is outside 1-%d", pn.Number, total)
		}
		if _, dup := seen[pn.Number]; dup {
			return fmt.Sprintf("number %d is listed twice", pn.Number)
		}
		seen[pn.Number] = struct{}{}
	}
	return ""
}

// checkPremiumLocks rejects changes to premium numbers a participant already holds
func checkPremiumLocks(current *models.Raffle, next []models.PremiumNumber) error {
	held := make(map[int]struct{})
	for _, t := range OccupiedTickets(current) {
		held[t] = struct{}{}
	}
	nextByNumber := make(map[int]models.PremiumNumber, len(next))
	for _, pn := range next {
		nextByNumber[pn.Number] = pn
	}
	for _, pn := range current.PremiumNumbers {
		if _, ok := held[pn.Number]; !ok {
			continue
		}
		np, kept := nextByNumber[pn.Number]
		if !kept || np.IsBlocked != pn.IsBlocked {
			return fmt.Errorf("%w: %d", ErrPremiumNumberLocked, pn.Number)
		}
	}
	for _, pn := range next {
		if _, ok := held[pn.Number]; !ok {
			continue
		}
		if _, existed := current.PremiumNumber(pn.Number); !existed {
			return fmt.Errorf("%w: %d", ErrPremiumNumberLocked, pn.Number)
		}
	}
	return nil
}

// checkUserTickets rejects tickets outside the range, already held or blocked
func checkUserTickets(raffle *models.Raffle, user models.User) error {
	if len(user.Tickets) == 0 {
		return NewValidationError("tickets", "at least one ticket is required")
	}
	if err := verifyAllocation(user.Tickets, raffle.TotalTickets, len(user.Tickets)); err != nil {
		return NewValidationError("tickets", err.Error())
	}
	taken := make(map[int]struct{})
	for _, t := range OccupiedTickets(raffle) {
		taken[t] = struct{}{}
	}
	for _, t := range BlockedPremiumNumbers(raffle) {
		taken[t] = struct{}{}
	}
	var clash []int
	for _, t := range user.Tickets {
		if _, ok := taken[t]; ok {
			clash = append(clash, t)
		}
	}
	if len(clash) > 0 {
		return &TicketsUnavailableError{Numbers: clash}
	}
	return nil
}

// storeError maps repository errors onto service errors
func storeError(op string, err error, notFound error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return notFound
	}
	if errors.Is(err, repositories.ErrMalformedDocument) {
		slog.Error("Malformed document in store", "op", op, "error", err)
	}
	return &RemoteStoreError{Op: op, Err: err}
}
