package testhelpers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ArowuTest/jraffle-backend/internal/models"
	"github.com/ArowuTest/jraffle-backend/internal/repositories"
)

var (
	_ repositories.RaffleRepository    = (*MemoryRaffleRepository)(nil)
	_ repositories.PurchaseRepository  = (*MemoryPurchaseRepository)(nil)
	_ repositories.AdminUserRepository = (*MemoryAdminUserRepository)(nil)
)

// MemoryRaffleRepository is an in-memory RaffleRepository with the same
// version-guard semantics as the MongoDB implementation
type MemoryRaffleRepository struct {
	mu      sync.Mutex
	raffles map[string]*models.Raffle
	order   []string

	// FindAllErr, when set, is returned by FindAll
	FindAllErr error
	// BeforeSetUsers runs before each SetUsers call, outside the lock.
	// Tests use it to interleave a competing writer.
	BeforeSetUsers func(id string, expectedVersion int64)
	setUsersCalls  int
}

// NewMemoryRaffleRepository creates an empty repository
func NewMemoryRaffleRepository(raffles ...*models.Raffle) *MemoryRaffleRepository {
	r := &MemoryRaffleRepository{raffles: map[string]*models.Raffle{}}
	for _, raffle := range raffles {
		r.raffles[raffle.ID] = raffle.Clone()
		r.order = append(r.order, raffle.ID)
	}
	return r
}

func (r *MemoryRaffleRepository) Create(ctx context.Context, raffle *models.Raffle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.raffles[raffle.ID]; ok {
		return repositories.ErrDuplicateKey
	}
	r.raffles[raffle.ID] = raffle.Clone()
	r.order = append(r.order, raffle.ID)
	return nil
}

func (r *MemoryRaffleRepository) FindByID(ctx context.Context, id string) (*models.Raffle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raffle, ok := r.raffles[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return raffle.Clone(), nil
}

func (r *MemoryRaffleRepository) FindAll(ctx context.Context) ([]*models.Raffle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FindAllErr != nil {
		return nil, r.FindAllErr
	}
	out := []*models.Raffle{}
	for _, id := range r.order {
		if raffle, ok := r.raffles[id]; ok {
			out = append(out, raffle.Clone())
		}
	}
	return out, nil
}

func (r *MemoryRaffleRepository) Update(ctx context.Context, id string, expectedVersion int64, update *models.RaffleUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	raffle, ok := r.raffles[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if raffle.Version != expectedVersion {
		return repositories.ErrVersionConflict
	}
	update.Apply(raffle)
	raffle.Version++
	raffle.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRaffleRepository) SetUsers(ctx context.Context, id string, expectedVersion int64, users []models.User) error {
	if r.BeforeSetUsers != nil {
		r.BeforeSetUsers(id, expectedVersion)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setUsersCalls++
	raffle, ok := r.raffles[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if raffle.Version != expectedVersion {
		return repositories.ErrVersionConflict
	}
	tmp := &models.Raffle{Users: users}
	raffle.Users = tmp.Clone().Users
	raffle.Version++
	raffle.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRaffleRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.raffles[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.raffles, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Stored returns a copy of the stored raffle, or nil
func (r *MemoryRaffleRepository) Stored(id string) *models.Raffle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.raffles[id].Clone()
}

// SetUsersCalls reports how many SetUsers attempts were made
func (r *MemoryRaffleRepository) SetUsersCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setUsersCalls
}

// MemoryPurchaseRepository is an in-memory PurchaseRepository
type MemoryPurchaseRepository struct {
	mu        sync.Mutex
	purchases map[string]*models.Purchase

	// CreateErr, when set, is returned by Create
	CreateErr error
}

// NewMemoryPurchaseRepository creates a repository holding the given purchases
func NewMemoryPurchaseRepository(purchases ...*models.Purchase) *MemoryPurchaseRepository {
	r := &MemoryPurchaseRepository{purchases: map[string]*models.Purchase{}}
	for _, p := range purchases {
		r.purchases[p.ID] = copyPurchase(p)
	}
	return r
}

func copyPurchase(p *models.Purchase) *models.Purchase {
	c := *p
	c.TicketNumbers = append([]int(nil), p.TicketNumbers...)
	return &c
}

func (r *MemoryPurchaseRepository) Create(ctx context.Context, purchase *models.Purchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateErr != nil {
		return r.CreateErr
	}
	if _, ok := r.purchases[purchase.ID]; ok {
		return repositories.ErrDuplicateKey
	}
	r.purchases[purchase.ID] = copyPurchase(purchase)
	return nil
}

func (r *MemoryPurchaseRepository) FindByID(ctx context.Context, id string) (*models.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.purchases[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return copyPurchase(p), nil
}

func (r *MemoryPurchaseRepository) FindAll(ctx context.Context, filter models.PurchaseFilter) ([]*models.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Purchase{}
	for _, p := range r.purchases {
		if filter.Matches(p) {
			out = append(out, copyPurchase(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryPurchaseRepository) Transition(ctx context.Context, id string, from, to models.PurchaseStatus, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.purchases[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if p.Status != from {
		return repositories.ErrStatusConflict
	}
	now := time.Now()
	p.Status = to
	switch to {
	case models.PurchaseStatusConfirmed:
		p.UserID = userID
		p.ConfirmedAt = &now
	case models.PurchaseStatusRejected:
		p.RejectedAt = &now
	case models.PurchaseStatusPending:
		p.UserID = ""
		p.ConfirmedAt = nil
	}
	return nil
}

func (r *MemoryPurchaseRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.purchases[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.purchases, id)
	return nil
}

// MemoryAdminUserRepository is an in-memory AdminUserRepository
type MemoryAdminUserRepository struct {
	mu     sync.Mutex
	admins map[string]*models.AdminUser
}

// NewMemoryAdminUserRepository creates an empty repository
func NewMemoryAdminUserRepository() *MemoryAdminUserRepository {
	return &MemoryAdminUserRepository{admins: map[string]*models.AdminUser{}}
}

func (r *MemoryAdminUserRepository) Create(ctx context.Context, adminUser *models.AdminUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.admins {
		if a.Username == adminUser.Username {
			return repositories.ErrDuplicateKey
		}
	}
	if adminUser.ID == "" {
		adminUser.ID = adminUser.Username
	}
	c := *adminUser
	r.admins[c.ID] = &c
	return nil
}

func (r *MemoryAdminUserRepository) FindByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.admins {
		if a.Username == username {
			c := *a
			return &c, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *MemoryAdminUserRepository) FindByID(ctx context.Context, id string) (*models.AdminUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.admins[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (r *MemoryAdminUserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.admins[id]
	if !ok {
		return repositories.ErrNotFound
	}
	a.Password = passwordHash
	return nil
}
