package testhelpers

import (
	"context"

	"github.com/ArowuTest/jraffle-backend/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockRaffleRepository is a mock implementation of RaffleRepository
type MockRaffleRepository struct {
	mock.Mock
}

func (m *MockRaffleRepository) Create(ctx context.Context, raffle *models.Raffle) error {
	args := m.Called(ctx, raffle)
	return args.Error(0)
}

func (m *MockRaffleRepository) FindByID(ctx context.Context, id string) (*models.Raffle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Raffle), args.Error(1)
}

func (m *MockRaffleRepository) FindAll(ctx context.Context) ([]*models.Raffle, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Raffle), args.Error(1)
}

func (m *MockRaffleRepository) Update(ctx context.Context, id string, expectedVersion int64, update *models.RaffleUpdate) error {
	args := m.Called(ctx, id, expectedVersion, update)
	return args.Error(0)
}

func (m *MockRaffleRepository) SetUsers(ctx context.Context, id string, expectedVersion int64, users []models.User) error {
	args := m.Called(ctx, id, expectedVersion, users)
	return args.Error(0)
}

func (m *MockRaffleRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPurchaseRepository is a mock implementation of PurchaseRepository
type MockPurchaseRepository struct {
	mock.Mock
}

func (m *MockPurchaseRepository) Create(ctx context.Context, purchase *models.Purchase) error {
	args := m.Called(ctx, purchase)
	return args.Error(0)
}

func (m *MockPurchaseRepository) FindByID(ctx context.Context, id string) (*models.Purchase, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Purchase), args.Error(1)
}

func (m *MockPurchaseRepository) FindAll(ctx context.Context, filter models.PurchaseFilter) ([]*models.Purchase, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Purchase), args.Error(1)
}

func (m *MockPurchaseRepository) Transition(ctx context.Context, id string, from, to models.PurchaseStatus, userID string) error {
	args := m.Called(ctx, id, from, to, userID)
	return args.Error(0)
}

func (m *MockPurchaseRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockAdminUserRepository is a mock implementation of AdminUserRepository
type MockAdminUserRepository struct {
	mock.Mock
}

func (m *MockAdminUserRepository) Create(ctx context.Context, adminUser *models.AdminUser) error {
	args := m.Called(ctx, adminUser)
	return args.Error(0)
}

func (m *MockAdminUserRepository) FindByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AdminUser), args.Error(1)
}

func (m *MockAdminUserRepository) FindByID(ctx context.Context, id string) (*models.AdminUser, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AdminUser), args.Error(1)
}

func (m *MockAdminUserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}
