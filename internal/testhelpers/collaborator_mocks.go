package testhelpers

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockImageUploader is a mock implementation of ImageUploader
type MockImageUploader struct {
	mock.Mock
}

func (m *MockImageUploader) Upload(ctx context.Context, image []byte, filename string) (string, error) {
	args := m.Called(ctx, image, filename)
	return args.String(0), args.Error(1)
}

// MockMailer is a mock implementation of Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, to, subject, html string) (string, error) {
	args := m.Called(ctx, to, subject, html)
	return args.String(0), args.Error(1)
}

// MockAdminNotifier is a mock implementation of AdminNotifier
type MockAdminNotifier struct {
	mock.Mock
}

func (m *MockAdminNotifier) Notify(ctx context.Context, text string) error {
	args := m.Called(ctx, text)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, subject string, payload any) error {
	args := m.Called(ctx, subject, payload)
	return args.Error(0)
}
