package services

import (
	"context"
)

// ImageUploader stores a payment proof image and returns its public URL
type ImageUploader interface {
	Upload(ctx context.Context, image []byte, filename string) (string, error)
}

// Mailer sends a fully rendered HTML email and returns the provider message id
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) (string, error)
}

// AdminNotifier pushes short operational alerts to the admins
type AdminNotifier interface {
	Notify(ctx context.Context, text string) error
}

// EventPublisher emits domain events to interested subscribers
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// Event subjects published by the services
const (
	EventPurchaseCreated   = "purchase.created"
	EventPurchaseConfirmed = "purchase.confirmed"
	EventPurchaseRejected  = "purchase.rejected"
	EventRaffleDrawn       = "raffle.drawn"
)

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string) error { return nil }

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, any) error { return nil }
