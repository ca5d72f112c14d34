package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ArowuTest/jraffle-backend/internal/models"
	"github.com/ArowuTest/jraffle-backend/internal/utils"
	"golang.org/x/exp/slog"
)

// NotificationOptions configures outbound notifications
type NotificationOptions struct {
	// TestRecipient diverts every email to this address when set
	TestRecipient string
	// EmailTimeout bounds one email dispatch
	EmailTimeout time.Duration
}

// NotificationService sends buyer emails and admin alerts
type NotificationService struct {
	mailer        Mailer
	admin         AdminNotifier
	testRecipient string
	timeout       time.Duration
}

// NewNotificationService creates a NotificationService. A nil admin notifier disables alerts.
func NewNotificationService(mailer Mailer, admin AdminNotifier, opts NotificationOptions) *NotificationService {
	if admin == nil {
		admin = noopNotifier{}
	}
	if opts.EmailTimeout <= 0 {
		opts.EmailTimeout = 10 * time.Second
	}
	return &NotificationService{
		mailer:        mailer,
		admin:         admin,
		testRecipient: opts.TestRecipient,
		timeout:       opts.EmailTimeout,
	}
}

type sendResult struct {
	id  string
	err error
}

// SendPurchaseConfirmation emails the buyer their ticket numbers.
// Failures are returned as *EmailDispatchError.
func (s *NotificationService) SendPurchaseConfirmation(ctx context.Context, raffle *models.Raffle, purchase *models.Purchase) error {
	subject, html, err := RenderConfirmationEmail(raffle, purchase)
	if err != nil {
		return &EmailDispatchError{Kind: EmailFailureRender, Err: err}
	}

	to := purchase.Email
	if s.testRecipient != "" {
		subject = fmt.Sprintf("[TEST → %s] %s", to, subject)
		to = s.testRecipient
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan sendResult, 1)
	go func() {
		id, err := s.mailer.Send(cctx, to, subject, html)
		done <- sendResult{id: id, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			kind := EmailFailureProvider
			if errors.Is(res.err, context.DeadlineExceeded) {
				kind = EmailFailureTimeout
			}
			slog.Error("Failed to send confirmation email", "purchaseId", purchase.ID, "to", to, "error", res.err)
			return &EmailDispatchError{Kind: kind, Err: res.err}
		}
		slog.Info("Confirmation email sent", "purchaseId", purchase.ID, "to", to, "messageId", res.id)
		return nil
	case <-cctx.Done():
		slog.Error("Confirmation email timed out", "purchaseId", purchase.ID, "to", to, "timeout", s.timeout)
		return &EmailDispatchError{Kind: EmailFailureTimeout, Err: cctx.Err()}
	}
}

// AlertPurchase tells the admins about a new purchase. Failures are logged only.
func (s *NotificationService) AlertPurchase(ctx context.Context, raffle *models.Raffle, purchase *models.Purchase) {
	text := fmt.Sprintf("Nueva compra (%s)\nSorteo: %s\nComprador: %s %s\nEmail: %s\nCelular: %s\nBoletos: %s\nTotal: %s\nMétodo: %s\nComprobante: %s",
		purchase.Status,
		raffle.Title,
		purchase.FirstName, purchase.LastName,
		purchase.Email,
		purchase.PhoneNumber,
		utils.FormatTicketNumbers(purchase.TicketNumbers, raffle.TotalTickets),
		utils.FormatPrice(raffle.PricePerTicket*int64(len(purchase.TicketNumbers))),
		purchase.PaymentMethod,
		purchase.PaymentProof,
	)
	if err := s.admin.Notify(ctx, text); err != nil {
		slog.Warn("Failed to alert admins", "purchaseId", purchase.ID, "error", err)
	}
}
