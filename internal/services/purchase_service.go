package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ArowuTest/jraffle-backend/internal/models"
	"github.com/ArowuTest/jraffle-backend/internal/repositories"
	"github.com/ArowuTest/jraffle-backend/internal/utils"
	"github.com/ArowuTest/jraffle-backend/pkg/whatsapp"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9 ()\-]{7,20}$`)
)

// MaxProofSize bounds payment proof uploads
const MaxProofSize = 10 << 20

// CheckoutRequest is a buyer's purchase submission
type CheckoutRequest struct {
	RaffleID      string
	TicketCount   int
	FirstName     string
	LastName      string
	Email         string
	PhoneNumber   string
	PaymentMethod string
	TransactionID string
	Proof         []byte
	ProofFilename string
}

// CheckoutResult is returned once a purchase has been recorded
type CheckoutResult struct {
	Purchase      *models.Purchase  `json:"purchase"`
	TicketNumbers []string          `json:"ticketNumbers"`
	PremiumHits   []int             `json:"premiumHits"`
	Handoff       *whatsapp.Handoff `json:"handoff,omitempty"`
	// EmailWarning is set when the purchase stands but the email failed
	EmailWarning string `json:"emailWarning,omitempty"`
}

// ConfirmResult is returned when an admin confirms a pending purchase
type ConfirmResult struct {
	Purchase     *models.Purchase `json:"purchase"`
	EmailWarning string           `json:"emailWarning,omitempty"`
}

// PurchaseOptions configures the checkout workflow
type PurchaseOptions struct {
	// RequireApproval records purchases as pending until an admin confirms them
	RequireApproval       bool
	MaxTicketsPerPurchase int
	WriteRetries          int
}

// PurchaseService runs checkout and the admin purchase lifecycle
type PurchaseService struct {
	store         *RaffleStore
	purchaseRepo  repositories.PurchaseRepository
	allocator     *TicketAllocator
	uploader      ImageUploader
	notifications *NotificationService
	events        EventPublisher
	handoff       *whatsapp.Builder
	opts          PurchaseOptions
	now           func() time.Time
}

// NewPurchaseService creates a PurchaseService. A nil events publisher disables events.
func NewPurchaseService(
	store *RaffleStore,
	purchaseRepo repositories.PurchaseRepository,
	allocator *TicketAllocator,
	uploader ImageUploader,
	notifications *NotificationService,
	events EventPublisher,
	handoff *whatsapp.Builder,
	opts PurchaseOptions,
) *PurchaseService {
	if events == nil {
		events = noopPublisher{}
	}
	if opts.WriteRetries < 1 {
		opts.WriteRetries = 5
	}
	return &PurchaseService{
		store:         store,
		purchaseRepo:  purchaseRepo,
		allocator:     allocator,
		uploader:      uploader,
		notifications: notifications,
		events:        events,
		handoff:       handoff,
		opts:          opts,
		now:           time.Now,
	}
}

// Checkout uploads the payment proof, allocates tickets and records the purchase
func (s *PurchaseService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if err := s.validateCheckout(&req); err != nil {
		return nil, err
	}

	raffle, err := s.store.FetchRaffle(ctx, req.RaffleID)
	if err != nil {
		return nil, err
	}
	if raffle.Status != models.RaffleStatusActive {
		return nil, ErrRaffleNotActive
	}

	proofURL, err := s.uploader.Upload(ctx, req.Proof, req.ProofFilename)
	if err != nil || proofURL == "" {
		slog.Error("Payment proof upload failed", "raffleId", req.RaffleID, "email", req.Email, "error", err)
		return nil, &UploadError{Err: err}
	}

	purchase := &models.Purchase{
		ID:            uuid.NewString(),
		RaffleID:      req.RaffleID,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		PhoneNumber:   req.PhoneNumber,
		TicketCount:   req.TicketCount,
		PaymentMethod: req.PaymentMethod,
		TransactionID: req.TransactionID,
		PaymentProof:  proofURL,
		CreatedAt:     s.now(),
	}
	if purchase.TransactionID == "" {
		purchase.TransactionID = models.TransactionIDPlaceholder
	}

	recorded := true
	if s.opts.RequireApproval {
		raffle, err = s.reservePending(ctx, purchase)
	} else {
		raffle, recorded, err = s.appendConfirmed(ctx, purchase)
	}
	if err != nil {
		return nil, err
	}

	if recorded {
		s.store.upsertPurchase(purchase)
	}
	if err := s.store.LoadAll(ctx); err != nil {
		slog.Warn("Reload after checkout failed", "raffleId", raffle.ID, "error", err)
	}

	result := &CheckoutResult{
		Purchase:      purchase,
		TicketNumbers: formatTickets(purchase.TicketNumbers, raffle.TotalTickets),
		PremiumHits:   premiumHits(raffle, purchase.TicketNumbers),
	}
	if purchase.Status == models.PurchaseStatusConfirmed {
		if err := s.notifications.SendPurchaseConfirmation(ctx, raffle, purchase); err != nil {
			result.EmailWarning = err.Error()
		}
	}
	s.notifications.AlertPurchase(ctx, raffle, purchase)
	s.publish(ctx, EventPurchaseCreated, purchase)

	if s.handoff.Enabled() {
		h := s.handoff.Build(whatsapp.Details{
			RaffleTitle: raffle.Title,
			FirstName:   purchase.FirstName,
			LastName:    purchase.LastName,
			Phone:       purchase.PhoneNumber,
			Email:       purchase.Email,
			Tickets:     result.TicketNumbers,
			DrawDate:    raffle.DrawDate,
		})
		result.Handoff = &h
	}

	slog.Info("Checkout completed", "purchaseId", purchase.ID, "raffleId", raffle.ID, "status", purchase.Status, "tickets", len(purchase.TicketNumbers))
	return result, nil
}

// appendConfirmed allocates against a fresh read and appends the buyer as a
// participant at that version, starting over when another writer interleaves.
// The returned flag reports whether the purchase record was persisted.
func (s *PurchaseService) appendConfirmed(ctx context.Context, purchase *models.Purchase) (*models.Raffle, bool, error) {
	for attempt := 0; attempt < s.opts.WriteRetries; attempt++ {
		raffle, err := s.store.FetchRaffle(ctx, purchase.RaffleID)
		if err != nil {
			return nil, false, err
		}
		if raffle.Status != models.RaffleStatusActive {
			return nil, false, ErrRaffleNotActive
		}
		numbers, err := s.allocate(raffle, OccupiedTickets(raffle), purchase.TicketCount)
		if err != nil {
			return nil, false, err
		}

		purchase.TicketNumbers = numbers
		userID := uuid.NewString()
		updated, err := s.store.AppendUser(ctx, raffle, purchase.ToUser(userID, s.now()))
		if errors.Is(err, repositories.ErrVersionConflict) {
			slog.Warn("Checkout raced another writer, reallocating", "raffleId", raffle.ID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, false, err
		}

		purchase.Status = models.PurchaseStatusConfirmed
		purchase.UserID = userID
		purchase.ConfirmedAt = timePtr(s.now())
		if err := s.purchaseRepo.Create(ctx, purchase); err != nil {
			// the participant is already recorded on the raffle
			slog.Error("Failed to record confirmed purchase", "purchaseId", purchase.ID, "raffleId", raffle.ID, "error", err)
			return updated, false, nil
		}
		return updated, true, nil
	}
	return nil, false, ErrConcurrentUpdate
}

// reservePending records a pending purchase holding provisional numbers
func (s *PurchaseService) reservePending(ctx context.Context, purchase *models.Purchase) (*models.Raffle, error) {
	for attempt := 0; attempt < s.opts.WriteRetries; attempt++ {
		raffle, err := s.store.FetchRaffle(ctx, purchase.RaffleID)
		if err != nil {
			return nil, err
		}
		if raffle.Status != models.RaffleStatusActive {
			return nil, ErrRaffleNotActive
		}
		pending, err := s.pendingFor(ctx, raffle.ID, "")
		if err != nil {
			return nil, err
		}
		occupied := OccupiedTickets(raffle)
		for _, p := range pending {
			occupied = append(occupied, p.TicketNumbers...)
		}
		numbers, err := s.allocate(raffle, occupied, purchase.TicketCount)
		if err != nil {
			return nil, err
		}

		purchase.TicketNumbers = numbers
		purchase.Status = models.PurchaseStatusPending
		if err := s.purchaseRepo.Create(ctx, purchase); err != nil {
			return nil, &RemoteStoreError{Op: "create purchase", Err: err}
		}

		// another pending purchase may have reserved the same numbers meanwhile;
		// the earlier one keeps them
		others, err := s.pendingFor(ctx, raffle.ID, purchase.ID)
		if err != nil {
			return nil, err
		}
		if !overlapsEarlier(purchase, others) {
			return raffle, nil
		}
		slog.Warn("Pending reservation overlapped, reallocating", "raffleId", raffle.ID, "attempt", attempt+1)
		if err := s.purchaseRepo.Delete(ctx, purchase.ID); err != nil {
			return nil, &RemoteStoreError{Op: "delete purchase", Err: err}
		}
	}
	return nil, ErrConcurrentUpdate
}

func (s *PurchaseService) pendingFor(ctx context.Context, raffleID, excludeID string) ([]*models.Purchase, error) {
	pending, err := s.purchaseRepo.FindAll(ctx, models.PurchaseFilter{RaffleID: raffleID, Status: models.PurchaseStatusPending})
	if err != nil {
		return nil, &RemoteStoreError{Op: "list pending purchases", Err: err}
	}
	out := pending[:0]
	for _, p := range pending {
		if p.ID != excludeID {
			out = append(out, p)
		}
	}
	return out, nil
}

func overlapsEarlier(p *models.Purchase, others []*models.Purchase) bool {
	mine := make(map[int]struct{}, len(p.TicketNumbers))
	for _, n := range p.TicketNumbers {
		mine[n] = struct{}{}
	}
	for _, o := range others {
		earlier := o.CreatedAt.Before(p.CreatedAt) || (o.CreatedAt.Equal(p.CreatedAt) && o.ID < p.ID)
		if !earlier {
			continue
		}
		for _, n := range o.TicketNumbers {
			if _, ok := mine[n]; ok {
				return true
			}
		}
	}
	return false
}

func (s *PurchaseService) allocate(raffle *models.Raffle, occupied []int, count int) ([]int, error) {
	numbers, err := s.allocator.Allocate(occupied, BlockedPremiumNumbers(raffle), raffle.TotalTickets, count)
	if err != nil {
		return nil, err
	}
	if err := verifyAllocation(numbers, raffle.TotalTickets, count); err != nil {
		slog.Error("Allocator produced invalid numbers", "raffleId", raffle.ID, "numbers", numbers, "error", err)
		return nil, err
	}
	return numbers, nil
}

// ConfirmPurchase turns a pending purchase into a raffle participant
func (s *PurchaseService) ConfirmPurchase(ctx context.Context, id string) (*ConfirmResult, error) {
	purchase, err := s.getPurchase(ctx, id)
	if err != nil {
		return nil, err
	}
	if purchase.Status != models.PurchaseStatusPending {
		return nil, fmt.Errorf("%w: purchase is %s", ErrInvalidStatusTransition, purchase.Status)
	}

	userID := uuid.NewString()
	if err := s.transition(ctx, id, models.PurchaseStatusPending, models.PurchaseStatusConfirmed, userID); err != nil {
		return nil, err
	}

	raffle, err := s.store.AddUserToRaffle(ctx, purchase.RaffleID, purchase.ToUser(userID, s.now()))
	if err != nil {
		slog.Error("Failed to add participant, reverting confirmation", "purchaseId", id, "error", err)
		if rerr := s.purchaseRepo.Transition(ctx, id, models.PurchaseStatusConfirmed, models.PurchaseStatusPending, ""); rerr != nil {
			slog.Error("Failed to revert purchase to pending", "purchaseId", id, "error", rerr)
		}
		return nil, err
	}

	purchase.Status = models.PurchaseStatusConfirmed
	purchase.UserID = userID
	purchase.ConfirmedAt = timePtr(s.now())
	s.store.upsertPurchase(purchase)
	if err := s.store.LoadAll(ctx); err != nil {
		slog.Warn("Reload after confirmation failed", "purchaseId", id, "error", err)
	}

	result := &ConfirmResult{Purchase: purchase}
	if err := s.notifications.SendPurchaseConfirmation(ctx, raffle, purchase); err != nil {
		result.EmailWarning = err.Error()
	}
	s.publish(ctx, EventPurchaseConfirmed, purchase)
	slog.Info("Purchase confirmed", "purchaseId", id, "raffleId", purchase.RaffleID, "userId", userID)
	return result, nil
}

// RejectPurchase marks a pending purchase rejected. The raffle is untouched.
func (s *PurchaseService) RejectPurchase(ctx context.Context, id string) (*models.Purchase, error) {
	purchase, err := s.getPurchase(ctx, id)
	if err != nil {
		return nil, err
	}
	if purchase.Status != models.PurchaseStatusPending {
		return nil, fmt.Errorf("%w: purchase is %s", ErrInvalidStatusTransition, purchase.Status)
	}
	if err := s.transition(ctx, id, models.PurchaseStatusPending, models.PurchaseStatusRejected, ""); err != nil {
		return nil, err
	}

	purchase.Status = models.PurchaseStatusRejected
	purchase.RejectedAt = timePtr(s.now())
	s.store.upsertPurchase(purchase)
	s.publish(ctx, EventPurchaseRejected, purchase)
	slog.Info("Purchase rejected", "purchaseId", id, "raffleId", purchase.RaffleID)
	return purchase, nil
}

// DeletePurchase removes a purchase record in any status
func (s *PurchaseService) DeletePurchase(ctx context.Context, id string) error {
	if err := s.purchaseRepo.Delete(ctx, id); err != nil {
		return storeError("delete purchase", err, ErrPurchaseNotFound)
	}
	s.store.removePurchase(id)
	return nil
}

// ListPurchases returns purchases matching the filter, newest first
func (s *PurchaseService) ListPurchases(ctx context.Context, filter models.PurchaseFilter) ([]*models.Purchase, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, NewValidationError("status", "must be pending, confirmed or rejected")
	}
	purchases, err := s.purchaseRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, &RemoteStoreError{Op: "list purchases", Err: err}
	}
	return purchases, nil
}

func (s *PurchaseService) getPurchase(ctx context.Context, id string) (*models.Purchase, error) {
	purchase, err := s.purchaseRepo.FindByID(ctx, id)
	if err != nil {
		return nil, storeError("fetch purchase", err, ErrPurchaseNotFound)
	}
	return purchase, nil
}

func (s *PurchaseService) transition(ctx context.Context, id string, from, to models.PurchaseStatus, userID string) error {
	err := s.purchaseRepo.Transition(ctx, id, from, to, userID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrStatusConflict):
		return fmt.Errorf("%w: purchase is no longer %s", ErrInvalidStatusTransition, from)
	default:
		return storeError("update purchase status", err, ErrPurchaseNotFound)
	}
}

func (s *PurchaseService) publish(ctx context.Context, subject string, payload any) {
	if err := s.events.Publish(ctx, subject, payload); err != nil {
		slog.Warn("Failed to publish event", "subject", subject, "error", err)
	}
}

func (s *PurchaseService) validateCheckout(req *CheckoutRequest) error {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.PaymentMethod = strings.TrimSpace(req.PaymentMethod)
	req.TransactionID = strings.TrimSpace(req.TransactionID)

	verr := &ValidationError{}
	if req.RaffleID == "" {
		verr.Add("raffleId", "is required")
	}
	if req.FirstName == "" {
		verr.Add("firstName", "is required")
	}
	if req.LastName == "" {
		verr.Add("lastName", "is required")
	}
	if !emailPattern.MatchString(req.Email) {
		verr.Add("email", "must be a valid email address")
	}
	if req.PhoneNumber != "" && !phonePattern.MatchString(req.PhoneNumber) {
		verr.Add("phoneNumber", "must be a valid phone number")
	}
	if req.PaymentMethod == "" {
		verr.Add("paymentMethod", "is required")
	}
	if req.TicketCount < 1 {
		verr.Add("ticketCount", "must be at least 1")
	} else if s.opts.MaxTicketsPerPurchase > 0 && req.TicketCount > s.opts.MaxTicketsPerPurchase {
		verr.Add("ticketCount", fmt.Sprintf("must be at most %d", s.opts.MaxTicketsPerPurchase))
	}
	switch {
	case len(req.Proof) == 0:
		verr.Add("paymentProof", "is required")
	case len(req.Proof) > MaxProofSize:
		verr.Add("paymentProof", "must be at most 10MB")
	default:
		ct := http.DetectContentType(req.Proof)
		if ct != "image/jpeg" && ct != "image/png" {
			verr.Add("paymentProof", "must be a JPEG or PNG image")
		}
	}
	return verr.OrNil()
}

func formatTickets(numbers []int, total int) []string {
	out := make([]string, len(numbers))
	for i, n := range numbers {
		out[i] = utils.FormatTicketNumber(n, total)
	}
	return out
}

func premiumHits(raffle *models.Raffle, numbers []int) []int {
	hits := []int{}
	for _, n := range numbers {
		if raffle.IsPremiumWin(n) {
			hits = append(hits, n)
		}
	}
	return hits
}

func timePtr(t time.Time) *time.Time {
	return &t
}
