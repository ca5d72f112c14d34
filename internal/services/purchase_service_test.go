package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ArowuTest/jraffle-backend/internal/models"
	"github.com/ArowuTest/jraffle-backend/internal/testhelpers"
	"github.com/ArowuTest/jraffle-backend/pkg/whatsapp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const proofURL = "https://i.ibb.co/abc/proof.png"

type purchaseFixture struct {
	raffles   *testhelpers.MemoryRaffleRepository
	purchases *testhelpers.MemoryPurchaseRepository
	store     *RaffleStore
	uploader  *testhelpers.MockImageUploader
	mailer    *testhelpers.MockMailer
	admin     *testhelpers.MockAdminNotifier
	events    *testhelpers.MockEventPublisher
	svc       *PurchaseService
}

type fixtureOptions struct {
	purchase  PurchaseOptions
	notify    NotificationOptions
	handoff   *whatsapp.Builder
	purchases []*models.Purchase
}

func newPurchaseFixture(t *testing.T, opts fixtureOptions, raffles ...*models.Raffle) *purchaseFixture {
	t.Helper()
	f := &purchaseFixture{
		raffles:   testhelpers.NewMemoryRaffleRepository(raffles...),
		purchases: testhelpers.NewMemoryPurchaseRepository(opts.purchases...),
		uploader:  &testhelpers.MockImageUploader{},
		mailer:    &testhelpers.MockMailer{},
		admin:     &testhelpers.MockAdminNotifier{},
		events:    &testhelpers.MockEventPublisher{},
	}
	f.admin.On("Notify", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.events.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	f.store = NewRaffleStore(f.raffles, f.purchases, RaffleStoreOptions{Timeout: time.Second})
	require.NoError(t, f.store.LoadAll(context.Background()))
	require.NoError(t, f.store.LoadPurchases(context.Background()))

	if opts.notify.EmailTimeout == 0 {
		opts.notify.EmailTimeout = time.Second
	}
	if opts.purchase.MaxTicketsPerPurchase == 0 {
		opts.purchase.MaxTicketsPerPurchase = 100
	}
	notifications := NewNotificationService(f.mailer, f.admin, opts.notify)
	f.svc = NewPurchaseService(f.store, f.purchases, NewTicketAllocator(nil), f.uploader, notifications, f.events, opts.handoff, opts.purchase)
	return f
}

func (f *purchaseFixture) uploadOK() {
	f.uploader.On("Upload", mock.Anything, mock.Anything, "proof.png").Return(proofURL, nil)
}

func (f *purchaseFixture) mailOK() {
	f.mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("msg-1", nil)
}

func checkoutRequest(raffleID string, count int) CheckoutRequest {
	return CheckoutRequest{
		RaffleID:      raffleID,
		TicketCount:   count,
		FirstName:     "Ana",
		LastName:      "Gómez",
		Email:         "buyer@example.com",
		PhoneNumber:   "+57 300 123 4567",
		PaymentMethod: "Nequi",
		Proof:         testhelpers.PNGProof,
		ProofFilename: "proof.png",
	}
}

func TestCheckout_ConfirmsImmediately(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	raffle := testhelpers.NewRaffle("r1", 10)
	raffle.PremiumNumbers = []models.PremiumNumber{{Number: 10, IsBlocked: true}}
	f := newPurchaseFixture(t, fixtureOptions{}, raffle)
	f.uploadOK()
	f.mailOK()

	res, err := f.svc.Checkout(ctx, checkoutRequest("r1", 3))
	require.NoError(t, err)

	p := res.Purchase
	assert.Equal(t, models.PurchaseStatusConfirmed, p.Status)
	assert.Equal(t, proofURL, p.PaymentProof)
	assert.Equal(t, models.TransactionIDPlaceholder, p.TransactionID)
	assert.NotEmpty(t, p.UserID)
	require.Len(t, p.TicketNumbers, 3)
	assert.NotContains(t, p.TicketNumbers, 10)
	assert.Len(t, res.TicketNumbers, 3)
	assert.Len(t, res.TicketNumbers[0], 2)
	assert.Empty(t, res.EmailWarning)
	assert.Nil(t, res.Handoff)

	stored := f.raffles.Stored("r1")
	require.Len(t, stored.Users, 1)
	assert.Equal(t, p.UserID, stored.Users[0].ID)
	assert.Equal(t, p.TicketNumbers, stored.Users[0].Tickets)
	assert.Equal(t, p.ID, stored.Users[0].PurchaseID)

	recorded, err := f.purchases.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusConfirmed, recorded.Status)

	mirrored, ok := f.store.Raffle("r1")
	require.True(t, ok)
	assert.Equal(t, 7, f.store.AvailableCount(mirrored))

	f.mailer.AssertCalled(t, "Send", mock.Anything, "buyer@example.com",
		mock.MatchedBy(func(s string) bool { return strings.HasPrefix(s, "🎉 ¡Compra Confirmada! Boletos: ") }), mock.Anything)
	f.events.AssertCalled(t, "Publish", mock.Anything, EventPurchaseCreated, mock.Anything)
	f.admin.AssertCalled(t, "Notify", mock.Anything, mock.MatchedBy(func(s string) bool { return strings.Contains(s, "Raffle r1") }))
}

func TestCheckout_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*CheckoutRequest)
		field  string
	}{
		{"missing first name", func(r *CheckoutRequest) { r.FirstName = "  " }, "firstName"},
		{"missing last name", func(r *CheckoutRequest) { r.LastName = "" }, "lastName"},
		{"bad email", func(r *CheckoutRequest) { r.Email = "ana@example" }, "email"},
		{"bad phone", func(r *CheckoutRequest) { r.PhoneNumber = "call me" }, "phoneNumber"},
		{"missing payment method", func(r *CheckoutRequest) { r.PaymentMethod = "" }, "paymentMethod"},
		{"zero tickets", func(r *CheckoutRequest) { r.TicketCount = 0 }, "ticketCount"},
		{"too many tickets", func(r *CheckoutRequest) { r.TicketCount = 101 }, "ticketCount"},
		{"missing proof", func(r *CheckoutRequest) { r.Proof = nil }, "paymentProof"},
		{"proof not an image", func(r *CheckoutRequest) { r.Proof = []byte("GIF89a......") }, "paymentProof"},
		{"proof too large", func(r *CheckoutRequest) { r.Proof = make([]byte, MaxProofSize+1) }, "paymentProof"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newPurchaseFixture(t, fixtureOptions{}, testhelpers.NewRaffle("r1", 200))
			req := checkoutRequest("r1", 1)
			tt.mutate(&req)

			_, err := f.svc.Checkout(context.Background(), req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
			f.uploader.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
			assert.Empty(t, f.raffles.Stored("r1").Users)
		})
	}
}

func TestCheckout_AcceptsJPEGAndBlankPhone(t *testing.T) {
	t.Parallel()
	f := newPurchaseFixture(t, fixtureOptions{}, testhelpers.NewRaffle("r1", 10))
	f.uploadOK()
	f.mailOK()

	req := checkoutRequest("r1", 1)
	req.Proof = []byte("\xFF\xD8\xFF\xE0\x00\x10JFIF")
	req.PhoneNumber = ""
	req.TransactionID = " TX-99 "
	res, err := f.svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "TX-99", res.Purchase.TransactionID)
}

func TestCheckout_RaffleState(t *testing.T) {
	t.Parallel()
	finished := testhelpers.NewRaffle("done", 10)
	finished.Status = models.RaffleStatusFinished
	f := newPurchaseFixture(t, fixtureOptions{}, finished)

	_, err := f.svc.Checkout(context.Background(), checkoutRequest("done", 1))
	assert.ErrorIs(t, err, ErrRaffleNotActive)

	_, err = f.svc.Checkout(context.Background(), checkoutRequest("missing", 1))
	assert.ErrorIs(t, err, ErrRaffleNotFound)
	f.uploader.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckout_UploadFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
		err  error
	}{
		{"host error", "", errors.New("503 from host")},
		{"empty url", "", nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newPurchaseFixture(t, fixtureOptions{}, testhelpers.NewRaffle("r1", 10))
			f.uploader.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return(tt.url, tt.err)

			_, err := f.svc.Checkout(context.Background(), checkoutRequest("r1", 2))
			var uerr *UploadError
			require.ErrorAs(t, err, &uerr)
			assert.Empty(t, f.raffles.Stored("r1").Users)

			all, err := f.purchases.FindAll(context.Background(), models.PurchaseFilter{})
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestCheckout_InsufficientTickets(t *testing.T) {
	t.Parallel()
	raffle := testhelpers.NewRaffle("r1", 5)
	raffle.Users = []models.User{testhelpers.NewUser("u1", 1, 2, 3)}
	f := newPurchaseFixture(t, fixtureOptions{}, raffle)
	f.uploadOK()

	_, err := f.svc.Checkout(context.Background(), checkoutRequest("r1", 3))
	var insufficient *InsufficientTicketsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 2, insufficient.Available)
	assert.Equal(t, 3, insufficient.Requested)
	assert.Len(t, f.raffles.Stored("r1").Users, 1)
}

func TestCheckout_UnrecordedPurchaseStaysOutOfMirror(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newPurchaseFixture(t, fixtureOptions{}, testhelpers.NewRaffle("r1", 10))
	f.uploadOK()
	f.mailOK()
	f.purchases.CreateErr = errors.New("write concern timeout")

	res, err := f.svc.Checkout(ctx, checkoutRequest("r1", 2))
	require.NoError(t, err)
	assert.Len(t, res.Purchase.TicketNumbers, 2)

	// the participant was written, the purchase record was not
	assert.Len(t, f.raffles.Stored("r1").Users, 1)
	_, err = f.purchases.FindByID(ctx, res.Purchase.ID)
	assert.Error(t, err)
	assert.Empty(t, f.store.Purchases())
}

func TestCheckout_EmailFailureKeepsPurchase(t *testing.T) {
	t.Parallel()
	f := newPurchaseFixture(t, fixtureOptions{}, testhelpers.NewRaffle("r1", 10))
	f.uploadOK()
	f.mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("domain not verified"))

	res, err := f.svc.Checkout(context.Background(), checkoutRequest("r1", 2))
	require.NoError(t, err)
	assert.Contains(t, res.EmailWarning, "provider")
	assert.Equal(t, models.PurchaseStatusConfirmed, res.Purchase.Status)
	assert.Len(t, f.raffles.Stored("r1").Users, 1)
}

func TestCheckout_TestRecipientOverride(t *testing.T) {
	t.Parallel()
	f := newPurchaseFixture(t, fixtureOptions{notify: NotificationOptions{TestRecipient: "qa@example.com"}}, testhelpers.NewRaffle("r1", 10))
	f.uploadOK()
	f.mailOK()

	_, err := f.svc.Checkout(context.Background(), checkoutRequest("r1", 1))
	require.NoError(t, err)
	f.mailer.AssertCalled(t, "Send", mock.Anything, "qa@example.com",
		mock.MatchedBy(func(s string) bool { return strings.HasPrefix(s, "[TEST → buyer@example.com] 🎉") }), mock.Anything)
}

func TestCheckout_ReallocatesAfterConcurrentWrite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newPurchaseFixture(t, fixtureOptions{}, testhelpers.NewRaffle("r1", 100))
	f.uploadOK()
	f.mailOK()

	fired := false
	f.raffles.BeforeSetUsers = func(id string, _ int64) {
		if fired {
			return
		}
		fired = true
		rival := NewRaffleStore(f.raffles, f.purchases, RaffleStoreOptions{})
		_, err := rival.AddUserToRaffle(ctx, id, testhelpers.NewUser("rival", 1))
		require.NoError(t, err)
	}

	res, err := f.svc.Checkout(ctx, checkoutRequest("r1", 5))
	require.NoError(t, err)
	assert.NotContains(t, res.Purchase.TicketNumbers, 1)

	stored := f.raffles.Stored("r1")
	require.Len(t, stored.Users, 2)
	assert.Equal(t, "rival", stored.Users[0].ID)
	assert.Equal(t, 6, OccupiedCount(stored))
}

func TestCheckout_WhatsAppHandoff(t *testing.T) {
	t.Parallel()
	builder := whatsapp.NewBuilder("+57 (300) 555-0101", 5*time.Second)
	f := newPurchaseFixture(t, fixtureOptions{handoff: builder}, testhelpers.NewRaffle("r1", 10))
	f.uploadOK()
	f.mailOK()

	res, err := f.svc.Checkout(context.Background(), checkoutRequest("r1", 1))
	require.NoError(t, err)
	require.NotNil(t, res.Handoff)
	assert.True(t, strings.HasPrefix(res.Handoff.URL, "https://wa.me/573005550101?text="))
	assert.Equal(t, 5, res.Handoff.DelaySeconds)
	assert.True(t, res.Handoff.FallbackSameTab)
}

func TestCheckout_ApprovalWorkflow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newPurchaseFixture(t, fixtureOptions{purchase: PurchaseOptions{RequireApproval: true}}, testhelpers.NewRaffle("r1", 4))
	f.uploadOK()
	f.mailOK()

	first, err := f.svc.Checkout(ctx, checkoutRequest("r1", 2))
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusPending, first.Purchase.Status)
	assert.Empty(t, first.Purchase.UserID)
	assert.Empty(t, f.raffles.Stored("r1").Users)
	f.mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	second, err := f.svc.Checkout(ctx, checkoutRequest("r1", 2))
	require.NoError(t, err)
	for _, n := range second.Purchase.TicketNumbers {
		assert.NotContains(t, first.Purchase.TicketNumbers, n)
	}

	_, err = f.svc.Checkout(ctx, checkoutRequest("r1", 1))
	var insufficient *InsufficientTicketsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 0, insufficient.Available)

	assert.Equal(t, 2, f.store.DashboardStats().PendingPurchases)

	confirmed, err := f.svc.ConfirmPurchase(ctx, first.Purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusConfirmed, confirmed.Purchase.Status)
	assert.Empty(t, confirmed.EmailWarning)

	stored := f.raffles.Stored("r1")
	require.Len(t, stored.Users, 1)
	assert.Equal(t, first.Purchase.TicketNumbers, stored.Users[0].Tickets)
	assert.Equal(t, confirmed.Purchase.UserID, stored.Users[0].ID)
	f.mailer.AssertNumberOfCalls(t, "Send", 1)
	f.events.AssertCalled(t, "Publish", mock.Anything, EventPurchaseConfirmed, mock.Anything)

	rejected, err := f.svc.RejectPurchase(ctx, second.Purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectedAt)
	assert.Nil(t, rejected.ConfirmedAt)
	assert.Len(t, f.raffles.Stored("r1").Users, 1)

	// rejected numbers return to the pool
	third, err := f.svc.Checkout(ctx, checkoutRequest("r1", 2))
	require.NoError(t, err)
	assert.ElementsMatch(t, second.Purchase.TicketNumbers, third.Purchase.TicketNumbers)
}

func TestPurchaseTimestampsAbsentUntilSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newPurchaseFixture(t, fixtureOptions{purchases: []*models.Purchase{testhelpers.NewPendingPurchase("p1", "r1", 4)}}, testhelpers.NewRaffle("r1", 10))
	f.mailOK()

	pending, err := f.purchases.FindByID(ctx, "p1")
	require.NoError(t, err)
	body, err := json.Marshal(pending)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "confirmedAt")
	assert.NotContains(t, string(body), "rejectedAt")
	assert.NotContains(t, string(body), "0001-01-01")

	confirmed, err := f.svc.ConfirmPurchase(ctx, "p1")
	require.NoError(t, err)
	body, err = json.Marshal(confirmed.Purchase)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"confirmedAt":"`)
	assert.NotContains(t, string(body), "rejectedAt")
}

func TestPurchaseTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status models.PurchaseStatus
		action func(*PurchaseService, context.Context, string) error
	}{
		{"confirm confirmed", models.PurchaseStatusConfirmed, func(s *PurchaseService, ctx context.Context, id string) error {
			_, err := s.ConfirmPurchase(ctx, id)
			return err
		}},
		{"confirm rejected", models.PurchaseStatusRejected, func(s *PurchaseService, ctx context.Context, id string) error {
			_, err := s.ConfirmPurchase(ctx, id)
			return err
		}},
		{"reject rejected", models.PurchaseStatusRejected, func(s *PurchaseService, ctx context.Context, id string) error {
			_, err := s.RejectPurchase(ctx, id)
			return err
		}},
		{"reject confirmed", models.PurchaseStatusConfirmed, func(s *PurchaseService, ctx context.Context, id string) error {
			_, err := s.RejectPurchase(ctx, id)
			return err
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := testhelpers.NewPendingPurchase("p1", "r1", 4)
			p.Status = tt.status
			f := newPurchaseFixture(t, fixtureOptions{purchases: []*models.Purchase{p}}, testhelpers.NewRaffle("r1", 10))

			err := tt.action(f.svc, context.Background(), "p1")
			assert.ErrorIs(t, err, ErrInvalidStatusTransition)
			assert.Empty(t, f.raffles.Stored("r1").Users)
		})
	}
}

func TestConfirmPurchase_RevertsWhenTicketsTaken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	raffle := testhelpers.NewRaffle("r1", 10)
	raffle.Users = []models.User{testhelpers.NewUser("u1", 3)}
	f := newPurchaseFixture(t, fixtureOptions{purchases: []*models.Purchase{testhelpers.NewPendingPurchase("p1", "r1", 3, 4)}}, raffle)

	_, err := f.svc.ConfirmPurchase(ctx, "p1")
	var unavailable *TicketsUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, []int{3}, unavailable.Numbers)

	p, err := f.purchases.FindByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusPending, p.Status)
	assert.Empty(t, p.UserID)
	assert.Nil(t, p.ConfirmedAt)
	assert.Len(t, f.raffles.Stored("r1").Users, 1)
	f.mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmPurchase_NotFound(t *testing.T) {
	t.Parallel()
	f := newPurchaseFixture(t, fixtureOptions{}, testhelpers.NewRaffle("r1", 10))
	_, err := f.svc.ConfirmPurchase(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrPurchaseNotFound)
}

func TestDeletePurchase(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	confirmed := testhelpers.NewPendingPurchase("p2", "r1", 5)
	confirmed.Status = models.PurchaseStatusConfirmed
	f := newPurchaseFixture(t, fixtureOptions{purchases: []*models.Purchase{
		testhelpers.NewPendingPurchase("p1", "r1", 4),
		confirmed,
	}}, testhelpers.NewRaffle("r1", 10))

	require.NoError(t, f.svc.DeletePurchase(ctx, "p1"))
	require.NoError(t, f.svc.DeletePurchase(ctx, "p2"))
	assert.ErrorIs(t, f.svc.DeletePurchase(ctx, "p1"), ErrPurchaseNotFound)
	assert.Empty(t, f.store.Purchases())
}

func TestListPurchases(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	older := testhelpers.NewPendingPurchase("p1", "r1", 1)
	newer := testhelpers.NewPendingPurchase("p2", "r1", 2)
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)
	other := testhelpers.NewPendingPurchase("p3", "r2", 3)
	f := newPurchaseFixture(t, fixtureOptions{purchases: []*models.Purchase{older, newer, other}}, testhelpers.NewRaffle("r1", 10))

	got, err := f.svc.ListPurchases(ctx, models.PurchaseFilter{RaffleID: "r1", Status: models.PurchaseStatusPending})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p2", got[0].ID)
	assert.Equal(t, "p1", got[1].ID)

	_, err = f.svc.ListPurchases(ctx, models.PurchaseFilter{Status: "shipped"})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestOverlapsEarlier(t *testing.T) {
	t.Parallel()
	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	mine := &models.Purchase{ID: "b", CreatedAt: base, TicketNumbers: []int{1, 2}}

	tests := []struct {
		name  string
		other *models.Purchase
		want  bool
	}{
		{"earlier and overlapping", &models.Purchase{ID: "z", CreatedAt: base.Add(-time.Second), TicketNumbers: []int{2}}, true},
		{"later and overlapping", &models.Purchase{ID: "a", CreatedAt: base.Add(time.Second), TicketNumbers: []int{2}}, false},
		{"same time lower id", &models.Purchase{ID: "a", CreatedAt: base, TicketNumbers: []int{1}}, true},
		{"same time higher id", &models.Purchase{ID: "c", CreatedAt: base, TicketNumbers: []int{1}}, false},
		{"earlier disjoint", &models.Purchase{ID: "a", CreatedAt: base.Add(-time.Second), TicketNumbers: []int{3}}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, overlapsEarlier(mine, []*models.Purchase{tt.other}))
		})
	}
}
