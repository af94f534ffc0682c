package service

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"courtmaster/internal/domain"
	"courtmaster/internal/infrastructure/vnpay"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type paymentFixture struct {
	payments *memPayments
	logs     *memLogs
	bookings *memBookings
	svc      PaymentService
	actor    domain.Actor
	booking  *domain.Booking
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	f := &paymentFixture{
		payments: newMemPayments(),
		logs:     &memLogs{},
		bookings: newMemBookings(),
		actor:    domain.Actor{UserID: uuid.New(), Role: domain.RoleCustomer},
	}
	f.booking = &domain.Booking{
		ID:         uuid.New(),
		UserID:     f.actor.UserID,
		CourtID:    uuid.New(),
		CourtName:  "Sân 1",
		Date:       time.Date(2024, 3, 10, 0, 0, 0, 0, domain.LocalZone),
		SlotIDs:    []int{5},
		TotalHours: 1,
		TotalPrice: decimal.NewFromInt(100000),
		Status:     domain.BookingPending,
	}
	require.NoError(t, f.bookings.Create(context.Background(), nil, f.booking))
	f.svc = NewPaymentService(fakeTx{}, f.payments, f.logs, f.bookings,
		vnpay.NewPaymentGateway(gatewayConfig(false)), zap.NewNop())
	return f
}

func TestCreateForBooking_PendingWithCreatedLog(t *testing.T) {
	f := newPaymentFixture(t)

	p, err := f.svc.CreateForBooking(context.Background(), f.actor, f.booking.ID, ClientInfo{IP: "1.2.3.4"})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, p.Status)
	assert.True(t, p.Amount.Equal(decimal.NewFromInt(100000)))
	assert.Equal(t, domain.MethodVNPay, p.Method)
	assert.Equal(t, []domain.LogAction{domain.LogCreated}, f.logs.actions(p.ID))
}

func TestCreateForBooking_RejectsPaidBookingAndStrangers(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	stranger := domain.Actor{UserID: uuid.New(), Role: domain.RoleCustomer}
	_, err := f.svc.CreateForBooking(ctx, stranger, f.booking.ID, ClientInfo{})
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)

	p, err := f.svc.CreateForBooking(ctx, f.actor, f.booking.ID, ClientInfo{})
	require.NoError(t, err)
	p.Status = domain.PaymentCompleted
	f.payments.put(p)

	_, err = f.svc.CreateForBooking(ctx, f.actor, f.booking.ID, ClientInfo{})
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)
}

func TestCreateRedirect_MovesToProcessing(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	p, err := f.svc.CreateForBooking(ctx, f.actor, f.booking.ID, ClientInfo{})
	require.NoError(t, err)

	u, err := f.svc.CreateRedirect(ctx, f.actor, p.ID, ClientInfo{IP: "10.1.1.1", UserAgent: "test"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "https://sandbox.vnpayment.vn/"))
	assert.Contains(t, u, "vnp_Amount=10000000")
	assert.Contains(t, u, "vnp_TxnRef="+domain.TxnRefFor(p.ID))

	stored := f.payments.get(p.ID)
	assert.Equal(t, domain.PaymentProcessing, stored.Status)
	assert.Equal(t, domain.TxnRefFor(p.ID), stored.TxnRef)
	assert.Equal(t, "Dat san Sân 1", stored.OrderInfo)
	require.NotNil(t, stored.ExpiredAt)

	_, err = f.svc.CreateRedirect(ctx, f.actor, p.ID, ClientInfo{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancel_OnlyFromPending(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	p, err := f.svc.CreateForBooking(ctx, f.actor, f.booking.ID, ClientInfo{})
	require.NoError(t, err)

	require.NoError(t, f.svc.Cancel(ctx, f.actor, p.ID))
	assert.Equal(t, domain.PaymentCancelled, f.payments.get(p.ID).Status)
	assert.Equal(t, domain.BookingCancelled, f.bookings.status(f.booking.ID))

	taken, err := f.bookings.TakenSlots(ctx, f.booking.CourtID, f.booking.Date)
	require.NoError(t, err)
	assert.Empty(t, taken)

	err = f.svc.Cancel(ctx, f.actor, p.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.KindBusinessRule, domain.KindOf(err))
	assert.Equal(t, []domain.LogAction{domain.LogCreated, domain.LogCancelled}, f.logs.actions(p.ID))
}

func TestRetry_ReturnsBookingForFailedPayment(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	p, err := f.svc.CreateForBooking(ctx, f.actor, f.booking.ID, ClientInfo{})
	require.NoError(t, err)

	_, err = f.svc.Retry(ctx, f.actor, p.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	p.Status = domain.PaymentFailed
	f.payments.put(p)
	bookingID, err := f.svc.Retry(ctx, f.actor, p.ID)
	require.NoError(t, err)
	assert.Equal(t, f.booking.ID, bookingID)
}

func TestGet_HidesOtherUsersPayments(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	p, err := f.svc.CreateForBooking(ctx, f.actor, f.booking.ID, ClientInfo{})
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, domain.Actor{UserID: uuid.New(), Role: domain.RoleCustomer}, p.ID)
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)

	detail, err := f.svc.Get(ctx, domain.Actor{UserID: uuid.New(), Role: domain.RoleStaff}, p.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Logs, 1)
}

func TestCreateForBooking_RefusedWhileAnotherPaymentIsAtGateway(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	first, err := f.svc.CreateForBooking(ctx, f.actor, f.booking.ID, ClientInfo{})
	require.NoError(t, err)
	_, err = f.svc.CreateRedirect(ctx, f.actor, first.ID, ClientInfo{})
	require.NoError(t, err)

	_, err = f.svc.CreateForBooking(ctx, f.actor, f.booking.ID, ClientInfo{})
	assert.ErrorIs(t, err, domain.ErrPaymentInProgress)
	assert.Equal(t, domain.KindBusinessRule, domain.KindOf(err))

	// once the gateway request has expired the booking can be paid again
	stale := f.payments.get(first.ID)
	past := time.Now().Add(-time.Minute)
	stale.ExpiredAt = &past
	f.payments.put(&stale)

	_, err = f.svc.CreateForBooking(ctx, f.actor, f.booking.ID, ClientInfo{})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentProcessing, f.payments.get(first.ID).Status)
}

func TestCreateForBooking_SupersedesPendingPayment(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	first, err := f.svc.CreateForBooking(ctx, f.actor, f.booking.ID, ClientInfo{})
	require.NoError(t, err)

	second, err := f.svc.CreateForBooking(ctx, f.actor, f.booking.ID, ClientInfo{})
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentCancelled, f.payments.get(first.ID).Status)
	assert.Equal(t, domain.PaymentPending, f.payments.get(second.ID).Status)
	assert.Equal(t, domain.BookingPending, f.bookings.status(f.booking.ID))
	assert.Equal(t, []domain.LogAction{domain.LogCreated, domain.LogCancelled}, f.logs.actions(first.ID))

	_, err = f.svc.CreateRedirect(ctx, f.actor, first.ID, ClientInfo{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// a superseded payment can still be retried: its booking is pending
	bookingID, err := f.svc.Retry(ctx, f.actor, first.ID)
	require.NoError(t, err)
	assert.Equal(t, f.booking.ID, bookingID)
}

func TestRetry_CancelledBookingMustBeRebooked(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	p, err := f.svc.CreateForBooking(ctx, f.actor, f.booking.ID, ClientInfo{})
	require.NoError(t, err)
	require.NoError(t, f.svc.Cancel(ctx, f.actor, p.ID))

	_, err = f.svc.Retry(ctx, f.actor, p.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.KindBusinessRule, domain.KindOf(err))
	assert.Contains(t, err.Error(), "booking is cancelled")
}

var lowerHex128 = regexp.MustCompile(`^[0-9a-f]{128}$`)

func TestPaymentFlow_RedirectThenSignedSuccess(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	rec := NewReconciler(fakeTx{}, f.payments, f.logs, f.bookings,
		vnpay.NewPaymentGateway(gatewayConfig(false)), nil, zap.NewNop())

	p, err := f.svc.CreateForBooking(ctx, f.actor, f.booking.ID, ClientInfo{IP: "10.1.1.1"})
	require.NoError(t, err)
	require.True(t, p.Amount.Equal(decimal.NewFromInt(100000)))

	raw, err := f.svc.CreateRedirect(ctx, f.actor, p.ID, ClientInfo{IP: "10.1.1.1"})
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "10000000", q.Get("vnp_Amount"))
	assert.Regexp(t, lowerHex128, q.Get(vnpay.ParamSecureHash))

	params := make(map[string]string, len(q))
	for k := range q {
		params[k] = q.Get(k)
	}
	ok, reason := vnpay.NewSigner(testSecret).Verify(params)
	assert.True(t, ok, reason)

	out, err := rec.HandleReturn(ctx, signedCallback(q.Get("vnp_TxnRef"), 10000000, "00"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSucceeded, out.Kind)

	assert.Equal(t, domain.PaymentCompleted, f.payments.get(p.ID).Status)
	assert.Equal(t, domain.BookingConfirmed, f.bookings.status(f.booking.ID))
	var successes int
	for _, a := range f.logs.actions(p.ID) {
		if a == domain.LogPaymentSuccess {
			successes++
		}
	}
	assert.Equal(t, 1, successes)
}
