package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"courtmaster/internal/domain"
	"courtmaster/internal/infrastructure/notify"
	"courtmaster/internal/repo"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// In-memory stand-ins for the postgres repos. Transactions are not rolled
// back; the integration test covers that against a real database.

type fakeTx struct{}

func (fakeTx) WithinTx(ctx context.Context, fn func(tx repo.DBTX) error) error {
	return fn(nil)
}

type memPayments struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*domain.Payment
}

func newMemPayments() *memPayments {
	return &memPayments{byID: map[uuid.UUID]*domain.Payment{}}
}

func (m *memPayments) get(id uuid.UUID) domain.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.byID[id]
}

func (m *memPayments) put(p *domain.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.byID[p.ID] = &cp
}

func (m *memPayments) Create(_ context.Context, _ repo.DBTX, p *domain.Payment) error {
	m.put(p)
	return nil
}

func (m *memPayments) FindByID(_ context.Context, _ repo.DBTX, id uuid.UUID) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPayments) FindByTxnRef(_ context.Context, txnRef string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if p.TxnRef == txnRef {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrPaymentNotFound
}

func (m *memPayments) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Payment
	for _, p := range m.byID {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memPayments) HasCompletedForBooking(_ context.Context, bookingID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if p.BookingID.Valid && p.BookingID.UUID == bookingID && p.Status == domain.PaymentCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (m *memPayments) HasInFlightForBooking(_ context.Context, bookingID uuid.UUID, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if p.BookingID.Valid && p.BookingID.UUID == bookingID && p.Status == domain.PaymentProcessing &&
			(p.ExpiredAt == nil || p.ExpiredAt.After(now)) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memPayments) MarkRedirected(_ context.Context, _ repo.DBTX, id uuid.UUID, info repo.RedirectInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.byID[id]
	if p == nil || p.Status != domain.PaymentPending {
		return domain.ErrInvalidTransition
	}
	p.Status = domain.PaymentProcessing
	p.TxnRef = info.TxnRef
	p.OrderInfo = info.OrderInfo
	p.IPAddress = info.IPAddress
	p.UserAgent = info.UserAgent
	exp := info.ExpiredAt
	p.ExpiredAt = &exp
	return nil
}

func isOpen(p *domain.Payment) bool {
	return p != nil && (p.Status == domain.PaymentPending || p.Status == domain.PaymentProcessing)
}

func (m *memPayments) CompleteIfOpen(_ context.Context, _ repo.DBTX, id uuid.UUID, res repo.GatewayResult, paidAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.byID[id]
	if !isOpen(p) {
		return false, nil
	}
	// ux_payments_completed_booking
	for _, other := range m.byID {
		if p.BookingID.Valid && other.BookingID == p.BookingID && other.Status == domain.PaymentCompleted {
			return false, fmt.Errorf("complete payment: %w", domain.ErrAlreadyPaid)
		}
	}
	p.Status = domain.PaymentCompleted
	p.ResponseCode = res.ResponseCode
	p.TransactionNo = res.TransactionNo
	p.BankCode = res.BankCode
	p.CardType = res.CardType
	p.PayDate = res.PayDate
	p.SecureHash = res.SecureHash
	p.PaidAt = &paidAt
	return true, nil
}

func (m *memPayments) FailIfOpen(_ context.Context, _ repo.DBTX, id uuid.UUID, res repo.GatewayResult, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.byID[id]
	if !isOpen(p) {
		return false, nil
	}
	p.Status = domain.PaymentFailed
	p.ResponseCode = res.ResponseCode
	p.TransactionNo = res.TransactionNo
	p.Description += " | Lỗi: " + reason
	return true, nil
}

func (m *memPayments) CancelIfPending(_ context.Context, _ repo.DBTX, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.byID[id]
	if p == nil || p.Status != domain.PaymentPending {
		return false, nil
	}
	p.Status = domain.PaymentCancelled
	return true, nil
}

func (m *memPayments) CancelPendingByBooking(_ context.Context, _ repo.DBTX, bookingID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for _, p := range m.byID {
		if p.BookingID.Valid && p.BookingID.UUID == bookingID && p.Status == domain.PaymentPending {
			p.Status = domain.PaymentCancelled
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

type memLogs struct {
	mu      sync.Mutex
	entries []domain.PaymentLog
}

func (m *memLogs) Append(_ context.Context, _ repo.DBTX, e *domain.PaymentLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memLogs) ListByPayment(_ context.Context, paymentID uuid.UUID, limit int) ([]domain.PaymentLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PaymentLog
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].PaymentID == paymentID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *memLogs) actions(paymentID uuid.UUID) []domain.LogAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LogAction
	for _, e := range m.entries {
		if e.PaymentID == paymentID {
			out = append(out, e.Action)
		}
	}
	return out
}

type slotKey struct {
	court uuid.UUID
	date  string
	slot  int
}

type memBookings struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*domain.Booking
	claims map[slotKey]uuid.UUID
}

func newMemBookings() *memBookings {
	return &memBookings{byID: map[uuid.UUID]*domain.Booking{}, claims: map[slotKey]uuid.UUID{}}
}

func (m *memBookings) Create(_ context.Context, _ repo.DBTX, b *domain.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range b.SlotIDs {
		if _, taken := m.claims[slotKey{b.CourtID, b.Date.Format(time.DateOnly), s}]; taken {
			return domain.ErrSlotTaken
		}
	}
	for _, s := range b.SlotIDs {
		m.claims[slotKey{b.CourtID, b.Date.Format(time.DateOnly), s}] = b.ID
	}
	cp := *b
	m.byID[b.ID] = &cp
	return nil
}

func (m *memBookings) FindByID(_ context.Context, _ repo.DBTX, id uuid.UUID) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memBookings) List(_ context.Context, f repo.BookingFilter) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Booking
	for _, b := range m.byID {
		if f.UserID != nil && b.UserID != *f.UserID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (m *memBookings) UpdateStatus(_ context.Context, _ repo.DBTX, id uuid.UUID, status domain.BookingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.byID[id]
	if !ok {
		return domain.ErrBookingNotFound
	}
	b.Status = status
	return nil
}

func (m *memBookings) ConfirmIfActive(_ context.Context, _ repo.DBTX, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.byID[id]
	if !ok || !b.Status.Active() {
		return false, nil
	}
	b.Status = domain.BookingConfirmed
	return true, nil
}

func (m *memBookings) ReleaseSlots(_ context.Context, _ repo.DBTX, bookingID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, owner := range m.claims {
		if owner == bookingID {
			delete(m.claims, k)
		}
	}
	return nil
}

func (m *memBookings) TakenSlots(_ context.Context, courtID uuid.UUID, date time.Time) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int
	for k := range m.claims {
		if k.court == courtID && k.date == date.Format(time.DateOnly) {
			out = append(out, k.slot)
		}
	}
	sort.Ints(out)
	return out, nil
}

func (m *memBookings) status(id uuid.UUID) domain.BookingStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id].Status
}

type memCourts struct {
	courts map[uuid.UUID]domain.Court
}

func (m *memCourts) List(_ context.Context, activeOnly bool) ([]domain.Court, error) {
	var out []domain.Court
	for _, c := range m.courts {
		if !activeOnly || c.Active {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCourts) FindByID(_ context.Context, id uuid.UUID) (*domain.Court, error) {
	c, ok := m.courts[id]
	if !ok {
		return nil, domain.ErrCourtNotFound
	}
	return &c, nil
}

func (m *memCourts) Create(_ context.Context, c *domain.Court) error {
	m.courts[c.ID] = *c
	return nil
}

func (m *memCourts) TimeSlots(context.Context) ([]domain.TimeSlot, error) {
	return domain.DefaultTimeSlots(), nil
}

type memCatalog struct {
	mu       sync.Mutex
	services map[uuid.UUID]*domain.Service
	orders   map[uuid.UUID]*domain.ServiceOrder
}

func newMemCatalog() *memCatalog {
	return &memCatalog{services: map[uuid.UUID]*domain.Service{}, orders: map[uuid.UUID]*domain.ServiceOrder{}}
}

func (m *memCatalog) ListServices(_ context.Context, category domain.ServiceCategory, availableOnly bool) ([]domain.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Service
	for _, s := range m.services {
		if (category == "" || s.Category == category) && (!availableOnly || s.Available) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memCatalog) FindService(_ context.Context, _ repo.DBTX, id uuid.UUID) (*domain.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[id]
	if !ok {
		return nil, domain.ErrServiceNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memCatalog) CreateService(_ context.Context, s *domain.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.services[s.ID] = &cp
	return nil
}

func (m *memCatalog) DecrementStock(_ context.Context, _ repo.DBTX, id uuid.UUID, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.services[id]
	if s.Stock < qty {
		return domain.ErrInsufficientStock
	}
	s.Stock -= qty
	return nil
}

func (m *memCatalog) IncrementStock(_ context.Context, _ repo.DBTX, id uuid.UUID, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[id].Stock += qty
	return nil
}

func (m *memCatalog) CreateOrder(_ context.Context, _ repo.DBTX, o *domain.ServiceOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *memCatalog) FindOrder(_ context.Context, _ repo.DBTX, id uuid.UUID, _ bool) (*domain.ServiceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	cp.Items = append([]domain.ServiceOrderItem(nil), o.Items...)
	return &cp, nil
}

func (m *memCatalog) ListOrders(_ context.Context, userID *uuid.UUID, limit int) ([]domain.ServiceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ServiceOrder
	for _, o := range m.orders {
		if userID == nil || o.UserID == *userID {
			out = append(out, *o)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memCatalog) SaveItem(_ context.Context, _ repo.DBTX, it domain.ServiceOrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[it.OrderID]
	for i := range o.Items {
		if o.Items[i].ServiceID == it.ServiceID {
			o.Items[i] = it
			return nil
		}
	}
	o.Items = append(o.Items, it)
	return nil
}

func (m *memCatalog) DeleteItem(_ context.Context, _ repo.DBTX, itemID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		for i, it := range o.Items {
			if it.ID == itemID {
				o.Items = append(o.Items[:i], o.Items[i+1:]...)
				return nil
			}
		}
	}
	return domain.ErrOrderItemNotFound
}

func (m *memCatalog) UpdateOrderTotal(_ context.Context, _ repo.DBTX, orderID uuid.UUID, total decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[orderID].TotalPrice = total
	return nil
}

type memQueue struct {
	mu     sync.Mutex
	events []notify.Event
}

func (q *memQueue) Enqueue(ev notify.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, ev)
	return true
}

func (q *memQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (s *memStore) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[key] = data
	return "mem://" + key, nil
}
