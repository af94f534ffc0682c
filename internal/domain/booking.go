package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted:
		return true
	}
	return false
}

// Active bookings hold their slot claims.
func (s BookingStatus) Active() bool {
	return s == BookingPending || s == BookingConfirmed
}

type Court struct {
	ID           uuid.UUID
	Name         string
	Description  string
	PricePerHour decimal.Decimal
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TimeSlot is a one hour block starting at Start ("06:00").
type TimeSlot struct {
	ID    int
	Start string
}

func (t TimeSlot) Label() string {
	h, _ := time.Parse("15:04", t.Start)
	return t.Start + " - " + h.Add(time.Hour).Format("15:04")
}

// DefaultTimeSlots are the hourly blocks from 06:00 to 21:00.
func DefaultTimeSlots() []TimeSlot {
	slots := make([]TimeSlot, 0, 16)
	for h := 6; h <= 21; h++ {
		slots = append(slots, TimeSlot{ID: h - 5, Start: time.Date(0, 1, 1, h, 0, 0, 0, time.UTC).Format("15:04")})
	}
	return slots
}

type Booking struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	CourtID    uuid.UUID
	CourtName  string
	Date       time.Time
	SlotIDs    []int
	TotalHours int
	TotalPrice decimal.Decimal
	Status     BookingStatus
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Recalculate derives hours and price from the claimed slots.
func (b *Booking) Recalculate(pricePerHour decimal.Decimal) {
	b.TotalHours = len(b.SlotIDs)
	b.TotalPrice = pricePerHour.Mul(decimal.NewFromInt(int64(b.TotalHours)))
}

// CanCustomerCancel: customers may only cancel bookings that are not settled.
func (b *Booking) CanCustomerCancel() bool {
	return b.Status.Active()
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleOwner    Role = "owner"
)

func (r Role) IsStaff() bool {
	return r == RoleStaff || r == RoleOwner
}

type User struct {
	ID        uuid.UUID
	Email     string
	FullName  string
	Phone     string
	Role      Role
	CreatedAt time.Time
}

// Actor is the authenticated caller of a use case.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

// Owns reports whether the actor may see a resource owned by ownerID.
func (a Actor) Owns(ownerID uuid.UUID) bool {
	return a.Role.IsStaff() || a.UserID == ownerID
}

// LocalZone is the venue's wall clock (UTC+7), used for booking dates.
var LocalZone = time.FixedZone("ICT", 7*60*60)
