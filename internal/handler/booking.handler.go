package handler

import (
	"net/http"
	"time"

	"courtmaster/internal/domain"
	"courtmaster/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type courtView struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	PricePerHour decimal.Decimal `json:"price_per_hour"`
}

type bookingView struct {
	ID         string          `json:"id"`
	CourtID    string          `json:"court_id"`
	CourtName  string          `json:"court_name"`
	Date       string          `json:"date"`
	Slots      []string        `json:"slots"`
	TotalHours int             `json:"total_hours"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Status     string          `json:"status"`
	Notes      string          `json:"notes,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

var slotLabels = func() map[int]string {
	m := map[int]string{}
	for _, s := range domain.DefaultTimeSlots() {
		m[s.ID] = s.Label()
	}
	return m
}()

func toBookingView(b *domain.Booking) bookingView {
	slots := make([]string, 0, len(b.SlotIDs))
	for _, id := range b.SlotIDs {
		slots = append(slots, slotLabels[id])
	}
	return bookingView{
		ID:         b.ID.String(),
		CourtID:    b.CourtID.String(),
		CourtName:  b.CourtName,
		Date:       b.Date.Format(time.DateOnly),
		Slots:      slots,
		TotalHours: b.TotalHours,
		TotalPrice: b.TotalPrice,
		Status:     string(b.Status),
		Notes:      b.Notes,
		CreatedAt:  b.CreatedAt,
	}
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, s, domain.LocalZone)
}

func (h *Handler) ListCourts(c *gin.Context) {
	courts, err := h.bookings.ListCourts(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := make([]courtView, 0, len(courts))
	for _, ct := range courts {
		out = append(out, courtView{ID: ct.ID.String(), Name: ct.Name, Description: ct.Description, PricePerHour: ct.PricePerHour})
	}
	c.JSON(http.StatusOK, gin.H{"courts": out})
}

func (h *Handler) Availability(c *gin.Context) {
	courtID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	date, err := parseDate(c.Query("date"))
	if err != nil {
		badRequest(c, "date must be YYYY-MM-DD")
		return
	}
	slots, err := h.bookings.Availability(c.Request.Context(), courtID, date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := make([]gin.H, 0, len(slots))
	for _, s := range slots {
		out = append(out, gin.H{"id": s.Slot.ID, "label": s.Slot.Label(), "available": s.Available})
	}
	c.JSON(http.StatusOK, gin.H{"date": date.Format(time.DateOnly), "slots": out})
}

func (h *Handler) CreateBooking(c *gin.Context) {
	var req struct {
		CourtID string `json:"court_id" binding:"required"`
		Date    string `json:"date" binding:"required"`
		SlotIDs []int  `json:"slot_ids" binding:"required"`
		Notes   string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	courtID, err := uuid.Parse(req.CourtID)
	if err != nil {
		badRequest(c, "invalid court_id")
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		badRequest(c, "date must be YYYY-MM-DD")
		return
	}

	b, err := h.bookings.Create(c.Request.Context(), actorFrom(c), service.CreateBookingInput{
		CourtID: courtID,
		Date:    date,
		SlotIDs: req.SlotIDs,
		Notes:   req.Notes,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBookingView(b))
}

func (h *Handler) ListBookings(c *gin.Context) {
	list, err := h.bookings.List(c.Request.Context(), actorFrom(c),
		domain.BookingStatus(c.Query("status")), intQuery(c, "limit", 20), intQuery(c, "offset", 0))
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := make([]bookingView, 0, len(list))
	for i := range list {
		out = append(out, toBookingView(&list[i]))
	}
	c.JSON(http.StatusOK, gin.H{"bookings": out})
}

func (h *Handler) GetBooking(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	b, err := h.bookings.Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingView(b))
}

func (h *Handler) CancelBooking(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.bookings.Cancel(c.Request.Context(), actorFrom(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": domain.BookingCancelled})
}

func (h *Handler) SetBookingStatus(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	status := domain.BookingStatus(req.Status)
	if err := h.bookings.SetStatus(c.Request.Context(), actorFrom(c), id, status); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}
