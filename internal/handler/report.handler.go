package handler

import (
	"net/http"
	"time"

	"courtmaster/internal/repo"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Dashboard(c *gin.Context) {
	d, err := h.reports.Dashboard(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	daily := make([]gin.H, 0, len(d.LastSevenDays))
	for _, r := range d.LastSevenDays {
		daily = append(daily, gin.H{"date": r.Date.Format(time.DateOnly), "revenue": r.Revenue})
	}
	c.JSON(http.StatusOK, gin.H{
		"booking_counts":  d.BookingCounts,
		"booking_revenue": d.BookingRevenue,
		"service_orders":  d.ServiceOrders,
		"service_revenue": d.ServiceRevenue,
		"daily_revenue":   daily,
	})
}

// RevenueReport accepts optional from/to dates (YYYY-MM-DD, inclusive).
func (h *Handler) RevenueReport(c *gin.Context) {
	var r repo.DateRange
	if s := c.Query("from"); s != "" {
		from, err := parseDate(s)
		if err != nil {
			badRequest(c, "from must be YYYY-MM-DD")
			return
		}
		r.From = &from
	}
	if s := c.Query("to"); s != "" {
		to, err := parseDate(s)
		if err != nil {
			badRequest(c, "to must be YYYY-MM-DD")
			return
		}
		r.To = &to
	}

	rep, err := h.reports.Revenue(c.Request.Context(), actorFrom(c), r)
	if err != nil {
		h.respondError(c, err)
		return
	}

	byCourt := make([]gin.H, 0, len(rep.ByCourt))
	for _, ct := range rep.ByCourt {
		byCourt = append(byCourt, gin.H{"court_id": ct.CourtID, "court_name": ct.CourtName, "bookings": ct.Bookings, "revenue": ct.Revenue})
	}
	byCategory := make([]gin.H, 0, len(rep.ByCategory))
	for _, cat := range rep.ByCategory {
		byCategory = append(byCategory, gin.H{"category": cat.Category, "revenue": cat.Revenue})
	}
	c.JSON(http.StatusOK, gin.H{
		"booking_revenue": rep.BookingRevenue,
		"service_revenue": rep.ServiceRevenue,
		"total":           rep.Total,
		"by_court":        byCourt,
		"by_category":     byCategory,
	})
}
