package handler

import (
	"net/http"
	"time"

	"courtmaster/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type serviceView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

type orderItemView struct {
	ID          string          `json:"id"`
	ServiceID   string          `json:"service_id"`
	ServiceName string          `json:"service_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type orderView struct {
	ID         string          `json:"id"`
	BookingID  *string         `json:"booking_id,omitempty"`
	Status     string          `json:"status"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Notes      string          `json:"notes,omitempty"`
	Items      []orderItemView `json:"items"`
	CreatedAt  time.Time       `json:"created_at"`
}

func toOrderView(o *domain.ServiceOrder) orderView {
	v := orderView{
		ID:         o.ID.String(),
		Status:     string(o.Status),
		TotalPrice: o.TotalPrice,
		Notes:      o.Notes,
		Items:      make([]orderItemView, 0, len(o.Items)),
		CreatedAt:  o.CreatedAt,
	}
	if o.BookingID.Valid {
		id := o.BookingID.UUID.String()
		v.BookingID = &id
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, orderItemView{
			ID:          it.ID.String(),
			ServiceID:   it.ServiceID.String(),
			ServiceName: it.ServiceName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Subtotal:    it.Subtotal,
		})
	}
	return v
}

func (h *Handler) ListServices(c *gin.Context) {
	list, err := h.catalog.ListServices(c.Request.Context(), domain.ServiceCategory(c.Query("category")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := make([]serviceView, 0, len(list))
	for _, s := range list {
		out = append(out, serviceView{
			ID: s.ID.String(), Name: s.Name, Category: string(s.Category),
			Description: s.Description, Price: s.Price, Stock: s.Stock,
		})
	}
	c.JSON(http.StatusOK, gin.H{"services": out})
}

func (h *Handler) CreateServiceOrder(c *gin.Context) {
	var req struct {
		BookingID string `json:"booking_id"`
		Notes     string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	var bookingID *uuid.UUID
	if req.BookingID != "" {
		id, err := uuid.Parse(req.BookingID)
		if err != nil {
			badRequest(c, "invalid booking_id")
			return
		}
		bookingID = &id
	}

	o, err := h.catalog.CreateOrder(c.Request.Context(), actorFrom(c), bookingID, req.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toOrderView(o))
}

func (h *Handler) ListServiceOrders(c *gin.Context) {
	list, err := h.catalog.ListOrders(c.Request.Context(), actorFrom(c), intQuery(c, "limit", 20))
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := make([]orderView, 0, len(list))
	for i := range list {
		out = append(out, toOrderView(&list[i]))
	}
	c.JSON(http.StatusOK, gin.H{"orders": out})
}

func (h *Handler) GetServiceOrder(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	o, err := h.catalog.GetOrder(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderView(o))
}

func (h *Handler) AddServiceOrderItem(c *gin.Context) {
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		ServiceID string `json:"service_id" binding:"required"`
		Quantity  int    `json:"quantity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	serviceID, err := uuid.Parse(req.ServiceID)
	if err != nil {
		badRequest(c, "invalid service_id")
		return
	}

	o, err := h.catalog.AddItem(c.Request.Context(), actorFrom(c), orderID, serviceID, req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderView(o))
}

func (h *Handler) RemoveServiceOrderItem(c *gin.Context) {
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := uuidParam(c, "itemId")
	if !ok {
		return
	}
	o, err := h.catalog.RemoveItem(c.Request.Context(), actorFrom(c), orderID, itemID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderView(o))
}
