package handler

import (
	"net/http"
	"time"

	"courtmaster/internal/domain"
	"courtmaster/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type paymentView struct {
	ID            string          `json:"id"`
	BookingID     *string         `json:"booking_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Method        string          `json:"method"`
	Status        string          `json:"status"`
	TxnRef        string          `json:"txn_ref,omitempty"`
	TransactionNo string          `json:"transaction_no,omitempty"`
	BankCode      string          `json:"bank_code,omitempty"`
	ResponseCode  string          `json:"response_code,omitempty"`
	Description   string          `json:"description"`
	CreatedAt     time.Time       `json:"created_at"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	ExpiredAt     *time.Time      `json:"expired_at,omitempty"`
}

func toPaymentView(p *domain.Payment) paymentView {
	v := paymentView{
		ID:            p.ID.String(),
		Amount:        p.Amount,
		Currency:      p.Currency,
		Method:        string(p.Method),
		Status:        string(p.Status),
		TxnRef:        p.TxnRef,
		TransactionNo: p.TransactionNo,
		BankCode:      p.BankCode,
		ResponseCode:  p.ResponseCode,
		Description:   p.Description,
		CreatedAt:     p.CreatedAt,
		PaidAt:        p.PaidAt,
		ExpiredAt:     p.ExpiredAt,
	}
	if p.HasBooking() {
		id := p.BookingID.UUID.String()
		v.BookingID = &id
	}
	return v
}

type paymentLogView struct {
	Action    string         `json:"action"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}

func clientInfo(c *gin.Context) service.ClientInfo {
	return service.ClientInfo{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

func (h *Handler) CreatePayment(c *gin.Context) {
	bookingID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	p, err := h.payments.CreateForBooking(c.Request.Context(), actorFrom(c), bookingID, clientInfo(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPaymentView(p))
}

func (h *Handler) ListPayments(c *gin.Context) {
	list, err := h.payments.List(c.Request.Context(), actorFrom(c), intQuery(c, "limit", 20), intQuery(c, "offset", 0))
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := make([]paymentView, 0, len(list))
	for i := range list {
		out = append(out, toPaymentView(&list[i]))
	}
	c.JSON(http.StatusOK, gin.H{"payments": out})
}

func (h *Handler) GetPayment(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	detail, err := h.payments.Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	logs := make([]paymentLogView, 0, len(detail.Logs))
	for _, l := range detail.Logs {
		logs = append(logs, paymentLogView{Action: string(l.Action), Message: l.Message, Data: l.Data, CreatedAt: l.CreatedAt})
	}
	c.JSON(http.StatusOK, gin.H{"payment": toPaymentView(detail.Payment), "logs": logs})
}

// PaymentStatus is polled by the frontend while the customer is at the gateway.
func (h *Handler) PaymentStatus(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	detail, err := h.payments.Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	p := detail.Payment
	c.JSON(http.StatusOK, gin.H{
		"id":         p.ID.String(),
		"status":     p.Status,
		"amount":     p.Amount,
		"method":     p.Method,
		"created_at": p.CreatedAt,
		"paid_at":    p.PaidAt,
	})
}

func (h *Handler) CreateRedirect(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	url, err := h.payments.CreateRedirect(c.Request.Context(), actorFrom(c), id, clientInfo(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *Handler) CancelPayment(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.payments.Cancel(c.Request.Context(), actorFrom(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": domain.PaymentCancelled})
}

func (h *Handler) RetryPayment(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	bookingID, err := h.payments.Retry(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking_id": bookingID.String()})
}
