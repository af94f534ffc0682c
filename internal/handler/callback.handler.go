package handler

import (
	"net/http"
	"net/url"

	"courtmaster/internal/domain"
	"courtmaster/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// VNPayReturn is where the customer's browser lands after the gateway. It
// reconciles exactly like the IPN and then redirects to the frontend.
func (h *Handler) VNPayReturn(c *gin.Context) {
	out, err := h.reconciler.HandleReturn(c.Request.Context(), queryParams(c))
	c.Redirect(http.StatusFound, h.returnTarget(out, err))
}

func (h *Handler) returnTarget(out *service.Outcome, err error) string {
	if err != nil || out == nil || out.Payment == nil {
		msg := "Không thể xác nhận thanh toán"
		if err != nil {
			msg = domain.MessageOf(err)
		}
		return h.frontendURL + "/bookings?error=" + url.QueryEscape(msg)
	}
	result := "failed"
	if out.Payment.IsPaid() {
		result = "success"
	}
	return h.frontendURL + "/payments/" + out.Payment.ID.String() + "/" + result
}

// VNPayIPN is the server-to-server notification. The gateway expects HTTP 200
// with an RspCode body in every case.
func (h *Handler) VNPayIPN(c *gin.Context) {
	params := queryParams(c)
	if c.Request.Method == http.MethodPost {
		if err := c.Request.ParseForm(); err == nil {
			for k, v := range flatten(c.Request.PostForm) {
				params[k] = v
			}
		}
	}

	ack := h.reconciler.HandleIPN(c.Request.Context(), params)
	h.logger.Info("vnpay ipn acknowledged",
		zap.String("txn_ref", params["vnp_TxnRef"]),
		zap.String("rsp_code", ack.RspCode),
	)
	c.JSON(http.StatusOK, ack)
}
