package handler

import (
	"net/http"

	"courtmaster/internal/service"

	"github.com/gin-gonic/gin"
)

// UploadPaymentProof takes a multipart "file" with the customer's transfer receipt.
func (h *Handler) UploadPaymentProof(c *gin.Context) {
	bookingID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "could not read file")
		return
	}
	defer f.Close()

	p, err := h.proofs.Submit(c.Request.Context(), actorFrom(c), bookingID, service.ProofUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	}, clientInfo(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPaymentView(p))
}

type reviewRequest struct {
	Approve *bool  `json:"approve" binding:"required"`
	Note    string `json:"note"`
}

func (h *Handler) ReviewPaymentProof(c *gin.Context) {
	paymentID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "approve is required")
		return
	}
	p, err := h.proofs.Review(c.Request.Context(), actorFrom(c), paymentID, *req.Approve, req.Note)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentView(p))
}
