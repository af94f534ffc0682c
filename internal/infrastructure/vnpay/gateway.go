package vnpay

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"courtmaster/internal/config"
	"courtmaster/internal/domain"
)

// DateLayout is the gateway timestamp format, always in UTC+7.
const DateLayout = "20060102150405"

var gatewayZone = time.FixedZone("ICT", 7*60*60)

// InGatewayZone converts t to the gateway's fixed UTC+7 offset.
func InGatewayZone(t time.Time) time.Time {
	return t.In(gatewayZone)
}

type PaymentRequest struct {
	TxnRef      string
	MinorAmount int64
	OrderInfo   string
	IPAddr      string
	Now         time.Time
}

type Redirect struct {
	URL       string
	Params    map[string]string
	Signature string
	ExpireAt  time.Time
}

// CallbackResult is the typed view of a verified return/IPN payload.
type CallbackResult struct {
	TxnRef        string
	Amount        int64
	AmountValid   bool
	ResponseCode  string
	TransactionNo string
	BankCode      string
	CardType      string
	PayDate       string
	OrderInfo     string
	SecureHash    string
	Raw           map[string]string
}

func (r *CallbackResult) Success() bool {
	return r.ResponseCode == ResponseSuccess
}

type PaymentGateway interface {
	BuildRedirect(req PaymentRequest) (*Redirect, error)
	VerifyCallback(params map[string]string) (*CallbackResult, error)
	Mock() bool
}

type paymentGateway struct {
	cfg    config.VNPayConfig
	signer *Signer
}

// NewPaymentGateway returns the real gateway, or the mock one when cfg.Mock is set.
func NewPaymentGateway(cfg config.VNPayConfig) PaymentGateway {
	gw := &paymentGateway{cfg: cfg, signer: NewSigner(cfg.SecretKey)}
	if cfg.Mock {
		return &mockGateway{paymentGateway: gw}
	}
	return gw
}

func (g *paymentGateway) Mock() bool { return false }

func (g *paymentGateway) BuildRedirect(req PaymentRequest) (*Redirect, error) {
	if req.TxnRef == "" {
		return nil, domain.ErrMissingReference
	}
	if req.MinorAmount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if req.IPAddr == "" {
		req.IPAddr = "127.0.0.1"
	}

	created := InGatewayZone(req.Now)
	expire := created.Add(g.cfg.RequestTTL)

	params := map[string]string{
		"vnp_Version":    g.cfg.Version,
		"vnp_Command":    g.cfg.Command,
		"vnp_TmnCode":    g.cfg.TmnCode,
		"vnp_Amount":     strconv.FormatInt(req.MinorAmount, 10),
		"vnp_CurrCode":   g.cfg.CurrCode,
		"vnp_TxnRef":     req.TxnRef,
		"vnp_OrderInfo":  req.OrderInfo,
		"vnp_OrderType":  g.cfg.OrderType,
		"vnp_Locale":     g.cfg.Locale,
		"vnp_ReturnUrl":  g.cfg.ReturnURL,
		"vnp_IpAddr":     req.IPAddr,
		"vnp_CreateDate": created.Format(DateLayout),
		"vnp_ExpireDate": expire.Format(DateLayout),
	}

	query := Canonicalize(params)
	sig := g.signer.sum(query)

	return &Redirect{
		URL:       fmt.Sprintf("%s?%s&%s=%s", g.cfg.PaymentURL, query, ParamSecureHash, sig),
		Params:    params,
		Signature: sig,
		ExpireAt:  expire,
	}, nil
}

func (g *paymentGateway) VerifyCallback(params map[string]string) (*CallbackResult, error) {
	ok, reason := g.signer.Verify(params)
	if !ok {
		if reason == ReasonMissingSignature {
			return nil, domain.ErrMissingSignature
		}
		return nil, domain.ErrInvalidSignature
	}
	return parseCallback(params), nil
}

func parseCallback(params map[string]string) *CallbackResult {
	res := &CallbackResult{
		TxnRef:        strings.TrimSpace(params["vnp_TxnRef"]),
		ResponseCode:  params["vnp_ResponseCode"],
		TransactionNo: params["vnp_TransactionNo"],
		BankCode:      params["vnp_BankCode"],
		CardType:      params["vnp_CardType"],
		PayDate:       params["vnp_PayDate"],
		OrderInfo:     params["vnp_OrderInfo"],
		SecureHash:    params[ParamSecureHash],
		Raw:           params,
	}
	if amount, err := strconv.ParseInt(params["vnp_Amount"], 10, 64); err == nil {
		res.Amount = amount
		res.AmountValid = true
	}
	return res
}

// mockGateway skips the real gateway and sends the browser straight back to
// the return URL with a canned, correctly signed success payload.
type mockGateway struct {
	*paymentGateway
}

const (
	MockTransactionNo = "MOCK123456"
	MockBankCode      = "MOCK"
	MockCardType      = "ATM"
)

func (m *mockGateway) Mock() bool { return true }

func (m *mockGateway) BuildRedirect(req PaymentRequest) (*Redirect, error) {
	if req.TxnRef == "" {
		return nil, domain.ErrMissingReference
	}
	if req.MinorAmount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	now := InGatewayZone(req.Now)
	params := map[string]string{
		"vnp_Amount":        strconv.FormatInt(req.MinorAmount, 10),
		"vnp_BankCode":      MockBankCode,
		"vnp_CardType":      MockCardType,
		"vnp_OrderInfo":     req.OrderInfo,
		"vnp_PayDate":       now.Format(DateLayout),
		"vnp_ResponseCode":  ResponseSuccess,
		"vnp_TmnCode":       m.cfg.TmnCode,
		"vnp_TransactionNo": MockTransactionNo,
		"vnp_TxnRef":        req.TxnRef,
	}
	query := Canonicalize(params)
	sig := m.signer.sum(query)
	return &Redirect{
		URL:       fmt.Sprintf("%s?%s&%s=%s", m.cfg.ReturnURL, query, ParamSecureHash, sig),
		Params:    params,
		Signature: sig,
		ExpireAt:  now.Add(m.cfg.RequestTTL),
	}, nil
}
