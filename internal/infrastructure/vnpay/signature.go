package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

const (
	ParamPrefix         = "vnp_"
	ParamSecureHash     = "vnp_SecureHash"
	ParamSecureHashType = "vnp_SecureHashType"

	ReasonMissingSignature = "missing signature"
	ReasonInvalidSignature = "invalid signature"
)

// Canonicalize sorts keys byte-wise and joins form-encoded k=v pairs with '&'.
// Empty values are kept as "k=".
func Canonicalize(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		// QueryEscape: space -> '+', only A-Za-z0-9-_.~ left as is
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}

// SignedFields keeps the vnp_ fields covered by the signature.
func SignedFields(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		if !strings.HasPrefix(k, ParamPrefix) || k == ParamSecureHash || k == ParamSecureHashType {
			continue
		}
		out[k] = v
	}
	return out
}

type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the lowercase hex HMAC-SHA512 of the canonical form of params.
func (s *Signer) Sign(params map[string]string) string {
	return s.sum(Canonicalize(params))
}

func (s *Signer) sum(data string) string {
	mac := hmac.New(sha512.New, s.secret)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature over the signed fields and compares it with
// vnp_SecureHash in constant time. The reason is empty on success.
func (s *Signer) Verify(params map[string]string) (bool, string) {
	claimed := strings.TrimSpace(params[ParamSecureHash])
	if claimed == "" {
		return false, ReasonMissingSignature
	}
	expected := s.Sign(SignedFields(params))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(claimed))) {
		return false, ReasonInvalidSignature
	}
	return true, ""
}
