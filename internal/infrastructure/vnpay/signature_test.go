package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize_SortsAndEncodes(t *testing.T) {
	params := map[string]string{
		"vnp_TxnRef":    "ABCD1234",
		"vnp_Amount":    "10000000",
		"vnp_OrderInfo": "Dat san Court A&B",
		"vnp_ReturnUrl": "http://localhost:8080/payment/vnpay-return",
	}

	got := Canonicalize(params)

	assert.Equal(t,
		"vnp_Amount=10000000&vnp_OrderInfo=Dat+san+Court+A%26B&vnp_ReturnUrl=http%3A%2F%2Flocalhost%3A8080%2Fpayment%2Fvnpay-return&vnp_TxnRef=ABCD1234",
		got,
	)
}

func TestCanonicalize_ByteWiseOrder(t *testing.T) {
	// upper case sorts before lower case byte-wise
	got := Canonicalize(map[string]string{"vnp_b": "1", "vnp_B": "2", "vnp_a": "3"})
	assert.Equal(t, "vnp_B=2&vnp_a=3&vnp_b=1", got)
}

func TestCanonicalize_KeepsEmptyValuesAndUnreserved(t *testing.T) {
	got := Canonicalize(map[string]string{"vnp_Empty": "", "vnp_X": "a-b_c.d~e"})
	assert.Equal(t, "vnp_Empty=&vnp_X=a-b_c.d~e", got)
}

func TestCanonicalize_IndependentOfInsertionOrder(t *testing.T) {
	keys := []string{"vnp_TmnCode", "vnp_Amount", "vnp_Locale", "vnp_IpAddr", "vnp_CreateDate"}
	values := []string{"TMN01", "500000", "vn", "10.0.0.1", "20240101120000"}

	var first string
	for shift := 0; shift < len(keys); shift++ {
		m := make(map[string]string)
		for i := range keys {
			j := (i + shift) % len(keys)
			m[keys[j]] = values[j]
		}
		s := Canonicalize(m)
		if first == "" {
			first = s
		}
		assert.Equal(t, first, s)
	}
}

func TestSign_MatchesHMACSHA512(t *testing.T) {
	params := map[string]string{"vnp_Amount": "100", "vnp_TxnRef": "X1"}
	signer := NewSigner("secret")

	mac := hmac.New(sha512.New, []byte("secret"))
	mac.Write([]byte("vnp_Amount=100&vnp_TxnRef=X1"))
	want := hex.EncodeToString(mac.Sum(nil))

	got := signer.Sign(params)
	assert.Equal(t, want, got)
	assert.Len(t, got, 128)
	assert.Equal(t, strings.ToLower(got), got)
}

func signedPayload(secret string) map[string]string {
	params := map[string]string{
		"vnp_Amount":        "10000000",
		"vnp_BankCode":      "NCB",
		"vnp_OrderInfo":     "Dat san San 1",
		"vnp_ResponseCode":  "00",
		"vnp_TmnCode":       "TMN01",
		"vnp_TransactionNo": "14123456",
		"vnp_TxnRef":        "ABCD1234",
	}
	params[ParamSecureHash] = NewSigner(secret).Sign(params)
	return params
}

func TestVerify_RoundTrip(t *testing.T) {
	params := signedPayload("secret")
	params[ParamSecureHashType] = "HmacSHA512"
	params["utm_source"] = "ignored"

	ok, reason := NewSigner("secret").Verify(params)
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestVerify_AcceptsUpperCaseSignature(t *testing.T) {
	params := signedPayload("secret")
	params[ParamSecureHash] = strings.ToUpper(params[ParamSecureHash])

	ok, _ := NewSigner("secret").Verify(params)
	assert.True(t, ok)
}

func TestVerify_Missing(t *testing.T) {
	params := signedPayload("secret")
	delete(params, ParamSecureHash)

	ok, reason := NewSigner("secret").Verify(params)
	assert.False(t, ok)
	assert.Equal(t, ReasonMissingSignature, reason)
}

func TestVerify_TamperedSignatureCharacter(t *testing.T) {
	signer := NewSigner("secret")
	base := signedPayload("secret")
	sig := base[ParamSecureHash]

	for i := 0; i < len(sig); i += 17 {
		params := signedPayload("secret")
		flipped := []byte(sig)
		if flipped[i] == 'a' {
			flipped[i] = 'b'
		} else {
			flipped[i] = 'a'
		}
		params[ParamSecureHash] = string(flipped)

		ok, reason := signer.Verify(params)
		assert.False(t, ok, "position %d", i)
		assert.Equal(t, ReasonInvalidSignature, reason)
	}
}

func TestVerify_TamperedValue(t *testing.T) {
	signer := NewSigner("secret")
	for _, key := range []string{"vnp_Amount", "vnp_TxnRef", "vnp_ResponseCode", "vnp_OrderInfo"} {
		params := signedPayload("secret")
		params[key] = params[key] + "1"

		ok, reason := signer.Verify(params)
		assert.False(t, ok, key)
		assert.Equal(t, ReasonInvalidSignature, reason, key)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	ok, reason := NewSigner("other").Verify(signedPayload("secret"))
	require.False(t, ok)
	assert.Equal(t, ReasonInvalidSignature, reason)
}
