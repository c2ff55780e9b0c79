package wompi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-checkout/internal/orders"
)

const merchantBody = `{
	"data": {
		"presigned_acceptance": {"acceptance_token": "tok-acceptance"},
		"presigned_personal_data_auth": {"acceptance_token": "tok-personal"}
	}
}`

func testOrder() *orders.Order {
	return &orders.Order{
		ID:            "3f2b6c1e-9d3a-4a39-9f51-0a1f6f0d8e11",
		AmountCents:   20000,
		Currency:      "COP",
		Status:        orders.StatusPending,
		CustomerEmail: "a@b.com",
	}
}

func TestSignatureDeterministic(t *testing.T) {
	ref := "TX_1_1700000000000"
	got := Signature(ref, 20000, "COP", "integrity-key")

	sum := sha256.Sum256([]byte(ref + "20000" + "COP" + "integrity-key"))
	assert.Equal(t, hex.EncodeToString(sum[:]), got)
	assert.Equal(t, got, Signature(ref, 20000, "COP", "integrity-key"))

	// Any single input change must change the digest.
	assert.NotEqual(t, got, Signature("TX_1_1700000000001", 20000, "COP", "integrity-key"))
	assert.NotEqual(t, got, Signature(ref, 20001, "COP", "integrity-key"))
	assert.NotEqual(t, got, Signature(ref, 20000, "USD", "integrity-key"))
	assert.NotEqual(t, got, Signature(ref, 20000, "COP", "other-key"))
}

func TestFetchAcceptanceTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/merchants/pub-key", r.URL.Path)
		_, _ = w.Write([]byte(merchantBody))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "pub-key", "priv-key", "int-key", time.Second)
	tokens, err := c.FetchAcceptanceTokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-acceptance", tokens.Acceptance)
	assert.Equal(t, "tok-personal", tokens.PersonalAuth)
}

func TestFetchAcceptanceTokensMissingPublicKey(t *testing.T) {
	c := NewClient("http://unused", "", "priv-key", "int-key", time.Second)
	_, err := c.FetchAcceptanceTokens(context.Background())
	assert.ErrorIs(t, err, ErrMissingConfig)
}

func TestFetchAcceptanceTokensMissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"presigned_acceptance": {"acceptance_token": "only-one"}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "pub-key", "priv-key", "int-key", time.Second)
	_, err := c.FetchAcceptanceTokens(context.Background())
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestFetchAcceptanceTokensUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, "pub-key", "priv-key", "int-key", time.Second)
	_, err := c.FetchAcceptanceTokens(context.Background())
	assert.ErrorIs(t, err, ErrUpstream)
}

// gatewayStub serves both Wompi endpoints and records the payment payload.
func gatewayStub(t *testing.T, txStatus int, txBody string) (*httptest.Server, *transactionRequest) {
	t.Helper()
	var captured transactionRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/merchants/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(merchantBody))
	})
	mux.HandleFunc("/transactions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer priv-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(txStatus)
		_, _ = w.Write([]byte(txBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &captured
}

func TestSubmitPaymentSignsAndSends(t *testing.T) {
	srv, captured := gatewayStub(t, http.StatusCreated, `{"data": {"status": "APPROVED"}}`)

	c := NewClient(srv.URL, "pub-key", "priv-key", "int-key", time.Second)
	o := testOrder()
	res, err := c.SubmitPayment(context.Background(), o, PaymentMethod{Type: "CARD", Token: "tok_test"})
	require.NoError(t, err)

	assert.Equal(t, orders.StatusApproved, res.Status)
	assert.Equal(t, res.Reference, captured.Reference)
	assert.Regexp(t, fmt.Sprintf(`^TX_%s_\d+$`, o.ID), res.Reference)

	assert.Equal(t, o.AmountCents, captured.AmountInCents)
	assert.Equal(t, o.Currency, captured.Currency)
	assert.Equal(t, o.CustomerEmail, captured.CustomerEmail)
	assert.Equal(t, "CARD", captured.PaymentMethod.Type)
	assert.Equal(t, "tok-acceptance", captured.AcceptanceToken)
	assert.Equal(t, "tok-personal", captured.AcceptPersonalAuth)
	assert.Equal(t, Signature(captured.Reference, o.AmountCents, o.Currency, "int-key"), captured.Signature)
}

func TestSubmitPaymentReferenceUniquePerAttempt(t *testing.T) {
	srv, _ := gatewayStub(t, http.StatusCreated, `{"data": {"status": "APPROVED"}}`)
	c := NewClient(srv.URL, "pub-key", "priv-key", "int-key", time.Second)
	o := testOrder()

	first, err := c.SubmitPayment(context.Background(), o, PaymentMethod{Type: "CARD", Token: "t"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := c.SubmitPayment(context.Background(), o, PaymentMethod{Type: "CARD", Token: "t"})
	require.NoError(t, err)

	assert.NotEqual(t, first.Reference, second.Reference)
}

func TestSubmitPaymentStatusMapping(t *testing.T) {
	cases := []struct {
		body string
		want orders.Status
	}{
		{`{"data": {"status": "APPROVED"}}`, orders.StatusApproved},
		{`{"data": {"status": "VERIFIED"}}`, orders.StatusApproved},
		{`{"data": {"status": "AUTHORIZED"}}`, orders.StatusApproved},
		{`{"data": {"status": "PENDING"}}`, orders.StatusApproved},
		{`{"status": "APPROVED"}`, orders.StatusApproved}, // top-level fallback
		{`{"data": {"status": "DECLINED"}}`, orders.StatusDeclined},
		{`{"data": {"status": "ERROR"}}`, orders.StatusDeclined},
		{`{"data": {"status": "VOIDED"}}`, orders.StatusDeclined},
		{`{"data": {}}`, orders.StatusDeclined},
		{`not json at all`, orders.StatusDeclined},
		{``, orders.StatusDeclined},
	}
	for _, tc := range cases {
		t.Run(tc.body, func(t *testing.T) {
			srv, _ := gatewayStub(t, http.StatusCreated, tc.body)
			c := NewClient(srv.URL, "pub-key", "priv-key", "int-key", time.Second)
			res, err := c.SubmitPayment(context.Background(), testOrder(), PaymentMethod{Type: "CARD", Token: "t"})
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Status)
		})
	}
}

func TestSubmitPaymentRejectionCapturedNotRaised(t *testing.T) {
	errBody := `{"error": {"type": "INPUT_VALIDATION_ERROR", "messages": {"reference": ["already used"]}}}`
	srv, _ := gatewayStub(t, http.StatusUnprocessableEntity, errBody)

	c := NewClient(srv.URL, "pub-key", "priv-key", "int-key", time.Second)
	res, err := c.SubmitPayment(context.Background(), testOrder(), PaymentMethod{Type: "CARD", Token: "t"})
	require.NoError(t, err)
	assert.Equal(t, orders.StatusDeclined, res.Status)
	assert.JSONEq(t, errBody, string(res.Raw))
}

func TestSubmitPaymentMissingKeys(t *testing.T) {
	srv, _ := gatewayStub(t, http.StatusCreated, `{}`)

	c := NewClient(srv.URL, "pub-key", "", "int-key", time.Second)
	_, err := c.SubmitPayment(context.Background(), testOrder(), PaymentMethod{Type: "CARD", Token: "t"})
	assert.ErrorIs(t, err, ErrMissingConfig)

	c = NewClient(srv.URL, "pub-key", "priv-key", "", time.Second)
	_, err = c.SubmitPayment(context.Background(), testOrder(), PaymentMethod{Type: "CARD", Token: "t"})
	assert.ErrorIs(t, err, ErrMissingConfig)
}

func TestExtractStatus(t *testing.T) {
	assert.Equal(t, "APPROVED", extractStatus(json.RawMessage(`{"data": {"status": "APPROVED"}}`)))
	assert.Equal(t, "DECLINED", extractStatus(json.RawMessage(`{"status": "DECLINED"}`)))
	assert.Equal(t, "", extractStatus(nil))
	assert.Equal(t, "", extractStatus(json.RawMessage(`{"error": "boom"}`)))
}
