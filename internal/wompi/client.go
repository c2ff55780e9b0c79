// Package wompi is the client for the Wompi payment processor. It obtains
// single-use acceptance tokens, signs transaction requests and maps the
// processor's status vocabulary onto the order status vocabulary.
package wompi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ariefcatur/go-checkout/internal/orders"
)

var (
	ErrMissingConfig = errors.New("wompi: missing configuration")
	ErrUpstream      = errors.New("wompi: upstream error")
)

const maxRedirects = 5

// PaymentMethod mirrors Wompi's payment_method object. Only card payments
// are used today but the shape allows other types.
type PaymentMethod struct {
	Type         string `json:"type"`
	Token        string `json:"token"`
	Installments int    `json:"installments,omitempty"`
}

// AcceptanceTokens holds the two single-use tokens Wompi requires in every
// transaction request: general terms acceptance and personal data auth.
type AcceptanceTokens struct {
	Acceptance   string
	PersonalAuth string
}

// PaymentResult is the outcome of one payment attempt. Raw carries whatever
// body the processor returned (possibly an error payload, possibly nothing).
type PaymentResult struct {
	Status    orders.Status
	Raw       json.RawMessage
	Reference string
}

type Client struct {
	baseURL      string
	publicKey    string
	privateKey   string
	integrityKey string
	http         *http.Client
}

func NewClient(baseURL, publicKey, privateKey, integrityKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:      baseURL,
		publicKey:    publicKey,
		privateKey:   privateKey,
		integrityKey: integrityKey,
		http: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
	}
}

// FetchAcceptanceTokens gets a fresh pair of presigned acceptance tokens from
// the merchant-info endpoint. Wompi treats them as single-use, so they are
// never cached; every settlement attempt calls this again.
func (c *Client) FetchAcceptanceTokens(ctx context.Context) (AcceptanceTokens, error) {
	if c.publicKey == "" {
		return AcceptanceTokens{}, fmt.Errorf("%w: WOMPI_PUBLIC_KEY is not set", ErrMissingConfig)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/merchants/"+c.publicKey, nil)
	if err != nil {
		return AcceptanceTokens{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return AcceptanceTokens{}, fmt.Errorf("%w: fetch acceptance tokens: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	var body struct {
		Data struct {
			PresignedAcceptance struct {
				AcceptanceToken string `json:"acceptance_token"`
			} `json:"presigned_acceptance"`
			PresignedPersonalDataAuth struct {
				AcceptanceToken string `json:"acceptance_token"`
			} `json:"presigned_personal_data_auth"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return AcceptanceTokens{}, fmt.Errorf("%w: decode merchant response: %v", ErrUpstream, err)
	}

	tokens := AcceptanceTokens{
		Acceptance:   body.Data.PresignedAcceptance.AcceptanceToken,
		PersonalAuth: body.Data.PresignedPersonalDataAuth.AcceptanceToken,
	}
	if tokens.Acceptance == "" || tokens.PersonalAuth == "" {
		return AcceptanceTokens{}, fmt.Errorf("%w: acceptance tokens not present in response", ErrUpstream)
	}
	return tokens, nil
}

// Signature computes the integrity signature Wompi verifies on each
// transaction: hex(sha256(reference + amountInCents + currency + key)),
// plain decimal concatenation with no separators.
func Signature(reference string, amountCents int, currency, integrityKey string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s%d%s%s", reference, amountCents, currency, integrityKey)))
	return hex.EncodeToString(sum[:])
}

type transactionRequest struct {
	AmountInCents      int           `json:"amount_in_cents"`
	Currency           string        `json:"currency"`
	CustomerEmail      string        `json:"customer_email"`
	PaymentMethod      PaymentMethod `json:"payment_method"`
	Reference          string        `json:"reference"`
	AcceptanceToken    string        `json:"acceptance_token"`
	AcceptPersonalAuth string        `json:"accept_personal_auth"`
	Signature          string        `json:"signature"`
}

// SubmitPayment sends one signed payment attempt for the order. Failures
// before submission (missing config, token fetch) return an error. Once the
// request is on the wire, any failure is absorbed: whatever body the
// processor returned becomes the raw result and the status maps to DECLINED.
// There is no retry here; one attempt, one outcome.
func (c *Client) SubmitPayment(ctx context.Context, o *orders.Order, method PaymentMethod) (*PaymentResult, error) {
	tokens, err := c.FetchAcceptanceTokens(ctx)
	if err != nil {
		return nil, err
	}
	if c.privateKey == "" {
		return nil, fmt.Errorf("%w: WOMPI_PRIVATE_KEY is not set", ErrMissingConfig)
	}
	if c.integrityKey == "" {
		return nil, fmt.Errorf("%w: WOMPI_INTEGRITY_KEY is not set", ErrMissingConfig)
	}

	// Unique per attempt, not per order: a retried settlement must not reuse
	// a reference the processor has already seen.
	reference := fmt.Sprintf("TX_%s_%d", o.ID, time.Now().UnixMilli())

	payload := transactionRequest{
		AmountInCents:      o.AmountCents,
		Currency:           o.Currency,
		CustomerEmail:      o.CustomerEmail,
		PaymentMethod:      method,
		Reference:          reference,
		AcceptanceToken:    tokens.Acceptance,
		AcceptPersonalAuth: tokens.PersonalAuth,
		Signature:          Signature(reference, o.AmountCents, o.Currency, c.integrityKey),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.privateKey)

	var raw json.RawMessage
	resp, err := c.http.Do(req)
	if err == nil {
		b, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr == nil {
			raw = b
		}
	}

	return &PaymentResult{
		Status:    mapStatus(extractStatus(raw)),
		Raw:       raw,
		Reference: reference,
	}, nil
}

// extractStatus pulls the processor status out of a response body, checking
// data.status first and then a top-level status field.
func extractStatus(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var probe struct {
		Status string `json:"status"`
		Data   struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	if probe.Data.Status != "" {
		return probe.Data.Status
	}
	return probe.Status
}

// mapStatus is deliberately default-deny: anything outside the known good
// set, including an absent or unparseable status, maps to DECLINED.
func mapStatus(s string) orders.Status {
	switch s {
	case "APPROVED", "VERIFIED", "AUTHORIZED", "PENDING":
		return orders.StatusApproved
	default:
		return orders.StatusDeclined
	}
}
