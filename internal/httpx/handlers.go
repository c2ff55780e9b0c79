package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-checkout/internal/catalog"
	"github.com/ariefcatur/go-checkout/internal/checkout"
	"github.com/ariefcatur/go-checkout/internal/orders"
	"github.com/ariefcatur/go-checkout/internal/redisx"
	"github.com/ariefcatur/go-checkout/internal/wompi"
)

type Handler struct {
	Service *checkout.Service
	Redis   *redis.Client
	Log     *zap.Logger
}

func (h *Handler) Register(r *chi.Mux) {
	r.Post("/transactions", h.createTransaction)
	r.Post("/transactions/{id}/pay", h.payTransaction)
	r.Get("/transactions/{id}", h.getTransaction)
	r.Get("/products", h.listProducts)
	r.Post("/products/seed", h.seedProducts)
}

type createTransactionReq struct {
	Items    []orders.ItemInput `json:"items"`
	Customer struct {
		Email string `json:"email"`
	} `json:"customer"`
	Currency string `json:"currency"`
}

// validate checks request shape before any domain command is built. Field
// errors come back as a map so the client sees everything wrong at once.
func (req *createTransactionReq) validate() map[string]string {
	problems := map[string]string{}
	if len(req.Items) == 0 {
		problems["items"] = "at least one item is required"
	}
	for i, it := range req.Items {
		if it.ProductID == "" {
			problems[fmt.Sprintf("items[%d].product_id", i)] = "required"
		}
		if it.Qty < 1 {
			problems[fmt.Sprintf("items[%d].quantity", i)] = "must be at least 1"
		}
	}
	if req.Customer.Email == "" {
		problems["customer.email"] = "required"
	} else if !strings.Contains(req.Customer.Email, "@") {
		problems["customer.email"] = "must be an email address"
	}
	return problems
}

type createTransactionResp struct {
	TransactionID string `json:"transaction_id"`
	AmountInCents int    `json:"amount_in_cents"`
	Currency      string `json:"currency"`
}

type payTransactionReq struct {
	PaymentMethod wompi.PaymentMethod `json:"payment_method"`
}

type payTransactionResp struct {
	TransactionID string          `json:"transaction_id"`
	Status        orders.Status   `json:"status"`
	Wompi         json.RawMessage `json:"wompi,omitempty"`
}

type transactionItemResp struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type transactionResp struct {
	ID            string                `json:"id"`
	Status        orders.Status         `json:"status"`
	AmountInCents int                   `json:"amount_in_cents"`
	Currency      string                `json:"currency"`
	CustomerEmail string                `json:"customer_email"`
	Items         []transactionItemResp `json:"items"`
}

type seedProductsReq struct {
	Count     int   `json:"count"`
	WithStock *bool `json:"with_stock"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errStatus(err), map[string]string{"error": err.Error()})
}

// errStatus maps the domain error taxonomy onto HTTP codes. Validation-class
// failures are 400, missing entities 404, misconfiguration 500, an
// unreachable or malformed processor 502.
func errStatus(err error) int {
	switch {
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, checkout.ErrInvalidInput),
		errors.Is(err, checkout.ErrInsufficientStock),
		errors.Is(err, checkout.ErrNotPending):
		return http.StatusBadRequest
	case errors.Is(err, wompi.ErrMissingConfig):
		return http.StatusInternalServerError
	case errors.Is(err, wompi.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if problems := req.validate(); len(problems) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": problems})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Service.CreateOrder(ctx, checkout.CreateOrderInput{
		Items:         req.Items,
		CustomerEmail: req.Customer.Email,
		Currency:      req.Currency,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createTransactionResp{
		TransactionID: res.OrderID,
		AmountInCents: res.AmountCents,
		Currency:      res.Currency,
	})
}

func (h *Handler) payTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req payTransactionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.PaymentMethod.Type == "" || req.PaymentMethod.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": map[string]string{
			"payment_method": "type and token are required",
		}})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 25*time.Second)
	defer cancel()

	res, err := h.Service.Settle(ctx, id, req.PaymentMethod)
	if err != nil {
		writeError(w, err)
		return
	}

	// Drop the cached read; the next GET repopulates it with the new status.
	key := fmt.Sprintf(redisx.KeyTransaction, id)
	if delErr := h.Redis.Del(ctx, key).Err(); delErr != nil {
		h.Log.Warn("cache invalidation failed", zap.String("order_id", id), zap.Error(delErr))
	}

	writeJSON(w, http.StatusOK, payTransactionResp{
		TransactionID: res.OrderID,
		Status:        res.Status,
		Wompi:         res.GatewayResponse,
	})
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyTransaction, id)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(s))
		return
	}

	o, err := h.Service.GetOrder(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := transactionResp{
		ID:            o.ID,
		Status:        o.Status,
		AmountInCents: o.AmountCents,
		Currency:      o.Currency,
		CustomerEmail: o.CustomerEmail,
		Items:         make([]transactionItemResp, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, transactionItemResp{ID: it.ID, ProductID: it.ProductID, Quantity: it.Qty})
	}

	b, _ := json.Marshal(resp)
	_ = h.Redis.Set(ctx, key, b, redisx.TTLTransactionCache).Err()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Service.ListProducts(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	if ps == nil {
		ps = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handler) seedProducts(w http.ResponseWriter, r *http.Request) {
	var req seedProductsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	withStock := true
	if req.WithStock != nil {
		withStock = *req.WithStock
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ps, err := h.Service.SeedProducts(ctx, req.Count, withStock)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ps)
}
