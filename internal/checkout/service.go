// Package checkout holds the use cases of the service: creating a pending
// order against the catalog, settling it through the payment gateway and
// reading it back. All storage and gateway access goes through the
// interfaces in ports.go.
package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-checkout/internal/catalog"
	kafkax "github.com/ariefcatur/go-checkout/internal/kafka"
	"github.com/ariefcatur/go-checkout/internal/orders"
	"github.com/ariefcatur/go-checkout/internal/wompi"
)

const defaultCurrency = "COP"

type Service struct {
	Store   TransactionStore
	Catalog ProductCatalog
	Gateway PaymentGateway

	// Outcome publishers, one topic each. Either may be nil.
	ApprovedEvents EventPublisher
	DeclinedEvents EventPublisher

	Log         *zap.Logger
	ServiceName string
}

type CreateOrderInput struct {
	Items         []orders.ItemInput
	CustomerEmail string
	Currency      string
}

type CreateOrderResult struct {
	OrderID     string
	AmountCents int
	Currency    string
}

type SettleResult struct {
	OrderID         string
	Status          orders.Status
	GatewayResponse json.RawMessage
	Reference       string
}

// CreateOrder validates the command, prices it against a snapshot of the
// catalog and persists a PENDING order with its items atomically.
//
// Stock is checked here but not reserved: two concurrent creations against
// the same product can both pass against stale stock. Settlement re-checks.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrInvalidInput)
	}
	if in.CustomerEmail == "" {
		return nil, fmt.Errorf("%w: customer email is required", ErrInvalidInput)
	}
	for _, it := range in.Items {
		if it.Qty <= 0 {
			return nil, fmt.Errorf("%w: invalid quantity for product %s", ErrInvalidInput, it.ProductID)
		}
	}
	currency := in.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	ids := make([]string, 0, len(in.Items))
	seen := map[string]bool{}
	for _, it := range in.Items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	products, err := s.Catalog.FindManyByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}
	byID := make(map[string]int, len(products)) // product id -> index
	for i, p := range products {
		byID[p.ID] = i
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("product %s: %w", id, catalog.ErrNotFound)
		}
	}

	total := 0
	for _, it := range in.Items {
		p := products[byID[it.ProductID]]
		if p.Stock < it.Qty {
			return nil, &InsufficientStockError{ProductID: p.ID, Required: it.Qty, Available: p.Stock}
		}
		total += p.PriceCents * it.Qty
	}

	o, err := s.Store.Create(ctx, total, currency, in.CustomerEmail, in.Items)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.Log.Info("order created",
		zap.String("order_id", o.ID),
		zap.Int("amount_cents", o.AmountCents),
		zap.String("currency", o.Currency),
		zap.Int("items", len(o.Items)),
	)
	return &CreateOrderResult{OrderID: o.ID, AmountCents: o.AmountCents, Currency: o.Currency}, nil
}

// GetOrder returns the order with its items, or orders.ErrNotFound.
func (s *Service) GetOrder(ctx context.Context, id string) (*orders.Order, error) {
	return s.Store.FindByID(ctx, id)
}

// Settle runs one payment attempt for a pending order: submit to the
// gateway, record the mapped outcome on the order, and on approval decrement
// stock for every item.
//
// The status write and the stock writes are separate commits. A crash between
// gateway success and the status write leaves the order PENDING while the
// processor captured funds; a failure in the stock loop leaves earlier items
// decremented with the order already APPROVED. See DESIGN.md for why these
// gaps are kept open.
// TODO: compensate partially applied stock decrements when a later item in
// the loop fails, or switch UpdateStock to a conditional decrement.
func (s *Service) Settle(ctx context.Context, id string, method wompi.PaymentMethod) (*SettleResult, error) {
	o, err := s.Store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status != orders.StatusPending {
		return nil, fmt.Errorf("%w: order %s is %s", ErrNotPending, o.ID, o.Status)
	}

	res, err := s.Gateway.SubmitPayment(ctx, o, method)
	if err != nil {
		return nil, err
	}

	// Written unconditionally: whatever follows, the gateway outcome is
	// already recorded on the order.
	updated, err := s.Store.UpdateStatus(ctx, o.ID, res.Status)
	if err != nil {
		return nil, err
	}

	if res.Status == orders.StatusApproved {
		for _, it := range o.Items {
			p, err := s.Catalog.FindByID(ctx, it.ProductID)
			if err != nil {
				return nil, fmt.Errorf("product %s: %w", it.ProductID, err)
			}
			if p.Stock < it.Qty {
				return nil, &InsufficientStockError{ProductID: p.ID, Required: it.Qty, Available: p.Stock}
			}
			if err := s.Catalog.UpdateStock(ctx, p.ID, p.Stock-it.Qty); err != nil {
				return nil, fmt.Errorf("update stock for product %s: %w", p.ID, err)
			}
		}
	}

	s.publishOutcome(updated, res)

	s.Log.Info("settlement finished",
		zap.String("order_id", updated.ID),
		zap.String("status", string(updated.Status)),
		zap.String("reference", res.Reference),
	)
	return &SettleResult{
		OrderID:         updated.ID,
		Status:          updated.Status,
		GatewayResponse: res.Raw,
		Reference:       res.Reference,
	}, nil
}

// ListProducts exposes the catalog for the products endpoint.
func (s *Service) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	return s.Catalog.FindAll(ctx)
}

// SeedProducts populates the catalog with demo data.
func (s *Service) SeedProducts(ctx context.Context, count int, withStock bool) ([]catalog.Product, error) {
	return s.Catalog.Seed(ctx, count, withStock)
}

func (s *Service) publishOutcome(o *orders.Order, res *wompi.PaymentResult) {
	pub := s.DeclinedEvents
	eventType := orders.EventPaymentDeclined
	if o.Status == orders.StatusApproved {
		pub = s.ApprovedEvents
		eventType = orders.EventPaymentApproved
	}
	if pub == nil {
		return
	}

	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.PaymentSettledPayload{
			OrderID:     o.ID,
			Reference:   res.Reference,
			AmountCents: o.AmountCents,
			Currency:    o.Currency,
			Status:      o.Status,
		}),
	}
	pub.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
