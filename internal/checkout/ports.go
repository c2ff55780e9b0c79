package checkout

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-checkout/internal/catalog"
	"github.com/ariefcatur/go-checkout/internal/orders"
	"github.com/ariefcatur/go-checkout/internal/wompi"
)

// TransactionStore is the persistence capability the checkout flow needs for
// orders. orders.Repo is the Postgres implementation.
type TransactionStore interface {
	Create(ctx context.Context, amountCents int, currency, email string, items []orders.ItemInput) (*orders.Order, error)
	FindByID(ctx context.Context, id string) (*orders.Order, error)
	UpdateStatus(ctx context.Context, id string, status orders.Status) (*orders.Order, error)
}

// ProductCatalog is the product read/write capability. catalog.Repo is the
// Postgres implementation.
type ProductCatalog interface {
	FindAll(ctx context.Context) ([]catalog.Product, error)
	FindManyByIDs(ctx context.Context, ids []string) ([]catalog.Product, error)
	FindByID(ctx context.Context, id string) (*catalog.Product, error)
	UpdateStock(ctx context.Context, id string, newStock int) error
	Seed(ctx context.Context, count int, withStock bool) ([]catalog.Product, error)
}

// PaymentGateway submits one payment attempt to the processor.
type PaymentGateway interface {
	SubmitPayment(ctx context.Context, o *orders.Order, method wompi.PaymentMethod) (*wompi.PaymentResult, error)
}

// EventPublisher matches kafka.Producer.Publish. Publishing is
// fire-and-forget; settlement never depends on it.
type EventPublisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}
