package httpapi

import (
	"context"

	"github.com/google/uuid"

	"github.com/tantawy/erp/internal/erp"
)

// Reader is the read surface the API needs beyond the posting service.
// Both storage backends satisfy it.
type Reader interface {
	InvoiceByID(ctx context.Context, id uuid.UUID) (erp.Invoice, error)
	LinesByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]erp.InvoiceLine, error)
	TransactionsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]erp.Transaction, error)
	InvoicesByType(ctx context.Context, t erp.InvoiceType, limit, offset int) ([]erp.Invoice, int, error)
	PartyByID(ctx context.Context, id uuid.UUID) (erp.Party, error)
	ItemsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]erp.Item, error)
}

// Readiness reports whether the storage backend is reachable.
type Readiness interface {
	Ready(ctx context.Context) error
}
