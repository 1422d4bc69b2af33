package erp

import (
	"errors"

	"github.com/google/uuid"
)

// Chart maps the payment routing of the posting engine onto the four fixed
// account rows. It is resolved once at startup (env or dev seed) and injected
// into the service; account IDs are never compiled in.
type Chart struct {
	Cash             uuid.UUID
	Card             uuid.UUID
	VendorDeferred   uuid.UUID
	CustomerDeferred uuid.UUID
}

// Validate rejects a chart with unset entries.
func (c Chart) Validate() error {
	if c.Cash == uuid.Nil || c.Card == uuid.Nil || c.VendorDeferred == uuid.Nil || c.CustomerDeferred == uuid.Nil {
		return errors.New("chart of accounts incomplete: cash, card, vendor_deferred and customer_deferred are all required")
	}
	return nil
}

// DeferredAccount returns the payable/receivable account for the invoice
// direction: vendors for purchase-side documents, customers for sale-side.
func (c Chart) DeferredAccount(t InvoiceType) uuid.UUID {
	if t.IsPurchaseSide() {
		return c.VendorDeferred
	}
	return c.CustomerDeferred
}

// CashLegAccount selects the account the conditional cash leg posts to.
// Deferred settlement routes to the direction's deferred account.
func (c Chart) CashLegAccount(p PaymentType, t InvoiceType) uuid.UUID {
	switch p {
	case PaymentTypeCash:
		return c.Cash
	case PaymentTypeCard:
		return c.Card
	default:
		return c.DeferredAccount(t)
	}
}

// AccountIDs returns the distinct accounts the chart references.
func (c Chart) AccountIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, 4)
	out := make([]uuid.UUID, 0, 4)
	for _, id := range []uuid.UUID{c.Cash, c.Card, c.VendorDeferred, c.CustomerDeferred} {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
