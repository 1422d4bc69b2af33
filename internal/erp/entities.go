package erp

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceType classifies a commercial document. Fixed at creation.
type InvoiceType int

const (
	InvoiceTypePurchase       InvoiceType = 1
	InvoiceTypeSale           InvoiceType = 2
	InvoiceTypeReturnPurchase InvoiceType = 3
	InvoiceTypeReturnSale     InvoiceType = 4
)

// String returns the display label used in API responses and notes.
func (t InvoiceType) String() string {
	switch t {
	case InvoiceTypePurchase:
		return "Purchase Invoice"
	case InvoiceTypeSale:
		return "Sales Invoice"
	case InvoiceTypeReturnPurchase:
		return "Return Purchase Invoice"
	case InvoiceTypeReturnSale:
		return "Return Sales Invoice"
	default:
		return "Unknown Invoice Type"
	}
}

// Valid reports whether t is one of the four known invoice types.
func (t InvoiceType) Valid() bool {
	return t >= InvoiceTypePurchase && t <= InvoiceTypeReturnSale
}

// IsReturn reports whether t is a return document.
func (t InvoiceType) IsReturn() bool {
	return t == InvoiceTypeReturnPurchase || t == InvoiceTypeReturnSale
}

// IsPurchaseSide reports whether the document faces a vendor rather than a customer.
func (t InvoiceType) IsPurchaseSide() bool {
	return t == InvoiceTypePurchase || t == InvoiceTypeReturnPurchase
}

// OriginalType returns the invoice type a return of type t must reference.
// Zero for non-return types.
func (t InvoiceType) OriginalType() InvoiceType {
	switch t {
	case InvoiceTypeReturnPurchase:
		return InvoiceTypePurchase
	case InvoiceTypeReturnSale:
		return InvoiceTypeSale
	default:
		return 0
	}
}

// PaymentType identifies how an invoice is settled.
type PaymentType int

const (
	PaymentTypeCash     PaymentType = 1
	PaymentTypeCard     PaymentType = 2
	PaymentTypeDeferred PaymentType = 3
)

// Valid reports whether p is a known payment type.
func (p PaymentType) Valid() bool {
	return p >= PaymentTypeCash && p <= PaymentTypeDeferred
}

// InvoiceStatus reflects the payment state captured at invoice creation.
type InvoiceStatus int

const (
	StatusPaid          InvoiceStatus = 0
	StatusUnpaid        InvoiceStatus = 1
	StatusPartiallyPaid InvoiceStatus = 2
)

// ReturnStatus is the aggregate state of how much of an original invoice's
// quantity has been returned. Derived by reconciliation, never set by callers.
type ReturnStatus int

const (
	NotReturned       ReturnStatus = 0
	PartiallyReturned ReturnStatus = 1
	FullyReturned     ReturnStatus = 2
)

func (r ReturnStatus) String() string {
	switch r {
	case PartiallyReturned:
		return "Partially Returned"
	case FullyReturned:
		return "Fully Returned"
	default:
		return "Not Returned"
	}
}

// TxType tags a ledger transaction. The deferred leg reuses the invoice-type
// values 1-4; the cash leg uses Receipt/Payment.
type TxType int

const (
	TxReceipt TxType = 1
	TxPayment TxType = 2
)

// PartyType classifies a commercial counterpart.
type PartyType int

const (
	PartyCustomer PartyType = 1
	PartyVendor   PartyType = 2
	PartyBoth     PartyType = 3
)

// Audit carries the creation/update/soft-delete lifecycle shared by all
// persisted records. A zero UUID means the actor is unknown (system).
type Audit struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
	CreatedBy uuid.UUID
	UpdatedBy uuid.UUID
	DeletedBy uuid.UUID
	Deleted   bool
}

// Party is a customer, vendor, or both. Referenced by invoices and
// transactions, never mutated by the posting engine.
type Party struct {
	ID    uuid.UUID
	Name  string
	Type  PartyType
	Phone string
	Notes string
	Audit
}

// Store is the stock location context of an invoice.
type Store struct {
	ID   uuid.UUID
	Name string
	Audit
}

// Item is a catalog entry referenced by invoice lines.
type Item struct {
	ID      uuid.UUID
	Name    string
	Barcode string
	Audit
}

// Agent is the optional field agent who originated an invoice.
type Agent struct {
	ID    uuid.UUID
	Name  string
	Phone string
	Audit
}

// Account is one of the fixed ledger buckets transactions reference.
// The posting engine only ever reads accounts.
type Account struct {
	ID   uuid.UUID
	Name string
	Code int64
	Audit
}

// Invoice is the master record of a commercial document.
type Invoice struct {
	ID                 uuid.UUID
	Type               InvoiceType
	PartyID            uuid.UUID
	StoreID            uuid.UUID
	AgentID            *uuid.UUID
	PaymentType        PaymentType
	Status             InvoiceStatus
	NetTotal           decimal.Decimal
	TotalPaid          decimal.Decimal
	DiscountAmount     decimal.Decimal
	DiscountPercentage decimal.Decimal
	TaxAmount          decimal.Decimal
	TaxPercentage      decimal.Decimal
	Notes              string
	// OriginalInvoiceID links a return to the invoice it reverses.
	OriginalInvoiceID *uuid.UUID
	// ReturnStatus is meaningful only on non-return invoices and is
	// overwritten by reconciliation whenever a linked return is posted.
	ReturnStatus ReturnStatus
	Audit
}

// InvoiceLine is one item position on an invoice. Quantity carries three
// fractional digits, price two.
type InvoiceLine struct {
	ID                 uuid.UUID
	InvoiceID          uuid.UUID
	ItemID             uuid.UUID
	StoreID            uuid.UUID
	Quantity           decimal.Decimal
	Price              decimal.Decimal
	DiscountAmount     decimal.Decimal
	DiscountPercentage decimal.Decimal
	TaxAmount          decimal.Decimal
	TaxPercentage      decimal.Decimal
	Notes              string
	Audit
}

// Transaction is an immutable ledger posting. Positive amounts are debits,
// negative amounts credits.
type Transaction struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	InvoiceID *uuid.UUID
	PartyID   *uuid.UUID
	AgentID   *uuid.UUID
	Amount    decimal.Decimal
	Type      TxType
	Notes     string
	Audit
}
