package invoice

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tantawy/erp/internal/erp"
	"github.com/tantawy/erp/internal/errs"
)

// MaxBatchSize caps CreateInvoicesBatch before any validation runs.
const MaxBatchSize = 100

// Repo defines the read-only lookups used by validation and the
// available-returns view. All reads exclude soft-deleted rows.
type Repo interface {
	PartyByID(ctx context.Context, id uuid.UUID) (erp.Party, error)
	StoreByID(ctx context.Context, id uuid.UUID) (erp.Store, error)
	ItemsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]erp.Item, error)
	InvoiceByID(ctx context.Context, id uuid.UUID) (erp.Invoice, error)
	LinesByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]erp.InvoiceLine, error)
	ReturnsByOriginal(ctx context.Context, originalID uuid.UUID) ([]erp.Invoice, error)
}

// DB opens the atomic unit of work the write sequence runs in.
type DB interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one atomic unit of work: master, lines, ledger transactions and the
// original invoice's return-status update commit or roll back together.
// Reads observe writes staged in the same unit.
type Tx interface {
	CreateInvoice(ctx context.Context, inv erp.Invoice) error
	CreateLines(ctx context.Context, lines []erp.InvoiceLine) error
	CreateTransactions(ctx context.Context, txs []erp.Transaction) error
	UpdateReturnStatus(ctx context.Context, invoiceID uuid.UUID, status erp.ReturnStatus) error
	LinesByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]erp.InvoiceLine, error)
	ReturnsByOriginal(ctx context.Context, originalID uuid.UUID) ([]erp.Invoice, error)
	AccountsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]erp.Account, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// LineInput is one proposed invoice line. Optional decimals default to zero.
type LineInput struct {
	ItemID             uuid.UUID
	Quantity           decimal.Decimal
	Price              decimal.Decimal
	Notes              string
	DiscountAmount     decimal.Decimal
	DiscountPercentage decimal.Decimal
	TaxAmount          decimal.Decimal
	TaxPercentage      decimal.Decimal
}

// Input is a proposed invoice: master fields plus line items, unpersisted.
type Input struct {
	Type               erp.InvoiceType
	PartyID            uuid.UUID
	StoreID            uuid.UUID
	AgentID            *uuid.UUID
	PaymentType        erp.PaymentType
	Status             erp.InvoiceStatus
	NetTotal           decimal.Decimal
	TotalPaid          decimal.Decimal
	DiscountAmount     decimal.Decimal
	DiscountPercentage decimal.Decimal
	TaxAmount          decimal.Decimal
	TaxPercentage      decimal.Decimal
	Notes              string
	OriginalInvoiceID  *uuid.UUID
	Lines              []LineInput
	// Actor is the user the created rows are audited to.
	Actor uuid.UUID
}

// Service validates, persists and posts invoices as single atomic operations.
type Service struct {
	repo  Repo
	db    DB
	chart erp.Chart
}

// New constructs the invoice service with an injected chart of accounts.
func New(repo Repo, db DB, chart erp.Chart) *Service {
	return &Service{repo: repo, db: db, chart: chart}
}

// Validate runs the pre-write checks in order, returning the first violation
// as a *errs.ValidationError. It performs reads only and never mutates state.
func (s *Service) Validate(ctx context.Context, in Input) error {
	// Required master fields. A zero value counts as missing, including a
	// zero netTotal; this preserves the legacy truthiness rule.
	if in.Type == 0 {
		return errs.Validation("missing required field: invoiceType")
	}
	if in.PartyID == uuid.Nil {
		return errs.Validation("missing required field: customerOrVendorID")
	}
	if in.StoreID == uuid.Nil {
		return errs.Validation("missing required field: storeId")
	}
	if in.PaymentType == 0 {
		return errs.Validation("missing required field: paymentType")
	}
	if in.NetTotal.IsZero() {
		return errs.Validation("missing required field: netTotal")
	}

	if !in.Type.Valid() {
		return errs.Validation("invalid invoice type: must be 1, 2, 3 or 4")
	}
	if !in.PaymentType.Valid() {
		return errs.Validation("invalid payment type: must be 1 (Cash), 2 (Card) or 3 (Deferred)")
	}

	if _, err := s.repo.PartyByID(ctx, in.PartyID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.Validation("customer/vendor not found")
		}
		return err
	}
	if _, err := s.repo.StoreByID(ctx, in.StoreID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.Validation("store not found")
		}
		return err
	}

	if len(in.Lines) == 0 {
		return errs.Validation("invoice must have at least one line item")
	}
	itemIDs := make([]uuid.UUID, 0, len(in.Lines))
	for _, ln := range in.Lines {
		if ln.ItemID == uuid.Nil || ln.Quantity.Sign() <= 0 || ln.Price.Sign() <= 0 {
			return errs.Validation("each line item must have item, quantity and price")
		}
		itemIDs = append(itemIDs, ln.ItemID)
	}
	items, err := s.repo.ItemsByIDs(ctx, itemIDs)
	if err != nil {
		return err
	}
	for _, id := range itemIDs {
		if _, ok := items[id]; !ok {
			return errs.Validation("item %s not found", id)
		}
	}

	// A return may be tied to its original invoice; when it is, the original
	// must exist and be of the matching non-return type. An untied return is
	// allowed and simply skips reconciliation.
	if in.Type.IsReturn() && in.OriginalInvoiceID != nil {
		orig, err := s.repo.InvoiceByID(ctx, *in.OriginalInvoiceID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return errs.Validation("original invoice not found")
			}
			return err
		}
		if orig.Type != in.Type.OriginalType() {
			return errs.Validation("return invoice type does not match the original invoice type")
		}
	}
	return nil
}

// CreateInvoice runs the full sequence: validate, then persist master, lines
// and ledger transactions and reconcile the original's return status inside
// one unit of work. Any failure after Begin rolls the whole unit back; no
// partial state is ever observable.
func (s *Service) CreateInvoice(ctx context.Context, in Input) (erp.Invoice, error) {
	if err := s.Validate(ctx, in); err != nil {
		return erp.Invoice{}, err
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return erp.Invoice{}, err
	}
	inv, err := s.writeOne(ctx, tx, in)
	if err != nil {
		_ = tx.Rollback(ctx)
		return erp.Invoice{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return erp.Invoice{}, err
	}
	return inv, nil
}

// CreateInvoicesBatch validates every item first, collecting all validation
// failures; only a fully valid batch opens a unit of work. Items are written
// sequentially in order and the first runtime failure voids the entire batch,
// reported as a *errs.BatchItemError naming the failed index.
func (s *Service) CreateInvoicesBatch(ctx context.Context, ins []Input) ([]erp.Invoice, []errs.BatchItemError, error) {
	if len(ins) == 0 {
		return nil, nil, errs.Validation("batch is empty")
	}
	if len(ins) > MaxBatchSize {
		return nil, nil, errs.ErrBatchTooLarge
	}

	var verrs []errs.BatchItemError
	for i, in := range ins {
		if err := s.Validate(ctx, in); err != nil {
			verrs = append(verrs, errs.BatchItemError{Index: i, Err: err})
		}
	}
	if len(verrs) > 0 {
		return nil, verrs, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	created := make([]erp.Invoice, 0, len(ins))
	for i, in := range ins {
		inv, err := s.writeOne(ctx, tx, in)
		if err != nil {
			_ = tx.Rollback(ctx)
			return nil, nil, &errs.BatchItemError{Index: i, Err: err}
		}
		created = append(created, inv)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return created, nil, nil
}

// writeOne performs the write sequence for a single validated invoice within
// an already-open unit of work: persist, post, and (for tied returns)
// reconcile. The caller owns commit/rollback.
func (s *Service) writeOne(ctx context.Context, tx Tx, in Input) (erp.Invoice, error) {
	now := time.Now().UTC()
	inv := buildInvoice(in, now)
	if err := tx.CreateInvoice(ctx, inv); err != nil {
		return erp.Invoice{}, err
	}
	if err := tx.CreateLines(ctx, buildLines(in, inv, now)); err != nil {
		return erp.Invoice{}, err
	}
	if err := s.post(ctx, tx, inv, now); err != nil {
		return erp.Invoice{}, err
	}
	if in.OriginalInvoiceID != nil {
		if err := reconcile(ctx, tx, *in.OriginalInvoiceID); err != nil {
			return erp.Invoice{}, err
		}
	}
	return inv, nil
}

// buildInvoice maps validated input onto the master record, rounding money to
// two fractional digits and defaulting absent optional amounts to zero.
func buildInvoice(in Input, now time.Time) erp.Invoice {
	return erp.Invoice{
		ID:                 uuid.New(),
		Type:               in.Type,
		PartyID:            in.PartyID,
		StoreID:            in.StoreID,
		AgentID:            in.AgentID,
		PaymentType:        in.PaymentType,
		Status:             in.Status,
		NetTotal:           in.NetTotal.Round(2),
		TotalPaid:          in.TotalPaid.Round(2),
		DiscountAmount:     in.DiscountAmount.Round(2),
		DiscountPercentage: in.DiscountPercentage.Round(2),
		TaxAmount:          in.TaxAmount.Round(2),
		TaxPercentage:      in.TaxPercentage.Round(2),
		Notes:              in.Notes,
		OriginalInvoiceID:  in.OriginalInvoiceID,
		ReturnStatus:       erp.NotReturned,
		Audit:              newAudit(in.Actor, now),
	}
}

// buildLines maps the line inputs, copying the invoice's store onto each line
// and rounding quantity to three fractional digits, money to two.
func buildLines(in Input, inv erp.Invoice, now time.Time) []erp.InvoiceLine {
	lines := make([]erp.InvoiceLine, 0, len(in.Lines))
	for _, ln := range in.Lines {
		lines = append(lines, erp.InvoiceLine{
			ID:                 uuid.New(),
			InvoiceID:          inv.ID,
			ItemID:             ln.ItemID,
			StoreID:            inv.StoreID,
			Quantity:           ln.Quantity.Round(3),
			Price:              ln.Price.Round(2),
			DiscountAmount:     ln.DiscountAmount.Round(2),
			DiscountPercentage: ln.DiscountPercentage.Round(2),
			TaxAmount:          ln.TaxAmount.Round(2),
			TaxPercentage:      ln.TaxPercentage.Round(2),
			Notes:              ln.Notes,
			Audit:              newAudit(in.Actor, now),
		})
	}
	return lines
}

func newAudit(actor uuid.UUID, now time.Time) erp.Audit {
	return erp.Audit{CreatedAt: now, UpdatedAt: now, CreatedBy: actor, UpdatedBy: actor}
}
