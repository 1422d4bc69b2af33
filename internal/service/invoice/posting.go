package invoice

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tantawy/erp/internal/erp"
	"github.com/tantawy/erp/internal/errs"
)

// post derives the ledger legs for a persisted invoice and writes them inside
// the current unit of work. The referenced account rows are looked up first;
// a missing row aborts the operation with a *errs.ConfigError rather than
// skipping the leg.
func (s *Service) post(ctx context.Context, tx Tx, inv erp.Invoice, now time.Time) error {
	txs := buildTransactions(inv, s.chart, now)

	ids := make([]uuid.UUID, 0, len(txs))
	seen := make(map[uuid.UUID]struct{}, len(txs))
	for _, t := range txs {
		if _, ok := seen[t.AccountID]; ok {
			continue
		}
		seen[t.AccountID] = struct{}{}
		ids = append(ids, t.AccountID)
	}
	accs, err := tx.AccountsByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := accs[id]; !ok {
			return &errs.ConfigError{AccountID: id}
		}
	}
	return tx.CreateTransactions(ctx, txs)
}

// buildTransactions computes the one or two ledger postings an invoice
// produces. The deferred (payable/receivable) leg is always present; the cash
// leg exists only for paid or partially paid invoices, carrying netTotal when
// fully paid and totalPaid otherwise. Signs follow the debit-positive
// convention:
//
//	type            deferred leg    cash leg
//	Purchase        +netTotal       -amount  (Payment)
//	Sale            -netTotal       +amount  (Receipt)
//	ReturnPurchase  -netTotal       +amount  (Receipt)
//	ReturnSale      +netTotal       -amount  (Payment)
func buildTransactions(inv erp.Invoice, chart erp.Chart, now time.Time) []erp.Transaction {
	invID := inv.ID
	base := erp.Transaction{
		InvoiceID: &invID,
		PartyID:   &inv.PartyID,
		AgentID:   inv.AgentID,
		Audit:     newAudit(inv.CreatedBy, now),
	}

	deferred := base
	deferred.ID = uuid.New()
	deferred.AccountID = chart.DeferredAccount(inv.Type)
	deferred.Amount = deferredAmount(inv.Type, inv.NetTotal)
	deferred.Type = erp.TxType(inv.Type)
	deferred.Notes = inv.Type.String() + " #" + inv.ID.String() + " - " + inv.Notes

	if inv.Status != erp.StatusPaid && inv.Status != erp.StatusPartiallyPaid {
		return []erp.Transaction{deferred}
	}

	amount := inv.NetTotal
	if inv.Status == erp.StatusPartiallyPaid {
		amount = inv.TotalPaid
	}
	cash := base
	cash.ID = uuid.New()
	cash.AccountID = chart.CashLegAccount(inv.PaymentType, inv.Type)
	cash.Amount = cashAmount(inv.Type, amount)
	cash.Type = cashLegType(inv.Type)
	cash.Notes = cashLegLabel(inv.Type) + " for " + inv.Type.String() + " #" + inv.ID.String()

	return []erp.Transaction{deferred, cash}
}

// deferredAmount encodes the net effect on what the business owes or is owed:
// positive when the obligation toward the business's counterpart grows in the
// vendor direction or shrinks in the customer direction.
func deferredAmount(t erp.InvoiceType, net decimal.Decimal) decimal.Decimal {
	switch t {
	case erp.InvoiceTypePurchase, erp.InvoiceTypeReturnSale:
		return net
	default: // Sale, ReturnPurchase
		return net.Neg()
	}
}

// cashAmount is positive when money flows into the business.
func cashAmount(t erp.InvoiceType, amount decimal.Decimal) decimal.Decimal {
	switch t {
	case erp.InvoiceTypeSale, erp.InvoiceTypeReturnPurchase:
		return amount
	default: // Purchase, ReturnSale
		return amount.Neg()
	}
}

func cashLegType(t erp.InvoiceType) erp.TxType {
	if t == erp.InvoiceTypeSale || t == erp.InvoiceTypeReturnPurchase {
		return erp.TxReceipt
	}
	return erp.TxPayment
}

func cashLegLabel(t erp.InvoiceType) string {
	if cashLegType(t) == erp.TxReceipt {
		return "Receipt"
	}
	return "Payment"
}
