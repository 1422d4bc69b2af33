package invoice

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tantawy/erp/internal/erp"
	"github.com/tantawy/erp/internal/errs"
)

// reconcile recomputes the original invoice's return status from the full set
// of non-deleted returns linked to it. Lines match by item identity, not line
// id, since a return may re-sequence items. The recomputation makes the
// update idempotent: re-running against the same return set yields the same
// status. When no returns exist at all the status is left untouched.
func reconcile(ctx context.Context, tx Tx, originalID uuid.UUID) error {
	returns, err := tx.ReturnsByOriginal(ctx, originalID)
	if err != nil {
		return err
	}
	if len(returns) == 0 {
		return nil
	}

	origLines, err := tx.LinesByInvoice(ctx, originalID)
	if err != nil {
		return err
	}

	returned := make(map[uuid.UUID]decimal.Decimal)
	for _, ret := range returns {
		lines, err := tx.LinesByInvoice(ctx, ret.ID)
		if err != nil {
			return err
		}
		for _, ln := range lines {
			returned[ln.ItemID] = returned[ln.ItemID].Add(ln.Quantity)
		}
	}

	anyReturned := false
	allFullyReturned := true
	for _, ln := range origLines {
		q := returned[ln.ItemID]
		if q.IsPositive() {
			anyReturned = true
		}
		if q.LessThan(ln.Quantity) {
			allFullyReturned = false
		}
	}

	status := erp.NotReturned
	switch {
	case allFullyReturned && anyReturned:
		status = erp.FullyReturned
	case anyReturned:
		status = erp.PartiallyReturned
	}
	return tx.UpdateReturnStatus(ctx, originalID, status)
}

// ReturnableLine reports, for one item of an original invoice, how much has
// been returned so far and how much still can be.
type ReturnableLine struct {
	ItemID     uuid.UUID
	ItemName   string
	Original   decimal.Decimal
	Returned   decimal.Decimal
	Returnable decimal.Decimal
	Price      decimal.Decimal
}

// AvailableReturns lists the items of an original invoice that still have
// returnable quantity, aggregating returned quantities across all linked
// return invoices.
func (s *Service) AvailableReturns(ctx context.Context, originalID uuid.UUID) ([]ReturnableLine, error) {
	if _, err := s.repo.InvoiceByID(ctx, originalID); err != nil {
		return nil, err
	}
	origLines, err := s.repo.LinesByInvoice(ctx, originalID)
	if err != nil {
		return nil, err
	}
	returns, err := s.repo.ReturnsByOriginal(ctx, originalID)
	if err != nil {
		return nil, err
	}

	returned := make(map[uuid.UUID]decimal.Decimal)
	for _, ret := range returns {
		lines, err := s.repo.LinesByInvoice(ctx, ret.ID)
		if err != nil {
			return nil, err
		}
		for _, ln := range lines {
			returned[ln.ItemID] = returned[ln.ItemID].Add(ln.Quantity)
		}
	}

	itemIDs := make([]uuid.UUID, 0, len(origLines))
	for _, ln := range origLines {
		itemIDs = append(itemIDs, ln.ItemID)
	}
	items, err := s.repo.ItemsByIDs(ctx, itemIDs)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	out := make([]ReturnableLine, 0, len(origLines))
	for _, ln := range origLines {
		avail := ln.Quantity.Sub(returned[ln.ItemID])
		if !avail.IsPositive() {
			continue
		}
		rl := ReturnableLine{
			ItemID:     ln.ItemID,
			Original:   ln.Quantity,
			Returned:   returned[ln.ItemID],
			Returnable: avail,
			Price:      ln.Price,
		}
		if it, ok := items[ln.ItemID]; ok {
			rl.ItemName = it.Name
		}
		out = append(out, rl)
	}
	return out, nil
}
