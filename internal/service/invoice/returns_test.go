package invoice_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tantawy/erp/internal/erp"
	"github.com/tantawy/erp/internal/service/invoice"
)

// createSale persists a paid cash sale of 10 x 10.00 and returns it.
func createSale(t *testing.T, f *fixture) erp.Invoice {
	t.Helper()
	inv, err := f.svc.CreateInvoice(context.Background(), f.saleInput())
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	return inv
}

// returnOf builds a return-sale input tied to orig, returning qty of the fixture item.
func (f *fixture) returnOf(orig erp.Invoice, qty, net string) invoice.Input {
	in := f.saleInput()
	in.Type = erp.InvoiceTypeReturnSale
	in.OriginalInvoiceID = &orig.ID
	in.NetTotal = dec(net)
	in.TotalPaid = dec(net)
	in.Lines = []invoice.LineInput{{ItemID: f.item.ID, Quantity: dec(qty), Price: dec("10.00")}}
	return in
}

func TestReconcile_FullReturn(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	orig := createSale(t, f)

	if _, err := f.svc.CreateInvoice(ctx, f.returnOf(orig, "10", "100.00")); err != nil {
		t.Fatalf("create return: %v", err)
	}
	got, err := f.store.InvoiceByID(ctx, orig.ID)
	if err != nil {
		t.Fatalf("fetch original: %v", err)
	}
	if got.ReturnStatus != erp.FullyReturned {
		t.Fatalf("expected FullyReturned, got %v", got.ReturnStatus)
	}
}

func TestReconcile_PartialThenFull(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	orig := createSale(t, f)

	if _, err := f.svc.CreateInvoice(ctx, f.returnOf(orig, "4", "40.00")); err != nil {
		t.Fatalf("first return: %v", err)
	}
	got, _ := f.store.InvoiceByID(ctx, orig.ID)
	if got.ReturnStatus != erp.PartiallyReturned {
		t.Fatalf("expected PartiallyReturned after 4 of 10, got %v", got.ReturnStatus)
	}

	if _, err := f.svc.CreateInvoice(ctx, f.returnOf(orig, "6", "60.00")); err != nil {
		t.Fatalf("second return: %v", err)
	}
	got, _ = f.store.InvoiceByID(ctx, orig.ID)
	if got.ReturnStatus != erp.FullyReturned {
		t.Fatalf("expected FullyReturned after 10 of 10, got %v", got.ReturnStatus)
	}
}

func TestReconcile_UntiedReturnTouchesNothing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	orig := createSale(t, f)

	// a return with no original link posts its own ledger legs but
	// reconciles nothing
	in := f.saleInput()
	in.Type = erp.InvoiceTypeReturnSale
	ret, err := f.svc.CreateInvoice(ctx, in)
	if err != nil {
		t.Fatalf("create untied return: %v", err)
	}
	txs, _ := f.store.TransactionsByInvoice(ctx, ret.ID)
	if len(txs) != 2 {
		t.Fatalf("untied return still posts its legs, got %d", len(txs))
	}
	got, _ := f.store.InvoiceByID(ctx, orig.ID)
	if got.ReturnStatus != erp.NotReturned {
		t.Fatalf("unrelated original must stay NotReturned, got %v", got.ReturnStatus)
	}
}

func TestReconcile_MatchesByItemAcrossReturns(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	otherItem := erp.Item{ID: uuid.New(), Name: "Gadget"}
	f.store.SeedItem(otherItem)

	// original with two items, 10 widgets and 5 gadgets
	in := f.saleInput()
	in.NetTotal = dec("150.00")
	in.TotalPaid = dec("150.00")
	in.Lines = []invoice.LineInput{
		{ItemID: f.item.ID, Quantity: dec("10"), Price: dec("10.00")},
		{ItemID: otherItem.ID, Quantity: dec("5"), Price: dec("10.00")},
	}
	orig, err := f.svc.CreateInvoice(ctx, in)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	// returning all widgets but no gadgets is partial
	if _, err := f.svc.CreateInvoice(ctx, f.returnOf(orig, "10", "100.00")); err != nil {
		t.Fatalf("return widgets: %v", err)
	}
	got, _ := f.store.InvoiceByID(ctx, orig.ID)
	if got.ReturnStatus != erp.PartiallyReturned {
		t.Fatalf("expected PartiallyReturned, got %v", got.ReturnStatus)
	}

	// returning the gadgets too completes it
	ret := f.returnOf(orig, "5", "50.00")
	ret.Lines[0].ItemID = otherItem.ID
	if _, err := f.svc.CreateInvoice(ctx, ret); err != nil {
		t.Fatalf("return gadgets: %v", err)
	}
	got, _ = f.store.InvoiceByID(ctx, orig.ID)
	if got.ReturnStatus != erp.FullyReturned {
		t.Fatalf("expected FullyReturned, got %v", got.ReturnStatus)
	}
}

func TestAvailableReturns(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	orig := createSale(t, f)

	lines, err := f.svc.AvailableReturns(ctx, orig.ID)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(lines) != 1 || !lines[0].Returnable.Equal(dec("10")) {
		t.Fatalf("expected 10 returnable before any return, got %+v", lines)
	}

	if _, err := f.svc.CreateInvoice(ctx, f.returnOf(orig, "4", "40.00")); err != nil {
		t.Fatalf("return: %v", err)
	}
	lines, err = f.svc.AvailableReturns(ctx, orig.ID)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 returnable line, got %d", len(lines))
	}
	if !lines[0].Returned.Equal(dec("4")) || !lines[0].Returnable.Equal(dec("6")) {
		t.Fatalf("expected 4 returned / 6 returnable, got %+v", lines[0])
	}
	if lines[0].ItemName != f.item.Name {
		t.Fatalf("expected item name %q, got %q", f.item.Name, lines[0].ItemName)
	}

	if _, err := f.svc.CreateInvoice(ctx, f.returnOf(orig, "6", "60.00")); err != nil {
		t.Fatalf("return: %v", err)
	}
	lines, err = f.svc.AvailableReturns(ctx, orig.ID)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("fully returned invoice must have no returnable lines, got %+v", lines)
	}
}

func TestAvailableReturns_QuantityPrecision(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	in := f.saleInput()
	in.NetTotal = dec("25.00")
	in.TotalPaid = dec("25.00")
	in.Lines = []invoice.LineInput{{ItemID: f.item.ID, Quantity: dec("2.500"), Price: dec("10.00")}}
	orig, err := f.svc.CreateInvoice(ctx, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.CreateInvoice(ctx, f.returnOf(orig, "1.250", "12.50")); err != nil {
		t.Fatalf("return: %v", err)
	}
	lines, err := f.svc.AvailableReturns(ctx, orig.ID)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(lines) != 1 || !lines[0].Returnable.Equal(decimal.RequireFromString("1.25")) {
		t.Fatalf("expected 1.25 returnable, got %+v", lines)
	}
	got, _ := f.store.InvoiceByID(ctx, orig.ID)
	if got.ReturnStatus != erp.PartiallyReturned {
		t.Fatalf("expected PartiallyReturned, got %v", got.ReturnStatus)
	}
}
