package invoice_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tantawy/erp/internal/erp"
	"github.com/tantawy/erp/internal/errs"
	"github.com/tantawy/erp/internal/service/invoice"
	"github.com/tantawy/erp/internal/storage/memory"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fixture struct {
	store *memory.Store
	svc   *invoice.Service
	chart erp.Chart
	party erp.Party
	shop  erp.Store
	item  erp.Item
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	chart := erp.Chart{Cash: uuid.New(), Card: uuid.New(), VendorDeferred: uuid.New(), CustomerDeferred: uuid.New()}
	store.SeedAccount(erp.Account{ID: chart.Cash, Name: "Cash", Code: 35})
	store.SeedAccount(erp.Account{ID: chart.Card, Name: "Card", Code: 10})
	store.SeedAccount(erp.Account{ID: chart.VendorDeferred, Name: "Vendors Deferred", Code: 38})
	store.SeedAccount(erp.Account{ID: chart.CustomerDeferred, Name: "Customers Deferred", Code: 36})
	party := erp.Party{ID: uuid.New(), Name: "Acme Trading", Type: erp.PartyBoth}
	shop := erp.Store{ID: uuid.New(), Name: "Main Store"}
	item := erp.Item{ID: uuid.New(), Name: "Widget"}
	store.SeedParty(party)
	store.SeedStore(shop)
	store.SeedItem(item)
	return &fixture{
		store: store,
		svc:   invoice.New(store, store, chart),
		chart: chart,
		party: party,
		shop:  shop,
		item:  item,
	}
}

// saleInput returns a valid paid cash sale for 10 x 10.00.
func (f *fixture) saleInput() invoice.Input {
	return invoice.Input{
		Type:        erp.InvoiceTypeSale,
		PartyID:     f.party.ID,
		StoreID:     f.shop.ID,
		PaymentType: erp.PaymentTypeCash,
		Status:      erp.StatusPaid,
		NetTotal:    dec("100.00"),
		TotalPaid:   dec("100.00"),
		Lines: []invoice.LineInput{
			{ItemID: f.item.ID, Quantity: dec("10"), Price: dec("10.00")},
		},
	}
}

func wantValidation(t *testing.T, err error, substr string) {
	t.Helper()
	var verr *errs.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(verr.Reason, substr) {
		t.Fatalf("expected reason containing %q, got %q", substr, verr.Reason)
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mut    func(*invoice.Input)
		substr string
	}{
		{"missing type", func(in *invoice.Input) { in.Type = 0 }, "invoiceType"},
		{"missing party", func(in *invoice.Input) { in.PartyID = uuid.Nil }, "customerOrVendorID"},
		{"missing store", func(in *invoice.Input) { in.StoreID = uuid.Nil }, "storeId"},
		{"missing payment type", func(in *invoice.Input) { in.PaymentType = 0 }, "paymentType"},
		{"zero net total", func(in *invoice.Input) { in.NetTotal = decimal.Zero }, "netTotal"},
		{"bad type", func(in *invoice.Input) { in.Type = 9 }, "invalid invoice type"},
		{"bad payment type", func(in *invoice.Input) { in.PaymentType = 7 }, "invalid payment type"},
		{"no lines", func(in *invoice.Input) { in.Lines = nil }, "at least one line"},
		{"zero quantity", func(in *invoice.Input) { in.Lines[0].Quantity = decimal.Zero }, "item, quantity and price"},
		{"negative price", func(in *invoice.Input) { in.Lines[0].Price = dec("-5") }, "item, quantity and price"},
		{"nil item", func(in *invoice.Input) { in.Lines[0].ItemID = uuid.Nil }, "item, quantity and price"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := f.saleInput()
			tc.mut(&in)
			wantValidation(t, f.svc.Validate(ctx, in), tc.substr)
		})
	}
}

func TestValidate_UnknownReferences(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	in := f.saleInput()
	in.PartyID = uuid.New()
	wantValidation(t, f.svc.Validate(ctx, in), "customer/vendor not found")

	in = f.saleInput()
	in.StoreID = uuid.New()
	wantValidation(t, f.svc.Validate(ctx, in), "store not found")

	in = f.saleInput()
	in.Lines[0].ItemID = uuid.New()
	wantValidation(t, f.svc.Validate(ctx, in), "not found")
}

func TestValidate_ReturnOriginalChecks(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	sale, err := f.svc.CreateInvoice(ctx, f.saleInput())
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	// original must exist
	missing := uuid.New()
	ret := f.saleInput()
	ret.Type = erp.InvoiceTypeReturnSale
	ret.OriginalInvoiceID = &missing
	wantValidation(t, f.svc.Validate(ctx, ret), "original invoice not found")

	// a return purchase cannot reference a sale
	ret = f.saleInput()
	ret.Type = erp.InvoiceTypeReturnPurchase
	ret.OriginalInvoiceID = &sale.ID
	wantValidation(t, f.svc.Validate(ctx, ret), "does not match")

	// the matching direction is fine
	ret = f.saleInput()
	ret.Type = erp.InvoiceTypeReturnSale
	ret.OriginalInvoiceID = &sale.ID
	if err := f.svc.Validate(ctx, ret); err != nil {
		t.Fatalf("expected valid return, got %v", err)
	}
}

func TestCreateInvoice_PersistsMasterLinesAndLegs(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	inv, err := f.svc.CreateInvoice(ctx, f.saleInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := f.store.InvoiceByID(ctx, inv.ID)
	if err != nil {
		t.Fatalf("fetch invoice: %v", err)
	}
	if got.Type != erp.InvoiceTypeSale || !got.NetTotal.Equal(dec("100.00")) {
		t.Fatalf("unexpected invoice: %+v", got)
	}
	if got.ReturnStatus != erp.NotReturned {
		t.Fatalf("new invoice must start NotReturned, got %v", got.ReturnStatus)
	}
	lines, err := f.store.LinesByInvoice(ctx, inv.ID)
	if err != nil || len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d (err %v)", len(lines), err)
	}
	if lines[0].StoreID != f.shop.ID {
		t.Fatalf("line must inherit the invoice store")
	}
	txs, err := f.store.TransactionsByInvoice(ctx, inv.ID)
	if err != nil || len(txs) != 2 {
		t.Fatalf("expected 2 ledger legs for a paid sale, got %d (err %v)", len(txs), err)
	}
}

func TestCreateInvoice_RollbackOnPostingFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// break the chart after validation would pass
	f.store.RemoveAccount(f.chart.Cash)

	_, err := f.svc.CreateInvoice(ctx, f.saleInput())
	var cerr *errs.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected config error, got %v", err)
	}
	if cerr.AccountID != f.chart.Cash {
		t.Fatalf("expected missing account %s, got %s", f.chart.Cash, cerr.AccountID)
	}

	// nothing was persisted
	invs, total, err := f.store.InvoicesByType(ctx, erp.InvoiceTypeSale, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 0 || len(invs) != 0 {
		t.Fatalf("expected empty store after rollback, got %d invoices", total)
	}
}

func TestCreateInvoicesBatch_CollectsValidationErrors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	good := f.saleInput()
	badParty := f.saleInput()
	badParty.PartyID = uuid.New()
	noLines := f.saleInput()
	noLines.Lines = nil

	_, verrs, err := f.svc.CreateInvoicesBatch(ctx, []invoice.Input{good, badParty, noLines})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(verrs) != 2 {
		t.Fatalf("expected 2 validation errors, got %d", len(verrs))
	}
	if verrs[0].Index != 1 || verrs[1].Index != 2 {
		t.Fatalf("unexpected indices: %+v", verrs)
	}

	// the valid item must not have been written either
	_, total, _ := f.store.InvoicesByType(ctx, erp.InvoiceTypeSale, 10, 0)
	if total != 0 {
		t.Fatalf("expected no writes on validation failure, got %d invoices", total)
	}
}

func TestCreateInvoicesBatch_AllOrNothing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first := f.saleInput()
	second := f.saleInput()
	second.PaymentType = erp.PaymentTypeCard

	// the second invoice's cash leg hits a missing account at write time
	f.store.RemoveAccount(f.chart.Card)

	_, verrs, err := f.svc.CreateInvoicesBatch(ctx, []invoice.Input{first, second})
	if len(verrs) != 0 {
		t.Fatalf("expected no validation errors, got %+v", verrs)
	}
	var berr *errs.BatchItemError
	if !errors.As(err, &berr) {
		t.Fatalf("expected batch item error, got %v", err)
	}
	if berr.Index != 1 {
		t.Fatalf("expected failure at index 1, got %d", berr.Index)
	}

	_, total, _ := f.store.InvoicesByType(ctx, erp.InvoiceTypeSale, 10, 0)
	if total != 0 {
		t.Fatalf("batch must be all-or-nothing, found %d invoices", total)
	}
}

func TestCreateInvoicesBatch_SizeCap(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ins := make([]invoice.Input, invoice.MaxBatchSize+1)
	for i := range ins {
		ins[i] = f.saleInput()
	}
	_, _, err := f.svc.CreateInvoicesBatch(ctx, ins)
	if !errors.Is(err, errs.ErrBatchTooLarge) {
		t.Fatalf("expected ErrBatchTooLarge, got %v", err)
	}

	_, _, err = f.svc.CreateInvoicesBatch(ctx, nil)
	wantValidation(t, err, "batch is empty")
}

func TestCreateInvoicesBatch_WritesAll(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ins := []invoice.Input{f.saleInput(), f.saleInput(), f.saleInput()}
	created, verrs, err := f.svc.CreateInvoicesBatch(ctx, ins)
	if err != nil || len(verrs) != 0 {
		t.Fatalf("batch: err=%v verrs=%+v", err, verrs)
	}
	if len(created) != 3 {
		t.Fatalf("expected 3 invoices, got %d", len(created))
	}
	_, total, _ := f.store.InvoicesByType(ctx, erp.InvoiceTypeSale, 10, 0)
	if total != 3 {
		t.Fatalf("expected 3 persisted invoices, got %d", total)
	}
}
