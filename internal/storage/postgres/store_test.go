package postgres

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tantawy/erp/internal/erp"
	"github.com/tantawy/erp/internal/errs"
	"github.com/tantawy/erp/internal/service/invoice"
)

func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres store tests")
	}
	return dsn
}

func mustOpen(t *testing.T, dsn string) *Store {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func applyInitSQL(t *testing.T, dsn string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open for init: %v", err)
	}
	defer s.Close()
	// Resolve init SQL path relative to this test file so CWD doesn't matter
	_, thisFile, _, _ := runtime.Caller(0)
	repoRoot := filepath.Clean(filepath.Join(filepath.Dir(thisFile), "../../../"))
	path := filepath.Join(repoRoot, "db", "migrations", "0001_init.sql")
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read init sql: %v", err)
	}
	// Exec may contain multiple statements; pgx supports this
	if _, err := s.pool.Exec(ctx, string(b)); err != nil {
		t.Fatalf("apply init sql: %v", err)
	}
}

func truncateAll(t *testing.T, dsn string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open for truncate: %v", err)
	}
	defer s.Close()
	_, _ = s.pool.Exec(ctx, `truncate table transactions, invoice_lines, invoices, accounts, items, agents, stores, parties cascade`)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func saleInput(seed SeedResult) invoice.Input {
	return invoice.Input{
		Type:        erp.InvoiceTypeSale,
		PartyID:     seed.Party.ID,
		StoreID:     seed.Store.ID,
		PaymentType: erp.PaymentTypeCash,
		Status:      erp.StatusPaid,
		NetTotal:    dec("100.00"),
		TotalPaid:   dec("100.00"),
		Lines: []invoice.LineInput{
			{ItemID: seed.Item.ID, Quantity: dec("10"), Price: dec("10.00")},
		},
	}
}

func TestStore_PostingRoundTrip(t *testing.T) {
	dsn := getTestDSN(t)
	applyInitSQL(t, dsn)
	truncateAll(t, dsn)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	s := mustOpen(t, dsn)
	defer s.Close()

	seed, err := s.SeedDev(ctx)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := invoice.New(s, s, seed.Chart)

	inv, err := svc.CreateInvoice(ctx, saleInput(seed))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.InvoiceByID(ctx, inv.ID)
	if err != nil {
		t.Fatalf("fetch invoice: %v", err)
	}
	if got.Type != erp.InvoiceTypeSale || !got.NetTotal.Equal(dec("100.00")) {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	lines, err := s.LinesByInvoice(ctx, inv.ID)
	if err != nil || len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d (err %v)", len(lines), err)
	}
	if !lines[0].Quantity.Equal(dec("10")) || !lines[0].Price.Equal(dec("10.00")) {
		t.Fatalf("line round trip mismatch: %+v", lines[0])
	}

	txs, err := s.TransactionsByInvoice(ctx, inv.ID)
	if err != nil || len(txs) != 2 {
		t.Fatalf("expected 2 postings, got %d (err %v)", len(txs), err)
	}
	var deferredOK, cashOK bool
	for _, tr := range txs {
		switch tr.AccountID {
		case seed.Chart.CustomerDeferred:
			deferredOK = tr.Amount.Equal(dec("-100.00"))
		case seed.Chart.Cash:
			cashOK = tr.Amount.Equal(dec("100.00")) && tr.Type == erp.TxReceipt
		}
	}
	if !deferredOK || !cashOK {
		t.Fatalf("unexpected postings: %+v", txs)
	}
}

func TestStore_ReturnReconciliation(t *testing.T) {
	dsn := getTestDSN(t)
	applyInitSQL(t, dsn)
	truncateAll(t, dsn)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	s := mustOpen(t, dsn)
	defer s.Close()

	seed, err := s.SeedDev(ctx)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := invoice.New(s, s, seed.Chart)

	orig, err := svc.CreateInvoice(ctx, saleInput(seed))
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	ret := saleInput(seed)
	ret.Type = erp.InvoiceTypeReturnSale
	ret.OriginalInvoiceID = &orig.ID
	ret.NetTotal = dec("40.00")
	ret.TotalPaid = dec("40.00")
	ret.Lines = []invoice.LineInput{{ItemID: seed.Item.ID, Quantity: dec("4"), Price: dec("10.00")}}
	if _, err := svc.CreateInvoice(ctx, ret); err != nil {
		t.Fatalf("create return: %v", err)
	}

	got, err := s.InvoiceByID(ctx, orig.ID)
	if err != nil {
		t.Fatalf("fetch original: %v", err)
	}
	if got.ReturnStatus != erp.PartiallyReturned {
		t.Fatalf("expected PartiallyReturned, got %v", got.ReturnStatus)
	}

	returns, err := s.ReturnsByOriginal(ctx, orig.ID)
	if err != nil || len(returns) != 1 {
		t.Fatalf("expected 1 linked return, got %d (err %v)", len(returns), err)
	}
}

func TestStore_RollbackLeavesNothing(t *testing.T) {
	dsn := getTestDSN(t)
	applyInitSQL(t, dsn)
	truncateAll(t, dsn)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	s := mustOpen(t, dsn)
	defer s.Close()

	seed, err := s.SeedDev(ctx)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := invoice.New(s, s, seed.Chart)

	// break the chart after validation would pass
	if _, err := s.pool.Exec(ctx, `delete from accounts where id = $1`, seed.Chart.Cash); err != nil {
		t.Fatalf("delete account: %v", err)
	}

	_, err = svc.CreateInvoice(ctx, saleInput(seed))
	var cerr *errs.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected config error, got %v", err)
	}

	invs, total, err := s.InvoicesByType(ctx, erp.InvoiceTypeSale, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 0 || len(invs) != 0 {
		t.Fatalf("expected no rows after rollback, got %d", total)
	}
}
