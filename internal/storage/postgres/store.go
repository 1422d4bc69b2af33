// Package postgres provides a pgx-backed storage implementation that
// satisfies the repository and unit-of-work interfaces used by the service
// and API layers.
//
// It is intentionally small and explicit. The schema lives under
// db/migrations. Decimal columns round-trip as text to keep full numeric
// precision.
package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tantawy/erp/internal/erp"
	"github.com/tantawy/erp/internal/errs"
	"github.com/tantawy/erp/internal/service/invoice"
)

// Store holds a pgx connection pool. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// querier is the read surface shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// --- Seed ---

// SeedResult reports what SeedDev created, including the resolved chart.
type SeedResult struct {
	Chart erp.Chart
	Party erp.Party
	Store erp.Store
	Item  erp.Item
}

// SeedDev inserts a demo party, store and item plus the four fixed accounts
// for quick local testing, and returns the chart pointing at them.
func (s *Store) SeedDev(ctx context.Context) (SeedResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return SeedResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	res := SeedResult{
		Party: erp.Party{ID: uuid.New(), Name: "Walk-in Customer", Type: erp.PartyBoth},
		Store: erp.Store{ID: uuid.New(), Name: "Main Store"},
		Item:  erp.Item{ID: uuid.New(), Name: "Demo Item"},
	}
	if _, err := tx.Exec(ctx, `insert into parties (id, name, type) values ($1,$2,$3)`,
		res.Party.ID, res.Party.Name, int(res.Party.Type)); err != nil {
		return SeedResult{}, err
	}
	if _, err := tx.Exec(ctx, `insert into stores (id, name) values ($1,$2)`,
		res.Store.ID, res.Store.Name); err != nil {
		return SeedResult{}, err
	}
	if _, err := tx.Exec(ctx, `insert into items (id, name) values ($1,$2)`,
		res.Item.ID, res.Item.Name); err != nil {
		return SeedResult{}, err
	}

	accounts := []struct {
		name string
		code int64
		dst  *uuid.UUID
	}{
		{"Cash", 35, &res.Chart.Cash},
		{"Card", 10, &res.Chart.Card},
		{"Vendors Deferred", 38, &res.Chart.VendorDeferred},
		{"Customers Deferred", 36, &res.Chart.CustomerDeferred},
	}
	for _, a := range accounts {
		id := uuid.New()
		if _, err := tx.Exec(ctx, `insert into accounts (id, name, code) values ($1,$2,$3)`,
			id, a.name, a.code); err != nil {
			return SeedResult{}, err
		}
		*a.dst = id
	}
	if err := tx.Commit(ctx); err != nil {
		return SeedResult{}, err
	}
	return res, nil
}

// --- Reads ---

// PartyByID implements invoice.Repo.
func (s *Store) PartyByID(ctx context.Context, id uuid.UUID) (erp.Party, error) {
	var p erp.Party
	var typ int16
	err := s.pool.QueryRow(ctx, `
		select id, name, type, phone, notes
		from parties
		where id = $1 and not is_deleted
	`, id).Scan(&p.ID, &p.Name, &typ, &p.Phone, &p.Notes)
	if errors.Is(err, pgx.ErrNoRows) {
		return erp.Party{}, errs.ErrNotFound
	}
	if err != nil {
		return erp.Party{}, err
	}
	p.Type = erp.PartyType(typ)
	return p, nil
}

// StoreByID implements invoice.Repo.
func (s *Store) StoreByID(ctx context.Context, id uuid.UUID) (erp.Store, error) {
	var st erp.Store
	err := s.pool.QueryRow(ctx, `
		select id, name from stores where id = $1 and not is_deleted
	`, id).Scan(&st.ID, &st.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return erp.Store{}, errs.ErrNotFound
	}
	if err != nil {
		return erp.Store{}, err
	}
	return st, nil
}

// ItemsByIDs implements invoice.Repo. Unknown or deleted IDs are absent from
// the result map.
func (s *Store) ItemsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]erp.Item, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]erp.Item{}, nil
	}
	rows, err := s.pool.Query(ctx, `
		select id, name, barcode from items where id = any($1) and not is_deleted
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]erp.Item)
	for rows.Next() {
		var it erp.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Barcode); err != nil {
			return nil, err
		}
		out[it.ID] = it
	}
	return out, rows.Err()
}

// AccountsByIDs returns the requested non-deleted account rows.
func (s *Store) AccountsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]erp.Account, error) {
	return accountsByIDs(ctx, s.pool, ids)
}

// AccountByID returns a single non-deleted account row.
func (s *Store) AccountByID(ctx context.Context, id uuid.UUID) (erp.Account, error) {
	accs, err := accountsByIDs(ctx, s.pool, []uuid.UUID{id})
	if err != nil {
		return erp.Account{}, err
	}
	a, ok := accs[id]
	if !ok {
		return erp.Account{}, errs.ErrNotFound
	}
	return a, nil
}

func accountsByIDs(ctx context.Context, q querier, ids []uuid.UUID) (map[uuid.UUID]erp.Account, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]erp.Account{}, nil
	}
	rows, err := q.Query(ctx, `
		select id, name, coalesce(code, 0) from accounts where id = any($1) and not is_deleted
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]erp.Account)
	for rows.Next() {
		var a erp.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Code); err != nil {
			return nil, err
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}

const invoiceColumns = `
	id, invoice_type, party_id, store_id, agent_id, payment_type, status,
	net_total::text, total_paid::text, discount_amount::text,
	discount_percentage::text, tax_amount::text, tax_percentage::text,
	notes, original_invoice_id, return_status, created_at, updated_at`

func scanInvoice(row pgx.Row) (erp.Invoice, error) {
	var inv erp.Invoice
	var typ, pay, status, retStatus int16
	var netTotal, totalPaid, discAmt, discPct, taxAmt, taxPct string
	err := row.Scan(&inv.ID, &typ, &inv.PartyID, &inv.StoreID, &inv.AgentID,
		&pay, &status, &netTotal, &totalPaid, &discAmt, &discPct, &taxAmt,
		&taxPct, &inv.Notes, &inv.OriginalInvoiceID, &retStatus,
		&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return erp.Invoice{}, err
	}
	inv.Type = erp.InvoiceType(typ)
	inv.PaymentType = erp.PaymentType(pay)
	inv.Status = erp.InvoiceStatus(status)
	inv.ReturnStatus = erp.ReturnStatus(retStatus)
	for _, f := range []struct {
		src string
		dst *decimal.Decimal
	}{
		{netTotal, &inv.NetTotal}, {totalPaid, &inv.TotalPaid},
		{discAmt, &inv.DiscountAmount}, {discPct, &inv.DiscountPercentage},
		{taxAmt, &inv.TaxAmount}, {taxPct, &inv.TaxPercentage},
	} {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return erp.Invoice{}, err
		}
		*f.dst = d
	}
	return inv, nil
}

// InvoiceByID implements invoice.Repo.
func (s *Store) InvoiceByID(ctx context.Context, id uuid.UUID) (erp.Invoice, error) {
	inv, err := scanInvoice(s.pool.QueryRow(ctx, `
		select `+invoiceColumns+` from invoices where id = $1 and not is_deleted
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return erp.Invoice{}, errs.ErrNotFound
	}
	return inv, err
}

// InvoicesByType returns one page of non-deleted invoices of a type in
// creation order, plus the total count.
func (s *Store) InvoicesByType(ctx context.Context, t erp.InvoiceType, limit, offset int) ([]erp.Invoice, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `
		select count(*) from invoices where invoice_type = $1 and not is_deleted
	`, int(t)).Scan(&total); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = total
	}
	rows, err := s.pool.Query(ctx, `
		select `+invoiceColumns+`
		from invoices
		where invoice_type = $1 and not is_deleted
		order by created_at asc, id asc
		limit $2 offset $3
	`, int(t), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]erp.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, inv)
	}
	return out, total, rows.Err()
}

func linesByInvoice(ctx context.Context, q querier, invoiceID uuid.UUID) ([]erp.InvoiceLine, error) {
	rows, err := q.Query(ctx, `
		select id, invoice_id, item_id, store_id, quantity::text, price::text,
		       discount_amount::text, discount_percentage::text,
		       tax_amount::text, tax_percentage::text, notes
		from invoice_lines
		where invoice_id = $1 and not is_deleted
		order by created_at asc, id asc
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]erp.InvoiceLine, 0)
	for rows.Next() {
		var ln erp.InvoiceLine
		var qty, price, discAmt, discPct, taxAmt, taxPct string
		if err := rows.Scan(&ln.ID, &ln.InvoiceID, &ln.ItemID, &ln.StoreID,
			&qty, &price, &discAmt, &discPct, &taxAmt, &taxPct, &ln.Notes); err != nil {
			return nil, err
		}
		for _, f := range []struct {
			src string
			dst *decimal.Decimal
		}{
			{qty, &ln.Quantity}, {price, &ln.Price},
			{discAmt, &ln.DiscountAmount}, {discPct, &ln.DiscountPercentage},
			{taxAmt, &ln.TaxAmount}, {taxPct, &ln.TaxPercentage},
		} {
			d, err := decimal.NewFromString(f.src)
			if err != nil {
				return nil, err
			}
			*f.dst = d
		}
		out = append(out, ln)
	}
	return out, rows.Err()
}

// LinesByInvoice returns the non-deleted lines of an invoice.
func (s *Store) LinesByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]erp.InvoiceLine, error) {
	return linesByInvoice(ctx, s.pool, invoiceID)
}

func returnsByOriginal(ctx context.Context, q querier, originalID uuid.UUID) ([]erp.Invoice, error) {
	rows, err := q.Query(ctx, `
		select `+invoiceColumns+`
		from invoices
		where original_invoice_id = $1 and not is_deleted
		order by created_at asc, id asc
	`, originalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]erp.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// ReturnsByOriginal returns the non-deleted return invoices linked to an
// original invoice.
func (s *Store) ReturnsByOriginal(ctx context.Context, originalID uuid.UUID) ([]erp.Invoice, error) {
	return returnsByOriginal(ctx, s.pool, originalID)
}

// TransactionsByInvoice returns the non-deleted ledger postings of an invoice.
func (s *Store) TransactionsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]erp.Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		select id, account_id, invoice_id, party_id, agent_id, amount::text, tx_type, notes, created_at
		from transactions
		where invoice_id = $1 and not is_deleted
		order by created_at asc, id asc
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]erp.Transaction, 0)
	for rows.Next() {
		var tr erp.Transaction
		var amount string
		var typ int16
		if err := rows.Scan(&tr.ID, &tr.AccountID, &tr.InvoiceID, &tr.PartyID,
			&tr.AgentID, &amount, &typ, &tr.Notes, &tr.CreatedAt); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, err
		}
		tr.Amount = d
		tr.Type = erp.TxType(typ)
		out = append(out, tr)
	}
	return out, rows.Err()
}

// --- Unit of work ---

// Begin implements invoice.DB by opening a database transaction. Reads inside
// the transaction observe its own writes, which reconciliation relies on.
func (s *Store) Begin(ctx context.Context) (invoice.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// Tx wraps a pgx.Tx and implements the unit-of-work interface.
type Tx struct {
	tx pgx.Tx
}

// CreateInvoice inserts the invoice master row.
func (t *Tx) CreateInvoice(ctx context.Context, inv erp.Invoice) error {
	_, err := t.tx.Exec(ctx, `
		insert into invoices (
			id, invoice_type, party_id, store_id, agent_id, payment_type,
			status, net_total, total_paid, discount_amount,
			discount_percentage, tax_amount, tax_percentage, notes,
			original_invoice_id, return_status, created_at, updated_at,
			created_by, updated_by
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`, inv.ID, int(inv.Type), inv.PartyID, inv.StoreID, inv.AgentID,
		int(inv.PaymentType), int(inv.Status), inv.NetTotal.String(),
		inv.TotalPaid.String(), inv.DiscountAmount.String(),
		inv.DiscountPercentage.String(), inv.TaxAmount.String(),
		inv.TaxPercentage.String(), inv.Notes, inv.OriginalInvoiceID,
		int(inv.ReturnStatus), inv.CreatedAt, inv.UpdatedAt,
		nilIfZero(inv.CreatedBy), nilIfZero(inv.UpdatedBy))
	return err
}

// CreateLines inserts the invoice line rows.
func (t *Tx) CreateLines(ctx context.Context, lines []erp.InvoiceLine) error {
	for _, ln := range lines {
		if _, err := t.tx.Exec(ctx, `
			insert into invoice_lines (
				id, invoice_id, item_id, store_id, quantity, price,
				discount_amount, discount_percentage, tax_amount,
				tax_percentage, notes, created_at, updated_at, created_by, updated_by
			) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		`, ln.ID, ln.InvoiceID, ln.ItemID, ln.StoreID, ln.Quantity.String(),
			ln.Price.String(), ln.DiscountAmount.String(),
			ln.DiscountPercentage.String(), ln.TaxAmount.String(),
			ln.TaxPercentage.String(), ln.Notes, ln.CreatedAt, ln.UpdatedAt,
			nilIfZero(ln.CreatedBy), nilIfZero(ln.UpdatedBy)); err != nil {
			return err
		}
	}
	return nil
}

// CreateTransactions inserts the ledger postings.
func (t *Tx) CreateTransactions(ctx context.Context, txs []erp.Transaction) error {
	for _, tr := range txs {
		if _, err := t.tx.Exec(ctx, `
			insert into transactions (
				id, account_id, invoice_id, party_id, agent_id, amount,
				tx_type, notes, created_at, updated_at, created_by, updated_by
			) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`, tr.ID, tr.AccountID, tr.InvoiceID, tr.PartyID, tr.AgentID,
			tr.Amount.String(), int(tr.Type), tr.Notes, tr.CreatedAt,
			tr.UpdatedAt, nilIfZero(tr.CreatedBy), nilIfZero(tr.UpdatedBy)); err != nil {
			return err
		}
	}
	return nil
}

// UpdateReturnStatus overwrites the derived status of an original invoice.
func (t *Tx) UpdateReturnStatus(ctx context.Context, invoiceID uuid.UUID, status erp.ReturnStatus) error {
	ct, err := t.tx.Exec(ctx, `
		update invoices set return_status = $1, updated_at = now()
		where id = $2 and not is_deleted
	`, int(status), invoiceID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// LinesByInvoice reads lines within the transaction.
func (t *Tx) LinesByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]erp.InvoiceLine, error) {
	return linesByInvoice(ctx, t.tx, invoiceID)
}

// ReturnsByOriginal reads linked returns within the transaction.
func (t *Tx) ReturnsByOriginal(ctx context.Context, originalID uuid.UUID) ([]erp.Invoice, error) {
	return returnsByOriginal(ctx, t.tx, originalID)
}

// AccountsByIDs reads account rows within the transaction.
func (t *Tx) AccountsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]erp.Account, error) {
	return accountsByIDs(ctx, t.tx, ids)
}

// Commit commits the unit of work.
func (t *Tx) Commit(ctx context.Context) error { return t.tx.Commit(ctx) }

// Rollback aborts the unit of work.
func (t *Tx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// nilIfZero maps the zero UUID to SQL null for audit columns.
func nilIfZero(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}
