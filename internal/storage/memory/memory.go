// Package memory provides a simple in-memory implementation used for
// development and tests. Writes go through a staging transaction so the
// atomicity of the posting sequence can be exercised without a database.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/tantawy/erp/internal/erp"
	"github.com/tantawy/erp/internal/errs"
	"github.com/tantawy/erp/internal/service/invoice"
)

// Store is an in-memory implementation of the repository and unit-of-work
// interfaces used by the service and API layers. Guarded by an RWMutex.
type Store struct {
	mu       sync.RWMutex
	parties  map[uuid.UUID]erp.Party
	stores   map[uuid.UUID]erp.Store
	items    map[uuid.UUID]erp.Item
	agents   map[uuid.UUID]erp.Agent
	accounts map[uuid.UUID]erp.Account
	invoices map[uuid.UUID]erp.Invoice
	// lines and transactions are indexed by owning invoice
	lines map[uuid.UUID][]erp.InvoiceLine
	txs   map[uuid.UUID][]erp.Transaction
	// creation order of invoices, for deterministic listing
	invoiceOrder []uuid.UUID
}

// New constructs an empty in-memory store.
func New() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.parties = make(map[uuid.UUID]erp.Party)
	s.stores = make(map[uuid.UUID]erp.Store)
	s.items = make(map[uuid.UUID]erp.Item)
	s.agents = make(map[uuid.UUID]erp.Agent)
	s.accounts = make(map[uuid.UUID]erp.Account)
	s.invoices = make(map[uuid.UUID]erp.Invoice)
	s.lines = make(map[uuid.UUID][]erp.InvoiceLine)
	s.txs = make(map[uuid.UUID][]erp.Transaction)
	s.invoiceOrder = nil
}

// Reset clears all state. Test helper.
func (s *Store) Reset() { s.mu.Lock(); s.reset(); s.mu.Unlock() }

// Seed helpers for local dev/tests.
func (s *Store) SeedParty(p erp.Party)     { s.mu.Lock(); s.parties[p.ID] = p; s.mu.Unlock() }
func (s *Store) SeedStore(st erp.Store)    { s.mu.Lock(); s.stores[st.ID] = st; s.mu.Unlock() }
func (s *Store) SeedItem(it erp.Item)      { s.mu.Lock(); s.items[it.ID] = it; s.mu.Unlock() }
func (s *Store) SeedAgent(a erp.Agent)     { s.mu.Lock(); s.agents[a.ID] = a; s.mu.Unlock() }
func (s *Store) SeedAccount(a erp.Account) { s.mu.Lock(); s.accounts[a.ID] = a; s.mu.Unlock() }

// RemoveAccount deletes an account row outright. Test helper for simulating
// a broken chart configuration.
func (s *Store) RemoveAccount(id uuid.UUID) { s.mu.Lock(); delete(s.accounts, id); s.mu.Unlock() }

// Ready always succeeds; the memory backend has no connection to verify.
func (s *Store) Ready(context.Context) error { return nil }

// --- Reads (soft-deleted rows are invisible) ---

// PartyByID implements invoice.Repo.
func (s *Store) PartyByID(_ context.Context, id uuid.UUID) (erp.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parties[id]
	if !ok || p.Deleted {
		return erp.Party{}, errs.ErrNotFound
	}
	return p, nil
}

// StoreByID implements invoice.Repo.
func (s *Store) StoreByID(_ context.Context, id uuid.UUID) (erp.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stores[id]
	if !ok || st.Deleted {
		return erp.Store{}, errs.ErrNotFound
	}
	return st, nil
}

// ItemsByIDs implements invoice.Repo. Unknown or deleted IDs are simply
// absent from the result map.
func (s *Store) ItemsByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]erp.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]erp.Item, len(ids))
	for _, id := range ids {
		if it, ok := s.items[id]; ok && !it.Deleted {
			out[id] = it
		}
	}
	return out, nil
}

// AccountsByIDs returns the requested non-deleted account rows.
func (s *Store) AccountsByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]erp.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountsByIDsLocked(ids), nil
}

func (s *Store) accountsByIDsLocked(ids []uuid.UUID) map[uuid.UUID]erp.Account {
	out := make(map[uuid.UUID]erp.Account, len(ids))
	for _, id := range ids {
		if a, ok := s.accounts[id]; ok && !a.Deleted {
			out[id] = a
		}
	}
	return out
}

// InvoiceByID implements invoice.Repo.
func (s *Store) InvoiceByID(_ context.Context, id uuid.UUID) (erp.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[id]
	if !ok || inv.Deleted {
		return erp.Invoice{}, errs.ErrNotFound
	}
	return inv, nil
}

// LinesByInvoice returns the non-deleted lines of an invoice.
func (s *Store) LinesByInvoice(_ context.Context, invoiceID uuid.UUID) ([]erp.InvoiceLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.linesByInvoiceLocked(invoiceID), nil
}

func (s *Store) linesByInvoiceLocked(invoiceID uuid.UUID) []erp.InvoiceLine {
	src := s.lines[invoiceID]
	out := make([]erp.InvoiceLine, 0, len(src))
	for _, ln := range src {
		if !ln.Deleted {
			out = append(out, ln)
		}
	}
	return out
}

// ReturnsByOriginal returns the non-deleted return invoices linked to an
// original invoice.
func (s *Store) ReturnsByOriginal(_ context.Context, originalID uuid.UUID) ([]erp.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.returnsByOriginalLocked(originalID), nil
}

func (s *Store) returnsByOriginalLocked(originalID uuid.UUID) []erp.Invoice {
	out := make([]erp.Invoice, 0)
	for _, id := range s.invoiceOrder {
		inv := s.invoices[id]
		if inv.Deleted || inv.OriginalInvoiceID == nil || *inv.OriginalInvoiceID != originalID {
			continue
		}
		out = append(out, inv)
	}
	return out
}

// TransactionsByInvoice returns the non-deleted ledger postings of an invoice.
func (s *Store) TransactionsByInvoice(_ context.Context, invoiceID uuid.UUID) ([]erp.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.txs[invoiceID]
	out := make([]erp.Transaction, 0, len(src))
	for _, t := range src {
		if !t.Deleted {
			out = append(out, t)
		}
	}
	return out, nil
}

// InvoicesByType returns one page of non-deleted invoices of a type in
// creation order, plus the total count.
func (s *Store) InvoicesByType(_ context.Context, t erp.InvoiceType, limit, offset int) ([]erp.Invoice, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]erp.Invoice, 0)
	for _, id := range s.invoiceOrder {
		inv := s.invoices[id]
		if inv.Deleted || inv.Type != t {
			continue
		}
		all = append(all, inv)
	}
	total := len(all)
	if offset >= total {
		return []erp.Invoice{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// AccountByID returns a single non-deleted account row.
func (s *Store) AccountByID(_ context.Context, id uuid.UUID) (erp.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok || a.Deleted {
		return erp.Account{}, errs.ErrNotFound
	}
	return a, nil
}

// --- Unit of work ---

// Begin implements invoice.DB. The returned transaction stages writes and
// applies them under a single lock on Commit; its reads merge committed and
// staged state so reconciliation observes the return it runs for.
func (s *Store) Begin(context.Context) (invoice.Tx, error) {
	return &Tx{
		store:    s,
		lines:    make(map[uuid.UUID][]erp.InvoiceLine),
		txs:      make(map[uuid.UUID][]erp.Transaction),
		statuses: make(map[uuid.UUID]erp.ReturnStatus),
	}, nil
}

// Tx stages one atomic write sequence against the memory store.
type Tx struct {
	store    *Store
	done     bool
	invoices []erp.Invoice
	lines    map[uuid.UUID][]erp.InvoiceLine
	txs      map[uuid.UUID][]erp.Transaction
	statuses map[uuid.UUID]erp.ReturnStatus
}

// CreateInvoice stages an invoice master row.
func (t *Tx) CreateInvoice(_ context.Context, inv erp.Invoice) error {
	t.invoices = append(t.invoices, inv)
	return nil
}

// CreateLines stages invoice line rows.
func (t *Tx) CreateLines(_ context.Context, lines []erp.InvoiceLine) error {
	for _, ln := range lines {
		t.lines[ln.InvoiceID] = append(t.lines[ln.InvoiceID], ln)
	}
	return nil
}

// CreateTransactions stages ledger postings.
func (t *Tx) CreateTransactions(_ context.Context, txs []erp.Transaction) error {
	for _, tr := range txs {
		if tr.InvoiceID != nil {
			t.txs[*tr.InvoiceID] = append(t.txs[*tr.InvoiceID], tr)
		}
	}
	return nil
}

// UpdateReturnStatus stages the derived status of an original invoice.
func (t *Tx) UpdateReturnStatus(_ context.Context, invoiceID uuid.UUID, status erp.ReturnStatus) error {
	t.statuses[invoiceID] = status
	return nil
}

// LinesByInvoice merges committed and staged lines.
func (t *Tx) LinesByInvoice(_ context.Context, invoiceID uuid.UUID) ([]erp.InvoiceLine, error) {
	t.store.mu.RLock()
	out := t.store.linesByInvoiceLocked(invoiceID)
	t.store.mu.RUnlock()
	return append(out, t.lines[invoiceID]...), nil
}

// ReturnsByOriginal merges committed and staged return invoices.
func (t *Tx) ReturnsByOriginal(_ context.Context, originalID uuid.UUID) ([]erp.Invoice, error) {
	t.store.mu.RLock()
	out := t.store.returnsByOriginalLocked(originalID)
	t.store.mu.RUnlock()
	for _, inv := range t.invoices {
		if inv.OriginalInvoiceID != nil && *inv.OriginalInvoiceID == originalID {
			out = append(out, inv)
		}
	}
	return out, nil
}

// AccountsByIDs reads the committed account rows.
func (t *Tx) AccountsByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]erp.Account, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.accountsByIDsLocked(ids), nil
}

// Commit applies all staged writes under one lock.
func (t *Tx) Commit(context.Context) error {
	if t.done {
		return errs.ErrConflict
	}
	t.done = true
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range t.invoices {
		s.invoices[inv.ID] = inv
		s.invoiceOrder = append(s.invoiceOrder, inv.ID)
	}
	for id, lns := range t.lines {
		s.lines[id] = append(s.lines[id], lns...)
	}
	for id, trs := range t.txs {
		s.txs[id] = append(s.txs[id], trs...)
	}
	for id, status := range t.statuses {
		if inv, ok := s.invoices[id]; ok {
			inv.ReturnStatus = status
			s.invoices[id] = inv
		}
	}
	return nil
}

// Rollback discards the staged writes.
func (t *Tx) Rollback(context.Context) error {
	t.done = true
	t.invoices = nil
	t.lines = nil
	t.txs = nil
	t.statuses = nil
	return nil
}
