package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tantawy/erp/internal/erp"
	"github.com/tantawy/erp/internal/errs"
)

// actorFrom resolves the acting user from the X-Actor-ID header. The auth
// layer in front of this service sets it; absent means a system action.
func actorFrom(r *http.Request) uuid.UUID {
	id, err := uuid.Parse(r.Header.Get("X-Actor-ID"))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// postInvoice handles POST /v1/invoices.
func (s *Server) postInvoice(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}
	var req createInvoiceRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}

	inv, err := s.svc.CreateInvoice(r.Context(), req.toInput(actorFrom(r)))
	if err != nil {
		writeCreateError(w, err)
		return
	}
	invoicesPostedTotal.WithLabelValues(inv.Type.String()).Inc()
	toJSON(w, http.StatusCreated, createInvoiceResponse{
		InvoiceID:   inv.ID,
		InvoiceType: inv.Type.String(),
	})
}

// getInvoice handles GET /v1/invoices/{id}: master, lines and postings.
func (s *Server) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid invoice id")
		return
	}
	ctx := r.Context()
	inv, err := s.reader.InvoiceByID(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		notFound(w)
		return
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	lines, err := s.reader.LinesByInvoice(ctx, id)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	txs, err := s.reader.TransactionsByInvoice(ctx, id)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	itemIDs := make([]uuid.UUID, 0, len(lines))
	for _, ln := range lines {
		itemIDs = append(itemIDs, ln.ItemID)
	}
	items, _ := s.reader.ItemsByIDs(ctx, itemIDs)

	resp := invoiceDetailResponse{
		Invoice:      toInvoiceResponse(inv, s.partyName(ctx, inv.PartyID)),
		Details:      make([]lineResponse, 0, len(lines)),
		Transactions: make([]transactionResponse, 0, len(txs)),
	}
	for _, ln := range lines {
		lr := lineResponse{ID: ln.ID, ItemID: ln.ItemID, Quantity: ln.Quantity, Price: ln.Price, Notes: ln.Notes}
		if it, ok := items[ln.ItemID]; ok {
			lr.ItemName = it.Name
		}
		resp.Details = append(resp.Details, lr)
	}
	for _, t := range txs {
		resp.Transactions = append(resp.Transactions, transactionResponse{
			ID: t.ID, AccountID: t.AccountID, Amount: t.Amount, Type: int(t.Type), Notes: t.Notes,
		})
	}
	toJSON(w, http.StatusOK, resp)
}

// listInvoices handles GET /v1/invoices?type=&page=&page_size=.
func (s *Server) listInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	typ, err := strconv.Atoi(q.Get("type"))
	if err != nil || !erp.InvoiceType(typ).Valid() {
		badRequest(w, "invalid invoice type: must be 1, 2, 3 or 4")
		return
	}
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	if pageSize < 1 || pageSize > 200 {
		pageSize = 20
	}

	ctx := r.Context()
	invs, total, err := s.reader.InvoicesByType(ctx, erp.InvoiceType(typ), pageSize, (page-1)*pageSize)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	resp := listInvoicesResponse{
		Invoices: make([]invoiceResponse, 0, len(invs)),
		Pagination: paginationResponse{
			Page:       page,
			PageSize:   pageSize,
			TotalCount: total,
			TotalPages: (total + pageSize - 1) / pageSize,
		},
	}
	for _, inv := range invs {
		resp.Invoices = append(resp.Invoices, toInvoiceResponse(inv, s.partyName(ctx, inv.PartyID)))
	}
	toJSON(w, http.StatusOK, resp)
}

// getReturnable handles GET /v1/invoices/{id}/returnable.
func (s *Server) getReturnable(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid invoice id")
		return
	}
	lines, err := s.svc.AvailableReturns(r.Context(), id)
	if errors.Is(err, errs.ErrNotFound) {
		notFound(w)
		return
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	resp := returnableResponse{InvoiceID: id, Items: make([]returnableItemResponse, 0, len(lines))}
	for _, ln := range lines {
		resp.Items = append(resp.Items, returnableItemResponse{
			ItemID:             ln.ItemID,
			ItemName:           ln.ItemName,
			OriginalQuantity:   ln.Original,
			TotalReturned:      ln.Returned,
			AvailableForReturn: ln.Returnable,
			Price:              ln.Price,
		})
	}
	toJSON(w, http.StatusOK, resp)
}

// partyName resolves a display name, tolerating missing parties.
func (s *Server) partyName(ctx context.Context, id uuid.UUID) string {
	p, err := s.reader.PartyByID(ctx, id)
	if err != nil {
		return ""
	}
	return p.Name
}
