package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/tantawy/erp/internal/errs"
	"github.com/tantawy/erp/internal/service/invoice"
)

// postInvoicesBatch handles POST /v1/invoices/batch.
// All-or-nothing: every item is validated first (all failures collected),
// then all items are written in one unit of work. A runtime failure on any
// item voids the whole batch and reports the failed index.
func (s *Server) postInvoicesBatch(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}
	var req batchRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if len(req.Invoices) == 0 {
		badRequest(w, "invoices is required")
		return
	}

	actor := actorFrom(r)
	ins := make([]invoice.Input, 0, len(req.Invoices))
	for _, item := range req.Invoices {
		ins = append(ins, item.toInput(actor))
	}

	created, verrs, err := s.svc.CreateInvoicesBatch(r.Context(), ins)
	if err != nil {
		if errors.Is(err, errs.ErrBatchTooLarge) {
			badRequest(w, "batch exceeds the maximum of "+strconv.Itoa(invoice.MaxBatchSize)+" invoices")
			return
		}
		var berr *errs.BatchItemError
		if errors.As(err, &berr) {
			toJSON(w, http.StatusInternalServerError, struct {
				Error       string `json:"error"`
				FailedIndex int    `json:"failedIndex"`
			}{
				Error:       "error processing batch: " + berr.Err.Error() + " (no invoices were persisted)",
				FailedIndex: berr.Index,
			})
			return
		}
		writeCreateError(w, err)
		return
	}
	if len(verrs) > 0 {
		items := make([]batchErrorItem, 0, len(verrs))
		for _, ve := range verrs {
			items = append(items, batchErrorItem{Index: ve.Index, Error: ve.Err.Error()})
		}
		toJSON(w, http.StatusUnprocessableEntity, struct {
			Errors []batchErrorItem `json:"errors"`
		}{Errors: items})
		return
	}

	resp := batchResponse{
		Count:    len(created),
		TotalNet: decimal.Zero,
		Invoices: make([]batchInvoiceSummary, 0, len(created)),
	}
	for _, inv := range created {
		invoicesPostedTotal.WithLabelValues(inv.Type.String()).Inc()
		resp.TotalNet = resp.TotalNet.Add(inv.NetTotal)
		resp.Invoices = append(resp.Invoices, batchInvoiceSummary{
			InvoiceID:   inv.ID,
			InvoiceType: inv.Type.String(),
			NetTotal:    inv.NetTotal,
			PartyName:   s.partyName(r.Context(), inv.PartyID),
		})
	}
	toJSON(w, http.StatusCreated, resp)
}
