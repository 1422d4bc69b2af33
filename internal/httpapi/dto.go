package httpapi

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tantawy/erp/internal/erp"
	"github.com/tantawy/erp/internal/service/invoice"
)

// invoiceMasterRequest carries the proposed master fields. Field names match
// the mobile app's existing payload.
type invoiceMasterRequest struct {
	InvoiceType        int             `json:"invoiceType"`
	CustomerOrVendorID uuid.UUID       `json:"customerOrVendorID"`
	StoreID            uuid.UUID       `json:"storeId"`
	AgentID            *uuid.UUID      `json:"agentID,omitempty"`
	PaymentType        int             `json:"paymentType"`
	Status             int             `json:"status"`
	NetTotal           decimal.Decimal `json:"netTotal"`
	TotalPaid          decimal.Decimal `json:"totalPaid"`
	DiscountAmount     decimal.Decimal `json:"discountAmount"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	TaxAmount          decimal.Decimal `json:"taxAmount"`
	TaxPercentage      decimal.Decimal `json:"taxPercentage"`
	Notes              string          `json:"notes"`
	OriginalInvoiceID  *uuid.UUID      `json:"originalInvoiceID,omitempty"`
}

type invoiceLineRequest struct {
	Item               uuid.UUID       `json:"item"`
	Quantity           decimal.Decimal `json:"quantity"`
	Price              decimal.Decimal `json:"price"`
	Notes              string          `json:"notes"`
	DiscountAmount     decimal.Decimal `json:"discountAmount"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	TaxAmount          decimal.Decimal `json:"taxAmount"`
	TaxPercentage      decimal.Decimal `json:"taxPercentage"`
}

type createInvoiceRequest struct {
	InvoiceMaster  invoiceMasterRequest `json:"invoiceMaster"`
	InvoiceDetails []invoiceLineRequest `json:"invoiceDetails"`
}

// toInput maps the wire request onto the service input.
func (req createInvoiceRequest) toInput(actor uuid.UUID) invoice.Input {
	m := req.InvoiceMaster
	lines := make([]invoice.LineInput, 0, len(req.InvoiceDetails))
	for _, ln := range req.InvoiceDetails {
		lines = append(lines, invoice.LineInput{
			ItemID:             ln.Item,
			Quantity:           ln.Quantity,
			Price:              ln.Price,
			Notes:              ln.Notes,
			DiscountAmount:     ln.DiscountAmount,
			DiscountPercentage: ln.DiscountPercentage,
			TaxAmount:          ln.TaxAmount,
			TaxPercentage:      ln.TaxPercentage,
		})
	}
	return invoice.Input{
		Type:               erp.InvoiceType(m.InvoiceType),
		PartyID:            m.CustomerOrVendorID,
		StoreID:            m.StoreID,
		AgentID:            m.AgentID,
		PaymentType:        erp.PaymentType(m.PaymentType),
		Status:             erp.InvoiceStatus(m.Status),
		NetTotal:           m.NetTotal,
		TotalPaid:          m.TotalPaid,
		DiscountAmount:     m.DiscountAmount,
		DiscountPercentage: m.DiscountPercentage,
		TaxAmount:          m.TaxAmount,
		TaxPercentage:      m.TaxPercentage,
		Notes:              m.Notes,
		OriginalInvoiceID:  m.OriginalInvoiceID,
		Lines:              lines,
		Actor:              actor,
	}
}

type createInvoiceResponse struct {
	InvoiceID   uuid.UUID `json:"invoiceId"`
	InvoiceType string    `json:"invoiceType"`
}

type batchRequest struct {
	Invoices []createInvoiceRequest `json:"invoices"`
}

type batchInvoiceSummary struct {
	InvoiceID   uuid.UUID       `json:"invoiceId"`
	InvoiceType string          `json:"invoiceType"`
	NetTotal    decimal.Decimal `json:"netTotal"`
	PartyName   string          `json:"partyName"`
}

type batchResponse struct {
	Count    int                   `json:"count"`
	TotalNet decimal.Decimal       `json:"totalNet"`
	Invoices []batchInvoiceSummary `json:"invoices"`
}

type batchErrorItem struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

type invoiceResponse struct {
	ID                 uuid.UUID       `json:"id"`
	InvoiceType        int             `json:"invoiceType"`
	InvoiceTypeName    string          `json:"invoiceTypeName"`
	CustomerOrVendorID uuid.UUID       `json:"customerOrVendorID"`
	PartyName          string          `json:"customerOrVendorName,omitempty"`
	StoreID            uuid.UUID       `json:"storeID"`
	AgentID            *uuid.UUID      `json:"agentID,omitempty"`
	PaymentType        int             `json:"paymentType"`
	Status             int             `json:"status"`
	ReturnStatus       int             `json:"returnStatus"`
	ReturnStatusName   string          `json:"returnStatusName"`
	NetTotal           decimal.Decimal `json:"netTotal"`
	TotalPaid          decimal.Decimal `json:"totalPaid"`
	DiscountAmount     decimal.Decimal `json:"discountAmount"`
	TaxAmount          decimal.Decimal `json:"taxAmount"`
	Notes              string          `json:"notes"`
	OriginalInvoiceID  *uuid.UUID      `json:"originalInvoiceID,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
}

func toInvoiceResponse(inv erp.Invoice, partyName string) invoiceResponse {
	return invoiceResponse{
		ID:                 inv.ID,
		InvoiceType:        int(inv.Type),
		InvoiceTypeName:    inv.Type.String(),
		CustomerOrVendorID: inv.PartyID,
		PartyName:          partyName,
		StoreID:            inv.StoreID,
		AgentID:            inv.AgentID,
		PaymentType:        int(inv.PaymentType),
		Status:             int(inv.Status),
		ReturnStatus:       int(inv.ReturnStatus),
		ReturnStatusName:   inv.ReturnStatus.String(),
		NetTotal:           inv.NetTotal,
		TotalPaid:          inv.TotalPaid,
		DiscountAmount:     inv.DiscountAmount,
		TaxAmount:          inv.TaxAmount,
		Notes:              inv.Notes,
		OriginalInvoiceID:  inv.OriginalInvoiceID,
		CreatedAt:          inv.CreatedAt,
	}
}

type lineResponse struct {
	ID       uuid.UUID       `json:"id"`
	ItemID   uuid.UUID       `json:"itemID"`
	ItemName string          `json:"itemName,omitempty"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Notes    string          `json:"notes"`
}

type transactionResponse struct {
	ID        uuid.UUID       `json:"id"`
	AccountID uuid.UUID       `json:"accountID"`
	Amount    decimal.Decimal `json:"amount"`
	Type      int             `json:"type"`
	Notes     string          `json:"notes"`
}

type invoiceDetailResponse struct {
	Invoice      invoiceResponse       `json:"invoice"`
	Details      []lineResponse        `json:"details"`
	Transactions []transactionResponse `json:"transactions"`
}

type paginationResponse struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

type listInvoicesResponse struct {
	Invoices   []invoiceResponse  `json:"invoices"`
	Pagination paginationResponse `json:"pagination"`
}

type returnableItemResponse struct {
	ItemID             uuid.UUID       `json:"itemId"`
	ItemName           string          `json:"itemName"`
	OriginalQuantity   decimal.Decimal `json:"originalQuantity"`
	TotalReturned      decimal.Decimal `json:"totalReturned"`
	AvailableForReturn decimal.Decimal `json:"availableForReturn"`
	Price              decimal.Decimal `json:"price"`
}

type returnableResponse struct {
	InvoiceID uuid.UUID                `json:"invoiceId"`
	Items     []returnableItemResponse `json:"items"`
}
