package domain

import (
	"time"
)

// DateUnknown is the sentinel stored when OCR could not recover a
// transaction date for the receipt.
const DateUnknown = "Unknown"

// RawItem is a single line extracted by OCR, before categorization.
// It only lives within one pipeline run.
type RawItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// OCRResult is the normalized output of the receipt OCR service.
// TransactionDate is YYYY-MM-DD, or empty when the service did not
// return a usable date.
type OCRResult struct {
	Items           []RawItem `json:"items"`
	TransactionDate string    `json:"transaction_date,omitempty"`
}

// ReceiptItem is a categorized line on a persisted receipt.
type ReceiptItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Category string  `json:"category"`
}

// Receipt is one persisted shopping transaction. ID is assigned by the
// store at first save; Date is ISO (YYYY-MM-DD) or DateUnknown. Merchant
// and Total may be empty/zero when categorization fell back to raw OCR
// output.
type Receipt struct {
	ID        string        `json:"id"`
	Merchant  string        `json:"merchant,omitempty"`
	Total     float64       `json:"total"`
	Date      string        `json:"date"`
	Items     []ReceiptItem `json:"items"`
	CreatedAt time.Time     `json:"created_at"`
}

// NewReceipt creates an empty receipt with a non-nil item list.
func NewReceipt() *Receipt {
	return &Receipt{
		Items: make([]ReceiptItem, 0),
	}
}

// AddItem appends an item to the receipt.
func (r *Receipt) AddItem(item ReceiptItem) {
	r.Items = append(r.Items, item)
}

// ItemTotal sums the item prices. It is not necessarily equal to Total:
// Total comes from the categorizer (or is absent after a fallback).
func (r *Receipt) ItemTotal() float64 {
	var sum float64
	for _, item := range r.Items {
		sum += item.Price
	}
	return sum
}

// SpendSummary is the derived aggregate over all persisted receipts.
// PerCategory carries every configured category, 0.0 when unspent.
// It is recomputed on demand and never stored.
type SpendSummary struct {
	TotalReceipts int                `json:"totalReceipts"`
	PerCategory   map[string]float64 `json:"perCategory"`
}

// CategorySpend is one row of the spending-by-category export.
type CategorySpend struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

// ReceiptFilter holds optional filters for listing receipts.
type ReceiptFilter struct {
	Date  string
	Limit int
}
