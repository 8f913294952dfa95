package model

// ReceiptResponse represents the response for a single receipt
type ReceiptResponse struct {
	ID        string                `json:"id"`
	Merchant  string                `json:"merchant"`
	Date      string                `json:"date"`
	Total     string                `json:"total"`
	Items     []ReceiptItemResponse `json:"items"`
	CreatedAt string                `json:"createdAt"`
}

// ReceiptItemResponse represents a single receipt item
type ReceiptItemResponse struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Category string `json:"category"`
}

// ReceiptsListResponse represents a list of stored receipts
type ReceiptsListResponse struct {
	Data  []ReceiptResponse `json:"data"`
	Count int               `json:"count"`
}

// SpendingByCategoryResponse represents spending totals per category
type SpendingByCategoryResponse struct {
	TotalReceipts int                     `json:"totalReceipts"`
	Categories    []CategorySpendResponse `json:"categories"`
}

// CategorySpendResponse represents the spend total for one category
type CategorySpendResponse struct {
	Category string `json:"category"`
	Total    string `json:"total"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail represents detailed error information
type ErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
