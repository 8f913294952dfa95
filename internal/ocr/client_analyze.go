package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pocketai/receipt-service/internal/domain"
)

// Analyze submits image bytes to the prebuilt-receipt model and returns the
// normalized OCR result. The call is bounded by ctx and the configured
// client timeout; it blocks through the Azure analyze/poll cycle.
//
// An unrecognized document is not an error: the result simply carries an
// empty item list. Transport failures, non-2xx responses and failed analyze
// operations return an *OCRError.
func (c *Client) Analyze(ctx context.Context, imageData []byte) (*domain.OCRResult, error) {
	if c.endpoint == "" || c.apiKey == "" {
		return nil, &OCRError{
			Op:  "validate_configuration",
			Err: fmt.Errorf("Document Intelligence endpoint or key is not configured"),
		}
	}

	operationURL, err := c.submitAnalysis(ctx, imageData)
	if err != nil {
		return nil, err
	}

	result, err := c.pollResult(ctx, operationURL)
	if err != nil {
		return nil, err
	}

	return normalizeResult(result), nil
}

// submitAnalysis starts an analyze operation and returns the URL to poll.
func (c *Client) submitAnalysis(ctx context.Context, imageData []byte) (string, error) {
	url := fmt.Sprintf("%s/formrecognizer/documentModels/%s:analyze?api-version=%s",
		c.endpoint, c.modelID, c.apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(imageData))
	if err != nil {
		return "", &OCRError{
			Op:  "create_analyze_request",
			Err: fmt.Errorf("failed to create request: %w", err),
		}
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &OCRError{
			Op:  "send_analyze_request",
			Err: fmt.Errorf("failed to send request: %w", err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return "", &OCRError{
			Op:  "check_analyze_response",
			Err: fmt.Errorf("API error: %s - %s", resp.Status, string(body)),
		}
	}

	operationURL := resp.Header.Get("Operation-Location")
	if operationURL == "" {
		return "", &OCRError{
			Op:  "check_analyze_response",
			Err: fmt.Errorf("response is missing the Operation-Location header"),
		}
	}

	return operationURL, nil
}

// pollResult polls the analyze operation until it succeeds, fails, or ctx
// expires.
func (c *Client) pollResult(ctx context.Context, operationURL string) (*analyzeResult, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, &OCRError{
				Op:  "poll_analyze_result",
				Err: ctx.Err(),
			}
		case <-ticker.C:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
		if err != nil {
			return nil, &OCRError{
				Op:  "create_poll_request",
				Err: fmt.Errorf("failed to create request: %w", err),
			}
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, &OCRError{
				Op:  "send_poll_request",
				Err: fmt.Errorf("failed to poll operation: %w", err),
			}
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, &OCRError{
				Op:  "read_poll_response",
				Err: fmt.Errorf("failed to read response body: %w", err),
			}
		}

		if resp.StatusCode != http.StatusOK {
			return nil, &OCRError{
				Op:  "check_poll_response",
				Err: fmt.Errorf("API error: %s - %s", resp.Status, string(body)),
			}
		}

		var operation analyzeOperation
		if err := json.Unmarshal(body, &operation); err != nil {
			return nil, &OCRError{
				Op:  "parse_poll_response",
				Err: fmt.Errorf("failed to unmarshal response: %w", err),
			}
		}

		switch operation.Status {
		case "succeeded":
			return &operation.AnalyzeResult, nil
		case "failed":
			return nil, &OCRError{
				Op:  "check_operation_status",
				Err: fmt.Errorf("analyze operation failed: %s", operation.errorMessage()),
			}
		}
		// notStarted / running: keep polling
	}
}

// analyzeOperation is the polled operation envelope.
type analyzeOperation struct {
	Status        string        `json:"status"`
	AnalyzeResult analyzeResult `json:"analyzeResult"`
	Error         *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (o *analyzeOperation) errorMessage() string {
	if o.Error == nil {
		return "no error details"
	}
	return fmt.Sprintf("%s: %s", o.Error.Code, o.Error.Message)
}

type analyzeResult struct {
	Documents []analyzedDocument `json:"documents"`
}

type analyzedDocument struct {
	Fields map[string]documentField `json:"fields"`
}

// documentField is one node of the Document Intelligence field tree. Only
// the value kinds the receipt model produces are mapped.
type documentField struct {
	Type          string                   `json:"type"`
	ValueString   string                   `json:"valueString,omitempty"`
	ValueDate     string                   `json:"valueDate,omitempty"`
	ValueNumber   *float64                 `json:"valueNumber,omitempty"`
	ValueCurrency *currencyValue           `json:"valueCurrency,omitempty"`
	ValueArray    []documentField          `json:"valueArray,omitempty"`
	ValueObject   map[string]documentField `json:"valueObject,omitempty"`
	Content       string                   `json:"content,omitempty"`
}

type currencyValue struct {
	Amount float64 `json:"amount"`
}

// amount extracts a monetary value from a number or currency field.
func (f *documentField) amount() (float64, bool) {
	if f == nil {
		return 0, false
	}
	if f.ValueCurrency != nil {
		return f.ValueCurrency.Amount, true
	}
	if f.ValueNumber != nil {
		return *f.ValueNumber, true
	}
	return 0, false
}

// normalizeResult flattens the receipt field tree into the pipeline's
// minimal shape. Per-line resolution order is fixed: price comes from the
// unit-price field, then the total-price field, then 0.0; the name comes
// from the description field, then the literal "Unknown". A missing field
// never aborts the run.
func normalizeResult(result *analyzeResult) *domain.OCRResult {
	ocrResult := &domain.OCRResult{
		Items: []domain.RawItem{},
	}

	if result == nil || len(result.Documents) == 0 {
		return ocrResult
	}

	fields := result.Documents[0].Fields

	if dateField, ok := fields["TransactionDate"]; ok && dateField.ValueDate != "" {
		ocrResult.TransactionDate = dateField.ValueDate
	}

	itemsField, ok := fields["Items"]
	if !ok {
		return ocrResult
	}

	for _, entry := range itemsField.ValueArray {
		item := domain.RawItem{Name: "Unknown"}

		if desc, ok := entry.ValueObject["Description"]; ok && desc.ValueString != "" {
			item.Name = desc.ValueString
		}

		price := entry.ValueObject["Price"]
		if amount, ok := price.amount(); ok {
			item.Price = amount
		} else {
			total := entry.ValueObject["TotalPrice"]
			if amount, ok := total.amount(); ok {
				item.Price = amount
			}
		}

		ocrResult.Items = append(ocrResult.Items, item)
	}

	return ocrResult
}
