package categorizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/pocketai/receipt-service/internal/domain"
)

// ErrNoJSONBlock indicates a completion response with no extractable JSON.
var ErrNoJSONBlock = errors.New("no JSON block found in model response")

// fencedJSONPattern matches the first ```json fenced block in free text.
var fencedJSONPattern = regexp.MustCompile("```json\\s*(\\{[\\s\\S]*?\\})\\s*```")

// receiptDTO mirrors the JSON contract given to the model.
type receiptDTO struct {
	Merchant string  `json:"merchant"`
	Total    float64 `json:"total"`
	Items    []struct {
		Name     string  `json:"name"`
		Price    float64 `json:"price"`
		Category string  `json:"category"`
	} `json:"items"`
}

// ParseResponse extracts the first JSON block from a completion response
// and coerces it into a receipt. Item categories outside the configured set
// (including casing variants of set members, which are canonicalized) are
// replaced with the fallback category; negative prices are clamped to 0.
//
// The returned receipt has no id or date. Callers must treat merchant and
// total as optional.
func ParseResponse(content string, categories *domain.CategorySet) (*domain.Receipt, error) {
	blockJSON, err := extractJSONBlock(content)
	if err != nil {
		return nil, err
	}

	var dto receiptDTO
	if err := json.Unmarshal([]byte(blockJSON), &dto); err != nil {
		return nil, fmt.Errorf("failed to decode JSON block: %w", err)
	}

	receipt := domain.NewReceipt()
	receipt.Merchant = strings.TrimSpace(dto.Merchant)
	if dto.Total > 0 {
		receipt.Total = dto.Total
	}

	for _, item := range dto.Items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			name = "Unknown"
		}
		price := item.Price
		if price < 0 {
			price = 0
		}
		category, _ := categories.Normalize(item.Category)
		receipt.AddItem(domain.ReceiptItem{
			Name:     name,
			Price:    price,
			Category: category,
		})
	}

	return receipt, nil
}

// extractJSONBlock locates the JSON object embedded in free-form model
// output: the first ```json fenced block, or failing that the outermost
// brace pair.
func extractJSONBlock(content string) (string, error) {
	if match := fencedJSONPattern.FindStringSubmatch(content); len(match) > 1 {
		return match[1], nil
	}

	// Some models drop the fences but still emit a bare object.
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return "", ErrNoJSONBlock
	}

	return content[start : end+1], nil
}

// FallbackReceipt builds the uncategorized pass-through receipt used when
// categorization fails: the raw OCR items verbatim, each tagged with the
// fallback category, merchant and total absent. This is the guarantee that
// a parse failure never blocks persistence of the line items.
func FallbackReceipt(ocrResult *domain.OCRResult, categories *domain.CategorySet) *domain.Receipt {
	receipt := domain.NewReceipt()
	for _, raw := range ocrResult.Items {
		receipt.AddItem(domain.ReceiptItem{
			Name:     raw.Name,
			Price:    raw.Price,
			Category: categories.Fallback(),
		})
	}
	return receipt
}
