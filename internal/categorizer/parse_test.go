package categorizer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketai/receipt-service/internal/domain"
)

func testCategories() *domain.CategorySet {
	return domain.NewCategorySet(nil, "")
}

func TestParseResponse(t *testing.T) {
	t.Run("FencedJSONBlock", func(t *testing.T) {
		content := "Here is the extracted receipt:\n" +
			"```json\n" +
			`{"merchant": "SuperMart", "total": 9.98, "items": [` +
			`{"name": "Milk", "price": 3.99, "category": "Groceries"},` +
			`{"name": "Coffee", "price": 5.99, "category": "Beverage"}]}` + "\n" +
			"```\nLet me know if you need anything else."

		receipt, err := ParseResponse(content, testCategories())
		require.NoError(t, err)

		assert.Equal(t, "SuperMart", receipt.Merchant)
		assert.InDelta(t, 9.98, receipt.Total, 0.001)
		require.Len(t, receipt.Items, 2)
		assert.Equal(t, domain.ReceiptItem{Name: "Milk", Price: 3.99, Category: "Groceries"}, receipt.Items[0])
		assert.Equal(t, domain.ReceiptItem{Name: "Coffee", Price: 5.99, Category: "Beverage"}, receipt.Items[1])
	})

	t.Run("BareJSONWithoutFences", func(t *testing.T) {
		content := `{"merchant": "Corner Shop", "total": 2.50, "items": [{"name": "Soap", "price": 2.50, "category": "House Items"}]}`

		receipt, err := ParseResponse(content, testCategories())
		require.NoError(t, err)

		assert.Equal(t, "Corner Shop", receipt.Merchant)
		require.Len(t, receipt.Items, 1)
		assert.Equal(t, "House Items", receipt.Items[0].Category)
	})

	t.Run("CategoryCasingIsCanonicalized", func(t *testing.T) {
		content := "```json\n" +
			`{"items": [{"name": "Bus ticket", "price": 1.80, "category": "TRANSPORT"}]}` +
			"\n```"

		receipt, err := ParseResponse(content, testCategories())
		require.NoError(t, err)

		require.Len(t, receipt.Items, 1)
		assert.Equal(t, "Transport", receipt.Items[0].Category)
	})

	t.Run("UnknownCategoryFallsBack", func(t *testing.T) {
		content := "```json\n" +
			`{"items": [{"name": "Headphones", "price": 39.90, "category": "Electronics"}]}` +
			"\n```"

		receipt, err := ParseResponse(content, testCategories())
		require.NoError(t, err)

		require.Len(t, receipt.Items, 1)
		assert.Equal(t, "Other", receipt.Items[0].Category)
	})

	t.Run("BlankNameAndNegativePriceAreCoerced", func(t *testing.T) {
		content := "```json\n" +
			`{"items": [{"name": "  ", "price": -4.00, "category": "Groceries"}]}` +
			"\n```"

		receipt, err := ParseResponse(content, testCategories())
		require.NoError(t, err)

		require.Len(t, receipt.Items, 1)
		assert.Equal(t, "Unknown", receipt.Items[0].Name)
		assert.Zero(t, receipt.Items[0].Price)
	})

	t.Run("PlainTextHasNoJSONBlock", func(t *testing.T) {
		_, err := ParseResponse("Sorry, I cannot read this receipt.", testCategories())
		assert.ErrorIs(t, err, ErrNoJSONBlock)
	})

	t.Run("MalformedJSONBlock", func(t *testing.T) {
		_, err := ParseResponse("```json\n{\"items\": [}\n```", testCategories())
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrNoJSONBlock)
	})
}

func TestFallbackReceipt(t *testing.T) {
	ocrResult := &domain.OCRResult{
		Items: []domain.RawItem{
			{Name: "Milk", Price: 3.99},
			{Name: "Unknown", Price: 0},
		},
	}

	receipt := FallbackReceipt(ocrResult, testCategories())

	assert.Empty(t, receipt.Merchant)
	assert.Zero(t, receipt.Total)
	require.Len(t, receipt.Items, 2)
	for i, item := range receipt.Items {
		assert.Equal(t, ocrResult.Items[i].Name, item.Name)
		assert.Equal(t, ocrResult.Items[i].Price, item.Price)
		assert.Equal(t, "Other", item.Category)
	}
}

func TestNewClient(t *testing.T) {
	t.Run("ConfiguredWithTimeout", func(t *testing.T) {
		client := NewClient(&Config{
			Endpoint:   "https://example.openai.azure.com",
			APIKey:     "test-key",
			Deployment: "gpt-4o-mini",
			Timeout:    30 * time.Second,
			Categories: testCategories(),
		})
		assert.NotNil(t, client.api)
	})

	t.Run("UnconfiguredLeavesAPINil", func(t *testing.T) {
		client := NewClient(&Config{Categories: testCategories()})
		assert.Nil(t, client.api)
	})
}

func TestCategorizeWithoutConfiguration(t *testing.T) {
	// An unconfigured client must still produce a receipt, never an error.
	client := NewClient(&Config{Categories: testCategories()})

	ocrResult := &domain.OCRResult{
		Items: []domain.RawItem{{Name: "Milk", Price: 3.99}},
	}

	receipt := client.Categorize(context.Background(), ocrResult)
	require.NotNil(t, receipt)
	require.Len(t, receipt.Items, 1)
	assert.Equal(t, "Other", receipt.Items[0].Category)
}

func TestBuildPrompt(t *testing.T) {
	ocrResult := &domain.OCRResult{
		Items:           []domain.RawItem{{Name: "Milk", Price: 3.99}},
		TransactionDate: "2026-08-30",
	}

	prompt, err := buildPrompt(ocrResult, testCategories())
	require.NoError(t, err)

	assert.Contains(t, prompt, `"Milk"`)
	assert.Contains(t, prompt, "Beverage|House Items|Transport|Groceries|Other")
	assert.Contains(t, prompt, "Return ONLY valid JSON")
}
