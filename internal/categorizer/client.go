// Package categorizer assigns spending categories to OCR line items by
// asking a hosted chat-completion model for structured JSON. Categorization
// is best-effort by contract: whatever the model does, the caller always
// gets a receipt with a well-formed item list, at worst the raw OCR items
// tagged with the fallback category.
package categorizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pocketai/receipt-service/internal/domain"
)

// Client categorizes OCR results through an Azure OpenAI deployment
type Client struct {
	api        *openai.Client
	deployment string
	categories *domain.CategorySet
}

// Config holds configuration for the categorizer client
type Config struct {
	Endpoint   string
	APIKey     string
	Deployment string
	Timeout    time.Duration
	Categories *domain.CategorySet
}

// NewClient creates a new categorizer client. With an incomplete Azure
// configuration the client is still usable: every call takes the fallback
// path instead of the network.
func NewClient(config *Config) *Client {
	categories := config.Categories
	if categories == nil {
		categories = domain.NewCategorySet(nil, "")
	}

	client := &Client{
		deployment: config.Deployment,
		categories: categories,
	}

	if config.Endpoint != "" && config.APIKey != "" {
		azureConfig := openai.DefaultAzureConfig(config.APIKey, config.Endpoint)
		if config.Timeout > 0 {
			azureConfig.HTTPClient = &http.Client{Timeout: config.Timeout}
		}
		client.api = openai.NewClientWithConfig(azureConfig)
	}

	return client
}

// Categories returns the category set the client coerces against.
func (c *Client) Categories() *domain.CategorySet {
	return c.categories
}

// Categorize turns a raw OCR result into a receipt with categorized items.
// It never returns an error: when the completion call fails or the response
// carries no parsable JSON block, the original items are passed through
// with the fallback category and merchant/total left absent. The returned
// receipt has no id or date; both are assigned at persistence.
func (c *Client) Categorize(ctx context.Context, ocrResult *domain.OCRResult) *domain.Receipt {
	if ocrResult == nil {
		ocrResult = &domain.OCRResult{Items: []domain.RawItem{}}
	}

	if c.api == nil {
		log.Println("categorizer: client not configured, passing OCR items through uncategorized")
		return FallbackReceipt(ocrResult, c.categories)
	}

	prompt, err := buildPrompt(ocrResult, c.categories)
	if err != nil {
		log.Printf("categorizer: failed to build prompt: %v", err)
		return FallbackReceipt(ocrResult, c.categories)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.deployment,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		log.Printf("categorizer: completion call failed: %v", err)
		return FallbackReceipt(ocrResult, c.categories)
	}

	if len(resp.Choices) == 0 {
		log.Println("categorizer: completion response has no choices")
		return FallbackReceipt(ocrResult, c.categories)
	}

	receipt, err := ParseResponse(resp.Choices[0].Message.Content, c.categories)
	if err != nil {
		log.Printf("categorizer: unparsable completion response: %v", err)
		return FallbackReceipt(ocrResult, c.categories)
	}

	return receipt
}

// buildPrompt embeds the serialized OCR result and the strict output
// contract into a single instruction.
func buildPrompt(ocrResult *domain.OCRResult, categories *domain.CategorySet) (string, error) {
	rawReceipt, err := json.Marshal(ocrResult)
	if err != nil {
		return "", fmt.Errorf("failed to serialize OCR result: %w", err)
	}

	categoryList := ""
	for i, name := range categories.Names() {
		if i > 0 {
			categoryList += "|"
		}
		categoryList += name
	}

	prompt := fmt.Sprintf("Extract from this receipt:\n%s\n\n"+
		"Return ONLY valid JSON (no extra text):\n"+
		"```json\n"+
		"{\n"+
		"  \"merchant\": \"string\",\n"+
		"  \"total\": 0.0,\n"+
		"  \"items\": [\n"+
		"    {\"name\": \"string\", \"price\": 0.0, \"category\": \"%s\"}\n"+
		"  ]\n"+
		"}\n"+
		"```",
		string(rawReceipt), categoryList)

	return prompt, nil
}
