// Package ocr wraps the Azure Document Intelligence prebuilt-receipt model
// and normalizes its field soup into the minimal shape the pipeline needs:
// a list of name/price lines and an optional transaction date.
package ocr

import (
	"net/http"
	"strings"
	"time"
)

// OCRError represents an error that occurred during a Document Intelligence call
type OCRError struct {
	Op  string // Operation that caused the error
	Err error  // Original error
}

// Error implements the error interface
func (e *OCRError) Error() string {
	if e.Err == nil {
		return "ocr error: " + e.Op
	}
	return "ocr error: " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *OCRError) Unwrap() error {
	return e.Err
}

// Client calls the Azure Document Intelligence REST API
type Client struct {
	endpoint     string
	apiKey       string
	apiVersion   string
	modelID      string
	pollInterval time.Duration
	httpClient   *http.Client
}

// Config holds configuration for the OCR client
type Config struct {
	Endpoint     string
	APIKey       string
	APIVersion   string
	ModelID      string
	Timeout      time.Duration
	PollInterval time.Duration
}

// DefaultConfig returns a default configuration for the OCR client
func DefaultConfig() *Config {
	return &Config{
		APIVersion:   "2023-07-31",
		ModelID:      "prebuilt-receipt",
		Timeout:      60 * time.Second,
		PollInterval: time.Second,
	}
}

// NewClient creates a new Document Intelligence client
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	apiVersion := config.APIVersion
	if apiVersion == "" {
		apiVersion = "2023-07-31"
	}
	modelID := config.ModelID
	if modelID == "" {
		modelID = "prebuilt-receipt"
	}
	pollInterval := config.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	return &Client{
		endpoint:     strings.TrimRight(config.Endpoint, "/"),
		apiKey:       config.APIKey,
		apiVersion:   apiVersion,
		modelID:      modelID,
		pollInterval: pollInterval,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}
