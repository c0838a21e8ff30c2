package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// FileRef points at a file held by the provider's staging area.
type FileRef struct {
	URI      string
	MIMEType string
}

// Client is an abstraction over LLM providers
type Client interface {
	// GenerateContent generates text content using the specified model
	GenerateContent(ctx context.Context, model, prompt string) (string, error)
	// GenerateJSON generates JSON content using the specified model
	GenerateJSON(ctx context.Context, model, prompt string) (string, error)
	// GenerateFileJSON generates JSON content grounded on a staged file
	GenerateFileJSON(ctx context.Context, model string, file FileRef, prompt string) (string, error)
	// Close releases any resources held by the client
	Close() error
}

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{client: client}, nil
}

// Raw exposes the underlying genai client for the file staging layer.
func (c *GeminiClient) Raw() *genai.Client {
	return c.client
}

// GenerateContent generates text content using the specified model
func (c *GeminiClient) GenerateContent(ctx context.Context, model, prompt string) (string, error) {
	if model == "" {
		return "", fmt.Errorf("no model specified")
	}

	m := c.client.GenerativeModel(model)
	m.SetTemperature(0.1) // Low temperature for consistent output

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return extractTextFromResponse(resp)
}

// GenerateJSON generates JSON content using the specified model
func (c *GeminiClient) GenerateJSON(ctx context.Context, model, prompt string) (string, error) {
	return c.generateJSON(ctx, model, genai.Text(prompt))
}

// GenerateFileJSON generates JSON content from a prompt plus a staged file part.
// The file must already be in the active state on the provider side.
func (c *GeminiClient) GenerateFileJSON(ctx context.Context, model string, file FileRef, prompt string) (string, error) {
	return c.generateJSON(ctx, model,
		genai.FileData{URI: file.URI, MIMEType: file.MIMEType},
		genai.Text(prompt),
	)
}

func (c *GeminiClient) generateJSON(ctx context.Context, model string, parts ...genai.Part) (string, error) {
	if model == "" {
		return "", fmt.Errorf("no model specified")
	}

	m := c.client.GenerativeModel(model)
	m.SetTemperature(0.1) // Low temperature for consistent output
	m.ResponseMIMEType = "application/json"

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return "", err
	}

	// Clean any markdown code block wrappers
	return CleanJSONBlock(text), nil
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}
