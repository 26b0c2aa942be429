// Package gemini talks to Google's Gemini models through the
// generative-ai-go SDK.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/glucogate/gateway"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.5-flash"

// generator is the part of *genai.GenerativeModel the client needs.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client implements gateway.Model on a single Gemini model. It is safe for
// concurrent use.
type Client struct {
	client *genai.Client
	model  generator
	name   string
}

var _ gateway.Model = (*Client)(nil)

// Config holds the settings for NewClient.
type Config struct {
	APIKey      string
	Model       string
	Temperature *float32
}

// NewClient connects to the Gemini API.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	name := cfg.Model
	if name == "" {
		name = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(name)
	if cfg.Temperature != nil {
		model.SetTemperature(*cfg.Temperature)
	}

	return &Client{client: client, model: model, name: name}, nil
}

// Generate sends the prompt, and image if any, and returns the answer text.
// Provider failures come back as categorized apperror values.
func (c *Client) Generate(ctx context.Context, req gateway.ModelRequest) (string, error) {
	resp, err := c.model.GenerateContent(ctx, buildParts(req)...)
	if err != nil {
		return "", classifyError(err)
	}
	return responseText(resp), nil
}

// Name returns the model name in use.
func (c *Client) Name() string {
	return c.name
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// buildParts puts the instructions first, then the user prompt, then the
// image.
func buildParts(req gateway.ModelRequest) []genai.Part {
	var parts []genai.Part

	text := req.Prompt
	if req.SystemPrompt != "" {
		text = req.SystemPrompt + "\n\n" + req.Prompt
	}
	if text != "" {
		parts = append(parts, genai.Text(text))
	}

	if req.Image != nil {
		parts = append(parts, genai.Blob{MIMEType: req.Image.MIMEType, Data: req.Image.Data})
	}
	return parts
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return strings.TrimSpace(b.String())
}
