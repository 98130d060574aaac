package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ledgertier/ledgertier/internal/common"
	"github.com/ledgertier/ledgertier/internal/service"
)

const normalizeSystemPrompt = `You normalize raw bank-statement descriptions into clean vendor names.
You MUST respond with ONLY a valid JSON object of the form
{"normalized": "...", "confidence": 0.0}. Do not include any explanatory text,
markdown formatting, or commentary. Start with { and end with }.`

const codingSystemPrompt = `You assign general-ledger codes and departments to business expense descriptions.
You MUST respond with ONLY a valid JSON object of the form
{"glCode": "...", "department": "...", "confidence": 0.0}. Do not include any
explanatory text, markdown formatting, or commentary. Start with { and end with }.`

// anthropicClient implements Client using the official anthropic-sdk-go.
type anthropicClient struct {
	client    sdk.Client
	model     string
	maxTokens int64
	retry     service.RetryOptions
}

func newAnthropicClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = string(sdk.ModelClaudeSonnet4_5)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 150
	}

	return &anthropicClient{
		client: sdk.NewClient(
			option.WithAPIKey(cfg.APIKey),
		),
		model:     model,
		maxTokens: int64(maxTokens),
	}, nil
}

func (c *anthropicClient) NormalizeDescription(ctx context.Context, raw string) (NormalizationResult, error) {
	content, err := c.complete(ctx, normalizeSystemPrompt,
		fmt.Sprintf("Normalize this transaction description: %q", raw))
	if err != nil {
		return NormalizationResult{}, err
	}

	var resp struct {
		Normalized string  `json:"normalized"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(cleanMarkdownWrapper(content)), &resp); err != nil {
		return NormalizationResult{}, fmt.Errorf("failed to parse normalization response: %w", err)
	}
	if resp.Normalized == "" {
		return NormalizationResult{}, fmt.Errorf("empty normalization result: %w", common.ErrUpstreamUnavailable)
	}

	return NormalizationResult{
		NormalizedText: resp.Normalized,
		Confidence:     clampConfidence(resp.Confidence),
	}, nil
}

func (c *anthropicClient) SuggestCoding(ctx context.Context, description string) (CodingResult, error) {
	content, err := c.complete(ctx, codingSystemPrompt,
		fmt.Sprintf("Suggest a GL code and department for this expense: %q", description))
	if err != nil {
		return CodingResult{}, err
	}

	var resp struct {
		GLCode     string  `json:"glCode"`
		Department string  `json:"department"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(cleanMarkdownWrapper(content)), &resp); err != nil {
		return CodingResult{}, fmt.Errorf("failed to parse coding response: %w", err)
	}
	if resp.GLCode == "" {
		return CodingResult{}, fmt.Errorf("empty coding result: %w", common.ErrUpstreamUnavailable)
	}

	return CodingResult{
		GLCode:     resp.GLCode,
		Department: resp.Department,
		Confidence: clampConfidence(resp.Confidence),
	}, nil
}

func (c *anthropicClient) complete(ctx context.Context, system, user string) (string, error) {
	var content string

	err := common.WithRetry(ctx, c.retry, func(ctx context.Context) error {
		msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
			Model:     sdk.Model(c.model),
			MaxTokens: c.maxTokens,
			System: []sdk.TextBlockParam{
				{Text: system},
			},
			Messages: []sdk.MessageParam{
				sdk.NewUserMessage(sdk.NewTextBlock(user)),
			},
		})
		if err != nil {
			return fmt.Errorf("%w: %v", common.ErrUpstreamUnavailable, err)
		}

		for _, block := range msg.Content {
			if block.Type == "text" {
				content = block.Text
				return nil
			}
		}

		return fmt.Errorf("no text content in response: %w", common.ErrUpstreamUnavailable)
	})

	return content, err
}

// cleanMarkdownWrapper strips a ```json fence if the model added one anyway.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
