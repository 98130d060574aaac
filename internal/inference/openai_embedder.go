package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledgertier/ledgertier/internal/common"
	"github.com/ledgertier/ledgertier/internal/model"
	"github.com/ledgertier/ledgertier/internal/service"
)

// openAIEmbedder implements Embedder against the OpenAI embeddings API.
type openAIEmbedder struct {
	httpClient *http.Client
	apiKey     string
	model      string
}

// NewOpenAIEmbedder creates an embedding provider backed by OpenAI.
func NewOpenAIEmbedder(apiKey, embeddingModel string) (Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	if embeddingModel == "" {
		embeddingModel = "text-embedding-3-small"
	}

	return &openAIEmbedder{
		apiKey: apiKey,
		model:  embeddingModel,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Embed requests a vector for the given text. Transient failures retry with
// backoff; rate limits wait out the full backoff cap.
func (e *openAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := common.WithRetry(ctx, service.RetryOptions{}, func(ctx context.Context) error {
		var err error
		vector, err = e.embedOnce(ctx, text)
		return err
	})
	return vector, err
}

func (e *openAIEmbedder) embedOnce(ctx context.Context, text string) ([]float32, error) {
	requestBody := map[string]any{
		"model":      e.model,
		"input":      text,
		"dimensions": model.EmbeddingDimensions,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, common.Permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.openai.com/v1/embeddings", strings.NewReader(string(jsonBody)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, common.ErrRateLimit
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: embeddings API status %d: %s", common.ErrUpstreamUnavailable, resp.StatusCode, string(body))
	}

	var response struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(response.Data) == 0 {
		return nil, fmt.Errorf("no embedding data returned: %w", common.ErrUpstreamUnavailable)
	}

	vector := response.Data[0].Embedding
	if len(vector) != model.EmbeddingDimensions {
		return nil, common.Permanent(common.NewValidationError("vector",
			fmt.Sprintf("provider returned %d dimensions, expected %d", len(vector), model.EmbeddingDimensions)))
	}

	return vector, nil
}
