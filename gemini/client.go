package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	maxRetries     = 3
	initialBackoff = time.Second

	// EmbeddingDimensions is the fixed output dimensionality requested from
	// the embedding model; the ipc_sections vector column matches it.
	EmbeddingDimensions = 768
)

var (
	ErrMissingAPIKey    = errors.New("GEMINI_API_KEY not set")
	ErrEmptyResponse    = errors.New("API returned empty content")
	ErrEmbeddingFailed  = errors.New("failed to generate embedding")
	ErrGenerationFailed = errors.New("failed to generate content")
)

// Client wraps the Gemini generation and embedding endpoints. Text
// generation and embeddings go through the HTTP API directly; multimodal
// audio requests go through the official SDK. A Client is initialized once
// at process start and shared read-only across requests.
type Client struct {
	apiKey          string
	baseURL         string
	generationModel string
	embeddingModel  string
	httpClient      *http.Client
	sdk             *genai.Client
}

// Option is a functional option for Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL. Used by tests to point the client
// at a local server.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithGenerationModel sets the generation model name.
func WithGenerationModel(model string) Option {
	return func(c *Client) {
		c.generationModel = model
	}
}

// WithEmbeddingModel sets the embedding model name.
func WithEmbeddingModel(model string) Option {
	return func(c *Client) {
		c.embeddingModel = model
	}
}

// WithHTTPClient overrides the HTTP client used for generation and
// embedding calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a Gemini client.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		log.Println("Warning: GEMINI_API_KEY not set")
	}

	c := &Client{
		apiKey:          apiKey,
		baseURL:         defaultBaseURL,
		generationModel: "gemini-2.5-pro",
		embeddingModel:  "gemini-embedding-001",
		httpClient:      &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}

	if apiKey != "" {
		sdk, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create genai client: %w", err)
		}
		c.sdk = sdk
	}

	return c, nil
}

// Close releases the underlying SDK connection.
func (c *Client) Close() error {
	if c.sdk != nil {
		return c.sdk.Close()
	}
	return nil
}

type generationRequest struct {
	Contents         []contentInput   `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type contentInput struct {
	Parts []partInput `json:"parts"`
}

type partInput struct {
	Text string `json:"text"`
}

type generationResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason,omitempty"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error,omitempty"`
}

// GenerateText issues a single text generation request with retry and
// exponential backoff. An empty model response is reported as an error,
// never as empty success.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	backoff := initialBackoff
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		text, retryable, err := c.generateOnce(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
	}

	return "", fmt.Errorf("%w after %d attempts: %v", ErrGenerationFailed, maxRetries, lastErr)
}

func (c *Client) generateOnce(ctx context.Context, prompt string) (string, bool, error) {
	reqBody := generationRequest{
		Contents: []contentInput{
			{Parts: []partInput{{Text: prompt}}},
		},
		GenerationConfig: generationConfig{Temperature: 0.2},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", false, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.generationModel)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		// 400/401 won't improve with retries.
		retryable := resp.StatusCode != http.StatusBadRequest && resp.StatusCode != http.StatusUnauthorized
		log.Printf("Gemini API error: Status %d, Body: %s", resp.StatusCode, string(bodyBytes))
		return "", retryable, fmt.Errorf("API error: %d - %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp generationResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		log.Printf("Failed to decode response. Body: %s", string(bodyBytes))
		return "", true, fmt.Errorf("failed to decode response: %w", err)
	}

	if apiResp.Error.Message != "" {
		return "", true, fmt.Errorf("API error: %s (code: %d)", apiResp.Error.Message, apiResp.Error.Code)
	}
	if apiResp.PromptFeedback.BlockReason != "" {
		return "", false, fmt.Errorf("API blocked prompt: %s", apiResp.PromptFeedback.BlockReason)
	}
	if len(apiResp.Candidates) == 0 {
		return "", true, errors.New("API returned no candidates")
	}

	var responseText strings.Builder
	for i, candidate := range apiResp.Candidates {
		if candidate.FinishReason != "" && candidate.FinishReason != "STOP" {
			log.Printf("Warning: Candidate %d finished with reason: %s", i, candidate.FinishReason)
		}
		if len(candidate.Content.Parts) == 0 {
			return "", true, fmt.Errorf("API candidate has no parts (finish reason: %s)", candidate.FinishReason)
		}
		for _, part := range candidate.Content.Parts {
			responseText.WriteString(part.Text)
		}
	}

	result := responseText.String()
	if result == "" {
		return "", true, ErrEmptyResponse
	}
	return result, true, nil
}

// GenerateFromAudio issues a multimodal generation request with an inline
// audio attachment. Used for voice transcription.
func (c *Client) GenerateFromAudio(ctx context.Context, prompt string, audio []byte, mimeType string) (string, error) {
	if c.sdk == nil {
		return "", errors.New("genai client not set")
	}

	model := c.sdk.GenerativeModel(c.generationModel)
	resp, err := model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.Blob{MIMEType: mimeType, Data: audio},
	)
	if err != nil {
		return "", fmt.Errorf("audio generation failed: %w", err)
	}

	var responseText strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				responseText.WriteString(string(text))
			}
		}
	}

	result := responseText.String()
	if result == "" {
		return "", ErrEmptyResponse
	}
	return result, nil
}

type embeddingRequest struct {
	Model                string       `json:"model"`
	Content              contentInput `json:"content"`
	TaskType             string       `json:"task_type,omitempty"`
	OutputDimensionality int          `json:"output_dimensionality,omitempty"`
}

type embeddingResponse struct {
	Embedding embeddingData `json:"embedding"`
}

type embeddingData struct {
	Values []float64 `json:"values"`
}

type batchEmbeddingRequest struct {
	Requests []embeddingRequest `json:"requests"`
}

// batchEmbeddingItem is the structure returned by the batch API (no nested
// "embedding" key).
type batchEmbeddingItem struct {
	Values []float64 `json:"values"`
}

type batchEmbeddingResponse struct {
	Embeddings []batchEmbeddingItem `json:"embeddings"`
}

// EmbedText generates a normalized embedding for a single text. taskType is
// RETRIEVAL_QUERY for searches and RETRIEVAL_DOCUMENT for indexing.
func (c *Client) EmbedText(ctx context.Context, text, taskType string) ([]float64, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	reqBody := embeddingRequest{
		Model:                "models/" + c.embeddingModel,
		Content:              contentInput{Parts: []partInput{{Text: text}}},
		TaskType:             taskType,
		OutputDimensionality: EmbeddingDimensions,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:embedContent", c.baseURL, c.embeddingModel)

	backoff := initialBackoff
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt == maxRetries-1 {
				return nil, fmt.Errorf("failed to send request after %d attempts: %w", maxRetries, err)
			}
			continue
		}

		if resp.StatusCode == http.StatusOK {
			var apiResp embeddingResponse
			if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
				resp.Body.Close()
				if attempt == maxRetries-1 {
					return nil, fmt.Errorf("failed to decode response: %w", err)
				}
				continue
			}
			resp.Body.Close()
			return normalize(apiResp.Embedding.Values), nil
		}

		resp.Body.Close()

		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("API error: %d", resp.StatusCode)
		}
		if attempt == maxRetries-1 {
			return nil, fmt.Errorf("API error after %d attempts: %d", maxRetries, resp.StatusCode)
		}
	}

	return nil, ErrEmbeddingFailed
}

// EmbedBatch generates normalized embeddings for a batch of texts in one
// call. Used by the offline index builder.
func (c *Client) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float64, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := batchEmbeddingRequest{}
	for _, text := range texts {
		reqBody.Requests = append(reqBody.Requests, embeddingRequest{
			Model:                "models/" + c.embeddingModel,
			Content:              contentInput{Parts: []partInput{{Text: text}}},
			TaskType:             taskType,
			OutputDimensionality: EmbeddingDimensions,
		})
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:batchEmbedContents", c.baseURL, c.embeddingModel)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: %d - %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp batchEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(apiResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(apiResp.Embeddings))
	}

	embeddings := make([][]float64, len(apiResp.Embeddings))
	for i, item := range apiResp.Embeddings {
		embeddings[i] = normalize(item.Values)
	}
	return embeddings, nil
}

// normalize scales a vector to unit length.
func normalize(embedding []float64) []float64 {
	norm := 0.0
	for _, v := range embedding {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range embedding {
			embedding[i] /= norm
		}
	}
	return embedding
}
