// Package genai wraps the Gemini generateContent HTTP API for multi-image
// fusion requests. It owns the wire shapes, the provider error taxonomy, and
// the normalization of the two historical field-naming conventions used for
// inline image data in responses.
package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a thin facade over the generateContent endpoint so the executor
// can focus on translating contracts into multimodal payloads.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// Content is a single conversational turn.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts,omitempty"`
}

// Part is either a text fragment or an inline image attachment.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData carries base64-encoded image bytes plus their MIME type.
type InlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

// GenerationConfig declares acceptable response modalities.
type GenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

// GenerateContentRequest is the outbound payload.
type GenerateContentRequest struct {
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	Contents          []Content         `json:"contents"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

// Candidate is one response alternative.
type Candidate struct {
	Content      responseContent `json:"content"`
	FinishReason string          `json:"finishReason,omitempty"`
}

// GenerateContentResponse is the decoded provider response.
type GenerateContentResponse struct {
	Candidates []Candidate `json:"candidates"`
	RequestID  string      `json:"-"`
}

type responseContent struct {
	Role  string         `json:"role,omitempty"`
	Parts []responsePart `json:"parts,omitempty"`
}

// responsePart tolerates both inlineData (camelCase) and inline_data
// (snake_case); older API revisions emitted the latter.
type responsePart struct {
	Text           string          `json:"text,omitempty"`
	InlineData     *wireInlineData `json:"inlineData,omitempty"`
	InlineDataSnek *wireInlineData `json:"inline_data,omitempty"`
}

type wireInlineData struct {
	MimeType     string `json:"mimeType,omitempty"`
	MimeTypeSnek string `json:"mime_type,omitempty"`
	Data         string `json:"data,omitempty"`
}

// inline normalizes the two wire conventions into a single shape.
func (p responsePart) inline() *InlineData {
	raw := p.InlineData
	if raw == nil {
		raw = p.InlineDataSnek
	}
	if raw == nil || raw.Data == "" {
		return nil
	}
	mime := raw.MimeType
	if mime == "" {
		mime = raw.MimeTypeSnek
	}
	return &InlineData{MimeType: mime, Data: raw.Data}
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Status  string `json:"status,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may pass
// a nil HTTP client; a reusable one is created.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("genai: api key is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash-image-preview"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Model returns the configured default model identifier.
func (c *Client) Model() string {
	return c.model
}

// GenerateContent invokes the generateContent endpoint for the given model.
// Non-success responses and undecodable success bodies surface as *APIError.
func (c *Client) GenerateContent(ctx context.Context, model string, payload GenerateContentRequest) (*GenerateContentResponse, error) {
	if model == "" {
		model = c.model
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(model))

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("genai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("genai: create request: %w", err)
	}
	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{
			Code:    CodeAPIError,
			Message: fmt.Sprintf("invoke gemini: %v", err),
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{
			Code:       CodeAPIError,
			Message:    fmt.Sprintf("read gemini response: %v", err),
			StatusCode: resp.StatusCode,
			RequestID:  requestID(resp),
		}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		message := fmt.Sprintf("gemini status %d", resp.StatusCode)
		var apiErr errorResponse
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error.Message != "" {
			message = apiErr.Error.Message
		}
		return nil, &APIError{
			Code:        CodeAPIError,
			Message:     message,
			StatusCode:  resp.StatusCode,
			RequestID:   requestID(resp),
			BodySummary: SummarizeBody(raw),
		}
	}

	var decoded GenerateContentResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &APIError{
			Code:        CodeNonJSONResponse,
			Message:     "gemini returned a non-JSON success body",
			StatusCode:  resp.StatusCode,
			RequestID:   requestID(resp),
			BodySummary: SummarizeBody(raw),
		}
	}
	decoded.RequestID = requestID(resp)

	c.logger.Debug().
		Str("model", model).
		Int("candidates", len(decoded.Candidates)).
		Dur("elapsed", time.Since(started)).
		Msg("genai: generateContent succeeded")

	return &decoded, nil
}

// ExtractInlineImage locates the first inline image part of the first
// candidate and decodes it. A text-only candidate and an empty candidate
// list are distinct provider errors.
func ExtractInlineImage(resp *GenerateContentResponse) ([]byte, string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, "", &APIError{
			Code:      CodeNoCandidates,
			Message:   "gemini returned no candidates",
			RequestID: respRequestID(resp),
		}
	}

	parts := resp.Candidates[0].Content.Parts
	var textFallback string
	for _, part := range parts {
		if inline := part.inline(); inline != nil {
			data, err := base64.StdEncoding.DecodeString(inline.Data)
			if err != nil {
				return nil, "", &APIError{
					Code:      CodeAPIError,
					Message:   fmt.Sprintf("decode inline image data: %v", err),
					RequestID: resp.RequestID,
				}
			}
			mime := inline.MimeType
			if mime == "" {
				mime = "image/png"
			}
			return data, mime, nil
		}
		if textFallback == "" && strings.TrimSpace(part.Text) != "" {
			textFallback = part.Text
		}
	}

	if textFallback != "" {
		return nil, "", &APIError{
			Code:        CodeTextOnlyResponse,
			Message:     "gemini answered with text instead of an image",
			RequestID:   resp.RequestID,
			BodySummary: SummarizeBody([]byte(textFallback)),
		}
	}
	return nil, "", &APIError{
		Code:      CodeNoCandidates,
		Message:   "gemini candidate carried no content parts",
		RequestID: resp.RequestID,
	}
}

func respRequestID(resp *GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	return resp.RequestID
}

func requestID(resp *http.Response) string {
	for _, header := range []string{"X-Request-Id", "X-Goog-Request-Id"} {
		if id := resp.Header.Get(header); id != "" {
			return id
		}
	}
	return ""
}
