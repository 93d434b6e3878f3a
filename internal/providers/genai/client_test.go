package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G'}

func inlineJSON(field, mimeField, mime string) string {
	payload := base64.StdEncoding.EncodeToString(pngBytes)
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"%s":{"%s":%q,"data":%q}}]}}]}`, field, mimeField, mime, payload)
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Options{APIKey: "test-key", BaseURL: baseURL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestGenerateContentSuccess(t *testing.T) {
	var gotPath, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, inlineJSON("inlineData", "mimeType", "image/png"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	resp, err := client.GenerateContent(context.Background(), "fusion-model", GenerateContentRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/models/fusion-model:generateContent" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Fatalf("key = %q", gotKey)
	}

	data, mime, err := ExtractInlineImage(resp)
	if err != nil {
		t.Fatalf("ExtractInlineImage: %v", err)
	}
	if mime != "image/png" {
		t.Fatalf("mime = %q", mime)
	}
	if string(data) != string(pngBytes) {
		t.Fatalf("data = %v, want %v", data, pngBytes)
	}
}

func TestExtractInlineImageAcceptsSnakeCase(t *testing.T) {
	var resp GenerateContentResponse
	if err := json.Unmarshal([]byte(inlineJSON("inline_data", "mime_type", "image/webp")), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	data, mime, err := ExtractInlineImage(&resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mime != "image/webp" {
		t.Fatalf("mime = %q, want image/webp", mime)
	}
	if len(data) != len(pngBytes) {
		t.Fatalf("data length = %d", len(data))
	}
}

func TestGenerateContentErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "req-42")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"code":429,"message":"quota exhausted","status":"RESOURCE_EXHAUSTED"}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.GenerateContent(context.Background(), "", GenerateContentRequest{})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Code != CodeAPIError {
		t.Fatalf("code = %s", apiErr.Code)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("statusCode = %d", apiErr.StatusCode)
	}
	if apiErr.Message != "quota exhausted" {
		t.Fatalf("message = %q", apiErr.Message)
	}
	if apiErr.RequestID != "req-42" {
		t.Fatalf("requestId = %q", apiErr.RequestID)
	}
	if !strings.Contains(apiErr.BodySummary, "quota exhausted") {
		t.Fatalf("bodySummary = %q", apiErr.BodySummary)
	}
}

func TestGenerateContentNonJSONSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>definitely not json</html>")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.GenerateContent(context.Background(), "", GenerateContentRequest{})

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != CodeNonJSONResponse {
		t.Fatalf("expected GEMINI_NON_JSON_RESPONSE, got %v", err)
	}
	if !strings.Contains(apiErr.BodySummary, "definitely not json") {
		t.Fatalf("bodySummary = %q", apiErr.BodySummary)
	}
}

func TestExtractInlineImageTextOnly(t *testing.T) {
	var resp GenerateContentResponse
	raw := `{"candidates":[{"content":{"parts":[{"text":"I cannot generate that image because reasons"}]}}]}`
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	_, _, err := ExtractInlineImage(&resp)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != CodeTextOnlyResponse {
		t.Fatalf("expected GEMINI_TEXT_RESPONSE, got %v", err)
	}
	if !strings.Contains(apiErr.BodySummary, "cannot generate") {
		t.Fatalf("bodySummary = %q", apiErr.BodySummary)
	}
}

func TestExtractInlineImageNoCandidates(t *testing.T) {
	_, _, err := ExtractInlineImage(&GenerateContentResponse{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != CodeNoCandidates {
		t.Fatalf("expected GEMINI_NO_CANDIDATES, got %v", err)
	}
}

func TestSummarizeBodyCollapsesAndTruncates(t *testing.T) {
	long := strings.Repeat("word \n\t", 200)
	summary := SummarizeBody([]byte(long))
	if len(summary) > maxBodySummary {
		t.Fatalf("summary length = %d, want <= %d", len(summary), maxBodySummary)
	}
	if strings.ContainsAny(summary, "\n\t") {
		t.Fatalf("summary still contains raw whitespace: %q", summary)
	}
}
