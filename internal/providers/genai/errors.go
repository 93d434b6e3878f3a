package genai

import (
	"fmt"
	"strings"
)

// Provider error codes recorded onto failed tasks.
const (
	CodeAPIError         = "GEMINI_API_ERROR"
	CodeNonJSONResponse  = "GEMINI_NON_JSON_RESPONSE"
	CodeTextOnlyResponse = "GEMINI_TEXT_RESPONSE"
	CodeNoCandidates     = "GEMINI_NO_CANDIDATES"
)

// maxBodySummary bounds the raw-body excerpt attached to provider errors.
const maxBodySummary = 420

// APIError describes a failed provider interaction. StatusCode and RequestID
// are zero-valued when the failure happened before a response arrived.
type APIError struct {
	Code        string
	Message     string
	StatusCode  int
	RequestID   string
	BodySummary string
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString("genai: ")
	b.WriteString(e.Message)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " (request %s)", e.RequestID)
	}
	return b.String()
}

// Details exposes the structured payload for the wire error shape.
func (e *APIError) Details() map[string]any {
	details := map[string]any{}
	if e.StatusCode != 0 {
		details["statusCode"] = e.StatusCode
	}
	if e.RequestID != "" {
		details["requestId"] = e.RequestID
	}
	if e.BodySummary != "" {
		details["bodySummary"] = e.BodySummary
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

// SummarizeBody collapses whitespace and truncates a raw body so provider
// errors stay loggable without dragging full payloads around.
func SummarizeBody(raw []byte) string {
	collapsed := strings.Join(strings.Fields(string(raw)), " ")
	if len(collapsed) > maxBodySummary {
		return collapsed[:maxBodySummary]
	}
	return collapsed
}
