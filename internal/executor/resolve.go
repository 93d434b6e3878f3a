package executor

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
)

var dataURLPattern = regexp.MustCompile(`^data:([^;,]+);base64,(.*)$`)

// resolvedImage is one input image reference turned into raw bytes.
type resolvedImage struct {
	Data     []byte
	MimeType string
}

// resolveImageRef turns a base64 data URL or an http(s) URL into raw bytes
// plus a MIME type. Any other reference form is rejected.
func (e *Executor) resolveImageRef(ctx context.Context, field, ref string) (resolvedImage, error) {
	switch {
	case strings.HasPrefix(ref, "data:"):
		return decodeDataURL(field, ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return e.fetchImage(ctx, field, ref)
	default:
		return resolvedImage{}, &InputError{
			Code:    CodeInvalidImageRef,
			Message: fmt.Sprintf("%s must be a base64 data URL or an http(s) URL", field),
			Details: map[string]any{"field": field, "received": truncateRef(ref)},
		}
	}
}

func decodeDataURL(field, ref string) (resolvedImage, error) {
	match := dataURLPattern.FindStringSubmatch(ref)
	if match == nil || match[2] == "" {
		return resolvedImage{}, &InputError{
			Code:    CodeInvalidImageRef,
			Message: fmt.Sprintf("%s is not a valid base64 data URL", field),
			Details: map[string]any{"field": field, "received": truncateRef(ref)},
		}
	}
	data, err := base64.StdEncoding.DecodeString(match[2])
	if err != nil {
		return resolvedImage{}, &InputError{
			Code:    CodeInvalidImageRef,
			Message: fmt.Sprintf("%s carries undecodable base64 data: %v", field, err),
			Details: map[string]any{"field": field},
		}
	}
	return resolvedImage{Data: data, MimeType: match[1]}, nil
}

func (e *Executor) fetchImage(ctx context.Context, field, ref string) (resolvedImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return resolvedImage{}, &InputError{
			Code:    CodeInvalidImageRef,
			Message: fmt.Sprintf("%s is not a fetchable URL: %v", field, err),
			Details: map[string]any{"field": field, "url": ref},
		}
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return resolvedImage{}, &InputError{
			Code:    CodeImageFetchFailed,
			Message: fmt.Sprintf("fetch %s: %v", field, err),
			Details: map[string]any{"field": field, "url": ref},
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return resolvedImage{}, &InputError{
			Code:    CodeImageFetchFailed,
			Message: fmt.Sprintf("fetch %s: status %d", field, resp.StatusCode),
			Details: map[string]any{"field": field, "url": ref, "statusCode": resp.StatusCode},
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resolvedImage{}, &InputError{
			Code:    CodeImageFetchFailed,
			Message: fmt.Sprintf("read %s body: %v", field, err),
			Details: map[string]any{"field": field, "url": ref},
		}
	}

	mime := resp.Header.Get("Content-Type")
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = mime[:idx]
	}
	mime = strings.TrimSpace(mime)
	if mime == "" {
		mime = "image/png"
	}
	return resolvedImage{Data: data, MimeType: mime}, nil
}

func truncateRef(ref string) string {
	if len(ref) > 64 {
		return ref[:64] + "..."
	}
	return ref
}
