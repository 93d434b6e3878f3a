package contract

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ValidateGenerationContract normalizes raw decoded JSON into a
// GenerationContract. It reports the first violation in the fixed order
// taskId, prompt, negativePrompt, reference, sources.
func ValidateGenerationContract(input map[string]any) (*GenerationContract, error) {
	if input == nil {
		return nil, newValidationError(CodeInvalidString, "request body must be a JSON object", nil)
	}

	taskID, err := requireString(input, "taskId")
	if err != nil {
		return nil, err
	}
	prompt, err := requireString(input, "prompt")
	if err != nil {
		return nil, err
	}
	negativePrompt, err := optionalString(input, "negativePrompt")
	if err != nil {
		return nil, err
	}
	model, err := optionalString(input, "model")
	if err != nil {
		return nil, err
	}

	reference, err := validateReference(input["reference"])
	if err != nil {
		return nil, err
	}
	sources, err := validateSources(input["sources"])
	if err != nil {
		return nil, err
	}

	return &GenerationContract{
		TaskID:         taskID,
		Prompt:         prompt,
		NegativePrompt: negativePrompt,
		Model:          model,
		Reference:      reference,
		Sources:        sources,
	}, nil
}

func validateReference(raw any) (Reference, error) {
	obj, ok := raw.(map[string]any)
	if !ok || obj == nil {
		return Reference{}, newValidationError(CodeInvalidReference, "reference must be an object", map[string]any{
			"field": "reference", "received": describeValue(raw),
		})
	}
	imageRef, err := requireStringAt(obj, "imageRef", "reference.imageRef")
	if err != nil {
		return Reference{}, err
	}
	weight, err := parseWeight("reference.weight", obj["weight"])
	if err != nil {
		return Reference{}, err
	}
	return Reference{ImageRef: imageRef, Weight: weight}, nil
}

func validateSources(raw any) ([]Source, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, newValidationError(CodeInvalidSources, "sources must be a non-empty array", map[string]any{
			"field": "sources", "received": describeValue(raw),
		})
	}
	if len(list) == 0 {
		return nil, newValidationError(CodeInvalidSources, "sources must contain at least one entry", map[string]any{
			"field": "sources",
		})
	}

	sources := make([]Source, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok || obj == nil {
			return nil, newValidationError(CodeInvalidSource, fmt.Sprintf("sources[%d] must be an object", i), map[string]any{
				"field": "sources", "index": i, "received": describeValue(item),
			})
		}
		imageRef, err := requireStringAt(obj, "imageRef", fmt.Sprintf("sources[%d].imageRef", i))
		if err != nil {
			return nil, err
		}
		rawType, _ := obj["featureType"].(string)
		featureType, ok := NormalizeFeatureType(rawType)
		if !ok {
			return nil, newValidationError(CodeInvalidFeatureType, fmt.Sprintf("sources[%d].featureType must be one of FACE, STYLE, MATERIAL, COMPONENT", i), map[string]any{
				"field": "featureType", "index": i, "received": obj["featureType"],
			})
		}
		weight, err := parseWeight(fmt.Sprintf("sources[%d].weight", i), obj["weight"])
		if err != nil {
			return nil, err
		}
		sources = append(sources, Source{ImageRef: imageRef, FeatureType: featureType, Weight: weight})
	}
	return sources, nil
}

// ValidateStatusResponse checks a decoded status payload against the wire
// shape. Shape problems yield INVALID_STATUS; an unknown lifecycle state
// yields INVALID_STATUS_VALUE.
func ValidateStatusResponse(input map[string]any) (*StatusResponse, error) {
	if input == nil {
		return nil, newValidationError(CodeInvalidStatus, "status response must be a JSON object", nil)
	}

	taskID, ok := nonEmptyString(input["taskId"])
	if !ok {
		return nil, newValidationError(CodeInvalidStatus, "taskId must be a non-empty string", map[string]any{
			"field": "taskId", "received": describeValue(input["taskId"]),
		})
	}
	rawStatus, ok := nonEmptyString(input["status"])
	if !ok {
		return nil, newValidationError(CodeInvalidStatus, "status must be a non-empty string", map[string]any{
			"field": "status", "received": describeValue(input["status"]),
		})
	}
	if !ValidStatus(rawStatus) {
		return nil, newValidationError(CodeInvalidStatusValue, "status must be one of QUEUED, PROCESSING, SUCCESS, FAILED", map[string]any{
			"field": "status", "received": rawStatus,
		})
	}

	resp := &StatusResponse{TaskID: taskID, Status: Status(rawStatus), Warnings: []string{}}

	for _, field := range []string{"outputUrl", "errorCode", "message"} {
		value, err := nullableString(input, field)
		if err != nil {
			return nil, err
		}
		switch field {
		case "outputUrl":
			resp.OutputURL = value
		case "errorCode":
			resp.ErrorCode = value
		case "message":
			resp.Message = value
		}
	}

	if raw, present := input["warnings"]; present && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return nil, newValidationError(CodeInvalidStatus, "warnings must be an array of strings", map[string]any{
				"field": "warnings", "received": describeValue(raw),
			})
		}
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, newValidationError(CodeInvalidStatus, fmt.Sprintf("warnings[%d] must be a string", i), map[string]any{
					"field": "warnings", "index": i, "received": describeValue(item),
				})
			}
			resp.Warnings = append(resp.Warnings, s)
		}
	}

	if raw, present := input["updatedAt"]; present && raw != nil {
		ts, err := parseTimestamp(raw)
		if err != nil {
			return nil, err
		}
		resp.UpdatedAt = ts
	}

	return resp, nil
}

func parseTimestamp(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return ts, nil
		}
	case float64:
		return time.UnixMilli(int64(v)).UTC(), nil
	case json.Number:
		if ms, err := v.Int64(); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
	}
	return time.Time{}, newValidationError(CodeInvalidStatus, "updatedAt must be an RFC 3339 string or epoch milliseconds", map[string]any{
		"field": "updatedAt", "received": describeValue(raw),
	})
}

// parseWeight accepts JSON numbers and numeric strings, rejects non-finite
// values, range-checks against [0,1], and rounds to 4 decimal places. The
// rounding is load-bearing: weights participate in cross-process comparisons.
func parseWeight(field string, raw any) (float64, error) {
	var (
		value float64
		err   error
	)
	switch v := raw.(type) {
	case float64:
		value = v
	case int:
		value = float64(v)
	case json.Number:
		value, err = strconv.ParseFloat(v.String(), 64)
	case string:
		value, err = strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, newValidationError(CodeInvalidWeight, field+" must be a number", map[string]any{
			"field": field, "received": describeValue(raw),
		})
	}
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, newValidationError(CodeInvalidWeight, field+" must be a finite number", map[string]any{
			"field": field, "received": raw,
		})
	}
	if value < 0 || value > 1 {
		return 0, newValidationError(CodeWeightOutOfRange, field+" must lie in [0,1]", map[string]any{
			"field": field, "received": value,
		})
	}
	return math.Round(value*1e4) / 1e4, nil
}

func requireString(input map[string]any, field string) (string, error) {
	return requireStringAt(input, field, field)
}

func requireStringAt(obj map[string]any, key, field string) (string, error) {
	raw, present := obj[key]
	if !present {
		return "", newValidationError(CodeInvalidString, field+" is required", map[string]any{"field": field})
	}
	s, ok := raw.(string)
	if !ok {
		return "", newValidationError(CodeInvalidString, field+" must be a string", map[string]any{
			"field": field, "received": describeValue(raw),
		})
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", newValidationError(CodeEmptyString, field+" must not be empty", map[string]any{"field": field})
	}
	return s, nil
}

func optionalString(input map[string]any, field string) (string, error) {
	raw, present := input[field]
	if !present || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", newValidationError(CodeInvalidString, field+" must be a string", map[string]any{
			"field": field, "received": describeValue(raw),
		})
	}
	return strings.TrimSpace(s), nil
}

func nullableString(input map[string]any, field string) (*string, error) {
	raw, present := input[field]
	if !present || raw == nil {
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, newValidationError(CodeInvalidStatus, field+" must be a string or null", map[string]any{
			"field": field, "received": describeValue(raw),
		})
	}
	return &s, nil
}

func nonEmptyString(raw any) (string, bool) {
	s, ok := raw.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func describeValue(raw any) string {
	switch raw.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, int, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", raw)
	}
}
