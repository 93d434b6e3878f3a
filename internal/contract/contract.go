// Package contract defines the generation contract exchanged over the HTTP
// API and the validators that normalize raw client input into it. Validation
// is total and side-effect-free: it never mutates its input and reports the
// first violation in a fixed field order.
package contract

import (
	"strings"
	"time"
)

// FeatureType classifies what a source image should transfer into the output.
type FeatureType string

const (
	FeatureFace      FeatureType = "FACE"
	FeatureStyle     FeatureType = "STYLE"
	FeatureMaterial  FeatureType = "MATERIAL"
	FeatureComponent FeatureType = "COMPONENT"
)

// NormalizeFeatureType maps case-insensitive input onto the closed feature
// enumeration. The second return reports whether the input was recognized.
func NormalizeFeatureType(raw string) (FeatureType, bool) {
	switch FeatureType(strings.ToUpper(strings.TrimSpace(raw))) {
	case FeatureFace:
		return FeatureFace, true
	case FeatureStyle:
		return FeatureStyle, true
	case FeatureMaterial:
		return FeatureMaterial, true
	case FeatureComponent:
		return FeatureComponent, true
	default:
		return "", false
	}
}

// Reference anchors the composition of the generated image.
type Reference struct {
	ImageRef string  `json:"imageRef"`
	Weight   float64 `json:"weight"`
}

// Source contributes one weighted, typed feature to the generation.
type Source struct {
	ImageRef    string      `json:"imageRef"`
	FeatureType FeatureType `json:"featureType"`
	Weight      float64     `json:"weight"`
}

// GenerationContract is the immutable, validated request for one fusion task.
// Source order is semantically meaningful: it defines the [Source k] indices
// used by prompt cross-referencing.
type GenerationContract struct {
	TaskID         string    `json:"taskId"`
	Prompt         string    `json:"prompt"`
	NegativePrompt string    `json:"negativePrompt"`
	Model          string    `json:"model,omitempty"`
	Reference      Reference `json:"reference"`
	Sources        []Source  `json:"sources"`
}

// Status enumerates task lifecycle states.
type Status string

const (
	StatusQueued     Status = "QUEUED"
	StatusProcessing Status = "PROCESSING"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether a status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// ValidStatus reports whether raw names a known lifecycle state.
func ValidStatus(raw string) bool {
	switch Status(raw) {
	case StatusQueued, StatusProcessing, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// StatusResponse is the externally visible projection of a task. Nullable
// fields use pointers so the wire shape serializes them as JSON null.
type StatusResponse struct {
	TaskID    string    `json:"taskId"`
	Status    Status    `json:"status"`
	OutputURL *string   `json:"outputUrl"`
	ErrorCode *string   `json:"errorCode"`
	Message   *string   `json:"message"`
	Warnings  []string  `json:"warnings"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PromptIndexing summarizes the [Reference] / [Source k] markers embedded in
// a prompt. It is derived, never stored, and only ever feeds warnings.
type PromptIndexing struct {
	UsesReference bool  `json:"usesReference"`
	SourceIndexes []int `json:"sourceIndexes"`
	OutOfRange    []int `json:"outOfRange"`
}
