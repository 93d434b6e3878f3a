// Package executor drives one generation run: it resolves input image
// references, assembles the multimodal provider payload, invokes Gemini, and
// decodes the response into output bytes. Every failure inside a run is
// fatal to that run; there are no retries and no partial output.
package executor

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"server/internal/contract"
	"server/internal/infra"
	"server/internal/providers/genai"
	"server/internal/workflow"
)

// Stage names reported while a run progresses.
type Stage string

const (
	StageReferencePreprocess     Stage = "REFERENCE_PREPROCESS"
	StageSourceFeatureExtraction Stage = "SOURCE_FEATURE_EXTRACTION"
	StageDiffusionSampling       Stage = "DIFFUSION_SAMPLING"
	StageOutputRender            Stage = "OUTPUT_RENDER"
)

// stageProgress maps each stage onto a coarse completion fraction.
var stageProgress = map[Stage]float64{
	StageReferencePreprocess:     0.10,
	StageSourceFeatureExtraction: 0.35,
	StageDiffusionSampling:       0.65,
	StageOutputRender:            0.95,
}

// StageSink receives stage transitions. Implementations must not block; the
// executor calls them inline between I/O steps.
type StageSink interface {
	ReportStage(stage Stage, progress float64)
}

// StageSinkFunc adapts a function to the StageSink interface.
type StageSinkFunc func(stage Stage, progress float64)

func (f StageSinkFunc) ReportStage(stage Stage, progress float64) {
	f(stage, progress)
}

// ContentGenerator is the provider contract the executor depends on.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, payload genai.GenerateContentRequest) (*genai.GenerateContentResponse, error)
	Model() string
}

// Result is the complete output of one successful run.
type Result struct {
	OutputBytes     []byte
	OutputMimeType  string
	OutputExtension string
	Graph           *workflow.Graph
	Warnings        []string
}

// Executor runs validated contracts against the generation provider.
type Executor struct {
	generator  ContentGenerator
	httpClient *http.Client
	logger     infra.Logger
}

// New constructs an Executor. httpClient fetches remote image references and
// may be nil, in which case a client with a conservative timeout is used.
func New(generator ContentGenerator, httpClient *http.Client, logger infra.Logger) *Executor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Executor{generator: generator, httpClient: httpClient, logger: logger}
}

// Run performs the dual-track generation for one contract. Source images are
// resolved sequentially in contract order so [Source k] prompt references
// stay aligned with what the model receives.
func (e *Executor) Run(ctx context.Context, c *contract.GenerationContract, sink StageSink) (*Result, error) {
	model := c.Model
	if model == "" {
		model = e.generator.Model()
	}

	graph := workflow.BuildGraph(c, e.generator.Model())
	warnings := []string{}
	for _, index := range graph.PromptIndexing.OutOfRange {
		warnings = append(warnings, fmt.Sprintf("prompt references [Source %d] but only %d sources were provided", index, len(c.Sources)))
	}

	e.report(sink, StageReferencePreprocess)
	reference, err := e.resolveImageRef(ctx, "reference.imageRef", c.Reference.ImageRef)
	if err != nil {
		return nil, err
	}

	e.report(sink, StageSourceFeatureExtraction)
	sources := make([]resolvedImage, len(c.Sources))
	for i, src := range c.Sources {
		resolved, err := e.resolveImageRef(ctx, fmt.Sprintf("sources[%d].imageRef", i), src.ImageRef)
		if err != nil {
			return nil, err
		}
		sources[i] = resolved
	}

	e.report(sink, StageDiffusionSampling)
	payload := buildPayload(c, reference, sources)
	resp, err := e.generator.GenerateContent(ctx, model, payload)
	if err != nil {
		return nil, err
	}

	data, mime, err := genai.ExtractInlineImage(resp)
	if err != nil {
		return nil, err
	}

	e.report(sink, StageOutputRender)
	e.logger.Info().
		Str("task_id", c.TaskID).
		Str("model", model).
		Str("mime", mime).
		Int("bytes", len(data)).
		Msg("executor: generation completed")

	return &Result{
		OutputBytes:     data,
		OutputMimeType:  mime,
		OutputExtension: ExtensionForMime(mime),
		Graph:           graph,
		Warnings:        warnings,
	}, nil
}

func (e *Executor) report(sink StageSink, stage Stage) {
	if sink == nil {
		return
	}
	sink.ReportStage(stage, stageProgress[stage])
}

// ExtensionForMime derives the three-letter output extension. Anything that
// is not JPEG or WebP is written as PNG.
func ExtensionForMime(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}

func encodeInline(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
