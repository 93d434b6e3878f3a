package executor

import (
	"fmt"
	"strings"

	"server/internal/contract"
	"server/internal/providers/genai"
)

// featureHint maps each feature type to the natural-language transfer
// instruction handed to the model.
func featureHint(ft contract.FeatureType) string {
	switch ft {
	case contract.FeatureFace:
		return "preserve this person's identity and facial features"
	case contract.FeatureStyle:
		return "transfer the visual style, color palette and overall tone"
	case contract.FeatureMaterial:
		return "reproduce the surface texture with high material fidelity"
	case contract.FeatureComponent:
		return "treat it as a swappable component to integrate into the result"
	default:
		return "blend it into the composition"
	}
}

// buildSystemInstruction lists every source with its index, type, weight and
// transfer hint so the model knows how to weigh each contributor.
func buildSystemInstruction(c *contract.GenerationContract) string {
	lines := []string{
		"You are a multi-image fusion engine. Combine the reference image with the weighted source images into a single output image.",
		"The reference image anchors composition and structure. Each source image contributes one transferable feature.",
	}
	for i, src := range c.Sources {
		lines = append(lines, fmt.Sprintf("Source %d (%s, weight %.4f): %s.", i, src.FeatureType, src.Weight, featureHint(src.FeatureType)))
	}
	lines = append(lines, "Respond with exactly one generated image.")
	return strings.Join(lines, "\n")
}

// buildUserPrompt summarizes the task and carries the caller's prompt plus
// the negative prompt when present.
func buildUserPrompt(c *contract.GenerationContract) string {
	lines := []string{
		fmt.Sprintf("Task %s: fuse the attached images.", c.TaskID),
		fmt.Sprintf("Reference weight: %.4f.", c.Reference.Weight),
	}
	summaries := make([]string, len(c.Sources))
	for i, src := range c.Sources {
		summaries[i] = fmt.Sprintf("source %d %s %.4f", i, src.FeatureType, src.Weight)
	}
	lines = append(lines, "Sources: "+strings.Join(summaries, ", ")+".")
	lines = append(lines, "Prompt: "+c.Prompt)
	if negative := strings.TrimSpace(c.NegativePrompt); negative != "" {
		lines = append(lines, "Negative prompt: "+negative)
	}
	return strings.Join(lines, "\n")
}

// buildPayload assembles the single multimodal request: system instruction,
// user turn, the reference image first, then every source image in original
// order, each preceded by a textual index marker. Both image and text
// response modalities are declared; text-only answers are rejected later.
func buildPayload(c *contract.GenerationContract, reference resolvedImage, sources []resolvedImage) genai.GenerateContentRequest {
	parts := []genai.Part{
		{Text: buildUserPrompt(c)},
		{Text: "[Reference]"},
		{InlineData: &genai.InlineData{
			MimeType: reference.MimeType,
			Data:     encodeInline(reference.Data),
		}},
	}
	for i, src := range sources {
		parts = append(parts,
			genai.Part{Text: fmt.Sprintf("[Source %d]", i)},
			genai.Part{InlineData: &genai.InlineData{
				MimeType: src.MimeType,
				Data:     encodeInline(src.Data),
			}},
		)
	}

	return genai.GenerateContentRequest{
		SystemInstruction: &genai.Content{
			Parts: []genai.Part{{Text: buildSystemInstruction(c)}},
		},
		Contents: []genai.Content{{Role: "user", Parts: parts}},
		GenerationConfig: &genai.GenerationConfig{
			ResponseModalities: []string{"IMAGE", "TEXT"},
		},
	}
}
