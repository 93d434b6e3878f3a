// Package workflow builds the descriptive dual-track plan for a validated
// generation contract. The graph is metadata returned for transparency and
// debugging; the executor does not branch on it.
package workflow

import "server/internal/contract"

// Node kinds of the fixed three-node plan.
const (
	NodeReference = "REFERENCE"
	NodeTrackB    = "TRACK_B"
	NodeMerge     = "MERGE"
)

// SourceEntry describes one track-B input in contract order.
type SourceEntry struct {
	Index       int                  `json:"index"`
	FeatureType contract.FeatureType `json:"featureType"`
	Weight      float64              `json:"weight"`
}

// Node is one step of the descriptive plan. Fields are populated according
// to the node kind.
type Node struct {
	Kind    string        `json:"kind"`
	Weight  *float64      `json:"weight,omitempty"`
	Sources []SourceEntry `json:"sources,omitempty"`
	Prompt  string        `json:"prompt,omitempty"`
	Model   string        `json:"model,omitempty"`
}

// Graph is the full plan plus the prompt indexing derived from the contract.
type Graph struct {
	Nodes          []Node                  `json:"nodes"`
	PromptIndexing contract.PromptIndexing `json:"promptIndexing"`
}

// Model returns the resolved model identifier carried by the MERGE node.
func (g *Graph) Model() string {
	for _, node := range g.Nodes {
		if node.Kind == NodeMerge {
			return node.Model
		}
	}
	return ""
}

// BuildGraph produces the fixed REFERENCE / TRACK_B / MERGE plan for a
// validated contract. defaultModel applies when the contract names none.
func BuildGraph(c *contract.GenerationContract, defaultModel string) *Graph {
	model := c.Model
	if model == "" {
		model = defaultModel
	}

	refWeight := c.Reference.Weight
	entries := make([]SourceEntry, len(c.Sources))
	for i, src := range c.Sources {
		entries[i] = SourceEntry{Index: i, FeatureType: src.FeatureType, Weight: src.Weight}
	}

	return &Graph{
		Nodes: []Node{
			{Kind: NodeReference, Weight: &refWeight},
			{Kind: NodeTrackB, Sources: entries},
			{Kind: NodeMerge, Prompt: c.Prompt, Model: model},
		},
		PromptIndexing: contract.ExtractPromptIndexing(c.Prompt, len(c.Sources)),
	}
}
