package analysis

import (
	"context"
	"fmt"

	"repolens/internal/filegraph"
	"repolens/internal/github"
	"repolens/internal/observability"
)

// RepoGraph is the graph document served for a repository and stored as the
// graph.json artifact.
type RepoGraph struct {
	Repo       string          `json:"repo,omitempty"`
	Graph      filegraph.Graph `json:"graph"`
	Stats      filegraph.Stats `json:"stats"`
	Truncated  bool            `json:"truncated"`
	TotalFiles int             `json:"total_files"`
}

// GraphFromEntries builds the document for an explicit listing.
func GraphFromEntries(source string, entries []filegraph.FileEntry) *RepoGraph {
	g := filegraph.Build(entries)
	doc := &RepoGraph{
		Graph:      g,
		Stats:      filegraph.Summarize(g),
		Truncated:  filegraph.Truncated(entries),
		TotalFiles: len(entries),
	}
	observability.ObserveGraph(source, doc.Stats.Nodes, doc.Truncated)
	return doc
}

// BuildRepoGraph lists ref through lister and builds its graph.
func BuildRepoGraph(ctx context.Context, lister github.Lister, ref github.RepoRef) (*RepoGraph, []filegraph.FileEntry, error) {
	entries, err := lister.ListFiles(ctx, ref)
	if err != nil {
		return nil, nil, fmt.Errorf("list %s: %w", ref, err)
	}
	doc := GraphFromEntries("repo", entries)
	doc.Repo = ref.String()
	logf("analysis: graph repo=%s files=%d nodes=%d truncated=%t", ref, len(entries), doc.Stats.Nodes, doc.Truncated)
	return doc, entries, nil
}
