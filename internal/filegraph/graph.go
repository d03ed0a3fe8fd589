// Package filegraph turns a flat repository file listing into a rooted
// containment tree (folders and files as nodes, parent links as edges) that a
// force-directed layout can render directly.
package filegraph

const (
	// RootID is the id of the synthetic root node every graph starts with.
	RootID = "root"
	// MaxEntries bounds how many listing entries are folded into one graph.
	// Entries past the bound are ignored, not sampled.
	MaxEntries = 100
)

// Rendering categories carried on Node.Group.
const (
	GroupRoot   = 0
	GroupOther  = 1
	GroupCode   = 2
	GroupStyle  = 3
	GroupData   = 4
	GroupFolder = 5
)

// FileEntry is one record of a repository listing.
// Type is passed through from the listing source and not interpreted here.
type FileEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

type Node struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Group int    `json:"group"`
}

// Link points from a parent node to one of its children. Value is always 1.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Value  int    `json:"value"`
}

type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Build folds the first MaxEntries entries, in order, into a graph rooted at
// RootID. Ids are allocated by first-seen order of distinct path prefixes, so
// the same input always yields the same graph. An empty input yields the
// root-only graph.
func Build(entries []FileEntry) Graph {
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	b := newBuilder(len(entries))
	for _, e := range entries {
		b.add(SplitPath(e.Path))
	}
	return b.graph()
}

// Truncated reports whether Build drops part of entries.
func Truncated(entries []FileEntry) bool {
	return len(entries) > MaxEntries
}
