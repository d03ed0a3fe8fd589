package filegraph

import (
	"strconv"
	"strings"
)

// builder accumulates nodes and links for a single Build call. Nothing in it
// outlives the call.
type builder struct {
	ids   map[string]string // cumulative prefix -> node id
	nodes []Node
	links []Link
	next  int
}

func newBuilder(sizeHint int) *builder {
	b := &builder{
		ids:   make(map[string]string, sizeHint*2+1),
		nodes: make([]Node, 0, sizeHint*2+1),
		links: make([]Link, 0, sizeHint*2),
		next:  1,
	}
	b.ids[""] = RootID
	b.nodes = append(b.nodes, Node{ID: RootID, Label: RootID, Group: GroupRoot})
	return b
}

// add folds one segmented path. Each segment is keyed by its cumulative
// prefix; a prefix seen before reuses its node so every node keeps a single
// parent.
func (b *builder) add(segments []string) {
	parent := RootID
	var prefix strings.Builder
	for i, seg := range segments {
		if i > 0 {
			prefix.WriteByte('/')
		}
		prefix.WriteString(seg)
		key := prefix.String()

		if id, ok := b.ids[key]; ok {
			parent = id
			continue
		}

		id := "node_" + strconv.Itoa(b.next)
		b.next++

		group := GroupFolder
		if i == len(segments)-1 {
			group = Classify(seg)
		}
		b.nodes = append(b.nodes, Node{ID: id, Label: seg, Group: group})
		b.links = append(b.links, Link{Source: parent, Target: id, Value: 1})
		b.ids[key] = id
		parent = id
	}
}

func (b *builder) graph() Graph {
	return Graph{Nodes: b.nodes, Links: b.links}
}
