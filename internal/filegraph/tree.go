package filegraph

import (
	"sort"
	"strings"
)

// RenderTree draws g as an indented text tree below the root, folders
// first and then files, each group sorted by label:
//
//	src
//	├── styles
//	│   └── main.css
//	└── app.ts
//	package.json
func RenderTree(g Graph) string {
	children := make(map[string][]Node, len(g.Nodes))
	byID := make(map[string]Node, len(g.Nodes))
	for _, n := range g.Nodes {
		byID[n.ID] = n
	}
	for _, l := range g.Links {
		if n, ok := byID[l.Target]; ok {
			children[l.Source] = append(children[l.Source], n)
		}
	}
	for id := range children {
		kids := children[id]
		sort.SliceStable(kids, func(i, j int) bool {
			fi, fj := kids[i].Group == GroupFolder, kids[j].Group == GroupFolder
			if fi != fj {
				return fi
			}
			return kids[i].Label < kids[j].Label
		})
	}

	var sb strings.Builder
	renderTree(&sb, children, RootID, "")
	return strings.TrimRight(sb.String(), "\n")
}

func renderTree(sb *strings.Builder, children map[string][]Node, id, prefix string) {
	kids := children[id]
	for i, n := range kids {
		isLast := i == len(kids)-1
		sb.WriteString(prefix)
		if prefix != "" || id != RootID {
			if isLast {
				sb.WriteString("└── ")
			} else {
				sb.WriteString("├── ")
			}
		}
		sb.WriteString(n.Label)
		sb.WriteString("\n")

		if len(children[n.ID]) == 0 {
			continue
		}
		newPrefix := prefix
		if id != RootID {
			if isLast {
				newPrefix += "    "
			} else {
				newPrefix += "│   "
			}
		}
		renderTree(sb, children, n.ID, newPrefix)
	}
}
