package filegraph

// Stats is a compact description of a built graph.
type Stats struct {
	Nodes   int         `json:"nodes"`
	Links   int         `json:"links"`
	Folders int         `json:"folders"`
	Files   int         `json:"files"`
	Groups  map[int]int `json:"groups"`
}

func Summarize(g Graph) Stats {
	st := Stats{
		Nodes:  len(g.Nodes),
		Links:  len(g.Links),
		Groups: make(map[int]int, 6),
	}
	for _, n := range g.Nodes {
		st.Groups[n.Group]++
		switch n.Group {
		case GroupRoot:
		case GroupFolder:
			st.Folders++
		default:
			st.Files++
		}
	}
	return st
}
