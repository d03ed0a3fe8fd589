package analysis

import (
	"fmt"
	"sort"
	"strings"

	"repolens/internal/article"
	"repolens/internal/filegraph"
)

const (
	repoSystem = "You explain software repositories to engineers who have never seen them. " +
		"Answer in Markdown. Be concrete and refer to real paths from the layout."
	articleSystem = "You summarise web articles for a visual one-page brief. " +
		"Answer in Markdown with a short title, five to eight bullet points and a closing takeaway."
)

// infographicTextBytes bounds the article text sent with the image prompt.
const infographicTextBytes = 4000

var groupNames = map[int]string{
	filegraph.GroupOther:  "other",
	filegraph.GroupCode:   "code",
	filegraph.GroupStyle:  "style",
	filegraph.GroupData:   "data",
	filegraph.GroupFolder: "folder",
}

func describeStats(st filegraph.Stats) string {
	groups := make([]int, 0, len(st.Groups))
	for g := range st.Groups {
		if g != filegraph.GroupRoot {
			groups = append(groups, g)
		}
	}
	sort.Ints(groups)
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		parts = append(parts, fmt.Sprintf("%s=%d", groupNames[g], st.Groups[g]))
	}
	return fmt.Sprintf("%d folders, %d files (%s)", st.Folders, st.Files, strings.Join(parts, ", "))
}

// layout renders the graph as a tree and notes any paths past the bound.
func layout(doc *RepoGraph) string {
	out := filegraph.RenderTree(doc.Graph)
	if doc.Truncated {
		out += fmt.Sprintf("\n... %d more paths omitted", doc.TotalFiles-filegraph.MaxEntries)
	}
	return out
}

func repoSummaryPrompt(doc *RepoGraph) string {
	return fmt.Sprintf(`Repository: %s
Structure: %s

Layout:
%s

Write a summary with these sections: Purpose, Architecture, Key directories, How to get started.`,
		doc.Repo, describeStats(doc.Stats), layout(doc))
}

func repoAuditPrompt(doc *RepoGraph) string {
	return fmt.Sprintf(`Repository: %s
Structure: %s

Layout:
%s

Judge the repository only from the layout above. Report missing tests, missing docs or CI,
suspicious files that look like secrets or build output, and the three most useful
improvements. Use one Markdown section per finding category.`,
		doc.Repo, describeStats(doc.Stats), layout(doc))
}

func repoInfographicPrompt(doc *RepoGraph) string {
	return fmt.Sprintf("Create a clean, readable infographic poster that explains the GitHub repository %s. "+
		"It has %s. Show the main components as labelled blocks with arrows for how they relate, "+
		"use a light background and at most six short text labels.",
		doc.Repo, describeStats(doc.Stats))
}

func articleSummaryPrompt(a *article.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Article: %s\nURL: %s\n", a.Title, a.URL)
	if a.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", a.Description)
	}
	fmt.Fprintf(&b, "\nText:\n%s\n\nSummarise the article and check its main claims against other sources.", a.Text)
	return b.String()
}

func articleInfographicPrompt(a *article.Article) string {
	text := article.TruncateUTF8(a.Text, infographicTextBytes)
	return fmt.Sprintf("Create a clean, readable infographic that explains the article %q. "+
		"Use at most six short text labels, simple icons and a clear top-to-bottom flow. Source text:\n%s",
		a.Title, text)
}
