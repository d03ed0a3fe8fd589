// Package analysis runs the end-to-end jobs behind the infographic front-end:
// list a repository or fetch an article, build the file graph, ask the
// generative model for the summary, audit and infographic, and store every
// payload as an artifact of the run.
package analysis

import (
	"errors"
	"maps"
	"time"

	"repolens/internal/filegraph"
)

var (
	ErrUnsupportedInput = errors.New("analysis: input is neither a repository nor an article url")
	ErrRunNotFound      = errors.New("analysis: run not found")
	ErrNoModel          = errors.New("analysis: no generative model configured")
)

type Kind string

const (
	KindRepo    Kind = "repo"
	KindArticle Kind = "article"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

const (
	SectionSummary     = "summary"
	SectionAudit       = "audit"
	SectionInfographic = "infographic"
)

const (
	ArtifactGraph     = "graph.json"
	ArtifactArticle   = "article.json"
	ArtifactSummary   = "summary.md"
	ArtifactAudit     = "audit.md"
	ArtifactCitations = "citations.json"
)

// Run is the client-visible state of one analysis.
type Run struct {
	ID     string `json:"id"`
	Kind   Kind   `json:"kind"`
	Input  string `json:"input"`
	Target string `json:"target"`
	Status Status `json:"status"`
	Stage  string `json:"stage,omitempty"`
	Title  string `json:"title,omitempty"`

	Stats      *filegraph.Stats `json:"stats,omitempty"`
	Truncated  bool             `json:"truncated,omitempty"`
	TotalFiles int              `json:"total_files,omitempty"`

	Artifacts []string `json:"artifacts"`
	// Errors holds per-section failures; the run itself can still complete.
	Errors map[string]string `json:"errors,omitempty"`
	Error  string            `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r Run) clone() Run {
	out := r
	out.Artifacts = append([]string{}, r.Artifacts...)
	if r.Errors != nil {
		out.Errors = maps.Clone(r.Errors)
	}
	if r.Stats != nil {
		st := *r.Stats
		st.Groups = maps.Clone(r.Stats.Groups)
		out.Stats = &st
	}
	return out
}

type EventType string

const (
	EventSnapshot      EventType = "snapshot"
	EventQueued        EventType = "queued"
	EventStage         EventType = "stage"
	EventSectionDone   EventType = "section_done"
	EventSectionFailed EventType = "section_failed"
	EventCompleted     EventType = "completed"
	EventFailed        EventType = "failed"
)

// Event is one progress notification of a run.
type Event struct {
	Type    EventType `json:"type"`
	RunID   string    `json:"run_id"`
	Stage   string    `json:"stage,omitempty"`
	Section string    `json:"section,omitempty"`
	Error   string    `json:"error,omitempty"`
	// Run is set on snapshot and terminal events.
	Run *Run      `json:"run,omitempty"`
	At  time.Time `json:"at"`
}
