package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"repolens/internal/article"
	artifactrepo "repolens/internal/gateway/repository/artifact"
	"repolens/internal/github"
	"repolens/internal/llm"
	"repolens/internal/observability"
)

type output struct {
	name string
	blob artifactrepo.Blob
}

// section is one generative sub-task. Its failure is recorded on the run
// without failing it.
type section struct {
	name string
	run  func(ctx context.Context) ([]output, error)
}

func (s *Service) execute(st *runState) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.RunTimeout)
	defer cancel()

	kind := st.run.Kind
	target := st.run.Target
	start := time.Now()
	observability.AnalysisRunsActive.Inc()
	defer observability.AnalysisRunsActive.Dec()

	var err error
	switch kind {
	case KindRepo:
		err = s.runRepo(ctx, st, target)
	case KindArticle:
		err = s.runArticle(ctx, st, target)
	default:
		err = fmt.Errorf("%w: kind %q", ErrUnsupportedInput, kind)
	}
	observability.AnalysisDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())

	if err != nil {
		observability.AnalysisRunsTotal.WithLabelValues(string(kind), "failed").Inc()
		logf("analysis: failed run=%s err=%v", st.run.ID, err)
		s.update(st, Event{Type: EventFailed, Error: err.Error()}, func(r *Run) {
			r.Status = StatusFailed
			r.Error = err.Error()
		})
		return
	}
	observability.AnalysisRunsTotal.WithLabelValues(string(kind), "completed").Inc()
	logf("analysis: completed run=%s elapsed=%s", st.run.ID, time.Since(start).Round(time.Millisecond))
	s.update(st, Event{Type: EventCompleted}, func(r *Run) {
		r.Status = StatusCompleted
		r.Stage = ""
	})
}

func (s *Service) runRepo(ctx context.Context, st *runState, target string) error {
	if s.deps.Lister == nil {
		return fmt.Errorf("analysis: repository listing is not configured")
	}
	ref, err := github.ParseRepoRef(target)
	if err != nil {
		return err
	}

	s.stage(st, "listing")
	doc, _, err := BuildRepoGraph(ctx, s.deps.Lister, ref)
	if err != nil {
		return err
	}

	s.stage(st, "graph")
	if err := s.putJSON(ctx, st, ArtifactGraph, doc); err != nil {
		return err
	}
	s.update(st, Event{Type: EventSectionDone, Section: "graph"}, func(r *Run) {
		stats := doc.Stats
		r.Title = doc.Repo
		r.Stats = &stats
		r.Truncated = doc.Truncated
		r.TotalFiles = doc.TotalFiles
	})

	return s.generate(ctx, st, []section{
		{name: SectionSummary, run: s.textSection(ArtifactSummary, llm.TextRequest{
			System: repoSystem,
			Prompt: repoSummaryPrompt(doc),
		})},
		{name: SectionAudit, run: s.textSection(ArtifactAudit, llm.TextRequest{
			System: repoSystem,
			Prompt: repoAuditPrompt(doc),
		})},
		{name: SectionInfographic, run: s.imageSection(repoInfographicPrompt(doc))},
	})
}

func (s *Service) runArticle(ctx context.Context, st *runState, target string) error {
	if s.deps.Articles == nil {
		return fmt.Errorf("analysis: article fetching is not configured")
	}

	s.stage(st, "fetching")
	a, err := s.deps.Articles.Fetch(ctx, target)
	observability.ArticleFetchesTotal.WithLabelValues(fetchOutcome(err)).Inc()
	if err != nil {
		return err
	}
	if err := s.putJSON(ctx, st, ArtifactArticle, struct {
		URL         string `json:"url"`
		Title       string `json:"title"`
		Description string `json:"description,omitempty"`
	}{a.URL, a.Title, a.Description}); err != nil {
		return err
	}
	s.update(st, Event{Type: EventSectionDone, Section: "article"}, func(r *Run) {
		r.Title = a.Title
	})

	return s.generate(ctx, st, []section{
		{name: SectionSummary, run: s.groundedSummary(a)},
		{name: SectionInfographic, run: s.imageSection(articleInfographicPrompt(a))},
	})
}

// generate runs sections concurrently and stores their outputs. Only a
// canceled or expired run context fails the run.
func (s *Service) generate(ctx context.Context, st *runState, sections []section) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, sec := range sections {
		g.Go(func() error {
			s.stage(st, "generating:"+sec.name)
			outs, err := sec.run(gctx)
			if err == nil {
				err = s.putAll(gctx, st, outs)
			}
			if err != nil {
				s.sectionFailed(st, sec.name, err)
				return nil
			}
			s.sectionDone(st, sec.name)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

func (s *Service) textSection(name string, req llm.TextRequest) func(context.Context) ([]output, error) {
	return func(ctx context.Context) ([]output, error) {
		if s.deps.Model == nil {
			return nil, ErrNoModel
		}
		res, err := s.deps.Model.GenerateText(ctx, req)
		if err != nil {
			return nil, err
		}
		if res == nil || strings.TrimSpace(res.Text) == "" {
			return nil, llm.ErrNoPayload
		}
		return []output{{name: name, blob: markdown(res.Text)}}, nil
	}
}

func (s *Service) groundedSummary(a *article.Article) func(context.Context) ([]output, error) {
	return func(ctx context.Context) ([]output, error) {
		if s.deps.Model == nil {
			return nil, ErrNoModel
		}
		res, err := s.deps.Model.GenerateText(ctx, llm.TextRequest{
			System:   articleSystem,
			Prompt:   articleSummaryPrompt(a),
			Grounded: true,
		})
		if err != nil {
			return nil, err
		}
		if res == nil || strings.TrimSpace(res.Text) == "" {
			return nil, llm.ErrNoPayload
		}
		citations := res.Citations
		if citations == nil {
			citations = []llm.Citation{}
		}
		raw, err := json.MarshalIndent(citations, "", "  ")
		if err != nil {
			return nil, err
		}
		return []output{
			{name: ArtifactSummary, blob: markdown(res.Text)},
			{name: ArtifactCitations, blob: artifactrepo.Blob{Data: raw, ContentType: "application/json"}},
		}, nil
	}
}

func (s *Service) imageSection(prompt string) func(context.Context) ([]output, error) {
	return func(ctx context.Context) ([]output, error) {
		if s.deps.Model == nil {
			return nil, ErrNoModel
		}
		img, err := s.deps.Model.GenerateImage(ctx, llm.ImageRequest{Prompt: prompt})
		if err != nil {
			return nil, err
		}
		if img == nil || len(img.Data) == 0 {
			return nil, llm.ErrNoPayload
		}
		mime := strings.TrimSpace(img.MIMEType)
		if mime == "" {
			mime = "image/png"
		}
		return []output{{
			name: "infographic." + imageExt(mime),
			blob: artifactrepo.Blob{Data: img.Data, ContentType: mime},
		}}, nil
	}
}

func (s *Service) putJSON(ctx context.Context, st *runState, name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return s.putAll(ctx, st, []output{{name: name, blob: artifactrepo.Blob{Data: raw, ContentType: "application/json"}}})
}

func (s *Service) putAll(ctx context.Context, st *runState, outs []output) error {
	for _, o := range outs {
		if err := s.deps.Store.Put(ctx, st.run.ID, o.name, o.blob); err != nil {
			return fmt.Errorf("store %s: %w", o.name, err)
		}
		s.addArtifact(st, o.name)
	}
	return nil
}

func markdown(text string) artifactrepo.Blob {
	return artifactrepo.Blob{Data: []byte(strings.TrimSpace(text) + "\n"), ContentType: "text/markdown; charset=utf-8"}
}

func imageExt(mime string) string {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(mime, ";", 2)[0])) {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "bin"
	}
}

func fetchOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, article.ErrInvalidURL):
		return "invalid_url"
	case errors.Is(err, article.ErrBlockedAddress):
		return "blocked"
	case errors.Is(err, article.ErrEmptyArticle):
		return "empty"
	default:
		return "error"
	}
}
