package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repolens/internal/article"
	"repolens/internal/filegraph"
	artifactrepo "repolens/internal/gateway/repository/artifact"
	"repolens/internal/github"
	"repolens/internal/llm"
)

type fakeLister struct {
	entries []filegraph.FileEntry
	err     error
	calls   int
	mu      sync.Mutex
}

func (f *fakeLister) ListFiles(_ context.Context, _ github.RepoRef) ([]filegraph.FileEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.entries, f.err
}

type fakeSource struct {
	article *article.Article
	err     error
}

func (f *fakeSource) Fetch(_ context.Context, rawURL string) (*article.Article, error) {
	if f.err != nil {
		return nil, f.err
	}
	a := *f.article
	a.URL = rawURL
	return &a, nil
}

type fakeModel struct {
	mu sync.Mutex

	textErr   error
	imageErr  error
	citations []llm.Citation
	emptyText bool

	textCalls  int
	imageCalls int
	grounded   int
}

func (m *fakeModel) Name() string { return "fake" }
func (m *fakeModel) Close() error { return nil }

func (m *fakeModel) GenerateText(_ context.Context, req llm.TextRequest) (*llm.TextResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.textCalls++
	if req.Grounded {
		m.grounded++
	}
	if m.textErr != nil {
		return nil, m.textErr
	}
	if m.emptyText {
		return &llm.TextResult{}, nil
	}
	return &llm.TextResult{Text: "# generated\n" + firstLine(req.Prompt), Citations: m.citations}, nil
}

func (m *fakeModel) GenerateImage(_ context.Context, _ llm.ImageRequest) (*llm.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imageCalls++
	if m.imageErr != nil {
		return nil, m.imageErr
	}
	return &llm.Image{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func newTestService(t *testing.T, deps Deps) *Service {
	t.Helper()
	if deps.Store == nil {
		deps.Store = artifactrepo.NewMemoryStore()
	}
	svc, err := NewService(deps, Config{MaxRuns: 8, RunTimeout: 5 * time.Second})
	require.NoError(t, err)
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("run-%d", n)
	}
	t.Cleanup(svc.Close)
	return svc
}

// waitTerminal subscribes until the run finishes and returns the final
// snapshot together with the full recorded event log.
func waitTerminal(t *testing.T, svc *Service, id string) (*Run, []Event) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	ch, err := svc.Subscribe(ctx, id)
	require.NoError(t, err)

	for evt := range ch {
		if evt.Run != nil && evt.Run.Status.Terminal() {
			return evt.Run, recordedEvents(svc, id)
		}
	}
	t.Fatalf("run %s did not finish", id)
	return nil, nil
}

func recordedEvents(svc *Service, id string) []Event {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	st, ok := svc.runs.Get(id)
	if !ok {
		return nil
	}
	return append([]Event(nil), st.events...)
}

func repoEntries() []filegraph.FileEntry {
	return []filegraph.FileEntry{
		{Path: "src/app.ts", Type: "blob"},
		{Path: "src/styles/main.css", Type: "blob"},
		{Path: "package.json", Type: "blob"},
	}
}

func TestServiceRepoRunProducesArtifacts(t *testing.T) {
	store := artifactrepo.NewMemoryStore()
	model := &fakeModel{}
	svc := newTestService(t, Deps{
		Lister: &fakeLister{entries: repoEntries()},
		Model:  model,
		Store:  store,
	})

	run, err := svc.Start(context.Background(), "https://github.com/acme/widget")
	require.NoError(t, err)
	assert.Equal(t, KindRepo, run.Kind)
	assert.Equal(t, "acme/widget", run.Target)
	assert.Equal(t, StatusQueued, run.Status)

	final, _ := waitTerminal(t, svc, run.ID)
	require.Equal(t, StatusCompleted, final.Status, "errors: %v", final.Errors)
	assert.Empty(t, final.Errors)
	assert.ElementsMatch(t, []string{ArtifactGraph, ArtifactSummary, ArtifactAudit, "infographic.png"}, final.Artifacts)
	require.NotNil(t, final.Stats)
	assert.Equal(t, 6, final.Stats.Nodes)
	assert.Equal(t, 3, final.TotalFiles)
	assert.False(t, final.Truncated)

	blob, err := store.Get(context.Background(), run.ID, ArtifactGraph)
	require.NoError(t, err)
	var doc RepoGraph
	require.NoError(t, json.Unmarshal(blob.Data, &doc))
	assert.Equal(t, "acme/widget", doc.Repo)
	assert.Len(t, doc.Graph.Nodes, 6)
	assert.Len(t, doc.Graph.Links, 5)

	img, err := store.Get(context.Background(), run.ID, "infographic.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.ContentType)

	assert.Equal(t, 2, model.textCalls)
	assert.Equal(t, 1, model.imageCalls)
	assert.Zero(t, model.grounded)
}

func TestServiceSectionFailureDoesNotFailRun(t *testing.T) {
	svc := newTestService(t, Deps{
		Lister: &fakeLister{entries: repoEntries()},
		Model:  &fakeModel{imageErr: errors.New("quota exceeded")},
	})

	run, err := svc.Start(context.Background(), "acme/widget")
	require.NoError(t, err)

	final, events := waitTerminal(t, svc, run.ID)
	assert.Equal(t, StatusCompleted, final.Status)
	assert.Contains(t, final.Errors[SectionInfographic], "quota exceeded")
	assert.NotContains(t, final.Artifacts, "infographic.png")
	assert.Contains(t, final.Artifacts, ArtifactSummary)

	var failed []string
	for _, evt := range events {
		if evt.Type == EventSectionFailed {
			failed = append(failed, evt.Section)
		}
	}
	assert.Equal(t, []string{SectionInfographic}, failed)
}

func TestServiceEmptyPayloadIsRecorded(t *testing.T) {
	svc := newTestService(t, Deps{
		Lister: &fakeLister{entries: repoEntries()},
		Model:  &fakeModel{emptyText: true},
	})
	run, err := svc.Start(context.Background(), "acme/widget")
	require.NoError(t, err)

	final, _ := waitTerminal(t, svc, run.ID)
	assert.Equal(t, StatusCompleted, final.Status)
	assert.Contains(t, final.Errors, SectionSummary)
	assert.Contains(t, final.Errors, SectionAudit)
	assert.NotContains(t, final.Errors, SectionInfographic)
}

func TestServiceWithoutModelStillBuildsGraph(t *testing.T) {
	svc := newTestService(t, Deps{Lister: &fakeLister{entries: repoEntries()}})
	run, err := svc.Start(context.Background(), "acme/widget")
	require.NoError(t, err)

	final, _ := waitTerminal(t, svc, run.ID)
	assert.Equal(t, StatusCompleted, final.Status)
	assert.Equal(t, []string{ArtifactGraph}, final.Artifacts)
	assert.Len(t, final.Errors, 3)
	assert.Contains(t, final.Errors[SectionSummary], ErrNoModel.Error())
}

func TestServiceListingFailureFailsRun(t *testing.T) {
	svc := newTestService(t, Deps{
		Lister: &fakeLister{err: github.ErrNotFound},
		Model:  &fakeModel{},
	})
	run, err := svc.Start(context.Background(), "acme/missing")
	require.NoError(t, err)

	final, events := waitTerminal(t, svc, run.ID)
	assert.Equal(t, StatusFailed, final.Status)
	assert.Contains(t, final.Error, "repository not found")
	assert.Equal(t, EventFailed, events[len(events)-1].Type)
}

func TestServiceTruncatedListing(t *testing.T) {
	entries := make([]filegraph.FileEntry, 0, 120)
	for i := 0; i < 120; i++ {
		entries = append(entries, filegraph.FileEntry{Path: fmt.Sprintf("f%03d.go", i), Type: "blob"})
	}
	svc := newTestService(t, Deps{Lister: &fakeLister{entries: entries}, Model: &fakeModel{}})
	run, err := svc.Start(context.Background(), "acme/big")
	require.NoError(t, err)

	final, _ := waitTerminal(t, svc, run.ID)
	assert.True(t, final.Truncated)
	assert.Equal(t, 120, final.TotalFiles)
	assert.Equal(t, filegraph.MaxEntries+1, final.Stats.Nodes)
}

func TestServiceArticleRunWithCitations(t *testing.T) {
	store := artifactrepo.NewMemoryStore()
	model := &fakeModel{citations: []llm.Citation{{Title: "Source", URI: "https://example.org/s"}}}
	svc := newTestService(t, Deps{
		Articles: &fakeSource{article: &article.Article{Title: "Tides", Text: "The moon pulls the sea."}},
		Model:    model,
		Store:    store,
	})

	run, err := svc.Start(context.Background(), "https://example.com/tides")
	require.NoError(t, err)
	assert.Equal(t, KindArticle, run.Kind)

	final, _ := waitTerminal(t, svc, run.ID)
	require.Equal(t, StatusCompleted, final.Status, "errors: %v", final.Errors)
	assert.Equal(t, "Tides", final.Title)
	assert.ElementsMatch(t, []string{ArtifactArticle, ArtifactSummary, ArtifactCitations, "infographic.png"}, final.Artifacts)
	assert.Equal(t, 1, model.grounded)

	blob, err := store.Get(context.Background(), run.ID, ArtifactCitations)
	require.NoError(t, err)
	var citations []llm.Citation
	require.NoError(t, json.Unmarshal(blob.Data, &citations))
	assert.Equal(t, model.citations, citations)
}

func TestServiceArticleFetchFailure(t *testing.T) {
	svc := newTestService(t, Deps{
		Articles: &fakeSource{err: fmt.Errorf("%w: nothing here", article.ErrEmptyArticle)},
		Model:    &fakeModel{},
	})
	run, err := svc.Start(context.Background(), "https://example.com/empty")
	require.NoError(t, err)

	final, _ := waitTerminal(t, svc, run.ID)
	assert.Equal(t, StatusFailed, final.Status)
	assert.Contains(t, final.Error, "no readable text")
}

func TestServiceStartRejectsUnsupportedInput(t *testing.T) {
	svc := newTestService(t, Deps{})
	_, err := svc.Start(context.Background(), "not a thing")
	assert.ErrorIs(t, err, ErrUnsupportedInput)
}

func TestServiceGetAndSubscribeUnknownRun(t *testing.T) {
	svc := newTestService(t, Deps{})
	_, err := svc.Get("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = svc.Subscribe(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestServiceSubscribeStartsWithSnapshot(t *testing.T) {
	svc := newTestService(t, Deps{Lister: &fakeLister{entries: repoEntries()}, Model: &fakeModel{}})
	run, err := svc.Start(context.Background(), "acme/widget")
	require.NoError(t, err)

	ch, err := svc.Subscribe(context.Background(), run.ID)
	require.NoError(t, err)
	first := <-ch
	assert.Equal(t, EventSnapshot, first.Type)
	require.NotNil(t, first.Run)
	assert.Equal(t, run.ID, first.Run.ID)
	for range ch {
	}

	_, events := waitTerminal(t, svc, run.ID)
	require.NotEmpty(t, events)
	assert.Equal(t, EventQueued, events[0].Type)
	assert.Equal(t, EventCompleted, events[len(events)-1].Type)

	// A late subscriber gets the terminal snapshot and then the channel closes.
	ch, err = svc.Subscribe(context.Background(), run.ID)
	require.NoError(t, err)
	var late []Event
	for evt := range ch {
		late = append(late, evt)
	}
	require.Len(t, late, 1)
	assert.Equal(t, StatusCompleted, late[0].Run.Status)
}

func TestServiceGetReturnsCopy(t *testing.T) {
	svc := newTestService(t, Deps{Lister: &fakeLister{entries: repoEntries()}, Model: &fakeModel{}})
	run, err := svc.Start(context.Background(), "acme/widget")
	require.NoError(t, err)
	waitTerminal(t, svc, run.ID)

	got, err := svc.Get(run.ID)
	require.NoError(t, err)
	got.Artifacts[0] = "mutated"
	again, err := svc.Get(run.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", again.Artifacts[0])
}

func TestDetectKind(t *testing.T) {
	cases := []struct {
		in     string
		kind   Kind
		target string
		err    bool
	}{
		{in: "acme/widget", kind: KindRepo, target: "acme/widget"},
		{in: " https://github.com/acme/widget/tree/main ", kind: KindRepo, target: "acme/widget"},
		{in: "git@github.com:acme/widget.git", kind: KindRepo, target: "acme/widget"},
		{in: "https://example.com/post/1", kind: KindArticle, target: "https://example.com/post/1"},
		{in: "ftp://example.com/x", err: true},
		{in: "hello", err: true},
		{in: "medium.com/some-post", err: true},
		{in: "../admin", err: true},
		{in: "", err: true},
	}
	for _, tc := range cases {
		kind, target, err := DetectKind(tc.in)
		if tc.err {
			assert.ErrorIs(t, err, ErrUnsupportedInput, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.kind, kind, tc.in)
		assert.Equal(t, tc.target, target, tc.in)
	}
}

func TestImageExt(t *testing.T) {
	assert.Equal(t, "png", imageExt("image/png"))
	assert.Equal(t, "jpg", imageExt("IMAGE/JPEG; q=1"))
	assert.Equal(t, "webp", imageExt("image/webp"))
	assert.Equal(t, "bin", imageExt("application/x-unknown"))
}

// blockingModel holds every call until its context ends.
type blockingModel struct {
	once    sync.Once
	started chan struct{}
}

func newBlockingModel() *blockingModel { return &blockingModel{started: make(chan struct{})} }

func (m *blockingModel) Name() string { return "blocking" }
func (m *blockingModel) Close() error { return nil }

func (m *blockingModel) wait(ctx context.Context) error {
	m.once.Do(func() { close(m.started) })
	<-ctx.Done()
	return ctx.Err()
}

func (m *blockingModel) GenerateText(ctx context.Context, _ llm.TextRequest) (*llm.TextResult, error) {
	return nil, m.wait(ctx)
}

func (m *blockingModel) GenerateImage(ctx context.Context, _ llm.ImageRequest) (*llm.Image, error) {
	return nil, m.wait(ctx)
}

func TestServiceRunTimeoutFailsRun(t *testing.T) {
	svc, err := NewService(Deps{
		Lister: &fakeLister{entries: repoEntries()},
		Model:  newBlockingModel(),
		Store:  artifactrepo.NewMemoryStore(),
	}, Config{RunTimeout: 200 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	run, err := svc.Start(context.Background(), "acme/widget")
	require.NoError(t, err)

	final, _ := waitTerminal(t, svc, run.ID)
	assert.Equal(t, StatusFailed, final.Status)
	assert.Contains(t, final.Error, context.DeadlineExceeded.Error())
	assert.Contains(t, final.Artifacts, ArtifactGraph)
	assert.Contains(t, final.Errors, SectionSummary)
}

func TestServiceCloseCancelsInFlightRun(t *testing.T) {
	model := newBlockingModel()
	svc := newTestService(t, Deps{
		Lister: &fakeLister{entries: repoEntries()},
		Model:  model,
	})
	run, err := svc.Start(context.Background(), "acme/widget")
	require.NoError(t, err)

	select {
	case <-model.started:
	case <-time.After(3 * time.Second):
		t.Fatalf("model was never called")
	}

	done := make(chan struct{})
	go func() {
		svc.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("Close did not return")
	}

	got, err := svc.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Contains(t, got.Error, context.Canceled.Error())
}
