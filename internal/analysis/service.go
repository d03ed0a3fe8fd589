package analysis

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"repolens/internal/article"
	artifactrepo "repolens/internal/gateway/repository/artifact"
	"repolens/internal/github"
	"repolens/internal/llm"
)

var logf = log.Printf

const (
	defaultMaxRuns    = 512
	defaultRunTimeout = 5 * time.Minute
)

type Deps struct {
	Lister   github.Lister
	Articles article.Source
	// Model may be nil; generative sections then fail with ErrNoModel.
	Model llm.Client
	Store artifactrepo.Store
}

type Config struct {
	MaxRuns    int
	RunTimeout time.Duration
}

type runState struct {
	run     Run
	events  []Event
	changed chan struct{}
}

// Service owns the run table. Runs past MaxRuns are evicted oldest first;
// their artifacts stay in the store.
type Service struct {
	deps Deps
	cfg  Config

	mu   sync.Mutex
	runs *lru.Cache[string, *runState]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now   func() time.Time
	newID func() string
}

func NewService(deps Deps, cfg Config) (*Service, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("analysis: artifact store is required")
	}
	if cfg.MaxRuns <= 0 {
		cfg.MaxRuns = defaultMaxRuns
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = defaultRunTimeout
	}
	runs, err := lru.New[string, *runState](cfg.MaxRuns)
	if err != nil {
		return nil, fmt.Errorf("analysis: run table: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		deps:   deps,
		cfg:    cfg,
		runs:   runs,
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
		newID:  uuid.NewString,
	}, nil
}

// Start registers a run for input and executes it in the background.
func (s *Service) Start(_ context.Context, input string) (*Run, error) {
	kind, target, err := DetectKind(input)
	if err != nil {
		return nil, err
	}
	now := s.now()
	st := &runState{
		run: Run{
			ID:        s.newID(),
			Kind:      kind,
			Input:     strings.TrimSpace(input),
			Target:    target,
			Status:    StatusQueued,
			Artifacts: []string{},
			CreatedAt: now,
			UpdatedAt: now,
		},
		changed: make(chan struct{}),
	}
	st.events = append(st.events, Event{Type: EventQueued, RunID: st.run.ID, At: now})

	s.mu.Lock()
	s.runs.Add(st.run.ID, st)
	snap := st.run.clone()
	s.mu.Unlock()

	logf("analysis: queued run=%s kind=%s target=%s", snap.ID, kind, target)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(st)
	}()
	return &snap, nil
}

func (s *Service) Get(id string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.runs.Get(strings.TrimSpace(id))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	snap := st.run.clone()
	return &snap, nil
}

// Subscribe streams a snapshot of the run followed by every later event.
// The channel closes after a terminal event or when ctx is canceled.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan Event, error) {
	id = strings.TrimSpace(id)
	s.mu.Lock()
	st, ok := s.runs.Get(id)
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		cursor := -1
		for {
			var batch []Event
			s.mu.Lock()
			if cursor < 0 {
				snap := st.run.clone()
				batch = append(batch, Event{Type: EventSnapshot, RunID: id, Stage: snap.Stage, Run: &snap, At: s.now()})
			} else {
				batch = append(batch, st.events[cursor:]...)
			}
			cursor = len(st.events)
			done := st.run.Status.Terminal()
			ch := st.changed
			s.mu.Unlock()

			for _, evt := range batch {
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
			if done {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ch:
			}
		}
	}()
	return out, nil
}

// Close cancels in-flight runs and waits for them to finish.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

// update mutates the run under the lock, records evt and wakes subscribers.
func (s *Service) update(st *runState, evt Event, mutate func(*Run)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mutate != nil {
		mutate(&st.run)
	}
	now := s.now()
	st.run.UpdatedAt = now
	evt.RunID = st.run.ID
	evt.At = now
	if evt.Type == EventCompleted || evt.Type == EventFailed {
		snap := st.run.clone()
		evt.Run = &snap
	}
	st.events = append(st.events, evt)
	close(st.changed)
	st.changed = make(chan struct{})
}

func (s *Service) stage(st *runState, stage string) {
	s.update(st, Event{Type: EventStage, Stage: stage}, func(r *Run) {
		r.Status = StatusRunning
		r.Stage = stage
	})
}

func (s *Service) addArtifact(st *runState, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, have := range st.run.Artifacts {
		if have == name {
			return
		}
	}
	st.run.Artifacts = append(st.run.Artifacts, name)
}

func (s *Service) sectionDone(st *runState, section string) {
	s.update(st, Event{Type: EventSectionDone, Section: section}, nil)
}

func (s *Service) sectionFailed(st *runState, section string, err error) {
	logf("analysis: section failed run=%s section=%s err=%v", st.run.ID, section, err)
	s.update(st, Event{Type: EventSectionFailed, Section: section, Error: err.Error()}, func(r *Run) {
		if r.Errors == nil {
			r.Errors = map[string]string{}
		}
		r.Errors[section] = err.Error()
	})
}
