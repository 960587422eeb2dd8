package assembly

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/franzpoize/bl/internal/lock"
	"github.com/franzpoize/bl/progress"
	"github.com/franzpoize/bl/specfile"
)

// Scheduler owns the bounded-concurrency budget and drives one
// slotWorker per slot. A single slot's failure is recorded in the
// returned Result but does not cancel its peers, per the "partial
// success is useful for diagnosis" design note.
type Scheduler struct {
	Project     *specfile.Project
	Concurrency int
	GitExec     string
	Sink        progress.Sink
	Log         *slog.Logger

	mu      lock.RWMutex
	results []SlotResult
}

// Run launches one worker per slot under an errgroup.Group limited to
// s.Concurrency, waits for all of them, and returns the aggregated
// Result. The returned error is non-nil only for setup failures that
// precede any slot running (there are none today; errgroup's own error
// path is never taken because worker failures are captured into results
// instead of being returned from the group function, so one slot's
// failure never cancels the others).
func (s *Scheduler) Run(ctx context.Context) (*Result, error) {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}

	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = 28
	}

	sink := s.Sink
	if sink == nil {
		sink = progress.Noop{}
	}

	warnDuplicateModules(s.Project, log)

	sink.Start(len(s.Project.Order))

	// The group function always returns nil: a worker's failure is
	// captured into a SlotResult rather than propagated from Go(), so
	// errgroup's default cancel-on-first-error never fires and
	// independent slots keep running per the scheduler's design. ctx
	// itself still cancels every in-flight subprocess on interrupt,
	// since it is passed straight through to each worker.
	group, _ := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)

	for _, name := range s.Project.Order {
		slot := s.Project.Slots[name]
		group.Go(func() error {
			if ctx.Err() != nil {
				sink.SlotDone(name, ctx.Err())
				s.record(SlotResult{Slot: name, Err: ctx.Err()})
				return nil
			}

			sink.SlotStarted(name)
			start := time.Now()

			worker := newSlotWorker(slot, s.Project.WorkDir, Options{
				GitExec:     s.GitExec,
				Concurrency: concurrency,
				LinksDir:    defaultLinksDir(s.Project.WorkDir),
				Sink:        sink,
			}, log)

			err := worker.Run(ctx)
			recordSlotRun(name, err == nil, start)

			sink.SlotDone(name, err)
			s.record(SlotResult{Slot: name, Err: err})
			return nil
		})
	}

	_ = group.Wait()
	sink.Finish()

	return &Result{Slots: s.snapshot()}, nil
}

func (s *Scheduler) record(r SlotResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
}

func (s *Scheduler) snapshot() []SlotResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SlotResult, len(s.results))
	copy(out, s.results)
	return out
}

// defaultLinksDir is the shared links/ directory under the project's
// working directory, flat across every slot per the engine's design.
func defaultLinksDir(workDir string) string {
	return filepath.Join(workDir, "links")
}

// warnDuplicateModules logs a warning for every module name declared by
// more than one slot. Two slots racing to publish the same module name
// into the same working tree is almost always a spec mistake, not an
// intentional fan-out.
func warnDuplicateModules(project *specfile.Project, log *slog.Logger) {
	owner := make(map[string]string, len(project.Order))
	for _, name := range project.Order {
		slot := project.Slots[name]
		for _, module := range slot.Modules {
			if first, ok := owner[module]; ok {
				log.Warn("module declared by more than one slot", "module", module, "slots", []string{first, name})
				continue
			}
			owner[module] = name
		}
	}
}
