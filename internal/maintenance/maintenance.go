// Package maintenance runs housekeeping jobs on cron schedules.
package maintenance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hamidbarzin/cryptobarzin/internal/cache"
	"github.com/hamidbarzin/cryptobarzin/internal/logger"
)

// JobFunc is the body of a maintenance job.
type JobFunc func(ctx context.Context) error

// JobStatus describes the last run of a job.
type JobStatus struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	LastRun  time.Time `json:"last_run,omitempty"`
	LastErr  string    `json:"last_error,omitempty"`
	Runs     int       `json:"runs"`
}

type job struct {
	status JobStatus
	fn     JobFunc
}

// Runner manages cron-scheduled jobs. Schedules include a seconds field.
type Runner struct {
	cron *cron.Cron
	mu   sync.Mutex
	jobs map[string]*job
}

// NewRunner creates a stopped Runner. Panics inside jobs are recovered and
// logged.
func NewRunner() *Runner {
	cl := cron.PrintfLogger(logger.Std())
	return &Runner{
		cron: cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cl))),
		jobs: make(map[string]*job),
	}
}

// Add registers fn under name with a cron schedule.
func (r *Runner) Add(name, schedule string, fn JobFunc) error {
	j := &job{status: JobStatus{Name: name, Schedule: schedule}, fn: fn}

	_, err := r.cron.AddFunc(schedule, func() {
		r.run(context.Background(), j)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job %s: %w", name, err)
	}

	r.mu.Lock()
	r.jobs[name] = j
	r.mu.Unlock()
	return nil
}

// RunNow executes a registered job immediately.
func (r *Runner) RunNow(ctx context.Context, name string) error {
	r.mu.Lock()
	j, ok := r.jobs[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown maintenance job: %s", name)
	}
	return r.run(ctx, j)
}

func (r *Runner) run(ctx context.Context, j *job) error {
	err := j.fn(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	j.status.LastRun = time.Now()
	j.status.Runs++
	if err != nil {
		j.status.LastErr = err.Error()
		logger.Error("Maintenance job %s failed: %v", j.status.Name, err)
	} else {
		j.status.LastErr = ""
	}
	return err
}

// Start starts the cron scheduler in its own goroutine.
func (r *Runner) Start() {
	r.cron.Start()
}

// Stop stops scheduling and waits for running jobs up to ctx's deadline.
func (r *Runner) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		logger.Warn("Maintenance jobs still running at shutdown")
	}
}

// Status lists the registered jobs by name.
func (r *Runner) Status() []JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]JobStatus, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.status)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// CacheCleanup evicts expired entries from every cache.
func CacheCleanup(caches ...*cache.Manager) JobFunc {
	return func(context.Context) error {
		total := 0
		for _, c := range caches {
			total += c.Cleanup()
		}
		if total > 0 {
			logger.Info("Cache cleanup removed %d expired entries", total)
		}
		return nil
	}
}

// EventPruner deletes triggered events older than a cutoff.
type EventPruner interface {
	PruneEvents(ctx context.Context, cutoff time.Time) (int64, error)
}

// PruneEvents drops alert history older than retention.
func PruneEvents(p EventPruner, retention time.Duration) JobFunc {
	return func(ctx context.Context) error {
		n, err := p.PruneEvents(ctx, time.Now().Add(-retention))
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("Pruned %d alert events older than %v", n, retention)
		}
		return nil
	}
}
