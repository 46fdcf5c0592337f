// Package pipeline schedules the optical flow and video reassembly work of a
// dataset as independent tasks, one per class or per clip group.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	KindFlow  = "flow"
	KindVideo = "video"
)

// Task is one independently schedulable unit of work. Run processes its
// frames strictly in order and reports how many outputs it produced.
type Task struct {
	Kind string
	Name string
	Run  func(ctx context.Context) (int, error)
}

type Result struct {
	Kind     string
	Name     string
	Outputs  int
	Err      error
	Duration time.Duration
}

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s '%s' failed after %d outputs: %v", r.Kind, r.Name, r.Outputs, r.Err)
	}
	return fmt.Sprintf("%s '%s' done: %d outputs in %s", r.Kind, r.Name, r.Outputs, r.Duration.Round(time.Millisecond))
}

// Run executes tasks on up to workers goroutines. A failing task never stops
// its siblings. Once ctx is done, tasks that have not started are reported
// with ctx.Err(). Results are returned in task order; onDone, if set, is
// called once per task, never concurrently.
func Run(ctx context.Context, tasks []Task, workers int, onDone func(Result)) []Result {
	if workers < 1 {
		workers = 1
	}
	results := make([]Result, len(tasks))
	work := make(chan int, len(tasks))
	for i := range tasks {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	var mu sync.Mutex
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				res := runOne(ctx, tasks[i])
				results[i] = res
				if onDone != nil {
					mu.Lock()
					onDone(res)
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	return results
}

func runOne(ctx context.Context, task Task) Result {
	res := Result{Kind: task.Kind, Name: task.Name}
	if err := ctx.Err(); err != nil {
		res.Err = err
		TasksTotal.WithLabelValues(task.Kind, "cancelled").Inc()
		return res
	}

	start := time.Now()
	res.Outputs, res.Err = task.Run(ctx)
	res.Duration = time.Since(start)

	TaskDuration.WithLabelValues(task.Kind).Observe(res.Duration.Seconds())
	status := "ok"
	if res.Err != nil {
		status = "failed"
	}
	TasksTotal.WithLabelValues(task.Kind, status).Inc()
	return res
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// Err joins the errors of every failed result, naming the task each came from.
func Err(results []Result) error {
	var errs []error
	for _, r := range Failed(results) {
		errs = append(errs, fmt.Errorf("%s '%s': %w", r.Kind, r.Name, r.Err))
	}
	return errors.Join(errs...)
}
