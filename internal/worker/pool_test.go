package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type mockResult struct {
	err error
}

func (r *mockResult) GetError() error {
	return r.err
}

type mockJob struct {
	duration  time.Duration
	shouldErr bool
	executed  *int32
}

func (j *mockJob) Execute(ctx context.Context) Result {
	if j.executed != nil {
		atomic.AddInt32(j.executed, 1)
	}
	if j.duration > 0 {
		select {
		case <-time.After(j.duration):
		case <-ctx.Done():
			return &mockResult{err: ctx.Err()}
		}
	}
	if j.shouldErr {
		return &mockResult{err: errors.New("job error")}
	}
	return &mockResult{err: nil}
}

// collect closes the queue and drains every result
func collect(p *Pool) []Result {
	p.Close()
	var results []Result
	for r := range p.Results() {
		results = append(results, r)
	}
	return results
}

func TestNewPool(t *testing.T) {
	p1 := NewPool(context.Background(), 5)
	if p1.workers != 5 {
		t.Errorf("expected 5 workers, got %d", p1.workers)
	}

	p2 := NewPool(context.Background(), 0)
	if p2.workers != 1 {
		t.Errorf("expected default 1 worker for 0 input, got %d", p2.workers)
	}

	p3 := NewPool(context.Background(), -1)
	if p3.workers != 1 {
		t.Errorf("expected default 1 worker for negative input, got %d", p3.workers)
	}
}

func TestPool_Execution(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()

	var executed int32
	count := 4

	for i := 0; i < count; i++ {
		pool.Submit(&mockJob{executed: &executed})
	}

	results := collect(pool)

	if len(results) != count {
		t.Errorf("expected %d results, got %d", count, len(results))
	}
	if atomic.LoadInt32(&executed) != int32(count) {
		t.Errorf("expected %d executed jobs, got %d", count, executed)
	}
}

type concurrencyJob struct {
	start    func()
	end      func()
	duration time.Duration
}

func (j *concurrencyJob) Execute(ctx context.Context) Result {
	if j.start != nil {
		j.start()
	}
	time.Sleep(j.duration)
	if j.end != nil {
		j.end()
	}
	return &mockResult{}
}

func TestPool_Concurrency(t *testing.T) {
	workers := 3
	pool := NewPool(context.Background(), workers)
	pool.Start()

	var current, maxConcurrent, completed int32
	var mu sync.Mutex
	totalJobs := 30

	go func() {
		defer pool.Close()
		for i := 0; i < totalJobs; i++ {
			pool.Submit(&concurrencyJob{
				start: func() {
					curr := atomic.AddInt32(&current, 1)
					mu.Lock()
					if curr > maxConcurrent {
						maxConcurrent = curr
					}
					mu.Unlock()
				},
				end: func() {
					atomic.AddInt32(&current, -1)
					atomic.AddInt32(&completed, 1)
				},
				duration: 5 * time.Millisecond,
			})
		}
	}()

	n := 0
	for range pool.Results() {
		n++
	}

	if n != totalJobs || atomic.LoadInt32(&completed) != int32(totalJobs) {
		t.Errorf("expected %d completed jobs, got %d results and %d completions", totalJobs, n, completed)
	}

	mu.Lock()
	max := maxConcurrent
	mu.Unlock()
	if max > int32(workers) {
		t.Errorf("max concurrency %d exceeded workers %d", max, workers)
	}
}

func TestPool_ErrorHandling(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()

	pool.Submit(&mockJob{shouldErr: true})
	pool.Submit(&mockJob{shouldErr: false})

	results := collect(pool)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	failures := 0
	for _, res := range results {
		if res.GetError() != nil {
			failures++
		}
	}
	if failures != 1 {
		t.Errorf("expected 1 error, got %d", failures)
	}
}

func TestPool_SubmitAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(ctx, 2)
	pool.Start()
	cancel()

	done := make(chan bool)
	go func() {
		done <- pool.Submit(&mockJob{})
	}()

	select {
	case accepted := <-done:
		if accepted {
			t.Error("Submit after cancel must report false")
		}
	case <-time.After(time.Second):
		t.Fatal("Submit after cancel blocked")
	}
	collect(pool)
}

func TestPool_ParentCancelKeepsRunningResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(ctx, 1)
	pool.Start()

	started := make(chan struct{})
	pool.Submit(&concurrencyJob{
		start:    func() { close(started) },
		duration: 50 * time.Millisecond,
	})
	<-started
	cancel()

	results := collect(pool)
	if len(results) != 1 {
		t.Fatalf("result of a started job was lost: got %d results", len(results))
	}
}
