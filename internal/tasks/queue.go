package tasks

import (
	"context"
	"log"
	"sync"
	"time"
)

// Task is one unit of background work. Run is retried on failure per the
// queue's policy.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

type Config struct {
	Workers      int
	Buffer       int
	MaxRetries   int           // attempts after the first failure
	RetryBackoff time.Duration // doubled after each failed attempt
}

// Queue is an in-process fire-and-forget task runner. Enqueue never blocks
// the caller: a full buffer drops the task with a log line. Failure
// handling is independent of whatever request enqueued the task.
type Queue struct {
	tasks  chan Task
	cfg    Config
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

func NewQueue(cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	return &Queue{
		tasks: make(chan Task, cfg.Buffer),
		cfg:   cfg,
	}
}

func (q *Queue) Start() {
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for task := range q.tasks {
		q.execute(task)
	}
}

func (q *Queue) execute(task Task) {
	backoff := q.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		err := task.Run(context.Background())
		if err == nil {
			return
		}
		if attempt >= q.cfg.MaxRetries {
			log.Printf("Task %s failed permanently after %d attempts: %v", task.Name, attempt+1, err)
			return
		}
		log.Printf("Task %s failed (attempt %d): %v, retrying in %v", task.Name, attempt+1, err, backoff)
		time.Sleep(backoff)
		backoff *= 2
	}
}

// Enqueue queues a task without blocking. Callers must only enqueue after
// their own transaction has committed.
func (q *Queue) Enqueue(name string, run func(ctx context.Context) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		log.Printf("Task %s dropped: queue stopped", name)
		return
	}
	select {
	case q.tasks <- Task{Name: name, Run: run}:
	default:
		log.Printf("Task %s dropped: queue full", name)
	}
}

// Stop drains queued tasks and waits for workers to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()
	q.wg.Wait()
}
