package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harun/agentdiff/internal/observability"
	"github.com/harun/agentdiff/internal/tracing"
	"github.com/rs/zerolog/log"
)

const (
	// ForegroundLane serializes state mutations that must not interleave
	ForegroundLane = "foreground"
	// BackgroundLane runs blocking work off the foreground lane
	BackgroundLane = "background"
)

var (
	// ErrClosed is returned for tasks submitted after Close
	ErrClosed = errors.New("scheduler closed")
	// ErrLaneReset is returned for queued tasks dropped by ResetLane
	ErrLaneReset = errors.New("lane reset")
)

// Task represents an asynchronous operation to be executed
type Task func(ctx context.Context) (interface{}, error)

// taskRecord tracks a task's execution state
type taskRecord struct {
	id         string
	task       Task
	ctx        context.Context
	generation int
	enqueuedAt time.Time
	result     chan taskResult
}

type taskResult struct {
	value interface{}
	err   error
}

// laneState manages execution state for a single lane
type laneState struct {
	generation  int
	concurrency int
	queue       []*taskRecord
	running     int
	mu          sync.Mutex
}

// Scheduler provides lane-based task serialization with concurrency control
type Scheduler struct {
	lanes     map[string]*laneState
	taskIDSeq int
	closed    bool
	mu        sync.RWMutex
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a Scheduler with a foreground lane and a background lane of
// the given concurrency.
func New(backgroundConcurrency int) *Scheduler {
	observability.EnsureRegistered()

	if backgroundConcurrency < 1 {
		backgroundConcurrency = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		lanes:  make(map[string]*laneState),
		ctx:    ctx,
		cancel: cancel,
	}

	s.initLane(ForegroundLane, 1)
	s.initLane(BackgroundLane, backgroundConcurrency)

	return s
}

// initLane initializes a lane with specified concurrency
func (s *Scheduler) initLane(lane string, concurrency int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.lanes[lane]; !exists {
		s.lanes[lane] = &laneState{
			concurrency: concurrency,
			queue:       make([]*taskRecord, 0),
		}
		log.Debug().Str("lane", lane).Int("concurrency", concurrency).Msg("Lane initialized")
	}
}

// lane returns the lane state, creating a serial lane on first use
func (s *Scheduler) lane(name string) *laneState {
	s.mu.RLock()
	ls, exists := s.lanes[name]
	s.mu.RUnlock()

	if !exists {
		s.initLane(name, 1)
		s.mu.RLock()
		ls = s.lanes[name]
		s.mu.RUnlock()
	}
	return ls
}

// submit queues a task and starts lane processing
func (s *Scheduler) submit(ctx context.Context, lane string, task Task) (*taskRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.taskIDSeq++
	taskID := fmt.Sprintf("%s-%d", lane, s.taskIDSeq)
	s.mu.Unlock()

	ls := s.lane(lane)

	ls.mu.Lock()
	record := &taskRecord{
		id:         taskID,
		task:       task,
		ctx:        ctx,
		generation: ls.generation,
		enqueuedAt: time.Now(),
		result:     make(chan taskResult, 1),
	}
	ls.queue = append(ls.queue, record)
	queueSize := len(ls.queue)
	ls.mu.Unlock()

	observability.RecordQueueEnqueue(lane, queueSize)

	s.processLane(lane)

	return record, nil
}

// Run executes task on lane and waits for its result
func (s *Scheduler) Run(ctx context.Context, lane string, task Task) (interface{}, error) {
	record, err := s.submit(ctx, lane, task)
	if err != nil {
		return nil, err
	}

	result := <-record.result
	return result.value, result.err
}

// Go executes task on lane without waiting. Failures are logged.
func (s *Scheduler) Go(ctx context.Context, lane string, task Task) {
	if _, err := s.submit(ctx, lane, task); err != nil {
		log.Debug().Err(err).Str("lane", lane).Msg("Task dropped")
	}
}

// Background runs fn on the background lane without waiting
func (s *Scheduler) Background(fn func(ctx context.Context)) {
	s.Go(s.ctx, BackgroundLane, func(ctx context.Context) (interface{}, error) {
		fn(ctx)
		return nil, nil
	})
}

// Foreground runs fn on the foreground lane without waiting
func (s *Scheduler) Foreground(fn func(ctx context.Context)) {
	s.Go(s.ctx, ForegroundLane, func(ctx context.Context) (interface{}, error) {
		fn(ctx)
		return nil, nil
	})
}

// processLane starts queued tasks while the lane has capacity
func (s *Scheduler) processLane(lane string) {
	ls := s.lane(lane)
	ls.mu.Lock()
	defer ls.mu.Unlock()

	for ls.running < ls.concurrency && len(ls.queue) > 0 {
		record := ls.queue[0]
		ls.queue = ls.queue[1:]

		// Stale tasks from a previous generation are rejected
		if record.generation != ls.generation {
			record.result <- taskResult{err: ErrLaneReset}
			continue
		}

		ls.running++
		s.wg.Add(1)
		go s.executeTask(lane, record)
	}
}

// executeTask executes a single task
func (s *Scheduler) executeTask(lane string, record *taskRecord) {
	defer s.wg.Done()

	logger := tracing.LoggerFromContext(record.ctx, log.Logger).With().Str("lane", lane).Logger()

	runCtx, cancel := context.WithCancel(record.ctx)
	stopCancel := context.AfterFunc(s.ctx, cancel)
	defer func() {
		stopCancel()
		cancel()
	}()

	startTime := time.Now()
	value, err := s.invoke(runCtx, record.task)
	duration := time.Since(startTime)

	ls := s.lane(lane)
	ls.mu.Lock()
	ls.running--
	queueSize := len(ls.queue)
	ls.mu.Unlock()

	record.result <- taskResult{value: value, err: err}

	if err != nil {
		logger.Debug().
			Str("taskId", record.id).
			Dur("duration", duration).
			Err(err).
			Msg("Task failed")
	}

	observability.RecordQueueCompletion(lane, duration, err == nil, queueSize)

	s.processLane(lane)
}

// invoke runs task, converting a panic into an error so one bad task
// cannot take the lane down.
func (s *Scheduler) invoke(ctx context.Context, task Task) (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task(ctx)
}

// GetQueueSize returns the number of queued tasks for a lane
func (s *Scheduler) GetQueueSize(lane string) int {
	s.mu.RLock()
	ls, exists := s.lanes[lane]
	s.mu.RUnlock()

	if !exists {
		return 0
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.queue)
}

// GetStats returns statistics for all lanes
func (s *Scheduler) GetStats() map[string]map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]map[string]int)
	for lane, ls := range s.lanes {
		ls.mu.Lock()
		stats[lane] = map[string]int{
			"queued":      len(ls.queue),
			"running":     ls.running,
			"concurrency": ls.concurrency,
		}
		ls.mu.Unlock()
	}

	return stats
}

// ResetLane increments the generation counter for a lane and rejects all
// queued tasks. Running tasks are not interrupted.
func (s *Scheduler) ResetLane(lane string) {
	s.mu.RLock()
	ls, exists := s.lanes[lane]
	s.mu.RUnlock()

	if !exists {
		return
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	ls.generation++

	for _, record := range ls.queue {
		record.result <- taskResult{err: ErrLaneReset}
	}

	ls.queue = make([]*taskRecord, 0)

	log.Debug().Str("lane", lane).Int("generation", ls.generation).Msg("Lane reset")
	observability.SetQueueSize(lane, 0)
}

// WaitIdle waits until no lane has queued or running tasks. It returns
// false if the timeout elapses first.
func (s *Scheduler) WaitIdle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		if s.idle() {
			return true
		}
		if time.Now().After(deadline) {
			log.Warn().Dur("timeout", timeout).Msg("Timeout waiting for scheduler to drain")
			return false
		}
		<-ticker.C
	}
}

func (s *Scheduler) idle() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ls := range s.lanes {
		ls.mu.Lock()
		busy := ls.running > 0 || len(ls.queue) > 0
		ls.mu.Unlock()
		if busy {
			return false
		}
	}
	return true
}

// Close rejects queued tasks, cancels running ones and waits for them to return
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	lanes := make([]*laneState, 0, len(s.lanes))
	for _, ls := range s.lanes {
		lanes = append(lanes, ls)
	}
	s.mu.Unlock()

	for _, ls := range lanes {
		ls.mu.Lock()
		for _, record := range ls.queue {
			record.result <- taskResult{err: ErrClosed}
		}
		ls.queue = nil
		ls.mu.Unlock()
	}

	s.cancel()
	s.wg.Wait()
	return nil
}
