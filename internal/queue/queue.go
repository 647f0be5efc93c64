// Package queue schedules independent background work items with a
// bounded worker pool. Dispatch is priority-ordered (CRITICAL > HIGH >
// NORMAL > LOW), ties broken by earliest creation time, and every freed
// worker slot re-evaluates the entire queued set so a late high-priority
// item is never stuck behind earlier low-priority ones.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/agentd/internal/models"
	"github.com/harrison/agentd/internal/retry"
)

const (
	// DefaultConcurrency is the worker slot limit.
	DefaultConcurrency = 3

	// DefaultMaxRetries bounds re-attempts per item.
	DefaultMaxRetries = 3

	// DefaultHistorySize bounds the retained finished-item history.
	DefaultHistorySize = 100
)

// ErrUnknownItem reports an operation on an item ID the queue has never
// seen or has already evicted from history.
var ErrUnknownItem = errors.New("unknown queue item")

// HandlerFunc processes one attempt of a queue item. An error triggers
// backoff and re-attempt until the retry budget is exhausted.
type HandlerFunc func(ctx context.Context, item *models.QueueItem) error

// Logger receives queue lifecycle messages.
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
}

// Options configures a Queue. Zero values fall back to defaults.
type Options struct {
	Concurrency int
	MaxRetries  int
	HistorySize int
	Backoff     *retry.Policy
	Logger      Logger
}

// Queue is a priority task queue with a bounded worker pool. Construct
// with New, register handlers, then Start.
type Queue struct {
	concurrency int
	maxRetries  int
	historySize int
	backoff     *retry.Policy
	log         Logger

	mu       sync.Mutex
	handlers map[string]HandlerFunc
	items    map[string]*models.QueueItem
	history  []*models.QueueItem
	running  int
	started  bool
	closed   bool

	wake chan struct{}
	quit chan struct{}
	wg   sync.WaitGroup
}

// New creates a stopped Queue.
func New(opts Options) *Queue {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	if opts.Backoff == nil {
		opts.Backoff = retry.NewPolicy(retry.DefaultBaseDelay, retry.DefaultMaxDelay)
	}

	return &Queue{
		concurrency: opts.Concurrency,
		maxRetries:  opts.MaxRetries,
		historySize: opts.HistorySize,
		backoff:     opts.Backoff,
		log:         opts.Logger,
		handlers:    make(map[string]HandlerFunc),
		items:       make(map[string]*models.QueueItem),
		wake:        make(chan struct{}, 1),
		quit:        make(chan struct{}),
	}
}

// RegisterHandler binds a handler to an item type. Items whose type has
// no handler fail immediately when dispatched.
func (q *Queue) RegisterHandler(itemType string, h HandlerFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[itemType] = h
}

// Start launches the dispatcher. Idempotent.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started || q.closed {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	q.wg.Add(1)
	go q.dispatch(ctx)
	q.signal()
}

// Stop shuts the dispatcher down and waits for in-flight items to finish
// their current attempt. Idempotent.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.quit)
	q.mu.Unlock()

	q.wg.Wait()
}

// Add enqueues a work item and returns its ID.
func (q *Queue) Add(itemType, payload string, priority models.Priority) string {
	item := &models.QueueItem{
		ID:        uuid.NewString(),
		Type:      itemType,
		Priority:  priority,
		Status:    models.ItemQueued,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	q.mu.Lock()
	q.items[item.ID] = item
	q.mu.Unlock()

	q.infof("queued %s item %s (%s)", item.Priority, item.ID, itemType)
	q.signal()
	return item.ID
}

// Pause prevents a queued item from dispatching. A running item finishes
// its current attempt and then parks instead of retrying. Terminal items
// are left alone. Idempotent.
func (q *Queue) Pause(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.lookupLocked(id)
	if !ok {
		return fmt.Errorf("pause %s: %w", id, ErrUnknownItem)
	}
	switch item.Status {
	case models.ItemQueued:
		item.Status = models.ItemPaused
	case models.ItemRunning:
		// Observed by the worker at its next attempt boundary.
		item.Status = models.ItemPaused
	}
	return nil
}

// Resume re-queues a paused item. Terminal items are left alone.
// Idempotent.
func (q *Queue) Resume(id string) error {
	q.mu.Lock()
	item, ok := q.lookupLocked(id)
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("resume %s: %w", id, ErrUnknownItem)
	}
	if item.Status == models.ItemPaused {
		item.Status = models.ItemQueued
	}
	q.mu.Unlock()

	q.signal()
	return nil
}

// Cancel removes an item from scheduling. A running item finishes its
// current attempt; its result is discarded. Idempotent: cancelling twice
// yields the same terminal state as once.
func (q *Queue) Cancel(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.lookupLocked(id)
	if !ok {
		return fmt.Errorf("cancel %s: %w", id, ErrUnknownItem)
	}
	if item.Status.IsTerminal() {
		return nil
	}
	wasRunning := item.Status == models.ItemRunning
	item.Status = models.ItemCancelled
	if !wasRunning {
		q.retireLocked(item)
	}
	return nil
}

// Item returns a snapshot copy of the item, looking through live items
// and retained history.
func (q *Queue) Item(id string) (models.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if item, ok := q.lookupLocked(id); ok {
		return *item, nil
	}
	return models.QueueItem{}, fmt.Errorf("item %s: %w", id, ErrUnknownItem)
}

// lookupLocked finds an item in the live set or the retained history, so
// control operations on retired items stay idempotent instead of failing
// with ErrUnknownItem.
func (q *Queue) lookupLocked(id string) (*models.QueueItem, bool) {
	if item, ok := q.items[id]; ok {
		return item, true
	}
	for _, item := range q.history {
		if item.ID == id {
			return item, true
		}
	}
	return nil, false
}

// Snapshot returns copies of every live and retained item, for
// persistence and inspection.
func (q *Queue) Snapshot() []models.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]models.QueueItem, 0, len(q.items)+len(q.history))
	for _, item := range q.items {
		out = append(out, *item)
	}
	for _, item := range q.history {
		out = append(out, *item)
	}
	return out
}

// Restore loads items from a previous process's snapshot. Items that were
// RUNNING revert to QUEUED: partial in-flight work is not resumed, only
// re-attempted from scratch. Terminal items go straight to history. Must
// be called before Start.
func (q *Queue) Restore(items []models.QueueItem) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range items {
		item := items[i]
		if item.Status == models.ItemRunning {
			item.Status = models.ItemQueued
			item.StartedAt = nil
		}
		if item.Status.IsTerminal() {
			q.history = append(q.history, &item)
			q.trimHistoryLocked()
			continue
		}
		q.items[item.ID] = &item
	}
}

// dispatch fills free worker slots from the queued set until the queue
// stops. Each wake-up re-evaluates every queued item.
func (q *Queue) dispatch(ctx context.Context) {
	defer q.wg.Done()

	var workers sync.WaitGroup
	defer workers.Wait()

	for {
		select {
		case <-q.quit:
			return
		case <-ctx.Done():
			return
		case <-q.wake:
		}

		q.mu.Lock()
		for q.running < q.concurrency {
			item := q.nextLocked()
			if item == nil {
				break
			}
			now := time.Now().UTC()
			item.Status = models.ItemRunning
			item.StartedAt = &now
			q.running++

			workers.Add(1)
			go func(item *models.QueueItem) {
				defer workers.Done()
				q.runItem(ctx, item)
			}(item)
		}
		q.mu.Unlock()
	}
}

// nextLocked picks the highest-priority queued item, ties broken by
// earliest creation time. Caller holds q.mu.
func (q *Queue) nextLocked() *models.QueueItem {
	var best *models.QueueItem
	for _, item := range q.items {
		if item.Status != models.ItemQueued {
			continue
		}
		if best == nil ||
			item.Priority > best.Priority ||
			(item.Priority == best.Priority && item.CreatedAt.Before(best.CreatedAt)) {
			best = item
		}
	}
	return best
}

// runItem drives one item through its retry loop and releases the slot.
func (q *Queue) runItem(ctx context.Context, item *models.QueueItem) {
	defer func() {
		q.mu.Lock()
		q.running--
		q.mu.Unlock()
		q.signal()
	}()

	q.mu.Lock()
	handler, ok := q.handlers[item.Type]
	q.mu.Unlock()
	if !ok {
		q.finish(item, models.ItemFailed, fmt.Sprintf("no handler for item type %q", item.Type))
		return
	}

	for {
		err := handler(ctx, item)

		q.mu.Lock()
		status := item.Status
		q.mu.Unlock()

		// Cancel requested while the attempt ran: the attempt's outcome
		// is discarded at this boundary.
		if status == models.ItemCancelled {
			q.finish(item, models.ItemCancelled, "")
			return
		}

		if err == nil {
			q.finish(item, models.ItemCompleted, "")
			return
		}

		// A pause requested mid-attempt parks the item instead of retrying.
		if status == models.ItemPaused {
			q.infof("item %s paused after attempt %d", item.ID, item.RetryCount+1)
			return
		}

		q.mu.Lock()
		item.RetryCount++
		retries := item.RetryCount
		item.LastError = err.Error()
		q.mu.Unlock()

		if retries >= q.maxRetries {
			q.warnf("item %s failed after %d attempts: %v", item.ID, retries, err)
			q.finish(item, models.ItemFailed, err.Error())
			return
		}

		q.warnf("item %s attempt %d failed, backing off: %v", item.ID, retries, err)
		if !q.waitBackoff(ctx, retries) {
			return
		}
	}
}

// finish moves an item to a terminal status and retires it to history.
func (q *Queue) finish(item *models.QueueItem, status models.ItemStatus, lastErr string) {
	now := time.Now().UTC()

	q.mu.Lock()
	item.Status = status
	item.FinishedAt = &now
	if lastErr != "" {
		item.LastError = lastErr
	}
	q.retireLocked(item)
	q.mu.Unlock()

	q.infof("item %s finished: %s", item.ID, status)
}

// retireLocked moves an item from the live set to the bounded history.
// Caller holds q.mu.
func (q *Queue) retireLocked(item *models.QueueItem) {
	delete(q.items, item.ID)
	q.history = append(q.history, item)
	q.trimHistoryLocked()
}

func (q *Queue) trimHistoryLocked() {
	if over := len(q.history) - q.historySize; over > 0 {
		q.history = q.history[over:]
	}
}

// waitBackoff sleeps for the attempt's backoff delay; false means queue
// shutdown or context cancellation interrupted the wait.
func (q *Queue) waitBackoff(ctx context.Context, attempt int) bool {
	done := make(chan struct{})
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-q.quit:
		case <-ctx.Done():
		case <-stop:
			return
		}
		close(done)
	}()
	return q.backoff.Wait(attempt, done)
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) infof(format string, args ...interface{}) {
	if q.log != nil {
		q.log.LogInfo(fmt.Sprintf(format, args...))
	}
}

func (q *Queue) warnf(format string, args ...interface{}) {
	if q.log != nil {
		q.log.LogWarn(fmt.Sprintf(format, args...))
	}
}
