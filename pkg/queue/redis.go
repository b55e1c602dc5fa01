package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"MarketPulse/pkg/logger"
)

// RedisQueue is a Redis list-backed job queue with delayed retries and a dead-letter list.
type RedisQueue struct {
	logger  *logger.Logger
	config  Config
	store   backend
	jobs    map[string]Job
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	now     func() time.Time
}

var _ Publisher = (*RedisQueue)(nil)

// NewRedisQueue creates a queue over client. Register jobs before Start to consume.
func NewRedisQueue(lgr *logger.Logger, cfg Config, client *redis.Client) *RedisQueue {
	return newQueue(lgr, cfg, redisBackend{client: client})
}

func newQueue(lgr *logger.Logger, cfg Config, store backend) *RedisQueue {
	if lgr == nil {
		lgr = logger.Nop()
	}
	if cfg.Workers < 0 {
		cfg.Workers = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = time.Second
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "marketpulse:queue"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisQueue{
		logger: lgr.Component("queue"),
		config: cfg,
		store:  store,
		jobs:   make(map[string]Job),
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
	}
}

// RegisterJob registers a handler for its message type. Later registrations of the same type are ignored.
func (r *RedisQueue) RegisterJob(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.Type()]; exists {
		r.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
	r.logger.Info("job registered", logger.String("job", job.Name()), logger.String("type", job.Type()))
}

// Start pings Redis and launches config.Workers consumers plus the retry promoter.
// With zero workers the queue only publishes.
func (r *RedisQueue) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("queue already running")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.store.Ping(pingCtx); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	r.running = true

	if r.config.Workers > 0 {
		for i := 0; i < r.config.Workers; i++ {
			r.wg.Add(1)
			go r.worker(i)
		}
		r.wg.Add(1)
		go r.retryLoop()
	}
	r.logger.Info("redis queue started", logger.Int("workers", r.config.Workers))
	return nil
}

// Stop cancels the workers and waits for in-flight jobs until ctx expires.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		r.logger.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		r.logger.Info("redis queue stopped")
		return nil
	}
}

// Enqueue pushes a message and returns its ID.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error) {
	r.mu.RLock()
	running := r.running
	r.mu.RUnlock()
	if !running {
		return "", ErrNotRunning
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	msg := Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   raw,
		Timestamp: r.now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	if err := r.store.Push(ctx, r.queueKey(), data); err != nil {
		return "", fmt.Errorf("lpush: %w", err)
	}
	return msg.ID, nil
}

func (r *RedisQueue) worker(id int) {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		default:
			r.processNext(id)
		}
	}
}

func (r *RedisQueue) processNext(worker int) {
	data, err := r.store.Pop(r.ctx, r.queueKey(), r.config.PopTimeout)
	if err != nil {
		if errors.Is(err, errEmpty) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		r.logger.Error("brpop error", logger.Int("worker_id", worker), logger.Error(err))
		select {
		case <-r.ctx.Done():
		case <-time.After(time.Second):
		}
		return
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		r.logger.Error("unmarshal message", logger.Error(err))
		return
	}
	r.handle(msg)
}

func (r *RedisQueue) handle(msg Message) {
	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.logger.Error("no job found", logger.String("type", msg.Type), logger.String("id", msg.ID))
		r.deadLetter(msg)
		return
	}

	start := r.now()
	err := job.Handle(r.ctx, msg.Payload)
	if err == nil {
		r.logger.Debug("job done",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Duration("elapsed_ms", r.now().Sub(start)))
		return
	}
	if errors.Is(err, context.Canceled) {
		r.logger.Warn("job cancelled", logger.String("id", msg.ID), logger.String("job", job.Name()))
		return
	}

	r.logger.Error("job failed",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))
	if msg.Attempts >= r.config.RetryLimit {
		r.deadLetter(msg)
		return
	}
	msg.Attempts++
	retryAt := r.now().Add(r.config.RetryDelay)
	data, _ := json.Marshal(msg)
	if err := r.store.Schedule(context.Background(), r.retryKey(), data, retryAt); err != nil {
		r.logger.Error("zadd retry", logger.Error(err))
	}
}

func (r *RedisQueue) deadLetter(msg Message) {
	data, _ := json.Marshal(msg)
	if err := r.store.Push(context.Background(), r.deadLetterKey(), data); err != nil {
		r.logger.Error("lpush dlq", logger.Error(err))
	}
}

func (r *RedisQueue) retryLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.promoteRetries()
		}
	}
}

func (r *RedisQueue) promoteRetries() {
	if _, err := r.store.PromoteDue(r.ctx, r.retryKey(), r.queueKey(), r.now()); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Error("move retry to queue", logger.Error(err))
	}
}

func (r *RedisQueue) queueKey() string      { return r.config.KeyPrefix + ":messages" }
func (r *RedisQueue) retryKey() string      { return r.config.KeyPrefix + ":retry" }
func (r *RedisQueue) deadLetterKey() string { return r.config.KeyPrefix + ":dlq" }
