// Package scheduler single-files all upstream API calls through one FIFO
// queue so that, no matter how many logical operations are issued, at most
// one physical request is in flight and requests are spaced by an interval
// that adapts to upstream rate-limit headers.
package scheduler

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/dataquality-cli/internal/resilience"
)

// Rate-limit headers inspected after each response.
const (
	headerRemaining  = "X-HubSpot-RateLimit-Remaining"
	headerIntervalMs = "X-HubSpot-RateLimit-Interval-Milliseconds"
	headerRetryAfter = "Retry-After"
)

// lowQuotaThreshold is the remaining-request count below which the
// scheduler slows to the full advertised interval.
const lowQuotaThreshold = 5

// ErrClosed is returned for tasks submitted after Close.
var ErrClosed = eris.New("scheduler: closed")

// Response is the upstream reply a task produces: enough for the
// scheduler to classify the outcome and adapt its pacing.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Task performs one upstream request. A Task returns an error only for
// transport-level failures; HTTP-level failures are reported through the
// Response status code.
type Task func(ctx context.Context) (*Response, error)

// Config tunes a Scheduler.
type Config struct {
	// Baseline is the inter-request interval used when the upstream
	// advertises nothing. Default: 300ms.
	Baseline time.Duration

	// MinInterval floors the adapted interval. Default: 200ms.
	MinInterval time.Duration

	// MaxInterval caps interval growth under pressure. Default: 5s.
	MaxInterval time.Duration

	// QueueSize bounds the pending-task queue; submitters block when it
	// is full. Default: 256.
	QueueSize int

	// Retry controls per-task retries. Zero value uses
	// resilience.DefaultRetryConfig (6 attempts, full jitter).
	Retry resilience.RetryConfig
}

func (c Config) withDefaults() Config {
	if c.Baseline <= 0 {
		c.Baseline = 300 * time.Millisecond
	}
	if c.MinInterval <= 0 {
		c.MinInterval = 200 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 5 * time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry = resilience.DefaultRetryConfig()
	}
	return c
}

type result struct {
	resp *Response
	err  error
}

type job struct {
	ctx  context.Context
	task Task
	res  chan result
}

// Scheduler is an owned object rather than ambient package state so tests
// can instantiate isolated instances. Tasks execute strictly one at a
// time in submission order; a failed task consumes only its own retry
// budget and never blocks tasks queued behind it beyond that.
type Scheduler struct {
	cfg     Config
	limiter *rate.Limiter

	mu       sync.Mutex
	interval time.Duration

	jobs chan *job
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// New creates a Scheduler and starts its single consumer goroutine.
func New(cfg Config) *Scheduler {
	cfg = cfg.withDefaults()
	s := &Scheduler{
		cfg:      cfg,
		interval: cfg.Baseline,
		limiter:  rate.NewLimiter(rate.Every(cfg.Baseline), 1),
		jobs:     make(chan *job, cfg.QueueSize),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Do enqueues task and blocks until it settles. Ordering is FIFO across
// all callers. If ctx expires while the task is queued or in flight the
// caller gets ctx.Err(), but an in-flight attempt still runs to
// completion or exhausts its retries; there is no mid-request
// cancellation of work already handed to the consumer.
func (s *Scheduler) Do(ctx context.Context, task Task) (*Response, error) {
	j := &job{ctx: ctx, task: task, res: make(chan result, 1)}

	select {
	case s.jobs <- j:
	case <-s.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-j.res:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Interval reports the current adaptive inter-request interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Close stops the consumer. Queued tasks that have not started fail with
// ErrClosed.
func (s *Scheduler) Close() {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	for {
		select {
		case j := <-s.jobs:
			j.res <- s.execute(j)
		case <-s.done:
			s.drain()
			return
		}
	}
}

func (s *Scheduler) drain() {
	for {
		select {
		case j := <-s.jobs:
			j.res <- result{err: ErrClosed}
		default:
			return
		}
	}
}

func (s *Scheduler) execute(j *job) result {
	resp, err := resilience.DoVal(j.ctx, s.cfg.Retry, func(ctx context.Context) (*Response, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "scheduler: pacing wait")
		}

		resp, err := j.task(ctx)
		if err != nil {
			// Transport-level failure; retried when transient.
			return nil, err
		}

		s.adapt(resp)

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, &resilience.TransientError{
				Err:        eris.Errorf("scheduler: upstream status %d", resp.StatusCode),
				StatusCode: resp.StatusCode,
				RetryAfter: resilience.ParseRetryAfter(resp.Header.Get(headerRetryAfter), time.Now()),
			}
		}

		// Non-429 4xx and other anomalies are permanent: surface
		// immediately, do not retry.
		return resp, nil
	})
	return result{resp: resp, err: err}
}

// adapt adjusts the inter-request interval from rate-limit headers:
// shrink toward half the advertised interval in normal conditions, grow
// toward the full interval (at least 1s) when remaining quota is low,
// and back off multiplicatively on 429 when the upstream advertises
// nothing useful.
func (s *Scheduler) adapt(resp *Response) {
	remaining, hasRemaining := headerInt(resp.Header, headerRemaining)
	intervalMs, hasInterval := headerInt(resp.Header, headerIntervalMs)

	var next time.Duration
	switch {
	case hasRemaining && remaining < lowQuotaThreshold:
		next = time.Second
		if hasInterval && intervalMs > 0 {
			next = max(next, time.Duration(intervalMs)*time.Millisecond)
		}
	case hasInterval && intervalMs > 0:
		next = max(s.cfg.MinInterval, time.Duration(intervalMs)*time.Millisecond/2)
	case resp.StatusCode == http.StatusTooManyRequests:
		next = s.Interval() * 2
	default:
		next = s.cfg.Baseline
	}

	s.setInterval(next)
}

func (s *Scheduler) setInterval(d time.Duration) {
	if d < s.cfg.MinInterval {
		d = s.cfg.MinInterval
	}
	if d > s.cfg.MaxInterval {
		d = s.cfg.MaxInterval
	}

	s.mu.Lock()
	changed := d != s.interval
	s.interval = d
	s.mu.Unlock()

	if changed {
		s.limiter.SetLimit(rate.Every(d))
		zap.L().Debug("scheduler: interval adjusted", zap.Duration("interval", d))
	}
}

func headerInt(h http.Header, name string) (int, bool) {
	v := h.Get(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
