package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/burrow/scanner/internal/config"
	"github.com/burrow/scanner/internal/filter"
	"github.com/burrow/scanner/internal/logging"
	"github.com/burrow/scanner/internal/queue"
	"github.com/burrow/scanner/internal/target"
	"github.com/burrow/scanner/internal/transport"
)

// DefaultPollInterval bounds how long the coordinator waits without a
// completion before re-checking the queue.
const DefaultPollInterval = 100 * time.Millisecond

var ErrEngineReused = errors.New("scanner: engine already started, create a new engine per scan")

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Observer receives engine events. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	Dispatched(item WorkItem)
	Completed(o Outcome)
	QueueDepth(n int)
}

type noopObserver struct{}

func (noopObserver) Dispatched(WorkItem) {}
func (noopObserver) Completed(Outcome)   {}
func (noopObserver) QueueDepth(int)      {}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

func WithClient(c *transport.Client) Option {
	return func(e *Engine) {
		if c != nil {
			e.client = c
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// Engine coordinates one scan: it owns the queue, the visited set and the
// concurrency gate, and lives for a single Run.
type Engine struct {
	config       config.Config
	filter       filter.Config
	client       *transport.Client
	calibration  *filter.CalibrationCache
	observer     Observer
	logger       *slog.Logger
	pollInterval time.Duration
	delay        time.Duration

	limit   int64
	gate    *semaphore.Weighted
	queue   *queue.Queue[WorkItem]
	stats   *Stats
	state   atomic.Int32
	started atomic.Bool

	words []string
	sink  chan<- Outcome
}

func NewEngine(cfg config.Config, opts ...Option) (*Engine, error) {
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("%w: concurrency must be positive, got %d", config.ErrInvalidConfig, cfg.Concurrency)
	}
	if cfg.Depth < 0 {
		return nil, fmt.Errorf("%w: depth must not be negative, got %d", config.ErrInvalidConfig, cfg.Depth)
	}

	fc, err := cfg.FilterConfig()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:       cfg,
		filter:       fc,
		calibration:  filter.NewCalibrationCache(),
		observer:     noopObserver{},
		logger:       logging.Discard(),
		pollInterval: DefaultPollInterval,
		delay:        time.Duration(cfg.Delay) * time.Millisecond,
		limit:        int64(cfg.Concurrency),
		gate:         semaphore.NewWeighted(int64(cfg.Concurrency)),
		queue:        queue.New[WorkItem](),
		stats:        NewStats(0),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.client == nil {
		clientOpts := []transport.Option{transport.WithUserAgent(cfg.UserAgent)}
		if cfg.Insecure {
			clientOpts = append(clientOpts, transport.WithInsecureTLS())
		}
		e.client = transport.NewClient(cfg.Timeout, cfg.RateLimit, cfg.MaxResponseMB, clientOpts...)
	}

	return e, nil
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) Stats() *Stats {
	return e.stats
}

func (e *Engine) setState(s State) {
	if prev := State(e.state.Swap(int32(s))); prev != s {
		e.logger.Debug("engine state", "from", prev.String(), "to", s.String())
	}
}

// Run scans every template with every word and forwards one Outcome per
// exchange to sink. The caller must drain sink until Run returns; Run does
// not close it. On cancellation no new work is dispatched, in-flight
// requests are aborted and Run returns ctx.Err() together with the stats.
func (e *Engine) Run(ctx context.Context, templates []*target.Template, words []string, sink chan<- Outcome) (*Stats, error) {
	if !e.started.CompareAndSwap(false, true) {
		return nil, ErrEngineReused
	}

	e.words = words
	e.sink = sink
	stats := e.stats
	stats.begin()
	defer stats.finish()

	if e.config.AutoCalibrate {
		e.calibrate(ctx, templates)
	}

	seeds := make([]WorkItem, 0, len(templates)*len(words))
	for _, tmpl := range templates {
		baseline := tmpl.String()
		for _, word := range words {
			seeds = append(seeds, WorkItem{
				Target:    tmpl.Fill(word),
				Template:  tmpl,
				Remaining: e.config.Depth,
				baseline:  baseline,
			})
		}
	}
	admitted := e.queue.EnqueueAll(seeds)
	stats.IncrementTotal(int64(admitted))

	e.logger.Info("scan started",
		"templates", len(templates),
		"words", len(words),
		"queued", admitted,
		"concurrency", e.limit,
		"depth", e.config.Depth)

	done := make(chan struct{}, e.limit)
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	ctxDone := ctx.Done()
	var inFlight int64

	e.setState(StateRunning)
	for {
		if ctx.Err() == nil {
			inFlight += e.dispatch(ctx, inFlight, done)
		}

		queued := e.queue.Len()
		e.observer.QueueDepth(queued)

		if inFlight == 0 && (queued == 0 || ctx.Err() != nil) {
			break
		}
		if queued == 0 || ctx.Err() != nil {
			e.setState(StateDraining)
		} else {
			e.setState(StateRunning)
		}

		select {
		case <-done:
			inFlight--
		case <-ticker.C:
		case <-ctxDone:
			ctxDone = nil
			e.logger.Info("scan cancelled, draining in-flight requests", "in_flight", inFlight)
		}
	}

	e.setState(StateDone)
	e.logger.Info("scan finished",
		"processed", stats.GetProcessed(),
		"found", stats.GetFound(),
		"errors", stats.GetErrors(),
		"elapsed", stats.Elapsed().Round(time.Millisecond))

	return stats, ctx.Err()
}

// dispatch starts workers while the queue has items and permits remain.
// It returns how many were started.
func (e *Engine) dispatch(ctx context.Context, inFlight int64, done chan<- struct{}) int64 {
	var started int64
	for inFlight+started < e.limit {
		item, ok := e.queue.Dequeue()
		if !ok {
			break
		}
		if err := e.gate.Acquire(ctx, 1); err != nil {
			break
		}

		started++
		e.stats.enter()
		e.observer.Dispatched(item)
		e.logger.Debug("dispatch", "url", item.Target.URL, "depth", item.Target.Depth, "remaining", item.Remaining)

		go e.work(ctx, item, done)
	}
	return started
}

func (e *Engine) calibrate(ctx context.Context, templates []*target.Template) {
	seen := make(map[string]bool)
	for _, tmpl := range templates {
		key := tmpl.String()
		if seen[key] {
			continue
		}
		seen[key] = true

		probe := func(ctx context.Context, word string) (filter.Response, error) {
			req, err := tmpl.Fill(word).NewRequest(ctx)
			if err != nil {
				return filter.Response{}, err
			}
			resp, body, err := e.client.Do(ctx, req)
			if err != nil {
				return filter.Response{}, err
			}
			return filter.Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
		}

		sigs, err := filter.Calibrate(ctx, key, probe, e.calibration)
		if err != nil {
			e.logger.Warn("calibration failed", "template", key, "error", err)
			continue
		}
		e.logger.Debug("calibrated", "template", key, "signatures", len(sigs))
	}
}
