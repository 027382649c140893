package usage

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"resty.dev/v3"
)

// DefaultEndpoint receives aggregated usage payloads.
const DefaultEndpoint = "https://api.roboflow.com/usage/inference"

const (
	defaultQueueSize     = 256
	defaultFlushInterval = 10 * time.Second
)

// CollectorOptions configures a Collector.
type CollectorOptions struct {
	// Endpoint overrides the delivery URL. Empty means DefaultEndpoint.
	Endpoint string
	// QueueSize bounds the intake queue; records beyond it are dropped.
	QueueSize int
	// FlushInterval is how often aggregated records are shipped.
	FlushInterval time.Duration
	Logger        *slog.Logger
}

// Collector aggregates usage records off the hot path. Record never blocks:
// a full queue drops the record and counts the drop. Two goroutines do the
// work, one merging intake into buckets and one shipping flushed batches.
// When the sender is backed up a periodic flush keeps its buckets and
// retries on the next tick, so a slow endpoint delays delivery but never
// stalls aggregation; only the final drain on Close waits for the sender.
type Collector struct {
	queue   chan Record
	batches chan []Record
	wg      sync.WaitGroup
	http    *resty.Client
	logger  *slog.Logger

	endpoint      string
	sessionID     string
	flushInterval time.Duration
	dropped       atomic.Int64
}

// NewCollector starts a collector and its worker goroutines.
func NewCollector(opts CollectorOptions) *Collector {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	interval := opts.FlushInterval
	if interval <= 0 {
		interval = defaultFlushInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Collector{
		queue:         make(chan Record, queueSize),
		batches:       make(chan []Record, 4),
		http:          resty.New(),
		logger:        logger,
		endpoint:      endpoint,
		sessionID:     uuid.NewString(),
		flushInterval: interval,
	}
	c.wg.Add(2)
	go c.aggregate()
	go c.send()
	return c
}

// SessionID identifies this collector's process lifetime in shipped
// payloads.
func (c *Collector) SessionID() string { return c.sessionID }

// Record enqueues one usage record without blocking.
func (c *Collector) Record(rec Record) {
	if rec.ExecSessionID == "" {
		rec.ExecSessionID = c.sessionID
	}
	select {
	case c.queue <- rec:
	default:
		c.dropped.Add(1)
	}
}

// Dropped returns how many records were discarded because the queue was
// full.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

// Close stops intake, flushes remaining buckets and waits for delivery to
// finish.
func (c *Collector) Close() error {
	close(c.queue)
	c.wg.Wait()
	return c.http.Close()
}

func (c *Collector) aggregate() {
	defer c.wg.Done()
	defer close(c.batches)

	buckets := make(map[string]Record)
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	flush := func(wait bool) {
		if len(buckets) == 0 {
			return
		}
		batch := make([]Record, 0, len(buckets))
		for _, rec := range buckets {
			batch = append(batch, rec)
		}
		if wait {
			buckets = make(map[string]Record)
			c.batches <- batch
			return
		}
		select {
		case c.batches <- batch:
			buckets = make(map[string]Record)
		default:
			// Sender is backed up. Keep the buckets and fold new records
			// into them until the next tick.
		}
	}

	for {
		select {
		case rec, ok := <-c.queue:
			if !ok {
				flush(true)
				return
			}
			existing, seen := buckets[rec.Key()]
			if !seen {
				buckets[rec.Key()] = rec
				continue
			}
			merged, err := Merge(existing, rec)
			if err != nil {
				// Keys matched, so this cannot happen; keep the newer one.
				c.logger.Warn("Dropping unmergeable usage record.", "error", err)
				merged = rec
			}
			buckets[rec.Key()] = merged
		case <-ticker.C:
			flush(false)
		}
	}
}

func (c *Collector) send() {
	defer c.wg.Done()
	for batch := range c.batches {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		res, err := c.http.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(batch).
			Post(c.endpoint)
		cancel()
		if err != nil {
			c.logger.Debug("Usage delivery failed.", "error", err, "records", len(batch))
			continue
		}
		if res.IsError() {
			c.logger.Debug("Usage delivery rejected.", "status", res.StatusCode(), "records", len(batch))
		}
	}
}
