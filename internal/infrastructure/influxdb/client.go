package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/cadbridge/internal/bridge"
	"github.com/nerrad567/cadbridge/internal/infrastructure/config"
)

// Measurements written by Sink.
const (
	TaskMeasurement     = "bridge_task"
	DocumentMeasurement = "bridge_document_change"
)

const (
	startupPingTimeout = 10 * time.Second
	healthPingTimeout  = 5 * time.Second

	fallbackBatchSize    = 100
	fallbackFlushSeconds = 10
)

// Sink turns pump records and document changes into InfluxDB points. It is
// a bridge.Observer and an operations change notifier. Points go through
// the library's batching write API, so the pump never waits on the network.
// A zero Sink, or one that has been closed, drops everything.
type Sink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	mu   sync.RWMutex
	open bool

	onError atomic.Pointer[func(error)]
	queued  atomic.Uint64
}

// Open pings the server and returns a sink for cfg.Org and cfg.Bucket.
// It returns ErrDisabled when influxdb.enabled is false.
func Open(ctx context.Context, cfg config.InfluxDBConfig) (*Sink, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(positive(cfg.BatchSize, fallbackBatchSize))).                //nolint:gosec // positive
		SetFlushInterval(uint(positive(cfg.FlushInterval, fallbackFlushSeconds)) * 1000) //nolint:gosec // positive
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	pingCtx, cancel := context.WithTimeout(ctx, startupPingTimeout)
	defer cancel()
	if err := ping(pingCtx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.URL, err)
	}

	s := &Sink{client: client, writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket), open: true}
	go func(errs <-chan error) {
		for err := range errs {
			if fn := s.onError.Load(); fn != nil {
				(*fn)(fmt.Errorf("%w: %w", ErrWriteFailed, err))
			}
		}
	}(s.writeAPI.Errors())
	return s, nil
}

func positive(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return err
	}
	if !healthy {
		return fmt.Errorf("server reports unhealthy")
	}
	return nil
}

// OnError installs the callback for asynchronous batch write failures.
func (s *Sink) OnError(fn func(error)) {
	s.onError.Store(&fn)
}

// Queued returns how many points have been handed to the write API.
func (s *Sink) Queued() uint64 {
	return s.queued.Load()
}

// TaskCompleted implements bridge.Observer with one bridge_task point,
// tagged by method and result and stamped with the finish time.
func (s *Sink) TaskCompleted(rec bridge.Record, _ bridge.Outcome) {
	result := "success"
	if !rec.Succeeded {
		result = "failure"
	}
	s.write(write.NewPoint(TaskMeasurement,
		map[string]string{"method": rec.Method, "result": result},
		map[string]any{
			"duration_us":   rec.Duration().Microseconds(),
			"queue_wait_us": rec.QueueWait().Microseconds(),
			"abandoned":     rec.Abandoned,
		},
		rec.FinishedAt,
	))
}

// DocumentChanged writes a bridge_document_change point with a count of 1,
// so sum() per document gives its mutation rate.
func (s *Sink) DocumentChanged(document, method string) {
	s.write(write.NewPoint(DocumentMeasurement,
		map[string]string{"document": document, "method": method},
		map[string]any{"count": 1},
		time.Now(),
	))
}

func (s *Sink) isOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open
}

func (s *Sink) write(p *write.Point) {
	if !s.isOpen() {
		return
	}
	s.writeAPI.WritePoint(p)
	s.queued.Add(1)
}

// Flush sends buffered points now.
func (s *Sink) Flush() {
	if s.isOpen() {
		s.writeAPI.Flush()
	}
}

// HealthCheck pings the server.
func (s *Sink) HealthCheck(ctx context.Context) error {
	if !s.isOpen() {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	if err := ping(ctx, s.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// Close flushes what is buffered and releases the client. It is idempotent.
func (s *Sink) Close() error {
	s.mu.Lock()
	wasOpen := s.open
	s.open = false
	s.mu.Unlock()
	if !wasOpen {
		return nil
	}
	s.writeAPI.Flush()
	s.client.Close()
	return nil
}
