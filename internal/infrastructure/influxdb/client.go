package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/elliotnash/piopener/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second

	// maxRetries bounds how often a rejected batch is resent before it is
	// reported to the error callback and dropped. Door telemetry is only
	// useful while fresh.
	maxRetries = 3

	applicationName = "piopener"
)

// Client writes door telemetry to one bucket. Every point carries the
// door_id tag given to Connect.
//
// Writes are batched and never block the caller. Batch failures arrive
// asynchronously through the callback set with SetOnError.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	doorID   string

	mu      sync.RWMutex
	open    bool
	onError func(err error)
}

// Connect pings the server and prepares the batched write API for doorID.
//
// Parameters:
//   - cfg: the influxdb section of the configuration
//   - doorID: value of the door_id tag on every point
//
// Returns:
//   - *Client: ready for writes
//   - error: ErrDisabled, or ErrConnectionFailed wrapping the ping failure
func Connect(cfg config.InfluxDBConfig, doorID string) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg, doorID))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		doorID:   doorID,
		open:     true,
	}
	// Errors() must be drained or failed batches are silently skipped.
	go c.forwardErrors(c.writeAPI.Errors())

	return c, nil
}

// clientOptions maps the configuration onto write options. Non-positive
// batch settings fall back to the defaults.
func clientOptions(cfg config.InfluxDBConfig, doorID string) *influxdb2.Options {
	batchSize := defaultBatchSize
	if cfg.BatchSize > 0 {
		batchSize = cfg.BatchSize
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}

	// #nosec G115 -- both values are positive
	return influxdb2.DefaultOptions().
		SetBatchSize(uint(batchSize)).
		SetFlushInterval(uint(flush.Milliseconds())).
		SetMaxRetries(maxRetries).
		SetPrecision(time.Millisecond).
		SetApplicationName(applicationName).
		AddDefaultTag(TagDoorID, doorID)
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("server not healthy")
	}
	return nil
}

func (c *Client) forwardErrors(errs <-chan error) {
	for err := range errs {
		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()

		if callback != nil {
			callback(fmt.Errorf("writing telemetry for door %s: %w", c.doorID, err))
		}
	}
}

// SetOnError sets the callback for asynchronous batch failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// HealthCheck pings the server. It fails with ErrNotConnected after Close.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.isOpen() {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(ctx, c.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// Flush hands buffered points to the writer. It is a no-op after Close.
func (c *Client) Flush() {
	if c.isOpen() {
		c.writeAPI.Flush()
	}
}

// Close flushes pending points and releases the client. Writes after Close
// are dropped. Close on a zero Client is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	wasOpen := c.open
	c.open = false
	c.mu.Unlock()

	if !wasOpen || c.client == nil {
		return nil
	}
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

func (c *Client) isOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.open
}
