// Package breaker guards device calls with a per-terminal circuit breaker so a
// dead terminal fails fast instead of tying up sync workers.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-sync/internal/domain/device"
	"github.com/cmlabs-hris/attendance-sync/internal/pkg/metrics"
	gobreaker "github.com/sony/gobreaker/v2"
)

type Settings struct {
	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
	// Cooldown is how long the breaker stays open before a probe is allowed.
	Cooldown time.Duration
}

// Client decorates a device.Client. Only Connect goes through the breaker;
// a terminal that accepts sessions is considered healthy.
type Client struct {
	next     device.Client
	settings Settings

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[device.Session]
}

func New(next device.Client, settings Settings) *Client {
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 5
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = time.Minute
	}
	return &Client{
		next:     next,
		settings: settings,
		breakers: make(map[string]*gobreaker.CircuitBreaker[device.Session]),
	}
}

func (c *Client) breaker(address string) *gobreaker.CircuitBreaker[device.Session] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[address]; ok {
		return cb
	}

	metrics.DeviceBreakerState.WithLabelValues(address).Set(0)
	threshold := c.settings.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker[device.Session](gobreaker.Settings{
		Name:        address,
		MaxRequests: 1,
		Timeout:     c.settings.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Validation failures and cancelled requests say nothing about the terminal.
		IsSuccessful: func(err error) bool {
			return err == nil || !device.IsDeviceError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Device circuit breaker state changed",
				"device", name,
				"from", from.String(),
				"to", to.String(),
			)
			metrics.DeviceBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	c.breakers[address] = cb
	return cb
}

// Connect implements device.Client.
func (c *Client) Connect(ctx context.Context, address string, port int) (device.Session, error) {
	session, err := c.breaker(address).Execute(func() (device.Session, error) {
		return c.next.Connect(ctx, address, port)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.DeviceBreakerRejections.WithLabelValues(address).Inc()
		return nil, fmt.Errorf("%w: %s: circuit open after repeated failures", device.ErrDeviceUnreachable, address)
	}
	return session, err
}

// Info implements device.Client.
func (c *Client) Info(ctx context.Context, session device.Session) (device.Info, error) {
	return c.next.Info(ctx, session)
}

// FetchPunches implements device.Client.
func (c *Client) FetchPunches(ctx context.Context, session device.Session, since, until *time.Time) ([]device.RawPunch, error) {
	return c.next.FetchPunches(ctx, session, since, until)
}

// Disconnect implements device.Client.
func (c *Client) Disconnect(ctx context.Context, session device.Session) error {
	return c.next.Disconnect(ctx, session)
}

// State reports the breaker state of address. Unknown devices are closed.
func (c *Client) State(address string) gobreaker.State {
	c.mu.Lock()
	cb, ok := c.breakers[address]
	c.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}
