package zkteco

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cmlabs-hris/attendance-sync/internal/domain/device"
	"github.com/cmlabs-hris/attendance-sync/internal/pkg/metrics"
)

// linearBackOff waits step, 2*step, 3*step, ...
type linearBackOff struct {
	step    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.step
}

func (b *linearBackOff) Reset() { b.attempt = 0 }

// bind opens the local socket of a session. Concurrent sessions pick their
// ports independently, so a collision is retried with a fresh port.
func (c *Client) bind(ctx context.Context) (*net.UDPConn, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{step: c.opts.BindBackoff}, uint64(c.opts.BindAttempts-1)),
		ctx,
	)

	listen := func() (*net.UDPConn, error) {
		conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: c.pickPort()})
		if err == nil {
			return conn, nil
		}
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("%w: %v", device.ErrPortInUse, err)
		}
		return nil, backoff.Permanent(fmt.Errorf("%w: bind local port: %v", device.ErrDeviceUnreachable, err))
	}

	conn, err := backoff.RetryNotifyWithData(listen, policy, func(err error, wait time.Duration) {
		metrics.DeviceBindRetries.Inc()
		slog.Debug("Local port in use, retrying device session", "error", err, "wait", wait)
	})
	switch {
	case err == nil:
		return conn, nil
	case errors.Is(err, device.ErrPortInUse):
		return nil, fmt.Errorf("%w: no free local port after %d attempts: %v", device.ErrDeviceUnreachable, c.opts.BindAttempts, err)
	case errors.Is(err, context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: binding local port: %v", device.ErrDeviceTimeout, err)
	default:
		return nil, err
	}
}
