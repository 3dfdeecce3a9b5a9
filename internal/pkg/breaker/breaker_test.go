package breaker_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-sync/internal/domain/device"
	"github.com/cmlabs-hris/attendance-sync/internal/pkg/breaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gobreaker "github.com/sony/gobreaker/v2"
)

type session string

func (s session) Address() string { return string(s) }

type flakyClient struct {
	connectErr error
	connects   int
}

func (f *flakyClient) Connect(_ context.Context, address string, _ int) (device.Session, error) {
	f.connects++
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return session(address), nil
}

func (f *flakyClient) Info(context.Context, device.Session) (device.Info, error) {
	return device.Info{}, nil
}

func (f *flakyClient) FetchPunches(context.Context, device.Session, *time.Time, *time.Time) ([]device.RawPunch, error) {
	return nil, nil
}

func (f *flakyClient) Disconnect(context.Context, device.Session) error { return nil }

func TestClient_OpensAfterConsecutiveFailures(t *testing.T) {
	next := &flakyClient{connectErr: fmt.Errorf("%w: no route", device.ErrDeviceUnreachable)}
	c := breaker.New(next, breaker.Settings{ConsecutiveFailures: 2, Cooldown: time.Hour})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.Connect(ctx, "10.0.0.5", 4370)
		require.ErrorIs(t, err, device.ErrDeviceUnreachable)
	}
	assert.Equal(t, gobreaker.StateOpen, c.State("10.0.0.5"))

	_, err := c.Connect(ctx, "10.0.0.5", 4370)
	assert.ErrorIs(t, err, device.ErrDeviceUnreachable)
	assert.Equal(t, 2, next.connects, "open breaker must not reach the device")

	// Breakers are per device.
	assert.Equal(t, gobreaker.StateClosed, c.State("10.0.0.6"))
}

func TestClient_NonDeviceErrorsDoNotTrip(t *testing.T) {
	next := &flakyClient{connectErr: context.Canceled}
	c := breaker.New(next, breaker.Settings{ConsecutiveFailures: 1, Cooldown: time.Hour})

	for i := 0; i < 3; i++ {
		_, err := c.Connect(context.Background(), "10.0.0.5", 4370)
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, c.State("10.0.0.5"))
	assert.Equal(t, 3, next.connects)
}

func TestClient_PassesSessionThrough(t *testing.T) {
	c := breaker.New(&flakyClient{}, breaker.Settings{})

	s, err := c.Connect(context.Background(), "10.0.0.5", 4370)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", s.Address())
}
