package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"circ-exchange/internal/common/config"
	apperrors "circ-exchange/internal/common/errors"
	"circ-exchange/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func testClient(t *testing.T, maxRetries int) *Client {
	return &Client{
		config: &ClientConfig{RetryConfig: &RetryConfig{
			MaxRetries: maxRetries,
			BaseDelay:  time.Millisecond,
			MaxDelay:   2 * time.Millisecond,
		}},
		logger: logger.NewTestLogger(t),
	}
}

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{status.Error(codes.Unavailable, "gateway down"), true},
		{status.Error(codes.DeadlineExceeded, "slow"), true},
		{status.Error(codes.ResourceExhausted, "backpressure"), true},
		{status.Error(codes.NotFound, "no such job"), false},
		{status.Error(codes.InvalidArgument, "bad variables"), false},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("something odd"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isRetryableZeebeError(tt.err), tt.err.Error())
	}
}

func TestExecuteWithRetry(t *testing.T) {
	t.Run("recovers from transient failures", func(t *testing.T) {
		c := testClient(t, 3)
		calls := 0
		err := c.ExecuteWithRetry(context.Background(), "complete", func(context.Context) error {
			calls++
			if calls < 3 {
				return status.Error(codes.Unavailable, "gateway down")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up as a transport error", func(t *testing.T) {
		c := testClient(t, 2)
		calls := 0
		err := c.ExecuteWithRetry(context.Background(), "complete", func(context.Context) error {
			calls++
			return status.Error(codes.Unavailable, "gateway down")
		})
		assert.ErrorIs(t, err, apperrors.ErrTransport)
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		c := testClient(t, 3)
		calls := 0
		err := c.ExecuteWithRetry(context.Background(), "complete", func(context.Context) error {
			calls++
			return status.Error(codes.NotFound, "job not found")
		})
		assert.ErrorIs(t, err, apperrors.ErrService)
		assert.Equal(t, int(codes.NotFound), apperrors.StatusCode(err))
		assert.Equal(t, 1, calls)
	})

	t.Run("cancellation stops retrying", func(t *testing.T) {
		c := testClient(t, 5)
		c.config.RetryConfig.BaseDelay = time.Hour
		c.config.RetryConfig.MaxDelay = time.Hour
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		err := c.ExecuteWithRetry(ctx, "complete", func(context.Context) error {
			calls++
			return status.Error(codes.Unavailable, "gateway down")
		})
		assert.ErrorIs(t, err, apperrors.ErrTransport)
		assert.Equal(t, 1, calls)
	})
}

func TestClientConfigFrom(t *testing.T) {
	cfg := ClientConfigFrom(config.CamundaConfig{BrokerAddress: "zeebe:26500", Timeout: 2000})
	assert.Equal(t, "zeebe:26500", cfg.GatewayAddress)
	assert.Equal(t, 2*time.Second, cfg.ConnectionTimeout)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.UsePlaintextConnection)
}
