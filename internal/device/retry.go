package device

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shaunagostinho/vedirect-dash/internal/logging"
)

// Backoff bounds for ConnectWithRetry.
var (
	retryBaseDelay = 1 * time.Second
	retryMaxDelay  = 60 * time.Second
)

// Connector is the part of Provider that ConnectWithRetry needs.
type Connector interface {
	Connect() error
}

// ConnectWithRetry attempts to connect with exponential backoff.
// Starts at 1s, doubles each attempt up to 60s. Failures are logged at warn
// level for the first maxAttempts tries and at debug level after that.
// It returns nil once connected or ctx.Err() when cancelled.
func ConnectWithRetry(ctx context.Context, name string, c Connector, maxAttempts int) error {
	log := logging.Component("device").With(zap.String("device", name))
	delay := retryBaseDelay
	attempt := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.Connect()
		if err == nil {
			log.Info("connected", zap.Int("attempt", attempt+1))
			return nil
		}

		attempt++
		if attempt <= maxAttempts {
			log.Warn("connect failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxAttempts),
				zap.Duration("retry_in", delay),
				zap.Error(err),
			)
		} else {
			log.Debug("connect failed",
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", delay),
				zap.Error(err),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}
}
