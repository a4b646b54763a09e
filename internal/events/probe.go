package events

import (
	"context"
	"fmt"
	"time"

	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/logging"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// WaitForBroker dials the broker and lists its peers until it responds,
// waiting between attempts. Edge deployments routinely start the service
// before the broker container is up.
func WaitForBroker(ctx context.Context, logger *logging.Logger, broker string, attempts int, timeout, wait time.Duration) error {
	if attempts <= 0 {
		return fmt.Errorf("attempts must be > 0, got %d", attempts)
	}

	var lastErr error
	for i := range attempts {
		if err := probe(ctx, broker, timeout); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if i < attempts-1 {
			logger.Info(ctx, "broker not available yet, retrying",
				zap.String("broker", broker),
				zap.Duration("wait", wait),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return fmt.Errorf("broker %s unreachable after %d attempts: %w", broker, attempts, lastErr)
}

func probe(ctx context.Context, broker string, timeout time.Duration) error {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := kafka.DialContext(dialCtx, "tcp", broker)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	if _, err := conn.Brokers(); err != nil {
		return err
	}
	return nil
}
