package climate

import (
	"context"
	"log/slog"
	"time"

	"surfsup-server/internal/mqtt"
)

// RefreshSubscriber delivers dataset refresh notifications.
type RefreshSubscriber interface {
	SetMessageHandler(handler func(refresh mqtt.DatasetRefresh) error)
}

type cacheInvalidator interface {
	InvalidateCache(ctx context.Context) error
}

// registerMQTTHandler drops cached reports whenever the store owner announces a refresh.
func registerMQTTHandler(subscriber RefreshSubscriber, svc cacheInvalidator, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	subscriber.SetMessageHandler(func(refresh mqtt.DatasetRefresh) error {
		logger.Debug("processing dataset refresh",
			"source", refresh.Source,
			"max_date", refresh.MaxDate,
		)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := svc.InvalidateCache(ctx); err != nil {
			logger.Error("failed to invalidate climate cache",
				"source", refresh.Source,
				"error", err,
			)
			return err
		}
		return nil
	})
}
