package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Pinger はデータベースへの疎通確認が可能なオブジェクトを表す。
// *sql.DB がこれを満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// WaitForDB はデータベースが応答するまで一定間隔でPingを繰り返す。
// timeoutを超えた場合、またはctxがキャンセルされた場合はエラーを返す。
func WaitForDB(ctx context.Context, db Pinger, timeout, interval time.Duration) error {
	slog.Info("Waiting for database...")

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b := backoff.WithContext(backoff.NewConstantBackOff(interval), ctx)

	attempts := 0
	operation := func() error {
		attempts++
		return db.PingContext(ctx)
	}
	notify := func(err error, next time.Duration) {
		slog.Warn("Database unavailable, waiting...",
			slog.Int("attempt", attempts),
			slog.Duration("retry_in", next),
			slog.String("error", err.Error()),
		)
	}

	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		return fmt.Errorf("database not available after %d attempts: %w", attempts, err)
	}

	slog.Info("Database available!", slog.Int("attempts", attempts))
	return nil
}
