package services

import (
	"context"
	"time"

	"github.com/Dosada05/tournament-bracket/repositories"
	"github.com/sethvargo/go-retry"
)

const txRetryBase = 10 * time.Millisecond

// runTx runs fn in a serializable transaction and repeats it when the
// database reports a serialization failure or deadlock.
func runTx(ctx context.Context, repo repositories.BracketRepository, maxRetries uint64, fn func(ctx context.Context, tx repositories.BracketTx) error) error {
	backoff := retry.WithJitterPercent(20, retry.WithMaxRetries(maxRetries, retry.NewExponential(txRetryBase)))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := repo.WithinTx(ctx, fn)
		if err != nil && repositories.IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
