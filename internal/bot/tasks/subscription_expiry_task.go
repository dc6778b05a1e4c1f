package tasks

import (
	"context"
	"fmt"
	"time"
)

// newSubscriptionExpiryTask creates the scheduled task that deactivates
// lapsed subscriptions. The purchase engine already ignores expired
// subscriptions per cycle; this sweep keeps the stored flag honest so
// stats and provisioning checks see the real state.
func newSubscriptionExpiryTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "subscription_expiry")

	return func(ctx context.Context) error {
		startTime := time.Now()

		count, err := deps.Store.DeactivateExpired(ctx, time.Now().UTC())
		if err != nil {
			log.ErrorContext(ctx, "Subscription expiry sweep failed", "error", err, "duration", time.Since(startTime))
			return fmt.Errorf("subscription expiry sweep failed: %w", err)
		}

		log.InfoContext(ctx, "Subscription expiry sweep completed",
			"deactivated", count, "duration", time.Since(startTime))
		return nil
	}
}
