package workers

import (
	"context"
	"time"

	"puzzle-bar/utils"

	"github.com/go-co-op/gocron/v2"
)

// PendingOrderExpirer discards pending orders created before a cutoff.
type PendingOrderExpirer interface {
	ExpirePending(ctx context.Context, cutoff time.Time) (int, error)
}

// StartOrderSweeper compensates orders whose payment was abandoned without
// a success or failure callback. Every interval it expires pending orders
// older than ttl. Shut the returned scheduler down on exit.
func StartOrderSweeper(ctx context.Context, expirer PendingOrderExpirer, ttl, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			SweepPendingOrders(ctx, expirer, ttl)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	utils.LogInfo("[SWEEPER] pending orders older than %s expire every %s", ttl, interval)
	return sched, nil
}

// SweepPendingOrders runs one sweep and returns the number of expired orders.
func SweepPendingOrders(ctx context.Context, expirer PendingOrderExpirer, ttl time.Duration) int {
	n, err := expirer.ExpirePending(ctx, time.Now().Add(-ttl))
	if err != nil {
		utils.LogError("[SWEEPER] failed to expire pending orders: %v", err)
		return 0
	}
	if n > 0 {
		utils.LogInfo("🧹 [SWEEPER] expired %d abandoned order(s)", n)
	}
	return n
}
