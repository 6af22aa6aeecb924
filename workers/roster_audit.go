package workers

import (
	"context"
	"time"

	"puzzle-bar/services"
	"puzzle-bar/utils"
)

// RosterAuditor corrects challenges whose participant counter drifted.
type RosterAuditor interface {
	AuditAll(ctx context.Context) ([]*services.InconsistentStateError, error)
}

// AuditRosters periodically reconciles participant counters until ctx ends.
func AuditRosters(ctx context.Context, auditor RosterAuditor, interval time.Duration) {
	utils.LogInfo("[ROSTER_AUDIT] starting, every %s", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			utils.LogInfo("[ROSTER_AUDIT] stopped")
			return
		case <-ticker.C:
			fixed, err := auditor.AuditAll(ctx)
			if err != nil {
				utils.LogError("[ROSTER_AUDIT] audit failed: %v", err)
				continue
			}
			for _, drift := range fixed {
				utils.LogWarn("[ROSTER_AUDIT] corrected: %v", drift)
			}
		}
	}
}
