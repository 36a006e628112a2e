package jobs

import (
	"context"
	"encoding/json"
	"time"

	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/depot-aim/depot-aim/internal/audit"
	"github.com/depot-aim/depot-aim/internal/observability"
	"github.com/depot-aim/depot-aim/internal/rbac"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRBACIntegrityScan looks for dangling role and assignment references.
	TaskRBACIntegrityScan = "rbac:integrity_scan"
	// TaskRightsCacheWarm precomputes effective rights for active users.
	TaskRightsCacheWarm = "rights:cache_warm"
	// TaskAuditPrune applies the audit retention policy.
	TaskAuditPrune = "audit:prune"
)

// IntegrityStore is the data surface the integrity scan reads.
type IntegrityStore interface {
	DanglingCounts(ctx context.Context) (assignments int64, parents int64, err error)
}

// WarmLister names the users worth warming.
type WarmLister interface {
	ActiveUserIDs(ctx context.Context, limit int) ([]int64, error)
}

// RightsWarmer computes and caches effective rights per user.
type RightsWarmer interface {
	EffectiveRights(ctx context.Context, userID int64) ([]int64, error)
}

// AuditPrunePayload carries the retention window for an audit:prune run.
type AuditPrunePayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewRBACIntegrityScanTask constructs the integrity scan task.
func NewRBACIntegrityScanTask() *asynq.Task {
	return asynq.NewTask(TaskRBACIntegrityScan, nil)
}

// NewRightsCacheWarmTask constructs the cache warm task.
func NewRightsCacheWarmTask() *asynq.Task {
	return asynq.NewTask(TaskRightsCacheWarm, nil)
}

// NewAuditPruneTask constructs an audit prune task.
func NewAuditPruneTask(retentionDays int) (*asynq.Task, error) {
	data, err := json.Marshal(AuditPrunePayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPrune, data), nil
}

// NewIntegrityScanHandler builds the rbac:integrity_scan handler.
func NewIntegrityScanHandler(store IntegrityStore, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		assignments, parents, err := store.DanglingCounts(ctx)
		if err != nil {
			return err
		}
		if assignments > 0 {
			metrics.ObserveInconsistency("dangling_assignment")
		}
		if parents > 0 {
			metrics.ObserveInconsistency("missing_parent")
		}
		logger.Info("rbac integrity scan",
			slog.Int64("dangling_assignments", assignments),
			slog.Int64("dangling_parents", parents))
		return nil
	}
}

// NewRightsCacheWarmHandler builds the rights:cache_warm handler.
func NewRightsCacheWarmHandler(lister WarmLister, warmer RightsWarmer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		userIDs, err := lister.ActiveUserIDs(ctx, 500)
		if err != nil {
			return err
		}
		warmed := 0
		for _, userID := range userIDs {
			if _, err := warmer.EffectiveRights(ctx, userID); err != nil {
				logger.Warn("warm rights", slog.Int64("user_id", userID), slog.Any("error", err))
				continue
			}
			warmed++
		}
		logger.Info("rights cache warmed", slog.Int("users", warmed))
		return nil
	}
}

// NewAuditPruneHandler builds the audit:prune handler.
func NewAuditPruneHandler(svc *audit.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload AuditPrunePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.RetentionDays <= 0 {
			return asynq.SkipRetry
		}
		deleted, err := svc.Prune(ctx, time.Duration(payload.RetentionDays)*24*time.Hour)
		if err != nil {
			return err
		}
		logger.Info("audit pruned", slog.Int64("deleted", deleted), slog.Int("retention_days", payload.RetentionDays))
		return nil
	}
}

var _ IntegrityStore = (*rbac.Repository)(nil)
var _ WarmLister = (*rbac.Repository)(nil)
var _ RightsWarmer = (*rbac.Service)(nil)
