package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/folio/pkg/observability"
)

// DefaultRetentionSchedule runs the purge daily at 03:15
const DefaultRetentionSchedule = "15 3 * * *"

// RetentionJob periodically deletes audit events older than the policy allows
type RetentionJob struct {
	store   Store
	policy  RetentionPolicy
	logger  *observability.Logger
	purged  prometheus.Counter
	timeout time.Duration
	now     func() time.Time
}

// NewRetentionJob creates a purge job. purged may be nil.
func NewRetentionJob(store Store, policy RetentionPolicy, logger *observability.Logger, purged prometheus.Counter) *RetentionJob {
	return &RetentionJob{
		store:   store,
		policy:  policy,
		logger:  logger.WithField("job", "audit_retention"),
		purged:  purged,
		timeout: 5 * time.Minute,
		now:     time.Now,
	}
}

// Schedule registers the job on c using a standard five-field cron spec
func (j *RetentionJob) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	if spec == "" {
		spec = DefaultRetentionSchedule
	}
	id, err := c.AddJob(spec, j)
	if err != nil {
		return 0, fmt.Errorf("invalid retention schedule %q: %w", spec, err)
	}
	return id, nil
}

// Run implements cron.Job
func (j *RetentionJob) Run() {
	defer observability.RecoverPanic(j.logger, "audit retention")

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if _, err := j.Purge(ctx); err != nil {
		j.logger.WithError(err).Error("audit retention purge failed")
	}
}

// Purge deletes expired events and returns how many were removed
func (j *RetentionJob) Purge(ctx context.Context) (int64, error) {
	if j.policy.RetentionDays <= 0 {
		return 0, nil
	}

	cutoff := j.policy.Cutoff(j.now().UTC())
	n, err := j.store.Cleanup(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if j.purged != nil {
		j.purged.Add(float64(n))
	}
	j.logger.WithFields(map[string]interface{}{
		"deleted": n,
		"cutoff":  cutoff.Format(time.RFC3339),
	}).Info("audit retention purge completed")

	return n, nil
}
