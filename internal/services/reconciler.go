package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"cmt/internal/domain"
)

// StatusReconciler recomputes the aggregate status of every submission.
type StatusReconciler struct {
	submissionRepo domain.SubmissionRepository
	reviews        domain.ReviewService
	logger         *slog.Logger
	cron           *cron.Cron
}

func NewStatusReconciler(submissionRepo domain.SubmissionRepository, reviews domain.ReviewService, logger *slog.Logger) *StatusReconciler {
	return &StatusReconciler{submissionRepo: submissionRepo, reviews: reviews, logger: logger}
}

// RunOnce recomputes all submissions and returns how many changed status.
// A failure on one submission is logged and the run continues.
func (r *StatusReconciler) RunOnce(ctx context.Context) (checked, changed int, err error) {
	ids, err := r.submissionRepo.ListAllIDs(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list submissions: %w", err)
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return checked, changed, err
		}
		status, didChange, err := r.reviews.RecomputeStatus(ctx, id)
		if err != nil {
			r.logger.ErrorContext(ctx, "recompute status failed", "submission_id", id, "err", err)
			continue
		}
		checked++
		if didChange {
			changed++
			r.logger.InfoContext(ctx, "submission status updated", "submission_id", id, "status", status)
		}
	}
	return checked, changed, nil
}

// Start schedules RunOnce on the given cron spec. An empty spec disables scheduling.
func (r *StatusReconciler) Start(ctx context.Context, spec string) error {
	if spec == "" {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		checked, changed, err := r.RunOnce(ctx)
		if err != nil {
			r.logger.ErrorContext(ctx, "status reconciliation failed", "err", err)
			return
		}
		r.logger.InfoContext(ctx, "status reconciliation finished", "checked", checked, "changed", changed)
	})
	if err != nil {
		return fmt.Errorf("schedule reconciler %q: %w", spec, err)
	}
	r.cron = c
	c.Start()
	return nil
}

// Stop halts the schedule and waits for a running job to finish.
func (r *StatusReconciler) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}
