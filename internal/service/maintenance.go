package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/specmint/specmint/internal/types"
)

// MaintenanceService runs the scheduled background passes: the usage
// retention sweep and the display-counter reconciliation. Neither is a
// runtime guarantee; enforcement never depends on either having run.
type MaintenanceService struct {
	ServiceParams
	cron *cron.Cron
}

func NewMaintenanceService(params ServiceParams) *MaintenanceService {
	return &MaintenanceService{
		ServiceParams: params,
		cron:          cron.New(),
	}
}

// Start schedules both passes and launches the cron loop.
func (s *MaintenanceService) Start() error {
	if _, err := s.cron.AddFunc(s.Config.Usage.CleanupSchedule, func() {
		if err := s.RunRetentionSweep(context.Background()); err != nil {
			s.Logger.Errorw("retention sweep failed", "error", err)
		}
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(s.Config.Usage.ReconcileSchedule, func() {
		if err := s.RunReconciliation(context.Background()); err != nil {
			s.Logger.Errorw("counter reconciliation failed", "error", err)
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.Logger.Infow("maintenance jobs scheduled",
		"cleanup", s.Config.Usage.CleanupSchedule,
		"reconcile", s.Config.Usage.ReconcileSchedule,
	)
	return nil
}

// Stop halts the scheduler and waits for in-flight jobs.
func (s *MaintenanceService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RunRetentionSweep deletes ledger entries past the retention horizon.
func (s *MaintenanceService) RunRetentionSweep(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.Config.Usage.RetentionDays)

	deleted, err := s.UsageRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.Metrics.RetentionSweepTotal.WithLabelValues("failed").Inc()
		return err
	}

	s.Metrics.RetentionSweepTotal.WithLabelValues("ok").Inc()
	s.Logger.Infow("retention sweep completed",
		"cutoff", cutoff,
		"deleted", deleted,
	)
	return nil
}

// RunReconciliation recomputes the denormalized spec counters from the
// ledger for every actor with recent activity. The counters are display
// caches; this pass bounds their drift, it does not make them exact.
func (s *MaintenanceService) RunReconciliation(ctx context.Context) error {
	since := time.Now().UTC().Add(-48 * time.Hour)

	actors, err := s.UsageRepo.DistinctActors(ctx, types.ActionSpecGenerated, since)
	if err != nil {
		return err
	}

	var reconciled, failed int
	for _, actor := range actors {
		count, err := s.UsageRepo.CountAllByActor(ctx, actor, types.ActionSpecGenerated)
		if err != nil {
			s.Logger.Warnw("skipping actor in reconciliation",
				"user_id", actor.UserID,
				"team_id", actor.TeamID,
				"error", err,
			)
			failed++
			continue
		}

		if actor.IsTeam() {
			err = s.TeamRepo.SetSpecCount(ctx, actor.TeamID, count)
		} else {
			err = s.UserRepo.SetSpecCount(ctx, actor.UserID, count)
		}
		if err != nil {
			s.Logger.Warnw("failed to write reconciled counter",
				"user_id", actor.UserID,
				"team_id", actor.TeamID,
				"error", err,
			)
			failed++
			continue
		}
		reconciled++
	}

	s.Logger.Infow("counter reconciliation completed",
		"actors", len(actors),
		"reconciled", reconciled,
		"failed", failed,
	)
	return nil
}
