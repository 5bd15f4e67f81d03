package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
	"github.com/username/monedero/backend/src/logger"
	"github.com/username/monedero/backend/src/services"
)

// Job is a named unit of background work.
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Scheduler manages background jobs on cron schedules.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		log:  logger.L.With(slog.String("component", "scheduler")),
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Scheduler started")
}

// Stop waits for any running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("Scheduler stopped")
}

// AddJob registers a job. Schedules use the standard cron grammar plus the
// @every and @hourly style descriptors.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx := logger.ToContext(context.Background(), s.log.With(slog.String("job", job.Name())))
		s.log.Debug("Running job", "job", job.Name())

		if err := job.Run(ctx); err != nil {
			s.log.Error("Job failed", "job", job.Name(), "error", err)
			return
		}
		s.log.Debug("Job completed", "job", job.Name())
	})
	if err != nil {
		return err
	}

	s.log.Info("Job registered", "job", job.Name(), "schedule", schedule)
	return nil
}

// ReconcileJob runs a full portfolio reconciliation pass.
type ReconcileJob struct {
	Portfolio services.PortfolioService
}

func (j *ReconcileJob) Name() string { return "portfolio-reconcile" }

func (j *ReconcileJob) Run(ctx context.Context) error {
	report, err := j.Portfolio.Reconcile(ctx)
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Scheduled reconciliation finished",
		"inserted", report.Refresh.Inserted,
		"updated", report.Refresh.Updated,
		"closed", report.Refresh.Closed,
		"totalARS", report.Snapshot.TotalARS,
		"totalUSD", report.Snapshot.TotalUSD)
	return nil
}
