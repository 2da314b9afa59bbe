package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"go-freshflow/internal/config"
	"go-freshflow/internal/service"
)

const jobTimeout = 5 * time.Minute

// Nominator runs one redistribution sweep.
type Nominator interface {
	Nominate(ctx context.Context, now time.Time, horizonDays, overstockQty int) (service.NominationResult, error)
}

// Snapshotter writes one ledger report per party.
type Snapshotter interface {
	Run(ctx context.Context, now time.Time) ([]string, error)
}

// Scheduler runs the periodic pool sweep and the ledger snapshot.
type Scheduler struct {
	cron     *cron.Cron
	pool     Nominator
	reports  Snapshotter
	poolCfg  config.PoolConfig
	schedCfg config.SchedulerConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewScheduler creates a new scheduler instance. reports may be nil when no
// report store is configured.
func NewScheduler(poolCfg config.PoolConfig, schedCfg config.SchedulerConfig, pool Nominator, reports Snapshotter, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc, err := time.LoadLocation(schedCfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone: %w", err)
	}

	cl := cronLogger{logger.Sugar()}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	return &Scheduler{
		cron:     c,
		pool:     pool,
		reports:  reports,
		poolCfg:  poolCfg,
		schedCfg: schedCfg,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Start registers the jobs and starts the cron loop. A job whose schedule
// is empty is not registered.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler")

	if s.schedCfg.PoolSweepCron != "" && (s.poolCfg.NearExpiryDays > 0 || s.poolCfg.OverstockQty > 0) {
		if _, err := s.cron.AddFunc(s.schedCfg.PoolSweepCron, s.runPoolSweep); err != nil {
			return fmt.Errorf("schedule pool sweep: %w", err)
		}
	} else {
		s.logger.Info("pool sweep disabled")
	}

	if s.schedCfg.ReportCron != "" && s.reports != nil {
		if _, err := s.cron.AddFunc(s.schedCfg.ReportCron, s.runSnapshot); err != nil {
			return fmt.Errorf("schedule ledger snapshot: %w", err)
		}
	} else {
		s.logger.Info("ledger snapshot disabled")
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) runPoolSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, err := s.SweepPool(ctx); err != nil {
		s.logger.Error("pool sweep failed", zap.Error(err))
	}
}

// SweepPool runs one sweep with the configured thresholds.
func (s *Scheduler) SweepPool(ctx context.Context) (service.NominationResult, error) {
	return s.pool.Nominate(ctx, s.now().UTC(), s.poolCfg.NearExpiryDays, s.poolCfg.OverstockQty)
}

func (s *Scheduler) runSnapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	keys, err := s.reports.Run(ctx, s.now())
	if err != nil {
		s.logger.Error("ledger snapshot failed", zap.Error(err), zap.Int("written", len(keys)))
		return
	}
	s.logger.Info("ledger snapshot written", zap.Int("reports", len(keys)))
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
