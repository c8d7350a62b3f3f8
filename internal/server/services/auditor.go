package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/spacetask/spacetask/internal/logging"
	"github.com/spacetask/spacetask/internal/server/models"
)

var newScheduler = func() (gocron.Scheduler, error) {
	return gocron.NewScheduler()
}

type ledgerAuditor interface {
	Audit(ctx context.Context) ([]*models.BalanceDrift, error)
}

// Auditor periodically compares balances against the ledger and reports
// every drifted account. It never repairs anything.
type Auditor struct {
	ledger    ledgerAuditor
	interval  time.Duration
	logger    logging.Logger
	scheduler gocron.Scheduler
}

func NewAuditor(ledger ledgerAuditor, interval time.Duration, logger logging.Logger) *Auditor {
	return &Auditor{ledger: ledger, interval: interval, logger: logger.With("job", "ledger_audit")}
}

// Start schedules the audit every interval until ctx is done or Stop is
// called. A non-positive interval leaves the job disabled.
func (a *Auditor) Start(ctx context.Context) error {
	if a.interval <= 0 {
		a.logger.Info(ctx, "ledger audit disabled")
		return nil
	}

	s, err := newScheduler()
	if err != nil {
		return fmt.Errorf("error creating scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(a.interval),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				return
			}
			a.RunOnce(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("error scheduling ledger audit: %w", err)
	}

	s.Start()
	a.scheduler = s
	a.logger.Info(ctx, "ledger audit scheduled", "interval", a.interval.String())
	return nil
}

// Stop waits for a running audit to finish and shuts the scheduler down.
func (a *Auditor) Stop() error {
	if a.scheduler == nil {
		return nil
	}
	err := a.scheduler.Shutdown()
	a.scheduler = nil
	return err
}

// RunOnce performs a single audit and returns the number of drifted accounts.
func (a *Auditor) RunOnce(ctx context.Context) int {
	drifts, err := a.ledger.Audit(ctx)
	if err != nil {
		a.logger.Error(ctx, "ledger audit failed", "error", err)
		return 0
	}

	for _, d := range drifts {
		a.logger.Warn(ctx, "balance drift",
			"user_id", d.UserID,
			"username", d.UserName,
			"coin_balance", d.CoinBalance,
			"ledger_balance", d.LedgerBalance,
			"delta", d.Delta(),
		)
	}
	a.logger.Debug(ctx, "ledger audit finished", "drifted", len(drifts))
	return len(drifts)
}
