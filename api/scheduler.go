/*
scheduler.go - Background ledger mirror integrity check

PURPOSE:
  Periodically verifies that every invoice has exactly one mirrored ledger
  entry and that no mirrored entry outlives its invoice. Violations are
  logged and exported as a gauge; nothing is repaired automatically.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - First check runs immediately on Start
  - Each check is bounded by CheckTimeout so a stuck database cannot pile
    up checks
  - Stop cancels an in-flight check and waits for the goroutine

USAGE:
  scheduler := NewIntegrityScheduler(engine, logger, recorder)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - accounting/engine.go: CheckMirrorIntegrity
  - metrics/metrics.go: IntegrityChecked
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/designersquare/bookkeeping/accounting"
)

// IntegrityChecker is the engine operation the scheduler drives.
type IntegrityChecker interface {
	CheckMirrorIntegrity(ctx context.Context) ([]accounting.MirrorAnomaly, error)
}

// IntegrityReporter receives the outcome of every check.
type IntegrityReporter interface {
	IntegrityChecked(anomalies int, err error)
}

// IntegrityScheduler runs mirror integrity checks on a ticker.
type IntegrityScheduler struct {
	Checker       IntegrityChecker
	Reporter      IntegrityReporter
	Logger        *zap.Logger
	CheckInterval time.Duration
	CheckTimeout  time.Duration

	ticker *time.Ticker
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewIntegrityScheduler creates a scheduler with an hourly interval.
// reporter may be nil.
func NewIntegrityScheduler(checker IntegrityChecker, logger *zap.Logger, reporter IntegrityReporter) *IntegrityScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntegrityScheduler{
		Checker:       checker,
		Reporter:      reporter,
		Logger:        logger.Named("integrity"),
		CheckInterval: time.Hour,
		CheckTimeout:  time.Minute,
	}
}

// Start begins the scheduler. Calling Start twice is a no-op.
func (s *IntegrityScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		return
	}
	if s.CheckInterval <= 0 {
		s.Logger.Info("integrity scheduler disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)

	go s.run(ctx, s.ticker)

	s.Logger.Info("integrity scheduler started", zap.Duration("interval", s.CheckInterval))
}

// Stop stops the scheduler and waits for a running check to return.
func (s *IntegrityScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	s.cancel()
	s.wg.Wait()
	s.ticker = nil
	s.Logger.Info("integrity scheduler stopped")
}

func (s *IntegrityScheduler) run(ctx context.Context, ticker *time.Ticker) {
	defer s.wg.Done()

	s.RunNow(ctx)

	for {
		select {
		case <-ticker.C:
			s.RunNow(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunNow performs one check and returns what it found.
func (s *IntegrityScheduler) RunNow(ctx context.Context) []accounting.MirrorAnomaly {
	if s.CheckTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.CheckTimeout)
		defer cancel()
	}

	start := time.Now()
	anomalies, err := s.Checker.CheckMirrorIntegrity(ctx)
	if s.Reporter != nil {
		s.Reporter.IntegrityChecked(len(anomalies), err)
	}
	if err != nil {
		s.Logger.Error("integrity check failed", zap.Error(err))
		return nil
	}

	for _, a := range anomalies {
		if a.Orphaned {
			s.Logger.Warn("mirrored ledger entries without invoice",
				zap.String("user_id", a.UserID),
				zap.String("invoice_id", a.InvoiceID),
				zap.Int("entries", a.Entries),
			)
			continue
		}
		s.Logger.Warn("invoice without exactly one mirrored ledger entry",
			zap.String("user_id", a.UserID),
			zap.String("invoice_id", a.InvoiceID),
			zap.Int("entries", a.Entries),
		)
	}

	s.Logger.Debug("integrity check completed",
		zap.Int("anomalies", len(anomalies)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return anomalies
}
