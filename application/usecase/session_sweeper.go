package usecase

import (
	"context"
	"time"

	"github.com/expensetrack/expensetrack/application/port/outbound"
	"github.com/expensetrack/expensetrack/infrastructure/service/logger"
)

// SessionSweeper periodically evicts revocation entries and reset tokens
// whose expiry has passed.
type SessionSweeper struct {
	registry outbound.RevocationRegistry
	resets   outbound.PasswordResetRepository
	interval time.Duration
	now      func() time.Time
	logger   logger.Logger
}

func NewSessionSweeper(
	registry outbound.RevocationRegistry,
	resets outbound.PasswordResetRepository,
	interval time.Duration,
	log logger.Logger,
) *SessionSweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &SessionSweeper{
		registry: registry,
		resets:   resets,
		interval: interval,
		now:      time.Now,
		logger:   log,
	}
}

// Start runs the sweep loop in a goroutine until ctx is cancelled. The
// returned channel is closed once the loop has exited.
func (s *SessionSweeper) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
	return done
}

// Sweep runs a single eviction pass. Failures are logged and retried on the
// next tick.
func (s *SessionSweeper) Sweep(ctx context.Context) {
	start := time.Now()
	now := s.now()
	fields := map[string]interface{}{}

	if s.registry != nil {
		n, err := s.registry.PurgeExpired(ctx, now)
		if err != nil {
			s.logger.Error(ctx, "Failed to purge revoked tokens", err, nil)
		} else {
			fields["revoked_tokens_purged"] = n
		}
	}

	if s.resets != nil {
		n, err := s.resets.PurgeExpired(ctx, now)
		if err != nil {
			s.logger.Error(ctx, "Failed to purge reset tokens", err, nil)
		} else {
			fields["reset_tokens_purged"] = n
		}
	}

	logger.LogPerformance(ctx, s.logger, "session_sweep", time.Since(start), fields)
}
