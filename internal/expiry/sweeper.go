package expiry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tolkbridge/tolka/internal/booking"
	"github.com/tolkbridge/tolka/internal/models"
	"github.com/tolkbridge/tolka/pkg/repository"
)

// Sweeper periodically times out pending jobs nobody accepted before
// will_expire_at and tells the customer to rebook.
type Sweeper struct {
	repo     *repository.Repository
	notifier booking.Notifier
	clock    booking.Clock
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	wg       sync.WaitGroup
}

func NewSweeper(repo *repository.Repository, notifier booking.Notifier, clock booking.Clock, interval time.Duration, logger *slog.Logger) *Sweeper {
	if clock == nil {
		clock = booking.SystemClock()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		repo:     repo,
		notifier: notifier,
		clock:    clock,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop signals the loop to stop and waits for it.
func (s *Sweeper) Stop() {
	close(s.stop)
	s.wg.Wait()
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			s.logger.Info("expiry sweeper stopping")
			return
		case <-ctx.Done():
			s.logger.Info("context canceled, expiry sweeper exiting")
			return
		case <-ticker.C:
			if n, err := s.Sweep(ctx); err != nil {
				s.logger.Error("expiry sweep", "error", err)
			} else if n > 0 {
				s.logger.Info("expiry sweep", "expired", n)
			}
		}
	}
}

// Sweep runs one pass and returns how many jobs it expired.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.clock.Now()
	expired, err := s.repo.Jobs.ListExpiredPending(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list expired: %w", err)
	}

	count := 0
	for i := range expired {
		job := &expired[i]
		job.Status = models.StatusTimedout
		if err := s.repo.Jobs.UpdateJob(ctx, job); err != nil {
			s.logger.Error("expire job", "job_id", job.ID, "error", err)
			continue
		}
		count++
		s.logger.Info("job expired", "job_id", job.ID, "due", job.Due)

		s.notifier.Dispatch(ctx, job, []booking.NotificationIntent{
			{Kind: booking.IntentJobExpired, Audience: booking.AudienceCustomer},
		})
	}
	return count, nil
}
