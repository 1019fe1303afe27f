package jobs

import (
	"context"
	"log/slog"
	"time"

	"tessera/internal/service"
)

const checkInterval = 30 * time.Second

// HoldExpirationJob periodically releases inventory held by pending
// registrations that outlived the hold timeout.
type HoldExpirationJob struct {
	registrations *service.RegistrationService
	ticker        *time.Ticker
	done          chan bool
}

func NewHoldExpirationJob(registrations *service.RegistrationService) *HoldExpirationJob {
	return &HoldExpirationJob{
		registrations: registrations,
		done:          make(chan bool),
	}
}

// Start begins the background sweep. The first check runs immediately so
// a restart does not extend holds by a full interval.
func (j *HoldExpirationJob) Start(ctx context.Context) {
	slog.Info("Starting hold expiration job", "check_interval", checkInterval.String())

	j.ticker = time.NewTicker(checkInterval)

	go j.sweep(ctx)

	go func() {
		for {
			select {
			case <-j.ticker.C:
				go j.sweep(ctx)
			case <-j.done:
				slog.Info("Hold expiration job stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the background job.
func (j *HoldExpirationJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
}

func (j *HoldExpirationJob) sweep(ctx context.Context) {
	expired, err := j.registrations.ExpireOverdue(ctx)
	if err != nil {
		slog.Error("Failed to expire overdue registrations", "error", err)
		return
	}

	if expired > 0 {
		slog.Info("Released expired registration holds", "count", expired)
	} else {
		slog.Debug("No overdue registrations found")
	}
}
