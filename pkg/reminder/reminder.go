// Package reminder periodically re-notifies agent channels about
// conversation requests that have been waiting too long.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"github.com/tinyland-inc/relaybot/pkg/logger"
	"github.com/tinyland-inc/relaybot/pkg/routing"
)

// Service sweeps the pending queue on a cron schedule.
type Service struct {
	coord    *routing.Coordinator
	schedule string
	after    time.Duration
}

// New validates the cron schedule and builds the service. after is how
// long a request may wait before it is re-announced.
func New(coord *routing.Coordinator, schedule string, after time.Duration) (*Service, error) {
	gron := gronx.New()
	if !gron.IsValid(schedule) {
		return nil, fmt.Errorf("invalid reminder schedule %q", schedule)
	}
	if after <= 0 {
		return nil, fmt.Errorf("reminder threshold must be positive, got %v", after)
	}
	return &Service{
		coord:    coord,
		schedule: schedule,
		after:    after,
	}, nil
}

// Run blocks until ctx is canceled, sweeping at every schedule tick.
func (s *Service) Run(ctx context.Context) {
	logger.InfoCF("reminder", "Reminder sweeps scheduled", map[string]any{
		"schedule": s.schedule,
		"after":    s.after.String(),
	})
	for {
		next, err := gronx.NextTickAfter(s.schedule, time.Now(), false)
		if err != nil {
			logger.ErrorCF("reminder", "Failed to compute next tick", map[string]any{
				"error": err.Error(),
			})
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
			s.Sweep(time.Now())
		}
	}
}

// Sweep re-announces every request pending longer than the threshold.
func (s *Service) Sweep(now time.Time) {
	overdue := s.Overdue(now)
	if len(overdue) == 0 {
		return
	}
	for _, req := range overdue {
		waited := now.Sub(req.RequestedAt).Round(time.Minute)
		notice := fmt.Sprintf("%s is still waiting (%s). Reply \"accept %s\" to accept.",
			req.Party.Name(), waited, req.Party.Name())
		for _, target := range s.coord.Aggregation().AggregationParties() {
			s.coord.SendTo(target, notice)
		}
	}
	logger.InfoCF("reminder", "Reminder sweep done", map[string]any{
		"overdue": len(overdue),
	})
}

// Overdue returns the requests that have waited longer than the threshold.
func (s *Service) Overdue(now time.Time) []routing.PendingRequest {
	var out []routing.PendingRequest
	for _, req := range s.coord.Engagements().Requests() {
		if now.Sub(req.RequestedAt) >= s.after {
			out = append(out, req)
		}
	}
	return out
}
