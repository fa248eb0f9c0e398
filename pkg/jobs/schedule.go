package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DailyAt is a wall clock time of day in a location.
type DailyAt struct {
	Hour     int
	Minute   int
	Location *time.Location
}

// ParseDailyAt parses "HH:MM" and a timezone name ("" or "Local" for the host zone).
func ParseDailyAt(clock, timezone string) (DailyAt, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return DailyAt{}, fmt.Errorf("parse daily time %q: %w", clock, err)
	}
	loc := time.Local
	if timezone != "" && timezone != "Local" {
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return DailyAt{}, fmt.Errorf("load timezone %q: %w", timezone, err)
		}
	}
	return DailyAt{Hour: t.Hour(), Minute: t.Minute(), Location: loc}, nil
}

// Next returns the first occurrence strictly after now.
func (d DailyAt) Next(now time.Time) time.Time {
	loc := d.Location
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.Hour, d.Minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, d.Hour, d.Minute, 0, 0, loc)
	}
	return next
}

// RunDaily enqueues a job of the given type every day at the configured time
// until ctx is cancelled.
func RunDaily(ctx context.Context, q *Queue, at DailyAt, jobType string, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for {
		next := at.Next(time.Now())
		logger.Info("next scheduled job", zap.String("type", jobType), zap.Time("at", next))
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := q.Enqueue(Job{Type: jobType}); err != nil {
				logger.Error("scheduled enqueue failed", zap.String("type", jobType), zap.Error(err))
			}
		}
	}
}
