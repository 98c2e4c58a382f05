// Package services – notification fan-out
//
// Decided applications are reported to their applicants through a Notifier
// after the deciding transaction has committed. Delivery is best effort: a
// failing or panicking sink is logged and counted, never retried, and never
// undoes the decision.
package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-adoption-backend/internal/domain"
	"github.com/tbourn/go-adoption-backend/internal/observability"
)

// Notifier delivers one status-change message to an applicant.
type Notifier interface {
	NotifyStatusChange(ctx context.Context, change domain.StatusChange) error
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(ctx context.Context, change domain.StatusChange) error

// NotifyStatusChange calls f.
func (f NotifierFunc) NotifyStatusChange(ctx context.Context, change domain.StatusChange) error {
	return f(ctx, change)
}

// NotificationSummary counts delivery outcomes of one operation.
type NotificationSummary struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// dispatch sends every change through n and tallies the outcome. A nil
// Notifier means delivery is disabled and nothing is counted.
func dispatch(ctx context.Context, n Notifier, changes []domain.StatusChange) NotificationSummary {
	var sum NotificationSummary
	if n == nil {
		return sum
	}
	// The decision is committed; a client hanging up must not cut delivery short.
	ctx = context.WithoutCancel(ctx)
	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		l := log.Logger
		logger = &l
	}
	for _, ch := range changes {
		if err := notifyOne(ctx, n, ch); err != nil {
			sum.Failed++
			observability.RecordNotification(false)
			logger.Warn().
				Err(err).
				Str("application_id", ch.Application.ID).
				Str("applicant_id", ch.Applicant.ID).
				Str("status", string(ch.Application.Status)).
				Bool("cascade", ch.Cascade).
				Msg("status notification failed")
			continue
		}
		sum.Sent++
		observability.RecordNotification(true)
	}
	return sum
}

func notifyOne(ctx context.Context, n Notifier, ch domain.StatusChange) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrNotificationFailed, r)
		}
	}()
	if err := n.NotifyStatusChange(ctx, ch); err != nil {
		return fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}
	return nil
}
