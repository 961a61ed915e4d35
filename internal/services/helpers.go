package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/poofware/backoffice-service/internal/constants"
	"github.com/poofware/backoffice-service/internal/utils"
)

// Clock is the time source every service reads "now" from.
type Clock func() time.Time

// SystemClock returns the wall clock in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// addBillingPeriod moves t forward by months, landing on billingDay of the
// target month at the same time of day.
func addBillingPeriod(t time.Time, months, billingDay int) time.Time {
	if months < 1 {
		months = 1
	}
	if billingDay < 1 || billingDay > constants.MaxBillingDay {
		billingDay = constants.MaxBillingDay
	}
	y, m, _ := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, m+time.Month(months), billingDay, h, mi, s, t.Nanosecond(), t.Location())
}

func billingDayFor(t time.Time) int {
	if d := t.Day(); d <= constants.MaxBillingDay {
		return d
	}
	return constants.MaxBillingDay
}

func normalizePage(skip, take int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if take <= 0 {
		take = constants.DefaultListTake
	}
	if take > constants.MaxListTake {
		take = constants.MaxListTake
	}
	return skip, take
}

// detach runs fn after the request finished, bounded by timeout. Errors are
// only logged: these side effects never roll back the operation that
// triggered them.
func detach(what string, timeout time.Duration, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			utils.Logger.WithError(err).Warnf("Background %s failed", what)
		}
	}()
}

func uuidPtrEqual(a *uuid.UUID, b uuid.UUID) bool {
	return a != nil && *a == b
}
