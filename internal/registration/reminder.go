package registration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/oss377/maneBot/core/logger"
	"github.com/oss377/maneBot/core/telegram/format"
	"github.com/oss377/maneBot/internal/registrant"
	"github.com/oss377/maneBot/internal/store"
)

// SweepReport summarises one reminder pass.
type SweepReport struct {
	// Checked counts candidate registrants.
	Checked int
	// Reminded counts registrants that received at least one reminder.
	Reminded int
	Sent     int
	Failed   int
}

// Sweep reminds every registrant and sub-registration whose proof has been
// pending longer than the reminder threshold. Pending-since is reset and the
// reminder stamped before sending, so a failed delivery is not retried until
// the threshold elapses again. Errors of one registrant do not stop the pass;
// they are returned together.
func (s *Service) Sweep(ctx context.Context) (SweepReport, error) {
	start := time.Now()
	now := s.now()
	cutoff := now.Add(-s.retreat.ReminderThreshold)

	var rep SweepReport
	candidates, err := s.store.FindMany(ctx, store.Query{PendingBefore: &cutoff})
	if err != nil {
		return rep, fmt.Errorf("sweep candidates: %w", err)
	}

	var errs *multierror.Error
	for _, c := range candidates {
		rep.Checked++
		_, out, err := s.commit(ctx, []int64{c.ID}, false, func(rs []*registrant.Registrant, out *outbox) error {
			if remind(rs[0], out, cutoff, now) == 0 {
				return errNoWrite
			}
			return nil
		})
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("registrant %d: %w", c.ID, err))
			continue
		}
		if len(out.msgs) == 0 {
			continue
		}
		rep.Reminded++
		sent, failed := s.flush(ctx, out)
		rep.Sent += sent
		rep.Failed += failed
	}

	err = errs.ErrorOrNil()
	level := logger.Info
	if err != nil {
		level = logger.Warn
	}
	level(ctx, logger.CompReminders, "sweep.done",
		slog.String("status", logger.Status(err)),
		slog.Int("count", rep.Checked),
		slog.Int("reminded", rep.Reminded),
		slog.Int("sent", rep.Sent),
		slog.Int("failed", rep.Failed),
		slog.Duration("duration", logger.Took(start)),
	)
	return rep, err
}

// remind queues the due reminders of r and resets their timestamps. The
// registrant's own check and each sub-registration's are independent.
func remind(r *registrant.Registrant, out *outbox, cutoff, now time.Time) int {
	n := 0
	if store.StaleSelf(r, cutoff) {
		r.PendingSince = timePtr(now)
		r.LastReminderAt = timePtr(now)
		out.text(r.ID, reminderHeader+t(r, mFinishPaymentPrompt), SendOptions{Markdown: true})
		n++
	}
	for i := range r.Others {
		sub := &r.Others[i]
		if !store.StaleOther(*sub, cutoff) {
			continue
		}
		sub.PendingSince = timePtr(now)
		sub.LastReminderAt = timePtr(now)
		out.text(r.ID, reminderHeader+t(r, mSubReminder, format.MD(sub.Name)), SendOptions{Markdown: true})
		n++
	}
	return n
}

func timePtr(t time.Time) *time.Time { return &t }

// RunReminders sweeps at the configured interval until ctx is done.
func (s *Service) RunReminders(ctx context.Context) {
	interval := s.retreat.ReminderInterval
	logger.Info(ctx, logger.CompReminders, "start", slog.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, logger.CompReminders, "stop")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				logger.Error(ctx, logger.CompReminders, "sweep.fail", logger.Err(err))
			}
		}
	}
}
