package registration

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oss377/maneBot/core/logger"
	"github.com/oss377/maneBot/core/telegram/format"
	"github.com/oss377/maneBot/internal/registrant"
)

// Approve accepts the registrant's own proof. It fails with
// ErrNoPendingPayment when there is no proof or it was already approved.
func (s *Service) Approve(ctx context.Context, id int64) error {
	_, err := s.mutate(ctx, id, false, func(r *registrant.Registrant, out *outbox) error {
		if r.Payment == "" || r.Approved {
			return ErrNoPendingPayment
		}
		r.Approved = true
		r.PendingSince = nil
		r.LeaveStep(registrant.StepNone)

		out.text(r.ID, t(r, mPaymentSuccess), mainMenu(r))
		s.notifyAdmin(out, fmt.Sprintf("✅ Payment for %s (%d) has been approved.", r.Profile.Name, r.ID))
		out.delay(s.retreat.GroupLinkDelay, func(ctx context.Context) {
			s.sendGroupLink(ctx, id)
		})
		if r.InvitedBy != 0 {
			out.text(r.InvitedBy, catalog(r.Lang, mFriendApproved, format.MD(r.Profile.Name)), SendOptions{Markdown: true})
		}
		return nil
	})
	s.logDecision(ctx, "approve", id, -1, err)
	return err
}

// Decline rejects the registrant's own proof and asks for a new upload.
func (s *Service) Decline(ctx context.Context, id int64) error {
	_, err := s.mutate(ctx, id, false, func(r *registrant.Registrant, out *outbox) error {
		if r.Payment == "" || r.Approved {
			return ErrNoPendingPayment
		}
		r.Payment = ""
		s.enterPayment(r)

		out.text(r.ID, t(r, mPaymentDeclined), SendOptions{})
		s.prompt(r, out)
		s.notifyAdmin(out, fmt.Sprintf("Payment for %s (%d) declined. User has been asked to re-upload.", r.Profile.Name, r.ID))
		return nil
	})
	s.logDecision(ctx, "decline", id, -1, err)
	return err
}

// ApproveOther accepts the proof of sub-registration idx. The registrant who
// vouched for the entry is notified, not the attendee.
func (s *Service) ApproveOther(ctx context.Context, id int64, idx int) error {
	_, err := s.mutate(ctx, id, false, func(r *registrant.Registrant, out *outbox) error {
		sub, err := pendingSub(r, idx)
		if err != nil {
			return err
		}
		sub.Approved = true
		sub.PendingSince = nil
		name := sub.Name

		out.text(r.ID, t(r, mFriendApproved, format.MD(name)), SendOptions{Markdown: true})
		s.notifyAdmin(out, fmt.Sprintf("✅ Payment for %q (registered by %s) has been approved.", name, displayName(r)))
		out.delay(s.retreat.GroupLinkDelay, func(ctx context.Context) {
			s.sendShareLink(ctx, id, name)
		})
		return nil
	})
	s.logDecision(ctx, "approve_other", id, idx, err)
	return err
}

// DeclineOther rejects the proof of sub-registration idx and points the
// owner's next upload at that entry.
func (s *Service) DeclineOther(ctx context.Context, id int64, idx int) error {
	_, err := s.mutate(ctx, id, false, func(r *registrant.Registrant, out *outbox) error {
		sub, err := pendingSub(r, idx)
		if err != nil {
			return err
		}
		sub.Payment = ""
		name := sub.Name
		s.enterPaymentOther(r, idx)

		out.text(r.ID, t(r, mOtherDeclined, format.MD(name)), SendOptions{Markdown: true})
		s.prompt(r, out)
		s.notifyAdmin(out, fmt.Sprintf("Payment for %q declined. User %d has been asked to re-upload.", name, r.ID))
		return nil
	})
	s.logDecision(ctx, "decline_other", id, idx, err)
	return err
}

func pendingSub(r *registrant.Registrant, idx int) (*registrant.SubRegistration, error) {
	if idx < 0 || idx >= len(r.Others) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrStaleSubRegistration, idx, len(r.Others))
	}
	sub := &r.Others[idx]
	if sub.Payment == "" || sub.Approved {
		return nil, ErrNoPendingPayment
	}
	return sub, nil
}

func (s *Service) notifyAdmin(out *outbox, text string) {
	if s.adminID != 0 {
		out.text(s.adminID, text, SendOptions{})
	}
}

func (s *Service) logDecision(ctx context.Context, action string, id int64, idx int, err error) {
	attrs := []slog.Attr{
		slog.String("action", action),
		slog.Int64("target_id", id),
		slog.String("status", logger.Status(err)),
	}
	if idx >= 0 {
		attrs = append(attrs, slog.Int("index", idx))
	}
	if err != nil {
		logger.Info(ctx, logger.CompApproval, "decision.reject", append(attrs, logger.Err(err))...)
		return
	}
	logger.Info(ctx, logger.CompApproval, "decision", attrs...)
}

// sendGroupLink delivers the group link after approval, provided the
// registrant still exists and is still approved.
func (s *Service) sendGroupLink(ctx context.Context, id int64) {
	rec, err := s.store.Find(ctx, id)
	if err != nil || !rec.Approved {
		logger.Info(ctx, logger.CompApproval, "group_link.skip", slog.Int64("target_id", id))
		return
	}
	_ = s.send(ctx, id, t(rec, mJoinGroupSuccess), groupButton(s.retreat.GroupLink))
}

func (s *Service) sendShareLink(ctx context.Context, owner int64, name string) {
	rec, err := s.store.Find(ctx, owner)
	if err != nil {
		logger.Info(ctx, logger.CompApproval, "group_link.skip", slog.Int64("target_id", owner))
		return
	}
	opts := groupButton(s.retreat.GroupLink)
	opts.Markdown = true
	_ = s.send(ctx, owner, t(rec, mShareGroupLink, format.MD(name)), opts)
}
