package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oss377/maneBot/core/logger"
	"github.com/oss377/maneBot/core/telegram/format"
	"github.com/oss377/maneBot/internal/registrant"
	"github.com/oss377/maneBot/internal/store"
)

// Claim binds claimant to the sub-registration holding token. The entry's
// details become the claimant's own record and the entry leaves its owner's
// list in the same store mutation. Invalid tokens and conflicts are reported
// to the claimant and return nil.
func (s *Service) Claim(ctx context.Context, claimant int64, token string) error {
	err := s.claim(ctx, claimant, token)
	var key msgKey
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidClaim):
		key = mClaimInvalid
	case errors.Is(err, ErrClaimedElsewhere):
		key = mClaimConflict
	case errors.Is(err, errSelfClaim):
		key = mClaimSelf
	default:
		return err
	}
	logger.Info(ctx, logger.CompClaims, "claim.reject",
		slog.Int64("registrant_id", claimant),
		slog.String("reason", err.Error()),
	)
	_ = s.send(ctx, claimant, catalog(registrant.LangEnglish, key), SendOptions{})
	return nil
}

var errSelfClaim = errors.New("registration: own invitation")

func (s *Service) claim(ctx context.Context, claimant int64, token string) error {
	owner, idx, err := s.store.FindByClaimToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidClaim
	}
	if err != nil {
		return fmt.Errorf("claim lookup: %w", err)
	}
	if owner.ID == claimant {
		return errSelfClaim
	}
	if phone := owner.Others[idx].Phone; phone != "" {
		holder, err := s.store.FindByPhone(ctx, phone)
		switch {
		case err == nil && holder.ID != claimant:
			return ErrClaimedElsewhere
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return fmt.Errorf("claim phone lookup: %w", err)
		}
	}

	_, out, err := s.commit(ctx, []int64{owner.ID, claimant}, true, func(rs []*registrant.Registrant, out *outbox) error {
		o, c := rs[0], rs[1]
		i := o.TokenIndex(token)
		if i < 0 {
			return ErrInvalidClaim
		}
		sub := o.Others[i]
		transfer(o, c, i)
		s.claimNotices(o, c, sub, out)
		return nil
	})
	if err != nil {
		return err
	}
	s.flush(ctx, out)
	logger.Info(ctx, logger.CompClaims, "claim.ok",
		slog.Int64("registrant_id", claimant),
		slog.Int64("target_id", owner.ID),
	)
	return nil
}

// transfer copies sub-registration idx of o into c and removes it from o.
func transfer(o, c *registrant.Registrant, idx int) {
	sub := o.Others[idx]
	c.Profile = sub.Profile
	c.Payment = sub.Payment
	c.Approved = sub.Approved
	c.PendingSince = nil
	c.LastReminderAt = sub.LastReminderAt
	c.InvitedBy = o.ID
	if o.Lang.Valid() {
		c.Lang = o.Lang
	}
	c.LeaveStep(registrant.StepNone)
	if !c.Lang.Valid() {
		c.LeaveStep(registrant.StepSelectLang)
	}

	// An owner waiting to upload proof for this entry leaves the other-flow.
	if o.Step.IsOther() && o.ActiveOtherIndex() == idx {
		o.LeaveStep(registrant.StepNone)
	}
	o.RemoveOther(idx)
}

func (s *Service) claimNotices(o, c *registrant.Registrant, sub registrant.SubRegistration, out *outbox) {
	out.text(c.ID, t(c, mClaimWelcome, sub.Name, displayName(o)), SendOptions{})
	if c.Step == registrant.StepSelectLang {
		out.text(c.ID, langPrompt, langKeyboard())
	} else {
		out.text(c.ID, t(c, mWelcomeBack), mainMenu(c))
	}
	out.text(o.ID, t(o, mClaimOwnerNotice, format.MD(sub.Name)), SendOptions{Markdown: true})
}
