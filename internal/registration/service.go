// Package registration drives the retreat registration conversation: the
// per-identity step machine, invitation claims, payment approval, reminders
// and the admin reports.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oss377/maneBot/core/logger"
	"github.com/oss377/maneBot/internal/config"
	"github.com/oss377/maneBot/internal/invite"
	"github.com/oss377/maneBot/internal/registrant"
	"github.com/oss377/maneBot/internal/store"
)

// Sentinel errors returned by the workflow operations.
var (
	ErrNoPendingPayment     = errors.New("registration: no pending payment")
	ErrInvalidClaim         = errors.New("registration: invalid or used claim token")
	ErrClaimedElsewhere     = errors.New("registration: invitation claimed by another identity")
	ErrStaleSubRegistration = errors.New("registration: sub-registration not found")
)

// errNoWrite aborts a mutation that only produced replies.
var errNoWrite = errors.New("registration: nothing to persist")

// Options configure a Service.
type Options struct {
	Store     store.Store
	Transport Transport
	Timers    Scheduler
	// AdminID is the only identity allowed to run admin commands. Zero
	// disables the admin surface.
	AdminID int64
	Retreat config.RetreatConfig
	// InviteBase is the bot entry point used in invitation links. It can be
	// set later with SetInviteBase.
	InviteBase string

	Now      func() time.Time
	NewToken func() string
}

// Service handles inbound events for every identity.
type Service struct {
	store     store.Store
	transport Transport
	timers    Scheduler
	adminID   int64
	retreat   config.RetreatConfig
	now       func() time.Time
	newToken  func() string

	locks keyedMutex

	mu         sync.RWMutex
	inviteBase string
}

// New validates opts and returns a Service.
func New(opts Options) (*Service, error) {
	switch {
	case opts.Store == nil:
		return nil, fmt.Errorf("registration: nil store")
	case opts.Transport == nil:
		return nil, fmt.Errorf("registration: nil transport")
	case opts.Timers == nil:
		return nil, fmt.Errorf("registration: nil scheduler")
	}
	retreat := opts.Retreat
	if err := retreat.Normalize(); err != nil {
		return nil, fmt.Errorf("registration: %w", err)
	}
	s := &Service{
		store:      opts.Store,
		transport:  opts.Transport,
		timers:     opts.Timers,
		adminID:    opts.AdminID,
		retreat:    retreat,
		now:        opts.Now,
		newToken:   opts.NewToken,
		inviteBase: opts.InviteBase,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newToken == nil {
		s.newToken = invite.NewToken
	}
	return s, nil
}

// SetInviteBase sets the entry point used in invitation links.
func (s *Service) SetInviteBase(base string) {
	s.mu.Lock()
	s.inviteBase = base
	s.mu.Unlock()
}

func (s *Service) inviteLink(token string) string {
	s.mu.RLock()
	base := s.inviteBase
	s.mu.RUnlock()
	return invite.Link(base, token)
}

func (s *Service) isAdmin(id int64) bool {
	return s.adminID != 0 && id == s.adminID
}

// Handle processes one inbound event. Events of the same identity are
// serialised; any pending idle timer of the identity is cancelled first and
// re-armed afterwards when the registrant is left waiting in a step.
func (s *Service) Handle(ctx context.Context, ev Event) error {
	if ev.From == 0 {
		return fmt.Errorf("registration: event without identity")
	}
	unlock := s.locks.lock(ev.From)
	defer unlock()

	s.timers.Cancel(ev.From)
	start := time.Now()

	var err error
	switch ev.Kind {
	case EventStart:
		err = s.handleStart(ctx, ev)
	case EventText:
		err = s.handleText(ctx, ev)
	case EventImage:
		err = s.handleImage(ctx, ev)
	case EventAction:
		err = s.handleAction(ctx, ev)
	default:
		err = fmt.Errorf("registration: unknown event kind %d", ev.Kind)
	}
	s.armIdle(ctx, ev.From)

	if err != nil {
		logger.Error(ctx, logger.CompRegistration, "event.fail",
			slog.Int64("registrant_id", ev.From),
			slog.String("action", ev.Kind.String()),
			logger.Err(err),
		)
		return err
	}
	logger.Debug(ctx, logger.CompRegistration, "event.handled",
		slog.Int64("registrant_id", ev.From),
		slog.String("action", ev.Kind.String()),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// commit applies fn to the records of ids inside one store mutation and
// returns the committed records with the side effects fn queued. A fn
// returning errNoWrite keeps the store untouched but still yields its outbox.
func (s *Service) commit(ctx context.Context, ids []int64, upsert bool, fn func(recs []*registrant.Registrant, out *outbox) error) ([]*registrant.Registrant, *outbox, error) {
	var (
		out  *outbox
		seen []*registrant.Registrant
	)
	recs, err := s.store.Mutate(ctx, ids, upsert, func(rs []*registrant.Registrant) error {
		out = &outbox{}
		seen = rs
		return fn(rs, out)
	})
	switch {
	case errors.Is(err, errNoWrite):
		return seen, out, nil
	case err != nil:
		return nil, nil, err
	}
	return recs, out, nil
}

// mutate runs fn against one record and flushes its outbox after commit.
func (s *Service) mutate(ctx context.Context, id int64, upsert bool, fn func(r *registrant.Registrant, out *outbox) error) (*registrant.Registrant, error) {
	recs, out, err := s.commit(ctx, []int64{id}, upsert, func(rs []*registrant.Registrant, out *outbox) error {
		return fn(rs[0], out)
	})
	if err != nil {
		return nil, err
	}
	s.flush(ctx, out)
	return recs[0], nil
}

func (s *Service) armIdle(ctx context.Context, id int64) {
	rec, err := s.store.Find(ctx, id)
	if err != nil || !rec.Step.Nudges() {
		return
	}
	s.timers.Arm(id, s.retreat.IdleTimeout, func() {
		s.nudge(logger.Background(), id)
	})
}

// nudge reminds an idle registrant that an answer is expected. The record is
// re-read since the timer may race with a completing step.
func (s *Service) nudge(ctx context.Context, id int64) {
	rec, err := s.store.Find(ctx, id)
	if err != nil {
		logger.Debug(ctx, logger.CompTimers, "nudge.skip",
			slog.Int64("registrant_id", id),
			slog.String("reason", "not_found"),
		)
		return
	}
	if !rec.Step.Nudges() {
		return
	}
	_ = s.send(ctx, id, t(rec, mIdleNudge), SendOptions{Reply: [][]string{{BtnBack}}, OneTime: true})
	logger.Debug(ctx, logger.CompTimers, "nudge.sent",
		slog.Int64("registrant_id", id),
		slog.String("step", string(rec.Step)),
	)
}

func (s *Service) handleStart(ctx context.Context, ev Event) error {
	if payload := strings.TrimSpace(ev.Text); payload != "" {
		return s.Claim(ctx, ev.From, payload)
	}
	_, err := s.mutate(ctx, ev.From, true, func(r *registrant.Registrant, out *outbox) error {
		s.greet(r, out)
		return nil
	})
	return err
}

// greet answers a bare start command depending on where the registrant is.
func (s *Service) greet(r *registrant.Registrant, out *outbox) {
	switch {
	case !r.Lang.Valid():
		r.LeaveStep(registrant.StepSelectLang)
		out.text(r.ID, langPrompt, langKeyboard())
	case r.Step == registrant.StepPayment && r.Registered() && r.Payment == "":
		out.text(r.ID, t(r, mWelcomeFinishPayment), mainMenu(r))
	case r.Step != registrant.StepNone:
		out.text(r.ID, t(r, mContinuePrompt), continueButton())
	default:
		out.text(r.ID, t(r, mWelcome), mainMenu(r))
	}
}

func (s *Service) handleText(ctx context.Context, ev Event) error {
	text := strings.TrimSpace(ev.Text)
	if s.isAdmin(ev.From) {
		if handled, err := s.runAdminCommand(ctx, ev.From, text); handled {
			return err
		}
	}
	rec, err := s.store.Find(ctx, ev.From)
	if errors.Is(err, store.ErrNotFound) {
		_ = s.send(ctx, ev.From, clickStart, SendOptions{})
		return nil
	}
	if err != nil {
		return err
	}
	if rec.Step == registrant.StepBroadcast && s.isAdmin(ev.From) {
		return s.broadcastInput(ctx, ev.From, text)
	}
	_, err = s.mutate(ctx, ev.From, false, func(r *registrant.Registrant, out *outbox) error {
		return s.routeText(r, out, text)
	})
	return err
}

// routeText dispatches free text: cancel and back first, then the menu,
// then the current step.
func (s *Service) routeText(r *registrant.Registrant, out *outbox, text string) error {
	// Nothing but a language leaves language selection.
	if r.Step == registrant.StepSelectLang && text != BtnBack {
		return s.onSelectLang(r, out, text)
	}
	switch text {
	case BtnCancel, "/cancel":
		r.LeaveStep(registrant.StepNone)
		out.text(r.ID, t(r, mCancelled), mainMenu(r))
		return nil
	case BtnBack:
		if r.Step == registrant.StepNone {
			out.text(r.ID, t(r, mMainMenu), mainMenu(r))
		} else {
			s.prompt(r, out)
		}
		return errNoWrite
	}
	if action, ok := menuActions[text]; ok {
		return action(s, r, out)
	}
	if step, ok := textSteps[r.Step]; ok {
		return step(s, r, out, text)
	}
	out.text(r.ID, t(r, mWelcome), mainMenu(r))
	return errNoWrite
}

func (s *Service) handleImage(ctx context.Context, ev Event) error {
	_, err := s.mutate(ctx, ev.From, false, func(r *registrant.Registrant, out *outbox) error {
		if step, ok := imageSteps[r.Step]; ok {
			return step(s, r, out, ev.ImageRef)
		}
		if r.Step.Nudges() {
			out.text(r.ID, t(r, mEmptyText), SendOptions{})
		}
		return errNoWrite
	})
	return s.orStart(ctx, ev.From, err)
}

// orStart turns a missing record of the event's own identity into the
// prompt to start.
func (s *Service) orStart(ctx context.Context, id int64, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		_ = s.send(ctx, id, clickStart, SendOptions{})
		return nil
	}
	return err
}

func (s *Service) answer(ctx context.Context, ev Event, text string, alert bool) {
	if ev.InteractionID == "" {
		return
	}
	if err := s.transport.AnswerInteraction(ctx, ev.InteractionID, text, alert); err != nil {
		logger.Warn(ctx, logger.CompRegistration, "answer",
			slog.Int64("registrant_id", ev.From),
			slog.String("error_kind", errorKind(err)),
			logger.Err(err),
		)
	}
}
