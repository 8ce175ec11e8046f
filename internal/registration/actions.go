package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/oss377/maneBot/core/logger"
	"github.com/oss377/maneBot/core/telegram/callbacks"
	"github.com/oss377/maneBot/core/telegram/format"
	"github.com/oss377/maneBot/internal/registrant"
	"github.com/oss377/maneBot/internal/store"
)

var editSteps = map[string]registrant.Step{
	ActEditName:     registrant.StepEditName,
	ActEditEmail:    registrant.StepEditEmail,
	ActEditPhone:    registrant.StepEditPhone,
	ActEditLocation: registrant.StepEditLocation,
}

// handleAction dispatches a button press. Data is either "verb[:args]" or a
// slash command, the latter reserved to the admin.
func (s *Service) handleAction(ctx context.Context, ev Event) error {
	data := strings.TrimSpace(ev.Text)
	if strings.HasPrefix(data, "/") {
		if !s.isAdmin(ev.From) {
			s.answer(ctx, ev, "", false)
			return nil
		}
		return s.adminButton(ctx, ev, data)
	}

	verb, args := callbacks.Split(data)
	if step, ok := editSteps[verb]; ok {
		s.answer(ctx, ev, "", false)
		return s.actionEdit(ctx, ev.From, step)
	}
	switch verb {
	case ActFinishPayments:
		s.answer(ctx, ev, "", false)
		_, err := s.mutate(ctx, ev.From, false, func(r *registrant.Registrant, out *outbox) error {
			return s.finishPayments(r, out)
		})
		return s.orStart(ctx, ev.From, err)
	case ActContinue:
		return s.actionContinue(ctx, ev)
	case ActRemindUser:
		if s.isAdmin(ev.From) {
			return s.actionRemindUser(ctx, ev, args)
		}
	case ActRemindFeeling:
		if s.isAdmin(ev.From) {
			return s.actionRemindFeeling(ctx, ev, args)
		}
	}
	logger.Debug(ctx, logger.CompRegistration, "action.ignored",
		slog.Int64("registrant_id", ev.From),
		slog.String("action", verb),
	)
	s.answer(ctx, ev, "", false)
	return nil
}

func (s *Service) actionEdit(ctx context.Context, id int64, step registrant.Step) error {
	_, err := s.mutate(ctx, id, false, func(r *registrant.Registrant, out *outbox) error {
		if !r.Registered() {
			out.text(r.ID, t(r, mNotRegistered), mainMenu(r))
			return errNoWrite
		}
		s.advance(r, out, step)
		return nil
	})
	return s.orStart(ctx, id, err)
}

func (s *Service) actionContinue(ctx context.Context, ev Event) error {
	rec, err := s.store.Find(ctx, ev.From)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if rec == nil || rec.Step == registrant.StepNone {
		s.answer(ctx, ev, t(rec, mNoPendingSteps), true)
		return nil
	}
	s.answer(ctx, ev, "", false)
	text, opts := s.stepPrompt(rec)
	return s.send(ctx, rec.ID, text, opts)
}

// adminButton runs an approval command pressed on a forwarded proof and
// marks the proof's caption with the outcome.
func (s *Service) adminButton(ctx context.Context, ev Event, data string) error {
	name, args, _ := parseCommand(data)
	d, ok := decisions[name]
	if !ok {
		s.answer(ctx, ev, "", false)
		_, err := s.runAdminCommand(ctx, ev.From, data)
		return err
	}
	done, err := s.runDecision(ctx, ev.From, name, d, args)
	if err != nil || !done {
		s.answer(ctx, ev, "", false)
		return err
	}
	suffix, answer := captionDeclined, answerDeclined
	if d.approve {
		suffix, answer = captionApproved, answerApproved
	}
	s.answer(ctx, ev, answer, false)
	if ev.Message.MessageID != 0 {
		if err := s.transport.EditCaption(ctx, ev.Message, ev.Caption+suffix); err != nil {
			logger.Warn(ctx, logger.CompApproval, "caption.edit",
				slog.String("error_kind", errorKind(err)),
				logger.Err(err),
			)
		}
	}
	return nil
}

// actionRemindUser re-sends the target's current step prompt.
// Args are "<id>[:<index>]"; the index is informational.
func (s *Service) actionRemindUser(ctx context.Context, ev Event, args string) error {
	idPart, _, _ := strings.Cut(args, ":")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		s.answer(ctx, ev, "User not found!", true)
		return nil
	}
	rec, err := s.store.Find(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.answer(ctx, ev, "User not found!", true)
		return nil
	case err != nil:
		return err
	case rec.Step == registrant.StepNone || rec.Step == registrant.StepBroadcast:
		s.answer(ctx, ev, "⚠️ User is not in an active step.", true)
		return nil
	}
	text, opts := s.stepPrompt(rec)
	opts.Markdown = true
	if err := s.send(ctx, id, reminderHeader+format.MD(text), opts); err != nil {
		s.answer(ctx, ev, "❌ Error sending reminder.", true)
		return nil
	}
	s.answer(ctx, ev, "✅ Smart reminder sent!", false)
	return nil
}

// actionRemindFeeling puts an approved registrant into a feeling step and
// asks for it. Args are "<before|after>:<id>".
func (s *Service) actionRemindFeeling(ctx context.Context, ev Event, args string) error {
	kind, idPart, _ := strings.Cut(args, ":")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		s.answer(ctx, ev, "User not found!", true)
		return nil
	}
	step, key, label := registrant.StepFeelingBefore, mRemindFeelingBefore, "Before"
	switch kind {
	case "before":
	case "after":
		step, key, label = registrant.StepFeelingAfter, mRemindFeelingAfter, "After"
	default:
		s.answer(ctx, ev, "", false)
		return nil
	}
	rec, err := s.mutate(ctx, id, false, func(r *registrant.Registrant, _ *outbox) error {
		r.LeaveStep(step)
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		s.answer(ctx, ev, "User not found!", true)
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.send(ctx, id, t(rec, key), cancelKeyboard("")); err != nil {
		if errors.Is(err, ErrUnreachable) {
			s.answer(ctx, ev, "User has blocked the bot.", true)
		} else {
			s.answer(ctx, ev, "❌ Error sending reminder.", true)
		}
		return nil
	}
	s.answer(ctx, ev, fmt.Sprintf("✅ %s feeling reminder sent!", label), false)
	return nil
}
