package registration

import (
	"context"
	"log/slog"
	"strings"

	"github.com/oss377/maneBot/core/logger"
	"github.com/oss377/maneBot/core/telegram/format"
	"github.com/oss377/maneBot/internal/invite"
	"github.com/oss377/maneBot/internal/registrant"
)

type (
	textStep  func(s *Service, r *registrant.Registrant, out *outbox, text string) error
	imageStep func(s *Service, r *registrant.Registrant, out *outbox, imageRef string) error
)

// textSteps maps the current step to the handler of a free text answer.
// Steps missing here fall through to the welcome message.
var textSteps = map[registrant.Step]textStep{
	registrant.StepSelectLang:    (*Service).onSelectLang,
	registrant.StepName:          (*Service).onName,
	registrant.StepEmail:         (*Service).onEmail,
	registrant.StepLocation:      (*Service).onLocation,
	registrant.StepPhone:         (*Service).onPhone,
	registrant.StepPayment:       (*Service).onPaymentText,
	registrant.StepNameOther:     (*Service).onNameOther,
	registrant.StepEmailOther:    (*Service).onEmailOther,
	registrant.StepLocationOther: (*Service).onLocationOther,
	registrant.StepPhoneOther:    (*Service).onPhoneOther,
	registrant.StepPaymentOther:  (*Service).onPaymentText,
	registrant.StepFeelingBefore: (*Service).onFeeling,
	registrant.StepFeelingAfter:  (*Service).onFeeling,
	registrant.StepEditName:      (*Service).onEditName,
	registrant.StepEditEmail:     (*Service).onEditEmail,
	registrant.StepEditPhone:     (*Service).onEditPhone,
	registrant.StepEditLocation:  (*Service).onEditLocation,
}

// imageSteps maps the current step to the handler of an uploaded image.
var imageSteps = map[registrant.Step]imageStep{
	registrant.StepPayment:      (*Service).onPayment,
	registrant.StepPaymentOther: (*Service).onPaymentOther,
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (s *Service) advance(r *registrant.Registrant, out *outbox, next registrant.Step) {
	logger.Debug(context.Background(), logger.CompRegistration, "step.advance",
		slog.Int64("registrant_id", r.ID),
		slog.String("step", string(r.Step)),
		slog.String("next_step", string(next)),
	)
	r.LeaveStep(next)
	s.prompt(r, out)
}

func (s *Service) onSelectLang(r *registrant.Registrant, out *outbox, text string) error {
	lang, ok := registrant.ParseLangToken(text)
	if !ok {
		out.text(r.ID, langInvalid, langKeyboard())
		return errNoWrite
	}
	r.Lang = lang
	r.LeaveStep(registrant.StepNone)
	out.text(r.ID, t(r, mHowItWorks), SendOptions{})
	out.text(r.ID, t(r, mMainMenu), mainMenu(r))
	return nil
}

func (s *Service) onName(r *registrant.Registrant, out *outbox, text string) error {
	if !registrant.ValidName(text) {
		out.text(r.ID, t(r, mInvalidName), SendOptions{})
		s.prompt(r, out)
		return errNoWrite
	}
	r.Profile.Name = normalizeName(text)
	s.advance(r, out, registrant.StepEmail)
	return nil
}

// onEmail accepts a full address, or a bare "@domain" completing the local
// part kept from the previous rejected attempt.
func (s *Service) onEmail(r *registrant.Registrant, out *outbox, text string) error {
	input := text
	if strings.HasPrefix(input, "@") && r.PartialEmail != "" {
		input = r.PartialEmail + input
	}
	if !registrant.ValidEmail(input) {
		if local, _, _ := strings.Cut(text, "@"); local != "" {
			r.PartialEmail = local
		}
		out.text(r.ID, t(r, mInvalidEmail), emailSuggestions())
		return nil
	}
	r.Profile.Email = input
	s.advance(r, out, registrant.StepLocation)
	return nil
}

func (s *Service) onLocation(r *registrant.Registrant, out *outbox, text string) error {
	if text == "" {
		out.text(r.ID, t(r, mInvalidLocation), SendOptions{})
		return errNoWrite
	}
	r.Profile.Location = text
	s.advance(r, out, registrant.StepPhone)
	return nil
}

func (s *Service) onPhone(r *registrant.Registrant, out *outbox, text string) error {
	if !registrant.ValidPhone(text) {
		out.text(r.ID, t(r, mInvalidPhone), cancelKeyboard(phonePlaceholder))
		return errNoWrite
	}
	r.Profile.Phone = text
	now := s.now()
	r.PendingSince = &now
	s.advance(r, out, registrant.StepPayment)
	return nil
}

// onPaymentText re-issues the upload prompt; only an image completes the step.
func (s *Service) onPaymentText(r *registrant.Registrant, out *outbox, _ string) error {
	out.text(r.ID, t(r, mSendPhoto), SendOptions{})
	s.prompt(r, out)
	return errNoWrite
}

func (s *Service) onNameOther(r *registrant.Registrant, out *outbox, text string) error {
	sub, _, ok := r.ActiveOtherEntry()
	if !ok {
		return s.lostSub(r, out)
	}
	if !registrant.ValidName(text) {
		out.text(r.ID, t(r, mInvalidName), SendOptions{})
		s.prompt(r, out)
		return errNoWrite
	}
	sub.Name = normalizeName(text)
	s.advance(r, out, registrant.StepEmailOther)
	return nil
}

func (s *Service) onEmailOther(r *registrant.Registrant, out *outbox, text string) error {
	sub, _, ok := r.ActiveOtherEntry()
	if !ok {
		return s.lostSub(r, out)
	}
	if !registrant.ValidEmail(text) {
		out.text(r.ID, t(r, mInvalidEmail), cancelKeyboard(emailPlaceholder))
		return errNoWrite
	}
	sub.Email = text
	s.advance(r, out, registrant.StepLocationOther)
	return nil
}

func (s *Service) onLocationOther(r *registrant.Registrant, out *outbox, text string) error {
	sub, _, ok := r.ActiveOtherEntry()
	if !ok {
		return s.lostSub(r, out)
	}
	if text == "" {
		out.text(r.ID, t(r, mInvalidLocation), SendOptions{})
		return errNoWrite
	}
	sub.Location = text
	s.advance(r, out, registrant.StepPhoneOther)
	return nil
}

// onPhoneOther completes the details of a sub-registration: it mints the
// claim token and schedules the invitation for the registrant to forward.
func (s *Service) onPhoneOther(r *registrant.Registrant, out *outbox, text string) error {
	sub, idx, ok := r.ActiveOtherEntry()
	if !ok {
		return s.lostSub(r, out)
	}
	if !registrant.ValidPhone(text) {
		out.text(r.ID, t(r, mInvalidPhone), cancelKeyboard(phonePlaceholder))
		return errNoWrite
	}
	token := s.newToken()
	now := s.now()
	sub.Phone = text
	sub.ClaimToken = token
	sub.PendingSince = &now
	r.ActiveOther = &idx

	owner, name := r.ID, sub.Name
	out.delay(s.retreat.InviteDelay, func(ctx context.Context) {
		s.sendInvite(ctx, owner, token, name)
	})
	s.advance(r, out, registrant.StepPaymentOther)
	return nil
}

// sendInvite delivers the invitation link once the owner had time to finish
// the payment step. It is skipped when the entry was claimed or removed.
func (s *Service) sendInvite(ctx context.Context, owner int64, token, name string) {
	rec, err := s.store.Find(ctx, owner)
	if err != nil {
		logger.Info(ctx, logger.CompClaims, "invite.skip",
			slog.Int64("registrant_id", owner),
			slog.String("reason", "owner_gone"),
		)
		return
	}
	if rec.TokenIndex(token) < 0 {
		logger.Info(ctx, logger.CompClaims, "invite.skip",
			slog.Int64("registrant_id", owner),
			slog.String("reason", "token_gone"),
		)
		return
	}
	link := s.inviteLink(token)
	if err := s.send(ctx, owner, t(rec, mInviteReady, format.MD(name), format.MD(link)), SendOptions{Markdown: true}); err != nil {
		return
	}
	png, err := invite.QR(link)
	if err != nil {
		logger.Warn(ctx, logger.CompClaims, "invite.qr", logger.Err(err))
		return
	}
	_ = s.deliver(ctx, outMsg{kind: outDocument, to: owner, doc: Document{
		Name:    "invitation.png",
		MIME:    "image/png",
		Data:    png,
		Caption: name,
	}})
	logger.Info(ctx, logger.CompClaims, "invite.sent", slog.Int64("registrant_id", owner))
}

func (s *Service) onFeeling(r *registrant.Registrant, out *outbox, text string) error {
	if text == "" {
		out.text(r.ID, t(r, mEmptyText), SendOptions{})
		return errNoWrite
	}
	if r.Step == registrant.StepFeelingBefore {
		r.FeelingBefore = text
	} else {
		r.FeelingAfter = text
	}
	r.LeaveStep(registrant.StepNone)
	out.text(r.ID, t(r, mFeelingSaved), mainMenu(r))
	return nil
}

func (s *Service) onEditName(r *registrant.Registrant, out *outbox, text string) error {
	if !registrant.ValidName(text) {
		out.text(r.ID, t(r, mInvalidName), SendOptions{})
		return errNoWrite
	}
	r.Profile.Name = normalizeName(text)
	return s.editDone(r, out)
}

func (s *Service) onEditEmail(r *registrant.Registrant, out *outbox, text string) error {
	if !registrant.ValidEmail(text) {
		out.text(r.ID, t(r, mInvalidEmail), SendOptions{Placeholder: emailPlaceholder})
		return errNoWrite
	}
	r.Profile.Email = text
	return s.editDone(r, out)
}

func (s *Service) onEditPhone(r *registrant.Registrant, out *outbox, text string) error {
	if !registrant.ValidPhone(text) {
		out.text(r.ID, t(r, mInvalidPhone), SendOptions{Placeholder: phonePlaceholder})
		return errNoWrite
	}
	r.Profile.Phone = text
	return s.editDone(r, out)
}

func (s *Service) onEditLocation(r *registrant.Registrant, out *outbox, text string) error {
	if text == "" {
		out.text(r.ID, t(r, mInvalidLocation), SendOptions{})
		return errNoWrite
	}
	r.Profile.Location = text
	return s.editDone(r, out)
}

// editDone ends an edit without touching any other step.
func (s *Service) editDone(r *registrant.Registrant, out *outbox) error {
	r.LeaveStep(registrant.StepNone)
	out.text(r.ID, "✅ "+t(r, mUpdateSuccess)+"\n\n"+t(r, mProfileTitle)+"\n\n"+profileDetails(r), profileKeyboard(r))
	return nil
}

func (s *Service) onPayment(r *registrant.Registrant, out *outbox, imageRef string) error {
	r.Payment = imageRef
	r.PendingSince = nil
	r.LeaveStep(registrant.StepNone)

	out.text(r.ID, t(r, mProcessingPayment), mainMenu(r))
	out.text(r.ID, t(r, mCanRegisterOthers), SendOptions{})
	if s.adminID != 0 {
		out.image(s.adminID, imageRef, adminCaption(r), approvalButtons(r.ID))
	}
	if r.InvitedBy != 0 {
		inviter, name := r.InvitedBy, r.Profile.Name
		out.then(func(ctx context.Context) {
			s.notifyInviterUpload(ctx, inviter, name)
		})
	}
	return nil
}

func (s *Service) notifyInviterUpload(ctx context.Context, inviter int64, name string) {
	rec, err := s.store.Find(ctx, inviter)
	if err != nil {
		return
	}
	_ = s.send(ctx, inviter, t(rec, mFriendUploadedPayment, format.MD(name)), SendOptions{Markdown: true})
	for _, o := range rec.Others {
		if o.Name != "" && o.Payment == "" {
			return
		}
	}
	_ = s.send(ctx, inviter, t(rec, mCanRegisterOthers), SendOptions{})
}

func (s *Service) onPaymentOther(r *registrant.Registrant, out *outbox, imageRef string) error {
	sub, idx, ok := r.ActiveOtherEntry()
	if !ok || sub.Phone == "" {
		return s.lostSub(r, out)
	}
	sub.Payment = imageRef
	sub.PendingSince = nil
	name := sub.Name
	caption := adminOtherCaption(r, *sub)
	r.LeaveStep(registrant.StepNone)

	menu := mainMenu(r)
	menu.Markdown = true
	out.text(r.ID, t(r, mOtherPaymentReceived, format.MD(name)), menu)
	out.text(r.ID, t(r, mCanRegisterOthers), SendOptions{})
	if s.adminID != 0 {
		out.image(s.adminID, imageRef, caption, approvalOtherButtons(r.ID, idx))
	}
	return nil
}

// lostSub reports a missing sub-registration and leaves the other-flow.
func (s *Service) lostSub(r *registrant.Registrant, out *outbox) error {
	logger.Warn(context.Background(), logger.CompRegistration, "sub.missing",
		slog.Int64("registrant_id", r.ID),
		slog.String("step", string(r.Step)),
	)
	r.LeaveStep(registrant.StepNone)
	out.text(r.ID, t(r, mSubMissing), mainMenu(r))
	return nil
}

// stepPrompt renders the question of the registrant's current step.
func (s *Service) stepPrompt(r *registrant.Registrant) (string, SendOptions) {
	subName := ""
	if r.Step.IsOther() {
		if sub, _, ok := r.ActiveOtherEntry(); ok {
			subName = sub.Name
		}
	}
	switch r.Step {
	case registrant.StepSelectLang:
		return langPrompt, langKeyboard()
	case registrant.StepName:
		return t(r, mAskName), SendOptions{RemoveKeyboard: true}
	case registrant.StepEmail:
		return t(r, mAskEmail), cancelKeyboard(emailPlaceholder)
	case registrant.StepLocation:
		return t(r, mAskLocation), cancelKeyboard("")
	case registrant.StepPhone:
		return t(r, mAskPhone), cancelKeyboard(phonePlaceholder)
	case registrant.StepPayment:
		return s.withInstructions(r, t(r, mAskPayment)), cancelKeyboard("")
	case registrant.StepNameOther:
		return t(r, mAskOtherName), cancelKeyboard("")
	case registrant.StepEmailOther:
		return t(r, mAskOtherEmail), cancelKeyboard(emailPlaceholder)
	case registrant.StepLocationOther:
		return t(r, mAskOtherLocation), cancelKeyboard("")
	case registrant.StepPhoneOther:
		return t(r, mAskOtherPhone), cancelKeyboard(phonePlaceholder)
	case registrant.StepPaymentOther:
		return s.withInstructions(r, t(r, mAskOtherPayment, subName)), cancelKeyboard("")
	case registrant.StepFeelingBefore:
		return t(r, mAskFeelingBefore), cancelKeyboard("")
	case registrant.StepFeelingAfter:
		return t(r, mAskFeelingAfter), cancelKeyboard("")
	case registrant.StepEditName:
		return t(r, mEditNamePrompt), cancelKeyboard("")
	case registrant.StepEditEmail:
		return t(r, mEditEmailPrompt), cancelKeyboard(emailPlaceholder)
	case registrant.StepEditPhone:
		return t(r, mEditPhonePrompt), cancelKeyboard(phonePlaceholder)
	case registrant.StepEditLocation:
		return t(r, mEditLocationPrompt), cancelKeyboard("")
	case registrant.StepBroadcast:
		return broadcastPrompt, SendOptions{}
	}
	return t(r, mMainMenu), mainMenu(r)
}

func (s *Service) prompt(r *registrant.Registrant, out *outbox) {
	text, opts := s.stepPrompt(r)
	out.text(r.ID, text, opts)
}

func (s *Service) withInstructions(r *registrant.Registrant, ask string) string {
	if s.retreat.PaymentInstructions == "" {
		return ask
	}
	return t(r, mAccountNumber, s.retreat.PaymentInstructions) + "\n\n" + ask
}
