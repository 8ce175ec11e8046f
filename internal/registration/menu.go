package registration

import (
	"github.com/oss377/maneBot/internal/registrant"
)

type menuAction func(s *Service, r *registrant.Registrant, out *outbox) error

// menuActions are evaluated against the record's flags rather than its step.
var menuActions = map[string]menuAction{
	BtnRegister:        (*Service).menuRegister,
	BtnRegisterAnother: (*Service).menuRegisterAnother,
	BtnContinue:        (*Service).menuContinue,
	BtnProfile:         (*Service).menuProfile,
	BtnJoinGroup:       (*Service).menuJoinGroup,
	BtnHelp:            (*Service).menuHelp,
	"/help":            (*Service).menuHelp,
	BtnContact:         (*Service).menuContact,
	BtnChangeLanguage:  (*Service).menuChangeLanguage,
	BtnFeelingBefore:   (*Service).menuFeelingBefore,
	BtnFeelingAfter:    (*Service).menuFeelingAfter,
}

func (s *Service) menuRegister(r *registrant.Registrant, out *outbox) error {
	switch {
	case r.Step.IsRegistration():
		out.text(r.ID, t(r, mContinuePrompt), continueButton())
		return errNoWrite
	case r.Registered():
		out.text(r.ID, t(r, mAlreadyRegistered), SendOptions{Reply: [][]string{{BtnRegisterAnother}, {BtnCancel}}})
		return errNoWrite
	}
	s.advance(r, out, registrant.StepName)
	return nil
}

// menuRegisterAnother starts a new sub-registration at the tail. An
// unfinished entry from an abandoned other-flow is dropped first.
func (s *Service) menuRegisterAnother(r *registrant.Registrant, out *outbox) error {
	r.LeaveStep(registrant.StepNone)
	r.Others = append(r.Others, registrant.SubRegistration{})
	idx := len(r.Others) - 1
	r.ActiveOther = &idx
	s.advance(r, out, registrant.StepNameOther)
	return nil
}

func (s *Service) menuContinue(r *registrant.Registrant, out *outbox) error {
	if r.Step == registrant.StepNone {
		out.text(r.ID, t(r, mNoPendingSteps), mainMenu(r))
		return errNoWrite
	}
	s.prompt(r, out)
	return errNoWrite
}

func (s *Service) menuProfile(r *registrant.Registrant, out *outbox) error {
	if !r.Registered() {
		out.text(r.ID, t(r, mNotRegistered), mainMenu(r))
		return errNoWrite
	}
	out.text(r.ID, t(r, mProfileTitle)+"\n\n"+profileDetails(r), profileKeyboard(r))
	return errNoWrite
}

func (s *Service) menuJoinGroup(r *registrant.Registrant, out *outbox) error {
	switch {
	case r.Approved:
		out.text(r.ID, t(r, mJoinGroupSuccess), groupButton(s.retreat.GroupLink))
	case r.Payment != "":
		out.text(r.ID, t(r, mWaitForApproval), mainMenu(r))
	case r.Registered() && r.Profile.Phone != "":
		s.enterPayment(r)
		s.prompt(r, out)
		return nil
	default:
		out.text(r.ID, t(r, mJoinGroupNotApproved), mainMenu(r))
	}
	return errNoWrite
}

// enterPayment makes the proof upload of the registrant's own registration
// the active step.
func (s *Service) enterPayment(r *registrant.Registrant) {
	r.LeaveStep(registrant.StepPayment)
	if r.PendingSince == nil {
		now := s.now()
		r.PendingSince = &now
	}
}

// enterPaymentOther makes the proof upload of sub-registration idx the
// active step. idx must address an entry awaiting proof.
func (s *Service) enterPaymentOther(r *registrant.Registrant, idx int) {
	if !r.Step.IsOther() {
		r.LeaveStep(registrant.StepNone)
	}
	r.ActiveOther = &idx
	r.LeaveStep(registrant.StepPaymentOther)
	if sub := &r.Others[idx]; sub.PendingSince == nil {
		now := s.now()
		sub.PendingSince = &now
	}
}

func (s *Service) menuHelp(r *registrant.Registrant, out *outbox) error {
	text := t(r, mHelp)
	if s.isAdmin(r.ID) {
		text += "\n\n" + adminHelp()
	}
	out.text(r.ID, text, SendOptions{Markdown: true, Reply: mainMenu(r).Reply})
	return errNoWrite
}

func (s *Service) menuContact(r *registrant.Registrant, out *outbox) error {
	text := s.retreat.ContactText
	if text == "" {
		text = t(r, mContact)
	}
	out.text(r.ID, text, mainMenu(r))
	return errNoWrite
}

func (s *Service) menuChangeLanguage(r *registrant.Registrant, out *outbox) error {
	s.advance(r, out, registrant.StepSelectLang)
	return nil
}

func (s *Service) menuFeelingBefore(r *registrant.Registrant, out *outbox) error {
	return s.askFeeling(r, out, registrant.StepFeelingBefore)
}

func (s *Service) menuFeelingAfter(r *registrant.Registrant, out *outbox) error {
	return s.askFeeling(r, out, registrant.StepFeelingAfter)
}

func (s *Service) askFeeling(r *registrant.Registrant, out *outbox, step registrant.Step) error {
	if !r.Registered() {
		out.text(r.ID, t(r, mNotRegistered), mainMenu(r))
		return errNoWrite
	}
	s.advance(r, out, step)
	return nil
}

// finishPayments jumps to the first registration still missing its proof:
// the registrant's own, then each sub-registration in order. A registrant
// whose own proof awaits approval is told to wait only when no
// sub-registration needs proof either.
func (s *Service) finishPayments(r *registrant.Registrant, out *outbox) error {
	ownPending := r.Registered() && !r.Approved
	if ownPending && r.Payment == "" && r.Profile.Phone != "" {
		s.enterPayment(r)
		s.prompt(r, out)
		return nil
	}
	if idx := r.FirstAwaitingProof(); idx >= 0 {
		s.enterPaymentOther(r, idx)
		s.prompt(r, out)
		return nil
	}
	if ownPending && r.Payment != "" {
		out.text(r.ID, t(r, mWaitForApproval), mainMenu(r))
		return errNoWrite
	}
	out.text(r.ID, t(r, mAllPaymentsDone), mainMenu(r))
	return errNoWrite
}
