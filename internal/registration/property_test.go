package registration

import (
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/oss377/maneBot/internal/registrant"
)

var propertyTexts = []string{
	"English", "አማርኛ", "Klingon",
	BtnRegister, BtnRegisterAnother, BtnContinue, BtnProfile, BtnJoinGroup,
	BtnFeelingBefore, BtnCancel, BtnBack, "/cancel",
	"John Smith", "John", "bob", "@gmail.com", "a@b.co",
	"Addis", "0911223344", "0922334455", "0911",
	"fine",
}

var propertyActions = []string{
	ActFinishPayments, ActContinue, ActEditName, ActEditPhone,
}

// drawEvent picks an event from the small alphabet the conversation reacts to.
func drawEvent(t *rapid.T, h *harness) Event {
	users := []int64{1, 2}
	from := rapid.SampledFrom(users).Draw(t, "from")
	switch rapid.IntRange(0, 9).Draw(t, "kind") {
	case 0:
		payload := rapid.SampledFrom([]string{"", "", "tok1", "tok2", "tok3"}).Draw(t, "payload")
		return Event{Kind: EventStart, From: from, Text: payload}
	case 1:
		return Event{Kind: EventImage, From: from, ImageRef: "photo"}
	case 2:
		return Event{Kind: EventAction, From: from, Text: rapid.SampledFrom(propertyActions).Draw(t, "action")}
	case 3:
		target := rapid.SampledFrom(users).Draw(t, "target")
		cmd := rapid.SampledFrom([]string{"approve", "decline", "approve_other", "decline_other"}).Draw(t, "decision")
		text := fmt.Sprintf("/%s %d", cmd, target)
		if cmd == "approve_other" || cmd == "decline_other" {
			text += fmt.Sprintf(" %d", rapid.IntRange(0, 2).Draw(t, "index"))
		}
		return Event{Kind: EventText, From: adminID, Text: text}
	case 4:
		h.now = h.now.Add(time.Duration(rapid.IntRange(1, 30).Draw(t, "hours")) * time.Hour)
		return Event{}
	}
	return Event{Kind: EventText, From: from, Text: rapid.SampledFrom(propertyTexts).Draw(t, "text")}
}

func checkInvariants(t *rapid.T, h *harness) {
	for _, id := range []int64{1, 2} {
		r, err := h.store.Find(h.ctx, id)
		if err != nil {
			continue
		}
		if err := r.Validate(); err != nil {
			t.Fatalf("registrant %d: %v", id, err)
		}
		if r.Step.IsOther() && r.ActiveOtherIndex() < 0 {
			t.Fatalf("registrant %d in %s without an addressed entry", id, r.Step)
		}
		if r.Step == registrant.StepPayment && (r.Payment != "" || r.Profile.Phone == "") {
			t.Fatalf("registrant %d asked for proof with payment %q phone %q", id, r.Payment, r.Profile.Phone)
		}
		for i, o := range r.Others {
			if o.Phone != "" && o.ClaimToken == "" {
				t.Fatalf("registrant %d entry %d complete without claim token", id, i)
			}
		}
	}
}

func TestConversationKeepsInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		h := newHarness(t)
		steps := rapid.IntRange(1, 60).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			ev := drawEvent(rt, h)
			if ev.From == 0 {
				if _, err := h.svc.Sweep(h.ctx); err != nil {
					rt.Fatalf("sweep: %v", err)
				}
			} else if err := h.svc.Handle(h.ctx, ev); err != nil {
				rt.Fatalf("event %+v: %v", ev, err)
			}
			if rapid.Bool().Draw(rt, "fire") {
				h.sch.fire(ev.From)
				h.sch.runDelays()
			}
			checkInvariants(rt, h)
		}
	})
}
