package registrant

import (
	"fmt"
	"strings"
)

// Step is a registrant's position in the conversation. StepNone means idle.
type Step string

const (
	StepNone          Step = ""
	StepSelectLang    Step = "select_lang"
	StepName          Step = "name"
	StepEmail         Step = "email"
	StepLocation      Step = "location"
	StepPhone         Step = "phone"
	StepPayment       Step = "payment"
	StepNameOther     Step = "name_other"
	StepEmailOther    Step = "email_other"
	StepLocationOther Step = "location_other"
	StepPhoneOther    Step = "phone_other"
	StepPaymentOther  Step = "payment_other"
	StepFeelingBefore Step = "feeling_before"
	StepFeelingAfter  Step = "feeling_after"
	StepEditName      Step = "edit_name"
	StepEditEmail     Step = "edit_email"
	StepEditPhone     Step = "edit_phone"
	StepEditLocation  Step = "edit_location"
	StepBroadcast     Step = "broadcast_message"
)

var allSteps = []Step{
	StepNone, StepSelectLang,
	StepName, StepEmail, StepLocation, StepPhone, StepPayment,
	StepNameOther, StepEmailOther, StepLocationOther, StepPhoneOther, StepPaymentOther,
	StepFeelingBefore, StepFeelingAfter,
	StepEditName, StepEditEmail, StepEditPhone, StepEditLocation,
	StepBroadcast,
}

// Steps returns every valid step including StepNone.
func Steps() []Step {
	return append([]Step(nil), allSteps...)
}

// ParseStep validates a persisted step value.
func ParseStep(s string) (Step, error) {
	for _, st := range allSteps {
		if string(st) == s {
			return st, nil
		}
	}
	return StepNone, fmt.Errorf("registrant: unknown step %q", s)
}

// IsOther reports whether the step belongs to the register-another flow.
func (s Step) IsOther() bool {
	return strings.HasSuffix(string(s), "_other")
}

// IsRegistration reports whether the step is part of data collection,
// for self or for another person.
func (s Step) IsRegistration() bool {
	switch s {
	case StepName, StepEmail, StepLocation, StepPhone, StepPayment:
		return true
	}
	return s.IsOther()
}

// Nudges reports whether the idle timer applies while in this step.
func (s Step) Nudges() bool {
	return s != StepNone && s != StepBroadcast
}

// Lang is the conversation language.
type Lang string

const (
	LangEnglish Lang = "en"
	LangAmharic Lang = "am"
	LangOromo   Lang = "om"
)

var langTokens = map[string]Lang{
	"English":      LangEnglish,
	"አማርኛ":         LangAmharic,
	"Afaan Oromoo": LangOromo,
}

// LangTokens are the language choices shown to users, in display order.
var LangTokens = []string{"English", "አማርኛ", "Afaan Oromoo"}

// ParseLangToken maps a language button label to a Lang.
func ParseLangToken(token string) (Lang, bool) {
	l, ok := langTokens[strings.TrimSpace(token)]
	return l, ok
}

// Valid reports whether l is one of the supported languages.
func (l Lang) Valid() bool {
	switch l {
	case LangEnglish, LangAmharic, LangOromo:
		return true
	}
	return false
}

// OrDefault returns l, or English when l is unset.
func (l Lang) OrDefault() Lang {
	if l.Valid() {
		return l
	}
	return LangEnglish
}
