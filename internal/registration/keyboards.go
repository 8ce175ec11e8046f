package registration

import (
	"fmt"

	"github.com/oss377/maneBot/internal/registrant"
)

func mainMenu(r *registrant.Registrant) SendOptions {
	rows := [][]string{
		{BtnRegister, BtnJoinGroup},
		{BtnProfile, BtnHelp},
		{BtnContact, BtnChangeLanguage},
		{BtnFeelingBefore, BtnFeelingAfter},
	}
	if r != nil && r.Step.IsRegistration() {
		rows = append([][]string{{BtnContinue}}, rows...)
	}
	return SendOptions{Reply: rows}
}

func langKeyboard() SendOptions {
	rows := make([][]string, 0, len(registrant.LangTokens))
	for _, tok := range registrant.LangTokens {
		rows = append(rows, []string{tok})
	}
	return SendOptions{Reply: rows, OneTime: true}
}

func cancelKeyboard(placeholder string) SendOptions {
	return SendOptions{Reply: [][]string{{BtnCancel}}, Placeholder: placeholder}
}

func emailSuggestions() SendOptions {
	return SendOptions{
		Reply:       [][]string{{"@gmail.com", "@yahoo.com", "@outlook.com"}, {BtnCancel}},
		Placeholder: emailPlaceholder,
	}
}

func continueButton() SendOptions {
	return SendOptions{Inline: [][]Button{{{Text: BtnContinue, Data: ActContinue}}}}
}

func groupButton(link string) SendOptions {
	return SendOptions{Inline: [][]Button{{{Text: "Join the group", URL: link}}}}
}

func profileKeyboard(r *registrant.Registrant) SendOptions {
	rows := [][]Button{
		{{Text: "✏️ Name", Data: ActEditName}, {Text: "✏️ Email", Data: ActEditEmail}},
		{{Text: "✏️ Phone", Data: ActEditPhone}, {Text: "✏️ Location", Data: ActEditLocation}},
	}
	if hasPendingPayments(r) {
		rows = append(rows, []Button{{Text: "💳 Finish Pending Payments", Data: ActFinishPayments}})
	}
	if r.Step != registrant.StepNone && r.Step != registrant.StepSelectLang {
		rows = append(rows, []Button{{Text: BtnContinue, Data: ActContinue}})
	}
	return SendOptions{Markdown: true, Inline: rows}
}

func approvalButtons(id int64) SendOptions {
	return SendOptions{Inline: [][]Button{{
		{Text: "✅ Approve", Data: fmt.Sprintf("/approve %d", id)},
		{Text: "❌ Decline", Data: fmt.Sprintf("/decline %d", id)},
	}}}
}

func approvalOtherButtons(id int64, idx int) SendOptions {
	return SendOptions{Inline: [][]Button{{
		{Text: "✅ Approve", Data: fmt.Sprintf("/approve_other %d %d", id, idx)},
		{Text: "❌ Decline", Data: fmt.Sprintf("/decline_other %d %d", id, idx)},
	}}}
}

func remindFeelingButtons(id int64) SendOptions {
	return SendOptions{Markdown: true, Inline: [][]Button{{
		{Text: "Remind Before", Data: fmt.Sprintf("%s:before:%d", ActRemindFeeling, id)},
		{Text: "Remind After", Data: fmt.Sprintf("%s:after:%d", ActRemindFeeling, id)},
	}}}
}

// hasPendingPayments reports whether the registrant or anyone they
// registered still has to upload a proof.
func hasPendingPayments(r *registrant.Registrant) bool {
	if r.Registered() && !r.Approved && r.Payment == "" {
		return true
	}
	return r.FirstAwaitingProof() >= 0
}
