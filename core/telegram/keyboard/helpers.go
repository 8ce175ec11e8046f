package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn describes an inline button. Data is sent back verbatim as
// callback data; URL buttons open a link instead.
type InlineBtn struct {
	Text string
	Data string
	URL  string
}

// ReplyOptions tweaks reply keyboard presentation.
type ReplyOptions struct {
	OneTime     bool
	Placeholder string
}

// RemoveKeyboard returns a markup that hides the keyboard.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// ReplyButtons builds a resized reply keyboard from rows of text.
func ReplyButtons(opts ReplyOptions, rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{
		ResizeKeyboard:  true,
		OneTimeKeyboard: opts.OneTime,
		Placeholder:     opts.Placeholder,
	}
	keyboard := make([]tele.Row, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tele.Btn, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, markup.Text(label))
		}
		keyboard = append(keyboard, markup.Row(buttons...))
	}
	markup.Reply(keyboard...)
	return markup
}

// InlineButtonsRows builds an inline keyboard from rows of InlineBtn.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		r := make([]tele.InlineButton, 0, len(row))
		for _, btn := range row {
			ib := tele.InlineButton{Text: btn.Text}
			if btn.URL != "" {
				ib.URL = btn.URL
			} else {
				ib.Data = btn.Data
			}
			r = append(r, ib)
		}
		inline = append(inline, r)
	}
	return &tele.ReplyMarkup{InlineKeyboard: inline}
}
