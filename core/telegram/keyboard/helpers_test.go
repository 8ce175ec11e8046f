package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInlineButtonsRows(t *testing.T) {
	m := InlineButtonsRows(
		[]InlineBtn{{Text: "Approve", Data: "approve:42"}, {Text: "Decline", Data: "decline:42"}},
		[]InlineBtn{{Text: "Open", URL: "https://t.me/x"}},
	)
	require.Len(t, m.InlineKeyboard, 2)
	assert.Equal(t, "approve:42", m.InlineKeyboard[0][0].Data)
	assert.Equal(t, "decline:42", m.InlineKeyboard[0][1].Data)
	assert.Equal(t, "https://t.me/x", m.InlineKeyboard[1][0].URL)
	assert.Empty(t, m.InlineKeyboard[1][0].Data)
}

func TestReplyButtons(t *testing.T) {
	m := ReplyButtons(ReplyOptions{OneTime: true, Placeholder: "Pick"}, []string{"A", "B"}, []string{"C"})
	assert.True(t, m.ResizeKeyboard)
	assert.True(t, m.OneTimeKeyboard)
	assert.Equal(t, "Pick", m.Placeholder)
	require.Len(t, m.ReplyKeyboard, 2)
	assert.Equal(t, "B", m.ReplyKeyboard[0][1].Text)
	assert.Equal(t, "C", m.ReplyKeyboard[1][0].Text)
}
