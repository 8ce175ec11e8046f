package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Split breaks raw callback data of the form "verb:args" into its parts.
// Telebot's "\f<unique>|<payload>" encoding is accepted as well.
func Split(data string) (verb, args string) {
	data = strings.TrimPrefix(data, "\f")
	if i := strings.IndexAny(data, ":|"); i >= 0 {
		return strings.TrimSpace(data[:i]), data[i+1:]
	}
	return strings.TrimSpace(data), ""
}

// Key returns the callback verb used as a log key.
func Key(cb *tele.Callback) string {
	if cb == nil {
		return ""
	}
	if cb.Unique != "" {
		return cb.Unique
	}
	verb, _ := Split(cb.Data)
	return verb
}
