// Package callbacks decodes telebot inline button data.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Telebot prefixes data of buttons built with Markup.Data with a form feed.
const uniquePrefix = "\f"

// Parse splits callback data into the button unique id and its payload.
// Handlers bound to tele.OnCallback receive the raw "\f<unique>|<payload>"
// form; handlers bound to a button endpoint get Unique and Data already split.
func Parse(cb *tele.Callback) (unique, payload string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := cb.Data
	if !strings.HasPrefix(raw, uniquePrefix) {
		return "", raw
	}
	raw = strings.TrimPrefix(raw, uniquePrefix)
	unique, payload, _ = strings.Cut(raw, "|")
	return strings.TrimSpace(unique), payload
}

// Key returns the unique id of the pressed button.
func Key(c tele.Context) string {
	k, _ := Parse(c.Callback())
	return k
}

// Payload returns the data attached to the pressed button.
func Payload(c tele.Context) string {
	_, p := Parse(c.Callback())
	return p
}
