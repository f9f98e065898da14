package callbacks

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		cb      *tele.Callback
		unique  string
		payload string
	}{
		{"nil", nil, "", ""},
		{"raw", &tele.Callback{Data: "\freq_approve|42"}, "req_approve", "42"},
		{"raw no payload", &tele.Callback{Data: "\fmenu"}, "menu", ""},
		{"payload with bar", &tele.Callback{Data: "\fwd_confirm|a|b"}, "wd_confirm", "a|b"},
		{"split by telebot", &tele.Callback{Unique: "menu", Data: "deposit"}, "menu", "deposit"},
		{"plain data", &tele.Callback{Data: "legacy"}, "", "legacy"},
		{"escaped prefix is not a prefix", &tele.Callback{Data: `\fmenu|x`}, "", `\fmenu|x`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, p := Parse(tt.cb)
			if u != tt.unique || p != tt.payload {
				t.Fatalf("Parse() = (%q, %q), want (%q, %q)", u, p, tt.unique, tt.payload)
			}
		})
	}
}
