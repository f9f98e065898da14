package bot

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/winbingo/core/telegram/callbacks"
	"github.com/m3rciful/winbingo/core/telegram/commands"
	"github.com/m3rciful/winbingo/core/telegram/keyboard"
	"github.com/m3rciful/winbingo/internal/flow"
)

func baseEvent(c tele.Context) flow.Event {
	var ev flow.Event
	if u := c.Sender(); u != nil {
		ev.UserID = u.ID
		ev.Username = u.Username
		ev.FirstName = u.FirstName
	}
	ev.ChatID = ev.UserID
	if ch := c.Chat(); ch != nil {
		ev.ChatID = ch.ID
	}
	return ev
}

func commandEvent(c tele.Context) flow.Event {
	ev := baseEvent(c)
	ev.Kind = flow.KindCommand
	fields := strings.Fields(c.Text())
	if len(fields) > 0 {
		ev.Command = commands.Normalize(fields[0])
		ev.Args = fields[1:]
	}
	ev.Text = c.Text()
	return ev
}

func buttonEvent(c tele.Context) flow.Event {
	ev := baseEvent(c)
	ev.Kind = flow.KindButton
	ev.Button, ev.Payload = callbacks.Parse(c.Callback())
	return ev
}

func messageEvent(c tele.Context) flow.Event {
	ev := baseEvent(c)
	m := c.Message()
	switch {
	case m == nil:
		ev.Kind = flow.KindText
	case m.Contact != nil:
		ev.Kind = flow.KindContact
		ev.Contact = flow.Contact{
			Phone:     m.Contact.PhoneNumber,
			FirstName: m.Contact.FirstName,
			UserID:    m.Contact.UserID,
		}
	case m.Photo != nil:
		ev.Kind = flow.KindAttachment
		ev.Media = flow.MediaPhoto
		ev.FileID = m.Photo.FileID
		ev.Text = m.Caption
	case m.Document != nil:
		ev.Kind = flow.KindAttachment
		ev.Media = flow.MediaDocument
		ev.FileID = m.Document.FileID
		ev.Text = m.Caption
	default:
		ev.Kind = flow.KindText
		ev.Text = m.Text
	}
	return ev
}

// outgoing renders r as a telebot payload and send options. Inline buttons
// take precedence over reply keyboard changes, since a message carries one
// markup.
func outgoing(r flow.Reply) (interface{}, *tele.SendOptions) {
	opts := &tele.SendOptions{ReplyMarkup: markup(r)}
	if r.Media == nil || r.Media.FileID == "" {
		return r.Text, opts
	}
	file := tele.File{FileID: r.Media.FileID}
	if r.Media.Kind == flow.MediaDocument {
		return &tele.Document{File: file, Caption: r.Text}, opts
	}
	return &tele.Photo{File: file, Caption: r.Text}, opts
}

func markup(r flow.Reply) *tele.ReplyMarkup {
	switch {
	case len(r.Buttons) > 0:
		rows := make([][]keyboard.InlineBtn, 0, len(r.Buttons))
		for _, row := range r.Buttons {
			kb := make([]keyboard.InlineBtn, 0, len(row))
			for _, btn := range row {
				kb = append(kb, keyboard.InlineBtn{Text: btn.Text, Unique: btn.Unique, Data: btn.Payload, URL: btn.URL})
			}
			rows = append(rows, kb)
		}
		return keyboard.InlineButtonsRows(rows...)
	case r.RequestContact != "":
		return keyboard.RequestContact(r.RequestContact)
	case r.RemoveKeyboard:
		return keyboard.RemoveKeyboard()
	default:
		return nil
	}
}
