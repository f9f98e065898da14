package router

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/winbingo/core/telegram"
)

// MessageOptions names the handlers for each inbound message kind. Nil
// handlers leave the kind unrouted.
type MessageOptions struct {
	Text     tele.HandlerFunc
	Contact  tele.HandlerFunc
	Photo    tele.HandlerFunc
	Document tele.HandlerFunc
	// UnknownCommand receives slash commands missing from the registry.
	// When nil they go to Text.
	UnknownCommand tele.HandlerFunc
}

// MessageRoutes builds routes for text, contact, photo and document messages.
func MessageRoutes(opts MessageOptions) []tg.Route {
	var routes []tg.Route
	add := func(endpoint, name string, h tele.HandlerFunc) {
		if h == nil {
			return
		}
		routes = append(routes, tg.Route{
			Endpoint: endpoint,
			Handler: wrap(func(c tele.Context) error {
				return handleWithSummary(c, name, func() error { return h(c) })
			}),
		})
	}

	if opts.Text != nil || opts.UnknownCommand != nil {
		routes = append(routes, tg.Route{Endpoint: tele.OnText, Handler: wrap(textHandler(opts))})
	}
	add(tele.OnContact, "contact", opts.Contact)
	add(tele.OnPhoto, "photo", opts.Photo)
	add(tele.OnDocument, "document", opts.Document)
	return routes
}

func textHandler(opts MessageOptions) tele.HandlerFunc {
	return func(c tele.Context) error {
		if strings.HasPrefix(c.Text(), "/") && opts.UnknownCommand != nil {
			return handleWithSummary(c, "unknown_command", func() error { return opts.UnknownCommand(c) })
		}
		if opts.Text == nil {
			logHandlerSummary(c, "text", time.Now(), "skip", nil)
			return nil
		}
		return handleWithSummary(c, "text", func() error { return opts.Text(c) })
	}
}
