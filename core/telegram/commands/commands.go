// Package commands describes slash commands exposed through the registry.
package commands

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command is a slash command with its handler and menu metadata.
type Command struct {
	// Name is the command without the leading slash, lower case.
	Name        string
	Description string
	Handler     tele.HandlerFunc
	// AdminOnly commands are listed only in the admin's command menu.
	AdminOnly bool
	Hidden    bool
}

// Endpoint returns the telebot endpoint for name, e.g. "/start".
func Endpoint(name string) string {
	return "/" + Normalize(name)
}

// Normalize lower-cases name and strips a leading slash and a bot mention.
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}
