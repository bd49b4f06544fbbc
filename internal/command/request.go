// Package command turns normalized chat requests into replies.
package command

import (
	"strings"
	"unicode"

	"github.com/Proton-105/birthday-bot/internal/domain"
)

// Request is one command issued in a chat.
type Request struct {
	ChatID    string
	Command   string
	Args      string
	Sender    domain.Sender
	MessageID int
}

// Parse splits "/cmd@bot args" into a lowercase command and trimmed args.
// Text that is not a command returns false.
func Parse(text string) (Request, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return Request{}, false
	}

	head, args := text[1:], ""
	if i := strings.IndexFunc(head, unicode.IsSpace); i >= 0 {
		head, args = head[:i], head[i+1:]
	}
	head, _, _ = strings.Cut(head, "@")
	if head == "" {
		return Request{}, false
	}

	return Request{
		Command: strings.ToLower(head),
		Args:    strings.TrimSpace(args),
	}, true
}
