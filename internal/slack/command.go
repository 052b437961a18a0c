package slack

import (
	"fmt"
	"net/url"
	"strings"
)

// Command is one parsed slash-command invocation. Commands are stateless:
// each one is validated, answered (or rejected), and forgotten.
type Command struct {
	Question    string
	ResponseURL string
}

// ParseCommand decodes an application/x-www-form-urlencoded request body
// into a Command. The question may be empty; the caller decides how to
// respond to that.
func ParseCommand(body []byte) (Command, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return Command{}, fmt.Errorf("parsing form body: %w", err)
	}
	return Command{
		Question:    strings.TrimSpace(values.Get("text")),
		ResponseURL: values.Get("response_url"),
	}, nil
}
