package slack

import (
	"fmt"
	"strings"
)

// Response types understood by Slack.
const (
	ResponseEphemeral = "ephemeral"
	ResponseInChannel = "in_channel"
)

// Message is an outbound Slack message: either the synchronous
// acknowledgment returned from the slash-command endpoint, or the delayed
// payload POSTed to the command's response URL. Text doubles as the flat
// fallback when Blocks is set.
type Message struct {
	ResponseType string  `json:"response_type,omitempty"`
	Text         string  `json:"text"`
	Blocks       []Block `json:"blocks,omitempty"`
}

// Block is one Block Kit element. Only the block kinds this service emits
// are modeled.
type Block struct {
	Type     string     `json:"type"`
	Text     *BlockText `json:"text,omitempty"`
	Elements []BlockText `json:"elements,omitempty"`
}

// BlockText is markdown text inside a block.
type BlockText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func mrkdwn(text string) *BlockText {
	return &BlockText{Type: "mrkdwn", Text: text}
}

// AnswerMessage formats a fulfilled command: the question as a bold lead-in,
// the sanitized answer, and a context footer listing the source endpoints.
func AnswerMessage(question, answer string, sources []string) Message {
	blocks := []Block{
		{Type: "section", Text: mrkdwn(fmt.Sprintf("*Q: %s*", question))},
		{Type: "section", Text: mrkdwn(answer)},
	}
	if len(sources) > 0 {
		blocks = append(blocks, Block{
			Type:     "context",
			Elements: []BlockText{{Type: "mrkdwn", Text: "Sources: " + strings.Join(sources, ", ")}},
		})
	}
	return Message{
		ResponseType: ResponseInChannel,
		Text:         answer,
		Blocks:       blocks,
	}
}

// FailureMessage is the terminal payload for a command whose background
// fulfillment failed. The wording is deliberately generic.
func FailureMessage() Message {
	return Message{
		ResponseType: ResponseEphemeral,
		Text:         "Sorry, something went wrong while answering your question. Please try again.",
	}
}
