// Package chat is the boundary to the Slack Web API. The pipeline and
// router consume the Client interface; the slack-go implementation
// lives in slack.go. Every call surfaces the API's not-ok outcome as an
// error; best-effort handling is the caller's decision.
package chat

import (
	"context"

	"github.com/veilhq/veil/internal/blockkit"
)

// Message is an outbound chat.postMessage.
type Message struct {
	Channel   string
	Text      string
	Blocks    blockkit.Blocks
	ThreadTS  string
	Broadcast bool
}

// View is a modal to open against a trigger id. Empty Submit omits the
// submit button (read-only notices).
type View struct {
	CallbackID string
	Title      string
	Submit     string
	Close      string
	Blocks     blockkit.Blocks
}

// Response is a message delivered through a response_url.
type Response struct {
	Text      string
	InChannel bool
	Replace   bool
}

type Client interface {
	// PostMessage returns the new message's timestamp.
	PostMessage(ctx context.Context, m Message) (string, error)
	UpdateMessage(ctx context.Context, channel, ts, text string, blocks blockkit.Blocks) error
	DeleteMessage(ctx context.Context, channel, ts string) error
	OpenView(ctx context.Context, triggerID string, v View) error
	// Replies lists the timestamps of thread replies under ts, excluding
	// the parent itself.
	Replies(ctx context.Context, channel, ts string) ([]string, error)
	AddReaction(ctx context.Context, name, channel, ts string) error
	CustomEmoji(ctx context.Context) (map[string]string, error)
	// MessageText fetches the text of the single message at latest.
	MessageText(ctx context.Context, channel, latest string) (string, error)
	Respond(ctx context.Context, responseURL string, r Response) error
}
