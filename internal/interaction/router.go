// Package interaction dispatches decoded Slack interaction payloads to
// the moderation pipeline. Button-style interactions dispatch on a
// literal action value; modal submissions dispatch on the callback-id
// codec. Unknown actions and callback prefixes are logged and ignored,
// never errors.
package interaction

import (
	"context"
	"log"
	"time"

	"github.com/slack-go/slack"

	"github.com/veilhq/veil/internal/chat"
	"github.com/veilhq/veil/internal/emoji"
	"github.com/veilhq/veil/internal/pipeline"
)

// Result is how a handler disposed of an interaction.
type Result struct {
	// Rejected means the action was refused (identity check failed and
	// the user has already been notified). Not an error.
	Rejected bool
	// Body, when non-nil, is serialized as the interaction response
	// (modal updates, suggestion options). Nil means an empty ack.
	Body any
}

var handled = Result{}

type Router struct {
	pipe  *pipeline.Pipeline
	chat  chat.Client
	emoji *emoji.Source
	now   func() time.Time
}

func NewRouter(pipe *pipeline.Pipeline, chatClient chat.Client, emojiSource *emoji.Source) *Router {
	return &Router{pipe: pipe, chat: chatClient, emoji: emojiSource, now: time.Now}
}

// WithClock overrides the undo-window clock, for tests.
func (r *Router) WithClock(now func() time.Time) *Router {
	r2 := *r
	r2.now = now
	return &r2
}

// Handle routes one interaction payload. Errors are reported to the
// caller, which owes the user a failure notice via response_url.
func (r *Router) Handle(ctx context.Context, cb *slack.InteractionCallback) (Result, error) {
	switch cb.Type {
	case slack.InteractionTypeBlockActions:
		return r.handleBlockAction(ctx, cb)
	case slack.InteractionTypeMessageAction:
		return r.handleMessageAction(ctx, cb)
	case slack.InteractionTypeViewSubmission:
		return r.handleViewSubmission(ctx, cb)
	case slack.InteractionTypeBlockSuggestion:
		return r.handleBlockSuggestion(ctx, cb)
	default:
		log.Printf("ignoring interaction type %s", cb.Type)
		return handled, nil
	}
}

// audienceChannel mirrors the pipeline's publication routing for the
// reply/react paths.
func (r *Router) audienceChannel(meta bool) string {
	if meta {
		return r.pipe.Channels().Meta
	}
	return r.pipe.Channels().Confessions
}
