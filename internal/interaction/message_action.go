package interaction

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/slack-go/slack"

	"github.com/veilhq/veil/internal/blockkit"
	"github.com/veilhq/veil/internal/callback"
	"github.com/veilhq/veil/internal/chat"
	"github.com/veilhq/veil/internal/models"
	"github.com/veilhq/veil/internal/store"
)

const notPosterNotice = "You are not the original poster of the confession, so cannot do this action."

func (r *Router) handleMessageAction(ctx context.Context, cb *slack.InteractionCallback) (Result, error) {
	// Shortcuts only act on published confessions, which live in the
	// confessions channel or its meta sibling.
	if ch := cb.Channel.ID; ch != r.pipe.Channels().Confessions && ch != r.pipe.Channels().Meta {
		return r.reject(ctx, cb, "This shortcut only works on messages in the confessions channel.")
	}

	switch cb.CallbackID {
	case "reply_anonymous":
		return r.handleReplyAction(ctx, cb)
	case "react_anonymous":
		return r.handleReactAction(ctx, cb)
	case "delete_confession":
		return r.handleDeleteAction(ctx, cb)
	default:
		log.Printf("unknown message action %q", cb.CallbackID)
		return handled, nil
	}
}

// actionTarget resolves the confession a message action points at. For
// actions invoked on a thread reply the confession is the thread root.
func (r *Router) actionTarget(ctx context.Context, cb *slack.InteractionCallback) (*models.Confession, error) {
	ts := cb.Message.Timestamp
	if cb.Message.ThreadTimestamp != "" {
		ts = cb.Message.ThreadTimestamp
	}
	return r.pipe.Store().ByPublishedTS(ctx, ts)
}

// reject notifies the user through the response_url and reports the
// interaction as refused.
func (r *Router) reject(ctx context.Context, cb *slack.InteractionCallback, text string) (Result, error) {
	err := r.chat.Respond(ctx, cb.ResponseURL, chat.Response{Text: text})
	return Result{Rejected: true}, err
}

func (r *Router) handleReplyAction(ctx context.Context, cb *slack.InteractionCallback) (Result, error) {
	rec, err := r.actionTarget(ctx, cb)
	if errors.Is(err, store.ErrNotFound) {
		return r.reject(ctx, cb, "That message is not a confession.")
	}
	if err != nil {
		return handled, err
	}
	if !r.pipe.SameUser(rec, cb.User.ID) {
		return r.reject(ctx, cb, notPosterNotice)
	}

	log.Printf("anonymous reply to confession #%d", rec.ID)
	return handled, r.chat.OpenView(ctx, cb.TriggerID, chat.View{
		CallbackID: callback.MustEncode("reply_modal", replyPayload{ID: rec.ID, TS: rec.PublishedTS}),
		Title:      fmt.Sprintf("Replying to #%d", rec.ID),
		Submit:     "Reply",
		Close:      "Cancel",
		Blocks: blockkit.Blocks{
			blockkit.InputSection{
				Element: blockkit.PlainTextInput{ActionID: "confession_reply", Multiline: true},
				Label:   blockkit.PlainText{Text: "Reply"},
				BlockID: "reply",
			},
		},
	})
}

func (r *Router) handleReactAction(ctx context.Context, cb *slack.InteractionCallback) (Result, error) {
	rec, err := r.actionTarget(ctx, cb)
	if errors.Is(err, store.ErrNotFound) {
		return r.reject(ctx, cb, "That message is not a confession.")
	}
	if err != nil {
		return handled, err
	}
	if !r.pipe.SameUser(rec, cb.User.ID) {
		return r.reject(ctx, cb, notPosterNotice)
	}

	log.Printf("anonymous react on confession #%d", rec.ID)
	return handled, r.chat.OpenView(ctx, cb.TriggerID, chat.View{
		CallbackID: callback.MustEncode("react_modal", reactPayload{ID: rec.ID, TS: cb.Message.Timestamp, Channel: cb.Channel.ID}),
		Title:      fmt.Sprintf("Reacting to #%d", rec.ID),
		Submit:     "React",
		Close:      "Cancel",
		Blocks: blockkit.Blocks{
			blockkit.TextSection{
				Text:    blockkit.Markdown{Text: "Pick an emoji to react with."},
				BlockID: "emoji",
				Accessory: blockkit.ExternalSelect{
					Placeholder:    blockkit.PlainText{Text: "Select an emoji"},
					MinQueryLength: 2,
					ActionID:       "emoji",
				},
			},
		},
	})
}

// replyPayload carries the thread root a reply will land under.
type replyPayload struct {
	ID uint   `json:"id"`
	TS string `json:"ts"`
}

// reactPayload keeps the reacted-to message distinct from the
// confession root, so reactions land on thread replies too.
type reactPayload struct {
	ID      uint   `json:"id"`
	TS      string `json:"ts"`
	Channel string `json:"channel"`
}

func (r *Router) handleDeleteAction(ctx context.Context, cb *slack.InteractionCallback) (Result, error) {
	rec, err := r.actionTarget(ctx, cb)
	if errors.Is(err, store.ErrNotFound) {
		return r.reject(ctx, cb, "That message is not a confession.")
	}
	if err != nil {
		return handled, err
	}
	if !r.pipe.SameUser(rec, cb.User.ID) {
		return r.reject(ctx, cb, notPosterNotice)
	}

	log.Printf("deletion of confession #%d", rec.ID)
	if err := r.pipe.Delete(ctx, rec); err != nil {
		return handled, err
	}
	return handled, r.chat.Respond(ctx, cb.ResponseURL, chat.Response{Text: fmt.Sprintf("Confession #%d deleted.", rec.ID)})
}
