package interaction

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/slack-go/slack"

	"github.com/veilhq/veil/internal/callback"
	"github.com/veilhq/veil/internal/chat"
	"github.com/veilhq/veil/internal/pipeline"
)

func (r *Router) handleViewSubmission(ctx context.Context, cb *slack.InteractionCallback) (Result, error) {
	id := cb.View.CallbackID

	if res := callback.Decode("reject", id); res.Kind != callback.NoMatch {
		return r.handleReject(ctx, cb, res)
	}
	if res := callback.Decode("approve_tw", id); res.Kind != callback.NoMatch {
		return r.handleApproveTW(ctx, cb, res)
	}
	if res := callback.Decode("reply_modal", id); res.Kind != callback.NoMatch {
		return r.handleReplySubmit(ctx, cb, res)
	}
	if res := callback.Decode("react_modal", id); res.Kind != callback.NoMatch {
		return r.handleReactSubmit(ctx, cb, res)
	}
	if res := callback.Decode("undo_confirm", id); res.Kind != callback.NoMatch {
		return r.handleUndoConfirm(ctx, cb, res)
	}

	log.Printf("unknown view callback %q", id)
	return handled, nil
}

// inputValue reads a plain_text_input value out of the view state.
func inputValue(cb *slack.InteractionCallback, blockID, actionID string) string {
	return cb.View.State.Values[blockID][actionID].Value
}

// validationErrors is a response_action body that pins an error message
// under the named input block without closing the modal.
func validationErrors(blockID, msg string) map[string]any {
	return map[string]any{
		"response_action": "errors",
		"errors":          map[string]string{blockID: msg},
	}
}

// stagingTS decodes the staging-timestamp payload used by the reject
// and TW dialogs, covering the legacy plain-field format.
func stagingTS(res callback.Result) (string, error) {
	if res.Kind == callback.Legacy {
		if len(res.Fields) == 0 || res.Fields[0] == "" {
			return "", fmt.Errorf("legacy callback carried no timestamp")
		}
		return res.Fields[0], nil
	}
	var ts string
	if err := res.Unmarshal(&ts); err != nil {
		return "", err
	}
	return ts, nil
}

func (r *Router) handleReject(ctx context.Context, cb *slack.InteractionCallback, res callback.Result) (Result, error) {
	ts, err := stagingTS(res)
	if err != nil {
		return handled, err
	}
	reason := inputValue(cb, "reason", "reject_input")
	log.Printf("rejection of message ts=%s", ts)

	if err := r.pipe.View(ctx, ts, false, cb.User.ID, "", false); err != nil {
		return handled, err
	}

	rec, err := r.pipe.Store().ByStagingTS(ctx, ts)
	if err != nil {
		return handled, err
	}
	_, err = r.chat.PostMessage(ctx, chat.Message{
		Channel: r.pipe.Channels().ConfessionsMeta,
		Text:    pipeline.Sanitize(fmt.Sprintf("*rejected #%d:* %s", rec.ID, reason)),
	})
	if err != nil {
		return handled, fmt.Errorf("post rejection notice: %w", err)
	}
	return handled, nil
}

func (r *Router) handleApproveTW(ctx context.Context, cb *slack.InteractionCallback, res callback.Result) (Result, error) {
	ts, err := stagingTS(res)
	if err != nil {
		return handled, err
	}
	tw := inputValue(cb, "tw", "approve_tw_input")
	log.Printf("TW approval of message ts=%s", ts)

	rec, err := r.pipe.Store().ByStagingTS(ctx, ts)
	if err != nil {
		return handled, err
	}
	rec.TWText = tw
	if err := r.pipe.Store().Save(ctx, rec); err != nil {
		return handled, err
	}

	if err := r.pipe.View(ctx, ts, true, cb.User.ID, tw, false); err != nil {
		return handled, err
	}

	// The published message only carries the warning, the contents go
	// in the thread behind it.
	rec, err = r.pipe.Store().ByStagingTS(ctx, ts)
	if err != nil {
		return handled, err
	}
	if rec.PublishedTS != "" {
		_, err = r.chat.PostMessage(ctx, chat.Message{
			Channel:  r.pipe.Channels().Confessions,
			ThreadTS: rec.PublishedTS,
			Text:     pipeline.Sanitize(rec.Text),
		})
		if err != nil {
			return handled, fmt.Errorf("post TW thread contents: %w", err)
		}
	}
	return handled, nil
}

func (r *Router) handleReplySubmit(ctx context.Context, cb *slack.InteractionCallback, res callback.Result) (Result, error) {
	var payload replyPayload
	if res.Kind == callback.Legacy {
		// Old reply dialogs carried the bare published timestamp.
		if len(res.Fields) == 0 || res.Fields[0] == "" {
			return handled, fmt.Errorf("legacy reply callback carried no timestamp")
		}
		payload.TS = res.Fields[0]
	} else if err := res.Unmarshal(&payload); err != nil {
		return handled, err
	}
	reply := inputValue(cb, "reply", "confession_reply")

	rec, err := r.pipe.Store().ByPublishedTS(ctx, payload.TS)
	if err != nil {
		return handled, err
	}
	if !r.pipe.SameUser(rec, cb.User.ID) {
		return Result{
			Rejected: true,
			Body:     validationErrors("reply", "You are not the original poster of this confession."),
		}, nil
	}

	log.Printf("anonymous reply on confession #%d", rec.ID)
	_, err = r.chat.PostMessage(ctx, chat.Message{
		Channel:  r.audienceChannel(rec.Meta),
		ThreadTS: rec.PublishedTS,
		Text:     pipeline.Sanitize(reply),
	})
	if err != nil {
		return handled, fmt.Errorf("post anonymous reply: %w", err)
	}
	return handled, nil
}

func (r *Router) handleReactSubmit(ctx context.Context, cb *slack.InteractionCallback, res callback.Result) (Result, error) {
	var payload reactPayload
	if res.Kind == callback.Legacy {
		// Old react dialogs carried published_ts and the reacted-to ts;
		// the channel comes from the record's audience.
		if len(res.Fields) < 2 {
			return handled, fmt.Errorf("legacy react callback carried %d fields, want 2", len(res.Fields))
		}
		rec, err := r.pipe.Store().ByPublishedTS(ctx, res.Fields[0])
		if err != nil {
			return handled, err
		}
		payload = reactPayload{ID: rec.ID, TS: res.Fields[1], Channel: r.audienceChannel(rec.Meta)}
	} else if err := res.Unmarshal(&payload); err != nil {
		return handled, err
	}
	name := cb.View.State.Values["emoji"]["emoji"].SelectedOption.Value
	name = strings.Trim(name, ":")
	if name == "" {
		return Result{
			Rejected: true,
			Body:     validationErrors("emoji", "Select an emoji first."),
		}, nil
	}

	log.Printf("anonymous react %q on confession #%d", name, payload.ID)
	return handled, r.chat.AddReaction(ctx, name, payload.Channel, payload.TS)
}

func (r *Router) handleUndoConfirm(ctx context.Context, cb *slack.InteractionCallback, res callback.Result) (Result, error) {
	if res.Kind == callback.Legacy {
		return handled, fmt.Errorf("undo callback in legacy format")
	}
	var payload undoPayload
	if err := res.Unmarshal(&payload); err != nil {
		return handled, err
	}
	log.Printf("undo confirmed for message ts=%s", payload.TS)
	return handled, r.pipe.Unview(ctx, payload.TS, payload.ReviewerUID, payload.UndoerUID)
}
