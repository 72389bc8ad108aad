package interaction

import (
	"context"
	"fmt"
	"log"

	"github.com/slack-go/slack"

	"github.com/veilhq/veil/internal/blockkit"
	"github.com/veilhq/veil/internal/callback"
	"github.com/veilhq/veil/internal/chat"
	"github.com/veilhq/veil/internal/pipeline"
)

func (r *Router) handleBlockAction(ctx context.Context, cb *slack.InteractionCallback) (Result, error) {
	if len(cb.ActionCallback.BlockActions) == 0 {
		log.Printf("block action payload carried no actions")
		return handled, nil
	}
	action := cb.ActionCallback.BlockActions[0].Value
	messageTS := cb.Message.Timestamp

	switch action {
	case "approve":
		log.Printf("approval of message ts=%s", messageTS)
		return handled, r.pipe.View(ctx, messageTS, true, cb.User.ID, "", false)

	case "approve:meta":
		log.Printf("meta approval of message ts=%s", messageTS)
		return handled, r.pipe.View(ctx, messageTS, true, cb.User.ID, "", true)

	case "disapprove":
		log.Printf("disapproval of message ts=%s", messageTS)
		return handled, r.chat.OpenView(ctx, cb.TriggerID, chat.View{
			CallbackID: callback.MustEncode("reject", messageTS),
			Title:      "Reject Confession",
			Submit:     "Reject",
			Close:      "Cancel",
			Blocks: blockkit.Blocks{
				blockkit.InputSection{
					Element: blockkit.PlainTextInput{ActionID: "reject_input", Multiline: true},
					Label:   blockkit.PlainText{Text: "reason"},
					BlockID: "reason",
				},
			},
		})

	case "approve:tw":
		log.Printf("TW approval of message ts=%s", messageTS)
		return handled, r.chat.OpenView(ctx, cb.TriggerID, chat.View{
			CallbackID: callback.MustEncode("approve_tw", messageTS),
			Title:      "Approve with TW",
			Submit:     "Approve",
			Close:      "Cancel",
			Blocks: blockkit.Blocks{
				blockkit.InputSection{
					Element: blockkit.PlainTextInput{ActionID: "approve_tw_input", Multiline: true},
					Label:   blockkit.PlainText{Text: "TW"},
					BlockID: "tw",
				},
			},
		})

	case "stage":
		return r.handleStage(ctx, cb)

	case "cancel":
		log.Printf("cancel of confirmation message ts=%s", messageTS)
		return handled, r.chat.DeleteMessage(ctx, cb.Channel.ID, messageTS)

	case "undo":
		return r.handleUndo(ctx, cb)

	default:
		log.Printf("unknown action value %q", action)
		return handled, nil
	}
}

// handleStage turns a DM-confirmed submission into a staged confession.
// The confession text is the root of the DM thread the confirmation
// message sits in.
func (r *Router) handleStage(ctx context.Context, cb *slack.InteractionCallback) (Result, error) {
	threadTS := cb.Message.ThreadTimestamp
	log.Printf("stage of message thread_ts=%s", threadTS)

	text, err := r.chat.MessageText(ctx, cb.Channel.ID, threadTS)
	if err != nil {
		return handled, fmt.Errorf("fetch confession contents: %w", err)
	}

	id, err := r.pipe.Stage(ctx, text, cb.User.ID)
	if err != nil {
		return handled, err
	}

	err = r.chat.UpdateMessage(ctx, cb.Channel.ID, cb.Message.Timestamp, "", blockkit.Blocks{
		blockkit.TextSection{Text: blockkit.Markdown{Text: fmt.Sprintf(":true: Staged as confession #%d", id)}},
	})
	return handled, err
}

// undoPayload round-trips through the undo confirmation modal.
type undoPayload struct {
	TS          string `json:"ts"`
	ReviewerUID string `json:"reviewer_uid"`
	UndoerUID   string `json:"undoer_uid"`
}

func (r *Router) handleUndo(ctx context.Context, cb *slack.InteractionCallback) (Result, error) {
	messageTS := cb.Message.Timestamp
	log.Printf("undo of review on message ts=%s", messageTS)

	reviewer := pipeline.ReviewerFromStatus(statusText(cb.Message))

	// The verdict was written by editing the staging message, so the
	// edit timestamp is the review time.
	reviewTS := messageTS
	if cb.Message.Edited != nil && cb.Message.Edited.Timestamp != "" {
		reviewTS = cb.Message.Edited.Timestamp
	}

	if pipeline.UndoExpired(r.now(), reviewTS) {
		return handled, r.chat.OpenView(ctx, cb.TriggerID, chat.View{
			Title: "Undo confession review",
			Close: "Close",
			Blocks: blockkit.Blocks{
				blockkit.TextSection{Text: blockkit.Markdown{
					Text: "It has been a week since the review of this confession, so you can not undo it.",
				}},
			},
		})
	}

	return handled, r.chat.OpenView(ctx, cb.TriggerID, chat.View{
		CallbackID: callback.MustEncode("undo_confirm", undoPayload{
			TS:          messageTS,
			ReviewerUID: reviewer,
			UndoerUID:   cb.User.ID,
		}),
		Title:  "Undo confession review",
		Submit: "Undo",
		Close:  "Cancel",
		Blocks: blockkit.Blocks{
			blockkit.TextSection{Text: blockkit.Markdown{
				Text: "Undoing approval is undoable, however replies will not be preserved.",
			}},
		},
	})
}

// statusText finds the verdict line in a reviewed staging message: the
// section block just above the actions row.
func statusText(msg slack.Message) string {
	blocks := msg.Blocks.BlockSet
	if len(blocks) < 2 {
		return ""
	}
	section, ok := blocks[len(blocks)-2].(*slack.SectionBlock)
	if !ok || section.Text == nil {
		return ""
	}
	return section.Text.Text
}
