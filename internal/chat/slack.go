package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/veilhq/veil/internal/blockkit"
)

// Slack implements Client over the slack-go Web API client.
type Slack struct {
	api *slack.Client
}

func NewSlack(botToken string) *Slack {
	return &Slack{api: slack.New(botToken)}
}

// rawBlock feeds an already-rendered block through slack-go's typed
// message options without re-modeling it in slack-go's block types.
type rawBlock struct {
	raw json.RawMessage
}

func (b rawBlock) BlockType() slack.MessageBlockType { return "" }
func (b rawBlock) ID() string                        { return "" }
func (b rawBlock) MarshalJSON() ([]byte, error)      { return b.raw, nil }

func apiBlocks(blocks blockkit.Blocks) []slack.Block {
	out := make([]slack.Block, 0, len(blocks))
	for _, rendered := range blocks.Render() {
		data, err := json.Marshal(rendered)
		if err != nil {
			// rendered blocks are plain maps of strings and numbers
			panic(err)
		}
		out = append(out, rawBlock{raw: data})
	}
	return out
}

func (s *Slack) PostMessage(ctx context.Context, m Message) (string, error) {
	opts := []slack.MsgOption{slack.MsgOptionText(m.Text, false)}
	if len(m.Blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(apiBlocks(m.Blocks)...))
	}
	if m.ThreadTS != "" {
		opts = append(opts, slack.MsgOptionTS(m.ThreadTS))
	}
	if m.Broadcast {
		opts = append(opts, slack.MsgOptionBroadcast())
	}
	_, ts, err := s.api.PostMessageContext(ctx, m.Channel, opts...)
	if err != nil {
		return "", fmt.Errorf("post message to %s: %w", m.Channel, err)
	}
	return ts, nil
}

func (s *Slack) UpdateMessage(ctx context.Context, channel, ts, text string, blocks blockkit.Blocks) error {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if len(blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(apiBlocks(blocks)...))
	}
	_, _, _, err := s.api.UpdateMessageContext(ctx, channel, ts, opts...)
	if err != nil {
		return fmt.Errorf("update message %s in %s: %w", ts, channel, err)
	}
	return nil
}

func (s *Slack) DeleteMessage(ctx context.Context, channel, ts string) error {
	_, _, err := s.api.DeleteMessageContext(ctx, channel, ts)
	if err != nil {
		return fmt.Errorf("delete message %s in %s: %w", ts, channel, err)
	}
	return nil
}

func (s *Slack) OpenView(ctx context.Context, triggerID string, v View) error {
	modal := slack.ModalViewRequest{
		Type:       slack.VTModal,
		CallbackID: v.CallbackID,
		Title:      slack.NewTextBlockObject("plain_text", v.Title, true, false),
		Close:      slack.NewTextBlockObject("plain_text", v.Close, true, false),
		Blocks:     slack.Blocks{BlockSet: apiBlocks(v.Blocks)},
	}
	if v.Submit != "" {
		modal.Submit = slack.NewTextBlockObject("plain_text", v.Submit, true, false)
	}
	if _, err := s.api.OpenViewContext(ctx, triggerID, modal); err != nil {
		return fmt.Errorf("open view: %w", err)
	}
	return nil
}

func (s *Slack) Replies(ctx context.Context, channel, ts string) ([]string, error) {
	var out []string
	cursor := ""
	for {
		msgs, hasMore, next, err := s.api.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
			ChannelID: channel,
			Timestamp: ts,
			Cursor:    cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("list replies of %s in %s: %w", ts, channel, err)
		}
		for _, m := range msgs {
			if m.Timestamp != ts {
				out = append(out, m.Timestamp)
			}
		}
		if !hasMore {
			return out, nil
		}
		cursor = next
	}
}

func (s *Slack) AddReaction(ctx context.Context, name, channel, ts string) error {
	if err := s.api.AddReactionContext(ctx, name, slack.NewRefToMessage(channel, ts)); err != nil {
		return fmt.Errorf("add reaction %s: %w", name, err)
	}
	return nil
}

func (s *Slack) CustomEmoji(ctx context.Context) (map[string]string, error) {
	emoji, err := s.api.GetEmojiContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list custom emoji: %w", err)
	}
	return emoji, nil
}

func (s *Slack) MessageText(ctx context.Context, channel, latest string) (string, error) {
	resp, err := s.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channel,
		Latest:    latest,
		Inclusive: true,
		Limit:     1,
	})
	if err != nil {
		return "", fmt.Errorf("fetch message %s in %s: %w", latest, channel, err)
	}
	if len(resp.Messages) == 0 {
		return "", fmt.Errorf("no message at ts %s in %s", latest, channel)
	}
	return resp.Messages[0].Text, nil
}

func (s *Slack) Respond(ctx context.Context, responseURL string, r Response) error {
	msg := &slack.WebhookMessage{Text: r.Text, ReplaceOriginal: r.Replace}
	if r.InChannel {
		msg.ResponseType = "in_channel"
	} else {
		msg.ResponseType = "ephemeral"
	}
	if err := slack.PostWebhookContext(ctx, responseURL, msg); err != nil {
		return fmt.Errorf("respond via response_url: %w", err)
	}
	return nil
}
