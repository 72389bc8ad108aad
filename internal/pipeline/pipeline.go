// Package pipeline moves a confession through its review lifecycle:
// staged into the review channel, approved or rejected by a moderator,
// published anonymously, and possibly undone. Every operation refetches
// the record by its correlation timestamp instead of trusting callback
// state, since Slack retries and duplicate clicks deliver stale data.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/slack-go/slack"

	"github.com/veilhq/veil/internal/blockkit"
	"github.com/veilhq/veil/internal/chat"
	"github.com/veilhq/veil/internal/models"
)

// UndoWindow bounds how long after a review the undo action works.
const UndoWindow = 7 * 24 * time.Hour

// Store is the confession repository the pipeline runs against.
type Store interface {
	Create(ctx context.Context, c *models.Confession) error
	Save(ctx context.Context, c *models.Confession) error
	Delete(ctx context.Context, c *models.Confession) error
	ByStagingTS(ctx context.Context, ts string) (*models.Confession, error)
	ByPublishedTS(ctx context.Context, ts ...string) (*models.Confession, error)
	Unviewed(ctx context.Context) ([]models.Confession, error)
}

// Notifier receives lifecycle events for the dashboard feed. Delivery
// is fire-and-forget; it must never block or fail an operation.
type Notifier interface {
	Publish(kind string, confessionID uint)
}

// Channels names the Slack channels the pipeline posts into.
type Channels struct {
	Staging         string
	Confessions     string
	Meta            string
	ConfessionsMeta string
	// Log receives undo audit copies when set.
	Log string
}

// Pipeline is the moderation state machine. Two callbacks racing on the
// same record are only guarded by the already-viewed check; the
// fetch-then-act window is a known, unresolved hazard (see DESIGN.md).
type Pipeline struct {
	store    Store
	chat     chat.Client
	channels Channels
	notifier Notifier
	now      func() time.Time
}

type Option func(*Pipeline)

// WithNotifier attaches a lifecycle event sink.
func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(store Store, chatClient chat.Client, channels Channels, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:    store,
		chat:     chatClient,
		channels: channels,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) notify(kind string, id uint) {
	if p.notifier != nil {
		p.notifier.Publish(kind, id)
	}
}

// audienceChannel returns the publication channel for a record.
func (p *Pipeline) audienceChannel(meta bool) string {
	if meta {
		return p.channels.Meta
	}
	return p.channels.Confessions
}

func stagingActions() blockkit.Block {
	return blockkit.ActionsSection{Elements: []blockkit.Element{
		blockkit.Button{Text: blockkit.PlainText{Text: ":true: Approve"}, Value: "approve", ActionID: "approve"},
		blockkit.Button{Text: blockkit.PlainText{Text: ":angerydog: Approve with TW"}, Value: "approve:tw", ActionID: "approve:tw"},
		blockkit.Button{Text: blockkit.PlainText{Text: ":thread: Approve for meta"}, Value: "approve:meta", ActionID: "approve:meta"},
		blockkit.Button{Text: blockkit.PlainText{Text: ":x: Reject"}, Value: "disapprove", ActionID: "disapprove"},
	}}
}

func (p *Pipeline) postStagingMessage(ctx context.Context, id uint, text string) (string, error) {
	blocks := append(stagingSections(id, Sanitize(text)), stagingActions())
	ts, err := p.chat.PostMessage(ctx, chat.Message{
		Channel: p.channels.Staging,
		Blocks:  blocks,
	})
	if err != nil {
		return "", fmt.Errorf("post staging message: %w", err)
	}
	return ts, nil
}

// Stage inserts a new confession and posts it to the review channel.
// If the staging message cannot be posted the inserted record is rolled
// back and the post error propagates.
func (p *Pipeline) Stage(ctx context.Context, text, submitterID string) (uint, error) {
	salt := newSalt()
	hash, err := hashUID(submitterID, salt)
	if err != nil {
		return 0, err
	}

	rec := &models.Confession{
		Text:    text,
		UIDSalt: salt,
		UIDHash: hash,
	}
	if err := p.store.Create(ctx, rec); err != nil {
		return 0, err
	}

	ts, err := p.postStagingMessage(ctx, rec.ID, rec.Text)
	if err != nil {
		log.Printf("failed to post staging message, rolling back record %d", rec.ID)
		if delErr := p.store.Delete(ctx, rec); delErr != nil {
			log.Printf("rollback of record %d failed: %v", rec.ID, delErr)
		}
		return 0, err
	}

	rec.StagingTS = ts
	if err := p.store.Save(ctx, rec); err != nil {
		return 0, err
	}
	p.notify("staged", rec.ID)
	return rec.ID, nil
}

// StageDM posts a stage/cancel confirmation into a DM thread, used when
// a confession arrives as a direct message instead of a slash command.
func (p *Pipeline) StageDM(ctx context.Context, messageTS, channelID string) error {
	_, err := p.chat.PostMessage(ctx, chat.Message{
		Channel:   channelID,
		ThreadTS:  messageTS,
		Broadcast: true,
		Blocks: blockkit.Blocks{
			blockkit.TextSection{Text: blockkit.Markdown{Text: "Would you like to stage this confession?"}},
			blockkit.ActionsSection{Elements: []blockkit.Element{
				blockkit.Button{Text: blockkit.PlainText{Text: ":true: Stage"}, Value: "stage", ActionID: "stage"},
				blockkit.Button{Text: blockkit.PlainText{Text: ":x: Cancel"}, Value: "cancel", ActionID: "cancel"},
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("post confirmation message: %w", err)
	}
	return nil
}

func publishText(rec *models.Confession, twText string) string {
	if twText != "" {
		return fmt.Sprintf("*%d*: TW: %s, open thread for more", rec.ID, twText)
	}
	return fmt.Sprintf("*%d*: %s", rec.ID, rec.Text)
}

func (p *Pipeline) statusLine(approved bool, reviewerID string) string {
	verdict := ":true: Approved"
	if !approved {
		verdict = ":x: Rejected"
	}
	now := p.now()
	return fmt.Sprintf("%s by <@%s> <!date^%d^{date_short_pretty} at {time}|%s>.",
		verdict, reviewerID, now.Unix(), now.UTC().Format(time.RFC3339))
}

// View resolves a staged confession: approved or rejected. Calling it
// on an already-viewed record is a no-op, which absorbs duplicate
// button clicks and Slack retries. When approving, the confession is
// published to its audience channel first; the staging message is then
// rewritten with the verdict and an undo action.
func (p *Pipeline) View(ctx context.Context, stagingTS string, approved bool, reviewerID, twText string, isMeta bool) error {
	rec, err := p.store.ByStagingTS(ctx, stagingTS)
	if err != nil {
		return err
	}
	if rec.Viewed {
		log.Printf("confession %d already viewed, ignoring", rec.ID)
		return nil
	}

	publishedTS := ""
	if approved {
		publishedTS, err = p.chat.PostMessage(ctx, chat.Message{
			Channel: p.audienceChannel(isMeta),
			Text:    Sanitize(publishText(rec, twText)),
		})
		if err != nil {
			return fmt.Errorf("publish confession %d: %w", rec.ID, err)
		}
	}

	rec.Viewed = true
	rec.Approved = approved
	rec.PublishedTS = publishedTS
	rec.Meta = approved && isMeta
	if err := p.store.Save(ctx, rec); err != nil {
		return err
	}

	blocks := append(stagingSections(rec.ID, Sanitize(rec.Text)),
		blockkit.TextSection{Text: blockkit.Markdown{Text: p.statusLine(approved, reviewerID)}},
		blockkit.ActionsSection{Elements: []blockkit.Element{
			blockkit.Button{Text: blockkit.PlainText{Text: ":leftwards_arrow_with_hook: Undo"}, Value: "undo", ActionID: "undo"},
		}},
	)
	if err := p.chat.UpdateMessage(ctx, p.channels.Staging, stagingTS, "", blocks); err != nil {
		return fmt.Errorf("update staging message: %w", err)
	}

	if approved {
		p.notify("approved", rec.ID)
	} else {
		p.notify("rejected", rec.ID)
	}
	return nil
}

// Unview rolls a reviewed confession back to the staged state. A record
// that is not viewed is a no-op. Deleting the published message and its
// thread replies is best-effort: the bot cannot always attribute thread
// replies to itself, so each deletion is attempted independently and
// failures are swallowed.
func (p *Pipeline) Unview(ctx context.Context, stagingTS, reviewerID, undoerID string) error {
	rec, err := p.store.ByStagingTS(ctx, stagingTS)
	if err != nil {
		return err
	}
	if !rec.Viewed {
		log.Printf("confession %d not viewed, nothing to undo", rec.ID)
		return nil
	}

	wasApproved := rec.Approved
	publishedTS := rec.PublishedTS
	audience := p.audienceChannel(rec.Meta)

	rec.Viewed = false
	rec.Approved = false
	rec.PublishedTS = ""
	rec.Meta = false
	if err := p.store.Save(ctx, rec); err != nil {
		return err
	}

	if wasApproved && publishedTS != "" {
		replies, err := p.chat.Replies(ctx, audience, publishedTS)
		if err != nil {
			log.Printf("failed to list replies of %s: %v", publishedTS, err)
		}
		for _, replyTS := range replies {
			if err := p.chat.DeleteMessage(ctx, audience, replyTS); err != nil {
				log.Printf("failed to delete reply %s: %v", replyTS, err)
			}
		}
		if err := p.chat.DeleteMessage(ctx, audience, publishedTS); err != nil {
			log.Printf("failed to delete published message %s: %v", publishedTS, err)
		}
	}

	blocks := append(stagingSections(rec.ID, Sanitize(rec.Text)), stagingActions())
	if err := p.chat.UpdateMessage(ctx, p.channels.Staging, stagingTS, "", blocks); err != nil {
		return fmt.Errorf("restore staging message: %w", err)
	}

	note := fmt.Sprintf("Review of confession *%d* by <@%s> was undone by <@%s>.", rec.ID, reviewerID, undoerID)
	if _, err := p.chat.PostMessage(ctx, chat.Message{
		Channel:  p.channels.Staging,
		ThreadTS: stagingTS,
		Text:     note,
	}); err != nil {
		return fmt.Errorf("post undo audit note: %w", err)
	}
	if p.channels.Log != "" {
		if _, err := p.chat.PostMessage(ctx, chat.Message{Channel: p.channels.Log, Text: note}); err != nil {
			log.Printf("failed to copy undo note to log channel: %v", err)
		}
	}

	p.notify("undone", rec.ID)
	return nil
}

// retryAfterBackOff waits exactly what the platform asked for. Revive
// sets the duration from the rate-limit error before retrying.
type retryAfterBackOff struct {
	wait time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration { return b.wait }
func (b *retryAfterBackOff) Reset()                     {}

// Revive reposts the staging message of every unviewed confession,
// recovering the review queue after message loss. Stale messages are
// deleted best-effort; repost failures propagate except rate limits,
// which get a single retry after the platform-specified backoff.
func (p *Pipeline) Revive(ctx context.Context) error {
	recs, err := p.store.Unviewed(ctx)
	if err != nil {
		return err
	}

	for i := range recs {
		rec := &recs[i]
		if rec.StagingTS != "" {
			if err := p.chat.DeleteMessage(ctx, p.channels.Staging, rec.StagingTS); err != nil {
				log.Printf("failed to delete stale staging message %s: %v", rec.StagingTS, err)
			}
		}

		policy := &retryAfterBackOff{}
		var ts string
		post := func() error {
			var postErr error
			ts, postErr = p.postStagingMessage(ctx, rec.ID, rec.Text)
			if postErr == nil {
				return nil
			}
			var rl *slack.RateLimitedError
			if errors.As(postErr, &rl) {
				policy.wait = rl.RetryAfter
				return postErr
			}
			return backoff.Permanent(postErr)
		}
		if err := backoff.Retry(post, backoff.WithContext(backoff.WithMaxRetries(policy, 1), ctx)); err != nil {
			return fmt.Errorf("repost staging message for confession %d: %w", rec.ID, err)
		}

		rec.StagingTS = ts
		if err := p.store.Save(ctx, rec); err != nil {
			return err
		}
		p.notify("revived", rec.ID)
	}
	return nil
}

// Delete is the administrative delete-confession path: the published
// message is removed best-effort and the record is hard-deleted.
func (p *Pipeline) Delete(ctx context.Context, rec *models.Confession) error {
	if rec.PublishedTS != "" {
		if err := p.chat.DeleteMessage(ctx, p.audienceChannel(rec.Meta), rec.PublishedTS); err != nil {
			log.Printf("failed to delete published message %s: %v", rec.PublishedTS, err)
		}
	}
	return p.store.Delete(ctx, rec)
}

// SameUser is re-exported on the pipeline for callers holding one.
func (p *Pipeline) SameUser(rec *models.Confession, uid string) bool {
	return SameUser(rec, uid)
}

// Store exposes the repository for handlers that need direct lookups.
func (p *Pipeline) Store() Store { return p.store }

// Channels exposes the configured channel ids.
func (p *Pipeline) Channels() Channels { return p.channels }

var reviewerPattern = regexp.MustCompile(`by <@([A-Za-z0-9]+)>`)

// ReviewerFromStatus extracts the reviewer's user id from a staging
// message's verdict line. Empty when the line does not carry one.
func ReviewerFromStatus(text string) string {
	m := reviewerPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// UndoExpired reports whether the review happened longer than
// UndoWindow before now. reviewTS is a Slack message timestamp
// ("1700000000.000200"); an unparsable one counts as expired.
func UndoExpired(now time.Time, reviewTS string) bool {
	secs, err := strconv.ParseFloat(reviewTS, 64)
	if err != nil {
		return true
	}
	reviewed := time.Unix(int64(secs), 0)
	return now.Sub(reviewed) > UndoWindow
}
