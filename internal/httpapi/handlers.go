package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/veilhq/veil/internal/chat"
	"github.com/veilhq/veil/internal/integrity"
	"github.com/veilhq/veil/internal/interaction"
	"github.com/veilhq/veil/internal/pipeline"
	"github.com/veilhq/veil/internal/ws"
)

const confessHelp = "Submit an anonymous confession with `/confess <text>` in a DM with this bot. " +
	"It will be reviewed by the moderators before being posted. " +
	"Sending the bot a plain direct message works too."

// Env holds the handlers' dependencies.
type Env struct {
	Pipe      *pipeline.Pipeline
	Router    *interaction.Router
	Chat      chat.Client
	Forwarder *integrity.Forwarder
	Hub       *ws.Hub
	Limiter   *UserRateLimiter
}

// forward re-posts the request to its _work twin in the background.
// The caller has already acked Slack.
func (e *Env) forward(c *gin.Context) {
	req := c.Request.Clone(context.Background())
	raw := rawBody(c)
	go func() {
		if err := e.Forwarder.Forward(context.Background(), req, raw); err != nil {
			log.Printf("forward failed: %v", err)
		}
	}()
}

// respond sends text to a response_url, logging delivery failures.
func (e *Env) respond(ctx context.Context, responseURL, text string) {
	if responseURL == "" {
		return
	}
	if err := e.Chat.Respond(ctx, responseURL, chat.Response{Text: text}); err != nil {
		log.Printf("response_url delivery failed: %v", err)
	}
}

func parseInteraction(raw []byte) (*slack.InteractionCallback, error) {
	form, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse interaction form: %w", err)
	}
	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(form.Get("payload")), &cb); err != nil {
		return nil, fmt.Errorf("parse interaction payload: %w", err)
	}
	return &cb, nil
}

// --- /api/confess ---

func (e *Env) ConfessPublic(c *gin.Context) {
	cmd, err := slack.SlashCommandParse(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad slash command"})
		return
	}

	if strings.TrimSpace(cmd.Text) == "" {
		c.JSON(http.StatusOK, gin.H{"response_type": "ephemeral", "text": confessHelp})
		return
	}
	if !e.Limiter.Allow(cmd.UserID) {
		c.JSON(http.StatusOK, gin.H{
			"response_type": "ephemeral",
			"text":          "You are submitting confessions too quickly. Please wait a moment.",
		})
		return
	}

	e.forward(c)
	c.Status(http.StatusOK)
}

func (e *Env) ConfessWork(c *gin.Context) {
	cmd, err := slack.SlashCommandParse(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad slash command"})
		return
	}
	ctx := c.Request.Context()

	// Confessions are only accepted over DM so the submission itself
	// stays invisible. The text goes back so nothing typed is lost.
	if !strings.HasPrefix(cmd.ChannelID, "D") {
		e.respond(ctx, cmd.ResponseURL,
			"`/confess` only works in a DM with this bot. Here is what you wrote, for easy copying:\n```"+cmd.Text+"```")
		c.Status(http.StatusOK)
		return
	}

	id, err := e.Pipe.Stage(ctx, cmd.Text, cmd.UserID)
	if err != nil {
		log.Printf("staging failed: %v", err)
		e.respond(ctx, cmd.ResponseURL, "Something went wrong staging your confession. Please try again.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "staging failed"})
		return
	}

	e.respond(ctx, cmd.ResponseURL, fmt.Sprintf("Your confession has been staged for review as *#%d*.", id))
	c.Status(http.StatusOK)
}

// --- /api/interaction ---

// InteractionPublic acks Slack and hands the payload to the work
// endpoint. View submissions are the exception: their response body
// (validation errors) only takes effect when returned synchronously.
func (e *Env) InteractionPublic(c *gin.Context) {
	cb, err := parseInteraction(rawBody(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		return
	}

	if cb.Type == slack.InteractionTypeViewSubmission {
		e.runInteraction(c, cb)
		return
	}

	e.forward(c)
	c.Status(http.StatusOK)
}

func (e *Env) InteractionWork(c *gin.Context) {
	cb, err := parseInteraction(rawBody(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		return
	}
	e.runInteraction(c, cb)
}

func (e *Env) runInteraction(c *gin.Context, cb *slack.InteractionCallback) {
	ctx := c.Request.Context()
	res, err := e.Router.Handle(ctx, cb)
	if err != nil {
		log.Printf("interaction %s failed: %v", cb.Type, err)
		e.respond(ctx, cb.ResponseURL, "Something went wrong handling that action. Please try again.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "interaction failed"})
		return
	}
	if res.Body != nil {
		c.JSON(http.StatusOK, res.Body)
		return
	}
	c.Status(http.StatusOK)
}

// --- /api/events ---

func (e *Env) EventsPublic(c *gin.Context) {
	raw := rawBody(c)
	event, err := slackevents.ParseEvent(json.RawMessage(raw), slackevents.OptionNoVerifyToken())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad event"})
		return
	}

	if event.Type == slackevents.URLVerification {
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(raw, &challenge); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad challenge"})
			return
		}
		c.String(http.StatusOK, challenge.Challenge)
		return
	}

	e.forward(c)
	c.Status(http.StatusOK)
}

func (e *Env) EventsWork(c *gin.Context) {
	event, err := slackevents.ParseEvent(json.RawMessage(rawBody(c)), slackevents.OptionNoVerifyToken())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad event"})
		return
	}
	if event.Type != slackevents.CallbackEvent {
		c.Status(http.StatusOK)
		return
	}

	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		// Only fresh human DMs: no bot echoes, no edits or joins.
		if ev.ChannelType != "im" || ev.BotID != "" || ev.SubType != "" {
			break
		}
		if err := e.Pipe.StageDM(c.Request.Context(), ev.TimeStamp, ev.Channel); err != nil {
			log.Printf("DM confirmation failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "confirmation failed"})
			return
		}
	}
	c.Status(http.StatusOK)
}

// --- /api/emoji_suggest ---

// EmojiSuggest serves external-select options. Slack renders whatever
// this response contains, so unlike the other endpoints it cannot be
// forwarded.
func (e *Env) EmojiSuggest(c *gin.Context) {
	cb, err := parseInteraction(rawBody(c))
	if err != nil || cb.Type != slack.InteractionTypeBlockSuggestion {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		return
	}

	res, err := e.Router.Handle(c.Request.Context(), cb)
	if err != nil {
		log.Printf("emoji suggestion failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "suggestion failed"})
		return
	}
	c.JSON(http.StatusOK, res.Body)
}

// --- /api/revive ---

func (e *Env) RevivePublic(c *gin.Context) {
	e.forward(c)
	c.JSON(http.StatusOK, gin.H{"response_type": "ephemeral", "text": "Reviving staged confessions..."})
}

func (e *Env) ReviveWork(c *gin.Context) {
	cmd, err := slack.SlashCommandParse(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad slash command"})
		return
	}
	ctx := c.Request.Context()

	if err := e.Pipe.Revive(ctx); err != nil {
		log.Printf("revive failed: %v", err)
		e.respond(ctx, cmd.ResponseURL, "Revive failed, check the server logs.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "revive failed"})
		return
	}
	e.respond(ctx, cmd.ResponseURL, "All staged confessions have been revived.")
	c.Status(http.StatusOK)
}

// AdminRevive is the scheduler-facing revive trigger.
func (e *Env) AdminRevive(c *gin.Context) {
	if err := e.Pipe.Revive(c.Request.Context()); err != nil {
		log.Printf("admin revive failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "revive failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (e *Env) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
