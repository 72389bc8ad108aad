package httpapi_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/veilhq/veil/internal/blockkit"
	"github.com/veilhq/veil/internal/chat"
	"github.com/veilhq/veil/internal/config"
	"github.com/veilhq/veil/internal/emoji"
	"github.com/veilhq/veil/internal/httpapi"
	"github.com/veilhq/veil/internal/integrity"
	"github.com/veilhq/veil/internal/interaction"
	"github.com/veilhq/veil/internal/models"
	"github.com/veilhq/veil/internal/pipeline"
	"github.com/veilhq/veil/internal/store"
	"github.com/veilhq/veil/internal/ws"
)

type fakeStore struct {
	nextID  uint
	records map[uint]*models.Confession
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1, records: make(map[uint]*models.Confession)}
}

func (s *fakeStore) Create(_ context.Context, c *models.Confession) error {
	c.ID = s.nextID
	s.nextID++
	cp := *c
	s.records[c.ID] = &cp
	return nil
}

func (s *fakeStore) Save(_ context.Context, c *models.Confession) error {
	cp := *c
	s.records[c.ID] = &cp
	return nil
}

func (s *fakeStore) Delete(_ context.Context, c *models.Confession) error {
	delete(s.records, c.ID)
	return nil
}

func (s *fakeStore) ByStagingTS(_ context.Context, ts string) (*models.Confession, error) {
	for _, c := range s.records {
		if c.StagingTS == ts {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeStore) ByPublishedTS(_ context.Context, ts ...string) (*models.Confession, error) {
	for _, c := range s.records {
		for _, t := range ts {
			if c.PublishedTS == t && t != "" {
				cp := *c
				return &cp, nil
			}
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeStore) Unviewed(_ context.Context) ([]models.Confession, error) {
	var out []models.Confession
	for _, c := range s.records {
		if !c.Viewed {
			out = append(out, *c)
		}
	}
	return out, nil
}

type fakeChat struct {
	nextTS    int
	posted    []chat.Message
	responses []string
}

func (f *fakeChat) PostMessage(_ context.Context, m chat.Message) (string, error) {
	f.nextTS++
	f.posted = append(f.posted, m)
	return fmt.Sprintf("%d.000000", 100+f.nextTS), nil
}

func (f *fakeChat) UpdateMessage(context.Context, string, string, string, blockkit.Blocks) error {
	return nil
}
func (f *fakeChat) DeleteMessage(context.Context, string, string) error     { return nil }
func (f *fakeChat) OpenView(context.Context, string, chat.View) error       { return nil }
func (f *fakeChat) Replies(context.Context, string, string) ([]string, error) {
	return nil, nil
}
func (f *fakeChat) AddReaction(context.Context, string, string, string) error { return nil }
func (f *fakeChat) CustomEmoji(context.Context) (map[string]string, error)    { return nil, nil }
func (f *fakeChat) MessageText(context.Context, string, string) (string, error) {
	return "", nil
}

func (f *fakeChat) Respond(_ context.Context, _ string, r chat.Response) error {
	f.responses = append(f.responses, r.Text)
	return nil
}

type fixture struct {
	engine   *gin.Engine
	verifier *integrity.Verifier
	nonces   *integrity.NonceStore
	store    *fakeStore
	chat     *fakeChat
}

func newFixture(t *testing.T, forwardBase string) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	verifier := integrity.NewVerifier("test-secret")
	nonces := integrity.NewNonceStore()
	st := newFakeStore()
	ch := &fakeChat{}

	p := pipeline.New(st, ch, pipeline.Channels{
		Staging:         "CSTAGE",
		Confessions:     "CCONF",
		Meta:            "CMETA",
		ConfessionsMeta: "CCONFMETA",
	})
	env := &httpapi.Env{
		Pipe:      p,
		Router:    interaction.NewRouter(p, ch, emoji.NewSource(ch)),
		Chat:      ch,
		Forwarder: integrity.NewForwarder(nonces, forwardBase),
		Hub:       ws.NewHub(),
		Limiter:   httpapi.NewUserRateLimiter(rate.Limit(1.0/3.0), 1),
	}
	cfg := &config.Config{AdminToken: "s3cret"}

	engine := gin.New()
	httpapi.SetupRoutes(engine, env, cfg, verifier, nonces)
	return &fixture{engine: engine, verifier: verifier, nonces: nonces, store: st, chat: ch}
}

func (f *fixture) signedRequest(method, path, body, contentType string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	ts := fmt.Sprint(time.Now().Unix())
	req.Header.Set(integrity.TimestampHeader, ts)
	req.Header.Set(integrity.SignatureHeader, f.verifier.Sign(ts, []byte(body)))
	return req
}

func slashForm(text, channelID string) string {
	v := url.Values{}
	v.Set("command", "/confess")
	v.Set("text", text)
	v.Set("user_id", "UALICE")
	v.Set("channel_id", channelID)
	v.Set("response_url", "https://hooks.example.com/respond")
	return v.Encode()
}

const formContentType = "application/x-www-form-urlencoded"

func TestRejectsBadSignature(t *testing.T) {
	f := newFixture(t, "")

	req := httptest.NewRequest(http.MethodPost, "/api/confess", strings.NewReader(slashForm("hi", "DALICE")))
	req.Header.Set("Content-Type", formContentType)
	req.Header.Set(integrity.TimestampHeader, fmt.Sprint(time.Now().Unix()))
	req.Header.Set(integrity.SignatureHeader, "v0=deadbeef")

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.store.records)
}

func TestConfessHelpOnEmptyText(t *testing.T) {
	f := newFixture(t, "")

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, f.signedRequest(http.MethodPost, "/api/confess", slashForm("  ", "DALICE"), formContentType))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/confess")
	assert.Empty(t, f.store.records)
}

func TestWorkEndpointRequiresNonce(t *testing.T) {
	f := newFixture(t, "")

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, f.signedRequest(http.MethodPost, "/api/confess_work", slashForm("hi", "DALICE"), formContentType))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.store.records)
}

func TestConfessWorkStages(t *testing.T) {
	f := newFixture(t, "")

	req := f.signedRequest(http.MethodPost, "/api/confess_work", slashForm("i saw a ghost", "DALICE"), formContentType)
	req.Header.Set(integrity.NonceHeader, f.nonces.Mint("/api/confess_work"))

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.store.records, 1)
	assert.Equal(t, "i saw a ghost", f.store.records[1].Text)
	require.Len(t, f.chat.responses, 1)
	assert.Contains(t, f.chat.responses[0], "#1")
}

func TestConfessWorkRejectsNonDM(t *testing.T) {
	f := newFixture(t, "")

	req := f.signedRequest(http.MethodPost, "/api/confess_work", slashForm("i saw a ghost", "CGENERAL"), formContentType)
	req.Header.Set(integrity.NonceHeader, f.nonces.Mint("/api/confess_work"))

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.store.records)
	require.Len(t, f.chat.responses, 1)
	assert.Contains(t, f.chat.responses[0], "i saw a ghost")
}

func TestEventsAnswersURLVerification(t *testing.T) {
	f := newFixture(t, "")

	body := `{"type":"url_verification","challenge":"abc123"}`
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, f.signedRequest(http.MethodPost, "/api/events", body, "application/json"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc123", w.Body.String())
}

func TestEventsWorkPostsDMConfirmation(t *testing.T) {
	f := newFixture(t, "")

	body := `{"type":"event_callback","event":{"type":"message","channel":"DALICE","channel_type":"im","user":"UALICE","ts":"111.000100","text":"a dm confession"}}`
	req := f.signedRequest(http.MethodPost, "/api/events_work", body, "application/json")
	req.Header.Set(integrity.NonceHeader, f.nonces.Mint("/api/events_work"))

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.chat.posted, 1)
	assert.Equal(t, "DALICE", f.chat.posted[0].Channel)
	assert.Equal(t, "111.000100", f.chat.posted[0].ThreadTS)
}

func TestEventsWorkIgnoresBotMessages(t *testing.T) {
	f := newFixture(t, "")

	body := `{"type":"event_callback","event":{"type":"message","channel":"DALICE","channel_type":"im","bot_id":"B123","ts":"111.000100","text":"echo"}}`
	req := f.signedRequest(http.MethodPost, "/api/events_work", body, "application/json")
	req.Header.Set(integrity.NonceHeader, f.nonces.Mint("/api/events_work"))

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.chat.posted)
}

func TestEmojiSuggestServesOptions(t *testing.T) {
	f := newFixture(t, "")

	payload := url.Values{}
	payload.Set("payload", `{"type":"block_suggestion","value":"tad"}`)
	body := payload.Encode()

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, f.signedRequest(http.MethodPost, "/api/emoji_suggest", body, formContentType))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"options"`)
	assert.Contains(t, w.Body.String(), ":tada:")
}

func TestAdminReviveAuth(t *testing.T) {
	f := newFixture(t, "")

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/admin/revive", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/revive", nil)
	req.Header.Set("X-Admin-Token", "wrong")
	w = httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/admin/revive", nil)
	req.Header.Set("X-Admin-Token", "s3cret")
	w = httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, "")

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPublicConfessForwardsToWork(t *testing.T) {
	received := make(chan *http.Request, 1)
	bodies := make(chan string, 1)
	work := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies <- string(b)
		received <- r.Clone(context.Background())
		w.WriteHeader(http.StatusOK)
	}))
	defer work.Close()

	f := newFixture(t, work.URL)

	body := slashForm("i saw a ghost", "DALICE")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, f.signedRequest(http.MethodPost, "/api/confess", body, formContentType))
	assert.Equal(t, http.StatusOK, w.Code)

	select {
	case r := <-received:
		assert.Equal(t, "/api/confess_work", r.URL.Path)
		require.NoError(t, f.nonces.Verify("/api/confess_work", r.Header.Get(integrity.NonceHeader)))
		assert.Equal(t, body, <-bodies)
	case <-time.After(2 * time.Second):
		t.Fatal("work endpoint was never called")
	}
}

func TestConfessRateLimited(t *testing.T) {
	work := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer work.Close()

	f := newFixture(t, work.URL)

	first := httptest.NewRecorder()
	f.engine.ServeHTTP(first, f.signedRequest(http.MethodPost, "/api/confess", slashForm("one", "DALICE"), formContentType))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	f.engine.ServeHTTP(second, f.signedRequest(http.MethodPost, "/api/confess", slashForm("two", "DALICE"), formContentType))
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), "too quickly")
}
