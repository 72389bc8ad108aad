package emoji_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilhq/veil/internal/blockkit"
	"github.com/veilhq/veil/internal/chat"
	"github.com/veilhq/veil/internal/emoji"
)

type stubChat struct {
	custom    map[string]string
	customErr error
}

func (s *stubChat) PostMessage(context.Context, chat.Message) (string, error) { return "", nil }
func (s *stubChat) UpdateMessage(context.Context, string, string, string, blockkit.Blocks) error {
	return nil
}
func (s *stubChat) DeleteMessage(context.Context, string, string) error        { return nil }
func (s *stubChat) OpenView(context.Context, string, chat.View) error          { return nil }
func (s *stubChat) Replies(context.Context, string, string) ([]string, error)  { return nil, nil }
func (s *stubChat) AddReaction(context.Context, string, string, string) error  { return nil }
func (s *stubChat) MessageText(context.Context, string, string) (string, error) { return "", nil }
func (s *stubChat) Respond(context.Context, string, chat.Response) error       { return nil }
func (s *stubChat) CustomEmoji(context.Context) (map[string]string, error) {
	return s.custom, s.customErr
}

func TestSuggestFiltersByPrefix(t *testing.T) {
	src := emoji.NewSource(&stubChat{})

	got := src.Suggest(context.Background(), "smil")
	require.NotEmpty(t, got)
	for _, code := range got {
		assert.True(t, strings.HasPrefix(code, ":smil"), "got %s", code)
	}
}

func TestSuggestCapsAt100(t *testing.T) {
	src := emoji.NewSource(&stubChat{})
	got := src.Suggest(context.Background(), "")
	assert.Len(t, got, 100)
}

func TestSuggestIncludesCustomEmoji(t *testing.T) {
	src := emoji.NewSource(&stubChat{custom: map[string]string{"zorble": "https://example.com/z.png"}})
	got := src.Suggest(context.Background(), "zorble")
	assert.Contains(t, got, ":zorble:")
}

func TestSuggestSurvivesCustomEmojiFailure(t *testing.T) {
	src := emoji.NewSource(&stubChat{customErr: errors.New("timeout")})
	got := src.Suggest(context.Background(), "smil")
	assert.NotEmpty(t, got)
}

func TestSuggestStripsNonLetters(t *testing.T) {
	src := emoji.NewSource(&stubChat{})
	// ":smil" and "smil" and "s:mil" all normalize to the same prefix
	a := src.Suggest(context.Background(), ":smil")
	b := src.Suggest(context.Background(), "smil")
	assert.Equal(t, b, a)
}
