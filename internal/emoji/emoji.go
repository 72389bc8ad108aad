// Package emoji serves the external-select suggestion options for the
// anonymous-react modal.
package emoji

import (
	"context"
	"log"
	"regexp"
	"sort"
	"time"

	kemoji "github.com/kyokomi/emoji/v2"

	"github.com/veilhq/veil/internal/chat"
)

const (
	maxOptions    = 100
	customTimeout = 3 * time.Second
)

var nonLetters = regexp.MustCompile(`[^a-zA-Z]`)

// Source combines the builtin emoji catalog with the workspace's custom
// emoji. The custom listing is best-effort: on timeout or error the
// builtin catalog is served alone.
type Source struct {
	chat    chat.Client
	builtin []string
}

func NewSource(chatClient chat.Client) *Source {
	codes := kemoji.CodeMap()
	builtin := make([]string, 0, len(codes))
	for code := range codes {
		builtin = append(builtin, code)
	}
	sort.Strings(builtin)
	return &Source{chat: chatClient, builtin: builtin}
}

// Suggest returns up to 100 ":name:" codes matching the query prefix.
func (s *Source) Suggest(ctx context.Context, query string) []string {
	list := s.builtin

	tctx, cancel := context.WithTimeout(ctx, customTimeout)
	defer cancel()
	custom, err := s.chat.CustomEmoji(tctx)
	if err != nil {
		log.Printf("failed to retrieve custom emoji: %v", err)
	} else {
		list = append(append([]string{}, list...), customCodes(custom)...)
	}

	prefix := ":" + nonLetters.ReplaceAllString(query, "")
	var out []string
	for _, code := range list {
		if len(out) >= maxOptions {
			break
		}
		if len(code) >= len(prefix) && code[:len(prefix)] == prefix {
			out = append(out, code)
		}
	}
	return out
}

func customCodes(custom map[string]string) []string {
	out := make([]string, 0, len(custom))
	for name := range custom {
		out = append(out, ":"+name+":")
	}
	sort.Strings(out)
	return out
}
