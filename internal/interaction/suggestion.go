package interaction

import (
	"context"

	"github.com/slack-go/slack"
)

// handleBlockSuggestion serves the external_select options for the
// react modal's emoji picker.
func (r *Router) handleBlockSuggestion(ctx context.Context, cb *slack.InteractionCallback) (Result, error) {
	names := r.emoji.Suggest(ctx, cb.Value)

	options := make([]map[string]any, 0, len(names))
	for _, name := range names {
		options = append(options, map[string]any{
			"text": map[string]any{
				"type":  "plain_text",
				"text":  name,
				"emoji": true,
			},
			"value": name,
		})
	}
	return Result{Body: map[string]any{"options": options}}, nil
}
