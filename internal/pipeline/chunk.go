package pipeline

import (
	"fmt"
	"strings"

	"github.com/veilhq/veil/internal/blockkit"
)

// maxBlockText is Slack's per-section text limit.
const maxBlockText = 3000

// stagingChunks splits a confession into mrkdwn-sized chunks on word
// boundaries. The first chunk opens with the synthetic id header. A
// single token longer than the block limit is hard-split mid-token.
func stagingChunks(id uint, text string) []string {
	chunks := []string{fmt.Sprintf("(staging) *%d*", id)}
	for _, word := range strings.Split(text, " ") {
		for len(word) >= maxBlockText {
			chunks = append(chunks, word[:maxBlockText-1])
			word = word[maxBlockText-1:]
		}
		last := chunks[len(chunks)-1]
		if len(last)+len(word)+1 < maxBlockText {
			chunks[len(chunks)-1] = last + " " + word
		} else {
			chunks = append(chunks, word)
		}
	}
	return chunks
}

func stagingSections(id uint, text string) []blockkit.Block {
	chunks := stagingChunks(id, text)
	out := make([]blockkit.Block, 0, len(chunks))
	for _, chunk := range chunks {
		out = append(out, blockkit.TextSection{Text: blockkit.Markdown{Text: chunk}})
	}
	return out
}
