package pipeline

import "regexp"

var (
	namedMention = regexp.MustCompile(`<@[^|]+\|([^>]+)>`)
	bareMention  = regexp.MustCompile(`<@.*?>`)
	subteamPing  = regexp.MustCompile(`!subteam\^.*?\b`)
	massPing     = regexp.MustCompile(`<!(channel|here|everyone)>`)
)

// Sanitize strips Slack mention syntax from user-supplied text so an
// anonymous post cannot ping people or channels.
func Sanitize(message string) string {
	out := namedMention.ReplaceAllString(message, "[$1]")
	out = bareMention.ReplaceAllString(out, "[user]")
	out = subteamPing.ReplaceAllString(out, "[group]")
	out = massPing.ReplaceAllString(out, "<redacted for mass ping risk>")
	return out
}
