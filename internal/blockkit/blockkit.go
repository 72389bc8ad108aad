// Package blockkit composes Slack Block Kit fragments from typed values.
//
// Every node is an immutable value with a single Render method producing
// the vendor's JSON shape. Composite nodes render their children in
// insertion order. Rendering is pure and cannot fail; nesting legality
// beyond what the types enforce is the caller's problem, same as with
// hand-built JSON literals.
package blockkit

// Text is a text object: PlainText or Markdown.
type Text interface {
	renderText() map[string]any
}

// Block is anything that may appear in a message's blocks array.
type Block interface {
	Render() map[string]any
}

// Element is an interactive element usable inside an actions block or
// as a section accessory.
type Element interface {
	renderElement() map[string]any
}

// PlainText renders a plain_text object. Emoji is on unless disabled
// with NoEmoji.
type PlainText struct {
	Text    string
	NoEmoji bool
}

func (t PlainText) renderText() map[string]any {
	return map[string]any{
		"type":  "plain_text",
		"text":  t.Text,
		"emoji": !t.NoEmoji,
	}
}

// Render lets a PlainText be used directly where Slack expects a bare
// text object (modal titles, submit/close labels).
func (t PlainText) Render() map[string]any { return t.renderText() }

// Markdown renders an mrkdwn text object.
type Markdown struct {
	Text string
}

func (t Markdown) renderText() map[string]any {
	return map[string]any{
		"type": "mrkdwn",
		"text": t.Text,
	}
}

// TextSection is a section block with optional block_id and accessory.
type TextSection struct {
	Text      Text
	BlockID   string
	Accessory Element
}

func (s TextSection) Render() map[string]any {
	out := map[string]any{
		"type": "section",
		"text": s.Text.renderText(),
	}
	if s.BlockID != "" {
		out["block_id"] = s.BlockID
	}
	if s.Accessory != nil {
		out["accessory"] = s.Accessory.renderElement()
	}
	return out
}

// ActionsSection is an actions block holding interactive elements.
type ActionsSection struct {
	Elements []Element
}

func (s ActionsSection) Render() map[string]any {
	elements := make([]map[string]any, 0, len(s.Elements))
	for _, el := range s.Elements {
		elements = append(elements, el.renderElement())
	}
	return map[string]any{
		"type":     "actions",
		"elements": elements,
	}
}

// InputSection is an input block wrapping a single element.
type InputSection struct {
	Element Element
	Label   PlainText
	BlockID string
}

func (s InputSection) Render() map[string]any {
	return map[string]any{
		"type":     "input",
		"block_id": s.BlockID,
		"element":  s.Element.renderElement(),
		"label":    s.Label.renderText(),
	}
}

// Button is a button element.
type Button struct {
	Text     PlainText
	Value    string
	ActionID string
}

func (b Button) renderElement() map[string]any {
	return map[string]any{
		"type":      "button",
		"text":      b.Text.renderText(),
		"value":     b.Value,
		"action_id": b.ActionID,
	}
}

// ExternalSelect is an external_select element whose options are served
// by the block-suggestion endpoint.
type ExternalSelect struct {
	Placeholder    PlainText
	MinQueryLength int
	ActionID       string
}

func (e ExternalSelect) renderElement() map[string]any {
	return map[string]any{
		"type":             "external_select",
		"placeholder":      e.Placeholder.renderText(),
		"min_query_length": e.MinQueryLength,
		"action_id":        e.ActionID,
	}
}

// PlainTextInput is a plain_text_input element.
type PlainTextInput struct {
	ActionID  string
	Multiline bool
}

func (p PlainTextInput) renderElement() map[string]any {
	return map[string]any{
		"type":      "plain_text_input",
		"multiline": p.Multiline,
		"action_id": p.ActionID,
	}
}

// Blocks is the root wrapper: an ordered list of blocks.
type Blocks []Block

// Render produces the blocks array in insertion order.
func (b Blocks) Render() []map[string]any {
	out := make([]map[string]any, 0, len(b))
	for _, blk := range b {
		out = append(out, blk.Render())
	}
	return out
}
