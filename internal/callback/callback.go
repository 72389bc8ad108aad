// Package callback encodes dialog state into Slack view callback ids.
//
// A callback id is "<name>_" followed by base64-encoded JSON. Modals
// created before this format carried plain underscore-joined fields, and
// those ids can still be in flight when the bot restarts, so decoding
// falls back to the legacy form instead of failing.
package callback

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Kind tags a decode outcome.
type Kind int

const (
	// NoMatch means the id belongs to some other dialog. Not an error.
	NoMatch Kind = iota
	// Match means the id carried a JSON payload in the current format.
	Match
	// Legacy means the id used the old underscore-joined plain format.
	Legacy
)

// Result is the outcome of decoding a callback id against a dialog name.
type Result struct {
	Kind    Kind
	Payload json.RawMessage // set when Kind == Match
	Fields  []string        // set when Kind == Legacy
}

// Encode builds a callback id for the named dialog. The payload must be
// JSON-serializable.
func Encode(name string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode callback %s: %w", name, err)
	}
	return name + "_" + base64.StdEncoding.EncodeToString(data), nil
}

// MustEncode is Encode for payloads that cannot fail to marshal
// (strings, plain structs). It panics otherwise.
func MustEncode(name string, payload any) string {
	id, err := Encode(name, payload)
	if err != nil {
		panic(err)
	}
	return id
}

// Decode matches id against the named dialog. An id that does not start
// with the name yields NoMatch; a suffix that is not valid
// base64-wrapped JSON yields Legacy with the underscore-split fields.
func Decode(name, id string) Result {
	if !strings.HasPrefix(id, name+"_") {
		return Result{Kind: NoMatch}
	}
	data := id[len(name)+1:]

	raw, err := base64.StdEncoding.DecodeString(data)
	if err == nil && json.Valid(raw) {
		return Result{Kind: Match, Payload: json.RawMessage(raw)}
	}
	return Result{Kind: Legacy, Fields: strings.Split(data, "_")}
}

// Unmarshal reads a Match payload into v.
func (r Result) Unmarshal(v any) error {
	if r.Kind != Match {
		return fmt.Errorf("callback: no payload to unmarshal")
	}
	return json.Unmarshal(r.Payload, v)
}
