package aggregate

import (
	"bytes"
	"encoding/json"
)

// PayloadTLEs holds the element lines collected for one payload.
type PayloadTLEs struct {
	ID    string
	Lines []string
}

// Result is the aggregate for one mission. Payloads skipped because the
// budget ran out are absent; a payload that was attempted is present even
// when it produced no lines.
type Result struct {
	MissionID string
	Payloads  []PayloadTLEs

	// Spent and Limit describe the transaction budget of the request.
	Spent int
	Limit int

	// Truncated is set when at least one catalog ID was not queried
	// because of the budget.
	Truncated bool
}

// Lines returns the lines for payloadID and whether the payload is present.
func (r *Result) Lines(payloadID string) ([]string, bool) {
	for _, p := range r.Payloads {
		if p.ID == payloadID {
			return p.Lines, true
		}
	}
	return nil, false
}

// MarshalJSON encodes the result as a JSON object keyed by payload ID in
// resolution order. Present payloads without lines encode as [].
func (r Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range r.Payloads {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.ID)
		if err != nil {
			return nil, err
		}
		lines := p.Lines
		if lines == nil {
			lines = []string{}
		}
		value, err := json.Marshal(lines)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
