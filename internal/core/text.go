package core

import (
	"bytes"
	"encoding/json"
)

// Text is a free-form field of a month document.
//
// The UI writes strings, but documents may carry timestamp ids, numeric
// descriptions, booleans or null in the same places. The JSON value is
// kept exactly as written and encoded back unchanged; String gives the
// display form.
type Text struct {
	raw json.RawMessage
}

// NewText returns a Text holding a JSON string. The empty string is the
// zero Text.
func NewText(s string) Text {
	if s == "" {
		return Text{}
	}
	raw, _ := json.Marshal(s)
	return Text{raw: raw}
}

// String returns the string value, the literal text of numbers and
// booleans, and "" for null or an absent field.
func (t Text) String() string {
	if len(t.raw) == 0 {
		return ""
	}
	switch t.raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(t.raw, &s); err != nil {
			return ""
		}
		return s
	case 'n':
		return ""
	default:
		return string(t.raw)
	}
}

// IsEmpty reports whether the field carries no usable value.
func (t Text) IsEmpty() bool {
	return t.String() == ""
}

func (t Text) MarshalJSON() ([]byte, error) {
	if len(t.raw) == 0 {
		return []byte(`""`), nil
	}
	return t.raw, nil
}

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == `""` {
		t.raw = nil
		return nil
	}
	t.raw = append(json.RawMessage(nil), data...)
	return nil
}
