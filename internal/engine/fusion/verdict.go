package fusion

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/crimson-sun/hazardscope/internal/model"
)

// Verdict is the structured answer parsed from generative output.
// Nil fields were absent and fall back to the direct classification.
type Verdict struct {
	CategoryID  *string
	Description *string
	Suggestion  *string
	Confidence  *float64
}

// ParseVerdict decodes a JSON object with type, description, suggestion and
// confidence keys. Anything that is not exactly one JSON object, trailing
// text included, fails with model.ErrParse.
func ParseVerdict(text string) (Verdict, error) {
	var fields map[string]json.RawMessage
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return Verdict{}, fmt.Errorf("%w: %w", model.ErrParse, err)
	}
	if fields == nil {
		return Verdict{}, fmt.Errorf("%w: not an object", model.ErrParse)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Verdict{}, fmt.Errorf("%w: trailing data after object", model.ErrParse)
	}

	var v Verdict
	if raw, ok := fields["type"]; ok {
		if id, ok := scalarString(raw); ok && id != "" {
			v.CategoryID = &id
		}
	}
	if raw, ok := fields["description"]; ok {
		if s, ok := stringValue(raw); ok {
			v.Description = &s
		}
	}
	if raw, ok := fields["suggestion"]; ok {
		if s, ok := stringValue(raw); ok {
			v.Suggestion = &s
		}
	}
	if raw, ok := fields["confidence"]; ok {
		if f, ok := floatValue(raw); ok {
			v.Confidence = &f
		}
	}
	return v, nil
}

func stringValue(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// scalarString accepts "3" and 3 alike.
func scalarString(raw json.RawMessage) (string, bool) {
	if s, ok := stringValue(raw); ok {
		return strings.TrimSpace(s), true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false
	}
	return n.String(), true
}

// floatValue accepts 0.9 and "0.9" alike.
func floatValue(raw json.RawMessage) (float64, bool) {
	if s, ok := stringValue(raw); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}
