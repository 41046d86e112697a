package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// AnswerKind tags which variant an Answer holds.
type AnswerKind int

const (
	AnswerText AnswerKind = iota
	AnswerNumber
	AnswerOptions
)

func (k AnswerKind) String() string {
	switch k {
	case AnswerNumber:
		return "number"
	case AnswerOptions:
		return "options"
	default:
		return "text"
	}
}

// Answer is a student's answer: free text, a number or a list of selected
// options. Stored answers arrive as JSON and are resolved once at the
// boundary; everything downstream works on Canonical.
type Answer struct {
	Kind    AnswerKind
	Text    string
	Number  float64
	Options []string
}

// TextAnswer builds a text answer.
func TextAnswer(s string) Answer { return Answer{Kind: AnswerText, Text: s} }

// NumberAnswer builds a numeric answer.
func NumberAnswer(f float64) Answer { return Answer{Kind: AnswerNumber, Number: f} }

// OptionsAnswer builds a multi-option answer.
func OptionsAnswer(opts ...string) Answer { return Answer{Kind: AnswerOptions, Options: opts} }

// Canonical renders the answer as the single string graders compare.
// Options are joined with ", " in selection order.
func (a Answer) Canonical() string {
	switch a.Kind {
	case AnswerNumber:
		return strconv.FormatFloat(a.Number, 'f', -1, 64)
	case AnswerOptions:
		return strings.Join(a.Options, ", ")
	default:
		return a.Text
	}
}

// IsEmpty reports whether the answer carries no content.
func (a Answer) IsEmpty() bool {
	switch a.Kind {
	case AnswerNumber:
		return false
	case AnswerOptions:
		for _, o := range a.Options {
			if strings.TrimSpace(o) != "" {
				return false
			}
		}
		return true
	default:
		return strings.TrimSpace(a.Text) == ""
	}
}

// MarshalJSON writes the bare JSON value: string, number or array.
func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case AnswerNumber:
		return json.Marshal(a.Number)
	case AnswerOptions:
		if a.Options == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.Options)
	default:
		return json.Marshal(a.Text)
	}
}

// UnmarshalJSON accepts a JSON string, number, array of scalars or null.
func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = TextAnswer("")
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = TextAnswer(s)
	case '[':
		var raw []any
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		opts := make([]string, 0, len(raw))
		for _, v := range raw {
			opts = append(opts, scalarString(v))
		}
		*a = OptionsAnswer(opts...)
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("answer: unsupported JSON value %s", data)
		}
		*a = NumberAnswer(f)
	}
	return nil
}

// ParseAnswer resolves a stored answer. Values that are not valid JSON are
// treated as plain text, which covers legacy rows holding raw strings.
func ParseAnswer(raw string) Answer {
	var a Answer
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return TextAnswer(raw)
	}
	return a
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
