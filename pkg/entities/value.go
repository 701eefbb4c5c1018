package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type ValueKind int

const (
	KindNumber ValueKind = iota
	KindString
	KindBool
)

// Value is a scalar property value: a number, a string or a boolean.
// The zero Value is the number 0.
type Value struct {
	kind   ValueKind
	number float64
	text   string
	flag   bool
}

func Number(n float64) Value {
	return Value{kind: KindNumber, number: n}
}

func String(s string) Value {
	return Value{kind: KindString, text: s}
}

func Bool(b bool) Value {
	return Value{kind: KindBool, flag: b}
}

func (v Value) Kind() ValueKind {
	return v.kind
}

// Float64 converts the value to a number. Numeric strings convert, booleans
// become 1 or 0, any other string does not convert.
func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.number, true
	case KindString:
		n, err := strconv.ParseFloat(v.text, 64)
		return n, err == nil
	case KindBool:
		if v.flag {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func (v Value) Text() (string, bool) {
	return v.text, v.kind == KindString
}

func (v Value) Flag() (bool, bool) {
	return v.flag, v.kind == KindBool
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.text
	case KindBool:
		return strconv.FormatBool(v.flag)
	default:
		return strconv.FormatFloat(v.number, 'f', -1, 64)
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.text)
	case KindBool:
		return json.Marshal(v.flag)
	default:
		return json.Marshal(v.number)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty property value")
	}
	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*v = String(text)
	case 't', 'f':
		var flag bool
		if err := json.Unmarshal(trimmed, &flag); err != nil {
			return err
		}
		*v = Bool(flag)
	case 'n', '{', '[':
		return fmt.Errorf("property value must be a number, string or boolean, got %s", trimmed)
	default:
		var number float64
		if err := json.Unmarshal(trimmed, &number); err != nil {
			return err
		}
		*v = Number(number)
	}
	return nil
}

// ParseValue interprets operator input: booleans and numbers are typed,
// everything else stays a string.
func ParseValue(text string) Value {
	if flag, err := strconv.ParseBool(text); err == nil && (text == "true" || text == "false") {
		return Bool(flag)
	}
	if number, err := strconv.ParseFloat(text, 64); err == nil {
		return Number(number)
	}
	return String(text)
}
