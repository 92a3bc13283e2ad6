package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedPayload is returned when a payload cannot be read as any
	// supported answer shape.
	ErrMalformedPayload = errors.New("malformed answer payload")
)

// Answer is a decoded response payload. Keys carries choice keys or, for
// free text, the submitted string as a single element.
type Answer struct {
	Keys []string
}

// Empty reports whether nothing was submitted.
func (a Answer) Empty() bool {
	for _, k := range a.Keys {
		if strings.TrimSpace(k) != "" {
			return false
		}
	}
	return true
}

// DecodeAnswer reads the accepted payload shapes:
//
//	{"answers": ["A", "C"]}
//	{"answer": "g"}
//	"A"
//	["A", "C"]
//
// null or an absent payload decodes to an empty Answer.
func DecodeAnswer(raw []byte) (Answer, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return Answer{}, nil
	}

	var v interface{}
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return Answer{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return fromValue(v)
}

func fromValue(v interface{}) (Answer, error) {
	switch val := v.(type) {
	case nil:
		return Answer{}, nil
	case string:
		return Answer{Keys: []string{val}}, nil
	case []interface{}:
		keys := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return Answer{}, fmt.Errorf("%w: expected string element, got %T", ErrMalformedPayload, item)
			}
			keys = append(keys, s)
		}
		return Answer{Keys: keys}, nil
	case map[string]interface{}:
		if len(val) == 0 {
			return Answer{}, nil
		}
		if inner, ok := val["answers"]; ok {
			return fromValue(inner)
		}
		if inner, ok := val["answer"]; ok {
			return fromValue(inner)
		}
		return Answer{}, fmt.Errorf("%w: object has neither \"answer\" nor \"answers\"", ErrMalformedPayload)
	default:
		return Answer{}, fmt.Errorf("%w: unexpected type %T", ErrMalformedPayload, v)
	}
}

// EncodeChoices builds the canonical payload for choice questions.
func EncodeChoices(keys ...string) []byte {
	b, _ := json.Marshal(map[string][]string{"answers": keys})
	return b
}

// EncodeText builds the canonical payload for fill in the blank questions.
func EncodeText(text string) []byte {
	b, _ := json.Marshal(map[string]string{"answer": text})
	return b
}
