// Package parser turns raw log lines into normalized entries.
//
// Lines are nominally JSON objects but frequently carry prefixes from the
// process that wrote them, or are plain text. The parser first attempts a
// strict decode, then tries to salvage an embedded {...} object, and as a
// last resort keeps the line with an empty payload. Field derivation
// (timestamp, level, phase, correlation id, resource identity) applies a
// fixed precedence order so results are deterministic over adversarial
// input.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// ParsedLine is the salvage parser's output for one line.
type ParsedLine struct {
	Payload   map[string]any
	Raw       string
	Malformed bool
}

// ParseLine decodes one line of input. The second return value is false
// for blank lines, which produce no entry at all.
//
// Malformed is false only when the whole line is a strict JSON object;
// a successful salvage still counts as malformed.
func ParseLine(raw string) (ParsedLine, bool) {
	if strings.TrimSpace(raw) == "" {
		return ParsedLine{}, false
	}
	if obj, err := decodeObject(raw); err == nil {
		return ParsedLine{Payload: obj, Raw: raw, Malformed: false}, true
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start != -1 && end > start {
		if obj, err := decodeObject(raw[start : end+1]); err == nil {
			return ParsedLine{Payload: obj, Raw: raw, Malformed: true}, true
		}
	}
	return ParsedLine{Payload: map[string]any{}, Raw: raw, Malformed: true}, true
}

// decodeObject decodes s as a single JSON object with nothing trailing.
// Numbers are kept as json.Number so the canonical payload serialization
// round-trips them verbatim.
func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("not a JSON object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON object")
	}
	return obj, nil
}

// marshalPayload produces the canonical serialized form of a payload.
// HTML escaping is disabled so the serialization matches the payload text
// byte for byte, which matters for the phase-detection haystack.
func marshalPayload(payload map[string]any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return "{}"
	}
	return strings.TrimRight(buf.String(), "\n")
}
