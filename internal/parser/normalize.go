package parser

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/loglens/loglens/internal/domain"
)

// Level hints are checked category by category in this order; the first
// category with a matching substring wins.
var levelHints = []struct {
	level string
	hints []string
}{
	{"error", []string{"error", "err", "failed", "failure", "fatal"}},
	{"warn", []string{"warn", "warning"}},
	{"info", []string{"info", "notice"}},
	{"debug", []string{"debug", "trace"}},
}

// Phase pattern lists, checked in lifecycle order. Substring matches over
// the serialized payload plus the message; the quoted forms catch phase
// values embedded in structured fields.
var phasePatterns = []struct {
	phase    string
	patterns []string
}{
	{"plan", []string{
		"terraform plan", "plan:", "planning", "starting plan operation",
		"plan operation", "operation type: plan", "cli command args: plan",
		`"plan"`, "'plan'",
	}},
	{"apply", []string{
		"terraform apply", "apply:", "applying", "starting apply operation",
		"apply operation", "operation type: apply", "cli command args: apply",
		`"apply"`, "'apply'", "backend/local: starting apply",
	}},
	{"destroy", []string{
		"terraform destroy", "destroy:", "destroying", "starting destroy operation",
		"destroy operation", "operation type: destroy", "cli command args: destroy",
		`"destroy"`, "'destroy'",
	}},
	{"validate", []string{
		"terraform validate", "validate:", "validating", "starting validate operation",
		"validate operation", "operation type: validate", "cli command args: validate",
		`"validate"`, "'validate'",
	}},
}

// Normalize derives the structured fields for one parsed line. Pure: no
// I/O, no state; the same input always yields the same entry.
func Normalize(p ParsedLine) domain.LogEntry {
	message := firstString(p.Payload, "msg", "message", "@message", "log")
	payloadJSON := marshalPayload(p.Payload)

	ts := timestampFromPayload(p.Payload)
	if ts == nil {
		ts = guessTimestamp(p.Raw)
		if ts == nil && message != "" {
			ts = guessTimestamp(message)
		}
	}

	level := strings.ToLower(firstString(p.Payload, "level", "loglevel", "severity", "@level"))
	if level == "" {
		level = guessLevel(p.Raw + "\n" + message)
	}

	phase := detectPhase(payloadJSON, message)

	// Coarse on purpose: a message merely mentioning "error" is flagged.
	isError := level == "error" || level == "fatal" ||
		strings.Contains(strings.ToLower(message), "error")

	out := domain.LogEntry{
		Raw:           p.Raw,
		PayloadJSON:   payloadJSON,
		Timestamp:     ts,
		Level:         level,
		Phase:         phase,
		CorrelationID: firstString(p.Payload, "tf_req_id", "request_id", "@request_id"),
		ResourceType:  firstString(p.Payload, "tf_resource_type", "resource_type"),
		ResourceName:  firstString(p.Payload, "tf_resource_name", "resource_name"),
		Message:       message,
		IsError:       isError,
		IsMalformed:   p.Malformed,
	}
	if out.Message == "" {
		out.Message = p.Raw
	}
	return out
}

// timestampFromPayload resolves the payload timestamp keys in precedence
// order. Only the first key holding a usable value is considered; numeric
// zero counts as absent.
func timestampFromPayload(payload map[string]any) *time.Time {
	var val any
	for _, key := range []string{"timestamp", "@timestamp", "time"} {
		if v, ok := payload[key]; ok && truthy(v) {
			val = v
			break
		}
	}
	switch v := val.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil
		}
		t := fromEpoch(f)
		return &t
	case string:
		if t, ok := ParseTimestamp(v); ok {
			return &t
		}
	}
	return nil
}

func guessLevel(text string) string {
	lowered := strings.ToLower(text)
	for _, cat := range levelHints {
		for _, h := range cat.hints {
			if strings.Contains(lowered, h) {
				return cat.level
			}
		}
	}
	return ""
}

func detectPhase(payloadJSON, message string) string {
	hay := strings.ToLower(payloadJSON) + "\n" + strings.ToLower(message)
	for _, cat := range phasePatterns {
		for _, pat := range cat.patterns {
			if strings.Contains(hay, pat) {
				return cat.phase
			}
		}
	}
	return ""
}

// firstString returns the first key whose value coerces to a non-empty
// string. Scalar non-strings are stringified; zero numbers, false and
// empty strings are treated as absent.
func firstString(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := payload[key]
		if !ok {
			continue
		}
		if s := stringValue(v); s != "" {
			return s
		}
	}
	return ""
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		if f, err := t.Float64(); err == nil && f != 0 {
			return t.String()
		}
	case bool:
		if t {
			return "true"
		}
	}
	return ""
}

func truthy(v any) bool {
	switch t := v.(type) {
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	case bool:
		return t
	case nil:
		return false
	}
	return true
}
