package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/GoPolymarket/hookgate/internal/model"
	"github.com/GoPolymarket/hookgate/internal/pkg/apperrors"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// MaxPayloadBytes caps the compact serialization of the payload field.
const MaxPayloadBytes = 10 * 1024

// Submission is a validated ingestion body.
type Submission struct {
	EventType  string
	EventID    string
	Source     string
	ReceivedAt time.Time
	// compact form, used for hashing and size checks
	Payload model.RawJSON
}

type fieldRule struct {
	name    string
	schema  string
	missing string // reason when absent; empty means optional
	invalid string
}

var submissionRules = []fieldRule{
	{name: "eventType", schema: `{"type":"string","minLength":1,"maxLength":128,"pattern":"^[\\w.:-]+$"}`, missing: "missing_event_type", invalid: "invalid_event_type"},
	{name: "payload", schema: `{"type":"object"}`, missing: "missing_payload", invalid: "invalid_payload"},
	{name: "eventId", schema: `{"type":"string","maxLength":255}`, invalid: "invalid_event_id"},
	{name: "source", schema: `{"type":"string","maxLength":128}`, invalid: "invalid_source"},
	{name: "receivedAt", schema: `{"type":"string"}`, invalid: "invalid_received_at"},
}

// SubmissionValidator checks each body field against its own compiled
// schema so every rejection carries a field-specific reason.
type SubmissionValidator struct {
	schemas map[string]*jsonschema.Schema
}

func NewSubmissionValidator() (*SubmissionValidator, error) {
	v := &SubmissionValidator{schemas: make(map[string]*jsonschema.Schema, len(submissionRules))}
	for _, rule := range submissionRules {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(rule.schema))
		if err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", rule.name, err)
		}
		url := "hookgate://submission/" + rule.name
		c := jsonschema.NewCompiler()
		if err := c.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", rule.name, err)
		}
		compiled, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", rule.name, err)
		}
		v.schemas[rule.name] = compiled
	}
	return v, nil
}

func invalid(reason, msg string) *apperrors.AppError {
	return apperrors.NewInvalidRequest(msg).WithReason(reason)
}

// Parse decodes and validates body. now is used when receivedAt is absent.
func (v *SubmissionValidator) Parse(body []byte, now time.Time) (*Submission, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || !json.Valid(body) {
		return nil, invalid("malformed_json", "request body is not valid JSON")
	}
	if body[0] != '{' {
		return nil, invalid("body_not_object", "request body must be a JSON object")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, invalid("malformed_json", "request body is not valid JSON")
	}

	for _, rule := range submissionRules {
		raw, ok := fields[rule.name]
		if !ok || string(raw) == "null" {
			if rule.missing != "" {
				return nil, invalid(rule.missing, rule.name+" is required")
			}
			continue
		}
		inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, invalid(rule.invalid, rule.name+" is not valid JSON")
		}
		if err := v.schemas[rule.name].Validate(inst); err != nil {
			return nil, invalid(rule.invalid, fmt.Sprintf("%s is invalid: %s", rule.name, describe(err)))
		}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, fields["payload"]); err != nil {
		return nil, invalid("invalid_payload", "payload is not valid JSON")
	}
	if compact.Len() > MaxPayloadBytes {
		return nil, apperrors.New(apperrors.ErrPayloadTooLarge,
			fmt.Sprintf("payload is %d bytes, limit is %d", compact.Len(), MaxPayloadBytes), nil).
			WithReason("payload_too_large")
	}

	sub := &Submission{
		Payload:    model.RawJSON(compact.Bytes()),
		Source:     model.DefaultEventSource,
		ReceivedAt: now.UTC(),
	}
	_ = json.Unmarshal(fields["eventType"], &sub.EventType)
	if raw, ok := fields["eventId"]; ok {
		_ = json.Unmarshal(raw, &sub.EventID)
	}
	if raw, ok := fields["source"]; ok {
		var src string
		_ = json.Unmarshal(raw, &src)
		if src = strings.TrimSpace(src); src != "" {
			sub.Source = src
		}
	}
	if raw, ok := fields["receivedAt"]; ok && string(raw) != "null" {
		var s string
		_ = json.Unmarshal(raw, &s)
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, invalid("invalid_received_at", "receivedAt must be an ISO-8601 timestamp")
		}
		sub.ReceivedAt = ts.UTC()
	}
	return sub, nil
}

// describe returns the innermost line of a schema validation error.
func describe(err error) string {
	lines := strings.Split(strings.TrimSpace(err.Error()), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if i := strings.Index(last, ": "); i >= 0 && strings.HasPrefix(last, "- at") {
		last = last[i+2:]
	}
	return last
}
