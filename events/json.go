package events

import (
	"errors"
	"fmt"

	"github.com/casualjim/hoot/failure"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	tokenJSON = []byte(`{"event":"token"}`)
	errorJSON = []byte(`{"event":"error","error":true}`)
	endJSON   = []byte(`{"event":"end"}`)
	wireJSON  = []byte(`{"error":true}`)
)

// ToJSON encodes an event with its discriminator so FromJSON can restore it.
func ToJSON(e Event) ([]byte, error) {
	if e == nil {
		return nil, errors.New("nil event")
	}
	return json.Marshal(e)
}

// FromJSON decodes an event produced by ToJSON.
func FromJSON(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}

	switch kind := gjson.GetBytes(data, "event").String(); kind {
	case "token":
		var t Token
		if err := t.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return t, nil
	case "error":
		var e TerminalError
		if err := e.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return e, nil
	case "end":
		var e EndOfStream
		if err := e.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", kind)
	}
}

// MarshalJSON implements custom JSON marshaling for Token
func (t Token) MarshalJSON() ([]byte, error) {
	result := tokenJSON

	var err error
	result, err = sjson.SetBytes(result, "run_id", t.RunID.String())
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "attempt", t.Attempt)
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "text", t.Text)
	if err != nil {
		return nil, err
	}

	if !t.Timestamp.IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", t.Timestamp.String())
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// UnmarshalJSON implements custom JSON unmarshaling for Token
func (t *Token) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	if kind := gjson.GetBytes(data, "event"); !kind.Exists() || kind.String() != "token" {
		return errors.New("missing or invalid event, expected 'token'")
	}

	runID := gjson.GetBytes(data, "run_id")
	if !runID.Exists() {
		return errors.New("missing required field 'run_id'")
	}
	if err := t.RunID.UnmarshalText([]byte(runID.String())); err != nil {
		return fmt.Errorf("invalid run_id: %w", err)
	}

	text := gjson.GetBytes(data, "text")
	if !text.Exists() {
		return errors.New("missing required field 'text'")
	}
	t.Text = text.String()
	t.Attempt = int(gjson.GetBytes(data, "attempt").Int())

	if timestamp := gjson.GetBytes(data, "timestamp"); timestamp.Exists() {
		if err := t.Timestamp.UnmarshalText([]byte(timestamp.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}

	return nil
}

// Wire renders the error object streamed to HTTP callers:
// {"error":true,"message":...,"type":...,"status":...,"details"?:...}.
// Details are only included when includeDetails is set.
func (e TerminalError) Wire(includeDetails bool) ([]byte, error) {
	result, err := e.setWireFields(wireJSON)
	if err != nil {
		return nil, err
	}

	if includeDetails && e.Details != "" {
		result, err = sjson.SetBytes(result, "details", e.Details)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (e TerminalError) setWireFields(result []byte) ([]byte, error) {
	var err error
	result, err = sjson.SetBytes(result, "message", e.Message)
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "type", string(e.Kind))
	if err != nil {
		return nil, err
	}

	return sjson.SetBytes(result, "status", e.Status)
}

// MarshalJSON implements custom JSON marshaling for TerminalError
func (e TerminalError) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(errorJSON, "run_id", e.RunID.String())
	if err != nil {
		return nil, err
	}

	result, err = e.setWireFields(result)
	if err != nil {
		return nil, err
	}

	if e.Details != "" {
		result, err = sjson.SetBytes(result, "details", e.Details)
		if err != nil {
			return nil, err
		}
	}

	if !e.Timestamp.IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", e.Timestamp.String())
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// UnmarshalJSON implements custom JSON unmarshaling for TerminalError
func (e *TerminalError) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	if kind := gjson.GetBytes(data, "event"); !kind.Exists() || kind.String() != "error" {
		return errors.New("missing or invalid event, expected 'error'")
	}

	runID := gjson.GetBytes(data, "run_id")
	if !runID.Exists() {
		return errors.New("missing required field 'run_id'")
	}
	if err := e.RunID.UnmarshalText([]byte(runID.String())); err != nil {
		return fmt.Errorf("invalid run_id: %w", err)
	}

	kind, ok := failure.ParseKind(gjson.GetBytes(data, "type").String())
	if !ok {
		return fmt.Errorf("invalid error type %q", gjson.GetBytes(data, "type").String())
	}
	e.Kind = kind
	e.Message = gjson.GetBytes(data, "message").String()
	e.Status = int(gjson.GetBytes(data, "status").Int())
	e.Details = gjson.GetBytes(data, "details").String()

	if timestamp := gjson.GetBytes(data, "timestamp"); timestamp.Exists() {
		if err := e.Timestamp.UnmarshalText([]byte(timestamp.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}

	return nil
}

// MarshalJSON implements custom JSON marshaling for EndOfStream
func (e EndOfStream) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(endJSON, "run_id", e.RunID.String())
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "attempts", e.Attempts)
	if err != nil {
		return nil, err
	}

	if !e.Timestamp.IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", e.Timestamp.String())
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// UnmarshalJSON implements custom JSON unmarshaling for EndOfStream
func (e *EndOfStream) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	if kind := gjson.GetBytes(data, "event"); !kind.Exists() || kind.String() != "end" {
		return errors.New("missing or invalid event, expected 'end'")
	}

	runID := gjson.GetBytes(data, "run_id")
	if !runID.Exists() {
		return errors.New("missing required field 'run_id'")
	}
	if err := e.RunID.UnmarshalText([]byte(runID.String())); err != nil {
		return fmt.Errorf("invalid run_id: %w", err)
	}
	e.Attempts = int(gjson.GetBytes(data, "attempts").Int())

	if timestamp := gjson.GetBytes(data, "timestamp"); timestamp.Exists() {
		if err := e.Timestamp.UnmarshalText([]byte(timestamp.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}

	return nil
}
