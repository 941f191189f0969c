// Package alert owns the fire_alert wire contract and the publish path that
// puts it on the broker.
//
// The payload is always a structured JSON object with ten fields. The older
// comma-joined string payload is treated as malformed by Decode.
package alert

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/LeonardoBeccarini/firelinx/internal/model/entities"
	"github.com/LeonardoBeccarini/firelinx/internal/model/messages"
)

// DecodeErrorKind classifies decode failures.
type DecodeErrorKind string

const MalformedPayload DecodeErrorKind = "MalformedPayload"

// DecodeError is returned by Decode for any message that does not match the
// canonical schema.
type DecodeError struct {
	Kind   DecodeErrorKind
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func malformed(reason string, err error) *DecodeError {
	return &DecodeError{Kind: MalformedPayload, Reason: reason, Err: err}
}

// payload field names, in wire order.
var (
	stringFields = []string{
		"fireType", "fireIntensity", "user", "userID", "stnID",
		"latitude", "longitude", "date", "time",
	}
	boolFields = []string{"verified"}
)

// Encode builds the wire message for r. It never fails.
func Encode(r entities.FireReport) messages.AlertMessage {
	return messages.AlertMessage{
		Command: messages.CommandFireAlert,
		Payload: messages.AlertPayload{
			FireType:      string(r.FireType),
			FireIntensity: string(r.FireIntensity),
			Verified:      r.Verified,
			User:          r.User,
			UserID:        r.UserID,
			StnID:         r.StnID,
			Latitude:      r.Latitude,
			Longitude:     r.Longitude,
			Date:          r.Date,
			Time:          r.Time,
		},
	}
}

// Marshal serializes m as UTF-8 JSON. HTML escaping is off so names and the
// degree sign travel as typed.
func Marshal(m messages.AlertMessage) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("marshal alert: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses raw wire text. On failure it returns the zero message and a
// *DecodeError.
func Decode(raw []byte) (messages.AlertMessage, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return messages.AlertMessage{}, malformed("not a JSON object", err)
	}

	var command string
	cmdRaw, ok := envelope["command"]
	if !ok {
		return messages.AlertMessage{}, malformed("missing command", nil)
	}
	if err := json.Unmarshal(cmdRaw, &command); err != nil {
		return messages.AlertMessage{}, malformed("command is not a string", err)
	}
	if command != messages.CommandFireAlert {
		return messages.AlertMessage{}, malformed(fmt.Sprintf("unexpected command %q", command), nil)
	}

	payloadRaw, ok := envelope["payload"]
	if !ok {
		return messages.AlertMessage{}, malformed("missing payload", nil)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payloadRaw, &fields); err != nil || fields == nil {
		if trimmed := bytes.TrimSpace(payloadRaw); len(trimmed) > 0 && trimmed[0] == '"' {
			return messages.AlertMessage{}, malformed("legacy flattened payload", nil)
		}
		return messages.AlertMessage{}, malformed("payload is not an object", err)
	}

	str := make(map[string]string, len(stringFields))
	for _, name := range stringFields {
		v, ok := fields[name]
		if !ok {
			return messages.AlertMessage{}, malformed("missing field "+name, nil)
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return messages.AlertMessage{}, malformed("field "+name+" is not a string", err)
		}
		str[name] = s
	}
	var verified bool
	for _, name := range boolFields {
		v, ok := fields[name]
		if !ok {
			return messages.AlertMessage{}, malformed("missing field "+name, nil)
		}
		if err := json.Unmarshal(v, &verified); err != nil || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return messages.AlertMessage{}, malformed("field "+name+" is not a boolean", err)
		}
	}

	if !entities.FireType(str["fireType"]).Valid() {
		return messages.AlertMessage{}, malformed(fmt.Sprintf("fireType %q out of range", str["fireType"]), nil)
	}
	if !entities.FireIntensity(str["fireIntensity"]).Valid() {
		return messages.AlertMessage{}, malformed(fmt.Sprintf("fireIntensity %q out of range", str["fireIntensity"]), nil)
	}

	return messages.AlertMessage{
		Command: command,
		Payload: messages.AlertPayload{
			FireType:      str["fireType"],
			FireIntensity: str["fireIntensity"],
			Verified:      verified,
			User:          str["user"],
			UserID:        str["userID"],
			StnID:         str["stnID"],
			Latitude:      str["latitude"],
			Longitude:     str["longitude"],
			Date:          str["date"],
			Time:          str["time"],
		},
	}, nil
}

// ReportFromMessage is the inverse of Encode.
func ReportFromMessage(m messages.AlertMessage) entities.FireReport {
	p := m.Payload
	return entities.FireReport{
		FireType:      entities.FireType(p.FireType),
		FireIntensity: entities.FireIntensity(p.FireIntensity),
		Verified:      p.Verified,
		User:          p.User,
		UserID:        p.UserID,
		StnID:         p.StnID,
		Latitude:      p.Latitude,
		Longitude:     p.Longitude,
		Date:          p.Date,
		Time:          p.Time,
	}
}
