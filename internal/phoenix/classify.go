package phoenix

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	defaultNotFoundMessage   = "The requested resource was not found"
	defaultValidationMessage = "Validation failed"
	defaultErrorMessage      = "Unknown error"
)

// envelope is a decoded 2xx body. data is nil for 204 and for bodies that
// carry no (or a null) "data" key.
type envelope struct {
	data json.RawMessage
}

func (e envelope) hasData() bool { return len(e.data) > 0 }

// classify maps one HTTP response to an envelope or a classified error.
// It performs no I/O.
func classify(status int, body []byte) (envelope, error) {
	switch {
	case status == http.StatusNoContent:
		return envelope{}, nil
	case status >= 200 && status < 300:
		return decodeEnvelope(body)
	}

	msg, fields := decodeErrorBody(body)

	switch status {
	case http.StatusNotFound:
		if msg == "" {
			msg = defaultNotFoundMessage
		}
		return envelope{}, &Error{Kind: KindNotFound, Status: status, Message: msg}
	case http.StatusUnprocessableEntity:
		if msg == "" {
			msg = defaultValidationMessage
		}
		if fields == nil {
			fields = map[string][]string{}
		}
		return envelope{}, &Error{Kind: KindValidation, Status: status, Message: msg, Fields: fields}
	default:
		if msg == "" {
			msg = defaultErrorMessage
		}
		return envelope{}, &Error{
			Kind:    KindConnection,
			Status:  status,
			Message: fmt.Sprintf("request failed with status %d: %s", status, msg),
		}
	}
}

func decodeEnvelope(body []byte) (envelope, error) {
	if !json.Valid(body) {
		return envelope{}, connectionError("failed to decode API response", nil)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return envelope{}, protocolError("response body is not a JSON object", err)
	}

	data, ok := top["data"]
	if !ok || isNull(data) {
		return envelope{}, nil
	}
	return envelope{data: data}, nil
}

// decodeErrorBody extracts {"message": string, "errors": {field: [string]}}
// leniently. Unparseable bodies yield empty values.
func decodeErrorBody(body []byte) (string, map[string][]string) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return "", nil
	}

	var msg string
	if raw, ok := top["message"]; ok {
		_ = json.Unmarshal(raw, &msg)
	}

	raw, ok := top["errors"]
	if !ok || isNull(raw) {
		return msg, nil
	}

	var fields map[string][]string
	if err := json.Unmarshal(raw, &fields); err == nil {
		return msg, fields
	}

	// Tolerate {"field": "message"}.
	var single map[string]string
	if err := json.Unmarshal(raw, &single); err == nil {
		fields = make(map[string][]string, len(single))
		for k, v := range single {
			fields[k] = []string{v}
		}
		return msg, fields
	}

	return msg, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func firstByte(raw json.RawMessage) byte {
	b := bytes.TrimSpace(raw)
	if len(b) == 0 {
		return 0
	}
	return b[0]
}
