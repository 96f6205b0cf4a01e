package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/noah-isme/admissions-portal/pkg/admission"
)

// envelope is the response shape shared by every admissions endpoint.
type envelope struct {
	Success       bool            `json:"success"`
	ApplicationID string          `json:"applicationId"`
	Data          json.RawMessage `json:"data"`
	Error         *apiError       `json:"error"`
	Errors        []fieldError    `json:"errors"`
}

func (e *envelope) decodeData(dest interface{}) error {
	if len(e.Data) == 0 || bytes.Equal(e.Data, []byte("null")) {
		return nil
	}
	return json.Unmarshal(e.Data, dest)
}

func (e *envelope) hasFailureDetail() bool {
	return (e.Error != nil && e.Error.Message != "") || len(e.Errors) > 0
}

func (e *envelope) message() string {
	if e.Error != nil && e.Error.Message != "" {
		return e.Error.Message
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		if fe.Message != "" {
			msgs = append(msgs, fe.Message)
		}
	}
	return strings.Join(msgs, "; ")
}

func (e *envelope) fieldErrors() admission.StageErrors {
	fields := admission.StageErrors{}
	if e.Error != nil {
		for k, v := range e.Error.Fields {
			fields[k] = v
		}
	}
	for _, fe := range e.Errors {
		if fe.Field != "" {
			fields[fe.Field] = fe.Message
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// apiError accepts either a bare string or an object with a message.
type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

func (a *apiError) UnmarshalJSON(raw []byte) error {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		a.Message = text
		return nil
	}
	type plain apiError
	var p plain
	if err := json.Unmarshal(raw, &p); err != nil {
		return errors.New("error is neither a string nor an object")
	}
	*a = apiError(p)
	return nil
}

// fieldError accepts either a bare string or {field, message}.
type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f *fieldError) UnmarshalJSON(raw []byte) error {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		f.Message = text
		return nil
	}
	type plain fieldError
	var p plain
	if err := json.Unmarshal(raw, &p); err != nil {
		return errors.New("errors entry is neither a string nor an object")
	}
	*f = fieldError(p)
	return nil
}
