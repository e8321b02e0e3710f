package tools

import (
	"encoding/json"
	"fmt"

	"hypertrader/pkg/errors"
)

// Status is the outcome of a tool call
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Result is the uniform outcome of a tool call. Results are values and are never
// mutated after creation.
type Result struct {
	Status    Status                 `json:"status"`
	Tool      string                 `json:"tool"`
	CallID    string                 `json:"call_id,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	ErrorKind errors.Kind            `json:"error_kind,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Simulated bool                   `json:"simulated,omitempty"`
}

// Success builds a success result
func Success(tool string, payload map[string]interface{}) Result {
	return Result{Status: StatusSuccess, Tool: tool, Payload: payload}
}

// Simulated builds a success result tagged as a dry run
func Simulated(tool string, payload map[string]interface{}) Result {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["simulated"] = true
	return Result{Status: StatusSuccess, Tool: tool, Payload: payload, Simulated: true}
}

// Failure builds a failure result of the given kind
func Failure(tool string, kind errors.Kind, message string) Result {
	return Result{
		Status:    StatusFailure,
		Tool:      tool,
		ErrorKind: kind,
		Error:     message,
		Payload: map[string]interface{}{
			"error_kind": kind.String(),
			"message":    message,
		},
	}
}

// detailer is implemented by errors that carry structured context for the model
type detailer interface {
	Details() map[string]interface{}
}

// FailureFromError classifies err and builds a failure result.
// Details of the first detailed error in the chain are merged into the payload.
func FailureFromError(tool string, err error) Result {
	r := Failure(tool, errors.KindOf(err), err.Error())
	var d detailer
	if errors.As(err, &d) {
		for k, v := range d.Details() {
			if _, taken := r.Payload[k]; !taken {
				r.Payload[k] = v
			}
		}
	}
	return r
}

// OK reports whether the call succeeded
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// WithCallID returns a copy bound to the originating call
func (r Result) WithCallID(id string) Result {
	r.CallID = id
	return r
}

// Err returns the failure as an error matching the kind's sentinel, or nil on success
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	if sentinel := r.ErrorKind.Sentinel(); sentinel != nil {
		return errors.Wrapf(sentinel, "%s: %s", r.Tool, r.Error)
	}
	return errors.Newf("%s: %s", r.Tool, r.Error)
}

// Content serializes the result for the model's tool message
func (r Result) Content() string {
	data, err := json.Marshal(struct {
		Status    Status                 `json:"status"`
		Simulated bool                   `json:"simulated,omitempty"`
		Data      map[string]interface{} `json:"data,omitempty"`
	}{Status: r.Status, Simulated: r.Simulated, Data: r.Payload})
	if err != nil {
		return fmt.Sprintf(`{"status":%q,"error":%q}`, r.Status, err.Error())
	}
	return string(data)
}
