// Package types holds the JSON envelopes shared by the HTTP API and pkg/apiclient.
package types

import "encoding/json"

// SuccessEnvelope wraps every 2xx body as {"data": ...}.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// RawEnvelope is the client-side view of SuccessEnvelope, leaving data undecoded.
type RawEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// Empty reports whether the envelope carried no data.
func (e RawEnvelope) Empty() bool {
	return len(e.Data) == 0 || string(e.Data) == "null"
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
