package protocol

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

const (
	// ActionRefresh asks the server to render the named resource.
	ActionRefresh = "refresh"

	// DefaultTarget is the resource every refresh asks for. It is not configurable.
	DefaultTarget = "Kitchen"
)

var (
	ErrMissingAction = errors.New("message has no action")
	ErrMissingTarget = errors.New("refresh message has no sonos_name")
)

// codec is shared by all messages; ConfigStd keeps field order and escaping
// identical to encoding/json so encoded requests are stable byte for byte.
var codec = sonic.ConfigStd

// RefreshRequest is sent by the client on every tick.
type RefreshRequest struct {
	Action string `json:"action"`
	Target string `json:"sonos_name"`
}

// NewRefreshRequest returns the request for the fixed target.
func NewRefreshRequest() RefreshRequest {
	return RefreshRequest{Action: ActionRefresh, Target: DefaultTarget}
}

// Encode serializes the request.
func (r RefreshRequest) Encode() ([]byte, error) {
	data, err := codec.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode refresh request: %w", err)
	}
	return data, nil
}

// ServerUpdate is the reply envelope carrying replacement markup.
type ServerUpdate struct {
	HTML string `json:"html"`
}

// EncodeUpdate serializes an update envelope around html.
func EncodeUpdate(html string) ([]byte, error) {
	data, err := codec.Marshal(ServerUpdate{HTML: html})
	if err != nil {
		return nil, fmt.Errorf("encode update: %w", err)
	}
	return data, nil
}

// ParseResult is the outcome of parsing one inbound message. Exactly one of
// the branches is set.
type ParseResult struct {
	update *ServerUpdate
	reason string
}

// Succeeded builds the success branch.
func Succeeded(update ServerUpdate) ParseResult {
	return ParseResult{update: &update}
}

// Failed builds the failure branch.
func Failed(reason string) ParseResult {
	return ParseResult{reason: reason}
}

// Update returns the parsed update and true on success.
func (p ParseResult) Update() (ServerUpdate, bool) {
	if p.update == nil {
		return ServerUpdate{}, false
	}
	return *p.update, true
}

// Reason explains a failed parse; empty on success.
func (p ParseResult) Reason() string {
	return p.reason
}

// OK reports whether parsing succeeded.
func (p ParseResult) OK() bool {
	return p.update != nil
}

// ParseUpdate parses a raw inbound message. Any JSON object is accepted; a
// missing html field yields an empty fragment.
func ParseUpdate(raw []byte) ParseResult {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Failed("empty message")
	}
	if trimmed[0] != '{' {
		return Failed("message is not a JSON object")
	}

	var update ServerUpdate
	if err := codec.Unmarshal(trimmed, &update); err != nil {
		return Failed(err.Error())
	}
	return Succeeded(update)
}

// Request is a decoded client message as seen by the server.
type Request struct {
	Action string
	Target string
}

type wireRequest struct {
	Action *string `json:"action"`
	Target *string `json:"sonos_name"`
}

// DecodeRequest decodes a client message. Messages without an action and
// refresh messages without a target are reported with sentinel errors so the
// server can ignore them.
func DecodeRequest(raw []byte) (Request, error) {
	var wire wireRequest
	if err := codec.Unmarshal(raw, &wire); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	if wire.Action == nil {
		return Request{}, ErrMissingAction
	}

	req := Request{Action: *wire.Action}
	if req.Action == ActionRefresh {
		if wire.Target == nil {
			return req, ErrMissingTarget
		}
		req.Target = *wire.Target
	}
	return req, nil
}
