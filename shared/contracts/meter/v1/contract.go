// Package v1 defines the Warden Strength Meter Protocol v1 contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between server and clients to keep the wire protocol authoritative.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Subprotocol is the WebSocket subprotocol clients must offer.
const Subprotocol = "warden.meter.v1"

// Type constants (wire-stable).
const (
	// TypeEvaluate asks the server to score a candidate password (client -> server).
	TypeEvaluate = "evaluate"
	// TypeReport answers an evaluate request (server -> client).
	TypeReport = "report"
	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

var clientTypes = map[string]struct{}{
	TypeEvaluate: {},
}

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	ReplyTo string          `json:"reply_to,omitempty"`
	TS      time.Time       `json:"ts"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate checks a client-sent envelope.
func (e Envelope) Validate() error {
	if e.V != Version {
		return fmt.Errorf("invalid protocol version: got=%q want=%q", e.V, Version)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing type")
	}
	if _, ok := clientTypes[e.Type]; !ok {
		return fmt.Errorf("unsupported type: %s", e.Type)
	}
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("missing id")
	}
	if len(e.ID) > 64 {
		return errors.New("id too long")
	}
	if len(e.Payload) == 0 {
		return errors.New("missing payload")
	}
	return nil
}

// EvaluatePayload carries the candidate password. UserInputs (username, email)
// lower the advisory estimate when they appear in the password.
type EvaluatePayload struct {
	Password   string   `json:"password"`
	UserInputs []string `json:"user_inputs,omitempty"`
}

// EstimatePayload is the advisory pattern-based estimate.
type EstimatePayload struct {
	Score            int     `json:"score"`
	EntropyBits      float64 `json:"entropy_bits"`
	CrackTimeDisplay string  `json:"crack_time_display"`
}

// ReportPayload mirrors the server's validation report.
type ReportPayload struct {
	Valid      bool            `json:"valid"`
	Violations []string        `json:"violations"`
	Strength   int             `json:"strength"`
	Estimate   EstimatePayload `json:"estimate"`
}

// ErrorPayload describes a rejected request.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
