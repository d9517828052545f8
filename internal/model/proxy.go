// Package model defines shared types for the gateway.
package model

import (
	"net/http"
	"net/url"
)

// InboundRequest is the caller's request as seen by the forwarding logic.
type InboundRequest struct {
	Method string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// OutboundRequest is the single backend call built for one inbound request.
type OutboundRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte // nil when the request carries no body
}

// OutcomeKind tags a dispatch Outcome.
type OutcomeKind int

const (
	// OutcomeResponse is a 2xx or 3xx backend reply.
	OutcomeResponse OutcomeKind = iota
	// OutcomeClientFailure is a 4xx backend reply.
	OutcomeClientFailure
	// OutcomeServerFailure is a 5xx backend reply.
	OutcomeServerFailure
	// OutcomeTransportFailure means no usable reply was received.
	OutcomeTransportFailure
)

// String returns a short label, also used as a metrics label value.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeResponse:
		return "response"
	case OutcomeClientFailure:
		return "client_failure"
	case OutcomeServerFailure:
		return "server_failure"
	case OutcomeTransportFailure:
		return "transport_failure"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of a dispatch. Status, ContentType and
// Body are set for every kind except OutcomeTransportFailure, which sets Cause.
type Outcome struct {
	Kind        OutcomeKind
	Status      int
	ContentType string
	Location    string // Location header of a 3xx reply
	Body        []byte
	Cause       error
}

// Classify returns the outcome kind for a backend status code.
func Classify(status int) OutcomeKind {
	switch {
	case status >= 500:
		return OutcomeServerFailure
	case status >= 400:
		return OutcomeClientFailure
	default:
		return OutcomeResponse
	}
}

// Envelope is the error body synthesized when a backend reply cannot be
// passed through.
type Envelope struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Body    string `json:"body,omitempty"`
}

// DegradedList is returned in place of a failed list page.
type DegradedList struct {
	List     []any  `json:"list"`
	Total    int    `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
	Error    bool   `json:"error"`
	Message  string `json:"message"`
}

// Reply is what the gateway writes back to the caller.
type Reply struct {
	Status      int
	ContentType string
	Location    string // relayed only for 3xx replies
	Body        []byte
}
