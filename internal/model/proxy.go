// Package model defines shared types for the edge proxy.
package model

import (
	"context"
	"io"
	"net/http"
)

// ProxyRequest represents a client request to be forwarded to the origin.
type ProxyRequest struct {
	Ctx      context.Context
	Method   string
	Host     string // effective hostname resolved by the router
	Path     string
	RawQuery string
	Header   http.Header
	Body     io.ReadCloser

	// Trusted edge signals, resolved by the handler before the request
	// enters the pipeline. ClientIP is the connecting IP as seen by the
	// edge, never a client-supplied forwarding header.
	ClientIP  string
	RequestID string
	Country   string
	UserAgent string
	Referer   string
}

// OriginResponse represents the raw origin response to be classified.
type OriginResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// OutcomeKind enumerates the terminal classifications of a proxied request.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRedirect
	OutcomeOriginError
	OutcomeTransportFailure
)

// String returns the outcome kind as a telemetry-stable label.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRedirect:
		return "redirect"
	case OutcomeOriginError:
		return "origin_error"
	case OutcomeTransportFailure:
		return "transport_failure"
	}
	return "unknown"
}

// Outcome is the terminal classification of a proxied request. Exactly one
// outcome exists per request; it drives response construction, the cache
// write decision, and the telemetry event.
type Outcome struct {
	Kind OutcomeKind

	// Status is the client-facing HTTP status for this outcome.
	Status int

	// Location is set for OutcomeRedirect.
	Location string

	// ContentType is set for OutcomeSuccess.
	ContentType string
}

// Classify maps a raw origin response (or a transport error) onto an Outcome.
// A 3xx without a Location header is not a usable redirect and falls through
// to the origin-error branch.
func Classify(resp *OriginResponse, err error) Outcome {
	if err != nil {
		return Outcome{
			Kind:   OutcomeTransportFailure,
			Status: http.StatusInternalServerError,
		}
	}

	status := resp.StatusCode

	if status >= 300 && status < 400 {
		if loc := resp.Header.Get("Location"); loc != "" {
			return Outcome{
				Kind:     OutcomeRedirect,
				Status:   status,
				Location: loc,
			}
		}
		// Malformed redirect: no Location, fall through.
	}

	if status >= 200 && status < 300 {
		ct := resp.Header.Get("Content-Type")
		if ct == "" {
			ct = "text/html"
		}
		return Outcome{
			Kind:        OutcomeSuccess,
			Status:      status,
			ContentType: ct,
		}
	}

	return Outcome{
		Kind:   OutcomeOriginError,
		Status: status,
	}
}
