package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"merweb-gateway/internal/model"
	"merweb-gateway/internal/route"
)

const (
	contentTypeJSON = "application/json"

	// maxEchoedBody caps the raw backend text copied into a 4xx envelope.
	maxEchoedBody = 1024

	degradedNotice = " failed: the data may be inconsistent, ask an administrator to check the database"
)

// Translate maps a dispatch outcome onto the reply sent to the caller.
//
//   - 2xx/3xx: status and body pass through unchanged, plus Location on 3xx.
//   - 4xx: a JSON object body passes through unchanged; anything else becomes
//     an envelope at the same status.
//   - 5xx: 502 envelope, or an empty 200 page under PolicyDegradeToEmptyList.
//   - transport failure: 500 envelope for every route.
func (f *Forwarder) Translate(ep *route.Endpoint, res Resolved, o model.Outcome) model.Reply {
	switch o.Kind {
	case model.OutcomeResponse:
		ct := o.ContentType
		if ct == "" {
			ct = contentTypeJSON
		}
		r := model.Reply{Status: o.Status, ContentType: ct, Body: o.Body}
		if o.Status >= 300 && o.Status < 400 {
			r.Location = o.Location
		}
		return r

	case model.OutcomeClientFailure:
		if isJSONObject(o.Body) {
			return model.Reply{Status: o.Status, ContentType: contentTypeJSON, Body: o.Body}
		}
		return envelopeReply(o.Status, model.Envelope{
			Error:   true,
			Message: fmt.Sprintf("%s failed: %d %s", ep.Operation, o.Status, http.StatusText(o.Status)),
			Body:    echoedBody(o.Body),
		})

	case model.OutcomeServerFailure:
		if ep.Policy == route.PolicyDegradeToEmptyList {
			return degradedReply(ep, res)
		}
		return envelopeReply(http.StatusBadGateway, model.Envelope{
			Error:   true,
			Message: ep.Operation + " failed: backend server error",
		})

	default:
		return envelopeReply(http.StatusInternalServerError, model.Envelope{
			Error:   true,
			Message: ep.Operation + " failed: backend unavailable",
		})
	}
}

// degradedReply stands in for a failed list page. It hides a backend fault
// (typically inconsistent rows) from list views instead of surfacing it.
func degradedReply(ep *route.Endpoint, res Resolved) model.Reply {
	return jsonReply(http.StatusOK, model.DegradedList{
		List:     []any{},
		Total:    0,
		Page:     res.Int("page"),
		PageSize: res.Int("pageSize"),
		Error:    true,
		Message:  ep.Operation + degradedNotice,
	})
}

func envelopeReply(status int, env model.Envelope) model.Reply {
	return jsonReply(status, env)
}

func jsonReply(status int, v any) model.Reply {
	body, err := json.Marshal(v)
	if err != nil {
		return model.Reply{
			Status:      http.StatusInternalServerError,
			ContentType: contentTypeJSON,
			Body:        []byte(`{"error":true,"message":"internal error"}`),
		}
	}
	return model.Reply{Status: status, ContentType: contentTypeJSON, Body: body}
}

// isJSONObject reports whether b is a single, valid JSON object.
func isJSONObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{' && json.Valid(b)
}

func echoedBody(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > maxEchoedBody {
		b = b[:maxEchoedBody]
	}
	return string(b)
}
