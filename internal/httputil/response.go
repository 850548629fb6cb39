package httputil

import (
	"encoding/json"
	"net/http"
)

const problemContentType = "application/problem+json"

// encodeFailure is served when a problem itself cannot be encoded
var encodeFailure = []byte(`{"type":"/problems/internal","title":"Internal Server Error","status":500,"detail":"failed to encode response"}`)

// RespondJSON encodes data before touching the writer, so an encoding failure
// becomes a 500 problem instead of a truncated body.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		write(w, http.StatusInternalServerError, problemContentType, encodeFailure)
		return
	}
	write(w, status, "application/json", payload)
}

// Problem is an RFC 7807 body. Fields are merged in at the top level, e.g. the
// authorization "reason" on a 403. They cannot replace the standard members.
type Problem struct {
	Type   string
	Title  string
	Status int
	Detail string
	Fields map[string]interface{}
}

// NewProblem fills type and title from the status
func NewProblem(status int, detail string) Problem {
	return Problem{
		Type:   problemType(status),
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}
}

func (p Problem) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(p.Fields)+4)
	for k, v := range p.Fields {
		m[k] = v
	}
	m["type"] = p.Type
	m["title"] = p.Title
	m["status"] = p.Status
	if p.Detail != "" {
		m["detail"] = p.Detail
	} else {
		delete(m, "detail")
	}
	return json.Marshal(m)
}

// RespondError writes a problem with no extra fields
func RespondError(w http.ResponseWriter, status int, detail string) {
	RespondProblem(w, NewProblem(status, detail))
}

// RespondErrorWithExtras writes a problem carrying additional top-level fields
func RespondErrorWithExtras(w http.ResponseWriter, status int, detail string, extras map[string]interface{}) {
	p := NewProblem(status, detail)
	p.Fields = extras
	RespondProblem(w, p)
}

func RespondProblem(w http.ResponseWriter, p Problem) {
	payload, err := json.Marshal(p)
	if err != nil {
		write(w, http.StatusInternalServerError, problemContentType, encodeFailure)
		return
	}
	write(w, p.Status, problemContentType, payload)
}

func write(w http.ResponseWriter, status int, contentType string, payload []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	w.Write(payload)
}

// problemType maps the statuses this API emits to a stable relative type URI.
// Anything else is about:blank, where the title alone carries the meaning.
func problemType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "/problems/validation"
	case http.StatusUnauthorized:
		return "/problems/unauthenticated"
	case http.StatusForbidden:
		return "/problems/access-denied"
	case http.StatusNotFound:
		return "/problems/not-found"
	case http.StatusConflict:
		return "/problems/conflict"
	case http.StatusInternalServerError:
		return "/problems/internal"
	case http.StatusServiceUnavailable:
		return "/problems/unavailable"
	default:
		return "about:blank"
	}
}
