package errors

import (
	"encoding/json"
	"net/http"
)

// ProblemContentType is the media type of every error body
const ProblemContentType = "application/problem+json"

// ProblemDetails is an RFC 7807 error body. Extensions such as code,
// trace_id and errors are emitted as top-level members.
type ProblemDetails struct {
	Type       string
	Title      string
	Status     int
	Detail     string
	Instance   string
	Extensions map[string]interface{}
}

// NewProblemDetails builds a problem for the request path instance
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: map[string]interface{}{},
	}
}

// WithExtension sets one extension member and returns pd for chaining
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	if pd.Extensions == nil {
		pd.Extensions = map[string]interface{}{}
	}
	pd.Extensions[key] = value
	return pd
}

// MarshalJSON writes the standard members over any same-named extension
func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	body := make(map[string]interface{}, len(pd.Extensions)+5)
	for k, v := range pd.Extensions {
		body[k] = v
	}
	body["type"] = pd.Type
	body["title"] = pd.Title
	body["status"] = pd.Status
	if pd.Detail != "" {
		body["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		body["instance"] = pd.Instance
	}
	return json.Marshal(body)
}

// Write sends pd as the complete response
func (pd *ProblemDetails) Write(w http.ResponseWriter) error {
	w.Header().Set("Content-Type", ProblemContentType)
	w.WriteHeader(pd.Status)
	return json.NewEncoder(w).Encode(pd)
}
