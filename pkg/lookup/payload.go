package lookup

import (
	"net/http"
	"net/url"
	"strings"
)

// Payload is the cached outcome of one lookup: either the norm text with an
// optional link, or a classified failure.
type Payload struct {
	URL    *string
	Text   string
	Kind   ErrorKind
	Status int
}

// IsError reports whether the payload is a failure.
func (p Payload) IsError() bool {
	return p.Kind != ""
}

// Response converts the payload into the API response.
func (p Payload) Response() Response {
	if p.IsError() {
		return Response{
			Status: p.Status,
			Body:   ErrorBody{Error: p.Kind.Message()},
		}
	}
	return Response{
		Status: http.StatusOK,
		Body:   SuccessBody{URL: p.URL, Text: p.Text},
	}
}

// ErrorPayload creates the failure payload for a kind.
func ErrorPayload(kind ErrorKind) Payload {
	return Payload{Kind: kind, Status: kind.Status()}
}

// Response is the status and JSON body returned to API clients.
type Response struct {
	Status int
	Body   any
}

// SuccessBody is the JSON body of a successful lookup.
type SuccessBody struct {
	URL  *string `json:"url"`
	Text string  `json:"text"`
}

// ErrorBody is the JSON body of a failed lookup.
type ErrorBody struct {
	Error string `json:"error"`
}

// Shape parses tool output. A first line holding an absolute URL becomes the
// link and the remaining lines the text; otherwise the whole output is text.
func Shape(output []byte) Payload {
	text := strings.TrimSpace(strings.ReplaceAll(string(output), "\r\n", "\n"))

	first, rest, _ := strings.Cut(text, "\n")
	if link, ok := parseLink(first); ok {
		return Payload{URL: &link, Text: strings.TrimSpace(rest)}
	}

	return Payload{Text: text}
}

// parseLink accepts absolute URLs with scheme and host.
func parseLink(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}

	u, err := url.Parse(line)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", false
	}
	return line, true
}
