package httpdispatch

import (
	"net/url"
	"sync"
)

// Method is the HTTP method of a Request. The set is intentionally small
// and extensible.
type Method string

const (
	MethodGET  Method = "GET"
	MethodPOST Method = "POST"
)

// Request is a single unit of work's description of what to fetch. Its id
// is derived once, from the original (tail) endpoint, and is invariant
// across redirects: redirection appends to the endpoint history but never
// recomputes id.
type Request struct {
	mu sync.Mutex

	Method     Method
	Body       []byte
	Headers    map[string]string
	Idempotent bool

	endpoints []*url.URL // ordered history; endpoints[0] is the original, last is current

	id uint32

	RedirectCount      int
	RetryCountFailure  int
	RetryCountResponse int
}

// NewRequest parses uri and builds a Request whose identity is derived from
// (scheme, host, path, sorted query params, fragment, base64(body), port) —
// the original URI's tuple, per the Request Fingerprint component.
func NewRequest(method Method, uri string, body []byte, headers map[string]string, idempotent bool) (*Request, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, &ProtocolError{Message: "malformed request URI", Cause: err}
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, &ProtocolError{Message: "request URI must be absolute (scheme and host required)"}
	}
	if headers == nil {
		headers = map[string]string{}
	}
	r := &Request{
		Method:     method,
		Body:       body,
		Headers:    headers,
		Idempotent: idempotent,
		endpoints:  []*url.URL{u},
	}
	r.id = fingerprint(u, body)
	return r, nil
}

// ID returns the request's fingerprint. It never changes across redirects.
func (r *Request) ID() uint32 {
	return r.id
}

// CurrentURI returns the most recently visited endpoint — the active
// dispatch target.
func (r *Request) CurrentURI() *url.URL {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endpoints[len(r.endpoints)-1]
}

// OriginalURI returns the first (identity-defining) endpoint.
func (r *Request) OriginalURI() *url.URL {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endpoints[0]
}

// EndpointHistory returns a copy of the ordered history of visited URIs.
func (r *Request) EndpointHistory() []*url.URL {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*url.URL, len(r.endpoints))
	copy(out, r.endpoints)
	return out
}

// Redirect attempts to move the current target to newURI. It rejects
// cycles: if newURI (by normalized string form) is already present in the
// endpoint history, it returns false and leaves the request unchanged —
// the caller should treat this as a terminal response instead of
// redirecting again. On success the new endpoint is appended; id is never
// recomputed.
func (r *Request) Redirect(newURI *url.URL) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	norm := newURI.String()
	for _, e := range r.endpoints {
		if e.String() == norm {
			return false
		}
	}
	r.endpoints = append(r.endpoints, newURI)
	return true
}
