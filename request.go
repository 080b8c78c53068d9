package nextauth

import (
	"encoding/json"
	"mime"
	"net/http"
	"net/url"
)

// Action names the operation a request is asking for. One action per request.
type Action string

const (
	ActionProviders       Action = "providers"
	ActionCSRF            Action = "csrf"
	ActionSignIn          Action = "signin"
	ActionSignOut         Action = "signout"
	ActionCallback        Action = "callback"
	ActionSession         Action = "session"
	ActionVerifyRequest   Action = "verify-request"
	ActionError           Action = "error"
	ActionWebAuthnOptions Action = "webauthn-options"
)

// Request is the engine's view of one inbound HTTP request, produced by the
// framework shim. Immutable per invocation and never persisted.
type Request struct {
	Method     string
	Action     Action
	ProviderID string
	URL        *url.URL
	Query      url.Values
	Body       map[string]string
	Cookies    map[string]string
	Headers    http.Header
}

// Secure reports whether the request arrived over HTTPS, honouring the
// X-Forwarded-Proto header set by trusted reverse proxies.
func (r *Request) Secure() bool {
	if proto := r.Headers.Get("X-Forwarded-Proto"); proto != "" {
		return proto == "https"
	}
	return r.URL.Scheme == "https"
}

// Response is what a handler produces: a status, optional redirect, cookies
// to set and an optional JSON body. The framework shim writes it back out.
type Response struct {
	Status   int
	Redirect string
	Cookies  []Cookie
	Headers  http.Header
	Body     any
}

// AddCookie appends a cookie to be set on the response.
func (resp *Response) AddCookie(c Cookie) {
	resp.Cookies = append(resp.Cookies, c)
}

// NewRequest translates a native *http.Request into the engine's request
// shape. Form bodies (urlencoded or JSON) are flattened into string pairs;
// cookies become a name→value map.
func NewRequest(r *http.Request) (*Request, error) {
	req := &Request{
		Method:  r.Method,
		URL:     r.URL,
		Query:   r.URL.Query(),
		Headers: r.Header,
		Cookies: map[string]string{},
		Body:    map[string]string{},
	}
	if r.Host != "" && req.URL.Host == "" {
		// Reconstruct an absolute URL so redirect validation can compare
		// origins.
		u := *r.URL
		u.Host = r.Host
		u.Scheme = "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			u.Scheme = "https"
		}
		req.URL = &u
	}
	for _, c := range r.Cookies() {
		req.Cookies[c.Name] = c.Value
	}

	if r.Method != http.MethodPost || r.Body == nil {
		return req, nil
	}

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/json":
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			for k, v := range body {
				if s, ok := v.(string); ok {
					req.Body[k] = s
				}
			}
		}
	default:
		if err := r.ParseForm(); err == nil {
			for k, vs := range r.PostForm {
				if len(vs) > 0 {
					req.Body[k] = vs[0]
				}
			}
		}
	}
	return req, nil
}

// Write serializes the response onto a native http.ResponseWriter.
func (resp *Response) Write(w http.ResponseWriter, r *http.Request) {
	for k, vs := range resp.Headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	for _, c := range resp.Cookies {
		http.SetCookie(w, c.HTTPCookie())
	}
	if resp.Redirect != "" {
		status := resp.Status
		if status == 0 {
			status = http.StatusFound
		}
		http.Redirect(w, r, resp.Redirect, status)
		return
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	if resp.Body != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp.Body)
		return
	}
	w.WriteHeader(status)
}
